// Package loader reads music files from disk, unwrapping compressed files
// and archives.
package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/bodgit/sevenzip"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/nwaples/rardecode/v2"
	"github.com/pierrec/lz4/v4"
	"github.com/spf13/afero"
	"github.com/ulikunitz/xz"

	"github.com/user-none/emsn/vgm"
)

// MaxSize bounds every file and archive entry the loader reads.
const MaxSize = 16 << 20

// maxDepth bounds nested containers, e.g. a .vgz inside a .zip.
const maxDepth = 3

var (
	// ErrUnsupportedSource is the error kind for unusable containers. It is
	// the same value as vgm.ErrUnsupportedSource.
	ErrUnsupportedSource = vgm.ErrUnsupportedSource

	// ErrTooLarge is returned for files over MaxSize.
	ErrTooLarge = errors.New("loader: file too large")
)

// Extensions the loader prefers when picking an archive entry.
var knownExtensions = []string{".vgm", ".vgz", ".psg"}

// Entry is a loaded file after unwrapping.
type Entry struct {
	// Name is the innermost file name, without compression suffixes.
	Name string
	Data []byte
}

// Ext returns the lower case extension of the entry name.
func (e Entry) Ext() string {
	return strings.ToLower(path.Ext(e.Name))
}

// Load reads path from fs and unwraps it.
func Load(fs afero.Fs, name string) (Entry, error) {
	f, err := fs.Open(name)
	if err != nil {
		return Entry{}, err
	}
	defer f.Close()

	data, err := readLimited(f, name)
	if err != nil {
		return Entry{}, err
	}
	return Unwrap(path.Base(name), data)
}

// Save writes data to path on fs.
func Save(fs afero.Fs, name string, data []byte) error {
	return afero.WriteFile(fs, name, data, 0644)
}

// Unwrap strips compression layers and picks an archive entry until plain
// data remains.
func Unwrap(name string, data []byte) (Entry, error) {
	e := Entry{Name: name, Data: data}
	for depth := 0; depth < maxDepth; depth++ {
		next, ok, err := unwrapOnce(e)
		if err != nil {
			return Entry{}, fmt.Errorf("%s: %w", e.Name, err)
		}
		if !ok {
			return e, nil
		}
		e = next
	}
	return e, nil
}

type format int

const (
	formatPlain format = iota
	formatGzip
	formatZip
	format7z
	formatRar
	formatXz
	formatLz4
)

var magics = []struct {
	prefix string
	format format
}{
	{"\x1f\x8b", formatGzip},
	{"PK\x03\x04", formatZip},
	{"PK\x05\x06", formatZip},
	{"7z\xbc\xaf\x27\x1c", format7z},
	{"Rar!\x1a\x07", formatRar},
	{"\xfd7zXZ\x00", formatXz},
	{"\x04\x22\x4d\x18", formatLz4},
}

func detect(data []byte) format {
	for _, m := range magics {
		if bytes.HasPrefix(data, []byte(m.prefix)) {
			return m.format
		}
	}
	return formatPlain
}

func unwrapOnce(e Entry) (Entry, bool, error) {
	r := bytes.NewReader(e.Data)
	switch detect(e.Data) {
	case formatGzip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return Entry{}, false, fmt.Errorf("%w: %v", ErrUnsupportedSource, err)
		}
		defer zr.Close()
		return stream(zr, stripSuffix(e.Name, ".gz"))
	case formatXz:
		xr, err := xz.NewReader(r)
		if err != nil {
			return Entry{}, false, fmt.Errorf("%w: %v", ErrUnsupportedSource, err)
		}
		return stream(xr, stripSuffix(e.Name, ".xz"))
	case formatLz4:
		return stream(lz4.NewReader(r), stripSuffix(e.Name, ".lz4"))
	case formatZip:
		return fromZip(r)
	case format7z:
		return from7z(r)
	case formatRar:
		return fromRar(r)
	}
	return e, false, nil
}

func stream(r io.Reader, name string) (Entry, bool, error) {
	data, err := readLimited(r, name)
	if err != nil {
		return Entry{}, false, err
	}
	return Entry{Name: name, Data: data}, true, nil
}

// stripSuffix removes a compression suffix; .vgz becomes .vgm.
func stripSuffix(name, suffix string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, suffix):
		return name[:len(name)-len(suffix)]
	case suffix == ".gz" && strings.HasSuffix(lower, ".vgz"):
		return name[:len(name)-1] + "m"
	}
	return name
}

func readLimited(r io.Reader, name string) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	if len(data) > MaxSize {
		return nil, fmt.Errorf("%s: %w (limit %d bytes)", name, ErrTooLarge, MaxSize)
	}
	return data, nil
}

// pick returns the index of the first known music file, or the first file.
func pick(names []string) int {
	for i, n := range names {
		ext := strings.ToLower(path.Ext(n))
		for _, k := range knownExtensions {
			if ext == k {
				return i
			}
		}
	}
	if len(names) > 0 {
		return 0
	}
	return -1
}

func openEntry(open func() (io.ReadCloser, error), name string) (Entry, bool, error) {
	rc, err := open()
	if err != nil {
		return Entry{}, false, fmt.Errorf("opening %s: %w", name, err)
	}
	defer rc.Close()
	return stream(rc, path.Base(name))
}

func fromZip(r *bytes.Reader) (Entry, bool, error) {
	zr, err := zip.NewReader(r, r.Size())
	if err != nil {
		return Entry{}, false, fmt.Errorf("%w: %v", ErrUnsupportedSource, err)
	}
	var files []*zip.File
	var names []string
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		files = append(files, f)
		names = append(names, f.Name)
	}
	i := pick(names)
	if i < 0 {
		return Entry{}, false, fmt.Errorf("%w: empty zip archive", ErrUnsupportedSource)
	}
	if files[i].UncompressedSize64 > MaxSize {
		return Entry{}, false, fmt.Errorf("%s: %w (limit %d bytes)", names[i], ErrTooLarge, MaxSize)
	}
	return openEntry(files[i].Open, names[i])
}

func from7z(r *bytes.Reader) (Entry, bool, error) {
	zr, err := sevenzip.NewReader(r, r.Size())
	if err != nil {
		return Entry{}, false, fmt.Errorf("%w: %v", ErrUnsupportedSource, err)
	}
	var files []*sevenzip.File
	var names []string
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		files = append(files, f)
		names = append(names, f.Name)
	}
	i := pick(names)
	if i < 0 {
		return Entry{}, false, fmt.Errorf("%w: empty 7z archive", ErrUnsupportedSource)
	}
	return openEntry(files[i].Open, names[i])
}

// fromRar scans the archive twice since entries can only be read in order.
func fromRar(r *bytes.Reader) (Entry, bool, error) {
	names, err := rarNames(r)
	if err != nil {
		return Entry{}, false, err
	}
	i := pick(names)
	if i < 0 {
		return Entry{}, false, fmt.Errorf("%w: empty rar archive", ErrUnsupportedSource)
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return Entry{}, false, err
	}
	rr, err := rardecode.NewReader(r)
	if err != nil {
		return Entry{}, false, fmt.Errorf("%w: %v", ErrUnsupportedSource, err)
	}
	for n := 0; ; {
		hdr, err := rr.Next()
		if err != nil {
			return Entry{}, false, fmt.Errorf("%w: %v", ErrUnsupportedSource, err)
		}
		if hdr.IsDir {
			continue
		}
		if n == i {
			return stream(rr, path.Base(hdr.Name))
		}
		n++
	}
}

func rarNames(r io.Reader) ([]string, error) {
	rr, err := rardecode.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedSource, err)
	}
	var names []string
	for {
		hdr, err := rr.Next()
		if err == io.EOF {
			return names, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnsupportedSource, err)
		}
		if !hdr.IsDir {
			names = append(names, hdr.Name)
		}
	}
}
