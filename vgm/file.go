package vgm

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

const (
	gzipMagic0    = 0x1F
	gzipMagic1    = 0x8B
	gzipDeflate   = 8
	maxInflatedSz = 64 << 20
)

// File is a parsed VGM log.
type File struct {
	Header Header
	data   []byte
}

// Parse reads a raw or gzip compressed (VGZ) log.
func Parse(data []byte) (*File, error) {
	data, err := Inflate(data)
	if err != nil {
		return nil, err
	}
	h, err := parseHeader(data)
	if err != nil {
		return nil, err
	}
	return &File{Header: h, data: data}, nil
}

// IsCompressed reports whether data starts with a gzip header.
func IsCompressed(data []byte) bool {
	return len(data) >= 2 && data[0] == gzipMagic0 && data[1] == gzipMagic1
}

// Inflate returns data unchanged unless it is gzip compressed.
func Inflate(data []byte) ([]byte, error) {
	if !IsCompressed(data) {
		return data, nil
	}
	if len(data) < 3 || data[2] != gzipDeflate {
		return nil, fmt.Errorf("%w: unknown gzip compression method", ErrUnsupportedSource)
	}

	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedSource, err)
	}
	defer zr.Close()

	out, err := io.ReadAll(io.LimitReader(zr, maxInflatedSz+1))
	if err != nil {
		return nil, fmt.Errorf("inflating vgz: %w", err)
	}
	if len(out) > maxInflatedSz {
		return nil, fmt.Errorf("%w: inflated data exceeds %d bytes", ErrUnsupportedSource, maxInflatedSz)
	}
	return out, nil
}

// Len returns the size of the uncompressed log.
func (f *File) Len() int {
	return len(f.data)
}

// Ingest returns a frame stepper positioned at the start of the command data.
func (f *File) Ingest() *Ingest {
	return &Ingest{file: f, pos: f.Header.DataOffset, stereo: -1}
}
