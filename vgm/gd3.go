package vgm

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"golang.org/x/text/encoding/unicode"
)

const (
	gd3Ident      = "Gd3 "
	gd3HeaderSize = 12
	gd3Fields     = 11
)

// Tags are the English GD3 metadata strings.
type Tags struct {
	Track  string
	Game   string
	System string
	Author string
	Date   string
	Ripper string
	Notes  string
}

// Title returns "track - game", or whichever part is present.
func (t Tags) Title() string {
	switch {
	case t.Track != "" && t.Game != "":
		return t.Track + " - " + t.Game
	case t.Track != "":
		return t.Track
	}
	return t.Game
}

// Tags decodes the GD3 block. Files without one return empty tags.
func (f *File) Tags() (Tags, error) {
	off := f.Header.GD3Offset
	if off == 0 {
		return Tags{}, nil
	}
	if off+gd3HeaderSize > len(f.data) || string(f.data[off:off+4]) != gd3Ident {
		return Tags{}, fmt.Errorf("%w: no GD3 block at 0x%X", ErrTruncated, off)
	}
	size := int(binary.LittleEndian.Uint32(f.data[off+8:]))
	start := off + gd3HeaderSize
	if size < 0 || start+size > len(f.data) {
		return Tags{}, fmt.Errorf("%w: GD3 block of %d bytes at 0x%X", ErrTruncated, size, off)
	}

	fields, err := splitUTF16(f.data[start : start+size])
	if err != nil {
		return Tags{}, fmt.Errorf("decoding GD3 tags: %w", err)
	}
	for len(fields) < gd3Fields {
		fields = append(fields, "")
	}

	// English and Japanese variants alternate for the first four
	return Tags{
		Track:  fields[0],
		Game:   fields[2],
		System: fields[4],
		Author: fields[6],
		Date:   fields[8],
		Ripper: fields[9],
		Notes:  fields[10],
	}, nil
}

// splitUTF16 decodes a run of NUL terminated UTF-16LE strings.
func splitUTF16(b []byte) ([]string, error) {
	dec := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()

	var out []string
	for len(b) >= 2 {
		end := 0
		for end+1 < len(b) && (b[end] != 0 || b[end+1] != 0) {
			end += 2
		}
		s, err := dec.Bytes(b[:end])
		if err != nil {
			return nil, err
		}
		out = append(out, string(bytes.TrimSpace(s)))
		if end+2 > len(b) {
			break
		}
		b = b[end+2:]
	}
	return out, nil
}
