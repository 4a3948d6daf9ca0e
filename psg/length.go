package psg

import (
	"encoding/binary"
	"fmt"
)

// lengthSize is the size of the optional little-endian length prefix some
// loaders expect in front of a stream.
const lengthSize = 2

// AddLength returns data prefixed with its length as a little-endian word.
func AddLength(data []byte) ([]byte, error) {
	if len(data) > 0xFFFF {
		return nil, fmt.Errorf("psg: stream of %d bytes does not fit a 16-bit length", len(data))
	}
	out := make([]byte, lengthSize, lengthSize+len(data))
	binary.LittleEndian.PutUint16(out, uint16(len(data)))
	return append(out, data...), nil
}

// StripLength removes a length prefix added by AddLength and returns the
// stream it describes.
func StripLength(data []byte) ([]byte, error) {
	if len(data) < lengthSize {
		return nil, malformed(0, "missing length prefix")
	}
	n := int(binary.LittleEndian.Uint16(data))
	if n > len(data)-lengthSize {
		return nil, malformed(0, "length prefix %d exceeds %d available bytes", n, len(data)-lengthSize)
	}
	return data[lengthSize : lengthSize+n], nil
}
