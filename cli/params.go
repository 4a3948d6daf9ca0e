package cli

import (
	"errors"
	"fmt"
)

// ErrInvalidParameter is returned for command-line values outside their range.
var ErrInvalidParameter = errors.New("invalid parameter")

// Parameter ranges shared by the command-line tools.
const (
	MinClock      = 1000000
	MaxClock      = 4000000
	MinFrameRate  = 20
	MaxFrameRate  = 100
	MinSampleRate = 8000
	MaxSampleRate = 96000
)

// CheckRange returns an ErrInvalidParameter error when v is outside
// [min, max].
func CheckRange[T int | float64](name string, v, min, max T) error {
	if v < min || v > max {
		return fmt.Errorf("%w: -%s %v out of range [%v, %v]", ErrInvalidParameter, name, v, min, max)
	}
	return nil
}
