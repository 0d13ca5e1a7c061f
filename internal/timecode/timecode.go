// Package timecode converts between MLT clock strings, seconds and FCPXML
// rational time values.
package timecode

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
)

// ErrMalformed is matched by every error returned from Parse.
var ErrMalformed = errors.New("malformed timecode")

var clockPattern = regexp.MustCompile(`^(\d{2}):(\d{2}):(\d{2})\.(\d{3})$`)

// FormatError reports a value that is not an HH:MM:SS.mmm clock string.
type FormatError struct {
	Value string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("malformed timecode %q: want HH:MM:SS.mmm", e.Value)
}

func (e *FormatError) Is(target error) bool {
	return target == ErrMalformed
}

// Parse converts an HH:MM:SS.mmm string into seconds.
func Parse(text string) (float64, error) {
	m := clockPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, &FormatError{Value: text}
	}

	// The pattern guarantees all four groups are decimal digits.
	hours, _ := strconv.Atoi(m[1])
	minutes, _ := strconv.Atoi(m[2])
	seconds, _ := strconv.Atoi(m[3])
	millis, _ := strconv.Atoi(m[4])

	return float64(hours*3600+minutes*60+seconds) + float64(millis)/1000.0, nil
}

// Format renders seconds as an FCPXML rational time. Whole seconds use a
// denominator of 1, anything else is rounded to milliseconds.
func Format(seconds float64) string {
	if seconds == math.Trunc(seconds) {
		return fmt.Sprintf("%d/1s", int64(seconds))
	}
	return fmt.Sprintf("%d/1000s", int64(math.Round(seconds*1000)))
}

// FrameDuration renders the length of one frame at rate frames per second,
// expressed in thousandths so fractional NTSC rates survive.
func FrameDuration(rate float64) string {
	return fmt.Sprintf("1000/%ds", int64(math.Round(rate*1000)))
}
