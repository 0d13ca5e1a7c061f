package timecode

import (
	"errors"
	"math"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want float64
	}{
		{name: "zero", in: "00:00:00.000", want: 0},
		{name: "seconds", in: "00:00:05.000", want: 5},
		{name: "millis", in: "00:00:01.500", want: 1.5},
		{name: "minutes", in: "00:02:03.040", want: 123.04},
		{name: "hours", in: "01:00:00.001", want: 3600.001},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Parse(tc.in)
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tc.in, err)
			}
			if math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("Parse(%q) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestParse_Malformed(t *testing.T) {
	inputs := []string{
		"",
		"5",
		"00:00:05",
		"0:00:05.000",
		"00:00:05.00",
		"00:00:05.0000",
		"aa:bb:cc.ddd",
		" 00:00:05.000",
		"00:00:05.000 ",
	}

	for _, in := range inputs {
		_, err := Parse(in)
		if err == nil {
			t.Errorf("Parse(%q) should fail", in)
			continue
		}
		if !errors.Is(err, ErrMalformed) {
			t.Errorf("Parse(%q) error = %v, want ErrMalformed", in, err)
		}
		var fe *FormatError
		if !errors.As(err, &fe) || fe.Value != in {
			t.Errorf("Parse(%q) error should be *FormatError carrying the input, got %#v", in, err)
		}
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{in: 0, want: "0/1s"},
		{in: 1, want: "1/1s"},
		{in: 1.5, want: "1500/1000s"},
		{in: 2.04, want: "2040/1000s"},
		{in: 0.001, want: "1/1000s"},
		{in: 3600, want: "3600/1s"},
	}

	for _, tc := range tests {
		if got := Format(tc.in); got != tc.want {
			t.Errorf("Format(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFormat_RoundTrip(t *testing.T) {
	clocks := map[string]string{
		"00:00:00.000": "0/1s",
		"00:00:03.000": "3/1s",
		"00:00:01.500": "1500/1000s",
		"00:01:02.345": "62345/1000s",
		"10:00:00.999": "36000999/1000s",
	}

	for clock, want := range clocks {
		secs, err := Parse(clock)
		if err != nil {
			t.Fatalf("Parse(%q) error = %v", clock, err)
		}
		if got := Format(secs); got != want {
			t.Errorf("Format(Parse(%q)) = %q, want %q", clock, got, want)
		}
	}
}

func TestFrameDuration(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{rate: 25, want: "1000/25000s"},
		{rate: 30000.0 / 1001.0, want: "1000/29970s"},
		{rate: 24000.0 / 1001.0, want: "1000/23976s"},
	}

	for _, tc := range tests {
		if got := FrameDuration(tc.rate); got != tc.want {
			t.Errorf("FrameDuration(%v) = %q, want %q", tc.rate, got, tc.want)
		}
	}
}
