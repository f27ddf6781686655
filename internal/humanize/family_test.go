package humanize

import "testing"

func TestParseRoundTrips(t *testing.T) {
	cases := []string{"bin-bytes", "bin-bits", "si-bytes", "si-bits"}
	for _, c := range cases {
		if _, ok := Parse(c); !ok {
			t.Errorf("Parse(%q) should succeed", c)
		}
	}
	if _, ok := Parse("nonsense"); ok {
		t.Error("Parse(\"nonsense\") should fail")
	}
}

func TestRateFormatsIncreasingMagnitude(t *testing.T) {
	small := BinBytes.Rate(512)
	large := BinBytes.Rate(5 * 1024 * 1024)
	if small == large {
		t.Fatalf("expected distinct output, got %q for both", small)
	}
}
