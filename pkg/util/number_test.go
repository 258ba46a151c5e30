package util

import "testing"

func TestAbbreviate(t *testing.T) {
	cases := map[float64]string{
		0:             "0",
		12.5:          "12.5",
		999:           "999",
		1500:          "1.5K",
		2_000_000:     "2M",
		1_234_567_890: "1.23B",
		-45_000:       "-45K",
		0.0004:        "0.0004",
	}
	for in, want := range cases {
		if got := Abbreviate(in); got != want {
			t.Errorf("Abbreviate(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestPercent(t *testing.T) {
	if got := Percent(4.257); got != "+4.26%" {
		t.Fatalf("unexpected %q", got)
	}
	if got := Percent(-3); got != "-3.00%" {
		t.Fatalf("unexpected %q", got)
	}
}
