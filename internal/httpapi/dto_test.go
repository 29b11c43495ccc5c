package httpapi

import "testing"

func TestFormatCents(t *testing.T) {
	cases := map[int64]string{
		0:    "0.00",
		5:    "0.05",
		100:  "1.00",
		2550: "25.50",
	}
	for cents, want := range cases {
		if got := formatCents(cents); got != want {
			t.Errorf("formatCents(%d) = %q, want %q", cents, got, want)
		}
	}
}
