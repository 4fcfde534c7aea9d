package ocr

import "testing"

func TestEstimateConfidence(t *testing.T) {
	cases := []struct {
		name string
		text string
		min  float64
		max  float64
	}{
		{"empty", "", 0, 0},
		{"clean prose", "Total amount due: $420.17 by March 3, 2026.", 0.95, 1},
		{"garbage", "\x00��\x01\x02�", 0, 0.2},
		{"symbol noise", "■▲■ ▲■▲", 0, 0.3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := EstimateConfidence(tc.text)
			if got < tc.min || got > tc.max {
				t.Fatalf("confidence %f outside [%f, %f]", got, tc.min, tc.max)
			}
		})
	}
}
