package probe

import (
	"errors"
	"strings"
	"testing"
)

func TestNormalizeDomain(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "example.com", want: "example.com"},
		{in: "  Example.COM.  ", want: "example.com"},
		{in: "bücher.example", want: "xn--bcher-kva.example"},
		{in: "", wantErr: true},
		{in: "   ", wantErr: true},
		{in: "192.0.2.1", wantErr: true},
		{in: "::1", wantErr: true},
		{in: "bad domain.com", wantErr: true},
		{in: "under_score.example", wantErr: true},
		{in: strings.Repeat("a.", 130) + "com", wantErr: true},
	}
	for _, tc := range cases {
		got, err := NormalizeDomain(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("NormalizeDomain(%q) = %q, want error", tc.in, got)
			} else if !errors.Is(err, ErrInvalidDomain) {
				t.Errorf("NormalizeDomain(%q) error %v does not wrap ErrInvalidDomain", tc.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("NormalizeDomain(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("NormalizeDomain(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
