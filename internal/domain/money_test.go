package domain_test

import (
	"strings"
	"testing"

	"github.com/boddenberg/pj-ledger-bfa-go/internal/domain"
)

func TestMinorUnits_RoundTrip(t *testing.T) {
	for _, x := range []float64{0, 0.01, 0.1, 0.29, 1.1, 19.99, 50, 70.07, 120.5, 1234.56, 999999.99} {
		if got := domain.FromMinorUnits(domain.ToMinorUnits(x)); got != x {
			t.Errorf("round trip of %v: got %v", x, got)
		}
	}
}

func TestToMinorUnits_RoundsHalfUp(t *testing.T) {
	cases := map[float64]int64{
		0.1 + 0.2: 30,
		1.005:     101,
		2.675:     268,
		10.004:    1000,
	}
	for in, want := range cases {
		if got := domain.ToMinorUnits(in); got != want {
			t.Errorf("ToMinorUnits(%v): expected %d, got %d", in, want, got)
		}
	}
}

func TestFormatBRL(t *testing.T) {
	got := domain.FormatBRL(123456)
	if !strings.Contains(got, "R$") || !strings.Contains(got, "1.234,56") {
		t.Errorf("expected R$ 1.234,56 rendering, got %q", got)
	}
}
