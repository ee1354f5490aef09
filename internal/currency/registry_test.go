package currency

import (
	"context"
	"errors"
	"testing"
	"time"

	"bilancio/internal/cache"
	"bilancio/internal/core"
)

type stubSource struct {
	currencies []core.Currency
	calls      int
	err        error
}

func (s *stubSource) Currencies(context.Context) ([]core.Currency, error) {
	s.calls++
	return s.currencies, s.err
}

func newRegistry(src Source) *Registry {
	return NewRegistry(src, cache.NewLRUCache[core.Currency](16, time.Minute))
}

func TestRegistry_Resolve(t *testing.T) {
	src := &stubSource{currencies: []core.Currency{
		{ID: "points", Code: "PTS", Sign: "★", Fraction: 0},
		{ID: "eur", Code: "EUR", Sign: "€", Fraction: 2, MinPrecision: 2, MaxPrecision: 4},
	}}
	r := newRegistry(src)
	ctx := context.Background()

	tests := []struct {
		id           string
		wantFraction int32
		wantSign     string
	}{
		{"points", 0, "★"},
		{"eur", 2, "€"},
		{"jpy", 0, "¥"},
		{"usd", 2, "$"},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			c, err := r.Resolve(ctx, tt.id)
			if err != nil {
				t.Fatalf("Resolve() unexpected error: %v", err)
			}
			if c.Fraction != tt.wantFraction || c.Sign != tt.wantSign {
				t.Errorf("Resolve() = %+v, want fraction %d sign %s", c, tt.wantFraction, tt.wantSign)
			}
		})
	}

	if c, _ := r.Resolve(ctx, "eur"); c.MaxPrecision != 4 {
		t.Errorf("store definition should win over ISO data, got %+v", c)
	}
}

func TestRegistry_Cache(t *testing.T) {
	src := &stubSource{currencies: []core.Currency{{ID: "eur", Code: "EUR", Fraction: 2}}}
	r := newRegistry(src)
	for i := 0; i < 3; i++ {
		if _, err := r.Resolve(context.Background(), "eur"); err != nil {
			t.Fatal(err)
		}
	}
	if src.calls != 1 {
		t.Errorf("source calls = %d, want 1", src.calls)
	}
	r.Invalidate("eur")
	_, _ = r.Resolve(context.Background(), "eur")
	if src.calls != 2 {
		t.Errorf("source calls after Invalidate() = %d, want 2", src.calls)
	}
}

func TestRegistry_Errors(t *testing.T) {
	r := newRegistry(nil)
	_, err := r.Resolve(context.Background(), "doubloons")
	if !errors.Is(err, core.ErrMissingCurrency) {
		t.Errorf("Resolve(doubloons) error = %v, want ErrMissingCurrency", err)
	}

	failing := newRegistry(&stubSource{err: errors.New("db down")})
	if _, err := failing.Resolve(context.Background(), "eur"); err == nil || errors.Is(err, core.ErrMissingCurrency) {
		t.Errorf("Resolve() with failing source error = %v", err)
	}

	frac := r.Fractions(context.Background())
	if d, err := frac("jpy"); err != nil || d != 0 {
		t.Errorf("Fractions(jpy) = %d, %v", d, err)
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		name   string
		amount int64
		cur    core.Currency
		want   string
	}{
		{"iso", 123456, core.Currency{Code: "USD", Fraction: 2}, "$1,234.56"},
		{"custom", 1500, core.Currency{Code: "PTS", Sign: "★", Fraction: 1}, "★150.0"},
		{"no sign", 7, core.Currency{Code: "XYZ", Fraction: 0}, "7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Format(core.NewMoney(tt.amount), tt.cur); got != tt.want {
				t.Errorf("Format() = %q, want %q", got, tt.want)
			}
		})
	}
}
