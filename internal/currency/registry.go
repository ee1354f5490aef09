// Package currency resolves currency ids to their metadata. Currencies
// defined in the record store take precedence; anything else falls back to
// ISO 4217 data.
package currency

import (
	"context"
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"

	"bilancio/internal/cache"
	"bilancio/internal/core"
	"bilancio/internal/journal"
)

// Source lists the currencies defined by the user.
type Source interface {
	Currencies(ctx context.Context) ([]core.Currency, error)
}

type Registry struct {
	source Source
	cache  *cache.LRUCache[core.Currency]
}

// NewRegistry returns a registry over source. A nil source resolves ISO
// currencies only.
func NewRegistry(source Source, c *cache.LRUCache[core.Currency]) *Registry {
	return &Registry{source: source, cache: c}
}

// Resolve returns the metadata of currency id or a *core.MissingCurrencyError.
func (r *Registry) Resolve(ctx context.Context, id string) (core.Currency, error) {
	if c, ok := r.cache.Get(id); ok {
		return c, nil
	}

	if r.source != nil {
		defined, err := r.source.Currencies(ctx)
		if err != nil {
			return core.Currency{}, fmt.Errorf("listing currencies: %w", err)
		}
		for _, c := range defined {
			if c.ID == id {
				r.cache.Set(id, c)
				return c, nil
			}
		}
	}

	if iso := money.GetCurrency(strings.ToUpper(id)); iso != nil {
		c := core.Currency{
			ID:           id,
			Code:         iso.Code,
			Sign:         iso.Grapheme,
			MinPrecision: int32(iso.Fraction),
			MaxPrecision: int32(iso.Fraction),
			Fraction:     int32(iso.Fraction),
		}
		r.cache.Set(id, c)
		return c, nil
	}

	return core.Currency{}, &core.MissingCurrencyError{CurrencyID: id}
}

// Fractions returns a journal.FractionFunc bound to ctx.
func (r *Registry) Fractions(ctx context.Context) journal.FractionFunc {
	return func(id string) (int32, error) {
		c, err := r.Resolve(ctx, id)
		if err != nil {
			return 0, err
		}
		return c.Fraction, nil
	}
}

// Invalidate forgets the cached metadata of id.
func (r *Registry) Invalidate(id string) {
	r.cache.Delete(id)
}

// Format renders amount for display. ISO currencies use their own template;
// user-defined ones print the sign before the decimal amount.
func Format(amount core.Money, c core.Currency) string {
	if iso := money.GetCurrency(c.Code); iso != nil && int32(iso.Fraction) == c.Fraction {
		return money.New(amount.Minor, iso.Code).Display()
	}
	s := amount.Decimal(c.Fraction).StringFixed(c.Fraction)
	if c.Sign == "" {
		return s
	}
	return c.Sign + s
}
