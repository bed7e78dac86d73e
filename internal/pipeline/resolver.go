package pipeline

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dvloznov/budget-bot/internal/actual"
)

// ResolveOptions carries the per-message context the resolver needs.
type ResolveOptions struct {
	Refs            *ReferenceLists
	LedgerCurrency  string
	DefaultAccount  string
	DefaultCategory string
	NotePrefix      string
	Today           time.Time
}

// resolveAll resolves every candidate against one reference snapshot.
// Candidates are independent, so conversions fan out; the returned
// slice preserves input order. Any single failure aborts the whole
// batch before anything is submitted.
func (p *Pipeline) resolveAll(ctx context.Context, candidates []Candidate, opts ResolveOptions) ([]Resolved, error) {
	resolved := make([]Resolved, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	for i, c := range candidates {
		g.Go(func() error {
			r, err := p.resolveOne(gctx, c, opts)
			if err != nil {
				return err
			}
			resolved[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return resolved, nil
}

// resolveOne turns one candidate into a backend-ready record plus its
// preview line.
func (p *Pipeline) resolveOne(ctx context.Context, c Candidate, opts ResolveOptions) (Resolved, error) {
	if c.Account == "" {
		c.Account = opts.DefaultAccount
	}
	if c.Category == "" {
		c.Category = opts.DefaultCategory
	}

	account, ok := opts.Refs.AccountByName(c.Account)
	if !ok {
		return Resolved{}, &UnknownAccountError{Name: c.Account}
	}
	category, ok := opts.Refs.CategoryByName(c.Category)
	if !ok {
		return Resolved{}, &UnknownCategoryError{Name: c.Category}
	}
	// Payee lookup is informational only: an unknown payee name is
	// forwarded as-is and the backend may create it.

	today := opts.Today.Format("2006-01-02")
	date := c.Date
	if date == "" {
		date = today
	}

	// A same-day historical table may not exist yet because of
	// timezone skew between us and the rate provider.
	rateKey := date
	if date == today {
		rateKey = "latest"
	}

	amount := c.Amount
	currency := c.Currency
	converted := false
	if currency != "" && !strings.EqualFold(currency, opts.LedgerCurrency) {
		var err error
		amount, err = p.converter.Convert(ctx, c.Amount, currency, opts.LedgerCurrency, rateKey, c.ExchangeRate)
		if err != nil {
			return Resolved{}, &ConversionError{Err: err}
		}
		converted = true
	} else {
		currency = opts.LedgerCurrency
	}

	preview := Preview{
		Date:     date,
		Account:  account.Name,
		Category: category.Name,
		Amount:   fmt.Sprintf("%v %s", c.Amount, currency),
		Payee:    c.Payee,
		Notes:    c.Notes,
	}
	if converted {
		preview.Converted = fmt.Sprintf("%v %s", amount, opts.LedgerCurrency)
	}

	var payee *string
	if c.Payee != "" {
		payee = &c.Payee
	}

	return Resolved{
		Record: actual.Transaction{
			Account:   account.ID,
			Date:      date,
			Amount:    minorUnits(amount),
			PayeeName: payee,
			Category:  category.ID,
			Notes:     fmt.Sprintf("%s %s", opts.NotePrefix, c.Notes),
		},
		Preview: preview,
	}, nil
}

// minorUnits converts an amount to integer cents: round to 2 decimals
// first, then scale and round again, both half away from zero.
func minorUnits(amount float64) int64 {
	rounded := math.Round(amount*100) / 100
	return int64(math.Round(rounded * 100))
}
