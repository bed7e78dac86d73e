package pipeline

import (
	"context"

	"github.com/dvloznov/budget-bot/internal/actual"
)

// Backend is the narrow budgeting-backend contract the pipeline needs.
// internal/actual provides the real implementation; tests use fakes.
type Backend interface {
	Sync(ctx context.Context) error
	Accounts(ctx context.Context) ([]actual.Account, error)
	Categories(ctx context.Context) ([]actual.Category, error)
	Payees(ctx context.Context) ([]actual.Payee, error)
	AddTransactions(ctx context.Context, accountID string, txs []actual.Transaction) (actual.Outcome, error)
}

// Completer issues one synchronous completion request.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userText string) (string, error)
}

// Converter converts an amount between currencies using the rate table
// identified by key ("YYYY-MM-DD" or "latest"). A non-nil rate skips
// the lookup.
type Converter interface {
	Convert(ctx context.Context, amount float64, from, to, key string, rate *float64) (float64, error)
}
