package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/dvloznov/budget-bot/internal/actual"
	"github.com/dvloznov/budget-bot/internal/logger"
	"github.com/dvloznov/budget-bot/internal/metrics"

	"github.com/rs/zerolog"
)

// fakeBackend is a func-field fake of the Backend interface.
type fakeBackend struct {
	mu sync.Mutex

	SyncFunc            func(ctx context.Context) error
	AccountsFunc        func(ctx context.Context) ([]actual.Account, error)
	CategoriesFunc      func(ctx context.Context) ([]actual.Category, error)
	PayeesFunc          func(ctx context.Context) ([]actual.Payee, error)
	AddTransactionsFunc func(ctx context.Context, accountID string, txs []actual.Transaction) (actual.Outcome, error)

	syncCalls   int
	submitCalls []submitCall
}

type submitCall struct {
	accountID string
	records   []actual.Transaction
}

func (f *fakeBackend) Sync(ctx context.Context) error {
	f.mu.Lock()
	f.syncCalls++
	f.mu.Unlock()
	if f.SyncFunc != nil {
		return f.SyncFunc(ctx)
	}
	return nil
}

func (f *fakeBackend) Accounts(ctx context.Context) ([]actual.Account, error) {
	if f.AccountsFunc != nil {
		return f.AccountsFunc(ctx)
	}
	return testRefs().Accounts, nil
}

func (f *fakeBackend) Categories(ctx context.Context) ([]actual.Category, error) {
	if f.CategoriesFunc != nil {
		return f.CategoriesFunc(ctx)
	}
	return testRefs().Categories, nil
}

func (f *fakeBackend) Payees(ctx context.Context) ([]actual.Payee, error) {
	if f.PayeesFunc != nil {
		return f.PayeesFunc(ctx)
	}
	return testRefs().Payees, nil
}

func (f *fakeBackend) AddTransactions(ctx context.Context, accountID string, txs []actual.Transaction) (actual.Outcome, error) {
	f.mu.Lock()
	f.submitCalls = append(f.submitCalls, submitCall{accountID: accountID, records: txs})
	f.mu.Unlock()
	if f.AddTransactionsFunc != nil {
		return f.AddTransactionsFunc(ctx, accountID, txs)
	}
	return actual.Outcome{Added: len(txs)}, nil
}

// fakeCompleter returns a canned response.
type fakeCompleter struct {
	response string
	err      error
	gotSys   string
	gotUser  string
}

func (f *fakeCompleter) Complete(ctx context.Context, systemPrompt, userText string) (string, error) {
	f.gotSys = systemPrompt
	f.gotUser = userText
	return f.response, f.err
}

// fakeConverter records conversion calls.
type fakeConverter struct {
	mu          sync.Mutex
	ConvertFunc func(ctx context.Context, amount float64, from, to, key string, rate *float64) (float64, error)
	calls       []convertCall
}

type convertCall struct {
	amount   float64
	from, to string
	key      string
	rate     *float64
}

func (f *fakeConverter) Convert(ctx context.Context, amount float64, from, to, key string, rate *float64) (float64, error) {
	f.mu.Lock()
	f.calls = append(f.calls, convertCall{amount: amount, from: from, to: to, key: key, rate: rate})
	f.mu.Unlock()
	if f.ConvertFunc != nil {
		return f.ConvertFunc(ctx, amount, from, to, key, rate)
	}
	return amount, nil
}

func testLogger() zerolog.Logger {
	return logger.NewWithWriter(nilWriter{})
}

type nilWriter struct{}

func (nilWriter) Write(p []byte) (int, error) { return len(p), nil }

// fixedToday pins "today" for deterministic date defaulting.
var fixedToday = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

func newTestPipeline(backend *fakeBackend, completer *fakeCompleter, converter *fakeConverter, opts Options) *Pipeline {
	if opts.LedgerCurrency == "" {
		opts.LedgerCurrency = "EUR"
	}
	if opts.DefaultAccount == "" {
		opts.DefaultAccount = "Cash"
	}
	if opts.DefaultCategory == "" {
		opts.DefaultCategory = "Food"
	}
	if opts.NotePrefix == "" {
		opts.NotePrefix = "🤖"
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return fixedToday }
	}
	return New(backend, completer, converter, opts, metrics.New("test"), testLogger())
}
