// Package pipeline implements the transaction extraction-and-resolution
// core: prompt construction from live reference data, model response
// interpretation, per-candidate resolution, grouped submission to the
// budgeting backend, and reply composition.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/dvloznov/budget-bot/internal/config"
	"github.com/dvloznov/budget-bot/internal/logger"
	"github.com/dvloznov/budget-bot/internal/metrics"
)

// NoTransactionsReply is sent when the model answered with a valid but
// empty array.
const NoTransactionsReply = "Failed to find any information to create transactions. Try again?"

// Options is the immutable configuration the pipeline runs with.
type Options struct {
	LedgerCurrency  string
	DefaultAccount  string
	DefaultCategory string
	NotePrefix      string
	PromptTemplate  string
	ExtraRules      []string
	Verbosity       config.Verbosity

	// Now supplies "today" for date defaulting and the rate-key
	// decision; tests pin it.
	Now func() time.Time
}

// Pipeline processes one inbound message at a time. It keeps no
// cross-message state: every invocation fetches its own reference
// snapshot.
type Pipeline struct {
	backend   Backend
	completer Completer
	converter Converter
	opts      Options
	metrics   *metrics.Collector
	log       zerolog.Logger
}

// New creates a Pipeline.
func New(backend Backend, completer Completer, converter Converter, opts Options, m *metrics.Collector, log zerolog.Logger) *Pipeline {
	if opts.PromptTemplate == "" {
		opts.PromptTemplate = DefaultPromptTemplate
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if m == nil {
		m = metrics.New("budget_bot")
	}
	return &Pipeline{
		backend:   backend,
		completer: completer,
		converter: converter,
		opts:      opts,
		metrics:   m,
		log:       log,
	}
}

// Process runs the full pipeline for one inbound message and returns
// the reply text. An empty reply with nil error means verbosity
// suppressed it. Errors are pipeline kinds; map them to user text with
// UserErrorMessage.
func (p *Pipeline) Process(ctx context.Context, text string) (string, error) {
	reply, err := p.process(ctx, text)
	if err != nil {
		kind := ErrorKind(err)
		p.metrics.MessagesTotal.With(prometheus.Labels{"outcome": "error"}).Inc()
		p.metrics.PipelineErrors.With(prometheus.Labels{"kind": kind}).Inc()
		log := p.logFor(ctx)
		log.Error().Err(err).Str("kind", kind).Msg("pipeline failed")
		return "", err
	}
	p.metrics.MessagesTotal.With(prometheus.Labels{"outcome": "ok"}).Inc()
	return reply, nil
}

// logFor returns the message-scoped logger the transport attached to
// the context, or the pipeline's own logger.
func (p *Pipeline) logFor(ctx context.Context) zerolog.Logger {
	if _, ok := ctx.Value(logger.LoggerKey).(zerolog.Logger); ok {
		return logger.FromContext(ctx)
	}
	return p.log
}

func (p *Pipeline) process(ctx context.Context, text string) (string, error) {
	log := p.logFor(ctx)

	refs, err := p.snapshot(ctx)
	if err != nil {
		return "", err
	}

	prompt := RenderPrompt(p.opts.PromptTemplate, PromptContext{
		Date:            p.opts.Now().Format("2006-01-02"),
		DefaultAccount:  p.opts.DefaultAccount,
		DefaultCategory: p.opts.DefaultCategory,
		Currency:        p.opts.LedgerCurrency,
		Refs:            refs,
		ExtraRules:      p.opts.ExtraRules,
	})

	start := time.Now()
	raw, err := p.completer.Complete(ctx, prompt, text)
	p.metrics.LLMRequestSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrLLMRequest, err)
	}
	log.Debug().Str("response", raw).Msg("model response")

	candidates, err := ParseCandidates(raw)
	if err != nil {
		return "", err
	}
	if len(candidates) == 0 {
		log.Info().Msg("model found no transactions")
		return NoTransactionsReply, nil
	}

	resolved, err := p.resolveAll(ctx, candidates, ResolveOptions{
		Refs:            refs,
		LedgerCurrency:  p.opts.LedgerCurrency,
		DefaultAccount:  p.opts.DefaultAccount,
		DefaultCategory: p.opts.DefaultCategory,
		NotePrefix:      p.opts.NotePrefix,
		Today:           p.opts.Now(),
	})
	if err != nil {
		return "", err
	}

	outcome, err := p.submitAll(ctx, resolved)
	if err != nil {
		return "", err
	}

	p.metrics.TransactionsAdded.Add(float64(outcome.Added))
	log.Info().
		Int("added", outcome.Added).
		Int("updated", outcome.Updated).
		Int("errors", outcome.Errors).
		Msg("batch processed")

	return composeReply(candidates, resolved, outcome, p.opts.Verbosity), nil
}

// snapshot syncs the budget and fetches the reference lists once for
// this message. Everything downstream resolves against this snapshot.
func (p *Pipeline) snapshot(ctx context.Context) (*ReferenceLists, error) {
	if err := p.backend.Sync(ctx); err != nil {
		return nil, fmt.Errorf("pipeline: pre-fetch sync: %w", err)
	}

	accounts, err := p.backend.Accounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("pipeline: fetching accounts: %w", err)
	}
	categories, err := p.backend.Categories(ctx)
	if err != nil {
		return nil, fmt.Errorf("pipeline: fetching categories: %w", err)
	}
	payees, err := p.backend.Payees(ctx)
	if err != nil {
		return nil, fmt.Errorf("pipeline: fetching payees: %w", err)
	}

	return &ReferenceLists{
		Accounts:   accounts,
		Categories: categories,
		Payees:     payees,
	}, nil
}
