package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dvloznov/budget-bot/internal/actual"
	"github.com/dvloznov/budget-bot/internal/config"
)

// accountGroup is one backend import call: every resolved transaction
// for one account.
type accountGroup struct {
	accountID string
	records   []actual.Transaction
}

// groupByAccount groups records by account, preserving the order in
// which each account first appears.
func groupByAccount(resolved []Resolved) []accountGroup {
	var groups []accountGroup
	index := make(map[string]int)
	for _, r := range resolved {
		i, ok := index[r.Record.Account]
		if !ok {
			i = len(groups)
			index[r.Record.Account] = i
			groups = append(groups, accountGroup{accountID: r.Record.Account})
		}
		groups[i].records = append(groups[i].records, r.Record)
	}
	return groups
}

// submitAll sends each account group to the backend one at a time (the
// backend is not known to tolerate concurrent writes) and aggregates
// the outcomes. A failing group aborts the rest; earlier groups are
// already committed and are not rolled back.
func (p *Pipeline) submitAll(ctx context.Context, resolved []Resolved) (actual.Outcome, error) {
	log := p.logFor(ctx)

	var total actual.Outcome
	for _, group := range groupByAccount(resolved) {
		log.Info().
			Str("account_id", group.accountID).
			Int("count", len(group.records)).
			Msg("importing transactions")

		outcome, err := p.backend.AddTransactions(ctx, group.accountID, group.records)
		if err != nil {
			return total, &SubmissionError{AccountID: group.accountID, Err: err}
		}
		total.Added += outcome.Added
		total.Updated += outcome.Updated
		total.Errors += outcome.Errors
	}

	if total.Changed() {
		if err := p.backend.Sync(ctx); err != nil {
			// Transactions are in; only the sync lagged. Log and move on.
			log.Warn().Err(err).Msg("post-import sync failed")
		}
	}
	return total, nil
}

// composeReply builds the user-facing reply according to the configured
// verbosity. An empty string means no reply should be sent.
func composeReply(candidates []Candidate, resolved []Resolved, outcome actual.Outcome, verbosity config.Verbosity) string {
	if verbosity == config.VerbositySilent {
		return ""
	}

	var b strings.Builder

	if verbosity == config.VerbosityVerbose {
		b.WriteString("*[LLM ANSWER]*\n```\n")
		b.WriteString(renderCandidates(candidates))
		b.WriteString("\n```\n\n")
	}

	if verbosity >= config.VerbosityNormal {
		b.WriteString("*[TRANSACTIONS]*\n")
		for _, r := range resolved {
			b.WriteString("```\n")
			b.WriteString(renderPreview(r.Preview))
			b.WriteString("```\n")
		}
	}

	b.WriteString("\n*[ACTUAL]*\n")
	b.WriteString(renderOutcome(outcome))
	return b.String()
}

func renderPreview(p Preview) string {
	var b strings.Builder
	write := func(key, value string) {
		if value != "" {
			fmt.Fprintf(&b, "%s: %s\n", key, value)
		}
	}
	write("date", p.Date)
	write("account", p.Account)
	write("category", p.Category)
	write("amount", p.Amount)
	write("converted", p.Converted)
	write("payee", p.Payee)
	write("notes", p.Notes)
	return b.String()
}

func renderOutcome(o actual.Outcome) string {
	if !o.Changed() && o.Errors == 0 {
		return "no changes"
	}
	parts := make([]string, 0, 3)
	if o.Added > 0 {
		parts = append(parts, fmt.Sprintf("added: %d", o.Added))
	}
	if o.Updated > 0 {
		parts = append(parts, fmt.Sprintf("updated: %d", o.Updated))
	}
	if o.Errors > 0 {
		parts = append(parts, fmt.Sprintf("errors: %d", o.Errors))
	}
	return strings.Join(parts, ", ")
}

// renderCandidates pretty-prints the parsed model answer for the
// verbose reply block.
func renderCandidates(candidates []Candidate) string {
	type view struct {
		Date         string   `json:"date,omitempty"`
		Account      string   `json:"account,omitempty"`
		Category     string   `json:"category,omitempty"`
		Payee        string   `json:"payee,omitempty"`
		Amount       float64  `json:"amount"`
		Currency     string   `json:"currency,omitempty"`
		Notes        string   `json:"notes,omitempty"`
		ExchangeRate *float64 `json:"exchange_rate,omitempty"`
	}
	views := make([]view, len(candidates))
	for i, c := range candidates {
		views[i] = view(c)
	}
	raw, err := json.MarshalIndent(views, "", "  ")
	if err != nil {
		return fmt.Sprintf("%+v", candidates)
	}
	return string(raw)
}
