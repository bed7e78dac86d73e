package pipeline

import (
	"github.com/dvloznov/budget-bot/internal/actual"
)

// ReferenceLists is the accounts/categories/payees snapshot fetched at
// the start of one message. All candidates in the message resolve
// against the same snapshot; it is never re-fetched mid-request.
type ReferenceLists struct {
	Accounts   []actual.Account
	Categories []actual.Category
	Payees     []actual.Payee
}

// AccountByName finds an account by exact name match.
func (r *ReferenceLists) AccountByName(name string) (actual.Account, bool) {
	for _, a := range r.Accounts {
		if a.Name == name {
			return a, true
		}
	}
	return actual.Account{}, false
}

// CategoryByName finds a category by exact name match.
func (r *ReferenceLists) CategoryByName(name string) (actual.Category, bool) {
	for _, c := range r.Categories {
		if c.Name == name {
			return c, true
		}
	}
	return actual.Category{}, false
}

// AccountNames returns all account names in backend order.
func (r *ReferenceLists) AccountNames() []string {
	names := make([]string, len(r.Accounts))
	for i, a := range r.Accounts {
		names[i] = a.Name
	}
	return names
}

// CategoryNames returns all category names in backend order.
func (r *ReferenceLists) CategoryNames() []string {
	names := make([]string, len(r.Categories))
	for i, c := range r.Categories {
		names[i] = c.Name
	}
	return names
}

// PayeeNames returns all payee names in backend order.
func (r *ReferenceLists) PayeeNames() []string {
	names := make([]string, len(r.Payees))
	for i, p := range r.Payees {
		names[i] = p.Name
	}
	return names
}

// Candidate is one unresolved transaction as produced by the model.
// Amount is the only required field; a negative amount is an expense
// by convention, not validated here.
type Candidate struct {
	Date         string
	Account      string
	Category     string
	Payee        string
	Amount       float64
	Currency     string
	Notes        string
	ExchangeRate *float64
}

// Resolved is a candidate after account/category resolution and
// currency conversion, ready for submission. It lives for exactly one
// message; nothing persists it.
type Resolved struct {
	Record  actual.Transaction
	Preview Preview
}

// Preview is the human-readable rendition of one resolved transaction
// used in the reply.
type Preview struct {
	Date      string
	Account   string
	Category  string
	Amount    string // original amount with its currency
	Converted string // converted amount with the ledger currency, empty when no conversion happened
	Payee     string
	Notes     string
}
