package actual

// Account is one budget account as reported by the backend.
type Account struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Category is one budget category as reported by the backend.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Payee is one known payee as reported by the backend.
type Payee struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Transaction is the record shape the backend's import endpoint expects.
// Amount is in integer minor units (cents), negative for expenses.
type Transaction struct {
	Account   string  `json:"account"`
	Date      string  `json:"date"`
	Amount    int64   `json:"amount"`
	PayeeName *string `json:"payee_name"`
	Category  string  `json:"category"`
	Notes     string  `json:"notes"`
}

// Outcome is the normalized result of one import call. The backend
// reports either a bare boolean (legacy) or lists of added/updated
// transaction IDs plus errors; both wire shapes collapse into counts
// here so nothing downstream has to care.
type Outcome struct {
	Added   int
	Updated int
	Errors  int
}

// Changed reports whether the call modified the budget.
func (o Outcome) Changed() bool {
	return o.Added > 0 || o.Updated > 0
}
