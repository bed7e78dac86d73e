package pipeline

import (
	_ "embed"
	"strings"
)

// Placeholder tokens recognized by RenderPrompt.
const (
	PlaceholderDate            = "%DATE%"
	PlaceholderDefaultAccount  = "%DEFAULT_ACCOUNT%"
	PlaceholderDefaultCategory = "%DEFAULT_CATEGORY%"
	PlaceholderCurrency        = "%CURRENCY%"
	PlaceholderAccountsList    = "%ACCOUNTS_LIST%"
	PlaceholderCategoryList    = "%CATEGORY_LIST%"
	PlaceholderPayeeList       = "%PAYEE_LIST%"
)

// DefaultPromptTemplate is the built-in extraction prompt. A custom
// template from configuration replaces it wholesale.
//
//go:embed default.prompt
var DefaultPromptTemplate string

// PromptContext carries the contextual values substituted into the
// template.
type PromptContext struct {
	Date            string
	DefaultAccount  string
	DefaultCategory string
	Currency        string
	Refs            *ReferenceLists
	ExtraRules      []string
}

// RenderPrompt substitutes every recognized placeholder in the template
// and appends any extra rules lines. Substitution is purely textual;
// names containing placeholder syntax or commas are not escaped, and
// unrecognized placeholders are left as-is.
func RenderPrompt(template string, pc PromptContext) string {
	r := strings.NewReplacer(
		PlaceholderDate, pc.Date,
		PlaceholderDefaultAccount, pc.DefaultAccount,
		PlaceholderDefaultCategory, pc.DefaultCategory,
		PlaceholderCurrency, pc.Currency,
		PlaceholderAccountsList, strings.Join(pc.Refs.AccountNames(), ", "),
		PlaceholderCategoryList, strings.Join(pc.Refs.CategoryNames(), ", "),
		PlaceholderPayeeList, strings.Join(pc.Refs.PayeeNames(), ", "),
	)
	rendered := r.Replace(template)

	if len(pc.ExtraRules) > 0 {
		var b strings.Builder
		b.WriteString(rendered)
		b.WriteString("\n\nAdditional rules:\n")
		for _, rule := range pc.ExtraRules {
			b.WriteString("- ")
			b.WriteString(rule)
			b.WriteString("\n")
		}
		rendered = strings.TrimRight(b.String(), "\n")
	}
	return rendered
}
