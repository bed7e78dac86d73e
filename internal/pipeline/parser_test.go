package pipeline

import (
	"errors"
	"testing"
)

func TestParseCandidates(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    int
		wantErr error
	}{
		{
			name: "plain array",
			raw:  `[{"amount":-12.5,"category":"Food"}]`,
			want: 1,
		},
		{
			name: "json fence",
			raw:  "```json\n[{\"amount\":-12.5}]\n```",
			want: 1,
		},
		{
			name: "bare fence",
			raw:  "```\n[{\"amount\":-12.5},{\"amount\":3}]\n```",
			want: 2,
		},
		{
			name: "junk around array",
			raw:  "Here you go:\n[{\"amount\":1}]\nHope that helps!",
			want: 1,
		},
		{
			name: "empty array is valid",
			raw:  `[]`,
			want: 0,
		},
		{
			name:    "object instead of array",
			raw:     `{"amount":-12.5}`,
			wantErr: ErrLLMFormat,
		},
		{
			name:    "array embedded in an object is still not an array",
			raw:     `{"transactions": [{"amount": -5, "category": "Food"}]}`,
			wantErr: ErrLLMFormat,
		},
		{
			name:    "fenced object with embedded array",
			raw:     "```json\n{\"transactions\": [{\"amount\": -5}]}\n```",
			wantErr: ErrLLMFormat,
		},
		{
			name:    "not json",
			raw:     `I could not find any transactions.`,
			wantErr: ErrLLMFormat,
		},
		{
			name:    "array of non-objects",
			raw:     `[1,2,3]`,
			wantErr: ErrLLMFormat,
		},
		{
			name:    "missing amount",
			raw:     `[{"category":"Food"}]`,
			wantErr: ErrLLMFormat,
		},
		{
			name:    "amount of wrong type",
			raw:     `[{"amount":"12.50"}]`,
			wantErr: ErrLLMFormat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCandidates(tt.raw)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseCandidates() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseCandidates() error = %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("ParseCandidates() returned %d candidates, want %d", len(got), tt.want)
			}
		})
	}
}

func TestParseCandidatesFields(t *testing.T) {
	raw := `[{"date":"2026-01-15","account":"Bank","category":"Food","payee":"Lidl","amount":-12.34,"currency":"USD","notes":"groceries","exchange_rate":0.9}]`
	got, err := ParseCandidates(raw)
	if err != nil {
		t.Fatalf("ParseCandidates() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(got))
	}

	c := got[0]
	if c.Date != "2026-01-15" || c.Account != "Bank" || c.Category != "Food" || c.Payee != "Lidl" {
		t.Errorf("unexpected string fields: %+v", c)
	}
	if c.Amount != -12.34 || c.Currency != "USD" || c.Notes != "groceries" {
		t.Errorf("unexpected value fields: %+v", c)
	}
	if c.ExchangeRate == nil || *c.ExchangeRate != 0.9 {
		t.Errorf("unexpected exchange rate: %v", c.ExchangeRate)
	}
}

func TestCleanModelJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "clean passthrough", raw: `[{"a":1}]`, want: `[{"a":1}]`},
		{name: "tagged fence", raw: "```json\n[1]\n```", want: "[1]"},
		{name: "whitespace", raw: "  \n[1]\n  ", want: "[1]"},
		{name: "prose around", raw: "sure:\n[1]\ndone", want: "[1]"},
		{name: "valid object kept whole", raw: `{"transactions":[1]}`, want: `{"transactions":[1]}`},
		{name: "single line fence", raw: "```", want: "```"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cleanModelJSON(tt.raw); got != tt.want {
				t.Errorf("cleanModelJSON(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}
