package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseCandidates interprets raw model output as an array of candidate
// transactions. It strips Markdown fences the model may have added
// despite instructions, then requires a JSON array. An empty array is a
// valid result, not an error.
func ParseCandidates(raw string) ([]Candidate, error) {
	clean := cleanModelJSON(raw)

	var parsed interface{}
	if err := json.Unmarshal([]byte(clean), &parsed); err != nil {
		return nil, fmt.Errorf("%w: unmarshal: %v", ErrLLMFormat, err)
	}

	arr, ok := parsed.([]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: top-level value is %T, want array", ErrLLMFormat, parsed)
	}

	candidates := make([]Candidate, 0, len(arr))
	for i, item := range arr {
		obj, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%w: element %d is %T, want object", ErrLLMFormat, i, item)
		}

		c, err := candidateFromObject(obj)
		if err != nil {
			return nil, fmt.Errorf("%w: element %d: %v", ErrLLMFormat, i, err)
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

func candidateFromObject(obj map[string]interface{}) (Candidate, error) {
	var c Candidate
	var err error

	if c.Amount, err = getFloat64Field(obj, "amount", true); err != nil {
		return Candidate{}, err
	}
	if c.Date, err = getStringField(obj, "date"); err != nil {
		return Candidate{}, err
	}
	if c.Account, err = getStringField(obj, "account"); err != nil {
		return Candidate{}, err
	}
	if c.Category, err = getStringField(obj, "category"); err != nil {
		return Candidate{}, err
	}
	if c.Payee, err = getStringField(obj, "payee"); err != nil {
		return Candidate{}, err
	}
	if c.Currency, err = getStringField(obj, "currency"); err != nil {
		return Candidate{}, err
	}
	if c.Notes, err = getStringField(obj, "notes"); err != nil {
		return Candidate{}, err
	}
	if c.ExchangeRate, err = getOptionalFloat64Field(obj, "exchange_rate"); err != nil {
		return Candidate{}, err
	}
	return c, nil
}

// cleanModelJSON strips Markdown fences (optionally tagged "json") and
// surrounding junk from model output, keeping the JSON array inside.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// Handle ```json ... ``` or ``` ... ``` wrappers.
	if strings.HasPrefix(s, "```") {
		// Drop the first line (``` or ```json).
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	// Remove trailing ``` if present.
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	// If what is left parses as JSON, that IS the model's answer; a
	// non-array must fail as-is, not have an inner array dug out of it.
	if json.Valid([]byte(s)) {
		return s
	}

	// Extra safety: if there's still junk around the JSON array,
	// try to keep only from the first '[' to the last ']'.
	if start := strings.Index(s, "["); start != -1 {
		if end := strings.LastIndex(s, "]"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}

func getStringField(m map[string]interface{}, key string) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", nil
	}
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val), nil
	default:
		return "", fmt.Errorf("field %q has type %T, want string", key, v)
	}
}

func getFloat64Field(m map[string]interface{}, key string, required bool) (float64, error) {
	v, ok := m[key]
	if !ok {
		if required {
			return 0, fmt.Errorf("missing required field %q", key)
		}
		return 0, nil
	}
	switch val := v.(type) {
	case float64:
		return val, nil
	default:
		return 0, fmt.Errorf("field %q has type %T, want number", key, v)
	}
}

func getOptionalFloat64Field(m map[string]interface{}, key string) (*float64, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch val := v.(type) {
	case float64:
		f := val
		return &f, nil
	default:
		return nil, fmt.Errorf("field %q has type %T, want number or null", key, v)
	}
}
