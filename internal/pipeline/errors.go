package pipeline

import (
	"errors"
	"fmt"
)

// Error kinds produced by the pipeline. Every kind is scoped to one
// inbound message: it yields one user-facing reply and never affects
// other in-flight messages or process state.
var (
	// ErrLLMRequest means the completion request itself failed.
	ErrLLMRequest = errors.New("pipeline: llm request failed")
	// ErrLLMFormat means the model answered but not with a JSON array.
	ErrLLMFormat = errors.New("pipeline: llm response is not a transaction array")
)

// UnknownAccountError means a candidate named an account that is not in
// the current reference snapshot. Fatal to the whole batch.
type UnknownAccountError struct {
	Name string
}

func (e *UnknownAccountError) Error() string {
	return fmt.Sprintf("pipeline: invalid account specified: %q", e.Name)
}

// UnknownCategoryError means a candidate named a category that is not
// in the current reference snapshot. Fatal to the whole batch.
type UnknownCategoryError struct {
	Name string
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("pipeline: invalid category specified: %q", e.Name)
}

// ConversionError wraps a currency conversion failure.
type ConversionError struct {
	Err error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("pipeline: currency conversion failed: %v", e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// SubmissionError wraps a backend import failure for one account group.
// Groups submitted before the failing one are not rolled back.
type SubmissionError struct {
	AccountID string
	Err       error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("pipeline: submitting transactions for account %s: %v", e.AccountID, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// ErrorKind labels an error for metrics and logs.
func ErrorKind(err error) string {
	var (
		unknownAccount  *UnknownAccountError
		unknownCategory *UnknownCategoryError
		conversion      *ConversionError
		submission      *SubmissionError
	)
	switch {
	case errors.Is(err, ErrLLMRequest):
		return "llm_request"
	case errors.Is(err, ErrLLMFormat):
		return "llm_format"
	case errors.As(err, &unknownAccount):
		return "unknown_account"
	case errors.As(err, &unknownCategory):
		return "unknown_category"
	case errors.As(err, &conversion):
		return "conversion"
	case errors.As(err, &submission):
		return "submission"
	default:
		return "other"
	}
}

// UserErrorMessage maps a pipeline error to the reply shown to the
// user. Details stay in the logs.
func UserErrorMessage(err error) string {
	var (
		unknownAccount  *UnknownAccountError
		unknownCategory *UnknownCategoryError
		conversion      *ConversionError
	)
	switch {
	case errors.Is(err, ErrLLMRequest), errors.Is(err, ErrLLMFormat):
		return "Sorry, I received an invalid or empty response from the LLM. Check the bot logs."
	case errors.As(err, &unknownAccount):
		return fmt.Sprintf("Sorry, I don't know the account %q. Check your budget or the bot configuration.", unknownAccount.Name)
	case errors.As(err, &unknownCategory):
		return fmt.Sprintf("Sorry, I don't know the category %q. Check your budget or the bot configuration.", unknownCategory.Name)
	case errors.As(err, &conversion):
		return "Sorry, there was an error converting the currency. Check the bot logs."
	default:
		return "Sorry, I encountered an error creating the transaction(s). Check the bot logs."
	}
}
