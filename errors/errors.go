// Package errors provides error handling for xalq.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - User-facing hints and details
//
// It also declares the pipeline's error taxonomy as sentinel errors.
// Components wrap a sentinel with context; callers classify with errors.Is:
//
//	if errors.Is(err, errors.ErrPromptNotFound) {
//	    // mark the row failed and move on
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
	Mark         = crdb.Mark
	CombineErrors = crdb.CombineErrors
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is             = crdb.Is
	IsAny          = crdb.IsAny
	As             = crdb.As
	Unwrap         = crdb.Unwrap
	UnwrapAll      = crdb.UnwrapAll
	GetAllHints    = crdb.GetAllHints
	GetAllDetails  = crdb.GetAllDetails
	FlattenHints   = crdb.FlattenHints
	FlattenDetails = crdb.FlattenDetails
)

// GetStack is an alias for GetReportableStackTrace for convenience.
var GetStack = crdb.GetReportableStackTrace

// Input errors. Both abort the whole batch.
var (
	// ErrUnsupportedFormat indicates the dataset extension is not a delimited-text or spreadsheet file
	ErrUnsupportedFormat = New("unsupported format")

	// ErrEmptyDataset indicates the dataset parsed to zero rows
	ErrEmptyDataset = New("empty dataset")
)

// Resolution errors
var (
	// ErrPromptNotFound indicates no resolver tier produced prompt text
	ErrPromptNotFound = New("prompt not found")
)

// Backend errors
var (
	// ErrGenerationExhausted indicates every model candidate failed
	ErrGenerationExhausted = New("generation exhausted")

	// ErrContentBlocked indicates the backend returned an empty-but-successful
	// response (content policy). It is terminal for the row.
	ErrContentBlocked = New("content blocked")
)

// Output errors
var (
	// ErrTemplateMissing indicates the document template file is absent
	ErrTemplateMissing = New("template missing")

	// ErrRender indicates the report document could not be produced or written
	ErrRender = New("render failed")
)

// General-purpose sentinels
var (
	ErrNotFound       = New("not found")
	ErrInvalidRequest = New("invalid request")
	ErrTimeout        = New("operation timed out")
)

// IsBatchLevel reports whether err aborts a whole batch rather than a single row.
func IsBatchLevel(err error) bool {
	return err != nil && IsAny(err, ErrUnsupportedFormat, ErrEmptyDataset)
}

// IsPromptNotFound checks if an error is or wraps ErrPromptNotFound
func IsPromptNotFound(err error) bool {
	return err != nil && Is(err, ErrPromptNotFound)
}

// IsContentBlocked checks if an error is or wraps ErrContentBlocked
func IsContentBlocked(err error) bool {
	return err != nil && Is(err, ErrContentBlocked)
}

// IsGenerationExhausted checks if an error is or wraps ErrGenerationExhausted
func IsGenerationExhausted(err error) bool {
	return err != nil && Is(err, ErrGenerationExhausted)
}

// IsNotFoundError checks if an error is or wraps ErrNotFound
func IsNotFoundError(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// Kind returns a short machine-readable name for the taxonomy sentinel err wraps,
// or "internal" when it wraps none of them. Used as the error_type log field.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case Is(err, ErrUnsupportedFormat):
		return "unsupported_format"
	case Is(err, ErrEmptyDataset):
		return "empty_dataset"
	case Is(err, ErrPromptNotFound):
		return "prompt_not_found"
	case Is(err, ErrContentBlocked):
		return "content_blocked"
	case Is(err, ErrGenerationExhausted):
		return "generation_exhausted"
	case Is(err, ErrTemplateMissing):
		return "template_missing"
	case Is(err, ErrRender):
		return "render"
	default:
		return "internal"
	}
}
