package errors

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	CodeSymbolNotFound    ErrorCode = "SYMBOL_NOT_FOUND"
	CodeAmbiguousSymbol   ErrorCode = "AMBIGUOUS_SYMBOL"
	CodeInvalidSpan       ErrorCode = "INVALID_SPAN"
	CodeParseFailed       ErrorCode = "PARSE_VALIDATION_FAILED"
	CodeCompilerFailed    ErrorCode = "COMPILER_VALIDATION_FAILED"
	CodeAnalyzerMissing   ErrorCode = "ANALYZER_NOT_AVAILABLE"
	CodeAnalyzerFailed    ErrorCode = "ANALYZER_FAILED"
	CodeValidationTimeout ErrorCode = "VALIDATION_TIMEOUT"
	CodePlanFailed        ErrorCode = "PLAN_EXECUTION_FAILED"
	CodeConflict          ErrorCode = "CONFLICT"
	CodeNotSupported      ErrorCode = "NOT_SUPPORTED"
	CodeInternal          ErrorCode = "INTERNAL_ERROR"
)

type DomainError struct {
	Code    ErrorCode
	Message string
	Err     error
	Context map[string]interface{}
}

const (
	CtxPath       = "path"
	CtxOperation  = "operation"
	CtxLanguage   = "language"
	CtxSymbol     = "symbol"
	CtxCandidates = "candidates"
	CtxSpanStart  = "span_start"
	CtxSpanEnd    = "span_end"
	CtxGate       = "gate"
	CtxStep       = "step"
)

func (e *DomainError) WithContext(key string, value interface{}) *DomainError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func (e *DomainError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if len(e.Context) > 0 {
		msg += fmt.Sprintf(" %v", e.Context)
	}
	return msg
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

func New(code ErrorCode, msg string) error {
	return &DomainError{Code: code, Message: msg}
}

func Wrap(err error, code ErrorCode, msg string) error {
	return &DomainError{Code: code, Message: msg, Err: err}
}

func AddContext(err error, key string, value interface{}) error {
	var de *DomainError
	if errors.As(err, &de) {
		de.WithContext(key, value)
		return de
	}
	return &DomainError{
		Code:    CodeInternal,
		Message: "wrapped error",
		Err:     err,
		Context: map[string]interface{}{key: value},
	}
}

func IsCode(err error, code ErrorCode) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CandidateFiles returns the candidate list carried by an ambiguous-symbol
// error, or nil when the error is of any other kind.
func CandidateFiles(err error) []string {
	var de *DomainError
	if !errors.As(err, &de) || de.Code != CodeAmbiguousSymbol {
		return nil
	}
	files, _ := de.Context[CtxCandidates].([]string)
	return files
}
