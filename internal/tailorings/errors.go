package tailorings

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrNotReady     = errors.New("tailoring not completed")
	ErrJobFetch     = errors.New("job description fetch failed")
)

const (
	ErrorCodeValidation        = "VALIDATION_ERROR"
	ErrorCodeExtraction        = "EXTRACTION_ERROR"
	ErrorCodeLLM               = "LLM_ERROR"
	ErrorCodeLLMTimeout        = "LLM_TIMEOUT"
	ErrorCodeLLMSchemaMismatch = "LLM_SCHEMA_MISMATCH"
	ErrorCodeRender            = "RENDER_ERROR"
	ErrorCodeStorage           = "STORAGE_ERROR"
	ErrorCodeInternal          = "INTERNAL_ERROR"
)

// FailureError is a pipeline failure that was recorded on the tailoring
// and whose reservation was released.
type FailureError struct {
	TailoringID string
	Code        string
	Err         error
}

func (e *FailureError) Error() string {
	if e.Err == nil {
		return e.Code
	}
	return e.Code + ": " + e.Err.Error()
}

func (e *FailureError) Unwrap() error { return e.Err }

func failure(code string, err error) *FailureError {
	return &FailureError{Code: code, Err: err}
}
