package pipeline

import (
	"fmt"
	"strings"
)

// Fatal stage errors. Any of these aborts the run and marks the job
// failed; everything else the pipeline degrades around.

// AuthError means no valid user could be resolved for the request.
type AuthError struct{ Err error }

func (e *AuthError) Error() string { return "auth: " + e.Err.Error() }
func (e *AuthError) Unwrap() error { return e.Err }

// StorageError means the primary PDF could not be stored or resolved.
type StorageError struct{ Err error }

func (e *StorageError) Error() string { return "storage: " + e.Err.Error() }
func (e *StorageError) Unwrap() error { return e.Err }

// ValidationError means the upload is not a readable PDF.
type ValidationError struct{ Err error }

func (e *ValidationError) Error() string { return "validation: " + e.Err.Error() }
func (e *ValidationError) Unwrap() error { return e.Err }

// ConversionError means the conversion service produced no usable HTML.
type ConversionError struct{ Err error }

func (e *ConversionError) Error() string { return "conversion: " + e.Err.Error() }
func (e *ConversionError) Unwrap() error { return e.Err }

// ExtractionError means no HTML content could be obtained from the
// conversion result.
type ExtractionError struct{ Err error }

func (e *ExtractionError) Error() string { return "extraction: " + e.Err.Error() }
func (e *ExtractionError) Unwrap() error { return e.Err }

// PersistenceError means the knowledge entry insert failed.
type PersistenceError struct{ Err error }

func (e *PersistenceError) Error() string { return "persistence: " + e.Err.Error() }
func (e *PersistenceError) Unwrap() error { return e.Err }

// Error category codes surfaced to callers of a failed job.
const (
	CodeConvertAPIRequestFailed = "CONVERTAPI_REQUEST_FAILED"
	CodeStorageError            = "STORAGE_ERROR"
	CodeEmbeddingError          = "EMBEDDING_ERROR"
	CodeTimeoutError            = "TIMEOUT_ERROR"
	CodeUnknownError            = "UNKNOWN_ERROR"
)

// Category is a user-facing failure classification with a fixed
// troubleshooting checklist.
type Category struct {
	Code            string   `json:"code"`
	Message         string   `json:"message"`
	Troubleshooting []string `json:"troubleshooting"`
}

var categories = map[string]Category{
	CodeConvertAPIRequestFailed: {
		Code:    CodeConvertAPIRequestFailed,
		Message: "The PDF conversion service rejected the request.",
		Troubleshooting: []string{
			"Verify the CONVERTAPI_KEY credential is valid and not expired.",
			"Check the ConvertAPI account has remaining conversion credits.",
			"Confirm the uploaded file is a standard, non-encrypted PDF.",
			"Retry the upload; transient conversion service outages resolve quickly.",
		},
	},
	CodeStorageError: {
		Code:    CodeStorageError,
		Message: "A file could not be written to or read from object storage.",
		Troubleshooting: []string{
			"Verify the storage bucket exists and the service has write access.",
			"Check the storage credentials and region configuration.",
			"Confirm the file does not exceed the upload size limit.",
		},
	},
	CodeEmbeddingError: {
		Code:    CodeEmbeddingError,
		Message: "The embedding service could not process the extracted text.",
		Troubleshooting: []string{
			"Verify the OPENAI_API_KEY credential is valid.",
			"Check the embedding model name matches an available model.",
			"Retry later if the provider is rate limiting requests.",
		},
	},
	CodeTimeoutError: {
		Code:    CodeTimeoutError,
		Message: "A downstream service did not respond in time.",
		Troubleshooting: []string{
			"Retry the upload; the remote service may have been briefly overloaded.",
			"For very large PDFs, reduce the page range and try again.",
		},
	},
	CodeUnknownError: {
		Code:    CodeUnknownError,
		Message: "Processing failed for an unexpected reason.",
		Troubleshooting: []string{
			"Retry the upload.",
			"If the failure persists, contact support with the job id.",
		},
	},
}

// Categorize classifies an error message against fixed substring
// patterns and returns the matching category.
func Categorize(err error) Category {
	if err == nil {
		return categories[CodeUnknownError]
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "convertapi request failed"):
		return categories[CodeConvertAPIRequestFailed]
	case strings.Contains(msg, "storage"):
		return categories[CodeStorageError]
	case strings.Contains(msg, "embedding"), strings.Contains(msg, "openai"):
		return categories[CodeEmbeddingError]
	case strings.Contains(msg, "timeout"):
		return categories[CodeTimeoutError]
	default:
		return categories[CodeUnknownError]
	}
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	const maxLen = 500
	if len(msg) > maxLen {
		msg = msg[:maxLen]
	}
	return msg
}

func failureMessage(category Category, err error) string {
	return fmt.Sprintf("%s: %s", category.Code, sanitizeError(err))
}
