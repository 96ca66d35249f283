package redaction

import "fmt"

// UnsupportedLanguageError is a caller mistake and maps to a bad request.
type UnsupportedLanguageError struct {
	Language string
}

func (e *UnsupportedLanguageError) Error() string {
	return fmt.Sprintf("unsupported language %q", e.Language)
}

// DetectionCapabilityError means the detector could not answer. Content must
// not be released unredacted when this is returned.
type DetectionCapabilityError struct {
	Detector string
	Err      error
}

func (e *DetectionCapabilityError) Error() string {
	return fmt.Sprintf("pii detection failed (%s): %v", e.Detector, e.Err)
}

func (e *DetectionCapabilityError) Unwrap() error {
	return e.Err
}
