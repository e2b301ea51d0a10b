package extractor

import "fmt"

// NetworkError covers timeouts, refused connections and 5xx responses.
// Retryable on the next scheduler cycle.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("extractor: network error fetching %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ExtractionError covers 4xx responses and unexpected extraction failures.
type ExtractionError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *ExtractionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("extractor: HTTP %d fetching %s", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("extractor: extraction failed for %s: %v", e.URL, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// FileFormatError means the content type could not be detected. Permanent for
// that URL until the source configuration changes.
type FileFormatError struct {
	URL          string
	DeclaredType string
}

func (e *FileFormatError) Error() string {
	return fmt.Sprintf("extractor: unable to detect content type for %s (declared %q)", e.URL, e.DeclaredType)
}
