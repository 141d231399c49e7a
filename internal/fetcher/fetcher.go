// Package fetcher retrieves the transcript and summary text files that sit
// next to call recordings on the NAS.
package fetcher

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
)

// Fetcher defines the interface for downloading remote text.
type Fetcher interface {
	// FetchText GETs the URL and returns the body. Bodies shorter than the
	// configured minimum are reported as ErrShortBody.
	FetchText(ctx context.Context, url string) (string, error)
}

// ErrShortBody is returned when a response is too short to be real content.
var ErrShortBody = eris.New("fetcher: body too short")

// ErrBodyTooLarge is returned when a response exceeds the size cap. No
// partial text is returned.
var ErrBodyTooLarge = eris.New("fetcher: body too large")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetcher: unexpected status %d from %s", e.Code, e.URL)
}
