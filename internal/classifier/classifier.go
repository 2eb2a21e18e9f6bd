// Package classifier adapts an external language-model endpoint into a
// category classifier for support tickets.
//
// Defines a Classifier interface and an OpenAI-compatible implementation.
// The interface allows injecting a deterministic classifier in tests.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/routelab-ai/routelab/internal/model"
)

// Classifier assigns one of the prompt's categories to a ticket.
type Classifier interface {
	// Classify renders the prompt for the ticket, sends it to the model
	// endpoint, and returns the predicted category label. Any returned
	// error is a per-case soft failure: callers record it and move on.
	Classify(ctx context.Context, prompt model.Prompt, ticket string) (string, error)
}

// ErrorKind distinguishes classification failure modes.
type ErrorKind string

const (
	KindTimeout     ErrorKind = "timeout"
	KindRateLimited ErrorKind = "rate_limited"
	KindMalformed   ErrorKind = "malformed"
	KindUpstream    ErrorKind = "upstream"
	KindNoCategory  ErrorKind = "no_category"
)

// Error is a classification failure. All Classify errors unwrap to *Error.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("classifier: %s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("classifier: %s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is a classifier Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.Kind == kind
}

// ParseCategory extracts a category label from free-text model output.
//
// The model is instructed to answer with a bare category token but may wrap
// it in prose ("The category is: SHIPPING."). Matching is case-insensitive
// substring search over the closed category set, in the order the prompt
// lists them. No match returns ok=false — an unparsable response must
// surface as a null prediction, never an invented guess.
func ParseCategory(response string, categories []string) (string, bool) {
	normalized := strings.ToUpper(strings.TrimSpace(response))
	if normalized == "" {
		return "", false
	}
	for _, category := range categories {
		if category == "" {
			continue
		}
		if strings.Contains(normalized, strings.ToUpper(category)) {
			return category, true
		}
	}
	return "", false
}
