// Package categorize infers a category label for a transaction. A remote model
// does the inference; Fallback turns every failure into the default label.
package categorize

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"smartledger/internal/core"
	"smartledger/internal/log"
)

// DefaultTimeout bounds one categorization round trip.
const DefaultTimeout = 8 * time.Second

var ErrEmptyResponse = errors.New("empty model response")

// Request is what the model sees of a transaction.
type Request struct {
	Description string
	Amount      core.Money
	Kind        core.Kind
}

type Categorizer interface {
	Categorize(ctx context.Context, req Request) (string, error)
}

// Fallback applies the timeout and default-label policy around a Categorizer.
// A nil Categorizer means no credentials are configured.
type Fallback struct {
	next    Categorizer
	timeout time.Duration
	logger  *log.Logger
}

func NewFallback(next Categorizer, timeout time.Duration, logger *log.Logger) *Fallback {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Fallback{next: next, timeout: timeout, logger: logger.WithComponent(log.ComponentCategorize)}
}

// Categorize always returns a label. Missing credentials, timeouts, transport
// errors, malformed replies and labels outside the vocabulary of req.Kind all
// yield core.DefaultCategory(req.Kind).
func (f *Fallback) Categorize(ctx context.Context, req Request) string {
	def := core.DefaultCategory(req.Kind)
	if f == nil || f.next == nil {
		return def
	}

	ctx, span := otel.Tracer("smartledger/categorize").Start(ctx, "categorize")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	label, err := f.next.Categorize(ctx, req)
	switch {
	case err != nil:
		f.logger.WarnContext(ctx, "Categorization failed, using default", "error", err, log.FieldCategory, def)
		label = def
	case !core.IsKnownCategory(req.Kind, label):
		f.logger.WarnContext(ctx, "Categorization returned unknown label, using default", "label", label, log.FieldCategory, def)
		label = def
	}
	span.SetAttributes(attribute.String("category", label), attribute.Bool("fallback", label == def))
	return label
}
