// Package pipeline turns a job's source document into its ordered explanations.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/joseph-ayodele/slides-explainer/constants"
	"github.com/joseph-ayodele/slides-explainer/internal/common"
	"github.com/joseph-ayodele/slides-explainer/internal/document"
	"github.com/joseph-ayodele/slides-explainer/internal/llm"
	"github.com/joseph-ayodele/slides-explainer/internal/storage"
)

// Transformer fetches a document, splits it into units and explains each unit in order.
type Transformer struct {
	Docs      storage.DocumentStore
	Explainer llm.Explainer
	Log       *slog.Logger

	unitTimeout time.Duration
	limiter     *rate.Limiter
	parserFor   func(name string) (document.Parser, error)
}

type Option func(*Transformer)

// WithUnitTimeout bounds a single explain call. Zero disables the bound.
func WithUnitTimeout(d time.Duration) Option {
	return func(t *Transformer) {
		if d >= 0 {
			t.unitTimeout = d
		}
	}
}

// WithRateLimit throttles model calls to perSec, with a burst of one.
func WithRateLimit(perSec float64) Option {
	return func(t *Transformer) {
		if perSec > 0 {
			t.limiter = rate.NewLimiter(rate.Limit(perSec), 1)
		}
	}
}

// WithParserResolver replaces extension-based parser selection.
func WithParserResolver(fn func(name string) (document.Parser, error)) Option {
	return func(t *Transformer) {
		if fn != nil {
			t.parserFor = fn
		}
	}
}

func NewTransformer(docs storage.DocumentStore, ex llm.Explainer, log *slog.Logger, opts ...Option) *Transformer {
	if log == nil {
		log = slog.Default()
	}
	t := &Transformer{
		Docs:        docs,
		Explainer:   ex,
		Log:         log,
		unitTimeout: 60 * time.Second,
		parserFor:   document.ForName,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Transform returns one explanation per unit, in document order. A unit that cannot be
// explained gets a placeholder; only fetch and parse failures are returned as errors.
func (t *Transformer) Transform(ctx context.Context, jobID uuid.UUID) ([]string, error) {
	start := time.Now()

	doc, err := t.Docs.Fetch(ctx, jobID)
	if err != nil {
		t.Log.Error("transform.fetch.failed", "job_id", jobID, "err", err)
		return nil, common.DocumentFetchError(fmt.Sprintf("fetch document for job %s", jobID), err)
	}

	parser, err := t.parserFor(doc.Name)
	if err != nil {
		t.Log.Error("transform.parse.unsupported", "job_id", jobID, "source_name", doc.Name, "err", err)
		return nil, common.ParseError(fmt.Sprintf("document %q", doc.Name), err)
	}
	units, err := parser.Parse(doc.Bytes)
	if err != nil {
		t.Log.Error("transform.parse.failed", "job_id", jobID, "source_name", doc.Name, "err", err)
		return nil, common.ParseError(fmt.Sprintf("parse %q", doc.Name), err)
	}
	t.Log.Info("transform.parse.ok", "job_id", jobID, "source_name", doc.Name, "units", len(units), "bytes", len(doc.Bytes))

	out := make([]string, len(units))
	failed := 0
	for i, u := range units {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, err := t.explainUnit(ctx, llm.ExplainRequest{
			JobID:      jobID.String(),
			UnitIndex:  i,
			SourceName: doc.Name,
			Text:       u.Text(),
		})
		if err != nil {
			failed++
			t.Log.Warn("transform.unit.failed", "job_id", jobID, "unit", i, "err", err)
			out[i] = Placeholder(err)
			continue
		}
		out[i] = text
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.Log.Info("transform.ok",
		"job_id", jobID,
		"units", len(units),
		"units_failed", failed,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

func (t *Transformer) explainUnit(ctx context.Context, req llm.ExplainRequest) (string, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return "", common.TransformError("rate limiter", err)
		}
	}
	uctx := ctx
	if t.unitTimeout > 0 {
		var cancel context.CancelFunc
		uctx, cancel = context.WithTimeout(ctx, t.unitTimeout)
		defer cancel()
	}
	return t.Explainer.Explain(uctx, req)
}

// Placeholder is the text stored for a unit whose explanation failed.
func Placeholder(cause error) string {
	return constants.UnitErrorPrefix + " " + cause.Error()
}
