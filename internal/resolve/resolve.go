// Package resolve turns a tagged default-value spec into a concrete value.
// Wall-clock reads go through an injected Clock and SQL defaults through an
// injected scalar querier, so resolution stays deterministic under test.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fbditools/fbdigen/internal/logging"
	"github.com/fbditools/fbdigen/internal/mapping"
	"github.com/fbditools/fbdigen/internal/scalar"
)

// Clock supplies the current time for sequence generation.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the system clock. Sequence and legacy timestamps use
// local time, matching the legacy generator.
type SystemClock struct{}

// Now returns the current local time.
func (SystemClock) Now() time.Time { return time.Now() }

// ResolutionErrorKind identifies why a default value could not be resolved.
type ResolutionErrorKind int

const (
	// CollaboratorUnavailable means the scalar query collaborator failed.
	CollaboratorUnavailable ResolutionErrorKind = iota
	// CollaboratorTimeout means the scalar query exceeded its deadline.
	CollaboratorTimeout
	// EmptyResult means the scalar query returned no rows.
	EmptyResult
)

// ResolutionError is recoverable at column granularity: the caller
// substitutes an empty value and continues.
type ResolutionError struct {
	Kind ResolutionErrorKind
	Expr string
	Err  error
}

func (e *ResolutionError) Error() string {
	switch e.Kind {
	case CollaboratorTimeout:
		return fmt.Sprintf("scalar query timed out: %s", e.Expr)
	case EmptyResult:
		return fmt.Sprintf("scalar query returned no rows: %s", e.Expr)
	default:
		return fmt.Sprintf("scalar query failed: %s: %v", e.Expr, e.Err)
	}
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// sequence tokens, substituted in this order. The literals are disjoint so
// a single left-to-right replacement pass cannot double-substitute.
var sequenceTokens = []struct {
	token  string
	layout string
}{
	{"YYYY", "2006"},
	{"MM", "01"},
	{"DD", "02"},
	{"HH", "15"},
	{"MI", "04"},
	{"SS", "05"},
}

// legacyLayout is the fixed YYYYMMDDHHMISS format used by the bare
// "SEQUENCE" default.
const legacyLayout = "20060102150405"

// Resolver resolves default-value specs to concrete column values.
type Resolver struct {
	clock   Clock
	querier scalar.Querier
}

// New creates a Resolver. A nil clock falls back to the system clock; a nil
// querier makes every scalar-query default resolve to an error.
func New(clock Clock, querier scalar.Querier) *Resolver {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Resolver{clock: clock, querier: querier}
}

// Resolve produces the single value for a default spec. The caller
// broadcasts it across the output column's rows. Scalar-query failures come
// back as *ResolutionError; everything else always succeeds.
func (r *Resolver) Resolve(ctx context.Context, spec *mapping.DefaultSpec) (string, error) {
	switch spec.Kind {
	case mapping.KindConstant:
		return spec.Value, nil
	case mapping.KindSequence:
		return Sequence(spec.Value, r.clock.Now()), nil
	case mapping.KindLegacy:
		return r.clock.Now().Format(legacyLayout), nil
	case mapping.KindScalarQuery:
		return r.queryScalar(ctx, spec.Value)
	default:
		logging.Warn("Unknown default value type, using raw value: %s", spec.Value)
		return spec.Value, nil
	}
}

func (r *Resolver) queryScalar(ctx context.Context, expr string) (string, error) {
	if r.querier == nil {
		return "", &ResolutionError{
			Kind: CollaboratorUnavailable,
			Expr: expr,
			Err:  fmt.Errorf("no scalar query source configured"),
		}
	}

	value, ok, err := r.querier.QueryScalar(ctx, expr)
	if err != nil {
		kind := CollaboratorUnavailable
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			kind = CollaboratorTimeout
		}
		return "", &ResolutionError{Kind: kind, Expr: expr, Err: err}
	}
	if !ok {
		// An empty result set is a resolvable empty value, not a failure.
		return "", nil
	}
	return value, nil
}

// Sequence substitutes the time tokens YYYY, MM, DD, HH, MI and SS into
// pattern from now. Replacements are all digits, so one pass per token
// cannot re-substitute. Unrecognized tokens pass through unchanged.
func Sequence(pattern string, now time.Time) string {
	result := pattern
	for _, t := range sequenceTokens {
		result = strings.ReplaceAll(result, t.token, now.Format(t.layout))
	}
	return result
}
