// Package engine builds output tables from a source table and a mapping
// specification. Groups are independent and run on a bounded worker pool;
// a failing group is reported and skipped without touching the others.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/fbditools/fbdigen/internal/logging"
	"github.com/fbditools/fbdigen/internal/mapping"
	"github.com/fbditools/fbdigen/internal/resolve"
	"github.com/fbditools/fbdigen/internal/table"
)

// GroupErrorKind identifies why a mapping group was skipped.
type GroupErrorKind int

const (
	// MissingRequiredColumns means no rule in the group declares the
	// Source Column / Control Column keys.
	MissingRequiredColumns GroupErrorKind = iota
	// InvalidRuleShape means a rule is malformed, e.g. an empty target
	// column name.
	InvalidRuleShape
)

// GroupError is recoverable at group granularity: the group is skipped and
// reported while the remaining groups proceed.
type GroupError struct {
	Kind   GroupErrorKind
	Group  string
	Reason string
}

func (e *GroupError) Error() string {
	return fmt.Sprintf("mapping group %q: %s", e.Group, e.Reason)
}

// Output is one successfully transformed group.
type Output struct {
	Name  string
	Table *table.Table
}

// Failure records a skipped group.
type Failure struct {
	Name string
	Err  error
}

// Result aggregates per-group outcomes. Outputs preserve the mapping
// document's group declaration order so packaging stays deterministic.
type Result struct {
	Outputs  []Output
	Failures []Failure
}

// Engine transforms source tables using mapping specifications.
type Engine struct {
	resolver *resolve.Resolver
	workers  int

	// OnGroupDone, when set, is called once per group as it finishes,
	// successful or not. Used for progress reporting.
	OnGroupDone func(name string)
}

// New creates an Engine running at most workers groups concurrently.
func New(resolver *resolve.Resolver, workers int) *Engine {
	if workers < 1 {
		workers = 1
	}
	return &Engine{resolver: resolver, workers: workers}
}

// Transform builds one output table per mapping group. It returns an error
// only when ctx is cancelled; everything else degrades per group or per
// column.
func (e *Engine) Transform(ctx context.Context, source *table.Table, spec *mapping.Spec) (*Result, error) {
	type outcome struct {
		tbl *table.Table
		err error
	}
	outcomes := make([]outcome, len(spec.Groups))

	sem := make(chan struct{}, e.workers)
	var wg sync.WaitGroup

	for i, group := range spec.Groups {
		select {
		case <-ctx.Done():
			wg.Wait()
			return nil, ctx.Err()
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(idx int, g mapping.Group) {
			defer wg.Done()
			defer func() { <-sem }()

			tbl, err := e.transformGroup(ctx, source, g)
			outcomes[idx] = outcome{tbl: tbl, err: err}
			if e.OnGroupDone != nil {
				e.OnGroupDone(g.Name)
			}
		}(i, group)
	}

	wg.Wait()

	result := &Result{}
	for i, group := range spec.Groups {
		if outcomes[i].err != nil {
			logging.Warn("Skipping group %s: %v", group.Name, outcomes[i].err)
			result.Failures = append(result.Failures, Failure{Name: group.Name, Err: outcomes[i].err})
			continue
		}
		result.Outputs = append(result.Outputs, Output{Name: group.Name, Table: outcomes[i].tbl})
	}
	return result, nil
}

// transformGroup applies one group's rules in order. Rules sharing a target
// column overwrite earlier assignments; the last rule wins.
func (e *Engine) transformGroup(ctx context.Context, source *table.Table, group mapping.Group) (*table.Table, error) {
	if len(group.Rules) == 0 {
		return nil, &GroupError{
			Kind:   MissingRequiredColumns,
			Group:  group.Name,
			Reason: "group has no rules",
		}
	}

	hasSourceKey, hasTargetKey := false, false
	for _, rule := range group.Rules {
		hasSourceKey = hasSourceKey || rule.HasSource
		hasTargetKey = hasTargetKey || rule.HasTarget
	}
	if !hasSourceKey || !hasTargetKey {
		return nil, &GroupError{
			Kind:   MissingRequiredColumns,
			Group:  group.Name,
			Reason: "missing required columns 'Source Column' or 'Control Column'",
		}
	}

	rows := source.RowCount()
	out := table.New()

	for _, rule := range group.Rules {
		if rule.TargetColumn == "" {
			return nil, &GroupError{
				Kind:   InvalidRuleShape,
				Group:  group.Name,
				Reason: "rule has empty 'Control Column'",
			}
		}

		if rule.SourceColumn != "" && source.HasColumn(rule.SourceColumn) {
			src := source.Column(rule.SourceColumn)
			col := make([]string, len(src))
			copy(col, src)
			out.SetColumn(rule.TargetColumn, col)
			continue
		}

		if rule.Default == nil {
			out.SetColumn(rule.TargetColumn, table.Repeat("", rows))
			continue
		}

		value, err := e.resolver.Resolve(ctx, rule.Default)
		if err != nil {
			// One bad default must not fail the group. Column goes empty.
			var rerr *resolve.ResolutionError
			if errors.As(err, &rerr) {
				logging.Warn("Default for %s.%s resolved to empty: %v", group.Name, rule.TargetColumn, err)
				value = ""
			} else {
				return nil, err
			}
		}
		out.SetColumn(rule.TargetColumn, table.Repeat(value, rows))
	}

	return out, nil
}
