package service

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/fbditools/fbdigen/internal/engine"
	"github.com/fbditools/fbdigen/internal/logging"
	"github.com/fbditools/fbdigen/internal/mapping"
	"github.com/fbditools/fbdigen/internal/packager"
	"github.com/fbditools/fbdigen/internal/progress"
	"github.com/fbditools/fbdigen/internal/table"
)

// GenerateService runs the full source-to-archive transformation.
type GenerateService struct {
	engine       *engine.Engine
	delimiter    rune
	showProgress bool
}

// NewGenerateService creates a GenerateService. showProgress enables the
// interactive per-group progress bar.
func NewGenerateService(eng *engine.Engine, delimiter rune, showProgress bool) *GenerateService {
	return &GenerateService{engine: eng, delimiter: delimiter, showProgress: showProgress}
}

// GenerateResult is the outcome of one generate run.
type GenerateResult struct {
	RunID       string
	ArchiveName string
	Archive     []byte

	GroupCount            int
	GroupFailures         []engine.Failure
	SerializationFailures []packager.SerializationError
}

// Generate reads a pipe-delimited source dataset and a JSON mapping
// document, transforms every mapping group and packages the outputs into a
// zip archive. Structural input errors are fatal; group, default-value and
// serialization failures degrade per the isolation rules and are reported
// in the result.
func (s *GenerateService) Generate(ctx context.Context, sourceFilename string, source io.Reader, mappingDoc []byte) (*GenerateResult, error) {
	if !table.ValidSourceName(sourceFilename) {
		return nil, fmt.Errorf("invalid source file format %q, valid formats are csv/txt", sourceFilename)
	}

	src, err := table.ReadDelimited(source, s.delimiter)
	if err != nil {
		return nil, err
	}

	spec, err := mapping.Parse(mappingDoc)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	logging.Debug("Run %s: %d mapping sheets, %d source rows", runID, len(spec.Groups), src.RowCount())

	if s.showProgress {
		tracker := progress.New(int64(len(spec.Groups)))
		s.engine.OnGroupDone = func(string) { tracker.GroupDone() }
		defer func() {
			s.engine.OnGroupDone = nil
			tracker.Finish()
		}()
	}

	result, err := s.engine.Transform(ctx, src, spec)
	if err != nil {
		return nil, err
	}

	archive, serFailures := packager.Package(result.Outputs)
	if archive == nil {
		return nil, fmt.Errorf("assembling archive failed")
	}

	return &GenerateResult{
		RunID:                 runID,
		ArchiveName:           packager.ArchiveName(sourceFilename),
		Archive:               archive,
		GroupCount:            len(result.Outputs),
		GroupFailures:         result.Failures,
		SerializationFailures: serFailures,
	}, nil
}
