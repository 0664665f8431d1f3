// Package service wires the catalog, fetcher, engine and packager into the
// two user-facing operations: metadata field reports and CSV generation.
package service

import (
	"context"
	"fmt"

	"github.com/fbditools/fbdigen/internal/catalog"
	"github.com/fbditools/fbdigen/internal/ctlfile"
	"github.com/fbditools/fbdigen/internal/logging"
)

// FieldReport holds the extracted fields for one control file. Err is set
// when that control file could not be fetched or parsed; the remaining
// control files of the object still produce reports.
type FieldReport struct {
	ControlFile string
	Fields      []string
	Err         error
}

// MetadataService produces field reports for cataloged objects.
type MetadataService struct {
	store   *catalog.Store
	fetcher ctlfile.Fetcher
}

// NewMetadataService creates a MetadataService.
func NewMetadataService(store *catalog.Store, fetcher ctlfile.Fetcher) *MetadataService {
	return &MetadataService{store: store, fetcher: fetcher}
}

// ObjectFields resolves the object's control files, fetches and parses each,
// and merges the object's additional columns into every field list.
func (s *MetadataService) ObjectFields(ctx context.Context, objectName string) ([]FieldReport, error) {
	obj, err := s.store.GetObject(ctx, objectName)
	if err != nil {
		return nil, err
	}

	urls, err := s.store.ControlFileURLs(ctx, objectName)
	if err != nil {
		return nil, err
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("no control files found for object %q", objectName)
	}

	reports := make([]FieldReport, 0, len(urls))
	for _, u := range urls {
		report := FieldReport{ControlFile: u.Name}

		text, err := s.fetcher.Fetch(ctx, u.URL)
		if err != nil {
			logging.Error("Error fetching control file %s: %v", u.Name, err)
			report.Err = err
			reports = append(reports, report)
			continue
		}

		fields, err := ctlfile.ParseFields(text)
		if err != nil {
			logging.Error("Error parsing control file %s: %v", u.Name, err)
			report.Err = err
			reports = append(reports, report)
			continue
		}

		report.Fields = ctlfile.MergeAdditionalFields(fields, obj.AdditionalColumns)
		reports = append(reports, report)
	}
	return reports, nil
}
