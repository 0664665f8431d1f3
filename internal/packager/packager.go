// Package packager serializes output tables to CSV and bundles them into a
// single zip archive, one entry per mapping group.
package packager

import (
	"archive/zip"
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fbditools/fbdigen/internal/engine"
	"github.com/fbditools/fbdigen/internal/logging"
)

// SerializationError records a failed archive entry. It is recoverable: the
// entry is omitted and archive assembly continues.
type SerializationError struct {
	Entry string
	Err   error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serializing %s: %v", e.Entry, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// EntryName converts a group name to a filesystem-safe archive entry name:
// whitespace becomes underscores and a .csv suffix is forced.
func EntryName(group string) string {
	name := strings.Join(strings.Fields(group), "_")
	if name == "" {
		name = "group"
	}
	return name + ".csv"
}

// ArchiveName derives the output archive name from the source filename.
func ArchiveName(sourceFilename string) string {
	base := filepath.Base(sourceFilename)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return base + "_transformed.zip"
}

// Package serializes each output table to CSV and returns the zip archive
// bytes plus any per-entry failures. A failure serializing one group omits
// that entry; it never aborts the whole archive.
func Package(outputs []engine.Output) ([]byte, []SerializationError) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	var failures []SerializationError
	for _, out := range outputs {
		entry := EntryName(out.Name)

		var csvBuf bytes.Buffer
		if err := out.Table.WriteCSV(&csvBuf); err != nil {
			logging.Error("Error serializing group %s: %v", out.Name, err)
			failures = append(failures, SerializationError{Entry: entry, Err: err})
			continue
		}

		w, err := zw.Create(entry)
		if err != nil {
			logging.Error("Error adding archive entry %s: %v", entry, err)
			failures = append(failures, SerializationError{Entry: entry, Err: err})
			continue
		}
		if _, err := w.Write(csvBuf.Bytes()); err != nil {
			logging.Error("Error writing archive entry %s: %v", entry, err)
			failures = append(failures, SerializationError{Entry: entry, Err: err})
			continue
		}

		logging.Debug("Generated %s with %d rows", entry, out.Table.RowCount())
	}

	if err := zw.Close(); err != nil {
		// Close failure corrupts the archive container itself.
		failures = append(failures, SerializationError{Entry: "archive", Err: err})
		return nil, failures
	}
	return buf.Bytes(), failures
}
