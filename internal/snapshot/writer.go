// Package snapshot persists raw status captures as immutable timestamped files.
package snapshot

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"

	"flighttrack/internal/telemetry"
)

// Format selects the on-disk encoding of raw snapshots.
type Format string

const (
	// FormatJSON stores the document losslessly.
	FormatJSON Format = "json"
	// FormatCSV flattens top-level keys into columns. Nested values are
	// JSON-encoded into their cell and flagged in the log.
	FormatCSV Format = "csv"
)

// timestampLayout gives second-resolution filenames. Two captures within the
// same second collide; last write wins.
const timestampLayout = "20060102-150405"

// Writer writes one file per successful fetch under dir.
type Writer struct {
	dir    string
	format Format
	logger *zap.Logger
}

// NewWriter builds a Writer targeting dir, which must already exist.
func NewWriter(dir string, format Format, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{dir: dir, format: format, logger: logger}
}

// Write persists payload as a snapshot named after capturedAt and returns the
// file path. The write is whole-file: content lands in a temp file first and
// is renamed into place, so readers never observe a partial snapshot.
func (w *Writer) Write(payload telemetry.Payload, capturedAt time.Time) (string, error) {
	name := capturedAt.Format(timestampLayout) + "." + string(w.format)
	path := filepath.Join(w.dir, name)

	var data []byte
	var err error
	switch w.format {
	case FormatJSON:
		data, err = json.Marshal(payload)
	case FormatCSV:
		data, err = w.encodeCSV(payload, name)
	default:
		return "", fmt.Errorf("unsupported snapshot format %q", w.format)
	}
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}

	if err := writeWholeFile(path, data); err != nil {
		return "", fmt.Errorf("write snapshot %s: %w", name, err)
	}
	w.logger.Debug("snapshot written", zap.String("path", path), zap.Int("bytes", len(data)))
	return path, nil
}

// encodeCSV renders the top-level keys as a header row plus one value row.
// Keys are sorted so the column order is stable across snapshots.
func (w *Writer) encodeCSV(payload telemetry.Payload, name string) ([]byte, error) {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	row := make([]string, len(keys))
	nested := false
	for i, k := range keys {
		cell, flat := flattenValue(payload[k])
		if !flat {
			nested = true
		}
		row[i] = cell
	}
	if nested {
		w.logger.Warn("payload contains nested structures; CSV cells hold their JSON encoding",
			zap.String("snapshot", name),
		)
	}

	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.Write(keys); err != nil {
		return nil, err
	}
	if err := cw.Write(row); err != nil {
		return nil, err
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// flattenValue renders a single top-level value as a CSV cell. The second
// return is false when the value was a nested mapping or sequence.
func flattenValue(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", true
	case string:
		return val, true
	case bool:
		return fmt.Sprintf("%t", val), true
	case float64:
		return fmt.Sprintf("%v", val), true
	default:
		encoded, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val), false
		}
		return string(encoded), false
	}
}

// writeWholeFile writes data to a temp file in the target directory and
// renames it over path.
func writeWholeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}
