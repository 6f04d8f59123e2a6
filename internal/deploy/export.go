package deploy

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// TimestampLayout is the UTC ISO-8601 layout, with milliseconds, used in
// timestamped export file names
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// ExportRecord is the JSON written after a deployment
type ExportRecord struct {
	Name string `json:"name"`
	Addr string `json:"addr"`
}

// ExportPaths are the two files an ExportRecord is written to
type ExportPaths struct {
	Stable      string // overwritten on every deployment
	Timestamped string // one per deployment
}

// NewExportPaths returns
// <root>/<artifactsDir>/contracts/<Name>.sol/<Name>.addr.json and the same
// path with ".addr." replaced by ".addr-<timestamp>.".
func NewExportPaths(root, artifactsDir, name string, now time.Time) ExportPaths {
	dir := filepath.Join(root, artifactsDir, "contracts", name+".sol")
	base := name + ".addr.json"
	stamped := strings.Replace(base, ".addr.", ".addr-"+now.UTC().Format(TimestampLayout)+".", 1)
	return ExportPaths{
		Stable:      filepath.Join(dir, base),
		Timestamped: filepath.Join(dir, stamped),
	}
}

// TimestampFromPath parses the timestamp out of a timestamped export path
func TimestampFromPath(path string) (time.Time, error) {
	base := filepath.Base(path)
	i := strings.Index(base, ".addr-")
	if i < 0 || !strings.HasSuffix(base, ".json") {
		return time.Time{}, fmt.Errorf("%s is not a timestamped export", base)
	}
	return time.Parse(TimestampLayout, strings.TrimSuffix(base[i+len(".addr-"):], ".json"))
}

// Encode renders the record with two-space indentation and no trailing newline
func (r ExportRecord) Encode() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// WriteExport writes the record to both paths. The stable file is
// truncated; the timestamped file must not exist yet.
func WriteExport(paths ExportPaths, record ExportRecord) error {
	data, err := record.Encode()
	if err != nil {
		return fmt.Errorf("encoding export record: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(paths.Stable), 0755); err != nil {
		return fmt.Errorf("creating export directory: %w", err)
	}
	if err := os.WriteFile(paths.Stable, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", paths.Stable, err)
	}

	f, err := os.OpenFile(paths.Timestamped, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("creating %s: %w", paths.Timestamped, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", paths.Timestamped, err)
	}
	return f.Close()
}
