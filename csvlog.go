package apkfleet

import (
	"encoding/csv"
	"os"

	"github.com/pkg/errors"
)

// csvHeader is the canonical column layout consumers of the log expect.
// It must stay byte-compatible.
var csvHeader = []string{
	"Timestamp", "Device", "Status", "Details",
	"UninstallVerified", "InstallVerified", "LaunchStatus",
}

// CSVLog appends result records to the run's log file. Row order is
// completion order; every row is self-describing via its device column.
type CSVLog struct {
	path string
	f    *os.File
	w    *csv.Writer
}

// NewCSVLog creates (truncating) the log file and writes the header row.
func NewCSVLog(path string) (*CSVLog, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "create install log")
	}
	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		f.Close()
		return nil, errors.Wrap(err, "write install log header")
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return nil, errors.Wrap(err, "flush install log header")
	}
	return &CSVLog{path: path, f: f, w: w}, nil
}

// Append writes a batch of records and flushes them to disk.
func (l *CSVLog) Append(recs []ResultRecord) error {
	for _, rec := range recs {
		if err := l.w.Write(rec.csvRow()); err != nil {
			return errors.Wrap(err, "write install log row")
		}
	}
	l.w.Flush()
	return errors.Wrap(l.w.Error(), "flush install log")
}

// Path returns the log file location.
func (l *CSVLog) Path() string { return l.path }

// Close flushes and closes the underlying file.
func (l *CSVLog) Close() error {
	l.w.Flush()
	if err := l.w.Error(); err != nil {
		l.f.Close()
		return errors.Wrap(err, "flush install log")
	}
	return errors.Wrap(l.f.Close(), "close install log")
}
