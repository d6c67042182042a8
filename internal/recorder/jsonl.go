package recorder

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// JSONLRecorder appends records as JSON lines to one file per UTC day
// (trades_YYYY-MM-DD.jsonl) under dir.
type JSONLRecorder struct {
	mu   sync.Mutex
	dir  string
	day  string
	file *os.File
	enc  *json.Encoder
}

// NewJSONLRecorder ensures dir exists and returns a recorder writing into it.
func NewJSONLRecorder(dir string) (*JSONLRecorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create trade log dir: %w", err)
	}
	return &JSONLRecorder{dir: dir}, nil
}

// PathFor returns the log file that holds records stamped at ts.
func (r *JSONLRecorder) PathFor(ts time.Time) string {
	return filepath.Join(r.dir, "trades_"+ts.UTC().Format(time.DateOnly)+".jsonl")
}

// Record writes a single record, rotating the file when the day changes.
func (r *JSONLRecorder) Record(rec TradeRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	day := rec.Ts.UTC().Format(time.DateOnly)
	if r.file == nil || day != r.day {
		if err := r.openLocked(rec.Ts); err != nil {
			return err
		}
		r.day = day
	}
	if err := r.enc.Encode(rec); err != nil {
		return fmt.Errorf("encode trade record: %w", err)
	}
	return nil
}

func (r *JSONLRecorder) openLocked(ts time.Time) error {
	if r.file != nil {
		_ = r.file.Close()
		r.file = nil
	}
	file, err := os.OpenFile(r.PathFor(ts), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open trade log: %w", err)
	}
	r.file = file
	r.enc = json.NewEncoder(file)
	return nil
}

// Close closes the current file handle.
func (r *JSONLRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}
