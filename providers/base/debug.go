package base

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DebugLogger appends JSON records to a file, one per line.
// It is safe for concurrent use; a nil logger discards records.
type DebugLogger struct {
	mu  sync.Mutex
	f   *os.File
	enc *json.Encoder

	turnID string
	step   int
}

// NewDebugLogger opens path for appending, creating parent directories.
// An empty path disables logging and yields a nil logger.
func NewDebugLogger(path string) (*DebugLogger, error) {
	if path == "" {
		return nil, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &DebugLogger{f: f, enc: json.NewEncoder(f)}, nil
}

func (l *DebugLogger) Close() error {
	if l == nil || l.f == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Close()
}

// WithScope tags the DebugRecords logged through l with a turn id and
// step number. It returns l.
func (l *DebugLogger) WithScope(turnID string, step int) *DebugLogger {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.turnID, l.step = turnID, step
	return l
}

// Log writes v as one line. Untagged DebugRecords get the logger's scope.
func (l *DebugLogger) Log(v any) error {
	if l == nil || l.enc == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if rec, ok := v.(DebugRecord); ok {
		if rec.TurnID == "" {
			rec.TurnID = l.turnID
		}
		if rec.Step == 0 {
			rec.Step = l.step
		}
		v = rec
	}
	return l.enc.Encode(v)
}

// DebugRecord is one JSONL entry.
type DebugRecord struct {
	Time     string `json:"time"`
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
	TurnID   string `json:"turn_id,omitempty"`
	Step     int    `json:"step,omitempty"`
	Type     string `json:"type"`
	Data     any    `json:"data,omitempty"`
}

func NewDebugRecord(recordType string, data any) DebugRecord {
	return DebugRecord{
		Time: time.Now().UTC().Format(time.RFC3339Nano),
		Type: recordType,
		Data: data,
	}
}
