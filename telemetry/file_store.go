package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/TSGCFO/langchain-agent/logging"
)

// Stream file names inside the store directory.
const (
	InteractionsFile = "interactions.jsonl"
	ToolUsageFile    = "tool_usage.jsonl"
	EvaluationsFile  = "evaluations.jsonl"
)

const tailBlockSize = 64 * 1024

// FileStoreOptions configures a FileStore.
type FileStoreOptions struct {
	Logger logging.Logger
	Now    func() time.Time
}

type stream struct {
	mu   sync.RWMutex
	path string
	file *os.File
}

// FileStore persists each record stream as a JSONL file.
type FileStore struct {
	dir  string
	opts FileStoreOptions

	interactions *stream
	toolUsage    *stream
	evaluations  *stream
}

// NewFileStore creates dir if needed and returns a store writing into it.
func NewFileStore(dir string, optFns ...func(o *FileStoreOptions)) (*FileStore, error) {
	opts := FileStoreOptions{Logger: logging.NoOpLogger{}, Now: time.Now}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("telemetry: create dir: %w", err)
	}
	return &FileStore{
		dir:          dir,
		opts:         opts,
		interactions: &stream{path: filepath.Join(dir, InteractionsFile)},
		toolUsage:    &stream{path: filepath.Join(dir, ToolUsageFile)},
		evaluations:  &stream{path: filepath.Join(dir, EvaluationsFile)},
	}, nil
}

// Dir returns the directory holding the stream files.
func (s *FileStore) Dir() string { return s.dir }

// RecordInteraction implements Recorder.
func (s *FileStore) RecordInteraction(_ context.Context, rec InteractionRecord) error {
	stamp(&rec.ID, &rec.Timestamp, s.opts.Now)
	return s.interactions.append(rec)
}

// RecordToolUsage implements Recorder.
func (s *FileStore) RecordToolUsage(_ context.Context, rec ToolUsageRecord) error {
	stamp(&rec.ID, &rec.Timestamp, s.opts.Now)
	return s.toolUsage.append(rec)
}

// RecordEvaluation implements Recorder.
func (s *FileStore) RecordEvaluation(_ context.Context, rec EvaluationRecord) error {
	stamp(&rec.ID, &rec.Timestamp, s.opts.Now)
	return s.evaluations.append(rec)
}

// TailInteractions implements Reader.
func (s *FileStore) TailInteractions(ctx context.Context, n int) ([]InteractionRecord, error) {
	recs, err := tailDecode[InteractionRecord](ctx, s.interactions, n, s.opts.Logger)
	if err != nil {
		return nil, err
	}
	return collapseInteractions(recs), nil
}

// TailToolUsage implements Reader.
func (s *FileStore) TailToolUsage(ctx context.Context, n int) ([]ToolUsageRecord, error) {
	return tailDecode[ToolUsageRecord](ctx, s.toolUsage, n, s.opts.Logger)
}

// TailEvaluations implements Reader.
func (s *FileStore) TailEvaluations(ctx context.Context, n int) ([]EvaluationRecord, error) {
	return tailDecode[EvaluationRecord](ctx, s.evaluations, n, s.opts.Logger)
}

// Close closes the open stream files.
func (s *FileStore) Close() error {
	var errs []error
	for _, st := range []*stream{s.interactions, s.toolUsage, s.evaluations} {
		st.mu.Lock()
		if st.file != nil {
			errs = append(errs, st.file.Close())
			st.file = nil
		}
		st.mu.Unlock()
	}
	return errors.Join(errs...)
}

func (st *stream) append(rec any) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("telemetry: marshal record: %w", err)
	}
	line = append(line, '\n')

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.file == nil {
		f, err := os.OpenFile(st.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("telemetry: open %s: %w", filepath.Base(st.path), err)
		}
		st.file = f
	}
	if _, err := st.file.Write(line); err != nil {
		return fmt.Errorf("telemetry: append %s: %w", filepath.Base(st.path), err)
	}
	return nil
}

func tailDecode[T any](ctx context.Context, st *stream, n int, logger logging.Logger) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	st.mu.RLock()
	lines, err := tailLines(st.path, n)
	st.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	out := make([]T, 0, len(lines))
	for _, line := range lines {
		var rec T
		if err := json.Unmarshal(line, &rec); err != nil {
			logger.Warn("Skipping malformed telemetry line", "file", filepath.Base(st.path), "error", err.Error())
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// tailLines returns the last n non-empty lines of the file at path, reading
// backwards in fixed-size blocks. A missing file has no lines.
func tailLines(path string, n int) ([][]byte, error) {
	if n <= 0 {
		return nil, nil
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("telemetry: open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	var buf []byte
	pos := info.Size()
	newlines := 0
	for pos > 0 && newlines <= n {
		size := int64(tailBlockSize)
		if pos < size {
			size = pos
		}
		pos -= size
		chunk := make([]byte, size)
		if _, err := f.ReadAt(chunk, pos); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("telemetry: read %s: %w", filepath.Base(path), err)
		}
		newlines += bytes.Count(chunk, []byte{'\n'})
		buf = append(chunk, buf...)
	}

	parts := bytes.Split(buf, []byte{'\n'})
	if pos > 0 && len(parts) > 0 {
		// the first segment may start mid-line
		parts = parts[1:]
	}
	lines := make([][]byte, 0, n)
	for _, p := range parts {
		if len(bytes.TrimSpace(p)) == 0 {
			continue
		}
		lines = append(lines, p)
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}
