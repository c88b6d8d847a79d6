package notify

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"chainExplorer/internal/model"
)

// JSONL appends reorg events to a file, one JSON object per line.
type JSONL struct {
	path string
	mu   sync.Mutex
}

// NewJSONL builds a notifier writing to path.
func NewJSONL(path string) *JSONL {
	return &JSONL{path: path}
}

// NotifyReorg appends event.
func (s *JSONL) NotifyReorg(_ context.Context, event model.ReorgEvent) error {
	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create reorg log dir: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open reorg log: %w", err)
	}
	defer file.Close()

	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal reorg event: %w", err)
	}
	writer := bufio.NewWriter(file)
	if _, err := writer.Write(line); err != nil {
		return fmt.Errorf("write reorg event: %w", err)
	}
	if err := writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("write newline: %w", err)
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush reorg log: %w", err)
	}
	return nil
}

// ReorgNotifier is implemented by every notifier in this package.
type ReorgNotifier interface {
	NotifyReorg(ctx context.Context, event model.ReorgEvent) error
}

// Multi delivers each event to all notifiers and joins their errors.
type Multi []ReorgNotifier

// NotifyReorg implements the ingestion notifier.
func (m Multi) NotifyReorg(ctx context.Context, event model.ReorgEvent) error {
	var errs []error
	for _, n := range m {
		if err := n.NotifyReorg(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
