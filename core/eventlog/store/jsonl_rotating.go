package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/kilianp07/emsdispatch/core/eventlog"
)

// RotatingJSONLStore writes JSON lines through lumberjack so the file rotates
// by size and age.
type RotatingJSONLStore struct {
	mu     sync.Mutex
	logger *lumberjack.Logger
	path   string
}

// NewRotatingJSONLStore creates a store rotating at maxSizeMB, keeping
// maxBackups files for at most maxAgeDays.
func NewRotatingJSONLStore(path string, maxSizeMB, maxBackups, maxAgeDays int) (*RotatingJSONLStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	lj := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
	}
	return &RotatingJSONLStore{logger: lj, path: path}, nil
}

func (s *RotatingJSONLStore) Write(_ context.Context, ev eventlog.Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	// One write per line so a rotation never splits a record.
	_, err = s.logger.Write(append(b, '\n'))
	return err
}

// Query reads the rotated backups oldest first, then the live file.
func (s *RotatingJSONLStore) Query(ctx context.Context, q Query) ([]eventlog.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ext := filepath.Ext(s.path)
	prefix := s.path[:len(s.path)-len(ext)]
	backups, err := filepath.Glob(prefix + "-*" + ext)
	if err != nil {
		return nil, err
	}
	sort.Strings(backups)
	files := append(backups, s.path)

	var res []eventlog.Event
	for _, name := range files {
		f, err := os.Open(name)
		if err != nil {
			continue
		}
		evs, err := scan(f, q)
		_ = f.Close()
		if err != nil {
			return nil, err
		}
		res = append(res, evs...)
	}
	return res, nil
}

func (s *RotatingJSONLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logger.Close()
}
