package store

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/kilianp07/emsdispatch/core/eventlog"
)

// JSONLStore appends events as JSON lines to a single file.
type JSONLStore struct {
	path string
	mu   sync.Mutex
}

// NewJSONLStore creates the file if needed. Existing content is kept.
func NewJSONLStore(path string) (*JSONLStore, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}
	if cerr := f.Close(); cerr != nil {
		return nil, cerr
	}
	return &JSONLStore{path: path}, nil
}

func (s *JSONLStore) Write(ctx context.Context, ev eventlog.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return json.NewEncoder(f).Encode(ev)
}

func (s *JSONLStore) Query(ctx context.Context, q Query) ([]eventlog.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return scan(f, q)
}

func (s *JSONLStore) Close() error { return nil }

// scan decodes JSON lines from r, skipping malformed ones.
func scan(r io.Reader, q Query) ([]eventlog.Event, error) {
	var res []eventlog.Event
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		var ev eventlog.Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			continue
		}
		if q.Match(ev) {
			res = append(res, ev)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return res, nil
}
