// Package monitoring routes errors and panics to the configured error
// tracker. Without Init every call is a no-op.
package monitoring

import (
	"sync"
	"time"
)

// Monitor reports errors and panics to an external tracker.
type Monitor interface {
	CaptureException(err error, tags map[string]string)
	CapturePanic(v any, tags map[string]string)
	Flush(timeout time.Duration)
}

type NopMonitor struct{}

func (NopMonitor) CaptureException(error, map[string]string) {}
func (NopMonitor) CapturePanic(any, map[string]string)       {}
func (NopMonitor) Flush(time.Duration)                       {}

// PanicFlushTimeout bounds the flush done before a captured panic resumes.
const PanicFlushTimeout = 2 * time.Second

var (
	mu      sync.RWMutex
	current Monitor = NopMonitor{}
)

// Init sets the global monitor implementation.
func Init(m Monitor) {
	if m == nil {
		return
	}
	mu.Lock()
	current = m
	mu.Unlock()
}

func get() Monitor {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// CaptureException records the error with optional tags.
func CaptureException(err error, tags map[string]string) {
	if err == nil {
		return
	}
	get().CaptureException(err, tags)
}

// Recover reports a recovered panic value and panics again. Use it as
//
//	defer func() { monitoring.Recover("worker", recover()) }()
func Recover(component string, v any) {
	if v == nil {
		return
	}
	m := get()
	m.CapturePanic(v, map[string]string{"component": component})
	m.Flush(PanicFlushTimeout)
	panic(v)
}

// Flush flushes buffered events.
func Flush(d time.Duration) {
	get().Flush(d)
}
