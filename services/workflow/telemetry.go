package workflow

import (
	"fmt"
	"sync"
	"time"
)

// DefaultLogSize is the number of run log lines kept.
const DefaultLogSize = 16

// RunLog is a bounded, rolling log of human-readable run telemetry.
// It is a UI affordance, not part of the execution contract.
type RunLog struct {
	mu    sync.Mutex
	size  int
	lines []string
	now   func() time.Time
}

// NewRunLog creates a log keeping the newest size lines.
func NewRunLog(size int) *RunLog {
	if size <= 0 {
		size = DefaultLogSize
	}
	return &RunLog{size: size, now: time.Now}
}

// Add appends a timestamped line, dropping the oldest when full.
func (l *RunLog) Add(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()

	line := fmt.Sprintf("[%s] %s", l.now().Format("15:04:05"), fmt.Sprintf(format, args...))
	l.lines = append(l.lines, line)
	if over := len(l.lines) - l.size; over > 0 {
		l.lines = append(l.lines[:0:0], l.lines[over:]...)
	}
}

// Lines returns a copy of the current lines, oldest first.
func (l *RunLog) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string{}, l.lines...)
}

// Clear drops every line.
func (l *RunLog) Clear() {
	l.mu.Lock()
	l.lines = nil
	l.mu.Unlock()
}
