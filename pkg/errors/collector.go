package errors

import (
	"fmt"
	"strings"
	"sync"
)

// Collector accumulates non-fatal errors raised while a run degrades
// gracefully. It is safe for concurrent use.
type Collector struct {
	mu     sync.Mutex
	errors []*ReconcilerError
	limit  int
}

// NewCollector creates a collector that keeps at most limit entries.
// A limit of zero or less keeps everything.
func NewCollector(limit int) *Collector {
	return &Collector{limit: limit}
}

// Add records err and reports whether it was kept. Adding to a nil
// collector discards the error.
func (c *Collector) Add(err *ReconcilerError) bool {
	if c == nil || err == nil {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.limit > 0 && len(c.errors) >= c.limit {
		return false
	}
	c.errors = append(c.errors, err)
	return true
}

// HasErrors returns true if anything has been collected
func (c *Collector) HasErrors() bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.errors) > 0
}

// Errors returns a copy of the collected errors in insertion order
func (c *Collector) Errors() []*ReconcilerError {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*ReconcilerError(nil), c.errors...)
}

// FormatForUser renders collected errors one per line, grouped under a count header
func FormatForUser(errs []*ReconcilerError) string {
	if len(errs) == 0 {
		return "no warnings"
	}

	lines := []string{fmt.Sprintf("%d warning(s):", len(errs))}
	for _, err := range errs {
		line := fmt.Sprintf("  [%s] %s", err.Code, err.Message)
		if err.Suggestion != "" {
			line += "\n      hint: " + err.Suggestion
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
