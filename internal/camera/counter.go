package camera

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// counterFile is the on-disk format of the persistent exposure counter.
type counterFile struct {
	ExposureCount     int    `json:"exposure_count"`
	ExposureReference string `json:"exposure_reference"`
}

// Counter is the exposure counter that survives daemon restarts. A missing
// or corrupt file is not an error: the count resets to zero with a fresh
// reference date.
type Counter struct {
	path string

	mu        sync.Mutex
	count     int
	reference string
}

// LoadCounter reads the counter file at path, falling back to a fresh
// counter when the file is absent or unreadable.
func LoadCounter(path string) *Counter {
	c := &Counter{
		path:      path,
		reference: time.Now().UTC().Format("2006-01-02"),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return c
	}
	var f counterFile
	if err := json.Unmarshal(data, &f); err != nil {
		return c
	}
	c.count = f.ExposureCount
	c.reference = f.ExposureReference
	return c
}

// Value returns the current count and its reference label.
func (c *Counter) Value() (int, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count, c.reference
}

// Increment advances the counter by one exposure.
func (c *Counter) Increment() {
	c.mu.Lock()
	c.count++
	c.mu.Unlock()
}

// Persist writes the counter to disk atomically (write temp, rename).
func (c *Counter) Persist() error {
	c.mu.Lock()
	f := counterFile{ExposureCount: c.count, ExposureReference: c.reference}
	c.mu.Unlock()

	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal exposure counter: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(c.path), ".expcount-*")
	if err != nil {
		return fmt.Errorf("create counter temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write exposure counter: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close exposure counter: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace exposure counter: %w", err)
	}
	return nil
}
