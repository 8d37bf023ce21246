// Package state persists the incremental-sync watermark: the UTC
// timestamp of the last successful sync run.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

type watermarkFile struct {
	LastSync time.Time `json:"last_sync"`
}

// WatermarkStore reads and writes a single-value JSON watermark file.
// There is no concurrent-writer protection: the design assumes one sync
// run at a time, upheld by external scheduling.
type WatermarkStore struct {
	path string
}

func NewWatermarkStore(path string) *WatermarkStore {
	return &WatermarkStore{path: path}
}

// Load returns the persisted watermark. A missing file yields the zero
// time, which classifies every record as new ("sync everything").
func (s *WatermarkStore) Load() (time.Time, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("failed to read watermark file: %w", err)
	}

	var wm watermarkFile
	if err := json.Unmarshal(data, &wm); err != nil {
		return time.Time{}, fmt.Errorf("failed to parse watermark file: %w", err)
	}

	return wm.LastSync, nil
}

// Save overwrites the watermark. The write goes through a temp file and
// rename so a crash never leaves a truncated watermark behind.
func (s *WatermarkStore) Save(t time.Time) error {
	data, err := json.Marshal(watermarkFile{LastSync: t.UTC()})
	if err != nil {
		return fmt.Errorf("failed to marshal watermark: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".last_sync-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp watermark file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write watermark: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close watermark file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace watermark file: %w", err)
	}

	return nil
}
