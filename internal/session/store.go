// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package session

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Listing limits.
const (
	DefaultListLimit = 20
	MaxListLimit     = 200

	DefaultRawLimit = 2000
	MinRawLimit     = 100
	MaxRawLimit     = 20000

	DefaultRawStride = 5
	MinRawStride     = 1
	MaxRawStride     = 100
)

// Store reads previously recorded sessions off disk.
type Store struct {
	baseDir string
}

// NewStore creates a store over the sessions directory.
func NewStore(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// sessionDir maps a session id to its directory, rejecting ids that
// would escape the base directory.
func (s *Store) sessionDir(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, "/\\") || strings.Contains(id, "..") {
		return "", fmt.Errorf("session: invalid session id %q", id)
	}
	return filepath.Join(s.baseDir, "session_"+id), nil
}

// List scans the sessions directory, reads each summary, and returns up
// to limit entries sorted by end time descending. Sessions without a
// readable summary (including the in-flight one) are skipped.
func (s *Store) List(limit int) ([]*Summary, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("session: scan %s: %w", s.baseDir, err)
	}

	var summaries []*Summary
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), "session_") {
			continue
		}
		sum, err := readSummary(filepath.Join(s.baseDir, e.Name(), "summary.json"))
		if err != nil {
			continue
		}
		summaries = append(summaries, sum)
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].EndTime > summaries[j].EndTime
	})
	if len(summaries) > limit {
		summaries = summaries[:limit]
	}
	return summaries, nil
}

// Get returns the full summary for one session.
func (s *Store) Get(id string) (*Summary, error) {
	dir, err := s.sessionDir(id)
	if err != nil {
		return nil, err
	}
	return readSummary(filepath.Join(dir, "summary.json"))
}

// RawPoints streams a stride-downsampled subset of raw.jsonl. Each
// point is the decoded JSON line. limit and stride are clamped to
// their documented ranges.
func (s *Store) RawPoints(id string, limit, stride int) ([]json.RawMessage, error) {
	if limit <= 0 {
		limit = DefaultRawLimit
	}
	if limit < MinRawLimit {
		limit = MinRawLimit
	}
	if limit > MaxRawLimit {
		limit = MaxRawLimit
	}
	if stride <= 0 {
		stride = DefaultRawStride
	}
	if stride < MinRawStride {
		stride = MinRawStride
	}
	if stride > MaxRawStride {
		stride = MaxRawStride
	}

	dir, err := s.sessionDir(id)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(dir, "raw.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("session: open raw log: %w", err)
	}
	defer f.Close()

	var points []json.RawMessage
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		if lineNo%stride == 0 {
			line := scanner.Bytes()
			if json.Valid(line) {
				points = append(points, json.RawMessage(append([]byte(nil), line...)))
				if len(points) >= limit {
					break
				}
			}
		}
		lineNo++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("session: read raw log: %w", err)
	}
	return points, nil
}

func readSummary(path string) (*Summary, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("session: read summary: %w", err)
	}
	var sum Summary
	if err := json.Unmarshal(raw, &sum); err != nil {
		return nil, fmt.Errorf("session: parse summary: %w", err)
	}
	return &sum, nil
}
