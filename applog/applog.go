// Package applog provides a day-rotated file writer for use with the
// standard library's log.Logger, plus retrieval of a given day's log text
// for the HTTP /api/log endpoint.
package applog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// DailyWriter is an io.Writer that appends every line to today's log file
// (YYYY-MM-DD.log) under Dir, creating Dir if needed. It rotates out files
// older than RotateDays on a cadence of every RotateEvery writes (matching
// the original add-on's "don't stat the directory on every line" batching).
type DailyWriter struct {
	Dir         string
	RotateDays  int
	RotateEvery int

	mu      sync.Mutex
	file    *os.File
	day     string
	writeNo int
}

const defaultRotateEvery = 1000

// Write implements io.Writer, opening (or reopening, across a day
// boundary) the current day's log file as needed.
func (w *DailyWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.ensureOpenLocked(); err != nil {
		return 0, err
	}
	n, err := w.file.Write(p)
	if err != nil {
		return n, err
	}

	if w.RotateDays > 0 {
		rotateEvery := w.RotateEvery
		if rotateEvery <= 0 {
			rotateEvery = defaultRotateEvery
		}
		if w.writeNo%rotateEvery == 0 {
			w.rotateLocked()
		}
		w.writeNo++
	}
	return n, nil
}

func (w *DailyWriter) ensureOpenLocked() error {
	today := todayString()
	if w.file != nil && w.day == today {
		return nil
	}
	if w.file != nil {
		w.file.Close()
	}
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return fmt.Errorf("applog: mkdir %s: %w", w.Dir, err)
	}
	f, err := os.OpenFile(filepath.Join(w.Dir, today+".log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("applog: open log file: %w", err)
	}
	w.file = f
	w.day = today
	return nil
}

// rotateLocked deletes log files older than RotateDays. Errors are
// swallowed: rotation is best-effort housekeeping, not a correctness
// requirement.
func (w *DailyWriter) rotateLocked() {
	entries, err := os.ReadDir(w.Dir)
	if err != nil {
		return
	}
	cutoff := time.Now().AddDate(0, 0, -w.RotateDays)
	for _, e := range entries {
		name := e.Name()
		if !strings.HasSuffix(name, ".log") {
			continue
		}
		day, err := time.Parse("2006-01-02", name[:len(name)-len(".log")])
		if err != nil {
			continue
		}
		if day.Before(cutoff) {
			os.Remove(filepath.Join(w.Dir, name))
		}
	}
}

func todayString() string {
	y, m, d := time.Now().Date()
	return fmt.Sprintf("%04d-%02d-%02d", y, int(m), d)
}

// Read returns the contents of the log file for the given date (expected
// format "2006-01-02"), or ("", false) if no such file exists.
func Read(dir, date string) (string, bool) {
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return "", false
	}
	data, err := os.ReadFile(filepath.Join(dir, date+".log"))
	if err != nil {
		return "", false
	}
	return string(data), true
}
