// Package fsx writes audit journals and graph exports to the local
// filesystem with crash-safe semantics.
package fsx

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/davidahmann/opsgraph/core/jcs"
)

const (
	journalMode      = 0o600
	lockWaitTimeout  = 10 * time.Second
	lockPollInterval = 5 * time.Millisecond
	lockStaleAfter   = time.Minute
)

// AppendJSONL appends record as one canonical JSON line to the journal at
// path. Concurrent writers, in this or other processes, are serialized
// through a sibling lock file and every line is fsynced before returning.
func AppendJSONL(path string, record any) error {
	cleanPath, err := journalPath(path)
	if err != nil {
		return err
	}
	encoded, err := jcs.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode journal record: %w", err)
	}
	line := append(encoded, '\n')

	if parent := filepath.Dir(cleanPath); parent != "." {
		if err := os.MkdirAll(parent, 0o750); err != nil {
			return fmt.Errorf("create journal directory: %w", err)
		}
	}
	return withFileLock(cleanPath+".lock", func() error {
		// #nosec G304 -- journal path is validated local relative or absolute.
		file, err := os.OpenFile(cleanPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, journalMode)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		if _, err := file.Write(line); err != nil {
			_ = file.Close()
			return fmt.Errorf("append journal line: %w", err)
		}
		if err := file.Sync(); err != nil {
			_ = file.Close()
			return fmt.Errorf("sync journal: %w", err)
		}
		return file.Close()
	})
}

func withFileLock(lockPath string, fn func() error) error {
	deadline := time.Now().Add(lockWaitTimeout)
	for {
		// #nosec G304 -- lock path is derived from a validated journal path.
		lock, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			_ = lock.Close()
			defer func() { _ = os.Remove(lockPath) }()
			return fn()
		}
		if !os.IsExist(err) {
			return fmt.Errorf("acquire journal lock: %w", err)
		}
		if info, statErr := os.Stat(lockPath); statErr == nil && time.Since(info.ModTime()) > lockStaleAfter {
			_ = os.Remove(lockPath)
			continue
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("journal lock %s held for more than %s", lockPath, lockWaitTimeout)
		}
		time.Sleep(lockPollInterval)
	}
}

func journalPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("journal path is required")
	}
	cleanPath := filepath.Clean(trimmed)
	if filepath.IsLocal(cleanPath) || filepath.IsAbs(cleanPath) {
		return cleanPath, nil
	}
	return "", fmt.Errorf("journal path must be local relative or absolute: %s", path)
}
