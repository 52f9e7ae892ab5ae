package tools

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	lockFile      = "search/index.lock"
	lockTimeout   = 5 * time.Second
	lockRetryWait = 500 * time.Millisecond
)

// isProcessRunning is implemented per platform in docsearch_unix.go and
// docsearch_windows.go

func lockPath() string {
	return filepath.Join(dataDir, lockFile)
}

// readLockPID returns the PID stored in the lock file. ok is false when the
// file is missing; err is set when it cannot be read or parsed.
func readLockPID() (pid int, ok bool, err error) {
	data, err := os.ReadFile(lockPath())
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to read lock file: %w", err)
	}

	pid, err = strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, true, fmt.Errorf("corrupted lock file: %w", err)
	}
	return pid, true, nil
}

// cleanStaleLock removes the lock file unless a live process owns it
func cleanStaleLock() error {
	pid, ok, err := readLockPID()
	if !ok && err == nil {
		return nil
	}
	if err != nil {
		if !ok {
			return err
		}
		log.Warnf("Warning: %v, removing...", err)
		return os.Remove(lockPath())
	}

	if pid != os.Getpid() && isProcessRunning(pid) {
		return fmt.Errorf("lock held by running process %d", pid)
	}

	log.Infof("Stale lock detected (PID %d not running), cleaning...", pid)
	return os.Remove(lockPath())
}

// acquireLock takes the inter-process index lock, waiting up to lockTimeout
// for another server to release it
func acquireLock() error {
	ourPID := os.Getpid()

	if pid, ok, err := readLockPID(); ok && err == nil && pid == ourPID {
		log.Debugf("Lock already held by this process (PID %d)", ourPID)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(lockPath()), 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	start := time.Now()
	for {
		if err := cleanStaleLock(); err != nil {
			elapsed := time.Since(start)
			if elapsed >= lockTimeout {
				return fmt.Errorf("timeout waiting for index lock after %v: %w", elapsed, err)
			}
			log.Infof("Index locked by another process, waiting... (%v elapsed)", elapsed.Round(100*time.Millisecond))
			time.Sleep(lockRetryWait)
			continue
		}

		if err := os.WriteFile(lockPath(), []byte(strconv.Itoa(ourPID)), 0644); err != nil {
			return fmt.Errorf("failed to create lock file: %w", err)
		}

		log.Infof("✓ Index lock acquired (PID %d)", ourPID)
		return nil
	}
}

// releaseLock removes the lock file if this process owns it
func releaseLock() error {
	pid, ok, err := readLockPID()
	if !ok && err == nil {
		return nil
	}
	if err == nil && pid != os.Getpid() {
		log.Warnf("Warning: Lock file contains different PID (%d vs %d), not removing", pid, os.Getpid())
		return nil
	}

	if err := os.Remove(lockPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}

	log.Infof("✓ Index lock released")
	return nil
}
