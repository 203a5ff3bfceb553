// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

// Package runstate provides atomic state file operations for tracking
// active runs. The runner writes a state file into the run directory
// when execution starts and clears it when execution finishes; any
// other process can then tell whether a run directory belongs to a
// live run, a crashed run, or a completed one.
//
//  1. Run start: Write state.json with the runner's pid.
//  2. Run end (any conclusion): Clear the state file.
//  3. `runs list` later: Scan finds leftover state files. A live pid
//     means the run is still executing; a dead pid means the runner
//     crashed without finishing.
//
// The state file is written atomically (write to temporary file,
// fsync, rename) so readers never see a partial or corrupt state.
package runstate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"syscall"
	"time"
)

// FileName is the state file's name inside a run directory.
const FileName = "state.json"

// State records an active run: what is running and which process owns
// it.
type State struct {
	// RunID is the run's identifier.
	RunID string `json:"run_id"`

	// Workflow is the workflow name being run.
	Workflow string `json:"workflow"`

	// PID is the runner process ID. Liveness checks signal this pid.
	PID int `json:"pid"`

	// StartedAt is when execution began.
	StartedAt time.Time `json:"started_at"`
}

// Write atomically writes the state file into the run directory. The
// file is written to a temporary location in the same directory,
// fsynced for durability, and renamed into place. Readers never see a
// partial write.
func Write(runDir string, state State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling run state: %w", err)
	}
	// Trailing newline for clean file content.
	data = append(data, '\n')

	path := filepath.Join(runDir, FileName)
	temporaryPath := path + ".tmp"

	file, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("creating temporary state file: %w", err)
	}

	// Write, sync, close — in that order. If any step fails, remove the
	// temporary file and report the first error.
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("writing temporary state file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("syncing temporary state file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("closing temporary state file: %w", err)
	}

	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("renaming state file into place: %w", err)
	}

	// Sync the run directory to ensure the rename is durable. This
	// matters when the machine loses power between rename and the OS
	// flushing directory metadata.
	directory, err := os.Open(runDir)
	if err == nil {
		directory.Sync()
		directory.Close()
	}

	return nil
}

// Read reads and parses the state file from a run directory. When the
// file does not exist, the returned error wraps os.ErrNotExist
// (testable with errors.Is).
func Read(runDir string) (State, error) {
	path := filepath.Join(runDir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return State{}, err
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, fmt.Errorf("parsing state file %s: %w", path, err)
	}
	return state, nil
}

// Clear removes the state file from a run directory. Idempotent:
// returns nil when the file does not exist.
func Clear(runDir string) error {
	if err := os.Remove(filepath.Join(runDir, FileName)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing state file: %w", err)
	}
	return nil
}

// Alive reports whether the process with the given pid exists. Signal
// 0 checks process existence without sending a real signal; ESRCH
// means the process is gone. EPERM counts as alive (the process
// exists, it just belongs to someone else).
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	// os.FindProcess on Unix always succeeds (just wraps the PID).
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = process.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	return err == syscall.EPERM
}

// Active describes a run directory whose state file is still present.
type Active struct {
	// State is the parsed state file.
	State State

	// Dir is the run directory containing the state file.
	Dir string

	// Crashed is true when the recorded pid is no longer alive: the
	// runner died without clearing the state file.
	Crashed bool
}

// Scan inspects every run directory under runsDir and returns the runs
// whose state files remain, newest first. Directories without a state
// file (completed or foreign) are skipped, as are unreadable state
// files.
func Scan(runsDir string) ([]Active, error) {
	entries, err := os.ReadDir(runsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading runs directory %s: %w", runsDir, err)
	}

	var active []Active
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dir := filepath.Join(runsDir, entry.Name())
		state, err := Read(dir)
		if err != nil {
			// Absent is the normal completed case; corrupt files are
			// skipped rather than failing the whole scan.
			continue
		}
		active = append(active, Active{
			State:   state,
			Dir:     dir,
			Crashed: !Alive(state.PID),
		})
	}

	sort.Slice(active, func(i, j int) bool {
		return active[i].State.StartedAt.After(active[j].State.StartedAt)
	})
	return active, nil
}
