// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package runner

import (
	"fmt"
	"path/filepath"
)

// JobLogDir returns the directory holding a job's step logs inside a
// run directory. jobKey is the plan key: the job ID with the matrix
// label when expanded.
func JobLogDir(runDir, jobKey string) string {
	return filepath.Join(runDir, "logs", safeFileName(jobKey))
}

// StepLogName returns the file name a step's captured output is
// written under: the 1-based step number and a slug of the display
// name. index is 0-based.
func StepLogName(index int, stepName string) string {
	return fmt.Sprintf("%02d-%s.log", index+1, safeFileName(stepName))
}
