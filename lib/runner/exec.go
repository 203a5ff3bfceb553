// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/x/ansi"
	"golang.org/x/sys/unix"

	"github.com/greenlight-ci/greenlight/lib/expand"
	"github.com/greenlight-ci/greenlight/lib/schema/workflow"
)

// defaultStepTimeout applies when neither the step, the job, nor the
// engine configuration sets a timeout.
const defaultStepTimeout = 5 * time.Minute

// maxOutputValueSize caps a single value in a step's outputs file.
// 64 KB is sufficient for commit SHAs, branch names, version strings,
// and other small text values steps typically pass around. Larger
// payloads belong in artifacts.
const maxOutputValueSize = 64 * 1024

// outputFileVariable is the environment variable naming the file
// where a run step writes key=value output lines.
const outputFileVariable = "GREENLIGHT_OUTPUT"

var outputNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

// executeStep runs a single step: evaluates the when guard, executes
// the command (or the composite action), runs the check command, and
// parses the outputs file. The returned record carries the final
// status with continue-on-error already applied.
func (r *jobRunner) executeStep(ctx context.Context, step workflow.Step, index int) workflow.StepRecord {
	name := step.DisplayName()
	started := time.Now()

	timeout := r.engine.config.DefaultTimeout
	if timeout <= 0 {
		timeout = defaultStepTimeout
	}
	if r.planned.Job.Timeout > 0 {
		timeout = time.Duration(r.planned.Job.Timeout) * time.Minute
	}
	if step.Timeout > 0 {
		timeout = time.Duration(step.Timeout) * time.Minute
	}

	// Parse the grace period for graceful termination. Validation
	// should have caught a bad value, but fail loud if not.
	var gracePeriod time.Duration
	if step.GracePeriod != "" {
		parsed, err := time.ParseDuration(step.GracePeriod)
		if err != nil {
			return r.finishStep(workflow.StepRecord{
				Name:   name,
				Status: workflow.StepFailed,
				Error:  fmt.Sprintf("invalid grace_period %q: %v", step.GracePeriod, err),
			}, started, step.ContinueOnError)
		}
		gracePeriod = parsed
	}

	expanded, err := expand.ExpandStep(step, r.scope)
	if err != nil {
		return r.finishStep(workflow.StepRecord{
			Name:   name,
			Status: workflow.StepFailed,
			Error:  err.Error(),
		}, started, step.ContinueOnError)
	}

	logFile, err := os.Create(filepath.Join(r.logDir, StepLogName(index, name)))
	if err != nil {
		return r.finishStep(workflow.StepRecord{
			Name:   name,
			Status: workflow.StepFailed,
			Error:  fmt.Sprintf("creating step log: %v", err),
		}, started, step.ContinueOnError)
	}
	defer logFile.Close()

	stdout := r.newLineWriter(logFile, "stdout", name, index)
	stderr := r.newLineWriter(logFile, "stderr", name, index)
	defer stdout.Flush()
	defer stderr.Flush()

	stepContext, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if expanded.IsUses() {
		record := r.runUsesStep(ctx, stepContext, &expanded, timeout, stdout, stderr)
		record.Name = name
		return r.finishStep(record, started, step.ContinueOnError)
	}

	stepScope := r.scope.Clone().Overlay(expanded.Env)

	// Guards are quick verification commands: immediate SIGKILL on
	// timeout, no grace period.
	if expanded.When != "" {
		exitCode, err := runShell(stepContext, r.stepShell(&expanded), expanded.When, r.stepWorkdir(&expanded), processEnv(stepScope), 0, stdout, stderr)
		if err != nil {
			status, message := classifyShellError(ctx, stepContext, "when guard", err, timeout)
			return r.finishStep(workflow.StepRecord{
				Name:   name,
				Status: status,
				Error:  message,
			}, started, step.ContinueOnError)
		}
		if exitCode != 0 {
			r.notice(fmt.Sprintf("step %q skipped: guard condition not met", name))
			return r.finishStep(workflow.StepRecord{
				Name:   name,
				Status: workflow.StepSkipped,
			}, started, false)
		}
	}

	outputPath, cleanupOutput, err := createOutputFile()
	if err != nil {
		return r.finishStep(workflow.StepRecord{
			Name:   name,
			Status: workflow.StepFailed,
			Error:  fmt.Sprintf("creating outputs file: %v", err),
		}, started, step.ContinueOnError)
	}
	defer cleanupOutput()
	env := append(processEnv(stepScope), outputFileVariable+"="+outputPath)

	exitCode, err := runShell(stepContext, r.stepShell(&expanded), expanded.Run, r.stepWorkdir(&expanded), env, gracePeriod, stdout, stderr)
	if err != nil {
		status, message := classifyShellError(ctx, stepContext, "run", err, timeout)
		return r.finishStep(workflow.StepRecord{
			Name:   name,
			Status: status,
			Error:  message,
		}, started, step.ContinueOnError)
	}
	if exitCode != 0 {
		return r.finishStep(workflow.StepRecord{
			Name:     name,
			Status:   workflow.StepFailed,
			ExitCode: exitCode,
			Error:    fmt.Sprintf("run: exit code %d", exitCode),
		}, started, step.ContinueOnError)
	}

	// Checks are quick verification commands: immediate SIGKILL on
	// timeout.
	if expanded.Check != "" {
		checkExitCode, err := runShell(stepContext, r.stepShell(&expanded), expanded.Check, r.stepWorkdir(&expanded), env, 0, stdout, stderr)
		if err != nil {
			status, message := classifyShellError(ctx, stepContext, "check", err, timeout)
			return r.finishStep(workflow.StepRecord{
				Name:   name,
				Status: status,
				Error:  message,
			}, started, step.ContinueOnError)
		}
		if checkExitCode != 0 {
			return r.finishStep(workflow.StepRecord{
				Name:     name,
				Status:   workflow.StepFailed,
				ExitCode: checkExitCode,
				Error:    fmt.Sprintf("check: exit code %d", checkExitCode),
			}, started, step.ContinueOnError)
		}
	}

	outputs, err := parseOutputFile(outputPath)
	if err != nil {
		return r.finishStep(workflow.StepRecord{
			Name:   name,
			Status: workflow.StepFailed,
			Error:  fmt.Sprintf("parsing outputs: %v", err),
		}, started, step.ContinueOnError)
	}

	return r.finishStep(workflow.StepRecord{
		Name:    name,
		Status:  workflow.StepOK,
		Outputs: outputs,
	}, started, false)
}

// finishStep stamps the duration and converts a plain failure to
// "failed (allowed)" when the step carries continue-on-error.
// Cancelled steps stay cancelled: continue-on-error forgives failures,
// not interruption.
func (r *jobRunner) finishStep(record workflow.StepRecord, started time.Time, allowedFailure bool) workflow.StepRecord {
	record.DurationMS = time.Since(started).Milliseconds()
	if record.Status == workflow.StepFailed && allowedFailure {
		record.Status = workflow.StepFailedAllowed
	}
	return record
}

// stepShell resolves the interpreter for a run step: step shell, job
// defaults, engine default, then "sh".
func (r *jobRunner) stepShell(step *workflow.Step) string {
	if step.Shell != "" {
		return step.Shell
	}
	if defaults := r.planned.Job.Defaults; defaults != nil && defaults.Shell != "" {
		return defaults.Shell
	}
	if r.engine.config.DefaultShell != "" {
		return r.engine.config.DefaultShell
	}
	return "sh"
}

// stepWorkdir resolves where a run step executes: step working
// directory, job defaults, then the workspace root. Relative paths are
// anchored at the workspace.
func (r *jobRunner) stepWorkdir(step *workflow.Step) string {
	dir := step.WorkingDirectory
	if dir == "" && r.planned.Job.Defaults != nil {
		dir = r.planned.Job.Defaults.WorkingDirectory
	}
	switch {
	case dir == "":
		return r.engine.config.Workspace
	case filepath.IsAbs(dir):
		return dir
	default:
		return filepath.Join(r.engine.config.Workspace, dir)
	}
}

// classifyShellError maps a non-exit shell error to a step status.
// Cancellation from above (run fail-fast, matrix fail-fast, operator
// interrupt) is "cancelled"; the step's own deadline is a failure
// naming the timeout; anything else is a failure carrying the error.
func classifyShellError(parent, stepContext context.Context, phase string, err error, timeout time.Duration) (workflow.StepStatus, string) {
	if parent.Err() != nil {
		return workflow.StepCancelled, "cancelled"
	}
	if errors.Is(stepContext.Err(), context.DeadlineExceeded) {
		return workflow.StepFailed, fmt.Sprintf("%s: timed out after %s", phase, timeout)
	}
	return workflow.StepFailed, fmt.Sprintf("%s: %v", phase, err)
}

// runShell executes a command via the step shell's -c flag with stdout
// and stderr streamed to the given writers. Returns the exit code and
// any non-exit error (context cancellation, signal, missing shell).
//
// The shell is resolved via PATH, not hardcoded to an absolute path,
// so hosts where /bin/sh is a different shell than the environment's
// behave consistently.
//
// The command runs in its own process group so that cancellation kills
// the shell and all its children. Without Setpgid only the shell
// receives the signal — children survive and hold the inherited
// stdout/stderr descriptors open, wedging the step long after its
// deadline.
//
// With a zero gracePeriod, SIGKILL is sent to the group immediately on
// cancellation. A positive gracePeriod sends SIGTERM first so the
// process can flush and unwind, then escalates to SIGKILL after the
// period expires.
func runShell(ctx context.Context, shell, command, dir string, env []string, gracePeriod time.Duration, stdout, stderr io.Writer) (int, error) {
	if shell == "" {
		shell = "sh"
	}
	cmd := exec.CommandContext(ctx, shell, "-c", command)
	cmd.Dir = dir
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.Env = env
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if gracePeriod > 0 {
		cmd.Cancel = func() error {
			processGroupID := -cmd.Process.Pid
			if err := unix.Kill(processGroupID, unix.SIGTERM); err != nil {
				// SIGTERM failed (group already gone), escalate.
				return unix.Kill(processGroupID, unix.SIGKILL)
			}
			go func() {
				time.Sleep(gracePeriod)
				// Best-effort: ESRCH from an exited group is harmless.
				_ = unix.Kill(processGroupID, unix.SIGKILL)
			}()
			return nil
		}
	} else {
		cmd.Cancel = func() error {
			return unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
		}
	}

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}

	var exitError *exec.ExitError
	if errors.As(err, &exitError) {
		// A context kill surfaces as the child's SIGKILL exit state,
		// not as ctx.Err: Wait prefers the process error. Report the
		// cancellation so callers do not mistake it for the command
		// failing on its own.
		if ctx.Err() != nil {
			return -1, ctx.Err()
		}
		return exitError.ExitCode(), nil
	}

	// Non-exit errors: signal delivery failure, shell not found, or a
	// cancellation that fired before the process started.
	return -1, err
}

// createOutputFile makes the empty temp file a run step's
// GREENLIGHT_OUTPUT variable points at. The cleanup function removes
// it after the step's outputs are parsed.
func createOutputFile() (string, func(), error) {
	file, err := os.CreateTemp("", "greenlight-output-*")
	if err != nil {
		return "", nil, err
	}
	path := file.Name()
	if err := file.Close(); err != nil {
		os.Remove(path)
		return "", nil, err
	}
	return path, func() { os.Remove(path) }, nil
}

// parseOutputFile reads the key=value lines a step wrote to its
// outputs file. Blank lines are ignored; every other line must be
// NAME=value with an identifier name. Trailing whitespace is trimmed
// from values, matching how most commands emit a trailing newline the
// consumer never wants.
func parseOutputFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	outputs := make(map[string]string)
	for lineNumber, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		name, value, found := strings.Cut(line, "=")
		if !found {
			return nil, fmt.Errorf("line %d: %q is not a NAME=value pair", lineNumber+1, line)
		}
		if !outputNamePattern.MatchString(name) {
			return nil, fmt.Errorf("line %d: invalid output name %q", lineNumber+1, name)
		}
		value = strings.TrimRight(value, " \t\r")
		if len(value) > maxOutputValueSize {
			return nil, fmt.Errorf("output %q is %d bytes, exceeding the %d byte limit", name, len(value), maxOutputValueSize)
		}
		outputs[name] = value
	}
	if len(outputs) == 0 {
		return nil, nil
	}
	return outputs, nil
}

// lineWriter splits a process output stream into lines, strips ANSI
// escape sequences, masks secret values, appends to the step's log
// file, and emits a LogLine event per line. Stdout and stderr writers
// share the job's log mutex so interleaved lines stay whole.
type lineWriter struct {
	runner    *jobRunner
	file      *os.File
	stream    string
	stepName  string
	stepIndex int
	pending   []byte
}

func (r *jobRunner) newLineWriter(file *os.File, stream, stepName string, index int) *lineWriter {
	return &lineWriter{
		runner:    r,
		file:      file,
		stream:    stream,
		stepName:  stepName,
		stepIndex: index + 1,
	}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.pending = append(w.pending, p...)
	for {
		newline := bytes.IndexByte(w.pending, '\n')
		if newline < 0 {
			break
		}
		w.emitLine(string(w.pending[:newline]))
		w.pending = w.pending[newline+1:]
	}
	return len(p), nil
}

// Flush emits any unterminated final line. Called when the step's
// process has exited, so no more writes race with it.
func (w *lineWriter) Flush() {
	if len(w.pending) > 0 {
		w.emitLine(string(w.pending))
		w.pending = nil
	}
}

func (w *lineWriter) emitLine(line string) {
	line = strings.TrimRight(ansi.Strip(line), "\r")
	line = w.runner.masker.Mask(line)

	w.runner.logMu.Lock()
	fmt.Fprintln(w.file, line)
	w.runner.logMu.Unlock()

	w.runner.emit(RunEvent{
		Kind:      LogLine,
		StepIndex: w.stepIndex,
		StepName:  w.stepName,
		Stream:    w.stream,
		Line:      line,
	})
}

// safeFileName folds a display name into a filesystem-safe slug:
// lowercased, with runs of non-alphanumerics collapsed to single
// dashes.
func safeFileName(name string) string {
	var b []byte
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b = append(b, byte(r))
		} else if len(b) > 0 && b[len(b)-1] != '-' {
			b = append(b, '-')
		}
	}
	slug := strings.TrimSuffix(string(b), "-")
	if slug == "" {
		return "step"
	}
	return slug
}
