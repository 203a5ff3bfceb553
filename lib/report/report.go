// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/greenlight-ci/greenlight/lib/runner"
	"github.com/greenlight-ci/greenlight/lib/schema/workflow"
)

// defaultExcerptLines is how many trailing log lines a failed-step
// excerpt carries when Options does not say otherwise. Twenty lines
// is usually enough to show the actual error above the exit status.
const defaultExcerptLines = 20

// Options controls summary collection.
type Options struct {
	// ExcerptLines is the number of trailing log lines to include per
	// failed step. Zero means the default; negative disables excerpts
	// entirely.
	ExcerptLines int
}

// StepExcerpt is the tail of one failed step's log, with enough
// context to identify the step.
type StepExcerpt struct {
	// JobKey is the owning job's plan key (job ID with matrix label).
	JobKey string

	// StepName is the step's display name.
	StepName string

	// Message is the step's error text, e.g. "run: exit code 3".
	Message string

	// Log holds the step's trailing log lines. Empty when the log
	// file is gone or the step produced no output.
	Log string
}

// Summary is a run record plus the log excerpts needed to explain a
// failure without opening the run directory.
type Summary struct {
	Record   *workflow.RunRecord
	Excerpts []StepExcerpt
}

// Collect builds a summary for a record. runDir is the run's
// directory, used to read step logs for failed steps; pass "" when
// the directory no longer exists and the summary will carry no
// excerpts. Missing or unreadable individual log files are not
// errors: the excerpt is kept with an empty log.
func Collect(record *workflow.RunRecord, runDir string, opts Options) *Summary {
	summary := &Summary{Record: record}
	lines := opts.ExcerptLines
	if lines == 0 {
		lines = defaultExcerptLines
	}
	if lines < 0 {
		return summary
	}
	for _, job := range record.Jobs {
		for i, step := range job.Steps {
			if step.Status != workflow.StepFailed && step.Status != workflow.StepFailedAllowed {
				continue
			}
			excerpt := StepExcerpt{
				JobKey:   job.Key(),
				StepName: step.Name,
				Message:  step.Error,
			}
			if runDir != "" {
				logPath := filepath.Join(runner.JobLogDir(runDir, job.Key()), runner.StepLogName(i, step.Name))
				if data, err := os.ReadFile(logPath); err == nil {
					excerpt.Log = lastLines(string(data), lines)
				}
			}
			summary.Excerpts = append(summary.Excerpts, excerpt)
		}
	}
	return summary
}

// Markdown renders the summary as GitHub-flavored Markdown: a header,
// a run metadata table, a per-job outcome table, and a section of
// failed-step log excerpts.
func (s *Summary) Markdown() string {
	var b strings.Builder
	b.WriteString(s.summaryMarkdown())
	if len(s.Excerpts) == 0 {
		return b.String()
	}
	b.WriteString("\n## Failed steps\n")
	for _, excerpt := range s.Excerpts {
		fmt.Fprintf(&b, "\n### %s: %s\n", excerpt.JobKey, excerpt.StepName)
		if excerpt.Message != "" {
			fmt.Fprintf(&b, "\n%s\n", excerpt.Message)
		}
		if excerpt.Log == "" {
			b.WriteString("\n*no output captured*\n")
			continue
		}
		b.WriteString("\n```text\n")
		b.WriteString(excerpt.Log)
		if !strings.HasSuffix(excerpt.Log, "\n") {
			b.WriteString("\n")
		}
		b.WriteString("```\n")
	}
	return b.String()
}

// summaryMarkdown renders the tables without the excerpt section. The
// HTML renderer uses this directly and attaches highlighted excerpts
// itself.
func (s *Summary) summaryMarkdown() string {
	record := s.Record
	var b strings.Builder

	fmt.Fprintf(&b, "# %s: %s\n\n", record.Workflow, record.Conclusion)
	fmt.Fprintf(&b, "Run `%s` triggered by %s.\n\n", record.RunID, describeTrigger(record.Trigger))

	b.WriteString("| | |\n| --- | --- |\n")
	fmt.Fprintf(&b, "| Started | %s |\n", record.StartedAt)
	fmt.Fprintf(&b, "| Completed | %s |\n", record.CompletedAt)
	fmt.Fprintf(&b, "| Duration | %s |\n", formatDuration(record.DurationMS))
	fmt.Fprintf(&b, "| Jobs | %s |\n", jobTally(record.Jobs))
	if record.FailedJob != "" {
		fmt.Fprintf(&b, "| Failed job | %s |\n", escapeCell(record.FailedJob))
	}

	b.WriteString("\n## Jobs\n\n")
	b.WriteString("| Job | Conclusion | Duration | Detail |\n")
	b.WriteString("| --- | --- | --- | --- |\n")
	for _, job := range record.Jobs {
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n",
			escapeCell(job.Key()),
			conclusionLabel(&job),
			jobDuration(&job),
			escapeCell(jobDetail(&job)),
		)
	}
	return b.String()
}

// describeTrigger renders the trigger for the summary's opening line.
func describeTrigger(trigger workflow.TriggerInfo) string {
	description := trigger.Type
	if trigger.Branch != "" {
		description += " on `" + trigger.Branch + "`"
	}
	if len(trigger.Inputs) > 0 {
		pairs := make([]string, 0, len(trigger.Inputs))
		for name, value := range trigger.Inputs {
			pairs = append(pairs, name+"="+value)
		}
		// Map order is random; sort for stable output.
		sort.Strings(pairs)
		description += " with inputs `" + strings.Join(pairs, " ") + "`"
	}
	return description
}

// jobTally summarizes job outcomes: "4 (2 succeeded, 1 failed, 1
// skipped)". Zero-count conclusions are omitted.
func jobTally(jobs []workflow.JobRecord) string {
	counts := map[workflow.Conclusion]int{}
	for i := range jobs {
		counts[jobs[i].Conclusion]++
	}
	parts := make([]string, 0, 4)
	for _, entry := range []struct {
		conclusion workflow.Conclusion
		label      string
	}{
		{workflow.ConclusionSuccess, "succeeded"},
		{workflow.ConclusionFailure, "failed"},
		{workflow.ConclusionCancelled, "cancelled"},
		{workflow.ConclusionSkipped, "skipped"},
	} {
		if n := counts[entry.conclusion]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, entry.label))
		}
	}
	return fmt.Sprintf("%d (%s)", len(jobs), strings.Join(parts, ", "))
}

func conclusionLabel(job *workflow.JobRecord) string {
	if job.Conclusion == workflow.ConclusionFailure && job.AllowedFailure {
		return "failure (allowed)"
	}
	return string(job.Conclusion)
}

func jobDuration(job *workflow.JobRecord) string {
	if job.Conclusion == workflow.ConclusionSkipped {
		return ""
	}
	return formatDuration(job.DurationMS)
}

// jobDetail picks the one-line explanation for the Detail column:
// the error for failures, the skip reason for skipped jobs.
func jobDetail(job *workflow.JobRecord) string {
	switch job.Conclusion {
	case workflow.ConclusionFailure, workflow.ConclusionCancelled:
		return job.Error
	case workflow.ConclusionSkipped:
		return job.Reason
	}
	return ""
}

func formatDuration(ms int64) string {
	return (time.Duration(ms) * time.Millisecond).String()
}

// escapeCell makes arbitrary text safe inside a Markdown table cell:
// pipes would split the cell and newlines would end the row.
func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}

// lastLines returns the final n lines of text, without a trailing
// newline. A trailing newline in the input does not count as an empty
// last line.
func lastLines(text string, n int) string {
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return ""
	}
	lines := strings.Split(text, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
