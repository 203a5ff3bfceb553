// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/greenlight-ci/greenlight/cmd/greenlight/cli"
	"github.com/greenlight-ci/greenlight/lib/cronspec"
	"github.com/greenlight-ci/greenlight/lib/event"
	schema "github.com/greenlight-ci/greenlight/lib/schema/workflow"
	"github.com/greenlight-ci/greenlight/lib/workflowdef"
)

// listParams holds the parameters for the list command.
type listParams struct {
	cli.JSONOutput
	Event  string `flag:"event,e" desc:"evaluate triggers for this event type (push, pull_request, workflow_dispatch, schedule)"`
	Branch string `flag:"branch,b" desc:"branch context for trigger evaluation (default: the current git branch)"`
}

// listEntry is one row of list output.
type listEntry struct {
	Name     string   `json:"name"`
	Path     string   `json:"path"`
	Triggers []string `json:"triggers"`

	// Matched and Reason are populated with --event: whether the
	// workflow would trigger, and why or why not.
	Matched *bool  `json:"matched,omitempty"`
	Reason  string `json:"reason,omitempty"`

	// NextRun is populated with --event schedule: when the workflow's
	// earliest cron entry next fires.
	NextRun string `json:"next_run,omitempty"`
}

// ListCommand returns the "list" command.
func ListCommand() *cli.Command {
	var params listParams

	return &cli.Command{
		Name:    "list",
		Summary: "List workflows and their triggers",
		Description: `List the workflows discovered in the workspace with the events each
one responds to.

With --event, every workflow is evaluated against a simulated event
of that type and the listing explains whether it would trigger and
why. For --event schedule the listing also shows when each scheduled
workflow next fires.`,
		Usage: "greenlight list [flags]",
		Examples: []cli.Example{
			{
				Description: "List every workflow",
				Command:     "greenlight list",
			},
			{
				Description: "Which workflows react to a pull request against main?",
				Command:     "greenlight list --event pull_request --branch main",
			},
			{
				Description: "Machine-readable listing",
				Command:     "greenlight list --json",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("list", &params)
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 0 {
				return fmt.Errorf("list takes no arguments (got %d)", len(args))
			}

			workspace, err := cli.FindWorkspace()
			if err != nil {
				return err
			}
			workflows, err := workspace.Workflows()
			if err != nil {
				return err
			}

			branch := params.Branch
			if params.Event != "" && branch == "" {
				branch = workspace.GitBranch(ctx, logger)
			}

			now := time.Now()
			var entries []listEntry
			for _, name := range workflowdef.Names(workflows) {
				path := workflows[name]
				wf, err := workflowdef.ReadFile(path)
				if err != nil {
					return err
				}

				entry := listEntry{
					Name:     name,
					Path:     path,
					Triggers: wf.On.Events(),
				}

				if params.Event != "" {
					decision, err := event.Match(wf, event.Event{
						Type:   params.Event,
						Branch: branch,
						At:     now,
					})
					if err != nil {
						return fmt.Errorf("%s: %w", name, err)
					}
					matched := decision.Matched
					entry.Matched = &matched
					entry.Reason = decision.Reason

					if params.Event == "schedule" {
						entry.NextRun = nextFiring(wf.On.Schedule, now)
					}
				}

				entries = append(entries, entry)
			}

			if done, err := params.EmitJSON(entries); done {
				return err
			}

			writer := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
			if params.Event == "" {
				fmt.Fprintf(writer, "NAME\tTRIGGERS\tFILE\n")
				for _, entry := range entries {
					fmt.Fprintf(writer, "%s\t%s\t%s\n",
						entry.Name, joinOrDash(entry.Triggers), entry.Path)
				}
				return writer.Flush()
			}

			fmt.Fprintf(writer, "NAME\tMATCHES\tREASON\n")
			for _, entry := range entries {
				matches := "no"
				if entry.Matched != nil && *entry.Matched {
					matches = "yes"
				}
				reason := entry.Reason
				if entry.NextRun != "" {
					reason += " (next: " + entry.NextRun + ")"
				}
				fmt.Fprintf(writer, "%s\t%s\t%s\n", entry.Name, matches, reason)
			}
			return writer.Flush()
		},
	}
}

// nextFiring returns the earliest next firing time across the
// workflow's cron entries, formatted for display. Empty when the
// workflow has no schedule trigger or no entry parses.
func nextFiring(entries []schema.ScheduleTrigger, from time.Time) string {
	var earliest time.Time
	for _, entry := range entries {
		schedule, err := cronspec.Parse(entry.Cron)
		if err != nil {
			continue
		}
		next, err := schedule.Next(from)
		if err != nil {
			continue
		}
		if earliest.IsZero() || next.Before(earliest) {
			earliest = next
		}
	}
	if earliest.IsZero() {
		return ""
	}
	return earliest.UTC().Format(time.RFC3339)
}

// joinOrDash renders a name list for a table cell, with a dash for
// empty.
func joinOrDash(names []string) string {
	if len(names) == 0 {
		return "-"
	}
	joined := names[0]
	for _, name := range names[1:] {
		joined += ", " + name
	}
	return joined
}
