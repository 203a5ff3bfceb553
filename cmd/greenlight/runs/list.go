// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package runs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/greenlight-ci/greenlight/cmd/greenlight/cli"
	"github.com/greenlight-ci/greenlight/lib/history"
	"github.com/greenlight-ci/greenlight/lib/runid"
	"github.com/greenlight-ci/greenlight/lib/runstate"
	"github.com/greenlight-ci/greenlight/lib/tui"
)

// listParams holds the parameters for the runs list command.
type listParams struct {
	cli.JSONOutput
	Workflow   string `flag:"workflow,w" desc:"only runs of this workflow"`
	Conclusion string `flag:"conclusion,c" desc:"only runs with this conclusion (success, failure, cancelled)"`
	Limit      int    `flag:"limit,n" desc:"maximum recorded runs to show" default:"20"`
}

// listCommand returns the "runs list" command.
func listCommand() *cli.Command {
	var params listParams

	return &cli.Command{
		Name:    "list",
		Summary: "List runs, newest first",
		Description: `List recorded runs from the history database, newest first. Runs
that are still executing (or whose runner crashed before finishing)
have no history row yet; they are shown above the recorded runs with
conclusion "running" or "crashed".`,
		Usage: "greenlight runs list [flags]",
		Examples: []cli.Example{
			{
				Description: "The last 20 runs",
				Command:     "greenlight runs list",
			},
			{
				Description: "Recent failures of the build workflow",
				Command:     "greenlight runs list -w build -c failure",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("runs list", &params)
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if len(args) != 0 {
				return fmt.Errorf("runs list takes no arguments (got %d)", len(args))
			}

			workspace, err := cli.FindWorkspace()
			if err != nil {
				return err
			}

			var recorded []history.RunSummary
			store, err := openHistory(workspace, logger)
			switch {
			case errors.Is(err, errNoHistory):
				// Nothing recorded yet. Active runs may still exist, so
				// keep going with an empty history.
			case err != nil:
				return err
			default:
				defer store.Close()
				recorded, err = store.List(ctx, history.Filter{
					Workflow:   params.Workflow,
					Conclusion: params.Conclusion,
					Limit:      params.Limit,
				})
				if err != nil {
					return err
				}
			}

			active, err := runstate.Scan(workspace.Config.RunsDir(workspace.Root))
			if err != nil {
				return err
			}
			rows := append(activeRows(active, recorded, params), recorded...)

			if done, err := params.EmitJSON(rows); done {
				return err
			}

			if len(rows) == 0 {
				if params.Workflow != "" || params.Conclusion != "" {
					fmt.Println("no runs match")
				} else {
					fmt.Println("no runs recorded yet")
				}
				return nil
			}

			writer := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
			fmt.Fprintf(writer, "ID\tWORKFLOW\tEVENT\tCONCLUSION\tSTARTED\tDURATION\tJOBS\n")
			for _, row := range rows {
				fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					runid.Short(row.ID), row.Workflow, orDash(row.Event),
					row.Conclusion, startedDisplay(row.StartedAt),
					durationDisplay(row), jobsDisplay(row))
			}
			return writer.Flush()
		},
	}
}

// activeRows synthesizes summary rows for runs that have a live state
// file, applying the same filters as the history query. A run recorded
// in the same instant its state file still existed keeps only its
// history row.
func activeRows(active []runstate.Active, recorded []history.RunSummary, params listParams) []history.RunSummary {
	recordedIDs := make(map[string]bool, len(recorded))
	for _, run := range recorded {
		recordedIDs[run.ID] = true
	}

	var rows []history.RunSummary
	for _, run := range active {
		if recordedIDs[run.State.RunID] {
			continue
		}
		if params.Workflow != "" && run.State.Workflow != params.Workflow {
			continue
		}
		conclusion := "running"
		var durationMS int64
		if run.Crashed {
			conclusion = "crashed"
		} else {
			durationMS = time.Since(run.State.StartedAt).Milliseconds()
		}
		if params.Conclusion != "" && params.Conclusion != conclusion {
			continue
		}
		rows = append(rows, history.RunSummary{
			ID:         run.State.RunID,
			Workflow:   run.State.Workflow,
			Conclusion: conclusion,
			StartedAt:  run.State.StartedAt.UTC().Format(time.RFC3339),
			DurationMS: durationMS,
		})
	}
	return rows
}

// startedDisplay renders a stored RFC 3339 timestamp as local time for
// the table. Unparseable values pass through untouched.
func startedDisplay(stored string) string {
	timestamp, err := time.Parse(time.RFC3339, stored)
	if err != nil {
		return orDash(stored)
	}
	return timestamp.Local().Format("2006-01-02 15:04:05")
}

// durationDisplay renders a row's duration. Crashed runs have no
// meaningful duration.
func durationDisplay(row history.RunSummary) string {
	if row.Conclusion == "crashed" {
		return "-"
	}
	return tui.FormatElapsed(time.Duration(row.DurationMS) * time.Millisecond)
}

// jobsDisplay renders the job count, with a dash for synthesized rows
// where the count is unknown.
func jobsDisplay(row history.RunSummary) string {
	if row.JobCount == 0 && (row.Conclusion == "running" || row.Conclusion == "crashed") {
		return "-"
	}
	return fmt.Sprintf("%d", row.JobCount)
}

// orDash substitutes a dash for an empty table cell.
func orDash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}
