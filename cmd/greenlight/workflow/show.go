// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/greenlight-ci/greenlight/cmd/greenlight/cli"
	"github.com/greenlight-ci/greenlight/lib/workflowdef"
)

// showParams holds the parameters for the show command.
type showParams struct {
	cli.JSONOutput
}

// ShowCommand returns the "show" command.
func ShowCommand() *cli.Command {
	var params showParams

	return &cli.Command{
		Name:    "show",
		Summary: "Print a workflow definition",
		Description: `Print a workflow's source. On a terminal the source is
syntax-highlighted; piped output is the raw file bytes.

With --json the parsed definition is printed instead of the source,
which shows the workflow as greenlight understands it (defaults
filled in, matrix untouched).

The workflow name matches fuzzily: "show compr" finds
"comprehensive". With a single workflow in the workspace the name
can be omitted.`,
		Usage: "greenlight show [workflow] [flags]",
		Examples: []cli.Example{
			{
				Description: "Show a workflow by fuzzy name",
				Command:     "greenlight show compr",
			},
			{
				Description: "The parsed definition as JSON",
				Command:     "greenlight show comprehensive --json",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("show", &params)
		},
		Run: func(_ context.Context, args []string, _ *slog.Logger) error {
			if len(args) > 1 {
				return fmt.Errorf("show takes at most one workflow name (got %d arguments)", len(args))
			}
			query := ""
			if len(args) == 1 {
				query = args[0]
			}

			workspace, err := cli.FindWorkspace()
			if err != nil {
				return err
			}
			_, path, err := workspace.ResolveWorkflow(query)
			if err != nil {
				return err
			}

			if params.OutputJSON {
				wf, err := workflowdef.ReadFile(path)
				if err != nil {
					return err
				}
				return cli.WriteJSON(wf)
			}

			source, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading %s: %w", path, err)
			}

			if !term.IsTerminal(int(os.Stdout.Fd())) {
				_, err := os.Stdout.Write(source)
				return err
			}

			language := "yaml"
			if workflowdef.FormatFromPath(path) == workflowdef.FormatJSONC {
				language = "json"
			}
			var highlighted strings.Builder
			if err := quick.Highlight(&highlighted, string(source), language, "terminal256", "monokai"); err != nil {
				_, err := os.Stdout.Write(source)
				return err
			}
			_, err = os.Stdout.WriteString(highlighted.String())
			return err
		},
	}
}
