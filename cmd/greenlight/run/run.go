// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package run

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"

	"github.com/greenlight-ci/greenlight/cmd/greenlight/cli"
	"github.com/greenlight-ci/greenlight/lib/artifactstore"
	"github.com/greenlight-ci/greenlight/lib/event"
	"github.com/greenlight-ci/greenlight/lib/history"
	"github.com/greenlight-ci/greenlight/lib/runner"
	schema "github.com/greenlight-ci/greenlight/lib/schema/workflow"
	"github.com/greenlight-ci/greenlight/lib/secrets"
	"github.com/greenlight-ci/greenlight/lib/tui"
	"github.com/greenlight-ci/greenlight/lib/workflowdef"
)

// Exit codes for finished runs. Cancellation follows the shell
// convention for SIGINT.
const (
	exitFailure   = 1
	exitCancelled = 130
)

// runParams holds the parameters for the run command.
type runParams struct {
	cli.JSONOutput
	Event    string   `flag:"event,e" desc:"trigger event type: push, pull_request, workflow_dispatch, schedule (default workflow_dispatch)"`
	Branch   string   `flag:"branch,b" desc:"branch context for trigger evaluation (default: the current git branch)"`
	Inputs   []string `flag:"input,i" desc:"dispatch input as name=value (repeatable)"`
	Job      string   `flag:"job,j" desc:"run only this job and the jobs it needs"`
	Matrix   []string `flag:"matrix,m" desc:"restrict matrix jobs to axis=value combinations (repeatable)"`
	FailFast bool     `flag:"fail-fast" desc:"cancel every remaining job after the first failure"`
	TUI      bool     `flag:"tui" desc:"interactive run view"`
	DryRun   bool     `flag:"dry-run,n" desc:"print the execution plan without running anything"`
	File     string   `flag:"file,f" desc:"run a workflow file directly instead of a workspace workflow"`
}

// RunCommand returns the "run" command.
func RunCommand() *cli.Command {
	var params runParams

	return &cli.Command{
		Name:    "run",
		Summary: "Execute a workflow",
		Description: `Execute a workflow for a simulated event. By default the event is a
manual workflow_dispatch; --event plans for push, pull_request, or
schedule instead. The branch context comes from --branch, falling
back to the branch checked out in the workspace when it is a git
repository.

Progress streams to the console as jobs and steps execute, or to an
interactive view with --tui. The exit code is 0 when the run
succeeds, 1 when it fails, and 130 when it is interrupted.

--dry-run prints the execution plan (jobs, matrix expansion, wave
order) without executing anything.`,
		Usage: "greenlight run [workflow] [flags]",
		Examples: []cli.Example{
			{
				Description: "Run the only workflow in the workspace",
				Command:     "greenlight run",
			},
			{
				Description: "Simulate a push to main",
				Command:     "greenlight run build --event push --branch main",
			},
			{
				Description: "One job and its needs, with a dispatch input",
				Command:     "greenlight run deploy --job publish --input channel=beta",
			},
			{
				Description: "Preview the plan for one matrix slice",
				Command:     "greenlight run test --matrix go=1.25 --dry-run",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("run", &params)
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			return executeRun(ctx, args, &params, logger)
		},
	}
}

func executeRun(ctx context.Context, args []string, params *runParams, logger *slog.Logger) error {
	workspace, err := cli.FindWorkspace()
	if err != nil {
		return err
	}

	wf, err := loadWorkflow(workspace, args, params.File)
	if err != nil {
		return err
	}
	if issues := workflowdef.Validate(wf); len(issues) > 0 {
		for _, issue := range issues {
			fmt.Fprintf(os.Stderr, "  - %s\n", issue)
		}
		return fmt.Errorf("workflow %q has %d validation issue(s)", wf.Name, len(issues))
	}

	inputs, err := parsePairs(params.Inputs, "input")
	if err != nil {
		return err
	}
	matrixFilter, err := parsePairs(params.Matrix, "matrix")
	if err != nil {
		return err
	}

	branch := params.Branch
	if branch == "" {
		branch = workspace.GitBranch(ctx, logger)
	}

	cfg := workspace.Config
	plan, err := runner.Plan(wf, runner.PlanOptions{
		Event: event.Event{
			Type:   params.Event,
			Branch: branch,
			Inputs: inputs,
		},
		Job:              params.Job,
		Matrix:           matrixFilter,
		FailFast:         params.FailFast,
		PlatformMismatch: cfg.Runner.PlatformMismatch,
	})
	if errors.Is(err, runner.ErrNoTrigger) {
		return fmt.Errorf("%w (try --event with one of: %s)", err, strings.Join(wf.On.Events(), ", "))
	}
	if err != nil {
		return err
	}

	if params.DryRun {
		if done, err := params.EmitJSON(planView(plan)); done {
			return err
		}
		printPlan(os.Stdout, plan)
		return nil
	}

	if err := cfg.EnsurePaths(workspace.Root); err != nil {
		return err
	}

	historyStore, err := history.Open(history.Config{
		Path:   cfg.HistoryPath(workspace.Root),
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("opening run history: %w", err)
	}
	defer historyStore.Close()

	engineConfig := runner.Config{
		Workspace:       workspace.Root,
		RunsDir:         cfg.RunsDir(workspace.Root),
		DefaultShell:    cfg.Runner.DefaultShell,
		DefaultTimeout:  time.Duration(cfg.Runner.DefaultTimeoutMinutes) * time.Minute,
		MaxParallelJobs: cfg.Runner.MaxParallelJobs,
		RemoteActions:   cfg.Runner.RemoteActions,
		History:         historyStore,
		Logger:          logger,
	}

	if planDeclaresSecrets(plan) {
		engineConfig.Secrets = secrets.Open(
			cfg.IdentityPath(workspace.Root),
			cfg.SecretsPath(workspace.Root),
		)
	}
	if planDeclaresArtifacts(plan) {
		store, err := artifactstore.Open(artifactstore.Config{
			Dir:     cfg.ArtifactsDir(workspace.Root),
			KeyFile: cfg.ArtifactKeyPath(workspace.Root),
			Logger:  logger,
		})
		if err != nil {
			return fmt.Errorf("opening artifact store: %w", err)
		}
		defer store.Close()
		engineConfig.Artifacts = store
	}

	var record *schema.RunRecord
	if params.OutputJSON {
		record, err = runner.New(engineConfig).Execute(ctx, plan)
		if err != nil {
			return err
		}
		if err := cli.WriteJSON(record); err != nil {
			return err
		}
	} else if params.TUI {
		record, err = executeWithView(ctx, engineConfig, plan)
		if err != nil {
			return err
		}
	} else {
		record, err = executeWithPrinter(ctx, engineConfig, plan)
		if err != nil {
			return err
		}
	}

	switch record.Conclusion {
	case schema.ConclusionFailure:
		return &cli.ExitError{Code: exitFailure}
	case schema.ConclusionCancelled:
		return &cli.ExitError{Code: exitCancelled}
	}
	return nil
}

// executeWithPrinter runs the plan with progress streaming to the
// console printer.
func executeWithPrinter(ctx context.Context, config runner.Config, plan *runner.RunPlan) (*schema.RunRecord, error) {
	events := make(chan runner.RunEvent, 64)
	config.Events = events

	printer := newPrinter(os.Stdout)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range events {
			printer.event(ev)
		}
	}()

	record, err := runner.New(config).Execute(ctx, plan)
	<-done
	return record, err
}

// executeWithView runs the plan behind the interactive run view. The
// view's cancel key cancels the engine's context; the engine closing
// the event stream ends the view.
func executeWithView(ctx context.Context, config runner.Config, plan *runner.RunPlan) (*schema.RunRecord, error) {
	events := make(chan runner.RunEvent, 64)
	config.Events = events

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	var record *schema.RunRecord
	var execErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		record, execErr = runner.New(config).Execute(runCtx, plan)
	}()

	program := tea.NewProgram(tui.NewRunModel(events, cancelRun))
	if _, err := program.Run(); err != nil {
		cancelRun()
		<-done
		return record, fmt.Errorf("run view: %w", err)
	}
	<-done
	return record, execErr
}

// loadWorkflow resolves which workflow to run: an explicit file via
// -f, or a (possibly fuzzy, possibly omitted) workspace workflow name.
func loadWorkflow(workspace *cli.Workspace, args []string, file string) (*schema.Workflow, error) {
	if file != "" {
		if len(args) != 0 {
			return nil, errors.New("cannot combine -f with a workflow name")
		}
		return workflowdef.ReadFile(file)
	}

	if len(args) > 1 {
		return nil, fmt.Errorf("run takes at most one workflow name (got %d arguments)", len(args))
	}
	query := ""
	if len(args) == 1 {
		query = args[0]
	}
	_, path, err := workspace.ResolveWorkflow(query)
	if err != nil {
		return nil, err
	}
	return workflowdef.ReadFile(path)
}

// parsePairs turns repeated name=value flags into a map.
func parsePairs(pairs []string, flagName string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	values := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("--%s %q: expected name=value", flagName, pair)
		}
		values[name] = value
	}
	return values, nil
}

// planDeclaresSecrets reports whether any planned job declares
// secrets, which decides whether the secret store opens at all.
func planDeclaresSecrets(plan *runner.RunPlan) bool {
	for _, planned := range plan.Jobs {
		if len(planned.Job.Secrets) > 0 {
			return true
		}
	}
	return false
}

func planDeclaresArtifacts(plan *runner.RunPlan) bool {
	for _, planned := range plan.Jobs {
		if len(planned.Job.Artifacts) > 0 {
			return true
		}
	}
	return false
}

// planJobView is one planned job in dry-run output.
type planJobView struct {
	Job        string `json:"job"`
	Wave       int    `json:"wave"`
	SkipReason string `json:"skip_reason,omitempty"`
}

// runPlanView is the dry-run JSON shape.
type runPlanView struct {
	RunID    string        `json:"run_id"`
	Workflow string        `json:"workflow"`
	Event    string        `json:"event"`
	FailFast bool          `json:"fail_fast"`
	Jobs     []planJobView `json:"jobs"`
}

func planView(plan *runner.RunPlan) runPlanView {
	view := runPlanView{
		RunID:    plan.RunID,
		Workflow: plan.Workflow.Name,
		Event:    plan.Event.Type,
		FailFast: plan.FailFast,
	}
	for _, planned := range plan.Jobs {
		view.Jobs = append(view.Jobs, planJobView{
			Job:        planned.Key,
			Wave:       planned.Wave,
			SkipReason: planned.SkipReason,
		})
	}
	return view
}

// printPlan writes the human dry-run listing: run identity, then jobs
// grouped into execution waves.
func printPlan(out io.Writer, plan *runner.RunPlan) {
	fmt.Fprintf(out, "%s  %s  %s\n", plan.RunID, plan.Workflow.Name, plan.Event.Type)
	for wave, jobs := range plan.Waves {
		fmt.Fprintf(out, "wave %d:\n", wave)
		for _, planned := range jobs {
			if planned.SkipReason != "" {
				fmt.Fprintf(out, "  - %s (skipped: %s)\n", planned.Key, planned.SkipReason)
				continue
			}
			fmt.Fprintf(out, "  - %s\n", planned.Key)
		}
	}
	fmt.Fprintf(out, "%d job(s) in %d wave(s)\n", len(plan.Jobs), len(plan.Waves))
}
