// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package run

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/greenlight-ci/greenlight/cmd/greenlight/cli"
	"github.com/greenlight-ci/greenlight/lib/artifactstore"
	"github.com/greenlight-ci/greenlight/lib/event"
	"github.com/greenlight-ci/greenlight/lib/history"
	"github.com/greenlight-ci/greenlight/lib/runner"
	"github.com/greenlight-ci/greenlight/lib/secrets"
	"github.com/greenlight-ci/greenlight/lib/watchfs"
	"github.com/greenlight-ci/greenlight/lib/workflowdef"
)

// watchParams holds the parameters for the watch command.
type watchParams struct {
	Event    string `flag:"event,e" desc:"trigger event type for each rerun (default workflow_dispatch)"`
	Branch   string `flag:"branch,b" desc:"branch context for trigger evaluation (default: the current git branch)"`
	Job      string `flag:"job,j" desc:"run only this job and the jobs it needs"`
	FailFast bool   `flag:"fail-fast" desc:"cancel every remaining job after the first failure"`
}

// WatchCommand returns the "watch" command.
func WatchCommand() *cli.Command {
	var params watchParams

	return &cli.Command{
		Name:    "watch",
		Summary: "Rerun a workflow whenever watched files change",
		Description: `Run a workflow, then watch the workspace and rerun it every time
files change. Changes arriving within the debounce window (500 ms by
default, configurable) coalesce into one rerun; a change during a
run cancels the run in flight before starting over.

With --event push the changed paths feed the trigger's path filters,
so a batch touching only ignored paths skips the rerun.

Watching stops on interrupt; the last run's outcome does not affect
the exit code.`,
		Usage: "greenlight watch [workflow] [flags]",
		Examples: []cli.Example{
			{
				Description: "Rerun the test workflow on every change",
				Command:     "greenlight watch test",
			},
			{
				Description: "Rerun as a push to main, honoring path filters",
				Command:     "greenlight watch build --event push --branch main",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("watch", &params)
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			return executeWatch(ctx, args, &params, logger)
		},
	}
}

func executeWatch(ctx context.Context, args []string, params *watchParams, logger *slog.Logger) error {
	if len(args) > 1 {
		return fmt.Errorf("watch takes at most one workflow name (got %d arguments)", len(args))
	}
	query := ""
	if len(args) == 1 {
		query = args[0]
	}

	workspace, err := cli.FindWorkspace()
	if err != nil {
		return err
	}
	// Resolve once up front so a bad name fails before watching
	// starts. Each rerun resolves again to pick up file changes.
	if _, _, err := workspace.ResolveWorkflow(query); err != nil {
		return err
	}

	cfg := workspace.Config
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

	watcher, err := watchfs.New(watchfs.Config{
		Root:     workspace.Root,
		Ignore:   cfg.Watch.Ignore,
		Debounce: time.Duration(cfg.Watch.DebounceMS) * time.Millisecond,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	watchErr := make(chan error, 1)
	go func() { watchErr <- watcher.Run(ctx) }()

	session := &watchSession{
		workspace: workspace,
		query:     query,
		params:    params,
		history:   historyStore,
		logger:    logger,
	}

	// One run in flight at a time. A new batch cancels the current
	// run and waits for it to wind down before starting over.
	var cancelRun context.CancelFunc
	var runDone chan struct{}
	start := func(batch []string) {
		runCtx, cancel := context.WithCancel(ctx)
		cancelRun = cancel
		runDone = make(chan struct{})
		done := runDone
		go func() {
			defer close(done)
			session.run(runCtx, batch)
		}()
	}
	stop := func() {
		if cancelRun == nil {
			return
		}
		cancelRun()
		<-runDone
		cancelRun = nil
	}

	fmt.Printf("watching %s; interrupt to stop\n", workspace.Root)
	start(nil)

	for {
		select {
		case <-ctx.Done():
			stop()
			return <-watchErr

		case batch, ok := <-watcher.Changes():
			if !ok {
				stop()
				return <-watchErr
			}
			stop()
			fmt.Printf("\n%d path(s) changed; rerunning\n", len(batch))
			start(batch)
		}
	}
}

// watchSession executes one workflow run per change batch. Run
// problems (validation, trigger mismatch, execution failure) are
// reported and watching continues; only infrastructure faults are
// fatal to the session, and even those just print.
type watchSession struct {
	workspace *cli.Workspace
	query     string
	params    *watchParams
	history   *history.Store
	logger    *slog.Logger
}

// run executes the watched workflow once. changed carries the batch
// paths; nil means the initial run.
func (s *watchSession) run(ctx context.Context, changed []string) {
	if ctx.Err() != nil {
		return
	}

	_, path, err := s.workspace.ResolveWorkflow(s.query)
	if err != nil {
		fmt.Fprintf(os.Stderr, "skipping run: %v\n", err)
		return
	}
	wf, err := workflowdef.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "skipping run: %v\n", err)
		return
	}
	if issues := workflowdef.Validate(wf); len(issues) > 0 {
		for _, issue := range issues {
			fmt.Fprintf(os.Stderr, "  - %s\n", issue)
		}
		fmt.Fprintf(os.Stderr, "skipping run: %d validation issue(s)\n", len(issues))
		return
	}

	// Re-detect the branch per rerun: a checkout mid-watch changes it.
	branch := s.params.Branch
	if branch == "" {
		branch = s.workspace.GitBranch(ctx, s.logger)
	}

	cfg := s.workspace.Config
	plan, err := runner.Plan(wf, runner.PlanOptions{
		Event: event.Event{
			Type:         s.params.Event,
			Branch:       branch,
			ChangedFiles: changed,
		},
		Job:              s.params.Job,
		FailFast:         s.params.FailFast,
		PlatformMismatch: cfg.Runner.PlatformMismatch,
	})
	if errors.Is(err, runner.ErrNoTrigger) {
		fmt.Printf("skipping run: %v\n", err)
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "skipping run: %v\n", err)
		return
	}

	engineConfig := runner.Config{
		Workspace:       s.workspace.Root,
		RunsDir:         cfg.RunsDir(s.workspace.Root),
		DefaultShell:    cfg.Runner.DefaultShell,
		DefaultTimeout:  time.Duration(cfg.Runner.DefaultTimeoutMinutes) * time.Minute,
		MaxParallelJobs: cfg.Runner.MaxParallelJobs,
		RemoteActions:   cfg.Runner.RemoteActions,
		History:         s.history,
		Logger:          s.logger,
	}
	if planDeclaresSecrets(plan) {
		engineConfig.Secrets = secrets.Open(
			cfg.IdentityPath(s.workspace.Root),
			cfg.SecretsPath(s.workspace.Root),
		)
	}
	if planDeclaresArtifacts(plan) {
		store, err := artifactstore.Open(artifactstore.Config{
			Dir:     cfg.ArtifactsDir(s.workspace.Root),
			KeyFile: cfg.ArtifactKeyPath(s.workspace.Root),
			Logger:  s.logger,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "skipping run: %v\n", err)
			return
		}
		defer store.Close()
		engineConfig.Artifacts = store
	}

	if _, err := executeWithPrinter(ctx, engineConfig, plan); err != nil {
		fmt.Fprintf(os.Stderr, "run failed: %v\n", err)
	}
}
