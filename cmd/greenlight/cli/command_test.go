// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func TestCommandExecuteDispatchesToSubcommand(t *testing.T) {
	var called string

	root := &Command{
		Name: "greenlight",
		Subcommands: []*Command{
			{
				Name: "version",
				Run: func(_ context.Context, args []string, _ *slog.Logger) error {
					called = "version"
					return nil
				},
			},
			{
				Name: "list",
				Run: func(_ context.Context, args []string, _ *slog.Logger) error {
					called = "list"
					return nil
				},
			},
		},
	}

	if err := root.Execute(context.Background(), []string{"list"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if called != "list" {
		t.Errorf("dispatched to %q, want %q", called, "list")
	}
}

func TestCommandExecuteNestedSubcommands(t *testing.T) {
	var called string
	var receivedArgs []string

	root := &Command{
		Name: "greenlight",
		Subcommands: []*Command{
			{
				Name: "runs",
				Subcommands: []*Command{
					{
						Name: "show",
						Run: func(_ context.Context, args []string, _ *slog.Logger) error {
							called = "runs show"
							receivedArgs = args
							return nil
						},
					},
				},
			},
		},
	}

	if err := root.Execute(context.Background(), []string{"runs", "show", "run-abc"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if called != "runs show" {
		t.Errorf("dispatched to %q, want %q", called, "runs show")
	}
	if len(receivedArgs) != 1 || receivedArgs[0] != "run-abc" {
		t.Errorf("args = %v, want [run-abc]", receivedArgs)
	}
}

func TestCommandExecuteFlagParsing(t *testing.T) {
	var eventType string
	var target string

	command := &Command{
		Name: "run",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("run", pflag.ContinueOnError)
			flagSet.StringVar(&eventType, "event", "workflow_dispatch", "event type")
			return flagSet
		},
		Run: func(_ context.Context, args []string, _ *slog.Logger) error {
			if len(args) > 0 {
				target = args[0]
			}
			return nil
		},
	}

	if err := command.Execute(context.Background(), []string{"--event", "push", "comprehensive"}); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if eventType != "push" {
		t.Errorf("eventType = %q, want %q", eventType, "push")
	}
	if target != "comprehensive" {
		t.Errorf("target = %q, want %q", target, "comprehensive")
	}
}

func TestCommandExecuteUnknownFlagSuggestion(t *testing.T) {
	command := &Command{
		Name: "run",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("run", pflag.ContinueOnError)
			flagSet.Bool("fail-fast", false, "fail fast")
			flagSet.String("event", "", "event type")
			return flagSet
		},
		Run: func(_ context.Context, args []string, _ *slog.Logger) error { return nil },
	}

	err := command.Execute(context.Background(), []string{"--evnet"})
	if err == nil {
		t.Fatal("Execute() = nil, want error for unknown flag")
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "did you mean --event") {
		t.Errorf("error = %q, want suggestion for '--event'", errStr)
	}
	if !strings.Contains(errStr, "evnet") {
		t.Errorf("error = %q, should mention the bad flag", errStr)
	}
	if !strings.Contains(errStr, "--help") {
		t.Errorf("error = %q, should point to --help", errStr)
	}
}

func TestCommandExecuteUnknownFlagNoSuggestion(t *testing.T) {
	command := &Command{
		Name: "run",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("run", pflag.ContinueOnError)
			flagSet.Bool("fail-fast", false, "fail fast")
			return flagSet
		},
		Run: func(_ context.Context, args []string, _ *slog.Logger) error { return nil },
	}

	err := command.Execute(context.Background(), []string{"--zzzzzzzzz"})
	if err == nil {
		t.Fatal("Execute() = nil, want error for unknown flag")
	}
	if strings.Contains(err.Error(), "did you mean") {
		t.Errorf("error = %q, should not suggest for distant flag", err.Error())
	}
	if !strings.Contains(err.Error(), "--help") {
		t.Errorf("error = %q, should point to --help", err.Error())
	}
}

func TestCommandExecuteUnknownSubcommandSuggestion(t *testing.T) {
	root := &Command{
		Name: "greenlight",
		Subcommands: []*Command{
			{Name: "validate"},
			{Name: "run"},
			{Name: "version"},
		},
	}

	err := root.Execute(context.Background(), []string{"validte"})
	if err == nil {
		t.Fatal("Execute() = nil, want error for unknown subcommand")
	}
	if !strings.Contains(err.Error(), "did you mean \"validate\"") {
		t.Errorf("error = %q, want suggestion for 'validate'", err.Error())
	}
}

func TestCommandExecuteUnknownSubcommandNoSuggestion(t *testing.T) {
	root := &Command{
		Name: "greenlight",
		Subcommands: []*Command{
			{Name: "validate"},
			{Name: "run"},
		},
	}

	err := root.Execute(context.Background(), []string{"zzzzzzz"})
	if err == nil {
		t.Fatal("Execute() = nil, want error for unknown subcommand")
	}
	if strings.Contains(err.Error(), "did you mean") {
		t.Errorf("error = %q, should not contain suggestion for distant input", err.Error())
	}
}

func TestCommandExecuteHelpFlag(t *testing.T) {
	for _, helpArg := range []string{"-h", "--help", "help"} {
		t.Run(helpArg, func(t *testing.T) {
			root := &Command{
				Name:    "greenlight",
				Summary: "Local CI workflow runner",
				Subcommands: []*Command{
					{Name: "run", Summary: "Execute a workflow"},
				},
			}

			if err := root.Execute(context.Background(), []string{helpArg}); err != nil {
				t.Errorf("Execute(%q) error: %v", helpArg, err)
			}
		})
	}
}

func TestCommandExecuteNoArgsShowsHelp(t *testing.T) {
	root := &Command{
		Name: "greenlight",
		Subcommands: []*Command{
			{Name: "run", Summary: "Execute a workflow"},
		},
	}

	err := root.Execute(context.Background(), []string{})
	if err == nil {
		t.Fatal("Execute() = nil, want error for missing subcommand")
	}
	if !strings.Contains(err.Error(), "subcommand required") {
		t.Errorf("error = %q, want 'subcommand required'", err.Error())
	}
}

func TestCommandPrintHelp(t *testing.T) {
	command := &Command{
		Name:        "greenlight",
		Description: "Local-first CI workflow runner.",
		Subcommands: []*Command{
			{Name: "validate", Summary: "Check workflow definitions"},
			{Name: "run", Summary: "Execute a workflow"},
			{Name: "version", Summary: "Print version information"},
		},
		Examples: []Example{
			{
				Description: "Run the only workflow in the workspace",
				Command:     "greenlight run",
			},
			{
				Description: "Simulate a pull request against main",
				Command:     "greenlight run --event pull_request --branch main",
			},
		},
	}

	var buffer bytes.Buffer
	command.PrintHelp(&buffer)
	output := buffer.String()

	for _, want := range []string{
		"Local-first CI workflow runner.",
		"Usage:",
		"greenlight <command> [flags]",
		"Commands:",
		"validate",
		"Check workflow definitions",
		"Examples:",
		"# Run the only workflow in the workspace",
		"greenlight run --event pull_request --branch main",
		"Run 'greenlight <command> --help' for more information",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("help output missing %q\n\n%s", want, output)
		}
	}
}

func TestCommandContextReachesRun(t *testing.T) {
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "present")

	var seen any
	command := &Command{
		Name: "run",
		Run: func(ctx context.Context, args []string, _ *slog.Logger) error {
			seen = ctx.Value(key{})
			return nil
		},
	}

	if err := command.Execute(ctx, nil); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if seen != "present" {
		t.Errorf("context value = %v, want %q", seen, "present")
	}
}
