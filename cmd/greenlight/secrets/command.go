// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package secrets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/greenlight-ci/greenlight/cmd/greenlight/cli"
	libsecrets "github.com/greenlight-ci/greenlight/lib/secrets"
)

// Command returns the "secrets" subcommand group.
func Command() *cli.Command {
	return &cli.Command{
		Name:    "secrets",
		Summary: "Manage the encrypted secret store",
		Description: `Manage the workspace secret store: an age-encrypted file holding the
values jobs can request through their secrets: lists. Names are
environment-variable identifiers, normalized to upper case.

The store file can live in version control; only the identity file
(kept outside the workspace by default) decrypts it. During a run,
values reach only the jobs that declare them and are masked in
captured logs.`,
		Subcommands: []*cli.Command{
			initCommand(),
			setCommand(),
			listCommand(),
			removeCommand(),
		},
		Examples: []cli.Example{
			{
				Description: "One-time setup",
				Command:     "greenlight secrets init",
			},
			{
				Description: "Store a token",
				Command:     "greenlight secrets set DEPLOY_TOKEN=tok-12345",
			},
			{
				Description: "Store a multi-line key from a file",
				Command:     "greenlight secrets set SSH_KEY --stdin < deploy_key",
			},
		},
	}
}

// openStore locates the workspace and binds its secret store paths.
// The store group never scaffolds: an uninitialized directory points
// at greenlight init instead of growing a .greenlight of its own.
func openStore() (*libsecrets.Store, error) {
	workspace, err := cli.FindWorkspace()
	if err != nil {
		return nil, err
	}
	if !workspace.Initialized {
		return nil, errors.New("not in a greenlight workspace (run 'greenlight init' first)")
	}
	return libsecrets.Open(
		workspace.Config.IdentityPath(workspace.Root),
		workspace.Config.SecretsPath(workspace.Root),
	), nil
}

// withInitHint points the user at the init flow when the identity or
// store file is missing.
func withInitHint(err error) error {
	if errors.Is(err, libsecrets.ErrNotInitialized) {
		return fmt.Errorf("%w (run 'greenlight secrets init' first)", err)
	}
	return err
}

// --- init ---

// initCommand returns the "secrets init" command.
func initCommand() *cli.Command {
	return &cli.Command{
		Name:    "init",
		Summary: "Generate the identity and an empty store",
		Description: `Generate a fresh age identity and create an empty encrypted store.
Refuses to overwrite either file: replacing the identity would orphan
every store encrypted to it.`,
		Usage: "greenlight secrets init",
		Run: func(_ context.Context, args []string, _ *slog.Logger) error {
			if len(args) != 0 {
				return fmt.Errorf("secrets init takes no arguments (got %d)", len(args))
			}
			store, err := openStore()
			if err != nil {
				return err
			}

			publicKey, err := store.Init()
			if err != nil {
				return err
			}
			fmt.Printf("wrote identity %s\n", store.IdentityPath())
			fmt.Printf("wrote empty secret store %s\n", store.StorePath())
			fmt.Printf("public key: %s\n", publicKey)
			fmt.Println("\nback up the identity file: without it the store cannot be opened")
			return nil
		},
	}
}

// --- set ---

// setParams holds the parameters for the secrets set command.
type setParams struct {
	FromStdin bool `flag:"stdin" desc:"read the value from stdin"`
}

// setCommand returns the "secrets set" command.
func setCommand() *cli.Command {
	var params setParams

	return &cli.Command{
		Name:    "set",
		Summary: "Store or replace a secret",
		Description: `Store a value under a name, replacing any previous value. The value
comes from the NAME=VALUE form, or from stdin with --stdin (one
trailing newline is trimmed, so piped files behave as written).`,
		Usage: "greenlight secrets set NAME[=VALUE] [flags]",
		Examples: []cli.Example{
			{
				Description: "Inline value",
				Command:     "greenlight secrets set DEPLOY_TOKEN=tok-12345",
			},
			{
				Description: "Value from a file, never touching shell history",
				Command:     "greenlight secrets set SSH_KEY --stdin < deploy_key",
			},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("secrets set", &params)
		},
		Run: func(_ context.Context, args []string, _ *slog.Logger) error {
			if len(args) != 1 {
				return fmt.Errorf("secrets set takes exactly one NAME[=VALUE] argument (got %d)", len(args))
			}
			name, value, err := resolveValue(args[0], params.FromStdin, os.Stdin)
			if err != nil {
				return err
			}

			store, err := openStore()
			if err != nil {
				return err
			}
			if err := store.Set(name, value); err != nil {
				return withInitHint(err)
			}
			fmt.Printf("set %s\n", strings.ToUpper(name))
			return nil
		},
	}
}

// resolveValue decides the secret value from the argument form and the
// --stdin flag.
func resolveValue(arg string, fromStdin bool, stdin io.Reader) (name, value string, err error) {
	name, value, inline := strings.Cut(arg, "=")
	switch {
	case inline && fromStdin:
		return "", "", fmt.Errorf("value for %s given both inline and with --stdin", name)
	case inline:
		return name, value, nil
	case fromStdin:
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", "", fmt.Errorf("reading value from stdin: %w", err)
		}
		return name, strings.TrimRight(string(data), "\r\n"), nil
	default:
		return "", "", fmt.Errorf("no value for %s: use %s=VALUE or --stdin", arg, arg)
	}
}

// --- list ---

// listParams holds the parameters for the secrets list command.
type listParams struct {
	cli.JSONOutput
}

// listCommand returns the "secrets list" command.
func listCommand() *cli.Command {
	var params listParams

	return &cli.Command{
		Name:    "list",
		Summary: "List stored secret names",
		Description: `List the names in the secret store, sorted. Values are never
printed.`,
		Usage: "greenlight secrets list [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("secrets list", &params)
		},
		Run: func(_ context.Context, args []string, _ *slog.Logger) error {
			if len(args) != 0 {
				return fmt.Errorf("secrets list takes no arguments (got %d)", len(args))
			}
			store, err := openStore()
			if err != nil {
				return err
			}

			names, err := store.Names()
			if err != nil {
				return withInitHint(err)
			}

			if done, err := params.EmitJSON(names); done {
				return err
			}

			if len(names) == 0 {
				fmt.Println("no secrets stored")
				return nil
			}
			for _, name := range names {
				fmt.Println(name)
			}
			return nil
		},
	}
}

// --- remove ---

// removeCommand returns the "secrets remove" command.
func removeCommand() *cli.Command {
	return &cli.Command{
		Name:    "remove",
		Summary: "Delete a secret",
		Usage:   "greenlight secrets remove NAME",
		Run: func(_ context.Context, args []string, _ *slog.Logger) error {
			if len(args) != 1 {
				return fmt.Errorf("secrets remove takes exactly one name (got %d)", len(args))
			}
			store, err := openStore()
			if err != nil {
				return err
			}

			removed, err := store.Remove(args[0])
			if err != nil {
				return withInitHint(err)
			}
			if !removed {
				return fmt.Errorf("no secret named %s", strings.ToUpper(args[0]))
			}
			fmt.Printf("removed %s\n", strings.ToUpper(args[0]))
			return nil
		},
	}
}
