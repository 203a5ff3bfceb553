// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli provides the command tree framework for the greenlight
// binary: command declaration and dispatch, pflag integration with
// struct-tag binding, help rendering, did-you-mean suggestions for
// misspelled subcommands and flags, JSON output support, and exit
// code signaling.
//
// Commands are declared as [Command] values and assembled into a tree
// by the commands package. Dispatch walks the tree by positional
// arguments, parses flags with pflag, and invokes the matched
// command's Run function with the remaining arguments, a context that
// cancels on SIGINT/SIGTERM, and a structured logger.
package cli
