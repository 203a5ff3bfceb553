// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for greenlight.
//
// Configuration is resolved in this order:
//   - an explicit file from the GREENLIGHT_CONFIG environment variable
//     or the --config flag, which must exist, or
//   - <workspace>/.greenlight/config.yml when present, or
//   - built-in defaults.
//
// A workspace with no config file is fully functional: every setting
// has a default tuned for local runs. When a file is present it is the
// single source of truth; environment variables never override file
// values. The only expansion performed on path fields is ${VAR} and
// ${VAR:-default}, for portability of shared config files.
//
// Key exports:
//
//   - [Config] -- master struct with Workflows, Runner, Artifacts,
//     Secrets, Watch
//   - [Default] -- returns a Config with local-run defaults
//   - [Load] and [LoadFile] -- the two entry points for loading
//
// This package depends on no other greenlight packages.
package config
