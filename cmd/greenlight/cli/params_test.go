// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestBindFlagsBasicTypes(t *testing.T) {
	type params struct {
		Name     string        `flag:"name" desc:"the name"`
		Verbose  bool          `flag:"verbose,v" desc:"enable verbose output"`
		Count    int           `flag:"count" desc:"number of items"`
		Offset   int64         `flag:"offset" desc:"byte offset"`
		Rate     float64       `flag:"rate" desc:"sampling rate"`
		Timeout  time.Duration `flag:"timeout" desc:"request timeout"`
		Tags     []string      `flag:"tags" desc:"tag list"`
		Untagged string        // no flag tag — should be skipped
	}

	var p params
	flagSet := pflag.NewFlagSet("test", pflag.ContinueOnError)
	if err := BindFlags(&p, flagSet); err != nil {
		t.Fatalf("BindFlags: %v", err)
	}

	err := flagSet.Parse([]string{
		"--name", "comprehensive",
		"-v",
		"--count", "42",
		"--offset", "1099511627776",
		"--rate", "0.95",
		"--timeout", "30s",
		"--tags", "a,b,c",
	})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if p.Name != "comprehensive" {
		t.Errorf("Name = %q, want %q", p.Name, "comprehensive")
	}
	if !p.Verbose {
		t.Error("Verbose = false, want true")
	}
	if p.Count != 42 {
		t.Errorf("Count = %d, want 42", p.Count)
	}
	if p.Offset != 1099511627776 {
		t.Errorf("Offset = %d, want 1099511627776", p.Offset)
	}
	if p.Rate != 0.95 {
		t.Errorf("Rate = %f, want 0.95", p.Rate)
	}
	if p.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", p.Timeout)
	}
	if len(p.Tags) != 3 || p.Tags[0] != "a" || p.Tags[1] != "b" || p.Tags[2] != "c" {
		t.Errorf("Tags = %v, want [a b c]", p.Tags)
	}
	if p.Untagged != "" {
		t.Errorf("Untagged = %q, want empty (should be skipped)", p.Untagged)
	}
}

func TestBindFlagsDefaults(t *testing.T) {
	type params struct {
		Shell   string        `flag:"shell" desc:"step shell" default:"sh"`
		Limit   int           `flag:"limit" desc:"row limit" default:"20"`
		Timeout time.Duration `flag:"timeout" desc:"timeout" default:"5m"`
		Debug   bool          `flag:"debug" desc:"debug mode" default:"true"`
		Ignore  []string      `flag:"ignore" desc:"ignore globs" default:"vendor/**,*.log"`
	}

	var p params
	flagSet := pflag.NewFlagSet("test", pflag.ContinueOnError)
	if err := BindFlags(&p, flagSet); err != nil {
		t.Fatalf("BindFlags: %v", err)
	}

	// Parse with no arguments — should get all defaults.
	if err := flagSet.Parse(nil); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if p.Shell != "sh" {
		t.Errorf("Shell = %q, want %q", p.Shell, "sh")
	}
	if p.Limit != 20 {
		t.Errorf("Limit = %d, want 20", p.Limit)
	}
	if p.Timeout != 5*time.Minute {
		t.Errorf("Timeout = %v, want 5m", p.Timeout)
	}
	if !p.Debug {
		t.Error("Debug = false, want true")
	}
	if len(p.Ignore) != 2 || p.Ignore[0] != "vendor/**" || p.Ignore[1] != "*.log" {
		t.Errorf("Ignore = %v, want [vendor/** *.log]", p.Ignore)
	}
}

func TestBindFlagsDefaultsOverriddenByCLI(t *testing.T) {
	type params struct {
		Shell string `flag:"shell" desc:"step shell" default:"sh"`
		Limit int    `flag:"limit" desc:"row limit" default:"20"`
	}

	var p params
	flagSet := pflag.NewFlagSet("test", pflag.ContinueOnError)
	if err := BindFlags(&p, flagSet); err != nil {
		t.Fatalf("BindFlags: %v", err)
	}

	if err := flagSet.Parse([]string{"--shell", "bash", "--limit", "50"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if p.Shell != "bash" {
		t.Errorf("Shell = %q, want %q", p.Shell, "bash")
	}
	if p.Limit != 50 {
		t.Errorf("Limit = %d, want 50", p.Limit)
	}
}

func TestBindFlagsEmbeddedStruct(t *testing.T) {
	type params struct {
		JSONOutput
		Workflow string `flag:"workflow" desc:"workflow name"`
	}

	var p params
	flagSet := pflag.NewFlagSet("test", pflag.ContinueOnError)
	if err := BindFlags(&p, flagSet); err != nil {
		t.Fatalf("BindFlags: %v", err)
	}

	if err := flagSet.Parse([]string{"--json", "--workflow", "nightly"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if !p.OutputJSON {
		t.Error("OutputJSON = false, want true (embedded JSONOutput flag)")
	}
	if p.Workflow != "nightly" {
		t.Errorf("Workflow = %q, want %q", p.Workflow, "nightly")
	}
}

func TestBindFlagsRejectsNonPointer(t *testing.T) {
	type params struct {
		Name string `flag:"name"`
	}

	flagSet := pflag.NewFlagSet("test", pflag.ContinueOnError)
	err := BindFlags(params{}, flagSet)
	if err == nil {
		t.Fatal("BindFlags(non-pointer) = nil, want error")
	}
	if !strings.Contains(err.Error(), "pointer to a struct") {
		t.Errorf("error = %q, want mention of pointer requirement", err.Error())
	}
}

func TestBindFlagsRejectsUnsupportedType(t *testing.T) {
	type params struct {
		Bad map[string]string `flag:"bad"`
	}

	var p params
	flagSet := pflag.NewFlagSet("test", pflag.ContinueOnError)
	err := BindFlags(&p, flagSet)
	if err == nil {
		t.Fatal("BindFlags(map field) = nil, want error")
	}
	if !strings.Contains(err.Error(), "unsupported type") {
		t.Errorf("error = %q, want 'unsupported type'", err.Error())
	}
}

func TestBindFlagsRejectsBadDefault(t *testing.T) {
	type params struct {
		Count int `flag:"count" default:"not-a-number"`
	}

	var p params
	flagSet := pflag.NewFlagSet("test", pflag.ContinueOnError)
	if err := BindFlags(&p, flagSet); err == nil {
		t.Fatal("BindFlags(bad default) = nil, want error")
	}
}

func TestFlagsFromParamsPanicsOnInvalidParams(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("FlagsFromParams(non-pointer) did not panic")
		}
	}()
	FlagsFromParams("test", struct{}{})
}
