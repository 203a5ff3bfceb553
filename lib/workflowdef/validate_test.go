// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package workflowdef

import (
	"strings"
	"testing"

	"github.com/greenlight-ci/greenlight/lib/schema/workflow"
)

// onPush is the minimal trigger set used by cases that are not about
// trigger validation.
var onPush = workflow.Triggers{Push: &workflow.PushTrigger{Branches: []string{"main"}}}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		wf             *workflow.Workflow
		expectedIssues int
		wantSubstrings []string
	}{
		{
			name: "valid minimal",
			wf: &workflow.Workflow{
				On: onPush,
				Jobs: []workflow.Job{
					{ID: "build", RunsOn: []string{"linux"}, Steps: []workflow.Step{{Run: "make"}}},
				},
			},
			expectedIssues: 0,
		},
		{
			name: "valid full",
			wf: &workflow.Workflow{
				Name: "full",
				On: workflow.Triggers{
					Push:        &workflow.PushTrigger{Branches: []string{"main", "release-*"}, Paths: []string{"lib/**"}},
					PullRequest: &workflow.PullRequestTrigger{Branches: []string{"main"}},
					WorkflowDispatch: &workflow.DispatchTrigger{
						Inputs: map[string]workflow.DispatchInput{"mode": {Default: "fast"}},
					},
					Schedule: []workflow.ScheduleTrigger{{Cron: "0 3 * * *"}},
				},
				Jobs: []workflow.Job{
					{
						ID:        "build",
						RunsOn:    []string{"linux"},
						Steps:     []workflow.Step{{ID: "compile", Run: "make build"}},
						Outputs:   map[string]string{"version": "${OUTPUT_compile_version}"},
						Artifacts: []string{"dist/**"},
					},
					{
						ID:      "test",
						RunsOn:  []string{"linux"},
						Needs:   []string{"build"},
						Secrets: []string{"API_TOKEN"},
						Strategy: &workflow.Strategy{
							MaxParallel: 2,
							Matrix: &workflow.MatrixSpec{
								Axes:    map[string][]string{"go": {"1.24", "1.25"}},
								Exclude: []map[string]string{{"go": "1.24"}},
							},
						},
						Defaults: &workflow.JobDefaults{Shell: "bash"},
						Steps: []workflow.Step{
							{Run: "make test", GracePeriod: "45s"},
							{Uses: "./actions/report", With: map[string]string{"format": "junit"}},
						},
					},
				},
			},
			expectedIssues: 0,
		},
		{
			name: "no triggers",
			wf: &workflow.Workflow{
				Jobs: []workflow.Job{
					{ID: "build", RunsOn: []string{"linux"}, Steps: []workflow.Step{{Run: "make"}}},
				},
			},
			expectedIssues: 1,
			wantSubstrings: []string{"no triggers"},
		},
		{
			name:           "no jobs",
			wf:             &workflow.Workflow{On: onPush},
			expectedIssues: 1,
			wantSubstrings: []string{"no jobs"},
		},
		{
			name: "empty cron",
			wf: &workflow.Workflow{
				On: workflow.Triggers{Schedule: []workflow.ScheduleTrigger{{Cron: ""}}},
				Jobs: []workflow.Job{
					{ID: "build", RunsOn: []string{"linux"}, Steps: []workflow.Step{{Run: "make"}}},
				},
			},
			expectedIssues: 1,
			wantSubstrings: []string{"cron is required"},
		},
		{
			name: "invalid cron",
			wf: &workflow.Workflow{
				On: workflow.Triggers{Schedule: []workflow.ScheduleTrigger{{Cron: "99 * * * *"}}},
				Jobs: []workflow.Job{
					{ID: "build", RunsOn: []string{"linux"}, Steps: []workflow.Step{{Run: "make"}}},
				},
			},
			expectedIssues: 1,
			wantSubstrings: []string{"on.schedule[0]"},
		},
		{
			name: "invalid dispatch input name",
			wf: &workflow.Workflow{
				On: workflow.Triggers{WorkflowDispatch: &workflow.DispatchTrigger{
					Inputs: map[string]workflow.DispatchInput{"bad-name": {}},
				}},
				Jobs: []workflow.Job{
					{ID: "build", RunsOn: []string{"linux"}, Steps: []workflow.Step{{Run: "make"}}},
				},
			},
			expectedIssues: 1,
			wantSubstrings: []string{"input name must be a valid identifier"},
		},
		{
			name: "invalid branch filter",
			wf: &workflow.Workflow{
				On: workflow.Triggers{Push: &workflow.PushTrigger{Branches: []string{"!"}}},
				Jobs: []workflow.Job{
					{ID: "build", RunsOn: []string{"linux"}, Steps: []workflow.Step{{Run: "make"}}},
				},
			},
			expectedIssues: 1,
			wantSubstrings: []string{"on.push.branches", "empty filter pattern"},
		},
		{
			name: "invalid job ID",
			wf: &workflow.Workflow{
				On: onPush,
				Jobs: []workflow.Job{
					{ID: "1bad", RunsOn: []string{"linux"}, Steps: []workflow.Step{{Run: "make"}}},
				},
			},
			expectedIssues: 1,
			wantSubstrings: []string{"job ID must be a valid identifier"},
		},
		{
			name: "missing runs-on",
			wf: &workflow.Workflow{
				On: onPush,
				Jobs: []workflow.Job{
					{ID: "build", Steps: []workflow.Step{{Run: "make"}}},
				},
			},
			expectedIssues: 1,
			wantSubstrings: []string{"runs-on is required"},
		},
		{
			name: "negative job timeout",
			wf: &workflow.Workflow{
				On: onPush,
				Jobs: []workflow.Job{
					{ID: "build", RunsOn: []string{"linux"}, Timeout: -5, Steps: []workflow.Step{{Run: "make"}}},
				},
			},
			expectedIssues: 1,
			wantSubstrings: []string{"timeout-minutes must not be negative"},
		},
		{
			name: "needs itself",
			wf: &workflow.Workflow{
				On: onPush,
				Jobs: []workflow.Job{
					{ID: "build", RunsOn: []string{"linux"}, Needs: []string{"build"}, Steps: []workflow.Step{{Run: "make"}}},
				},
			},
			expectedIssues: 1,
			wantSubstrings: []string{"references the job itself"},
		},
		{
			name: "needs unknown job",
			wf: &workflow.Workflow{
				On: onPush,
				Jobs: []workflow.Job{
					{ID: "build", RunsOn: []string{"linux"}, Needs: []string{"ghost"}, Steps: []workflow.Step{{Run: "make"}}},
				},
			},
			expectedIssues: 1,
			wantSubstrings: []string{`unknown job "ghost"`},
		},
		{
			name: "needs cycle",
			wf: &workflow.Workflow{
				On: onPush,
				Jobs: []workflow.Job{
					{ID: "a", RunsOn: []string{"linux"}, Needs: []string{"b"}, Steps: []workflow.Step{{Run: "make"}}},
					{ID: "b", RunsOn: []string{"linux"}, Needs: []string{"a"}, Steps: []workflow.Step{{Run: "make"}}},
				},
			},
			expectedIssues: 1,
			wantSubstrings: []string{"creates a dependency cycle"},
		},
		{
			name: "invalid secret name",
			wf: &workflow.Workflow{
				On: onPush,
				Jobs: []workflow.Job{
					{ID: "build", RunsOn: []string{"linux"}, Secrets: []string{"my-token"}, Steps: []workflow.Step{{Run: "make"}}},
				},
			},
			expectedIssues: 1,
			wantSubstrings: []string{"secret name"},
		},
		{
			name: "negative max-parallel",
			wf: &workflow.Workflow{
				On: onPush,
				Jobs: []workflow.Job{
					{
						ID: "build", RunsOn: []string{"linux"},
						Strategy: &workflow.Strategy{MaxParallel: -1},
						Steps:    []workflow.Step{{Run: "make"}},
					},
				},
			},
			expectedIssues: 1,
			wantSubstrings: []string{"max-parallel must not be negative"},
		},
		{
			name: "matrix axis with no values",
			wf: &workflow.Workflow{
				On: onPush,
				Jobs: []workflow.Job{
					{
						ID: "build", RunsOn: []string{"linux"},
						Strategy: &workflow.Strategy{Matrix: &workflow.MatrixSpec{Axes: map[string][]string{"os": {}}}},
						Steps:    []workflow.Step{{Run: "make"}},
					},
				},
			},
			expectedIssues: 1,
			wantSubstrings: []string{"has no values"},
		},
		{
			name: "matrix axis invalid name",
			wf: &workflow.Workflow{
				On: onPush,
				Jobs: []workflow.Job{
					{
						ID: "build", RunsOn: []string{"linux"},
						Strategy: &workflow.Strategy{Matrix: &workflow.MatrixSpec{Axes: map[string][]string{"my-axis": {"a"}}}},
						Steps:    []workflow.Step{{Run: "make"}},
					},
				},
			},
			expectedIssues: 1,
			wantSubstrings: []string{`axis "my-axis"`},
		},
		{
			name: "matrix exclude references unknown axis",
			wf: &workflow.Workflow{
				On: onPush,
				Jobs: []workflow.Job{
					{
						ID: "build", RunsOn: []string{"linux"},
						Strategy: &workflow.Strategy{Matrix: &workflow.MatrixSpec{
							Axes:    map[string][]string{"os": {"linux"}},
							Exclude: []map[string]string{{"arch": "arm64"}},
						}},
						Steps: []workflow.Step{{Run: "make"}},
					},
				},
			},
			expectedIssues: 1,
			wantSubstrings: []string{"references unknown axis"},
		},
		{
			name: "invalid defaults shell",
			wf: &workflow.Workflow{
				On: onPush,
				Jobs: []workflow.Job{
					{
						ID: "build", RunsOn: []string{"linux"},
						Defaults: &workflow.JobDefaults{Shell: "zsh"},
						Steps:    []workflow.Step{{Run: "make"}},
					},
				},
			},
			expectedIssues: 1,
			wantSubstrings: []string{"defaults.shell must be"},
		},
		{
			name: "no steps",
			wf: &workflow.Workflow{
				On:   onPush,
				Jobs: []workflow.Job{{ID: "build", RunsOn: []string{"linux"}}},
			},
			expectedIssues: 1,
			wantSubstrings: []string{"no steps"},
		},
		{
			name: "duplicate step IDs",
			wf: &workflow.Workflow{
				On: onPush,
				Jobs: []workflow.Job{
					{
						ID: "build", RunsOn: []string{"linux"},
						Steps: []workflow.Step{
							{ID: "s", Run: "make"},
							{ID: "s", Run: "make again"},
						},
					},
				},
			},
			expectedIssues: 1,
			wantSubstrings: []string{"duplicate step ID", "steps[0]"},
		},
		{
			name: "step with run and uses",
			wf: &workflow.Workflow{
				On: onPush,
				Jobs: []workflow.Job{
					{ID: "build", RunsOn: []string{"linux"}, Steps: []workflow.Step{{Run: "make", Uses: "./a"}}},
				},
			},
			expectedIssues: 1,
			wantSubstrings: []string{"mutually exclusive"},
		},
		{
			name: "step with neither run nor uses",
			wf: &workflow.Workflow{
				On: onPush,
				Jobs: []workflow.Job{
					{ID: "build", RunsOn: []string{"linux"}, Steps: []workflow.Step{{Name: "empty"}}},
				},
			},
			expectedIssues: 1,
			wantSubstrings: []string{"must set exactly one of run or uses"},
		},
		{
			name: "check on uses step",
			wf: &workflow.Workflow{
				On: onPush,
				Jobs: []workflow.Job{
					{ID: "build", RunsOn: []string{"linux"}, Steps: []workflow.Step{{Uses: "./a", Check: "test -f x"}}},
				},
			},
			expectedIssues: 1,
			wantSubstrings: []string{"check is only valid on run steps"},
		},
		{
			name: "with on run step",
			wf: &workflow.Workflow{
				On: onPush,
				Jobs: []workflow.Job{
					{ID: "build", RunsOn: []string{"linux"}, Steps: []workflow.Step{{Run: "make", With: map[string]string{"k": "v"}}}},
				},
			},
			expectedIssues: 1,
			wantSubstrings: []string{"with is only valid on uses steps"},
		},
		{
			name: "invalid uses reference",
			wf: &workflow.Workflow{
				On: onPush,
				Jobs: []workflow.Job{
					{ID: "build", RunsOn: []string{"linux"}, Steps: []workflow.Step{{Uses: "nodash"}}},
				},
			},
			expectedIssues: 1,
			wantSubstrings: []string{"missing @ref"},
		},
		{
			name: "invalid step shell",
			wf: &workflow.Workflow{
				On: onPush,
				Jobs: []workflow.Job{
					{ID: "build", RunsOn: []string{"linux"}, Steps: []workflow.Step{{Run: "make", Shell: "zsh"}}},
				},
			},
			expectedIssues: 1,
			wantSubstrings: []string{`shell must be "sh" or "bash"`},
		},
		{
			name: "invalid grace period",
			wf: &workflow.Workflow{
				On: onPush,
				Jobs: []workflow.Job{
					{ID: "build", RunsOn: []string{"linux"}, Steps: []workflow.Step{{Run: "make", GracePeriod: "soonish"}}},
				},
			},
			expectedIssues: 1,
			wantSubstrings: []string{"invalid grace-period"},
		},
		{
			name: "invalid step ID",
			wf: &workflow.Workflow{
				On: onPush,
				Jobs: []workflow.Job{
					{ID: "build", RunsOn: []string{"linux"}, Steps: []workflow.Step{{ID: "bad-id", Run: "make"}}},
				},
			},
			expectedIssues: 1,
			wantSubstrings: []string{"step ID must be a valid identifier"},
		},
		{
			name: "invalid output name",
			wf: &workflow.Workflow{
				On: onPush,
				Jobs: []workflow.Job{
					{
						ID: "build", RunsOn: []string{"linux"},
						Steps:   []workflow.Step{{Run: "make"}},
						Outputs: map[string]string{"bad-name": "${X}"},
					},
				},
			},
			expectedIssues: 1,
			wantSubstrings: []string{"output name must be a valid identifier"},
		},
		{
			name: "empty output value",
			wf: &workflow.Workflow{
				On: onPush,
				Jobs: []workflow.Job{
					{
						ID: "build", RunsOn: []string{"linux"},
						Steps:   []workflow.Step{{Run: "make"}},
						Outputs: map[string]string{"version": ""},
					},
				},
			},
			expectedIssues: 1,
			wantSubstrings: []string{"value is required"},
		},
		{
			name: "empty artifact pattern",
			wf: &workflow.Workflow{
				On: onPush,
				Jobs: []workflow.Job{
					{
						ID: "build", RunsOn: []string{"linux"},
						Steps:     []workflow.Step{{Run: "make"}},
						Artifacts: []string{""},
					},
				},
			},
			expectedIssues: 1,
			wantSubstrings: []string{"pattern must not be empty"},
		},
		{
			name: "multiple issues",
			wf: &workflow.Workflow{
				Jobs: []workflow.Job{
					{ID: "build", Steps: []workflow.Step{{Name: "empty"}}},
				},
			},
			// no triggers, runs-on required, step sets neither run nor uses
			expectedIssues: 3,
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			issues := Validate(testCase.wf)
			if len(issues) != testCase.expectedIssues {
				t.Fatalf("got %d issues, want %d:\n%s", len(issues), testCase.expectedIssues, strings.Join(issues, "\n"))
			}

			for _, substring := range testCase.wantSubstrings {
				found := false
				for _, issue := range issues {
					if strings.Contains(issue, substring) {
						found = true
						break
					}
				}
				if !found {
					t.Errorf("expected issue containing %q, got:\n%s", substring, strings.Join(issues, "\n"))
				}
			}
		})
	}
}
