// Copyright 2026 The Greenlight Authors
// SPDX-License-Identifier: Apache-2.0

package workflowdef

import (
	"errors"
	"fmt"
	"io"
	"text/template"

	"github.com/dominikbraun/graph"

	"github.com/greenlight-ci/greenlight/lib/schema/workflow"
)

// JobGraph builds the directed job dependency graph from needs edges.
// Edges point from a need to the jobs depending on it. Returns an
// error when a needs edge would create a cycle or references an
// undeclared job.
func JobGraph(wf *workflow.Workflow) (graph.Graph[string, string], error) {
	g := graph.New(graph.StringHash, graph.Directed(), graph.PreventCycles())

	for i := range wf.Jobs {
		if err := g.AddVertex(wf.Jobs[i].ID); err != nil {
			return nil, fmt.Errorf("jobs.%s: %w", wf.Jobs[i].ID, err)
		}
	}

	for i := range wf.Jobs {
		job := &wf.Jobs[i]
		for _, need := range job.Needs {
			err := g.AddEdge(need, job.ID)
			switch {
			case err == nil:
			case errors.Is(err, graph.ErrEdgeCreatesCycle):
				return nil, fmt.Errorf("jobs.%s: needs %q creates a dependency cycle", job.ID, need)
			case errors.Is(err, graph.ErrVertexNotFound):
				return nil, fmt.Errorf("jobs.%s: needs references unknown job %q", job.ID, need)
			default:
				return nil, fmt.Errorf("jobs.%s: needs %q: %w", job.ID, need, err)
			}
		}
	}

	return g, nil
}

// ExecutionOrder returns job IDs in a topological order of the needs
// graph. Ties break by declaration order, so the result is
// deterministic for a given workflow file.
func ExecutionOrder(wf *workflow.Workflow) ([]string, error) {
	g, err := JobGraph(wf)
	if err != nil {
		return nil, err
	}

	declared := make(map[string]int, len(wf.Jobs))
	for i := range wf.Jobs {
		declared[wf.Jobs[i].ID] = i
	}

	order, err := graph.StableTopologicalSort(g, func(a, b string) bool {
		return declared[a] < declared[b]
	})
	if err != nil {
		return nil, fmt.Errorf("ordering jobs: %w", err)
	}
	return order, nil
}

// dotTemplate renders the job graph in Graphviz DOT form. Nodes carry
// the job display name; edges follow needs.
const dotTemplate = `digraph {{printf "%q" .Name}} {
	rankdir="LR";
	node [shape=box, fontname="Helvetica"];
{{- range .Nodes}}
	{{printf "%q" .ID}} [label={{printf "%q" .Label}}];
{{- end}}
{{- range .Edges}}
	{{printf "%q" .From}} -> {{printf "%q" .To}};
{{- end}}
}
`

type dotGraph struct {
	Name  string
	Nodes []dotNode
	Edges []dotEdge
}

type dotNode struct {
	ID    string
	Label string
}

type dotEdge struct {
	From string
	To   string
}

// WriteDOT writes the workflow's job graph in Graphviz DOT format.
// Nodes and edges appear in declaration order so the output is
// stable. The needs graph is checked for cycles first.
func WriteDOT(w io.Writer, wf *workflow.Workflow) error {
	if _, err := JobGraph(wf); err != nil {
		return err
	}

	desc := dotGraph{Name: wf.Name}
	for i := range wf.Jobs {
		job := &wf.Jobs[i]
		label := job.DisplayName()
		if job.Strategy != nil && job.Strategy.Matrix != nil {
			label += " (matrix)"
		}
		desc.Nodes = append(desc.Nodes, dotNode{ID: job.ID, Label: label})
		for _, need := range job.Needs {
			desc.Edges = append(desc.Edges, dotEdge{From: need, To: job.ID})
		}
	}

	tpl, err := template.New("dot").Parse(dotTemplate)
	if err != nil {
		return fmt.Errorf("parsing DOT template: %w", err)
	}
	if err := tpl.Execute(w, desc); err != nil {
		return fmt.Errorf("rendering DOT: %w", err)
	}
	return nil
}
