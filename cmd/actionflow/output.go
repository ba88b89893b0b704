package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"gopkg.in/yaml.v3"

	"github.com/rmax-ai/actionflow/pkg/graph"
	"github.com/rmax-ai/actionflow/pkg/workflow"
)

// printStructured writes v as JSON or YAML. It reports false for the table format.
func printStructured(w io.Writer, format string, v any) (bool, error) {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return true, err
		}
		return true, enc.Close()
	case "table", "":
		return false, nil
	}
	return true, fmt.Errorf("unknown output format %q", format)
}

func printGraph(w io.Writer, format string, g *graph.Graph) error {
	if done, err := printStructured(w, format, g); done {
		return err
	}

	outgoing := make(map[int64][]string)
	for _, e := range g.Edges {
		outgoing[e.Source] = append(outgoing[e.Source], strconv.FormatInt(e.Target, 10))
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"ID", "Name", "State", "Priority", "Stage", "Flags", "Next"})
	for _, n := range g.Nodes {
		a := g.Records[n.ID]
		name := a.Name
		if n.Main {
			name += " (main)"
		}
		stage := ""
		if a.Stage != nil {
			stage = a.Stage.Name
		}
		tw.AppendRow(table.Row{n.ID, name, a.State, a.Priority, stage, actionFlags(a), strings.Join(outgoing[n.ID], ", ")})
	}
	tw.AppendFooter(table.Row{"", countLabel(len(g.Nodes), "action"), "", "", "", "", countLabel(len(g.Edges), "relation")})
	tw.Style().Format.Footer = text.FormatDefault
	tw.Render()
	return nil
}

func countLabel(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

func actionFlags(a workflow.Action) string {
	var flags []string
	if a.IsAutomatic {
		flags = append(flags, "auto")
	}
	if a.CompletesOrderLine {
		flags = append(flags, "completes")
	}
	if a.RequireEvidence {
		flags = append(flags, "evidence")
	}
	return strings.Join(flags, ",")
}

func printProducts(w io.Writer, format string, products []workflow.Product) error {
	if done, err := printStructured(w, format, products); done {
		return err
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"ID", "Name"})
	for _, p := range products {
		tw.AppendRow(table.Row{p.ID, p.Name})
	}
	tw.Render()
	return nil
}

func printStages(w io.Writer, format string, stages []workflow.OrderStage) error {
	if done, err := printStructured(w, format, stages); done {
		return err
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"ID", "Stage"})
	for _, s := range stages {
		tw.AppendRow(table.Row{s.ID, s.Name})
	}
	tw.Render()
	return nil
}
