package main

import (
	"flag"
	"os"
	"strings"

	coreerrors "github.com/davidahmann/opsgraph/core/errors"
	"github.com/davidahmann/opsgraph/core/fsx"
	"github.com/davidahmann/opsgraph/core/model"
	schemagraph "github.com/davidahmann/opsgraph/core/schema/v1/graph"
)

type graphExport struct {
	Nodes    []model.ViewNode `json:"nodes"`
	Edges    []model.ViewEdge `json:"edges"`
	Statuses []model.Status   `json:"statuses"`
}

func graphCommand() subcommand {
	var outPath string
	return subcommand{
		explain: "Show the whole graph, or write it with node statuses to a JSON file.",
		usage:   "[--out <path>]",
		bind: func(flagSet *flag.FlagSet) {
			flagSet.StringVar(&outPath, "out", "", "write the graph as JSON to this path")
		},
		run: func(s *session, _ *flag.FlagSet, _ []string) (any, error) {
			view, err := s.service.GetGraph(s.ctx, s.caller)
			if err != nil {
				return nil, err
			}
			if strings.TrimSpace(outPath) == "" {
				return view, nil
			}
			statuses, err := s.service.GetStatuses(s.ctx, s.caller)
			if err != nil {
				return nil, err
			}
			export := graphExport{Nodes: view.Nodes, Edges: view.Edges, Statuses: statuses}
			if err := fsx.WriteJSONAtomic(outPath, export, 0o600); err != nil {
				return nil, coreerrors.Wrap(err, coreerrors.CategoryInternalFailure, "export_write_failed", "check the output path and retry", false)
			}
			return map[string]any{"path": outPath, "nodes": len(view.Nodes), "edges": len(view.Edges)}, nil
		},
	}
}

func importCommand() subcommand {
	return subcommand{
		explain: "Import nodes, edges, statuses and projects from a " + schemagraph.ImportSchemaID + " JSON document.",
		usage:   "<document.json>",
		args:    1,
		run: func(s *session, _ *flag.FlagSet, args []string) (any, error) {
			// #nosec G304 -- import path is explicit local user input.
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return nil, coreerrors.Invalid("read import document: %v", err)
			}
			return s.service.ImportJSON(s.ctx, s.caller, raw)
		},
	}
}
