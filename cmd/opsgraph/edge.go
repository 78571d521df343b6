package main

import (
	"flag"

	coreerrors "github.com/davidahmann/opsgraph/core/errors"
	"github.com/davidahmann/opsgraph/core/model"
)

var edgeOrder = []string{"get", "list", "add", "update", "delete"}

func runEdge(arguments []string) int {
	return runGroup("edge", arguments, "Read and change directed edges. Edges that would close a cycle are refused.", edgeCommands(), edgeOrder)
}

type edgeFlags struct {
	label string
	data  string
}

func (f *edgeFlags) bind(flagSet *flag.FlagSet) {
	flagSet.StringVar(&f.label, "label", "", "edge label")
	flagSet.StringVar(&f.data, "data", "", "JSON object of free-form attributes")
}

func (f *edgeFlags) apply(flagSet *flag.FlagSet, edge model.Edge) (model.Edge, error) {
	if flagWasSet(flagSet, "label") {
		edge.Label = f.label
	}
	if flagWasSet(flagSet, "data") {
		data, err := model.ParseDataFlag(f.data)
		if err != nil {
			return model.Edge{}, coreerrors.Invalid("--data: %v", err)
		}
		edge.Data = data
	}
	return model.NewEdge(edge.Source, edge.Target, edge.Label, edge.Data)
}

func edgeCommands() map[string]subcommand {
	var flags edgeFlags
	return map[string]subcommand{
		"get": {
			explain: "Show the edge from source to target.",
			usage:   "<source> <target>",
			args:    2,
			run: func(s *session, _ *flag.FlagSet, args []string) (any, error) {
				edge, found, err := s.service.GetEdge(s.ctx, s.caller, args[0], args[1])
				if err != nil {
					return nil, err
				}
				if !found {
					return nil, notFound("edge", model.EdgeID(args[0], args[1]))
				}
				return edge, nil
			},
		},
		"list": {
			explain: "List every edge ordered by id.",
			run: func(s *session, _ *flag.FlagSet, _ []string) (any, error) {
				return s.service.GetEdges(s.ctx, s.caller)
			},
		},
		"add": {
			explain: "Insert an edge. Duplicates and edges that would create a cycle are left out and reported unchanged.",
			usage:   "<source> <target> [--label <label>] [--data <json>]",
			args:    2,
			bind:    flags.bind,
			run: func(s *session, flagSet *flag.FlagSet, args []string) (any, error) {
				edge, err := flags.apply(flagSet, model.Edge{Source: args[0], Target: args[1]})
				if err != nil {
					return nil, err
				}
				inserted, err := s.service.InsertEdge(s.ctx, s.caller, edge)
				if err != nil {
					return nil, err
				}
				return changeResult{Changed: inserted, Entity: "edge", ID: edge.ID}, nil
			},
		},
		"update": {
			explain: "Change the label or data of an edge.",
			usage:   "<source> <target> [--label <label>] [--data <json>]",
			args:    2,
			bind:    flags.bind,
			run: func(s *session, flagSet *flag.FlagSet, args []string) (any, error) {
				current, found, err := s.service.GetEdge(s.ctx, s.caller, args[0], args[1])
				if err != nil {
					return nil, err
				}
				if !found {
					return nil, notFound("edge", model.EdgeID(args[0], args[1]))
				}
				edge, err := flags.apply(flagSet, current)
				if err != nil {
					return nil, err
				}
				updated, err := s.service.UpdateEdge(s.ctx, s.caller, edge)
				if err != nil {
					return nil, err
				}
				return changeResult{Changed: updated, Entity: "edge", ID: edge.ID}, nil
			},
		},
		"delete": {
			explain: "Delete the edge from source to target.",
			usage:   "<source> <target>",
			args:    2,
			run: func(s *session, _ *flag.FlagSet, args []string) (any, error) {
				deleted, err := s.service.DeleteEdge(s.ctx, s.caller, args[0], args[1])
				if err != nil {
					return nil, err
				}
				return changeResult{Changed: deleted, Entity: "edge", ID: model.EdgeID(args[0], args[1])}, nil
			},
		},
	}
}
