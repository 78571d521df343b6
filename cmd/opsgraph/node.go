package main

import (
	"flag"

	coreerrors "github.com/davidahmann/opsgraph/core/errors"
	"github.com/davidahmann/opsgraph/core/model"
)

var nodeOrder = []string{"get", "list", "add", "update", "delete", "parents", "dependents", "categories", "types"}

func runNode(arguments []string) int {
	return runGroup("node", arguments, "Read and change graph nodes.", nodeCommands(), nodeOrder)
}

type nodeFlags struct {
	label    string
	category string
	nodeType string
	data     string
}

func (f *nodeFlags) bind(flagSet *flag.FlagSet) {
	flagSet.StringVar(&f.label, "label", "", "display label (at most 120 characters)")
	flagSet.StringVar(&f.category, "category", "", "business, application, infrastructure or network")
	flagSet.StringVar(&f.nodeType, "type", "", "server, database, application or network")
	flagSet.StringVar(&f.data, "data", "", "JSON object of free-form attributes")
}

// apply overlays the supplied flags on node and validates the result.
func (f *nodeFlags) apply(flagSet *flag.FlagSet, node model.Node) (model.Node, error) {
	if flagWasSet(flagSet, "label") {
		node.Label = f.label
	}
	if flagWasSet(flagSet, "category") {
		category, err := model.ParseCategory(f.category)
		if err != nil {
			return model.Node{}, err
		}
		node.Category = category
	}
	if flagWasSet(flagSet, "type") {
		nodeType, err := model.ParseNodeType(f.nodeType)
		if err != nil {
			return model.Node{}, err
		}
		node.Type = nodeType
	}
	if flagWasSet(flagSet, "data") {
		data, err := model.ParseDataFlag(f.data)
		if err != nil {
			return model.Node{}, coreerrors.Invalid("--data: %v", err)
		}
		node.Data = data
	}
	return model.NewNode(node.ID, node.Label, node.Category, node.Type, node.Data)
}

func nodeCommands() map[string]subcommand {
	var flags nodeFlags
	return map[string]subcommand{
		"get": {
			explain: "Show one node.",
			usage:   "<id>",
			args:    1,
			run: func(s *session, _ *flag.FlagSet, args []string) (any, error) {
				node, found, err := s.service.GetNode(s.ctx, s.caller, args[0])
				if err != nil {
					return nil, err
				}
				if !found {
					return nil, notFound("node", args[0])
				}
				return node, nil
			},
		},
		"list": {
			explain: "List every node ordered by id.",
			run: func(s *session, _ *flag.FlagSet, _ []string) (any, error) {
				return s.service.GetNodes(s.ctx, s.caller)
			},
		},
		"add": {
			explain: "Insert a node. An existing id is left unchanged.",
			usage:   "<id> --label <label> --category <category> --type <type> [--data <json>]",
			args:    1,
			bind:    flags.bind,
			run: func(s *session, flagSet *flag.FlagSet, args []string) (any, error) {
				node, err := flags.apply(flagSet, model.Node{ID: args[0]})
				if err != nil {
					return nil, err
				}
				inserted, err := s.service.InsertNode(s.ctx, s.caller, node)
				if err != nil {
					return nil, err
				}
				return changeResult{Changed: inserted, Entity: "node", ID: node.ID}, nil
			},
		},
		"update": {
			explain: "Change the label, category, type or data of a node.",
			usage:   "<id> [--label <label>] [--category <category>] [--type <type>] [--data <json>]",
			args:    1,
			bind:    flags.bind,
			run: func(s *session, flagSet *flag.FlagSet, args []string) (any, error) {
				current, found, err := s.service.GetNode(s.ctx, s.caller, args[0])
				if err != nil {
					return nil, err
				}
				if !found {
					return nil, notFound("node", args[0])
				}
				node, err := flags.apply(flagSet, current)
				if err != nil {
					return nil, err
				}
				updated, err := s.service.UpdateNode(s.ctx, s.caller, node)
				if err != nil {
					return nil, err
				}
				return changeResult{Changed: updated, Entity: "node", ID: node.ID}, nil
			},
		},
		"delete": {
			explain: "Delete a node with its edges, status and project memberships.",
			usage:   "<id>",
			args:    1,
			run: func(s *session, _ *flag.FlagSet, args []string) (any, error) {
				deleted, err := s.service.DeleteNode(s.ctx, s.caller, args[0])
				if err != nil {
					return nil, err
				}
				return changeResult{Changed: deleted, Entity: "node", ID: args[0]}, nil
			},
		},
		"parents": {
			explain: "List the nodes that depend on the node through an edge into it.",
			usage:   "<id>",
			args:    1,
			run: func(s *session, _ *flag.FlagSet, args []string) (any, error) {
				return s.service.GetNodeParents(s.ctx, s.caller, args[0])
			},
		},
		"dependents": {
			explain: "List the nodes the node has an edge to.",
			usage:   "<id>",
			args:    1,
			run: func(s *session, _ *flag.FlagSet, args []string) (any, error) {
				return s.service.GetNodeDependents(s.ctx, s.caller, args[0])
			},
		},
		"categories": {
			explain: "List the accepted node categories.",
			run: func(s *session, _ *flag.FlagSet, _ []string) (any, error) {
				return s.service.GetCategories(s.ctx, s.caller)
			},
		},
		"types": {
			explain: "List the accepted node types.",
			run: func(s *session, _ *flag.FlagSet, _ []string) (any, error) {
				return s.service.GetTypes(s.ctx, s.caller)
			},
		},
	}
}
