package main

import (
	"flag"

	"github.com/davidahmann/opsgraph/core/model"
)

var statusOrder = []string{"get", "list", "set"}

func runStatus(arguments []string) int {
	return runGroup("status", arguments, "Read and set node health status.", statusCommands(), statusOrder)
}

func statusCommands() map[string]subcommand {
	return map[string]subcommand{
		"get": {
			explain: "Show the status of a node; nodes without a recorded status are unknown.",
			usage:   "<node-id>",
			args:    1,
			run: func(s *session, _ *flag.FlagSet, args []string) (any, error) {
				status, found, err := s.service.GetNodeStatus(s.ctx, s.caller, args[0])
				if err != nil {
					return nil, err
				}
				if !found {
					return nil, notFound("node", args[0])
				}
				return status, nil
			},
		},
		"list": {
			explain: "List the status of every node.",
			run: func(s *session, _ *flag.FlagSet, _ []string) (any, error) {
				return s.service.GetStatuses(s.ctx, s.caller)
			},
		},
		"set": {
			explain: "Set a node's status: unknown, healthy, unhealthy, maintenance or impacted.",
			usage:   "<node-id> <status>",
			args:    2,
			run: func(s *session, _ *flag.FlagSet, args []string) (any, error) {
				value, err := model.ParseStatus(args[1])
				if err != nil {
					return nil, err
				}
				status, err := model.NewStatus(args[0], value)
				if err != nil {
					return nil, err
				}
				applied, err := s.service.SetNodeStatus(s.ctx, s.caller, status)
				if err != nil {
					return nil, err
				}
				if !applied {
					return nil, notFound("node", status.NodeID)
				}
				return changeResult{Changed: true, Entity: "status", ID: status.NodeID}, nil
			},
		},
	}
}
