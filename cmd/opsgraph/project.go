package main

import (
	"flag"

	coreerrors "github.com/davidahmann/opsgraph/core/errors"
	"github.com/davidahmann/opsgraph/core/model"
)

var projectOrder = []string{"get", "list", "add", "update", "delete", "attach", "detach", "graph"}

func runProject(arguments []string) int {
	return runGroup("project", arguments, "Group nodes into projects and materialize the subgraph reachable from them.", projectCommands(), projectOrder)
}

type projectFlags struct {
	id     string
	name   string
	author string
	data   string
	nodes  string
}

func (f *projectFlags) bind(flagSet *flag.FlagSet) {
	flagSet.StringVar(&f.name, "name", "", "project name")
	flagSet.StringVar(&f.author, "author", "", "project author (default: --actor)")
	flagSet.StringVar(&f.data, "data", "", "JSON object of free-form attributes")
}

func (f *projectFlags) bindAdd(flagSet *flag.FlagSet) {
	f.bind(flagSet)
	flagSet.StringVar(&f.id, "id", "", "project id (default: random UUID)")
	flagSet.StringVar(&f.nodes, "nodes", "", "comma separated member node ids")
}

func (f *projectFlags) parseData(flagSet *flag.FlagSet, fallback model.Data) (model.Data, error) {
	if !flagWasSet(flagSet, "data") {
		return fallback, nil
	}
	data, err := model.ParseDataFlag(f.data)
	if err != nil {
		return nil, coreerrors.Invalid("--data: %v", err)
	}
	return data, nil
}

func projectCommands() map[string]subcommand {
	var flags projectFlags
	return map[string]subcommand{
		"get": {
			explain: "Show one project with its member node ids.",
			usage:   "<id>",
			args:    1,
			run: func(s *session, _ *flag.FlagSet, args []string) (any, error) {
				project, found, err := s.service.GetProject(s.ctx, s.caller, args[0])
				if err != nil {
					return nil, err
				}
				if !found {
					return nil, notFound("project", args[0])
				}
				return project, nil
			},
		},
		"list": {
			explain: "List every project ordered by id.",
			run: func(s *session, _ *flag.FlagSet, _ []string) (any, error) {
				return s.service.GetProjects(s.ctx, s.caller)
			},
		},
		"add": {
			explain: "Create a project and its membership in one step.",
			usage:   "--name <name> [--id <id>] [--author <author>] [--nodes <a,b>] [--data <json>]",
			bind:    flags.bindAdd,
			run: func(s *session, flagSet *flag.FlagSet, _ []string) (any, error) {
				data, err := flags.parseData(flagSet, nil)
				if err != nil {
					return nil, err
				}
				author := firstNonEmpty(flags.author, s.caller.ActorID)
				project, err := model.NewProject(flags.id, flags.name, author, data, splitList(flags.nodes))
				if err != nil {
					return nil, err
				}
				stored, inserted, err := s.service.InsertProject(s.ctx, s.caller, project)
				if err != nil {
					return nil, err
				}
				if !inserted {
					return changeResult{Changed: false, Entity: "project", ID: project.ID}, nil
				}
				return stored, nil
			},
		},
		"update": {
			explain: "Change the name, author or data of a project. Membership is changed with attach and detach.",
			usage:   "<id> [--name <name>] [--author <author>] [--data <json>]",
			args:    1,
			bind:    flags.bind,
			run: func(s *session, flagSet *flag.FlagSet, args []string) (any, error) {
				current, found, err := s.service.GetProject(s.ctx, s.caller, args[0])
				if err != nil {
					return nil, err
				}
				if !found {
					return nil, notFound("project", args[0])
				}
				if flagWasSet(flagSet, "name") {
					current.Name = flags.name
				}
				if flagWasSet(flagSet, "author") {
					current.Author = flags.author
				}
				if current.Data, err = flags.parseData(flagSet, current.Data); err != nil {
					return nil, err
				}
				project, err := model.NewProject(current.ID, current.Name, current.Author, current.Data, current.NodeIDs)
				if err != nil {
					return nil, err
				}
				updated, err := s.service.UpdateProject(s.ctx, s.caller, project)
				if err != nil {
					return nil, err
				}
				return changeResult{Changed: updated, Entity: "project", ID: project.ID}, nil
			},
		},
		"delete": {
			explain: "Delete a project. Its member nodes are kept.",
			usage:   "<id>",
			args:    1,
			run: func(s *session, _ *flag.FlagSet, args []string) (any, error) {
				deleted, err := s.service.DeleteProject(s.ctx, s.caller, args[0])
				if err != nil {
					return nil, err
				}
				return changeResult{Changed: deleted, Entity: "project", ID: args[0]}, nil
			},
		},
		"attach": {
			explain: "Add a node to a project.",
			usage:   "<project-id> <node-id>",
			args:    2,
			run: func(s *session, _ *flag.FlagSet, args []string) (any, error) {
				added, err := s.service.AddProjectNode(s.ctx, s.caller, args[0], args[1])
				if err != nil {
					return nil, err
				}
				return changeResult{Changed: added, Entity: "project_node", ID: model.MembershipID(args[0], args[1])}, nil
			},
		},
		"detach": {
			explain: "Remove a node from a project.",
			usage:   "<project-id> <node-id>",
			args:    2,
			run: func(s *session, _ *flag.FlagSet, args []string) (any, error) {
				removed, err := s.service.RemoveProjectNode(s.ctx, s.caller, args[0], args[1])
				if err != nil {
					return nil, err
				}
				return changeResult{Changed: removed, Entity: "project_node", ID: model.MembershipID(args[0], args[1])}, nil
			},
		},
		"graph": {
			explain: "Show every node and edge reachable from the project's members, with hop depth.",
			usage:   "<id>",
			args:    1,
			run: func(s *session, _ *flag.FlagSet, args []string) (any, error) {
				view, found, err := s.service.GetProjectGraph(s.ctx, s.caller, args[0])
				if err != nil {
					return nil, err
				}
				if !found {
					return nil, notFound("project", args[0])
				}
				return view, nil
			},
		},
	}
}
