package main

import (
	"flag"

	"github.com/davidahmann/opsgraph/core/model"
)

var userOrder = []string{"get", "add", "update"}

func runUser(arguments []string) int {
	return runGroup("user", arguments, "Manage the roles used to resolve callers. Changes require the admin role.", userCommands(), userOrder)
}

func parseUser(id, role string) (model.User, error) {
	parsed, err := model.ParseRole(role)
	if err != nil {
		return model.User{}, err
	}
	return model.NewUser(id, parsed)
}

func userCommands() map[string]subcommand {
	return map[string]subcommand{
		"get": {
			explain: "Show a user's role.",
			usage:   "<id>",
			args:    1,
			run: func(s *session, _ *flag.FlagSet, args []string) (any, error) {
				user, found, err := s.service.GetUser(s.ctx, s.caller, args[0])
				if err != nil {
					return nil, err
				}
				if !found {
					return nil, notFound("user", args[0])
				}
				return user, nil
			},
		},
		"add": {
			explain: "Create a user with a role.",
			usage:   "<id> <role>",
			args:    2,
			run: func(s *session, _ *flag.FlagSet, args []string) (any, error) {
				user, err := parseUser(args[0], args[1])
				if err != nil {
					return nil, err
				}
				inserted, err := s.service.InsertUser(s.ctx, s.caller, user)
				if err != nil {
					return nil, err
				}
				return changeResult{Changed: inserted, Entity: "user", ID: user.ID}, nil
			},
		},
		"update": {
			explain: "Change a user's role.",
			usage:   "<id> <role>",
			args:    2,
			run: func(s *session, _ *flag.FlagSet, args []string) (any, error) {
				user, err := parseUser(args[0], args[1])
				if err != nil {
					return nil, err
				}
				updated, err := s.service.UpdateUser(s.ctx, s.caller, user)
				if err != nil {
					return nil, err
				}
				return changeResult{Changed: updated, Entity: "user", ID: user.ID}, nil
			},
		},
	}
}
