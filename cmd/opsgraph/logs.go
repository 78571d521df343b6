package main

import (
	"flag"
	"strings"

	schemagraph "github.com/davidahmann/opsgraph/core/schema/v1/graph"
	"github.com/davidahmann/opsgraph/core/schema/validate"
)

func runLogs(arguments []string) int {
	if len(arguments) > 0 && strings.TrimSpace(arguments[0]) == "verify" {
		return runSubcommand("logs verify", arguments[1:], logsVerifyCommand())
	}
	return runSubcommand("logs", arguments, logsCommand())
}

func logsCommand() subcommand {
	var limit int
	return subcommand{
		explain: "Show the most recent audit entries, newest first.",
		usage:   "[--limit <n>]",
		bind: func(flagSet *flag.FlagSet) {
			flagSet.IntVar(&limit, "limit", 0, "number of entries (default: audit.default_limit from config)")
		},
		run: func(s *session, flagSet *flag.FlagSet, _ []string) (any, error) {
			effective := s.config.Audit.DefaultLimit
			if flagWasSet(flagSet, "limit") {
				effective = limit
			}
			return s.service.GetLogs(s.ctx, s.caller, effective)
		},
	}
}

func logsVerifyCommand() subcommand {
	return subcommand{
		explain:   "Check that every line of an audit journal mirror matches the audit entry schema.",
		usage:     "<journal.jsonl>",
		args:      1,
		noSession: true,
		run: func(_ *session, _ *flag.FlagSet, args []string) (any, error) {
			if err := validate.ValidateJSONLFile(schemagraph.AuditEntrySchema, args[0]); err != nil {
				return nil, err
			}
			return map[string]any{"path": args[0], "valid": true}, nil
		},
	}
}
