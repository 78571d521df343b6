package main

import (
	"flag"
	"strings"
)

// reorderInterspersedFlags moves flags ahead of positionals so that
// "node add web --label Web" parses like "node add --label Web web".
func reorderInterspersedFlags(arguments []string, valueFlags map[string]bool) []string {
	if len(arguments) == 0 {
		return arguments
	}

	flags := make([]string, 0, len(arguments))
	positionals := make([]string, 0, len(arguments))

	for index := 0; index < len(arguments); index++ {
		argument := arguments[index]
		if argument == "--" {
			positionals = append(positionals, arguments[index+1:]...)
			break
		}
		if !isFlagToken(argument) {
			positionals = append(positionals, argument)
			continue
		}

		flags = append(flags, argument)
		if strings.Contains(argument, "=") || !flagRequiresValue(argument, valueFlags) {
			continue
		}
		if index+1 >= len(arguments) {
			continue
		}
		index++
		flags = append(flags, arguments[index])
	}

	return append(flags, positionals...)
}

func isFlagToken(argument string) bool {
	return len(argument) > 1 && strings.HasPrefix(argument, "-")
}

func flagRequiresValue(argument string, valueFlags map[string]bool) bool {
	name := strings.TrimLeft(argument, "-")
	required, ok := valueFlags[name]
	return ok && required
}

// valueFlagsOf reports, per registered flag, whether it consumes a value.
func valueFlagsOf(flagSet *flag.FlagSet) map[string]bool {
	valueFlags := map[string]bool{}
	flagSet.VisitAll(func(registered *flag.Flag) {
		boolFlag, ok := registered.Value.(interface{ IsBoolFlag() bool })
		valueFlags[registered.Name] = !(ok && boolFlag.IsBoolFlag())
	})
	return valueFlags
}

func flagWasSet(flagSet *flag.FlagSet, name string) bool {
	set := false
	flagSet.Visit(func(visited *flag.Flag) {
		if visited.Name == name {
			set = true
		}
	})
	return set
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
