package main

import (
	"fmt"
	"os"
)

// version is stamped at release time via ldflags; default stays dev for local builds.
var version = "0.0.0-dev"

const (
	exitOK               = 0
	exitInternalFailure  = 1
	exitNotFound         = 2
	exitPermissionDenied = 3
	exitConflict         = 4
	exitInvalidInput     = 6
)

func main() {
	os.Exit(run(os.Args))
}

func run(arguments []string) int {
	return runDispatch(arguments)
}

func runDispatch(arguments []string) int {
	if len(arguments) < 2 {
		fmt.Println("opsgraph", version)
		return exitOK
	}
	if arguments[1] == "--explain" {
		return writeExplain("opsgraph records an infrastructure topology as an acyclic dependency graph with per-node health, projects and an append-only audit trail.")
	}

	switch arguments[1] {
	case "node":
		return runNode(arguments[2:])
	case "edge":
		return runEdge(arguments[2:])
	case "status":
		return runStatus(arguments[2:])
	case "project":
		return runProject(arguments[2:])
	case "user":
		return runUser(arguments[2:])
	case "graph":
		return runSubcommand("graph", arguments[2:], graphCommand())
	case "logs":
		return runLogs(arguments[2:])
	case "import":
		return runSubcommand("import", arguments[2:], importCommand())
	case "doctor":
		return runDoctor(arguments[2:])
	case "version", "--version", "-v":
		if hasExplainFlag(arguments[2:]) {
			return writeExplain("Print the CLI version.")
		}
		fmt.Println("opsgraph", version)
		return exitOK
	case "help", "--help", "-h":
		printUsage()
		return exitOK
	default:
		printUsage()
		return exitInvalidInput
	}
}

func printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  opsgraph node get|list|add|update|delete|parents|dependents|categories|types ...")
	fmt.Println("  opsgraph edge get|list|add|update|delete ...")
	fmt.Println("  opsgraph status get|list|set ...")
	fmt.Println("  opsgraph project get|list|add|update|delete|attach|detach|graph ...")
	fmt.Println("  opsgraph user get|add|update ...")
	fmt.Println("  opsgraph graph [--out <path>]")
	fmt.Println("  opsgraph logs [--limit <n>]")
	fmt.Println("  opsgraph logs verify <journal.jsonl>")
	fmt.Println("  opsgraph import <document.json>")
	fmt.Println("  opsgraph doctor [--config <path>] [--db <path>]")
	fmt.Println("  opsgraph version")
	fmt.Println()
	fmt.Println("Common flags: --config --db --actor --ip --role --json --help --explain")
}
