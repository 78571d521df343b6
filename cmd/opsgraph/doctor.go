package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/davidahmann/opsgraph/core/doctor"
	coreerrors "github.com/davidahmann/opsgraph/core/errors"
)

func runDoctor(arguments []string) int {
	if hasExplainFlag(arguments) {
		return writeExplain("Inspect configuration, database integrity, graph acyclicity and the audit journal mirror, and print fix commands for anything wrong.")
	}
	flagSet := flag.NewFlagSet("doctor", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)

	var configPath string
	var dbPath string
	var jsonOutput bool
	var helpFlag bool
	flagSet.StringVar(&configPath, "config", "", "path to config.yaml (default: .opsgraph/config.yaml when present)")
	flagSet.StringVar(&dbPath, "db", "", "database path (overrides store.path)")
	flagSet.BoolVar(&jsonOutput, "json", false, "emit JSON output")
	flagSet.BoolVar(&helpFlag, "help", false, "show help")

	if err := flagSet.Parse(reorderInterspersedFlags(arguments, valueFlagsOf(flagSet))); err != nil {
		return writeCommandOutput(jsonOutput, failure("doctor", coreerrors.Invalid("%v", err)), exitInvalidInput)
	}
	if helpFlag {
		fmt.Println("Usage:")
		fmt.Println("  opsgraph doctor [--config <path>] [--db <path>] [--json]")
		return exitOK
	}
	if len(flagSet.Args()) > 0 {
		return writeCommandOutput(jsonOutput, failure("doctor", coreerrors.Invalid("unexpected positional arguments")), exitInvalidInput)
	}

	result := doctor.Run(context.Background(), doctor.Options{
		ConfigPath:      configPath,
		DBPath:          dbPath,
		ProducerVersion: version,
	})
	exitCode := exitOK
	if result.Failed() {
		exitCode = exitInternalFailure
	}
	if jsonOutput {
		return writeJSONOutput(commandOutput{OK: !result.Failed(), Command: "doctor", Result: result}, exitCode)
	}
	printDoctor(os.Stdout, result)
	return exitCode
}

func printDoctor(out io.Writer, result doctor.Result) {
	for _, check := range result.Checks {
		_, _ = fmt.Fprintf(out, "%-5s %-14s %s\n", check.Status, check.Name, check.Message)
	}
	_, _ = fmt.Fprintln(out, result.Summary)
	for _, command := range result.FixCommands {
		_, _ = fmt.Fprintf(out, "fix: %s\n", command)
	}
}
