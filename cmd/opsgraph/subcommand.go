package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	coreerrors "github.com/davidahmann/opsgraph/core/errors"
)

// subcommand describes one leaf command. run receives the parsed flag set
// so update commands can tell which fields were supplied.
type subcommand struct {
	explain   string
	usage     string
	args      int
	noSession bool
	bind      func(*flag.FlagSet)
	run       func(*session, *flag.FlagSet, []string) (any, error)
}

type commandOutput struct {
	OK            bool   `json:"ok"`
	Command       string `json:"command"`
	Result        any    `json:"result,omitempty"`
	Error         string `json:"error,omitempty"`
	ErrorCode     string `json:"error_code,omitempty"`
	ErrorCategory string `json:"error_category,omitempty"`
	Retryable     *bool  `json:"retryable,omitempty"`
	Hint          string `json:"hint,omitempty"`
}

type changeResult struct {
	Changed bool   `json:"changed"`
	Entity  string `json:"entity"`
	ID      string `json:"id"`
}

type countResult struct {
	Count int `json:"count"`
}

func runSubcommand(command string, arguments []string, def subcommand) int {
	if hasExplainFlag(arguments) {
		return writeExplain(def.explain)
	}
	flagSet := flag.NewFlagSet(command, flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)

	var common commonFlags
	common.bind(flagSet)
	if def.bind != nil {
		def.bind(flagSet)
	}

	if err := flagSet.Parse(reorderInterspersedFlags(arguments, valueFlagsOf(flagSet))); err != nil {
		return writeCommandOutput(common.jsonOutput, failure(command, coreerrors.Invalid("%v", err)), exitInvalidInput)
	}
	if common.helpFlag {
		printSubcommandUsage(command, def, flagSet)
		return exitOK
	}
	positionals := flagSet.Args()
	if len(positionals) != def.args {
		err := coreerrors.Invalid("expected %d positional argument(s), got %d: usage: opsgraph %s %s", def.args, len(positionals), command, def.usage)
		return writeCommandOutput(common.jsonOutput, failure(command, err), exitInvalidInput)
	}

	var current *session
	if !def.noSession {
		opened, err := openSession(context.Background(), common)
		if err != nil {
			return writeCommandOutput(common.jsonOutput, failure(command, err), exitCodeForError(err, exitInternalFailure))
		}
		defer opened.Close()
		current = opened
	}

	result, err := def.run(current, flagSet, positionals)
	if err != nil {
		return writeCommandOutput(common.jsonOutput, failure(command, err), exitCodeForError(err, exitInternalFailure))
	}
	return writeCommandOutput(common.jsonOutput, commandOutput{OK: true, Command: command, Result: result}, exitOK)
}

// runGroup dispatches "<group> <name> ..." to the named subcommand.
func runGroup(group string, arguments []string, explain string, commands map[string]subcommand, order []string) int {
	if len(arguments) == 0 || strings.HasPrefix(arguments[0], "-") {
		if hasExplainFlag(arguments) {
			return writeExplain(explain)
		}
		printGroupUsage(group, commands, order)
		if len(arguments) > 0 && strings.TrimSpace(arguments[0]) == "--help" {
			return exitOK
		}
		return exitInvalidInput
	}
	def, ok := commands[arguments[0]]
	if !ok {
		printGroupUsage(group, commands, order)
		return exitInvalidInput
	}
	return runSubcommand(group+" "+arguments[0], arguments[1:], def)
}

func failure(command string, err error) commandOutput {
	output := commandOutput{
		OK:            false,
		Command:       command,
		Error:         err.Error(),
		ErrorCode:     coreerrors.CodeOf(err),
		ErrorCategory: string(coreerrors.CategoryOf(err)),
		Hint:          coreerrors.HintOf(err),
	}
	if output.ErrorCategory != "" {
		retryable := coreerrors.RetryableOf(err)
		output.Retryable = &retryable
	}
	return output
}

func notFound(entity, id string) error {
	return coreerrors.Wrap(fmt.Errorf("%s %s not found", entity, id), coreerrors.CategoryNotFound, coreerrors.CodeNotFound, "check the id and retry", false)
}

func writeCommandOutput(jsonOutput bool, output commandOutput, exitCode int) int {
	if jsonOutput {
		return writeJSONOutput(output, exitCode)
	}
	if !output.OK {
		fmt.Fprintf(os.Stderr, "opsgraph %s error: %s\n", output.Command, output.Error)
		if output.Hint != "" {
			fmt.Fprintf(os.Stderr, "hint: %s\n", output.Hint)
		}
		return exitCode
	}
	printResult(os.Stdout, output.Result)
	return exitCode
}

func printSubcommandUsage(command string, def subcommand, flagSet *flag.FlagSet) {
	fmt.Println("Usage:")
	fmt.Printf("  opsgraph %s %s\n", command, def.usage)
	fmt.Println()
	fmt.Println(def.explain)
	fmt.Println()
	flagSet.SetOutput(os.Stdout)
	flagSet.PrintDefaults()
}

func printGroupUsage(group string, commands map[string]subcommand, order []string) {
	fmt.Println("Usage:")
	for _, name := range order {
		fmt.Printf("  opsgraph %s %s %s\n", group, name, commands[name].usage)
	}
}
