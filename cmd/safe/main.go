// Command safe is SAFE's CLI entrypoint: safe [-v] <path-to-binary>
// [callgraph-dump], implementing the argument contract of spec.md §6 and
// its SPEC_FULL.md §6 extension (an optional fourth token overriding the
// default sibling-path call-graph dump lookup).
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/libhal/safe/internal/config"
	"github.com/libhal/safe/internal/diagnostics"
	"github.com/libhal/safe/internal/pipeline"
	"github.com/libhal/safe/internal/report"
)

// Exit codes for the Environment-class failures spec.md §6/§7 names
// explicitly; anything else that aborts the pipeline (Decode, Lookup)
// exits 4.
const (
	exitOK               = 0
	exitInvalidArgAmount = 1
	exitInvalidFlag      = 2
	exitFileNotFound     = 3
	exitPipelineAborted  = 4
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr *os.File) int {
	verbose, binPath, dumpOverride, exitCode := parseArgs(args)
	if exitCode != exitOK {
		printUsageError(stderr, exitCode)
		return exitCode
	}

	if _, err := os.Stat(binPath); err != nil {
		fmt.Fprintf(stderr, "safe: FILE_NOT_FOUND: %s\n", binPath)
		return exitFileNotFound
	}

	cfg := config.Load()
	if verbose {
		cfg.Verbose = true
	}

	logger, closeLog := diagnostics.New(cfg.Verbose, cfg.LogDir)
	defer closeLog()

	dumpPath := dumpOverride
	if dumpPath == "" {
		dumpPath = siblingDumpPath(binPath)
	}

	driver, err := pipeline.Load(binPath, dumpPath, cfg.NoMmap, logger)
	if err != nil {
		fmt.Fprintf(stderr, "safe: %s\n", err.Error())
		return exitPipelineAborted
	}
	defer driver.Close()

	focusFunctions := throwReachableFunctionNames(driver)

	for _, name := range focusFunctions {
		_, matches, err := driver.RunFunction(name)
		report.WriteOutcome(stdout, name, matches, err)
		if cfg.Verbose && err == nil {
			report.WriteCatchTable(stdout, driver.Correlator.Records())
		}
	}

	return exitOK
}

// parseArgs validates the 1-to-3-token (after the program name) argument
// contract: [-v] <path> [dump-path]. Returns exitInvalidArgAmount or
// exitInvalidFlag on violation.
func parseArgs(args []string) (verbose bool, binPath, dumpOverride string, exitCode int) {
	if len(args) < 1 || len(args) > 3 {
		return false, "", "", exitInvalidArgAmount
	}

	rest := args
	if rest[0] == "-v" {
		verbose = true
		rest = rest[1:]
	}

	for _, a := range rest {
		if strings.HasPrefix(a, "-") {
			return false, "", "", exitInvalidFlag
		}
	}

	switch len(rest) {
	case 1:
		return verbose, rest[0], "", exitOK
	case 2:
		return verbose, rest[0], rest[1], exitOK
	default:
		return false, "", "", exitInvalidArgAmount
	}
}

func printUsageError(stderr *os.File, exitCode int) {
	switch exitCode {
	case exitInvalidArgAmount:
		fmt.Fprintln(stderr, "safe: INVALID_ARG_AMOUNT: usage: safe [-v] <path-to-binary> [callgraph-dump]")
	case exitInvalidFlag:
		fmt.Fprintln(stderr, "safe: INVALID_FLAG: only -v is recognized")
	}
}

// siblingDumpPath implements SPEC_FULL.md §6's default lookup: the
// binary's path with its extension replaced by .whole-program.
func siblingDumpPath(binPath string) string {
	ext := filepath.Ext(binPath)
	base := strings.TrimSuffix(binPath, ext)
	return base + ".whole-program"
}

// throwReachableFunctionNames resolves the call graph's ThrowCallers node
// ids to function names: these are the focus functions spec.md §4.E's
// "downstream focus on throw-reachable functions" describes the call
// graph as enabling, since the CLI contract (spec.md §6) takes no
// per-function argument.
func throwReachableFunctionNames(d *pipeline.Driver) []string {
	var names []string
	for _, id := range d.Graph.ThrowCallers() {
		n, ok := d.Graph.Node(id)
		if !ok {
			continue
		}
		names = append(names, n.FnName)
	}
	return names
}
