package pipeline

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/libhal/safe/internal/callgraph"
	"github.com/libhal/safe/internal/correlate"
	"github.com/libhal/safe/internal/lsda"
	"github.com/libhal/safe/internal/objfile"
	"github.com/libhal/safe/internal/scanner"
)

// Driver holds every structure the pipeline builds once per run: the
// loaded object, its RTTI index, the decoded LSDA, the call graph, and
// the correlator derived from the LSDA. Memory ownership is tree-shaped
// per spec.md §5: Driver owns Reader; everything else borrows from it.
type Driver struct {
	Reader     *objfile.Reader
	RTTI       *scanner.RTTIIndex
	LSDA       *lsda.Parsed
	Graph      *callgraph.CallGraph
	Correlator *correlate.Correlator
	Symbols    []objfile.Symbol

	textVirtAddr uint64
	textBytes    []byte
	logger       *slog.Logger
}

// Load runs stage A (object reader) then C and E (LSDA and call-graph
// decode), in that order, matching spec.md §4.G's "A→C, A→E" sequencing.
// Stage D (the scanner) has no state to build up front: it runs per
// function inside RunFunction.
func Load(objPath, callgraphPath string, forceRead bool, logger *slog.Logger) (*Driver, error) {
	var opts []objfile.Option
	if forceRead {
		opts = append(opts, objfile.WithForcedRead())
	}

	reader, err := objfile.Open(objPath, opts...)
	if err != nil {
		return nil, &EnvironmentError{Err: err}
	}

	text, err := reader.GetSection(".text")
	if err != nil {
		reader.Close()
		return nil, &LookupError{Err: err}
	}

	symbols, err := reader.GetSymbolTable()
	if err != nil {
		reader.Close()
		return nil, &LookupError{Err: err}
	}

	exceptTable, err := reader.GetSection(".gcc_except_table")
	if err != nil {
		reader.Close()
		return nil, &LookupError{Err: err}
	}

	parsed, err := lsda.Parse(exceptTable.Bytes, logger)
	if err != nil {
		reader.Close()
		return nil, &DecodeError{Err: err}
	}

	cgFile, err := os.Open(callgraphPath)
	if err != nil {
		reader.Close()
		return nil, &EnvironmentError{Err: fmt.Errorf("pipeline: opening call-graph dump: %w", err)}
	}
	defer cgFile.Close()

	graph, err := callgraph.Parse(cgFile, logger)
	if err != nil {
		reader.Close()
		return nil, &DecodeError{Err: err}
	}

	return &Driver{
		Reader:       reader,
		RTTI:         scanner.BuildRTTIIndex(symbols),
		LSDA:         parsed,
		Graph:        graph,
		Correlator:   correlate.New(parsed),
		Symbols:      symbols,
		textVirtAddr: text.Header.VirtualAddress,
		textBytes:    text.Bytes,
		logger:       logger,
	}, nil
}

// Close releases the driver's owned resources.
func (d *Driver) Close() error {
	return d.Reader.Close()
}

// RunFunction runs stages D then F for one focus function: locate its
// symbol, scan for thrown RTTI symbols, then correlate against the
// loaded LSDA (spec.md §4.G "for each focus function: correlate").
// A missing function surfaces as CorrelationError{NoTypeinfoForFunction},
// matching spec.md §4.F step 1 exactly.
func (d *Driver) RunFunction(funcName string) (string, []correlate.ThrowCatchMatch, error) {
	var fnSym *objfile.Symbol
	for i := range d.Symbols {
		if d.Symbols[i].Name == funcName {
			fnSym = &d.Symbols[i]
			break
		}
	}
	if fnSym == nil {
		return funcName, nil, &CorrelationError{Err: &correlate.Error{
			Reason: correlate.NoTypeinfoForFunction, Function: funcName,
		}}
	}

	thrown, err := scanner.Scan(fnSym.Value, fnSym.Size, d.textVirtAddr, d.textBytes, d.RTTI)
	if err != nil {
		return funcName, nil, &DecodeError{Err: err}
	}

	matches, err := d.Correlator.Correlate(funcName, thrown)
	if err != nil {
		return funcName, nil, &CorrelationError{Err: err}
	}

	return funcName, matches, nil
}
