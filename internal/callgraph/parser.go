package callgraph

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
)

var (
	// fnNameRe pulls the "<name>/<id>" token out of an entry's header
	// line, e.g. "foo/2354 (int foo(int))".
	fnNameRe = regexp.MustCompile(`\S+/[0-9]+`)
	// demangledRe pulls the parenthesized demangled signature from the
	// header line.
	demangledRe = regexp.MustCompile(`\((.*)\)`)
	// attrGroupRe pulls individual "(attr)" groups out of a token's
	// trailing attribute suffix.
	attrGroupRe = regexp.MustCompile(`\(([^()]*)\)`)
)

// rawEntry is one un-split record from the first textual pass: every
// trimmed, non-empty line belonging to one dump entry, in source order.
type rawEntry struct {
	lines []string
}

// splitEntries implements spec.md §4.E's textual pass: find the "Symbol
// table:" marker, then group subsequent lines into entries bounded by a
// column-0 (non-whitespace-leading) line, discarding any entry whose Type
// line doesn't mention "function".
func splitEntries(r io.Reader) ([]rawEntry, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

	foundMarker := false
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == "Symbol table:" {
			foundMarker = true
			break
		}
	}
	if !foundMarker {
		return nil, fmt.Errorf("callgraph: no \"Symbol table:\" marker found")
	}

	var entries []rawEntry
	var cur []string
	inEntry := false
	isFunction := true

	flush := func() {
		if isFunction && len(cur) != 0 {
			entries = append(entries, rawEntry{lines: cur})
		}
		cur = nil
	}

	for scanner.Scan() {
		line := scanner.Text()
		if len(line) == 0 {
			continue
		}
		if !startsWithSpace(line) {
			inEntry = false
		}

		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "Type") && !wordInLine("function", trimmed) {
			isFunction = false
			continue
		}

		if !inEntry {
			flush()
			isFunction = true
			inEntry = true
		}

		cur = append(cur, trimmed)
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("callgraph: reading dump: %w", err)
	}
	return entries, nil
}

func startsWithSpace(s string) bool {
	if len(s) == 0 {
		return false
	}
	c := s[0]
	return c == ' ' || c == '\t'
}

func wordInLine(word, line string) bool {
	for _, f := range strings.Fields(line) {
		if f == word {
			return true
		}
	}
	return false
}

// parsedEntry is the key/value map built from one rawEntry's
// "  <key> : <value>" property lines, plus the header-derived fields.
type parsedEntry struct {
	fnName        string
	id            string
	demangledName string
	fields        map[string]string
}

func parseEntryFields(entry rawEntry) (*parsedEntry, bool) {
	if len(entry.lines) == 0 {
		return nil, false
	}

	header := entry.lines[0]
	if strings.Contains(header, "__gxx_personality") {
		return nil, false
	}

	match := fnNameRe.FindString(header)
	if match == "" {
		return nil, false
	}
	parts := strings.SplitN(match, "/", 2)
	if len(parts) != 2 {
		return nil, false
	}

	pe := &parsedEntry{
		fnName: strings.TrimSpace(parts[0]),
		id:     strings.TrimSpace(parts[1]),
		fields: make(map[string]string),
	}

	if m := demangledRe.FindStringSubmatch(header); len(m) == 2 {
		pe.demangledName = m[1]
	}

	for _, line := range entry.lines[1:] {
		idx := strings.Index(line, ":")
		if idx < 0 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(line[:idx]))
		key = strings.ReplaceAll(key, " ", "_")
		value := strings.TrimSpace(line[idx+1:])
		pe.fields[key] = value
	}

	return pe, true
}

// parseFnList implements parse_fn_list: splits a called_by/calls field
// value into (id, attributes) pairs. A token is "<name>/<id>" optionally
// followed by one or more "(attr)" groups, which attach to the preceding
// token rather than starting a new one.
func parseFnList(value string) []Edge {
	var edges []Edge
	fields := strings.Fields(value)
	for _, tok := range fields {
		if strings.HasPrefix(tok, "(") {
			if len(edges) == 0 {
				continue
			}
			attr := strings.TrimSuffix(strings.TrimPrefix(tok, "("), ")")
			edges[len(edges)-1].Attributes = append(edges[len(edges)-1].Attributes, attr)
			continue
		}

		// A token may carry trailing "(attr)(attr)" groups glued directly
		// onto it with no space, e.g. "123/456(read)(write)".
		name := tok
		var inlineAttrs []string
		if paren := strings.IndexByte(tok, '('); paren >= 0 {
			name = tok[:paren]
			for _, g := range attrGroupRe.FindAllStringSubmatch(tok[paren:], -1) {
				inlineAttrs = append(inlineAttrs, g[1])
			}
		}

		idx := strings.LastIndex(name, "/")
		if idx < 0 {
			continue
		}
		idStr := strings.TrimSpace(name[idx+1:])
		id, err := strconv.Atoi(idStr)
		if err != nil {
			continue
		}
		edges = append(edges, Edge{Node: NodeID(id), Attributes: inlineAttrs})
	}
	return edges
}

// Parse reads a whole-program dump and builds the linked CallGraph:
// instantiate one Node per entry, then resolve called_by/calls tokens by
// id. Missing referents are dropped with a diagnostic (spec.md §4.E), not
// a fatal error.
func Parse(r io.Reader, warn *slog.Logger) (*CallGraph, error) {
	if warn == nil {
		warn = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	rawEntries, err := splitEntries(r)
	if err != nil {
		return nil, err
	}

	type pending struct {
		id     NodeID
		fields *parsedEntry
	}
	var all []pending

	g := &CallGraph{nodes: make(map[NodeID]*Node)}
	for _, re := range rawEntries {
		pe, ok := parseEntryFields(re)
		if !ok {
			continue
		}
		id, err := strconv.Atoi(pe.id)
		if err != nil {
			warn.Warn("callgraph: entry with non-numeric id skipped", slog.String("raw_id", pe.id))
			continue
		}
		nid := NodeID(id)
		g.nodes[nid] = &Node{
			ID:            nid,
			FnName:        pe.fnName,
			DemangledName: pe.demangledName,
			Visibility:    pe.fields["visibility"],
			Availability:  pe.fields["availability"],
			Flags:         pe.fields["function_flags"],
		}
		all = append(all, pending{id: nid, fields: pe})
	}

	for _, p := range all {
		n := g.nodes[p.id]

		for _, e := range parseFnList(p.fields.fields["called_by"]) {
			if _, ok := g.nodes[e.Node]; !ok {
				warn.Warn("callgraph: called_by references unknown node",
					slog.Int("from", int(p.id)), slog.Int("to", int(e.Node)))
				continue
			}
			n.CalledBy = append(n.CalledBy, e)
		}

		for _, e := range parseFnList(p.fields.fields["calls"]) {
			callee, ok := g.nodes[e.Node]
			if !ok {
				warn.Warn("callgraph: calls references unknown node",
					slog.Int("from", int(p.id)), slog.Int("to", int(e.Node)))
				continue
			}
			n.Calls = append(n.Calls, e)
			if callee.FnName == "__cxa_throw" {
				g.throwCallers = append(g.throwCallers, n.ID)
			}
		}
	}

	return g, nil
}
