package lsda

import (
	"fmt"
	"log/slog"

	"github.com/libhal/safe/internal/leb"
)

// Parse decodes one function's .gcc_except_table bytes into call sites,
// actions, a type table, and derived scopes, following the six-step
// algorithm of spec.md §4.C. warn receives non-fatal diagnostics (a
// truncated action chain); it may be nil, in which case warnings are
// dropped.
func Parse(data []byte, warn *slog.Logger) (*Parsed, error) {
	if warn == nil {
		warn = slog.New(slog.NewTextHandler(discard{}, nil))
	}

	r := leb.NewReader(data)

	startEnc, ttEnc, ttOff, err := parseHeader(r)
	if err != nil {
		return nil, err
	}

	ttStart := len(data)
	if !ttEnc.Omitted() {
		ttStart = r.Pos + int(ttOff)
	}
	_ = startEnc // consumed for its side effect of advancing the cursor

	callEnc, err := r.Byte()
	if err != nil {
		return nil, fmt.Errorf("lsda: reading call-site encoding: %w", err)
	}
	callSiteLen, err := r.ULEB128()
	if err != nil {
		return nil, fmt.Errorf("lsda: reading call-site table length: %w", err)
	}
	callSiteEnd := r.Pos + int(callSiteLen)
	if callSiteEnd > len(data) {
		return nil, ErrCallSiteOverrun
	}

	callSites, err := parseCallSites(r, leb.Encoding(callEnc), callSiteEnd)
	if err != nil {
		return nil, err
	}

	actionsLimit := ttStart
	if actionsLimit > len(data) {
		actionsLimit = len(data)
	}
	if r.Pos > actionsLimit {
		return nil, ErrActionsPastTypeTable
	}
	actions, err := parseActions(r, actionsLimit)
	if err != nil {
		return nil, err
	}
	linkActions(actions, warn)

	var typeTable []uint64
	if !ttEnc.Omitted() {
		typeTable, err = parseTypeTable(leb.NewReader(data), ttStart, leb.Encoding(ttEnc))
		if err != nil {
			return nil, err
		}
	}

	p := &Parsed{
		CallSites: callSites,
		Actions:   actions,
		TypeTable: typeTable,
	}
	if err := buildScopes(p, warn); err != nil {
		return nil, err
	}
	return p, nil
}

// parseHeader reads the landing-pad base encoding (consumed and
// discarded, per spec.md §4.C step 1 — the scanner works in raw offsets)
// and the type-table encoding plus its ULEB128 offset.
func parseHeader(r *leb.Reader) (startEnc leb.Encoding, ttEnc leb.Encoding, ttOff uint64, err error) {
	b, err := r.Byte()
	if err != nil {
		return 0, 0, 0, fmt.Errorf("lsda: reading start encoding: %w", err)
	}
	startEnc = leb.Encoding(b)
	if !startEnc.Omitted() {
		pcrelBase := uint64(r.Pos)
		if _, err := r.DecodePointer(startEnc, pcrelBase); err != nil {
			return 0, 0, 0, fmt.Errorf("lsda: reading landing-pad base: %w", err)
		}
	}

	b, err = r.Byte()
	if err != nil {
		return 0, 0, 0, fmt.Errorf("lsda: reading type-table encoding: %w", err)
	}
	ttEnc = leb.Encoding(b)
	if !ttEnc.Omitted() {
		ttOff, err = r.ULEB128()
		if err != nil {
			return 0, 0, 0, fmt.Errorf("lsda: reading type-table offset: %w", err)
		}
	}
	return startEnc, ttEnc, ttOff, nil
}

func parseCallSites(r *leb.Reader, enc leb.Encoding, end int) ([]CallSite, error) {
	var sites []CallSite
	for r.Pos < end {
		start, err := r.DecodePointer(enc, 0)
		if err != nil {
			return nil, fmt.Errorf("lsda: reading call-site start: %w", err)
		}
		length, err := r.DecodePointer(enc, 0)
		if err != nil {
			return nil, fmt.Errorf("lsda: reading call-site length: %w", err)
		}
		landingPad, err := r.DecodePointer(enc, 0)
		if err != nil {
			return nil, fmt.Errorf("lsda: reading call-site landing pad: %w", err)
		}
		action, err := r.SLEB128()
		if err != nil {
			return nil, fmt.Errorf("lsda: reading call-site action offset: %w", err)
		}
		sites = append(sites, CallSite{
			Start:        start,
			Length:       length,
			LandingPad:   landingPad,
			ActionOffset: action,
		})
	}
	if r.Pos != end {
		return nil, ErrCallSiteMisaligned
	}
	return sites, nil
}

func parseActions(r *leb.Reader, limit int) ([]Action, error) {
	tableStart := r.Pos
	var actions []Action
	for r.Pos < limit {
		entryOffset := int64(r.Pos - tableStart)
		typ, err := r.SLEB128()
		if err != nil {
			return nil, fmt.Errorf("lsda: reading action type: %w", err)
		}
		if r.Pos > limit {
			return nil, ErrActionOverrun
		}
		if r.Pos == limit {
			return nil, ErrActionTableOddCount
		}
		nextOffset, err := r.SLEB128()
		if err != nil {
			return nil, fmt.Errorf("lsda: reading action next-offset: %w", err)
		}
		if r.Pos > limit {
			return nil, ErrActionOverrun
		}
		actions = append(actions, Action{
			EntryOffset: entryOffset,
			Type:        typ,
			NextOffset:  nextOffset,
			NextIndex:   -1,
		})
	}
	return actions, nil
}

// linkActions resolves each action's NextIndex by matching
// EntryOffset+NextOffset against another action's EntryOffset. A link that
// can't be resolved is truncated (NextIndex stays -1) with a warning
// rather than failing the parse: this happens in stripped or shared
// action-table tails (spec.md §4.C step 4, §9 open question).
func linkActions(actions []Action, warn *slog.Logger) {
	byOffset := make(map[int64]int, len(actions))
	for i, a := range actions {
		byOffset[a.EntryOffset] = i
	}
	for i := range actions {
		a := &actions[i]
		if a.NextOffset == 0 {
			a.NextIndex = -1
			continue
		}
		target := a.EntryOffset + a.NextOffset
		if idx, ok := byOffset[target]; ok {
			a.NextIndex = int64(idx)
		} else {
			a.NextIndex = -1
			warn.Warn("truncated action chain: next action offset not found",
				slog.Int64("entry_offset", a.EntryOffset),
				slog.Int64("next_offset", a.NextOffset))
		}
	}
}

func parseTypeTable(r *leb.Reader, start int, enc leb.Encoding) ([]uint64, error) {
	r.Pos = start
	var table []uint64
	for r.Pos < len(r.Data) {
		v, err := r.DecodePointer(enc, uint64(r.Pos))
		if err != nil {
			return nil, fmt.Errorf("lsda: reading type table entry: %w", err)
		}
		table = append(table, v)
	}
	return table, nil
}

// buildScopes derives one Scope per call site carrying a non-zero landing
// pad, walking that call site's action chain by NextIndex (spec.md §4.C
// step 6).
func buildScopes(p *Parsed, warn *slog.Logger) error {
	byEntryOffset := make(map[int64]int, len(p.Actions))
	for i, a := range p.Actions {
		byEntryOffset[a.EntryOffset] = i
	}

	for _, cs := range p.CallSites {
		if cs.LandingPad == 0 {
			continue
		}

		scope := Scope{Start: cs.Start, End: cs.Start + cs.Length}

		if cs.ActionOffset != 0 {
			idx, ok := byEntryOffset[cs.ActionOffset]
			if !ok {
				return fmt.Errorf("%w: offset %d", ErrMissingAction, cs.ActionOffset)
			}
			for {
				a := p.Actions[idx]
				scope.Handlers = append(scope.Handlers, ScopeHandler{
					Kind:       classify(a.Type),
					TypeIndex:  a.Type,
					LandingPad: cs.LandingPad,
				})
				if a.NextIndex < 0 {
					break
				}
				idx = int(a.NextIndex)
			}
		}

		p.Scopes = append(p.Scopes, scope)
	}
	return nil
}

// discard is an io.Writer that throws bytes away, used to build a default
// no-op logger when Parse isn't given one.
type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
