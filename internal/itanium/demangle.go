// Package itanium implements the narrow slice of the Itanium C++ ABI name
// mangling grammar needed to recognize and render RTTI symbol names
// (_ZTI.../_ZTS...). It is not a general-purpose demangler: anything
// outside the supported grammar falls back to a conservative rendering
// rather than failing, per SPEC_FULL.md §4.J.
package itanium

import "strings"

// builtins maps the Itanium builtin-type codes this subset supports to
// their source spelling.
var builtins = map[byte]string{
	'v': "void", 'w': "wchar_t", 'b': "bool", 'c': "char", 'h': "unsigned char",
	'a': "signed char", 's': "short", 't': "unsigned short", 'i': "int",
	'j': "unsigned int", 'l': "long", 'm': "unsigned long", 'x': "long long",
	'y': "unsigned long long", 'n': "__int128", 'o': "unsigned __int128",
	'f': "float", 'd': "double", 'e': "long double", 'g': "__float128", 'z': "...",
}

// stdAbbrevs maps the two-character std:: substitution abbreviations this
// subset recognizes.
var stdAbbrevs = map[string]string{
	"St": "std", "Ss": "std::string", "Si": "std::istream",
	"So": "std::ostream", "Sa": "std::allocator",
}

// IsRTTISymbol reports whether name is an Itanium typeinfo-structure or
// typeinfo-name symbol: the "starts with typeinfo" test from spec.md §4.D
// reduces, concretely, to a _ZTI or _ZTS prefix check.
func IsRTTISymbol(name string) bool {
	return strings.HasPrefix(name, "_ZTI") || strings.HasPrefix(name, "_ZTS")
}

// Demangle renders a mangled RTTI symbol name as a C++ type name. Anything
// it cannot parse within the supported grammar subset degrades to the
// mangled name with its _ZTI/_ZTS prefix stripped, never an error: this
// function must always return something usable for reporting.
func Demangle(name string) string {
	var rest string
	switch {
	case strings.HasPrefix(name, "_ZTI"):
		rest = name[len("_ZTI"):]
	case strings.HasPrefix(name, "_ZTS"):
		rest = name[len("_ZTS"):]
	default:
		return name
	}

	d := &decoder{src: rest}
	out, ok := d.parseType()
	if !ok || d.pos != len(d.src) {
		return rest
	}
	return out
}

// decoder walks one mangled type expression, tracking substitution
// candidates per the Itanium ABI's back-reference rules (S_, S0_, S1_...).
type decoder struct {
	src  string
	pos  int
	subs []string
}

func (d *decoder) peek() byte {
	if d.pos >= len(d.src) {
		return 0
	}
	return d.src[d.pos]
}

func (d *decoder) parseType() (string, bool) {
	switch d.peek() {
	case 'P':
		d.pos++
		inner, ok := d.parseType()
		if !ok {
			return "", false
		}
		return inner + "*", d.addSub(inner + "*")
	case 'R':
		d.pos++
		inner, ok := d.parseType()
		if !ok {
			return "", false
		}
		return inner + "&", d.addSub(inner + "&")
	case 'O':
		d.pos++
		inner, ok := d.parseType()
		if !ok {
			return "", false
		}
		return inner + "&&", d.addSub(inner + "&&")
	case 'K':
		d.pos++
		inner, ok := d.parseType()
		if !ok {
			return "", false
		}
		return inner + " const", d.addSub(inner + " const")
	case 'V':
		d.pos++
		inner, ok := d.parseType()
		if !ok {
			return "", false
		}
		return inner + " volatile", d.addSub(inner + " volatile")
	case 'N':
		return d.parseNestedName()
	case 'S':
		// St <source-name> outside a nested name is an unscoped std:: name
		// (e.g. St13runtime_error -> std::runtime_error).
		if d.pos+1 < len(d.src) && d.src[d.pos+1] == 't' {
			d.pos += 2
			name, ok := d.parseSourceName()
			if !ok {
				return "", false
			}
			full := "std::" + name
			d.subs[len(d.subs)-1] = full
			return full, true
		}
		return d.parseSubstitution()
	}
	if name, ok := builtins[d.peek()]; ok {
		d.pos++
		return name, true
	}
	return d.parseSourceName()
}

// parseSourceName reads <length><identifier>, the base case of a mangled
// name (e.g. "3foo" -> "foo").
func (d *decoder) parseSourceName() (string, bool) {
	start := d.pos
	for d.pos < len(d.src) && d.src[d.pos] >= '0' && d.src[d.pos] <= '9' {
		d.pos++
	}
	if d.pos == start {
		return "", false
	}
	n := 0
	for _, c := range d.src[start:d.pos] {
		n = n*10 + int(c-'0')
	}
	if d.pos+n > len(d.src) {
		return "", false
	}
	name := d.src[d.pos : d.pos+n]
	d.pos += n
	d.addSub(name)
	return name, true
}

// parseNestedName reads N [CV-qualifiers] <source-name>+ E, joining
// components with "::".
func (d *decoder) parseNestedName() (string, bool) {
	d.pos++ // consume 'N'
	var qualifiers string
	for {
		switch d.peek() {
		case 'K':
			qualifiers += " const"
			d.pos++
			continue
		case 'V':
			qualifiers += " volatile"
			d.pos++
			continue
		}
		break
	}
	var parts []string
	for d.peek() != 'E' {
		var part string
		var ok bool
		if d.peek() == 'S' {
			part, ok = d.parseSubstitution()
		} else {
			part, ok = d.parseSourceName()
		}
		if !ok {
			return "", false
		}
		parts = append(parts, part)
	}
	if d.peek() != 'E' {
		return "", false
	}
	d.pos++ // consume 'E'
	if len(parts) == 0 {
		return "", false
	}
	full := strings.Join(parts, "::") + qualifiers
	d.addSub(full)
	return full, true
}

// parseSubstitution reads a standard-library abbreviation (St, Ss, Si, So,
// Sa) or a back-reference (S_, S0_, S1_, ...).
func (d *decoder) parseSubstitution() (string, bool) {
	if d.pos+1 < len(d.src) {
		two := d.src[d.pos : d.pos+2]
		if name, ok := stdAbbrevs[two]; ok {
			d.pos += 2
			return name, true
		}
	}
	d.pos++ // consume 'S'
	if d.peek() == '_' {
		d.pos++
		return d.lookupSub(0)
	}
	start := d.pos
	for d.pos < len(d.src) && isSubDigit(d.src[d.pos]) {
		d.pos++
	}
	if d.pos == start || d.peek() != '_' {
		return "", false
	}
	idx := decodeSubIndex(d.src[start:d.pos])
	d.pos++ // consume '_'
	return d.lookupSub(idx + 1)
}

func isSubDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'A' && c <= 'Z')
}

// decodeSubIndex decodes the Itanium substitution sequence's base-36
// digits (0-9, A-Z), offset by one from the raw back-reference number.
func decodeSubIndex(s string) int {
	n := 0
	for _, c := range s {
		var v int
		switch {
		case c >= '0' && c <= '9':
			v = int(c - '0')
		case c >= 'A' && c <= 'Z':
			v = int(c-'A') + 10
		}
		n = n*36 + v
	}
	return n
}

func (d *decoder) lookupSub(idx int) (string, bool) {
	if idx < 0 || idx >= len(d.subs) {
		return "", false
	}
	return d.subs[idx], true
}

func (d *decoder) addSub(s string) bool {
	d.subs = append(d.subs, s)
	return true
}
