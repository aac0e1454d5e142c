package cmdspec

import (
	"github.com/kballard/go-shellquote"
)

// Parse parses one command-spec string per the grammar in SPEC_FULL.md §4.1.
//
//	spec   := [ prefix '=' ] argv
//	prefix := [key] [ '#' color ] [ '+' delay ]* [ '<' redirect ]? [ '>' onoutput ]? [ ':' depList ]? [ '|' action ]*
//
// Parse is total on any non-empty argv: when no prefix is present the whole
// string is argv and every prefix field takes its zero value. It returns a
// *ParseError when a prefix is present (any of #+<>:| was consumed) but
// malformed, or when the argv portion fails POSIX-style quoting.
func Parse(raw string) (*CommandSpec, error) {
	if raw == "" {
		return nil, &ParseError{Input: raw, Msg: "empty command spec"}
	}

	spec, split, err := tryParsePrefix(raw)
	if err != nil {
		if pe, ok := err.(*ParseError); ok && pe.Input == "" {
			pe.Input = raw
		}
		return nil, err
	}

	var argvStr string
	if split < 0 {
		spec = &CommandSpec{}
		argvStr = raw
	} else {
		argvStr = raw[split+1:]
	}

	argv, err := shellquote.Split(argvStr)
	if err != nil {
		return nil, &ParseError{Input: raw, Msg: "invalid argv quoting: " + err.Error()}
	}
	if len(argv) == 0 {
		return nil, &ParseError{Input: raw, Msg: "empty argv"}
	}
	spec.Argv = argv
	return spec, nil
}

// tryParsePrefix scans the prefix grammar starting at position 0. It returns
// split == -1 (with a nil error) when no prefix is present at all: the
// caller then treats the whole input as argv. Once any of #+<>:| has been
// consumed, the prefix is "committed" and must end in '=' or a *ParseError is
// returned.
func tryParsePrefix(raw string) (*CommandSpec, int, error) {
	s := &scanner{input: []byte(raw)}
	spec := &CommandSpec{}

	keyStart := s.pos
	for isKeyChar(s.peek()) {
		s.advance()
	}
	if s.pos > keyStart {
		spec.Key = string(s.input[keyStart:s.pos])
	}

	committed := false
	sawColor, sawRedirect, sawOnOutput, sawDeps := false, false, false, false

loop:
	for {
		switch s.peek() {
		case '=':
			return spec, s.pos, nil
		case '#':
			committed = true
			if sawColor {
				return nil, 0, &ParseError{Msg: "duplicate color field"}
			}
			sawColor = true
			s.advance()
			start := s.pos
			for isKeyChar(s.peek()) {
				s.advance()
			}
			if s.pos == start {
				return nil, 0, &ParseError{Msg: "empty color after '#'"}
			}
			spec.Color = string(s.input[start:s.pos])
		case '+':
			committed = true
			s.advance()
			d, err := parseDelaySum(s)
			if err != nil {
				return nil, 0, err
			}
			spec.StartDelay += d
		case '<':
			committed = true
			if sawRedirect {
				return nil, 0, &ParseError{Msg: "duplicate redirect field"}
			}
			sawRedirect = true
			s.advance()
			atoms, err := parseAtomGroup(s)
			if err != nil {
				return nil, 0, err
			}
			if atoms != nil {
				spec.Redirects = Redirect(atoms)
			}
		case '>':
			committed = true
			if sawOnOutput {
				return nil, 0, &ParseError{Msg: "duplicate start-on-output field"}
			}
			sawOnOutput = true
			s.advance()
			atoms, err := parseAtomGroup(s)
			if err != nil {
				return nil, 0, err
			}
			if atoms != nil {
				spec.StartOnOutput = StartOnOutput(atoms)
			}
		case ':':
			committed = true
			if sawDeps {
				return nil, 0, &ParseError{Msg: "duplicate dependency field"}
			}
			sawDeps = true
			s.advance()
			deps, err := parseDepList(s)
			if err != nil {
				return nil, 0, err
			}
			spec.Dependencies = deps
		case '|':
			committed = true
			s.advance()
			start := s.pos
			for isKeyChar(s.peek()) {
				s.advance()
			}
			if s.pos == start {
				return nil, 0, &ParseError{Msg: "empty action after '|'"}
			}
			spec.Actions = append(spec.Actions, string(s.input[start:s.pos]))
		default:
			break loop
		}
	}

	if committed {
		if s.peek() != '=' {
			return nil, 0, &ParseError{Msg: "prefix not terminated by '='"}
		}
		return spec, s.pos, nil
	}
	return nil, -1, nil
}

// parseAtomGroup parses `atom | '(' atomList ')'`. An empty parenthesized
// body ("()") yields a nil slice, per spec.md §4.1.
func parseAtomGroup(s *scanner) ([]RedirectSource, error) {
	if s.peek() != '(' {
		a, err := parseAtom(s)
		if err != nil {
			return nil, err
		}
		return []RedirectSource{a}, nil
	}
	s.advance() // '('
	if s.peek() == ')' {
		s.advance()
		return nil, nil
	}
	var atoms []RedirectSource
	for {
		a, err := parseAtom(s)
		if err != nil {
			return nil, err
		}
		atoms = append(atoms, a)
		if s.peek() == ',' {
			s.advance()
			continue
		}
		break
	}
	if s.peek() != ')' {
		return nil, &ParseError{Msg: "unterminated '(' group"}
	}
	s.advance()
	return atoms, nil
}

// parseAtom parses `['1'|'2']? key`. A leading '1'/'2' is treated as a
// stream selector only when more key characters follow it; otherwise the
// digit is the (all-digit) key itself.
func parseAtom(s *scanner) (RedirectSource, error) {
	stream := 1
	if (s.peek() == '1' || s.peek() == '2') && isKeyChar(s.peekAt(1)) {
		stream = int(s.peek() - '0')
		s.advance()
	}
	start := s.pos
	for isKeyChar(s.peek()) {
		s.advance()
	}
	if s.pos == start {
		return RedirectSource{}, &ParseError{Msg: "expected a key"}
	}
	return RedirectSource{Key: string(s.input[start:s.pos]), Stream: stream}, nil
}

// parseDepList parses `dep (':' dep)*`.
func parseDepList(s *scanner) ([]Dependency, error) {
	var deps []Dependency
	for {
		d, err := parseDep(s)
		if err != nil {
			return nil, err
		}
		deps = append(deps, d)
		if s.peek() == ':' {
			s.advance()
			continue
		}
		break
	}
	return deps, nil
}

// parseDep parses `key ['&'] ('+' delay)*`.
func parseDep(s *scanner) (Dependency, error) {
	start := s.pos
	for isKeyChar(s.peek()) {
		s.advance()
	}
	if s.pos == start {
		return Dependency{}, &ParseError{Msg: "expected a dependency key"}
	}
	dep := Dependency{Key: string(s.input[start:s.pos])}
	if s.peek() == '&' {
		dep.WaitForStart = true
		s.advance()
	}
	for s.peek() == '+' {
		s.advance()
		d, err := parseDelaySum(s)
		if err != nil {
			return Dependency{}, err
		}
		dep.Delays = append(dep.Delays, d)
	}
	return dep, nil
}
