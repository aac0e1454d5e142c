package cmdspec

import "strconv"

// parseDelaySum consumes one or more concatenated "<num><suffix>" components
// from s (e.g. "1m30s", "2m15s500ms", "500ms", bare "5") and returns their
// sum in seconds. It stops as soon as the next byte can't start a new
// numeric component, so the caller doesn't need to know in advance where the
// delay string ends.
func parseDelaySum(s *scanner) (float64, error) {
	var total float64
	consumed := false
	for isDigit(s.peek()) || s.peek() == '.' {
		consumed = true
		numStr := s.scanNumber()
		num, err := strconv.ParseFloat(numStr, 64)
		if err != nil {
			return 0, &ParseError{Msg: "invalid delay number " + strconv.Quote(numStr)}
		}
		mult := 1.0
		switch {
		case s.peekString(2) == "ms":
			s.advanceN(2)
			mult = 0.001
		case s.peek() == 'm':
			s.advance()
			mult = 60
		case s.peek() == 's':
			s.advance()
			mult = 1
		default:
			// bare number: seconds, no suffix to consume
		}
		total += num * mult
	}
	if !consumed {
		return 0, &ParseError{Msg: "expected a delay value"}
	}
	return total, nil
}

// ParseDelay parses a single standalone delay string, e.g. "1m30s" -> 90,
// "2m15s500ms" -> 135.5, "500ms" -> 0.5. It requires the entire string to be
// consumed by the delay grammar.
func ParseDelay(raw string) (float64, error) {
	s := &scanner{input: []byte(raw)}
	total, err := parseDelaySum(s)
	if err != nil {
		return 0, &ParseError{Input: raw, Msg: err.(*ParseError).Msg}
	}
	if !s.eof() {
		return 0, &ParseError{Input: raw, Msg: "trailing characters after delay value"}
	}
	return total, nil
}
