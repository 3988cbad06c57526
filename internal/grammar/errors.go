package grammar

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// SyntaxError reports malformed source. Parsing stops at the first one.
type SyntaxError struct {
	Pos      lexer.Position
	Expected []string // may be empty when the parser cannot name alternatives
	Found    string   // offending token, or "<EOF>"
	Message  string
	cause    error
}

func (e *SyntaxError) Error() string {
	var b strings.Builder
	if e.Pos.Filename != "" {
		b.WriteString(e.Pos.Filename)
		b.WriteByte(':')
	}
	fmt.Fprintf(&b, "%d:%d: syntax error: %s", e.Pos.Line, e.Pos.Column, e.Message)
	return b.String()
}

// Unwrap returns the underlying participle error.
func (e *SyntaxError) Unwrap() error { return e.cause }

func newSyntaxError(err error, src string) *SyntaxError {
	se := &SyntaxError{Message: err.Error(), cause: err}

	var ute *participle.UnexpectedTokenError
	if errors.As(err, &ute) {
		se.Pos = ute.Unexpected.Pos
		se.Message = ute.Message()
		se.Found = describeToken(ute.Unexpected)
		se.Expected = splitExpected(ute.Expect)
		return se
	}

	var perr participle.Error
	if errors.As(err, &perr) {
		se.Pos = perr.Position()
		se.Message = perr.Message()
	}
	se.Found = foundAt(src, se.Pos.Offset)
	return se
}

func describeToken(tok lexer.Token) string {
	if tok.EOF() {
		return "<EOF>"
	}
	return strconv.Quote(tok.Value)
}

func foundAt(src string, offset int) string {
	if offset < 0 || offset >= len(src) {
		return "<EOF>"
	}
	r, _ := utf8.DecodeRuneInString(src[offset:])
	return strconv.QuoteRune(r)
}

func splitExpected(expect string) []string {
	if expect == "" {
		return nil
	}
	parts := strings.Split(expect, "|")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
