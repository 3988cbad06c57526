package grammar

import (
	"fmt"
	"strings"
	"sync"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// StartSymbol selects which top-level production Parse accepts.
type StartSymbol int

const (
	Network StartSymbol = iota
	Layer
	Research
)

func (s StartSymbol) String() string {
	switch s {
	case Network:
		return "network"
	case Layer:
		return "layer"
	case Research:
		return "research"
	default:
		return fmt.Sprintf("StartSymbol(%d)", int(s))
	}
}

// ParseStartSymbol maps "network", "layer" or "research" to a StartSymbol.
func ParseStartSymbol(name string) (StartSymbol, error) {
	switch strings.ToLower(name) {
	case "network":
		return Network, nil
	case "layer":
		return Layer, nil
	case "research":
		return Research, nil
	}
	return 0, fmt.Errorf("unknown start symbol %q (valid: network, layer, research)", name)
}

// dslLexer is shared by all three start symbols.
// Rule order matters: Float must be tried before Int.
var dslLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `#[^\n]*`},
	{Name: "Whitespace", Pattern: `[ \t\r\n]+`},
	{Name: "Float", Pattern: `[-+]?(\d+\.\d*([eE][-+]?\d+)?|\.\d+([eE][-+]?\d+)?|\d+[eE][-+]?\d+)`},
	{Name: "Int", Pattern: `[-+]?\d+`},
	{Name: "String", Pattern: `"[^"]*"|'[^']*'`},
	{Name: "Ident", Pattern: `[a-zA-Z_][a-zA-Z0-9_]*`},
	{Name: "Punct", Pattern: `[(){}\[\],:=]`},
})

// lookahead lets optional `name =` prefixes and the layers loop back off
// after one consumed token.
const lookahead = 2

// Grammar holds one parser per start symbol. It is immutable once built.
type Grammar struct {
	network  *participle.Parser[NetworkDecl]
	layer    *participle.Parser[LayerCall]
	research *participle.Parser[ResearchDecl]
}

func options() []participle.Option {
	return []participle.Option{
		participle.Lexer(dslLexer),
		participle.Elide("Comment", "Whitespace"),
		participle.UseLookahead(lookahead),
	}
}

// New builds a Grammar. Callers that want their own instance use New;
// everyone else shares Default.
func New() (*Grammar, error) {
	network, err := participle.Build[NetworkDecl](options()...)
	if err != nil {
		return nil, fmt.Errorf("build network grammar: %w", err)
	}
	layer, err := participle.Build[LayerCall](options()...)
	if err != nil {
		return nil, fmt.Errorf("build layer grammar: %w", err)
	}
	research, err := participle.Build[ResearchDecl](options()...)
	if err != nil {
		return nil, fmt.Errorf("build research grammar: %w", err)
	}
	return &Grammar{network: network, layer: layer, research: research}, nil
}

var (
	defaultOnce    sync.Once
	defaultGrammar *Grammar
)

// Default returns the shared Grammar, building it on first use.
// It panics if the grammar definition itself is invalid, which is a
// programming error rather than an input error.
func Default() *Grammar {
	defaultOnce.Do(func() {
		g, err := New()
		if err != nil {
			panic(err)
		}
		defaultGrammar = g
	})
	return defaultGrammar
}

// Parse parses src with the given start symbol.
// On failure it returns a *SyntaxError and no tree.
func (g *Grammar) Parse(src string, start StartSymbol) (*Tree, error) {
	return g.ParseNamed("", src, start)
}

// ParseNamed is Parse with a file name recorded in positions.
func (g *Grammar) ParseNamed(filename, src string, start StartSymbol) (*Tree, error) {
	tree := &Tree{Start: start}
	var err error
	switch start {
	case Network:
		tree.Network, err = g.network.ParseString(filename, src)
	case Layer:
		tree.Layer, err = g.layer.ParseString(filename, src)
	case Research:
		tree.Research, err = g.research.ParseString(filename, src)
	default:
		return nil, fmt.Errorf("unknown start symbol %v", start)
	}
	if err != nil {
		return nil, newSyntaxError(err, src)
	}
	return tree, nil
}

// Unquote strips the surrounding quotes of a String token.
// The lexer admits no escapes, so nothing else needs decoding.
func Unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}
