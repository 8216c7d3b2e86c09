// internal/browser/parser/css.go
package parser

import (
	"math"
	"strconv"
	"strings"
)

// Property is a lowercased CSS property name such as "display".
type Property string

// Value is a raw CSS value with surrounding whitespace and !important removed.
type Value string

// Declaration is one property: value pair of a declaration block.
type Declaration struct {
	Property  Property
	Value     Value
	Important bool
}

// Block is a parsed declaration block, in source order.
type Block []Declaration

// Lookup returns the winning value of prop: the last !important declaration
// if any, otherwise the last declaration.
func (b Block) Lookup(prop Property) (Value, bool) {
	var (
		val       Value
		found     bool
		important bool
	)
	for _, d := range b {
		if d.Property != prop {
			continue
		}
		if important && !d.Important {
			continue
		}
		val, found, important = d.Value, true, d.Important
	}
	return val, found
}

// Pixels returns the value of prop as a non-negative length in CSS pixels.
// Only unitless zero and px lengths are understood.
func (b Block) Pixels(prop Property) (float64, bool) {
	v, ok := b.Lookup(prop)
	if !ok {
		return 0, false
	}
	raw := strings.ToLower(strings.TrimSpace(string(v)))
	if raw == "0" {
		return 0, true
	}
	if !strings.HasSuffix(raw, "px") {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(raw, "px")), 64)
	if err != nil || f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ParseInline parses the contents of a style attribute. Malformed declarations
// are skipped; parsing never fails.
func ParseInline(style string) Block {
	p := &Parser{input: style}
	return p.parseDeclarations()
}

// Parser holds the state of the declaration parser.
type Parser struct {
	input string
	pos   int
}

func (p *Parser) parseDeclarations() Block {
	var block Block
	for {
		p.consumeWhitespace()
		if p.eof() {
			return block
		}
		if p.startsWith("/*") {
			p.skipComment()
			continue
		}
		if p.currentChar() == ';' {
			p.pos++
			continue
		}

		prop, val, important := p.parseDeclaration()
		if prop != "" && val != "" {
			block = append(block, Declaration{
				Property:  Property(strings.ToLower(prop)),
				Value:     Value(val),
				Important: important,
			})
		}
	}
}

// parseDeclaration parses one "property: value;" pair, leaving the cursor past
// the terminating semicolon.
func (p *Parser) parseDeclaration() (prop, val string, important bool) {
	if !isValidIdentifierStart(p.currentChar()) {
		p.skipPast(';')
		return
	}
	prop = p.parseIdentifier()
	p.consumeWhitespace()

	if p.eof() || p.currentChar() != ':' {
		p.skipPast(';')
		return "", "", false
	}
	p.pos++
	p.consumeWhitespace()

	val = p.parseValue()
	if lower := strings.ToLower(val); strings.HasSuffix(lower, "!important") {
		important = true
		val = strings.TrimSpace(val[:len(val)-len("!important")])
	}
	p.skipPast(';')
	return
}

// parseValue reads up to the next top-level semicolon. Quoted strings and
// parenthesized groups may contain semicolons.
func (p *Parser) parseValue() string {
	start := p.pos
	for !p.eof() {
		switch ch := p.currentChar(); ch {
		case ';':
			return strings.TrimSpace(p.input[start:p.pos])
		case '"', '\'':
			p.skipQuotedString(ch)
		case '(':
			p.pos++
			p.skipBlock('(', ')')
		default:
			p.pos++
		}
	}
	return strings.TrimSpace(p.input[start:p.pos])
}

func (p *Parser) eof() bool {
	return p.pos >= len(p.input)
}

func (p *Parser) currentChar() byte {
	if p.eof() {
		return 0
	}
	return p.input[p.pos]
}

func (p *Parser) consumeWhitespace() {
	for !p.eof() && isWhitespace(p.currentChar()) {
		p.pos++
	}
}

func (p *Parser) startsWith(s string) bool {
	return strings.HasPrefix(p.input[p.pos:], s)
}

func (p *Parser) skipComment() {
	p.pos += 2
	if end := strings.Index(p.input[p.pos:], "*/"); end >= 0 {
		p.pos += end + 2
		return
	}
	p.pos = len(p.input)
}

func (p *Parser) skipPast(target byte) {
	for !p.eof() {
		ch := p.currentChar()
		p.pos++
		if ch == target {
			return
		}
	}
}

// skipBlock advances past the close matching an already consumed open.
func (p *Parser) skipBlock(open, close byte) {
	depth := 1
	for !p.eof() {
		c := p.currentChar()
		p.pos++
		switch c {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return
			}
		}
	}
}

func (p *Parser) skipQuotedString(quote byte) {
	p.pos++
	for !p.eof() {
		ch := p.currentChar()
		p.pos++
		if ch == '\\' {
			p.pos++
		} else if ch == quote {
			return
		}
	}
	if p.pos > len(p.input) {
		p.pos = len(p.input)
	}
}

func (p *Parser) parseIdentifier() string {
	start := p.pos
	for !p.eof() && isValidIdentifierChar(p.currentChar()) {
		p.pos++
	}
	return p.input[start:p.pos]
}

func isWhitespace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' || ch == '\f'
}

func isValidIdentifierStart(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_' || ch == '-'
}

func isValidIdentifierChar(ch byte) bool {
	return isValidIdentifierStart(ch) || (ch >= '0' && ch <= '9')
}
