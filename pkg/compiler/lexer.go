package compiler

import (
	"fmt"
	"strings"
	"unicode"
)

// reservedWords is the fixed keyword set of the language. It is consulted
// after an identifier-shaped lexeme has been scanned, so keywords always win
// over identifiers.
var reservedWords = map[string]bool{
	"boolean": true,
	"class":   true,
	"extends": true,
	"public":  true,
	"static":  true,
	"void":    true,
	"main":    true,
	"String":  true,
	"return":  true,
	"int":     true,
	"if":      true,
	"else":    true,
	"while":   true,
	"true":    true,
	"false":   true,
	"this":    true,
	"new":     true,
	"null":    true,
	"length":  true,
}

// printlnSuffix completes the reserved word "System.out.println" once the
// leading "System" identifier has been scanned.
const printlnSuffix = ".out.println"

// LexError reports the first character no token pattern matches.
type LexError struct {
	Pos  int  // 0-based rune offset into the source
	Line int  // 1-based source line
	Char rune // the offending character
}

func (e *LexError) Error() string {
	return fmt.Sprintf("unexpected character %q at position %d (line %d)", e.Char, e.Pos, e.Line)
}

// Lexer holds all mutable state for a single scanning pass over src.
type Lexer struct {
	src  []rune
	pos  int // index of the next rune to consume
	line int // current 1-based source line
}

func newLexer(src string) *Lexer {
	return &Lexer{src: []rune(src), pos: 0, line: 1}
}

// peek returns the rune at the current position without advancing.
func (l *Lexer) peek() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

// peek2 returns the rune one position ahead of the current position.
func (l *Lexer) peek2() rune {
	if l.pos+1 >= len(l.src) {
		return 0
	}
	return l.src[l.pos+1]
}

// advance consumes one rune and returns it.
func (l *Lexer) advance() rune {
	if l.pos >= len(l.src) {
		return 0
	}
	r := l.src[l.pos]
	l.pos++
	if r == '\n' {
		l.line++
	}
	return r
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.src) && unicode.IsSpace(l.peek()) {
		l.advance()
	}
}

// skipLineComment discards everything from the current position to end-of-line.
// The opening "//" must already have been consumed.
func (l *Lexer) skipLineComment() {
	for l.pos < len(l.src) && l.peek() != '\n' {
		l.advance()
	}
}

// skipBlockComment discards everything up to and including the closing "*/".
// It reports whether the comment was terminated; an unterminated comment is
// not a comment at all and the opening "/" is an unmatchable character.
func (l *Lexer) skipBlockComment() bool {
	for l.pos < len(l.src) {
		if l.peek() == '*' && l.peek2() == '/' {
			l.advance() // *
			l.advance() // /
			return true
		}
		l.advance()
	}
	return false
}

func isIdentStart(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || (r >= '0' && r <= '9') || r == '_'
}

// hasPrefixAt reports whether the source continues with s at the current
// position, with an identifier boundary immediately after it.
func (l *Lexer) hasPrefixAt(s string) bool {
	end := l.pos + len(s)
	if end > len(l.src) {
		return false
	}
	if string(l.src[l.pos:end]) != s {
		return false
	}
	return end == len(l.src) || !isIdentPart(l.src[end])
}

// scanWord collects an identifier-shaped lexeme and classifies it as a
// reserved word or identifier. "System" followed by ".out.println" is the
// one multi-part keyword and takes priority over the bare identifier.
func (l *Lexer) scanWord() Token {
	line := l.line
	start := l.pos
	for l.pos < len(l.src) && isIdentPart(l.peek()) {
		l.advance()
	}
	lexeme := string(l.src[start:l.pos])

	if lexeme == "System" && l.hasPrefixAt(printlnSuffix) {
		for range printlnSuffix {
			l.advance()
		}
		return Token{Kind: RESERVED, Lexeme: "System" + printlnSuffix, Line: line}
	}

	kind := IDENTIFIER
	if reservedWords[lexeme] {
		kind = RESERVED
	}
	return Token{Kind: kind, Lexeme: lexeme, Line: line}
}

// scanNumber collects a decimal integer literal.
func (l *Lexer) scanNumber() Token {
	line := l.line
	start := l.pos
	for l.pos < len(l.src) && unicode.IsDigit(l.peek()) {
		l.advance()
	}
	return Token{Kind: NUMBER, Lexeme: string(l.src[start:l.pos]), Line: line}
}

// nextToken skips whitespace/comments and returns the next Token.
// A zero-length EOF token marks the end of input.
func (l *Lexer) nextToken() (Token, error) {
	for {
		l.skipWhitespace()
		if l.pos >= len(l.src) {
			return Token{Kind: EOF, Lexeme: "", Line: l.line}, nil
		}
		if l.peek() == '/' && l.peek2() == '/' {
			l.advance()
			l.advance()
			l.skipLineComment()
			continue
		}
		if l.peek() == '/' && l.peek2() == '*' {
			pos, line := l.pos, l.line
			l.advance()
			l.advance()
			if !l.skipBlockComment() {
				return Token{}, &LexError{Pos: pos, Line: line, Char: '/'}
			}
			continue
		}
		break
	}

	ch := l.peek()
	line := l.line
	pos := l.pos

	if isIdentStart(ch) {
		return l.scanWord(), nil
	}
	if unicode.IsDigit(ch) {
		return l.scanNumber(), nil
	}

	l.advance() // consume the character before the switch
	switch ch {
	case '(', ')', '[', ']', '{', '}', ',', '.', ';':
		return Token{PUNCTUATION, string(ch), line}, nil

	case '+', '-', '*':
		return Token{OPERATOR, string(ch), line}, nil
	case '<':
		if l.peek() == '=' {
			l.advance()
			return Token{OPERATOR, "<=", line}, nil
		}
		return Token{OPERATOR, "<", line}, nil
	case '>':
		if l.peek() == '=' {
			l.advance()
			return Token{OPERATOR, ">=", line}, nil
		}
		return Token{OPERATOR, ">", line}, nil
	case '=':
		if l.peek() == '=' { // lookahead: distinguish = vs ==
			l.advance()
			return Token{OPERATOR, "==", line}, nil
		}
		return Token{OPERATOR, "=", line}, nil
	case '!':
		if l.peek() == '=' {
			l.advance()
			return Token{OPERATOR, "!=", line}, nil
		}
		return Token{OPERATOR, "!", line}, nil
	case '&':
		if l.peek() == '&' {
			l.advance()
			return Token{OPERATOR, "&&", line}, nil
		}
		return Token{}, &LexError{Pos: pos, Line: line, Char: ch}
	default:
		return Token{}, &LexError{Pos: pos, Line: line, Char: ch}
	}
}

// Tokenize scans src and returns the full token list. Whitespace and
// comments are discarded, never emitted. It returns a non-nil error on the
// first character no pattern matches.
func Tokenize(src string) ([]Token, error) {
	l := newLexer(src)
	var tokens []Token
	for {
		tok, err := l.nextToken()
		if err != nil {
			return nil, err
		}
		if tok.Kind == EOF {
			return tokens, nil
		}
		tokens = append(tokens, tok)
	}
}

// DumpTokens renders the token list one per line, for --dump-tokens.
func DumpTokens(tokens []Token) string {
	var sb strings.Builder
	for _, tok := range tokens {
		fmt.Fprintln(&sb, tok)
	}
	return sb.String()
}
