package compiler

import "fmt"

// TokenKind identifies the category of a lexed token.
type TokenKind int

const (
	EOF TokenKind = iota // sentinel: end of input, never stored in the token list

	RESERVED    // fixed keyword, e.g. "class", "while", "System.out.println"
	IDENTIFIER  // variable / class / method name
	NUMBER      // decimal integer literal
	OPERATOR    // <= >= == != < > + - * && ! =
	PUNCTUATION // ( ) [ ] { } , . ;
)

// kindNames is indexed by TokenKind.
var kindNames = [...]string{
	EOF:         "EOF",
	RESERVED:    "RESERVED",
	IDENTIFIER:  "IDENTIFIER",
	NUMBER:      "NUMBER",
	OPERATOR:    "OPERATOR",
	PUNCTUATION: "PUNCTUATION",
}

func (k TokenKind) String() string {
	if int(k) >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("TokenKind(%d)", int(k))
}

// Token is a single lexical unit produced by the Lexer.
type Token struct {
	Kind   TokenKind
	Lexeme string // the exact source text that was matched
	Line   int    // 1-based source line
}

func (t Token) String() string {
	return fmt.Sprintf("%-11s %-14q  line %d", t.Kind, t.Lexeme, t.Line)
}
