package compiler

import (
	"errors"
	"reflect"
	"testing"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []Token
		wantErr  bool
	}{
		{
			name:     "Empty",
			input:    "",
			expected: nil,
		},
		{
			name:  "Operators",
			input: "+ - * < <= > >= = == ! != &&",
			expected: []Token{
				{Kind: OPERATOR, Lexeme: "+", Line: 1},
				{Kind: OPERATOR, Lexeme: "-", Line: 1},
				{Kind: OPERATOR, Lexeme: "*", Line: 1},
				{Kind: OPERATOR, Lexeme: "<", Line: 1},
				{Kind: OPERATOR, Lexeme: "<=", Line: 1},
				{Kind: OPERATOR, Lexeme: ">", Line: 1},
				{Kind: OPERATOR, Lexeme: ">=", Line: 1},
				{Kind: OPERATOR, Lexeme: "=", Line: 1},
				{Kind: OPERATOR, Lexeme: "==", Line: 1},
				{Kind: OPERATOR, Lexeme: "!", Line: 1},
				{Kind: OPERATOR, Lexeme: "!=", Line: 1},
				{Kind: OPERATOR, Lexeme: "&&", Line: 1},
			},
		},
		{
			name:  "Punctuation",
			input: "( ) [ ] { } ; . ,",
			expected: []Token{
				{Kind: PUNCTUATION, Lexeme: "(", Line: 1},
				{Kind: PUNCTUATION, Lexeme: ")", Line: 1},
				{Kind: PUNCTUATION, Lexeme: "[", Line: 1},
				{Kind: PUNCTUATION, Lexeme: "]", Line: 1},
				{Kind: PUNCTUATION, Lexeme: "{", Line: 1},
				{Kind: PUNCTUATION, Lexeme: "}", Line: 1},
				{Kind: PUNCTUATION, Lexeme: ";", Line: 1},
				{Kind: PUNCTUATION, Lexeme: ".", Line: 1},
				{Kind: PUNCTUATION, Lexeme: ",", Line: 1},
			},
		},
		{
			name:  "Keywords and identifiers",
			input: "class extends public int boolean myVar x_1",
			expected: []Token{
				{Kind: RESERVED, Lexeme: "class", Line: 1},
				{Kind: RESERVED, Lexeme: "extends", Line: 1},
				{Kind: RESERVED, Lexeme: "public", Line: 1},
				{Kind: RESERVED, Lexeme: "int", Line: 1},
				{Kind: RESERVED, Lexeme: "boolean", Line: 1},
				{Kind: IDENTIFIER, Lexeme: "myVar", Line: 1},
				{Kind: IDENTIFIER, Lexeme: "x_1", Line: 1},
			},
		},
		{
			name:  "Keyword prefix stays identifier",
			input: "classy interned whiles",
			expected: []Token{
				{Kind: IDENTIFIER, Lexeme: "classy", Line: 1},
				{Kind: IDENTIFIER, Lexeme: "interned", Line: 1},
				{Kind: IDENTIFIER, Lexeme: "whiles", Line: 1},
			},
		},
		{
			name:  "Println is one reserved word",
			input: "System.out.println(x);",
			expected: []Token{
				{Kind: RESERVED, Lexeme: "System.out.println", Line: 1},
				{Kind: PUNCTUATION, Lexeme: "(", Line: 1},
				{Kind: IDENTIFIER, Lexeme: "x", Line: 1},
				{Kind: PUNCTUATION, Lexeme: ")", Line: 1},
				{Kind: PUNCTUATION, Lexeme: ";", Line: 1},
			},
		},
		{
			name:  "System alone followed by dot",
			input: "System.x",
			expected: []Token{
				{Kind: IDENTIFIER, Lexeme: "System", Line: 1},
				{Kind: PUNCTUATION, Lexeme: ".", Line: 1},
				{Kind: IDENTIFIER, Lexeme: "x", Line: 1},
			},
		},
		{
			name:  "Numbers",
			input: "0 7 12345",
			expected: []Token{
				{Kind: NUMBER, Lexeme: "0", Line: 1},
				{Kind: NUMBER, Lexeme: "7", Line: 1},
				{Kind: NUMBER, Lexeme: "12345", Line: 1},
			},
		},
		{
			name:  "Line comments",
			input: "a // everything after is ignored\nb",
			expected: []Token{
				{Kind: IDENTIFIER, Lexeme: "a", Line: 1},
				{Kind: IDENTIFIER, Lexeme: "b", Line: 2},
			},
		},
		{
			name:  "Block comments track lines",
			input: "a /* span\nmultiple\nlines */ b",
			expected: []Token{
				{Kind: IDENTIFIER, Lexeme: "a", Line: 1},
				{Kind: IDENTIFIER, Lexeme: "b", Line: 3},
			},
		},
		{
			name:    "Single ampersand rejected",
			input:   "a & b",
			wantErr: true,
		},
		{
			name:    "Unterminated block comment rejected",
			input:   "a /* never closed",
			wantErr: true,
		},
		{
			name:    "Unknown character rejected",
			input:   "a @ b",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens, err := Tokenize(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got tokens %v", tokens)
				}
				var lexErr *LexError
				if !errors.As(err, &lexErr) {
					t.Fatalf("expected *LexError, got %T: %v", err, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(tokens, tt.expected) {
				t.Errorf("tokens mismatch\ngot:  %v\nwant: %v", tokens, tt.expected)
			}
		})
	}
}

func TestTokenizeLineNumbers(t *testing.T) {
	src := "class A {\n  int x;\n}\n"
	tokens, err := Tokenize(src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantLines := []int{1, 1, 1, 2, 2, 2, 3}
	if len(tokens) != len(wantLines) {
		t.Fatalf("got %d tokens, want %d", len(tokens), len(wantLines))
	}
	for i, want := range wantLines {
		if tokens[i].Line != want {
			t.Errorf("token %d (%q): line %d, want %d", i, tokens[i].Lexeme, tokens[i].Line, want)
		}
	}
}

func TestLexErrorMessage(t *testing.T) {
	_, err := Tokenize("class A { @ }")
	if err == nil {
		t.Fatal("expected error")
	}
	var lexErr *LexError
	if !errors.As(err, &lexErr) {
		t.Fatalf("expected *LexError, got %T", err)
	}
	if lexErr.Char != '@' {
		t.Errorf("Char = %q, want '@'", lexErr.Char)
	}
	if lexErr.Line != 1 {
		t.Errorf("Line = %d, want 1", lexErr.Line)
	}
}
