// Package compiler implements a MiniJava compiler targeting MIPS: lexer,
// recursive-descent parser, two-pass semantic analyzer, and code generator.
// Compile chains them with the assembler into source-to-binary translation.
package compiler

import (
	log "github.com/sirupsen/logrus"

	"mjc/pkg/asm"
)

// Result collects the artifacts of a compilation. Check fills everything up
// to Symbols; Compile fills all of it.
type Result struct {
	Tokens   []Token
	Program  *Program
	Symbols  *SymbolTable
	Assembly string
	Binary   []byte
}

// Compile translates MiniJava source to a MIPS binary image. Every stage
// fails fast: the first error aborts the unit and no partial output is kept.
func Compile(source string) (*Result, error) {
	res, err := Check(source)
	if err != nil {
		return nil, err
	}

	log.Debug("generating code")
	assembly, err := Generate(res.Program, res.Symbols)
	if err != nil {
		return nil, err
	}
	res.Assembly = assembly

	log.Debug("assembling")
	binary, _, err := asm.Assemble(assembly)
	if err != nil {
		return nil, err
	}
	res.Binary = binary

	log.Debugf("compiled %d instruction words", len(binary)/4)
	return res, nil
}

// Check runs the front end only: lex, parse, and semantic analysis.
func Check(source string) (*Result, error) {
	log.Debug("tokenizing")
	tokens, err := Tokenize(source)
	if err != nil {
		return nil, err
	}

	log.Debug("parsing")
	program, err := ParseProgram(tokens)
	if err != nil {
		return nil, err
	}

	log.Debug("analyzing")
	syms, err := Analyze(program)
	if err != nil {
		return nil, err
	}

	return &Result{Tokens: tokens, Program: program, Symbols: syms}, nil
}
