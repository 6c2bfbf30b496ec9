package compiler

import (
	"bytes"
	"strings"
	"testing"
)

// instructionLines counts the assembly lines that assemble into words:
// everything except blanks, comments, directives, labels, and data
// declarations.
func instructionLines(assembly string) int {
	n := 0
	for _, raw := range strings.Split(assembly, "\n") {
		line := strings.TrimSpace(raw)
		switch {
		case line == "" || strings.HasPrefix(line, "#"):
		case strings.HasPrefix(line, "."):
		case strings.HasSuffix(line, ":"):
		case strings.Contains(line, ".asciiz") || strings.Contains(line, ".word"):
		default:
			n++
		}
	}
	return n
}

func TestCompileFactorialEndToEnd(t *testing.T) {
	res, err := Compile(factorialSource)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	if res.Program == nil || res.Symbols == nil {
		t.Fatal("result is missing front-end artifacts")
	}
	if _, ok := res.Symbols.Class("Fac"); !ok {
		t.Error("symbol table is missing class Fac")
	}

	assertContains(t, res.Assembly, "Fac_ComputeFac:")
	assertContains(t, res.Assembly, "jal Fac_ComputeFac")
	assertContains(t, res.Assembly, "beqz")

	if len(res.Binary)%4 != 0 {
		t.Fatalf("binary length %d is not word-aligned", len(res.Binary))
	}
	words := len(res.Binary) / 4
	want := instructionLines(res.Assembly)
	if words != want {
		t.Errorf("binary holds %d words, assembly has %d instruction lines", words, want)
	}
}

func TestCompileIsDeterministic(t *testing.T) {
	first, err := Compile(factorialSource)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	second, err := Compile(factorialSource)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if first.Assembly != second.Assembly {
		t.Error("assembly text differs between identical compilations")
	}
	if !bytes.Equal(first.Binary, second.Binary) {
		t.Error("binary differs between identical compilations")
	}
}

func TestCompileFailsFast(t *testing.T) {
	// semantic failure: no binary, no assembly
	_, err := Compile(wrapMain("x = 1;"))
	if err == nil {
		t.Fatal("expected error for undeclared variable")
	}

	// parse failure
	_, err = Compile("class Broken {")
	if err == nil {
		t.Fatal("expected error for unterminated class")
	}

	// lex failure
	_, err = Compile("class A { @ }")
	if err == nil {
		t.Fatal("expected error for unknown character")
	}
}
