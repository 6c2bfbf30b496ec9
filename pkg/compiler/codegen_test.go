package compiler

import (
	"errors"
	"strings"
	"testing"
)

// assertContains checks that the generated assembly contains the expected
// substring.
func assertContains(t *testing.T, code, expected string) {
	t.Helper()
	if !strings.Contains(code, expected) {
		t.Errorf("expected code to contain %q, but it didn't.\nCode:\n%s", expected, code)
	}
}

func assertNotContains(t *testing.T, code, unexpected string) {
	t.Helper()
	if strings.Contains(code, unexpected) {
		t.Errorf("expected code not to contain %q, but it did.\nCode:\n%s", unexpected, code)
	}
}

func generateSource(t *testing.T, src string) (string, error) {
	t.Helper()
	program := mustParse(t, src)
	syms, err := Analyze(program)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	return Generate(program, syms)
}

func mustGenerate(t *testing.T, src string) string {
	t.Helper()
	code, err := generateSource(t, src)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	return code
}

func TestGenerateFactorial(t *testing.T) {
	code := mustGenerate(t, factorialSource)

	// sections and entry point
	assertContains(t, code, ".data")
	assertContains(t, code, `newline: .asciiz "\n"`)
	assertContains(t, code, ".text")
	assertContains(t, code, ".globl main")
	assertContains(t, code, "main:")

	// the method gets a statically bound label and a recursive call
	assertContains(t, code, "Fac_ComputeFac:")
	assertContains(t, code, "jal Fac_ComputeFac")

	// frame prologue and epilogue
	assertContains(t, code, "addi $sp, $sp, -12")
	assertContains(t, code, "sw $fp, 8($sp)")
	assertContains(t, code, "sw $ra, 4($sp)")
	assertContains(t, code, "sw $a0, 0($sp)")
	assertContains(t, code, "move $fp, $sp")
	assertContains(t, code, "jr $ra")

	// one local, one conditional
	assertContains(t, code, "addi $sp, $sp, -4")
	assertContains(t, code, "beqz")
	assertContains(t, code, "else_0")
	assertContains(t, code, "end_if_1")

	// print and exit syscalls
	assertContains(t, code, "li $v0, 1")
	assertContains(t, code, "li $v0, 10")
	assertContains(t, code, "syscall")

	// allocation of the Fac object (no fields, minimum one word)
	assertContains(t, code, "li $a0, 4")
	assertContains(t, code, "li $v0, 9")
}

func TestGenerateWhileLabels(t *testing.T) {
	src := wrapMain("") + `
		class Loop {
			public int count(int n) {
				int i;
				i = 0;
				while (i < n) i = i + 1;
				return i;
			}
		}`
	code := mustGenerate(t, src)
	assertContains(t, code, "while_start_0:")
	assertContains(t, code, "while_end_1")
	assertContains(t, code, "j while_start_0")
	assertContains(t, code, "beqz")
}

func TestGenerateParameterAndLocalOffsets(t *testing.T) {
	src := wrapMain("") + `
		class A {
			public int f(int x, int y) {
				int z;
				z = x + y;
				return z;
			}
		}`
	code := mustGenerate(t, src)
	assertContains(t, code, "lw $t0, 12($fp)") // x, first argument
	assertContains(t, code, "lw $t1, 16($fp)") // y, second argument
	assertContains(t, code, "sw $t0, -4($fp)") // z, first local
}

func TestGenerateFieldAccess(t *testing.T) {
	src := wrapMain("") + `
		class Counter {
			int value;
			public int bump() {
				value = value + 1;
				return value;
			}
		}`
	code := mustGenerate(t, src)
	// field reads and writes go through the receiver at 0($fp)
	assertContains(t, code, "lw $t0, 0($fp)")
	assertContains(t, code, "lw $t0, 0($t0)")
	assertContains(t, code, "sw $t0, 0($t1)")
}

func TestGenerateObjectZeroInit(t *testing.T) {
	src := wrapMain("System.out.println(new Pair().sum());") + `
		class Pair {
			int a;
			int b;
			public int sum() { return a + b; }
		}`
	code := mustGenerate(t, src)
	assertContains(t, code, "li $a0, 8")
	assertContains(t, code, "li $v0, 9")
	assertContains(t, code, "sw $zero, 0($t0)")
	assertContains(t, code, "sw $zero, 4($t0)")
}

func TestGenerateArrays(t *testing.T) {
	src := wrapMain("") + `
		class Vec {
			public int f(int n) {
				int[] xs;
				xs = new int[n];
				xs[0] = 7;
				return xs[0] + xs.length;
			}
		}`
	code := mustGenerate(t, src)
	// allocation reserves the length word: 4n + 4 bytes
	assertContains(t, code, "addi $a0, $a0, 4")
	// the element count is stored in the first word
	assertContains(t, code, "sw $t0, 0($t1)")
	// element accesses are offset past the length word
	assertContains(t, code, "sw $t1, 4($t0)")
	assertContains(t, code, "lw $t0, 4($t0)")
	// .length reads the first word
	assertContains(t, code, "lw $t1, 0($t1)")
}

func TestGenerateArgumentPushAndPop(t *testing.T) {
	src := wrapMain("System.out.println(new A().f(1, 2));") + `
		class A { public int f(int x, int y) { return x - y; } }`
	code := mustGenerate(t, src)
	assertContains(t, code, "addi $sp, $sp, -4")
	assertContains(t, code, "sw $t1, 0($sp)") // arguments pushed one at a time
	assertContains(t, code, "jal A_f")
	assertContains(t, code, "addi $sp, $sp, 8") // caller pops both
	assertContains(t, code, "move $t0, $v0")
}

func TestGenerateRelationalEncodings(t *testing.T) {
	tests := []struct {
		op   string
		want []string
	}{
		{"<", []string{"slt $t0, $t0, $t1"}},
		{">", []string{"slt $t0, $t1, $t0"}},
		{"<=", []string{"slt $t0, $t1, $t0", "xori $t0, $t0, 1"}},
		{">=", []string{"slt $t0, $t0, $t1", "xori $t0, $t0, 1"}},
		{"==", []string{"sub $t0, $t0, $t1", "sltiu $t0, $t0, 1"}},
		{"!=", []string{"sub $t0, $t0, $t1", "sltu $t0, $zero, $t0"}},
	}
	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			src := wrapMain("") + `
				class A { public boolean f(int x, int y) { return x ` + tt.op + ` y; } }`
			code := mustGenerate(t, src)
			for _, want := range tt.want {
				assertContains(t, code, want)
			}
		})
	}
}

func TestGenerateConstantsAreFolded(t *testing.T) {
	src := wrapMain("System.out.println(2 + 3 * 4);")
	program := mustParse(t, src)
	syms, err := Analyze(program)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	code, err := Generate(program, syms)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	assertContains(t, code, "li $t0, 14")
	assertNotContains(t, code, "mul")
}

func TestGenerateRegisterExhaustion(t *testing.T) {
	// right-nested sums keep one live register per level
	expr := "1"
	for i := 0; i < 8; i++ {
		expr = "1 + (" + expr + ")"
	}
	src := wrapMain("System.out.println(" + expr + ");")
	program := mustParse(t, src)
	// defeat folding so the generator sees the full tree
	syms := NewSymbolTable()
	if _, err := syms.AddClass("Main", ""); err != nil {
		t.Fatal(err)
	}
	_, err := Generate(program, syms)
	if !errors.Is(err, ErrRegisterExhausted) {
		t.Errorf("error = %v, want %v", err, ErrRegisterExhausted)
	}
}

func TestGenerateUnknownVariable(t *testing.T) {
	program := mustParse(t, wrapMain("System.out.println(bogus);"))
	syms := NewSymbolTable()
	if _, err := syms.AddClass("Main", ""); err != nil {
		t.Fatal(err)
	}
	_, err := Generate(program, syms)
	if !errors.Is(err, ErrUndeclaredVariable) {
		t.Errorf("error = %v, want %v", err, ErrUndeclaredVariable)
	}
}
