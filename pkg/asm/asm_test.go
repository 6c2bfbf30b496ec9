package asm

import (
	"encoding/binary"
	"errors"
	"testing"

	"mjc/pkg/mips"
)

// words splits an assembled image into big-endian 32-bit words.
func words(t *testing.T, program []byte) []uint32 {
	t.Helper()
	if len(program)%4 != 0 {
		t.Fatalf("program length %d is not word-aligned", len(program))
	}
	out := make([]uint32, 0, len(program)/4)
	for i := 0; i < len(program); i += 4 {
		out = append(out, binary.BigEndian.Uint32(program[i:]))
	}
	return out
}

func assemble(t *testing.T, code string) []uint32 {
	t.Helper()
	program, _, err := Assemble(code)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	return words(t, program)
}

func TestAssembleRType(t *testing.T) {
	got := assemble(t, `
		add $t0, $t1, $t2
		sub $t0, $t0, $t1
		mul $t0, $t1, $t2
		slt $t0, $t0, $t1
		jr $ra
		syscall
	`)
	want := []uint32{
		0x012A4020, // add
		0x01094022, // sub $t0, $t0, $t1
		0x712A4002, // mul (SPECIAL2)
		0x0109402A, // slt
		0x03E00008, // jr $ra
		0x0000000C, // syscall
	}
	if len(got) != len(want) {
		t.Fatalf("got %d words, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("word %d = %#08x, want %#08x", i, got[i], want[i])
		}
	}
}

func TestAssembleImmediateBoundaries(t *testing.T) {
	got := assemble(t, `
		addi $t0, $zero, 32767
		addi $t0, $zero, -32768
	`)
	if got[0]&0xFFFF != 0x7FFF {
		t.Errorf("imm field of 32767 = %#04x, want 0x7fff", got[0]&0xFFFF)
	}
	if got[1]&0xFFFF != 0x8000 {
		t.Errorf("imm field of -32768 = %#04x, want 0x8000", got[1]&0xFFFF)
	}

	_, _, err := Assemble("addi $t0, $zero, 32768")
	if !errors.Is(err, mips.ErrImmediateRange) {
		t.Errorf("32768: error = %v, want %v", err, mips.ErrImmediateRange)
	}
	_, _, err = Assemble("addi $t0, $zero, -32769")
	if !errors.Is(err, mips.ErrImmediateRange) {
		t.Errorf("-32769: error = %v, want %v", err, mips.ErrImmediateRange)
	}
}

func TestAssembleMemoryOperands(t *testing.T) {
	got := assemble(t, `
		lw $t0, 12($fp)
		sw $ra, 4($sp)
		lw $t1, 0($t0)
		lw $t2, -8($fp)
	`)
	want := []uint32{
		mips.EncodeI(mips.OpLW, 30, 8, 12),
		mips.EncodeI(mips.OpSW, 29, 31, 4),
		mips.EncodeI(mips.OpLW, 8, 9, 0),
		mips.EncodeI(mips.OpLW, 30, 10, -8),
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("word %d = %#08x, want %#08x", i, got[i], want[i])
		}
	}
}

func TestAssembleBranchOffsets(t *testing.T) {
	// backward branch: target 0, branch at 8 -> (0 - 12) / 4 = -3
	got := assemble(t, `
top:
		addi $t0, $t0, -1
		addi $t1, $t1, 1
		bne $t0, $zero, top
		beq $t0, $zero, done
done:
		syscall
	`)
	bne := got[2]
	if imm := int16(bne & 0xFFFF); imm != -3 {
		t.Errorf("backward branch offset = %d, want -3", imm)
	}
	// forward branch: target 16, branch at 12 -> (16 - 16) / 4 = 0
	beq := got[3]
	if imm := int16(beq & 0xFFFF); imm != 0 {
		t.Errorf("forward branch offset = %d, want 0", imm)
	}
}

func TestAssembleJumpTargets(t *testing.T) {
	got := assemble(t, `
main:
		jal func
		syscall
func:
		jr $ra
	`)
	jal := got[0]
	if jal>>26 != mips.OpJAL {
		t.Fatalf("opcode = %#x, want jal", jal>>26)
	}
	// func sits at byte 8, so the address field holds 2
	if addr := jal & 0x03FFFFFF; addr != 2 {
		t.Errorf("jump address field = %d, want 2", addr)
	}
}

func TestAssemblePseudoExpansion(t *testing.T) {
	got := assemble(t, `
		li $v0, 10
		move $fp, $sp
loop:
		beqz $t0, loop
	`)
	want := []uint32{
		mips.EncodeI(mips.OpADDI, 0, 2, 10),                       // addi $v0, $zero, 10
		mips.EncodeR(mips.OpSpecial, 29, 0, 30, 0, mips.FunctADD), // add $fp, $sp, $zero
		mips.EncodeI(mips.OpBEQ, 8, 0, -1),                        // beq $t0, $zero, loop
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("word %d = %#08x, want %#08x", i, got[i], want[i])
		}
	}
}

func TestAssembleDirectivesAndData(t *testing.T) {
	program, sourceMap, err := Assemble(`
.data
newline: .asciiz "\n"
count: .word 3
.text
.globl main
main:
		li $v0, 10  # exit
		syscall
	`)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	// only the two instructions enter the image
	if len(program) != 8 {
		t.Fatalf("program length = %d, want 8", len(program))
	}
	if len(sourceMap) != 2 {
		t.Errorf("source map has %d entries, want 2", len(sourceMap))
	}
}

func TestAssembleComments(t *testing.T) {
	got := assemble(t, `
# full-line comment
		addi $t0, $zero, 1  # trailing comment
	`)
	if len(got) != 1 {
		t.Fatalf("got %d words, want 1", len(got))
	}
	if got[0] != mips.EncodeI(mips.OpADDI, 0, 8, 1) {
		t.Errorf("word = %#08x", got[0])
	}
}

func TestAssembleErrors(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantErr error
	}{
		{"Unknown instruction", "frobnicate $t0, $t1", ErrUnknownInstruction},
		{"Unknown register", "add $t0, $t1, $x5", mips.ErrUnsupportedRegister},
		{"Unresolved branch label", "beq $t0, $zero, nowhere", ErrUnresolvedLabel},
		{"Unresolved jump label", "j nowhere", ErrUnresolvedLabel},
		{"Duplicate label", "dup:\nsyscall\ndup:\nsyscall", ErrDuplicateLabel},
		{"Wrong operand count", "add $t0, $t1", ErrBadOperands},
		{"Bad memory operand", "lw $t0, 4[$sp]", ErrBadOperands},
		{"Bad immediate", "addi $t0, $zero, ten", ErrBadOperands},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Assemble(tt.code)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestAssembleBigEndianLayout(t *testing.T) {
	program, _, err := Assemble("jr $ra")
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	want := []byte{0x03, 0xE0, 0x00, 0x08}
	for i, b := range want {
		if program[i] != b {
			t.Errorf("byte %d = %#02x, want %#02x", i, program[i], b)
		}
	}
}

func TestAssemblerLabelLookup(t *testing.T) {
	a := NewAssembler()
	_, _, err := a.Assemble("start:\nsyscall\nnext:\njr $ra")
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if addr, ok := a.Label("start"); !ok || addr != 0 {
		t.Errorf("start = %d, %v; want 0, true", addr, ok)
	}
	if addr, ok := a.Label("next"); !ok || addr != 4 {
		t.Errorf("next = %d, %v; want 4, true", addr, ok)
	}
	table := a.LabelTable()
	want := "00000004  next\n00000000  start\n"
	if table != want {
		t.Errorf("LabelTable() = %q, want %q", table, want)
	}
}
