// Package asm translates MIPS assembly text into a flat binary instruction
// stream, one big-endian 32-bit word per instruction, in two passes: the
// first assigns addresses to labels, the second encodes.
package asm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"mjc/pkg/mips"
)

var (
	ErrUnknownInstruction = errors.New("unknown instruction")
	ErrDuplicateLabel     = errors.New("duplicate label")
	ErrUnresolvedLabel    = errors.New("unresolved label")
	ErrBadOperands        = errors.New("malformed operands")
)

// rTypeFuncts covers the three-register SPECIAL instructions.
var rTypeFuncts = map[string]uint32{
	"add":  mips.FunctADD,
	"sub":  mips.FunctSUB,
	"and":  mips.FunctAND,
	"or":   mips.FunctOR,
	"slt":  mips.FunctSLT,
	"sltu": mips.FunctSLTU,
}

// iTypeOpcodes covers register-register-immediate instructions.
var iTypeOpcodes = map[string]uint32{
	"addi":  mips.OpADDI,
	"addiu": mips.OpADDIU,
	"sltiu": mips.OpSLTIU,
	"xori":  mips.OpXORI,
}

var branchOpcodes = map[string]uint32{
	"beq": mips.OpBEQ,
	"bne": mips.OpBNE,
}

var memoryOpcodes = map[string]uint32{
	"lw": mips.OpLW,
	"sw": mips.OpSW,
}

var jumpOpcodes = map[string]uint32{
	"j":   mips.OpJ,
	"jal": mips.OpJAL,
}

// pseudoOps expand to exactly one real instruction each:
// li rt, imm        -> addi rt, $zero, imm
// move rd, rs       -> add rd, rs, $zero
// beqz rs, label    -> beq rs, $zero, label
var pseudoOps = map[string]bool{
	"li":   true,
	"move": true,
	"beqz": true,
}

var directives = map[string]bool{
	".data":  true,
	".text":  true,
	".globl": true,
}

// Assembler holds the label table built by pass one. Text labels map to
// byte addresses in the instruction stream; data labels are tracked only
// for duplicate detection, since data declarations do not enter the image.
type Assembler struct {
	labels     map[string]uint32
	dataLabels map[string]bool
}

type parsedLine struct {
	lineNo   int
	labels   []string
	mnemonic string
	operands []string
	isData   bool
}

func NewAssembler() *Assembler {
	return &Assembler{
		labels:     make(map[string]uint32),
		dataLabels: make(map[string]bool),
	}
}

// Assemble runs both passes over the source text and returns the binary
// image plus a map from instruction byte address to source line number.
func Assemble(code string) ([]byte, map[uint32]int, error) {
	return NewAssembler().Assemble(code)
}

func (a *Assembler) Assemble(code string) ([]byte, map[uint32]int, error) {
	lines := strings.Split(code, "\n")
	if err := a.collectLabels(lines); err != nil {
		return nil, nil, err
	}
	return a.encode(lines)
}

// Label reports the address assigned to a text label by pass one.
func (a *Assembler) Label(name string) (uint32, bool) {
	addr, ok := a.labels[name]
	return addr, ok
}

// LabelTable renders the resolved text labels sorted by name.
func (a *Assembler) LabelTable() string {
	var sb strings.Builder
	names := maps.Keys(a.labels)
	slices.Sort(names)
	for _, name := range names {
		fmt.Fprintf(&sb, "%08x  %s\n", a.labels[name], name)
	}
	return sb.String()
}

// collectLabels is pass one: every instruction advances the location
// counter by four bytes, directives and data declarations by nothing.
func (a *Assembler) collectLabels(lines []string) error {
	var address uint32
	for i, raw := range lines {
		lineNo := i + 1
		p, err := parseLine(raw, lineNo)
		if err != nil {
			return err
		}

		for _, lbl := range p.labels {
			if _, exists := a.labels[lbl]; exists || a.dataLabels[lbl] {
				return fmt.Errorf("%w: %q on line %d", ErrDuplicateLabel, lbl, lineNo)
			}
			if p.isData {
				a.dataLabels[lbl] = true
			} else {
				a.labels[lbl] = address
			}
		}

		if p.mnemonic == "" || p.isData || directives[p.mnemonic] {
			continue
		}
		words, ok := instructionWords(p.mnemonic)
		if !ok {
			return fmt.Errorf("%w: %q on line %d", ErrUnknownInstruction, p.mnemonic, lineNo)
		}
		address += 4 * uint32(words)
	}
	return nil
}

// encode is pass two.
func (a *Assembler) encode(lines []string) ([]byte, map[uint32]int, error) {
	program := make([]byte, 0)
	sourceMap := make(map[uint32]int)

	for i, raw := range lines {
		lineNo := i + 1
		p, err := parseLine(raw, lineNo)
		if err != nil {
			return nil, nil, err
		}
		if p.mnemonic == "" || p.isData || directives[p.mnemonic] {
			continue
		}

		address := uint32(len(program))
		word, err := a.encodeInstruction(p, address)
		if err != nil {
			return nil, nil, err
		}
		sourceMap[address] = lineNo
		program = binary.BigEndian.AppendUint32(program, word)
	}
	return program, sourceMap, nil
}

func (a *Assembler) encodeInstruction(p parsedLine, address uint32) (uint32, error) {
	m, ops := p.mnemonic, p.operands

	switch {
	case m == "syscall":
		if err := expectOperands(p, 0); err != nil {
			return 0, err
		}
		return mips.SyscallWord, nil

	case m == "jr":
		if err := expectOperands(p, 1); err != nil {
			return 0, err
		}
		rs, err := mips.Register(ops[0])
		if err != nil {
			return 0, err
		}
		return mips.EncodeR(mips.OpSpecial, rs, 0, 0, 0, mips.FunctJR), nil

	case rTypeFuncts[m] != 0 || m == "mul":
		if err := expectOperands(p, 3); err != nil {
			return 0, err
		}
		rd, err := mips.Register(ops[0])
		if err != nil {
			return 0, err
		}
		rs, err := mips.Register(ops[1])
		if err != nil {
			return 0, err
		}
		rt, err := mips.Register(ops[2])
		if err != nil {
			return 0, err
		}
		if m == "mul" {
			return mips.EncodeR(mips.OpSpecial2, rs, rt, rd, 0, mips.FunctMUL), nil
		}
		return mips.EncodeR(mips.OpSpecial, rs, rt, rd, 0, rTypeFuncts[m]), nil

	case m == "move":
		if err := expectOperands(p, 2); err != nil {
			return 0, err
		}
		rd, err := mips.Register(ops[0])
		if err != nil {
			return 0, err
		}
		rs, err := mips.Register(ops[1])
		if err != nil {
			return 0, err
		}
		return mips.EncodeR(mips.OpSpecial, rs, 0, rd, 0, mips.FunctADD), nil

	case iTypeOpcodes[m] != 0:
		if err := expectOperands(p, 3); err != nil {
			return 0, err
		}
		rt, err := mips.Register(ops[0])
		if err != nil {
			return 0, err
		}
		rs, err := mips.Register(ops[1])
		if err != nil {
			return 0, err
		}
		imm, err := parseImmediate(ops[2], p.lineNo)
		if err != nil {
			return 0, err
		}
		if err := mips.CheckImmediate(imm); err != nil {
			return 0, fmt.Errorf("%w on line %d", err, p.lineNo)
		}
		return mips.EncodeI(iTypeOpcodes[m], rs, rt, imm), nil

	case m == "li":
		if err := expectOperands(p, 2); err != nil {
			return 0, err
		}
		rt, err := mips.Register(ops[0])
		if err != nil {
			return 0, err
		}
		imm, err := parseImmediate(ops[1], p.lineNo)
		if err != nil {
			return 0, err
		}
		if err := mips.CheckImmediate(imm); err != nil {
			return 0, fmt.Errorf("%w on line %d", err, p.lineNo)
		}
		return mips.EncodeI(mips.OpADDI, 0, rt, imm), nil

	case memoryOpcodes[m] != 0:
		if err := expectOperands(p, 2); err != nil {
			return 0, err
		}
		rt, err := mips.Register(ops[0])
		if err != nil {
			return 0, err
		}
		offset, base, err := parseMemOperand(ops[1], p.lineNo)
		if err != nil {
			return 0, err
		}
		if err := mips.CheckImmediate(offset); err != nil {
			return 0, fmt.Errorf("%w on line %d", err, p.lineNo)
		}
		return mips.EncodeI(memoryOpcodes[m], base, rt, offset), nil

	case branchOpcodes[m] != 0:
		if err := expectOperands(p, 3); err != nil {
			return 0, err
		}
		rs, err := mips.Register(ops[0])
		if err != nil {
			return 0, err
		}
		rt, err := mips.Register(ops[1])
		if err != nil {
			return 0, err
		}
		offset, err := a.branchOffset(ops[2], address, p.lineNo)
		if err != nil {
			return 0, err
		}
		return mips.EncodeI(branchOpcodes[m], rs, rt, offset), nil

	case m == "beqz":
		if err := expectOperands(p, 2); err != nil {
			return 0, err
		}
		rs, err := mips.Register(ops[0])
		if err != nil {
			return 0, err
		}
		offset, err := a.branchOffset(ops[1], address, p.lineNo)
		if err != nil {
			return 0, err
		}
		return mips.EncodeI(mips.OpBEQ, rs, 0, offset), nil

	case jumpOpcodes[m] != 0:
		if err := expectOperands(p, 1); err != nil {
			return 0, err
		}
		target, ok := a.labels[ops[0]]
		if !ok {
			return 0, fmt.Errorf("%w: %q on line %d", ErrUnresolvedLabel, ops[0], p.lineNo)
		}
		return mips.EncodeJ(jumpOpcodes[m], target/4), nil

	default:
		return 0, fmt.Errorf("%w: %q on line %d", ErrUnknownInstruction, m, p.lineNo)
	}
}

// branchOffset resolves a label to a PC-relative word distance from the
// instruction after the branch.
func (a *Assembler) branchOffset(label string, address uint32, lineNo int) (int, error) {
	target, ok := a.labels[label]
	if !ok {
		return 0, fmt.Errorf("%w: %q on line %d", ErrUnresolvedLabel, label, lineNo)
	}
	offset := (int(target) - int(address+4)) / 4
	if err := mips.CheckImmediate(offset); err != nil {
		return 0, fmt.Errorf("branch to %q on line %d: %w", label, lineNo, err)
	}
	return offset, nil
}

func expectOperands(p parsedLine, n int) error {
	if len(p.operands) != n {
		return fmt.Errorf("%w: %s expects %d operands, got %d on line %d",
			ErrBadOperands, p.mnemonic, n, len(p.operands), p.lineNo)
	}
	return nil
}

// parseLine splits one source line into labels, a mnemonic, and operands.
// The .asciiz form is handled before comment stripping because its string
// may contain '#'.
func parseLine(raw string, lineNo int) (parsedLine, error) {
	p := parsedLine{lineNo: lineNo}

	if idx := strings.Index(raw, ".asciiz"); idx != -1 {
		before := raw[:idx]
		colon := strings.Index(before, ":")
		if colon == -1 {
			return p, fmt.Errorf("%w: .asciiz without a label on line %d", ErrBadOperands, lineNo)
		}
		label := strings.TrimSpace(before[:colon])
		if !isIdentifier(label) {
			return p, fmt.Errorf("%w: invalid label %q on line %d", ErrBadOperands, label, lineNo)
		}
		opening := strings.Index(raw, `"`)
		closing := strings.LastIndex(raw, `"`)
		if opening == -1 || closing == opening {
			return p, fmt.Errorf("%w: invalid string literal on line %d", ErrBadOperands, lineNo)
		}
		p.labels = []string{label}
		p.mnemonic = ".asciiz"
		p.operands = []string{raw[opening+1 : closing]}
		p.isData = true
		return p, nil
	}

	line := raw
	if hash := strings.IndexByte(line, '#'); hash != -1 {
		line = line[:hash]
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return p, nil
	}

	for {
		colon := strings.IndexByte(line, ':')
		if colon <= 0 {
			break
		}
		before := strings.TrimSpace(line[:colon])
		if strings.ContainsAny(before, " \t") {
			break
		}
		if !isIdentifier(before) {
			return p, fmt.Errorf("%w: invalid label %q on line %d", ErrBadOperands, before, lineNo)
		}
		p.labels = append(p.labels, before)
		line = strings.TrimSpace(line[colon+1:])
		if line == "" {
			return p, nil
		}
	}

	fields := strings.Fields(strings.ReplaceAll(line, ",", " "))
	if len(fields) == 0 {
		return p, nil
	}
	p.mnemonic = strings.ToLower(fields[0])
	p.operands = fields[1:]

	if p.mnemonic == ".word" {
		if len(p.labels) == 0 {
			return p, fmt.Errorf("%w: .word without a label on line %d", ErrBadOperands, lineNo)
		}
		if _, err := parseImmediate(firstOperand(p), lineNo); err != nil {
			return p, err
		}
		p.isData = true
	}
	return p, nil
}

func firstOperand(p parsedLine) string {
	if len(p.operands) > 0 {
		return p.operands[0]
	}
	return ""
}

// parseMemOperand splits "offset(register)" as used by lw and sw.
func parseMemOperand(token string, lineNo int) (int, uint32, error) {
	open := strings.IndexByte(token, '(')
	closing := strings.IndexByte(token, ')')
	if open == -1 || closing != len(token)-1 || closing < open {
		return 0, 0, fmt.Errorf("%w: %q on line %d", ErrBadOperands, token, lineNo)
	}
	offset := 0
	if open > 0 {
		v, err := parseImmediate(token[:open], lineNo)
		if err != nil {
			return 0, 0, err
		}
		offset = v
	}
	base, err := mips.Register(token[open+1 : closing])
	if err != nil {
		return 0, 0, err
	}
	return offset, base, nil
}

func parseImmediate(token string, lineNo int) (int, error) {
	v, err := strconv.Atoi(token)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid immediate %q on line %d", ErrBadOperands, token, lineNo)
	}
	return v, nil
}

// instructionWords returns how many 32-bit words a mnemonic occupies. Every
// supported instruction, pseudo instructions included, is exactly one word;
// both passes share this so label addresses cannot drift from the encoding.
func instructionWords(mnemonic string) (int, bool) {
	switch {
	case mnemonic == "syscall" || mnemonic == "jr" || mnemonic == "mul":
		return 1, true
	case rTypeFuncts[mnemonic] != 0:
		return 1, true
	case iTypeOpcodes[mnemonic] != 0:
		return 1, true
	case branchOpcodes[mnemonic] != 0:
		return 1, true
	case memoryOpcodes[mnemonic] != 0:
		return 1, true
	case jumpOpcodes[mnemonic] != 0:
		return 1, true
	case pseudoOps[mnemonic]:
		return 1, true
	}
	return 0, false
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if i == 0 {
			if !unicode.IsLetter(r) && r != '_' {
				return false
			}
			continue
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}
	return true
}
