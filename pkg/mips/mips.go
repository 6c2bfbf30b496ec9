// Package mips defines the target instruction set: register numbering,
// opcode and funct tables, and the bit-level encoders and decoders for the
// three MIPS instruction formats.
package mips

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedRegister = errors.New("unsupported register")
	ErrImmediateRange      = errors.New("immediate out of 16-bit signed range")
	ErrUnknownWord         = errors.New("word does not decode to a supported instruction")
)

// R-type funct codes, used with OpSpecial.
const (
	FunctSLL     uint32 = 0x00
	FunctJR      uint32 = 0x08
	FunctSyscall uint32 = 0x0C
	FunctADD     uint32 = 0x20
	FunctSUB     uint32 = 0x22
	FunctAND     uint32 = 0x24
	FunctOR      uint32 = 0x25
	FunctSLT     uint32 = 0x2A
	FunctSLTU    uint32 = 0x2B

	// MUL lives in the SPECIAL2 opcode space, not SPECIAL.
	FunctMUL uint32 = 0x02
)

// Primary opcodes.
const (
	OpSpecial  uint32 = 0x00
	OpSpecial2 uint32 = 0x1C
	OpJ        uint32 = 0x02
	OpJAL      uint32 = 0x03
	OpBEQ      uint32 = 0x04
	OpBNE      uint32 = 0x05
	OpADDI     uint32 = 0x08
	OpADDIU    uint32 = 0x09
	OpSLTIU    uint32 = 0x0B
	OpXORI     uint32 = 0x0E
	OpLW       uint32 = 0x23
	OpSW       uint32 = 0x2B
)

// SyscallWord is the fixed encoding of the syscall instruction: SPECIAL
// opcode, all register fields zero, syscall funct.
const SyscallWord uint32 = FunctSyscall

// registers maps assembly register names to their hardware numbers.
var registers = map[string]uint32{
	"$zero": 0, "$at": 1,
	"$v0": 2, "$v1": 3,
	"$a0": 4, "$a1": 5, "$a2": 6, "$a3": 7,
	"$t0": 8, "$t1": 9, "$t2": 10, "$t3": 11,
	"$t4": 12, "$t5": 13, "$t6": 14, "$t7": 15,
	"$s0": 16, "$s1": 17, "$s2": 18, "$s3": 19,
	"$s4": 20, "$s5": 21, "$s6": 22, "$s7": 23,
	"$t8": 24, "$t9": 25,
	"$k0": 26, "$k1": 27,
	"$gp": 28, "$sp": 29, "$fp": 30, "$ra": 31,
}

// registerNames is the inverse of registers, indexed by number.
var registerNames = func() [32]string {
	var names [32]string
	for name, n := range registers {
		names[n] = name
	}
	return names
}()

// Register resolves a register name such as "$t0" to its number.
func Register(name string) (uint32, error) {
	n, ok := registers[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedRegister, name)
	}
	return n, nil
}

// RegisterName returns the canonical name for a register number.
func RegisterName(n uint32) string {
	return registerNames[n&0x1F]
}

// CheckImmediate rejects values that do not fit a signed 16-bit field.
func CheckImmediate(v int) error {
	if v < -32768 || v > 32767 {
		return fmt.Errorf("%w: %d", ErrImmediateRange, v)
	}
	return nil
}

// EncodeR packs an R-type instruction:
// opcode(6) rs(5) rt(5) rd(5) shamt(5) funct(6).
func EncodeR(opcode, rs, rt, rd, shamt, funct uint32) uint32 {
	return opcode<<26 | (rs&0x1F)<<21 | (rt&0x1F)<<16 | (rd&0x1F)<<11 | (shamt&0x1F)<<6 | funct&0x3F
}

// EncodeI packs an I-type instruction: opcode(6) rs(5) rt(5) imm(16).
// The immediate is truncated to its low 16 bits; range checking is the
// caller's job so that branch offsets (already in range by construction)
// and user immediates report errors differently.
func EncodeI(opcode, rs, rt uint32, imm int) uint32 {
	return opcode<<26 | (rs&0x1F)<<21 | (rt&0x1F)<<16 | uint32(uint16(int16(imm)))
}

// EncodeJ packs a J-type instruction: opcode(6) address(26), where address
// is the target byte address divided by four.
func EncodeJ(opcode, addr uint32) uint32 {
	return opcode<<26 | addr&0x03FFFFFF
}

// Instruction is the decoded form of one word, sufficient to reconstruct
// the assembly operands.
type Instruction struct {
	Mnemonic string
	RS       uint32
	RT       uint32
	RD       uint32
	Imm      int16  // I-type immediate
	Addr     uint32 // J-type address field
}

// rFuncts maps SPECIAL funct codes back to mnemonics.
var rFuncts = map[uint32]string{
	FunctADD:  "add",
	FunctSUB:  "sub",
	FunctAND:  "and",
	FunctOR:   "or",
	FunctSLT:  "slt",
	FunctSLTU: "sltu",
	FunctJR:   "jr",
}

// iOpcodes maps I-type opcodes back to mnemonics.
var iOpcodes = map[uint32]string{
	OpADDI:  "addi",
	OpADDIU: "addiu",
	OpSLTIU: "sltiu",
	OpXORI:  "xori",
	OpBEQ:   "beq",
	OpBNE:   "bne",
	OpLW:    "lw",
	OpSW:    "sw",
}

// Decode is the inverse of the encoders for every instruction the code
// generator can emit.
func Decode(word uint32) (Instruction, error) {
	opcode := word >> 26
	rs := word >> 21 & 0x1F
	rt := word >> 16 & 0x1F
	rd := word >> 11 & 0x1F
	funct := word & 0x3F

	switch opcode {
	case OpSpecial:
		if word == SyscallWord {
			return Instruction{Mnemonic: "syscall"}, nil
		}
		m, ok := rFuncts[funct]
		if !ok {
			return Instruction{}, fmt.Errorf("%w: %#08x", ErrUnknownWord, word)
		}
		return Instruction{Mnemonic: m, RS: rs, RT: rt, RD: rd}, nil
	case OpSpecial2:
		if funct != FunctMUL {
			return Instruction{}, fmt.Errorf("%w: %#08x", ErrUnknownWord, word)
		}
		return Instruction{Mnemonic: "mul", RS: rs, RT: rt, RD: rd}, nil
	case OpJ:
		return Instruction{Mnemonic: "j", Addr: word & 0x03FFFFFF}, nil
	case OpJAL:
		return Instruction{Mnemonic: "jal", Addr: word & 0x03FFFFFF}, nil
	default:
		m, ok := iOpcodes[opcode]
		if !ok {
			return Instruction{}, fmt.Errorf("%w: %#08x", ErrUnknownWord, word)
		}
		return Instruction{Mnemonic: m, RS: rs, RT: rt, Imm: int16(word & 0xFFFF)}, nil
	}
}
