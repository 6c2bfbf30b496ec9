package compiler

import "fmt"

// temporaries is the pool of registers expression evaluation may use.
// Naive expression trees rarely need more than a handful of simultaneously
// live values, so the eight caller-saved $t registers are the whole budget.
var temporaries = [...]string{"$t0", "$t1", "$t2", "$t3", "$t4", "$t5", "$t6", "$t7"}

// registerPool hands out temporary registers lowest-index-first and takes
// them back in any order. It is a fixed array with a free bitmask rather
// than a free list; eight slots do not justify more machinery.
type registerPool struct {
	inUse uint8
}

// allocate returns the lowest free temporary. All eight in use means the
// expression is too deep for this allocator.
func (p *registerPool) allocate() (string, error) {
	for i := range temporaries {
		if p.inUse&(1<<i) == 0 {
			p.inUse |= 1 << i
			return temporaries[i], nil
		}
	}
	return "", fmt.Errorf("%w: expression needs more than %d live values",
		ErrRegisterExhausted, len(temporaries))
}

// free returns a register to the pool. Freeing a register that is not
// currently allocated is a bug in the generator, not a user error.
func (p *registerPool) free(reg string) {
	for i, t := range temporaries {
		if t != reg {
			continue
		}
		if p.inUse&(1<<i) == 0 {
			panic("codegen: double free of register " + reg)
		}
		p.inUse &^= 1 << i
		return
	}
	panic("codegen: free of unknown register " + reg)
}

// live reports how many temporaries are currently allocated.
func (p *registerPool) live() int {
	n := 0
	for i := range temporaries {
		if p.inUse&(1<<i) != 0 {
			n++
		}
	}
	return n
}
