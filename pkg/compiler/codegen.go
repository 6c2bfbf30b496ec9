package compiler

import (
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
)

// CodeGen walks an analyzed AST and emits MIPS assembly source text.
//
// Register discipline: every expression returns its value in a freshly
// allocated temporary, and every operator frees its operands' registers as
// soon as it has consumed them. Lifetimes therefore nest exactly with the
// expression tree, which is what makes the fixed eight-register pool enough.
type CodeGen struct {
	syms      *SymbolTable
	out       strings.Builder
	regs      registerPool
	nextLabel int
}

func newCodeGen(syms *SymbolTable) *CodeGen {
	return &CodeGen{syms: syms}
}

// Generate translates an analyzed program into MIPS assembly text. The
// program must have passed Analyze; generation re-checks name resolution but
// assumes the types are sound.
func Generate(program *Program, syms *SymbolTable) (string, error) {
	cg := newCodeGen(syms)
	if err := cg.genProgram(program); err != nil {
		return "", err
	}
	return cg.out.String(), nil
}

// newLabel returns a fresh label such as else_3. One counter feeds every
// prefix, so labels are unique program-wide.
func (cg *CodeGen) newLabel(prefix string) string {
	l := fmt.Sprintf("%s_%d", prefix, cg.nextLabel)
	cg.nextLabel++
	return l
}

func (cg *CodeGen) ins(format string, args ...any) {
	fmt.Fprintf(&cg.out, "    "+format+"\n", args...)
}

func (cg *CodeGen) label(name string) {
	fmt.Fprintf(&cg.out, "%s:\n", name)
}

func (cg *CodeGen) raw(line string) {
	cg.out.WriteString(line + "\n")
}

func (cg *CodeGen) comment(format string, args ...any) {
	cg.raw("# " + fmt.Sprintf(format, args...))
}

func (cg *CodeGen) genProgram(p *Program) error {
	cg.raw(".data")
	cg.raw(`newline: .asciiz "\n"`)
	cg.raw(".text")
	cg.raw(".globl main")
	if err := cg.genMain(p.Main); err != nil {
		return err
	}
	for _, class := range p.Classes {
		if err := cg.genClass(class); err != nil {
			return err
		}
	}
	return nil
}

func (cg *CodeGen) genMain(m *MainClass) error {
	log.Debugf("generating code for main class %q", m.ClassName)
	cg.label("main")
	mt := newMethodTable(m.ClassName, "main")
	mt.static = true
	for _, cmd := range m.Commands {
		if err := cg.genCommand(cmd, mt); err != nil {
			return err
		}
	}
	cg.comment("program exit")
	cg.ins("li $v0, 10")
	cg.ins("syscall")
	return nil
}

func (cg *CodeGen) genClass(c *Class) error {
	for _, method := range c.Methods {
		if err := cg.genMethod(c.Name, method); err != nil {
			return err
		}
	}
	return nil
}

// genMethod emits one ClassName_methodName routine.
//
// Frame layout, offsets relative to $fp after the prologue:
//
//	12+4i  caller-pushed argument i (pushed right to left)
//	 8     caller's $fp
//	 4     return address
//	 0     receiver ('this', arrives in $a0)
//	-4i-4  local i
func (cg *CodeGen) genMethod(className string, m *Method) error {
	qualified := className + "_" + m.Name
	log.Debugf("generating code for method %q", qualified)
	cg.label(qualified)

	mt := newMethodTable(className, m.Name)
	for i, p := range m.Parameters {
		if err := mt.Define(p.Name, p.ParamType); err != nil {
			return err
		}
		mt.setOffset(p.Name, 12+4*i)
	}
	for i, v := range m.LocalVariables {
		if err := mt.Define(v.Name, v.VarType); err != nil {
			return err
		}
		mt.setOffset(v.Name, -4*(i+1))
	}

	cg.ins("addi $sp, $sp, -12")
	cg.ins("sw $fp, 8($sp)")
	cg.ins("sw $ra, 4($sp)")
	cg.ins("sw $a0, 0($sp)")
	cg.ins("move $fp, $sp")
	if n := len(m.LocalVariables); n > 0 {
		cg.ins("addi $sp, $sp, %d", -4*n)
	}

	for _, cmd := range m.Commands {
		if err := cg.genCommand(cmd, mt); err != nil {
			return err
		}
	}

	reg, err := cg.genExpression(m.ReturnExpression, mt)
	if err != nil {
		return err
	}
	cg.ins("move $v0, %s", reg)
	cg.regs.free(reg)

	cg.ins("move $sp, $fp")
	cg.ins("lw $ra, 4($sp)")
	cg.ins("lw $fp, 8($sp)")
	cg.ins("addi $sp, $sp, 12")
	cg.ins("jr $ra")
	return nil
}

func (cg *CodeGen) genCommand(cmd Command, mt *MethodTable) error {
	switch n := cmd.(type) {
	case *Block:
		for _, c := range n.Commands {
			if err := cg.genCommand(c, mt); err != nil {
				return err
			}
		}
		return nil

	case *Assignment:
		reg, err := cg.genExpression(n.Value, mt)
		if err != nil {
			return err
		}
		if err := cg.genStore(reg, n.Target, mt); err != nil {
			return err
		}
		cg.regs.free(reg)
		return nil

	case *ArrayAssignment:
		base, err := cg.genLoad(n.Target, mt)
		if err != nil {
			return err
		}
		idx, err := cg.genExpression(n.Index, mt)
		if err != nil {
			return err
		}
		// scale the index to bytes, then point at the element
		cg.ins("add %s, %s, %s", idx, idx, idx)
		cg.ins("add %s, %s, %s", idx, idx, idx)
		cg.ins("add %s, %s, %s", base, base, idx)
		cg.regs.free(idx)
		val, err := cg.genExpression(n.Value, mt)
		if err != nil {
			return err
		}
		cg.ins("sw %s, 4(%s)", val, base)
		cg.regs.free(val)
		cg.regs.free(base)
		return nil

	case *Print:
		reg, err := cg.genExpression(n.Expression, mt)
		if err != nil {
			return err
		}
		cg.ins("li $v0, 1")
		cg.ins("move $a0, %s", reg)
		cg.ins("syscall")
		cg.regs.free(reg)
		return nil

	case *If:
		elseLabel := cg.newLabel("else")
		endLabel := cg.newLabel("end_if")
		reg, err := cg.genExpression(n.Condition, mt)
		if err != nil {
			return err
		}
		cg.ins("beqz %s, %s", reg, elseLabel)
		cg.regs.free(reg)
		if err := cg.genCommand(n.Then, mt); err != nil {
			return err
		}
		cg.ins("j %s", endLabel)
		cg.label(elseLabel)
		if n.Else != nil {
			if err := cg.genCommand(n.Else, mt); err != nil {
				return err
			}
		}
		cg.label(endLabel)
		return nil

	case *While:
		startLabel := cg.newLabel("while_start")
		endLabel := cg.newLabel("while_end")
		cg.label(startLabel)
		reg, err := cg.genExpression(n.Condition, mt)
		if err != nil {
			return err
		}
		cg.ins("beqz %s, %s", reg, endLabel)
		cg.regs.free(reg)
		if err := cg.genCommand(n.Body, mt); err != nil {
			return err
		}
		cg.ins("j %s", startLabel)
		cg.label(endLabel)
		return nil

	case *Return:
		reg, err := cg.genExpression(n.Value, mt)
		if err != nil {
			return err
		}
		cg.ins("move $v0, %s", reg)
		cg.regs.free(reg)
		return nil

	case *ExpressionStatement:
		call, ok := n.Expression.(*MethodCall)
		if !ok {
			return fmt.Errorf("%w: %T as a command", ErrUnsupportedCommand, n.Expression)
		}
		reg, err := cg.genMethodCall(call, mt)
		if err != nil {
			return err
		}
		cg.regs.free(reg)
		return nil

	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedCommand, cmd)
	}
}

// genStore writes a register into a named variable: a frame slot for
// parameters and locals, a field of the receiver otherwise.
func (cg *CodeGen) genStore(reg, name string, mt *MethodTable) error {
	if off, ok := mt.Offset(name); ok {
		cg.ins("sw %s, %d($fp)", reg, off)
		return nil
	}
	if entry, ok := cg.syms.Class(mt.CurrentClass); ok && !mt.static {
		if off, ok := entry.FieldOffset(name); ok {
			this, err := cg.regs.allocate()
			if err != nil {
				return err
			}
			cg.ins("lw %s, 0($fp)", this)
			cg.ins("sw %s, %d(%s)", reg, off, this)
			cg.regs.free(this)
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUndeclaredVariable, name)
}

// genLoad reads a named variable into a fresh register.
func (cg *CodeGen) genLoad(name string, mt *MethodTable) (string, error) {
	if off, ok := mt.Offset(name); ok {
		reg, err := cg.regs.allocate()
		if err != nil {
			return "", err
		}
		cg.ins("lw %s, %d($fp)", reg, off)
		return reg, nil
	}
	if entry, ok := cg.syms.Class(mt.CurrentClass); ok && !mt.static {
		if off, ok := entry.FieldOffset(name); ok {
			reg, err := cg.regs.allocate()
			if err != nil {
				return "", err
			}
			cg.ins("lw %s, 0($fp)", reg)
			cg.ins("lw %s, %d(%s)", reg, off, reg)
			return reg, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUndeclaredVariable, name)
}

// genExpression emits code leaving the expression's value in the returned
// register. The caller owns the register and must free it.
func (cg *CodeGen) genExpression(e Expression, mt *MethodTable) (string, error) {
	switch n := e.(type) {
	case *NumberLit:
		reg, err := cg.regs.allocate()
		if err != nil {
			return "", err
		}
		cg.ins("li %s, %d", reg, n.Value)
		return reg, nil

	case *BooleanLit:
		reg, err := cg.regs.allocate()
		if err != nil {
			return "", err
		}
		v := 0
		if n.Value {
			v = 1
		}
		cg.ins("li %s, %d", reg, v)
		return reg, nil

	case *NullLit:
		reg, err := cg.regs.allocate()
		if err != nil {
			return "", err
		}
		cg.ins("li %s, 0", reg)
		return reg, nil

	case *Identifier:
		return cg.genLoad(n.Name, mt)

	case *This:
		if mt.static {
			return "", ErrThisOutsideClass
		}
		reg, err := cg.regs.allocate()
		if err != nil {
			return "", err
		}
		cg.ins("lw %s, 0($fp)", reg)
		return reg, nil

	case *NewObject:
		entry, ok := cg.syms.Class(n.ClassName)
		if !ok {
			return "", fmt.Errorf("%w: class %q", ErrUnknownClassOrMethod, n.ClassName)
		}
		reg, err := cg.regs.allocate()
		if err != nil {
			return "", err
		}
		cg.ins("li $a0, %d", entry.ObjectSize())
		cg.ins("li $v0, 9")
		cg.ins("syscall")
		cg.ins("move %s, $v0", reg)
		for off := 0; off < entry.ObjectSize(); off += wordSize {
			cg.ins("sw $zero, %d(%s)", off, reg)
		}
		return reg, nil

	case *NewArray:
		length, err := cg.genExpression(n.Size, mt)
		if err != nil {
			return "", err
		}
		reg, err := cg.regs.allocate()
		if err != nil {
			return "", err
		}
		// bytes = 4*length + 4: one word for the count, one per element
		cg.ins("move $a0, %s", length)
		cg.ins("add $a0, $a0, $a0")
		cg.ins("add $a0, $a0, $a0")
		cg.ins("addi $a0, $a0, 4")
		cg.ins("li $v0, 9")
		cg.ins("syscall")
		cg.ins("move %s, $v0", reg)
		cg.ins("sw %s, 0(%s)", length, reg)
		cg.regs.free(length)
		return reg, nil

	case *ArithmeticOp:
		left, err := cg.genExpression(n.Left, mt)
		if err != nil {
			return "", err
		}
		right, err := cg.genExpression(n.Right, mt)
		if err != nil {
			return "", err
		}
		switch n.Op {
		case "+":
			cg.ins("add %s, %s, %s", left, left, right)
		case "-":
			cg.ins("sub %s, %s, %s", left, left, right)
		case "*":
			cg.ins("mul %s, %s, %s", left, left, right)
		default:
			return "", fmt.Errorf("%w: %q", ErrUnsupportedOperator, n.Op)
		}
		cg.regs.free(right)
		return left, nil

	case *RelationalOp:
		left, err := cg.genExpression(n.Left, mt)
		if err != nil {
			return "", err
		}
		right, err := cg.genExpression(n.Right, mt)
		if err != nil {
			return "", err
		}
		// every comparison lands a 0/1 value in left, branch-free
		switch n.Op {
		case "<":
			cg.ins("slt %s, %s, %s", left, left, right)
		case ">":
			cg.ins("slt %s, %s, %s", left, right, left)
		case "<=":
			cg.ins("slt %s, %s, %s", left, right, left)
			cg.ins("xori %s, %s, 1", left, left)
		case ">=":
			cg.ins("slt %s, %s, %s", left, left, right)
			cg.ins("xori %s, %s, 1", left, left)
		case "==":
			cg.ins("sub %s, %s, %s", left, left, right)
			cg.ins("sltiu %s, %s, 1", left, left)
		case "!=":
			cg.ins("sub %s, %s, %s", left, left, right)
			cg.ins("sltu %s, $zero, %s", left, left)
		default:
			return "", fmt.Errorf("%w: %q", ErrUnsupportedOperator, n.Op)
		}
		cg.regs.free(right)
		return left, nil

	case *LogicalOp:
		left, err := cg.genExpression(n.Left, mt)
		if err != nil {
			return "", err
		}
		right, err := cg.genExpression(n.Right, mt)
		if err != nil {
			return "", err
		}
		cg.ins("and %s, %s, %s", left, left, right)
		cg.regs.free(right)
		return left, nil

	case *ArrayAccess:
		base, err := cg.genExpression(n.Array, mt)
		if err != nil {
			return "", err
		}
		idx, err := cg.genExpression(n.Index, mt)
		if err != nil {
			return "", err
		}
		cg.ins("add %s, %s, %s", idx, idx, idx)
		cg.ins("add %s, %s, %s", idx, idx, idx)
		cg.ins("add %s, %s, %s", base, base, idx)
		cg.ins("lw %s, 4(%s)", base, base)
		cg.regs.free(idx)
		return base, nil

	case *ArrayLength:
		base, err := cg.genExpression(n.Array, mt)
		if err != nil {
			return "", err
		}
		cg.ins("lw %s, 0(%s)", base, base)
		return base, nil

	case *FieldAccess:
		targetType, err := cg.staticType(n.Target, mt)
		if err != nil {
			return "", err
		}
		entry, ok := cg.syms.Class(targetType)
		if !ok {
			return "", fmt.Errorf("%w: class %q", ErrUnknownClassOrMethod, targetType)
		}
		off, ok := entry.FieldOffset(n.FieldName)
		if !ok {
			return "", fmt.Errorf("%w: field %q in class %q", ErrUndeclaredVariable, n.FieldName, targetType)
		}
		reg, err := cg.genExpression(n.Target, mt)
		if err != nil {
			return "", err
		}
		cg.ins("lw %s, %d(%s)", reg, off, reg)
		return reg, nil

	case *MethodCall:
		return cg.genMethodCall(n, mt)

	default:
		return "", fmt.Errorf("%w: %T", ErrUnsupportedExpression, e)
	}
}

// genMethodCall emits a statically bound call. Arguments are evaluated and
// pushed right to left, so the first argument ends up at the lowest address
// and the callee sees argument i at 12+4i($fp).
func (cg *CodeGen) genMethodCall(call *MethodCall, mt *MethodTable) (string, error) {
	className, err := cg.receiverClass(call.Target, mt)
	if err != nil {
		return "", err
	}
	entry, ok := cg.syms.Class(className)
	if !ok {
		return "", fmt.Errorf("%w: class %q", ErrUnknownClassOrMethod, className)
	}
	if _, ok := entry.Method(call.MethodName); !ok {
		return "", fmt.Errorf("%w: method %q in class %q", ErrUnknownClassOrMethod, call.MethodName, className)
	}

	receiver, err := cg.genExpression(call.Target, mt)
	if err != nil {
		return "", err
	}
	for i := len(call.Arguments) - 1; i >= 0; i-- {
		arg, err := cg.genExpression(call.Arguments[i], mt)
		if err != nil {
			return "", err
		}
		cg.ins("addi $sp, $sp, -4")
		cg.ins("sw %s, 0($sp)", arg)
		cg.regs.free(arg)
	}
	cg.ins("move $a0, %s", receiver)
	cg.ins("jal %s_%s", className, call.MethodName)
	if n := len(call.Arguments); n > 0 {
		cg.ins("addi $sp, $sp, %d", 4*n)
	}
	cg.ins("move %s, $v0", receiver)
	return receiver, nil
}

// receiverClass resolves the compile-time class a call dispatches to.
func (cg *CodeGen) receiverClass(target Expression, mt *MethodTable) (string, error) {
	switch t := target.(type) {
	case *This:
		if mt.static {
			return "", ErrThisOutsideClass
		}
		return mt.CurrentClass, nil
	case *NewObject:
		return t.ClassName, nil
	default:
		return "", fmt.Errorf("%w: call receiver must be 'this' or 'new C()'", ErrUnknownClassOrMethod)
	}
}

// staticType is the generator's view of an expression's type. It trusts the
// analyzer and only resolves what addressing decisions need.
func (cg *CodeGen) staticType(e Expression, mt *MethodTable) (string, error) {
	switch n := e.(type) {
	case *NumberLit, *ArrayLength, *ArrayAccess, *ArithmeticOp:
		return "int", nil
	case *BooleanLit, *RelationalOp, *LogicalOp:
		return "boolean", nil
	case *NullLit:
		return "null", nil
	case *NewArray:
		return "int[]", nil
	case *Identifier:
		if t, ok := mt.Type(n.Name); ok {
			return t, nil
		}
		if entry, ok := cg.syms.Class(mt.CurrentClass); ok {
			if t, ok := entry.Field(n.Name); ok {
				return t, nil
			}
		}
		return "", fmt.Errorf("%w: %q", ErrUndeclaredVariable, n.Name)
	case *This:
		if mt.static {
			return "", ErrThisOutsideClass
		}
		return mt.CurrentClass, nil
	case *NewObject:
		return n.ClassName, nil
	case *FieldAccess:
		targetType, err := cg.staticType(n.Target, mt)
		if err != nil {
			return "", err
		}
		entry, ok := cg.syms.Class(targetType)
		if !ok {
			return "", fmt.Errorf("%w: class %q", ErrUnknownClassOrMethod, targetType)
		}
		t, ok := entry.Field(n.FieldName)
		if !ok {
			return "", fmt.Errorf("%w: field %q in class %q", ErrUndeclaredVariable, n.FieldName, targetType)
		}
		return t, nil
	case *MethodCall:
		className, err := cg.receiverClass(n.Target, mt)
		if err != nil {
			return "", err
		}
		entry, ok := cg.syms.Class(className)
		if !ok {
			return "", fmt.Errorf("%w: class %q", ErrUnknownClassOrMethod, className)
		}
		sig, ok := entry.Method(n.MethodName)
		if !ok {
			return "", fmt.Errorf("%w: method %q in class %q", ErrUnknownClassOrMethod, n.MethodName, className)
		}
		return sig.ReturnType, nil
	default:
		return "", fmt.Errorf("%w: %T", ErrUnsupportedExpression, e)
	}
}
