package compiler

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

// Analyzer validates a parsed Program in two passes. Pass one collects every
// class, field, and method declaration without looking at method bodies, so
// forward references resolve. Inheritance is then resolved on the fully
// populated table. Pass two builds a MethodTable per method and type-checks
// every command and expression, folding constant subtrees in place.
type Analyzer struct {
	program  *Program
	syms     *SymbolTable
	resolved map[string]bool
}

// Analyze runs both passes and returns the class symbol table. The first
// error aborts the whole unit.
func Analyze(program *Program) (*SymbolTable, error) {
	a := &Analyzer{
		program:  program,
		syms:     NewSymbolTable(),
		resolved: make(map[string]bool),
	}
	if err := a.collectDeclarations(); err != nil {
		return nil, err
	}
	log.Debugf("symbol table after declaration pass:\n%s", a.syms)

	if err := a.resolveInheritance(); err != nil {
		return nil, err
	}
	if err := a.validateProgram(); err != nil {
		return nil, err
	}
	return a.syms, nil
}

// collectDeclarations is pass one.
func (a *Analyzer) collectDeclarations() error {
	if _, err := a.syms.AddClass(a.program.Main.ClassName, ""); err != nil {
		return err
	}
	for _, class := range a.program.Classes {
		entry, err := a.syms.AddClass(class.Name, class.Parent)
		if err != nil {
			return err
		}
		for _, field := range class.Fields {
			if err := entry.AddField(field.Name, field.VarType); err != nil {
				return err
			}
		}
		for _, method := range class.Methods {
			sig := &MethodSignature{ReturnType: method.ReturnType}
			for _, p := range method.Parameters {
				sig.Parameters = append(sig.Parameters, ParamSig{Name: p.Name, Type: p.ParamType})
			}
			if err := entry.AddMethod(method.Name, sig); err != nil {
				return err
			}
		}
	}
	return nil
}

func (a *Analyzer) resolveInheritance() error {
	for _, name := range a.syms.ClassNames() {
		log.Debugf("resolving inheritance for class %q", name)
		if err := a.resolveClass(name, map[string]bool{}); err != nil {
			return err
		}
	}
	return nil
}

// resolveClass walks the extends chain with a visited set. Each class is
// merged with its parent exactly once; recursion depth is bounded by the
// number of classes because a revisit stops as a cycle.
func (a *Analyzer) resolveClass(name string, visited map[string]bool) error {
	if a.resolved[name] {
		return nil
	}
	if visited[name] {
		return fmt.Errorf("%w: class %q", ErrCyclicInheritance, name)
	}
	visited[name] = true

	entry, ok := a.syms.Class(name)
	if !ok {
		return fmt.Errorf("%w: class %q", ErrUnknownClassOrMethod, name)
	}
	if entry.Extends != "" {
		parent, ok := a.syms.Class(entry.Extends)
		if !ok {
			return fmt.Errorf("%w: class %q, extended by %q", ErrUndefinedParent, entry.Extends, name)
		}
		if err := a.resolveClass(entry.Extends, visited); err != nil {
			return err
		}
		entry.inheritFields(parent)
		for _, m := range parent.MethodNames() {
			parentSig, _ := parent.Method(m)
			if childSig, redeclared := entry.Method(m); redeclared {
				if err := checkOverride(name, m, parentSig, childSig); err != nil {
					return err
				}
			} else {
				entry.inheritMethod(m, parentSig)
			}
		}
	}
	a.resolved[name] = true
	return nil
}

// checkOverride requires an overriding method to keep the parent's return
// type and parameter type sequence. Parameter names are free to differ.
func checkOverride(className, methodName string, parent, child *MethodSignature) error {
	if parent.ReturnType != child.ReturnType {
		return fmt.Errorf("%w: method %q in class %q changes return type from %q to %q",
			ErrIncompatibleOverride, methodName, className, parent.ReturnType, child.ReturnType)
	}
	if len(parent.Parameters) != len(child.Parameters) {
		return fmt.Errorf("%w: method %q in class %q changes parameter count from %d to %d",
			ErrIncompatibleOverride, methodName, className, len(parent.Parameters), len(child.Parameters))
	}
	for i := range parent.Parameters {
		if parent.Parameters[i].Type != child.Parameters[i].Type {
			return fmt.Errorf("%w: method %q in class %q changes parameter %d from %q to %q",
				ErrIncompatibleOverride, methodName, className, i+1,
				parent.Parameters[i].Type, child.Parameters[i].Type)
		}
	}
	return nil
}

// validateProgram is pass two.
func (a *Analyzer) validateProgram() error {
	mainTable := newMethodTable(a.program.Main.ClassName, "main")
	mainTable.static = true
	for _, cmd := range a.program.Main.Commands {
		if err := a.checkCommand(cmd, mainTable); err != nil {
			return err
		}
	}
	for _, class := range a.program.Classes {
		for _, method := range class.Methods {
			if err := a.validateMethod(class.Name, method); err != nil {
				return err
			}
		}
	}
	return nil
}

func (a *Analyzer) validateMethod(className string, method *Method) error {
	mt := newMethodTable(className, method.Name)
	for _, p := range method.Parameters {
		if err := mt.Define(p.Name, p.ParamType); err != nil {
			return err
		}
	}
	for _, v := range method.LocalVariables {
		if err := mt.Define(v.Name, v.VarType); err != nil {
			return err
		}
	}
	for _, cmd := range method.Commands {
		if err := a.checkCommand(cmd, mt); err != nil {
			return err
		}
	}

	method.ReturnExpression = foldExpression(method.ReturnExpression)
	returnType, err := a.expressionType(method.ReturnExpression, mt)
	if err != nil {
		return err
	}
	if returnType != method.ReturnType {
		return fmt.Errorf("%w: method %q returns %q, declared %q",
			ErrTypeMismatch, method.Name, returnType, method.ReturnType)
	}
	return nil
}

func (a *Analyzer) checkCommand(cmd Command, mt *MethodTable) error {
	switch n := cmd.(type) {
	case *Block:
		for _, c := range n.Commands {
			if err := a.checkCommand(c, mt); err != nil {
				return err
			}
		}
		return nil

	case *Assignment:
		declared, err := a.variableType(n.Target, mt)
		if err != nil {
			return err
		}
		n.Value = foldExpression(n.Value)
		valueType, err := a.expressionType(n.Value, mt)
		if err != nil {
			return err
		}
		if !assignable(declared, valueType) {
			return fmt.Errorf("%w: cannot assign %q to %q %q",
				ErrTypeMismatch, valueType, declared, n.Target)
		}
		return nil

	case *ArrayAssignment:
		declared, err := a.variableType(n.Target, mt)
		if err != nil {
			return err
		}
		if declared != "int[]" {
			return fmt.Errorf("%w: %q is %q, not an array", ErrTypeMismatch, n.Target, declared)
		}
		n.Index = foldExpression(n.Index)
		n.Value = foldExpression(n.Value)
		if err := a.requireType(n.Index, mt, "int", "array index"); err != nil {
			return err
		}
		return a.requireType(n.Value, mt, "int", "array element")

	case *Print:
		n.Expression = foldExpression(n.Expression)
		t, err := a.expressionType(n.Expression, mt)
		if err != nil {
			return err
		}
		if t != "int" && t != "boolean" {
			return fmt.Errorf("%w: cannot print value of type %q", ErrTypeMismatch, t)
		}
		return nil

	case *If:
		n.Condition = foldExpression(n.Condition)
		if err := a.requireType(n.Condition, mt, "boolean", "if condition"); err != nil {
			return err
		}
		if err := a.checkCommand(n.Then, mt); err != nil {
			return err
		}
		if n.Else != nil {
			return a.checkCommand(n.Else, mt)
		}
		return nil

	case *While:
		n.Condition = foldExpression(n.Condition)
		if err := a.requireType(n.Condition, mt, "boolean", "while condition"); err != nil {
			return err
		}
		return a.checkCommand(n.Body, mt)

	case *Return:
		n.Value = foldExpression(n.Value)
		_, err := a.expressionType(n.Value, mt)
		return err

	case *ExpressionStatement:
		n.Expression = foldExpression(n.Expression)
		call, ok := n.Expression.(*MethodCall)
		if !ok {
			return fmt.Errorf("%w: only method calls may stand as commands", ErrUnsupportedCommand)
		}
		_, err := a.validateMethodCall(call, mt)
		return err

	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedCommand, cmd)
	}
}

// requireType checks an expression against an expected type.
func (a *Analyzer) requireType(e Expression, mt *MethodTable, want, context string) error {
	got, err := a.expressionType(e, mt)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("%w: %s is %q, expected %q", ErrTypeMismatch, context, got, want)
	}
	return nil
}

// variableType resolves a bare name against the method table, then the
// current class's fields (inherited included).
func (a *Analyzer) variableType(name string, mt *MethodTable) (string, error) {
	if t, ok := mt.Type(name); ok {
		return t, nil
	}
	if entry, ok := a.syms.Class(mt.CurrentClass); ok {
		if t, ok := entry.Field(name); ok {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUndeclaredVariable, name)
}

// expressionType computes the type of an expression, validating it along
// the way. The current class is always threaded through the method table.
func (a *Analyzer) expressionType(e Expression, mt *MethodTable) (string, error) {
	switch n := e.(type) {
	case *NumberLit:
		return "int", nil
	case *BooleanLit:
		return "boolean", nil
	case *NullLit:
		return "null", nil

	case *Identifier:
		return a.variableType(n.Name, mt)

	case *This:
		if mt.static {
			return "", ErrThisOutsideClass
		}
		return mt.CurrentClass, nil

	case *NewObject:
		if _, ok := a.syms.Class(n.ClassName); !ok {
			return "", fmt.Errorf("%w: class %q", ErrUnknownClassOrMethod, n.ClassName)
		}
		return n.ClassName, nil

	case *NewArray:
		if err := a.requireType(n.Size, mt, "int", "array size"); err != nil {
			return "", err
		}
		return "int[]", nil

	case *ArithmeticOp:
		switch n.Op {
		case "+", "-", "*":
		default:
			return "", fmt.Errorf("%w: %q", ErrUnsupportedOperator, n.Op)
		}
		if err := a.requireType(n.Left, mt, "int", "operand of "+n.Op); err != nil {
			return "", err
		}
		if err := a.requireType(n.Right, mt, "int", "operand of "+n.Op); err != nil {
			return "", err
		}
		return "int", nil

	case *RelationalOp:
		if !relationalOps[n.Op] {
			return "", fmt.Errorf("%w: %q", ErrUnsupportedOperator, n.Op)
		}
		if err := a.requireType(n.Left, mt, "int", "operand of "+n.Op); err != nil {
			return "", err
		}
		if err := a.requireType(n.Right, mt, "int", "operand of "+n.Op); err != nil {
			return "", err
		}
		return "boolean", nil

	case *LogicalOp:
		if err := a.requireType(n.Left, mt, "boolean", "operand of &&"); err != nil {
			return "", err
		}
		if err := a.requireType(n.Right, mt, "boolean", "operand of &&"); err != nil {
			return "", err
		}
		return "boolean", nil

	case *ArrayAccess:
		if err := a.requireType(n.Array, mt, "int[]", "indexed value"); err != nil {
			return "", err
		}
		if err := a.requireType(n.Index, mt, "int", "array index"); err != nil {
			return "", err
		}
		return "int", nil

	case *ArrayLength:
		if err := a.requireType(n.Array, mt, "int[]", ".length receiver"); err != nil {
			return "", err
		}
		return "int", nil

	case *FieldAccess:
		targetType, err := a.expressionType(n.Target, mt)
		if err != nil {
			return "", err
		}
		entry, ok := a.syms.Class(targetType)
		if !ok {
			return "", fmt.Errorf("%w: field access on non-class type %q", ErrTypeMismatch, targetType)
		}
		fieldType, ok := entry.Field(n.FieldName)
		if !ok {
			return "", fmt.Errorf("%w: field %q in class %q", ErrUndeclaredVariable, n.FieldName, targetType)
		}
		return fieldType, nil

	case *MethodCall:
		return a.validateMethodCall(n, mt)

	default:
		return "", fmt.Errorf("%w: %T", ErrUnsupportedExpression, e)
	}
}

// staticReceiverClass resolves the compile-time class of a call receiver.
// Dispatch is static: only `this` and `new C()` receivers are supported.
func (a *Analyzer) staticReceiverClass(target Expression, mt *MethodTable) (string, error) {
	switch n := target.(type) {
	case *This:
		if mt.static {
			return "", ErrThisOutsideClass
		}
		return mt.CurrentClass, nil
	case *NewObject:
		return n.ClassName, nil
	default:
		return "", fmt.Errorf("%w: call receiver must be 'this' or 'new C()', got %s",
			ErrUnknownClassOrMethod, target)
	}
}

// validateMethodCall checks receiver, method existence, arity, and argument
// types, and returns the call's type.
func (a *Analyzer) validateMethodCall(call *MethodCall, mt *MethodTable) (string, error) {
	className, err := a.staticReceiverClass(call.Target, mt)
	if err != nil {
		return "", err
	}
	entry, ok := a.syms.Class(className)
	if !ok {
		return "", fmt.Errorf("%w: class %q", ErrUnknownClassOrMethod, className)
	}
	sig, ok := entry.Method(call.MethodName)
	if !ok {
		return "", fmt.Errorf("%w: method %q in class %q", ErrUnknownClassOrMethod, call.MethodName, className)
	}
	if len(call.Arguments) != len(sig.Parameters) {
		return "", fmt.Errorf("%w: method %q expects %d arguments, got %d",
			ErrArityMismatch, call.MethodName, len(sig.Parameters), len(call.Arguments))
	}
	for i, arg := range call.Arguments {
		argType, err := a.expressionType(arg, mt)
		if err != nil {
			return "", err
		}
		if !assignable(sig.Parameters[i].Type, argType) {
			return "", fmt.Errorf("%w: argument %d of %q is %q, expected %q",
				ErrTypeMismatch, i+1, call.MethodName, argType, sig.Parameters[i].Type)
		}
	}
	return sig.ReturnType, nil
}

// assignable reports whether a value of the actual type may flow into a
// target of the declared type. null fits any reference type.
func assignable(declared, actual string) bool {
	if declared == actual {
		return true
	}
	return actual == "null" && declared != "int" && declared != "boolean"
}

// foldExpression rewrites constant subtrees bottom-up: an operator whose
// operands folded to literals becomes a literal itself.
func foldExpression(e Expression) Expression {
	switch n := e.(type) {
	case *ArithmeticOp:
		n.Left = foldExpression(n.Left)
		n.Right = foldExpression(n.Right)
		l, lok := n.Left.(*NumberLit)
		r, rok := n.Right.(*NumberLit)
		if lok && rok {
			switch n.Op {
			case "+":
				return &NumberLit{Value: l.Value + r.Value}
			case "-":
				return &NumberLit{Value: l.Value - r.Value}
			case "*":
				return &NumberLit{Value: l.Value * r.Value}
			}
		}
		return n

	case *RelationalOp:
		n.Left = foldExpression(n.Left)
		n.Right = foldExpression(n.Right)
		l, lok := n.Left.(*NumberLit)
		r, rok := n.Right.(*NumberLit)
		if lok && rok {
			switch n.Op {
			case "<":
				return &BooleanLit{Value: l.Value < r.Value}
			case "<=":
				return &BooleanLit{Value: l.Value <= r.Value}
			case ">":
				return &BooleanLit{Value: l.Value > r.Value}
			case ">=":
				return &BooleanLit{Value: l.Value >= r.Value}
			case "==":
				return &BooleanLit{Value: l.Value == r.Value}
			case "!=":
				return &BooleanLit{Value: l.Value != r.Value}
			}
		}
		return n

	case *LogicalOp:
		n.Left = foldExpression(n.Left)
		n.Right = foldExpression(n.Right)
		l, lok := n.Left.(*BooleanLit)
		r, rok := n.Right.(*BooleanLit)
		if lok && rok {
			return &BooleanLit{Value: l.Value && r.Value}
		}
		return n

	case *MethodCall:
		n.Target = foldExpression(n.Target)
		for i := range n.Arguments {
			n.Arguments[i] = foldExpression(n.Arguments[i])
		}
		return n

	case *NewArray:
		n.Size = foldExpression(n.Size)
		return n

	case *ArrayAccess:
		n.Array = foldExpression(n.Array)
		n.Index = foldExpression(n.Index)
		return n

	case *ArrayLength:
		n.Array = foldExpression(n.Array)
		return n

	case *FieldAccess:
		n.Target = foldExpression(n.Target)
		return n

	default:
		return e
	}
}
