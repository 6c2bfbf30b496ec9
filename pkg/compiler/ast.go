package compiler

import (
	"fmt"
	"strings"
)

// Expression nodes

// Expression is implemented by every node that produces a value.
// String renders the node back to source form; re-parsing the rendered text
// of any tree yields a structurally identical tree.
type Expression interface {
	exprNode()
	String() string
}

// NumberLit is a compile-time integer constant.
type NumberLit struct {
	Value int
}

func (*NumberLit) exprNode()        {}
func (n *NumberLit) String() string { return fmt.Sprintf("%d", n.Value) }

// BooleanLit is "true" or "false".
type BooleanLit struct {
	Value bool
}

func (*BooleanLit) exprNode() {}
func (b *BooleanLit) String() string {
	if b.Value {
		return "true"
	}
	return "false"
}

// NullLit is the "null" literal.
type NullLit struct{}

func (*NullLit) exprNode()      {}
func (*NullLit) String() string { return "null" }

// Identifier is a read of a named variable (local, parameter, or field).
type Identifier struct {
	Name string
}

func (*Identifier) exprNode()        {}
func (i *Identifier) String() string { return i.Name }

// This is the receiver of the enclosing method.
type This struct{}

func (*This) exprNode()      {}
func (*This) String() string { return "this" }

// NewObject represents new C().
type NewObject struct {
	ClassName string
}

func (*NewObject) exprNode()        {}
func (n *NewObject) String() string { return fmt.Sprintf("new %s()", n.ClassName) }

// NewArray represents new int[size].
type NewArray struct {
	ElementType string // always "int"
	Size        Expression
}

func (*NewArray) exprNode() {}
func (n *NewArray) String() string {
	return fmt.Sprintf("new %s[%s]", n.ElementType, n.Size)
}

// ArithmeticOp represents Left Op Right with Op in {+, -, *}.
type ArithmeticOp struct {
	Op    string
	Left  Expression
	Right Expression
}

func (*ArithmeticOp) exprNode() {}
func (a *ArithmeticOp) String() string {
	return fmt.Sprintf("(%s %s %s)", a.Left, a.Op, a.Right)
}

// RelationalOp represents Left Op Right with Op in {<, <=, >, >=, ==, !=}.
type RelationalOp struct {
	Op    string
	Left  Expression
	Right Expression
}

func (*RelationalOp) exprNode() {}
func (r *RelationalOp) String() string {
	return fmt.Sprintf("(%s %s %s)", r.Left, r.Op, r.Right)
}

// LogicalOp represents Left && Right.
type LogicalOp struct {
	Op    string // always "&&"
	Left  Expression
	Right Expression
}

func (*LogicalOp) exprNode() {}
func (l *LogicalOp) String() string {
	return fmt.Sprintf("(%s %s %s)", l.Left, l.Op, l.Right)
}

// FieldAccess represents Target.FieldName.
type FieldAccess struct {
	Target    Expression
	FieldName string
}

func (*FieldAccess) exprNode() {}
func (f *FieldAccess) String() string {
	return fmt.Sprintf("%s.%s", f.Target, f.FieldName)
}

// MethodCall represents Target.MethodName(Arguments...).
type MethodCall struct {
	Target     Expression
	MethodName string
	Arguments  []Expression
}

func (*MethodCall) exprNode() {}
func (m *MethodCall) String() string {
	args := make([]string, len(m.Arguments))
	for i, a := range m.Arguments {
		args[i] = a.String()
	}
	return fmt.Sprintf("%s.%s(%s)", m.Target, m.MethodName, strings.Join(args, ", "))
}

// ArrayAccess represents Array[Index].
type ArrayAccess struct {
	Array Expression
	Index Expression
}

func (*ArrayAccess) exprNode() {}
func (a *ArrayAccess) String() string {
	return fmt.Sprintf("%s[%s]", a.Array, a.Index)
}

// ArrayLength represents Array.length.
type ArrayLength struct {
	Array Expression
}

func (*ArrayLength) exprNode()        {}
func (a *ArrayLength) String() string { return fmt.Sprintf("%s.length", a.Array) }

// Command nodes

// Command is implemented by every statement-level node.
type Command interface {
	cmdNode()
	String() string
}

// Block represents { commands... }.
type Block struct {
	Commands []Command
}

func (*Block) cmdNode() {}
func (b *Block) String() string {
	var sb strings.Builder
	sb.WriteString("{\n")
	for _, c := range b.Commands {
		sb.WriteString(c.String())
		sb.WriteString("\n")
	}
	sb.WriteString("}")
	return sb.String()
}

// Assignment represents Target = Value;.
type Assignment struct {
	Target string
	Value  Expression
}

func (*Assignment) cmdNode() {}
func (a *Assignment) String() string {
	return fmt.Sprintf("%s = %s;", a.Target, a.Value)
}

// ArrayAssignment represents Target[Index] = Value;.
type ArrayAssignment struct {
	Target string
	Index  Expression
	Value  Expression
}

func (*ArrayAssignment) cmdNode() {}
func (a *ArrayAssignment) String() string {
	return fmt.Sprintf("%s[%s] = %s;", a.Target, a.Index, a.Value)
}

// Print represents System.out.println(expression);.
type Print struct {
	Expression Expression
}

func (*Print) cmdNode() {}
func (p *Print) String() string {
	return fmt.Sprintf("System.out.println(%s);", p.Expression)
}

// If represents if (cond) cmd [else cmd].
type If struct {
	Condition Expression
	Then      Command
	Else      Command // may be nil
}

func (*If) cmdNode() {}
func (i *If) String() string {
	if i.Else != nil {
		return fmt.Sprintf("if (%s) %s else %s", i.Condition, i.Then, i.Else)
	}
	return fmt.Sprintf("if (%s) %s", i.Condition, i.Then)
}

// While represents while (cond) body.
type While struct {
	Condition Expression
	Body      Command
}

func (*While) cmdNode() {}
func (w *While) String() string {
	return fmt.Sprintf("while (%s) %s", w.Condition, w.Body)
}

// Return represents return value;. The parser only produces it as a method's
// trailing return, but it is a first-class command for the analyzer and the
// code generator.
type Return struct {
	Value Expression
}

func (*Return) cmdNode()         {}
func (r *Return) String() string { return fmt.Sprintf("return %s;", r.Value) }

// ExpressionStatement is a method call evaluated for its side effects.
type ExpressionStatement struct {
	Expression Expression
}

func (*ExpressionStatement) cmdNode() {}
func (e *ExpressionStatement) String() string {
	return fmt.Sprintf("%s;", e.Expression)
}

// Declaration nodes

// Variable represents VarType Name; (a field or a method local).
type Variable struct {
	VarType string
	Name    string
}

func (v *Variable) String() string { return fmt.Sprintf("%s %s;", v.VarType, v.Name) }

// Parameter represents ParamType Name in a method signature.
type Parameter struct {
	ParamType string
	Name      string
}

func (p *Parameter) String() string { return fmt.Sprintf("%s %s", p.ParamType, p.Name) }

// Method represents public ReturnType Name(Parameters) { ... return Expr; }.
type Method struct {
	ReturnType       string
	Name             string
	Parameters       []*Parameter
	LocalVariables   []*Variable
	Commands         []Command
	ReturnExpression Expression
}

func (m *Method) String() string {
	params := make([]string, len(m.Parameters))
	for i, p := range m.Parameters {
		params[i] = p.String()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "public %s %s(%s) {\n", m.ReturnType, m.Name, strings.Join(params, ", "))
	for _, v := range m.LocalVariables {
		sb.WriteString(v.String())
		sb.WriteString("\n")
	}
	for _, c := range m.Commands {
		sb.WriteString(c.String())
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "return %s;\n}", m.ReturnExpression)
	return sb.String()
}

// Class represents class Name [extends Parent] { fields methods }.
type Class struct {
	Name    string
	Parent  string // empty when the class has no extends clause
	Fields  []*Variable
	Methods []*Method
}

func (c *Class) String() string {
	var sb strings.Builder
	if c.Parent != "" {
		fmt.Fprintf(&sb, "class %s extends %s {\n", c.Name, c.Parent)
	} else {
		fmt.Fprintf(&sb, "class %s {\n", c.Name)
	}
	for _, f := range c.Fields {
		sb.WriteString(f.String())
		sb.WriteString("\n")
	}
	for _, m := range c.Methods {
		sb.WriteString(m.String())
		sb.WriteString("\n")
	}
	sb.WriteString("}")
	return sb.String()
}

// MainClass represents the program entry class.
type MainClass struct {
	ClassName string
	ArgName   string
	Commands  []Command
}

func (m *MainClass) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "class %s {\npublic static void main(String[] %s) {\n", m.ClassName, m.ArgName)
	for _, c := range m.Commands {
		sb.WriteString(c.String())
		sb.WriteString("\n")
	}
	sb.WriteString("}\n}")
	return sb.String()
}

// Program is the root of the tree: one main class and zero or more classes.
type Program struct {
	Main    *MainClass
	Classes []*Class
}

func (p *Program) String() string {
	var sb strings.Builder
	sb.WriteString(p.Main.String())
	for _, c := range p.Classes {
		sb.WriteString("\n")
		sb.WriteString(c.String())
	}
	return sb.String()
}
