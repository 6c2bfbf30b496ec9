package compiler

import (
	"fmt"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// wordSize is the machine word in bytes; every field, parameter, local and
// array element occupies one word.
const wordSize = 4

// ParamSig is one parameter of a method signature.
type ParamSig struct {
	Name string
	Type string
}

// MethodSignature is the callable surface of a method: parameters in
// declaration order plus the return type.
type MethodSignature struct {
	Parameters []ParamSig
	ReturnType string
}

// ClassEntry records one class: its fields and methods in declaration order
// and the name of its parent, if any. After inheritance resolution the entry
// also holds every inherited member that was not locally redeclared.
type ClassEntry struct {
	Name    string
	Extends string // empty when the class has no parent

	fieldOrder []string
	fields     map[string]string // name -> type

	methodOrder []string
	methods     map[string]*MethodSignature
}

func newClassEntry(name, extends string) *ClassEntry {
	return &ClassEntry{
		Name:    name,
		Extends: extends,
		fields:  make(map[string]string),
		methods: make(map[string]*MethodSignature),
	}
}

func (c *ClassEntry) AddField(name, fieldType string) error {
	if _, ok := c.fields[name]; ok {
		return fmt.Errorf("%w: field %q in class %q", ErrDuplicateDeclaration, name, c.Name)
	}
	c.fieldOrder = append(c.fieldOrder, name)
	c.fields[name] = fieldType
	return nil
}

func (c *ClassEntry) AddMethod(name string, sig *MethodSignature) error {
	if _, ok := c.methods[name]; ok {
		return fmt.Errorf("%w: method %q in class %q", ErrDuplicateDeclaration, name, c.Name)
	}
	c.methodOrder = append(c.methodOrder, name)
	c.methods[name] = sig
	return nil
}

// inheritFields merges the parent's fields that are not locally redeclared.
// Inherited fields come first in layout order, in parent declaration order,
// so a parent and child agree on the offsets of shared fields.
func (c *ClassEntry) inheritFields(parent *ClassEntry) {
	var merged []string
	for _, f := range parent.fieldOrder {
		if _, ok := c.fields[f]; !ok {
			merged = append(merged, f)
			c.fields[f] = parent.fields[f]
		}
	}
	c.fieldOrder = append(merged, c.fieldOrder...)
}

// inheritMethod adopts a parent method unless the child redeclares it.
func (c *ClassEntry) inheritMethod(name string, sig *MethodSignature) {
	if _, ok := c.methods[name]; !ok {
		c.methodOrder = append(c.methodOrder, name)
		c.methods[name] = sig
	}
}

func (c *ClassEntry) Field(name string) (string, bool) {
	t, ok := c.fields[name]
	return t, ok
}

func (c *ClassEntry) Method(name string) (*MethodSignature, bool) {
	m, ok := c.methods[name]
	return m, ok
}

// FieldNames returns the field names in layout order: inherited fields
// first, then locally declared ones.
func (c *ClassEntry) FieldNames() []string {
	return c.fieldOrder
}

// MethodNames returns locally declared plus inherited method names.
func (c *ClassEntry) MethodNames() []string {
	return c.methodOrder
}

// FieldOffset returns the byte offset of a field inside an object of this
// class, walking the merged layout order.
func (c *ClassEntry) FieldOffset(name string) (int, bool) {
	for i, f := range c.fieldOrder {
		if f == name {
			return i * wordSize, true
		}
	}
	return 0, false
}

// ObjectSize is the heap footprint of an instance: one word per field
// (inherited included), minimum one word.
func (c *ClassEntry) ObjectSize() int {
	size := len(c.fieldOrder) * wordSize
	if size < wordSize {
		size = wordSize
	}
	return size
}

// SymbolTable maps class names to their entries. It is built by the
// semantic analyzer's declaration pass and read, never mutated, by the code
// generator.
type SymbolTable struct {
	classes map[string]*ClassEntry
	order   []string // declaration order
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{classes: make(map[string]*ClassEntry)}
}

// AddClass registers a class entry. No two classes may share a name.
func (s *SymbolTable) AddClass(name, extends string) (*ClassEntry, error) {
	if _, ok := s.classes[name]; ok {
		return nil, fmt.Errorf("%w: class %q", ErrDuplicateDeclaration, name)
	}
	entry := newClassEntry(name, extends)
	s.classes[name] = entry
	s.order = append(s.order, name)
	return entry, nil
}

func (s *SymbolTable) Class(name string) (*ClassEntry, bool) {
	c, ok := s.classes[name]
	return c, ok
}

// ClassNames returns the classes in declaration order.
func (s *SymbolTable) ClassNames() []string {
	return s.order
}

// String returns a deterministically ordered dump of the table.
func (s *SymbolTable) String() string {
	var sb strings.Builder
	names := maps.Keys(s.classes)
	slices.Sort(names)
	for _, name := range names {
		c := s.classes[name]
		if c.Extends != "" {
			fmt.Fprintf(&sb, "class %s extends %s\n", c.Name, c.Extends)
		} else {
			fmt.Fprintf(&sb, "class %s\n", c.Name)
		}
		for _, f := range c.fieldOrder {
			fmt.Fprintf(&sb, "  field  %-16s %s\n", f, c.fields[f])
		}
		for _, m := range c.methodOrder {
			sig := c.methods[m]
			params := make([]string, len(sig.Parameters))
			for i, p := range sig.Parameters {
				params[i] = p.Type + " " + p.Name
			}
			fmt.Fprintf(&sb, "  method %-16s (%s) %s\n", m, strings.Join(params, ", "), sig.ReturnType)
		}
	}
	return sb.String()
}

// MethodTable maps parameter and local-variable names to their types and,
// during code generation, to their storage (a frame offset from $fp).
type MethodTable struct {
	CurrentClass string
	MethodName   string

	// static marks the program entry point, where 'this' has no value.
	static bool

	order   []string
	types   map[string]string
	offsets map[string]int
}

func newMethodTable(currentClass, methodName string) *MethodTable {
	return &MethodTable{
		CurrentClass: currentClass,
		MethodName:   methodName,
		types:        make(map[string]string),
		offsets:      make(map[string]int),
	}
}

// Define records a parameter or local. A local shadowing a parameter or an
// earlier local is a duplicate declaration.
func (m *MethodTable) Define(name, varType string) error {
	if _, ok := m.types[name]; ok {
		return fmt.Errorf("%w: variable %q in method %q", ErrDuplicateDeclaration, name, m.MethodName)
	}
	m.order = append(m.order, name)
	m.types[name] = varType
	return nil
}

func (m *MethodTable) Type(name string) (string, bool) {
	t, ok := m.types[name]
	return t, ok
}

func (m *MethodTable) setOffset(name string, offset int) {
	m.offsets[name] = offset
}

// Offset returns the frame offset of a parameter or local relative to $fp.
func (m *MethodTable) Offset(name string) (int, bool) {
	off, ok := m.offsets[name]
	return off, ok
}
