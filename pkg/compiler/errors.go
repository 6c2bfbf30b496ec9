package compiler

import "errors"

// Sentinel error classes for the semantic analyzer and the code generator.
// Concrete failures wrap one of these with fmt.Errorf("%w: ...") so callers
// and tests can classify them with errors.Is.
var (
	ErrDuplicateDeclaration  = errors.New("duplicate declaration")
	ErrUndeclaredVariable    = errors.New("undeclared variable")
	ErrTypeMismatch          = errors.New("type mismatch")
	ErrUnknownClassOrMethod  = errors.New("unknown class or method")
	ErrArityMismatch         = errors.New("argument count mismatch")
	ErrCyclicInheritance     = errors.New("cyclic inheritance")
	ErrUndefinedParent       = errors.New("undefined parent class")
	ErrIncompatibleOverride  = errors.New("incompatible method override")
	ErrThisOutsideClass      = errors.New("'this' used outside a class context")
	ErrUnsupportedOperator   = errors.New("unsupported operator")
	ErrRegisterExhausted     = errors.New("temporary register pool exhausted")
	ErrUnsupportedCommand    = errors.New("unsupported command")
	ErrUnsupportedExpression = errors.New("unsupported expression")
)
