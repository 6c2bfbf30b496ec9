package compiler

import (
	"fmt"
	"strconv"
)

// Parser consumes the flat token slice produced by the Lexer and builds an
// AST by recursive descent, one function per grammar nonterminal.
//
// Grammar:
//
//	Program   -> MainClass Class*
//	MainClass -> 'class' id '{' 'public' 'static' 'void' 'main' '(' 'String' '[' ']' id ')' '{' Command* '}' '}'
//	Class     -> 'class' id ('extends' id)? '{' Variable* Method* '}'
//	Method    -> 'public' Type id '(' Params? ')' '{' Variable* Command* 'return' Expr ';' '}'
//	Command   -> Block | Assignment | ArrayAssignment | Print | If | While | ExprStatement
//	Expr      -> RExpr ('&&' RExpr)*
//	RExpr     -> AExpr (('<'|'<='|'>'|'>='|'=='|'!=') AExpr)*
//	AExpr     -> MExpr (('+'|'-') MExpr)*
//	MExpr     -> SExpr ('*' SExpr)*
//	SExpr     -> literal | 'new' 'int' '[' Expr ']' | PExpr
//	PExpr     -> (id | 'this' | 'new' id '(' ')' | '(' Expr ')') ( '.' id ('(' Exprs? ')')? | '.' 'length' | '[' Expr ']' )*
//
// Precedence is encoded by the grammar layering; every binary operator
// associates left via iterative folding in its layer. The first mismatch
// aborts the whole unit, there is no recovery.
type Parser struct {
	tokens []Token
	pos    int
}

// ParseError reports the first expected-vs-actual token mismatch.
type ParseError struct {
	ExpectedKind   TokenKind
	ExpectedLexeme string // empty when any lexeme of the kind was acceptable
	Actual         Token
	AtEOF          bool
}

func (e *ParseError) Error() string {
	want := e.ExpectedKind.String()
	if e.ExpectedLexeme != "" {
		want = fmt.Sprintf("%s %q", e.ExpectedKind, e.ExpectedLexeme)
	}
	if e.AtEOF {
		return fmt.Sprintf("unexpected end of input, expected %s", want)
	}
	return fmt.Sprintf("expected %s, but got %s %q (line %d)",
		want, e.Actual.Kind, e.Actual.Lexeme, e.Actual.Line)
}

func NewParser(tokens []Token) *Parser {
	return &Parser{tokens: tokens}
}

// ParseProgram parses the whole token list into a Program.
func ParseProgram(tokens []Token) (*Program, error) {
	return NewParser(tokens).parseProgram()
}

// peek returns the current token without consuming it.
func (p *Parser) peek() Token {
	if p.pos >= len(p.tokens) {
		return Token{Kind: EOF}
	}
	return p.tokens[p.pos]
}

// peekNext returns the token immediately after the current one.
func (p *Parser) peekNext() Token {
	if p.pos+1 >= len(p.tokens) {
		return Token{Kind: EOF}
	}
	return p.tokens[p.pos+1]
}

// atEnd reports whether all tokens have been consumed.
func (p *Parser) atEnd() bool {
	return p.pos >= len(p.tokens)
}

// consume checks the current token against the expected kind and, when
// lexeme is non-empty, the expected lexeme, then consumes it.
func (p *Parser) consume(kind TokenKind, lexeme string) (Token, error) {
	if p.atEnd() {
		return Token{}, &ParseError{ExpectedKind: kind, ExpectedLexeme: lexeme, AtEOF: true}
	}
	tok := p.tokens[p.pos]
	if tok.Kind != kind || (lexeme != "" && tok.Lexeme != lexeme) {
		return Token{}, &ParseError{ExpectedKind: kind, ExpectedLexeme: lexeme, Actual: tok}
	}
	p.pos++
	return tok, nil
}

func (p *Parser) parseProgram() (*Program, error) {
	main, err := p.parseMainClass()
	if err != nil {
		return nil, err
	}
	var classes []*Class
	for !p.atEnd() {
		c, err := p.parseClass()
		if err != nil {
			return nil, err
		}
		classes = append(classes, c)
	}
	return &Program{Main: main, Classes: classes}, nil
}

func (p *Parser) parseMainClass() (*MainClass, error) {
	if _, err := p.consume(RESERVED, "class"); err != nil {
		return nil, err
	}
	name, err := p.consume(IDENTIFIER, "")
	if err != nil {
		return nil, err
	}
	for _, fixed := range []struct {
		kind   TokenKind
		lexeme string
	}{
		{PUNCTUATION, "{"},
		{RESERVED, "public"},
		{RESERVED, "static"},
		{RESERVED, "void"},
		{RESERVED, "main"},
		{PUNCTUATION, "("},
		{RESERVED, "String"},
		{PUNCTUATION, "["},
		{PUNCTUATION, "]"},
	} {
		if _, err := p.consume(fixed.kind, fixed.lexeme); err != nil {
			return nil, err
		}
	}
	arg, err := p.consume(IDENTIFIER, "")
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(PUNCTUATION, ")"); err != nil {
		return nil, err
	}
	if _, err := p.consume(PUNCTUATION, "{"); err != nil {
		return nil, err
	}
	commands, err := p.parseCommands()
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(PUNCTUATION, "}"); err != nil {
		return nil, err
	}
	if _, err := p.consume(PUNCTUATION, "}"); err != nil {
		return nil, err
	}
	return &MainClass{ClassName: name.Lexeme, ArgName: arg.Lexeme, Commands: commands}, nil
}

func (p *Parser) parseClass() (*Class, error) {
	if _, err := p.consume(RESERVED, "class"); err != nil {
		return nil, err
	}
	name, err := p.consume(IDENTIFIER, "")
	if err != nil {
		return nil, err
	}
	parent := ""
	if p.peek().Lexeme == "extends" {
		p.pos++
		parentTok, err := p.consume(IDENTIFIER, "")
		if err != nil {
			return nil, err
		}
		parent = parentTok.Lexeme
	}
	if _, err := p.consume(PUNCTUATION, "{"); err != nil {
		return nil, err
	}
	var fields []*Variable
	var methods []*Method
	for !p.atEnd() && p.peek().Lexeme != "}" {
		if p.peek().Lexeme == "public" {
			m, err := p.parseMethod()
			if err != nil {
				return nil, err
			}
			methods = append(methods, m)
		} else {
			v, err := p.parseVariable()
			if err != nil {
				return nil, err
			}
			fields = append(fields, v)
		}
	}
	if _, err := p.consume(PUNCTUATION, "}"); err != nil {
		return nil, err
	}
	return &Class{Name: name.Lexeme, Parent: parent, Fields: fields, Methods: methods}, nil
}

// parseType accepts int, int[], boolean, or a class name.
func (p *Parser) parseType() (string, error) {
	tok := p.peek()
	switch {
	case tok.Kind == RESERVED && tok.Lexeme == "int":
		p.pos++
		if p.peek().Lexeme == "[" {
			p.pos++
			if _, err := p.consume(PUNCTUATION, "]"); err != nil {
				return "", err
			}
			return "int[]", nil
		}
		return "int", nil
	case tok.Kind == RESERVED && tok.Lexeme == "boolean":
		p.pos++
		return "boolean", nil
	case tok.Kind == IDENTIFIER:
		p.pos++
		return tok.Lexeme, nil
	default:
		return "", &ParseError{ExpectedKind: RESERVED, ExpectedLexeme: "int", Actual: tok, AtEOF: p.atEnd()}
	}
}

func (p *Parser) parseVariable() (*Variable, error) {
	varType, err := p.parseType()
	if err != nil {
		return nil, err
	}
	name, err := p.consume(IDENTIFIER, "")
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(PUNCTUATION, ";"); err != nil {
		return nil, err
	}
	return &Variable{VarType: varType, Name: name.Lexeme}, nil
}

func (p *Parser) parseParams() ([]*Parameter, error) {
	var params []*Parameter
	for {
		paramType, err := p.parseType()
		if err != nil {
			return nil, err
		}
		name, err := p.consume(IDENTIFIER, "")
		if err != nil {
			return nil, err
		}
		params = append(params, &Parameter{ParamType: paramType, Name: name.Lexeme})
		if p.peek().Lexeme != "," {
			return params, nil
		}
		p.pos++
	}
}

func (p *Parser) parseMethod() (*Method, error) {
	if _, err := p.consume(RESERVED, "public"); err != nil {
		return nil, err
	}
	returnType, err := p.parseType()
	if err != nil {
		return nil, err
	}
	name, err := p.consume(IDENTIFIER, "")
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(PUNCTUATION, "("); err != nil {
		return nil, err
	}
	var params []*Parameter
	if p.peek().Lexeme != ")" {
		params, err = p.parseParams()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.consume(PUNCTUATION, ")"); err != nil {
		return nil, err
	}
	if _, err := p.consume(PUNCTUATION, "{"); err != nil {
		return nil, err
	}

	// Only int/boolean/int[] locals are distinguishable from commands with
	// one token of lookahead, so class-typed locals are not in the grammar.
	var locals []*Variable
	var commands []Command
	for !p.atEnd() && p.peek().Lexeme != "return" {
		tok := p.peek()
		if tok.Kind == RESERVED && (tok.Lexeme == "int" || tok.Lexeme == "boolean") {
			v, err := p.parseVariable()
			if err != nil {
				return nil, err
			}
			locals = append(locals, v)
			continue
		}
		c, err := p.parseCommand()
		if err != nil {
			return nil, err
		}
		commands = append(commands, c)
	}
	if _, err := p.consume(RESERVED, "return"); err != nil {
		return nil, err
	}
	returnExpr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(PUNCTUATION, ";"); err != nil {
		return nil, err
	}
	if _, err := p.consume(PUNCTUATION, "}"); err != nil {
		return nil, err
	}
	return &Method{
		ReturnType:       returnType,
		Name:             name.Lexeme,
		Parameters:       params,
		LocalVariables:   locals,
		Commands:         commands,
		ReturnExpression: returnExpr,
	}, nil
}

func (p *Parser) parseCommands() ([]Command, error) {
	var commands []Command
	for !p.atEnd() && p.peek().Lexeme != "}" {
		c, err := p.parseCommand()
		if err != nil {
			return nil, err
		}
		commands = append(commands, c)
	}
	return commands, nil
}

func (p *Parser) parseCommand() (Command, error) {
	tok := p.peek()

	switch {
	case tok.Lexeme == "{":
		p.pos++
		commands, err := p.parseCommands()
		if err != nil {
			return nil, err
		}
		if _, err := p.consume(PUNCTUATION, "}"); err != nil {
			return nil, err
		}
		return &Block{Commands: commands}, nil

	case tok.Lexeme == "System.out.println":
		p.pos++
		if _, err := p.consume(PUNCTUATION, "("); err != nil {
			return nil, err
		}
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.consume(PUNCTUATION, ")"); err != nil {
			return nil, err
		}
		if _, err := p.consume(PUNCTUATION, ";"); err != nil {
			return nil, err
		}
		return &Print{Expression: expr}, nil

	case tok.Lexeme == "if":
		p.pos++
		if _, err := p.consume(PUNCTUATION, "("); err != nil {
			return nil, err
		}
		cond, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.consume(PUNCTUATION, ")"); err != nil {
			return nil, err
		}
		thenCmd, err := p.parseCommand()
		if err != nil {
			return nil, err
		}
		var elseCmd Command
		if p.peek().Lexeme == "else" {
			p.pos++
			elseCmd, err = p.parseCommand()
			if err != nil {
				return nil, err
			}
		}
		return &If{Condition: cond, Then: thenCmd, Else: elseCmd}, nil

	case tok.Lexeme == "while":
		p.pos++
		if _, err := p.consume(PUNCTUATION, "("); err != nil {
			return nil, err
		}
		cond, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.consume(PUNCTUATION, ")"); err != nil {
			return nil, err
		}
		body, err := p.parseCommand()
		if err != nil {
			return nil, err
		}
		return &While{Condition: cond, Body: body}, nil

	case tok.Kind == IDENTIFIER && p.peekNext().Lexeme == "=":
		p.pos += 2
		value, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.consume(PUNCTUATION, ";"); err != nil {
			return nil, err
		}
		return &Assignment{Target: tok.Lexeme, Value: value}, nil

	case tok.Kind == IDENTIFIER && p.peekNext().Lexeme == "[":
		p.pos += 2
		index, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.consume(PUNCTUATION, "]"); err != nil {
			return nil, err
		}
		if _, err := p.consume(OPERATOR, "="); err != nil {
			return nil, err
		}
		value, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.consume(PUNCTUATION, ";"); err != nil {
			return nil, err
		}
		return &ArrayAssignment{Target: tok.Lexeme, Index: index, Value: value}, nil

	case tok.Lexeme == "this" || tok.Lexeme == "new" ||
		(tok.Kind == IDENTIFIER && p.peekNext().Lexeme == "."):
		// Method call in command position, e.g. this.run(); or new C().go();
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.consume(PUNCTUATION, ";"); err != nil {
			return nil, err
		}
		return &ExpressionStatement{Expression: expr}, nil
	}

	return nil, &ParseError{ExpectedKind: IDENTIFIER, Actual: tok, AtEOF: p.atEnd()}
}

// parseExpression handles the lowest-precedence layer: RExpr ('&&' RExpr)*.
func (p *Parser) parseExpression() (Expression, error) {
	left, err := p.parseRExp()
	if err != nil {
		return nil, err
	}
	for p.peek().Lexeme == "&&" {
		p.pos++
		right, err := p.parseRExp()
		if err != nil {
			return nil, err
		}
		left = &LogicalOp{Op: "&&", Left: left, Right: right}
	}
	return left, nil
}

var relationalOps = map[string]bool{
	"<": true, "<=": true, ">": true, ">=": true, "==": true, "!=": true,
}

func (p *Parser) parseRExp() (Expression, error) {
	left, err := p.parseAExp()
	if err != nil {
		return nil, err
	}
	for p.peek().Kind == OPERATOR && relationalOps[p.peek().Lexeme] {
		op := p.peek().Lexeme
		p.pos++
		right, err := p.parseAExp()
		if err != nil {
			return nil, err
		}
		left = &RelationalOp{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAExp() (Expression, error) {
	left, err := p.parseMExp()
	if err != nil {
		return nil, err
	}
	for p.peek().Lexeme == "+" || p.peek().Lexeme == "-" {
		op := p.peek().Lexeme
		p.pos++
		right, err := p.parseMExp()
		if err != nil {
			return nil, err
		}
		left = &ArithmeticOp{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseMExp() (Expression, error) {
	left, err := p.parseSExp()
	if err != nil {
		return nil, err
	}
	for p.peek().Lexeme == "*" {
		p.pos++
		right, err := p.parseSExp()
		if err != nil {
			return nil, err
		}
		left = &ArithmeticOp{Op: "*", Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseSExp() (Expression, error) {
	tok := p.peek()

	switch {
	case tok.Lexeme == "true" || tok.Lexeme == "false":
		p.pos++
		return &BooleanLit{Value: tok.Lexeme == "true"}, nil

	case tok.Kind == NUMBER:
		p.pos++
		value, err := strconv.Atoi(tok.Lexeme)
		if err != nil {
			return nil, &ParseError{ExpectedKind: NUMBER, Actual: tok}
		}
		return &NumberLit{Value: value}, nil

	case tok.Lexeme == "null":
		p.pos++
		return &NullLit{}, nil

	case tok.Lexeme == "new" && p.peekNext().Lexeme == "int":
		p.pos += 2
		if _, err := p.consume(PUNCTUATION, "["); err != nil {
			return nil, err
		}
		size, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.consume(PUNCTUATION, "]"); err != nil {
			return nil, err
		}
		return &NewArray{ElementType: "int", Size: size}, nil

	default:
		return p.parsePExp()
	}
}

func (p *Parser) parsePExp() (Expression, error) {
	tok := p.peek()
	var left Expression

	switch {
	case tok.Kind == IDENTIFIER:
		p.pos++
		left = &Identifier{Name: tok.Lexeme}

	case tok.Lexeme == "this":
		p.pos++
		left = &This{}

	case tok.Lexeme == "new":
		p.pos++
		name, err := p.consume(IDENTIFIER, "")
		if err != nil {
			return nil, err
		}
		if _, err := p.consume(PUNCTUATION, "("); err != nil {
			return nil, err
		}
		if _, err := p.consume(PUNCTUATION, ")"); err != nil {
			return nil, err
		}
		left = &NewObject{ClassName: name.Lexeme}

	case tok.Lexeme == "(":
		p.pos++
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.consume(PUNCTUATION, ")"); err != nil {
			return nil, err
		}
		left = expr

	default:
		return nil, &ParseError{ExpectedKind: IDENTIFIER, Actual: tok, AtEOF: p.atEnd()}
	}

	// Postfix extensions: .name, .name(args), .length, [index]
	for p.peek().Lexeme == "." || p.peek().Lexeme == "[" {
		if p.peek().Lexeme == "." {
			p.pos++
			if p.peek().Lexeme == "length" {
				p.pos++
				left = &ArrayLength{Array: left}
				continue
			}
			member, err := p.consume(IDENTIFIER, "")
			if err != nil {
				return nil, err
			}
			if p.peek().Lexeme == "(" {
				p.pos++
				var args []Expression
				if p.peek().Lexeme != ")" {
					args, err = p.parseExps()
					if err != nil {
						return nil, err
					}
				}
				if _, err := p.consume(PUNCTUATION, ")"); err != nil {
					return nil, err
				}
				left = &MethodCall{Target: left, MethodName: member.Lexeme, Arguments: args}
			} else {
				left = &FieldAccess{Target: left, FieldName: member.Lexeme}
			}
		} else {
			p.pos++
			index, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if _, err := p.consume(PUNCTUATION, "]"); err != nil {
				return nil, err
			}
			left = &ArrayAccess{Array: left, Index: index}
		}
	}
	return left, nil
}

func (p *Parser) parseExps() ([]Expression, error) {
	first, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	exprs := []Expression{first}
	for p.peek().Lexeme == "," {
		p.pos++
		e, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, e)
	}
	return exprs, nil
}
