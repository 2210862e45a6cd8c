package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Parser: recursive descent parser for the script grammar
// ---------------------------------------------------------------------------
//
// Grammar (newlines are structural, blanks are not):
//
//	script   = 'fn' '(' [arg {',' arg}] ')' {NEWLINE stmt}
//	arg      = ident ':' typedecl
//	typedecl = ['&'] ident
//	stmt     = assignment | call | return
//	assign   = lvalue [':' typedecl] '=' rvalue
//	call     = ident '(' [rvalue {',' rvalue}] ')'
//	return   = 'return' [rvalue]
//	lvalue   = ['&' | '*'] ident {'.' ident | '[' digits ']'}
//	rvalue   = call | digits | lvalue
//
// Comparators and the condition production are parsed but unreachable from
// any statement form; they are reserved syntax.

// Parser parses script source code into an AST.
type Parser struct {
	lexer     *Lexer
	curToken  Token
	peekToken Token
}

// NewParser creates a new parser for the given input.
func NewParser(input string) *Parser {
	p := &Parser{lexer: NewLexer(input)}
	// Read two tokens to fill curToken and peekToken
	p.nextToken()
	p.nextToken()
	return p
}

// nextToken advances to the next token.
func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.lexer.NextToken()
}

// curTokenIs checks if the current token is of the given type.
func (p *Parser) curTokenIs(t TokenType) bool {
	return p.curToken.Type == t
}

// errorf builds a structural parse error at the current token.
func (p *Parser) errorf(format string, args ...interface{}) error {
	return fmt.Errorf("parse failed at position %d: %s", p.curToken.Pos, fmt.Sprintf(format, args...))
}

// expect consumes the current token if it matches, or fails.
func (p *Parser) expect(t TokenType) error {
	if !p.curTokenIs(t) {
		return p.errorf("expected %s, got %s", t, p.curToken.Type)
	}
	p.nextToken()
	return nil
}

// skipNewlines consumes any run of newline separators.
func (p *Parser) skipNewlines() {
	for p.curTokenIs(TokenNewline) {
		p.nextToken()
	}
}

// Parse parses a complete script.
func (p *Parser) Parse() (*Script, error) {
	p.skipNewlines()

	script := &Script{}

	if err := p.expect(TokenFn); err != nil {
		return nil, err
	}
	if err := p.expect(TokenLParen); err != nil {
		return nil, err
	}

	if !p.curTokenIs(TokenRParen) {
		for {
			arg, err := p.parseTypedArgument()
			if err != nil {
				return nil, err
			}
			script.Args = append(script.Args, arg)
			if !p.curTokenIs(TokenComma) {
				break
			}
			p.nextToken()
		}
	}
	if err := p.expect(TokenRParen); err != nil {
		return nil, err
	}

	for {
		if !p.curTokenIs(TokenNewline) {
			break
		}
		p.skipNewlines()
		if p.curTokenIs(TokenEOF) {
			break
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		script.Stmts = append(script.Stmts, stmt)
	}

	if !p.curTokenIs(TokenEOF) {
		return nil, p.errorf("unexpected %s", p.curToken.Type)
	}
	return script, nil
}

// parseTypedArgument parses `name: typedecl`.
func (p *Parser) parseTypedArgument() (TypedArgument, error) {
	if !p.curTokenIs(TokenIdentifier) {
		return TypedArgument{}, p.errorf("expected argument name, got %s", p.curToken.Type)
	}
	name := p.curToken.Literal
	p.nextToken()

	if err := p.expect(TokenColon); err != nil {
		return TypedArgument{}, err
	}
	decl, err := p.parseTypeDecl()
	if err != nil {
		return TypedArgument{}, err
	}
	return TypedArgument{Name: name, Type: decl}, nil
}

// parseTypeDecl parses `['&'] ident`.
func (p *Parser) parseTypeDecl() (TypeDecl, error) {
	decl := TypeDecl{}
	if p.curTokenIs(TokenAmp) {
		decl.IsRef = true
		p.nextToken()
	}
	if !p.curTokenIs(TokenIdentifier) {
		return TypeDecl{}, p.errorf("expected type name, got %s", p.curToken.Type)
	}
	decl.Name = p.curToken.Literal
	p.nextToken()
	return decl, nil
}

// parseStatement parses one top-level statement.
func (p *Parser) parseStatement() (Statement, error) {
	if p.curTokenIs(TokenReturn) {
		return p.parseReturn()
	}

	// A bare identifier followed by '(' is a call statement; everything
	// else must be an assignment.
	if p.curTokenIs(TokenIdentifier) && p.peekToken.Type == TokenLParen {
		return p.parseFunctionCall()
	}
	return p.parseAssignment()
}

// parseReturn parses `return [rvalue]`.
func (p *Parser) parseReturn() (*Return, error) {
	p.nextToken()
	if p.curTokenIs(TokenNewline) || p.curTokenIs(TokenEOF) {
		return &Return{}, nil
	}
	val, err := p.parseRValue()
	if err != nil {
		return nil, err
	}
	return &Return{Value: val}, nil
}

// parseAssignment parses `lvalue [':' typedecl] '=' rvalue`.
func (p *Parser) parseAssignment() (*Assignment, error) {
	left, err := p.parseLValue()
	if err != nil {
		return nil, err
	}

	assign := &Assignment{Left: *left}
	if p.curTokenIs(TokenColon) {
		p.nextToken()
		decl, err := p.parseTypeDecl()
		if err != nil {
			return nil, err
		}
		assign.Decl = &decl
	}

	if err := p.expect(TokenAssign); err != nil {
		return nil, err
	}

	right, err := p.parseRValue()
	if err != nil {
		return nil, err
	}
	assign.Right = right
	return assign, nil
}

// parseFunctionCall parses `ident '(' [rvalue {',' rvalue}] ')'`.
func (p *Parser) parseFunctionCall() (*FunctionCall, error) {
	call := &FunctionCall{Name: p.curToken.Literal}
	p.nextToken()
	if err := p.expect(TokenLParen); err != nil {
		return nil, err
	}

	if !p.curTokenIs(TokenRParen) {
		for {
			arg, err := p.parseRValue()
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, arg)
			if !p.curTokenIs(TokenComma) {
				break
			}
			p.nextToken()
		}
	}
	if err := p.expect(TokenRParen); err != nil {
		return nil, err
	}
	return call, nil
}

// parseRValue parses a call, an immediate, or an lvalue.
func (p *Parser) parseRValue() (RValue, error) {
	if p.curTokenIs(TokenIdentifier) && p.peekToken.Type == TokenLParen {
		return p.parseFunctionCall()
	}
	if p.curTokenIs(TokenInteger) {
		imm := Immediate(p.curToken.Literal)
		p.nextToken()
		return imm, nil
	}
	return p.parseLValue()
}

// parseLValue parses `['&' | '*'] ident {'.' ident | '[' digits ']'}`.
func (p *Parser) parseLValue() (*LValue, error) {
	lval := &LValue{}

	if p.curTokenIs(TokenAmp) {
		lval.Prefix = RefPrefix
		p.nextToken()
	} else if p.curTokenIs(TokenStar) {
		lval.Prefix = DerefPrefix
		p.nextToken()
	}

	if !p.curTokenIs(TokenIdentifier) {
		return nil, p.errorf("expected identifier, got %s", p.curToken.Type)
	}
	lval.Name = p.curToken.Literal
	p.nextToken()

	for {
		switch {
		case p.curTokenIs(TokenPeriod):
			p.nextToken()
			if !p.curTokenIs(TokenIdentifier) {
				return nil, p.errorf("expected member name, got %s", p.curToken.Type)
			}
			lval.Derefs = append(lval.Derefs, MemberAccess{Name: p.curToken.Literal})
			p.nextToken()

		case p.curTokenIs(TokenLBracket):
			p.nextToken()
			if !p.curTokenIs(TokenInteger) {
				return nil, p.errorf("expected array index, got %s", p.curToken.Type)
			}
			idx := p.curToken.Literal
			p.nextToken()
			if err := p.expect(TokenRBracket); err != nil {
				return nil, err
			}
			lval.Derefs = append(lval.Derefs, ArrayIndex{Index: idx})

		default:
			return lval, nil
		}
	}
}

// parseCondition parses `lvalue comparator rvalue`. Nothing reachable from
// Parse uses it; the production is reserved for a future branch construct.
func (p *Parser) parseCondition() (*Condition, error) {
	left, err := p.parseLValue()
	if err != nil {
		return nil, err
	}

	var op Comparator
	switch p.curToken.Type {
	case TokenEq:
		op = CmpEq
	case TokenNe:
		op = CmpNe
	case TokenLt:
		op = CmpLt
	case TokenGt:
		op = CmpGt
	case TokenLe:
		op = CmpLe
	case TokenGe:
		op = CmpGe
	default:
		return nil, p.errorf("expected comparator, got %s", p.curToken.Type)
	}
	p.nextToken()

	right, err := p.parseRValue()
	if err != nil {
		return nil, err
	}
	return &Condition{Left: *left, Op: op, Right: right}, nil
}
