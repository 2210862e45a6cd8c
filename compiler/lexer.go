package compiler

// ---------------------------------------------------------------------------
// Lexer: tokenizer for the script syntax
// ---------------------------------------------------------------------------
//
// The language is line oriented: newlines separate statements and are
// emitted as tokens, while spaces and tabs are insignificant separators.

// Lexer tokenizes script source code.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      byte // current character
	line    int  // current line (1-based)
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
	}
	l.readChar()
	return l
}

// readChar reads the next character. The surface syntax is pure ASCII, so
// the lexer walks bytes.
func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0 // EOF
		l.pos = l.readPos
	} else {
		l.ch = l.input[l.readPos]
		l.pos = l.readPos
		l.readPos++
	}
}

// peekChar returns the next character without consuming it.
func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

// skipBlanks consumes spaces and tabs, but never newlines.
func (l *Lexer) skipBlanks() {
	for l.ch == ' ' || l.ch == '\t' {
		l.readChar()
	}
}

func isIdentChar(ch byte) bool {
	return ch == '_' ||
		('a' <= ch && ch <= 'z') ||
		('A' <= ch && ch <= 'Z') ||
		('0' <= ch && ch <= '9')
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

// NextToken returns the next token.
func (l *Lexer) NextToken() Token {
	l.skipBlanks()

	pos := l.pos
	line := l.line

	switch {
	case l.ch == 0:
		return Token{Type: TokenEOF, Pos: pos, Line: line}

	case l.ch == '\n' || l.ch == '\r':
		// Collapse a run of newlines into one separator token.
		for l.ch == '\n' || l.ch == '\r' {
			if l.ch == '\n' {
				l.line++
			}
			l.readChar()
		}
		return Token{Type: TokenNewline, Literal: "\n", Pos: pos, Line: line}

	case l.ch == '(':
		l.readChar()
		return Token{Type: TokenLParen, Literal: "(", Pos: pos, Line: line}

	case l.ch == ')':
		l.readChar()
		return Token{Type: TokenRParen, Literal: ")", Pos: pos, Line: line}

	case l.ch == '[':
		l.readChar()
		return Token{Type: TokenLBracket, Literal: "[", Pos: pos, Line: line}

	case l.ch == ']':
		l.readChar()
		return Token{Type: TokenRBracket, Literal: "]", Pos: pos, Line: line}

	case l.ch == ',':
		l.readChar()
		return Token{Type: TokenComma, Literal: ",", Pos: pos, Line: line}

	case l.ch == ':':
		l.readChar()
		return Token{Type: TokenColon, Literal: ":", Pos: pos, Line: line}

	case l.ch == '.':
		l.readChar()
		return Token{Type: TokenPeriod, Literal: ".", Pos: pos, Line: line}

	case l.ch == '&':
		l.readChar()
		return Token{Type: TokenAmp, Literal: "&", Pos: pos, Line: line}

	case l.ch == '*':
		l.readChar()
		return Token{Type: TokenStar, Literal: "*", Pos: pos, Line: line}

	case l.ch == '=':
		l.readChar()
		if l.ch == '=' {
			l.readChar()
			return Token{Type: TokenEq, Literal: "==", Pos: pos, Line: line}
		}
		return Token{Type: TokenAssign, Literal: "=", Pos: pos, Line: line}

	case l.ch == '!':
		l.readChar()
		if l.ch == '=' {
			l.readChar()
			return Token{Type: TokenNe, Literal: "!=", Pos: pos, Line: line}
		}
		return Token{Type: TokenError, Literal: "!", Pos: pos, Line: line}

	case l.ch == '<':
		l.readChar()
		if l.ch == '=' {
			l.readChar()
			return Token{Type: TokenLe, Literal: "<=", Pos: pos, Line: line}
		}
		return Token{Type: TokenLt, Literal: "<", Pos: pos, Line: line}

	case l.ch == '>':
		l.readChar()
		if l.ch == '=' {
			l.readChar()
			return Token{Type: TokenGe, Literal: ">=", Pos: pos, Line: line}
		}
		return Token{Type: TokenGt, Literal: ">", Pos: pos, Line: line}

	case isDigit(l.ch):
		start := l.pos
		for isDigit(l.ch) {
			l.readChar()
		}
		return Token{Type: TokenInteger, Literal: l.input[start:l.pos], Pos: pos, Line: line}

	case isIdentChar(l.ch):
		start := l.pos
		for isIdentChar(l.ch) {
			l.readChar()
		}
		lit := l.input[start:l.pos]
		if t, ok := reservedWords[lit]; ok {
			return Token{Type: t, Literal: lit, Pos: pos, Line: line}
		}
		return Token{Type: TokenIdentifier, Literal: lit, Pos: pos, Line: line}

	default:
		ch := l.ch
		l.readChar()
		return Token{Type: TokenError, Literal: string(ch), Pos: pos, Line: line}
	}
}
