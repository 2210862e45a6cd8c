package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Token types for the script lexer
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError

	// Literals and names
	TokenInteger    // unsigned decimal digits
	TokenIdentifier // foo, __u64, iov_base

	// Keywords
	TokenFn     // fn
	TokenReturn // return

	// Delimiters
	TokenNewline  // statement separator
	TokenLParen   // (
	TokenRParen   // )
	TokenLBracket // [
	TokenRBracket // ]
	TokenComma    // ,
	TokenColon    // :
	TokenPeriod   // .
	TokenAssign   // =
	TokenAmp      // &
	TokenStar     // *

	// Comparators (reserved for a future conditional form; no statement
	// production consumes them yet)
	TokenEq // ==
	TokenNe // !=
	TokenLt // <
	TokenGt // >
	TokenLe // <=
	TokenGe // >=
)

var tokenNames = map[TokenType]string{
	TokenEOF:        "EOF",
	TokenError:      "ERROR",
	TokenInteger:    "INTEGER",
	TokenIdentifier: "IDENTIFIER",
	TokenFn:         "fn",
	TokenReturn:     "return",
	TokenNewline:    "NEWLINE",
	TokenLParen:     "(",
	TokenRParen:     ")",
	TokenLBracket:   "[",
	TokenRBracket:   "]",
	TokenComma:      ",",
	TokenColon:      ":",
	TokenPeriod:     ".",
	TokenAssign:     "=",
	TokenAmp:        "&",
	TokenStar:       "*",
	TokenEq:         "==",
	TokenNe:         "!=",
	TokenLt:         "<",
	TokenGt:         ">",
	TokenLe:         "<=",
	TokenGe:         ">=",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// Token represents a lexical token.
type Token struct {
	Type    TokenType
	Literal string // the raw text
	Pos     int    // byte offset in the input
	Line    int    // 1-based source line
}

func (t Token) String() string {
	if t.Type == TokenEOF {
		return "EOF"
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
}

// Reserved words mapped to their token types.
var reservedWords = map[string]TokenType{
	"fn":     TokenFn,
	"return": TokenReturn,
}
