package syntax

import "fmt"

// ---------------------------------------------------------------------------
// Token types for the Loom lexer
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError

	// Literals
	TokenIdent  // foo, Bar
	TokenInt    // 42, 0xFF
	TokenFloat  // 3.14
	TokenString // "hello"

	// Delimiters
	TokenLParen    // (
	TokenRParen    // )
	TokenLBracket  // [
	TokenRBracket  // ]
	TokenLBrace    // {
	TokenRBrace    // }
	TokenComma     // ,
	TokenSemicolon // ;
	TokenColon     // :
	TokenDot       // .

	// Assignment
	TokenAssign      // =
	TokenPlusAssign  // +=
	TokenMinusAssign // -=
	TokenMulAssign   // *=
	TokenDivAssign   // /=

	// Operators
	TokenPlus    // +
	TokenMinus   // -
	TokenStar    // *
	TokenSlash   // /
	TokenPercent // %
	TokenEq      // ==
	TokenNe      // !=
	TokenLt      // <
	TokenLe      // <=
	TokenGt      // >
	TokenGe      // >=
	TokenAndAnd  // &&
	TokenOrOr    // ||
	TokenNot     // !

	// Keywords
	TokenNamespace
	TokenImport
	TokenFunc
	TokenCoro
	TokenClass
	TokenInterface
	TokenEnum
	TokenStatic
	TokenVirtual
	TokenOverride
	TokenVar
	TokenReturn
	TokenBreak
	TokenContinue
	TokenIf
	TokenElse
	TokenWhile
	TokenDo
	TokenFor
	TokenYield
	TokenParal
	TokenParalAll
	TokenSeq
	TokenDefer
	TokenNew
	TokenIs
	TokenAs
	TokenRef
	TokenNull
	TokenTrue
	TokenFalse
	TokenThis
	TokenBase
)

var tokenNames = map[TokenType]string{
	TokenEOF:         "EOF",
	TokenError:       "ERROR",
	TokenIdent:       "IDENT",
	TokenInt:         "INT",
	TokenFloat:       "FLOAT",
	TokenString:      "STRING",
	TokenLParen:      "(",
	TokenRParen:      ")",
	TokenLBracket:    "[",
	TokenRBracket:    "]",
	TokenLBrace:      "{",
	TokenRBrace:      "}",
	TokenComma:       ",",
	TokenSemicolon:   ";",
	TokenColon:       ":",
	TokenDot:         ".",
	TokenAssign:      "=",
	TokenPlusAssign:  "+=",
	TokenMinusAssign: "-=",
	TokenMulAssign:   "*=",
	TokenDivAssign:   "/=",
	TokenPlus:        "+",
	TokenMinus:       "-",
	TokenStar:        "*",
	TokenSlash:       "/",
	TokenPercent:     "%",
	TokenEq:          "==",
	TokenNe:          "!=",
	TokenLt:          "<",
	TokenLe:          "<=",
	TokenGt:          ">",
	TokenGe:          ">=",
	TokenAndAnd:      "&&",
	TokenOrOr:        "||",
	TokenNot:         "!",
	TokenNamespace:   "namespace",
	TokenImport:      "import",
	TokenFunc:        "func",
	TokenCoro:        "coro",
	TokenClass:       "class",
	TokenInterface:   "interface",
	TokenEnum:        "enum",
	TokenStatic:      "static",
	TokenVirtual:     "virtual",
	TokenOverride:    "override",
	TokenVar:         "var",
	TokenReturn:      "return",
	TokenBreak:       "break",
	TokenContinue:    "continue",
	TokenIf:          "if",
	TokenElse:        "else",
	TokenWhile:       "while",
	TokenDo:          "do",
	TokenFor:         "for",
	TokenYield:       "yield",
	TokenParal:       "paral",
	TokenParalAll:    "paral_all",
	TokenSeq:         "seq",
	TokenDefer:       "defer",
	TokenNew:         "new",
	TokenIs:          "is",
	TokenAs:          "as",
	TokenRef:         "ref",
	TokenNull:        "null",
	TokenTrue:        "true",
	TokenFalse:       "false",
	TokenThis:        "this",
	TokenBase:        "base",
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
	Pos     Pos    // start position
	End     Pos    // position just past the token
}

func (t Token) String() string {
	if t.Type == TokenEOF {
		return "EOF"
	}
	if t.Type == TokenError {
		return fmt.Sprintf("ERROR(%s)", t.Literal)
	}
	if len(t.Literal) > 20 {
		return fmt.Sprintf("%s(%q...)", t.Type, t.Literal[:20])
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
}

// Reserved words mapped to their token types.
var reservedWords = map[string]TokenType{
	"namespace": TokenNamespace,
	"import":    TokenImport,
	"func":      TokenFunc,
	"coro":      TokenCoro,
	"class":     TokenClass,
	"interface": TokenInterface,
	"enum":      TokenEnum,
	"static":    TokenStatic,
	"virtual":   TokenVirtual,
	"override":  TokenOverride,
	"var":       TokenVar,
	"return":    TokenReturn,
	"break":     TokenBreak,
	"continue":  TokenContinue,
	"if":        TokenIf,
	"else":      TokenElse,
	"while":     TokenWhile,
	"do":        TokenDo,
	"for":       TokenFor,
	"yield":     TokenYield,
	"paral":     TokenParal,
	"paral_all": TokenParalAll,
	"seq":       TokenSeq,
	"defer":     TokenDefer,
	"new":       TokenNew,
	"is":        TokenIs,
	"as":        TokenAs,
	"ref":       TokenRef,
	"null":      TokenNull,
	"true":      TokenTrue,
	"false":     TokenFalse,
	"this":      TokenThis,
	"base":      TokenBase,
}

// IsKeyword reports whether s is a reserved word.
func IsKeyword(s string) bool {
	_, ok := reservedWords[s]
	return ok
}
