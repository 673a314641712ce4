package syntax

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Lexer: Tokenizer for Loom syntax
// ---------------------------------------------------------------------------

// Lexer tokenizes Loom source code.
type Lexer struct {
	input     string
	pos       int  // current position in input
	readPos   int  // reading position (after current char)
	ch        rune // current character
	line      int  // current line (1-based)
	lineStart int  // offset of current line start
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

// Tokenize returns every token of input, ending with TokenEOF.
func Tokenize(input string) []Token {
	l := NewLexer(input)
	var toks []Token
	for {
		tok := l.NextToken()
		toks = append(toks, tok)
		if tok.Type == TokenEOF {
			return toks
		}
	}
}

// readChar reads the next character.
func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.lineStart = l.readPos
	}
	if l.readPos >= len(l.input) {
		l.ch = 0
		l.pos = l.readPos
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
	l.ch = r
	l.pos = l.readPos
	l.readPos += size
}

// peekChar returns the next character without consuming it.
func (l *Lexer) peekChar() rune {
	if l.readPos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPos:])
	return r
}

// position returns the current position.
func (l *Lexer) position() Pos {
	return Pos{
		Offset: l.pos,
		Line:   l.line,
		Column: l.pos - l.lineStart + 1,
	}
}

func (l *Lexer) token(t TokenType, lit string, start Pos) Token {
	return Token{Type: t, Literal: lit, Pos: start, End: l.position()}
}

// twoChar consumes the current char and, if the next one is second, that too.
func (l *Lexer) twoChar(start Pos, second rune, single, double TokenType) Token {
	first := l.ch
	l.readChar()
	if l.ch == second {
		l.readChar()
		return l.token(double, string([]rune{first, second}), start)
	}
	return l.token(single, string(first), start)
}

// NextToken returns the next token.
func (l *Lexer) NextToken() Token {
	if tok, ok := l.skipWhitespaceAndComments(); !ok {
		return tok
	}

	start := l.position()

	switch {
	case l.ch == 0:
		return Token{Type: TokenEOF, Pos: start, End: start}
	case l.ch == '(':
		l.readChar()
		return l.token(TokenLParen, "(", start)
	case l.ch == ')':
		l.readChar()
		return l.token(TokenRParen, ")", start)
	case l.ch == '[':
		l.readChar()
		return l.token(TokenLBracket, "[", start)
	case l.ch == ']':
		l.readChar()
		return l.token(TokenRBracket, "]", start)
	case l.ch == '{':
		l.readChar()
		return l.token(TokenLBrace, "{", start)
	case l.ch == '}':
		l.readChar()
		return l.token(TokenRBrace, "}", start)
	case l.ch == ',':
		l.readChar()
		return l.token(TokenComma, ",", start)
	case l.ch == ';':
		l.readChar()
		return l.token(TokenSemicolon, ";", start)
	case l.ch == ':':
		l.readChar()
		return l.token(TokenColon, ":", start)
	case l.ch == '.' && !isDigit(l.peekChar()):
		l.readChar()
		return l.token(TokenDot, ".", start)
	case l.ch == '=':
		return l.twoChar(start, '=', TokenAssign, TokenEq)
	case l.ch == '+':
		return l.twoChar(start, '=', TokenPlus, TokenPlusAssign)
	case l.ch == '-':
		return l.twoChar(start, '=', TokenMinus, TokenMinusAssign)
	case l.ch == '*':
		return l.twoChar(start, '=', TokenStar, TokenMulAssign)
	case l.ch == '/':
		return l.twoChar(start, '=', TokenSlash, TokenDivAssign)
	case l.ch == '%':
		l.readChar()
		return l.token(TokenPercent, "%", start)
	case l.ch == '!':
		return l.twoChar(start, '=', TokenNot, TokenNe)
	case l.ch == '<':
		return l.twoChar(start, '=', TokenLt, TokenLe)
	case l.ch == '>':
		return l.twoChar(start, '=', TokenGt, TokenGe)
	case l.ch == '&':
		if l.peekChar() == '&' {
			l.readChar()
			l.readChar()
			return l.token(TokenAndAnd, "&&", start)
		}
	case l.ch == '|':
		if l.peekChar() == '|' {
			l.readChar()
			l.readChar()
			return l.token(TokenOrOr, "||", start)
		}
	case l.ch == '"':
		return l.readString(start)
	case isDigit(l.ch) || l.ch == '.':
		return l.readNumber(start)
	case isLetter(l.ch):
		return l.readIdentifier(start)
	}

	ch := l.ch
	l.readChar()
	return l.token(TokenError, fmt.Sprintf("unexpected character: %c", ch), start)
}

// skipWhitespaceAndComments skips whitespace, // line comments and /* */
// block comments. It reports false with an error token for an unterminated
// block comment.
func (l *Lexer) skipWhitespaceAndComments() (Token, bool) {
	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
			l.readChar()
		}

		if l.ch == '/' && l.peekChar() == '/' {
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
			continue
		}

		if l.ch == '/' && l.peekChar() == '*' {
			start := l.position()
			l.readChar()
			l.readChar()
			for !(l.ch == '*' && l.peekChar() == '/') {
				if l.ch == 0 {
					return l.token(TokenError, "unterminated comment", start), false
				}
				l.readChar()
			}
			l.readChar()
			l.readChar()
			continue
		}

		return Token{}, true
	}
}

// readString reads a double-quoted string literal with backslash escapes.
func (l *Lexer) readString(start Pos) Token {
	l.readChar() // opening quote
	var sb strings.Builder
	for l.ch != '"' {
		if l.ch == 0 || l.ch == '\n' {
			return l.token(TokenError, "unterminated string", start)
		}
		if l.ch == '\\' {
			l.readChar()
			switch l.ch {
			case 'n':
				sb.WriteRune('\n')
			case 't':
				sb.WriteRune('\t')
			case 'r':
				sb.WriteRune('\r')
			case '\\':
				sb.WriteRune('\\')
			case '"':
				sb.WriteRune('"')
			default:
				return l.token(TokenError, fmt.Sprintf("invalid escape: \\%c", l.ch), start)
			}
			l.readChar()
			continue
		}
		sb.WriteRune(l.ch)
		l.readChar()
	}
	l.readChar() // closing quote
	return l.token(TokenString, sb.String(), start)
}

// readNumber reads an integer (decimal or 0x hex) or a float literal.
func (l *Lexer) readNumber(start Pos) Token {
	begin := l.pos
	if l.ch == '0' && (l.peekChar() == 'x' || l.peekChar() == 'X') {
		l.readChar()
		l.readChar()
		for isHexDigit(l.ch) {
			l.readChar()
		}
		return l.token(TokenInt, l.input[begin:l.pos], start)
	}

	isFloat := false
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) || l.ch == '.' && begin == l.pos {
		isFloat = true
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		isFloat = true
		l.readChar()
		if l.ch == '+' || l.ch == '-' {
			l.readChar()
		}
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	if isFloat {
		return l.token(TokenFloat, l.input[begin:l.pos], start)
	}
	return l.token(TokenInt, l.input[begin:l.pos], start)
}

// readIdentifier reads an identifier or reserved word.
func (l *Lexer) readIdentifier(start Pos) Token {
	begin := l.pos
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	lit := l.input[begin:l.pos]
	if t, ok := reservedWords[lit]; ok {
		return l.token(t, lit, start)
	}
	return l.token(TokenIdent, lit, start)
}

func isLetter(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isHexDigit(r rune) bool {
	return isDigit(r) || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}
