package lexer

import (
	"strings"

	"github.com/closecrowd/apyshell/internal/token"
)

// Lexer turns script text into a token stream. Indentation is significant:
// the lexer emits INDENT/DEDENT tokens at block boundaries and a NEWLINE at
// the end of each logical line. Newlines inside (), [] and {} are suppressed
// (implicit line joining).
type Lexer struct {
	input        string
	position     int  // current position in input (points to current char)
	readPosition int  // current reading position in input (after current char)
	ch           byte // current char under examination
	line         int

	indents    []int // indentation stack, always starts with 0
	pending    []token.Token
	groupDepth int // depth of (), [], {} nesting
	atLineRoot bool
	lastType   token.TokenType
}

func New(input string) *Lexer {
	l := &Lexer{
		input:      input,
		line:       1,
		indents:    []int{0},
		atLineRoot: true,
	}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.readPosition >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPosition]
	}
	l.position = l.readPosition
	l.readPosition++
}

func (l *Lexer) peekChar() byte {
	if l.readPosition >= len(l.input) {
		return 0
	}
	return l.input[l.readPosition]
}

func (l *Lexer) emit(t token.Token) token.Token {
	l.lastType = t.Type
	return t
}

func (l *Lexer) push(tt token.TokenType, lit string) {
	l.pending = append(l.pending, token.Token{Type: tt, Literal: lit, Line: l.line})
}

// NextToken returns the next token in the stream.
func (l *Lexer) NextToken() token.Token {
	if len(l.pending) > 0 {
		tok := l.pending[0]
		l.pending = l.pending[1:]
		return l.emit(tok)
	}

	if l.atLineRoot && l.groupDepth == 0 {
		l.atLineRoot = false
		l.measureIndent()
		if len(l.pending) > 0 {
			return l.NextToken()
		}
	}

	l.skipSpaces()

	if l.ch == '#' {
		l.skipComment()
	}

	var tok token.Token
	tok.Line = l.line

	switch l.ch {
	case '\n':
		l.readChar()
		if l.groupDepth > 0 {
			l.line++
			return l.NextToken()
		}
		l.line++
		l.atLineRoot = true
		if l.lastType == token.NEWLINE || l.lastType == token.INDENT ||
			l.lastType == token.DEDENT || l.lastType == "" {
			// blank logical line
			return l.NextToken()
		}
		tok.Type = token.NEWLINE
		tok.Literal = "\n"
		return l.emit(tok)
	case '\r':
		l.readChar()
		return l.NextToken()
	case 0:
		// flush a trailing NEWLINE and any open blocks before EOF
		if l.lastType != token.NEWLINE && l.lastType != "" &&
			l.lastType != token.DEDENT && l.lastType != token.INDENT {
			l.push(token.NEWLINE, "\n")
		}
		for len(l.indents) > 1 {
			l.indents = l.indents[:len(l.indents)-1]
			l.push(token.DEDENT, "")
		}
		l.push(token.EOF, "")
		tok = l.pending[0]
		l.pending = l.pending[1:]
		return l.emit(tok)
	case '=':
		if l.peekChar() == '=' {
			l.readChar()
			tok = token.Token{Type: token.EQ, Literal: "==", Line: l.line}
		} else {
			tok = token.Token{Type: token.ASSIGN, Literal: "=", Line: l.line}
		}
	case '+':
		tok = l.maybeAssign(token.PLUS, token.PLUS_ASSIGN, "+")
	case '-':
		if l.peekChar() == '>' {
			l.readChar()
			tok = token.Token{Type: token.ARROW, Literal: "->", Line: l.line}
		} else {
			tok = l.maybeAssign(token.MINUS, token.MINUS_ASSIGN, "-")
		}
	case '*':
		if l.peekChar() == '*' {
			l.readChar()
			tok = l.maybeAssign(token.POWER, token.POWER_ASSIGN, "**")
		} else {
			tok = l.maybeAssign(token.ASTERISK, token.ASTERISK_ASSIGN, "*")
		}
	case '/':
		if l.peekChar() == '/' {
			l.readChar()
			tok = l.maybeAssign(token.FLOORDIV, token.FLOORDIV_ASSIGN, "//")
		} else {
			tok = l.maybeAssign(token.SLASH, token.SLASH_ASSIGN, "/")
		}
	case '%':
		tok = l.maybeAssign(token.PERCENT, token.PERCENT_ASSIGN, "%")
	case '<':
		switch l.peekChar() {
		case '=':
			l.readChar()
			tok = token.Token{Type: token.LT_EQ, Literal: "<=", Line: l.line}
		case '<':
			l.readChar()
			tok = token.Token{Type: token.SHIFT_LEFT, Literal: "<<", Line: l.line}
		default:
			tok = token.Token{Type: token.LT, Literal: "<", Line: l.line}
		}
	case '>':
		switch l.peekChar() {
		case '=':
			l.readChar()
			tok = token.Token{Type: token.GT_EQ, Literal: ">=", Line: l.line}
		case '>':
			l.readChar()
			tok = token.Token{Type: token.SHIFT_RIGHT, Literal: ">>", Line: l.line}
		default:
			tok = token.Token{Type: token.GT, Literal: ">", Line: l.line}
		}
	case '!':
		if l.peekChar() == '=' {
			l.readChar()
			tok = token.Token{Type: token.NOT_EQ, Literal: "!=", Line: l.line}
		} else {
			tok = token.Token{Type: token.ILLEGAL, Literal: "!", Line: l.line}
		}
	case '~':
		tok = token.Token{Type: token.COMPLEMENT, Literal: "~", Line: l.line}
	case '&':
		tok = token.Token{Type: token.BITWISE_AND, Literal: "&", Line: l.line}
	case '|':
		tok = token.Token{Type: token.BITWISE_OR, Literal: "|", Line: l.line}
	case '^':
		tok = token.Token{Type: token.BITWISE_XOR, Literal: "^", Line: l.line}
	case '.':
		if isDigit(l.peekChar()) {
			return l.emit(l.readNumber())
		}
		tok = token.Token{Type: token.PERIOD, Literal: ".", Line: l.line}
	case ',':
		tok = token.Token{Type: token.COMMA, Literal: ",", Line: l.line}
	case ';':
		tok = token.Token{Type: token.SEMICOLON, Literal: ";", Line: l.line}
	case ':':
		tok = token.Token{Type: token.COLON, Literal: ":", Line: l.line}
	case '(':
		l.groupDepth++
		tok = token.Token{Type: token.LPAREN, Literal: "(", Line: l.line}
	case ')':
		l.groupDepth--
		tok = token.Token{Type: token.RPAREN, Literal: ")", Line: l.line}
	case '[':
		l.groupDepth++
		tok = token.Token{Type: token.LBRACKET, Literal: "[", Line: l.line}
	case ']':
		l.groupDepth--
		tok = token.Token{Type: token.RBRACKET, Literal: "]", Line: l.line}
	case '{':
		l.groupDepth++
		tok = token.Token{Type: token.LBRACE, Literal: "{", Line: l.line}
	case '}':
		l.groupDepth--
		tok = token.Token{Type: token.RBRACE, Literal: "}", Line: l.line}
	case '"', '\'':
		return l.emit(l.readString(l.ch))
	case '\\':
		// explicit line continuation
		if l.peekChar() == '\n' {
			l.readChar()
			l.readChar()
			l.line++
			return l.NextToken()
		}
		tok = token.Token{Type: token.ILLEGAL, Literal: "\\", Line: l.line}
	default:
		if isLetter(l.ch) {
			lit := l.readIdentifier()
			return l.emit(token.Token{Type: token.LookupIdent(lit), Literal: lit, Line: l.line})
		}
		if isDigit(l.ch) {
			return l.emit(l.readNumber())
		}
		tok = token.Token{Type: token.ILLEGAL, Literal: string(l.ch), Line: l.line}
	}

	l.readChar()
	return l.emit(tok)
}

func (l *Lexer) maybeAssign(plain, augmented token.TokenType, lit string) token.Token {
	if l.peekChar() == '=' {
		l.readChar()
		return token.Token{Type: augmented, Literal: lit + "=", Line: l.line}
	}
	return token.Token{Type: plain, Literal: lit, Line: l.line}
}

// measureIndent compares the leading whitespace of the new logical line with
// the indentation stack and queues INDENT/DEDENT tokens. Blank and
// comment-only lines are skipped without affecting the stack.
func (l *Lexer) measureIndent() {
	for {
		width := 0
		for l.ch == ' ' || l.ch == '\t' {
			if l.ch == '\t' {
				width += 8 - width%8
			} else {
				width++
			}
			l.readChar()
		}
		if l.ch == '#' {
			l.skipComment()
		}
		if l.ch == '\n' {
			l.readChar()
			l.line++
			continue
		}
		if l.ch == '\r' {
			l.readChar()
			continue
		}
		if l.ch == 0 {
			return
		}

		top := l.indents[len(l.indents)-1]
		switch {
		case width > top:
			l.indents = append(l.indents, width)
			l.push(token.INDENT, "")
		case width < top:
			for len(l.indents) > 1 && l.indents[len(l.indents)-1] > width {
				l.indents = l.indents[:len(l.indents)-1]
				l.push(token.DEDENT, "")
			}
			if l.indents[len(l.indents)-1] != width {
				l.push(token.ILLEGAL, "inconsistent indentation")
			}
		}
		return
	}
}

func (l *Lexer) skipSpaces() {
	for l.ch == ' ' || l.ch == '\t' {
		l.readChar()
	}
}

func (l *Lexer) skipComment() {
	for l.ch != '\n' && l.ch != 0 {
		l.readChar()
	}
}

func (l *Lexer) readIdentifier() string {
	position := l.position
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	return l.input[position:l.position]
}

func (l *Lexer) readNumber() token.Token {
	position := l.position
	line := l.line
	isFloat := false

	if l.ch == '0' && (l.peekChar() == 'x' || l.peekChar() == 'X' ||
		l.peekChar() == 'o' || l.peekChar() == 'O' ||
		l.peekChar() == 'b' || l.peekChar() == 'B') {
		l.readChar()
		l.readChar()
		for isHexDigit(l.ch) {
			l.readChar()
		}
		return token.Token{Type: token.INT, Literal: l.input[position:l.position], Line: line}
	}

	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) || l.ch == '.' && !isLetter(l.peekChar()) && l.peekChar() != '.' {
		isFloat = true
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		next := l.peekChar()
		if isDigit(next) || next == '+' || next == '-' {
			isFloat = true
			l.readChar()
			if l.ch == '+' || l.ch == '-' {
				l.readChar()
			}
			for isDigit(l.ch) {
				l.readChar()
			}
		}
	}

	lit := l.input[position:l.position]
	if isFloat {
		return token.Token{Type: token.FLOAT, Literal: lit, Line: line}
	}
	return token.Token{Type: token.INT, Literal: lit, Line: line}
}

func (l *Lexer) readString(quote byte) token.Token {
	line := l.line

	// triple-quoted string
	if l.peekChar() == quote && l.readPosition+1 <= len(l.input)-1 && l.input[l.readPosition+1] == quote {
		l.readChar()
		l.readChar()
		l.readChar()
		var out strings.Builder
		for {
			if l.ch == 0 {
				return token.Token{Type: token.ILLEGAL, Literal: "unterminated string", Line: line}
			}
			if l.ch == quote && l.peekChar() == quote &&
				l.readPosition+1 < len(l.input) && l.input[l.readPosition+1] == quote {
				l.readChar()
				l.readChar()
				l.readChar()
				break
			}
			if l.ch == '\n' {
				l.line++
			}
			out.WriteByte(l.ch)
			l.readChar()
		}
		return token.Token{Type: token.STRING, Literal: out.String(), Line: line}
	}

	l.readChar()
	var out strings.Builder
	for l.ch != quote {
		if l.ch == 0 || l.ch == '\n' {
			return token.Token{Type: token.ILLEGAL, Literal: "unterminated string", Line: line}
		}
		if l.ch == '\\' {
			l.readChar()
			switch l.ch {
			case 'n':
				out.WriteByte('\n')
			case 't':
				out.WriteByte('\t')
			case 'r':
				out.WriteByte('\r')
			case '0':
				out.WriteByte(0)
			case '\\':
				out.WriteByte('\\')
			case '\'':
				out.WriteByte('\'')
			case '"':
				out.WriteByte('"')
			case '\n':
				l.line++ // escaped newline inside a string joins lines
			default:
				out.WriteByte('\\')
				out.WriteByte(l.ch)
			}
			l.readChar()
			continue
		}
		out.WriteByte(l.ch)
		l.readChar()
	}
	l.readChar()
	return token.Token{Type: token.STRING, Literal: out.String(), Line: line}
}

func isLetter(ch byte) bool {
	return 'a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z' || ch == '_'
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

func isHexDigit(ch byte) bool {
	return isDigit(ch) || 'a' <= ch && ch <= 'f' || 'A' <= ch && ch <= 'F' || ch == '_'
}
