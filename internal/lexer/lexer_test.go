package lexer

import (
	"testing"

	"github.com/closecrowd/apyshell/internal/token"
)

func collect(input string) []token.Token {
	l := New(input)
	var toks []token.Token
	for {
		tok := l.NextToken()
		toks = append(toks, tok)
		if tok.Type == token.EOF {
			return toks
		}
	}
}

func types(toks []token.Token) []token.TokenType {
	out := make([]token.TokenType, len(toks))
	for i, t := range toks {
		out[i] = t.Type
	}
	return out
}

func expectTypes(t *testing.T, input string, want []token.TokenType) {
	t.Helper()
	got := types(collect(input))
	if len(got) != len(want) {
		t.Fatalf("token count = %d, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d = %s, want %s (all: %v)", i, got[i], want[i], got)
		}
	}
}

func TestOperators(t *testing.T) {
	input := "+ - * / // % ** == != < <= > >= = += -= *= /= //= %= **= & | ^ ~ << >>"
	want := []token.TokenType{
		token.PLUS, token.MINUS, token.ASTERISK, token.SLASH, token.FLOORDIV,
		token.PERCENT, token.POWER, token.EQ, token.NOT_EQ, token.LT,
		token.LT_EQ, token.GT, token.GT_EQ, token.ASSIGN, token.PLUS_ASSIGN,
		token.MINUS_ASSIGN, token.ASTERISK_ASSIGN, token.SLASH_ASSIGN,
		token.FLOORDIV_ASSIGN, token.PERCENT_ASSIGN, token.POWER_ASSIGN,
		token.BITWISE_AND, token.BITWISE_OR, token.BITWISE_XOR,
		token.COMPLEMENT, token.SHIFT_LEFT, token.SHIFT_RIGHT,
		token.NEWLINE, token.EOF,
	}
	expectTypes(t, input, want)
}

func TestKeywordsAndIdentifiers(t *testing.T) {
	toks := collect("def while for_ x import")
	if toks[0].Type != token.DEF {
		t.Errorf("def = %s", toks[0].Type)
	}
	if toks[1].Type != token.WHILE {
		t.Errorf("while = %s", toks[1].Type)
	}
	if toks[2].Type != token.IDENT || toks[2].Literal != "for_" {
		t.Errorf("for_ should be an identifier, got %s %q", toks[2].Type, toks[2].Literal)
	}
	if toks[3].Type != token.IDENT {
		t.Errorf("x = %s", toks[3].Type)
	}
	if toks[4].Type != token.FORBIDDEN || toks[4].Literal != "import" {
		t.Errorf("import should lex as FORBIDDEN, got %s %q", toks[4].Type, toks[4].Literal)
	}
}

func TestNumbers(t *testing.T) {
	tests := []struct {
		input   string
		typ     token.TokenType
		literal string
	}{
		{"42", token.INT, "42"},
		{"0", token.INT, "0"},
		{"0x1f", token.INT, "0x1f"},
		{"0o17", token.INT, "0o17"},
		{"0b101", token.INT, "0b101"},
		{"3.14", token.FLOAT, "3.14"},
		{"1e10", token.FLOAT, "1e10"},
		{"2.5e-3", token.FLOAT, "2.5e-3"},
		{".5", token.FLOAT, ".5"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			tok := collect(tt.input)[0]
			if tok.Type != tt.typ || tok.Literal != tt.literal {
				t.Errorf("got %s %q, want %s %q", tok.Type, tok.Literal, tt.typ, tt.literal)
			}
		})
	}
}

func TestStrings(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"single quotes", `'hello'`, "hello"},
		{"double quotes", `"hello"`, "hello"},
		{"escapes", `'a\tb\nc'`, "a\tb\nc"},
		{"escaped quote", `'it\'s'`, "it's"},
		{"triple quoted", `"""line one
line two"""`, "line one\nline two"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok := collect(tt.input)[0]
			if tok.Type != token.STRING {
				t.Fatalf("type = %s, want STRING", tok.Type)
			}
			if tok.Literal != tt.want {
				t.Errorf("literal = %q, want %q", tok.Literal, tt.want)
			}
		})
	}
}

func TestIndentDedent(t *testing.T) {
	input := "if x:\n    a = 1\n    if y:\n        b = 2\nc = 3\n"
	want := []token.TokenType{
		token.IF, token.IDENT, token.COLON, token.NEWLINE,
		token.INDENT, token.IDENT, token.ASSIGN, token.INT, token.NEWLINE,
		token.IF, token.IDENT, token.COLON, token.NEWLINE,
		token.INDENT, token.IDENT, token.ASSIGN, token.INT, token.NEWLINE,
		token.DEDENT, token.DEDENT,
		token.IDENT, token.ASSIGN, token.INT, token.NEWLINE,
		token.EOF,
	}
	expectTypes(t, input, want)
}

func TestDedentAtEOF(t *testing.T) {
	input := "while x:\n    x = x - 1"
	toks := collect(input)
	n := len(toks)
	if toks[n-1].Type != token.EOF || toks[n-2].Type != token.DEDENT {
		t.Errorf("input should end NEWLINE DEDENT EOF, got %v", types(toks)[n-3:])
	}
}

func TestBlankAndCommentLinesIgnored(t *testing.T) {
	input := "a = 1\n\n# comment\n   \nb = 2\n"
	want := []token.TokenType{
		token.IDENT, token.ASSIGN, token.INT, token.NEWLINE,
		token.IDENT, token.ASSIGN, token.INT, token.NEWLINE,
		token.EOF,
	}
	expectTypes(t, input, want)
}

func TestImplicitLineJoining(t *testing.T) {
	input := "x = [1,\n     2,\n     3]\n"
	for _, tok := range collect(input) {
		if tok.Type == token.INDENT || tok.Type == token.DEDENT {
			t.Fatalf("no indent tokens expected inside brackets, got %s", tok.Type)
		}
	}
	newlines := 0
	for _, tok := range collect(input) {
		if tok.Type == token.NEWLINE {
			newlines++
		}
	}
	if newlines != 1 {
		t.Errorf("newlines = %d, want 1", newlines)
	}
}

func TestBackslashContinuation(t *testing.T) {
	input := "x = 1 + \\\n    2\n"
	want := []token.TokenType{
		token.IDENT, token.ASSIGN, token.INT, token.PLUS, token.INT,
		token.NEWLINE, token.EOF,
	}
	expectTypes(t, input, want)
}

func TestInconsistentIndentation(t *testing.T) {
	input := "if x:\n        a = 1\n    b = 2\n"
	found := false
	for _, tok := range collect(input) {
		if tok.Type == token.ILLEGAL {
			found = true
			break
		}
	}
	if !found {
		t.Error("expected an ILLEGAL token for inconsistent dedent")
	}
}

func TestLineNumbers(t *testing.T) {
	toks := collect("a = 1\nb = 2\nc = 3\n")
	byLiteral := map[string]int{}
	for _, tok := range toks {
		if tok.Type == token.IDENT {
			byLiteral[tok.Literal] = tok.Line
		}
	}
	if byLiteral["a"] != 1 || byLiteral["b"] != 2 || byLiteral["c"] != 3 {
		t.Errorf("line numbers = %v", byLiteral)
	}
}
