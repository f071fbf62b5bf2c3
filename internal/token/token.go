package token

type TokenType string

const (
	ILLEGAL = "ILLEGAL"
	EOF     = "EOF"
	NEWLINE = "NEWLINE"
	INDENT  = "INDENT"
	DEDENT  = "DEDENT"

	// Identifiers + literals
	IDENT  = "IDENT"  // x, total, loadScript_
	INT    = "INT"    // 1343456
	FLOAT  = "FLOAT"  // 3.14, 1e-9
	STRING = "STRING" // "foobar", 'foobar'

	// Operators
	ASSIGN   = "="
	PLUS     = "+"
	MINUS    = "-"
	ASTERISK = "*"
	POWER    = "**"
	SLASH    = "/"
	FLOORDIV = "//"
	PERCENT  = "%"

	PLUS_ASSIGN     = "+="
	MINUS_ASSIGN    = "-="
	ASTERISK_ASSIGN = "*="
	SLASH_ASSIGN    = "/="
	FLOORDIV_ASSIGN = "//="
	PERCENT_ASSIGN  = "%="
	POWER_ASSIGN    = "**="

	LT    = "<"
	LT_EQ = "<="
	GT    = ">"
	GT_EQ = ">="

	EQ     = "=="
	NOT_EQ = "!="

	COMPLEMENT  = "~"
	BITWISE_AND = "&"
	BITWISE_OR  = "|"
	BITWISE_XOR = "^"
	SHIFT_LEFT  = "<<"
	SHIFT_RIGHT = ">>"

	// Delimiters
	PERIOD    = "."
	COMMA     = ","
	SEMICOLON = ";"
	COLON     = ":"
	ARROW     = "->"

	LPAREN   = "("
	RPAREN   = ")"
	LBRACKET = "["
	RBRACKET = "]"
	LBRACE   = "{"
	RBRACE   = "}"

	// Keywords
	DEF      = "DEF"
	RETURN   = "RETURN"
	IF       = "IF"
	ELIF     = "ELIF"
	ELSE     = "ELSE"
	WHILE    = "WHILE"
	FOR      = "FOR"
	IN       = "IN"
	BREAK    = "BREAK"
	CONTINUE = "CONTINUE"
	PASS     = "PASS"
	TRY      = "TRY"
	EXCEPT   = "EXCEPT"
	FINALLY  = "FINALLY"
	RAISE    = "RAISE"
	ASSERT   = "ASSERT"
	DEL      = "DEL"
	AND      = "AND"
	OR       = "OR"
	NOT      = "NOT"
	IS       = "IS"
	AS       = "AS"
	FROM     = "FROM"
	TRUE     = "TRUE"
	FALSE    = "FALSE"
	NONE     = "NONE"

	// Recognized so the parser can reject them with a clear message
	// instead of a generic syntax error.
	FORBIDDEN = "FORBIDDEN" // import, lambda, class, global, yield, with, nonlocal
)

type Token struct {
	Type    TokenType
	Literal string
	Line    int
}

var keywords = map[string]TokenType{
	"def":      DEF,
	"return":   RETURN,
	"if":       IF,
	"elif":     ELIF,
	"else":     ELSE,
	"while":    WHILE,
	"for":      FOR,
	"in":       IN,
	"break":    BREAK,
	"continue": CONTINUE,
	"pass":     PASS,
	"try":      TRY,
	"except":   EXCEPT,
	"finally":  FINALLY,
	"raise":    RAISE,
	"assert":   ASSERT,
	"del":      DEL,
	"and":      AND,
	"or":       OR,
	"not":      NOT,
	"is":       IS,
	"as":       AS,
	"from":     FROM,
	"True":     TRUE,
	"False":    FALSE,
	"None":     NONE,

	"import":   FORBIDDEN,
	"lambda":   FORBIDDEN,
	"class":    FORBIDDEN,
	"global":   FORBIDDEN,
	"nonlocal": FORBIDDEN,
	"yield":    FORBIDDEN,
	"with":     FORBIDDEN,
	"exec":     FORBIDDEN,
	"async":    FORBIDDEN,
	"await":    FORBIDDEN,
}

func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return IDENT
}

// IsKeyword reports whether the name collides with a language keyword and
// therefore can never be used as a symbol name.
func IsKeyword(name string) bool {
	_, ok := keywords[name]
	return ok
}
