package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/closecrowd/apyshell/internal/ast"
	"github.com/closecrowd/apyshell/internal/lexer"
	"github.com/closecrowd/apyshell/internal/token"
)

const (
	_ int = iota
	LOWEST
	TERNARY     // x if c else y
	LOGICAL_OR  // or
	LOGICAL_AND // and
	UNARY_NOT   // not x
	COMPARISON  // == != < <= > >= in, not in, is, is not
	BITWISE_OR
	BITWISE_XOR
	BITWISE_AND
	SHIFT
	SUM     // + -
	PRODUCT // * / // %
	PREFIX  // -x +x ~x
	POWER   // ** (right associative)
	CALL    // f(x), a.b
	INDEX   // a[i]
)

var precedences = map[token.TokenType]int{
	token.IF:          TERNARY,
	token.OR:          LOGICAL_OR,
	token.AND:         LOGICAL_AND,
	token.EQ:          COMPARISON,
	token.NOT_EQ:      COMPARISON,
	token.LT:          COMPARISON,
	token.LT_EQ:       COMPARISON,
	token.GT:          COMPARISON,
	token.GT_EQ:       COMPARISON,
	token.IN:          COMPARISON,
	token.NOT:         COMPARISON, // `not in`
	token.IS:          COMPARISON,
	token.BITWISE_OR:  BITWISE_OR,
	token.BITWISE_XOR: BITWISE_XOR,
	token.BITWISE_AND: BITWISE_AND,
	token.SHIFT_LEFT:  SHIFT,
	token.SHIFT_RIGHT: SHIFT,
	token.PLUS:        SUM,
	token.MINUS:       SUM,
	token.ASTERISK:    PRODUCT,
	token.SLASH:       PRODUCT,
	token.FLOORDIV:    PRODUCT,
	token.PERCENT:     PRODUCT,
	token.POWER:       POWER,
	token.LPAREN:      CALL,
	token.PERIOD:      CALL,
	token.LBRACKET:    INDEX,
}

var comparisonOps = map[token.TokenType]string{
	token.EQ:     "==",
	token.NOT_EQ: "!=",
	token.LT:     "<",
	token.LT_EQ:  "<=",
	token.GT:     ">",
	token.GT_EQ:  ">=",
	token.IN:     "in",
	token.IS:     "is",
}

type (
	prefixParseFn func() ast.Expression
	infixParseFn  func(ast.Expression) ast.Expression
)

type Parser struct {
	l      *lexer.Lexer
	errors []string

	curToken  token.Token
	peekToken token.Token

	prefixParseFns map[token.TokenType]prefixParseFn
	infixParseFns  map[token.TokenType]infixParseFn
}

func New(l *lexer.Lexer) *Parser {
	p := &Parser{
		l:      l,
		errors: []string{},
	}

	p.prefixParseFns = make(map[token.TokenType]prefixParseFn)
	p.registerPrefix(token.IDENT, p.parseName)
	p.registerPrefix(token.INT, p.parseIntLiteral)
	p.registerPrefix(token.FLOAT, p.parseFloatLiteral)
	p.registerPrefix(token.STRING, p.parseStringLiteral)
	p.registerPrefix(token.TRUE, p.parseBoolLiteral)
	p.registerPrefix(token.FALSE, p.parseBoolLiteral)
	p.registerPrefix(token.NONE, p.parseNoneLiteral)
	p.registerPrefix(token.MINUS, p.parseUnaryExpression)
	p.registerPrefix(token.PLUS, p.parseUnaryExpression)
	p.registerPrefix(token.COMPLEMENT, p.parseUnaryExpression)
	p.registerPrefix(token.NOT, p.parseNotExpression)
	p.registerPrefix(token.LPAREN, p.parseGroupedExpression)
	p.registerPrefix(token.LBRACKET, p.parseListOrComp)
	p.registerPrefix(token.LBRACE, p.parseDictLiteral)

	p.infixParseFns = make(map[token.TokenType]infixParseFn)
	for _, tt := range []token.TokenType{
		token.PLUS, token.MINUS, token.ASTERISK, token.SLASH, token.FLOORDIV,
		token.PERCENT, token.POWER, token.BITWISE_AND, token.BITWISE_OR,
		token.BITWISE_XOR, token.SHIFT_LEFT, token.SHIFT_RIGHT,
	} {
		p.registerInfix(tt, p.parseBinaryExpression)
	}
	for tt := range comparisonOps {
		p.registerInfix(tt, p.parseCompareExpression)
	}
	p.registerInfix(token.NOT, p.parseCompareExpression) // not in
	p.registerInfix(token.AND, p.parseBoolExpression)
	p.registerInfix(token.OR, p.parseBoolExpression)
	p.registerInfix(token.IF, p.parseTernaryExpression)
	p.registerInfix(token.LPAREN, p.parseCallExpression)
	p.registerInfix(token.LBRACKET, p.parseSubscriptExpression)
	p.registerInfix(token.PERIOD, p.parseAttributeExpression)

	// Read two tokens, so curToken and peekToken are both set
	p.nextToken()
	p.nextToken()

	return p
}

func (p *Parser) registerPrefix(tokenType token.TokenType, fn prefixParseFn) {
	p.prefixParseFns[tokenType] = fn
}

func (p *Parser) registerInfix(tokenType token.TokenType, fn infixParseFn) {
	p.infixParseFns[tokenType] = fn
}

func (p *Parser) Errors() []string {
	return p.errors
}

func (p *Parser) addError(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	p.errors = append(p.errors, fmt.Sprintf("%s at line %d", msg, p.curToken.Line))
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

func (p *Parser) curTokenIs(t token.TokenType) bool  { return p.curToken.Type == t }
func (p *Parser) peekTokenIs(t token.TokenType) bool { return p.peekToken.Type == t }

func (p *Parser) expectPeek(t token.TokenType) bool {
	if p.peekTokenIs(t) {
		p.nextToken()
		return true
	}
	p.addError("expected %s, got %s", t, p.peekToken.Type)
	return false
}

func (p *Parser) peekPrecedence() int {
	if pr, ok := precedences[p.peekToken.Type]; ok {
		return pr
	}
	return LOWEST
}

func (p *Parser) curPrecedence() int {
	if pr, ok := precedences[p.curToken.Type]; ok {
		return pr
	}
	return LOWEST
}

// ParseModule parses a whole script.
func (p *Parser) ParseModule() *ast.Module {
	module := &ast.Module{Statements: []ast.Statement{}}

	for !p.curTokenIs(token.EOF) {
		if p.curTokenIs(token.NEWLINE) || p.curTokenIs(token.SEMICOLON) {
			p.nextToken()
			continue
		}
		stmt := p.parseStatement()
		if stmt != nil {
			module.Statements = append(module.Statements, stmt)
		}
		p.nextToken()
		if len(p.errors) > 25 {
			break // don't flood on hopeless input
		}
	}

	return module
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (p *Parser) parseStatement() ast.Statement {
	switch p.curToken.Type {
	case token.IF:
		return p.parseIfStatement()
	case token.WHILE:
		return p.parseWhileStatement()
	case token.FOR:
		return p.parseForStatement()
	case token.TRY:
		return p.parseTryStatement()
	case token.DEF:
		return p.parseFunctionDef()
	case token.RETURN:
		return p.parseReturnStatement()
	case token.RAISE:
		return p.parseRaiseStatement()
	case token.ASSERT:
		return p.parseAssertStatement()
	case token.DEL:
		return p.parseDeleteStatement()
	case token.PASS:
		return &ast.PassStatement{Token: p.curToken}
	case token.BREAK:
		return &ast.BreakStatement{Token: p.curToken}
	case token.CONTINUE:
		return &ast.ContinueStatement{Token: p.curToken}
	case token.FORBIDDEN:
		p.addError("'%s' is not supported", p.curToken.Literal)
		p.skipToEndOfLine()
		return nil
	case token.ILLEGAL:
		p.addError("unexpected input %q", p.curToken.Literal)
		p.skipToEndOfLine()
		return nil
	default:
		return p.parseExpressionLikeStatement()
	}
}

func (p *Parser) skipToEndOfLine() {
	for !p.curTokenIs(token.NEWLINE) && !p.curTokenIs(token.EOF) {
		p.nextToken()
	}
}

// parseExpressionLikeStatement handles plain expressions, assignments and
// augmented assignments; the distinction is only visible after the first
// expression list has been read.
func (p *Parser) parseExpressionLikeStatement() ast.Statement {
	tok := p.curToken
	first := p.parseTestlist()
	if first == nil {
		p.skipToEndOfLine()
		return nil
	}

	switch p.peekToken.Type {
	case token.ASSIGN:
		stmt := &ast.AssignStatement{Token: tok, Targets: []ast.Expression{}}
		target := first
		for p.peekTokenIs(token.ASSIGN) {
			if !p.markTarget(target, ast.Store) {
				return nil
			}
			stmt.Targets = append(stmt.Targets, target)
			p.nextToken() // '='
			p.nextToken()
			target = p.parseTestlist()
			if target == nil {
				return nil
			}
		}
		stmt.Value = target
		return stmt

	case token.PLUS_ASSIGN, token.MINUS_ASSIGN, token.ASTERISK_ASSIGN,
		token.SLASH_ASSIGN, token.FLOORDIV_ASSIGN, token.PERCENT_ASSIGN,
		token.POWER_ASSIGN:
		if !p.markTarget(first, ast.Store) {
			return nil
		}
		p.nextToken()
		op := strings.TrimSuffix(p.curToken.Literal, "=")
		p.nextToken()
		value := p.parseTestlist()
		if value == nil {
			return nil
		}
		return &ast.AugAssignStatement{Token: tok, Target: first, Op: op, Value: value}
	}

	return &ast.ExpressionStatement{Token: tok, Value: first}
}

// markTarget switches an expression tree into Store/Del context, rejecting
// anything that is not assignable.
func (p *Parser) markTarget(expr ast.Expression, ctx ast.ExprContext) bool {
	switch e := expr.(type) {
	case *ast.Name:
		e.Ctx = ctx
	case *ast.AttributeExpression:
		e.Ctx = ctx
	case *ast.SubscriptExpression:
		e.Ctx = ctx
	case *ast.TupleLiteral:
		e.Ctx = ctx
		for _, el := range e.Elements {
			if !p.markTarget(el, ctx) {
				return false
			}
		}
	case *ast.ListLiteral:
		e.Ctx = ctx
		for _, el := range e.Elements {
			if !p.markTarget(el, ctx) {
				return false
			}
		}
	default:
		p.addError("cannot assign to %s", expr.String())
		return false
	}
	return true
}

// parseTestlist parses `expr (, expr)*`, wrapping multiple entries in an
// unparenthesized tuple (a, b = b, a).
func (p *Parser) parseTestlist() ast.Expression {
	tok := p.curToken
	first := p.parseExpression(LOWEST)
	if first == nil {
		return nil
	}
	if !p.peekTokenIs(token.COMMA) {
		return first
	}
	elements := []ast.Expression{first}
	for p.peekTokenIs(token.COMMA) {
		p.nextToken()
		if p.endOfList() {
			break // trailing comma
		}
		p.nextToken()
		next := p.parseExpression(LOWEST)
		if next == nil {
			return nil
		}
		elements = append(elements, next)
	}
	return &ast.TupleLiteral{Token: tok, Elements: elements, Ctx: ast.Load}
}

func (p *Parser) endOfList() bool {
	switch p.peekToken.Type {
	case token.NEWLINE, token.EOF, token.ASSIGN, token.COLON, token.RPAREN,
		token.RBRACKET, token.RBRACE, token.SEMICOLON:
		return true
	}
	return false
}

func (p *Parser) parseIfStatement() ast.Statement {
	stmt := &ast.IfStatement{Token: p.curToken}
	p.nextToken()
	stmt.Test = p.parseExpression(LOWEST)
	stmt.Body = p.parseBlock()

	if p.peekTokenIs(token.ELIF) {
		p.nextToken()
		elif := p.parseIfStatement()
		if elif != nil {
			stmt.OrElse = []ast.Statement{elif}
		}
	} else if p.peekTokenIs(token.ELSE) {
		p.nextToken()
		stmt.OrElse = p.parseBlock()
	}
	return stmt
}

func (p *Parser) parseWhileStatement() ast.Statement {
	stmt := &ast.WhileStatement{Token: p.curToken}
	p.nextToken()
	stmt.Test = p.parseExpression(LOWEST)
	stmt.Body = p.parseBlock()
	if p.peekTokenIs(token.ELSE) {
		p.nextToken()
		stmt.OrElse = p.parseBlock()
	}
	return stmt
}

func (p *Parser) parseForStatement() ast.Statement {
	stmt := &ast.ForStatement{Token: p.curToken}
	p.nextToken()
	target := p.parseTargetList()
	if target == nil {
		return nil
	}
	if !p.markTarget(target, ast.Store) {
		return nil
	}
	stmt.Target = target
	if !p.expectPeek(token.IN) {
		return nil
	}
	p.nextToken()
	stmt.Iter = p.parseTestlist()
	stmt.Body = p.parseBlock()
	if p.peekTokenIs(token.ELSE) {
		p.nextToken()
		stmt.OrElse = p.parseBlock()
	}
	return stmt
}

// parseTargetList parses a for-loop target: NAME or a comma-separated list.
func (p *Parser) parseTargetList() ast.Expression {
	tok := p.curToken
	first := p.parseExpression(COMPARISON) // bind looser than `in`
	if first == nil {
		return nil
	}
	if !p.peekTokenIs(token.COMMA) {
		return first
	}
	elements := []ast.Expression{first}
	for p.peekTokenIs(token.COMMA) {
		p.nextToken()
		p.nextToken()
		next := p.parseExpression(COMPARISON)
		if next == nil {
			return nil
		}
		elements = append(elements, next)
	}
	return &ast.TupleLiteral{Token: tok, Elements: elements, Ctx: ast.Load}
}

func (p *Parser) parseTryStatement() ast.Statement {
	stmt := &ast.TryStatement{Token: p.curToken}
	stmt.Body = p.parseBlock()

	for p.peekTokenIs(token.EXCEPT) {
		p.nextToken()
		handler := &ast.ExceptHandler{Token: p.curToken}
		if !p.peekTokenIs(token.COLON) {
			p.nextToken()
			if !p.curTokenIs(token.IDENT) {
				p.addError("expected exception class name, got %s", p.curToken.Type)
				return nil
			}
			handler.ExcClass = p.curToken.Literal
			if p.peekTokenIs(token.AS) {
				p.nextToken()
				if !p.expectPeek(token.IDENT) {
					return nil
				}
				handler.Name = p.curToken.Literal
			}
		}
		handler.Body = p.parseBlockAfterHeader()
		stmt.Handlers = append(stmt.Handlers, handler)
	}

	if p.peekTokenIs(token.ELSE) {
		p.nextToken()
		stmt.OrElse = p.parseBlock()
	}
	if p.peekTokenIs(token.FINALLY) {
		p.nextToken()
		stmt.Final = p.parseBlock()
	}

	if len(stmt.Handlers) == 0 && stmt.Final == nil {
		p.addError("try statement needs an except or finally clause")
		return nil
	}
	return stmt
}

func (p *Parser) parseFunctionDef() ast.Statement {
	stmt := &ast.FunctionDef{Token: p.curToken}
	if !p.expectPeek(token.IDENT) {
		return nil
	}
	stmt.Name = p.curToken.Literal
	if !p.expectPeek(token.LPAREN) {
		return nil
	}

	seenDefault := false
	for !p.peekTokenIs(token.RPAREN) {
		p.nextToken()
		switch p.curToken.Type {
		case token.ASTERISK:
			if !p.expectPeek(token.IDENT) {
				return nil
			}
			stmt.Vararg = p.curToken.Literal
		case token.POWER:
			if !p.expectPeek(token.IDENT) {
				return nil
			}
			stmt.Varkw = p.curToken.Literal
		case token.IDENT:
			param := ast.Param{Name: p.curToken.Literal}
			if p.peekTokenIs(token.ASSIGN) {
				p.nextToken()
				p.nextToken()
				param.Default = p.parseExpression(LOWEST)
				seenDefault = true
			} else if seenDefault {
				p.addError("non-default argument follows default argument")
				return nil
			}
			stmt.Params = append(stmt.Params, param)
		default:
			p.addError("unexpected token %s in parameter list", p.curToken.Type)
			return nil
		}
		if p.peekTokenIs(token.COMMA) {
			p.nextToken()
		}
	}
	if !p.expectPeek(token.RPAREN) {
		return nil
	}

	stmt.Body = p.parseBlock()
	if len(stmt.Body) == 0 {
		p.addError("function body cannot be empty")
		return nil
	}

	// a leading bare string literal is the doc string
	if es, ok := stmt.Body[0].(*ast.ExpressionStatement); ok {
		if sl, ok := es.Value.(*ast.StringLiteral); ok {
			stmt.Doc = sl.Value
		}
	}
	return stmt
}

func (p *Parser) parseReturnStatement() ast.Statement {
	stmt := &ast.ReturnStatement{Token: p.curToken}
	if p.peekTokenIs(token.NEWLINE) || p.peekTokenIs(token.EOF) || p.peekTokenIs(token.SEMICOLON) {
		return stmt
	}
	p.nextToken()
	stmt.Value = p.parseTestlist()
	return stmt
}

func (p *Parser) parseRaiseStatement() ast.Statement {
	stmt := &ast.RaiseStatement{Token: p.curToken}
	if p.peekTokenIs(token.NEWLINE) || p.peekTokenIs(token.EOF) {
		return stmt
	}
	p.nextToken()
	stmt.Exc = p.parseExpression(LOWEST)
	if p.peekTokenIs(token.FROM) {
		p.nextToken()
		p.nextToken()
		stmt.Cause = p.parseExpression(LOWEST)
	}
	return stmt
}

func (p *Parser) parseAssertStatement() ast.Statement {
	stmt := &ast.AssertStatement{Token: p.curToken}
	p.nextToken()
	stmt.Test = p.parseExpression(LOWEST)
	if p.peekTokenIs(token.COMMA) {
		p.nextToken()
		p.nextToken()
		stmt.Msg = p.parseExpression(LOWEST)
	}
	return stmt
}

func (p *Parser) parseDeleteStatement() ast.Statement {
	stmt := &ast.DeleteStatement{Token: p.curToken}
	for {
		p.nextToken()
		target := p.parseExpression(LOWEST)
		if target == nil {
			return nil
		}
		if !p.markTarget(target, ast.Del) {
			return nil
		}
		stmt.Targets = append(stmt.Targets, target)
		if !p.peekTokenIs(token.COMMA) {
			break
		}
		p.nextToken()
	}
	return stmt
}

// parseBlock parses `: suite`, where suite is either inline statements on the
// same line or an indented block.
func (p *Parser) parseBlock() []ast.Statement {
	if !p.expectPeek(token.COLON) {
		return nil
	}
	return p.parseBlockAfterHeader()
}

func (p *Parser) parseBlockAfterHeader() []ast.Statement {
	if !p.curTokenIs(token.COLON) {
		if !p.expectPeek(token.COLON) {
			return nil
		}
	}

	var body []ast.Statement

	// inline suite: if x: a = 1; b = 2
	if !p.peekTokenIs(token.NEWLINE) {
		for {
			p.nextToken()
			stmt := p.parseStatement()
			if stmt != nil {
				body = append(body, stmt)
			}
			if p.peekTokenIs(token.SEMICOLON) {
				p.nextToken()
				continue
			}
			break
		}
		return body
	}

	p.nextToken() // NEWLINE
	if !p.expectPeek(token.INDENT) {
		return nil
	}

	for !p.peekTokenIs(token.DEDENT) && !p.peekTokenIs(token.EOF) {
		p.nextToken()
		if p.curTokenIs(token.NEWLINE) || p.curTokenIs(token.SEMICOLON) {
			continue
		}
		stmt := p.parseStatement()
		if stmt != nil {
			body = append(body, stmt)
		}
	}
	p.nextToken() // DEDENT
	return body
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (p *Parser) parseExpression(precedence int) ast.Expression {
	prefix := p.prefixParseFns[p.curToken.Type]
	if prefix == nil {
		p.addError("unexpected %s", describeToken(p.curToken))
		return nil
	}
	leftExp := prefix()

	for leftExp != nil && precedence < p.peekPrecedence() {
		infix := p.infixParseFns[p.peekToken.Type]
		if infix == nil {
			return leftExp
		}
		p.nextToken()
		leftExp = infix(leftExp)
	}

	return leftExp
}

func describeToken(t token.Token) string {
	if t.Type == token.NEWLINE {
		return "end of line"
	}
	if t.Type == token.EOF {
		return "end of input"
	}
	return fmt.Sprintf("%q", t.Literal)
}

func (p *Parser) parseName() ast.Expression {
	return &ast.Name{Token: p.curToken, Value: p.curToken.Literal, Ctx: ast.Load}
}

func (p *Parser) parseIntLiteral() ast.Expression {
	lit := p.curToken.Literal
	value, err := strconv.ParseInt(lit, 0, 64)
	if err != nil {
		p.addError("could not parse %q as an integer", lit)
		return nil
	}
	return &ast.IntLiteral{Token: p.curToken, Value: value}
}

func (p *Parser) parseFloatLiteral() ast.Expression {
	value, err := strconv.ParseFloat(p.curToken.Literal, 64)
	if err != nil {
		p.addError("could not parse %q as a number", p.curToken.Literal)
		return nil
	}
	return &ast.FloatLiteral{Token: p.curToken, Value: value}
}

func (p *Parser) parseStringLiteral() ast.Expression {
	lit := &ast.StringLiteral{Token: p.curToken, Value: p.curToken.Literal}
	// adjacent string literals concatenate
	for p.peekTokenIs(token.STRING) {
		p.nextToken()
		lit.Value += p.curToken.Literal
	}
	return lit
}

func (p *Parser) parseBoolLiteral() ast.Expression {
	return &ast.BoolLiteral{Token: p.curToken, Value: p.curTokenIs(token.TRUE)}
}

func (p *Parser) parseNoneLiteral() ast.Expression {
	return &ast.NoneLiteral{Token: p.curToken}
}

func (p *Parser) parseUnaryExpression() ast.Expression {
	expr := &ast.UnaryExpression{Token: p.curToken, Op: p.curToken.Literal}
	p.nextToken()
	expr.Operand = p.parseExpression(PREFIX)
	if expr.Operand == nil {
		return nil
	}
	return expr
}

func (p *Parser) parseNotExpression() ast.Expression {
	expr := &ast.UnaryExpression{Token: p.curToken, Op: "not"}
	p.nextToken()
	expr.Operand = p.parseExpression(UNARY_NOT)
	if expr.Operand == nil {
		return nil
	}
	return expr
}

func (p *Parser) parseBinaryExpression(left ast.Expression) ast.Expression {
	expr := &ast.BinaryExpression{
		Token: p.curToken,
		Left:  left,
		Op:    p.curToken.Literal,
	}
	precedence := p.curPrecedence()
	if expr.Op == "**" {
		precedence-- // right associative
	}
	p.nextToken()
	expr.Right = p.parseExpression(precedence)
	if expr.Right == nil {
		return nil
	}
	return expr
}

// parseCompareExpression collects a full comparison chain so that
// `a < b < c` evaluates left-to-right with short-circuiting.
func (p *Parser) parseCompareExpression(left ast.Expression) ast.Expression {
	expr := &ast.CompareExpression{Token: p.curToken, Left: left}

	for {
		op, ok := p.comparisonOp()
		if !ok {
			return nil
		}
		p.nextToken()
		right := p.parseExpression(COMPARISON)
		if right == nil {
			return nil
		}
		expr.Ops = append(expr.Ops, op)
		expr.Comparators = append(expr.Comparators, right)

		next := p.peekToken.Type
		if _, isCmp := comparisonOps[next]; !isCmp && next != token.NOT {
			break
		}
		p.nextToken()
	}
	return expr
}

// comparisonOp resolves the operator at curToken, folding the two-token
// forms `not in` and `is not`.
func (p *Parser) comparisonOp() (string, bool) {
	switch p.curToken.Type {
	case token.NOT:
		if !p.expectPeek(token.IN) {
			return "", false
		}
		return "not in", true
	case token.IS:
		if p.peekTokenIs(token.NOT) {
			p.nextToken()
			return "is not", true
		}
		return "is", true
	default:
		op, ok := comparisonOps[p.curToken.Type]
		if !ok {
			p.addError("unexpected comparison operator %q", p.curToken.Literal)
			return "", false
		}
		return op, true
	}
}

func (p *Parser) parseBoolExpression(left ast.Expression) ast.Expression {
	op := p.curToken.Literal // "and" / "or"
	expr := &ast.BoolExpression{Token: p.curToken, Op: op, Values: []ast.Expression{left}}
	precedence := p.curPrecedence()

	for {
		p.nextToken()
		right := p.parseExpression(precedence)
		if right == nil {
			return nil
		}
		expr.Values = append(expr.Values, right)
		if !p.peekTokenIs(token.AND) && !p.peekTokenIs(token.OR) {
			break
		}
		if p.peekToken.Literal != op {
			break
		}
		p.nextToken()
	}
	return expr
}

// parseTernaryExpression handles `body if test else orelse`; curToken is IF
// and `left` is the body.
func (p *Parser) parseTernaryExpression(left ast.Expression) ast.Expression {
	expr := &ast.IfExpression{Token: p.curToken, Body: left}
	p.nextToken()
	expr.Test = p.parseExpression(TERNARY)
	if expr.Test == nil {
		return nil
	}
	if !p.expectPeek(token.ELSE) {
		return nil
	}
	p.nextToken()
	expr.OrElse = p.parseExpression(TERNARY - 1)
	if expr.OrElse == nil {
		return nil
	}
	return expr
}

func (p *Parser) parseCallExpression(fn ast.Expression) ast.Expression {
	call := &ast.CallExpression{Token: p.curToken, Func: fn}

	for !p.peekTokenIs(token.RPAREN) {
		p.nextToken()
		switch {
		case p.curTokenIs(token.ASTERISK):
			p.nextToken()
			call.StarArg = p.parseExpression(LOWEST)
		case p.curTokenIs(token.POWER):
			p.nextToken()
			value := p.parseExpression(LOWEST)
			if value == nil {
				return nil
			}
			call.Keywords = append(call.Keywords, ast.Keyword{Name: "", Value: value})
		case p.curTokenIs(token.IDENT) && p.peekTokenIs(token.ASSIGN):
			name := p.curToken.Literal
			for _, kw := range call.Keywords {
				if kw.Name == name {
					p.addError("keyword argument repeated: %s", name)
					return nil
				}
			}
			p.nextToken()
			p.nextToken()
			value := p.parseExpression(LOWEST)
			if value == nil {
				return nil
			}
			call.Keywords = append(call.Keywords, ast.Keyword{Name: name, Value: value})
		default:
			arg := p.parseExpression(LOWEST)
			if arg == nil {
				return nil
			}
			if len(call.Keywords) > 0 {
				p.addError("positional argument follows keyword argument")
				return nil
			}
			call.Args = append(call.Args, arg)
		}
		if p.peekTokenIs(token.COMMA) {
			p.nextToken()
		}
	}
	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	return call
}

func (p *Parser) parseAttributeExpression(value ast.Expression) ast.Expression {
	expr := &ast.AttributeExpression{Token: p.curToken, Value: value, Ctx: ast.Load}
	if !p.expectPeek(token.IDENT) {
		return nil
	}
	expr.Attr = p.curToken.Literal
	return expr
}

// parseSubscriptExpression handles a[i], a[1:2], a[::-1] and the extended
// form a[1:, ::2].
func (p *Parser) parseSubscriptExpression(value ast.Expression) ast.Expression {
	expr := &ast.SubscriptExpression{Token: p.curToken, Value: value, Ctx: ast.Load}

	var dims []ast.Expression
	for {
		p.nextToken()
		dim := p.parseSubscriptDim()
		if dim == nil {
			return nil
		}
		dims = append(dims, dim)
		if !p.curTokenIs(token.COMMA) {
			break
		}
	}
	if !p.curTokenIs(token.RBRACKET) {
		p.addError("expected ] in subscript, got %s", p.curToken.Type)
		return nil
	}

	if len(dims) == 1 {
		expr.Index = dims[0]
	} else {
		expr.Index = &ast.ExtSliceExpression{Token: expr.Token, Dims: dims}
	}
	return expr
}

// parseSubscriptDim parses a single dimension. On return curToken is the
// terminator (]), or the separating comma.
func (p *Parser) parseSubscriptDim() ast.Expression {
	tok := p.curToken
	var lower ast.Expression

	if !p.curTokenIs(token.COLON) {
		lower = p.parseExpression(LOWEST)
		if lower == nil {
			return nil
		}
		p.nextToken()
		if !p.curTokenIs(token.COLON) {
			return lower // plain index; curToken is ] or ,
		}
	}

	// we are on the first ':'
	slice := &ast.SliceExpression{Token: tok, Lower: lower}
	p.nextToken()
	if !p.curTokenIs(token.COLON) && !p.curTokenIs(token.RBRACKET) && !p.curTokenIs(token.COMMA) {
		slice.Upper = p.parseExpression(LOWEST)
		p.nextToken()
	}
	if p.curTokenIs(token.COLON) {
		p.nextToken()
		if !p.curTokenIs(token.RBRACKET) && !p.curTokenIs(token.COMMA) {
			slice.Step = p.parseExpression(LOWEST)
			p.nextToken()
		}
	}
	return slice
}

func (p *Parser) parseGroupedExpression() ast.Expression {
	tok := p.curToken // '('

	if p.peekTokenIs(token.RPAREN) { // empty tuple
		p.nextToken()
		return &ast.TupleLiteral{Token: tok, Ctx: ast.Load}
	}

	p.nextToken()
	first := p.parseExpression(LOWEST)
	if first == nil {
		return nil
	}

	if !p.peekTokenIs(token.COMMA) {
		if !p.expectPeek(token.RPAREN) {
			return nil
		}
		return first
	}

	tuple := &ast.TupleLiteral{Token: tok, Elements: []ast.Expression{first}, Ctx: ast.Load}
	for p.peekTokenIs(token.COMMA) {
		p.nextToken()
		if p.peekTokenIs(token.RPAREN) {
			break
		}
		p.nextToken()
		el := p.parseExpression(LOWEST)
		if el == nil {
			return nil
		}
		tuple.Elements = append(tuple.Elements, el)
	}
	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	return tuple
}

// parseListOrComp parses a list literal or a list comprehension.
func (p *Parser) parseListOrComp() ast.Expression {
	tok := p.curToken // '['

	if p.peekTokenIs(token.RBRACKET) {
		p.nextToken()
		return &ast.ListLiteral{Token: tok, Ctx: ast.Load}
	}

	p.nextToken()
	first := p.parseExpression(LOWEST)
	if first == nil {
		return nil
	}

	if p.peekTokenIs(token.FOR) {
		return p.parseListComp(tok, first)
	}

	list := &ast.ListLiteral{Token: tok, Elements: []ast.Expression{first}, Ctx: ast.Load}
	for p.peekTokenIs(token.COMMA) {
		p.nextToken()
		if p.peekTokenIs(token.RBRACKET) {
			break
		}
		p.nextToken()
		el := p.parseExpression(LOWEST)
		if el == nil {
			return nil
		}
		list.Elements = append(list.Elements, el)
	}
	if !p.expectPeek(token.RBRACKET) {
		return nil
	}
	return list
}

func (p *Parser) parseListComp(tok token.Token, elt ast.Expression) ast.Expression {
	comp := &ast.ListComp{Token: tok, Elt: elt}

	for p.peekTokenIs(token.FOR) {
		if len(comp.Generators) >= ast.MaxGenerators {
			p.addError("list comprehension supports at most %d for clauses", ast.MaxGenerators)
			return nil
		}
		p.nextToken()
		p.nextToken()
		gen := ast.Comprehension{}
		target := p.parseTargetList()
		if target == nil {
			return nil
		}
		if !p.markTarget(target, ast.Store) {
			return nil
		}
		gen.Target = target
		if !p.expectPeek(token.IN) {
			return nil
		}
		p.nextToken()
		gen.Iter = p.parseExpression(TERNARY) // stop before trailing `if`
		if gen.Iter == nil {
			return nil
		}
		for p.peekTokenIs(token.IF) {
			p.nextToken()
			p.nextToken()
			cond := p.parseExpression(TERNARY)
			if cond == nil {
				return nil
			}
			gen.Ifs = append(gen.Ifs, cond)
		}
		comp.Generators = append(comp.Generators, gen)
	}

	if !p.expectPeek(token.RBRACKET) {
		return nil
	}
	return comp
}

func (p *Parser) parseDictLiteral() ast.Expression {
	dict := &ast.DictLiteral{Token: p.curToken}

	for !p.peekTokenIs(token.RBRACE) {
		p.nextToken()
		key := p.parseExpression(LOWEST)
		if key == nil {
			return nil
		}
		if !p.expectPeek(token.COLON) {
			return nil
		}
		p.nextToken()
		value := p.parseExpression(LOWEST)
		if value == nil {
			return nil
		}
		dict.Keys = append(dict.Keys, key)
		dict.Values = append(dict.Values, value)
		if p.peekTokenIs(token.COMMA) {
			p.nextToken()
		}
	}
	if !p.expectPeek(token.RBRACE) {
		return nil
	}
	return dict
}
