package glow

// precedence is the Pratt parser's climbing ladder, lowest to highest
// binding power (§4.2).
type precedence int

const (
	precNone precedence = iota
	precAssignment
	precTernary
	precOr
	precAnd
	precBitOr
	precBitXor
	precBitAnd
	precEquality
	precComparison
	precShift
	precRange
	precTerm
	precFactor
	precPower
	precUnary
	precCall
	precPrimary
)

// infixPrecedence reports the binding power of tok used as an infix/postfix
// operator, or precNone if tok never continues an expression.
func infixPrecedence(tok TokenType) precedence {
	switch tok {
	case TokQuestion:
		return precTernary
	case TokKwOr:
		return precOr
	case TokKwAnd:
		return precAnd
	case TokPipe:
		return precBitOr
	case TokCaret:
		return precBitXor
	case TokAmp:
		return precBitAnd
	case TokEqualEqual, TokBangEqual:
		return precEquality
	case TokLess, TokLessEqual, TokGreater, TokGreaterEqual:
		return precComparison
	case TokShl, TokShr:
		return precShift
	case TokDotDot:
		return precRange
	case TokPlus, TokMinus:
		return precTerm
	case TokStar, TokSlash, TokPercent, TokSlashSlash:
		return precFactor
	case TokStarStar:
		return precPower
	case TokDot, TokLParen, TokLBracket:
		return precCall
	}
	return precNone
}

// expression parses a full expression, assignment included.
func (c *Compiler) expression() { c.parsePrecedence(precAssignment) }

// argExpression parses one function-argument/list-element/dict-value
// expression: ternary and below, with assignment disabled so that
// compound-assignment's synthetic-local bookkeeping (which assumes no
// unregistered temporaries are already on the value stack) stays valid —
// assignment only ever fires where canAssign is true, which parsePrecedence
// only grants at precAssignment and below.
func (c *Compiler) argExpression() { c.parsePrecedence(precTernary) }

func (c *Compiler) parsePrecedence(prec precedence) {
	c.advance()
	canAssign := prec <= precAssignment
	if !c.prefix(c.prev.Type, canAssign) {
		c.error("expected expression")
		return
	}
	for infixPrecedence(c.cur.Type) >= prec && infixPrecedence(c.cur.Type) != precNone {
		c.advance()
		c.infix(c.prev.Type, canAssign)
	}
}

// prefix dispatches the token that begins an expression (a literal, a
// unary operator, a grouping, self/parent, a collection literal, or an
// anonymous function). Returns false if tok cannot begin an expression.
func (c *Compiler) prefix(tok TokenType, canAssign bool) bool {
	switch tok {
	case TokNumber:
		n, ok := parseNumberLiteral(c.prev.Text)
		if !ok {
			c.error("invalid numeric literal")
			return true
		}
		c.emitConstant(Number(n))
	case TokString:
		c.emitConstant(c.vm.newStringValue(c.prev.Text))
	case TokInterpolation:
		c.stringInterpolation()
	case TokKwNil:
		c.emitOp(OpNil)
	case TokKwTrue:
		c.emitOp(OpTrue)
	case TokKwFalse:
		c.emitOp(OpFalse)
	case TokKwEmpty:
		c.emitOp(OpEmpty)
	case TokIdent:
		c.identifierRef(c.prev.Text, canAssign)
	case TokKwSelf:
		c.emitOpU16(OpGetLocal, 0)
		c.selfFlag = true
	case TokKwParent:
		c.parentExpr()
	case TokLParen:
		c.expression()
		c.consume(TokRParen, "expected ')' after expression")
	case TokLBracket:
		c.listLiteral()
	case TokLBrace:
		c.dictLiteral()
	case TokPipe, TokPipePipe:
		c.anonymousFunction()
	case TokMinus:
		c.parsePrecedence(precUnary)
		c.emitOp(OpNegate)
	case TokBang:
		c.parsePrecedence(precUnary)
		c.emitOp(OpNot)
	case TokTilde:
		c.parsePrecedence(precUnary)
		c.emitOp(OpBitNot)
	case TokDotDot:
		// open-lower-bound range: ..upper desugars to 0..upper
		c.emitConstant(Number(0))
		c.parsePrecedence(precRange)
		c.emitOp(OpRange)
	default:
		return false
	}
	return true
}

// infix dispatches a continuation token once a left operand has already
// been parsed and its bytecode emitted.
func (c *Compiler) infix(tok TokenType, canAssign bool) {
	switch tok {
	case TokPlus, TokMinus, TokStar, TokSlash, TokPercent, TokSlashSlash, TokStarStar,
		TokAmp, TokPipe, TokCaret, TokShl, TokShr,
		TokEqualEqual, TokBangEqual, TokLess, TokLessEqual, TokGreater, TokGreaterEqual:
		c.binary(tok)
	case TokDotDot:
		c.rangeInfix()
	case TokKwAnd:
		c.logicalAnd()
	case TokKwOr:
		c.logicalOr()
	case TokQuestion:
		c.ternary()
	case TokDot:
		c.dotInfix(canAssign)
	case TokLBracket:
		c.indexInfix(canAssign)
	case TokLParen:
		argc := c.argumentList()
		c.emitOpU8(OpCall, uint8(argc))
	}
}

func (c *Compiler) binary(op TokenType) {
	prec := infixPrecedence(op)
	next := prec + 1
	if op == TokStarStar {
		next = prec // right-associative
	}
	c.parsePrecedence(next)
	switch op {
	case TokPlus:
		c.emitOp(OpAdd)
	case TokMinus:
		c.emitOp(OpSub)
	case TokStar:
		c.emitOp(OpMul)
	case TokSlash:
		c.emitOp(OpDiv)
	case TokPercent:
		c.emitOp(OpMod)
	case TokSlashSlash:
		c.emitOp(OpFloorDiv)
	case TokStarStar:
		c.emitOp(OpPow)
	case TokAmp:
		c.emitOp(OpBitAnd)
	case TokPipe:
		c.emitOp(OpBitOr)
	case TokCaret:
		c.emitOp(OpBitXor)
	case TokShl:
		c.emitOp(OpShl)
	case TokShr:
		c.emitOp(OpShr)
	case TokEqualEqual:
		c.emitOp(OpEqual)
	case TokBangEqual:
		c.emitOp(OpEqual)
		c.emitOp(OpNot)
	case TokLess:
		c.emitOp(OpLess)
	case TokGreater:
		c.emitOp(OpGreater)
	case TokLessEqual:
		c.emitOp(OpGreater)
		c.emitOp(OpNot)
	case TokGreaterEqual:
		c.emitOp(OpLess)
		c.emitOp(OpNot)
	}
}

func (c *Compiler) rangeInfix() {
	c.parsePrecedence(precRange + 1)
	c.emitOp(OpRange)
}

// logicalAnd short-circuits: if the left operand is falsey, jump over the
// right operand leaving the left value; otherwise pop it and evaluate the
// right operand (§4.2 "Jumps").
func (c *Compiler) logicalAnd() {
	endJump := c.emitJump(OpJumpIfFalse)
	c.emitOp(OpPop)
	c.parsePrecedence(precAnd)
	c.patchJump(endJump)
}

func (c *Compiler) logicalOr() {
	elseJump := c.emitJump(OpJumpIfFalse)
	endJump := c.emitJump(OpJump)
	c.patchJump(elseJump)
	c.emitOp(OpPop)
	c.parsePrecedence(precOr)
	c.patchJump(endJump)
}

func (c *Compiler) ternary() {
	thenJump := c.emitJump(OpJumpIfFalse)
	c.emitOp(OpPop)
	c.expression()
	elseJump := c.emitJump(OpJump)
	c.patchJump(thenJump)
	c.emitOp(OpPop)
	c.consume(TokColon, "expected ':' in ternary expression")
	c.expression()
	c.patchJump(elseJump)
}

// stringInterpolation compiles a TokInterpolation/TokString run of
// fragments into a chain of OP_STRINGIFY + OP_ADD, consuming lexer tokens
// until the terminating TokString fragment closes the literal.
func (c *Compiler) stringInterpolation() {
	c.emitConstant(c.vm.newStringValue(c.prev.Text))
	for {
		c.expression()
		c.emitOp(OpStringify)
		c.emitOp(OpAdd)
		if c.check(TokInterpolation) {
			c.advance()
			c.emitConstant(c.vm.newStringValue(c.prev.Text))
			c.emitOp(OpAdd)
			continue
		}
		c.consume(TokString, "expected end of interpolated string")
		c.emitConstant(c.vm.newStringValue(c.prev.Text))
		c.emitOp(OpAdd)
		return
	}
}

func (c *Compiler) listLiteral() {
	n := 0
	c.skipNewlines()
	for !c.check(TokRBracket) {
		c.argExpression()
		n++
		c.skipNewlines()
		if !c.match(TokComma) {
			break
		}
		c.skipNewlines()
	}
	c.consume(TokRBracket, "expected ']' after list elements")
	c.emitOpU16(OpList, uint16(n))
}

func (c *Compiler) dictLiteral() {
	n := 0
	c.skipNewlines()
	for !c.check(TokRBrace) {
		switch {
		case c.check(TokIdent):
			c.advance()
			c.emitConstant(c.vm.newStringValue(c.prev.Text))
		default:
			c.argExpression()
		}
		c.consume(TokColon, "expected ':' after dict key")
		c.argExpression()
		n++
		c.skipNewlines()
		if !c.match(TokComma) {
			break
		}
		c.skipNewlines()
	}
	c.consume(TokRBrace, "expected '}' after dict entries")
	c.emitOpU16(OpDict, uint16(n))
}

// anonymousFunction compiles `|a, b| { ... }` (or `||{ ... }` with no
// params) into a nested ObjFunction and emits OP_CLOSURE over it.
func (c *Compiler) anonymousFunction() {
	if c.prev.Type == TokPipePipe {
		c.compileFunctionBody("", false, []string{})
		return
	}
	params, variadic := c.parseParamList(TokPipe)
	c.consume(TokPipe, "expected '|' after anonymous function parameters")
	c.compileFunctionBody("", variadic, params)
}

// identifierRef compiles a bare identifier reference, handling plain and
// compound assignment when canAssign permits it.
func (c *Compiler) identifierRef(name string, canAssign bool) {
	getOp, setOp, arg := c.resolveVariableOps(name)
	if canAssign {
		if cop, ok := compoundAssignOp(c.cur.Type); ok {
			c.advance()
			c.emitOpU16(getOp, arg)
			c.expression()
			c.emitOp(cop)
			c.emitOpU16(setOp, arg)
			return
		}
		if c.match(TokEqual) {
			c.expression()
			c.emitOpU16(setOp, arg)
			return
		}
	}
	c.emitOpU16(getOp, arg)
}

func (c *Compiler) resolveVariableOps(name string) (OpCode, OpCode, uint16) {
	if slot := resolveLocal(c.scope, name); slot != -1 {
		return OpGetLocal, OpSetLocal, uint16(slot)
	}
	if slot := resolveUpvalue(c.scope, name); slot != -1 {
		return OpGetUpvalue, OpSetUpvalue, uint16(slot)
	}
	return OpGetGlobal, OpSetGlobal, c.identifierConstant(name)
}

// compoundAssignOp maps a compound-assignment token to the binary opcode
// its desugaring applies between the current value and the right operand.
func compoundAssignOp(tok TokenType) (OpCode, bool) {
	switch tok {
	case TokPlusEqual:
		return OpAdd, true
	case TokMinusEqual:
		return OpSub, true
	case TokStarEqual:
		return OpMul, true
	case TokSlashEqual:
		return OpDiv, true
	case TokPercentEqual:
		return OpMod, true
	case TokAmpEqual:
		return OpBitAnd, true
	case TokPipeEqual:
		return OpBitOr, true
	case TokCaretEqual:
		return OpBitXor, true
	case TokShlEqual:
		return OpShl, true
	case TokShrEqual:
		return OpShr, true
	}
	return 0, false
}

// dotInfix compiles `.name`, including the call form `.name(args)` (which
// emits a fused Invoke rather than Get+Call) and property assignment.
// selfFlag, set by the `self` prefix rule and cleared here, routes access
// through the privacy-permitting Self variants.
func (c *Compiler) dotInfix(canAssign bool) {
	self := c.selfFlag
	c.selfFlag = false
	c.consume(TokIdent, "expected property name after '.'")
	name := c.prev.Text
	nameConst := c.identifierConstant(name)

	if c.match(TokLParen) {
		argc := c.argumentList()
		if self {
			c.emitOp(OpInvokeSelf)
		} else {
			c.emitOp(OpInvoke)
		}
		c.emitU16(nameConst)
		c.emit(uint8(argc))
		return
	}

	if canAssign {
		if cop, ok := compoundAssignOp(c.cur.Type); ok {
			c.advance()
			c.emitOp(OpDup)
			if self {
				c.emitOpU16(OpGetSelfProperty, nameConst)
			} else {
				c.emitOpU16(OpGetProperty, nameConst)
			}
			c.expression()
			c.emitOp(cop)
			c.emitOpU16(OpSetProperty, nameConst)
			return
		}
		if c.match(TokEqual) {
			c.expression()
			c.emitOpU16(OpSetProperty, nameConst)
			return
		}
	}

	if self {
		c.emitOpU16(OpGetSelfProperty, nameConst)
	} else {
		c.emitOpU16(OpGetProperty, nameConst)
	}
}

// indexInfix compiles `[i]` and `[a,b]`. Single-index assignment (plain or
// compound) stashes the receiver and index into synthetic local slots so
// both the get and set half can address them without a stack-duplication
// opcode; this assumes no unregistered temporaries already sit above the
// receiver on the value stack, which parsePrecedence guarantees by only
// allowing canAssign where that invariant holds (statement-level
// expressions, never inside call/list/dict sub-expressions).
func (c *Compiler) indexInfix(canAssign bool) {
	c.selfFlag = false
	c.argExpression()
	if c.match(TokComma) {
		c.argExpression()
		c.consume(TokRBracket, "expected ']' after ranged index")
		c.emitOpU8(OpGetIndex, 2)
		return
	}
	c.consume(TokRBracket, "expected ']' after index")

	if canAssign {
		if cop, ok := compoundAssignOp(c.cur.Type); ok {
			c.advance()
			recvSlot := c.addLocal("")
			idxSlot := c.addLocal("")
			c.emitOpU16(OpGetLocal, uint16(recvSlot))
			c.emitOpU16(OpGetLocal, uint16(idxSlot))
			c.emitOpU8(OpGetIndex, 1)
			c.expression()
			c.emitOp(cop)
			c.emitOp(OpSetIndex)
			c.scope.locals = c.scope.locals[:len(c.scope.locals)-2]
			return
		}
		if c.match(TokEqual) {
			c.addLocal("")
			c.addLocal("")
			c.expression()
			c.emitOp(OpSetIndex)
			c.scope.locals = c.scope.locals[:len(c.scope.locals)-2]
			return
		}
	}

	c.emitOpU8(OpGetIndex, 1)
}

// argumentList compiles a parenthesized call's comma-separated arguments,
// assuming the opening '(' has already been consumed, and returns the
// count.
func (c *Compiler) argumentList() int {
	n := 0
	c.skipNewlines()
	for !c.check(TokRParen) {
		c.argExpression()
		n++
		c.skipNewlines()
		if !c.match(TokComma) {
			break
		}
		c.skipNewlines()
	}
	c.consume(TokRParen, "expected ')' after arguments")
	if n > 0xFF {
		c.error("too many arguments")
	}
	return n
}

// parentExpr compiles `parent(args)` (implicit same-name super call) and
// `parent.name(args)` (named super-method call). Both resolve the
// superclass at runtime via the currently-executing method's Owner chain
// (superSearchStart), so the receiver pushed here is plain `self`, matching
// Invoke's `receiver := peek(argc)` convention — no compile-time superclass
// binding is needed. Bare `parent` outside a call position is not a legal
// expression.
func (c *Compiler) parentExpr() {
	if c.class == nil || !c.class.hasSuper {
		c.error("'parent' used outside a subclass")
	}
	c.emitOpU16(OpGetLocal, 0)
	if c.match(TokLParen) {
		argc := c.argumentList()
		c.emitOpU8(OpSuperInvokeSelf, uint8(argc))
		return
	}
	c.consume(TokDot, "expected '.' or '(' after 'parent'")
	c.consume(TokIdent, "expected superclass method name")
	name := c.prev.Text
	nameConst := c.identifierConstant(name)
	c.consume(TokLParen, "expected '(' after superclass method name")
	argc := c.argumentList()
	c.emitOp(OpSuperInvoke)
	c.emitU16(nameConst)
	c.emit(uint8(argc))
}
