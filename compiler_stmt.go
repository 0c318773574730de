package glow

// declaration parses one top-level-or-block declaration: a var/def/class
// declaration, or any other statement, recovering to the next statement
// boundary on error (§7 panic-mode recovery).
func (c *Compiler) declaration() {
	switch {
	case c.match(TokKwVar):
		c.varDeclaration()
	case c.match(TokKwDef):
		c.funcDeclaration()
	case c.match(TokKwClass):
		c.classDeclaration()
	default:
		c.statement()
	}
	if c.panicking {
		c.synchronize()
	}
}

func (c *Compiler) varDeclaration() {
	c.consume(TokIdent, "expected variable name")
	name := c.prev.Text
	if c.match(TokEqual) {
		c.expression()
	} else {
		c.emitOp(OpNil)
	}
	c.defineVariable(name)
	c.terminateStatement()
}

// defineVariable finishes a var/param declaration: locals need no bytecode
// (the initializer's value already sits in its slot), globals/module
// values need an explicit OP_DEFINE_GLOBAL.
func (c *Compiler) defineVariable(name string) {
	if c.scope.scopeDepth > 0 {
		c.declareLocal(name)
		return
	}
	c.emitOpU16(OpDefineGlobal, c.identifierConstant(name))
}

func (c *Compiler) statement() {
	switch {
	case c.match(TokLBrace):
		c.beginScope()
		c.block()
		c.endScope()
	case c.match(TokKwIf):
		c.ifStatement()
	case c.match(TokKwWhile):
		c.whileStatement()
	case c.match(TokKwDo):
		c.doWhileStatement()
	case c.match(TokKwFor):
		c.forStatement()
	case c.match(TokKwUsing):
		c.usingStatement()
	case c.match(TokKwBreak):
		c.breakStatement()
	case c.match(TokKwContinue):
		c.continueStatement()
	case c.match(TokKwReturn):
		c.returnStatement()
	case c.match(TokKwEcho):
		c.expression()
		c.emitOp(OpEcho)
		c.terminateStatement()
	case c.match(TokKwDie):
		c.expression()
		c.emitOp(OpDie)
		c.terminateStatement()
	case c.match(TokKwAssert):
		c.assertStatement()
	case c.match(TokKwImport):
		c.importStatement()
	case c.match(TokKwTry):
		c.tryStatement()
	default:
		c.expressionStatement()
	}
}

// block compiles declarations until the closing '}', consuming it. The
// final statement in a block may omit its terminator (§6).
func (c *Compiler) block() {
	c.skipNewlines()
	for !c.check(TokRBrace) && !c.check(TokEOF) {
		c.declaration()
		c.skipNewlines()
	}
	c.consume(TokRBrace, "expected '}' after block")
}

func (c *Compiler) expressionStatement() {
	c.expression()
	c.emitOp(OpPop)
	c.terminateStatement()
}

func (c *Compiler) assertStatement() {
	c.expression()
	if c.match(TokComma) {
		c.expression()
	} else {
		c.emitOp(OpNil)
	}
	c.emitOp(OpAssert)
	c.terminateStatement()
}

func (c *Compiler) ifStatement() {
	c.consume(TokLParen, "expected '(' after 'if'")
	c.expression()
	c.consume(TokRParen, "expected ')' after condition")
	thenJump := c.emitJump(OpJumpIfFalse)
	c.emitOp(OpPop)
	c.statementOrBlock()
	elseJump := c.emitJump(OpJump)
	c.patchJump(thenJump)
	c.emitOp(OpPop)
	if c.match(TokKwElse) {
		c.statementOrBlock()
	}
	c.patchJump(elseJump)
}

// statementOrBlock compiles a single statement, honoring newline-skipping
// so `if (x)\n  stmt` and `if (x) { ... }` both parse.
func (c *Compiler) statementOrBlock() {
	c.skipNewlines()
	c.statement()
}

func (c *Compiler) pushLoop() *loopState {
	l := &loopState{enclosing: c.scope.loop, breakScanFrom: len(c.chunk().Code)}
	c.scope.loop = l
	return l
}

func (c *Compiler) popLoop(l *loopState) {
	c.patchBreaks(l.breakScanFrom)
	c.scope.loop = l.enclosing
}

func (c *Compiler) whileStatement() {
	loopStart := len(c.chunk().Code)
	l := c.pushLoop()
	l.continueTo = loopStart
	c.consume(TokLParen, "expected '(' after 'while'")
	c.expression()
	c.consume(TokRParen, "expected ')' after condition")
	exitJump := c.emitJump(OpJumpIfFalse)
	c.emitOp(OpPop)
	c.statementOrBlock()
	c.emitLoop(loopStart)
	c.patchJump(exitJump)
	c.emitOp(OpPop)
	c.popLoop(l)
}

// doWhileStatement compiles `do { body } while (cond)`: body runs at least
// once, continue jumps to the condition test.
func (c *Compiler) doWhileStatement() {
	bodyStart := len(c.chunk().Code)
	l := c.pushLoop()
	c.statementOrBlock()
	c.consume(TokKwWhile, "expected 'while' after 'do' body")
	condStart := len(c.chunk().Code)
	l.continueTo = condStart
	c.consume(TokLParen, "expected '(' after 'while'")
	c.expression()
	c.consume(TokRParen, "expected ')' after condition")
	c.terminateStatement()
	// loop back to body while condition holds
	falseJump := c.emitJump(OpJumpIfFalse)
	c.emitOp(OpPop)
	c.emitLoop(bodyStart)
	c.patchJump(falseJump)
	c.emitOp(OpPop)
	c.popLoop(l)
}

// forStatement compiles `for(init; cond; step) body` using the
// increment-before-body technique: the step clause is compiled first (right
// after the condition test), with a jump over it to the body on each first
// pass, so loopStart always points at the correct continue target without
// needing a continue-placeholder opcode (§4.2, §9 design note).
func (c *Compiler) forStatement() {
	if !c.check(TokLParen) {
		c.consume(TokIdent, "expected loop variable or '(' after 'for'")
		c.forInStatement(c.prev.Text)
		return
	}

	c.beginScope()
	c.consume(TokLParen, "expected '(' after 'for'")

	if c.match(TokSemicolon) {
		// no initializer
	} else if c.match(TokKwVar) {
		c.consume(TokIdent, "expected variable name")
		name := c.prev.Text
		if c.match(TokEqual) {
			c.expression()
		} else {
			c.emitOp(OpNil)
		}
		c.defineVariable(name)
		c.consume(TokSemicolon, "expected ';' after loop initializer")
	} else {
		c.expression()
		c.emitOp(OpPop)
		c.consume(TokSemicolon, "expected ';' after loop initializer")
	}

	loopStart := len(c.chunk().Code)
	exitJump := -1
	if !c.check(TokSemicolon) {
		c.expression()
		exitJump = c.emitJump(OpJumpIfFalse)
		c.emitOp(OpPop)
	}
	c.consume(TokSemicolon, "expected ';' after loop condition")

	bodyJump := -1
	continueTo := loopStart
	if !c.check(TokRParen) {
		bodyJump = c.emitJump(OpJump)
		incrStart := len(c.chunk().Code)
		continueTo = incrStart
		c.expression()
		c.emitOp(OpPop)
		c.emitLoop(loopStart)
		c.patchJump(bodyJump)
	}
	c.consume(TokRParen, "expected ')' after for clauses")

	l := c.pushLoop()
	l.continueTo = continueTo
	c.statementOrBlock()
	c.emitLoop(continueTo)

	if exitJump != -1 {
		c.patchJump(exitJump)
		c.emitOp(OpPop)
	}
	c.popLoop(l)
	c.endScope()
}

// forInStatement compiles `for k[,v] in expr { body }` per §4.2's
// desugaring: a hidden iterator local, hidden key/value locals (the
// implementer's-note in §9 requires these three be contiguous, in that
// order), and a loop calling `@itern`/`@iter`. With one loop variable it
// binds the iterated value (matching scenario 1: `for i in 0..5`), with two
// the first binds the key and the second the value; an unnamed key binding
// uses the internal placeholder name "_" per §4.2.
func (c *Compiler) forInStatement(firstName string) {
	c.beginScope()
	keyName := "_"
	valueName := firstName
	if c.match(TokComma) {
		keyName = firstName
		c.consume(TokIdent, "expected value variable name")
		valueName = c.prev.Text
	}
	c.consume(TokKwIn, "expected 'in' in for-in loop")
	c.expression()
	iterSlot := c.addLocal("")
	c.emitConstant(Nil)
	keySlot := c.addLocal(keyName)
	c.emitConstant(Nil)
	valueSlot := c.addLocal(valueName)
	c.consume(TokLBrace, "expected '{' after for-in header")

	iternConst := c.identifierConstant("@itern")
	iterConst := c.identifierConstant("@iter")

	loopStart := len(c.chunk().Code)
	l := c.pushLoop()
	l.continueTo = loopStart

	c.emitOpU16(OpGetLocal, uint16(iterSlot))
	c.emitOpU16(OpGetLocal, uint16(keySlot))
	c.emitOp(OpInvoke)
	c.emitU16(iternConst)
	c.emit(1)
	c.emitOpU16(OpSetLocal, uint16(keySlot))
	exitJump := c.emitJump(OpJumpIfFalse)
	c.emitOp(OpPop)

	c.emitOpU16(OpGetLocal, uint16(iterSlot))
	c.emitOpU16(OpGetLocal, uint16(keySlot))
	c.emitOp(OpInvoke)
	c.emitU16(iterConst)
	c.emit(1)
	c.emitOpU16(OpSetLocal, uint16(valueSlot))
	c.emitOp(OpPop)

	c.beginScope()
	c.block()
	c.endScope()

	c.emitLoop(loopStart)
	c.patchJump(exitJump)
	c.emitOp(OpPop)
	c.popLoop(l)
	c.endScope()
}

func (c *Compiler) breakStatement() {
	if c.scope.loop == nil {
		c.error("'break' outside a loop")
	} else {
		c.emitJump(OpBreakPlaceholder)
	}
	c.terminateStatement()
}

func (c *Compiler) continueStatement() {
	if c.scope.loop == nil {
		c.error("'continue' outside a loop")
	} else {
		c.emitLoop(c.scope.loop.continueTo)
	}
	c.terminateStatement()
}

func (c *Compiler) returnStatement() {
	if c.check(TokNewline) || c.check(TokSemicolon) || c.check(TokRBrace) || c.check(TokEOF) {
		c.emitOp(OpNil)
	} else {
		c.expression()
	}
	c.emitOp(OpReturn)
	c.terminateStatement()
}

// --- functions ---

// parseParamList parses a comma-separated parameter list up to (not
// including) terminator, returning the parameter names and whether the
// last one is a variadic `...` tail.
func (c *Compiler) parseParamList(terminator TokenType) ([]string, bool) {
	var params []string
	variadic := false
	c.skipNewlines()
	for !c.check(terminator) {
		if c.match(TokDotDot) {
			c.consume(TokDot, "expected '...' for variadic parameter")
			variadic = true
			break
		}
		c.consume(TokIdent, "expected parameter name")
		params = append(params, c.prev.Text)
		c.skipNewlines()
		if !c.match(TokComma) {
			break
		}
		c.skipNewlines()
	}
	return params, variadic
}

func (c *Compiler) funcDeclaration() {
	c.consume(TokIdent, "expected function name")
	name := c.prev.Text
	if c.scope.scopeDepth > 0 {
		c.declareLocal(name)
	}
	c.compileFunctionBody(name, false, nil)
	c.defineVariable(name)
}

// compileFunctionBody compiles a function's parameter list (unless params
// is already known, as for anonymous functions) and body into a fresh
// funcScope/chunk, then emits OP_CLOSURE over the finished ObjFunction in
// the enclosing scope.
func (c *Compiler) compileFunctionBody(name string, variadicKnown bool, knownParams []string) {
	fn := &ObjFunction{Name: name}
	fnObj := &Object{Type: ObjTypeFunction, payload: fn}
	enclosing := c.scope
	c.scope = &funcScope{enclosing: enclosing, fnObj: fnObj, fn: fn, isMethod: enclosing.isMethod}
	c.beginScope()
	c.addLocal("self") // slot 0 reserved; unused by free functions

	params := knownParams
	variadic := variadicKnown
	if knownParams == nil && !variadicKnown {
		c.consume(TokLParen, "expected '(' after function name")
		params, variadic = c.parseParamList(TokRParen)
		c.consume(TokRParen, "expected ')' after parameters")
	}
	for _, p := range params {
		c.declareLocal(p)
	}
	fn.Arity = len(params)
	fn.IsVariadic = variadic

	c.consume(TokLBrace, "expected '{' before function body")
	c.block()
	c.emitReturnNil()

	compiled := c.scope.fn
	compiledObj := c.scope.fnObj
	c.vm.heap.alloc(compiledObj)
	c.scope = enclosing

	idx := c.addConstant(Obj(compiledObj))
	c.emitOpU16(OpClosure, idx)
	c.emit(byte(len(compiled.upvalueRefs)))
	for _, ref := range compiled.upvalueRefs {
		if ref.IsLocal {
			c.emit(1)
		} else {
			c.emit(0)
		}
		c.emitU16(uint16(ref.Index))
	}
}

// --- classes ---

func (c *Compiler) classDeclaration() {
	c.consume(TokIdent, "expected class name")
	name := c.prev.Text
	nameConst := c.identifierConstant(name)

	if c.scope.scopeDepth > 0 {
		c.declareLocal(name)
	}
	c.emitOpU16(OpClass, nameConst)
	c.defineVariable(name)

	cs := &classScope{enclosing: c.class}
	c.class = cs

	hasSuper := false
	if c.match(TokLess) {
		c.consume(TokIdent, "expected superclass name")
		superName := c.prev.Text
		if superName == name {
			c.error("a class cannot inherit from itself")
		}
		// OP_INHERIT reads peek(1)=superclass, peek(0)=subclass and leaves
		// both on the stack; pop both here and re-fetch the class fresh
		// below, since the "parent" keyword resolves via the runtime
		// Owner-chain (superSearchStart), not a compiled local.
		c.namedVariableGet(superName)
		c.namedVariableGet(name)
		c.emitOp(OpInherit)
		c.emitOp(OpPop)
		c.emitOp(OpPop)
		hasSuper = true
	}
	cs.hasSuper = hasSuper

	c.namedVariableGet(name)
	c.consume(TokLBrace, "expected '{' before class body")
	c.skipNewlines()
	for !c.check(TokRBrace) && !c.check(TokEOF) {
		c.classMember(name)
		c.skipNewlines()
	}
	c.consume(TokRBrace, "expected '}' after class body")
	c.emitOp(OpPop)

	c.class = cs.enclosing
}

// classMember compiles one field or method inside a class body; className
// is used to detect the initializer (a method whose name matches the
// class's own name).
func (c *Compiler) classMember(className string) {
	isStatic := c.match(TokKwStatic)

	if c.match(TokKwVar) {
		c.consume(TokIdent, "expected field name")
		fieldName := c.prev.Text
		nameConst := c.identifierConstant(fieldName)
		if c.match(TokEqual) {
			c.expression()
		} else {
			c.emitOp(OpNil)
		}
		c.emitOp(OpClassProperty)
		c.emitU16(nameConst)
		if isStatic {
			c.emit(1)
		} else {
			c.emit(0)
		}
		c.terminateStatement()
		return
	}

	c.consume(TokKwDef, "expected 'var' or 'def' in class body")
	c.consume(TokIdent, "expected method name")
	methodName := c.prev.Text
	nameConst := c.identifierConstant(methodName)
	enclosingMethod := c.scope.isMethod
	c.scope.isMethod = true
	c.compileFunctionBody(methodName, false, nil)
	c.scope.isMethod = enclosingMethod
	if isStatic {
		c.setLastFunctionStatic()
	}
	c.emitOpU16(OpMethod, nameConst)
}

// setLastFunctionStatic marks the most recently baked function constant's
// ObjFunction.isStaticFlag. compileFunctionBody has already pushed the
// constant by the time classMember calls this.
func (c *Compiler) setLastFunctionStatic() {
	constants := c.chunk().Constants
	if len(constants) == 0 {
		return
	}
	v := constants[len(constants)-1]
	if v.Is(ObjTypeFunction) {
		v.obj.asFunction().isStaticFlag = true
	}
}

// --- switch ---

func (c *Compiler) usingStatement() {
	c.consume(TokLParen, "expected '(' after 'using'")
	c.expression()
	c.consume(TokRParen, "expected ')' after using subject")

	sw := &ObjSwitch{Table: make(map[valueKey]int)}
	swObj := c.vm.newObject(ObjTypeSwitch, sw)
	idx := c.addConstant(Obj(swObj))
	c.emitOpU16(OpSwitch, idx)
	anchor := len(c.chunk().Code)

	var exitJumps []int
	c.consume(TokLBrace, "expected '{' after using subject")
	c.skipNewlines()
	sawDefault := false
	for c.check(TokKwWhen) || c.check(TokKwDefault) {
		if c.match(TokKwWhen) {
			for {
				lit := c.switchLiteral()
				sw.Table[switchKey(lit)] = len(c.chunk().Code) - anchor
				if !c.match(TokComma) {
					break
				}
			}
			c.consume(TokLBrace, "expected '{' after when clause")
			c.beginScope()
			c.block()
			c.endScope()
			exitJumps = append(exitJumps, c.emitJump(OpJump))
		} else {
			c.advance() // TokKwDefault
			sawDefault = true
			sw.Default = len(c.chunk().Code) - anchor
			c.consume(TokLBrace, "expected '{' after default clause")
			c.beginScope()
			c.block()
			c.endScope()
			exitJumps = append(exitJumps, c.emitJump(OpJump))
		}
		c.skipNewlines()
	}
	c.consume(TokRBrace, "expected '}' after using body")

	if !sawDefault {
		sw.Default = len(c.chunk().Code) - anchor
	}
	for _, j := range exitJumps {
		c.patchJump(j)
	}
	sw.Exit = len(c.chunk().Code) - anchor
}

// switchLiteral parses one `when` literal: a number, string, true, false,
// or nil (switch tables only ever hold these literal kinds).
func (c *Compiler) switchLiteral() Value {
	switch {
	case c.match(TokNumber):
		n, ok := parseNumberLiteral(c.prev.Text)
		if !ok {
			c.error("invalid numeric literal in when clause")
		}
		return Number(n)
	case c.match(TokString):
		return c.vm.newStringValue(c.prev.Text)
	case c.match(TokKwTrue):
		return True
	case c.match(TokKwFalse):
		return False
	case c.match(TokKwNil):
		return Nil
	}
	c.errorAtCurrent("expected literal in when clause")
	return Nil
}

// --- try/catch/finally ---

// tryStatement compiles `try { } catch Type [name] { } finally { }` per
// §4.2/§4.7: OP_TRY is emitted up front with a 6-byte payload of
// placeholders (catch-class-name-constant, catch address, finally address),
// back-patched once the handler bodies' addresses are known. `finally` must
// run whether the try body completed normally or an exception was caught, so
// only the try-body's own success path needs a jump (over the catch body,
// landing at finally-or-end); the catch body, once run, simply falls
// through into the same finally-or-end code rather than jumping past it.
func (c *Compiler) tryStatement() {
	c.emitOp(OpTry)
	classConstAt := len(c.chunk().Code)
	c.emitU16(0)
	catchAddrAt := len(c.chunk().Code)
	c.emitU16(0)
	finallyAddrAt := len(c.chunk().Code)
	c.emitU16(0)

	c.consume(TokLBrace, "expected '{' after 'try'")
	c.beginScope()
	c.block()
	c.endScope()
	c.emitOp(OpPopTry)
	overCatch := c.emitJump(OpJump)

	hasCatch := false
	if c.match(TokKwCatch) {
		hasCatch = true
		c.consume(TokIdent, "expected exception class name")
		className := c.prev.Text
		classConst := c.identifierConstant(className)
		c.chunk().PatchU16(classConstAt, classConst)
		c.chunk().PatchU16(catchAddrAt, uint16(len(c.chunk().Code)))

		c.beginScope()
		if c.check(TokIdent) {
			c.advance()
			bindName := c.prev.Text
			c.addLocal(bindName)
		} else {
			c.addLocal("")
		}
		c.consume(TokLBrace, "expected '{' after catch clause")
		c.block()
		c.endScope()
		c.emitOp(OpPopTry)
	}
	c.patchJump(overCatch)

	if c.match(TokKwFinally) {
		c.chunk().PatchU16(finallyAddrAt, uint16(len(c.chunk().Code)))
		c.consume(TokLBrace, "expected '{' after 'finally'")
		c.beginScope()
		c.block()
		c.endScope()
		c.emitOp(OpTrue)
		c.emitOp(OpPublishTry)
	} else if !hasCatch {
		c.error("'try' requires a 'catch' or 'finally' clause")
	}
}

// --- imports ---

// importStatement compiles `import a.b.c`, `import a.b.c as name`, and
// `import a.b.c { x, y, * }`. Native imports (path beginning with `_`) are
// checked against the VM's pre-registered native map directly, so
// OP_NATIVE_MODULE instantiation stays lazy (§9 design note: compiling an
// import must not force a native module's side effects to run before the
// import statement actually executes).
func (c *Compiler) importStatement() {
	c.consume(TokIdent, "expected import path")
	path := c.prev.Text
	for c.match(TokDot) {
		c.consume(TokIdent, "expected import path segment")
		path += "." + c.prev.Text
	}

	isNative := len(path) > 0 && path[0] == '_'

	if isNative {
		if _, ok := c.vm.natives[path]; !ok {
			c.error("unregistered native module '" + path + "'")
		}
		c.emitOpU16(OpNativeModule, c.addConstant(c.vm.newStringValue(path)))
	} else {
		mod, closure, alreadyLoaded, err := c.vm.loadModule(c.path, path)
		if err != nil {
			c.error(err.Error())
			return
		}
		if alreadyLoaded {
			c.emitConstant(Obj(mod))
		} else {
			closureIdx := c.addConstant(Obj(closure))
			modIdx := c.addConstant(Obj(mod))
			c.emitOpU16(OpCallImport, closureIdx)
			c.emitOp(OpPop)
			c.emitOpU16(OpConstant, modIdx)
		}
	}

	switch {
	case c.match(TokKwAs):
		c.consume(TokIdent, "expected binding name after 'as'")
		name := c.prev.Text
		c.defineVariable(name)
	case c.match(TokLBrace):
		c.importSelectors(isNative)
	default:
		c.emitOp(OpPop)
	}
	c.terminateStatement()
}

// importSelectors compiles `{ x, y, * }` against the module object already
// on top of the stack, eventually popping it.
func (c *Compiler) importSelectors(isNative bool) {
	selectOp := OpSelectImport
	allOp := OpImportAll
	if isNative {
		selectOp = OpSelectNativeImport
		allOp = OpImportAllNative
	}
	c.skipNewlines()
	for !c.check(TokRBrace) {
		if c.match(TokStar) {
			c.emitOp(allOp)
		} else {
			c.consume(TokIdent, "expected import selector name")
			name := c.prev.Text
			c.emitOpU16(selectOp, c.identifierConstant(name))
		}
		c.skipNewlines()
		if !c.match(TokComma) {
			break
		}
		c.skipNewlines()
	}
	c.consume(TokRBrace, "expected '}' after import selectors")
	c.emitOp(OpPop)
}
