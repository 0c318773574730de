package glow

import (
	"strconv"
	"strings"
)

const maxLocals = 256

// scopeLocal is one entry of a funcScope's local-variable stack (§4.2).
type scopeLocal struct {
	name       string
	depth      int
	isCaptured bool
}

// loopState tracks the current loop's continue target and the bytecode
// offset break-placeholder patching should scan from (§4.2 "Jumps").
type loopState struct {
	enclosing     *loopState
	continueTo    int
	breakScanFrom int
}

// classScope tracks whether the class currently being compiled has a
// superclass, so `parent` resolves only where valid.
type classScope struct {
	enclosing *classScope
	hasSuper  bool
}

// funcScope is the compiler's state for one nested function: its in-
// progress ObjFunction, local-slot table, recorded upvalues, and loop
// nesting (§4.2 "Scopes and locals", "Upvalues").
type funcScope struct {
	enclosing *funcScope
	fnObj     *Object // *ObjFunction being built
	fn        *ObjFunction
	locals    []scopeLocal
	scopeDepth int
	loop      *loopState
	isMethod  bool
}

// Compiler is a single-pass Pratt-parsing bytecode compiler: one source
// file produces one top-level ObjFunction, with nested functions compiled
// recursively into their own chunks (§4.2).
type Compiler struct {
	vm    *VM
	lexer *Lexer
	path  string

	cur, prev Token
	hadError  bool
	panicking bool
	errors    []CompileDiagnostic

	scope    *funcScope
	class    *classScope
	selfFlag bool // set by the `self` prefix rule, consumed by the next dotInfix
}

// compileModule lexes and compiles source into a top-level ObjFunction
// wrapped in *Object, attributing diagnostics to path.
func (vm *VM) compileModule(source, path string) (*Object, error) {
	c := &Compiler{vm: vm, lexer: NewLexer(source), path: path}
	fn := &ObjFunction{Name: "", Chunk: Chunk{}}
	fnObj := &Object{Type: ObjTypeFunction, payload: fn}
	c.scope = &funcScope{fnObj: fnObj, fn: fn}
	c.addLocal("") // slot 0 holds the module closure, as in compileFunctionBody

	c.advance()
	c.skipNewlines()
	for !c.check(TokEOF) {
		c.declaration()
		c.skipNewlines()
	}
	c.emitReturnNil()

	if c.hadError {
		return nil, &CompileError{Path: path, Errors: c.errors}
	}
	vm.heap.alloc(fnObj)
	return fnObj, nil
}

// --- token stream ---

func (c *Compiler) advance() {
	c.prev = c.cur
	for {
		c.cur = c.lexer.Next()
		if c.cur.Type != TokError {
			break
		}
		c.errorAtCurrent(c.cur.Text)
	}
}

func (c *Compiler) check(t TokenType) bool { return c.cur.Type == t }

func (c *Compiler) match(t TokenType) bool {
	if !c.check(t) {
		return false
	}
	c.advance()
	return true
}

func (c *Compiler) consume(t TokenType, message string) {
	if c.cur.Type == t {
		c.advance()
		return
	}
	c.errorAtCurrent(message)
}

// skipNewlines consumes statement-separator tokens between declarations.
func (c *Compiler) skipNewlines() {
	for c.check(TokNewline) || c.check(TokSemicolon) {
		c.advance()
	}
}

func (c *Compiler) terminateStatement() {
	if c.check(TokEOF) || c.check(TokRBrace) {
		return
	}
	if !c.match(TokNewline) && !c.match(TokSemicolon) {
		c.errorAtCurrent("expected end of statement")
	}
	c.skipNewlines()
}

func (c *Compiler) errorAtCurrent(msg string) { c.errorAt(c.cur, msg) }
func (c *Compiler) error(msg string)          { c.errorAt(c.prev, msg) }

func (c *Compiler) errorAt(tok Token, msg string) {
	if c.panicking {
		return
	}
	c.panicking = true
	c.hadError = true
	c.errors = append(c.errors, CompileDiagnostic{Line: tok.Line, Message: msg})
}

// synchronize skips tokens until a likely statement boundary, so the
// compiler can continue surfacing further diagnostics (§7).
func (c *Compiler) synchronize() {
	c.panicking = false
	for !c.check(TokEOF) {
		if c.prev.Type == TokNewline || c.prev.Type == TokSemicolon {
			return
		}
		switch c.cur.Type {
		case TokKwClass, TokKwDef, TokKwVar, TokKwFor, TokKwIf, TokKwWhile, TokKwReturn:
			return
		}
		c.advance()
	}
}

// --- emission ---

func (c *Compiler) chunk() *Chunk { return &c.scope.fn.Chunk }

func (c *Compiler) emit(b byte)     { c.chunk().Write(b, c.prev.Line) }
func (c *Compiler) emitOp(op OpCode) int { return c.chunk().WriteOp(op, c.prev.Line) }

func (c *Compiler) emitU16(v uint16) { c.chunk().WriteU16(v, c.prev.Line) }

func (c *Compiler) emitOpU16(op OpCode, v uint16) {
	c.emitOp(op)
	c.emitU16(v)
}

func (c *Compiler) emitOpU8(op OpCode, v uint8) {
	c.emitOp(op)
	c.emit(v)
}

func (c *Compiler) emitReturnNil() {
	c.emitOp(OpNil)
	c.emitOp(OpReturn)
}

// emitConstant adds v to the current function's constant pool and emits
// OP_CONSTANT referencing it.
func (c *Compiler) emitConstant(v Value) {
	idx := c.chunk().AddConstant(v)
	if idx > 0xFFFF {
		c.error("too many constants in one chunk")
		return
	}
	c.emitOpU16(OpConstant, uint16(idx))
}

func (c *Compiler) addConstant(v Value) uint16 {
	idx := c.chunk().AddConstant(v)
	if idx > 0xFFFF {
		c.error("too many constants in one chunk")
	}
	return uint16(idx)
}

// emitJump emits op with a placeholder 2-byte offset and returns the byte
// offset of the placeholder, to be passed to patchJump once the target is
// known.
func (c *Compiler) emitJump(op OpCode) int {
	c.emitOp(op)
	at := len(c.chunk().Code)
	c.emitU16(0)
	return at
}

func (c *Compiler) patchJump(at int) {
	offset := len(c.chunk().Code) - (at + 2)
	if offset > 0xFFFF {
		c.error("jump too large")
	}
	c.chunk().PatchU16(at, uint16(offset))
}

// emitLoop emits OP_LOOP with a backward offset to loopStart.
func (c *Compiler) emitLoop(loopStart int) {
	c.emitOp(OpLoop)
	offset := len(c.chunk().Code) + 2 - loopStart
	if offset > 0xFFFF {
		c.error("loop body too large")
	}
	c.emitU16(uint16(offset))
}

// patchBreaks scans the current function's code from scanFrom for
// BreakPlaceholder opcodes emitted since the loop started and rewrites
// them to OP_JUMP targeting the current (loop-exit) address, using the
// shared opcode-width table to skip over every other instruction's
// operands correctly (§4.2, §9 design note).
func (c *Compiler) patchBreaks(scanFrom int) {
	code := c.chunk().Code
	i := scanFrom
	for i < len(code) {
		op := OpCode(code[i])
		if op == OpBreakPlaceholder {
			code[i] = byte(OpJump)
			offset := len(code) - (i + 3)
			c.chunk().PatchU16(i+1, uint16(offset))
		}
		i += 1 + codeArgCount(op, code, i)
	}
}

// --- scope / locals ---

func (c *Compiler) beginScope() { c.scope.scopeDepth++ }

func (c *Compiler) endScope() {
	c.scope.scopeDepth--
	locals := c.scope.locals
	for len(locals) > 0 && locals[len(locals)-1].depth > c.scope.scopeDepth {
		if locals[len(locals)-1].isCaptured {
			c.emitOp(OpCloseUpvalue)
		} else {
			c.emitOp(OpPop)
		}
		locals = locals[:len(locals)-1]
	}
	c.scope.locals = locals
}

func (c *Compiler) declareLocal(name string) {
	if c.scope.scopeDepth == 0 {
		return
	}
	for i := len(c.scope.locals) - 1; i >= 0; i-- {
		l := c.scope.locals[i]
		if l.depth != -1 && l.depth < c.scope.scopeDepth {
			break
		}
		if l.name == name {
			c.error("variable with this name already declared in this scope")
			return
		}
	}
	c.addLocal(name)
}

func (c *Compiler) addLocal(name string) int {
	if len(c.scope.locals) >= maxLocals {
		c.error("too many local variables in function")
		return -1
	}
	c.scope.locals = append(c.scope.locals, scopeLocal{name: name, depth: c.scope.scopeDepth})
	return len(c.scope.locals) - 1
}

// resolveLocal searches scope's locals by reverse linear scan, per §4.2.
func resolveLocal(scope *funcScope, name string) int {
	for i := len(scope.locals) - 1; i >= 0; i-- {
		if scope.locals[i].name == name {
			return i
		}
	}
	return -1
}

// resolveUpvalue searches the enclosing compiler chain for name, recording
// capture (local-flag, index) slots and threading captures through
// intermediate functions (§4.2 "Upvalues").
func resolveUpvalue(scope *funcScope, name string) int {
	if scope.enclosing == nil {
		return -1
	}
	if local := resolveLocal(scope.enclosing, name); local != -1 {
		scope.enclosing.locals[local].isCaptured = true
		return addUpvalueRef(scope, uint8(local), true)
	}
	if up := resolveUpvalue(scope.enclosing, name); up != -1 {
		return addUpvalueRef(scope, uint8(up), false)
	}
	return -1
}

func addUpvalueRef(scope *funcScope, index uint8, isLocal bool) int {
	refs := scope.fn.upvalueRefs
	for i, r := range refs {
		if r.Index == index && r.IsLocal == isLocal {
			return i
		}
	}
	scope.fn.upvalueRefs = append(refs, UpvalueRef{IsLocal: isLocal, Index: index})
	scope.fn.UpvalueN = len(scope.fn.upvalueRefs)
	return len(scope.fn.upvalueRefs) - 1
}

// --- identifier / constant helpers ---

func (c *Compiler) identifierConstant(name string) uint16 {
	return c.addConstant(c.vm.newStringValue(name))
}

// namedVariableGet emits the get sequence for name, resolving local →
// upvalue → global in that order.
func (c *Compiler) namedVariableGet(name string) {
	if slot := resolveLocal(c.scope, name); slot != -1 {
		c.emitOpU16(OpGetLocal, uint16(slot))
		return
	}
	if slot := resolveUpvalue(c.scope, name); slot != -1 {
		c.emitOpU16(OpGetUpvalue, uint16(slot))
		return
	}
	c.emitOpU16(OpGetGlobal, c.identifierConstant(name))
}

func (c *Compiler) namedVariableSet(name string) {
	if slot := resolveLocal(c.scope, name); slot != -1 {
		c.emitOpU16(OpSetLocal, uint16(slot))
		return
	}
	if slot := resolveUpvalue(c.scope, name); slot != -1 {
		c.emitOpU16(OpSetUpvalue, uint16(slot))
		return
	}
	c.emitOpU16(OpSetGlobal, c.identifierConstant(name))
}

// --- number / string literal parsing ---

func parseNumberLiteral(text string) (float64, bool) {
	clean := strings.ReplaceAll(text, "_", "")
	switch {
	case strings.HasPrefix(clean, "0b") || strings.HasPrefix(clean, "0B"):
		n, err := strconv.ParseInt(clean[2:], 2, 64)
		return float64(n), err == nil
	case strings.HasPrefix(clean, "0c") || strings.HasPrefix(clean, "0C"):
		n, err := strconv.ParseInt(clean[2:], 8, 64)
		return float64(n), err == nil
	case strings.HasPrefix(clean, "0x") || strings.HasPrefix(clean, "0X"):
		n, err := strconv.ParseInt(clean[2:], 16, 64)
		return float64(n), err == nil
	default:
		n, err := strconv.ParseFloat(clean, 64)
		return n, err == nil
	}
}
