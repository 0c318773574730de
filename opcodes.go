package glow

// OpCode is the closed enumeration of §6's opcode set. The compiler and the
// disassembler both step over instructions with codeArgCount (opArgWidth
// plus closureArgWidth), so break-placeholder patching and disassembly can
// never disagree about instruction size; the VM decodes operands inline.
type OpCode uint8

const (
	OpConstant OpCode = iota
	OpNil
	OpTrue
	OpFalse
	OpEmpty
	OpPop
	OpPopN
	OpDup

	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpPow
	OpFloorDiv
	OpNegate

	OpEqual
	OpGreater
	OpLess
	OpNot

	OpBitAnd
	OpBitOr
	OpBitXor
	OpBitNot
	OpShl
	OpShr

	OpAnd // short-circuit: JumpIfFalse-like but consumes differently at compile time (handled via Jump/JumpIfFalse pair)
	OpOr
	OpChoice // ternary merge marker (nullary; branches use Jump/JumpIfFalse)

	OpRange
	OpStringify
	OpEcho

	OpDefineGlobal
	OpGetGlobal
	OpSetGlobal
	OpGetLocal
	OpSetLocal
	OpGetUpvalue
	OpSetUpvalue
	OpGetProperty
	OpGetSelfProperty
	OpSetProperty
	OpGetIndex
	OpGetRangedIndex
	OpSetIndex

	OpJumpIfFalse
	OpJump
	OpBreakPlaceholder
	OpLoop

	OpCall
	OpInvoke
	OpInvokeSelf
	OpSuperInvoke
	OpSuperInvokeSelf
	OpReturn

	OpClass
	OpInherit
	OpMethod
	OpClassProperty

	OpClosure
	OpCloseUpvalue

	OpList
	OpDict

	OpTry
	OpPopTry
	OpPublishTry
	OpDie
	OpAssert

	OpSwitch

	OpCallImport
	OpNativeModule
	OpSelectImport
	OpSelectNativeImport
	OpImportAll
	OpImportAllNative
	OpEjectImport
	OpEjectNativeImport

	opCodeMax
)

// opArgWidth gives the number of operand bytes that follow the opcode byte
// itself. Closure is variable-width (3 + 3 per upvalue) and is not in this
// table; callers that need to skip a whole instruction (e.g. the
// break-placeholder patch scan in the compiler) go through codeArgCount.
var opArgWidth = [opCodeMax]int{
	OpConstant: 2,
	OpPopN:     2,

	OpCall:            1,
	OpGetIndex:        1,
	OpGetRangedIndex:  1,
	OpSuperInvokeSelf: 1,

	OpDefineGlobal:        2,
	OpGetGlobal:           2,
	OpSetGlobal:           2,
	OpGetLocal:            2,
	OpSetLocal:            2,
	OpGetUpvalue:          2,
	OpSetUpvalue:          2,
	OpJumpIfFalse:         2,
	OpJump:                2,
	OpBreakPlaceholder:    2,
	OpLoop:                2,
	OpClass:               2,
	OpGetProperty:         2,
	OpGetSelfProperty:     2,
	OpSetProperty:         2,
	OpList:                2,
	OpDict:                2,
	OpCallImport:          2,
	OpNativeModule:        2,
	OpSelectNativeImport:  2,
	OpSwitch:              2,
	OpMethod:              2,
	OpEjectImport:         2,
	OpEjectNativeImport:   2,
	OpSelectImport:        2,

	OpInvoke:         3,
	OpInvokeSelf:     3,
	OpSuperInvoke:    3,
	OpClassProperty:  3,

	OpTry: 6,

	// OpClosure is variable width; see closureArgWidth.
}

// closureArgWidth computes the total operand width of an OpClosure
// instruction: 2 bytes for the function constant index, 1 byte for the
// upvalue count, plus 3 bytes (islocal byte + 2-byte index) per upvalue.
// countAt is the byte offset of the upvalue-count byte itself (i.e. 3 bytes
// past the opcode).
func closureArgWidth(code []byte, countAt int) int {
	if countAt >= len(code) {
		return 2
	}
	n := int(code[countAt])
	return 2 + 1 + n*3
}

// codeArgCount returns the number of operand bytes following the opcode at
// code[at], used by both the compiler's break-placeholder patch scan and
// the disassembler.
func codeArgCount(op OpCode, code []byte, at int) int {
	if op == OpClosure {
		return closureArgWidth(code, at+3)
	}
	return opArgWidth[op]
}

var opCodeNames = [opCodeMax]string{
	OpConstant: "CONSTANT", OpNil: "NIL", OpTrue: "TRUE", OpFalse: "FALSE", OpEmpty: "EMPTY",
	OpPop: "POP", OpPopN: "POPN", OpDup: "DUP",
	OpAdd: "ADD", OpSub: "SUB", OpMul: "MUL", OpDiv: "DIV", OpMod: "MOD", OpPow: "POW",
	OpFloorDiv: "FLOORDIV", OpNegate: "NEGATE",
	OpEqual: "EQUAL", OpGreater: "GREATER", OpLess: "LESS", OpNot: "NOT",
	OpBitAnd: "BITAND", OpBitOr: "BITOR", OpBitXor: "BITXOR", OpBitNot: "BITNOT",
	OpShl: "SHL", OpShr: "SHR",
	OpAnd: "AND", OpOr: "OR", OpChoice: "CHOICE",
	OpRange: "RANGE", OpStringify: "STRINGIFY", OpEcho: "ECHO",
	OpDefineGlobal: "DEFINE_GLOBAL", OpGetGlobal: "GET_GLOBAL", OpSetGlobal: "SET_GLOBAL",
	OpGetLocal: "GET_LOCAL", OpSetLocal: "SET_LOCAL",
	OpGetUpvalue: "GET_UPVALUE", OpSetUpvalue: "SET_UPVALUE",
	OpGetProperty: "GET_PROPERTY", OpGetSelfProperty: "GET_SELF_PROPERTY", OpSetProperty: "SET_PROPERTY",
	OpGetIndex: "GET_INDEX", OpGetRangedIndex: "GET_RANGED_INDEX", OpSetIndex: "SET_INDEX",
	OpJumpIfFalse: "JUMP_IF_FALSE", OpJump: "JUMP", OpBreakPlaceholder: "BREAK", OpLoop: "LOOP",
	OpCall: "CALL", OpInvoke: "INVOKE", OpInvokeSelf: "INVOKE_SELF",
	OpSuperInvoke: "SUPER_INVOKE", OpSuperInvokeSelf: "SUPER_INVOKE_SELF", OpReturn: "RETURN",
	OpClass: "CLASS", OpInherit: "INHERIT", OpMethod: "METHOD", OpClassProperty: "CLASS_PROPERTY",
	OpClosure: "CLOSURE", OpCloseUpvalue: "CLOSE_UPVALUE",
	OpList: "LIST", OpDict: "DICT",
	OpTry: "TRY", OpPopTry: "POP_TRY", OpPublishTry: "PUBLISH_TRY", OpDie: "DIE", OpAssert: "ASSERT",
	OpSwitch: "SWITCH",
	OpCallImport: "CALL_IMPORT", OpNativeModule: "NATIVE_MODULE",
	OpSelectImport: "SELECT_IMPORT", OpSelectNativeImport: "SELECT_NATIVE_IMPORT",
	OpImportAll: "IMPORT_ALL", OpImportAllNative: "IMPORT_ALL_NATIVE",
	OpEjectImport: "EJECT_IMPORT", OpEjectNativeImport: "EJECT_NATIVE_IMPORT",
}

func (op OpCode) String() string {
	if int(op) < len(opCodeNames) && opCodeNames[op] != "" {
		return opCodeNames[op]
	}
	return "UNKNOWN"
}
