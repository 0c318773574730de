package glow

import (
	"fmt"
	"io"
)

// chunkDumper writes a textual disassembly of a Chunk: a small struct
// carrying the output writer and scratch state across a walk over the
// code, sharing codeArgCount and opCodeNames with the compiler so a
// patching bug can never let the two disagree about instruction width.
type chunkDumper struct {
	chunk *Chunk
	out   io.Writer
	name  string
}

// Disassemble writes a human-readable listing of chunk (labeled name) to w:
// one line per instruction, each prefixed by its byte offset and source
// line (or "|" when it repeats the previous instruction's line), per §4.9.
func Disassemble(w io.Writer, chunk *Chunk, name string) {
	d := chunkDumper{chunk: chunk, out: w, name: name}
	d.dump()
}

func (d *chunkDumper) dump() {
	fmt.Fprintf(d.out, "== %s ==\n", d.name)
	for offset := 0; offset < len(d.chunk.Code); {
		d.instruction(offset)
		offset += 1 + codeArgCount(OpCode(d.chunk.Code[offset]), d.chunk.Code, offset)
	}
	for _, v := range d.chunk.Constants {
		if v.Is(ObjTypeFunction) {
			fn := v.obj.asFunction()
			Disassemble(d.out, &fn.Chunk, fmt.Sprintf("%s.%s", d.name, fn.Name))
		}
	}
}

func (d *chunkDumper) instruction(offset int) int {
	fmt.Fprintf(d.out, "%04d ", offset)
	if offset > 0 && d.chunk.Lines[offset] == d.chunk.Lines[offset-1] {
		fmt.Fprint(d.out, "   | ")
	} else {
		fmt.Fprintf(d.out, "%4d ", d.chunk.Lines[offset])
	}

	op := OpCode(d.chunk.Code[offset])
	name := op.String()

	switch op {
	case OpConstant:
		idx := d.chunk.ReadU16(offset + 1)
		fmt.Fprintf(d.out, "%-18s %4d '%s'\n", name, idx, d.stringifyConstant(int(idx)))
		return offset + 3

	case OpDefineGlobal, OpGetGlobal, OpSetGlobal, OpClass, OpGetProperty,
		OpGetSelfProperty, OpSetProperty, OpList, OpDict, OpSwitch, OpMethod,
		OpCallImport, OpNativeModule, OpSelectImport, OpSelectNativeImport,
		OpEjectImport, OpEjectNativeImport:
		idx := d.chunk.ReadU16(offset + 1)
		fmt.Fprintf(d.out, "%-18s %4d\n", name, idx)
		return offset + 3

	case OpGetLocal, OpSetLocal, OpGetUpvalue, OpSetUpvalue:
		idx := d.chunk.ReadU16(offset + 1)
		fmt.Fprintf(d.out, "%-18s slot %d\n", name, idx)
		return offset + 3

	case OpJumpIfFalse, OpJump, OpBreakPlaceholder, OpLoop:
		jump := d.chunk.ReadU16(offset + 1)
		fmt.Fprintf(d.out, "%-18s %4d\n", name, jump)
		return offset + 3

	case OpCall, OpGetIndex, OpGetRangedIndex, OpSuperInvokeSelf:
		argc := d.chunk.Code[offset+1]
		fmt.Fprintf(d.out, "%-18s (%d args)\n", name, argc)
		return offset + 2

	case OpInvoke, OpInvokeSelf, OpSuperInvoke:
		idx := d.chunk.ReadU16(offset + 1)
		argc := d.chunk.Code[offset+3]
		fmt.Fprintf(d.out, "%-18s %4d (%d args)\n", name, idx, argc)
		return offset + 4

	case OpClassProperty:
		idx := d.chunk.ReadU16(offset + 1)
		static := d.chunk.Code[offset+3]
		fmt.Fprintf(d.out, "%-18s %4d static=%v\n", name, idx, static != 0)
		return offset + 4

	case OpPopN:
		n := d.chunk.ReadU16(offset + 1)
		fmt.Fprintf(d.out, "%-18s %4d\n", name, n)
		return offset + 3

	case OpTry:
		classConst := d.chunk.ReadU16(offset + 1)
		catchAddr := d.chunk.ReadU16(offset + 3)
		finallyAddr := d.chunk.ReadU16(offset + 5)
		fmt.Fprintf(d.out, "%-18s class=%d catch@%d finally@%d\n", name, classConst, catchAddr, finallyAddr)
		return offset + 7

	case OpClosure:
		idx := d.chunk.ReadU16(offset + 1)
		fmt.Fprintf(d.out, "%-18s %4d '%s'\n", name, idx, d.stringifyConstant(int(idx)))
		at := offset + 3
		n := int(d.chunk.Code[at])
		at++
		for i := 0; i < n; i++ {
			isLocal := d.chunk.Code[at] != 0
			uvIdx := d.chunk.ReadU16(at + 1)
			kind := "upvalue"
			if isLocal {
				kind = "local"
			}
			fmt.Fprintf(d.out, "%04d      |                     %s %d\n", at, kind, uvIdx)
			at += 3
		}
		return at

	default:
		fmt.Fprintf(d.out, "%s\n", name)
		return offset + 1
	}
}

func (d *chunkDumper) stringifyConstant(idx int) string {
	if idx < 0 || idx >= len(d.chunk.Constants) {
		return "?"
	}
	v := d.chunk.Constants[idx]
	switch {
	case v.Is(ObjTypeFunction):
		return "<fn " + v.obj.asFunction().Name + ">"
	case v.Is(ObjTypeString):
		return string(v.obj.asString().Bytes)
	case v.IsNumber():
		return formatNumber(v.AsNumber())
	case v.IsBool():
		if v.AsBool() {
			return "true"
		}
		return "false"
	case v.IsNil():
		return "nil"
	default:
		return v.obj.Type.String()
	}
}
