package glow

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// codepointOffset returns the byte offset of the idx'th codepoint in b,
// walking the UTF-8 sequence one rune at a time via unicode/utf8 (§3:
// ObjString indexes by codepoint unless ASCIIForced).
func codepointOffset(b []byte, idx int) int {
	off := 0
	for i := 0; i < idx && off < len(b); i++ {
		_, size := utf8.DecodeRune(b[off:])
		off += size
	}
	return off
}

// stringCharAt returns the single-codepoint substring at codepoint index i.
func (vm *VM) stringCharAt(s *ObjString, i int) Value {
	if s.ASCIIForced {
		return Obj(vm.internString(s.Bytes[i : i+1]))
	}
	start := codepointOffset(s.Bytes, i)
	_, size := utf8.DecodeRune(s.Bytes[start:])
	return Obj(vm.internString(s.Bytes[start : start+size]))
}

// stringSlice returns the substring spanning codepoints [lo, hi).
func (vm *VM) stringSlice(s *ObjString, lo, hi int) Value {
	if s.ASCIIForced {
		return Obj(vm.internString(s.Bytes[lo:hi]))
	}
	start := codepointOffset(s.Bytes, lo)
	end := codepointOffset(s.Bytes, hi)
	return Obj(vm.internString(s.Bytes[start:end]))
}

func nativeStringArg(vm *VM, args []Value, i int, who string) (string, bool) {
	if i >= len(args) || !args[i].Is(ObjTypeString) {
		vm.runtimeErrorf("%s expects a string argument", who)
		return "", false
	}
	return string(args[i].obj.asString().Bytes), true
}

func installStringMethods(vm *VM) {
	t := &vm.methods[methodsString]
	set := func(name string, fn NativeFn) {
		nat := vm.newObject(ObjTypeNative, &ObjNative{Name: name, Type: NativeFunctionMethod, Fn: fn})
		t.Set(vm.newStringValue(name), Obj(nat))
	}

	set("len", func(vm *VM, self Value, args []Value) (Value, bool) {
		return Number(float64(self.obj.asString().length())), true
	})
	set("upper", func(vm *VM, self Value, args []Value) (Value, bool) {
		s := string(self.obj.asString().Bytes)
		return vm.newStringValue(cases.Upper(language.Und).String(s)), true
	})
	set("lower", func(vm *VM, self Value, args []Value) (Value, bool) {
		s := string(self.obj.asString().Bytes)
		return vm.newStringValue(cases.Lower(language.Und).String(s)), true
	})
	set("title", func(vm *VM, self Value, args []Value) (Value, bool) {
		s := string(self.obj.asString().Bytes)
		return vm.newStringValue(cases.Title(language.Und).String(s)), true
	})
	set("trim", func(vm *VM, self Value, args []Value) (Value, bool) {
		s := string(self.obj.asString().Bytes)
		return vm.newStringValue(strings.TrimSpace(s)), true
	})
	set("trimLeft", func(vm *VM, self Value, args []Value) (Value, bool) {
		s := string(self.obj.asString().Bytes)
		return vm.newStringValue(strings.TrimLeft(s, " \t\r\n")), true
	})
	set("trimRight", func(vm *VM, self Value, args []Value) (Value, bool) {
		s := string(self.obj.asString().Bytes)
		return vm.newStringValue(strings.TrimRight(s, " \t\r\n")), true
	})
	set("contains", func(vm *VM, self Value, args []Value) (Value, bool) {
		sub, ok := nativeStringArg(vm, args, 0, "contains")
		if !ok {
			return Nil, false
		}
		return Bool(strings.Contains(string(self.obj.asString().Bytes), sub)), true
	})
	set("indexOf", func(vm *VM, self Value, args []Value) (Value, bool) {
		sub, ok := nativeStringArg(vm, args, 0, "indexOf")
		if !ok {
			return Nil, false
		}
		s := string(self.obj.asString().Bytes)
		byteIdx := strings.Index(s, sub)
		if byteIdx < 0 {
			return Number(-1), true
		}
		return Number(float64(utf8.RuneCountInString(s[:byteIdx]))), true
	})
	set("startsWith", func(vm *VM, self Value, args []Value) (Value, bool) {
		pre, ok := nativeStringArg(vm, args, 0, "startsWith")
		if !ok {
			return Nil, false
		}
		return Bool(strings.HasPrefix(string(self.obj.asString().Bytes), pre)), true
	})
	set("endsWith", func(vm *VM, self Value, args []Value) (Value, bool) {
		suf, ok := nativeStringArg(vm, args, 0, "endsWith")
		if !ok {
			return Nil, false
		}
		return Bool(strings.HasSuffix(string(self.obj.asString().Bytes), suf)), true
	})
	set("replace", func(vm *VM, self Value, args []Value) (Value, bool) {
		old, ok := nativeStringArg(vm, args, 0, "replace")
		if !ok {
			return Nil, false
		}
		newS, ok := nativeStringArg(vm, args, 1, "replace")
		if !ok {
			return Nil, false
		}
		if isRegexLiteral(old) {
			return regexReplace(vm, self, old, newS)
		}
		s := string(self.obj.asString().Bytes)
		return vm.newStringValue(strings.ReplaceAll(s, old, newS)), true
	})
	set("split", func(vm *VM, self Value, args []Value) (Value, bool) {
		sep, ok := nativeStringArg(vm, args, 0, "split")
		if !ok {
			return Nil, false
		}
		s := string(self.obj.asString().Bytes)
		var parts []string
		if sep == "" {
			parts = strings.Split(s, "")
		} else {
			parts = strings.Split(s, sep)
		}
		items := make([]Value, len(parts))
		for i, p := range parts {
			items[i] = vm.newStringValue(p)
		}
		return Obj(vm.newObject(ObjTypeList, &ObjList{Items: items})), true
	})
	set("chars", func(vm *VM, self Value, args []Value) (Value, bool) {
		s := self.obj.asString()
		n := s.length()
		items := make([]Value, n)
		for i := 0; i < n; i++ {
			items[i] = vm.stringCharAt(s, i)
		}
		return Obj(vm.newObject(ObjTypeList, &ObjList{Items: items})), true
	})
	set("toBytes", func(vm *VM, self Value, args []Value) (Value, bool) {
		out := &ObjBytes{}
		out.Append(self.obj.asString().Bytes...)
		return Obj(vm.newObject(ObjTypeBytes, out)), true
	})
	set("toNumber", func(vm *VM, self Value, args []Value) (Value, bool) {
		s := strings.TrimSpace(string(self.obj.asString().Bytes))
		n, ok := parseNumberLiteral(s)
		if !ok {
			return Nil, true
		}
		return Number(n), true
	})
	set("matches", func(vm *VM, self Value, args []Value) (Value, bool) {
		pat, ok := nativeStringArg(vm, args, 0, "matches")
		if !ok {
			return Nil, false
		}
		return regexMatches(vm, self, pat)
	})
	set("match", func(vm *VM, self Value, args []Value) (Value, bool) {
		pat, ok := nativeStringArg(vm, args, 0, "match")
		if !ok {
			return Nil, false
		}
		return regexMatch(vm, self, pat)
	})

	// @iter/@itern implement the for-in protocol over codepoints (§4.2): key
	// is a codepoint index, value is the one-codepoint substring at it.
	set("@itern", func(vm *VM, self Value, args []Value) (Value, bool) {
		s := self.obj.asString()
		next := nextIterIndex(args)
		if next >= s.length() {
			return False, true
		}
		return Number(float64(next)), true
	})
	set("@iter", func(vm *VM, self Value, args []Value) (Value, bool) {
		s := self.obj.asString()
		i := int(args[0].AsNumber())
		return vm.stringCharAt(s, i), true
	})
}

// nextIterIndex computes the next 0-based iteration index from @itern's
// current-key argument, where Nil (the initial hidden-key value) means "not
// started yet".
func nextIterIndex(args []Value) int {
	if len(args) == 0 || args[0].IsNil() {
		return 0
	}
	return int(args[0].AsNumber()) + 1
}
