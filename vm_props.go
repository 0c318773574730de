package glow

import "strings"

func isPrivateName(name string) bool { return strings.HasPrefix(name, "_") }

// getProperty implements `x.name` (§4.7 "Property access"). allowPrivate is
// true only for GetSelfProperty (`self.name` inside a method), which may
// see names starting with `_`.
func (vm *VM) getProperty(receiver Value, nameObj *Object, allowPrivate bool) (Value, bool) {
	name := string(nameObj.asString().Bytes)

	if !receiver.IsObject() {
		vm.runtimeErrorf("cannot access property '%s' of a primitive value", name)
		return Nil, false
	}

	switch receiver.obj.Type {
	case ObjTypeInstance:
		inst := receiver.obj.asInstance()
		if isPrivateName(name) && !allowPrivate {
			vm.runtimeErrorf("cannot access private property '%s'", name)
			return Nil, false
		}
		if v, ok := inst.Properties.Get(nameObj.payload.(*ObjString).asValue()); ok {
			return v, true
		}
		if m, ok := findMethod(inst.Class, name); ok {
			bm := &ObjBoundMethod{Receiver: receiver, Method: m}
			return Obj(vm.newObject(ObjTypeBoundMethod, bm)), true
		}
		vm.runtimeErrorf("undefined property '%s'", name)
		return Nil, false

	case ObjTypeClass:
		class := receiver.obj.asClass()
		if v, ok := class.Statics.Get(Obj(nameObj)); ok {
			return v, true
		}
		if v, ok := class.Methods.Get(Obj(nameObj)); ok {
			if v.Is(ObjTypeClosure) && !v.obj.asClosure().Function.asFunction().isStaticFlag {
				vm.runtimeErrorf("cannot call instance method '%s' on class directly", name)
				return Nil, false
			}
			return v, true
		}
		vm.runtimeErrorf("undefined class property '%s'", name)
		return Nil, false

	case ObjTypeModule:
		mod := receiver.obj.asModule()
		if isPrivateName(name) && !allowPrivate {
			vm.runtimeErrorf("cannot access private module value '%s'", name)
			return Nil, false
		}
		if v, ok := mod.Values.Get(Obj(nameObj)); ok {
			return v, true
		}
		vm.runtimeErrorf("module has no value '%s'", name)
		return Nil, false

	case ObjTypeDict:
		d := receiver.obj.asDict()
		if v, ok := d.Table.Get(Obj(nameObj)); ok {
			return v, true
		}
		if fn, ok := vm.methods[methodsDict].Get(Obj(nameObj)); ok {
			return vm.bindNative(receiver, fn), true
		}
		vm.runtimeErrorf("no such property '%s'", name)
		return Nil, false

	default:
		idx := methodTableFor(receiver.obj.Type)
		if idx < 0 {
			vm.runtimeErrorf("type %v has no properties", receiver.obj.Type)
			return Nil, false
		}
		if fn, ok := vm.methods[idx].Get(Obj(nameObj)); ok {
			return vm.bindNative(receiver, fn), true
		}
		vm.runtimeErrorf("no such property '%s'", name)
		return Nil, false
	}
}

func (s *ObjString) asValue() Value { return Value{typ: ValueObject, obj: &Object{Type: ObjTypeString, payload: s}} }

func (vm *VM) bindNative(receiver Value, fn Value) Value {
	bm := &ObjBoundMethod{Receiver: receiver, Method: fn}
	return Obj(vm.newObject(ObjTypeBoundMethod, bm))
}

func methodTableFor(t ObjType) int {
	switch t {
	case ObjTypeString:
		return int(methodsString)
	case ObjTypeList:
		return int(methodsList)
	case ObjTypeBytes:
		return int(methodsBytes)
	case ObjTypeRange:
		return int(methodsRange)
	case ObjTypeFile:
		return int(methodsFile)
	}
	return -1
}

// findMethod searches class and its ancestors for a method named name.
func findMethod(classObj *Object, name string) (Value, bool) {
	for c := classObj; c != nil; c = c.asClass().Super {
		if v, ok := c.asClass().Methods.Get(nameKey(name)); ok {
			return v, true
		}
	}
	return Nil, false
}

// nameKey is a helper for looking a Go string up in a Table keyed by
// interned ObjString Values; used only by code paths (like findMethod) that
// don't already have the interned Object handy. Equality on ObjTypeString
// Values compares bytes, not identity, so this works without re-interning.
func nameKey(name string) Value {
	s := &ObjString{Bytes: []byte(name), Hash: hashBits(fnvString(name))}
	return Value{typ: ValueObject, obj: &Object{Type: ObjTypeString, payload: s}}
}

// setProperty implements assignment to `x.name`: Instance and Dict are
// settable, and on a Class it sets a static property (§4.7).
func (vm *VM) setProperty(receiver Value, nameObj *Object, val Value) bool {
	if !receiver.IsObject() {
		vm.runtimeErrorf("cannot set property on a primitive value")
		return false
	}
	switch receiver.obj.Type {
	case ObjTypeInstance:
		receiver.obj.asInstance().Properties.Set(Obj(nameObj), val)
		return true
	case ObjTypeDict:
		d := receiver.obj.asDict()
		if d.Table.Set(Obj(nameObj), val) {
			d.Keys = append(d.Keys, Obj(nameObj))
		}
		return true
	case ObjTypeClass:
		receiver.obj.asClass().Statics.Set(Obj(nameObj), val)
		return true
	default:
		vm.runtimeErrorf("type %v is not settable", receiver.obj.Type)
		return false
	}
}

// resolveCallableProperty looks up name on receiver for Invoke/InvokeSelf,
// returning either a closure Value (call via vm.call) or leaving the
// native case to the caller via the Value.Is(ObjTypeNative) check.
// allowPrivate is true for InvokeSelf (`self.name(...)`), which may see
// names starting with `_`.
func (vm *VM) resolveCallableProperty(receiver Value, nameObj *Object, allowPrivate bool) (Value, bool) {
	name := string(nameObj.asString().Bytes)
	if receiver.IsObject() {
		switch receiver.obj.Type {
		case ObjTypeInstance:
			if m, ok := findMethod(receiver.obj.asInstance().Class, name); ok {
				return m, true
			}
		case ObjTypeDict:
			if fn, ok := vm.methods[methodsDict].Get(Obj(nameObj)); ok {
				return fn, true
			}
		default:
			if idx := methodTableFor(receiver.obj.Type); idx >= 0 {
				if fn, ok := vm.methods[idx].Get(Obj(nameObj)); ok {
					return fn, true
				}
			}
		}
	}
	v, ok := vm.getProperty(receiver, nameObj, allowPrivate)
	if !ok {
		return Nil, false
	}
	if v.Is(ObjTypeBoundMethod) {
		bm := v.obj.asBoundMethod()
		return bm.Method, true
	}
	return v, true
}

// findMethodFrom searches classObj and its ancestors (starting at classObj
// itself, not its subclass) for name — used by super-invoke to begin the
// search one level above the class defining the currently executing method.
func findMethodFrom(classObj *Object, name string) (Value, bool) {
	return findMethod(classObj, name)
}

// --- indexing ---

func normalizeIndex(i, length int) int {
	if i < 0 {
		i += length
	}
	return i
}

func rangeBounds(a, b Value, length int) (int, int, bool) {
	lo, hi := 0, length
	if !a.IsNil() {
		if !a.IsNumber() {
			return 0, 0, false
		}
		lo = normalizeIndex(int(a.AsNumber()), length)
	}
	if !b.IsNil() {
		if !b.IsNumber() {
			return 0, 0, false
		}
		hi = normalizeIndex(int(b.AsNumber()), length)
	}
	if lo < 0 {
		lo = 0
	}
	if hi > length {
		hi = length
	}
	if hi < lo {
		hi = lo
	}
	return lo, hi, true
}

// getIndex implements `x[i]` for all indexable types (§4.7 "Indexing").
func (vm *VM) getIndex(receiver, index Value) (Value, bool) {
	if !receiver.IsObject() {
		vm.runtimeErrorf("value is not indexable")
		return Nil, false
	}
	switch receiver.obj.Type {
	case ObjTypeString:
		s := receiver.obj.asString()
		if !index.IsNumber() {
			vm.runtimeErrorf("string index must be a number")
			return Nil, false
		}
		i := normalizeIndex(int(index.AsNumber()), s.length())
		if i < 0 || i >= s.length() {
			vm.runtimeErrorf("string index out of range")
			return Nil, false
		}
		return vm.stringCharAt(s, i), true
	case ObjTypeBytes:
		b := receiver.obj.asBytes()
		if !index.IsNumber() {
			vm.runtimeErrorf("bytes index must be a number")
			return Nil, false
		}
		i := normalizeIndex(int(index.AsNumber()), b.Len())
		if i < 0 || i >= b.Len() {
			vm.runtimeErrorf("bytes index out of range")
			return Nil, false
		}
		return Number(float64(b.Get(i))), true
	case ObjTypeList:
		l := receiver.obj.asList()
		if !index.IsNumber() {
			vm.runtimeErrorf("list index must be a number")
			return Nil, false
		}
		i := normalizeIndex(int(index.AsNumber()), len(l.Items))
		if i < 0 || i >= len(l.Items) {
			vm.runtimeErrorf("list index out of range")
			return Nil, false
		}
		return l.Items[i], true
	case ObjTypeDict:
		d := receiver.obj.asDict()
		if v, ok := d.Table.Get(index); ok {
			return v, true
		}
		vm.runtimeErrorf("dict has no key %v", index)
		return Nil, false
	case ObjTypeModule:
		mod := receiver.obj.asModule()
		if !index.Is(ObjTypeString) {
			vm.runtimeErrorf("module index must be a string")
			return Nil, false
		}
		if v, ok := mod.Values.Get(index); ok {
			return v, true
		}
		vm.runtimeErrorf("module has no value %v", index)
		return Nil, false
	default:
		vm.runtimeErrorf("type %v is not indexable", receiver.obj.Type)
		return Nil, false
	}
}

// getRangedIndex implements `x[a,b]`, both bounds defaulted to (0, length)
// when nil.
func (vm *VM) getRangedIndex(receiver, a, b Value) (Value, bool) {
	if !receiver.IsObject() {
		vm.runtimeErrorf("value does not support ranged indexing")
		return Nil, false
	}
	switch receiver.obj.Type {
	case ObjTypeString:
		s := receiver.obj.asString()
		lo, hi, ok := rangeBounds(a, b, s.length())
		if !ok {
			vm.runtimeErrorf("invalid string slice bounds")
			return Nil, false
		}
		return vm.stringSlice(s, lo, hi), true
	case ObjTypeBytes:
		buf := receiver.obj.asBytes()
		lo, hi, ok := rangeBounds(a, b, buf.Len())
		if !ok {
			vm.runtimeErrorf("invalid bytes slice bounds")
			return Nil, false
		}
		out := &ObjBytes{}
		for i := lo; i < hi; i++ {
			out.Append(buf.Get(i))
		}
		return Obj(vm.newObject(ObjTypeBytes, out)), true
	case ObjTypeList:
		l := receiver.obj.asList()
		lo, hi, ok := rangeBounds(a, b, len(l.Items))
		if !ok {
			vm.runtimeErrorf("invalid list slice bounds")
			return Nil, false
		}
		items := make([]Value, hi-lo)
		copy(items, l.Items[lo:hi])
		return Obj(vm.newObject(ObjTypeList, &ObjList{Items: items})), true
	default:
		vm.runtimeErrorf("type %v does not support ranged indexing", receiver.obj.Type)
		return Nil, false
	}
}

// setIndex implements assignment to `x[i]` for list, bytes, dict, and
// module; strings are not assignable (§4.7).
func (vm *VM) setIndex(receiver, index, val Value) bool {
	if !receiver.IsObject() {
		vm.runtimeErrorf("value is not index-assignable")
		return false
	}
	switch receiver.obj.Type {
	case ObjTypeList:
		l := receiver.obj.asList()
		if !index.IsNumber() {
			vm.runtimeErrorf("list index must be a number")
			return false
		}
		i := normalizeIndex(int(index.AsNumber()), len(l.Items))
		if i < 0 || i >= len(l.Items) {
			vm.runtimeErrorf("list index out of range")
			return false
		}
		l.Items[i] = val
		return true
	case ObjTypeBytes:
		b := receiver.obj.asBytes()
		if !index.IsNumber() || !val.IsNumber() {
			vm.runtimeErrorf("bytes index/value must be numbers")
			return false
		}
		n := val.AsNumber()
		if n < 0 || n > 255 {
			vm.runtimeErrorf("byte value must be 0-255")
			return false
		}
		i := normalizeIndex(int(index.AsNumber()), b.Len())
		if i < 0 || i >= b.Len() {
			vm.runtimeErrorf("bytes index out of range")
			return false
		}
		b.Set(i, byte(n))
		return true
	case ObjTypeDict:
		d := receiver.obj.asDict()
		if !validDictKey(index) {
			vm.runtimeErrorf("invalid dict key type")
			return false
		}
		if d.Table.Set(index, val) {
			d.Keys = append(d.Keys, index)
		}
		return true
	case ObjTypeModule:
		if !index.Is(ObjTypeString) {
			vm.runtimeErrorf("module index must be a string")
			return false
		}
		receiver.obj.asModule().Values.Set(index, val)
		return true
	default:
		vm.runtimeErrorf("type %v is not index-assignable", receiver.obj.Type)
		return false
	}
}

// validDictKey implements §3's Dict invariant: keys must be primitive or
// string; lists/dicts/files are rejected on insert.
func validDictKey(v Value) bool {
	if !v.IsObject() {
		return true
	}
	return v.obj.Type == ObjTypeString
}
