package glow

import "math"

// binaryOp implements the arithmetic/bitwise opcodes of §4.7: numeric
// operations on Number operands, plus the handful of overloads the
// container types define (string/bytes/list concatenation, list
// repetition) per §8's round-trip laws.
func (vm *VM) binaryOp(op OpCode, a, b Value) (Value, bool) {
	switch op {
	case OpAdd:
		if a.IsNumber() && b.IsNumber() {
			return Number(a.AsNumber() + b.AsNumber()), true
		}
		if a.Is(ObjTypeString) {
			return vm.concatString(a, b), true
		}
		if a.Is(ObjTypeList) && b.Is(ObjTypeList) {
			return vm.concatList(a, b), true
		}
		if a.Is(ObjTypeBytes) && b.Is(ObjTypeBytes) {
			return vm.concatBytes(a, b), true
		}
		vm.runtimeErrorf("unsupported operand types for +")
		return Nil, false

	case OpMul:
		if a.IsNumber() && b.IsNumber() {
			return Number(a.AsNumber() * b.AsNumber()), true
		}
		if a.Is(ObjTypeList) && b.IsNumber() {
			return vm.repeatList(a, int(b.AsNumber())), true
		}
		if a.Is(ObjTypeString) && b.IsNumber() {
			return vm.repeatString(a, int(b.AsNumber())), true
		}
		vm.runtimeErrorf("unsupported operand types for *")
		return Nil, false

	case OpSub, OpDiv, OpMod, OpPow, OpFloorDiv:
		if !a.IsNumber() || !b.IsNumber() {
			vm.runtimeErrorf("operands must be numbers")
			return Nil, false
		}
		x, y := a.AsNumber(), b.AsNumber()
		switch op {
		case OpSub:
			return Number(x - y), true
		case OpDiv:
			if y == 0 {
				vm.runtimeErrorf("division by zero")
				return Nil, false
			}
			return Number(x / y), true
		case OpMod:
			if y == 0 {
				vm.runtimeErrorf("division by zero")
				return Nil, false
			}
			return Number(math.Mod(x, y)), true
		case OpPow:
			return Number(math.Pow(x, y)), true
		case OpFloorDiv:
			if y == 0 {
				vm.runtimeErrorf("division by zero")
				return Nil, false
			}
			return Number(math.Floor(x / y)), true
		}

	case OpBitAnd, OpBitOr, OpBitXor, OpShl, OpShr:
		if !a.IsNumber() || !b.IsNumber() {
			vm.runtimeErrorf("operands must be numbers")
			return Nil, false
		}
		x, y := int64(a.AsNumber()), int64(b.AsNumber())
		switch op {
		case OpBitAnd:
			return Number(float64(x & y)), true
		case OpBitOr:
			return Number(float64(x | y)), true
		case OpBitXor:
			return Number(float64(x ^ y)), true
		case OpShl:
			return Number(float64(x << uint(y))), true
		case OpShr:
			return Number(float64(x >> uint(y))), true
		}
	}
	vm.runtimeErrorf("unsupported operation")
	return Nil, false
}

func (vm *VM) concatString(a, b Value) Value {
	bs := vm.stringify(b)
	out := append(append([]byte{}, a.obj.asString().Bytes...), bs...)
	return Obj(vm.internString(out))
}

func (vm *VM) repeatString(a Value, n int) Value {
	if n <= 0 {
		return Obj(vm.internString(nil))
	}
	src := a.obj.asString().Bytes
	out := make([]byte, 0, len(src)*n)
	for i := 0; i < n; i++ {
		out = append(out, src...)
	}
	return Obj(vm.internString(out))
}

func (vm *VM) concatList(a, b Value) Value {
	al := a.obj.asList().Items
	bl := b.obj.asList().Items
	items := make([]Value, 0, len(al)+len(bl))
	items = append(items, al...)
	items = append(items, bl...)
	return Obj(vm.newObject(ObjTypeList, &ObjList{Items: items}))
}

func (vm *VM) repeatList(a Value, n int) Value {
	src := a.obj.asList().Items
	if n <= 0 {
		return Obj(vm.newObject(ObjTypeList, &ObjList{Items: nil}))
	}
	items := make([]Value, 0, len(src)*n)
	for i := 0; i < n; i++ {
		items = append(items, src...)
	}
	return Obj(vm.newObject(ObjTypeList, &ObjList{Items: items}))
}

func (vm *VM) concatBytes(a, b Value) Value {
	out := &ObjBytes{}
	out.Append(a.obj.asBytes().data()...)
	out.Append(b.obj.asBytes().data()...)
	return Obj(vm.newObject(ObjTypeBytes, out))
}

// stringify implements OP_STRINGIFY: the type-specific string conversion
// used by both `echo` and string interpolation.
func (vm *VM) stringify(v Value) string {
	switch {
	case v.IsNil():
		return "nil"
	case v.IsEmpty():
		return ""
	case v.IsBool():
		if v.AsBool() {
			return "true"
		}
		return "false"
	case v.IsNumber():
		return formatNumber(v.AsNumber())
	case v.Is(ObjTypeString):
		return string(v.obj.asString().Bytes)
	case v.IsObject():
		return vm.stringifyObject(v.obj)
	}
	return ""
}

// echoString is like stringify but leaves string values unquoted, matching
// `echo`'s presentation (§4.7 "Echo").
func (vm *VM) echoString(v Value) string { return vm.stringify(v) }

func formatNumber(n float64) string {
	if n == math.Trunc(n) && !math.IsInf(n, 0) && math.Abs(n) < 1e15 {
		return trimFloatInt(n)
	}
	return trimFloat(n)
}
