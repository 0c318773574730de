package glow

import (
	"fmt"
	"strconv"
	"strings"
)

func trimFloatInt(n float64) string {
	return strconv.FormatInt(int64(n), 10)
}

func trimFloat(n float64) string {
	s := strconv.FormatFloat(n, 'g', -1, 64)
	return s
}

// stringifyObject implements the heap-object half of OP_STRINGIFY: each
// Object variant gets a type-appropriate textual form, falling back to
// `<type ptr>` for the ones with no natural literal rendering.
func (vm *VM) stringifyObject(o *Object) string {
	switch o.Type {
	case ObjTypeString:
		return string(o.asString().Bytes)
	case ObjTypeBytes:
		b := o.asBytes().data()
		parts := make([]string, len(b))
		for i, c := range b {
			parts[i] = fmt.Sprintf("%02x", c)
		}
		return "b'" + strings.Join(parts, " ") + "'"
	case ObjTypeList:
		items := o.asList().Items
		parts := make([]string, len(items))
		for i, v := range items {
			parts[i] = vm.reprValue(v)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case ObjTypeDict:
		d := o.asDict()
		parts := make([]string, 0, len(d.Keys))
		for _, k := range d.Keys {
			v, _ := d.Table.Get(k)
			parts = append(parts, fmt.Sprintf("%s: %s", vm.reprValue(k), vm.reprValue(v)))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case ObjTypeRange:
		r := o.asRange()
		return fmt.Sprintf("%d..%d", r.Lower, r.Upper)
	case ObjTypeFunction:
		fn := o.asFunction()
		if fn.Name == "" {
			return "<function>"
		}
		return fmt.Sprintf("<function %s>", fn.Name)
	case ObjTypeClosure:
		return vm.stringifyObject(o.asClosure().Function)
	case ObjTypeClass:
		return fmt.Sprintf("<class %s>", o.asClass().Name)
	case ObjTypeInstance:
		return fmt.Sprintf("<instance %s>", o.asInstance().Class.asClass().Name)
	case ObjTypeBoundMethod:
		return vm.stringifyObject(o.asBoundMethod().Method.obj)
	case ObjTypeModule:
		return fmt.Sprintf("<module %s>", o.asModule().Name)
	case ObjTypeNative:
		return fmt.Sprintf("<function %s>", o.asNative().Name)
	case ObjTypeFile:
		return fmt.Sprintf("<file %s>", o.asFile().Path)
	default:
		return fmt.Sprintf("<%v>", o.Type)
	}
}

// reprValue formats v the way it would appear nested inside a list/dict
// literal's stringification: strings are quoted there (unlike top-level
// echo/stringify), matching the corpus convention of distinguishing
// container-element display from bare value display.
func (vm *VM) reprValue(v Value) string {
	if v.Is(ObjTypeString) {
		return strconv.Quote(string(v.obj.asString().Bytes))
	}
	return vm.stringify(v)
}
