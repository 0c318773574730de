package glow

import (
	"bufio"
	"fmt"
	"os"
)

// ObjType discriminates the heap Object variants of §3. Dispatch on this
// tag (rather than interface virtual calls) keeps the GC tracer, equality,
// hashing, and stringification fanning out through a single switch each,
// matching the "dispatching over ObjType" design note.
type ObjType uint8

const (
	ObjTypeString ObjType = iota
	ObjTypeBytes
	ObjTypeList
	ObjTypeDict
	ObjTypeRange
	ObjTypeFile
	ObjTypeFunction
	ObjTypeClosure
	ObjTypeUpvalue
	ObjTypeClass
	ObjTypeInstance
	ObjTypeBoundMethod
	ObjTypeModule
	ObjTypeNative
	ObjTypeSwitch
	ObjTypePointer
)

func (t ObjType) String() string {
	switch t {
	case ObjTypeString:
		return "string"
	case ObjTypeBytes:
		return "bytes"
	case ObjTypeList:
		return "list"
	case ObjTypeDict:
		return "dict"
	case ObjTypeRange:
		return "range"
	case ObjTypeFile:
		return "file"
	case ObjTypeFunction:
		return "function"
	case ObjTypeClosure:
		return "closure"
	case ObjTypeUpvalue:
		return "upvalue"
	case ObjTypeClass:
		return "class"
	case ObjTypeInstance:
		return "instance"
	case ObjTypeBoundMethod:
		return "method"
	case ObjTypeModule:
		return "module"
	case ObjTypeNative:
		return "native"
	case ObjTypeSwitch:
		return "switch"
	case ObjTypePointer:
		return "pointer"
	}
	return "object"
}

// Object is the polymorphic heap node common to every variant in §3: a type
// discriminant, a GC mark bit, and an intrusive sibling pointer linking it
// into the VM's allocation list.
type Object struct {
	Type    ObjType
	Marked  bool
	Next    *Object
	payload interface{}
}

func (o *Object) asString() *ObjString           { return o.payload.(*ObjString) }
func (o *Object) asBytes() *ObjBytes             { return o.payload.(*ObjBytes) }
func (o *Object) asList() *ObjList               { return o.payload.(*ObjList) }
func (o *Object) asDict() *ObjDict               { return o.payload.(*ObjDict) }
func (o *Object) asRange() *ObjRange             { return o.payload.(*ObjRange) }
func (o *Object) asFile() *ObjFile               { return o.payload.(*ObjFile) }
func (o *Object) asFunction() *ObjFunction       { return o.payload.(*ObjFunction) }
func (o *Object) asClosure() *ObjClosure         { return o.payload.(*ObjClosure) }
func (o *Object) asUpvalue() *ObjUpvalue         { return o.payload.(*ObjUpvalue) }
func (o *Object) asClass() *ObjClass             { return o.payload.(*ObjClass) }
func (o *Object) asInstance() *ObjInstance       { return o.payload.(*ObjInstance) }
func (o *Object) asBoundMethod() *ObjBoundMethod { return o.payload.(*ObjBoundMethod) }
func (o *Object) asModule() *ObjModule           { return o.payload.(*ObjModule) }
func (o *Object) asNative() *ObjNative           { return o.payload.(*ObjNative) }
func (o *Object) asSwitch() *ObjSwitch           { return o.payload.(*ObjSwitch) }
func (o *Object) asPointer() *ObjPointer         { return o.payload.(*ObjPointer) }

// ObjString is an immutable byte buffer: byte length, codepoint length,
// precomputed hash, and an ASCII-forced flag that makes indexing byte-wise
// rather than codepoint-wise (§3 invariant a: interning makes equal strings
// identity-equal).
type ObjString struct {
	Bytes       []byte
	Hash        uint64
	CodepointsN int
	ASCIIForced bool
}

func (s *ObjString) length() int {
	if s.ASCIIForced {
		return len(s.Bytes)
	}
	return s.CodepointsN
}

// ObjBytes is a mutable byte buffer: a plain growable []byte, grown via
// Go's own append doubling rather than a paged-segment scheme, since every
// read (data()) needs the whole buffer contiguous anyway (§3 Bytes: a
// mutable byte sequence).
type ObjBytes struct {
	bytes []byte
}

func (b *ObjBytes) data() []byte { return b.bytes }
func (b *ObjBytes) Len() int     { return len(b.bytes) }
func (b *ObjBytes) Get(i int) byte {
	return b.bytes[i]
}
func (b *ObjBytes) Set(i int, v byte) { b.bytes[i] = v }
func (b *ObjBytes) Append(vs ...byte) {
	b.bytes = append(b.bytes, vs...)
}

// ObjList is a growable sequence of Values.
type ObjList struct {
	Items []Value
}

// ObjDict is an insertion-ordered key->value mapping: insertion order lives
// in Keys, lookup in the embedded Table. Keys must be primitive or string;
// lists/dicts/files are rejected on insert by the VM's set-index path.
type ObjDict struct {
	Keys  []Value
	Table Table
}

// ObjRange is an integer half-open-ish range: lower and upper; Extent
// computes the absolute extent (always non-negative) used for iteration.
type ObjRange struct {
	Lower, Upper int
}

func (r *ObjRange) Extent() int {
	if r.Upper >= r.Lower {
		return r.Upper - r.Lower
	}
	return r.Lower - r.Upper
}

// ObjFile wraps a path, mode, open flag, and the underlying *os.File. Std
// handles are marked by an empty Mode and are skipped on close.
type ObjFile struct {
	Path   string
	Mode   string
	IsOpen bool
	Handle *os.File
	reader *bufio.Reader // lazily created by read/readLine/@itern
}

func (f *ObjFile) isStd() bool { return f.Mode == "" }

func (f *ObjFile) bufReader() *bufio.Reader {
	if f.reader == nil {
		f.reader = bufio.NewReader(f.Handle)
	}
	return f.reader
}

// ObjFunction is a compiled chunk plus calling-convention metadata.
type ObjFunction struct {
	Name         string
	Arity        int
	IsVariadic   bool
	isStaticFlag bool
	UpvalueN     int
	upvalueRefs  []UpvalueRef
	Chunk        Chunk
	Module       *Object // *ObjModule, owning module
	Owner        *Object // *ObjClass defining this method, nil for free functions
}

// UpvalueRef records, for one slot of a closure being created, whether to
// capture a local of the enclosing frame (IsLocal true, Index a stack slot)
// or to inherit an upvalue of the enclosing closure (IsLocal false, Index an
// upvalue index).
type UpvalueRef struct {
	IsLocal bool
	Index   uint8
}

// ObjClosure pairs a function with its captured upvalue cells.
type ObjClosure struct {
	Function *Object // *ObjFunction
	Upvalues []*Object // []*ObjUpvalue
}

// ObjUpvalue is either an open pointer into a live stack slot, or a closed
// heap slot holding the captured value once that slot has gone out of
// scope. Open upvalues form a singly linked list sorted by descending stack
// address (§8 invariant: locations strictly decrease).
type ObjUpvalue struct {
	Open     bool
	Index    int // stack slot, while Open
	Closed   Value
	Next     *Object // *ObjUpvalue, next in the open list
}

func (u *ObjUpvalue) isOpen() bool { return u.Open }

// ObjClass carries its method table, instance-property defaults, a
// static-property table, an initializer slot, and an optional superclass.
type ObjClass struct {
	Name        string
	Methods     Table
	Properties  Table // instance property defaults
	Statics     Table
	Initializer Value // closure or native, or Nil
	Super       *Object // *ObjClass, or nil
}

// ObjInstance is a class reference plus a per-instance property table,
// seeded from the class's property defaults at construction (§3 invariant f).
type ObjInstance struct {
	Class      *Object // *ObjClass
	Properties Table
}

// ObjBoundMethod binds a receiver Value to a closure Value.
type ObjBoundMethod struct {
	Receiver Value
	Method   Value // closure or native
}

// ObjModule is a named namespace: source path, values table, native-loader
// hooks, an opaque native-library handle, and an imported flag so a module
// is re-entered at most once (§6).
type ObjModule struct {
	Name       string
	Path       string
	Values     Table
	Imported   bool
	Native     *NativeModule
	nativeLib  interface{}
}

// NativeMethodType distinguishes how a NativeFunction is invoked.
type NativeMethodType uint8

const (
	NativeFunctionPlain NativeMethodType = iota
	NativeFunctionMethod
	NativeFunctionStatic
)

// NativeFn is the calling convention for a built-in: it receives the VM, the
// receiver value (Nil for free functions), and argv, and returns a result
// plus ok; ok false signals failure (natives raise their errors through
// vm.runtimeErrorf).
type NativeFn func(vm *VM, self Value, args []Value) (Value, bool)

// ObjNative wraps a Go function pointer, its name, and a method-type tag.
type ObjNative struct {
	Name string
	Type NativeMethodType
	Fn   NativeFn
}

// ObjSwitch is a compiled jump table used by `using`/`when`: key to relative
// offset, plus default and exit offsets.
type ObjSwitch struct {
	Table   map[valueKey]int
	Default int
	Exit    int
}

// valueKey is a hashable, comparable projection of a Value suitable for use
// as a plain Go map key (switch tables only ever hold nil/bool/string/number
// literals).
type valueKey struct {
	typ ValueType
	num float64
	str string
}

func switchKey(v Value) valueKey {
	if v.Is(ObjTypeString) {
		return valueKey{typ: ValueObject, str: string(v.obj.asString().Bytes)}
	}
	return valueKey{typ: v.typ, num: v.num}
}

// ObjPointer is an opaque native handle with an optional destructor, used by
// out-of-scope built-in modules (process handles, compiled regexes, etc).
type ObjPointer struct {
	Tag     string
	Handle  interface{}
	Destroy func(interface{})
}

func (o *Object) String() string {
	return fmt.Sprintf("<%v %p>", o.Type, o)
}
