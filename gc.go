package glow

// defaultGCGrowthFactor is the factor nextGC grows by after each cycle (§4.6: "a
// fixed factor", ≈1.25).
const defaultGCGrowthFactor = 1.25

// minHeapBytes keeps the collector from thrashing on tiny heaps.
const minHeapBytes = 1 << 20

// heap owns the allocation list, drives mark-sweep, and tracks the
// bytes-allocated threshold that triggers a cycle (§4.6).
type heap struct {
	objects *Object // head of the intrusive allocation list
	bytes   int
	nextGC  int

	growthFactor float64
	allowGC      bool // guards against GC re-entrance during a cycle

	gray []*Object // mark worklist

	onCollect func(stats GCStats)
}

// GCStats summarizes one mark-sweep cycle, surfaced through WithLogf-style
// tracing.
type GCStats struct {
	Freed     int
	Survived  int
	BytesBefore, BytesAfter int
}

func newHeap() *heap {
	return &heap{
		nextGC:       minHeapBytes,
		growthFactor: defaultGCGrowthFactor,
		allowGC:      true,
	}
}

// objectSize is a rough accounting unit per object kind, used only to drive
// the collection threshold (not a precise memory accountant).
func objectSize(o *Object) int {
	switch o.Type {
	case ObjTypeString:
		return 48 + len(o.asString().Bytes)
	case ObjTypeBytes:
		return 48 + o.asBytes().Len()
	case ObjTypeList:
		return 24 + len(o.asList().Items)*16
	case ObjTypeDict:
		return 24 + len(o.asDict().Keys)*32
	default:
		return 64
	}
}

// alloc links a freshly constructed Object into the allocation list and
// charges its estimated size against the GC threshold. It does not itself
// trigger collection; callers that can safely do so call vm.maybeCollect
// after rooting the new object (via GC-protect) elsewhere.
func (h *heap) alloc(o *Object) *Object {
	o.Next = h.objects
	h.objects = o
	h.bytes += objectSize(o)
	return o
}

func (h *heap) shouldCollect() bool {
	return h.allowGC && h.bytes > h.nextGC
}

// collect runs one precise mark-sweep cycle. roots is called once to push
// every root object onto the gray worklist via h.mark.
func (h *heap) collect(roots func(mark func(*Object)), internPool, modules *Table) GCStats {
	before := h.bytes
	h.allowGC = false
	defer func() { h.allowGC = true }()

	h.gray = h.gray[:0]
	roots(h.markRoot)
	h.trace()

	if internPool != nil {
		internPool.RemoveWhites()
	}
	if modules != nil {
		modules.RemoveWhites()
	}

	freed, survived := h.sweep()

	h.nextGC = int(float64(h.bytes) * h.growthFactor)
	if h.nextGC < minHeapBytes {
		h.nextGC = minHeapBytes
	}

	stats := GCStats{Freed: freed, Survived: survived, BytesBefore: before, BytesAfter: h.bytes}
	if h.onCollect != nil {
		h.onCollect(stats)
	}
	return stats
}

func (h *heap) markRoot(o *Object) {
	if o == nil || o.Marked {
		return
	}
	o.Marked = true
	h.gray = append(h.gray, o)
}

func (h *heap) markValue(v Value) {
	if v.typ == ValueObject {
		h.markRoot(v.obj)
	}
}

// trace pops gray objects and blackens them by marking every object they
// reference, per the per-variant edge list in §4.6.
func (h *heap) trace() {
	for len(h.gray) > 0 {
		o := h.gray[len(h.gray)-1]
		h.gray = h.gray[:len(h.gray)-1]
		h.blacken(o)
	}
}

func (h *heap) blacken(o *Object) {
	switch o.Type {
	case ObjTypeModule:
		m := o.asModule()
		m.Values.Each(func(_, v Value) { h.markValue(v) })
	case ObjTypeClass:
		c := o.asClass()
		c.Methods.Each(func(_, v Value) { h.markValue(v) })
		c.Properties.Each(func(_, v Value) { h.markValue(v) })
		c.Statics.Each(func(_, v Value) { h.markValue(v) })
		h.markValue(c.Initializer)
		if c.Super != nil {
			h.markRoot(c.Super)
		}
	case ObjTypeClosure:
		cl := o.asClosure()
		h.markRoot(cl.Function)
		for _, uv := range cl.Upvalues {
			h.markRoot(uv)
		}
	case ObjTypeFunction:
		f := o.asFunction()
		if f.Module != nil {
			h.markRoot(f.Module)
		}
		if f.Owner != nil {
			h.markRoot(f.Owner)
		}
		for _, v := range f.Chunk.Constants {
			h.markValue(v)
		}
	case ObjTypeInstance:
		inst := o.asInstance()
		h.markRoot(inst.Class)
		inst.Properties.Each(func(_, v Value) { h.markValue(v) })
	case ObjTypeList:
		for _, v := range o.asList().Items {
			h.markValue(v)
		}
	case ObjTypeDict:
		d := o.asDict()
		for _, k := range d.Keys {
			h.markValue(k)
		}
		d.Table.Each(func(k, v Value) { h.markValue(k); h.markValue(v) })
	case ObjTypeBoundMethod:
		bm := o.asBoundMethod()
		h.markValue(bm.Receiver)
		h.markValue(bm.Method)
	case ObjTypeUpvalue:
		uv := o.asUpvalue()
		if !uv.isOpen() {
			h.markValue(uv.Closed)
		}
		// open upvalues reference a live stack slot, already a root
	case ObjTypeFile:
		// no object-valued fields to trace (path/mode are plain strings)
	case ObjTypeSwitch:
		// switch table keys are plain Go values (valueKey), nothing to trace
	}
}

// sweep walks the allocation list, freeing unmarked objects and clearing
// the mark bit on survivors (§4.6 phase 4, §8 invariant: every live object
// has mark=false after a cycle completes).
func (h *heap) sweep() (freed, survived int) {
	var prev *Object
	cur := h.objects
	for cur != nil {
		if cur.Marked {
			cur.Marked = false
			survived++
			prev = cur
			cur = cur.Next
			continue
		}
		unreached := cur
		cur = cur.Next
		if prev == nil {
			h.objects = cur
		} else {
			prev.Next = cur
		}
		h.bytes -= objectSize(unreached)
		closeIfFile(unreached)
		freed++
	}
	return freed, survived
}

// closeIfFile closes the OS handle of a swept File object, per §5: file
// handles are owned by their wrapping objects and closed during GC-sweep
// (std handles are skipped, per their empty Mode).
func closeIfFile(o *Object) {
	if o.Type != ObjTypeFile {
		return
	}
	f := o.asFile()
	if f.IsOpen && !f.isStd() && f.Handle != nil {
		_ = f.Handle.Close()
		f.IsOpen = false
	}
}
