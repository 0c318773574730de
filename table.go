package glow

// tableMaxLoadNum/tableMaxLoadDen give the load factor (entries+tombstones / capacity) past which
// Table grows, per §4.5: 6/7.
const tableMaxLoadNum, tableMaxLoadDen = 6, 7

// entry is one slot of a Table. An empty slot has Key == Empty and Value ==
// Nil; a tombstone (a deleted slot still counted toward load) has Key ==
// Empty and Value == True.
type entry struct {
	Key   Value
	Value Value
}

func (e entry) isEmpty() bool     { return e.Key.typ == ValueEmpty && e.Value.typ == ValueNil }
func (e entry) isTombstone() bool { return e.Key.typ == ValueEmpty && e.Value.typ == ValueBool && e.Value.num != 0 }

// Table is an open-addressed hash map keyed by Value, used for globals,
// module values, class members, instance fields, the string intern pool,
// and switch tables. Capacity is always a power of two so indexing can mask
// instead of mod.
type Table struct {
	entries []entry
	count   int // live entries, not counting tombstones
	used    int // live entries + tombstones, for load-factor accounting
}

// Len returns the number of live entries.
func (t *Table) Len() int { return t.count }

func (t *Table) Get(key Value) (Value, bool) {
	if len(t.entries) == 0 {
		return Nil, false
	}
	e := t.find(key)
	if e == nil || e.isEmpty() {
		return Nil, false
	}
	return e.Value, true
}

// Set inserts or overwrites key->value, returning true if this created a new
// entry (as opposed to overwriting an existing one).
func (t *Table) Set(key Value, val Value) bool {
	if tableLoadExceeds(t.used+1, len(t.entries)) {
		t.grow()
	}
	e := t.find(key)
	isNew := e.isEmpty()
	if isNew && !e.isTombstone() {
		t.used++
	}
	if isNew {
		t.count++
	}
	e.Key = key
	e.Value = val
	return isNew
}

// Delete removes key, writing a tombstone so probe chains past it remain
// valid.
func (t *Table) Delete(key Value) bool {
	if len(t.entries) == 0 {
		return false
	}
	e := t.find(key)
	if e == nil || e.isEmpty() {
		return false
	}
	e.Key = Empty
	e.Value = True // tombstone marker
	t.count--
	return true
}

// FindInternedString looks up a string by its raw bytes and precomputed
// hash without allocating a Value/ObjString, driving the intern pool.
func (t *Table) FindInternedString(data []byte, hash uint64) *Object {
	if len(t.entries) == 0 {
		return nil
	}
	mask := uint64(len(t.entries) - 1)
	idx := hash & mask
	for {
		e := &t.entries[idx]
		if e.isEmpty() && !e.isTombstone() {
			return nil
		}
		if e.Key.Is(ObjTypeString) {
			s := e.Key.obj.asString()
			if s.Hash == hash && len(s.Bytes) == len(data) && string(s.Bytes) == string(data) {
				return e.Key.obj
			}
		}
		idx = (idx + 1) & mask
	}
}

// RemoveWhites deletes entries whose key is an unmarked heap object, run
// after a GC mark phase over the intern pool and the module registry so
// those tables don't themselves keep strings/modules alive (§4.5, §4.6).
func (t *Table) RemoveWhites() {
	for i := range t.entries {
		e := &t.entries[i]
		if e.Key.typ == ValueObject && e.Key.obj != nil && !e.Key.obj.Marked {
			e.Key = Empty
			e.Value = True
			t.count--
		}
	}
}

// Each calls fn for every live entry. fn must not mutate the table.
func (t *Table) Each(fn func(key, val Value)) {
	for _, e := range t.entries {
		if !e.isEmpty() && !e.isTombstone() {
			fn(e.Key, e.Value)
		}
	}
}

func tableLoadExceeds(used, cap int) bool {
	if cap == 0 {
		return true
	}
	return used*tableMaxLoadDen > cap*tableMaxLoadNum
}

func (t *Table) find(key Value) *entry {
	if len(t.entries) == 0 {
		return nil
	}
	mask := uint64(len(t.entries) - 1)
	idx := Hash(key) & mask
	var tombstone *entry
	for {
		e := &t.entries[idx]
		switch {
		case e.isEmpty():
			if e.isTombstone() {
				if tombstone == nil {
					tombstone = e
				}
			} else {
				if tombstone != nil {
					return tombstone
				}
				return e
			}
		case Equal(e.Key, key):
			return e
		}
		idx = (idx + 1) & mask
	}
}

func (t *Table) grow() {
	newCap := 8
	if len(t.entries) > 0 {
		newCap = len(t.entries) * 2
	}
	old := t.entries
	t.entries = make([]entry, newCap)
	t.count = 0
	t.used = 0
	for _, e := range old {
		if e.isEmpty() || e.isTombstone() {
			continue
		}
		t.Set(e.Key, e.Value)
	}
}
