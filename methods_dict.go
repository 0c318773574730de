package glow

func installDictMethods(vm *VM) {
	t := &vm.methods[methodsDict]
	set := func(name string, fn NativeFn) {
		nat := vm.newObject(ObjTypeNative, &ObjNative{Name: name, Type: NativeFunctionMethod, Fn: fn})
		t.Set(vm.newStringValue(name), Obj(nat))
	}

	set("len", func(vm *VM, self Value, args []Value) (Value, bool) {
		return Number(float64(len(self.obj.asDict().Keys))), true
	})
	set("keys", func(vm *VM, self Value, args []Value) (Value, bool) {
		d := self.obj.asDict()
		items := make([]Value, len(d.Keys))
		copy(items, d.Keys)
		return Obj(vm.newObject(ObjTypeList, &ObjList{Items: items})), true
	})
	set("values", func(vm *VM, self Value, args []Value) (Value, bool) {
		d := self.obj.asDict()
		items := make([]Value, len(d.Keys))
		for i, k := range d.Keys {
			items[i], _ = d.Table.Get(k)
		}
		return Obj(vm.newObject(ObjTypeList, &ObjList{Items: items})), true
	})
	set("has", func(vm *VM, self Value, args []Value) (Value, bool) {
		if len(args) < 1 {
			vm.runtimeErrorf("has expects a key")
			return Nil, false
		}
		_, ok := self.obj.asDict().Table.Get(args[0])
		return Bool(ok), true
	})
	set("remove", func(vm *VM, self Value, args []Value) (Value, bool) {
		if len(args) < 1 {
			vm.runtimeErrorf("remove expects a key")
			return Nil, false
		}
		d := self.obj.asDict()
		val, existed := d.Table.Get(args[0])
		if !existed {
			return Nil, true
		}
		d.Table.Delete(args[0])
		for i, k := range d.Keys {
			if Equal(k, args[0]) {
				d.Keys = append(d.Keys[:i], d.Keys[i+1:]...)
				break
			}
		}
		return val, true
	})
	set("each", func(vm *VM, self Value, args []Value) (Value, bool) {
		if len(args) < 1 {
			vm.runtimeErrorf("each expects a function")
			return Nil, false
		}
		fn := args[0]
		d := self.obj.asDict()
		for _, k := range d.Keys {
			v, _ := d.Table.Get(k)
			if _, ok := vm.callReentrant(fn, []Value{k, v}); !ok {
				return Nil, false
			}
		}
		return self, true
	})

	// @itern(key) advances to the dict key following key (insertion order),
	// or returns the first key when key is the initial Nil; @iter(key) looks
	// the value back up (§4.2 for-in protocol).
	set("@itern", func(vm *VM, self Value, args []Value) (Value, bool) {
		d := self.obj.asDict()
		if len(d.Keys) == 0 {
			return False, true
		}
		if len(args) == 0 || args[0].IsNil() {
			return d.Keys[0], true
		}
		for i, k := range d.Keys {
			if Equal(k, args[0]) {
				if i+1 < len(d.Keys) {
					return d.Keys[i+1], true
				}
				return False, true
			}
		}
		return False, true
	})
	set("@iter", func(vm *VM, self Value, args []Value) (Value, bool) {
		v, _ := self.obj.asDict().Table.Get(args[0])
		return v, true
	})
}
