package glow

import (
	"io"
)

func installFileMethods(vm *VM) {
	t := &vm.methods[methodsFile]
	set := func(name string, fn NativeFn) {
		nat := vm.newObject(ObjTypeNative, &ObjNative{Name: name, Type: NativeFunctionMethod, Fn: fn})
		t.Set(vm.newStringValue(name), Obj(nat))
	}

	set("read", func(vm *VM, self Value, args []Value) (Value, bool) {
		f := self.obj.asFile()
		if !f.IsOpen {
			vm.runtimeErrorf("file is closed")
			return Nil, false
		}
		data, err := io.ReadAll(f.bufReader())
		if err != nil {
			vm.runtimeErrorf("read error: %v", err)
			return Nil, false
		}
		return vm.newStringValue(string(data)), true
	})
	set("readLine", func(vm *VM, self Value, args []Value) (Value, bool) {
		f := self.obj.asFile()
		if !f.IsOpen {
			vm.runtimeErrorf("file is closed")
			return Nil, false
		}
		line, err := f.bufReader().ReadString('\n')
		if err != nil && line == "" {
			return Nil, true
		}
		return vm.newStringValue(trimTrailingNewline(line)), true
	})
	set("write", func(vm *VM, self Value, args []Value) (Value, bool) {
		f := self.obj.asFile()
		if !f.IsOpen {
			vm.runtimeErrorf("file is closed")
			return Nil, false
		}
		if len(args) < 1 {
			vm.runtimeErrorf("write expects a value")
			return Nil, false
		}
		n, err := f.Handle.WriteString(vm.stringify(args[0]))
		if err != nil {
			vm.runtimeErrorf("write error: %v", err)
			return Nil, false
		}
		return Number(float64(n)), true
	})
	set("writeLine", func(vm *VM, self Value, args []Value) (Value, bool) {
		f := self.obj.asFile()
		if !f.IsOpen {
			vm.runtimeErrorf("file is closed")
			return Nil, false
		}
		s := ""
		if len(args) > 0 {
			s = vm.stringify(args[0])
		}
		if _, err := f.Handle.WriteString(s + "\n"); err != nil {
			vm.runtimeErrorf("write error: %v", err)
			return Nil, false
		}
		return Nil, true
	})
	set("close", func(vm *VM, self Value, args []Value) (Value, bool) {
		f := self.obj.asFile()
		if f.isStd() || !f.IsOpen {
			return Nil, true
		}
		if err := f.Handle.Close(); err != nil {
			vm.runtimeErrorf("close error: %v", err)
			return Nil, false
		}
		f.IsOpen = false
		return Nil, true
	})
	set("isOpen", func(vm *VM, self Value, args []Value) (Value, bool) {
		return Bool(self.obj.asFile().IsOpen), true
	})

	// @itern/@iter iterate lines, matching for-in over a file reading it
	// line by line; @itern returns the next line as the key (False at EOF
	// or once closed), and @iter returns that key unchanged as the value.
	set("@itern", func(vm *VM, self Value, args []Value) (Value, bool) {
		f := self.obj.asFile()
		if !f.IsOpen {
			return False, true
		}
		line, err := f.bufReader().ReadString('\n')
		if err != nil && line == "" {
			return False, true
		}
		return vm.newStringValue(trimTrailingNewline(line)), true
	})
	set("@iter", func(vm *VM, self Value, args []Value) (Value, bool) {
		return args[0], true
	})
}

func trimTrailingNewline(s string) string {
	if n := len(s); n > 0 && s[n-1] == '\n' {
		s = s[:n-1]
		if n := len(s); n > 0 && s[n-1] == '\r' {
			s = s[:n-1]
		}
	}
	return s
}
