package glow

import "os"

// bootstrapStdFiles binds stdin/stdout/stderr as global File objects wrapping
// the host's standard handles, per §5: empty Mode marks them std, so close is
// a no-op and GC-sweep never closes the underlying *os.File.
func (vm *VM) bootstrapStdFiles() {
	bind := func(name string, f *os.File) {
		obj := vm.newObject(ObjTypeFile, &ObjFile{Path: name, Mode: "", IsOpen: true, Handle: f})
		vm.globals.Set(vm.newStringValue(name), Obj(obj))
	}
	bind("stdin", os.Stdin)
	bind("stdout", os.Stdout)
	bind("stderr", os.Stderr)
}
