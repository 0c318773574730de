package glow

import "fmt"

// ImportResolver locates the source of an import path relative to the
// importing module's path, per §6 "Import resolution". Hosts that never
// embed an `import` statement may leave this nil; any attempted import of a
// non-native module then fails with a compile error.
type ImportResolver interface {
	Resolve(fromPath, importPath string) (source, resolvedPath string, err error)
}

// NativeField seeds a single value (module-level or class-property default)
// exposed by a NativeModule.
type NativeField struct {
	Name  string
	Value Value
}

// NativeFunction is one Go-backed callable exposed by a NativeModule, either
// as a module-level function or a class method (distinguished by where it's
// listed on NativeModule/NativeClass).
type NativeFunction struct {
	Name string
	Fn   NativeFn
}

// NativeClass describes a class synthesized entirely from Go, the native
// analog of a compiled `class` declaration: a method named the same as the
// class doubles as its initializer, matching ordinary Glow class semantics.
type NativeClass struct {
	Name    string
	Fields  []NativeField
	Methods []NativeFunction
}

// NativeModule is the registration surface a host uses to expose
// functionality implemented in Go as an importable module (§6, "Built-in
// Method Tables" design note extended to whole modules rather than just
// value types). Preload runs once, after Fields/Functions/Classes have
// populated the module object, giving the host a chance to stash module
// state. Unload is stored with the module; the VM itself never calls it.
type NativeModule struct {
	Name      string
	Fields    []NativeField
	Functions []NativeFunction
	Classes   []NativeClass
	Preload   func(vm *VM, mod *Object) error
	Unload    func(vm *VM)
}

func (vm *VM) registerNativeModule(m *NativeModule) {
	vm.natives[m.Name] = m
}

// instantiateNativeModule builds the module Object for a registered
// NativeModule: fields and functions become module values directly,
// classes are synthesized via buildNativeClass.
func (vm *VM) instantiateNativeModule(m *NativeModule) (*Object, error) {
	mod := &ObjModule{Name: m.Name, Path: m.Name, Native: m}
	obj := vm.newObject(ObjTypeModule, mod)
	mark := vm.protect(Obj(obj))
	defer vm.unprotect(mark)

	for _, f := range m.Fields {
		mod.Values.Set(vm.newStringValue(f.Name), f.Value)
	}
	for _, fn := range m.Functions {
		nat := vm.newObject(ObjTypeNative, &ObjNative{Name: fn.Name, Type: NativeFunctionPlain, Fn: fn.Fn})
		mod.Values.Set(vm.newStringValue(fn.Name), Obj(nat))
	}
	for _, c := range m.Classes {
		classObj := vm.buildNativeClass(c)
		mod.Values.Set(vm.newStringValue(c.Name), Obj(classObj))
	}
	mod.Imported = true
	if m.Preload != nil {
		if err := m.Preload(vm, obj); err != nil {
			return nil, fmt.Errorf("module %q preload: %w", m.Name, err)
		}
	}
	return obj, nil
}

// buildNativeClass synthesizes an ObjClass from a NativeClass description; a
// method sharing the class's own name becomes its Initializer, matching the
// compiled-class convention in §4.2.
func (vm *VM) buildNativeClass(c NativeClass) *Object {
	class := &ObjClass{Name: c.Name}
	obj := vm.newObject(ObjTypeClass, class)
	mark := vm.protect(Obj(obj))
	defer vm.unprotect(mark)

	for _, f := range c.Fields {
		class.Properties.Set(vm.newStringValue(f.Name), f.Value)
	}
	for _, meth := range c.Methods {
		nat := vm.newObject(ObjTypeNative, &ObjNative{Name: meth.Name, Type: NativeFunctionMethod, Fn: meth.Fn})
		class.Methods.Set(vm.newStringValue(meth.Name), Obj(nat))
		if meth.Name == c.Name {
			class.Initializer = Obj(nat)
		}
	}
	return obj
}

// loadModule resolves importPath relative to fromPath (§6): already-loaded
// modules (by resolved path) are returned directly; registered native
// modules are instantiated on first use; everything else goes through the
// configured ImportResolver and is compiled, leaving it to the caller (the
// OpCallImport handler in the dispatch loop) to execute the module's top-level
// closure exactly once before exposing it.
func (vm *VM) loadModule(fromPath, importPath string) (mod *Object, closure *Object, alreadyLoaded bool, err error) {
	if nm, ok := vm.natives[importPath]; ok {
		if v, ok := vm.modules.Get(vm.newStringValue(importPath)); ok {
			return v.obj, nil, true, nil
		}
		obj, ierr := vm.instantiateNativeModule(nm)
		if ierr != nil {
			return nil, nil, false, ierr
		}
		vm.modules.Set(vm.newStringValue(importPath), Obj(obj))
		return obj, nil, true, nil
	}

	if vm.resolver == nil {
		return nil, nil, false, fmt.Errorf("no import resolver configured for %q", importPath)
	}
	source, resolvedPath, rerr := vm.resolver.Resolve(fromPath, importPath)
	if rerr != nil {
		return nil, nil, false, rerr
	}
	if v, ok := vm.modules.Get(vm.newStringValue(resolvedPath)); ok {
		return v.obj, nil, true, nil
	}

	fnObj, cerr := vm.compileModule(source, resolvedPath)
	if cerr != nil {
		return nil, nil, false, cerr
	}
	modObj := vm.newObject(ObjTypeModule, &ObjModule{Name: importPath, Path: resolvedPath})
	mark := vm.protect(Obj(modObj))
	fnObj.asFunction().Module = modObj
	closureObj := vm.makeClosure(fnObj, nil)
	vm.modules.Set(vm.newStringValue(resolvedPath), Obj(modObj))
	vm.unprotect(mark)
	return modObj, closureObj, false, nil
}
