package glow

import (
	"context"
	"errors"

	"github.com/jcorbin/glow/internal/panicerr"
)

// New constructs a VM, applying opts over a set of discard-everything
// defaults.
func New(opts ...VMOption) *VM {
	vm := newVM()
	defaultOptions.apply(vm)
	VMOptions(opts...).apply(vm)
	return vm
}

// Interpret compiles source (attributed to modulePath in diagnostics and
// stack traces) and runs it to completion, or until ctx is done. It runs
// the whole operation in an isolated goroutine so that a bug that reaches
// runtime.Goexit or an unrecovered panic elsewhere in the VM surfaces as an
// error rather than taking down the host process.
func (vm *VM) Interpret(ctx context.Context, source, modulePath string) error {
	err := panicerr.Recover("glow", func() error {
		return vm.interpret(ctx, source, modulePath)
	})
	if err == nil {
		return nil
	}
	var he HaltError
	if errors.As(err, &he) {
		return he
	}
	return err
}

func (vm *VM) interpret(ctx context.Context, source, modulePath string) error {
	fnObj, err := vm.compileModule(source, modulePath)
	if err != nil {
		return err
	}

	modObj := vm.newObject(ObjTypeModule, &ObjModule{Name: modulePath, Path: modulePath, Imported: true})
	mark := vm.protect(Obj(modObj))
	fnObj.asFunction().Module = modObj
	vm.modules.Set(vm.newStringValue(modulePath), Obj(modObj))
	vm.curModule = modObj

	closureObj := vm.makeClosure(fnObj, nil)
	vm.push(Obj(closureObj))
	vm.call(closureObj, 0)

	err = vm.run(ctx)
	vm.unprotect(mark)
	return err
}

// ExitCode maps an error returned by Interpret to the process exit codes of
// §6: 0 on success, 10 for a compile failure, 11 for an unhandled runtime
// exception, 12 for heap exhaustion.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ce *CompileError
	if errors.As(err, &ce) {
		return 10
	}
	var he HaltError
	if errors.As(err, &he) {
		return 12
	}
	var re *RuntimeError
	if errors.As(err, &re) {
		return 11
	}
	return 11
}
