/*
Package glow embeds a dynamically typed, class-based scripting language: a
lexer, a single-pass bytecode compiler, a tagged-union value and heap-object
model with a tracing garbage collector, and a stack-based virtual machine.

A host constructs a VM with New, optionally supplying output writers, an
ImportResolver for `import` statements, NativeModules implemented in Go, and
tuning knobs for the heap and call/value stacks, then calls Interpret with a
context, a source string, and the path it should be attributed to in error
messages and stack traces:

	vm := glow.New(glow.WithOutput(os.Stdout))
	err := vm.Interpret(ctx, source, "main.gw")
	os.Exit(glow.ExitCode(err))

Interpret compiles source into a chunk, runs it to completion or until ctx is
done, and returns nil on success. A compile-time syntax error is reported as
a *CompileError, an unhandled exception that propagates past the outermost
frame as a *RuntimeError. ExitCode maps these, a HaltError, and nil to the
process exit codes of the host CLI; the VM has no heap ceiling, so no
interpreter path returns a HaltError.
*/
package glow
