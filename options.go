package glow

import (
	"io"
	"io/ioutil"

	"github.com/jcorbin/glow/internal/flushio"
)

// VMOption configures a VM at construction, following the standard
// functional-options idiom.
type VMOption interface{ apply(vm *VM) }

var defaultOptions = VMOptions(
	withOutput(ioutil.Discard),
	withStderr(ioutil.Discard),
)

// VMOptions flattens and combines a slice of options into one, so that
// New can apply defaults and caller-supplied options uniformly.
func VMOptions(opts ...VMOption) VMOption {
	var res options
	for _, opt := range opts {
		switch impl := opt.(type) {
		case nil, noption:
		case options:
			res = append(res, impl...)
		default:
			res = append(res, opt)
		}
	}
	switch len(res) {
	case 0:
		return noption{}
	case 1:
		return res[0]
	default:
		return res
	}
}

type noption struct{}

func (noption) apply(vm *VM) {}

type options []VMOption

func (opts options) apply(vm *VM) {
	for _, opt := range opts {
		if opt != nil {
			opt.apply(vm)
		}
	}
}

// WithOutput sets the writer `echo` and friends write to; the default is
// discarded.
func WithOutput(w io.Writer) VMOption { return withOutput(w) }

// WithStderr sets the writer unhandled-exception reports are printed to.
func WithStderr(w io.Writer) VMOption { return withStderr(w) }

// WithImportResolver configures how `import` statements resolve a path
// outside the native-module registry (§6). A VM with no resolver and no
// matching native module fails any import with a compile error.
func WithImportResolver(r ImportResolver) VMOption { return importResolverOption{r} }

// WithNativeModule registers a Go-implemented module under its own Name,
// making it importable without going through the ImportResolver.
func WithNativeModule(m *NativeModule) VMOption { return nativeModuleOption{m} }

// WithHeapGrowthFactor overrides the GC's default 1.25 threshold-growth
// factor (§4.6).
func WithHeapGrowthFactor(f float64) VMOption { return heapGrowthOption(f) }

// WithMaxFrames overrides the default 512-deep call-frame limit (§4.2).
func WithMaxFrames(n int) VMOption { return maxFramesOption(n) }

// WithMaxStack overrides the default 1024-slot value-stack capacity (§4.2).
func WithMaxStack(n int) VMOption { return maxStackOption(n) }

// WithLogf installs a trace-logging callback, invoked after each GC cycle;
// nil (the default) disables tracing entirely.
func WithLogf(logfn func(mark, mess string, args ...interface{})) VMOption { return withLogfn(logfn) }

type withLogfn func(mark, mess string, args ...interface{})

func (logfn withLogfn) apply(vm *VM) { vm.logf = logfn }

type outputOption struct{ io.Writer }
type stderrOption struct{ io.Writer }

func withOutput(w io.Writer) outputOption { return outputOption{w} }
func withStderr(w io.Writer) stderrOption { return stderrOption{w} }

func (o outputOption) apply(vm *VM) {
	if vm.out != nil {
		vm.out.Flush()
	}
	vm.out = flushio.NewWriteFlusher(o.Writer)
}

func (o stderrOption) apply(vm *VM) {
	if vm.errOut != nil {
		vm.errOut.Flush()
	}
	vm.errOut = flushio.NewWriteFlusher(o.Writer)
}

type importResolverOption struct{ r ImportResolver }

func (o importResolverOption) apply(vm *VM) { vm.resolver = o.r }

type nativeModuleOption struct{ m *NativeModule }

func (o nativeModuleOption) apply(vm *VM) { vm.registerNativeModule(o.m) }

type heapGrowthOption float64

func (f heapGrowthOption) apply(vm *VM) { vm.heap.growthFactor = float64(f) }

type maxFramesOption int

func (n maxFramesOption) apply(vm *VM) {
	if int(n) <= 0 {
		return
	}
	vm.frames = make([]callFrame, int(n))
	vm.frameCap = int(n)
}

type maxStackOption int

func (n maxStackOption) apply(vm *VM) {
	if int(n) <= 0 {
		return
	}
	stack := make([]Value, len(vm.stack), int(n))
	copy(stack, vm.stack)
	vm.stack = stack
	vm.stackCap = int(n)
}
