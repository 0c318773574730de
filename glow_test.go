package glow

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run compiles and executes source to completion, returning everything
// written to stdout and any error from Interpret.
func run(t *testing.T, source string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	vm := New(WithOutput(&out))
	err := vm.Interpret(context.Background(), source, "<test>")
	return out.String(), err
}

func TestInterpret_arithmeticAndEcho(t *testing.T) {
	out, err := run(t, `echo 1 + 2 * 3`)
	require.NoError(t, err)
	assert.Equal(t, "7\n", out)
}

func TestInterpret_stringConcatAndInterpolation(t *testing.T) {
	out, err := run(t, `
var name = "world"
echo "hello, ${name}!"
`)
	require.NoError(t, err)
	assert.Equal(t, "hello, world!\n", out)
}

func TestInterpret_interpolationWithNestedDictLiteral(t *testing.T) {
	out, err := run(t, `
echo "value is ${ {a: 1}.a }"
`)
	require.NoError(t, err)
	assert.Equal(t, "value is 1\n", out)
}

func TestInterpret_functionsAndClosures(t *testing.T) {
	out, err := run(t, `
def makeCounter() {
	var n = 0
	return || {
		n += 1
		return n
	}
}

var counter = makeCounter()
echo counter()
echo counter()
echo counter()
`)
	require.NoError(t, err)
	assert.Equal(t, "1\n2\n3\n", out)
}

func TestInterpret_classesAndInheritance(t *testing.T) {
	out, err := run(t, `
class Animal {
	def Animal(name) {
		self.name = name
	}
	def speak() {
		return self.name + " makes a sound"
	}
}

class Dog < Animal {
	def speak() {
		return parent.speak() + ", specifically a bark"
	}
}

var d = Dog("Rex")
echo d.speak()
`)
	require.NoError(t, err)
	assert.Equal(t, "Rex makes a sound, specifically a bark\n", out)
}

func TestInterpret_tryCatchFinallyRunsOnCaughtException(t *testing.T) {
	out, err := run(t, `
def risky() {
	die Exception("boom")
}

var before = 1
try {
	risky()
} catch Exception e {
	echo "caught: " + e.message
} finally {
	echo "cleanup"
}
echo before
`)
	require.NoError(t, err)
	assert.Equal(t, "caught: boom\ncleanup\n1\n", out)
}

// TestInterpret_executionResumesAfterCatchInNestedFunction guards against a
// bug where run()'s dispatch loop would stop as soon as the function whose
// frame caught the exception returned, rather than continuing until the
// whole program (not just that one call) finished: catching inside a called
// function, with more top-level code after the call, is the case that
// exposes it (catching in the module's own top-level frame does not).
func TestInterpret_executionResumesAfterCatchInNestedFunction(t *testing.T) {
	out, err := run(t, `
def outer() {
	try {
		die Exception("x")
	} catch Exception e {
		echo "caught"
	}
	echo "after-catch-in-outer"
}

outer()
echo "after-outer-call"
`)
	require.NoError(t, err)
	assert.Equal(t, "caught\nafter-catch-in-outer\nafter-outer-call\n", out)
}

func TestInterpret_finallyRunsOnSuccessToo(t *testing.T) {
	out, err := run(t, `
try {
	echo "try"
} finally {
	echo "finally"
}
`)
	require.NoError(t, err)
	assert.Equal(t, "try\nfinally\n", out)
}

func TestInterpret_listAndDictLiterals(t *testing.T) {
	out, err := run(t, `
var xs = [1, 2, 3]
echo xs.len()
echo xs[1]

var d = {a: 1, b: 2}
echo d.a + d.b
`)
	require.NoError(t, err)
	assert.Equal(t, "3\n2\n3\n", out)
}

func TestInterpret_forInOverRange(t *testing.T) {
	out, err := run(t, `
var total = 0
for i in 0..5 {
	total += i
}
echo total
`)
	require.NoError(t, err)
	assert.Equal(t, "10\n", out)
}

func TestInterpret_compileErrorReturnsDiagnostics(t *testing.T) {
	_, err := run(t, `var x = `)
	require.Error(t, err)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.NotEmpty(t, ce.Errors)
	assert.Equal(t, 10, ExitCode(err))
}

func TestInterpret_uncaughtExceptionIsRuntimeError(t *testing.T) {
	_, err := run(t, `die Exception("uh oh")`)
	require.Error(t, err)
	var re *RuntimeError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 11, ExitCode(err))
}
