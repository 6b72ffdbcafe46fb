//go:build debug

// Package debug provides invariant checks compiled only into debug builds
// (build tag "debug"), the same split the teacher's cmn/debug package uses
// so asserts cost nothing in production.
package debug

import "fmt"

// Assert panics if cond is false.
func Assert(cond bool) {
	if !cond {
		panic("debug: assertion failed")
	}
}

// Assertf panics with a formatted message if cond is false.
func Assertf(cond bool, format string, args ...interface{}) {
	if !cond {
		panic(fmt.Sprintf("debug: "+format, args...))
	}
}

// AssertNoErr panics if err is non-nil.
func AssertNoErr(err error) {
	if err != nil {
		panic(fmt.Sprintf("debug: unexpected error: %v", err))
	}
}
