//go:build !debug

package debug

// Assert is a no-op outside debug builds.
func Assert(cond bool) {}

// Assertf is a no-op outside debug builds.
func Assertf(cond bool, format string, args ...interface{}) {}

// AssertNoErr is a no-op outside debug builds.
func AssertNoErr(err error) {}
