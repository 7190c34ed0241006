package polite

import "fmt"

// assertf panics with a formatted message. Used for the policy-violation
// class of errors spec.md §7 calls fatal assertions: release of an
// unknown batch, double release, a negative active-fetcher count. These
// are programmer errors, not recoverable conditions, so they are never
// reported through a return value.
func assertf(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf(format, args...))
	}
}
