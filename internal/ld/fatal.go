package ld

import "fmt"

// fatalError marks an unrecoverable pass failure: the three conditions
// of spec §7 (an unsupported architecture reaching the parameter table,
// a region plan with no legal insertion point, an island variant the
// island factory doesn't recognize) plus the resolver's and splicer's
// internal-consistency checks (no planned region for a chain, an
// unsupported architecture when choosing a variant, an insertion point
// missing from its host section). It is raised with panic and recovered
// at the top of Run, the way the teacher's parser.go compilerError
// panics and expects CompileC67 to recover it.
type fatalError struct{ msg string }

func (e *fatalError) Error() string { return e.msg }

func fatalf(format string, args ...interface{}) {
	panic(&fatalError{msg: fmt.Sprintf(format, args...)})
}

// Recover turns a fatalf panic into an error return. Any other panic
// propagates unchanged: only the fatalf conditions listed above are
// part of this pass's error contract.
func Recover(errp *error) {
	if r := recover(); r != nil {
		if fe, ok := r.(*fatalError); ok {
			*errp = fe
			return
		}
		panic(r)
	}
}
