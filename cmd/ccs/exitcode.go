package main

import (
	"fmt"
	"os"

	"github.com/ccs-cli/ccs/internal/ccserr"
)

// Exit codes. 0 and 1 are the usual success/general-failure pair; the
// rest let scripts distinguish why a CCS invocation failed without
// parsing stderr.
const (
	exitOK              = 0
	exitGeneral         = 1
	exitValidationError = 2
	exitProfileError    = 3
	exitAuthError       = 4
	exitBinaryError     = 5
)

// exitCodeFor maps a service-layer error to one of the codes above.
// Kinds that aren't distinguishable from the named exit codes fall back
// to exitGeneral.
func exitCodeFor(err error) int {
	switch ccserr.KindOf(err) {
	case ccserr.Validation:
		return exitValidationError
	case ccserr.Conflict, ccserr.NotFound:
		return exitProfileError
	case ccserr.External:
		return exitBinaryError
	default:
		return exitGeneral
	}
}

// exitWithError prints err (plus its hint, if any) to stderr and exits
// with the matching code. It is the sole os.Exit call site in the
// program: every command path returns an error up to main instead of
// exiting directly, so cleanup deferred by callers along the way still
// runs.
func exitWithError(err error) {
	if err == nil {
		os.Exit(exitOK)
	}
	fmt.Fprintf(os.Stderr, "ccs: %v\n", err)
	if hint := ccserr.HintOf(err); hint != "" {
		fmt.Fprintf(os.Stderr, "  hint: %s\n", hint)
	}
	os.Exit(exitCodeFor(err))
}
