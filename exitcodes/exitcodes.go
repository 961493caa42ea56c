// Package exitcodes defines the standard exit codes used by op-testfloat.
package exitcodes

// Exit code constants used by op-testfloat.
//
// A consumer mismatch does not have a constant of its own: the harness exits
// with the consumer's own status, so a consumer exiting 7 makes op-testfloat
// exit 7.
//
// * Success (0): every test case passed
// * ConfigErr (1): unrecognized token or invalid flag combination, nothing was run
// * RuntimeErr (2): pipe or spawn failure, interrupt, log directory failure
// * GeneratorFailure (3): the generator failed while the consumer passed (--check-generator)
// * Unresponsive (124): a test case exceeded --case-timeout
const (
	Success          = 0
	ConfigErr        = 1
	RuntimeErr       = 2
	GeneratorFailure = 3
	Unresponsive     = 124
)
