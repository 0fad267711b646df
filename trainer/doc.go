// Package trainer fits candidate models in isolated worker processes.
//
// Each Train call starts a fresh worker (by default the current executable
// with the hidden fit-worker command), sends it the observations and order on
// stdin and reads the fitted snapshot from stdout. The worker lowers its own
// address-space limit before fitting, so a runaway fit cannot take the
// parent down with it. Workers that outlive their timeout are sent SIGTERM,
// then SIGKILL after a grace period.
//
// Local fits in the calling process with the same contract and no memory
// isolation.
package trainer
