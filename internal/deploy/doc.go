// Package deploy runs the redeploy pipeline against one target.
//
// The pipeline is a fixed sequence of steps:
//
//	announce-start → stop-service → wipe-destination → copy-files → install → announce-complete
//
// Best-effort steps log their failure and the run continues. A failing required step
// aborts the run: later steps are skipped, the failure is announced on the remote
// console when possible, and Run returns a *StepError.
package deploy
