// Package scheme implements interception of application-defined URL schemes
// inside an embedded webview. A registered resolver answers each intercepted
// request either atomically (one Response) or incrementally (a stream of
// chunks driven through a StreamWriter).
//
// The package is transport-agnostic: each native toolkit is represented by a
// Backend adapter that translates the executor's state transitions into that
// toolkit's completion calls. Per-request native objects live behind a
// lock-protected HandleTable so that cancellation from the toolkit side and
// writes from an application-spawned producer goroutine can race safely.
package scheme
