// Package registry implements the material registry state machine.
//
// A Registry owns every piece of registry state: the configuration
// (next id, capacity, registration fee, authority) and the two indexes
// over materials (id -> Material and content hash -> id). All state changes
// go through the Registry's operations; each operation is atomic with
// respect to all others and either fully applies or leaves state untouched.
//
// The registry never moves value itself. A successful registration yields a
// Transfer command describing the fee owed by the registrant to the
// authority. Hosts that need settlement to be a precondition of commit
// install a CommitGuard (see WithCommitGuard); otherwise the Transfer is
// returned in the Receipt for the caller's own transaction boundary.
package registry
