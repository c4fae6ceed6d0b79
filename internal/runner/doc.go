// Package runner invokes the external forward-modeling tools.
//
// The simulator and topology extractor are opaque executables. A run writes
// its outputs next to the given prefix (prefix.g01, prefix.g12, ...,
// prefix.g23 for topology) and signals failure only through its exit status.
// There is no timeout: a hung tool blocks its caller until ctx is cancelled.
package runner
