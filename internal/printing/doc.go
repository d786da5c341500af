// Package printing is the print-job reliability layer: it owns the
// connection to one local printer, submits a file, follows the job to a
// terminal outcome, retries with backoff, and reports whether paper is left.
//
// None of the types here are safe for concurrent use. The booth drives them
// from a single goroutine.
package printing
