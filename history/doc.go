// Package history keeps the records of finished runs so that their answers
// and traces can be looked up by run ID after the request returned.
//
// The in-memory store is volatile and bounded; it suits a single process
// serving the HTTP API and tests.
package history
