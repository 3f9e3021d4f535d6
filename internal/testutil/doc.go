// Package testutil contains helper builders used across tests to reduce
// boilerplate when constructing conversation states and run traces. They are
// not intended for production usage.
package testutil
