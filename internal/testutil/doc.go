// Package testutil contains helper builders and fakes used across tests to
// reduce boilerplate when constructing telemetry records and tools that
// remember how they were called. They are not intended for production usage.
package testutil
