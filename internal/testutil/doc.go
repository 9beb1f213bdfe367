// Package testutil contains helper builders and utilities used across tests
// to reduce boilerplate when constructing messages and recording transport
// deliveries. They are not intended for production usage.
package testutil
