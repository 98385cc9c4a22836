// Package storage is the optional cycle journal: an append-only record of
// every poll cycle for operators. Nothing reads it back at runtime.
package storage
