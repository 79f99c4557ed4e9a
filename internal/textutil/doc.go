// Package textutil turns free-form singer names into filesystem-safe tokens
// for artifact and bundle names.
package textutil
