// Package types provides the error kinds and identifiers shared across sweetbre components.
//
// Zero-dependency design: errors.go uses only the standard library so every
// layer can import it. ids.go imports uuid for run identifiers.
package types
