// Package core defines the shared language of the LeapDriver system.
//
// This package contains:
//   - Error kinds and the structured *Error every public call returns
//   - The warning chain attached to connections and statements
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
