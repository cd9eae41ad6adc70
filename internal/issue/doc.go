// SPDX-License-Identifier: MPL-2.0

// Package issue provides user-facing error types for the hassctl CLI.
// Errors carry the failed operation, the resource involved, and concrete
// suggestions so command output tells the user what to do next.
package issue
