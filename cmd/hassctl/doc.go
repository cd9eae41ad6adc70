// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for hassctl.
//
// This package implements the Cobra command hierarchy: backup commands for
// the entity registry, metadata and label commands for the WebSocket API,
// and the automation id migration commands.
package cmd
