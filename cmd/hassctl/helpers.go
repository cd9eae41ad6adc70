// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"hassctl/internal/hass"
	"hassctl/internal/registry"
	"hassctl/internal/remote"
)

// confirm prompts for a y/N answer on stdin. --yes answers every prompt
// affirmatively for scripted use.
func confirm(prompt string) bool {
	if assumeYes {
		return true
	}

	fmt.Printf("%s [y/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(answer), "y")
}

// dialWS opens an authenticated WebSocket connection using the loaded
// configuration. Callers must Close the client.
func dialWS(ctx context.Context) (*hass.Client, error) {
	if err := cfg.RequireToken(); err != nil {
		return nil, err
	}
	return hass.Dial(ctx, cfg.Server, cfg.Token, hass.WithLogger(logger))
}

// dialSSH opens an SSH connection to the Home Assistant host.
// Callers must Close the client.
func dialSSH() (*remote.Client, error) {
	return remote.Dial(remote.Config{
		Addr:    cfg.SSHAddress(),
		User:    cfg.SSH.User,
		KeyFile: cfg.SSH.KeyFile,
	}, logger)
}

// backupStore returns the Store over the configured backup directory.
func backupStore() *registry.Store {
	return registry.NewStore(cfg.BackupDir)
}

// renderRow formats fixed-width table columns.
func renderRow(widths []int, cells ...string) string {
	var b strings.Builder
	for i, cell := range cells {
		if i > 0 {
			b.WriteString("  ")
		}
		if i < len(widths) {
			fmt.Fprintf(&b, "%-*s", widths[i], cell)
		} else {
			b.WriteString(cell)
		}
	}
	return strings.TrimRight(b.String(), " ")
}
