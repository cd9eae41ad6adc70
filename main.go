// SPDX-License-Identifier: MPL-2.0

// hassctl is a maintenance CLI for a Home Assistant instance's entity
// registry: backups over SSH, automation metadata editing over the
// WebSocket API, and automation unique_id migration.
package main

import cmd "hassctl/cmd/hassctl"

func main() {
	cmd.Execute()
}
