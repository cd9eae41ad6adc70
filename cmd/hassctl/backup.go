// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	backupKeep int

	// backupCmd groups the local registry backup commands.
	backupCmd = &cobra.Command{
		Use:   "backup",
		Short: "Back up and restore the entity registry",
		Long: `Back up and restore the Home Assistant entity registry.

Backups are fetched over SSH and stored locally as timestamped JSON
files. Restores push a backup to the host and move it into place with
sudo; Home Assistant must be stopped first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	backupCreateCmd = &cobra.Command{
		Use:   "create",
		Short: "Fetch the registry and store a timestamped local backup",
		Args:  cobra.NoArgs,
		RunE:  runBackupCreate,
	}

	backupListCmd = &cobra.Command{
		Use:   "list",
		Short: "List local backups",
		Args:  cobra.NoArgs,
		RunE:  runBackupList,
	}

	backupRestoreCmd = &cobra.Command{
		Use:   "restore <timestamp>",
		Short: "Upload a backup and move it into place on the host",
		Args:  cobra.ExactArgs(1),
		RunE:  runBackupRestore,
	}

	backupCleanCmd = &cobra.Command{
		Use:   "clean",
		Short: "Delete all but the most recent backups",
		Args:  cobra.NoArgs,
		RunE:  runBackupClean,
	}
)

func init() {
	backupCleanCmd.Flags().IntVar(&backupKeep, "keep", 0, "backups to retain (default from config)")

	backupCmd.AddCommand(backupCreateCmd)
	backupCmd.AddCommand(backupListCmd)
	backupCmd.AddCommand(backupRestoreCmd)
	backupCmd.AddCommand(backupCleanCmd)
}

func runBackupCreate(cmd *cobra.Command, args []string) error {
	ssh, err := dialSSH()
	if err != nil {
		return err
	}
	defer ssh.Close()

	fmt.Println("Fetching registry from Home Assistant...")
	data, err := ssh.FetchBytes(cfg.RegistryPath)
	if err != nil {
		return err
	}

	backup, err := backupStore().Create(data)
	if err != nil {
		return err
	}

	fmt.Printf("%s Backup created: %s\n", SuccessStyle.Render("✓"), filepath.Base(backup.Path))
	fmt.Printf("  Entities: %d\n", backup.Entities)
	fmt.Printf("  Size: %d bytes\n", backup.Size)
	return nil
}

func runBackupList(cmd *cobra.Command, args []string) error {
	backups, err := backupStore().List()
	if err != nil {
		return err
	}
	if len(backups) == 0 {
		fmt.Println("No backups found.")
		return nil
	}

	fmt.Printf("Available backups (%d):\n\n", len(backups))
	widths := []int{18, 8, 12}
	fmt.Println(headerStyle.Render(renderRow(widths, "Timestamp", "Entities", "Size")))
	for _, b := range backups {
		entities := fmt.Sprintf("%d", b.Entities)
		if !b.Valid {
			entities = ErrorStyle.Render("invalid")
		}
		fmt.Println(renderRow(widths, b.Timestamp, entities, fmt.Sprintf("%d bytes", b.Size)))
	}
	return nil
}

func runBackupRestore(cmd *cobra.Command, args []string) error {
	backup, err := backupStore().Find(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Restoring backup: %s\n", filepath.Base(backup.Path))
	fmt.Printf("  Entities: %d\n\n", backup.Entities)
	fmt.Println(WarningStyle.Render("WARNING:") + " Home Assistant should be STOPPED before restoring!")
	fmt.Println("  Stop it first, restore, then reboot the host.")
	fmt.Println()

	if !confirm("Continue with restore?") {
		fmt.Println("Restore cancelled.")
		return nil
	}

	ssh, err := dialSSH()
	if err != nil {
		return err
	}
	defer ssh.Close()

	// Keep a copy of the current registry on the host before overwriting.
	fmt.Println("Creating remote backup before restore...")
	remoteCopy := cfg.RegistryPath + ".pre_restore"
	if err := ssh.SudoCopy(cfg.RegistryPath, remoteCopy); err != nil {
		fmt.Println(WarningStyle.Render("Warning: ") + "could not create remote backup: " + err.Error())
	}

	fmt.Println("Uploading backup...")
	staging := "/tmp/registry_restore.json"
	if err := ssh.Push(backup.Path, staging); err != nil {
		return err
	}
	if err := ssh.SudoMove(staging, cfg.RegistryPath); err != nil {
		return err
	}

	fmt.Println(SuccessStyle.Render("Restore complete!"))
	fmt.Println("Now reboot Home Assistant to apply changes.")
	return nil
}

func runBackupClean(cmd *cobra.Command, args []string) error {
	keep := backupKeep
	if keep <= 0 {
		keep = cfg.BackupKeep
	}

	store := backupStore()
	backups, err := store.List()
	if err != nil {
		return err
	}
	if len(backups) <= keep {
		fmt.Printf("Only %d backup(s) exist, keeping all (threshold: %d).\n", len(backups), keep)
		return nil
	}

	removed, err := store.Clean(keep)
	for _, b := range removed {
		fmt.Printf("Removed: %s\n", filepath.Base(b.Path))
	}
	if err != nil {
		return err
	}
	fmt.Printf("\nRemoved %d old backup(s), kept %d most recent.\n", len(removed), keep)
	return nil
}
