// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"hassctl/internal/hass"
	"hassctl/internal/migrate"
	"hassctl/internal/registry"

	"github.com/spf13/cobra"
)

var (
	fixRegistryFile string

	// migrateCmd groups the automation unique_id migration commands.
	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Migrate automation unique_ids without losing metadata",
		Long: `Migrate automation unique_ids without losing metadata.

Changing an automation's YAML id while Home Assistant runs makes it
register a fresh entity with a _2 suffix, orphaning the original
entry's area, icon and labels. These commands rewrite the registry
while Home Assistant is stopped, so entity_ids and metadata stay put.

Typical flow:
  hassctl migrate generate > migration.yaml
  # edit new_id values, update your automation YAML to match
  hassctl migrate preview migration.yaml
  hassctl migrate execute migration.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	migrateGenerateCmd = &cobra.Command{
		Use:   "generate",
		Short: "Generate a migration plan from the current registry",
		Args:  cobra.NoArgs,
		RunE:  runMigrateGenerate,
	}

	migratePreviewCmd = &cobra.Command{
		Use:   "preview <file>",
		Short: "Diff a migration plan against the live registry",
		Args:  cobra.ExactArgs(1),
		RunE:  runMigratePreview,
	}

	migrateExecuteCmd = &cobra.Command{
		Use:   "execute <file>",
		Short: "Run the full migration workflow",
		Args:  cobra.ExactArgs(1),
		RunE:  runMigrateExecute,
	}

	migrateFixCmd = &cobra.Command{
		Use:   "fix-registry",
		Short: "Merge _2 duplicates back into their originals",
		Args:  cobra.NoArgs,
		RunE:  runMigrateFix,
	}
)

func init() {
	migrateFixCmd.Flags().StringVar(&fixRegistryFile, "file", "", "operate on a local registry file instead of the remote host")

	migrateCmd.AddCommand(migrateGenerateCmd)
	migrateCmd.AddCommand(migratePreviewCmd)
	migrateCmd.AddCommand(migrateExecuteCmd)
	migrateCmd.AddCommand(migrateFixCmd)
}

// fetchRemoteRegistry pulls and parses the registry file from the host.
func fetchRemoteRegistry() (*registry.Registry, error) {
	ssh, err := dialSSH()
	if err != nil {
		return nil, err
	}
	defer ssh.Close()

	data, err := ssh.FetchBytes(cfg.RegistryPath)
	if err != nil {
		return nil, err
	}
	return registry.Parse(data)
}

func runMigrateGenerate(cmd *cobra.Command, args []string) error {
	reg, err := fetchRemoteRegistry()
	if err != nil {
		return err
	}
	return migrate.WritePlan(os.Stdout, migrate.Candidates(reg))
}

func runMigratePreview(cmd *cobra.Command, args []string) error {
	plan, err := migrate.LoadPlan(args[0])
	if err != nil {
		return err
	}
	if err := plan.Validate(); err != nil {
		if errors.Is(err, migrate.ErrEmptyPlan) {
			fmt.Println("No migrations defined in plan file.")
			return nil
		}
		return err
	}

	reg, err := fetchRemoteRegistry()
	if err != nil {
		return err
	}
	report := migrate.Preview(reg, plan)

	fmt.Println(TitleStyle.Render("Migration Preview"))
	fmt.Println(strings.Repeat("=", 60))
	fmt.Println()

	for _, item := range report.Items {
		if item.Found {
			fmt.Printf("%s %s -> %s\n", SuccessStyle.Render("MIGRATE:"), item.OldID, item.NewID)
			fmt.Printf("  entity_id: %s\n", item.EntityID)
			if len(item.Metadata) > 0 {
				fmt.Printf("  metadata: %s (will be preserved)\n", strings.Join(item.Metadata, ", "))
			}
		} else {
			fmt.Printf("%s %s\n", WarningStyle.Render("NOT FOUND:"), item.OldID)
			fmt.Println("  (may already be migrated)")
		}
		fmt.Println()
	}

	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("Found: %d, Not found: %d, With metadata: %d\n",
		report.Found, report.NotFound, report.WithMetadata)
	return nil
}

// newWorkflow wires the migration workflow to the live host.
func newWorkflow(ssh migrate.Transport) (*migrate.Workflow, error) {
	if err := cfg.RequireToken(); err != nil {
		return nil, err
	}
	return &migrate.Workflow{
		Transport:    ssh,
		Stopper:      hass.NewRESTClient(cfg.Server, cfg.Token, hass.WithRESTLogger(logger)),
		Backups:      backupStore(),
		RegistryPath: cfg.RegistryPath,
		Logger:       logger,
	}, nil
}

func runMigrateExecute(cmd *cobra.Command, args []string) error {
	plan, err := migrate.LoadPlan(args[0])
	if err != nil {
		return err
	}
	if err := plan.Validate(); err != nil {
		return err
	}

	fmt.Println(TitleStyle.Render("AUTOMATION ID MIGRATION"))
	fmt.Println()
	fmt.Println("This will:")
	fmt.Println("  1. Create a local backup of the entity registry")
	fmt.Println("  2. Stop Home Assistant")
	fmt.Println("  3. Rewrite registry unique_ids")
	fmt.Println("  4. Reboot Home Assistant")
	fmt.Println()
	fmt.Println(WarningStyle.Render("IMPORTANT:") + " update your automation YAML files FIRST with the new ids!")
	fmt.Println()

	if !confirm("Continue?") {
		fmt.Println("Migration cancelled.")
		return nil
	}

	ssh, err := dialSSH()
	if err != nil {
		return err
	}
	defer ssh.Close()

	workflow, err := newWorkflow(ssh)
	if err != nil {
		return err
	}
	report, err := workflow.Execute(cmd.Context(), plan.Mapping())
	if err != nil {
		return err
	}

	printWorkflowResult(report)
	if report.Remap != nil {
		fmt.Printf("Updated %d entries", len(report.Remap.Changes))
		if len(report.Remap.NotFound) > 0 {
			fmt.Printf(" (%d ids not found: %s)", len(report.Remap.NotFound), strings.Join(report.Remap.NotFound, ", "))
		}
		fmt.Println()
	}
	fmt.Println()
	fmt.Println("Wait 1-2 minutes for Home Assistant to start, then verify:")
	fmt.Println("  - Automations appear without _2 suffix")
	fmt.Println("  - Metadata (area, icon, labels) preserved")
	return nil
}

func runMigrateFix(cmd *cobra.Command, args []string) error {
	fmt.Println(TitleStyle.Render("FIX REGISTRY (merge _2 duplicates)"))
	fmt.Println()
	fmt.Println("This fixes the registry AFTER you've already updated YAML ids.")
	fmt.Println("It will find _2 entries, copy their unique_id onto the original,")
	fmt.Println("and remove the duplicate.")
	fmt.Println()

	if !confirm("Continue?") {
		fmt.Println("Fix cancelled.")
		return nil
	}

	if fixRegistryFile != "" {
		report, err := migrate.FixFile(fixRegistryFile, nil)
		if err != nil {
			return err
		}
		fmt.Printf("Backup: %s\n", report.Backup.Path)
		printMergeChanges(report.Merge)
		fmt.Println(SuccessStyle.Render("Done!") + " Start Home Assistant now.")
		return nil
	}

	ssh, err := dialSSH()
	if err != nil {
		return err
	}
	defer ssh.Close()

	workflow, err := newWorkflow(ssh)
	if err != nil {
		return err
	}
	report, err := workflow.FixRegistry(cmd.Context())
	if err != nil {
		return err
	}

	printWorkflowResult(report)
	printMergeChanges(report.Merge)
	fmt.Println()
	fmt.Println(SuccessStyle.Render("Fix complete!") + " Home Assistant is rebooting.")
	return nil
}

func printWorkflowResult(report *migrate.Report) {
	if report.Backup != nil {
		fmt.Printf("Backup: %s\n", filepath.Base(report.Backup.Path))
	}
}

func printMergeChanges(merge *registry.MergeResult) {
	if merge == nil {
		return
	}
	for _, c := range merge.Changes {
		fmt.Printf("  %s %s\n", SuccessStyle.Render("UPDATE:"), c.EntityID)
		fmt.Printf("    unique_id: %s -> %s\n", c.OldUniqueID, c.NewUniqueID)
		if len(c.Preserved) > 0 {
			fmt.Printf("    (preserved: %s)\n", strings.Join(c.Preserved, ", "))
		}
	}
	fmt.Printf("\nUpdated: %d, Removed _2 entries: %d\n", len(merge.Changes), merge.Removed)
}
