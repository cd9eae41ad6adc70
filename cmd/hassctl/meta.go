// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"hassctl/internal/hass"
	"hassctl/internal/metadata"
	"hassctl/internal/registry"

	"github.com/spf13/cobra"
)

var (
	metaExportAll bool
	metaDryRun    bool
	metaSetIcon   string
	metaSetArea   string
	metaSetLabels string

	// metaCmd groups the automation metadata commands.
	metaCmd = &cobra.Command{
		Use:   "meta",
		Short: "Inspect and edit automation metadata",
		Long: `Inspect and edit automation metadata (areas, icons, labels)
through the Home Assistant WebSocket API.

Run 'hassctl meta stats' first to see current coverage, export the
metadata to YAML, edit it, and apply it back.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	metaStatsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Show automation metadata coverage",
		Args:  cobra.NoArgs,
		RunE:  runMetaStats,
	}

	metaExportCmd = &cobra.Command{
		Use:   "export",
		Short: "Export automation metadata as YAML on stdout",
		Args:  cobra.NoArgs,
		RunE:  runMetaExport,
	}

	metaApplyCmd = &cobra.Command{
		Use:   "apply <file>",
		Short: "Apply a YAML metadata plan",
		Args:  cobra.ExactArgs(1),
		RunE:  runMetaApply,
	}

	metaSetCmd = &cobra.Command{
		Use:   "set <entity_id>",
		Short: "Set metadata for a single automation",
		Args:  cobra.ExactArgs(1),
		RunE:  runMetaSet,
	}
)

func init() {
	metaExportCmd.Flags().BoolVar(&metaExportAll, "all", false, "include automations without metadata")
	metaApplyCmd.Flags().BoolVar(&metaDryRun, "dry-run", false, "preview changes without applying")
	metaSetCmd.Flags().StringVar(&metaSetIcon, "icon", "", "icon (e.g. mdi:thermometer)")
	metaSetCmd.Flags().StringVar(&metaSetArea, "area", "", "area id")
	metaSetCmd.Flags().StringVar(&metaSetLabels, "labels", "", "comma-separated label ids")

	metaCmd.AddCommand(metaStatsCmd)
	metaCmd.AddCommand(metaExportCmd)
	metaCmd.AddCommand(metaApplyCmd)
	metaCmd.AddCommand(metaSetCmd)
}

// registryFromEntities wraps live WebSocket entries in a registry document
// so the same coverage computations work on live and on-disk data.
func registryFromEntities(entities []hass.EntityEntry) (*registry.Registry, error) {
	doc, err := json.Marshal(map[string]any{
		"version":       1,
		"minor_version": 1,
		"key":           "core.entity_registry",
		"data":          map[string]any{"entities": entities},
	})
	if err != nil {
		return nil, err
	}
	return registry.Parse(doc)
}

func runMetaStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	client, err := dialWS(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	entities, err := client.ListEntities(ctx)
	if err != nil {
		return err
	}
	areas, err := client.ListAreas(ctx)
	if err != nil {
		return err
	}

	reg, err := registryFromEntities(entities)
	if err != nil {
		return err
	}
	stats := reg.AutomationStats()

	fmt.Println(TitleStyle.Render("Automation Metadata Statistics"))
	fmt.Println(strings.Repeat("=", 50))
	fmt.Printf("Total automations: %d\n\n", stats.Total)
	fmt.Printf("With area:   %4d/%d (%d%%)\n", stats.WithArea, stats.Total, stats.Percent(stats.WithArea))
	fmt.Printf("With icon:   %4d/%d (%d%%)\n", stats.WithIcon, stats.Total, stats.Percent(stats.WithIcon))
	fmt.Printf("With labels: %4d/%d (%d%%)\n\n", stats.WithLabels, stats.Total, stats.Percent(stats.WithLabels))

	if len(stats.ByArea) > 0 {
		fmt.Println("By Area:")
		fmt.Println(strings.Repeat("-", 50))
		for _, ac := range stats.SortedByArea() {
			name := areas[ac.AreaID]
			if name == "" {
				name = ac.AreaID
			}
			fmt.Printf("  %-25s %4d\n", name, ac.Count)
		}
		if len(stats.MissingArea) > 0 {
			fmt.Printf("  %-25s %4d\n", "(no area)", len(stats.MissingArea))
		}
		fmt.Println()
	}

	switch {
	case len(stats.MissingArea) == 0:
	case len(stats.MissingArea) <= 20:
		fmt.Println("Automations missing area:")
		fmt.Println(strings.Repeat("-", 50))
		for _, id := range stats.MissingArea {
			fmt.Printf("  %s\n", id)
		}
	default:
		fmt.Printf("Automations missing area: %d (use 'export --all' to see them)\n", len(stats.MissingArea))
	}
	return nil
}

func runMetaExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	client, err := dialWS(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	entities, err := client.ListEntities(ctx)
	if err != nil {
		return err
	}
	areas, err := client.ListAreas(ctx)
	if err != nil {
		return err
	}

	return metadata.Export(os.Stdout, entities, areas, metadata.ExportOptions{All: metaExportAll})
}

func runMetaApply(cmd *cobra.Command, args []string) error {
	plan, err := metadata.LoadPlan(args[0])
	if err != nil {
		return err
	}
	if len(plan.Automations) == 0 {
		fmt.Println("No automations found in plan file.")
		return nil
	}

	ctx := cmd.Context()
	client, err := dialWS(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	labels, err := client.ListLabels(ctx)
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(labels))
	for _, l := range labels {
		known[l.LabelID] = true
	}

	missing := make(map[string][]string)
	for _, m := range plan.Validate(known) {
		missing[m.EntityID] = m.Labels
		fmt.Printf("%s %s - missing labels: %s\n",
			WarningStyle.Render("WARNING:"), m.EntityID, strings.Join(m.Labels, ", "))
		fmt.Println("  Create them first: hassctl label create <name>")
	}

	var applied, failed, skipped int
	for _, entityID := range plan.SortedIDs() {
		meta := plan.Automations[entityID]

		if metaDryRun {
			fmt.Printf("[DRY-RUN] Would update %s:\n", CmdStyle.Render(entityID))
			if meta.Icon != "" {
				fmt.Printf("  icon: %s\n", meta.Icon)
			}
			if meta.AreaID != "" {
				fmt.Printf("  area_id: %s\n", meta.AreaID)
			}
			if len(meta.Labels) > 0 {
				fmt.Printf("  labels: %s\n", strings.Join(meta.Labels, ", "))
			}
			skipped++
			continue
		}

		if _, bad := missing[entityID]; bad {
			failed++
			continue
		}

		if _, err := client.UpdateEntity(ctx, updateFromMeta(entityID, meta)); err != nil {
			fmt.Printf("%s %s - %v\n", ErrorStyle.Render("ERROR:"), entityID, err)
			failed++
			continue
		}
		fmt.Printf("%s %s\n", SuccessStyle.Render("OK:"), entityID)
		applied++
	}

	fmt.Println()
	if metaDryRun {
		fmt.Printf("Dry run complete. Would update %d automation(s).\n", skipped)
		return nil
	}
	fmt.Printf("Complete. Success: %d, Errors: %d\n", applied, failed)
	if failed > 0 {
		return &ExitError{Code: 1, Err: fmt.Errorf("%d update(s) failed", failed)}
	}
	return nil
}

// updateFromMeta builds the partial update, leaving absent fields untouched
// on the server.
func updateFromMeta(entityID string, meta metadata.EntityMeta) hass.EntityUpdate {
	update := hass.EntityUpdate{EntityID: entityID}
	if meta.Icon != "" {
		update.Icon = &meta.Icon
	}
	if meta.AreaID != "" {
		update.AreaID = &meta.AreaID
	}
	if len(meta.Labels) > 0 {
		update.Labels = &meta.Labels
	}
	return update
}

func runMetaSet(cmd *cobra.Command, args []string) error {
	if metaSetIcon == "" && metaSetArea == "" && metaSetLabels == "" {
		return fmt.Errorf("at least one of --icon, --area, or --labels is required")
	}

	ctx := cmd.Context()
	client, err := dialWS(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	update := hass.EntityUpdate{EntityID: args[0]}
	if metaSetIcon != "" {
		update.Icon = &metaSetIcon
	}
	if metaSetArea != "" {
		update.AreaID = &metaSetArea
	}
	if metaSetLabels != "" {
		labels := strings.Split(metaSetLabels, ",")
		for i := range labels {
			labels[i] = strings.TrimSpace(labels[i])
		}

		known, err := client.ListLabels(ctx)
		if err != nil {
			return err
		}
		ids := make(map[string]bool, len(known))
		for _, l := range known {
			ids[l.LabelID] = true
		}
		var missing []string
		for _, l := range labels {
			if !ids[l] {
				missing = append(missing, l)
			}
		}
		if len(missing) > 0 {
			return fmt.Errorf("labels don't exist: %s (create them first with 'hassctl label create <name>')",
				strings.Join(missing, ", "))
		}
		update.Labels = &labels
	}

	result, err := client.UpdateEntity(ctx, update)
	if err != nil {
		return err
	}

	fmt.Printf("%s Updated %s\n", SuccessStyle.Render("✓"), CmdStyle.Render(args[0]))
	if result != nil {
		if result.Icon != "" {
			fmt.Printf("  icon: %s\n", result.Icon)
		}
		if result.AreaID != "" {
			fmt.Printf("  area_id: %s\n", result.AreaID)
		}
		if len(result.Labels) > 0 {
			fmt.Printf("  labels: %s\n", strings.Join(result.Labels, ", "))
		}
	}
	return nil
}
