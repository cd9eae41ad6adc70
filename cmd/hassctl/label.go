// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"sort"

	"hassctl/internal/metadata"

	"github.com/spf13/cobra"
)

var (
	labelCreateIcon  string
	labelCreateColor string
	labelPattern     string

	// labelCmd groups the label registry commands.
	labelCmd = &cobra.Command{
		Use:   "label",
		Short: "Manage the label registry",
		Long: `Manage the Home Assistant label registry.

Labels must exist before 'meta apply' or 'meta set' can reference them.
'label suggest' previews which automations a glob pattern would match
before you commit to a label.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	labelListCmd = &cobra.Command{
		Use:   "list",
		Short: "List all labels",
		Args:  cobra.NoArgs,
		RunE:  runLabelList,
	}

	labelCreateCmd = &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new label",
		Args:  cobra.ExactArgs(1),
		RunE:  runLabelCreate,
	}

	labelDeleteCmd = &cobra.Command{
		Use:   "delete <label_id>",
		Short: "Delete a label",
		Args:  cobra.ExactArgs(1),
		RunE:  runLabelDelete,
	}

	labelSuggestCmd = &cobra.Command{
		Use:   "suggest <name>",
		Short: "Preview which automations a label pattern would match",
		Args:  cobra.ExactArgs(1),
		RunE:  runLabelSuggest,
	}
)

func init() {
	labelCreateCmd.Flags().StringVar(&labelCreateIcon, "icon", "", "icon (e.g. mdi:thermometer)")
	labelCreateCmd.Flags().StringVar(&labelCreateColor, "color", "", "color name")
	labelSuggestCmd.Flags().StringVar(&labelPattern, "pattern", "", "glob pattern (e.g. 'automation.*thermostat*')")
	_ = labelSuggestCmd.MarkFlagRequired("pattern")

	labelCmd.AddCommand(labelListCmd)
	labelCmd.AddCommand(labelCreateCmd)
	labelCmd.AddCommand(labelDeleteCmd)
	labelCmd.AddCommand(labelSuggestCmd)
}

func runLabelList(cmd *cobra.Command, args []string) error {
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
	if len(labels) == 0 {
		fmt.Println("No labels defined.")
		return nil
	}

	sort.Slice(labels, func(i, j int) bool { return labels[i].Name < labels[j].Name })

	fmt.Printf("Labels (%d):\n\n", len(labels))
	widths := []int{25, 20, 25, 10}
	fmt.Println(headerStyle.Render(renderRow(widths, "ID", "Name", "Icon", "Color")))
	for _, l := range labels {
		fmt.Println(renderRow(widths, l.LabelID, l.Name, l.Icon, l.Color))
	}
	return nil
}

func runLabelCreate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	client, err := dialWS(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	label, err := client.CreateLabel(ctx, args[0], labelCreateIcon, labelCreateColor)
	if err != nil {
		return err
	}

	id := args[0]
	if label != nil && label.LabelID != "" {
		id = label.LabelID
	}
	fmt.Printf("%s Created label: %s\n", SuccessStyle.Render("✓"), id)
	if labelCreateIcon != "" {
		fmt.Printf("  icon: %s\n", labelCreateIcon)
	}
	if labelCreateColor != "" {
		fmt.Printf("  color: %s\n", labelCreateColor)
	}
	return nil
}

func runLabelDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	client, err := dialWS(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.DeleteLabel(ctx, args[0]); err != nil {
		return err
	}
	fmt.Printf("%s Deleted label: %s\n", SuccessStyle.Render("✓"), args[0])
	return nil
}

func runLabelSuggest(cmd *cobra.Command, args []string) error {
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

	var matches []string
	for _, e := range entities {
		if !e.IsAutomation() {
			continue
		}
		ok, err := metadata.MatchPattern(labelPattern, e.EntityID)
		if err != nil {
			return err
		}
		if ok {
			matches = append(matches, e.EntityID)
		}
	}

	if len(matches) == 0 {
		fmt.Printf("No automations match pattern '%s'\n", labelPattern)
		return nil
	}

	sort.Strings(matches)
	fmt.Printf("Automations matching '%s':\n\n", labelPattern)
	for _, id := range matches {
		fmt.Printf("  %s\n", id)
	}
	fmt.Printf("\n%d automation(s) would receive label '%s'\n", len(matches), args[0])
	return nil
}
