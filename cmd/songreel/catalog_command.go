package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"songreel/internal/catalog"
)

func newCatalogCommand(ctx *commandContext) *cobra.Command {
	catalogCmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the clip catalog",
	}
	catalogCmd.AddCommand(newCatalogListCommand(ctx))
	return catalogCmd
}

func newCatalogListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cataloged clips with usage counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := catalog.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			clips, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(clips) == 0 {
				cmd.Println("catalog is empty")
				return nil
			}

			rows := make([][]string, 0, len(clips))
			for _, clip := range clips {
				rows = append(rows, []string{
					fmt.Sprintf("%d", clip.ID),
					clip.Filename,
					clip.Character,
					clip.Action,
					clip.Setting,
					formatSize(clip.Filesize),
					fmt.Sprintf("%d", clip.UsageCount),
					formatTimestamp(clip.LastUsedAt),
				})
			}
			cmd.Println(renderTable(
				[]string{"ID", "FILE", "CHARACTER", "ACTION", "SETTING", "SIZE", "USES", "LAST USED"},
				rows, 0, 5, 6,
			))
			return nil
		},
	}
}

func formatSize(bytes int64) string {
	switch {
	case bytes >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(bytes)/(1<<20))
	case bytes >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(bytes)/(1<<10))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
