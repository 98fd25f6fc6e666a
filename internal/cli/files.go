package cli

import (
	"fmt"
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"oilcatalog/internal/core/export"
	"oilcatalog/internal/core/product"
	"oilcatalog/internal/core/publish"
)

var exportOut string

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "catalog.xlsx", "spreadsheet to write")
	rootCmd.AddCommand(rebuildCmd, exportCmd, publishCmd)
}

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Regenerates the aggregate file from the category files.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		parts, err := e.store.ReadAll()
		if err != nil {
			return err
		}
		n, err := e.store.Rebuild()
		if err != nil {
			return err
		}

		t := newTable()
		t.AppendHeader(table.Row{"category", "records"})
		for _, c := range product.Categories {
			t.AppendRow(table.Row{c, len(parts[c])})
		}
		t.AppendFooter(table.Row{filepath.Base(e.store.AggregatePath()), n})
		t.Render()
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export [--out catalog.xlsx]",
	Short: "Writes the aggregate catalog to a spreadsheet, one sheet per category.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		records, err := e.store.ReadAggregate()
		if err != nil {
			return err
		}
		if len(records) == 0 {
			e.log.LogWarnf("aggregate %s is empty; run rebuild first if partitions exist", e.store.AggregatePath())
		}
		if err := export.WriteFile(records, exportOut); err != nil {
			return fmt.Errorf("export %s: %w", exportOut, err)
		}
		e.log.LogSuccessf("wrote %d records to %s", len(records), exportOut)
		return nil
	},
}

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Uploads the aggregate file to Supabase storage.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		pub, err := publish.New(e.cfg)
		if err != nil {
			return err
		}
		url, err := pub.PublishAggregate(cmd.Context(), e.store.AggregatePath())
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, url)
		return nil
	},
}
