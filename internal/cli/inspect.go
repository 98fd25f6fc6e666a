package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"oilcatalog/internal/core/extract"
	"oilcatalog/internal/core/normalize"
	"oilcatalog/internal/core/product"
	"oilcatalog/internal/logger"
	"oilcatalog/internal/platform/browser"
	"oilcatalog/internal/utils/markdown"
)

var inspectOpts struct {
	category string
	markdown bool
	asJSON   bool
}

func init() {
	f := inspectCmd.Flags()
	f.StringVar(&inspectOpts.category, "category", string(product.CategorySingleOils), "category signal used for normalization")
	f.BoolVar(&inspectOpts.markdown, "markdown", true, "print the page's product area as markdown")
	f.BoolVar(&inspectOpts.asJSON, "json", false, "print the normalized record as JSON")
	rootCmd.AddCommand(inspectCmd)
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <detail-url>",
	Short: "Loads one detail page and shows what extraction recovers from it.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := product.ParseCategory(inspectOpts.category)
		if err != nil {
			return err
		}
		e, err := loadEnv()
		if err != nil {
			return err
		}

		d, err := browser.Launch(e.browserOptions(), logger.New("Browser"))
		if err != nil {
			return err
		}
		defer d.Close()
		page, err := d.NewPage()
		if err != nil {
			return err
		}
		defer page.Close()

		url := args[0]
		if err := page.Navigate(cmd.Context(), url); err != nil {
			return err
		}
		if err := page.WaitFor("h1", e.cfg.NavTimeout/2); err != nil {
			e.log.LogWarnf("no h1 on %s", url)
		}
		html, err := page.Content()
		if err != nil {
			return err
		}

		if inspectOpts.markdown {
			md, err := markdown.FromHTML(html)
			if err != nil {
				e.log.LogWarnf("markdown: %v", err)
			} else {
				fmt.Fprintln(stdout, md)
				fmt.Fprintln(stdout, strings.Repeat("─", 60))
			}
		}

		res, err := extract.NewService(logger.New("Extract")).FromHTML(html, page.URL())
		if err != nil {
			return err
		}
		rec, rep := normalize.NewService(logger.New("Normalize")).Normalize(res.Fields, cat)

		if inspectOpts.asJSON {
			enc := json.NewEncoder(stdout)
			enc.SetEscapeHTML(false)
			enc.SetIndent("", "  ")
			return enc.Encode(rec)
		}
		renderExtraction(res, rec, rep)
		return nil
	},
}

func renderExtraction(res extract.Result, rec product.Record, rep normalize.Report) {
	t := newTable()
	t.AppendHeader(table.Row{"field", "strategy", "value"})
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 3, WidthMax: 80}})
	row := func(field string, v any) {
		t.AppendRow(table.Row{field, res.Trace[field], v})
	}
	row(extract.FieldName, rec.Name)
	row(extract.FieldEnglishName, rec.EnglishName)
	row(extract.FieldScientificName, rec.ScientificName)
	row(extract.FieldProductCode, rec.ProductCode)
	row(extract.FieldRetailPrice, intOrDash(rec.RetailPrice))
	row(extract.FieldMemberPrice, intOrDash(rec.MemberPrice))
	row(extract.FieldVolume, rec.Volume)
	row(extract.FieldMainBenefits, strings.Join(rec.MainBenefits, " | "))
	row(extract.FieldMainIngredients, strings.Join(rec.MainIngredients, " | "))
	row(extract.FieldUsageInstructions, strings.Join(rec.UsageInstructions, " | "))
	row(extract.FieldCautions, strings.Join(rec.Cautions, " | "))
	t.AppendFooter(table.Row{"key", rec.BusinessKey, "missing: " + strings.Join(res.Missing(), ", ")})
	t.Render()

	for _, a := range rep.Ambiguities {
		fmt.Fprintf(stdout, "ambiguous %s: chose %s (%d items), alternatives %v\n", a.Field, a.Chosen, a.ChosenCount, a.Alternatives)
	}
}

func intOrDash(v *int) any {
	if v == nil {
		return "-"
	}
	return *v
}
