package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/xuri/excelize/v2"

	"github.com/shelfwatch/shelfwatch/internal/models"
)

var (
	exportOut  string
	exportXLSX string
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export products and settings to a bundle file",
	Long: `Export the full service state (products, settings) as a JSON bundle that
can be imported into another instance. With --xlsx an additional spreadsheet
is written for human review.`,
	Example: `  shelfwatch export --out backup.json
  shelfwatch export --out backup.json --xlsx products.xlsx`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

// importCmd represents the import command
var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace the current state with an exported bundle",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

func init() {
	rootCmd.AddCommand(exportCmd, importCmd)

	exportCmd.Flags().StringVar(&exportOut, "out", "shelfwatch-export.json", "Output bundle path")
	exportCmd.Flags().StringVar(&exportXLSX, "xlsx", "", "Also write a spreadsheet to this path")
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	products, err := st.LoadProducts(ctx)
	if err != nil {
		return fmt.Errorf("failed to load products: %w", err)
	}
	settings, err := st.LoadSettings(ctx)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	bundle := models.Bundle{
		Version:    models.BundleVersion,
		ExportedAt: time.Now().UTC(),
		Products:   products,
		Settings:   settings,
	}

	data, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal bundle: %w", err)
	}
	if err := os.WriteFile(exportOut, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", exportOut, err)
	}
	logger.Info().Str("path", exportOut).Int("products", len(products)).Msg("Bundle exported")

	if exportXLSX != "" {
		if err := writeXLSX(exportXLSX, products); err != nil {
			return fmt.Errorf("failed to write spreadsheet: %w", err)
		}
		logger.Info().Str("path", exportXLSX).Msg("Spreadsheet written")
	}
	return nil
}

func writeXLSX(path string, products []models.Product) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Products"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}

	headers := []string{"ID", "Name", "URL", "State", "Stock", "Price", "Previous Price", "Errors", "Last Checked"}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}

	for row, p := range products {
		values := []any{
			p.ID, p.Name, p.URL, string(p.MonitorState), string(p.StockStatus),
			p.CurrentPrice, "", p.ErrorCount, "",
		}
		if p.PreviousPrice != nil {
			values[6] = *p.PreviousPrice
		}
		if p.LastChecked != nil {
			values[8] = p.LastChecked.Format(time.RFC3339)
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}

	return f.SaveAs(path)
}

func runImport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}

	bundle, err := models.ParseBundle(data)
	if err != nil {
		return err
	}

	if err := st.ReplaceAll(context.Background(), bundle); err != nil {
		return fmt.Errorf("failed to import bundle: %w", err)
	}

	logger.Info().Int("products", len(bundle.Products)).Msg("Bundle imported")
	return nil
}
