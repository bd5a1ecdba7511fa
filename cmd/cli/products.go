package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/url"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/shelfwatch/shelfwatch/internal/engine"
	"github.com/shelfwatch/shelfwatch/internal/models"
)

var (
	addName     string
	addAutoCart bool
	addQuantity int
)

// addCmd represents the add command
var addCmd = &cobra.Command{
	Use:   "add <url>",
	Short: "Register a product URL for monitoring",
	Example: `  shelfwatch add https://shop.example.com/widget
  shelfwatch add https://shop.example.com/widget --name "Widget Pro" --auto-cart --quantity 2`,
	Args: cobra.ExactArgs(1),
	RunE: runAdd,
}

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List monitored products",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

// removeCmd represents the remove command
var removeCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a product from monitoring",
	Args:  cobra.ExactArgs(1),
	RunE:  runRemove,
}

// pauseCmd represents the pause command
var pauseCmd = &cobra.Command{
	Use:   "pause <id>",
	Short: "Pause monitoring for a product",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setPaused(args[0], true) },
}

// resumeCmd represents the resume command
var resumeCmd = &cobra.Command{
	Use:   "resume <id>",
	Short: "Resume monitoring for a paused product",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setPaused(args[0], false) },
}

func init() {
	rootCmd.AddCommand(addCmd, listCmd, removeCmd, pauseCmd, resumeCmd)

	addCmd.Flags().StringVar(&addName, "name", "", "Display name (filled from the page on first valid check if empty)")
	addCmd.Flags().BoolVar(&addAutoCart, "auto-cart", false, "Add to cart automatically on restock")
	addCmd.Flags().IntVar(&addQuantity, "quantity", 1, "Desired quantity for auto add-to-cart")
}

func runAdd(cmd *cobra.Command, args []string) error {
	raw := args[0]
	parsed, err := url.Parse(raw)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("url must be absolute http(s): %s", raw)
	}

	p := models.NewProduct(raw)
	p.Name = addName
	p.AutoAddToCart = addAutoCart
	if addQuantity > 0 {
		p.MaxQuantity = addQuantity
	}

	if err := st.AddProduct(context.Background(), p); err != nil {
		return fmt.Errorf("failed to add product: %w", err)
	}

	logger.Info().Str("id", p.ID).Str("url", p.URL).Msg("Product added")
	fmt.Println(p.ID)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	products, err := st.LoadProducts(context.Background())
	if err != nil {
		return fmt.Errorf("failed to load products: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTATE\tSTOCK\tPRICE\tERRORS\tURL")
	for _, p := range products {
		name := p.Name
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2f\t%d\t%s\n",
			p.ID, name, p.MonitorState, p.StockStatus, p.CurrentPrice, p.ErrorCount, p.URL)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\n%d product(s)\n", len(products))
	return nil
}

func runRemove(cmd *cobra.Command, args []string) error {
	if err := st.DeleteProduct(context.Background(), args[0]); err != nil {
		return fmt.Errorf("failed to remove product: %w", err)
	}
	logger.Info().Str("id", args[0]).Msg("Product removed")
	return nil
}

func setPaused(id string, paused bool) error {
	ctx := context.Background()
	p, err := st.GetProduct(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load product: %w", err)
	}

	machine := engine.NewStateMachine(engine.NewBackoffPolicy(rand.NewSource(time.Now().UnixNano())))
	if paused {
		machine.Pause(p)
	} else {
		machine.Resume(p)
	}

	if err := st.SaveProduct(ctx, *p); err != nil {
		return fmt.Errorf("failed to save product: %w", err)
	}
	logger.Info().Str("id", id).Bool("paused", paused).Msg("Product updated")
	return nil
}
