package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pricewatch/extractor/internal/engine"
)

func newExtractCmd() *cobra.Command {
	var selector string

	cmd := &cobra.Command{
		Use:   "extract <url>",
		Short: "Extract the price from a single product page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp()
			if err != nil {
				return err
			}
			defer app.close()

			budget := app.cfg.RequestTimeout() +
				time.Duration(app.cfg.Render.TimeoutSeconds)*time.Second
			ctx, cancel := context.WithTimeout(cmd.Context(), budget)
			defer cancel()

			result, err := app.engine.Extract(ctx, engine.Request{
				URL:      args[0],
				Selector: selector,
			})
			if err != nil {
				return fmt.Errorf("extract %s: %w", args[0], err)
			}

			out := map[string]any{
				"url":      args[0],
				"strategy": result.Strategy,
				"used_js":  result.UsedJS,
			}
			if result.Title != "" {
				out["title"] = result.Title
			}
			if result.Price != nil {
				out["price"] = result.Price.Amount
				out["currency"] = result.Price.Currency
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}

	cmd.Flags().StringVar(&selector, "selector", "", "CSS selector override for the price element")
	return cmd
}
