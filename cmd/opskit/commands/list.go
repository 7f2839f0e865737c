package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fivetwenty-io/opskit/internal/constants"
	"github.com/fivetwenty-io/opskit/pkg/opskit"
)

// NewListCommand creates the list command
func NewListCommand() *cobra.Command {
	var (
		pageSize int
		maxPages int
	)

	cmd := &cobra.Command{
		Use:   "list PATH",
		Short: "List a paginated collection",
		Long:  "Walk a server-paginated collection at the given API path and print its items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := CreateClient()
			if err != nil {
				return err
			}

			ctx := context.Background()

			source := opskit.NewJSONPageSource[json.RawMessage](client, args[0], pageSize)

			items, err := opskit.FetchAllPages(ctx, source, &opskit.PaginationOptions{
				MaxPages: maxPages,
			})
			if err != nil {
				return fmt.Errorf("failed to list %s: %w", args[0], err)
			}

			return renderItems(items)
		},
	}

	cmd.Flags().IntVar(&pageSize, "page-size", constants.DefaultPageSize, "items per page")
	cmd.Flags().IntVar(&maxPages, "max-pages", constants.MaxPages, "stop after this many pages")

	return cmd
}
