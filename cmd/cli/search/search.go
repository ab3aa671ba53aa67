package search

import (
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/crucial707/trakset/cmd/cli/client"
	"github.com/crucial707/trakset/cmd/cli/output"
	"github.com/crucial707/trakset/internal/models"
)

// InitSearch registers the search command (staff).
func InitSearch(rootCmd *cobra.Command) {
	rootCmd.AddCommand(searchCmd())
}

type searchResult struct {
	Matches   []models.AssetMatch    `json:"matches"`
	Best      *models.Asset          `json:"best"`
	Transfers []models.AssetTransfer `json:"transfers"`
}

func searchCmd() *cobra.Command {
	var transfers, deleted, asJSON bool

	cmd := &cobra.Command{
		Use:   "search [term]",
		Short: "Fuzzy-search assets by name",
		Long:  "Rank assets by name similarity. With --transfers, list the best match's transfer history.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			q.Set("q", args[0])
			if transfers {
				q.Set("mode", "transfers")
			} else {
				q.Set("mode", "assets")
			}
			if deleted {
				q.Set("deleted", "true")
			}

			var res searchResult
			if err := client.Do("GET", "/search?"+q.Encode(), nil, &res, true); err != nil {
				return err
			}
			if asJSON {
				return output.PrintJSON(res)
			}
			if len(res.Matches) == 0 {
				fmt.Println("No matching assets.")
				return nil
			}

			rows := make([][]interface{}, 0, len(res.Matches))
			for _, m := range res.Matches {
				rows = append(rows, []interface{}{m.ID, m.Name, fmt.Sprintf("%.2f", m.Similarity), m.LocationDisplay(), output.OrDash(m.HolderUsername)})
			}
			output.RenderTable([]string{"ID", "Name", "Similarity", "Location", "Holder"}, rows)

			if transfers {
				renderTransfers(res.Matches[0].Name, res.Transfers)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&transfers, "transfers", false, "show the best match's transfers")
	cmd.Flags().BoolVar(&deleted, "deleted", false, "include cancelled transfers")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print raw JSON")
	return cmd
}

func renderTransfers(asset string, ts []models.AssetTransfer) {
	fmt.Printf("\nTransfers of %s:\n", asset)
	if len(ts) == 0 {
		fmt.Println("No transfers.")
		return
	}
	rows := make([][]interface{}, 0, len(ts))
	for _, t := range ts {
		rows = append(rows, []interface{}{
			t.ID, output.OrDash(t.FromUsername), output.OrDash(t.ToUsername), t.CreatedAt.Format(time.RFC3339), t.IsDeleted,
		})
	}
	output.RenderTable([]string{"Transfer", "From", "To", "When", "Cancelled"}, rows)
}
