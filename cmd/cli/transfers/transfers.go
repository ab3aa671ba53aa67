package transfers

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/crucial707/trakset/cmd/cli/client"
	"github.com/crucial707/trakset/cmd/cli/output"
	"github.com/crucial707/trakset/internal/models"
)

// ==========================
// Init Transfers
// ==========================
func InitTransfers(rootCmd *cobra.Command) {
	transfersCmd := &cobra.Command{
		Use:   "transfers",
		Short: "Take custody of assets and inspect transfers",
	}

	transfersCmd.AddCommand(takeCmd(), showCmd(), cancelCmd())
	rootCmd.AddCommand(transfersCmd)
}

type scanResult struct {
	State               string                `json:"state"`
	AssetName           string                `json:"asset_name"`
	AssetLocation       string                `json:"asset_location"`
	Transfer            *models.AssetTransfer `json:"transfer"`
	CancelWindowMinutes int                   `json:"cancel_window_minutes"`
}

// ==========================
// TAKE (scan an asset)
// ==========================
func takeCmd() *cobra.Command {
	var note string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "take [asset-unique-id]",
		Short: "Take custody of an asset, as if its QR code was scanned",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uid, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid asset id %q", args[0])
			}

			var res scanResult
			if err := client.Do("POST", "/transfers/scan/"+uid.String(), nil, &res, true); err != nil {
				return err
			}
			if note != "" {
				if err := client.Do("POST", "/transfers/scan/"+uid.String()+"/note", map[string]string{"text": note}, nil, true); err != nil {
					return fmt.Errorf("add note: %w", err)
				}
			}
			if asJSON {
				return output.PrintJSON(res)
			}

			if res.State == "pending" {
				fmt.Printf("You already took %s within the last %d minutes.\n", res.AssetName, res.CancelWindowMinutes)
				if res.Transfer != nil {
					fmt.Printf("To undo it: trakset transfers cancel %s\n", res.Transfer.ID)
				}
				return nil
			}
			fmt.Printf("You now hold %s (%s).\n", res.AssetName, res.AssetLocation)
			if res.Transfer != nil {
				fmt.Printf("Transfer id: %s\n", res.Transfer.ID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&note, "note", "", "note to attach to the transfer")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print raw JSON")
	return cmd
}

// ==========================
// SHOW
// ==========================
func showCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show [transfer-id]",
		Short: "Show a transfer and its notes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid transfer id %q", args[0])
			}

			var t models.AssetTransfer
			if err := client.Do("GET", "/transfers/"+id.String(), nil, &t, true); err != nil {
				return err
			}
			if asJSON {
				return output.PrintJSON(t)
			}

			output.RenderTable([]string{"Transfer", "Asset", "From", "To", "When", "Cancelled"}, [][]interface{}{{
				t.ID, output.OrDash(t.AssetName), output.OrDash(t.FromUsername), output.OrDash(t.ToUsername),
				t.CreatedAt.Format(time.RFC3339), t.IsDeleted,
			}})
			if len(t.Notes) > 0 {
				texts := make([]string, 0, len(t.Notes))
				for _, n := range t.Notes {
					texts = append(texts, "- "+n.Text)
				}
				fmt.Println("Notes:\n" + strings.Join(texts, "\n"))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print raw JSON")
	return cmd
}

// ==========================
// CANCEL
// ==========================
func cancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel [transfer-id]",
		Short: "Cancel a transfer you received; the asset goes back to its previous holder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid transfer id %q", args[0])
			}

			var res struct {
				Asset        models.Asset `json:"asset"`
				FromUsername string       `json:"from_user"`
			}
			if err := client.Do("POST", "/transfers/"+id.String()+"/cancel", nil, &res, true); err != nil {
				return err
			}
			fmt.Printf("Transfer cancelled. %s is back with %s.\n", res.Asset.Name, output.OrDash(res.FromUsername))
			return nil
		},
	}
}
