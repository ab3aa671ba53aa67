package assets

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/crucial707/trakset/cmd/cli/client"
	"github.com/crucial707/trakset/cmd/cli/output"
	"github.com/crucial707/trakset/internal/models"
)

// ==========================
// Init Assets
// ==========================
func InitAssets(rootCmd *cobra.Command) {

	assetsCmd := &cobra.Command{
		Use:   "assets",
		Short: "Manage the asset registry (staff)",
	}

	assetsCmd.AddCommand(
		listAssetsCmd(),
		createAssetCmd(),
		deleteAssetCmd(),
		restoreAssetCmd(),
	)

	rootCmd.AddCommand(assetsCmd)
}

// ==========================
// LIST
// ==========================
func listAssetsCmd() *cobra.Command {
	var asJSON, deleted bool
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List assets",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := fmt.Sprintf("/assets?limit=%d&offset=%d", limit, offset)
			if deleted {
				path += "&deleted=true"
			}

			var assets []models.Asset
			if err := client.Do("GET", path, nil, &assets, true); err != nil {
				return err
			}
			if asJSON {
				return output.PrintJSON(assets)
			}

			rows := make([][]interface{}, 0, len(assets))
			for _, a := range assets {
				rows = append(rows, []interface{}{
					a.ID, a.Name, a.UniqueID, a.LocationDisplay(), output.OrDash(a.HolderUsername), a.IsDeleted,
				})
			}
			output.RenderTable([]string{"ID", "Name", "Unique ID", "Location", "Holder", "Deleted"}, rows)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print raw JSON")
	cmd.Flags().BoolVar(&deleted, "deleted", false, "include soft-deleted assets")
	cmd.Flags().IntVar(&limit, "limit", 50, "page size")
	cmd.Flags().IntVar(&offset, "offset", 0, "page offset")

	return cmd
}

// ==========================
// CREATE
// ==========================
func createAssetCmd() *cobra.Command {
	var name, description, serial string
	var tag, location int64
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create asset",
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]interface{}{
				"name":          name,
				"description":   description,
				"serial_number": serial,
			}
			if tag > 0 {
				payload["security_tag_number"] = tag
			}
			if location > 0 {
				payload["location_id"] = location
			}

			var asset models.Asset
			if err := client.Do("POST", "/assets", payload, &asset, true); err != nil {
				return err
			}
			if asJSON {
				return output.PrintJSON(asset)
			}
			fmt.Printf("Created asset %d (%s). Scan link id: %s\n", asset.ID, asset.Name, asset.UniqueID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "asset name")
	cmd.Flags().StringVar(&description, "description", "", "asset description")
	cmd.Flags().StringVar(&serial, "serial", "", "serial number")
	cmd.Flags().Int64Var(&tag, "tag", 0, "security tag number")
	cmd.Flags().Int64Var(&location, "location", 0, "location id")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print raw JSON")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

// ==========================
// DELETE / RESTORE
// ==========================
func deleteAssetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [id]",
		Short: "Soft-delete asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid asset id %q", args[0])
			}
			if err := client.Do("DELETE", "/assets/"+strconv.FormatInt(id, 10), nil, nil, true); err != nil {
				return err
			}
			fmt.Println("Asset deleted")
			return nil
		},
	}
}

func restoreAssetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore [id]",
		Short: "Restore a soft-deleted asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid asset id %q", args[0])
			}
			var asset models.Asset
			if err := client.Do("POST", "/assets/"+strconv.FormatInt(id, 10)+"/restore", nil, &asset, true); err != nil {
				return err
			}
			fmt.Printf("Asset %d (%s) restored\n", asset.ID, asset.Name)
			return nil
		},
	}
}
