package users

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/crucial707/trakset/cmd/cli/client"
	"github.com/crucial707/trakset/cmd/cli/output"
	"github.com/crucial707/trakset/internal/models"
)

// ==========================
// CLI Command Init
// ==========================
func InitUsers(rootCmd *cobra.Command) {
	usersCmd := &cobra.Command{
		Use:   "users",
		Short: "Manage user accounts (admin)",
	}

	usersCmd.AddCommand(listUsersCmd(), createUserCmd(), deleteUserCmd())
	rootCmd.AddCommand(usersCmd)
}

// ==========================
// List Users
// ==========================
func listUsersCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			var users []models.User
			if err := client.Do("GET", "/users", nil, &users, true); err != nil {
				return err
			}
			if asJSON {
				return output.PrintJSON(users)
			}

			rows := make([][]interface{}, 0, len(users))
			for _, u := range users {
				rows = append(rows, []interface{}{u.ID, u.Username, output.OrDash(u.Email), u.Role})
			}
			output.RenderTable([]string{"ID", "Username", "Email", "Role"}, rows)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print raw JSON")
	return cmd
}

// ==========================
// Create User
// ==========================
func createUserCmd() *cobra.Command {
	var username, email, password, role string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]string{
				"username": username,
				"email":    email,
				"password": password,
				"role":     role,
			}
			var user models.User
			if err := client.Do("POST", "/users", payload, &user, true); err != nil {
				return err
			}
			fmt.Printf("Created user %s (id %d, role %s)\n", user.Username, user.ID, user.Role)
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "username")
	cmd.Flags().StringVar(&email, "email", "", "email address for notifications")
	cmd.Flags().StringVar(&password, "password", "", "initial password (min 8 characters)")
	cmd.Flags().StringVar(&role, "role", models.RoleUser, "user, staff or admin")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

// ==========================
// Delete User
// ==========================
func deleteUserCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a user; their assets move to the fallback holder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid user id %q", args[0])
			}
			var res struct {
				Reassigned int64 `json:"reassigned_assets"`
			}
			if err := client.Do("DELETE", "/users/"+strconv.FormatInt(id, 10), nil, &res, true); err != nil {
				return err
			}
			fmt.Printf("User deleted; %d assets reassigned\n", res.Reassigned)
			return nil
		},
	}
}
