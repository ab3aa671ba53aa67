package auth

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/crucial707/trakset/cmd/cli/client"
	"github.com/crucial707/trakset/cmd/cli/config"
)

// InitAuth registers login and logout on the root command.
func InitAuth(rootCmd *cobra.Command) {
	rootCmd.AddCommand(loginCmd(), logoutCmd())
}

// loginCmd creates a command that logs in a user and stores the JWT token locally.
func loginCmd() *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the trakset API",
		Long:  "Authenticate with the trakset API and store a JWT token for subsequent CLI commands.",
		RunE: func(cmd *cobra.Command, args []string) error {
			in := bufio.NewReader(cmd.InOrStdin())
			if username == "" {
				username = prompt(in, "Username: ")
			}
			if password == "" {
				password = prompt(in, "Password: ")
			}
			if username == "" || password == "" {
				return fmt.Errorf("username and password are required")
			}

			var loginResp struct {
				Token string `json:"token"`
				User  struct {
					Username string `json:"username"`
					Role     string `json:"role"`
				} `json:"user"`
			}
			payload := map[string]string{"username": username, "password": password}
			if err := client.Do("POST", "/auth/login", payload, &loginResp, false); err != nil {
				return fmt.Errorf("failed to login: %w", err)
			}
			if loginResp.Token == "" {
				return fmt.Errorf("login succeeded but no token returned")
			}

			if err := config.SaveToken(loginResp.Token); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}

			fmt.Printf("Logged in as %s (%s). Token stored locally.\n", loginResp.User.Username, loginResp.User.Role)
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Username to authenticate as")
	cmd.Flags().StringVar(&password, "password", "", "Password (prompted when omitted)")

	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the locally saved token",
		RunE: func(cmd *cobra.Command, args []string) error {
			existed, err := config.ClearToken()
			if err != nil {
				return err
			}
			if !existed {
				fmt.Println("No user logged in.")
				return nil
			}
			fmt.Println("Logged out successfully.")
			return nil
		},
	}
}

func prompt(in *bufio.Reader, label string) string {
	fmt.Fprint(os.Stderr, label)
	line, _ := in.ReadString('\n')
	return strings.TrimSpace(line)
}
