package main

import (
	"fmt"
	"os"

	"github.com/crucial707/trakset/cmd/cli/assets"
	"github.com/crucial707/trakset/cmd/cli/auth"
	"github.com/crucial707/trakset/cmd/cli/root"
	"github.com/crucial707/trakset/cmd/cli/search"
	"github.com/crucial707/trakset/cmd/cli/transfers"
	"github.com/crucial707/trakset/cmd/cli/users"
)

func main() {
	rootCmd := root.GetRoot()
	auth.InitAuth(rootCmd)
	assets.InitAssets(rootCmd)
	transfers.InitTransfers(rootCmd)
	search.InitSearch(rootCmd)
	users.InitUsers(rootCmd)

	// Execute the root Cobra command
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
