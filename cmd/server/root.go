package main

import (
	"github.com/spf13/cobra"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mcpauth",
		Short: "OAuth authorization broker for MCP servers",
		Long: `mcpauth fronts an MCP server with an OAuth 2.1 authorization server.
Users sign in with an upstream provider (GitHub by default) and approve each
MCP client once; approvals are remembered in a signed cookie.`,
		Version:      version,
		SilenceUsage: true,
	}
	root.SetVersionTemplate(`{{printf "mcpauth version %s\n" .Version}}`)

	root.AddCommand(newServeCmd())
	root.AddCommand(newGenSecretCmd())
	return root
}
