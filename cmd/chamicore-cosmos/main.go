// Package main is the entry point for the chamicore-cosmos service.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"git.cscs.ch/openchami/chamicore-cosmos/internal/server"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "chamicore-cosmos: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "chamicore-cosmos",
		Short:         "Cosmos DB data-access gateway with HTTP, Functions and MCP front ends",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the service using the configured transport (default)",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runServe(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "tools",
			Short: "Print the tool contract as YAML",
			RunE: func(cmd *cobra.Command, _ []string) error {
				_, contract, err := server.CatalogRegistry()
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(contract)
				return err
			},
		},
		newOpenAPICommand(),
		&cobra.Command{
			Use:   "version",
			Short: "Print build information",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "chamicore-cosmos %s (commit %s, built %s)\n", version, commit, buildDate)
			},
		},
	)
	return root
}

func newOpenAPICommand() *cobra.Command {
	var serverURL string
	cmd := &cobra.Command{
		Use:   "openapi",
		Short: "Print the tool-invocation API as an OpenAPI 3.0 JSON document",
		RunE: func(cmd *cobra.Command, _ []string) error {
			registry, _, err := server.CatalogRegistry()
			if err != nil {
				return err
			}
			doc, err := server.BuildOpenAPI(registry, serverURL, version)
			if err != nil {
				return err
			}
			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(doc)
		},
	}
	cmd.Flags().StringVar(&serverURL, "server-url", "/api", "value for servers[0].url")
	return cmd
}
