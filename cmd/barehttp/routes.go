package main

import (
	"encoding/json"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/barehttp/barehttp/internal/errors"
	"github.com/barehttp/barehttp/pkg/server"
)

func routesCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "routes",
		Short: "Print the demo route table",
		Long:  `Print the patterns registered by "barehttp serve", in lexical order.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printRoutes(cmd.OutOrStdout(), asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the routes as a JSON array")

	return cmd
}

func printRoutes(w io.Writer, asJSON bool) error {
	srv := server.New(&server.Config{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err := registerDemoRoutes(srv); err != nil {
		return errors.New("E140").Wrap(err)
	}

	routes := srv.Routes()
	if asJSON {
		enc := json.NewEncoder(w)
		return enc.Encode(routes)
	}
	for _, r := range routes {
		info(w, "%s", r)
	}
	return nil
}
