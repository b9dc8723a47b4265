package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

func (a *app) sourcesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List indexed sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			services, err := a.servicesFor(cmd)
			if err != nil {
				return err
			}
			if services.Catalog == nil {
				return errors.New("the configured vector backend has no source catalog; set NEO4J_URI")
			}
			sources, err := services.Catalog.ListSources(cmd.Context())
			if err != nil {
				return err
			}
			if a.asJSON {
				return a.printJSON(cmd, sources)
			}
			for _, s := range sources {
				cmd.Printf("%-6s items=%-4d chunks=%-5d %s\n", s.Kind, s.Items, s.Chunks, s.Source)
			}
			return nil
		},
	}
}
