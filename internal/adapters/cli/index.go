package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
)

func (a *app) indexCommand() *cobra.Command {
	var (
		spaceKey  string
		useWiki   bool
		pdfPaths  []string
		boardID   string
		useBoard  bool
		sessionID string
	)
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Fetch sources and add them to the knowledge base",
		Long: `Fetches the selected sources one after another, normalizes them and adds
their chunks to the vector index. A failing source does not stop the others.
Without source flags the configured wiki space and board are indexed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			services, err := a.servicesFor(cmd)
			if err != nil {
				return err
			}

			var reqs []domain.SourceRequest
			if useWiki || spaceKey != "" {
				reqs = append(reqs, domain.SourceRequest{Kind: domain.SourceWiki, SpaceKey: spaceKey})
			}
			if len(pdfPaths) > 0 {
				reqs = append(reqs, domain.SourceRequest{Kind: domain.SourcePDF, Paths: pdfPaths})
			}
			if useBoard || boardID != "" {
				if boardID == "" {
					boardID = services.BoardID
				}
				reqs = append(reqs, domain.SourceRequest{Kind: domain.SourceBoard, BoardID: boardID})
			}
			if len(reqs) == 0 {
				if services.WikiSpaceKey != "" {
					reqs = append(reqs, domain.SourceRequest{Kind: domain.SourceWiki})
				}
				if services.BoardID != "" {
					reqs = append(reqs, domain.SourceRequest{Kind: domain.SourceBoard, BoardID: services.BoardID})
				}
			}
			if len(reqs) == 0 {
				return errors.New("nothing to index: pass --wiki, --pdf or --board")
			}

			results := services.Ingest.IngestAll(cmd.Context(), domain.SessionContext{SessionID: sessionID}, reqs)
			if a.asJSON {
				return a.printJSON(cmd, results)
			}
			failed := 0
			for _, r := range results {
				if r.Error != "" {
					failed++
					cmd.Printf("%-6s failed: %s\n", r.Kind, r.Error)
					continue
				}
				cmd.Printf("%-6s items=%d documents=%d skipped=%d indexed=%t\n", r.Kind, r.Items, r.Documents, r.Skipped, r.Indexed)
			}
			if failed == len(results) {
				return errors.New("no source could be indexed")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&useWiki, "wiki", false, "index the configured wiki space")
	cmd.Flags().StringVar(&spaceKey, "space", "", "wiki space key (implies --wiki)")
	cmd.Flags().StringSliceVar(&pdfPaths, "pdf", nil, "PDF files to index")
	cmd.Flags().BoolVar(&useBoard, "board", false, "index the configured board")
	cmd.Flags().StringVar(&boardID, "board-id", "", "board id (implies --board)")
	cmd.Flags().StringVar(&sessionID, "session", "", "mark the indexed sources active in this chat session")
	return cmd
}
