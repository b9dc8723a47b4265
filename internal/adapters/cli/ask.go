package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
)

func (a *app) askCommand() *cobra.Command {
	var sessionID string
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a question from the knowledge base",
		Long: `Answers a question grounded in the indexed sources. With --session the
question and answer are stored in that chat session.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			services, err := a.servicesFor(cmd)
			if err != nil {
				return err
			}
			question := strings.Join(args, " ")

			var (
				answer  string
				sources []string
				ready   bool
			)
			if sessionID != "" {
				reply, err := services.Chat.Ask(cmd.Context(), domain.SessionContext{SessionID: sessionID}, question)
				if err != nil {
					return err
				}
				if a.asJSON {
					return a.printJSON(cmd, reply)
				}
				answer, sources, ready = reply.Answer, reply.Sources, reply.KnowledgeBaseReady
			} else {
				result, err := services.Answers.Answer(cmd.Context(), domain.SessionContext{}, question)
				if err != nil {
					return err
				}
				if a.asJSON {
					return a.printJSON(cmd, result)
				}
				answer, sources, ready = result.Answer, result.Sources, result.KnowledgeBaseReady
			}

			if !ready {
				cmd.Println("The knowledge base is empty. Run `assistant index` first.")
				return nil
			}
			cmd.Println(answer)
			if len(sources) > 0 {
				cmd.Println()
				cmd.Println("Sources:")
				for _, s := range sources {
					cmd.Printf("  - %s\n", s)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "chat session to store the exchange in")
	return cmd
}
