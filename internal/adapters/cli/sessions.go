package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
)

func (a *app) sessionsCommand() *cobra.Command {
	var start bool
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List chat sessions, or start one with --new",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			services, err := a.servicesFor(cmd)
			if err != nil {
				return err
			}
			if start {
				sess, err := services.Chat.StartSession(cmd.Context(), domain.ActiveSources{})
				if err != nil {
					return err
				}
				if a.asJSON {
					return a.printJSON(cmd, sess)
				}
				cmd.Println(sess.SessionID)
				return nil
			}

			sessions, err := services.Chat.Sessions(cmd.Context())
			if err != nil {
				return err
			}
			if a.asJSON {
				return a.printJSON(cmd, sessions)
			}
			if len(sessions) == 0 {
				cmd.Println("No sessions yet.")
				return nil
			}
			for _, s := range sessions {
				cmd.Printf("%s  %s  messages=%d  sources=%s\n",
					s.SessionID, s.LastUpdated.Local().Format(time.DateTime), s.MessageCount, activeLabel(s.ActiveSources))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&start, "new", false, "start a new session and print its id")
	return cmd
}

func (a *app) historyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "history [session-id]",
		Short: "Print the messages of a chat session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			services, err := a.servicesFor(cmd)
			if err != nil {
				return err
			}
			messages, err := services.Chat.History(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if a.asJSON {
				return a.printJSON(cmd, messages)
			}
			for _, m := range messages {
				cmd.Printf("[%d] %s: %s\n", m.ID, m.Role, m.Content)
			}
			return nil
		},
	}
}

func activeLabel(a domain.ActiveSources) string {
	out := ""
	for _, s := range []struct {
		on   bool
		kind domain.SourceKind
	}{{a.Wiki, domain.SourceWiki}, {a.PDF, domain.SourcePDF}, {a.Board, domain.SourceBoard}} {
		if !s.on {
			continue
		}
		if out != "" {
			out += ","
		}
		out += string(s.kind)
	}
	if out == "" {
		return "-"
	}
	return out
}
