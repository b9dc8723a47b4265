package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
	"github.com/kirillkom/knowledge-assistant/internal/core/ports"
)

// Services is what the commands run against. Loader builds it lazily so that
// help and flag errors never touch the backends.
type Services struct {
	Answers   ports.AnswerService
	Chat      ports.ChatService
	Ingest    ports.SourceIngestor
	Evaluator ports.Evaluator
	Catalog   ports.SourceCatalog
	Cases     []domain.EvaluationCase

	// Defaults used by index when no source flag is given.
	WikiSpaceKey string
	BoardID      string
}

type Loader func(ctx context.Context) (*Services, func(), error)

type app struct {
	load     Loader
	services *Services
	closeFn  func()
	asJSON   bool
}

// Execute runs the command line and releases the services afterwards.
func Execute(ctx context.Context, load Loader, args []string) error {
	root, a := newRoot(load)
	defer a.close()
	root.SetArgs(args)
	root.SetOut(os.Stdout)
	return root.ExecuteContext(ctx)
}

func NewRootCommand(load Loader) *cobra.Command {
	root, _ := newRoot(load)
	return root
}

func newRoot(load Loader) (*cobra.Command, *app) {
	a := &app{load: load}
	root := &cobra.Command{
		Use:           "assistant",
		Short:         "Knowledge assistant over wiki pages, PDFs and boards",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&a.asJSON, "json", false, "print results as JSON")

	root.AddCommand(
		a.indexCommand(),
		a.askCommand(),
		a.sessionsCommand(),
		a.historyCommand(),
		a.evaluateCommand(),
		a.sourcesCommand(),
	)
	return root, a
}

func (a *app) close() {
	if a.closeFn != nil {
		a.closeFn()
		a.closeFn = nil
	}
}

func (a *app) servicesFor(cmd *cobra.Command) (*Services, error) {
	if a.services != nil {
		return a.services, nil
	}
	if a.load == nil {
		return nil, errors.New("services are not configured")
	}
	services, closeFn, err := a.load(cmd.Context())
	if err != nil {
		return nil, fmt.Errorf("initialize services: %w", err)
	}
	a.services = services
	a.closeFn = closeFn
	return services, nil
}

func (a *app) printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
