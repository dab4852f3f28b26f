package admin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cloo-solutions/docadmin/internal/config"
	"github.com/cloo-solutions/docadmin/internal/domain"
	"github.com/cloo-solutions/docadmin/internal/service"
	"github.com/fatih/color"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
)

func DocumentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "document",
		Short: "Manage documents",
		Long:  "List documents and forward them to the processing webhook",
	}

	cmd.AddCommand(DocumentListCmd())
	cmd.AddCommand(DocumentForwardCmd())
	cmd.AddCommand(DocumentForwardPendingCmd())

	return cmd
}

// runEnv is a loaded config with its pool and services
type runEnv struct {
	cfg  *config.Config
	pool *pgxpool.Pool
	svc  *services
}

func loadRuntime(ctx context.Context) (*runEnv, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	pool, err := openPool(ctx, cfg)
	if err != nil {
		return nil, err
	}

	storageClient, err := newStorageClient(ctx, cfg)
	if err != nil {
		pool.Close()
		return nil, err
	}

	return &runEnv{cfg: cfg, pool: pool, svc: newServices(cfg, pool, storageClient)}, nil
}

func DocumentListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List documents",
		RunE:  runDocumentList,
	}

	cmd.Flags().StringP("flow", "f", "", "Filter by flow (aprendiz, instructor, administrativo)")
	cmd.Flags().StringP("query", "q", "", "Match title or description")
	cmd.Flags().IntP("limit", "l", service.DefaultDocumentPageSize, "Page size")
	cmd.Flags().String("cursor", "", "Cursor from a previous page")
	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func runDocumentList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	flow, _ := cmd.Flags().GetString("flow")
	query, _ := cmd.Flags().GetString("query")
	limit, _ := cmd.Flags().GetInt("limit")
	cursor, _ := cmd.Flags().GetString("cursor")
	outputFormat, _ := cmd.Flags().GetString("output")

	rt, err := loadRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.pool.Close()

	page, err := rt.svc.documents.List(ctx, service.ListDocumentsInput{
		Flow:   flow,
		Query:  query,
		Limit:  limit,
		Cursor: cursor,
	})
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if outputFormat == "json" {
		data := make([]map[string]interface{}, len(page.Items))
		for i, d := range page.Items {
			data[i] = map[string]interface{}{
				"id":           d.ID,
				"title":        d.Title,
				"code":         d.Code,
				"version":      d.Version,
				"flow":         d.Flow,
				"file_path":    d.FilePath,
				"processed":    d.ProcessedByN8N,
				"processed_at": d.ProcessedAt,
			}
		}
		return printJSON(map[string]interface{}{
			"items":       data,
			"next_cursor": page.NextCursor,
			"has_more":    page.HasMore,
		})
	}

	if len(page.Items) == 0 {
		fmt.Println("No documents found")
		return nil
	}
	for _, d := range page.Items {
		status := color.YellowString("pending")
		if d.ProcessedByN8N {
			status = color.GreenString("processed")
		}
		fmt.Printf("  %s: %s [%s v%s, %s] %s\n", d.ID, d.Title, d.Code, d.Version, d.Flow, status)
	}
	if page.HasMore {
		fmt.Printf("\nNext page: --cursor %s\n", page.NextCursor)
	}
	return nil
}

func DocumentForwardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "forward <id>",
		Short: "Forward one document to the processing webhook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			rt, err := loadRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.pool.Close()

			result, err := rt.svc.forward.Forward(ctx, args[0])
			if err != nil {
				return describeForwardError(err)
			}

			fmt.Printf("%s document %s forwarded (attempts: %d, status: %d)\n",
				color.GreenString("OK"), result.DocumentID, result.Attempts, result.StatusCode)
			return nil
		},
	}
}

func describeForwardError(err error) error {
	var ferr *service.ForwardError
	if errors.As(err, &ferr) {
		return fmt.Errorf("forward failed at %s stage after %d attempt(s): %w", ferr.Stage, ferr.Attempts, err)
	}
	return err
}

func DocumentForwardPendingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "forward-pending",
		Short: "Forward every document not yet accepted by the webhook",
		Long:  "Forward pending documents oldest first, one at a time, at most --rate forwards per second",
		RunE:  runForwardPending,
	}

	cmd.Flags().Float64("rate", 1, "Maximum forwards per second")
	cmd.Flags().IntP("limit", "l", 0, "Maximum documents to forward (0 for all)")

	return cmd
}

func runForwardPending(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	perSecond, _ := cmd.Flags().GetFloat64("rate")
	limit, _ := cmd.Flags().GetInt("limit")
	if perSecond <= 0 {
		return fmt.Errorf("--rate must be positive")
	}

	rt, err := loadRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.pool.Close()

	docs, err := rt.svc.documents.ListPending(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to list pending documents: %w", err)
	}
	if len(docs) == 0 {
		fmt.Println("No pending documents")
		return nil
	}

	limiter := rate.NewLimiter(rate.Limit(perSecond), 1)
	summary, err := forwardPending(ctx, docs, rt.svc.forward, limiter, os.Stderr)
	if err != nil {
		return err
	}

	fmt.Printf("%s forwarded, %s failed\n",
		color.GreenString("%d", summary.Succeeded), color.RedString("%d", len(summary.Failed)))
	for id, ferr := range summary.Failed {
		fmt.Printf("  %s %s: %v\n", color.RedString("x"), id, ferr)
	}
	return nil
}

// documentForwarder forwards one document by id
type documentForwarder interface {
	Forward(ctx context.Context, documentID string) (*service.ForwardResult, error)
}

// forwardSummary is the outcome of a forward-pending batch
type forwardSummary struct {
	Succeeded int
	Failed    map[string]error
}

// forwardPending forwards docs sequentially. Each document gets its own retry
// budget inside the forwarder; a failure never stops the batch.
func forwardPending(ctx context.Context, docs []*domain.Document, fwd documentForwarder, limiter *rate.Limiter, progress io.Writer) (*forwardSummary, error) {
	bar := progressbar.NewOptions(len(docs),
		progressbar.OptionSetWriter(progress),
		progressbar.OptionSetDescription(color.BlueString("forwarding")),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
	)

	summary := &forwardSummary{Failed: make(map[string]error)}
	for _, doc := range docs {
		if err := limiter.Wait(ctx); err != nil {
			return summary, fmt.Errorf("forward-pending interrupted: %w", err)
		}

		if _, err := fwd.Forward(ctx, doc.ID); err != nil {
			summary.Failed[doc.ID] = describeForwardError(err)
		} else {
			summary.Succeeded++
		}
		_ = bar.Add(1)
	}
	_ = bar.Finish()
	fmt.Fprintln(progress)

	return summary, nil
}
