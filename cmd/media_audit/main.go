package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/domain/media"
	"storefront/internal/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "media_audit",
		Short:        "Check the upload root against the media table",
		SilenceUsage: true,
	}
	root.AddCommand(newScanCommand())
	return root
}

func newScanCommand() *cobra.Command {
	var opts media.AuditOptions

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Report records without files and files without records",
		Long: `Walks the upload root and the media table and reports mismatches.

Examples:
  media_audit scan                     # report only
  media_audit scan --prune-records     # delete records whose file is gone
  media_audit scan --remove-stray      # delete files no record points at`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			zlog, err := logger.New(cfg.Log)
			if err != nil {
				return fmt.Errorf("logger: %w", err)
			}
			defer func() { _ = zlog.Sync() }()

			db, err := database.Connect(cfg.DatabaseURL, zlog)
			if err != nil {
				return fmt.Errorf("db connect failed: %w", err)
			}
			root, err := media.NewRoot(cfg.Media.UploadDir)
			if err != nil {
				return err
			}

			report, err := media.NewAuditor(media.NewRepository(db), root, zlog).Run(cmd.Context(), opts)
			if err != nil {
				zlog.Error("media audit failed", zap.Error(err))
				return err
			}
			printReport(cmd.OutOrStdout(), report)
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.PruneRecords, "prune-records", false, "delete records whose file is missing")
	cmd.Flags().BoolVar(&opts.RemoveStray, "remove-stray", false, "delete files that no record references")
	return cmd
}

func printReport(w io.Writer, r *media.AuditReport) {
	fmt.Fprintf(w, "records=%d files=%d missing_files=%d outside_root=%d stray_files=%d pruned_records=%d removed_files=%d\n",
		r.Records, r.Files, len(r.MissingFiles), len(r.OutsideRoot), len(r.StrayFiles), r.PrunedRecords, r.RemovedFiles)
	for _, m := range r.MissingFiles {
		fmt.Fprintf(w, "missing  %s %s\n", m.ID, m.URL)
	}
	for _, m := range r.OutsideRoot {
		fmt.Fprintf(w, "outside  %s %s\n", m.ID, m.URL)
	}
	for _, p := range r.StrayFiles {
		fmt.Fprintf(w, "stray    %s\n", p)
	}
}
