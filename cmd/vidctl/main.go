// Package main is the operator CLI: search index setup, migrations, manual uploads and
// corrective reconciliation of stuck records.
package main

import (
	"context"
	"fmt"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vidshare/backend/config"
	"github.com/vidshare/backend/internal/app"
	"github.com/vidshare/backend/internal/models"
	"github.com/vidshare/backend/internal/notify"
	"github.com/vidshare/backend/internal/pipeline"
	"github.com/vidshare/backend/pkg/database"
)

var verbose bool

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "vidctl: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "vidctl",
		Short:        "vidshare operator CLI",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log to stderr")
	cmd.AddCommand(
		newIndexCmd(),
		newMigrateCmd(),
		newReconcileCmd(),
		newUploadCmd(),
		newWatchCmd(),
	)
	return cmd
}

// withApp loads configuration, connects dependencies and runs fn.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	logger := zap.NewNop()
	if verbose {
		logger = app.NewLogger()
		defer logger.Sync()
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Manage the search index",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "create",
		Short: "Create the search index with text mappings for title, description and tags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if a.Search == nil {
					return fmt.Errorf("no search backend configured")
				}
				if err := a.Search.EnsureIndex(ctx); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "index %q ready\n", a.Config.Search.Index)
				return nil
			})
		},
	})
	return cmd
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded SQL migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				return database.Migrate(ctx, a.Pool, a.Logger)
			})
		},
	}
}

func newReconcileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Re-run a pipeline step for one video",
	}
	var force bool
	upload := &cobra.Command{
		Use:   "upload <id>",
		Short: "Probe the uploaded source and submit its transcoding job again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				v, err := a.Videos.Get(ctx, id)
				if err != nil {
					return err
				}
				if v.Status != models.StatusNotUploaded && !force {
					return fmt.Errorf("video %s is %s; use --force to submit another job", id, v.Status)
				}
				rec, err := a.UploadReconciler()
				if err != nil {
					return err
				}
				if err := rec.Handle(ctx, pipeline.UploadEvent{Bucket: a.Ingest.Name(), Key: id}); err != nil {
					return err
				}
				v, err = a.Videos.Get(ctx, id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s %d renditions\n", id, v.Status, len(v.Files))
				return nil
			})
		},
	}
	upload.Flags().BoolVar(&force, "force", false, "Reconcile records that already left NOT_UPLOADED")
	cmd.AddCommand(upload)
	return cmd
}

func newUploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <id> <file>",
		Short: "Stream a local file into the ingest bucket under the video id",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, path := args[0], args[1]
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()
			info, err := f.Stat()
			if err != nil {
				return err
			}
			contentType := mime.TypeByExtension(filepath.Ext(path))
			if contentType == "" {
				contentType = "application/octet-stream"
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if _, err := a.Videos.Get(ctx, id); err != nil {
					return fmt.Errorf("video %s: %w", id, err)
				}
				if err := a.Ingest.Upload(ctx, id, contentType, f, info.Size()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "uploaded %s (%d bytes) to %s/%s\n", path, info.Size(), a.Ingest.Name(), id)
				return nil
			})
		},
	}
}

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print status transitions as they are published",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if a.Redis == nil {
					return fmt.Errorf("REDIS_ADDR not configured")
				}
				ch, err := notify.Subscribe(ctx, a.Redis, a.Config.Redis.Channel, a.Logger)
				if err != nil {
					return err
				}
				for n := range ch {
					fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", n.ID, n.Status)
				}
				return nil
			})
		},
	}
}
