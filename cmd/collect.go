package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abhisek/revlearn/internal/collector"
	"github.com/abhisek/revlearn/internal/export"
	"github.com/abhisek/revlearn/internal/logging"
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Serve the data collection endpoints",
	Long: `Collect runs the HTTP server that running sessions post their data
files to (/save_data, /upload and /mail). Uploads go to the bucket set
under export.gcs when collector.upload is on.`,
	RunE: runCollect,
}

func init() {
	collectCmd.Flags().String("addr", "", "Listen address (overrides collector.addr)")
	collectCmd.Flags().String("root", "", "Directory files are written under (overrides collector.root)")
}

func runCollect(cmd *cobra.Command, _ []string) error {
	cc := cfg.Collector
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cc.Addr = addr
	}
	if root, _ := cmd.Flags().GetString("root"); root != "" {
		cc.Root = root
	}

	log, flush, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}
	defer flush()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cc.Root, 0o755); err != nil {
		return err
	}

	opts := collector.Options{
		Root:         cc.Root,
		MaxBodyBytes: cc.MaxBodyBytes,
		Logger:       log,
	}
	if cc.Upload {
		gcs, err := export.NewGCSSink(ctx, export.GCSConfig{
			Bucket:      cfg.Export.GCS.Bucket,
			Prefix:      cfg.Export.GCS.Prefix,
			Credentials: cfg.Export.GCS.Credentials,
			Emulator:    cfg.Export.GCS.Emulator,
		})
		if err != nil {
			return err
		}
		defer gcs.Close()
		opts.Uploader = export.WithRetry(gcs, cfg.Export.Retry)
	}
	if cc.MailForwardURL != "" {
		opts.Mailer = export.WithRetryNotifier(&export.HTTPNotifier{
			Client:  &http.Client{Timeout: cfg.Export.HTTP.Timeout},
			MailURL: cc.MailForwardURL,
		}, cfg.Export.Retry)
	}

	log.Info("Starting collector",
		zap.String("addr", cc.Addr),
		zap.String("root", cc.Root),
		zap.Bool("upload", opts.Uploader != nil),
		zap.Bool("mail_forward", opts.Mailer != nil),
	)
	err = collector.New(opts).ListenAndServe(ctx, cc.Addr)
	if errors.Is(err, context.Canceled) || errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
