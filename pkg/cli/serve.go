package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/Promptonauts/releasepipe/pkg/api"
	"github.com/Promptonauts/releasepipe/pkg/observability"
	"github.com/Promptonauts/releasepipe/pkg/publish"
	"github.com/Promptonauts/releasepipe/pkg/store"
)

func newServeCommand(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the descriptor registry over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("addr") {
				a.cfg.HTTPAddr = addr
			}
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (env RELEASEPIPE_HTTP_ADDR)")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	st, err := a.openStore()
	if err != nil {
		return fmt.Errorf("store unavailable: %w", err)
	}
	defer func() { _ = st.Close() }()

	var pub *publish.Publisher
	if a.cfg.ObjectStore.Enabled() {
		if pub, err = publish.FromConfig(a.cfg.ObjectStore); err != nil {
			return fmt.Errorf("object store: %w", err)
		}
		if err := pub.EnsureBucket(ctx); err != nil {
			return err
		}
		a.logger.Info("publishing enabled", "endpoint", a.cfg.ObjectStore.Endpoint, "bucket", a.cfg.ObjectStore.Bucket)
	}

	if recs, err := st.ListDescriptors(); err == nil {
		a.metrics.Gauge(observability.MetricStoredDescriptors).Set(int64(len(recs)))
	}
	go a.logDescriptorEvents(ctx, st.Watch())

	server := api.NewServer(st, a.metrics, a.logger, pub)
	return runHTTP(ctx, a, server.Handler())
}

func (a *app) logDescriptorEvents(ctx context.Context, events <-chan store.DescriptorEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			a.logger.Info("descriptor changed", "event", ev.Type, "name", ev.Descriptor.Name, "revision", ev.Descriptor.Revision)
		}
	}
}

// runHTTP serves until ctx is cancelled, then drains in-flight requests for
// up to the configured shutdown timeout.
func runHTTP(ctx context.Context, a *app, handler http.Handler) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutting down", "timeout", a.cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
