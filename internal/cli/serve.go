package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/matzehuels/classpath/pkg/localrepo"
	"github.com/matzehuels/classpath/pkg/mirror"
	"github.com/matzehuels/classpath/pkg/observability"
)

const shutdownTimeout = 10 * time.Second

type serveOpts struct {
	addr    string
	root    string
	proxy   bool
	metrics bool
}

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	opts := serveOpts{addr: ":8080", metrics: true}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the local repository over HTTP",
		Long: `Serve the local repository as a Maven repository, so other machines can
use it with -r id(http://host:8080/).

With --proxy, files missing from the local repository are resolved through
the configured repositories on first request and kept for later ones.
Prometheus metrics are exposed at /metrics.

Examples:
  classpath serve
  classpath serve --addr :9000 --root ./repo --proxy`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			h, closeFn, err := c.serveHandler(ctx, opts)
			if err != nil {
				return err
			}
			defer closeFn()

			ln, err := net.Listen("tcp", opts.addr)
			if err != nil {
				return err
			}
			printSuccess(stderr(cmd), "Serving %s on %s", c.settings.LocalRepoPath(), StyleLink.Render("http://"+ln.Addr().String()+"/"))
			return serveUntilDone(ctx, &http.Server{Handler: h, ReadHeaderTimeout: 10 * time.Second}, ln)
		},
	}
	cmd.Flags().StringVar(&opts.addr, "addr", opts.addr, "listen address")
	cmd.Flags().StringVar(&opts.root, "root", "", "repository directory (default: the local repository)")
	cmd.Flags().BoolVar(&opts.proxy, "proxy", false, "fetch missing artifacts from the configured repositories")
	cmd.Flags().BoolVar(&opts.metrics, "metrics", opts.metrics, "expose Prometheus metrics at /metrics")
	return cmd
}

// serveHandler builds the mirror handler. The returned function releases
// the resolver session opened for --proxy.
func (c *CLI) serveHandler(ctx context.Context, opts serveOpts) (http.Handler, func() error, error) {
	logger := loggerFromContext(ctx)
	if opts.root != "" {
		c.settings.LocalRepo = opts.root
	}
	mopts := mirror.Options{Root: c.settings.LocalRepoPath(), Logger: logger}
	closeFn := func() error { return nil }

	if opts.metrics {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m := observability.NewMetrics(reg)
		observability.SetResolveHooks(m)
		observability.SetCacheHooks(m)
		observability.SetHTTPHooks(m)
		mopts.Metrics = m.Handler()
	}

	if opts.proxy {
		sess, err := c.newSession(ctx, nil)
		if err != nil {
			return nil, nil, err
		}
		closeFn = sess.Close
		mopts.Upstream = mirror.UpstreamFunc(func(ctx context.Context, rel string) (string, error) {
			coord, err := localrepo.ParsePath(rel)
			if err != nil {
				return "", err
			}
			return sess.Artifact(ctx, coord)
		})
	}
	return mirror.New(mopts), closeFn, nil
}

// serveUntilDone runs srv on ln and shuts it down once ctx is canceled.
func serveUntilDone(ctx context.Context, srv *http.Server, ln net.Listener) error {
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
