package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"

	"github.com/pydeb/pydeb/pkg/convert"
)

// serveCommand creates the serve command for exposing the repository over HTTP.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		repository string
		addr       string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the archive repository over HTTP",
		Long: `Serve the archive repository over HTTP.

Exposes a plain-text listing at / and the archives themselves at /<name>.deb,
so a converted repository can be consumed directly, e.g. with
"deb [trusted=yes] http://host:8080 ./" style sources or plain dpkg -i after
download. The server runs until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), repository, addr)
		},
	}

	cmd.Flags().StringVarP(&repository, "repository", "r", ".", "repository directory to serve")
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")

	return cmd
}

// runServe starts the repository HTTP server and blocks until ctx is done.
func (c *CLI) runServe(ctx context.Context, repository, addr string) error {
	repo := &convert.Repository{Dir: repository}

	router := chi.NewRouter()
	router.Use(c.requestLogger)

	router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		archives, err := repo.List()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		for _, path := range archives {
			fmt.Fprintln(w, filepath.Base(path))
		}
	})

	router.Get("/{archive}", func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "archive")
		// only archives are served, never stray repository files
		if !strings.HasSuffix(name, ".deb") || name != filepath.Base(name) {
			http.NotFound(w, r)
			return
		}
		http.ServeFile(w, r, filepath.Join(repository, name))
	})

	server := &http.Server{Addr: addr, Handler: router}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	printInfo("Serving %s on %s", repository, addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return ctx.Err()
}

// requestLogger logs one debug line per request.
func (c *CLI) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		c.Logger.Debug("request",
			"method", r.Method, "path", r.URL.Path, "duration", time.Since(start).Round(time.Millisecond))
	})
}
