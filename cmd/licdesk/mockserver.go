package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/five82/licdesk/internal/logging"
	"github.com/five82/licdesk/internal/mockapi"
)

const shutdownTimeout = 5 * time.Second

type mockServerFlags struct {
	addr     string
	basePath string
	username string
	password string
	noAuth   bool
}

func newMockServerCmd(flags *globalFlags) *cobra.Command {
	mf := &mockServerFlags{}
	cmd := &cobra.Command{
		Use:   "mock-server",
		Short: "Serve an in-memory license backend for local use",
		Long: `Serve a seeded, in-memory license backend. State is lost on exit.

Point the console at it with --api-url http://localhost:9090/NexxLicense.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMockServer(cmd.Context(), flags, mf)
		},
	}
	f := cmd.Flags()
	f.StringVar(&mf.addr, "addr", ":9090", "listen address")
	f.StringVar(&mf.basePath, "base-path", "/NexxLicense", "path prefix of the API")
	f.StringVar(&mf.username, "username", mockapi.DefaultUsername, "accepted admin username")
	f.StringVar(&mf.password, "password", mockapi.DefaultPassword, "accepted admin password")
	f.BoolVar(&mf.noAuth, "no-auth", false, "accept requests without a bearer token")
	return cmd
}

func runMockServer(ctx context.Context, flags *globalFlags, mf *mockServerFlags) error {
	logger, closeLog, err := logging.New(logging.Options{
		Console: os.Stderr,
		Level:   flags.logLevel,
		Version: Version,
	})
	if err != nil {
		return err
	}
	defer closeLog()

	backend := mockapi.New(mockapi.Options{
		Username:    mf.username,
		Password:    mf.password,
		RequireAuth: !mf.noAuth,
		Logger:      logger,
	})

	router := chi.NewRouter()
	base := "/" + strings.Trim(mf.basePath, "/")
	if base == "/" {
		router.Mount("/", backend.Handler())
	} else {
		router.Mount(base, backend.Handler())
	}

	srv := &http.Server{
		Addr:              mf.addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", mf.addr).Str("base_path", base).Bool("auth", !mf.noAuth).Msg("mock backend listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		logger.Info().Msg("mock backend stopped")
		return nil
	})
	return g.Wait()
}
