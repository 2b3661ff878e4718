// Command taskmeshd is the orchestrator's process entrypoint: a small
// spf13/cobra command tree (serve, submit, version) mirroring the
// CLI-first ambient stack the cklxx-elephant.ai and ShayCichocki-Alphie
// example repos use for their own entrypoints.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/taskmesh/config"
	"github.com/hupe1980/taskmesh/domain"
	"github.com/hupe1980/taskmesh/logging"
	"github.com/hupe1980/taskmesh/server"
)

const version = "0.1.0"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "taskmeshd",
		Short: "Multi-agent task orchestrator",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "optional YAML configuration file")

	root.AddCommand(newServeCommand(&configPath))
	root.AddCommand(newSubmitCommand(&configPath))
	root.AddCommand(newVersionCommand())
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the orchestrator version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(version)
			return nil
		},
	}
}

func newServeCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the REST/SSE orchestrator server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(*configPath)
		},
	}
}

func newSubmitCommand(configPath *string) *cobra.Command {
	var priority string
	cmd := &cobra.Command{
		Use:   "submit <description>",
		Short: "Run a task in-process to a terminal state and print its final status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubmit(*configPath, args[0], priority)
		},
	}
	cmd.Flags().StringVar(&priority, "priority", "medium", "task priority (low, medium, high)")
	return cmd
}

func runServe(configPath string) error {
	logger := logging.NewDefaultSlogLogger()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	application, err := buildApp(cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go application.tracker.Run(ctx)

	srv := server.New(application.sup, application.tracker, application.gateway, func(o *server.Options) {
		o.Logger = logger
		o.CORSOrigin = cfg.CORSOrigin
		o.ReleaseMode = true
	})

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: srv.Handler(),
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("taskmeshd.listening", "port", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		return err
	case <-sigCh:
		logger.Info("taskmeshd.shutting_down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	return httpServer.Shutdown(shutdownCtx)
}

func runSubmit(configPath, description, priority string) error {
	logger := logging.NoOpLogger{}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	application, err := buildApp(cfg, logger)
	if err != nil {
		return err
	}

	p := domain.Priority(priority)
	if !domain.ValidPriority(p) {
		return fmt.Errorf("invalid priority %q", priority)
	}

	t, err := application.sup.Submit(context.Background(), description, p)
	if err != nil {
		return err
	}

	fmt.Printf("submitted task %s (status=%s)\n", t.ID, t.Status)

	deadline := time.Now().Add(2 * time.Minute)
	for time.Now().Before(deadline) {
		current, ok := application.sup.Store().Get(t.ID)
		if ok && current.Status.Terminal() {
			fmt.Printf("final status: %s\n", current.Status)
			return nil
		}
		time.Sleep(500 * time.Millisecond)
	}
	return fmt.Errorf("task %s did not reach a terminal state within the deadline", t.ID)
}
