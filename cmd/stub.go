package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zjrosen/signup/internal/log"
	"github.com/zjrosen/signup/internal/stub"
	"github.com/zjrosen/signup/internal/tracing"
)

var stubCmd = &cobra.Command{
	Use:   "stub",
	Short: "Run the development backend",
	Long: `Run an in-memory backend implementing the sign-up endpoints.

Verification links are printed to stdout instead of being emailed; open one
(or curl it) to verify the address. Accounts live only as long as the process.

Example:
  signup stub                        # Listen on stub.addr (default 127.0.0.1:3000)
  signup stub --addr :8080           # Listen on port 8080
  signup stub --auto-verify          # Verify addresses as soon as a link is requested`,
	RunE: runStub,
}

var (
	stubAddr       string
	stubAutoVerify bool
)

func init() {
	rootCmd.AddCommand(stubCmd)

	stubCmd.Flags().StringVar(&stubAddr, "addr", "", "Address to listen on (overrides stub.addr)")
	stubCmd.Flags().BoolVar(&stubAutoVerify, "auto-verify", false, "Verify addresses without opening the link")
}

func runStub(cmd *cobra.Command, _ []string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// The stub owns the terminal, so its log goes to stderr.
	if debugFlag || os.Getenv("SIGNUP_DEBUG") != "" {
		cleanup := log.InitWriter(os.Stderr)
		defer cleanup()
		log.SetMinLevel(log.ParseLevel(cfg.Log.Level))
	}

	tp, err := tracing.NewProvider(tracingConfig(cfg.Tracing))
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}

	addr := stubAddr
	if addr == "" {
		addr = cfg.Stub.Addr
	}
	autoVerify := cfg.Stub.AutoVerify
	if cmd.Flags().Changed("auto-verify") {
		autoVerify = stubAutoVerify
	}

	out := cmd.OutOrStdout()
	backend := stub.New(stub.Options{
		TokenTTL:   cfg.Stub.TokenTTL,
		AutoVerify: autoVerify,
		Tracer:     tp.Tracer(),
		OnLink: func(email, link string) {
			_, _ = fmt.Fprintf(out, "verification link for %s: %s\n", email, link)
		},
	})
	server, err := stub.Listen(addr, backend)
	if err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve()
	}()

	_, _ = fmt.Fprintf(out, "Stub backend listening on %s\n", server.URL())
	_, _ = fmt.Fprintln(out, "Press Ctrl+C to stop")

	select {
	case sig := <-sigCh:
		_, _ = fmt.Fprintf(out, "\nReceived %s, shutting down...\n", sig)
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.ErrorErr(log.CatStub, "Error stopping stub backend", err)
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.ErrorErr(log.CatTrace, "tracing shutdown failed", err)
	}

	_, _ = fmt.Fprintln(out, "Stub stopped")
	return nil
}
