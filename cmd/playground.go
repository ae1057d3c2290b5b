package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/zjrosen/signup/internal/config"
	"github.com/zjrosen/signup/internal/log"
	"github.com/zjrosen/signup/internal/stub"
	"github.com/zjrosen/signup/internal/tracing"
)

var playgroundCmd = &cobra.Command{
	Use:   "playground",
	Short: "Try the sign-up form against a built-in backend",
	Long: `Launch the sign-up form wired to an in-process stub backend on a free
local port. Addresses are verified as soon as a link is requested unless
--manual-verify is given, in which case the links are written to the debug log.`,
	RunE: runPlayground,
}

var playgroundManualVerify bool

func init() {
	rootCmd.AddCommand(playgroundCmd)

	playgroundCmd.Flags().BoolVar(&playgroundManualVerify, "manual-verify", false,
		"require opening the verification link (see the debug log)")
}

func runPlayground(_ *cobra.Command, _ []string) error {
	cleanup, err := setupLogging("signup-playground")
	if err != nil {
		return err
	}
	defer cleanup()

	backend := stub.New(stub.Options{
		TokenTTL:   cfg.Stub.TokenTTL,
		AutoVerify: !playgroundManualVerify,
		Tracer:     tracing.Noop().Tracer(),
		OnLink: func(email, link string) {
			log.Info(log.CatStub, "verification link", "email", email, "link", link)
		},
	})
	server, err := stub.Listen("127.0.0.1:0", backend)
	if err != nil {
		return err
	}
	go func() {
		if err := server.Serve(); err != nil {
			log.ErrorErr(log.CatStub, "playground backend stopped", err)
		}
	}()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}()

	c := cfg
	c.API.BaseURL = server.URL()
	c.API.Paths = config.Defaults().API.Paths // the stub serves the stock layout
	if err := runTUI(c); err != nil {
		return fmt.Errorf("running playground: %w", err)
	}
	return nil
}
