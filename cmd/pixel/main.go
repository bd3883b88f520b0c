package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	assistant "github.com/koscakluka/pixel-core/core"
	"github.com/koscakluka/pixel-core/internal/config"
	"github.com/koscakluka/pixel-core/internal/logging"
	"github.com/koscakluka/pixel-core/internal/server"
	"github.com/koscakluka/pixel-core/internal/tui"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

var (
	cfgPath  string
	logLevel string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "pixel",
		Short:         "Pixel - a desktop voice assistant pet",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "pixel.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")

	rootCmd.AddCommand(runCmd(), sayCmd(), configCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	logger, err := logging.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func runCmd() *cobra.Command {
	var withTUI, noListen bool
	var serve string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Listen for the wake phrase and answer commands",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			if serve != "" {
				cfg.Server.Enabled = true
				cfg.Server.Address = serve
			}
			return run(cmd.Context(), cfg, logger, withTUI, !noListen)
		},
	}
	cmd.Flags().BoolVar(&withTUI, "tui", false, "open the terminal chat window")
	cmd.Flags().BoolVar(&noListen, "no-listen", false, "only take typed commands, leave the microphone closed")
	cmd.Flags().StringVar(&serve, "serve", "", "serve the control API on this address")
	return cmd
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, withTUI, listen bool) (err error) {
	parts := &components{}
	defer func() {
		if closeErr := parts.close(); closeErr != nil {
			logger.Warn("Failed to release devices", "error", closeErr)
		}
	}()

	if listen {
		if err := parts.buildMicrophone(cfg, logger); err != nil {
			return err
		}
		if err := parts.buildRecognizer(cfg); err != nil {
			return err
		}
	}
	if err := parts.buildSynthesizer(cfg, logger); err != nil {
		return err
	}
	if err := parts.buildBackend(ctx, cfg); err != nil {
		return err
	}

	pixel := assistant.NewVoiceAssistant(assistantOptions(cfg, parts, logger)...)
	defer func() {
		if shutdownErr := pixel.Shutdown(shutdownTimeout); shutdownErr != nil {
			err = errors.Join(err, shutdownErr)
		}
	}()

	if listen {
		if err := pixel.Start(ctx); err != nil {
			return err
		}
	}
	if cfg.Assistant.Greet {
		pixel.Greet()
	}

	group, groupCtx := errgroup.WithContext(ctx)
	if cfg.Server.Enabled {
		api := server.New(pixel, server.WithLogger(logger))
		group.Go(func() error { return api.Run(groupCtx, cfg.Server.Address) })
	}
	if withTUI {
		group.Go(func() error {
			err := tui.Run(groupCtx, pixel, "Pixel")
			// Closing the window ends the program.
			return errors.Join(err, errQuit)
		})
	} else {
		group.Go(func() error {
			<-groupCtx.Done()
			return nil
		})
	}

	logger.Info("Pixel is running", "listening", listen, "tui", withTUI, "server", cfg.Server.Enabled)
	if err := group.Wait(); err != nil && !errors.Is(err, errQuit) {
		return err
	}
	return nil
}

var errQuit = errors.New("quit")

func sayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "say <text>",
		Short: "Speak text with the configured voice and exit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}

			parts := &components{}
			defer parts.close()
			if err := parts.buildSynthesizer(cfg, logger); err != nil {
				return err
			}

			opts := append(assistantOptions(cfg, parts, logger),
				assistant.WithSpeechQueueOptions(assistant.WithDrainOnShutdown()))
			pixel := assistant.NewVoiceAssistant(opts...)
			pixel.Speak(strings.Join(args, " "))
			return pixel.Shutdown(time.Minute)
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "schema",
			Short: "Print the JSON schema of the config file",
			RunE: func(cmd *cobra.Command, _ []string) error {
				schema, err := config.Schema()
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(schema))
				return err
			},
		},
		&cobra.Command{
			Use:   "check",
			Short: "Load and validate the config file",
			RunE: func(cmd *cobra.Command, _ []string) error {
				if _, err := config.Load(cfgPath); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s is valid\n", cfgPath)
				return err
			},
		},
	)
	return cmd
}
