package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	_ "trustcore/cmd/trust-service/docs"
	"trustcore/internal/anchoring"
	"trustcore/internal/config"
	"trustcore/internal/logger"
	"trustcore/internal/merkle"
	"trustcore/pkg/logging"
)

var (
	configFile string
)

// @title           Trust Service API
// @version         1.0
// @description     Trust rules evaluation, audit log anchoring and Merkle inclusion proofs

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8080
// @BasePath  /api/v1

// @schemes   http https

func main() {
	rootCmd := &cobra.Command{
		Use:   "trust-service",
		Short: "Trust rule engine and audit anchoring service",
		Long:  "Trust service evaluates trust rules against events and anchors batches of audit logs as Merkle roots",
		RunE:  serveCmd().RunE,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (required)")

	rootCmd.AddCommand(serveCmd(), anchorCmd(), verifyCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads the config and the logger. Failures before the logger exists go to the early log.
func setup() (*config.Config, logger.Logger, error) {
	earlyLog := logging.NewEarlyLog()

	if configFile == "" {
		configFile = os.Getenv("CONFIG_FILE")
		if configFile == "" {
			earlyLog.Error("Config file is required. Use --config flag or CONFIG_FILE environment variable")
			return nil, nil, fmt.Errorf("config file is required")
		}
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		earlyLog.Error("Failed to load config: %v", err)
		return nil, nil, err
	}

	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		earlyLog.Error("Failed to init logger: %v", err)
		return nil, nil, err
	}
	return cfg, log, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the trust service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			log.InfowCtx(ctx, "Starting trust service")

			app := NewApp(cfg, log)
			if err := app.Initialize(ctx, true); err != nil {
				log.Fatalf("Failed to initialize application: %v", err)
			}

			if err := app.Run(ctx); err != nil {
				log.ErrorwCtx(ctx, "Application error", "error", err)
				return err
			}
			return nil
		},
	}
}

func anchorCmd() *cobra.Command {
	var start, end string

	cmd := &cobra.Command{
		Use:   "anchor",
		Short: "Build and anchor one audit window",
		Long:  "Build and anchor the window [--start, --end). Without flags the last complete scheduler window is used.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			app := NewApp(cfg, log)
			if err := app.Initialize(ctx, false); err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}
			defer app.Close()

			var batch *anchoring.Batch
			if start == "" && end == "" {
				batch, err = app.scheduler.RunOnce(ctx)
			} else {
				var periodStart, periodEnd time.Time
				if periodStart, err = time.Parse(time.RFC3339, start); err != nil {
					return fmt.Errorf("invalid --start: %w", err)
				}
				if periodEnd, err = time.Parse(time.RFC3339, end); err != nil {
					return fmt.Errorf("invalid --end: %w", err)
				}
				batch, err = app.anchorService.BuildAndAnchorBatch(ctx, periodStart, periodEnd)
			}
			if err != nil {
				return err
			}
			if batch == nil {
				log.Info("Window already anchored or locked by another worker")
				return nil
			}
			return printJSON(cmd, batch)
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "Window start, RFC3339")
	cmd.Flags().StringVar(&end, "end", "", "Window end (exclusive), RFC3339")
	return cmd
}

func verifyCmd() *cobra.Command {
	var proofFile string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify an inclusion proof offline",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(proofFile)
			if err != nil {
				return fmt.Errorf("failed to read proof: %w", err)
			}

			proof, err := decodeProof(data)
			if err != nil {
				return err
			}

			valid := merkle.VerifyProof(proof)
			if err := printJSON(cmd, map[string]interface{}{"valid": valid, "root": proof.Root}); err != nil {
				return err
			}
			if !valid {
				return fmt.Errorf("proof does not lead to root %s", proof.Root)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&proofFile, "proof", "", "Path to a proof JSON file")
	cmd.MarkFlagRequired("proof")
	return cmd
}

// decodeProof accepts either a bare proof or a GET /proofs/{logId} response, whose "proof"
// field is an object rather than the sibling array of a bare proof.
func decodeProof(data []byte) (merkle.Proof, error) {
	var logProof anchoring.LogProof
	if err := json.Unmarshal(data, &logProof); err == nil && logProof.LogID != "" {
		return logProof.Proof, nil
	}

	var proof merkle.Proof
	if err := json.Unmarshal(data, &proof); err != nil {
		return merkle.Proof{}, fmt.Errorf("invalid proof: %w", err)
	}
	return proof, nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
