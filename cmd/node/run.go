package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"minichain/config"
	"minichain/logx"
	"minichain/monitoring"
	"minichain/node"
)

var (
	nodeConfigPath   string
	tuningConfigPath string
	listenAddr       string
	ownerName        string
	nodeID           string
	seedPeers        []string
	difficulty       int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a node",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadRunConfig(cmd)
		if err != nil {
			return err
		}
		return runNode(cfg)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&nodeConfigPath, "config", "", "Path to node.yml")
	runCmd.Flags().StringVar(&tuningConfigPath, "tuning", "", "Path to config.ini")
	runCmd.Flags().StringVar(&listenAddr, "listen", config.DefaultListen, "Address the HTTP API listens on")
	runCmd.Flags().StringVar(&ownerName, "owner", config.DefaultOwner, "Identity credited with mining rewards")
	runCmd.Flags().StringVar(&nodeID, "id", "", "Node ID (auto-generated if not provided)")
	runCmd.Flags().StringSliceVar(&seedPeers, "peers", nil, "Comma-separated peer base URLs")
	runCmd.Flags().IntVar(&difficulty, "difficulty", config.DefaultDifficulty, "Leading zero bytes a proof digest needs")
}

// loadRunConfig applies defaults, then files, then flags the user set explicitly.
func loadRunConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(nodeConfigPath, tuningConfigPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("listen") {
		cfg.Node.Listen = listenAddr
	}
	if flags.Changed("owner") {
		cfg.Node.Owner = ownerName
	}
	if flags.Changed("id") {
		cfg.Node.ID = nodeID
	}
	if flags.Changed("peers") {
		cfg.Peers = seedPeers
	}
	if flags.Changed("difficulty") {
		cfg.Mining.Difficulty = difficulty
	}
	if cfg.Node.ID == "" {
		cfg.Node.ID = uuid.NewString()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runNode(cfg *config.Config) error {
	logx.Setup(cfg.LogOptions())
	defer logx.Close()
	monitoring.InitMetrics()

	fullNode, err := node.NewFullNode(cfg)
	if err != nil {
		return fmt.Errorf("create node: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := fullNode.Start(ctx); err != nil {
		return err
	}
	if len(cfg.Peers) > 0 {
		logx.Info("CMD", fmt.Sprintf("Seed peers: %v", cfg.Peers))
	}

	<-ctx.Done()
	logx.Info("CMD", "Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return fullNode.Stop(shutdownCtx)
}
