package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"minichain/logx"
	"minichain/p2p/reqresp"
)

var (
	nodeURL        string
	requestTimeout time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "node",
	Short: "minichain node CLI",
	Long:  "Run a minichain node, or talk to a running one over its HTTP API.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&nodeURL, "node", "http://localhost:5000", "Base URL of the node to talk to")
	rootCmd.PersistentFlags().DurationVar(&requestTimeout, "timeout", 30*time.Second, "Timeout for a single request to the node")
}

// newClient returns a peer client for the commands that call a running node.
func newClient() *reqresp.Client {
	cfg := reqresp.DefaultConfig()
	cfg.MaxResponseWaitTimeout = requestTimeout
	return reqresp.NewClient(cfg, nil)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logx.Error("CMD", "Command execution failed: ", err)
		os.Exit(1)
	}
}
