package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"minichain/blockchain"
	"minichain/logx"
	"minichain/mocks"
	"minichain/p2p/reqresp"
)

var (
	botTxInterval   time.Duration
	botMineInterval time.Duration
	botTxPerTick    int
	botSeed         int64
)

// Bot drives a node with random transfers and periodic mining.
type Bot struct {
	client *reqresp.Client
	node   string
	rng    *rand.Rand
}

func NewBot(client *reqresp.Client, node string, seed int64) (*Bot, error) {
	if node == "" {
		return nil, errors.New("node URL can not be empty")
	}
	return &Bot{
		client: client,
		node:   node,
		rng:    rand.New(rand.NewSource(seed)),
	}, nil
}

func (bot *Bot) submitRandom(ctx context.Context, n int) {
	for _, tx := range mocks.GenerateTransactions(bot.rng, n) {
		if err := bot.client.SubmitTransaction(ctx, bot.node, tx); err != nil {
			logx.Warn("BOT", "Failed to submit transaction: ", err)
			return
		}
	}
	logx.Info("BOT", fmt.Sprintf("Submitted %d transactions", n))
}

func (bot *Bot) mine(ctx context.Context) {
	block, err := bot.client.Mine(ctx, bot.node)
	if err != nil {
		logx.Warn("BOT", "Mining failed: ", err)
		return
	}
	logx.Info("BOT", fmt.Sprintf("Mined block %d hash=%s", block.Index, blockchain.HashBlock(&block).Short()))
}

// Run loops until ctx is done.
func (bot *Bot) Run(ctx context.Context, txInterval, mineInterval time.Duration, txPerTick int) {
	txTicker := time.NewTicker(txInterval)
	defer txTicker.Stop()
	mineTicker := time.NewTicker(mineInterval)
	defer mineTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-txTicker.C:
			bot.submitRandom(ctx, txPerTick)
		case <-mineTicker.C:
			bot.mine(ctx)
		}
	}
}

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Drive a node with random transactions and periodic mining",
	RunE: func(cmd *cobra.Command, args []string) error {
		if botTxInterval <= 0 || botMineInterval <= 0 {
			return errors.New("intervals must be positive")
		}
		bot, err := NewBot(newClient(), nodeURL, botSeed)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		logx.Info("BOT", "Driving ", nodeURL)
		bot.Run(ctx, botTxInterval, botMineInterval, botTxPerTick)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(botCmd)
	botCmd.Flags().DurationVar(&botTxInterval, "tx-interval", 2*time.Second, "Time between transaction batches")
	botCmd.Flags().DurationVar(&botMineInterval, "mine-interval", 10*time.Second, "Time between mine requests")
	botCmd.Flags().IntVar(&botTxPerTick, "tx-per-tick", 3, "Transactions per batch")
	botCmd.Flags().Int64Var(&botSeed, "seed", time.Now().UnixNano(), "Random seed")
}
