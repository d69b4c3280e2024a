package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"minichain/blockchain"
)

func commandContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), requestTimeout)
}

var chainCmd = &cobra.Command{
	Use:   "chain",
	Short: "Print the chain of a node",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		chain, err := newClient().FetchChain(ctx, nodeURL)
		if err != nil {
			return err
		}
		return renderChain(chain)
	},
}

func renderChain(chain blockchain.Chain) error {
	data := pterm.TableData{{"Index", "Time", "Proof", "Txs", "Hash", "Previous"}}
	for i := range chain {
		block := &chain[i]
		prev := "-"
		if block.PreviousHash != nil {
			prev = block.PreviousHash.Short()
		}
		data = append(data, []string{
			strconv.FormatUint(block.Index, 10),
			time.Unix(block.Timestamp, 0).UTC().Format(time.RFC3339),
			strconv.FormatUint(block.Proof, 10),
			strconv.Itoa(len(block.Transactions)),
			blockchain.HashBlock(block).Short(),
			prev,
		})
	}
	if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		return err
	}

	if err := blockchain.ValidateChain(chain, blockchain.DefaultDifficulty); err != nil {
		pterm.Warning.Printfln("Chain does not validate at difficulty %d: %v", blockchain.DefaultDifficulty, err)
	} else {
		pterm.Success.Printfln("%d blocks, valid", len(chain))
	}
	return nil
}

var mineCmd = &cobra.Command{
	Use:   "mine",
	Short: "Ask a node to mine a block",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		block, err := newClient().Mine(ctx, nodeURL)
		if err != nil {
			return err
		}
		pterm.Success.Printfln("Mined block %d proof=%d hash=%s txs=%d",
			block.Index, block.Proof, blockchain.HashBlock(&block), len(block.Transactions))
		return nil
	},
}

var (
	txFrom   string
	txTo     string
	txAmount float64
)

var txCmd = &cobra.Command{
	Use:   "tx",
	Short: "Submit a transaction to a node's pending pool",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		tx := blockchain.NewTransfer(txFrom, txTo, txAmount)
		if err := newClient().SubmitTransaction(ctx, nodeURL, tx); err != nil {
			return err
		}
		pterm.Success.Printfln("Submitted %s -> %s amount=%g", txFrom, txTo, txAmount)
		return nil
	},
}

var peersCmd = &cobra.Command{
	Use:   "peers",
	Short: "List or add peers of a node",
}

var peersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the peers of a node",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		peers, err := newClient().ListPeers(ctx, nodeURL)
		if err != nil {
			return err
		}
		if len(peers) == 0 {
			pterm.Info.Println("No peers registered")
			return nil
		}
		items := make([]pterm.BulletListItem, 0, len(peers))
		for _, p := range peers {
			items = append(items, pterm.BulletListItem{Level: 0, Text: p})
		}
		return pterm.DefaultBulletList.WithItems(items).Render()
	},
}

var peersAddCmd = &cobra.Command{
	Use:   "add <address>...",
	Short: "Register peers with a node",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		client := newClient()
		for _, address := range args {
			if err := client.AddPeer(ctx, nodeURL, address); err != nil {
				return fmt.Errorf("add %s: %w", address, err)
			}
			pterm.Success.Printfln("Added peer %s", address)
		}
		return nil
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Start a consensus round on a node",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		if err := newClient().Resolve(ctx, nodeURL); err != nil {
			return err
		}
		pterm.Info.Println("Resolve round started")
		return nil
	},
}

func init() {
	txCmd.Flags().StringVar(&txFrom, "from", "", "Sender")
	txCmd.Flags().StringVar(&txTo, "to", "", "Recipient")
	txCmd.Flags().Float64Var(&txAmount, "amount", 0, "Amount")
	_ = txCmd.MarkFlagRequired("from")
	_ = txCmd.MarkFlagRequired("to")
	_ = txCmd.MarkFlagRequired("amount")

	peersCmd.AddCommand(peersListCmd, peersAddCmd)
	rootCmd.AddCommand(chainCmd, mineCmd, txCmd, peersCmd, resolveCmd)
}
