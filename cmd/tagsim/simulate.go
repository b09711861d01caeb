package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bothonetwork/go-clustertax/cluster"
	"github.com/bothonetwork/go-clustertax/common/types"
	"github.com/bothonetwork/go-clustertax/transfer"
)

func simulateCmd() *cobra.Command {
	var (
		hops        int
		mintAmount  uint64
		sendAmount  uint64
		blockStride uint64
		washTrade   bool
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "run an N-hop transfer chain and print the tag trajectory",
		Long: "Mints a fresh cluster and moves value through a chain of accounts, " +
			"printing attribution, entropy and fee rate after every hop. With " +
			"--wash the value bounces between two accounts, showing the entropy " +
			"floor on decay credit.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			defer logger.Sync()

			out, closeOut, err := openOutput()
			if err != nil {
				return err
			}
			defer closeOut()

			wealth := cluster.NewWealth()
			exec, err := transfer.NewExecutor(transfer.Config{
				Fees:  cfg.Fees,
				Decay: cfg.Decay,
			}, wealth, transfer.WithLogger(logger))
			if err != nil {
				return err
			}

			height := types.BlockHeight(1)
			minter := transfer.NewAccount(1)
			id := types.DeriveClusterId(height, []byte("tagsim-minter"), 0)
			if err := exec.Mint(minter, mintAmount, id, height); err != nil {
				return err
			}
			logger.Info("minted genesis cluster",
				zap.Stringer("cluster", id),
				zap.Uint64("amount", mintAmount),
			)

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "hop\tholder\tbalance\tattributed (ppm)\tentropy (mbits)\trate (bps)\tdecay factor (ppm)")

			holder := minter
			for hop := 1; hop <= hops; hop++ {
				height += types.BlockHeight(blockStride)
				var next *transfer.Account
				if washTrade && hop%2 == 0 {
					next = minter
				} else {
					next = transfer.NewAccount(uint64(hop + 1))
					next.Activity = types.NewUtxoActivityState(height)
				}
				amount := sendAmount
				if amount > holder.Balance {
					amount = holder.Balance
				}
				res, err := exec.Execute(holder, next, amount, height)
				if err != nil {
					return fmt.Errorf("hop %d: %w", hop, err)
				}
				fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%d\t%d\t%d\n",
					hop,
					next.ID,
					next.Balance,
					next.Tags.TotalAttributed(),
					next.Tags.ClusterEntropy(),
					res.RateBps,
					res.Decay.FactorPpm,
				)
				holder = next
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&hops, "hops", 10, "number of transfer hops")
	cmd.Flags().Uint64Var(&mintAmount, "mint", 1_000_000, "amount minted into the genesis cluster")
	cmd.Flags().Uint64Var(&sendAmount, "amount", 500_000, "amount moved per hop")
	cmd.Flags().Uint64Var(&blockStride, "stride", 720, "blocks between hops")
	cmd.Flags().BoolVar(&washTrade, "wash", false, "bounce between two accounts instead of fresh counterparties")
	return cmd
}
