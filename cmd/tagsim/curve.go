package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func curveCmd() *cobra.Command {
	var (
		maxWealth uint64
		steps     int
	)
	cmd := &cobra.Command{
		Use:   "curve",
		Short: "print the cluster factor and fee rate over a wealth sweep",
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

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "wealth\tfactor (1000=1x)\trate (bps)")
			for i := 0; i <= steps; i++ {
				wealth := maxWealth / uint64(steps) * uint64(i)
				fmt.Fprintf(w, "%d\t%d\t%d\n",
					wealth,
					cfg.Fees.Factor.Factor(wealth),
					cfg.Fees.Rate.RateBps(wealth),
				)
			}
			return w.Flush()
		},
	}
	cmd.Flags().Uint64Var(&maxWealth, "max-wealth", 40_000_000, "upper end of the wealth sweep")
	cmd.Flags().IntVar(&steps, "steps", 20, "number of sweep steps")
	return cmd
}
