package main

import (
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/example/prospector/internal/config"
	"github.com/example/prospector/internal/verify"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Re-check invited prospects and mark accepted ones connected",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		start := time.Now()

		env, err := setupRun(ctx, config.RunVerification, overridesFrom(cmd))
		if err != nil {
			return err
		}
		defer env.close()

		sum := verify.New(env.rc, env.st, env.sessions, env.pacer, env.log).Run(ctx, env.pool)

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.SetTitle("Verification")
		t.AppendHeader(table.Row{"Metric", "Count"})
		t.AppendRows([]table.Row{
			{"Checked", sum.Checked},
			{"Connected", sum.Connected},
			{"Still pending", sum.Pending},
			{"Errors", sum.Errors},
			{"Identities skipped", sum.SkippedIdentities},
		})
		t.AppendFooter(table.Row{"Elapsed", elapsed(start)})
		t.SetStyle(table.StyleRounded)
		t.Render()
		return nil
	},
}

func init() {
	f := verifyCmd.Flags()
	f.Int("limit", 0, "invited rows to check per identity")
	f.StringSlice("senders", nil, "restrict the pool to these identity ids")
	rootCmd.AddCommand(verifyCmd)
}
