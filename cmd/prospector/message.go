package main

import (
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/example/prospector/internal/config"
	"github.com/example/prospector/internal/messaging"
)

var messageCmd = &cobra.Command{
	Use:   "message",
	Short: "Send the follow-up message to connected prospects",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		start := time.Now()

		env, err := setupRun(ctx, config.RunMessaging, overridesFrom(cmd))
		if err != nil {
			return err
		}
		defer env.close()

		sum := messaging.New(env.rc, env.st, env.sessions, env.pacer, env.log).Run(ctx, env.pool)

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.SetTitle("Messaging")
		t.AppendHeader(table.Row{"Metric", "Count"})
		t.AppendRows([]table.Row{
			{"Attempted", sum.Attempted},
			{"Sent", sum.Sent},
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
	f := messageCmd.Flags()
	f.Int("limit", 0, "messages to attempt in total across identities")
	f.String("dm", "", "message template; {{first_name}} is substituted")
	f.StringSlice("senders", nil, "restrict the pool to these identity ids")
	rootCmd.AddCommand(messageCmd)
}
