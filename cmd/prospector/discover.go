package main

import (
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/example/prospector/internal/config"
	"github.com/example/prospector/internal/models"
	"github.com/example/prospector/internal/search"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Collect profiles from a search page and send invitations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		start := time.Now()

		env, err := setupRun(ctx, config.RunDiscovery, overridesFrom(cmd))
		if err != nil {
			return err
		}
		defer env.close()

		sum, err := search.New(env.rc, env.st, env.sessions, env.pool, env.pacer, env.log).Run(ctx)
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.SetTitle("Discovery")
		t.AppendHeader(table.Row{"Metric", "Count"})
		t.AppendRows([]table.Row{
			{"New links", sum.Discovered},
			{"Already known", sum.Duplicates},
			{"Processed", sum.Processed},
			{"Rows created", sum.Created},
			{"Invited", sum.ByStatus[models.StatusInvited]},
			{"Connected", sum.ByStatus[models.StatusConnected]},
			{"Left new", sum.ByStatus[models.StatusNew]},
			{"Skipped (identity)", sum.Skipped},
			{"Errors", sum.Errors},
		})
		t.AppendFooter(table.Row{"Stopped: " + string(sum.Stop), elapsed(start)})
		t.SetStyle(table.StyleRounded)
		t.Render()
		return nil
	},
}

// overridesFrom turns the flags the user actually set into run overrides.
func overridesFrom(cmd *cobra.Command) config.Overrides {
	var o config.Overrides
	f := cmd.Flags()
	if f.Lookup("search-url") != nil && f.Changed("search-url") {
		v, _ := f.GetString("search-url")
		o.SearchURL = &v
	}
	if f.Changed("limit") {
		v, _ := f.GetInt("limit")
		o.Limit = &v
	}
	if f.Lookup("list") != nil {
		o.ListID, _ = f.GetString("list")
	}
	if f.Lookup("collect-only") != nil && f.Changed("collect-only") {
		v, _ := f.GetBool("collect-only")
		o.CollectOnly = &v
	}
	if f.Lookup("send-note") != nil && f.Changed("send-note") {
		v, _ := f.GetBool("send-note")
		o.SendNote = &v
	}
	if f.Lookup("note") != nil && f.Changed("note") {
		v, _ := f.GetString("note")
		o.NoteText = &v
	}
	if f.Lookup("dm") != nil && f.Changed("dm") {
		v, _ := f.GetString("dm")
		o.DefaultDM = &v
	}
	if f.Lookup("rotation") != nil && f.Changed("rotation") {
		v, _ := f.GetString("rotation")
		o.Rotation = &v
	}
	o.SenderIDs, _ = f.GetStringSlice("senders")
	return o
}

func init() {
	f := discoverCmd.Flags()
	f.String("search-url", "", "people search results URL")
	f.Int("limit", 0, "profiles to collect (quota)")
	f.String("list", "", "quota list id; its row supplies search URL, limit and note settings")
	f.Bool("collect-only", false, "save profiles as new without inviting")
	f.Bool("send-note", false, "attach a note to each invitation")
	f.String("note", "", "note template; {{first_name}} is substituted")
	f.String("rotation", "", "identity rotation: round_robin or pinned")
	f.StringSlice("senders", nil, "restrict the pool to these identity ids")
	rootCmd.AddCommand(discoverCmd)
}
