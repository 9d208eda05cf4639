package main

import (
	"context"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/prospector/internal/identity"
	"github.com/example/prospector/internal/models"
	"github.com/example/prospector/internal/store"
)

var identitiesCmd = &cobra.Command{
	Use:   "identities",
	Short: "List the enabled identity pool",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		senders, _ := cmd.Flags().GetStringSlice("senders")
		pool, err := identity.NewLoader(st, zap.L()).Load(ctx, senders)
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"#", "ID", "Name", "User agent", "Session", "Cookies"})
		for i, id := range pool {
			session, cookies := "missing", 0
			if id.Session != nil {
				session, cookies = "ok", len(id.Session.Cookies)
			}
			ua := id.UserAgent
			if ua == "" {
				ua = "(browser default)"
			}
			t.AppendRow(table.Row{i, id.ID, id.DisplayName(), ua, session, cookies})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
		return nil
	},
}

// seeder is implemented by stores that can be written to from the CLI.
type seeder interface {
	PutIdentity(ctx context.Context, r models.IdentityRecord) error
	PutList(ctx context.Context, l models.List) error
}

func localSeeder(st store.Store) (seeder, error) {
	s, ok := st.(seeder)
	if !ok {
		return nil, eris.Errorf("store driver %q is managed outside this tool", cfg.Store.Driver)
	}
	return s, nil
}

var identitiesAddCmd = &cobra.Command{
	Use:   "add <id>",
	Short: "Add or replace an identity in the local store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		s, err := localSeeder(st)
		if err != nil {
			return err
		}

		name, _ := cmd.Flags().GetString("name")
		ua, _ := cmd.Flags().GetString("user-agent")
		path, _ := cmd.Flags().GetString("session-file")
		disabled, _ := cmd.Flags().GetBool("disabled")

		rec := models.IdentityRecord{ID: args[0], Name: name, Enabled: !disabled, UserAgent: ua}
		if path != "" {
			raw, err := os.ReadFile(path)
			if err != nil {
				return eris.Wrapf(err, "read session file %s", path)
			}
			if _, err := identity.DecodeSession(raw); err != nil {
				return eris.Wrap(err, "session file is not a storage-state export")
			}
			rec.SessionState = raw
		}
		if err := s.PutIdentity(ctx, rec); err != nil {
			return err
		}
		zap.L().Info("identity saved", zap.String("id", rec.ID), zap.Bool("session", len(rec.SessionState) > 0))
		return nil
	},
}

var listsCmd = &cobra.Command{
	Use:   "lists",
	Short: "Manage quota lists",
}

var listsAddCmd = &cobra.Command{
	Use:   "add <id>",
	Short: "Add or replace a quota list in the local store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		s, err := localSeeder(st)
		if err != nil {
			return err
		}

		f := cmd.Flags()
		l := models.List{ID: args[0]}
		l.Name, _ = f.GetString("name")
		l.SearchURL, _ = f.GetString("search-url")
		l.ProfileLimit, _ = f.GetInt("limit")
		l.CollectOnly, _ = f.GetBool("collect-only")
		l.SendNote, _ = f.GetBool("send-note")
		l.NoteText, _ = f.GetString("note")
		if err := s.PutList(ctx, l); err != nil {
			return err
		}
		zap.L().Info("list saved", zap.String("id", l.ID), zap.Int("limit", l.ProfileLimit))
		return nil
	},
}

func init() {
	identitiesCmd.Flags().StringSlice("senders", nil, "restrict the pool to these identity ids")

	af := identitiesAddCmd.Flags()
	af.String("name", "", "display name")
	af.String("user-agent", "", "user agent hint")
	af.String("session-file", "", "storage-state JSON export (cookies and origins)")
	af.Bool("disabled", false, "store the identity disabled")
	identitiesCmd.AddCommand(identitiesAddCmd)

	lf := listsAddCmd.Flags()
	lf.String("name", "", "list name")
	lf.String("search-url", "", "people search results URL")
	lf.Int("limit", 20, "profile quota")
	lf.Bool("collect-only", false, "collect without inviting")
	lf.Bool("send-note", false, "attach a note to invitations")
	lf.String("note", "", "note template")
	listsCmd.AddCommand(listsAddCmd)

	rootCmd.AddCommand(identitiesCmd, listsCmd)
}
