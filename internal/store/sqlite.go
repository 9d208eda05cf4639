package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/example/prospector/internal/models"
)

// SQLite is the local single-file driver.
type SQLite struct{ db *sql.DB }

// OpenSQLite opens (creating if needed) the database at path and migrates it.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrapf(err, "store: open %s", path)
	}
	// One writer keeps the read-then-write paths below consistent.
	db.SetMaxOpenConns(1)
	s := &SQLite{db: db}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) Migrate(ctx context.Context) error {
	stmt := `
CREATE TABLE IF NOT EXISTS identities (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	enabled INTEGER NOT NULL DEFAULT 1,
	user_agent TEXT NOT NULL DEFAULT '',
	session_state TEXT,
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS prospects (
	profile_url TEXT PRIMARY KEY,
	full_name TEXT NOT NULL DEFAULT '',
	first_name TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'new',
	assigned_sender TEXT NOT NULL DEFAULT '',
	assigned_at TEXT,
	invited_at TEXT,
	connected_at TEXT,
	message_sent_at TEXT,
	note_sent INTEGER NOT NULL DEFAULT 0,
	note_text TEXT NOT NULL DEFAULT '',
	dm_text TEXT NOT NULL DEFAULT '',
	last_checked TEXT,
	last_error TEXT,
	list_id TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS prospects_status_sender ON prospects(status, assigned_sender);
CREATE TABLE IF NOT EXISTS lists (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	search_url TEXT NOT NULL DEFAULT '',
	profile_limit INTEGER NOT NULL DEFAULT 0,
	profile_count INTEGER NOT NULL DEFAULT 0,
	collect_only INTEGER NOT NULL DEFAULT 0,
	send_note INTEGER NOT NULL DEFAULT 0,
	note_text TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`
	_, err := s.db.ExecContext(ctx, stmt)
	return eris.Wrap(err, "store: migrate")
}

func rankSQL(col string) string {
	return fmt.Sprintf(`(CASE %s WHEN 'new' THEN 1 WHEN 'invited' THEN 2 WHEN 'connected' THEN 3 WHEN 'messaged' THEN 4 ELSE 0 END)`, col)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (s *SQLite) GetEnabledIdentities(ctx context.Context, ids []string) ([]models.IdentityRecord, error) {
	q := `SELECT id, name, enabled, user_agent, COALESCE(session_state, '') FROM identities WHERE enabled = 1`
	var args []any
	if len(ids) > 0 {
		q += ` AND id IN (?` + strings.Repeat(`, ?`, len(ids)-1) + `)`
		for _, id := range ids {
			args = append(args, id)
		}
	}
	q += ` ORDER BY created_at, id`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrap(err, "store: query identities")
	}
	defer rows.Close()
	var out []models.IdentityRecord
	for rows.Next() {
		var r models.IdentityRecord
		var sess string
		if err := rows.Scan(&r.ID, &r.Name, &r.Enabled, &r.UserAgent, &sess); err != nil {
			return nil, eris.Wrap(err, "store: scan identity")
		}
		r.SessionState = []byte(sess)
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "store: iterate identities")
}

// PutIdentity inserts or replaces a sender row.
func (s *SQLite) PutIdentity(ctx context.Context, r models.IdentityRecord) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO identities (id, name, enabled, user_agent, session_state, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		name=excluded.name,
		enabled=excluded.enabled,
		user_agent=excluded.user_agent,
		session_state=excluded.session_state
	`, r.ID, r.Name, r.Enabled, r.UserAgent, nullString(string(r.SessionState)), time.Now().UTC().Format(timeLayout))
	return eris.Wrapf(err, "store: put identity %s", r.ID)
}

func (s *SQLite) ProfileExists(ctx context.Context, profileURL string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM prospects WHERE profile_url = ?`, profileURL).Scan(&n)
	if err != nil {
		return false, eris.Wrap(err, "store: profile exists")
	}
	return n > 0, nil
}

func (s *SQLite) UpsertProspect(ctx context.Context, p models.Prospect) (bool, error) {
	if p.Status == "" {
		p.Status = models.StatusNew
	}
	now := time.Now().UTC().Format(timeLayout)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, eris.Wrap(err, "store: begin upsert")
	}
	defer func() { _ = tx.Rollback() }()

	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM prospects WHERE profile_url = ?`, p.ProfileURL).Scan(&n); err != nil {
		return false, eris.Wrap(err, "store: upsert lookup")
	}

	stmt := `INSERT INTO prospects (profile_url, full_name, first_name, status, assigned_sender, assigned_at,
		invited_at, connected_at, message_sent_at, note_sent, note_text, dm_text, last_checked, last_error, list_id,
		created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(profile_url) DO UPDATE SET
		full_name = CASE WHEN excluded.full_name <> '' THEN excluded.full_name ELSE prospects.full_name END,
		first_name = CASE WHEN excluded.first_name <> '' THEN excluded.first_name ELSE prospects.first_name END,
		status = CASE WHEN ` + rankSQL("excluded.status") + ` > ` + rankSQL("prospects.status") + ` THEN excluded.status ELSE prospects.status END,
		assigned_sender = CASE WHEN excluded.assigned_sender <> '' THEN excluded.assigned_sender ELSE prospects.assigned_sender END,
		assigned_at = COALESCE(excluded.assigned_at, prospects.assigned_at),
		invited_at = COALESCE(excluded.invited_at, prospects.invited_at),
		connected_at = COALESCE(excluded.connected_at, prospects.connected_at),
		message_sent_at = COALESCE(excluded.message_sent_at, prospects.message_sent_at),
		note_sent = MAX(prospects.note_sent, excluded.note_sent),
		note_text = CASE WHEN excluded.note_text <> '' THEN excluded.note_text ELSE prospects.note_text END,
		dm_text = CASE WHEN excluded.dm_text <> '' THEN excluded.dm_text ELSE prospects.dm_text END,
		last_checked = COALESCE(excluded.last_checked, prospects.last_checked),
		last_error = excluded.last_error,
		list_id = CASE WHEN excluded.list_id <> '' THEN excluded.list_id ELSE prospects.list_id END,
		updated_at = excluded.updated_at`
	_, err = tx.ExecContext(ctx, stmt,
		p.ProfileURL, p.FullName, p.FirstName, string(p.Status), p.AssignedSender, formatTime(p.AssignedAt),
		formatTime(p.InvitedAt), formatTime(p.ConnectedAt), formatTime(p.MessageSentAt), p.NoteSent, p.NoteText,
		p.DMText, formatTime(p.LastChecked), nullString(p.LastError), p.ListID, now, now)
	if err != nil {
		return false, eris.Wrapf(err, "store: upsert %s", p.ProfileURL)
	}
	if err := tx.Commit(); err != nil {
		return false, eris.Wrap(err, "store: commit upsert")
	}
	return n == 0, nil
}

const prospectColumns = `profile_url, full_name, first_name, status, assigned_sender, COALESCE(assigned_at, ''),
	COALESCE(invited_at, ''), COALESCE(connected_at, ''), COALESCE(message_sent_at, ''), note_sent, note_text,
	dm_text, COALESCE(last_checked, ''), COALESCE(last_error, ''), list_id`

type scanner interface{ Scan(dest ...any) error }

func scanProspect(sc scanner) (models.Prospect, error) {
	var p models.Prospect
	var status, assignedAt, invitedAt, connectedAt, messageAt, lastChecked string
	err := sc.Scan(&p.ProfileURL, &p.FullName, &p.FirstName, &status, &p.AssignedSender, &assignedAt,
		&invitedAt, &connectedAt, &messageAt, &p.NoteSent, &p.NoteText,
		&p.DMText, &lastChecked, &p.LastError, &p.ListID)
	if err != nil {
		return p, err
	}
	p.Status = models.Status(status)
	p.AssignedAt = parseTime(assignedAt)
	p.InvitedAt = parseTime(invitedAt)
	p.ConnectedAt = parseTime(connectedAt)
	p.MessageSentAt = parseTime(messageAt)
	p.LastChecked = parseTime(lastChecked)
	return p, nil
}

// GetProspect reads one row by its normalized URL.
func (s *SQLite) GetProspect(ctx context.Context, profileURL string) (*models.Prospect, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+prospectColumns+` FROM prospects WHERE profile_url = ?`, profileURL)
	p, err := scanProspect(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "store: get prospect %s", profileURL)
	}
	return &p, nil
}

// FetchProspects returns rows matching f, least recently checked first.
func (s *SQLite) FetchProspects(ctx context.Context, f models.ProspectFilter, limit int) ([]models.Prospect, error) {
	q := `SELECT ` + prospectColumns + ` FROM prospects WHERE 1 = 1`
	var args []any
	if f.Status != "" {
		q += ` AND status = ?`
		args = append(args, string(f.Status))
	}
	if f.AssignedSender != "" {
		q += ` AND assigned_sender = ?`
		args = append(args, f.AssignedSender)
	}
	q += ` ORDER BY COALESCE(last_checked, '') ASC, created_at ASC, profile_url ASC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrap(err, "store: fetch prospects")
	}
	defer rows.Close()
	var out []models.Prospect
	for rows.Next() {
		p, err := scanProspect(rows)
		if err != nil {
			return nil, eris.Wrap(err, "store: scan prospect")
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "store: iterate prospects")
}

func (s *SQLite) PatchProspect(ctx context.Context, profileURL string, p models.ProspectPatch) (bool, error) {
	fields := p.Fields()
	if len(fields) == 0 {
		return false, nil
	}
	cols := make([]string, 0, len(fields))
	for c := range fields {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	sets := make([]string, 0, len(cols)+1)
	args := make([]any, 0, len(cols)+4)
	for _, c := range cols {
		sets = append(sets, c+" = ?")
		v := fields[c]
		if t, ok := v.(time.Time); ok {
			v = formatTime(&t)
		}
		args = append(args, v)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC().Format(timeLayout))

	q := `UPDATE prospects SET ` + strings.Join(sets, ", ") + ` WHERE profile_url = ?`
	args = append(args, profileURL)
	if p.FromStatus != "" {
		q += ` AND status = ?`
		args = append(args, string(p.FromStatus))
	}
	if p.Status != nil {
		q += ` AND ` + rankSQL("status") + ` <= ?`
		args = append(args, p.Status.Rank())
	}
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		return false, eris.Wrapf(err, "store: patch %s", profileURL)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "store: patch rows affected")
	}
	return n > 0, nil
}

func (s *SQLite) GetList(ctx context.Context, id string) (*models.List, error) {
	var l models.List
	err := s.db.QueryRowContext(ctx, `SELECT id, name, search_url, profile_limit, profile_count, collect_only, send_note, note_text
		FROM lists WHERE id = ?`, id).
		Scan(&l.ID, &l.Name, &l.SearchURL, &l.ProfileLimit, &l.ProfileCount, &l.CollectOnly, &l.SendNote, &l.NoteText)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "store: get list %s", id)
	}
	return &l, nil
}

// PutList inserts or replaces a quota list.
func (s *SQLite) PutList(ctx context.Context, l models.List) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO lists (id, name, search_url, profile_limit, profile_count, collect_only, send_note, note_text)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		name=excluded.name,
		search_url=excluded.search_url,
		profile_limit=excluded.profile_limit,
		profile_count=excluded.profile_count,
		collect_only=excluded.collect_only,
		send_note=excluded.send_note,
		note_text=excluded.note_text
	`, l.ID, l.Name, l.SearchURL, l.ProfileLimit, l.ProfileCount, l.CollectOnly, l.SendNote, l.NoteText)
	return eris.Wrapf(err, "store: put list %s", l.ID)
}

func (s *SQLite) GetListCount(ctx context.Context, id string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT profile_count FROM lists WHERE id = ?`, id).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	return n, eris.Wrapf(err, "store: list count %s", id)
}

// IncrementListCount bumps the counter in a single statement.
func (s *SQLite) IncrementListCount(ctx context.Context, id string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `UPDATE lists SET profile_count = profile_count + 1 WHERE id = ? RETURNING profile_count`, id).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	return n, eris.Wrapf(err, "store: increment list %s", id)
}

func (s *SQLite) PatchList(ctx context.Context, id string, p models.ListPatch) error {
	if p.ProfileCount == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `UPDATE lists SET profile_count = ? WHERE id = ?`, *p.ProfileCount, id)
	return eris.Wrapf(err, "store: patch list %s", id)
}

// GetSetting returns def when the key is absent or empty.
func (s *SQLite) GetSetting(ctx context.Context, key, def string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return def, nil
	}
	if err != nil {
		return def, eris.Wrapf(err, "store: setting %s", key)
	}
	if strings.TrimSpace(v) == "" {
		return def, nil
	}
	return v, nil
}

func (s *SQLite) PutSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value`, key, value)
	return eris.Wrapf(err, "store: put setting %s", key)
}

var _ Store = (*SQLite)(nil)
