package store

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/example/prospector/internal/config"
	"github.com/example/prospector/internal/lifecycle"
	"github.com/example/prospector/internal/logging"
	"github.com/example/prospector/internal/models"
)

// PostgREST talks to a hosted Postgres through its REST gateway. Requests are
// throttled by a token bucket shared by every flow in the process.
//
// The list counter is read-modify-write here; two concurrent processes can
// lose an increment. Quota checks re-read the counter so the error is bounded
// by the number of concurrent writers.
type PostgREST struct {
	http    *resty.Client
	limiter *rate.Limiter
	tables  config.PostgRESTConfig
	log     *zap.Logger
}

func NewPostgREST(cfg config.PostgRESTConfig, log *zap.Logger) *PostgREST {
	c := resty.New().
		SetBaseURL(strings.TrimRight(cfg.URL, "/")+"/rest/v1").
		SetHeader("apikey", cfg.Key).
		SetAuthToken(cfg.Key).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.TimeoutSecs > 0 {
		c.SetTimeout(time.Duration(cfg.TimeoutSecs) * time.Second)
	}
	var lim *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		lim = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), max(int(cfg.RequestsPerSecond), 1))
	}
	return &PostgREST{http: c, limiter: lim, tables: cfg, log: logging.Module(log, "store")}
}

func (s *PostgREST) Close() error { return nil }

func (s *PostgREST) request(ctx context.Context) (*resty.Request, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "store: rate limit")
		}
	}
	return s.http.R().SetContext(ctx), nil
}

func check(resp *resty.Response, err error, what string) error {
	if err != nil {
		return eris.Wrap(err, "store: "+what)
	}
	if resp.IsError() {
		return eris.Errorf("store: %s: %d %s", what, resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	return nil
}

func do(req *resty.Request, method, path, what string) error {
	resp, err := req.Execute(method, path)
	return check(resp, err, what)
}

func inList(vals []string) string {
	return "in.(" + strings.Join(vals, ",") + ")"
}

type senderRow struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Enabled      bool            `json:"enabled"`
	UserAgent    string          `json:"user_agent"`
	StorageState json.RawMessage `json:"storage_state"`
}

func (s *PostgREST) GetEnabledIdentities(ctx context.Context, ids []string) ([]models.IdentityRecord, error) {
	req, err := s.request(ctx)
	if err != nil {
		return nil, err
	}
	var rows []senderRow
	req.SetResult(&rows).
		SetQueryParam("select", "id,name,enabled,user_agent,storage_state").
		SetQueryParam("enabled", "eq.true")
	if len(ids) > 0 {
		req.SetQueryParam("id", inList(ids))
	}
	if err := do(req, http.MethodGet, "/"+s.tables.SendersTable, "load senders"); err != nil {
		return nil, err
	}
	out := make([]models.IdentityRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.IdentityRecord{
			ID:           r.ID,
			Name:         r.Name,
			Enabled:      r.Enabled,
			UserAgent:    r.UserAgent,
			SessionState: []byte(r.StorageState),
		})
	}
	return out, nil
}

type statusRow struct {
	Status models.Status `json:"status"`
}

func (s *PostgREST) currentStatus(ctx context.Context, profileURL string) (models.Status, bool, error) {
	req, err := s.request(ctx)
	if err != nil {
		return "", false, err
	}
	var rows []statusRow
	req.SetResult(&rows).
		SetQueryParam("profile_url", "eq."+profileURL).
		SetQueryParam("select", "status").
		SetQueryParam("limit", "1")
	if err := do(req, http.MethodGet, "/"+s.tables.ProspectsTable, "lookup prospect"); err != nil {
		return "", false, err
	}
	if len(rows) == 0 {
		return "", false, nil
	}
	return rows[0].Status, true, nil
}

func (s *PostgREST) ProfileExists(ctx context.Context, profileURL string) (bool, error) {
	_, ok, err := s.currentStatus(ctx, profileURL)
	return ok, err
}

// prospectPayload drops empty columns so a merge never blanks stored values.
func prospectPayload(p models.Prospect, keepStatus bool) map[string]any {
	m := map[string]any{"profile_url": p.ProfileURL}
	set := func(k, v string) {
		if v != "" {
			m[k] = v
		}
	}
	setTime := func(k string, t *time.Time) {
		if t != nil {
			m[k] = t.UTC()
		}
	}
	set("full_name", p.FullName)
	set("first_name", p.FirstName)
	if keepStatus {
		m["status"] = string(p.Status)
	}
	set("assigned_sender", p.AssignedSender)
	setTime("assigned_at", p.AssignedAt)
	setTime("invited_at", p.InvitedAt)
	setTime("connected_at", p.ConnectedAt)
	setTime("message_sent_at", p.MessageSentAt)
	setTime("last_checked", p.LastChecked)
	if p.NoteSent {
		m["note_sent"] = true
	}
	set("note_text", p.NoteText)
	set("dm_text", p.DMText)
	set("list_id", p.ListID)
	if p.LastError != "" {
		m["last_error"] = p.LastError
	} else {
		m["last_error"] = nil
	}
	return m
}

func (s *PostgREST) UpsertProspect(ctx context.Context, p models.Prospect) (bool, error) {
	if p.Status == "" {
		p.Status = models.StatusNew
	}
	cur, exists, err := s.currentStatus(ctx, p.ProfileURL)
	if err != nil {
		return false, err
	}
	keepStatus := !exists || (p.Status != cur && lifecycle.Forward(cur, p.Status))

	req, err := s.request(ctx)
	if err != nil {
		return false, err
	}
	req.SetHeader("Prefer", "resolution=merge-duplicates,return=minimal").
		SetQueryParam("on_conflict", "profile_url").
		SetBody(prospectPayload(p, keepStatus))
	if err := do(req, http.MethodPost, "/"+s.tables.ProspectsTable, "upsert "+p.ProfileURL); err != nil {
		return false, err
	}
	return !exists, nil
}

func (s *PostgREST) FetchProspects(ctx context.Context, f models.ProspectFilter, limit int) ([]models.Prospect, error) {
	req, err := s.request(ctx)
	if err != nil {
		return nil, err
	}
	var rows []models.Prospect
	req.SetResult(&rows).
		SetQueryParam("select", "*").
		SetQueryParam("order", "last_checked.asc.nullsfirst,profile_url.asc").
		SetQueryParam("limit", strconv.Itoa(limit))
	if f.Status != "" {
		req.SetQueryParam("status", "eq."+string(f.Status))
	}
	if f.AssignedSender != "" {
		req.SetQueryParam("assigned_sender", "eq."+f.AssignedSender)
	}
	if err := do(req, http.MethodGet, "/"+s.tables.ProspectsTable, "fetch prospects"); err != nil {
		return nil, err
	}
	return rows, nil
}

// notAbove lists the statuses a row may hold for a move to target to be forward.
func notAbove(target models.Status) []string {
	var out []string
	for _, st := range []models.Status{models.StatusNew, models.StatusInvited, models.StatusConnected, models.StatusMessaged} {
		if lifecycle.Forward(st, target) {
			out = append(out, string(st))
		}
	}
	return out
}

func (s *PostgREST) PatchProspect(ctx context.Context, profileURL string, p models.ProspectPatch) (bool, error) {
	fields := p.Fields()
	if len(fields) == 0 {
		return false, nil
	}
	req, err := s.request(ctx)
	if err != nil {
		return false, err
	}
	var rows []statusRow
	req.SetResult(&rows).
		SetHeader("Prefer", "return=representation").
		SetQueryParam("profile_url", "eq."+profileURL).
		SetQueryParam("select", "status").
		SetBody(fields)
	switch {
	case p.FromStatus != "":
		req.SetQueryParam("status", "eq."+string(p.FromStatus))
	case p.Status != nil:
		req.SetQueryParam("status", inList(notAbove(*p.Status)))
	}
	if err := do(req, http.MethodPatch, "/"+s.tables.ProspectsTable, "patch "+profileURL); err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

func (s *PostgREST) GetList(ctx context.Context, id string) (*models.List, error) {
	req, err := s.request(ctx)
	if err != nil {
		return nil, err
	}
	var rows []models.List
	req.SetResult(&rows).
		SetQueryParam("id", "eq."+id).
		SetQueryParam("select", "*").
		SetQueryParam("limit", "1")
	if err := do(req, http.MethodGet, "/"+s.tables.ListsTable, "get list "+id); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

func (s *PostgREST) GetListCount(ctx context.Context, id string) (int, error) {
	l, err := s.GetList(ctx, id)
	if err != nil {
		return 0, err
	}
	return l.ProfileCount, nil
}

func (s *PostgREST) IncrementListCount(ctx context.Context, id string) (int, error) {
	n, err := s.GetListCount(ctx, id)
	if err != nil {
		return 0, err
	}
	n++
	if err := s.PatchList(ctx, id, models.ListPatch{ProfileCount: &n}); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *PostgREST) PatchList(ctx context.Context, id string, p models.ListPatch) error {
	fields := p.Fields()
	if len(fields) == 0 {
		return nil
	}
	req, err := s.request(ctx)
	if err != nil {
		return err
	}
	req.SetQueryParam("id", "eq."+id).SetBody(fields)
	return do(req, http.MethodPatch, "/"+s.tables.ListsTable, "patch list "+id)
}

type settingRow struct {
	Value string `json:"value"`
}

// GetSetting returns def on a missing key. Transport failures are returned
// alongside def so callers can log and carry on.
func (s *PostgREST) GetSetting(ctx context.Context, key, def string) (string, error) {
	req, err := s.request(ctx)
	if err != nil {
		return def, err
	}
	var rows []settingRow
	req.SetResult(&rows).
		SetQueryParam("key", "eq."+key).
		SetQueryParam("select", "value")
	resp, err := req.Get("/" + s.tables.SettingsTable)
	if err := check(resp, err, "setting "+key); err != nil {
		return def, err
	}
	if resp.StatusCode() == http.StatusNoContent || len(rows) == 0 || strings.TrimSpace(rows[0].Value) == "" {
		return def, nil
	}
	return rows[0].Value, nil
}

var _ Store = (*PostgREST)(nil)
