package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/example/prospector/internal/auth"
	"github.com/example/prospector/internal/browser"
	"github.com/example/prospector/internal/config"
	"github.com/example/prospector/internal/identity"
	"github.com/example/prospector/internal/models"
	"github.com/example/prospector/internal/pacing"
	"github.com/example/prospector/internal/store"
)

// runEnv is everything a flow command needs, opened in dependency order.
type runEnv struct {
	rc       config.RunConfig
	st       store.Store
	pool     []models.Identity
	browser  *browser.RodBrowser
	sessions *auth.Sessions
	pacer    *pacing.Pacer
	log      *zap.Logger
}

func openStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store, zap.L())
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	return st, nil
}

func setupRun(ctx context.Context, kind config.RunKind, o config.Overrides) (*runEnv, error) {
	log := zap.L()
	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}
	env := &runEnv{st: st, log: log}

	env.rc, err = config.Resolve(ctx, cfg, kind, st, o)
	if err != nil {
		env.close()
		return nil, err
	}
	env.pool, err = identity.NewLoader(st, log).Load(ctx, env.rc.SenderIDs)
	if err != nil {
		env.close()
		return nil, err
	}

	env.browser, err = browser.Launch(ctx, browser.LaunchOptions{Headless: env.rc.Headless, Bin: cfg.Browser.Bin}, log)
	if err != nil {
		env.close()
		return nil, err
	}
	env.pacer = pacing.New(env.rc.PacingScale)
	guard := auth.NewGuard(env.rc.HomeURL, env.rc.LoginMarkers, env.rc.NavTimeout, env.pacer, log)
	env.sessions = auth.NewSessions(env.browser, guard, browser.ContextOptions{
		Locale:         env.rc.Locale,
		Timezone:       env.rc.Timezone,
		ViewportWidth:  env.rc.ViewportWidth,
		ViewportHeight: env.rc.ViewportHeight,
		Referer:        env.rc.HomeURL,
		PageTimeout:    env.rc.NavTimeout,
	}, log)

	if w := cfg.Pacing.Window(); !w.Contains(time.Now()) {
		log.Warn("outside the configured active window, continuing anyway",
			zap.String("active", w.Start+"-"+w.End),
			zap.String("now", time.Now().Format("15:04")))
	}

	log.Info("run configured",
		zap.String("kind", string(kind)),
		zap.Int("identities", len(env.pool)),
		zap.String("locale", env.rc.Locale),
		zap.String("timezone", env.rc.Timezone),
		zap.Bool("headless", env.rc.Headless))
	return env, nil
}

func (e *runEnv) close() {
	if e.browser != nil {
		if err := e.browser.Close(); err != nil {
			e.log.Warn("browser close failed", zap.Error(err))
		}
	}
	if e.st != nil {
		_ = e.st.Close()
	}
}

func elapsed(start time.Time) string {
	return time.Since(start).Round(time.Second).String()
}
