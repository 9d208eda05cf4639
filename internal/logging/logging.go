package logging

import (
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process logger. format is "json" (default) or "console".
func New(level, format string) (*zap.Logger, error) {
	var zc zap.Config
	if strings.EqualFold(format, "console") {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	lvl, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		return nil, eris.Wrapf(err, "logging: parse level %q", level)
	}
	zc.Level.SetLevel(lvl)
	log, err := zc.Build()
	if err != nil {
		return nil, eris.Wrap(err, "logging: build")
	}
	return log.With(zap.String("app", "prospector")), nil
}

// Module scopes a logger to one package, the way every service tags its lines.
func Module(log *zap.Logger, name string) *zap.Logger {
	if log == nil {
		log = zap.NewNop()
	}
	return log.With(zap.String("module", name))
}
