package logging

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/SirClappington/enq/internal/config"
)

// New builds a console logger for development and a JSON logger otherwise.
func New(cfg config.Config) (*zap.Logger, error) {
	var (
		log *zap.Logger
		err error
	)
	if cfg.Development() {
		log, err = zap.NewDevelopment()
	} else {
		log, err = zap.NewProduction()
	}
	if err != nil {
		return nil, errors.Wrap(err, "build logger")
	}
	return log.With(zap.String("env", cfg.AppEnv)), nil
}
