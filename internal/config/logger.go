package config

import "go.uber.org/zap"

// NewLogger builds the process logger: development output for "debug",
// production JSON otherwise.
func NewLogger(level, service string) (*zap.Logger, error) {
	var (
		log *zap.Logger
		err error
	)
	if level == "debug" {
		log, err = zap.NewDevelopment()
	} else {
		log, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	return log.With(zap.String("service", service)), nil
}
