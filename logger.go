package golock

import "go.uber.org/zap"

// Logger is the minimal structured-logging surface golock needs from a
// caller-supplied logger. *zap.SugaredLogger already satisfies it; callers
// on other logging stacks can adapt with a three-line shim.
type Logger interface {
	Debugw(msg string, keysAndValues ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Errorw(msg string, keysAndValues ...interface{})
}

type nopLogger struct{}

func (nopLogger) Debugw(string, ...interface{}) {}
func (nopLogger) Infow(string, ...interface{})  {}
func (nopLogger) Warnw(string, ...interface{})  {}
func (nopLogger) Errorw(string, ...interface{}) {}

// NewNopLogger returns a Logger that discards everything, the default
// when no Logger is supplied to NewLock.
func NewNopLogger() Logger {
	return nopLogger{}
}

// NewDevelopmentLogger wraps zap.NewDevelopment() for local debugging.
func NewDevelopmentLogger() (Logger, error) {
	l, err := zap.NewDevelopment()
	if err != nil {
		return nil, err
	}
	return l.Sugar(), nil
}

// NewProductionLogger wraps zap.NewProduction() with its default encoder
// settings (JSON output, epoch timestamps).
func NewProductionLogger() (Logger, error) {
	l, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return l.Sugar(), nil
}
