// Copyright 2019 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package resourcemgr

// Logger is the small structured-logging surface the core depends on. A
// *logrus.Entry satisfies Debugf/Warnf/Errorf directly, but its WithFields
// returns *logrus.Entry rather than Logger, so cmd/tpm2-resourcemgrd adapts
// it with a thin wrapper (see logsink.go) rather than implementing Logger
// on logrus itself. This keeps this package free of a hard dependency on
// any particular logging library while still logging with fields rather
// than formatted strings, the way the pack's daemons do.
type Logger interface {
	Debugf(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	WithFields(fields Fields) Logger
}

// Fields is a structured field set attached to a log line. It has the same
// underlying type as logrus.Fields, so the two convert into each other with
// a plain type conversion (see logsink.go).
type Fields map[string]interface{}

// nopLogger discards everything. Used as the default when a ResourceManager
// is constructed without an explicit Logger, so the core never has to nil
// check its logger.
type nopLogger struct{}

func (nopLogger) Debugf(string, ...interface{}) {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (l nopLogger) WithFields(Fields) Logger    { return l }
