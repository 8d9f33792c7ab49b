// Copyright 2019 Canonical Ltd.
// Licensed under the LGPLv3 with static-linking exception.
// See LICENCE file for details.

package main

import (
	"github.com/sirupsen/logrus"

	resourcemgr "github.com/tpm2-software/tpm2-resourcemgr"
)

// logrusLogger adapts a *logrus.Entry to resourcemgr.Logger.
type logrusLogger struct {
	entry *logrus.Entry
}

func (l logrusLogger) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }
func (l logrusLogger) Warnf(format string, args ...interface{})  { l.entry.Warnf(format, args...) }
func (l logrusLogger) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }

func (l logrusLogger) WithFields(fields resourcemgr.Fields) resourcemgr.Logger {
	return logrusLogger{entry: l.entry.WithFields(logrus.Fields(fields))}
}

// logSink logs every response that reaches it at debug level. It stands in
// for the real transport's write-back-to-client step, which is outside this
// repo's scope.
type logSink struct {
	logger *logrus.Entry
}

func (s *logSink) Enqueue(resp *resourcemgr.Tpm2Response) {
	s.logger.WithFields(logrus.Fields{
		"rc":         resp.ResponseCode(),
		"has_handle": resp.HasHandle(),
	}).Debug("response ready for delivery")
}
