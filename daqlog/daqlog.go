// DAQctl
// Copyright (C) 2015-2026+ the ATTPC collaboration and contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package daqlog provides the logging capability passed into every
// component of the control plane. Nothing in this codebase calls a
// package-level logger directly; every constructor takes a Logf, the same
// shape mgmt passes into resources via engine.Init.Logf, so test suites can
// substitute a capturing sink.
package daqlog

import (
	"github.com/sirupsen/logrus"
)

// Logf is the logging capability threaded through constructors.
type Logf func(format string, v ...interface{})

// New builds a Logf backed by a logrus.Logger, namespaced with prefix the
// way engine.Init.Logf namespaces per-resource messages.
func New(logger *logrus.Logger, prefix string) Logf {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return func(format string, v ...interface{}) {
		if prefix != "" {
			logger.Infof(prefix+": "+format, v...)
			return
		}
		logger.Infof(format, v...)
	}
}

// Writer adapts a Logf to io.Writer, for handing to things that want to
// write lines of text (e.g. exec.Cmd.Stderr), mirroring util.LogWriter.
type Writer struct {
	Prefix string
	Logf   Logf
}

// Write implements io.Writer.
func (w *Writer) Write(p []byte) (int, error) {
	w.Logf("%s%s", w.Prefix, string(p))
	return len(p), nil
}

// Discard is a Logf that throws everything away, useful as a test default.
func Discard(format string, v ...interface{}) {}
