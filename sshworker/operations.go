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

package sshworker

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/attpc/daqctl/daqerr"
)

// CheckEccServerStatus reports whether a process whose command line
// matches getEccSoapServer is running, by parsing a "ps" listing — the
// same detection strategy remote/remote.go uses to check whether a prior
// mgmt deploy left its own binary running.
func (w *Worker) CheckEccServerStatus(ctx context.Context) (bool, error) {
	return w.processMatches(ctx, "getEccSoapServer")
}

// CheckDataRouterStatus reports whether a process matching dataRouter is
// running.
func (w *Worker) CheckDataRouterStatus(ctx context.Context) (bool, error) {
	return w.processMatches(ctx, "dataRouter")
}

func (w *Worker) processMatches(ctx context.Context, needle string) (bool, error) {
	out, err := w.runner.Run(ctx, "ps -eo args")
	if err != nil {
		return false, daqerr.Wrap(daqerr.KindTransport, err, "ps listing")
	}
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, needle) {
			return true, nil
		}
	}
	return false, nil
}

// FindDataRouter returns the current working directory of the running
// dataRouter process, parsed from "lsof -a -d cwd -c dataRouter -Fcn".
//
// lsof's -F output interleaves one record per open file descriptor as a
// run of lines: a leading "p<pid>" line, a "c<command>" line, and an
// "n<name>" line. Any "p" line is skipped; the "c" line must read exactly
// "cdataRouter" or the match is rejected as the wrong process; the "n"
// line that follows is the cwd payload this function returns.
func (w *Worker) FindDataRouter(ctx context.Context) (string, error) {
	out, err := w.runner.Run(ctx, "lsof -a -d cwd -c dataRouter -Fcn")
	if err != nil {
		return "", daqerr.Wrap(daqerr.KindNotRunning, err, "no dataRouter process found")
	}

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	var sawCommand bool
	for _, line := range lines {
		if line == "" {
			continue
		}
		switch line[0] {
		case 'p':
			continue
		case 'c':
			if line != "cdataRouter" {
				return "", daqerr.New(daqerr.KindWrongProcess, "lsof matched command %q, want dataRouter", line[1:])
			}
			sawCommand = true
		case 'n':
			if !sawCommand {
				return "", daqerr.New(daqerr.KindWrongProcess, "lsof cwd entry without a preceding command line")
			}
			return line[1:], nil
		}
	}
	return "", daqerr.New(daqerr.KindNotRunning, "no dataRouter process found")
}

// GetGrawList lists every *.graw file in the data router's working
// directory, as absolute paths.
func (w *Worker) GetGrawList(ctx context.Context) ([]string, error) {
	cwd, err := w.FindDataRouter(ctx)
	if err != nil {
		return nil, err
	}
	out, err := w.runner.Run(ctx, fmt.Sprintf("ls -1 %s 2>/dev/null | grep '\\.graw$' || true", shellQuote(cwd)))
	if err != nil {
		return nil, daqerr.Wrap(daqerr.KindTransport, err, "listing graw files in %s", cwd)
	}
	var files []string
	for _, name := range strings.Split(strings.TrimRight(out, "\n"), "\n") {
		if name == "" {
			continue
		}
		files = append(files, path.Join(cwd, name))
	}
	return files, nil
}

// WorkingDirIsClean reports whether the data router's working directory
// holds no leftover .graw files — the precondition for starting a new run.
func (w *Worker) WorkingDirIsClean(ctx context.Context) (bool, error) {
	files, err := w.GetGrawList(ctx)
	if err != nil {
		return false, err
	}
	return len(files) == 0, nil
}

// BuildRunDirPath computes the run directory a completed run's files are
// organized into: <dataRouterCwd>/<experimentName>/run_%04d.
func (w *Worker) BuildRunDirPath(ctx context.Context, experimentName string, runNumber int) (string, error) {
	cwd, err := w.FindDataRouter(ctx)
	if err != nil {
		return "", err
	}
	return path.Join(cwd, experimentName, fmt.Sprintf("run_%04d", runNumber)), nil
}

// OrganizeFiles moves every current .graw file in the data router's working
// directory into <cwd>/<experimentName>/run_%04d. It issues exactly one
// mkdir -p per call and one mv when there are files to move (none when
// there are not), and is idempotent: calling it again for the same run
// number after the files have already moved simply finds nothing left to
// move.
func (w *Worker) OrganizeFiles(ctx context.Context, experimentName string, runNumber int) error {
	grawFiles, err := w.GetGrawList(ctx)
	if err != nil {
		return err
	}
	runDir, err := w.BuildRunDirPath(ctx, experimentName, runNumber)
	if err != nil {
		return err
	}

	if _, err := w.runner.Run(ctx, fmt.Sprintf("mkdir -p %s", shellQuote(runDir))); err != nil {
		return daqerr.Wrap(daqerr.KindTransport, err, "mkdir -p %s", runDir)
	}

	if len(grawFiles) == 0 {
		return nil
	}

	quoted := make([]string, 0, len(grawFiles)+1)
	for _, f := range grawFiles {
		quoted = append(quoted, shellQuote(f))
	}
	quoted = append(quoted, shellQuote(runDir))
	cmd := "mv " + strings.Join(quoted, " ")
	if _, err := w.runner.Run(ctx, cmd); err != nil {
		return daqerr.Wrap(daqerr.KindTransport, err, "mv into %s", runDir)
	}
	return nil
}

// TailFile returns the last n lines of path on the remote host, used to
// surface recent ECC/router log output to an operator.
func (w *Worker) TailFile(ctx context.Context, remotePath string, n int) (string, error) {
	if n <= 0 {
		n = 50
	}
	cmd := fmt.Sprintf("tail -n %s %s", strconv.Itoa(n), shellQuote(remotePath))
	out, err := w.runner.Run(ctx, cmd)
	if err != nil {
		return "", daqerr.Wrap(daqerr.KindTransport, err, "tail %s", remotePath)
	}
	return out, nil
}

// BackupConfigFiles copies each of paths into
// <destRoot>/<experimentName>/run_%04d on the remote host, creating that
// directory first and preserving basenames, ahead of an experiment's config
// being overwritten.
func (w *Worker) BackupConfigFiles(ctx context.Context, experimentName string, runNumber int, paths []string, destRoot string) error {
	if len(paths) == 0 {
		return nil
	}
	dest := path.Join(destRoot, experimentName, fmt.Sprintf("run_%04d", runNumber))
	if _, err := w.runner.Run(ctx, fmt.Sprintf("mkdir -p %s", shellQuote(dest))); err != nil {
		return daqerr.Wrap(daqerr.KindTransport, err, "mkdir -p %s", dest)
	}
	for _, p := range paths {
		cmd := fmt.Sprintf("cp %s %s", shellQuote(p), shellQuote(dest))
		if _, err := w.runner.Run(ctx, cmd); err != nil {
			return daqerr.Wrap(daqerr.KindTransport, err, "cp %s to %s", p, dest)
		}
	}
	return nil
}

// shellQuote wraps s in single quotes for safe inclusion in a remote shell
// command, escaping any single quote it contains per the standard
// close-quote/escaped-quote/reopen-quote trick.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
