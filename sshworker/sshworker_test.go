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
	"strings"
	"testing"

	"github.com/attpc/daqctl/daqerr"
)

// fakeRunner is a canned-reply CommandRunner, mirroring the fakeClient used
// in eccstate's tests: no real SSH session is ever opened.
type fakeRunner struct {
	responses map[string]string
	errs      map[string]error
	commands  []string
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{responses: map[string]string{}, errs: map[string]error{}}
}

func (f *fakeRunner) Run(ctx context.Context, cmd string) (string, error) {
	f.commands = append(f.commands, cmd)
	for prefix, err := range f.errs {
		if strings.HasPrefix(cmd, prefix) {
			return "", err
		}
	}
	for prefix, out := range f.responses {
		if strings.HasPrefix(cmd, prefix) {
			return out, nil
		}
	}
	return "", nil
}

func TestCheckEccServerStatus(t *testing.T) {
	r := newFakeRunner()
	r.responses["ps -eo args"] = "bash\npython getEccSoapServer --port 8081\nsshd\n"
	w := WrapRunner(r)

	up, err := w.CheckEccServerStatus(context.Background())
	if err != nil {
		t.Fatalf("CheckEccServerStatus: %+v", err)
	}
	if !up {
		t.Errorf("expected true when getEccSoapServer appears in ps listing")
	}
}

func TestCheckEccServerStatusFalseWhenAbsent(t *testing.T) {
	r := newFakeRunner()
	r.responses["ps -eo args"] = "bash\nsshd\n"
	w := WrapRunner(r)

	up, err := w.CheckEccServerStatus(context.Background())
	if err != nil {
		t.Fatalf("CheckEccServerStatus: %+v", err)
	}
	if up {
		t.Errorf("expected false when getEccSoapServer is absent")
	}
}

func lsofOutput(cwd string) string {
	return fmt.Sprintf("p1234\ncdataRouter\nn%s\n", cwd)
}

func TestFindDataRouter(t *testing.T) {
	r := newFakeRunner()
	r.responses["lsof"] = lsofOutput("/data/run1")
	w := WrapRunner(r)

	cwd, err := w.FindDataRouter(context.Background())
	if err != nil {
		t.Fatalf("FindDataRouter: %+v", err)
	}
	if cwd != "/data/run1" {
		t.Errorf("cwd = %q, want /data/run1", cwd)
	}
}

func TestFindDataRouterWrongProcess(t *testing.T) {
	r := newFakeRunner()
	r.responses["lsof"] = "p1234\ncsomethingElse\nn/data/run1\n"
	w := WrapRunner(r)

	_, err := w.FindDataRouter(context.Background())
	if !daqerr.Is(err, daqerr.KindWrongProcess) {
		t.Fatalf("expected KindWrongProcess, got %+v", err)
	}
}

func TestFindDataRouterNotRunning(t *testing.T) {
	r := newFakeRunner()
	r.errs["lsof"] = fmt.Errorf("exit status 1")
	w := WrapRunner(r)

	_, err := w.FindDataRouter(context.Background())
	if !daqerr.Is(err, daqerr.KindNotRunning) {
		t.Fatalf("expected KindNotRunning, got %+v", err)
	}
}

func TestGetGrawListAndWorkingDirIsClean(t *testing.T) {
	r := newFakeRunner()
	r.responses["lsof"] = lsofOutput("/data/run1")
	r.responses["ls -1"] = "foo.graw\nbar.graw\n"
	w := WrapRunner(r)

	files, err := w.GetGrawList(context.Background())
	if err != nil {
		t.Fatalf("GetGrawList: %+v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 graw files, got %v", files)
	}
	if files[0] != "/data/run1/foo.graw" {
		t.Errorf("files[0] = %q, want /data/run1/foo.graw", files[0])
	}

	clean, err := w.WorkingDirIsClean(context.Background())
	if err != nil {
		t.Fatalf("WorkingDirIsClean: %+v", err)
	}
	if clean {
		t.Errorf("expected dirty when graw files are present")
	}
}

func TestWorkingDirIsCleanWhenEmpty(t *testing.T) {
	r := newFakeRunner()
	r.responses["lsof"] = lsofOutput("/data/run1")
	r.responses["ls -1"] = ""
	w := WrapRunner(r)

	clean, err := w.WorkingDirIsClean(context.Background())
	if err != nil {
		t.Fatalf("WorkingDirIsClean: %+v", err)
	}
	if !clean {
		t.Errorf("expected clean when no graw files are present")
	}
}

func TestOrganizeFilesIssuesExactlyOneMkdirAndOneMv(t *testing.T) {
	r := newFakeRunner()
	r.responses["lsof"] = lsofOutput("/data/run1")
	r.responses["ls -1"] = "foo.graw\nbar.graw\n"
	w := WrapRunner(r)

	if err := w.OrganizeFiles(context.Background(), "e12", 7); err != nil {
		t.Fatalf("OrganizeFiles: %+v", err)
	}

	var mkdirs, mvs int
	for _, cmd := range r.commands {
		if strings.HasPrefix(cmd, "mkdir -p") {
			mkdirs++
			if !strings.Contains(cmd, "e12/run_0007") {
				t.Errorf("mkdir command %q missing expected run dir", cmd)
			}
		}
		if strings.HasPrefix(cmd, "mv ") {
			mvs++
			if !strings.Contains(cmd, "foo.graw") || !strings.Contains(cmd, "bar.graw") {
				t.Errorf("mv command %q missing expected files", cmd)
			}
		}
	}
	if mkdirs != 1 {
		t.Errorf("mkdir count = %d, want 1", mkdirs)
	}
	if mvs != 1 {
		t.Errorf("mv count = %d, want 1", mvs)
	}
}

func TestOrganizeFilesIdempotentWhenNothingToMove(t *testing.T) {
	r := newFakeRunner()
	r.responses["lsof"] = lsofOutput("/data/run1")
	r.responses["ls -1"] = ""
	w := WrapRunner(r)

	if err := w.OrganizeFiles(context.Background(), "e12", 7); err != nil {
		t.Fatalf("OrganizeFiles: %+v", err)
	}

	for _, cmd := range r.commands {
		if strings.HasPrefix(cmd, "mv ") {
			t.Errorf("unexpected mv command when no graw files exist: %q", cmd)
		}
	}
}

func TestShellQuoteEscapesSingleQuotes(t *testing.T) {
	got := shellQuote("it's a run")
	want := `'it'\''s a run'`
	if got != want {
		t.Errorf("shellQuote = %q, want %q", got, want)
	}
}

func TestTailFile(t *testing.T) {
	r := newFakeRunner()
	r.responses["tail -n"] = "line1\nline2\n"
	w := WrapRunner(r)

	out, err := w.TailFile(context.Background(), "/var/log/ecc.log", 2)
	if err != nil {
		t.Fatalf("TailFile: %+v", err)
	}
	if out != "line1\nline2\n" {
		t.Errorf("TailFile output = %q", out)
	}
	if len(r.commands) != 1 || !strings.Contains(r.commands[0], "/var/log/ecc.log") {
		t.Errorf("expected tail command to reference the path, got %v", r.commands)
	}
}

func TestBackupConfigFiles(t *testing.T) {
	r := newFakeRunner()
	w := WrapRunner(r)

	err := w.BackupConfigFiles(context.Background(), "e12", 3, []string{"/cfg/a.xcfg", "/cfg/b.xcfg"}, "/backups")
	if err != nil {
		t.Fatalf("BackupConfigFiles: %+v", err)
	}

	var mkdirs, cps int
	for _, cmd := range r.commands {
		if strings.HasPrefix(cmd, "mkdir -p") {
			mkdirs++
		}
		if strings.HasPrefix(cmd, "cp ") {
			cps++
		}
	}
	if mkdirs != 1 {
		t.Errorf("mkdir count = %d, want 1", mkdirs)
	}
	if cps != 2 {
		t.Errorf("cp count = %d, want 2 (one per file)", cps)
	}
}
