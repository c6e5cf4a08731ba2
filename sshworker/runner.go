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

// Package sshworker implements the remote worker interface: process
// liveness checks, staging-directory checks, log tailing, and end-of-run
// file reorganization, all executed over SSH against one remote host.
//
// The connection itself follows remote/remote.go's approach of dialing
// golang.org/x/crypto/ssh directly, but resolves Host/User/Hostname
// aliases from the user's ~/.ssh/config with
// github.com/kevinburke/ssh_config and verifies host keys with
// github.com/skeema/knownhosts — both already reachable from this
// teacher's dependency closure via its own SSH/go-git stack.
package sshworker

import (
	"bytes"
	"context"
	"fmt"

	"golang.org/x/crypto/ssh"
)

// CommandRunner executes one shell command on the remote host and returns
// its stdout. It is the seam tests substitute a canned responder through,
// mirroring how engine/resources/docker_container_test.go fakes the Docker
// API instead of dialing a real daemon.
type CommandRunner interface {
	Run(ctx context.Context, cmd string) (string, error)
}

// sshRunner is the real CommandRunner, backed by one *ssh.Client. Every
// call opens its own session, since an ssh.Session can only run one command
// before it must be closed and recreated.
type sshRunner struct {
	client *ssh.Client
}

func (r *sshRunner) Run(ctx context.Context, cmd string) (string, error) {
	session, err := r.client.NewSession()
	if err != nil {
		return "", fmt.Errorf("open ssh session: %w", err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() {
		done <- session.Run(cmd)
	}()

	select {
	case err := <-done:
		if err != nil {
			return stdout.String(), fmt.Errorf("command %q failed: %w (stderr: %s)", cmd, err, stderr.String())
		}
		return stdout.String(), nil
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		return "", ctx.Err()
	}
}
