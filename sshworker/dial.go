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
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/kevinburke/ssh_config"
	"github.com/skeema/knownhosts"
	"golang.org/x/crypto/ssh"
)

// Config controls how Worker resolves and authenticates an SSH connection.
// Alias is looked up against the user's ~/.ssh/config the way "ssh alias"
// would resolve it, honoring Host/User/Hostname aliasing.
type Config struct {
	Alias          string // the Host alias, or a bare hostname/IP
	DefaultUser    string
	IdentityFile   string // overrides the config file's IdentityFile, if set
	KnownHostsFile string // defaults to ~/.ssh/known_hosts
	ConnectTimeout time.Duration
}

// resolved is the fully resolved connection target after consulting
// ~/.ssh/config.
type resolved struct {
	hostname     string
	port         string
	user         string
	identityFile string
}

func resolveConfig(cfg Config) (resolved, error) {
	hostname := ssh_config.Get(cfg.Alias, "HostName")
	if hostname == "" {
		hostname = cfg.Alias
	}

	user := ssh_config.Get(cfg.Alias, "User")
	if user == "" {
		user = cfg.DefaultUser
	}
	if user == "" {
		if u := os.Getenv("USER"); u != "" {
			user = u
		}
	}

	port := ssh_config.Get(cfg.Alias, "Port")
	if port == "" {
		port = "22"
	}

	identity := cfg.IdentityFile
	if identity == "" {
		identity = ssh_config.Get(cfg.Alias, "IdentityFile")
	}

	return resolved{hostname: hostname, port: port, user: user, identityFile: identity}, nil
}

// Worker is a scoped handle on one SSH-connected remote host. Opening it
// connects; Close tears the session down on every exit path, mirroring the
// connect/defer-close discipline of remote/remote.go.
type Worker struct {
	runner CommandRunner
	client *ssh.Client
}

// Dial opens a new Worker against cfg.Alias, resolving Host/User/Hostname
// aliases from ~/.ssh/config.
func Dial(ctx context.Context, cfg Config) (*Worker, error) {
	target, err := resolveConfig(cfg)
	if err != nil {
		return nil, err
	}

	auth, err := authMethods(target.identityFile)
	if err != nil {
		return nil, fmt.Errorf("ssh auth setup for %s: %w", cfg.Alias, err)
	}

	hkCallback, err := hostKeyCallback(cfg.KnownHostsFile)
	if err != nil {
		return nil, fmt.Errorf("known_hosts setup: %w", err)
	}

	timeout := cfg.ConnectTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	clientCfg := &ssh.ClientConfig{
		User:            target.user,
		Auth:            auth,
		HostKeyCallback: hkCallback,
		Timeout:         timeout,
	}

	addr := net.JoinHostPort(target.hostname, target.port)
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, clientCfg)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake with %s: %w", addr, err)
	}
	client := ssh.NewClient(sshConn, chans, reqs)

	return &Worker{runner: &sshRunner{client: client}, client: client}, nil
}

// WrapRunner builds a Worker around an already-established CommandRunner,
// used by tests to substitute a fake responder without dialing anything.
func WrapRunner(runner CommandRunner) *Worker {
	return &Worker{runner: runner}
}

// Close tears down the SSH session. Safe to call on a test-only Worker that
// never dialed a real client.
func (w *Worker) Close() error {
	if w.client == nil {
		return nil
	}
	return w.client.Close()
}

func authMethods(identityFile string) ([]ssh.AuthMethod, error) {
	if identityFile == "" {
		return nil, fmt.Errorf("no identity file configured")
	}
	key, err := os.ReadFile(expandHome(identityFile))
	if err != nil {
		return nil, fmt.Errorf("read identity file %s: %w", identityFile, err)
	}
	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("parse identity file %s: %w", identityFile, err)
	}
	return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
}

func hostKeyCallback(path string) (ssh.HostKeyCallback, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(home, ".ssh", "known_hosts")
	}
	kh, err := knownhosts.NewDB(path)
	if err != nil {
		return nil, err
	}
	return kh.HostKeyCallback(), nil
}

func expandHome(path string) string {
	if len(path) >= 2 && path[:2] == "~/" {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
