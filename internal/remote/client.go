// SPDX-License-Identifier: MPL-2.0

// Package remote provides the SSH transport hassctl uses to read and write
// files on the Home Assistant host. File transfer runs over SFTP on the
// same connection; privileged moves go through sudo on the remote side.
package remote

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"hassctl/internal/issue"

	"github.com/charmbracelet/log"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// defaultDialTimeout bounds the TCP connect to the SSH port.
const defaultDialTimeout = 15 * time.Second

type (
	// Config describes how to reach the Home Assistant host over SSH.
	Config struct {
		// Addr is the host:port dial address.
		Addr string
		// User is the SSH login user.
		User string
		// KeyFile is the private key path used for public-key auth.
		KeyFile string
		// KnownHostsFile overrides the default ~/.ssh/known_hosts path.
		KnownHostsFile string
	}

	// Client is an established SSH connection to the Home Assistant host.
	Client struct {
		ssh    *ssh.Client
		logger *log.Logger
	}

	// RunResult holds the outcome of a remote command.
	RunResult struct {
		Stdout   string
		Stderr   string
		ExitCode int
	}
)

// Dial connects and authenticates. Host keys are checked against
// known_hosts when the file exists; otherwise the host key is accepted and
// a warning logged, matching how this tooling is used against a single
// well-known box on the local network.
func Dial(cfg Config, logger *log.Logger) (*Client, error) {
	if logger == nil {
		logger = log.Default()
	}

	signer, err := loadKey(cfg.KeyFile)
	if err != nil {
		return nil, err
	}

	hostKeyCallback, err := hostKeyCheck(cfg.KnownHostsFile, logger)
	if err != nil {
		return nil, err
	}

	clientCfg := &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: hostKeyCallback,
		Timeout:         defaultDialTimeout,
	}

	conn, err := ssh.Dial("tcp", cfg.Addr, clientCfg)
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("connect over SSH").
			WithResource(cfg.User + "@" + cfg.Addr).
			WithSuggestion("Check HASS_SSH_HOST and HASS_SSH_USER").
			WithSuggestion("Verify your key is authorized on the Home Assistant host").
			Wrap(err).
			BuildError()
	}

	logger.Debug("ssh connected", "addr", cfg.Addr, "user", cfg.User)
	return &Client{ssh: conn, logger: logger}, nil
}

// Close terminates the connection.
func (c *Client) Close() error {
	return c.ssh.Close()
}

// Run executes a command on the remote host and returns its output.
// A non-zero exit status is not an error; callers check ExitCode.
// Transport failures are errors.
func (c *Client) Run(cmd string) (*RunResult, error) {
	session, err := c.ssh.NewSession()
	if err != nil {
		return nil, fmt.Errorf("opening session: %w", err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	c.logger.Debug("ssh run", "cmd", cmd)
	result := &RunResult{}
	if err := session.Run(cmd); err != nil {
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitStatus()
		} else {
			return nil, fmt.Errorf("running %q: %w", cmd, err)
		}
	}

	result.Stdout = stdout.String()
	result.Stderr = stderr.String()
	return result, nil
}

// RunChecked executes a command and fails when it exits non-zero.
func (c *Client) RunChecked(cmd string) error {
	result, err := c.Run(cmd)
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("%q exited %d: %s", cmd, result.ExitCode, strings.TrimSpace(result.Stderr))
	}
	return nil
}

// FetchBytes reads a remote file into memory.
func (c *Client) FetchBytes(remotePath string) ([]byte, error) {
	client, err := sftp.NewClient(c.ssh)
	if err != nil {
		return nil, fmt.Errorf("starting sftp: %w", err)
	}
	defer client.Close()

	f, err := client.Open(remotePath)
	if err != nil {
		return nil, fmt.Errorf("opening remote %s: %w", remotePath, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("reading remote %s: %w", remotePath, err)
	}
	c.logger.Debug("fetched remote file", "path", remotePath, "bytes", len(data))
	return data, nil
}

// Fetch copies a remote file to a local path.
func (c *Client) Fetch(remotePath, localPath string) error {
	data, err := c.FetchBytes(remotePath)
	if err != nil {
		return err
	}
	if err := os.WriteFile(localPath, data, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", localPath, err)
	}
	return nil
}

// PushBytes writes data to a remote path (created or truncated).
func (c *Client) PushBytes(data []byte, remotePath string) error {
	client, err := sftp.NewClient(c.ssh)
	if err != nil {
		return fmt.Errorf("starting sftp: %w", err)
	}
	defer client.Close()

	f, err := client.Create(remotePath)
	if err != nil {
		return fmt.Errorf("creating remote %s: %w", remotePath, err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("writing remote %s: %w", remotePath, err)
	}
	c.logger.Debug("pushed remote file", "path", remotePath, "bytes", len(data))
	return nil
}

// Push copies a local file to a remote path.
func (c *Client) Push(localPath, remotePath string) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", localPath, err)
	}
	return c.PushBytes(data, remotePath)
}

// SudoMove moves a remote file into place with elevated privileges.
// Used to land uploads from /tmp onto the protected .storage path.
func (c *Client) SudoMove(src, dst string) error {
	return c.RunChecked(fmt.Sprintf("sudo mv %s %s", shellQuote(src), shellQuote(dst)))
}

// SudoCopy copies a remote file with elevated privileges (pre-restore backups).
func (c *Client) SudoCopy(src, dst string) error {
	return c.RunChecked(fmt.Sprintf("sudo cp %s %s", shellQuote(src), shellQuote(dst)))
}

// Reboot issues a remote reboot. The connection usually drops before the
// command returns cleanly, so transport errors are swallowed.
func (c *Client) Reboot() {
	c.logger.Debug("ssh reboot")
	if _, err := c.Run("sudo reboot"); err != nil {
		c.logger.Debug("reboot connection dropped", "err", err)
	}
}

// loadKey reads and parses the private key for public-key auth.
func loadKey(path string) (ssh.Signer, error) {
	if path == "" {
		return nil, issue.NewErrorContext().
			WithOperation("load SSH key").
			WithSuggestion("Set HASS_SSH_KEY to your private key path").
			WithSuggestion("Or place a key at ~/.ssh/id_ed25519").
			Wrap(errors.New("no key file configured")).
			BuildError()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, issue.WrapWithContext(err, "read SSH key", path)
	}

	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		var passErr *ssh.PassphraseMissingError
		if errors.As(err, &passErr) {
			return nil, issue.NewErrorContext().
				WithOperation("load SSH key").
				WithResource(path).
				WithSuggestion("Passphrase-protected keys are not supported; use an agent-forwarded or unencrypted maintenance key").
				Wrap(err).
				BuildError()
		}
		return nil, issue.WrapWithContext(err, "parse SSH key", path)
	}
	return signer, nil
}

// hostKeyCheck builds the host key callback: known_hosts when available,
// otherwise accept-and-warn.
func hostKeyCheck(knownHostsFile string, logger *log.Logger) (ssh.HostKeyCallback, error) {
	path := knownHostsFile
	if path == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, ".ssh", "known_hosts")
		}
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			cb, err := knownhosts.New(path)
			if err != nil {
				return nil, fmt.Errorf("loading known_hosts %s: %w", path, err)
			}
			return cb, nil
		}
	}

	logger.Warn("no known_hosts file; accepting host key without verification")
	return ssh.InsecureIgnoreHostKey(), nil //nolint:gosec // explicit fallback, warned above
}

// shellQuote single-quotes a path for use in a remote shell command.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
