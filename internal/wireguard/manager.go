// Package wireguard drives the external wg-manager script that owns the
// WireGuard interface. The bot never touches wg or its key files directly.
package wireguard

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	qrcode "github.com/skip2/go-qrcode"
)

// DefaultTimeout bounds a single wg-manager invocation.
const DefaultTimeout = 30 * time.Second

// stderrTail is how much of stderr a CommandError keeps.
const stderrTail = 512

// Peer is one line of `wg-manager list` output.
type Peer struct {
	Name      string
	IPAddress string
}

// AddResult is what `wg-manager add` reported.
type AddResult struct {
	Name      string
	IPAddress string
	Output    string
}

// qrSize is the edge length in pixels of a config QR code.
const qrSize = 512

// ConfigFile is a client configuration exported by `wg-manager export`.
type ConfigFile struct {
	Name    string
	Content string
}

// FileName is the attachment name WireGuard clients expect on import.
func (c *ConfigFile) FileName() string {
	return c.Name + ".conf"
}

// QRCode renders the config as a PNG for the mobile apps' scanner.
func (c *ConfigFile) QRCode() ([]byte, error) {
	png, err := qrcode.Encode(c.Content, qrcode.Medium, qrSize)
	if err != nil {
		return nil, fmt.Errorf("encode %s as qr code: %w", c.FileName(), err)
	}
	return png, nil
}

// CommandError is returned when wg-manager exits non-zero, times out or
// cannot be started.
type CommandError struct {
	Args     []string
	ExitCode int
	Stderr   string
	TimedOut bool
	Err      error
}

func (e *CommandError) Error() string {
	op := strings.Join(e.Args, " ")
	switch {
	case e.TimedOut:
		return fmt.Sprintf("wg-manager %s: timed out", op)
	case e.Stderr != "":
		return fmt.Sprintf("wg-manager %s: exit %d: %s", op, e.ExitCode, e.Stderr)
	case e.ExitCode != 0:
		return fmt.Sprintf("wg-manager %s: exit %d", op, e.ExitCode)
	default:
		return fmt.Sprintf("wg-manager %s: %v", op, e.Err)
	}
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// Manager runs wg-manager subcommands.
type Manager struct {
	Path      string
	Interface string
	Timeout   time.Duration
	// Attempts is how many times Add is tried before giving up.
	Attempts int
	// RetryDelay separates Add attempts.
	RetryDelay time.Duration
}

// New returns a Manager for the script at path.
func New(path, iface string, timeout time.Duration) *Manager {
	return &Manager{Path: path, Interface: iface, Timeout: timeout, Attempts: 3, RetryDelay: time.Second}
}

// Add creates a peer called name.
func (m *Manager) Add(ctx context.Context, name string) (*AddResult, error) {
	attempts := m.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			timer := time.NewTimer(m.RetryDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}
		out, err := m.run(ctx, "add", name)
		if err == nil {
			return &AddResult{Name: name, IPAddress: parseAddedIP(out), Output: out}, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

// Remove deletes the peer called name.
func (m *Manager) Remove(ctx context.Context, name string) error {
	_, err := m.run(ctx, "remove", name)
	return err
}

// List returns the peers wg-manager knows about.
func (m *Manager) List(ctx context.Context) ([]Peer, error) {
	out, err := m.run(ctx, "list")
	if err != nil {
		return nil, err
	}
	return parsePeers(out), nil
}

// Export returns the client configuration of the peer called name.
func (m *Manager) Export(ctx context.Context, name string) (*ConfigFile, error) {
	out, err := m.run(ctx, "export", name)
	if err != nil {
		return nil, err
	}
	if !strings.Contains(out, "[Interface]") {
		return nil, fmt.Errorf("wg-manager export %s: output is not a wireguard config", name)
	}
	return &ConfigFile{Name: name, Content: out + "\n"}, nil
}

// Status returns the raw interface status text.
func (m *Manager) Status(ctx context.Context) (string, error) {
	return m.run(ctx, "status")
}

func (m *Manager) run(ctx context.Context, args ...string) (string, error) {
	timeout := m.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, m.Path, args...)
	if m.Interface != "" {
		cmd.Env = append(cmd.Environ(), "WG_INTERFACE="+m.Interface)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	err := cmd.Run()
	if err == nil {
		return strings.TrimSpace(stdout.String()), nil
	}

	cerr := &CommandError{Args: args, ExitCode: -1, Stderr: tail(stderr.String()), Err: err}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		cerr.TimedOut = true
		cerr.Err = context.DeadlineExceeded
		return "", cerr
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		cerr.ExitCode = exitErr.ExitCode()
	}
	return "", cerr
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= stderrTail {
		return s
	}
	return "…" + s[len(s)-stderrTail:]
}

// parsePeers reads "name ip" lines. Blank and single-field lines are skipped.
func parsePeers(out string) []Peer {
	var peers []Peer
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 2 {
			continue
		}
		peers = append(peers, Peer{Name: fields[0], IPAddress: fields[1]})
	}
	return peers
}

// parseAddedIP finds an "IP: x" line in add output.
func parseAddedIP(out string) string {
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		key, value, ok := strings.Cut(line, ":")
		if ok && strings.EqualFold(strings.TrimSpace(key), "ip") {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
