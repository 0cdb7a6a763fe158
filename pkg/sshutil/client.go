package sshutil

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kevinburke/ssh_config"
	"github.com/sgflota/sgdeploy/internal/errors"
	"github.com/sgflota/sgdeploy/internal/logger"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Host key policies, mirroring OpenSSH's StrictHostKeyChecking values.
const (
	HostKeyIgnore    = "no"
	HostKeyAcceptNew = "accept-new"
	HostKeyStrict    = "yes"
)

// Target identifies the machine to connect to.
// Empty fields are filled from ~/.ssh/config when the host is an alias.
type Target struct {
	Host    string // alias, hostname, user@host, or host:port
	User    string
	Port    int
	KeyFile string
}

// DialOptions tunes how a connection is established.
type DialOptions struct {
	HostKeyPolicy  string        // HostKeyIgnore (default), HostKeyAcceptNew, HostKeyStrict
	Timeout        time.Duration // 0 means no timeout
	KnownHostsPath string        // defaults to ~/.ssh/known_hosts
	ConfigPath     string        // defaults to ~/.ssh/config
}

// Client wraps an SSH connection with additional metadata.
type Client struct {
	*ssh.Client
	Host    string // The original host/alias used to connect
	Address string // The resolved address (host:port)
}

// matchWarningOnce ensures the SSH config Match directive warning is only shown once per process.
var matchWarningOnce sync.Once

// Dial establishes an SSH connection to target.
// The key file, when set, is the primary credential; keys from a running
// SSH agent are offered after it.
func Dial(ctx context.Context, target Target, opts DialOptions) (*Client, error) {
	settings := resolveSSHSettings(target, opts.ConfigPath)

	config, err := buildSSHConfig(settings, opts)
	if err != nil {
		var sgErr *errors.Error
		if stderrors.As(err, &sgErr) {
			return nil, err
		}
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("Couldn't set up SSH for '%s'", target.Host),
			"Check the key file and your known_hosts file.")
	}

	address := settings.address()
	dialer := net.Dialer{Timeout: opts.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("Can't reach '%s' at %s", target.Host, address),
			suggestionForDialError(err))
	}

	// Bound the handshake by the context as well as the timeout.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, address, config)
	if err != nil {
		conn.Close()

		if ctx.Err() != nil {
			return nil, errors.WrapWithCode(ctx.Err(), errors.ErrCancelled,
				"Deployment cancelled.", "")
		}

		var hostKeyErr *HostKeyMismatchError
		if stderrors.As(err, &hostKeyErr) {
			return nil, errors.New(errors.ErrSSH,
				hostKeyErr.Error(),
				hostKeyErr.Suggestion())
		}

		var unknownErr *UnknownHostError
		if stderrors.As(err, &unknownErr) {
			return nil, errors.New(errors.ErrSSH,
				unknownErr.Error(),
				unknownErr.Suggestion())
		}

		return nil, errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("SSH handshake with '%s' didn't go through", target.Host),
			suggestionForHandshakeError(err, settings.encryptedKeys))
	}

	return &Client{
		Client:  ssh.NewClient(sshConn, chans, reqs),
		Host:    target.Host,
		Address: address,
	}, nil
}

// Close closes the SSH connection.
func (c *Client) Close() error {
	if c.Client == nil {
		return nil
	}
	return c.Client.Close()
}

// GetHost returns the original host/alias used to connect.
func (c *Client) GetHost() string {
	return c.Host
}

// GetAddress returns the resolved host:port address.
func (c *Client) GetAddress() string {
	return c.Address
}

// sshSettings holds resolved SSH connection parameters.
type sshSettings struct {
	hostname      string
	port          string
	user          string
	identityFile  string
	encryptedKeys []string // Keys that exist but are encrypted
}

// address returns the host:port string for dialing.
func (s *sshSettings) address() string {
	return net.JoinHostPort(s.hostname, s.port)
}

// resolveSSHSettings parses the host string and fills gaps from the SSH config.
// Explicit Target fields always win over config values.
func resolveSSHSettings(target Target, configPath string) *sshSettings {
	settings := &sshSettings{
		port:         "22",
		user:         currentUser(),
		identityFile: target.KeyFile,
	}

	host := target.Host
	explicitUser := target.User != ""
	if explicitUser {
		settings.user = target.User
	}

	if atIdx := strings.Index(host, "@"); atIdx != -1 {
		if !explicitUser {
			settings.user = host[:atIdx]
			explicitUser = true
		}
		host = host[atIdx+1:]
	}

	explicitPort := target.Port > 0
	if explicitPort {
		settings.port = strconv.Itoa(target.Port)
	}

	if colonIdx := strings.LastIndex(host, ":"); colonIdx != -1 {
		potentialPort := host[colonIdx+1:]
		if _, err := strconv.Atoi(potentialPort); err == nil {
			if !explicitPort {
				settings.port = potentialPort
				explicitPort = true
			}
			host = host[:colonIdx]
		}
	}

	settings.hostname = host

	if configPath == "" {
		configPath = filepath.Join(homeDir(), ".ssh", "config")
	}

	// kevinburke/ssh_config doesn't support Match, so only the content
	// before the first Match block is parsed.
	content, matchLine, err := preprocessSSHConfig(configPath)
	if err != nil {
		return settings
	}

	cfg, err := ssh_config.Decode(bytes.NewReader(content))
	if err != nil {
		return settings
	}

	hostFound := false

	if hostname, _ := cfg.Get(host, "HostName"); hostname != "" {
		settings.hostname = hostname
		hostFound = true
	}

	if port, _ := cfg.Get(host, "Port"); port != "" && !explicitPort {
		settings.port = port
		hostFound = true
	}

	if user, _ := cfg.Get(host, "User"); user != "" && !explicitUser {
		settings.user = user
		hostFound = true
	}

	if identity, _ := cfg.Get(host, "IdentityFile"); identity != "" && settings.identityFile == "" {
		settings.identityFile = expandPath(identity)
		hostFound = true
	}

	if matchLine > 0 && !hostFound {
		matchWarningOnce.Do(func() {
			logger.Default().Warn(
				"Host '%s' not found in SSH config (config has a Match block at line %d that may hide later entries)",
				host, matchLine)
		})
	}

	return settings
}

// buildSSHConfig creates an SSH client config with authentication methods.
// It also populates settings.encryptedKeys with any keys that exist but are encrypted.
func buildSSHConfig(settings *sshSettings, opts DialOptions) (*ssh.ClientConfig, error) {
	var authMethods []ssh.AuthMethod

	if settings.identityFile != "" {
		signer, err := loadSigner(settings.identityFile)
		if err != nil {
			var encErr *EncryptedKeyError
			if !stderrors.As(err, &encErr) {
				return nil, errors.WrapWithCode(err, errors.ErrSSH,
					fmt.Sprintf("Couldn't load SSH key %s", settings.identityFile),
					"The key must be an unencrypted private key in PEM or OpenSSH format.")
			}
			settings.encryptedKeys = append(settings.encryptedKeys, settings.identityFile)
		} else {
			authMethods = append(authMethods, ssh.PublicKeys(signer))
		}
	}

	if agentAuth := sshAgentAuth(); agentAuth != nil {
		authMethods = append(authMethods, agentAuth)
	}

	if len(authMethods) == 0 {
		msg := "No SSH auth methods available"
		suggestion := "Set key_file in .sgdeploy.yaml or load a key into the agent: ssh-add -l"

		if len(settings.encryptedKeys) > 0 {
			msg = fmt.Sprintf("Found SSH key(s) but they're encrypted: %s", strings.Join(settings.encryptedKeys, ", "))
			suggestion = addKeysSuggestion("Add your key(s) to the agent:\n", settings.encryptedKeys)
		}

		return nil, errors.New(errors.ErrSSH, msg, suggestion)
	}

	hostKeyCallback, err := hostKeyCallbackFor(opts)
	if err != nil {
		return nil, err
	}

	return &ssh.ClientConfig{
		User:            settings.user,
		Auth:            authMethods,
		HostKeyCallback: hostKeyCallback,
		Timeout:         opts.Timeout,
	}, nil
}

// hostKeyCallbackFor maps a policy name to a host key callback.
func hostKeyCallbackFor(opts DialOptions) (ssh.HostKeyCallback, error) {
	knownHostsPath := opts.KnownHostsPath
	if knownHostsPath == "" {
		knownHostsPath = filepath.Join(homeDir(), ".ssh", "known_hosts")
	}

	switch opts.HostKeyPolicy {
	case "", HostKeyIgnore:
		return ssh.InsecureIgnoreHostKey(), nil //nolint:gosec // matches StrictHostKeyChecking=no
	case HostKeyAcceptNew:
		return createHostKeyCallback(knownHostsPath, true)
	case HostKeyStrict:
		return createHostKeyCallback(knownHostsPath, false)
	default:
		return nil, errors.New(errors.ErrConfig,
			fmt.Sprintf("Unknown host key policy '%s'", opts.HostKeyPolicy),
			"Use one of: no, accept-new, yes")
	}
}

// agentConn holds the reusable SSH agent connection.
var (
	agentConn     net.Conn
	agentClient   agent.ExtendedAgent
	agentConnOnce sync.Once
)

// sshAgentAuth returns an auth method using the SSH agent if available.
// The agent connection is reused across multiple SSH connections.
// Returns nil if the agent has no keys loaded.
func sshAgentAuth() ssh.AuthMethod {
	socket := os.Getenv("SSH_AUTH_SOCK")
	if socket == "" {
		return nil
	}

	agentConnOnce.Do(func() {
		conn, err := net.Dial("unix", socket)
		if err != nil {
			return
		}
		agentConn = conn
		agentClient = agent.NewClient(conn)
	})

	if agentClient == nil {
		return nil
	}

	// An empty agent causes auth failures when placed before other methods.
	signers, err := agentClient.Signers()
	if err != nil || len(signers) == 0 {
		return nil
	}

	return ssh.PublicKeysCallback(agentClient.Signers)
}

// AgentKeyCount reports how many keys the agent at SSH_AUTH_SOCK holds.
func AgentKeyCount() (int, error) {
	socket := os.Getenv("SSH_AUTH_SOCK")
	if socket == "" {
		return 0, fmt.Errorf("SSH_AUTH_SOCK is not set")
	}

	conn, err := net.Dial("unix", socket)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	keys, err := agent.NewClient(conn).List()
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// CloseAgent closes the SSH agent connection if one is open.
func CloseAgent() {
	if agentConn != nil {
		agentConn.Close()
	}
}

// loadSigner parses a private key file.
// Returns EncryptedKeyError if the key requires a passphrase.
func loadSigner(keyPath string) (ssh.Signer, error) {
	key, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, err
	}

	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		var missing *ssh.PassphraseMissingError
		if stderrors.As(err, &missing) || isEncryptedPEM(key) {
			return nil, &EncryptedKeyError{Path: keyPath}
		}
		return nil, err
	}

	return signer, nil
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.Getenv("HOME")
	}
	return home
}

func currentUser() string {
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "root"
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}

func suggestionForDialError(err error) string {
	errStr := err.Error()
	if strings.Contains(errStr, "connection refused") {
		return "Is SSH running on that box? Try: ssh <host>"
	}
	if strings.Contains(errStr, "no route to host") || strings.Contains(errStr, "network is unreachable") {
		return "Can't route to the host. Check your network connection."
	}
	if strings.Contains(errStr, "timeout") {
		return "Connection timed out. Host might be offline or blocked by a firewall."
	}
	return "Make sure the host is reachable: ping <host>"
}

func suggestionForHandshakeError(err error, encryptedKeys []string) string {
	errStr := err.Error()
	if strings.Contains(errStr, "unable to authenticate") || strings.Contains(errStr, "no supported methods") {
		if len(encryptedKeys) > 0 {
			return addKeysSuggestion("Your key(s) are encrypted. Add them to the agent:\n", encryptedKeys)
		}
		return "Auth failed. Check the key file is the one the server expects."
	}
	if strings.Contains(errStr, "host key") {
		return "Host key issue. Try connecting manually first: ssh <host>"
	}
	return "Something went wrong during SSH setup. Try: ssh <host>"
}

func addKeysSuggestion(header string, keys []string) string {
	var sb strings.Builder
	sb.WriteString(header)
	for _, key := range keys {
		if runtime.GOOS == "darwin" {
			sb.WriteString(fmt.Sprintf("  ssh-add --apple-use-keychain %s\n", key))
		} else {
			sb.WriteString(fmt.Sprintf("  ssh-add %s\n", key))
		}
	}
	sb.WriteString("\nNot sure which key? Check with: ssh -v <host>")
	return sb.String()
}

// EncryptedKeyError is returned when an SSH key requires a passphrase.
type EncryptedKeyError struct {
	Path string
}

func (e *EncryptedKeyError) Error() string {
	return fmt.Sprintf("SSH key at %s is encrypted (passphrase protected)", e.Path)
}

// HostKeyMismatchError provides helpful context when known_hosts verification fails.
type HostKeyMismatchError struct {
	Hostname     string
	ReceivedType string
	KnownHosts   string
	Want         []knownhosts.KnownKey
}

func (e *HostKeyMismatchError) Error() string {
	return fmt.Sprintf("host key mismatch for %s: server sent %s key", e.Hostname, e.ReceivedType)
}

// Suggestion returns actionable steps to fix the host key mismatch.
func (e *HostKeyMismatchError) Suggestion() string {
	host := stripPort(e.Hostname)

	var wantTypes []string
	for _, k := range e.Want {
		wantTypes = append(wantTypes, k.Key.Type())
	}
	wantStr := "unknown"
	if len(wantTypes) > 0 {
		wantStr = strings.Join(wantTypes, ", ")
	}

	return fmt.Sprintf(
		"The server's host key doesn't match what's in known_hosts.\n"+
			"  Known types: %s\n"+
			"  Server sent: %s\n\n"+
			"  If the server was rebuilt, remove the old entry:\n"+
			"    ssh-keygen -R %s -f %s",
		wantStr, e.ReceivedType, host, e.KnownHosts)
}

// UnknownHostError is returned under the strict policy when the host has no
// known_hosts entry.
type UnknownHostError struct {
	Hostname   string
	KnownHosts string
}

func (e *UnknownHostError) Error() string {
	return fmt.Sprintf("host %s is not in %s", e.Hostname, e.KnownHosts)
}

// Suggestion returns how to trust the host.
func (e *UnknownHostError) Suggestion() string {
	return fmt.Sprintf(
		"Connect once with host_key_checking: accept-new, or add it manually:\n"+
			"    ssh-keyscan %s >> %s", stripPort(e.Hostname), e.KnownHosts)
}

func stripPort(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return host
}

// preprocessSSHConfig reads the SSH config and returns content up to the first Match directive.
// Also returns the line number where Match was found (0 if not found).
func preprocessSSHConfig(configPath string) ([]byte, int, error) {
	content, err := os.ReadFile(configPath)
	if err != nil {
		return nil, 0, err
	}

	lines := strings.Split(string(content), "\n")
	var result []string
	matchLine := 0

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(strings.ToLower(trimmed), "match ") {
			matchLine = i + 1
			break
		}
		result = append(result, line)
	}

	return []byte(strings.Join(result, "\n")), matchLine, nil
}

// isEncryptedPEM checks if PEM data contains encryption markers.
func isEncryptedPEM(data []byte) bool {
	return bytes.Contains(data, []byte("ENCRYPTED"))
}

// knownHostsMu serializes appends to known_hosts within the process.
var knownHostsMu sync.Mutex

// createHostKeyCallback wraps the knownhosts callback to provide better error
// messages. With acceptNew, unknown hosts are appended to the file and
// trusted; mismatched keys are always rejected.
func createHostKeyCallback(knownHostsPath string, acceptNew bool) (ssh.HostKeyCallback, error) {
	if _, err := os.Stat(knownHostsPath); os.IsNotExist(err) {
		if !acceptNew {
			return nil, errors.New(errors.ErrSSH,
				fmt.Sprintf("known_hosts file not found at %s", knownHostsPath),
				"Use host_key_checking: accept-new to record the host on first connect.")
		}
		if err := os.MkdirAll(filepath.Dir(knownHostsPath), 0700); err != nil {
			return nil, fmt.Errorf("failed to create .ssh directory: %w", err)
		}
		if err := os.WriteFile(knownHostsPath, []byte{}, 0600); err != nil {
			return nil, fmt.Errorf("failed to create known_hosts: %w", err)
		}
	}

	callback, err := knownhosts.New(knownHostsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load known_hosts: %w", err)
	}

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := callback(hostname, remote, key)
		if err == nil {
			return nil
		}

		var keyErr *knownhosts.KeyError
		if !stderrors.As(err, &keyErr) {
			return err
		}

		if len(keyErr.Want) > 0 {
			return &HostKeyMismatchError{
				Hostname:     hostname,
				ReceivedType: key.Type(),
				KnownHosts:   knownHostsPath,
				Want:         keyErr.Want,
			}
		}

		if !acceptNew {
			return &UnknownHostError{Hostname: hostname, KnownHosts: knownHostsPath}
		}
		return appendKnownHost(knownHostsPath, hostname, key)
	}, nil
}

func appendKnownHost(path, hostname string, key ssh.PublicKey) error {
	knownHostsMu.Lock()
	defer knownHostsMu.Unlock()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0600)
	if err != nil {
		return fmt.Errorf("failed to record host key: %w", err)
	}
	defer f.Close()

	line := knownhosts.Line([]string{knownhosts.Normalize(hostname)}, key)
	if _, err := f.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("failed to record host key: %w", err)
	}
	logger.Default().Info("Permanently added '%s' (%s) to the list of known hosts", stripPort(hostname), key.Type())
	return nil
}
