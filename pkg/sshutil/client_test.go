package sshutil

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sgflota/sgdeploy/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

type dialFixture struct {
	srv     *testServer
	target  Target
	options DialOptions
}

func newDialFixture(t *testing.T) *dialFixture {
	t.Helper()
	t.Setenv("SSH_AUTH_SOCK", "")

	clientKey, priv := generateSigner(t)
	srv := startTestServer(t, clientKey.PublicKey())
	dir := t.TempDir()

	return &dialFixture{
		srv: srv,
		target: Target{
			Host:    "127.0.0.1",
			User:    "ubuntu",
			Port:    srv.port(t),
			KeyFile: writeKeyFile(t, priv, ""),
		},
		options: DialOptions{
			HostKeyPolicy:  HostKeyIgnore,
			Timeout:        5 * time.Second,
			KnownHostsPath: filepath.Join(dir, "known_hosts"),
			ConfigPath:     filepath.Join(dir, "missing_config"),
		},
	}
}

func (f *dialFixture) dial(t *testing.T) *Client {
	t.Helper()
	client, err := Dial(context.Background(), f.target, f.options)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestDial_WithKeyFile(t *testing.T) {
	f := newDialFixture(t)
	client := f.dial(t)

	assert.Equal(t, "127.0.0.1", client.GetHost())
	assert.Equal(t, f.srv.addr, client.GetAddress())
}

func TestDial_WrongKeyIsRejected(t *testing.T) {
	f := newDialFixture(t)
	_, otherPriv := generateSigner(t)
	f.target.KeyFile = writeKeyFile(t, otherPriv, "")

	_, err := Dial(context.Background(), f.target, f.options)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrSSH))
	assert.Contains(t, err.Error(), "handshake")
}

func TestDial_EncryptedKey(t *testing.T) {
	f := newDialFixture(t)
	_, priv := generateSigner(t)
	f.target.KeyFile = writeKeyFile(t, priv, "hunter2")

	_, err := Dial(context.Background(), f.target, f.options)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrSSH))
	assert.Contains(t, err.Error(), "encrypted")
	assert.Contains(t, err.Error(), "ssh-add")
}

func TestDial_GarbageKey(t *testing.T) {
	f := newDialFixture(t)
	f.target.KeyFile = filepath.Join(t.TempDir(), "bad.pem")
	require.NoError(t, os.WriteFile(f.target.KeyFile, []byte("not a key"), 0600))

	_, err := Dial(context.Background(), f.target, f.options)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrSSH))
	assert.Contains(t, err.Error(), "Couldn't load SSH key")
}

func TestDial_ConnectionRefused(t *testing.T) {
	f := newDialFixture(t)
	f.target.Port = 1

	_, err := Dial(context.Background(), f.target, f.options)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrSSH))
	assert.Contains(t, err.Error(), "Can't reach")
}

func TestDial_AcceptNewRecordsHostThenVerifies(t *testing.T) {
	f := newDialFixture(t)
	f.options.HostKeyPolicy = HostKeyAcceptNew

	f.dial(t)

	data, err := os.ReadFile(f.options.KnownHostsPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[127.0.0.1]:")
	assert.Contains(t, string(data), "ssh-ed25519")

	// The recorded key now satisfies strict checking.
	f.options.HostKeyPolicy = HostKeyStrict
	f.dial(t)

	// The file is not appended to twice.
	f.options.HostKeyPolicy = HostKeyAcceptNew
	f.dial(t)
	data, err = os.ReadFile(f.options.KnownHostsPath)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "ssh-ed25519"))
}

func TestDial_AcceptNewRejectsChangedKey(t *testing.T) {
	f := newDialFixture(t)
	f.options.HostKeyPolicy = HostKeyAcceptNew

	// known_hosts already holds a different key for this address.
	stale, _ := generateSigner(t)
	line := knownhosts.Line([]string{knownhosts.Normalize(f.srv.addr)}, stale.PublicKey())
	require.NoError(t, os.WriteFile(f.options.KnownHostsPath, []byte(line+"\n"), 0600))

	_, err := Dial(context.Background(), f.target, f.options)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrSSH))
	assert.Contains(t, err.Error(), "host key mismatch")
	assert.Contains(t, err.Error(), "ssh-keygen -R")

	data, err := os.ReadFile(f.options.KnownHostsPath)
	require.NoError(t, err)
	assert.Equal(t, line+"\n", string(data), "mismatched keys are never recorded")
}

func TestDial_StrictRejectsUnknownHost(t *testing.T) {
	f := newDialFixture(t)
	f.options.HostKeyPolicy = HostKeyStrict
	require.NoError(t, os.WriteFile(f.options.KnownHostsPath, []byte{}, 0600))

	_, err := Dial(context.Background(), f.target, f.options)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrSSH))
	assert.Contains(t, err.Error(), "is not in")
}

func TestDial_StrictWithoutKnownHostsFile(t *testing.T) {
	f := newDialFixture(t)
	f.options.HostKeyPolicy = HostKeyStrict

	_, err := Dial(context.Background(), f.target, f.options)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "known_hosts file not found")
}

func TestDial_UnknownPolicy(t *testing.T) {
	f := newDialFixture(t)
	f.options.HostKeyPolicy = "maybe"

	_, err := Dial(context.Background(), f.target, f.options)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}

func TestExec(t *testing.T) {
	client := newDialFixture(t).dial(t)

	stdout, _, exitCode, err := client.Exec("echo hello")
	require.NoError(t, err)
	assert.Equal(t, 0, exitCode)
	assert.Equal(t, "hello\n", string(stdout))

	_, stderr, exitCode, err := client.Exec("fail 3")
	require.NoError(t, err, "non-zero exit is not an error")
	assert.Equal(t, 3, exitCode)
	assert.Contains(t, string(stderr), "failed on purpose")
}

func TestExecStreamContext(t *testing.T) {
	client := newDialFixture(t).dial(t)

	var stdout, stderr bytes.Buffer
	exitCode, err := client.ExecStreamContext(context.Background(), "echo streamed", &stdout, &stderr)
	require.NoError(t, err)
	assert.Equal(t, 0, exitCode)
	assert.Equal(t, "streamed\n", stdout.String())
}

func TestExecStreamContext_CancelStopsWaiting(t *testing.T) {
	client := newDialFixture(t).dial(t)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	exitCode, err := client.ExecStreamContext(ctx, "block", &bytes.Buffer{}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Equal(t, 130, exitCode)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestExecStreamContext_AlreadyCancelled(t *testing.T) {
	f := newDialFixture(t)
	client := f.dial(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exitCode, err := client.ExecStreamContext(ctx, "echo nope", nil, nil)
	require.Error(t, err)
	assert.Equal(t, 130, exitCode)
	assert.False(t, f.srv.ran("echo nope"))
}

func TestUpload(t *testing.T) {
	f := newDialFixture(t)
	client := f.dial(t)

	payload := bytes.Repeat([]byte("sgflota"), 10000)
	require.NoError(t, client.Upload(context.Background(), bytes.NewReader(payload), "~/deploy_package.tar.gz"))

	got, ok := f.srv.upload("~/deploy_package.tar.gz")
	require.True(t, ok)
	assert.Equal(t, payload, got)
}

func TestResolveSSHSettings(t *testing.T) {
	t.Setenv("USER", "local")
	noConfig := filepath.Join(t.TempDir(), "none")

	tests := []struct {
		name     string
		target   Target
		hostname string
		port     string
		user     string
	}{
		{"simple host", Target{Host: "example.com"}, "example.com", "22", "local"},
		{"user at host", Target{Host: "admin@example.com"}, "example.com", "22", "admin"},
		{"host with port", Target{Host: "example.com:2222"}, "example.com", "2222", "local"},
		{"explicit fields win", Target{Host: "admin@example.com:2222", User: "ubuntu", Port: 2200}, "example.com", "2200", "ubuntu"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := resolveSSHSettings(tt.target, noConfig)
			assert.Equal(t, tt.hostname, s.hostname)
			assert.Equal(t, tt.port, s.port)
			assert.Equal(t, tt.user, s.user)
		})
	}
}

func TestResolveSSHSettings_FromConfig(t *testing.T) {
	path := writeSSHConfig(t, `
Host prod
    HostName 13.48.67.55
    User ubuntu
    Port 2022
    IdentityFile ~/.ssh/prod.pem
`)

	s := resolveSSHSettings(Target{Host: "prod"}, path)
	assert.Equal(t, "13.48.67.55", s.hostname)
	assert.Equal(t, "2022", s.port)
	assert.Equal(t, "ubuntu", s.user)
	assert.Equal(t, filepath.Join(homeDir(), ".ssh", "prod.pem"), s.identityFile)

	// Explicit values take precedence over the config file.
	s = resolveSSHSettings(Target{Host: "prod", User: "deploy", KeyFile: "jorge-aws.pem"}, path)
	assert.Equal(t, "deploy", s.user)
	assert.Equal(t, "jorge-aws.pem", s.identityFile)
}

func TestExpandPath(t *testing.T) {
	home := homeDir()
	assert.Equal(t, filepath.Join(home, "test"), expandPath("~/test"))
	assert.Equal(t, "/absolute/path", expandPath("/absolute/path"))
	assert.Equal(t, "relative/path", expandPath("relative/path"))
}

func TestSuggestionForDialError(t *testing.T) {
	tests := []struct {
		errMsg   string
		contains string
	}{
		{"connection refused", "Is SSH running"},
		{"no route to host", "Can't route"},
		{"i/o timeout", "timed out"},
		{"random error", "Make sure the host is reachable"},
	}

	for _, tt := range tests {
		t.Run(tt.errMsg, func(t *testing.T) {
			assert.Contains(t, suggestionForDialError(stringError(tt.errMsg)), tt.contains)
		})
	}
}

func TestSuggestionForHandshakeError(t *testing.T) {
	assert.Contains(t, suggestionForHandshakeError(stringError("unable to authenticate"), nil), "Auth failed")
	assert.Contains(t, suggestionForHandshakeError(stringError("unable to authenticate"), []string{"/k"}), "ssh-add")
	assert.Contains(t, suggestionForHandshakeError(stringError("host key verification"), nil), "Host key issue")
	assert.Contains(t, suggestionForHandshakeError(stringError("random error"), nil), "Something went wrong")
}

type stringError string

func (e stringError) Error() string { return string(e) }

func serveTestAgent(t *testing.T, keys int) string {
	t.Helper()

	keyring := agent.NewKeyring()
	for i := 0; i < keys; i++ {
		_, priv := generateSigner(t)
		require.NoError(t, keyring.Add(agent.AddedKey{PrivateKey: priv}))
	}

	sock := filepath.Join(t.TempDir(), "agent.sock")
	ln, err := net.Listen("unix", sock)
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				_ = agent.ServeAgent(keyring, conn)
			}()
		}
	}()
	return sock
}

func TestAgentKeyCount(t *testing.T) {
	t.Setenv("SSH_AUTH_SOCK", serveTestAgent(t, 2))

	n, err := AgentKeyCount()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestAgentKeyCount_NoSocket(t *testing.T) {
	t.Setenv("SSH_AUTH_SOCK", "")
	_, err := AgentKeyCount()
	assert.Error(t, err)

	t.Setenv("SSH_AUTH_SOCK", filepath.Join(t.TempDir(), "missing.sock"))
	_, err = AgentKeyCount()
	assert.Error(t, err)
}
