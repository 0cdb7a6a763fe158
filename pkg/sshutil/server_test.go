package sshutil

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

// testServer is a minimal in-process SSH server. It understands a handful
// of commands: "echo X", "fail N", "cat > PATH", and "block".
type testServer struct {
	addr    string
	hostKey ssh.Signer

	mu       sync.Mutex
	commands []string
	uploads  map[string][]byte

	release chan struct{}
}

func generateSigner(t *testing.T) (ssh.Signer, ed25519.PrivateKey) {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	signer, err := ssh.NewSignerFromKey(priv)
	require.NoError(t, err)
	return signer, priv
}

// writeKeyFile writes priv in OpenSSH format, encrypted when passphrase is set.
func writeKeyFile(t *testing.T, priv ed25519.PrivateKey, passphrase string) string {
	t.Helper()

	var block *pem.Block
	var err error
	if passphrase == "" {
		block, err = ssh.MarshalPrivateKey(priv, "")
	} else {
		block, err = ssh.MarshalPrivateKeyWithPassphrase(priv, "", []byte(passphrase))
	}
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "id_test")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(block), 0600))
	return path
}

func startTestServer(t *testing.T, authorized ssh.PublicKey) *testServer {
	t.Helper()

	hostKey, _ := generateSigner(t)
	srv := &testServer{
		hostKey: hostKey,
		uploads: make(map[string][]byte),
		release: make(chan struct{}),
	}

	config := &ssh.ServerConfig{
		PublicKeyCallback: func(_ ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			if string(key.Marshal()) == string(authorized.Marshal()) {
				return nil, nil
			}
			return nil, fmt.Errorf("unknown key")
		},
	}
	config.AddHostKey(hostKey)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv.addr = ln.Addr().String()

	t.Cleanup(func() {
		close(srv.release)
		ln.Close()
	})

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go srv.serveConn(conn, config)
		}
	}()

	return srv
}

func (s *testServer) port(t *testing.T) int {
	t.Helper()
	_, portStr, err := net.SplitHostPort(s.addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return port
}

func (s *testServer) serveConn(conn net.Conn, config *ssh.ServerConfig) {
	_, chans, reqs, err := ssh.NewServerConn(conn, config)
	if err != nil {
		conn.Close()
		return
	}
	go ssh.DiscardRequests(reqs)

	for newCh := range chans {
		if newCh.ChannelType() != "session" {
			_ = newCh.Reject(ssh.UnknownChannelType, "only sessions")
			continue
		}
		ch, chReqs, err := newCh.Accept()
		if err != nil {
			continue
		}
		go s.serveSession(ch, chReqs)
	}
}

func (s *testServer) serveSession(ch ssh.Channel, reqs <-chan *ssh.Request) {
	defer ch.Close()

	for req := range reqs {
		if req.Type != "exec" {
			if req.WantReply {
				_ = req.Reply(false, nil)
			}
			continue
		}

		var payload struct{ Command string }
		if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
			_ = req.Reply(false, nil)
			return
		}
		_ = req.Reply(true, nil)

		status := s.exec(payload.Command, ch)
		_, _ = ch.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{status}))
		return
	}
}

func (s *testServer) exec(cmd string, ch ssh.Channel) uint32 {
	s.mu.Lock()
	s.commands = append(s.commands, cmd)
	s.mu.Unlock()

	switch {
	case strings.HasPrefix(cmd, "echo "):
		fmt.Fprintln(ch, strings.TrimPrefix(cmd, "echo "))
		return 0
	case strings.HasPrefix(cmd, "fail "):
		code, _ := strconv.Atoi(strings.TrimPrefix(cmd, "fail "))
		fmt.Fprintln(ch.Stderr(), "failed on purpose")
		return uint32(code)
	case strings.HasPrefix(cmd, "cat > "):
		data, _ := io.ReadAll(ch)
		s.mu.Lock()
		s.uploads[strings.TrimPrefix(cmd, "cat > ")] = data
		s.mu.Unlock()
		return 0
	case cmd == "block":
		<-s.release
		return 0
	default:
		fmt.Fprintf(ch.Stderr(), "%s: command not found\n", cmd)
		return 127
	}
}

func (s *testServer) ran(cmd string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.commands {
		if c == cmd {
			return true
		}
	}
	return false
}

func (s *testServer) upload(path string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.uploads[path]
	return data, ok
}
