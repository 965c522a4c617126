package testutil

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"io"
	"net"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"github.com/TheMichaelB/lssh/internal/session"
)

// SSHServer is a minimal SSH server that accepts one user, writes Greeting
// when a shell starts and exits with a fixed status.
type SSHServer struct {
	Addr     string
	Host     string
	Port     int
	HostKey  ssh.PublicKey
	Greeting string

	user     string
	password string
	status   uint32

	mu     sync.Mutex
	logins int
}

// NewSSHServer starts a server on a loopback port. It stops when t ends.
func NewSSHServer(t testing.TB, user, password string, status uint32) *SSHServer {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	signer, err := ssh.NewSignerFromKey(priv)
	require.NoError(t, err)

	srv := &SSHServer{
		HostKey:  signer.PublicKey(),
		Greeting: "hello from test server\n",
		user:     user,
		password: password,
		status:   status,
	}

	serverConfig := &ssh.ServerConfig{PasswordCallback: srv.checkPassword}
	serverConfig.AddHostKey(signer)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	srv.Addr = ln.Addr().String()
	host, port, err := net.SplitHostPort(srv.Addr)
	require.NoError(t, err)
	srv.Host = host
	srv.Port, err = strconv.Atoi(port)
	require.NoError(t, err)

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go srv.serve(conn, serverConfig)
		}
	}()

	return srv
}

// Creds returns session credentials pointing at the server.
func (s *SSHServer) Creds(user, password string) session.Credentials {
	return session.Credentials{Username: user, Password: password, Host: s.Host, Port: s.Port}
}

// Logins returns the number of successful authentications.
func (s *SSHServer) Logins() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logins
}

func (s *SSHServer) checkPassword(c ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
	if c.User() != s.user || string(pass) != s.password {
		return nil, errors.New("access denied")
	}

	s.mu.Lock()
	s.logins++
	s.mu.Unlock()
	return nil, nil
}

func (s *SSHServer) serve(conn net.Conn, cfg *ssh.ServerConfig) {
	defer conn.Close()

	_, chans, reqs, err := ssh.NewServerConn(conn, cfg)
	if err != nil {
		return
	}
	go ssh.DiscardRequests(reqs)

	for newChannel := range chans {
		if newChannel.ChannelType() != "session" {
			_ = newChannel.Reject(ssh.UnknownChannelType, "unsupported channel type")
			continue
		}

		channel, requests, err := newChannel.Accept()
		if err != nil {
			return
		}

		go func() {
			for req := range requests {
				if req.Type != "shell" {
					_ = req.Reply(false, nil)
					continue
				}
				_ = req.Reply(true, nil)
				_, _ = io.WriteString(channel, s.Greeting)
				_, _ = channel.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{s.status}))
				_ = channel.Close()
			}
		}()
	}
}
