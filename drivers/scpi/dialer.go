package scpi

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"golang.org/x/crypto/ssh"
)

// Dialer opens the byte stream a Session speaks SCPI over.
type Dialer interface {
	Dial(ctx context.Context, address string) (io.ReadWriteCloser, error)
}

// TCPDialer opens a raw SCPI socket (port 5025 on most instruments).
type TCPDialer struct {
	Timeout time.Duration
}

// Dial connects to address over TCP.
func (d *TCPDialer) Dial(ctx context.Context, address string) (io.ReadWriteCloser, error) {
	dialer := net.Dialer{Timeout: d.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// SSHDialer carries SCPI inside an SSH session. Without a Subsystem the
// remote shell is used as the SCPI console.
type SSHDialer struct {
	Username  string
	Password  string
	Subsystem string
	Timeout   time.Duration
}

// Dial connects to address and starts the SSH session.
func (d *SSHDialer) Dial(ctx context.Context, address string) (io.ReadWriteCloser, error) {
	// Some devices only offer keyboard-interactive, answer every prompt with the password
	keyboardInteractive := ssh.KeyboardInteractive(func(user, instruction string, questions []string, echos []bool) ([]string, error) {
		answers := make([]string, len(questions))
		for i := range questions {
			answers[i] = d.Password
		}
		return answers, nil
	})

	config := &ssh.ClientConfig{
		User: d.Username,
		Auth: []ssh.AuthMethod{
			ssh.Password(d.Password),
			keyboardInteractive,
		},
		Timeout:         d.Timeout,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec // lab equipment has no managed host keys
	}

	dialer := net.Dialer{Timeout: d.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}

	c, chans, reqs, err := ssh.NewClientConn(conn, address, config)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake: %w", err)
	}
	client := ssh.NewClient(c, chans, reqs)

	session, err := client.NewSession()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("ssh session: %w", err)
	}

	stdin, err := session.StdinPipe()
	if err != nil {
		client.Close()
		return nil, err
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		client.Close()
		return nil, err
	}

	if d.Subsystem != "" {
		err = session.RequestSubsystem(d.Subsystem)
	} else {
		err = session.Shell()
	}
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("ssh start: %w", err)
	}

	return &sshStream{client: client, session: session, stdin: stdin, stdout: stdout}, nil
}

type sshStream struct {
	client  *ssh.Client
	session *ssh.Session
	stdin   io.WriteCloser
	stdout  io.Reader
}

func (s *sshStream) Read(p []byte) (int, error)  { return s.stdout.Read(p) }
func (s *sshStream) Write(p []byte) (int, error) { return s.stdin.Write(p) }

func (s *sshStream) Close() error {
	_ = s.session.Close()
	return s.client.Close()
}
