package smtp

import (
	"bufio"
	"io"
	"log/slog"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/curvecoach-checkout/internal/config"
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

// plainSMTPServer отвечает на приветствие и EHLO без расширения STARTTLS.
func plainSMTPServer(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		_, _ = conn.Write([]byte("220 localhost ESMTP\r\n"))
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			switch cmd := strings.ToUpper(strings.TrimSpace(line)); {
			case strings.HasPrefix(cmd, "EHLO"):
				_, _ = conn.Write([]byte("250-localhost\r\n250 HELP\r\n"))
			case strings.HasPrefix(cmd, "QUIT"):
				_, _ = conn.Write([]byte("221 bye\r\n"))
				return
			default:
				_, _ = conn.Write([]byte("250 OK\r\n"))
			}
		}
	}()
	return ln.Addr().String()
}

func TestTransport_ConnectRequiresStartTLS(t *testing.T) {
	host, port, err := net.SplitHostPort(plainSMTPServer(t))
	require.NoError(t, err)

	tr := NewTransport(config.SMTP{Host: host, Port: port, User: "noreply@curvecoach.gg"}, newNoopLogger())
	client, err := tr.Connect()
	assert.Nil(t, client)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoStartTLS)
}

func TestTransport_ConnectDialError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	host, port, _ := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, ln.Close())

	tr := NewTransport(config.SMTP{Host: host, Port: port}, newNoopLogger())
	_, err = tr.Connect()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to dial")
}

func TestTransport_GetSMTPUser(t *testing.T) {
	tr := NewTransport(config.SMTP{User: "noreply@curvecoach.gg"}, newNoopLogger())
	assert.Equal(t, "noreply@curvecoach.gg", tr.GetSMTPUser())
}
