package smtp

import (
	"io"
	"log/slog"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/nextgig-subscriptions/internal/config"
)

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func TestTransport_Sender(t *testing.T) {
	tr := NewTransport(config.Email{From: "Next Gig <no-reply@nextgig.app>"}, newNoopLogger())
	assert.Equal(t, "Next Gig <no-reply@nextgig.app>", tr.Sender())

	tr = NewTransport(config.Email{From: "x", SMTPUser: "mailer@nextgig.app"}, newNoopLogger())
	assert.Equal(t, "mailer@nextgig.app", tr.Sender())
}

func TestTransport_ConnectRefused(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	host, port, err := net.SplitHostPort(l.Addr().String())
	require.NoError(t, err)
	require.NoError(t, l.Close())

	tr := NewTransport(config.Email{SMTPHost: host, SMTPPort: port}, newNoopLogger())
	client, err := tr.Connect()
	assert.Nil(t, client)
	assert.ErrorContains(t, err, "failed to dial SMTP server")
}

func TestTransport_NoStartTLS(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = conn.Write([]byte("220 fake ESMTP\r\n"))
		buf := make([]byte, 512)
		for {
			n, err := conn.Read(buf)
			if err != nil || n == 0 {
				return
			}
			line := string(buf[:n])
			switch {
			case len(line) >= 4 && (line[:4] == "EHLO" || line[:4] == "HELO"):
				_, _ = conn.Write([]byte("250-fake\r\n250 8BITMIME\r\n"))
			case len(line) >= 4 && line[:4] == "QUIT":
				_, _ = conn.Write([]byte("221 bye\r\n"))
				return
			default:
				_, _ = conn.Write([]byte("250 ok\r\n"))
			}
		}
	}()

	host, port, err := net.SplitHostPort(l.Addr().String())
	require.NoError(t, err)
	tr := NewTransport(config.Email{SMTPHost: host, SMTPPort: port}, newNoopLogger())
	client, err := tr.Connect()
	assert.Nil(t, client)
	assert.ErrorContains(t, err, "STARTTLS")
}
