package sender

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/nextgig-subscriptions/internal/config"
	senderservice "github.com/magabrotheeeer/nextgig-subscriptions/internal/services/sender"
)

func TestNewMailer(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name    string
		cfg     config.Email
		want    any
		wantErr string
	}{
		{
			name: "smtp",
			cfg:  config.Email{Transport: TransportSMTP, SMTPHost: "smtp.example.com", SMTPPort: "587", From: "no-reply@nextgig.app"},
			want: &senderservice.SMTPMailer{},
		},
		{
			name: "пустой транспорт означает smtp",
			cfg:  config.Email{SMTPHost: "smtp.example.com", From: "no-reply@nextgig.app"},
			want: &senderservice.SMTPMailer{},
		},
		{
			name:    "smtp без хоста",
			cfg:     config.Email{Transport: TransportSMTP},
			wantErr: "smtp_host is required",
		},
		{
			name: "postmark",
			cfg:  config.Email{Transport: TransportPostmark, PostmarkToken: "server-token", From: "no-reply@nextgig.app"},
			want: &senderservice.PostmarkMailer{},
		},
		{
			name:    "postmark без токена",
			cfg:     config.Email{Transport: TransportPostmark, From: "no-reply@nextgig.app"},
			wantErr: "server token is required",
		},
		{
			name:    "неизвестный транспорт",
			cfg:     config.Email{Transport: "pigeon"},
			wantErr: `unknown email transport "pigeon"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mailer, err := NewMailer(tt.cfg, logger)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, mailer)
		})
	}
}

func TestNewRequiresBroker(t *testing.T) {
	cfg := &config.Config{}
	cfg.Transport = TransportSMTP
	cfg.SMTPHost = "smtp.example.com"

	_, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rabbitmq url is required")
}
