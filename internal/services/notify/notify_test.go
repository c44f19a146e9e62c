package notify

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/curvecoach-checkout/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/curvecoach-checkout/internal/lib/smtp"
)

type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Connect() (smtp.Client, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(smtp.Client), args.Error(1)
}

func (m *MockTransport) GetSMTPUser() string {
	args := m.Called()
	return args.String(0)
}

type MockSMTPClient struct {
	mock.Mock
}

func (m *MockSMTPClient) Mail(from string) error {
	return m.Called(from).Error(0)
}

func (m *MockSMTPClient) Rcpt(to string) error {
	return m.Called(to).Error(0)
}

func (m *MockSMTPClient) Data() (io.WriteCloser, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.WriteCloser), args.Error(1)
}

func (m *MockSMTPClient) Close() error {
	return m.Called().Error(0)
}

func (m *MockSMTPClient) Quit() error {
	return m.Called().Error(0)
}

// bufferWriter запоминает тело письма.
type bufferWriter struct {
	strings.Builder
	closed bool
}

func (w *bufferWriter) Close() error {
	w.closed = true
	return nil
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func links() Links {
	return Links{SignIn: "https://curvecoach.gg/sign-in", Studio: "https://curvecoach.gg/studio"}
}

func expectDelivery(tr *MockTransport, to string) (*MockSMTPClient, *bufferWriter) {
	client := new(MockSMTPClient)
	w := &bufferWriter{}
	tr.On("GetSMTPUser").Return("noreply@curvecoach.gg")
	tr.On("Connect").Return(client, nil).Once()
	client.On("Mail", "noreply@curvecoach.gg").Return(nil).Once()
	client.On("Rcpt", to).Return(nil).Once()
	client.On("Data").Return(w, nil).Once()
	client.On("Quit").Return(nil).Once()
	client.On("Close").Return(nil).Once()
	return client, w
}

func TestSender_SendActivated(t *testing.T) {
	tr := new(MockTransport)
	client, w := expectDelivery(tr, "gamer@example.com")
	s := NewSender(tr, links(), newNoopLogger())

	err := s.SendActivated([]byte(`{"type":"checkout.activated","user_uid":"u-1","email":"gamer@example.com","tier":"plus","duration":"month","reference":"CURV-1"}`))
	require.NoError(t, err)

	body := w.String()
	assert.True(t, w.closed)
	assert.Contains(t, body, "Subject: Your CurveCoach plan is active")
	assert.Contains(t, body, "Plus plan (month)")
	assert.Contains(t, body, "CURV-1")
	assert.Contains(t, body, "https://curvecoach.gg/studio")
	tr.AssertExpectations(t)
	client.AssertExpectations(t)
}

func TestSender_SendActivated_NoEmail(t *testing.T) {
	tr := new(MockTransport)
	s := NewSender(tr, links(), newNoopLogger())

	require.NoError(t, s.SendActivated([]byte(`{"user_uid":"u-1"}`)))
	tr.AssertNotCalled(t, "Connect")
}

func TestSender_SendGuestCompleted(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		setup     func(tr *MockTransport) *bufferWriter
		wantErr   error
		wantInMsg string
	}{
		{
			name: "sends sign in hand-off",
			body: `{"email":"guest@example.com","tier":"basic","reference":"CURV-9"}`,
			setup: func(tr *MockTransport) *bufferWriter {
				_, w := expectDelivery(tr, "guest@example.com")
				return w
			},
			wantInMsg: "https://curvecoach.gg/sign-in",
		},
		{
			name:    "missing email",
			body:    `{"reference":"CURV-9"}`,
			setup:   func(*MockTransport) *bufferWriter { return nil },
			wantErr: ErrNoRecipient,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := new(MockTransport)
			w := tt.setup(tr)
			s := NewSender(tr, links(), newNoopLogger())

			err := s.SendGuestCompleted([]byte(tt.body))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Contains(t, w.String(), tt.wantInMsg)
			tr.AssertExpectations(t)
		})
	}
}

func TestSender_SendReceipt(t *testing.T) {
	tr := new(MockTransport)
	_, w := expectDelivery(tr, "gamer@example.com")
	s := NewSender(tr, links(), newNoopLogger())

	err := s.SendReceipt([]byte(`{"reference":"CURV-1","id":"ord_1","email":"gamer@example.com","items":[{"product":"curve-plus-monthly","quantity":1,"subtotal":14.99}],"total":14.99,"currency":"USD"}`))
	require.NoError(t, err)
	assert.Contains(t, w.String(), "curve-plus-monthly x1  14.99 USD")
	assert.Contains(t, w.String(), "Total: 14.99 USD")
}

func TestSender_Errors(t *testing.T) {
	t.Run("invalid json is permanent", func(t *testing.T) {
		s := NewSender(new(MockTransport), links(), newNoopLogger())
		assert.ErrorIs(t, s.SendActivated([]byte(`{`)), rabbitmq.ErrPermanent)
		assert.ErrorIs(t, s.SendGuestCompleted([]byte(`{`)), rabbitmq.ErrPermanent)
		assert.ErrorIs(t, s.SendReceipt([]byte(`{`)), rabbitmq.ErrPermanent)
		assert.ErrorIs(t, s.SendGuestCompleted([]byte(`{"reference":"CURV-9"}`)), rabbitmq.ErrPermanent)
	})

	t.Run("connect error", func(t *testing.T) {
		tr := new(MockTransport)
		tr.On("GetSMTPUser").Return("noreply@curvecoach.gg")
		tr.On("Connect").Return(nil, errors.New("dial tcp: refused")).Once()
		s := NewSender(tr, links(), newNoopLogger())

		err := s.SendActivated([]byte(`{"email":"gamer@example.com"}`))
		assert.EqualError(t, err, "dial tcp: refused")
		assert.NotErrorIs(t, err, rabbitmq.ErrPermanent)
	})

	t.Run("rcpt error closes client", func(t *testing.T) {
		tr := new(MockTransport)
		client := new(MockSMTPClient)
		tr.On("GetSMTPUser").Return("noreply@curvecoach.gg")
		tr.On("Connect").Return(client, nil).Once()
		client.On("Mail", mock.Anything).Return(nil).Once()
		client.On("Rcpt", "gamer@example.com").Return(errors.New("mailbox unavailable")).Once()
		client.On("Close").Return(nil).Once()
		s := NewSender(tr, links(), newNoopLogger())

		err := s.SendActivated([]byte(`{"email":"gamer@example.com"}`))
		require.Error(t, err)
		client.AssertExpectations(t)
		client.AssertNotCalled(t, "Data")
	})
}
