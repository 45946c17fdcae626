package alerts

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"mime/quotedprintable"
	"net"
	netmail "net/mail"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ogulcanaydogan/dwlr-guardian/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"
)

func testAlert() Alert {
	return Alert{
		StationID:  "S1",
		State:      model.StateHigh,
		WaterLevel: 12.345,
		Message:    "⚠️ ALERT: Water level unusually HIGH (12.35 m) at station S1",
		RaisedAt:   time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC),
	}
}

func TestEmailNotifier_Defaults(t *testing.T) {
	n := NewEmailNotifier(EmailConfig{Host: "smtp.example.com", Username: "ops@example.com"})
	assert.Equal(t, "email", n.Name())
	assert.Equal(t, 587, n.cfg.Port)
	assert.Equal(t, DefaultEmailSubject, n.cfg.Subject)
	assert.Equal(t, "ops@example.com", n.cfg.From)
	assert.Equal(t, 10*time.Second, n.cfg.Timeout)
}

func TestEmailNotifier_Compose(t *testing.T) {
	n := NewEmailNotifier(EmailConfig{From: "ops@example.com", To: "field@example.com"})
	m, err := n.compose(testAlert())
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = m.WriteTo(&buf)
	require.NoError(t, err)

	parsed, err := netmail.ReadMessage(&buf)
	require.NoError(t, err)

	from, err := netmail.ParseAddress(parsed.Header.Get("From"))
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", from.Address)
	to, err := netmail.ParseAddress(parsed.Header.Get("To"))
	require.NoError(t, err)
	assert.Equal(t, "field@example.com", to.Address)

	subject, err := new(mime.WordDecoder).DecodeHeader(parsed.Header.Get("Subject"))
	require.NoError(t, err)
	assert.Equal(t, DefaultEmailSubject, subject)

	date, err := parsed.Header.Date()
	require.NoError(t, err)
	assert.True(t, date.Equal(testAlert().RaisedAt))

	mediaType, params, err := mime.ParseMediaType(parsed.Header.Get("Content-Type"))
	require.NoError(t, err)
	assert.Equal(t, "text/plain", mediaType)
	assert.Equal(t, "utf-8", strings.ToLower(params["charset"]))

	var body io.Reader = parsed.Body
	if strings.EqualFold(parsed.Header.Get("Content-Transfer-Encoding"), "quoted-printable") {
		body = quotedprintable.NewReader(parsed.Body)
	}
	raw, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, testAlert().Message, strings.TrimRight(string(raw), "\r\n"))
}

func TestEmailNotifier_Compose_InvalidAddress(t *testing.T) {
	n := NewEmailNotifier(EmailConfig{From: "ops@example.com", To: "not an address"})
	n.send = func(context.Context, EmailConfig, *mail.Msg) error {
		t.Fatal("send must not be called")
		return nil
	}

	err := n.Send(context.Background(), testAlert())
	var de *DeliveryError
	require.True(t, errors.As(err, &de))
	assert.Contains(t, err.Error(), "to address")
}

func TestEmailNotifier_Send(t *testing.T) {
	var gotCfg EmailConfig
	var gotMsg *mail.Msg
	n := NewEmailNotifier(EmailConfig{Host: "smtp.example.com", From: "ops@example.com", To: "field@example.com"})
	n.send = func(_ context.Context, cfg EmailConfig, msg *mail.Msg) error {
		gotCfg = cfg
		gotMsg = msg
		return nil
	}

	require.NoError(t, n.Send(context.Background(), testAlert()))
	assert.Equal(t, "smtp.example.com", gotCfg.Host)
	require.NotNil(t, gotMsg)
	assert.Equal(t, []string{"<field@example.com>"}, gotMsg.GetToString())
}

func TestEmailNotifier_Send_WrapsDeliveryError(t *testing.T) {
	boom := errors.New("535 authentication failed")
	n := NewEmailNotifier(EmailConfig{Host: "smtp.example.com", From: "ops@example.com", To: "field@example.com"})
	n.send = func(context.Context, EmailConfig, *mail.Msg) error { return boom }

	err := n.Send(context.Background(), testAlert())
	require.Error(t, err)

	var de *DeliveryError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "email", de.Channel)
	assert.ErrorIs(t, err, boom)
}

// fakeSMTP speaks just enough SMTP to answer EHLO without advertising STARTTLS.
func fakeSMTP(t *testing.T) (string, int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		_, _ = conn.Write([]byte("220 localhost ESMTP fake\r\n"))
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			switch {
			case strings.HasPrefix(line, "EHLO"):
				_, _ = conn.Write([]byte("250-localhost\r\n250 8BITMIME\r\n"))
			case strings.HasPrefix(line, "QUIT"):
				_, _ = conn.Write([]byte("221 bye\r\n"))
				return
			default:
				_, _ = conn.Write([]byte("502 not implemented\r\n"))
			}
		}
	}()

	host, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)
	return host, p
}

func TestSendSMTP_RequiresStartTLS(t *testing.T) {
	host, port := fakeSMTP(t)
	n := NewEmailNotifier(EmailConfig{
		Host:    host,
		Port:    port,
		From:    "ops@example.com",
		To:      "field@example.com",
		Timeout: 2 * time.Second,
	})

	err := n.Send(context.Background(), testAlert())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STARTTLS")
}

func TestSendSMTP_DialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().(*net.TCPAddr)
	ln.Close()

	n := NewEmailNotifier(EmailConfig{
		Host:    "127.0.0.1",
		Port:    addr.Port,
		From:    "ops@example.com",
		To:      "field@example.com",
		Timeout: time.Second,
	})
	err = n.Send(context.Background(), testAlert())
	require.Error(t, err)

	var de *DeliveryError
	require.True(t, errors.As(err, &de))
	assert.Contains(t, err.Error(), "127.0.0.1")
}
