// Package mailer delivers single emails over SMTP.
package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"
)

// Client sends mail through one SMTP relay using PLAIN auth when credentials are set.
type Client struct {
	host     string
	port     int
	username string
	password string
	from     string
	send     func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewClient(host string, port int, username, password, from string) (*Client, error) {
	host = strings.TrimSpace(host)
	from = strings.TrimSpace(from)
	if host == "" {
		return nil, errors.New("smtp host is required")
	}
	if from == "" {
		return nil, errors.New("smtp sender address is required")
	}
	if port <= 0 {
		port = 587
	}
	return &Client{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		send:     smtp.SendMail,
	}, nil
}

// Send delivers one message. The context bounds the whole exchange.
func (c *Client) Send(ctx context.Context, to, subject, body string, html bool) error {
	if strings.TrimSpace(to) == "" {
		return errors.New("recipient address is required")
	}

	msg := buildMessage(c.from, to, subject, body, html, time.Now())
	addr := net.JoinHostPort(c.host, strconv.Itoa(c.port))

	var auth smtp.Auth
	if c.username != "" {
		auth = smtp.PlainAuth("", c.username, c.password, c.host)
	}

	done := make(chan error, 1)
	go func() {
		done <- c.send(addr, auth, c.from, []string{to}, msg)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send to %s failed: %w", to, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func buildMessage(from, to, subject, body string, html bool, at time.Time) []byte {
	contentType := "text/plain; charset=UTF-8"
	if html {
		contentType = "text/html; charset=UTF-8"
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", at.Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: %s\r\n", contentType)
	buf.WriteString("\r\n")
	buf.WriteString(body)
	return buf.Bytes()
}
