package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/smtp"
	"strconv"

	"github.com/go-gomail/gomail"
)

const implicitTLSPort = 465

// smtpSender delivers gomail messages over one SMTP session bound to ctx.
// The connection carries ctx's deadline and is closed when ctx ends, so a
// send never outlives the caller.
type smtpSender struct {
	host      string
	port      int
	username  string
	password  string
	localName string
	tls       *tls.Config
}

func newSMTPSender(cfg Config) smtpSender {
	return smtpSender{
		host:      cfg.Host,
		port:      cfg.Port,
		username:  cfg.Username,
		password:  cfg.Password,
		localName: cfg.LocalName,
		tls:       &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12},
	}
}

func (s smtpSender) Send(ctx context.Context, msgs ...*gomail.Message) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(s.host, strconv.Itoa(s.port)))
	if err != nil {
		return fmt.Errorf("dial smtp: %w", err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if s.port == implicitTLSPort {
		conn = tls.Client(conn, s.tls)
	}
	c, err := smtp.NewClient(conn, s.host)
	if err != nil {
		return s.failed(ctx, "greeting", err)
	}
	defer c.Close()

	if s.localName != "" {
		if err := c.Hello(s.localName); err != nil {
			return s.failed(ctx, "hello", err)
		}
	}
	if s.port != implicitTLSPort {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(s.tls); err != nil {
				return s.failed(ctx, "starttls", err)
			}
		}
	}
	if s.username != "" {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(smtp.PlainAuth("", s.username, s.password, s.host)); err != nil {
				return s.failed(ctx, "auth", err)
			}
		}
	}

	send := gomail.SendFunc(func(from string, to []string, msg io.WriterTo) error {
		if err := c.Mail(from); err != nil {
			return err
		}
		for _, addr := range to {
			if err := c.Rcpt(addr); err != nil {
				return err
			}
		}
		w, err := c.Data()
		if err != nil {
			return err
		}
		if _, err := msg.WriteTo(w); err != nil {
			_ = w.Close()
			return err
		}
		return w.Close()
	})
	if err := gomail.Send(send, msgs...); err != nil {
		return s.failed(ctx, "send", err)
	}
	if err := c.Quit(); err != nil {
		return s.failed(ctx, "quit", err)
	}
	return nil
}

// failed prefers ctx's error when the connection was cut because ctx ended.
func (s smtpSender) failed(ctx context.Context, step string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("smtp %s: %w", step, ctxErr)
	}
	return fmt.Errorf("smtp %s: %w", step, err)
}
