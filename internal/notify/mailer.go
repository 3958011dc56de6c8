package notify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/wneessen/go-mail"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/config"
)

// Sender delivers a rendered message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// defaultSendTimeout bounds a send whose context carries no deadline.
const defaultSendTimeout = 15 * time.Second

// SMTPSender sends through an SMTP relay, upgrading with STARTTLS when the
// server offers it. Authentication is used only when a username is configured.
// Every connection is bound to the deadline of the context passed to Send.
type SMTPSender struct {
	cfg     config.SMTPConfig
	timeout time.Duration
}

func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg, timeout: defaultSendTimeout}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return errors.New("message has no recipient")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	m, err := s.message(msg)
	if err != nil {
		return err
	}

	deadline, _ := ctx.Deadline()
	dialer := &deadlineDialer{deadline: deadline}
	stop := context.AfterFunc(ctx, dialer.closeAll)
	defer stop()

	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
		mail.WithTimeout(time.Until(deadline)),
		mail.WithDialContextFunc(dialer.DialContext),
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}
	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("smtp send to %s: %w", msg.To, ctxErr)
		}
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	return nil
}

func (s *SMTPSender) message(msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.FromFormat(s.cfg.FromName, s.cfg.FromEmail); err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}
	if err := m.AddToFormat(msg.ToName, msg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetDate()
	m.SetMessageID()
	m.SetBodyString(mail.TypeTextHTML, msg.HTML)
	return m, nil
}

// deadlineDialer stamps every connection with a fixed deadline so a relay
// that stops answering cannot hold a send past it.
type deadlineDialer struct {
	dialer   net.Dialer
	deadline time.Time

	mu    sync.Mutex
	conns []net.Conn
}

func (d *deadlineDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	conn, err := d.dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	if err := conn.SetDeadline(d.deadline); err != nil {
		_ = conn.Close()
		return nil, err
	}
	d.mu.Lock()
	d.conns = append(d.conns, conn)
	d.mu.Unlock()
	return conn, nil
}

// closeAll unblocks any read or write still in flight after cancellation.
func (d *deadlineDialer) closeAll() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, conn := range d.conns {
		_ = conn.Close()
	}
}

// LogSender writes messages to the log instead of sending them. Used when SMTP
// is not configured.
type LogSender struct {
	log zerolog.Logger
}

func NewLogSender(log zerolog.Logger) *LogSender {
	return &LogSender{log: log.With().Str("component", "mailer").Logger()}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.log.Info().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Msg("email not sent, SMTP disabled")
	return nil
}

// EmailNotifier renders appointment notifications and hands them to a Sender.
type EmailNotifier struct {
	renderer *Renderer
	sender   Sender
}

func NewEmailNotifier(renderer *Renderer, sender Sender) *EmailNotifier {
	return &EmailNotifier{renderer: renderer, sender: sender}
}

func (n *EmailNotifier) Notify(ctx context.Context, msg appointment.Notification) error {
	rendered, err := n.renderer.Render(msg)
	if err != nil {
		return err
	}
	return n.sender.Send(ctx, rendered)
}

// FromConfig picks the SMTP sender when SMTP is configured and the log sender
// otherwise.
func FromConfig(cfg config.Config, log zerolog.Logger) *EmailNotifier {
	renderer := NewRenderer(cfg.AppBaseURL, cfg.SMTP.FromName)
	if cfg.SMTP.Enabled() {
		return NewEmailNotifier(renderer, NewSMTPSender(cfg.SMTP))
	}
	return NewEmailNotifier(renderer, NewLogSender(log))
}
