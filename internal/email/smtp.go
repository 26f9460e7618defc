package email

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	gomail "github.com/wneessen/go-mail"

	"nurture_backend/platform/config"
)

// SMTPSender delivers sequence emails through a direct SMTP connection via
// go-mail. The message id is generated locally and set on the outgoing
// message so provider webhooks can be correlated back to the dispatch job.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
	timeout   time.Duration
}

// NewSMTPSender creates an SMTPSender from the email configuration.
func NewSMTPSender(cfg config.EmailConfig) *SMTPSender {
	return &SMTPSender{
		host:      cfg.GetSMTPHost(),
		port:      cfg.GetSMTPPort(),
		username:  cfg.GetSMTPUsername(),
		password:  cfg.GetSMTPPassword(),
		fromName:  cfg.GetEmailFromName(),
		fromEmail: cfg.GetEmailFromAddress(),
		timeout:   cfg.GetSendTimeout(),
	}
}

func (s *SMTPSender) SendSequenceEmail(ctx context.Context, templateID, toEmail string, vars Vars) (string, error) {
	spec, err := lookupTemplate(templateID)
	if err != nil {
		return "", err
	}
	content, err := renderSequenceTemplate(spec, vars)
	if err != nil {
		return "", Permanent("template render", err)
	}

	messageID := fmt.Sprintf("%s@%s", uuid.NewString(), messageIDDomain(s.fromEmail))

	msg, err := s.buildMessage(toEmail, renderSubject(spec, vars), content, messageID)
	if err != nil {
		return "", err
	}

	client, err := gomail.NewClient(s.host,
		gomail.WithPort(s.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.username),
		gomail.WithPassword(s.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(s.timeout),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return "", fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		var sendErr *gomail.SendError
		if errors.As(err, &sendErr) && !sendErr.IsTemp() {
			return "", Permanent("smtp rejected", err)
		}
		return "", fmt.Errorf("smtp send: %w", err)
	}

	return messageID, nil
}

func (s *SMTPSender) buildMessage(toEmail, subject, htmlContent, messageID string) (*gomail.Msg, error) {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return nil, Permanent("smtp from", err)
	}
	if err := msg.To(toEmail); err != nil {
		return nil, Permanent("smtp to", err)
	}
	msg.SetMessageIDWithValue(messageID)
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlContent)
	msg.SetGenHeader(gomail.HeaderListUnsubscribe, "<mailto:"+s.fromEmail+"?subject=unsubscribe>")
	return msg, nil
}

func messageIDDomain(fromEmail string) string {
	if i := strings.LastIndex(fromEmail, "@"); i >= 0 && i < len(fromEmail)-1 {
		return fromEmail[i+1:]
	}
	return "localhost"
}
