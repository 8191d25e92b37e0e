package alerts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/schnooty/agent/internal/models"
)

// emailParams is the body shape of an email alert.
type emailParams struct {
	Host       string   `json:"host"`
	Port       *int     `json:"port"`
	TLS        string   `json:"tls"` // NONE, TLS or STARTTLS
	Username   string   `json:"username"`
	Password   string   `json:"password"`
	From       string   `json:"from"`
	Recipients []string `json:"recipients"`
}

// Email renders alerts as plain-text mail and submits them over SMTP.
type Email struct {
	params emailParams
	submit func(ctx context.Context, params emailParams, subject, body string) error
}

// NewEmail builds an email channel from an alert body.
func NewEmail(body map[string]any) (*Email, error) {
	var params emailParams
	if err := models.DecodeBody(body, &params); err != nil {
		return nil, fmt.Errorf("failed to decode email alert body: %w", err)
	}
	return &Email{params: params, submit: smtpSubmit}, nil
}

func (e *Email) Type() models.AlertType { return models.AlertEmail }

// Send delivers the alert to every configured recipient in one message.
func (e *Email) Send(ctx context.Context, payload models.AlertPayload) error {
	if e.params.Host == "" || e.params.Port == nil || e.params.TLS == "" ||
		e.params.Username == "" || e.params.Password == "" ||
		e.params.From == "" || len(e.params.Recipients) == 0 {
		return errors.New("email alert is misconfigured: host, port, tls, username, password, from and recipients are all required")
	}

	subject := fmt.Sprintf("[Schnooty] Monitor %s is DOWN", payload.MonitorName)
	if payload.Status.Status == models.StatusOK {
		subject = fmt.Sprintf("[Schnooty] Monitor %s has recovered", payload.MonitorName)
	}

	return e.submit(ctx, e.params, subject, emailBody(payload))
}

// emailBody renders the plain-text body: the transition, what the probe got
// versus expected, node details, and the full probe log.
func emailBody(payload models.AlertPayload) string {
	direction := "is down"
	if payload.Status.Status == models.StatusOK {
		direction = "is up"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "The following monitor %s: %s\n\n", direction, payload.MonitorName)
	fmt.Fprintf(&b, "Got result: %s\n", payload.Status.ActualResult)
	fmt.Fprintf(&b, "Expected result: %s\n\n", payload.Status.ExpectedResult)
	fmt.Fprintf(&b, "Description: %s\n", payload.Status.Description)
	fmt.Fprintf(&b, "Timestamp: %s\n", payload.Status.Timestamp.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Hostname: %s\n", payload.NodeInfo.Hostname)
	fmt.Fprintf(&b, "Platform: %s\n", payload.NodeInfo.Platform)
	fmt.Fprintf(&b, "CPU info: %s\n", payload.NodeInfo.CPU)
	fmt.Fprintf(&b, "RAM info: %s\n\n", payload.NodeInfo.RAM)

	if len(payload.Status.Log) > 0 {
		b.WriteString("Monitor log below\n")
		for _, line := range payload.Status.Log {
			fmt.Fprintf(&b, "%s: %s\n", line.Timestamp.UTC().Format(time.RFC3339), line.Value)
		}
		b.WriteString("\n\n")
	}

	b.WriteString("You can view your monitors by logging in at www.openmonitors.com\n")
	return b.String()
}

// smtpSubmit performs the SMTP submission.
func smtpSubmit(ctx context.Context, params emailParams, subject, body string) error {
	msg := mail.NewMsg()
	if err := msg.From(params.From); err != nil {
		return fmt.Errorf("invalid from address: %w", err)
	}
	if err := msg.To(params.Recipients...); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	policy, err := tlsPolicy(params.TLS)
	if err != nil {
		return err
	}

	client, err := mail.NewClient(params.Host,
		mail.WithPort(*params.Port),
		mail.WithTLSPolicy(policy),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(params.Username),
		mail.WithPassword(params.Password),
	)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	return client.DialAndSendWithContext(ctx, msg)
}

// tlsPolicy maps the alert's tls field onto a transport policy: TLS demands
// an encrypted upgrade, STARTTLS upgrades only when the server offers it,
// NONE stays in plaintext.
func tlsPolicy(mode string) (mail.TLSPolicy, error) {
	switch mode {
	case "NONE":
		return mail.NoTLS, nil
	case "TLS":
		return mail.TLSMandatory, nil
	case "STARTTLS":
		return mail.TLSOpportunistic, nil
	default:
		return 0, fmt.Errorf("unknown tls mode: %q", mode)
	}
}
