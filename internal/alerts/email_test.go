package alerts

import (
	"context"
	"strings"
	"testing"

	"github.com/wneessen/go-mail"
)

func testEmailBody() map[string]any {
	return map[string]any{
		"host":       "smtp.example.com",
		"port":       587,
		"tls":        "STARTTLS",
		"username":   "mailer",
		"password":   "hunter2",
		"from":       "alerts@example.com",
		"recipients": []string{"ops@example.com"},
	}
}

func TestEmailSendRendersDownAlert(t *testing.T) {
	email, err := NewEmail(testEmailBody())
	if err != nil {
		t.Fatalf("NewEmail: %v", err)
	}

	var gotSubject, gotBody string
	email.submit = func(_ context.Context, _ emailParams, subject, body string) error {
		gotSubject = subject
		gotBody = body
		return nil
	}

	if err := email.Send(context.Background(), downPayload()); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if gotSubject != "[Schnooty] Monitor api-prod is DOWN" {
		t.Errorf("subject = %q", gotSubject)
	}
	for _, want := range []string{
		"The following monitor is down: api-prod",
		"Got result: 500 Internal Server Error",
		"Expected result: 200-level status code",
		"Description: GET https://example.com/health has success status code",
		"Hostname: node-1",
		"Platform: linux",
		"CPU info: 8 logical cores, 4 physical cores",
		"RAM info: 1048576 KB used of 2097152 total (50.00 %)",
		"Monitor log below",
		"Beginning GET request to https://example.com/health",
		"You can view your monitors by logging in at www.openmonitors.com",
	} {
		if !strings.Contains(gotBody, want) {
			t.Errorf("body missing %q\nbody:\n%s", want, gotBody)
		}
	}
}

func TestEmailSendRendersRecovery(t *testing.T) {
	email, err := NewEmail(testEmailBody())
	if err != nil {
		t.Fatalf("NewEmail: %v", err)
	}

	var gotSubject, gotBody string
	email.submit = func(_ context.Context, _ emailParams, subject, body string) error {
		gotSubject = subject
		gotBody = body
		return nil
	}

	if err := email.Send(context.Background(), okPayload()); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if gotSubject != "[Schnooty] Monitor api-prod has recovered" {
		t.Errorf("subject = %q", gotSubject)
	}
	if !strings.Contains(gotBody, "The following monitor is up: api-prod") {
		t.Errorf("body missing the recovery line:\n%s", gotBody)
	}
}

func TestEmailSendRejectsMissingParams(t *testing.T) {
	body := testEmailBody()
	delete(body, "host")

	email, err := NewEmail(body)
	if err != nil {
		t.Fatalf("NewEmail: %v", err)
	}

	called := false
	email.submit = func(context.Context, emailParams, string, string) error {
		called = true
		return nil
	}

	if err := email.Send(context.Background(), downPayload()); err == nil {
		t.Fatal("expected a misconfiguration error")
	}
	if called {
		t.Error("submit must not run for a misconfigured alert")
	}
}

func TestEmailSkipsLogSectionWhenEmpty(t *testing.T) {
	payload := downPayload()
	payload.Status.Log = nil

	body := emailBody(payload)
	if strings.Contains(body, "Monitor log below") {
		t.Errorf("body must omit the log section when the probe log is empty:\n%s", body)
	}
}

func TestTLSPolicyMapping(t *testing.T) {
	testCases := []struct {
		mode    string
		want    mail.TLSPolicy
		wantErr bool
	}{
		{mode: "NONE", want: mail.NoTLS},
		{mode: "TLS", want: mail.TLSMandatory},
		{mode: "STARTTLS", want: mail.TLSOpportunistic},
		{mode: "starttls", wantErr: true},
		{mode: "", wantErr: true},
	}

	for _, tc := range testCases {
		got, err := tlsPolicy(tc.mode)
		if (err != nil) != tc.wantErr {
			t.Errorf("tlsPolicy(%q) error = %v, wantErr = %v", tc.mode, err, tc.wantErr)
			continue
		}
		if !tc.wantErr && got != tc.want {
			t.Errorf("tlsPolicy(%q) = %v, want %v", tc.mode, got, tc.want)
		}
	}
}
