package authn

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/url"

	"github.com/nousware/authkit/pkg/email"
)

// Notifier turns token events into transactional emails. It satisfies
// the dispatcher the token lifecycle expects.
type Notifier struct {
	sender      email.Sender
	baseURL     string
	frontendURL string
	appName     string
}

// NewNotifier creates a Notifier. baseURL is the backend's public base
// URL; verification links point at the backend, reset links at the
// frontend form that collects the new password.
func NewNotifier(sender email.Sender, baseURL, frontendURL, appName string) *Notifier {
	return &Notifier{
		sender:      sender,
		baseURL:     baseURL,
		frontendURL: frontendURL,
		appName:     appName,
	}
}

var verifyTmpl = template.Must(template.New("verify").Parse(`
<h2>Welcome to {{.AppName}}</h2>
<p>Confirm your email address to activate your account. The link is valid for 15 minutes.</p>
<p><a href="{{.Link}}">Verify my email</a></p>
<p>If you did not create an account, you can ignore this message.</p>
`))

var resetTmpl = template.Must(template.New("reset").Parse(`
<h2>Password reset</h2>
<p>Someone asked to reset the password for your {{.AppName}} account. The link is valid for one hour.</p>
<p><a href="{{.Link}}">Choose a new password</a></p>
<p>If this wasn't you, your password is still safe and nothing changes.</p>
`))

type linkParams struct {
	AppName string
	Link    string
}

func (n *Notifier) SendVerification(ctx context.Context, to, tokenValue string) error {
	link := n.baseURL + "/api/auth/verify?token=" + url.QueryEscape(tokenValue)
	body, err := renderTemplate(verifyTmpl, linkParams{AppName: n.appName, Link: link})
	if err != nil {
		return err
	}
	return n.sender.SendEmail(ctx, email.SendEmailParams{
		SendTo:   to,
		Subject:  fmt.Sprintf("Verify your email for %s", n.appName),
		BodyHTML: body,
		Tag:      "email-verify",
	})
}

func (n *Notifier) SendPasswordReset(ctx context.Context, to, tokenValue string) error {
	link := n.frontendURL + "/reset-password?token=" + url.QueryEscape(tokenValue)
	body, err := renderTemplate(resetTmpl, linkParams{AppName: n.appName, Link: link})
	if err != nil {
		return err
	}
	return n.sender.SendEmail(ctx, email.SendEmailParams{
		SendTo:   to,
		Subject:  fmt.Sprintf("Reset your %s password", n.appName),
		BodyHTML: body,
		Tag:      "password-reset",
	})
}

func renderTemplate(t *template.Template, params linkParams) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, params); err != nil {
		return "", fmt.Errorf("render email: %w", err)
	}
	return buf.String(), nil
}
