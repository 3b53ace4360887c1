// Package notify delivers outbound user notifications such as email
// verification links. Delivery is fire-and-forget from the caller's point of
// view: implementations report errors but never retry.
package notify

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"net/url"
	"strings"
	"text/template"
	"time"
)

const KindVerification = "email_verification"

// Message is a rendered notification addressed to a single recipient.
type Message struct {
	Kind    string    `json:"kind"`
	UserID  string    `json:"userId"`
	To      string    `json:"to"`
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	Link    string    `json:"link,omitempty"`
	SentAt  time.Time `json:"sentAt"`
}

// Dispatcher sends a message to its recipient.
type Dispatcher interface {
	Send(ctx context.Context, m Message) error
}

//go:embed templates/*.tmpl
var templatesFS embed.FS

var templates = template.Must(template.New("notify").ParseFS(templatesFS, "templates/*.tmpl"))

// VerificationLink builds {base}/verify-email?userId=...&token=... with both
// values query-escaped.
func VerificationLink(baseURL, userID, secret string) string {
	return strings.TrimRight(baseURL, "/") + "/verify-email?userId=" + url.QueryEscape(userID) +
		"&token=" + url.QueryEscape(secret)
}

// VerificationMessage renders the verification email for the given recipient.
func VerificationMessage(userID, name, email, link string, validFor time.Duration) (Message, error) {
	data := struct {
		Name     string
		Link     string
		ValidFor string
	}{Name: name, Link: link, ValidFor: humanDuration(validFor)}

	subject, err := render("verification.subject", data)
	if err != nil {
		return Message{}, err
	}
	body, err := render("verification.body", data)
	if err != nil {
		return Message{}, err
	}

	return Message{
		Kind:    KindVerification,
		UserID:  userID,
		To:      email,
		Subject: subject,
		Body:    body,
		Link:    link,
	}, nil
}

func render(name string, data any) (string, error) {
	buf := bytes.NewBuffer(nil)
	if err := templates.ExecuteTemplate(buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func humanDuration(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		if h := int(d / time.Hour); h != 1 {
			return fmt.Sprintf("%d hours", h)
		}
		return "1 hour"
	case d >= time.Minute && d%time.Minute == 0:
		if m := int(d / time.Minute); m != 1 {
			return fmt.Sprintf("%d minutes", m)
		}
		return "1 minute"
	}
	return d.String()
}
