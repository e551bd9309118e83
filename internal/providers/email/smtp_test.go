package email

import (
	"context"
	"net/smtp"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRenderTemplates(t *testing.T) {
	subject, body, err := Render(TemplateConnectionInvite, map[string]any{
		"org_name":        "Acme Shipping",
		"target_org_name": "Blue Freight",
		"inviter_type":    "shipper",
		"review_url":      "https://app.example/connections",
	})
	require.NoError(t, err)
	require.Equal(t, "Acme Shipping wants to connect on freightdesk", subject)
	require.Contains(t, body, "Blue Freight")
	require.Contains(t, body, "they can send you freight inquiries")

	subject, _, err = Render(TemplateMemberInvite, map[string]any{"subject": "custom", "org_name": "x"})
	require.NoError(t, err)
	require.Equal(t, "custom", subject)

	_, _, err = Render("missing", nil)
	require.Error(t, err)
}

func TestSMTPProviderBuildsMessage(t *testing.T) {
	p := NewSMTP(Config{Host: "smtp.local", Port: 2525, From: "no-reply@freightdesk.local"})

	var gotAddr string
	var gotTo []string
	var gotMsg string
	p.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr = addr
		gotTo = to
		gotMsg = string(msg)
		require.Nil(t, a)
		return nil
	}

	err := p.SendTemplate(context.Background(), []string{"ops@blue.example"}, TemplateConnectionAccepted, map[string]any{
		"org_name":        "Blue Freight",
		"target_org_name": "Acme Shipping",
		"review_url":      "https://app.example/connections",
	})
	require.NoError(t, err)
	require.Equal(t, "smtp.local:2525", gotAddr)
	require.Equal(t, []string{"ops@blue.example"}, gotTo)
	require.True(t, strings.HasPrefix(gotMsg, "From: no-reply@freightdesk.local\r\n"))
	require.Contains(t, gotMsg, "Subject: Blue Freight accepted your connection request")
}

func TestSMTPProviderRequiresRecipients(t *testing.T) {
	p := NewSMTP(Config{Host: "smtp.local", Port: 25})
	require.Error(t, p.Send(context.Background(), nil, "s", "b"))
}
