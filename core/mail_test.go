package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmailMessage_Render(t *testing.T) {
	conf := &Config{AppName: "UD Leads", FrontendBaseURL: "https://leads.test"}
	data := struct{ Name, UID, Token string }{Name: "Ann", UID: "u1", Token: "t0k"}

	for _, name := range []string{"password_reset", "lead_assigned", "visit_reminder"} {
		t.Run(name+" parses with base layout", func(t *testing.T) {
			tmplInit.Do(func() { templates, templatesErr = parseTemplates() })
			require.NoError(t, templatesErr)
			entry, ok := templates[name]
			require.True(t, ok)
			assert.NotNil(t, entry.text)
			assert.NotNil(t, entry.html)
		})
	}

	msg := &EmailMessage{TemplateName: "password_reset", TemplateData: data}
	require.NoError(t, msg.Render(conf))
	assert.Contains(t, msg.TextContent, "Hi Ann,")
	assert.Contains(t, msg.TextContent, "https://leads.test/password-reset/u1/t0k")
	assert.Contains(t, msg.TextContent, "The UD Leads team")
	assert.NotEmpty(t, msg.HTMLContent)

	msg = &EmailMessage{TemplateName: "nope"}
	assert.EqualError(t, msg.Render(conf), `unknown email template "nope"`)
}
