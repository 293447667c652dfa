package mailer

import (
	"fmt"
	"html"
)

// renderLayout wraps body HTML in the shared portal email frame. All dynamic
// text passes through html.EscapeString before reaching here.
func renderLayout(heading, bodyHTML, ctaLabel, ctaURL string) string {
	cta := ""
	if ctaURL != "" {
		cta = fmt.Sprintf(
			`<p style="margin-top:24px;"><a href="%s" style="display:inline-block;padding:12px 24px;background-color:#1a3c6e;color:#ffffff;text-decoration:none;border-radius:4px;">%s</a></p>`,
			ctaURL, html.EscapeString(ctaLabel))
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="margin:0;padding:0;background-color:#f4f6f8;font-family:Arial,Helvetica,sans-serif;">
  <div style="max-width:600px;margin:0 auto;padding:32px 16px;">
    <div style="background-color:#ffffff;border-radius:8px;padding:32px;">
      <h2 style="color:#1a3c6e;margin-top:0;">%s</h2>
      %s
      %s
    </div>
    <p style="color:#8a94a0;font-size:12px;text-align:center;margin-top:16px;">
      You are receiving this email because you have an account on the client portal.
      You can adjust your email preferences in Settings.
    </p>
  </div>
</body>
</html>`, html.EscapeString(heading), bodyHTML, cta)
}

func paragraph(text string) string {
	return fmt.Sprintf(`<p style="color:#3c4654;line-height:1.6;">%s</p>`, html.EscapeString(text))
}

func greeting(firstName string) string {
	if firstName == "" {
		return paragraph("Hello,")
	}
	return paragraph(fmt.Sprintf("Hi %s,", firstName))
}
