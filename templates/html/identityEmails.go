package templates

import (
	"fmt"
	"html"
)

// RenderCode generates branded HTML for a verification code email.
func RenderCode(code string) string {
	safeCode := html.EscapeString(code)
	body := fmt.Sprintf(`<p>Use the code below to verify your contact details:</p>
      <p style="font-size: 32px; font-weight: 700; letter-spacing: 8px; text-align: center; color: #0f766e;">%s</p>
      <p>This code will expire in 10 minutes. If you did not request it, you can safely ignore this email.</p>`, safeCode)
	return renderShell("Your verification code", body)
}

// RenderResetLink generates branded HTML for a password reset email.
func RenderResetLink(link string) string {
	safeLink := html.EscapeString(link)
	body := fmt.Sprintf(`<p>We received a request to reset your TradeLink password.</p>
      <p style="text-align: center;"><a href="%s" style="display: inline-block; padding: 12px 28px; background-color: #0f766e; color: #ffffff; text-decoration: none; border-radius: 6px; font-weight: 600;">Reset password</a></p>
      <p>The link expires in 1 hour. If you did not request a reset, no action is needed and your password remains unchanged.</p>`, safeLink)
	return renderShell("Reset your password", body)
}

func renderShell(heading, bodyHTML string) string {
	safeHeading := html.EscapeString(heading)
	return fmt.Sprintf(`<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.0 Strict//EN" "http://www.w3.org/TR/xhtml1/DTD/xhtml1-strict.dtd">
<html xmlns="http://www.w3.org/1999/xhtml">
<head>
  <meta http-equiv="Content-Type" content="text/html; charset=utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1, minimum-scale=1, maximum-scale=1">
  <title>%s</title>
  <style type="text/css">
    body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; margin: 0; padding: 0; background-color: #f4f5f7; }
    .container { max-width: 600px; margin: 0 auto; background-color: #ffffff; }
    .header { background: linear-gradient(135deg, #0f766e 0%%, #134e4a 100%%); padding: 40px 30px; text-align: center; }
    .header h1 { color: #fff; margin: 0; font-size: 24px; font-weight: 700; }
    .content { padding: 40px 30px; color: #1f2937; line-height: 1.6; font-size: 15px; }
    .footer { padding: 30px; text-align: center; color: #6b7280; font-size: 12px; border-top: 1px solid #e5e7eb; }
    .footer a { color: #0f766e; text-decoration: none; }
  </style>
</head>
<body>
  <div class="container">
    <div class="header">
      <h1>%s</h1>
    </div>
    <div class="content">
      %s
    </div>
    <div class="footer">
      <p>&copy; TradeLink | <a href="https://www.tradelink.app">tradelink.app</a></p>
      <p><a href="https://www.tradelink.app/contact-us">Contact Support</a></p>
    </div>
  </div>
</body>
</html>`, safeHeading, safeHeading, bodyHTML)
}
