package service

import "fmt"

func magicLinkEmailTemplate(magicURL, appName string) (string, string) {
	subject := fmt.Sprintf("Sign in to %s", appName)
	body := fmt.Sprintf(`Click this link to sign in:
%s

Images you made in this browser before signing in will be moved to your account and kept.

This link expires in 10 minutes and can only be used once.

If you didn't request this, ignore this email.

Best,
The %s Team`, magicURL, appName)

	return subject, body
}

func claimEmailTemplate(claimURL, appName string) (string, string) {
	subject := fmt.Sprintf("Keep your %s images", appName)
	body := fmt.Sprintf(`Confirm your email to keep the images you made:
%s

Until you confirm, your images are deleted 3 days after upload. Once confirmed they are kept for good, and you can use this email to get back to them from any browser.

This link expires in 24 hours and can only be used once.

If you didn't request this, ignore this email.

Best,
The %s Team`, claimURL, appName)

	return subject, body
}
