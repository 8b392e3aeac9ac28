package email

import (
	"fmt"
	"html"
	"strings"

	"bluecarbon/internal/config"
	"bluecarbon/internal/models"
)

// Templates provides email template generation.
type Templates struct {
	cfg *config.Config
}

// NewTemplates creates a new templates instance.
func NewTemplates(cfg *config.Config) *Templates {
	return &Templates{cfg: cfg}
}

// baseHTML wraps content in a consistent HTML email template.
func (t *Templates) baseHTML(title, content string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <title>%s</title>
    <style>
        body { font-family: -apple-system, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #1f2937; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background: #0f766e; color: white; padding: 20px; text-align: center; border-radius: 8px 8px 0 0; }
        .content { background: #f0fdfa; padding: 20px; border: 1px solid #ccfbf1; }
        .footer { padding: 15px; text-align: center; font-size: 12px; color: #6b7280; }
        .info-box { background: white; border: 1px solid #d1d5db; border-radius: 6px; padding: 15px; margin: 15px 0; }
        .label { font-weight: 600; }
        code { background: #e5e7eb; padding: 2px 6px; border-radius: 4px; font-family: monospace; }
    </style>
</head>
<body>
    <div class="header"><h1>%s</h1></div>
    <div class="content">%s</div>
    <div class="footer"><p>%s</p><p><a href="%s">%s</a></p></div>
</body>
</html>`,
		html.EscapeString(title),
		html.EscapeString(t.cfg.SiteTitle),
		content,
		html.EscapeString(t.cfg.SiteTitle),
		html.EscapeString(t.cfg.BaseURL),
		html.EscapeString(t.cfg.BaseURL),
	)
}

func siteLabel(sub *models.Submission) string {
	label := "Restoration"
	if sub.Type != "" {
		label = strings.ToUpper(sub.Type[:1]) + sub.Type[1:]
	}
	if sub.Location.Address != "" {
		label += " site at " + sub.Location.Address
	} else {
		label += fmt.Sprintf(" site at %.5f, %.5f", sub.Location.Lat, sub.Location.Lng)
	}
	return label
}

// SubmissionApproved generates the email sent when credits were issued.
func (t *Templates) SubmissionApproved(sub *models.Submission, owner *models.User, credit *models.CarbonCredit) (subject, htmlBody, textBody string) {
	subject = fmt.Sprintf("[%s] Your submission was approved: %d credits issued", t.cfg.SiteTitle, credit.Amount)
	label := siteLabel(sub)

	content := fmt.Sprintf(`
        <p>Hello %s,</p>
        <p>Your restoration submission has been verified and carbon credits were issued to your wallet.</p>
        <div class="info-box">
            <p><span class="label">Site:</span> %s</p>
            <p><span class="label">Area:</span> %.2f acres</p>
            <p><span class="label">Credits issued:</span> %d</p>
            <p><span class="label">Wallet:</span> <code>%s</code></p>
            <p><span class="label">Transaction:</span> <code>%s</code></p>
        </div>`,
		html.EscapeString(owner.DisplayName()),
		html.EscapeString(label),
		sub.Area,
		credit.Amount,
		html.EscapeString(owner.WalletAddress),
		html.EscapeString(credit.BlockchainTx),
	)
	htmlBody = t.baseHTML("Submission approved", content)

	textBody = fmt.Sprintf(`Hello %s,

Your restoration submission has been verified and carbon credits were issued to your wallet.

Site: %s
Area: %.2f acres
Credits issued: %d
Wallet: %s
Transaction: %s

-- %s
`, owner.DisplayName(), label, sub.Area, credit.Amount, owner.WalletAddress, credit.BlockchainTx, t.cfg.SiteTitle)

	return subject, htmlBody, textBody
}

// SubmissionRejected generates the email sent when a submission is rejected.
func (t *Templates) SubmissionRejected(sub *models.Submission, owner *models.User, reason string) (subject, htmlBody, textBody string) {
	subject = fmt.Sprintf("[%s] Your submission was not approved", t.cfg.SiteTitle)
	label := siteLabel(sub)

	content := fmt.Sprintf(`
        <p>Hello %s,</p>
        <p>Your restoration submission was reviewed and could not be approved.</p>
        <div class="info-box">
            <p><span class="label">Site:</span> %s</p>
            <p><span class="label">Reason:</span> %s</p>
        </div>
        <p>You can submit new photos of the site from the mobile app.</p>`,
		html.EscapeString(owner.DisplayName()),
		html.EscapeString(label),
		html.EscapeString(reason),
	)
	htmlBody = t.baseHTML("Submission not approved", content)

	textBody = fmt.Sprintf(`Hello %s,

Your restoration submission was reviewed and could not be approved.

Site: %s
Reason: %s

You can submit new photos of the site from the mobile app.

-- %s
`, owner.DisplayName(), label, reason, t.cfg.SiteTitle)

	return subject, htmlBody, textBody
}
