package email

import (
	"bluecarbon/internal/config"
	"bluecarbon/internal/models"
)

// Notifier emails submitters about review decisions.
type Notifier struct {
	service   *Service
	templates *Templates
}

// NewNotifier creates a new email notifier.
func NewNotifier(cfg *config.Config, service *Service) *Notifier {
	return &Notifier{
		service:   service,
		templates: NewTemplates(cfg),
	}
}

// NotifySubmissionApproved tells the owner their credits were issued.
func (n *Notifier) NotifySubmissionApproved(sub *models.Submission, owner *models.User, credit *models.CarbonCredit) {
	if !n.service.IsEnabled() || owner == nil || owner.Email == "" || credit == nil {
		return
	}

	subject, htmlBody, textBody := n.templates.SubmissionApproved(sub, owner, credit)
	n.service.SendAsync([]string{owner.Email}, subject, htmlBody, textBody)
}

// NotifySubmissionRejected tells the owner their submission was rejected.
func (n *Notifier) NotifySubmissionRejected(sub *models.Submission, owner *models.User, reason string) {
	if !n.service.IsEnabled() || owner == nil || owner.Email == "" {
		return
	}

	subject, htmlBody, textBody := n.templates.SubmissionRejected(sub, owner, reason)
	n.service.SendAsync([]string{owner.Email}, subject, htmlBody, textBody)
}
