package scheduler

import (
	"context"
	"fmt"

	"github.com/amirphl/jobboard-alerts/alerting"
	"github.com/amirphl/jobboard-alerts/models"
)

// SiteNotificationWriter persists in-app notifications
type SiteNotificationWriter interface {
	Save(ctx context.Context, n *models.SiteNotification) error
}

// EmailTransport sends one html email
type EmailTransport interface {
	SendHTML(ctx context.Context, to, subject, html string) error
}

// MessagingClient sends one text message to a phone number on the messaging app
type MessagingClient interface {
	SendMessage(ctx context.Context, phone, text string) error
}

// PhoneListClient registers a number in the outbound call list
type PhoneListClient interface {
	AddToCallList(ctx context.Context, phone, spokenText string) error
}

// SiteSender writes the digest as an in-app notification of the alert owner
type SiteSender struct {
	writer SiteNotificationWriter
}

func NewSiteSender(writer SiteNotificationWriter) *SiteSender {
	return &SiteSender{writer: writer}
}

func (s *SiteSender) Channel() models.NotificationChannel { return models.ChannelSite }

func (s *SiteSender) Send(ctx context.Context, d Delivery) error {
	jobIDs := make([]int64, 0, len(d.Jobs))
	for _, j := range d.Jobs {
		jobIDs = append(jobIDs, int64(j.ID))
	}
	n := &models.SiteNotification{
		UserID:    d.Alert.OwnerID,
		AlertID:   d.Alert.ID,
		ReleaseID: d.ReleaseID,
		Title:     alerting.DigestSubject(d.Digest),
		Body:      alerting.RenderDigestText(d.Digest),
		JobIDs:    jobIDs,
	}
	if err := s.writer.Save(ctx, n); err != nil {
		return fmt.Errorf("save site notification: %w", err)
	}
	return nil
}

// EmailSender renders the html digest
type EmailSender struct {
	transport EmailTransport
}

func NewEmailSender(transport EmailTransport) *EmailSender {
	return &EmailSender{transport: transport}
}

func (s *EmailSender) Channel() models.NotificationChannel { return models.ChannelEmail }

func (s *EmailSender) Send(ctx context.Context, d Delivery) error {
	body, err := alerting.RenderDigestHTML(d.Digest)
	if err != nil {
		return err
	}
	return s.transport.SendHTML(ctx, d.Contact, alerting.DigestSubject(d.Digest), body)
}

// MessagingSender sends the plain text digest
type MessagingSender struct {
	client MessagingClient
}

func NewMessagingSender(client MessagingClient) *MessagingSender {
	return &MessagingSender{client: client}
}

func (s *MessagingSender) Channel() models.NotificationChannel { return models.ChannelMessaging }

func (s *MessagingSender) Send(ctx context.Context, d Delivery) error {
	return s.client.SendMessage(ctx, d.Contact, alerting.RenderDigestText(d.Digest))
}

// PhoneSender adds the contact to the call list with a short spoken summary
type PhoneSender struct {
	client PhoneListClient
}

func NewPhoneSender(client PhoneListClient) *PhoneSender {
	return &PhoneSender{client: client}
}

func (s *PhoneSender) Channel() models.NotificationChannel { return models.ChannelPhone }

func (s *PhoneSender) Send(ctx context.Context, d Delivery) error {
	return s.client.AddToCallList(ctx, d.Contact, SpokenSummary(d.Digest))
}

// SpokenSummary is the text read out to a caller for a digest
func SpokenSummary(p alerting.DigestPayload) string {
	if len(p.Jobs) == 1 {
		j := p.Jobs[0]
		return fmt.Sprintf("שלום %s. נמצאה משרה חדשה: %s ב%s, %s.", p.RecipientName, j.Title, j.Location, j.PaymentLabel)
	}
	return fmt.Sprintf("שלום %s. נמצאו %d משרות חדשות עבור ההתראה %s.", p.RecipientName, len(p.Jobs), p.AlertName)
}
