package notify

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/Aerzsu/dental-clinic-sub000/internal/patient"
	"github.com/Aerzsu/dental-clinic-sub000/internal/schedule"
)

// Mailer sends booking emails through SendGrid. All sends are
// fire-and-forget: failures are logged and never block a state change.
type Mailer struct {
	client    *sendgrid.Client
	fromEmail string
	fromName  string
	log       zerolog.Logger
}

func NewMailer(apiKey, fromEmail, fromName string, logger zerolog.Logger) *Mailer {
	return &Mailer{
		client:    sendgrid.NewSendClient(apiKey),
		fromEmail: fromEmail,
		fromName:  fromName,
		log:       logger,
	}
}

func (m *Mailer) BookingConfirmed(ctx context.Context, p *patient.Patient, b *schedule.Booking) {
	if p.Email == "" {
		return
	}
	subject := fmt.Sprintf("Your appointment on %s is confirmed", b.Date.Format("Jan 2, 2006"))
	body := fmt.Sprintf(
		"Hi %s,\n\nYour %s appointment on %s has been confirmed.\n\n"+
			"Please arrive a few minutes early. If you need to cancel, do so at "+
			"least a day in advance.\n\nSee you soon!",
		p.FirstName, periodLabel(b.Period), b.Date.Format("Monday, Jan 2, 2006"),
	)
	m.send(p.Email, p.FullName(), subject, body)
}

func (m *Mailer) BookingRejected(ctx context.Context, email, name string, b *schedule.Booking) {
	if email == "" {
		return
	}
	subject := fmt.Sprintf("About your appointment request for %s", b.Date.Format("Jan 2, 2006"))
	body := fmt.Sprintf(
		"Hi %s,\n\nUnfortunately we could not accommodate your %s appointment "+
			"request for %s. Please pick another date through the booking page, "+
			"or call the clinic and we will find a slot for you.",
		name, periodLabel(b.Period), b.Date.Format("Monday, Jan 2, 2006"),
	)
	m.send(email, name, subject, body)
}

// BookingReminder is used by the reminder worker for next-day confirmed
// bookings.
func (m *Mailer) BookingReminder(ctx context.Context, p *patient.Patient, b *schedule.Booking) {
	if p.Email == "" {
		return
	}
	subject := fmt.Sprintf("Reminder: appointment tomorrow (%s)", periodLabel(b.Period))
	body := fmt.Sprintf(
		"Hi %s,\n\nThis is a reminder of your %s appointment tomorrow, %s.\n\n"+
			"See you then!",
		p.FirstName, periodLabel(b.Period), b.Date.Format("Monday, Jan 2, 2006"),
	)
	m.send(p.Email, p.FullName(), subject, body)
}

func (m *Mailer) send(toEmail, toName, subject, plainText string) {
	from := mail.NewEmail(m.fromName, m.fromEmail)
	to := mail.NewEmail(toName, toEmail)
	message := mail.NewSingleEmail(from, subject, to, plainText, "")

	resp, err := m.client.Send(message)
	if err != nil {
		m.log.Warn().Err(err).Str("to", toEmail).Str("subject", subject).Msg("sendgrid send failed")
		return
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		m.log.Warn().Int("status", resp.StatusCode).Str("to", toEmail).Str("subject", subject).Msg("sendgrid rejected message")
		return
	}
	m.log.Debug().Str("to", toEmail).Str("subject", subject).Msg("email sent")
}

func periodLabel(p schedule.Period) string {
	if p == schedule.PeriodMorning {
		return "morning"
	}
	return "afternoon"
}
