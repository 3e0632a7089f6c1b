package common

// EmailSender is the outbound mail port. Production wires an SMTP or API
// backed implementation; tests and local runs use the fakes below.
type EmailSender interface {
	Send(to, subject, html string) error
}

// Email is one captured message.
type Email struct {
	To      string
	Subject string
	HTML    string
}

// InMemoryEmail records sent mail for assertions.
type InMemoryEmail struct {
	Outbox []Email
}

func (m *InMemoryEmail) Send(to, subject, html string) error {
	if m == nil {
		return nil
	}
	m.Outbox = append(m.Outbox, Email{To: to, Subject: subject, HTML: html})
	return nil
}

// NopEmailSender drops all mail. Used when no sender address is configured.
type NopEmailSender struct{}

func (NopEmailSender) Send(string, string, string) error { return nil }
