package core

import "net/mail"

// Notification is an outbound event destined for a student's contacts.
// It is dispatched fire-and-forget: delivery failures are logged by the
// implementation and never propagate to the write path that emitted it.
type Notification struct {
	// Event identifies the trigger, e.g. "attendance.recorded".
	Event     string
	StudentID string
	Subject   string
	Body      string

	To []mail.Address

	// Data carries extra event context for transports that want it.
	Data map[string]interface{}
}

func (n *Notification) HasRecipients() bool {
	return len(n.To) > 0
}

// NotificationService is any service that can dispatch notifications.
type NotificationService interface {
	// SendNotifications dispatches notifications concurrently.
	SendNotifications(notifs ...*Notification)
}
