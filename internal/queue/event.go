// Package queue defines message payloads exchanged over the message broker
// together with the publisher and the notification consumer.
package queue

// Queue names. Both queues are durable.
const (
	EmailMessageQueue = "order.email"
	TaskAbortedQueue  = "task.aborted"
)

// EmailMessage is published when an order confirmation email is due. The
// consumer delivers it; the order service never talks to a mail server.
type EmailMessage struct {
	ID             string `json:"id"`
	OrderNumber    string `json:"order_number"`
	SenderName     string `json:"sender_name"`
	SenderEmail    string `json:"sender_email"`
	RecipientName  string `json:"recipient_name"`
	RecipientEmail string `json:"recipient_email"`
	Subject        string `json:"subject"`
	Text           string `json:"text"`
	RequestedAt    string `json:"requested_at"`
}

// TaskAbortedEvent alerts operators that a task gave up after its last try.
type TaskAbortedEvent struct {
	TaskID        string `json:"task_id"`
	Name          string `json:"name"`
	NumberOfTried int    `json:"number_of_tried"`
	LastError     string `json:"last_error"`
	Data          string `json:"data"`
	AbortedAt     string `json:"aborted_at"`
}
