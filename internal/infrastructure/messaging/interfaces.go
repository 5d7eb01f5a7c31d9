// Package messaging defines interfaces for real-time communication.
package messaging

// Publisher fans an event out to every connected subscriber. Publish never
// blocks on a subscriber.
type Publisher interface {
	Publish(eventType string, payload any)
	ClientCount() int
}
