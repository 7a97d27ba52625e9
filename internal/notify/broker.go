// Package notify fans transient user notifications out to live
// subscribers and keeps the most recent ones per user.
package notify

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"creative-studio-backend/internal/models"
)

const (
	DefaultRecentSize = 20
	subscriberBuffer  = 16
)

type Broker struct {
	recentSize int
	now        func() time.Time

	mu          sync.Mutex
	nextID      int64
	nextSub     int
	recent      map[string][]models.Notification
	subscribers map[string]map[int]chan models.Notification
}

type Option func(*Broker)

func WithRecentSize(n int) Option {
	return func(b *Broker) { b.recentSize = n }
}

func WithClock(now func() time.Time) Option {
	return func(b *Broker) { b.now = now }
}

func NewBroker(opts ...Option) *Broker {
	b := &Broker{
		recentSize:  DefaultRecentSize,
		now:         time.Now,
		recent:      make(map[string][]models.Notification),
		subscribers: make(map[string]map[int]chan models.Notification),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish records a notification for userID and hands it to every live
// subscriber. Subscribers that are not keeping up miss the notification.
func (b *Broker) Publish(userID, message string, kind models.NotificationType) models.Notification {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	n := models.Notification{
		ID:        b.nextID,
		Message:   message,
		Type:      kind,
		CreatedAt: b.now(),
	}

	recent := append(b.recent[userID], n)
	if len(recent) > b.recentSize {
		recent = recent[len(recent)-b.recentSize:]
	}
	b.recent[userID] = recent

	for _, ch := range b.subscribers[userID] {
		select {
		case ch <- n:
		default:
			logrus.WithField("user_id", userID).Debug("Notification dropped for slow subscriber")
		}
	}
	return n
}

// Recent returns userID's latest notifications, oldest first.
func (b *Broker) Recent(userID string) []models.Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.Notification{}, b.recent[userID]...)
}

// Subscribe registers a live subscriber. The returned function must be
// called to unsubscribe; it closes the channel.
func (b *Broker) Subscribe(userID string) (<-chan models.Notification, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSub++
	id := b.nextSub
	ch := make(chan models.Notification, subscriberBuffer)
	if b.subscribers[userID] == nil {
		b.subscribers[userID] = make(map[int]chan models.Notification)
	}
	b.subscribers[userID][id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subscribers[userID], id)
			if len(b.subscribers[userID]) == 0 {
				delete(b.subscribers, userID)
			}
			close(ch)
		})
	}
}

// Forget drops userID's retained notifications.
func (b *Broker) Forget(userID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.recent, userID)
}

// For returns a notifier that publishes to userID.
func (b *Broker) For(userID string) *UserNotifier {
	return &UserNotifier{broker: b, userID: userID}
}

type UserNotifier struct {
	broker *Broker
	userID string
}

func (n *UserNotifier) Notify(message string, kind models.NotificationType) {
	n.broker.Publish(n.userID, message, kind)
}
