package db

import "sync"

// Topic identifies a class of local data whose mutations subscribers
// may want to observe.
type Topic string

const (
	TopicLikes     Topic = "likes"
	TopicDownloads Topic = "downloads"
	TopicFavorites Topic = "favorites"
	TopicMetadata  Topic = "metadata"
	TopicPlaylists Topic = "playlists"
	TopicStarred   Topic = "starred_playlists"
)

// Notifier is an in-process change bus. Repositories publish after a
// successful write; watchers subscribe to re-read affected rows.
//
// Subscriber channels have a buffer of one and publishes coalesce: a
// slow subscriber sees at least one notification for any burst of
// writes, never a backlog. Publish never blocks.
type Notifier struct {
	mu   sync.RWMutex
	subs map[Topic][]chan struct{}
}

// NewNotifier creates an empty change bus.
func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[Topic][]chan struct{})}
}

// Subscribe registers interest in a topic. The returned channel
// receives a signal after each relevant write. Call the returned
// cancel function to unsubscribe and release the channel.
func (n *Notifier) Subscribe(topic Topic) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	n.mu.Lock()
	n.subs[topic] = append(n.subs[topic], ch)
	n.mu.Unlock()

	cancel := func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		subs := n.subs[topic]
		for i, c := range subs {
			if c == ch {
				n.subs[topic] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
	}
	return ch, cancel
}

// Publish signals all subscribers of the given topics.
func (n *Notifier) Publish(topics ...Topic) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, topic := range topics {
		for _, ch := range n.subs[topic] {
			select {
			case ch <- struct{}{}:
			default:
				// Subscriber already has a pending signal.
			}
		}
	}
}
