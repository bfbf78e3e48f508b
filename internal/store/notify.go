package store

// Change identifies a mutated storage area so listeners can react to policy
// updates without re-reading everything.
type Change struct {
	Area  string
	Field string
}

// Storage areas and fields reported by change notifications.
const (
	AreaSettings = "settings"
	AreaChannels = "channels"

	FieldEnabled = "enabled"
	FieldListing = "listing"
)

// Subscribe registers a listener for change notifications. The channel is
// buffered; notifications that cannot be delivered immediately are dropped,
// so listeners must treat each delivery as "something changed, re-read".
// The channel is closed when the store closes.
func (s *Store) Subscribe() <-chan Change {
	ch := make(chan Change, 8)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		close(ch)
		return ch
	}
	s.subscribers = append(s.subscribers, ch)
	return ch
}

func (s *Store) notify(change Change) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for _, ch := range s.subscribers {
		select {
		case ch <- change:
		default:
		}
	}
}
