package training

// Event names pushed to subscribers.
const (
	EventState    = "state"
	EventFeedback = "feedback"
	EventProgress = "progress"
	EventResult   = "result"
	EventError    = "error"
	EventClosed   = "closed"
)

// Event is a state change pushed to subscribers. Data is JSON-encodable.
type Event struct {
	Name string
	Data any
}

// Subscribe registers a buffered event channel. The channel is closed when
// the controller closes; a subscription to a closed controller is returned
// already closed.
func (c *Controller) Subscribe() chan Event {
	ch := make(chan Event, 32)
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()

	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	if closed || c.subs == nil {
		close(ch)
		return ch
	}
	c.subs[ch] = struct{}{}
	return ch
}

// Unsubscribe removes ch. It is safe to call after the controller closed.
func (c *Controller) Unsubscribe(ch chan Event) {
	c.subsMu.Lock()
	delete(c.subs, ch)
	c.subsMu.Unlock()
}

// Subscribers returns the number of attached subscribers.
func (c *Controller) Subscribers() int {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	return len(c.subs)
}

func (c *Controller) broadcast(event Event) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	for ch := range c.subs {
		select {
		case ch <- event:
		default:
			// slow subscriber, skip
		}
	}
}

func (c *Controller) broadcastState() {
	c.broadcast(Event{Name: EventState, Data: c.Snapshot()})
}

func (c *Controller) closeSubscribers() {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	for ch := range c.subs {
		close(ch)
	}
	c.subs = nil
}
