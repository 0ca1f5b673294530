package session

import (
	"sync"
	"time"

	"github.com/HyphaGroup/oubliette/internal/agent"
)

// EventKind enumerates the session event-bus variants. Distinct from
// ActiveStatus: a status change is itself carried as one event kind among
// several, not the only thing the bus transports.
type EventKind string

const (
	EventStatusChanged EventKind = "status_changed"
	EventOutput        EventKind = "output"
	EventError         EventKind = "error"
	EventToolStart     EventKind = "tool_start"
	EventToolComplete  EventKind = "tool_complete"
	EventTokenUsage    EventKind = "token_usage"
	EventProgress      EventKind = "progress"
	EventThinking      EventKind = "thinking"
	EventCompleted     EventKind = "completed"
	EventCancelled     EventKind = "cancelled"
)

// OutputKind classifies an Output event's origin.
type OutputKind string

const (
	OutputAssistant OutputKind = "assistant"
	OutputSystem    OutputKind = "system"
	OutputUser      OutputKind = "user"
	OutputTool      OutputKind = "tool"
	OutputErrorKind OutputKind = "error"
	OutputStderr    OutputKind = "stderr"
)

// SessionEvent is the tagged-union payload fanned out on a session's event
// bus. Only the fields relevant to Kind are populated; like rtp.AuthConfig
// and skills.Config it is one discriminant-plus-fields struct rather than a
// Go interface hierarchy, since the variant set is closed.
type SessionEvent struct {
	Kind      EventKind  `json:"kind"`
	SessionID string     `json:"sessionId"`
	Timestamp time.Time  `json:"timestamp"`
	OldStatus ActiveStatus `json:"oldStatus,omitempty"`
	NewStatus ActiveStatus `json:"newStatus,omitempty"`
	Content   string     `json:"content,omitempty"`
	OutputOf  OutputKind `json:"outputKind,omitempty"`
	Message   string     `json:"message,omitempty"`
	Code      string     `json:"code,omitempty"`
	Tool      string     `json:"tool,omitempty"`
	ToolID    string     `json:"toolId,omitempty"`
	Success   bool       `json:"success,omitempty"`
	TokensIn  int        `json:"tokensIn,omitempty"`
	TokensOut int        `json:"tokensOut,omitempty"`
	CacheRead int        `json:"cacheRead,omitempty"`
	CacheWrite int       `json:"cacheWrite,omitempty"`
	Progress  int        `json:"progress,omitempty"`
	Total     int        `json:"total,omitempty"`
	Summary   string     `json:"summary,omitempty"`
}

// eventSubscriberCapacity bounds each subscriber's pending queue. A subscriber
// that cannot keep up loses its oldest unread event rather than blocking the
// session that is producing them (lossy back-pressure, not a global lock).
const eventSubscriberCapacity = 256

// EventBus fans every SessionEvent out on two independent topics: one scoped
// to the owning session, one global across every session the bus serves.
// Both carry the same payload; a subscriber picks whichever it needs.
type EventBus struct {
	mu      sync.Mutex
	global  *topic
	perSess map[string]*topic
}

// topic is a single broadcast point: every subscriber gets its own bounded
// channel, and a full channel drops its oldest queued event to make room
// for the new one instead of blocking the publisher.
type topic struct {
	mu   sync.Mutex
	subs map[int]chan *SessionEvent
	next int
}

func newTopic() *topic {
	return &topic{subs: make(map[int]chan *SessionEvent)}
}

func (t *topic) subscribe() (int, <-chan *SessionEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.next
	t.next++
	ch := make(chan *SessionEvent, eventSubscriberCapacity)
	t.subs[id] = ch
	return id, ch
}

func (t *topic) unsubscribe(id int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ch, ok := t.subs[id]; ok {
		delete(t.subs, id)
		close(ch)
	}
}

func (t *topic) publish(ev *SessionEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, ch := range t.subs {
		select {
		case ch <- ev:
		default:
			// Subscriber queue is full: drop the oldest queued event and
			// retry once. A subscriber that is still full after that is
			// falling behind badly enough that dropping this event too is
			// the correct lossy-by-design behavior.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- ev:
			default:
			}
		}
	}
}

// NewEventBus creates an empty bus. Per-session topics are created lazily on
// first publish or subscribe for that session id.
func NewEventBus() *EventBus {
	return &EventBus{global: newTopic(), perSess: make(map[string]*topic)}
}

func (b *EventBus) sessionTopic(sessionID string) *topic {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.perSess[sessionID]
	if !ok {
		t = newTopic()
		b.perSess[sessionID] = t
	}
	return t
}

// Publish fans ev out to every subscriber of the session's own topic and
// every subscriber of the bus-wide global topic.
func (b *EventBus) Publish(ev *SessionEvent) {
	b.sessionTopic(ev.SessionID).publish(ev)
	b.global.publish(ev)
}

// Subscribe returns a bounded, lossy channel of events for one session.
// The returned cancel func must be called to release the subscription.
func (b *EventBus) Subscribe(sessionID string) (<-chan *SessionEvent, func()) {
	t := b.sessionTopic(sessionID)
	id, ch := t.subscribe()
	return ch, func() { t.unsubscribe(id) }
}

// SubscribeGlobal returns a bounded, lossy channel of events across every
// session the bus has ever seen, past or present.
func (b *EventBus) SubscribeGlobal() (<-chan *SessionEvent, func()) {
	id, ch := b.global.subscribe()
	return ch, func() { b.global.unsubscribe(id) }
}

// DropSession releases a session's topic and its subscribers once the
// session is terminal and no further events will be published for it.
func (b *EventBus) DropSession(sessionID string) {
	b.mu.Lock()
	t, ok := b.perSess[sessionID]
	if ok {
		delete(b.perSess, sessionID)
	}
	b.mu.Unlock()

	if !ok {
		return
	}
	t.mu.Lock()
	ids := make([]int, 0, len(t.subs))
	for id := range t.subs {
		ids = append(ids, id)
	}
	t.mu.Unlock()
	for _, id := range ids {
		t.unsubscribe(id)
	}
}

// translateStreamEvent maps an agent.StreamEvent onto the session event-bus
// taxonomy so executors written against the older per-backend event shape
// still populate the Session Kernel's own event bus.
func translateStreamEvent(sessionID string, event *agent.StreamEvent) *SessionEvent {
	ev := &SessionEvent{SessionID: sessionID, Timestamp: time.Now()}
	switch event.Type {
	case agent.StreamEventToolCall:
		ev.Kind = EventToolStart
		ev.Tool = event.ToolName
	case agent.StreamEventToolResult:
		ev.Kind = EventToolComplete
		ev.Tool = event.ToolName
		ev.Success = !event.IsError
	case agent.StreamEventError:
		ev.Kind = EventError
		ev.Message = event.Text
	case agent.StreamEventCompletion:
		ev.Kind = EventCompleted
		ev.Summary = event.FinalText
	case agent.StreamEventSystem:
		ev.Kind = EventOutput
		ev.OutputOf = OutputSystem
		ev.Content = event.Text
	default:
		ev.Kind = EventOutput
		if event.Role == "assistant" {
			ev.OutputOf = OutputAssistant
		} else {
			ev.OutputOf = OutputUser
		}
		ev.Content = event.Text
	}
	return ev
}
