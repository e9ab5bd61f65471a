package notifyhook

// Option configures an Extension.
type Option func(*Extension)

// PayloadFunc builds a custom notification payload for a specific event
// type. The args parameter is the default payload and the returned value
// becomes Notification.Data.
type PayloadFunc func(args any) (any, error)

// WithEvents replaces the enabled event types. Unknown types are silently
// ignored.
func WithEvents(events ...string) Option {
	return func(h *Extension) {
		h.enabled = make(map[string]bool, len(events))
		for _, e := range events {
			h.enabled[e] = true
		}
	}
}

// WithPayloadFunc registers a custom payload builder for the given event
// type. The function replaces the default payload for that event.
func WithPayloadFunc(eventType string, fn PayloadFunc) Option {
	return func(h *Extension) {
		if h.payloads == nil {
			h.payloads = make(map[string]PayloadFunc)
		}
		h.payloads[eventType] = fn
	}
}
