package ubx

// Router dispatches frames to handlers keyed by message type.
//
// Handlers run synchronously on the framer's goroutine and see the framer's
// payload buffer; they must copy anything they keep.
type Router struct {
	handlers map[MessageType]func(Frame)

	// Unhandled receives frames with no registered handler. Optional.
	Unhandled func(Frame)
}

func NewRouter() *Router {
	return &Router{handlers: make(map[MessageType]func(Frame))}
}

// Handle registers fn for t, replacing any earlier handler. A nil fn removes
// the registration.
func (r *Router) Handle(t MessageType, fn func(Frame)) {
	if r.handlers == nil {
		r.handlers = make(map[MessageType]func(Frame))
	}
	if fn == nil {
		delete(r.handlers, t)
		return
	}
	r.handlers[t] = fn
}

// HandleFrame is suitable as FrameHandler.Frame.
func (r *Router) HandleFrame(f Frame) {
	if fn, ok := r.handlers[f.Type]; ok {
		fn(f)
		return
	}
	if r.Unhandled != nil {
		r.Unhandled(f)
	}
}
