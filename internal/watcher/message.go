package watcher

// Sink receives everything a watch session reports, in the order it happened.
// Deliver is called from the session worker and must not block; implementations
// hand the message to the consumer's own goroutine rather than applying it in place.
type Sink interface {
	Deliver(msg Message)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(msg Message)

// Deliver calls f(msg).
func (f SinkFunc) Deliver(msg Message) { f(msg) }

// Origin identifies the session a message came from.
type Origin struct {
	SessionID string
	Target    string
}

// Message is one of Batch, EnteredWatching, LeftWatching or FatalError.
type Message interface {
	From() Origin
}

// From returns the session the message came from.
func (o Origin) From() Origin { return o }

// Batch carries the records decoded from one read of the notification source.
// Records is owned by the receiver once delivered.
type Batch struct {
	Origin
	Records []ChangeRecord
	// Size is len(Records); consumers add it to their counter together with the rows.
	Size int
}

// EnteredWatching is delivered once the watch is registered and the loop is running.
type EnteredWatching struct {
	Origin
}

// LeftWatching is delivered exactly once by every session that entered Watching,
// after its kernel resources were released.
type LeftWatching struct {
	Origin
	Reason StopReason
}

// FatalError reports a setup or kernel failure in human-readable form.
type FatalError struct {
	Origin
	Cause   Cause
	Message string
}
