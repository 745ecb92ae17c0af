package aggregate

// Codec converts an aggregate's events to and from their stored payloads.
// The event type string selects the variant on decode.
type Codec[E Event] interface {
	Encode(e E) ([]byte, error)
	Decode(eventType string, data []byte) (E, error)
}
