package interfaces

// ProducerHandler publishes auth lifecycle events to the message broker.
// Publishing is best-effort; callers never fail a request on a broker error.
type ProducerHandler interface {
	PublishMessage(key, value []byte) error
}
