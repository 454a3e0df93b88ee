package interfaces

// Mailer delivers transactional mail. Delivery failures are logged by
// callers and never abort the request that triggered them.
type Mailer interface {
	Send(to, subject, html string) error
}
