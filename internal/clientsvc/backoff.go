package clientsvc

import "time"

const (
	backoffFloor = time.Second
	backoffCeil  = 30 * time.Second
)

// backoff produces the reconnect delay sequence: 1s doubling up to 30s.
// Reset returns to the floor once a connection is fully established.
type backoff struct {
	next time.Duration
}

func newBackoff() *backoff {
	return &backoff{next: backoffFloor}
}

func (b *backoff) Next() time.Duration {
	d := b.next
	b.next *= 2
	if b.next > backoffCeil {
		b.next = backoffCeil
	}
	return d
}

func (b *backoff) Reset() {
	b.next = backoffFloor
}
