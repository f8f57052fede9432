package messaging

import (
	"context"
	"errors"
)

// Vendor represents the name of a queue backend
type Vendor string

const (
	// VendorMemory is a bounded in-process channel queue
	VendorMemory Vendor = "memory"
	// VendorFS is an afs-backed journal queue
	VendorFS Vendor = "fs"
)

// ErrAlreadyProcessed is returned when a message is acked or nacked twice
var ErrAlreadyProcessed = errors.New("message already processed")

// Queue represents a bounded message queue for any payload type
type Queue[T any] interface {
	// Publish adds a message; it blocks while the queue is full until ctx is done.
	// A message is always accepted when space is available, even if ctx has expired.
	Publish(ctx context.Context, t *T) error

	// Consume retrieves the oldest message, blocking until one is available or ctx is done
	Consume(ctx context.Context) (Message[T], error)

	// Size returns the number of messages waiting to be consumed
	Size() int
}

// Message represents a message retrieved from a queue
type Message[T any] interface {
	// ID returns the message identifier
	ID() string

	// T returns the payload of this message
	T() *T

	// Ack acknowledges successful processing of this message
	Ack() error

	// Nack indicates failure in processing this message
	Nack(err error) error
}
