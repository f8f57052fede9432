package event

import (
	"log"

	"github.com/viant/afs"
)

// Option configures a Loop
type Option func(l *Loop)

// WithFS sets the storage used by the fs vendor
func WithFS(fs afs.Service) Option {
	return func(l *Loop) {
		l.fs = fs
	}
}

// WithLogger sets the logger used for dispatch failures
func WithLogger(logger *log.Logger) Option {
	return func(l *Loop) {
		l.logger = logger
	}
}
