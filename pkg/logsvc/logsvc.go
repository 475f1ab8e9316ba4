// Package logsvc provides per-database log services.
//
// Unlike the process-wide internal/logger, a Service is an injectable value
// bound to one database instance: every record it emits carries the database
// name. The lifecycle registers its Service in the dependency resolver so
// collaborators resolve exactly the instance the database itself uses.
package logsvc

import (
	"log/slog"
	"os"
)

// Service is the log service of one database instance.
type Service struct {
	name string
	log  *slog.Logger
}

// New builds a Service for the named database on top of the given handler.
// A nil handler falls back to a text handler on stderr.
func New(name string, handler slog.Handler) *Service {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, nil)
	}
	return &Service{
		name: name,
		log:  slog.New(handler).With("database", name),
	}
}

// Name returns the database name this service is bound to.
func (s *Service) Name() string { return s.name }

// Logger returns the underlying slog.Logger.
func (s *Service) Logger() *slog.Logger { return s.log }
