// Package trace records a backtracking search as a graph and answers path
// and event queries against it.
//
// A Session owns the graph backend and the property registry; a Storer is
// the write side fed one notification at a time, a Query is the read side.
// Queries assume a quiescent graph: run them after searchFinished, never
// concurrently with a Storer on the same Session.
//
// Graph layout written by the Storer:
//
//	root marker --root-state--> S0 (STATE_ID -1)
//	root marker --last-state--> frontier
//	root marker --end-state---> every terminal state
//	parent      --transition--> child
//	state       --event-------> e1 --event--> e2 ...
//	state       --last-event--> final event of its chain
//
// Event edges carry the group of the event they lead to as their tag.
package trace

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/solatis/searchtrace/internal/core/config"
	"github.com/solatis/searchtrace/internal/graph"
	"github.com/solatis/searchtrace/internal/types"
)

// DefaultEventsPerCommit is the commit interval used when none is configured.
const DefaultEventsPerCommit = 5000

// Session is the context shared by the Storer and Query of one trace.
type Session struct {
	Registry        *types.Registry
	Graph           graph.Graph
	Logger          *zap.Logger
	EventsPerCommit int
}

// NewSession wraps a graph with a fresh registry.
func NewSession(g graph.Graph, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		Registry:        types.NewRegistry(),
		Graph:           g,
		Logger:          logger,
		EventsPerCommit: DefaultEventsPerCommit,
	}
}

// OpenSession opens the configured backend and wraps it in a Session.
func OpenSession(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	g, err := graph.Open(ctx, cfg.Trace.Backend, graph.Options{
		Location:   cfg.Trace.DataDir,
		DBURL:      cfg.Trace.DBURL,
		RemoteAddr: cfg.Remote.Address,
		APIKey:     cfg.Remote.APIKey,
		Timeout:    cfg.Remote.Timeout,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	s := NewSession(g, logger)
	if cfg.Trace.EventsPerCommit > 0 {
		s.EventsPerCommit = cfg.Trace.EventsPerCommit
	}
	logger.Debug("trace session opened",
		zap.String("backend", cfg.Trace.Backend),
		zap.Int("events_per_commit", s.EventsPerCommit))
	return s, nil
}

// NewStorer returns the write side of the session.
func (s *Session) NewStorer() *Storer {
	return newStorer(s)
}

// NewQuery returns the read side of the session.
func (s *Session) NewQuery() *Query {
	return newQuery(s)
}

// Close releases the graph backend.
func (s *Session) Close() error {
	if err := s.Graph.Close(); err != nil {
		return fmt.Errorf("failed to close trace graph: %w", err)
	}
	return nil
}
