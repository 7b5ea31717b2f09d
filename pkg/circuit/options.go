package circuit

import (
	"github.com/dd0wney/cluso-relaysim/pkg/logging"
	"github.com/dd0wney/cluso-relaysim/pkg/metrics"
	"github.com/dd0wney/cluso-relaysim/pkg/pubsub"
)

// DefaultMaxWalkDepth bounds how many nodes a single walk may traverse
const DefaultMaxWalkDepth = 1000

// Option configures a Graph
type Option func(*Graph)

// WithLogger sets the graph logger
func WithLogger(logger logging.Logger) Option {
	return func(g *Graph) {
		if logger != nil {
			g.logger = logger.With(logging.Component("circuit"))
		}
	}
}

// WithMetrics records engine metrics into r
func WithMetrics(r *metrics.Registry) Option {
	return func(g *Graph) {
		g.metrics = r
	}
}

// WithMaxWalkDepth overrides DefaultMaxWalkDepth
func WithMaxWalkDepth(depth int) Option {
	return func(g *Graph) {
		if depth > 0 {
			g.maxDepth = depth
		}
	}
}

// WithQueue shares a notification queue with other components
func WithQueue(q *pubsub.Queue) Option {
	return func(g *Graph) {
		if q != nil {
			g.queue = q
		}
	}
}
