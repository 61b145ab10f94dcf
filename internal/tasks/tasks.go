package tasks

import (
	"github.com/charmbracelet/log"
)

// DefaultConcurrency bounds how many playlists are processed at once.
const DefaultConcurrency = 8

// EngineOpts configures an [Engine].
type EngineOpts struct {
	Concurrency int
	Logger      *log.Logger
}

// Engine runs export hydration and import.
//
// An Engine holds no user state: each call receives the [services.PlaylistService] acting
// for the requesting user, so one Engine can serve many users concurrently.
type Engine struct {
	concurrency int
	logger      *log.Logger
}

// NewEngine creates an Engine. Zero options select the defaults.
func NewEngine(opts EngineOpts) *Engine {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Engine{concurrency: opts.Concurrency, logger: opts.Logger}
}

// sendProgress sends a progress update through the channel without blocking.
func (e *Engine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}
