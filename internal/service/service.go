// Package service runs conversations: the orchestration loop, tool dispatch
// and the run bookkeeping around them.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/xiaot623/orderdesk/internal/adapter/llm"
	"github.com/xiaot623/orderdesk/internal/config"
	"github.com/xiaot623/orderdesk/internal/metrics"
	store "github.com/xiaot623/orderdesk/internal/repository"
	"github.com/xiaot623/orderdesk/internal/tools"
	"github.com/xiaot623/orderdesk/policy"
)

// Options are the loop budgets and prompt settings of a Service.
type Options struct {
	MaxIterations int
	RunTimeout    time.Duration
	OracleTimeout time.Duration
	ToolTimeout   time.Duration
	HistoryLimit  int
	OrderSenders  []string
	Location      *time.Location
}

// OptionsFromConfig derives service options from the loaded configuration.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	loc, err := cfg.Location()
	if err != nil {
		return Options{}, err
	}
	return Options{
		MaxIterations: cfg.MaxIterations,
		RunTimeout:    cfg.RunTimeout,
		OracleTimeout: cfg.OracleTimeout,
		ToolTimeout:   cfg.ToolTimeout,
		HistoryLimit:  cfg.HistoryLimit,
		OrderSenders:  cfg.OrderSenders,
		Location:      loc,
	}, nil
}

func (o Options) withDefaults() Options {
	if o.MaxIterations <= 0 {
		o.MaxIterations = 10
	}
	if o.RunTimeout <= 0 {
		o.RunTimeout = 5 * time.Minute
	}
	if o.OracleTimeout <= 0 {
		o.OracleTimeout = time.Minute
	}
	if o.ToolTimeout <= 0 {
		o.ToolTimeout = 30 * time.Second
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	return o
}

type Service struct {
	store        store.Store
	oracle       llm.Oracle
	registry     *tools.Registry
	policyEngine *policy.Engine
	metrics      *metrics.Metrics
	opts         Options
	now          func() time.Time

	mu          sync.Mutex
	threadLocks map[string]*threadLock
	active      map[string]context.CancelFunc
}

type threadLock struct {
	mu   sync.Mutex
	refs int
}

// New creates a Service. policyEngine and m may be nil.
func New(st store.Store, oracle llm.Oracle, registry *tools.Registry, policyEngine *policy.Engine, m *metrics.Metrics, opts Options) *Service {
	return &Service{
		store:        st,
		oracle:       oracle,
		registry:     registry,
		policyEngine: policyEngine,
		metrics:      m,
		opts:         opts.withDefaults(),
		now:          time.Now,
		threadLocks:  make(map[string]*threadLock),
		active:       make(map[string]context.CancelFunc),
	}
}

// ToolTimeout returns the timeout applied to a tool call.
func (s *Service) ToolTimeout(d tools.Definition) time.Duration {
	if d.Timeout > 0 {
		return d.Timeout
	}
	return s.opts.ToolTimeout
}

// lockThread serialises runs on one thread. Different threads never block
// each other.
func (s *Service) lockThread(threadID string) func() {
	s.mu.Lock()
	l, ok := s.threadLocks[threadID]
	if !ok {
		l = &threadLock{}
		s.threadLocks[threadID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.threadLocks, threadID)
		}
		s.mu.Unlock()
	}
}

func (s *Service) trackRun(runID string, cancel context.CancelFunc) func() {
	s.mu.Lock()
	s.active[runID] = cancel
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.active, runID)
		s.mu.Unlock()
	}
}
