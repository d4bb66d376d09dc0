// Package orchestrator implements the tick orchestrator: a fixed set of
// named, independently scheduled loops that drive discovery, parsing,
// policy, scheduling, execution, balances, chat, and conditional orders.
// Each loop is isolated from the others' failures, matching the
// Run/Tick split swapd's oracle.Manager uses for its own periodic sweep.
package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"dwagent/internal/adapter"
	"dwagent/internal/chainclient"
	"dwagent/internal/executor"
	"dwagent/internal/metrics"
	"dwagent/internal/policy"
	"dwagent/internal/repo"
	"dwagent/internal/scheduler"
)

// Default loop periods.
const (
	DefaultDiscoveryInterval     = 60 * time.Second
	DefaultPollInterval          = 15 * time.Second
	DefaultExecutorInterval      = 5 * time.Second
	DefaultBalancesInterval      = 60 * time.Second
	DefaultSchedulerInterval     = 30 * time.Second
	DefaultChatInterval          = 15 * time.Second
	DefaultAgentProposalInterval = 60 * time.Second
	DefaultConditionalInterval   = 30 * time.Second

	// startupTimeout bounds the eager initial tick of every loop: ticks
	// fire eagerly at startup with a 90 s wall-clock timeout.
	startupTimeout = 90 * time.Second

	// consecutiveFailureLogThreshold triggers a louder log line.
	consecutiveFailureLogThreshold = 3

	agentAutoproposeConfigKey = "AGENT_AUTOPROPOSE"
)

// Intervals overrides the default loop periods; a zero field falls back
// to its default.
type Intervals struct {
	Discovery     time.Duration
	Poll          time.Duration
	Executor      time.Duration
	Balances      time.Duration
	Scheduler     time.Duration
	Chat          time.Duration
	AgentProposal time.Duration
	Conditional   time.Duration
}

func (iv Intervals) withDefaults() Intervals {
	set := func(d, def time.Duration) time.Duration {
		if d <= 0 {
			return def
		}
		return d
	}
	return Intervals{
		Discovery:     set(iv.Discovery, DefaultDiscoveryInterval),
		Poll:          set(iv.Poll, DefaultPollInterval),
		Executor:      set(iv.Executor, DefaultExecutorInterval),
		Balances:      set(iv.Balances, DefaultBalancesInterval),
		Scheduler:     set(iv.Scheduler, DefaultSchedulerInterval),
		Chat:          set(iv.Chat, DefaultChatInterval),
		AgentProposal: set(iv.AgentProposal, DefaultAgentProposalInterval),
		Conditional:   set(iv.Conditional, DefaultConditionalInterval),
	}
}

// PolicyLookup resolves a document's effective policy for poll-loop
// evaluation; shared with internal/scheduler's identical shape.
type PolicyLookup = scheduler.PolicyLookup

// URLMinter mints an approval URL for a newly pending command.
type URLMinter = scheduler.URLMinter

// AgentProposer generates suggested command rows for the agentProposal
// loop's "agent behaviours" heuristics; returning an empty slice means
// "nothing to propose this tick".
type AgentProposer interface {
	Propose(ctx context.Context, docID string, pol policy.Policy) ([]string, error)
}

// Orchestrator wires together every component and drives them through
// the named loops.
type Orchestrator struct {
	Repo      *repo.Repository
	Adapter   adapter.Adapter
	Executor  *executor.Executor
	Scheduler *scheduler.Tick

	Policy  PolicyLookup
	Mint    URLMinter
	Proposer AgentProposer

	Evm       chainclient.EvmClient
	Sui       chainclient.SuiClient
	OrderBook chainclient.OrderBookClient

	Intervals Intervals
	Metrics   *metrics.Registry
	Logger    *slog.Logger
	Now       func() time.Time

	mu          sync.Mutex
	docHashes   map[string]string
	failures    map[string]int
	wg          sync.WaitGroup
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o *Orchestrator) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// Run starts every loop and blocks until ctx is cancelled, then waits for
// all in-flight ticks to finish.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.mu.Lock()
	if o.docHashes == nil {
		o.docHashes = make(map[string]string)
	}
	if o.failures == nil {
		o.failures = make(map[string]int)
	}
	o.mu.Unlock()

	iv := o.Intervals.withDefaults()

	o.startLoop(ctx, "discovery", iv.Discovery, o.discoveryTick)
	o.startLoop(ctx, "poll", iv.Poll, o.pollTick)
	if o.Executor != nil {
		o.startLoop(ctx, "executor", iv.Executor, o.Executor.Tick)
	}
	o.startLoop(ctx, "balances", iv.Balances, o.balancesTick)
	if o.Scheduler != nil {
		o.startLoop(ctx, "scheduler", iv.Scheduler, o.Scheduler.Run)
	}
	o.startLoop(ctx, "chat", iv.Chat, o.chatTick)
	o.startLoop(ctx, "agentProposal", iv.AgentProposal, o.agentProposalTick)
	o.startLoop(ctx, "conditional", iv.Conditional, o.conditionalTick)

	<-ctx.Done()
	o.wg.Wait()
	return ctx.Err()
}

type tickFunc func(ctx context.Context) error

// startLoop runs fn once eagerly (bounded by startupTimeout), then on
// every tick of a ticker with the given period, until ctx is cancelled.
// A failing tick never stops the loop or any other loop.
func (o *Orchestrator) startLoop(ctx context.Context, name string, period time.Duration, fn tickFunc) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()

		startupCtx, cancel := context.WithTimeout(ctx, startupTimeout)
		o.runOnce(startupCtx, name, fn)
		cancel()

		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				o.runOnce(ctx, name, fn)
			}
		}
	}()
}

func (o *Orchestrator) runOnce(ctx context.Context, name string, fn tickFunc) {
	if err := fn(ctx); err != nil {
		o.mu.Lock()
		o.failures[name]++
		n := o.failures[name]
		o.mu.Unlock()
		if o.Metrics != nil {
			o.Metrics.LoopFailuresTotal.WithLabelValues(name).Inc()
		}
		if n >= consecutiveFailureLogThreshold {
			o.logger().Error("orchestrator: loop failing repeatedly", "loop", name, "consecutive_failures", n, "error", err)
		} else {
			o.logger().Warn("orchestrator: loop tick failed", "loop", name, "error", err)
		}
		return
	}
	o.mu.Lock()
	o.failures[name] = 0
	o.mu.Unlock()
}
