package main

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"food-router/internal/adapter/worker"
	"food-router/internal/domain"
	"food-router/internal/infra/config"
	"food-router/internal/infra/logger"
	"food-router/internal/infra/tracer"
	"food-router/internal/usecase"
	"food-router/internal/usecase/eventbus"
	"food-router/internal/usecase/scheduling"
)

const (
	cardTimeout         = 3 * time.Second
	cardRefreshSchedule = "5m"
)

// expectedSkills is what the router sends to each worker.
var expectedSkills = map[domain.WorkerID][]domain.TaskKind{
	domain.WorkerRestaurant: {domain.KindMenu, domain.KindPrepTime},
	domain.WorkerRider:      {domain.KindETA},
}

// app holds the wired orchestrator runtime shared by serve and chat.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	bus       *eventbus.Bus
	clients   []*worker.Client
	sessions  *usecase.SessionStore
	agent     *usecase.RoutingAgent
	scheduler *scheduling.Scheduler

	closers []func()
}

func newApp(ctx context.Context, cfg *config.Config) (_ *app, err error) {
	log, closeLog, err := logger.New(cfg.Logger, "orchestrator")
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: log}
	a.closers = append(a.closers, func() { _ = closeLog() })
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	shutdownTracer, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return nil, fmt.Errorf("tracer: %w", err)
	}
	a.closers = append(a.closers, func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracer(sctx)
	})

	a.bus = eventbus.New(log)
	a.bus.SubscribeAll(eventbus.LogHandler(log))
	a.closers = append(a.closers, a.bus.Close)

	workers := make(map[domain.WorkerID]usecase.WorkerCaller, len(cfg.Workers))
	timeouts := make(map[domain.WorkerID]time.Duration, len(cfg.Workers))
	for _, wc := range cfg.Workers {
		c, err := worker.Dial(ctx, wc, log)
		if err != nil {
			return nil, err
		}
		a.clients = append(a.clients, c)
		a.closers = append(a.closers, func() { _ = c.Close() })
		workers[c.ID()] = c
		if wc.Timeout > 0 {
			timeouts[c.ID()] = wc.Timeout
		}
		log.Info("worker configured", "worker", wc.Name, "transport", wc.Transport, "endpoint", wc.Endpoint)
	}

	a.sessions = usecase.NewSessionStore(usecase.SessionStoreOptions{
		MaxTurns: cfg.Session.MaxTurns,
		Policy:   usecase.BusyPolicy(cfg.Session.BusyPolicy),
		Bus:      a.bus,
		Logger:   log,
	})
	a.agent = usecase.NewRoutingAgent(usecase.RouterOptions{
		Parser:         usecase.NewIntentParser(cfg.Router.KnownRestaurants, cfg.Router.DefaultDeliveryAddress),
		Aggregator:     usecase.NewAggregator(),
		Sessions:       a.sessions,
		Workers:        workers,
		Timeouts:       timeouts,
		DefaultTimeout: cfg.Router.CallTimeout,
		Slack:          cfg.Router.DeadlineSlack,
		Bus:            a.bus,
		Logger:         log,
	})

	if err := a.schedule(); err != nil {
		return nil, err
	}
	if cfg.Router.DiscoverCards {
		_ = a.refreshCards(ctx)
	}
	return a, nil
}

func (a *app) schedule() error {
	a.scheduler = scheduling.NewScheduler(a.logger)
	a.scheduler.RegisterAction(scheduling.ActionSessionReap, func(ctx context.Context) error {
		a.sessions.ReapIdle(ctx, a.cfg.Session.IdleTimeout)
		return nil
	})
	if err := a.scheduler.AddTask(scheduling.ScheduledTask{
		Name:     "session-reap",
		Schedule: a.cfg.Session.ReapSchedule,
		Action:   scheduling.ActionSessionReap,
	}); err != nil {
		return err
	}

	if !a.cfg.Router.DiscoverCards {
		return nil
	}
	a.scheduler.RegisterAction(scheduling.ActionCardRefresh, a.refreshCards)
	return a.scheduler.AddTask(scheduling.ScheduledTask{
		Name:     "card-refresh",
		Schedule: cardRefreshSchedule,
		Action:   scheduling.ActionCardRefresh,
		Timeout:  time.Duration(len(a.clients)+1) * cardTimeout,
	})
}

// refreshCards reads every worker's agent card and warns about skills the
// router relies on but the worker does not advertise. An unreachable worker
// is not an error: calls to it will degrade until it comes back.
func (a *app) refreshCards(ctx context.Context) error {
	for _, c := range a.clients {
		card, err := c.Card(ctx, cardTimeout)
		if err != nil {
			a.logger.Warn("agent card unavailable", "worker", c.ID(), "error", err)
			continue
		}
		var missing []domain.TaskKind
		for _, k := range expectedSkills[c.ID()] {
			if !card.Supports(k) {
				missing = append(missing, k)
			}
		}
		if len(missing) > 0 {
			a.logger.Warn("worker does not advertise expected skills",
				"worker", c.ID(), "card", card.Name, "missing", missing)
		}
		a.bus.Emit(ctx, domain.EventWorkerCardLoaded, "", map[string]any{
			"worker":  c.ID(),
			"name":    card.Name,
			"version": card.Version,
			"skills":  card.Skills,
		})
	}
	return nil
}

// workerStatus reports each worker's circuit breaker state.
func (a *app) workerStatus() map[string]string {
	out := make(map[string]string, len(a.clients))
	for _, c := range a.clients {
		out[string(c.ID())] = c.BreakerState()
	}
	return out
}

// sessionStats reports live sessions and those with a request in flight.
func (a *app) sessionStats() (live, active int) {
	return a.sessions.Len(), a.sessions.Active()
}

func (a *app) workerNames() []string {
	names := make([]string, 0, len(a.clients))
	for _, c := range a.clients {
		names = append(names, string(c.ID()))
	}
	slices.Sort(names)
	return names
}

// Close releases everything newApp acquired, in reverse order.
func (a *app) Close() {
	if a.scheduler != nil {
		_ = a.scheduler.Stop()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
