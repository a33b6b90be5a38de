package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"food-router/internal/domain"
	"food-router/internal/infra/tracer"
)

// WorkerCaller is the orchestrator's handle on one remote worker.
// Call never returns an error: every outcome is a WorkerResult, and it
// returns within timeout plus a small margin.
type WorkerCaller interface {
	Call(ctx context.Context, task domain.SubTask, timeout time.Duration) domain.WorkerResult
}

// RouterOptions wires a RoutingAgent.
type RouterOptions struct {
	Parser     *IntentParser
	Aggregator *Aggregator
	Sessions   *SessionStore
	Workers    map[domain.WorkerID]WorkerCaller
	// Timeouts holds per-worker call timeouts; DefaultTimeout covers the rest.
	Timeouts       map[domain.WorkerID]time.Duration
	DefaultTimeout time.Duration
	// Slack is added to the per-utterance deadline.
	Slack  time.Duration
	Bus    domain.EventBus // optional
	Logger *slog.Logger
}

// RoutingAgent handles one utterance end to end: parse, fan out to the
// workers, wait for results under a deadline, combine, and record the turn.
// It is safe for concurrent use; calls for the same session are serialized.
type RoutingAgent struct {
	parser     *IntentParser
	aggregator *Aggregator
	sessions   *SessionStore
	workers    map[domain.WorkerID]WorkerCaller
	timeouts   map[domain.WorkerID]time.Duration
	defTimeout time.Duration
	slack      time.Duration
	bus        domain.EventBus
	logger     *slog.Logger
	now        func() time.Time
}

// NewRoutingAgent creates a RoutingAgent.
func NewRoutingAgent(opts RouterOptions) *RoutingAgent {
	if opts.Aggregator == nil {
		opts.Aggregator = NewAggregator()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.DefaultTimeout <= 0 {
		opts.DefaultTimeout = 5 * time.Second
	}
	return &RoutingAgent{
		parser:     opts.Parser,
		aggregator: opts.Aggregator,
		sessions:   opts.Sessions,
		workers:    opts.Workers,
		timeouts:   opts.Timeouts,
		defTimeout: opts.DefaultTimeout,
		slack:      opts.Slack,
		bus:        opts.Bus,
		logger:     opts.Logger,
		now:        time.Now,
	}
}

// Handle answers one utterance. Worker failures never surface as errors;
// the only errors are invalid input and failing to acquire the session
// (busy under the reject policy, or ctx done while queued).
func (r *RoutingAgent) Handle(ctx context.Context, utt domain.Utterance) (domain.CompositeAnswer, error) {
	if strings.TrimSpace(utt.Text) == "" {
		return domain.CompositeAnswer{}, domain.NewDomainError("RoutingAgent.Handle", domain.ErrInvalidInput, "empty utterance")
	}
	if utt.ReceivedAt.IsZero() {
		utt.ReceivedAt = r.now()
	}

	ctx, span := tracer.StartSpan(ctx, "router.handle")
	defer span.End()
	span.SetAttributes(tracer.StringAttr("session.key", utt.SessionID))

	sess, release, err := r.sessions.Acquire(ctx, utt.SessionID)
	if err != nil {
		tracer.RecordError(span, err)
		return domain.CompositeAnswer{}, err
	}
	defer release()

	r.emit(ctx, domain.EventUtteranceReceived, utt.SessionID, map[string]string{"text": utt.Text})

	tasks := r.parser.Parse(utt.Text, sess.Context())
	var answer domain.CompositeAnswer
	if len(tasks) == 0 {
		answer = r.aggregator.Clarification()
	} else {
		answer = r.aggregator.Combine(r.dispatch(ctx, utt.SessionID, tasks))
	}

	sess.Append(utt, answer)

	failed := 0
	for _, o := range answer.Outcomes {
		if !o.Result.OK() {
			failed++
		}
	}
	r.emit(ctx, domain.EventAnswerComposed, utt.SessionID, domain.AnswerEventPayload{
		Tasks:         len(answer.Outcomes),
		Failed:        failed,
		FullyDegraded: answer.FullyDegraded,
		Clarification: answer.Clarification,
	})
	span.SetAttributes(
		tracer.IntAttr("tasks", len(answer.Outcomes)),
		tracer.IntAttr("tasks.failed", failed),
		tracer.BoolAttr("degraded", answer.FullyDegraded),
	)
	tracer.SetOK(span)

	r.logger.Info("utterance handled",
		"session_key", utt.SessionID,
		"tasks", len(answer.Outcomes),
		"failed", failed,
		"degraded", answer.FullyDegraded,
		"clarification", answer.Clarification,
		"elapsed", r.now().Sub(utt.ReceivedAt),
	)
	return answer, nil
}

// History returns the recorded turns of a live session.
func (r *RoutingAgent) History(sessionKey string) ([]domain.Turn, error) {
	s, err := r.sessions.Get(sessionKey)
	if err != nil {
		return nil, err
	}
	return s.History(), nil
}

// dispatch runs every task, independent ones concurrently and dependent
// ones after their prerequisite, and returns one outcome per task in
// input order. Tasks still pending at the deadline resolve to timeout.
func (r *RoutingAgent) dispatch(ctx context.Context, sessionKey string, tasks []domain.SubTask) []domain.TaskOutcome {
	dctx, cancel := context.WithTimeout(ctx, r.deadlineFor(tasks))
	defer cancel()

	n := len(tasks)
	index := make(map[string]int, n)
	done := make([]chan struct{}, n)
	bound := make([]domain.SubTask, n)
	results := make([]domain.WorkerResult, n)
	for i, t := range tasks {
		index[t.ID] = i
		done[i] = make(chan struct{})
		bound[i] = t
	}

	// Each goroutine owns bound[i] and results[i] until it closes done[i].
	for i := range tasks {
		go func(i int) {
			defer close(done[i])
			task := tasks[i]
			if task.DependsOn != "" {
				j, ok := index[task.DependsOn]
				if !ok {
					results[i] = domain.Fail(domain.FailureDependency, "unknown prerequisite "+task.DependsOn, false)
					return
				}
				select {
				case <-done[j]:
				case <-dctx.Done():
					results[i] = domain.TimeoutResult()
					return
				}
				var res domain.WorkerResult
				if task, res, ok = bindPrerequisite(task, tasks[j], results[j]); !ok {
					results[i] = res
					return
				}
				bound[i] = task
			}
			results[i] = r.call(dctx, sessionKey, task)
		}(i)
	}

	outcomes := make([]domain.TaskOutcome, n)
	for i := range tasks {
		// A finished task keeps its result even when the deadline has
		// already passed.
		select {
		case <-done[i]:
			outcomes[i] = domain.TaskOutcome{Task: bound[i], Result: results[i]}
			continue
		default:
		}
		select {
		case <-done[i]:
			outcomes[i] = domain.TaskOutcome{Task: bound[i], Result: results[i]}
		case <-dctx.Done():
			r.logger.Warn("subtask abandoned at deadline", "session_key", sessionKey, "task", tasks[i].Describe())
			outcomes[i] = domain.TaskOutcome{Task: tasks[i], Result: domain.TimeoutResult()}
		}
	}
	return outcomes
}

func (r *RoutingAgent) call(ctx context.Context, sessionKey string, task domain.SubTask) domain.WorkerResult {
	worker, ok := r.workers[task.Worker]
	if !ok {
		return domain.Fail(domain.FailureUnavailable, fmt.Sprintf("no client configured for %s", task.Worker), false)
	}

	r.emit(ctx, domain.EventSubTaskDispatched, sessionKey, domain.SubTaskEventPayload{
		TaskID: task.ID, Kind: task.Kind(), Worker: task.Worker,
	})
	start := r.now()
	res := worker.Call(ctx, task, r.timeoutFor(task.Worker))
	elapsed := r.now().Sub(start)

	r.emit(ctx, domain.EventSubTaskCompleted, sessionKey, domain.SubTaskEventPayload{
		TaskID: task.ID, Kind: task.Kind(), Worker: task.Worker,
		OK: res.OK(), Failure: res.Failure, ElapsedMS: elapsed.Milliseconds(),
	})
	if res.OK() {
		r.logger.Debug("subtask completed", "session_key", sessionKey, "task", task.Describe(), "elapsed", elapsed)
	} else {
		r.logger.Warn("subtask failed",
			"session_key", sessionKey,
			"task", task.Describe(),
			"failure", string(res.Failure.Kind),
			"reason", res.Failure.Reason,
			"retriable", res.Failure.Retriable,
			"elapsed", elapsed,
		)
	}
	return res
}

// bindPrerequisite fills a dependent task from its prerequisite's result.
// It reports false, with the failure to record, when the task cannot run.
func bindPrerequisite(task, pre domain.SubTask, preResult domain.WorkerResult) (domain.SubTask, domain.WorkerResult, bool) {
	if !preResult.OK() {
		return task, domain.Fail(domain.FailureDependency,
			fmt.Sprintf("%s failed: %s", pre.Kind(), preResult.Failure.Reason), false), false
	}

	var loc struct {
		Address string `json:"address"`
	}
	if err := preResult.Decode(&loc); err != nil || loc.Address == "" {
		return task, domain.Fail(domain.FailureDependency, "restaurant address unknown", false), false
	}

	if q, ok := task.Query.(domain.EtaQuery); ok {
		q.Origin = loc.Address
		task.Query = q
	}
	return task, domain.WorkerResult{}, true
}

func (r *RoutingAgent) timeoutFor(w domain.WorkerID) time.Duration {
	if d, ok := r.timeouts[w]; ok && d > 0 {
		return d
	}
	return r.defTimeout
}

// deadlineFor is the slack plus the longest chain of call timeouts.
func (r *RoutingAgent) deadlineFor(tasks []domain.SubTask) time.Duration {
	byID := make(map[string]domain.SubTask, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}
	var longest time.Duration
	for _, t := range tasks {
		var chain time.Duration
		seen := make(map[string]bool)
		for cur, ok := t, true; ok && !seen[cur.ID]; cur, ok = byID[cur.DependsOn] {
			seen[cur.ID] = true
			chain += r.timeoutFor(cur.Worker)
		}
		if chain > longest {
			longest = chain
		}
	}
	return longest + r.slack
}

func (r *RoutingAgent) emit(ctx context.Context, t domain.EventType, sessionKey string, payload any) {
	if r.bus == nil {
		return
	}
	r.bus.Publish(ctx, domain.NewEvent(t, sessionKey, payload))
}
