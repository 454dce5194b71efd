// Package orchestrator implements QueryOrchestrator: it receives
// (question, session_id, max_retries), resolves the session's schema
// snapshot and adapter, runs SQLAgent in a worker so a blocking adapter
// call never stalls the caller, and enforces a bounded-duration timeout.
// Uses the worker-goroutine-plus-context.WithTimeout idiom applied
// throughout this codebase for every call that might block on an
// external process.
package orchestrator

import (
	"context"
	"time"

	"sqlnexus/core/model"
	"sqlnexus/dbadapter"
	"sqlnexus/logger"
	"sqlnexus/pool"
	"sqlnexus/schemasvc"
	"sqlnexus/session"
	"sqlnexus/sqlagent"
)

// DefaultTimeout is the default per-query bound: 300 seconds.
const DefaultTimeout = 300 * time.Second

// Result is the orchestrator's response: the finalized agent state, or a
// distinct timeout marker when the bound is hit before the agent finishes.
type Result struct {
	State     *model.AgentState
	TimedOut  bool
}

// AgentRunner is the narrow slice of sqlagent.Agent the orchestrator
// drives, so tests can stub it without a real LLM/adapter pair.
type AgentRunner interface {
	Run(ctx context.Context, in sqlagent.Input) (*model.AgentState, error)
}

// NewAgentFunc builds one request's Agent bound to the adapter acquired
// for that request's session — LLM/Hints/RAGStore/context configuration
// is shared across requests (closed over by the func), but the executor
// never is, since two concurrent queries may hold different connections.
// A plain func avoids sqlagent depending on this package's AgentRunner
// type just to satisfy an interface.
type NewAgentFunc func(executor dbadapter.Adapter) AgentRunner

// Orchestrator wires a session registry, pool manager, and schema service
// to a per-request Agent and bounds every run with Timeout.
type Orchestrator struct {
	Sessions *session.Registry
	Pools    *pool.PoolManager
	Schemas  *schemasvc.Service
	NewAgent NewAgentFunc
	Timeout  time.Duration

	// Logger records one audit line per finished Run, when set. Nil is a
	// valid, silent default for tests and callers that don't want the
	// audit trail.
	Logger *logger.Logger
}

// New builds an Orchestrator with DefaultTimeout; override Timeout after
// construction for scenario tests that need a shorter bound.
func New(sessions *session.Registry, pools *pool.PoolManager, schemas *schemasvc.Service, newAgent NewAgentFunc) *Orchestrator {
	return &Orchestrator{Sessions: sessions, Pools: pools, Schemas: schemas, NewAgent: newAgent, Timeout: DefaultTimeout}
}

// Request is one inbound query.
type Request struct {
	Question            string
	SessionID           string
	MaxRetries          int
	SchemaName          string
	ConversationHistory []model.ChatTurn
}

// Run resolves the session, fetches its schema snapshot, and runs the
// agent in a worker goroutine bounded by Timeout. On timeout it returns a
// Result with TimedOut set rather than blocking the caller indefinitely;
// on agent exhaustion it returns the agent's own (unsuccessful) state,
// which already carries the last SQL attempt and error history.
func (o *Orchestrator) Run(ctx context.Context, req Request) (Result, error) {
	start := time.Now()

	sess, ok := o.Sessions.Get(req.SessionID)
	if !ok {
		return Result{}, &UnknownSessionError{SessionID: req.SessionID}
	}
	sess.Touch()

	snap, adapter, err := o.resolveSchema(ctx, sess, req.SchemaName)
	if err != nil {
		return Result{}, err
	}
	defer o.Pools.Release(sess.Params, adapter)

	timeout := o.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type runOutcome struct {
		state *model.AgentState
		err   error
	}
	done := make(chan runOutcome, 1)

	runner := o.NewAgent(adapter)
	go func() {
		st, runErr := runner.Run(runCtx, sqlagent.Input{
			Question:            req.Question,
			MaxRetries:           req.MaxRetries,
			TargetSchema:         req.SchemaName,
			SchemaSnapshot:       snap,
			Dialect:              sess.Params.Dialect,
			ConversationHistory:  req.ConversationHistory,
		})
		done <- runOutcome{state: st, err: runErr}
	}()

	select {
	case out := <-done:
		if out.err == context.DeadlineExceeded {
			o.logQuery(req, sess.Params.Dialect, out.state, start, false, "deadline exceeded")
			return Result{TimedOut: true}, nil
		}
		errMsg := ""
		success := out.err == nil && out.state != nil && out.state.Success
		if out.err != nil {
			errMsg = out.err.Error()
		} else if out.state != nil {
			errMsg = out.state.LastError
		}
		o.logQuery(req, sess.Params.Dialect, out.state, start, success, errMsg)
		return Result{State: out.state}, out.err
	case <-runCtx.Done():
		o.logQuery(req, sess.Params.Dialect, nil, start, false, "timeout")
		return Result{TimedOut: true}, nil
	}
}

// logQuery records the finished run's audit line, when a Logger is set. st
// may be nil (timeout before the agent produced a state).
func (o *Orchestrator) logQuery(req Request, dialect model.DatabaseType, st *model.AgentState, start time.Time, success bool, errMsg string) {
	if o.Logger == nil {
		return
	}
	attempt := 0
	if st != nil {
		attempt = st.Attempt
	}
	o.Logger.LogQuery(req.SessionID, string(dialect), attempt, req.MaxRetries, time.Since(start), success, errMsg)
}

func (o *Orchestrator) resolveSchema(ctx context.Context, sess *model.Session, schemaName string) (*model.SchemaSnapshot, dbadapter.Adapter, error) {
	adapter, err := o.Pools.Acquire(ctx, sess.Params)
	if err != nil {
		return nil, nil, err
	}

	if sess.SchemaCache != nil && time.Since(sess.SchemaCacheTime) < time.Hour {
		return sess.SchemaCache, adapter, nil
	}

	snap, err := o.Schemas.Snapshot(ctx, sess.Params, schemaName)
	if err != nil {
		o.Pools.Release(sess.Params, adapter)
		return nil, nil, err
	}
	sess.SchemaCache = snap
	sess.SchemaCacheTime = time.Now()
	return snap, adapter, nil
}

// UnknownSessionError reports a Run call against a session_id the registry
// has never seen (or has since swept for inactivity).
type UnknownSessionError struct {
	SessionID string
}

func (e *UnknownSessionError) Error() string {
	return "orchestrator: unknown session " + e.SessionID
}
