// Package appctx holds the process-scoped services every request path
// shares — pool manager, session registry, LLM binding, and the streams
// SemanticHintsProvider merges — behind one struct built once at startup
// and replaced atomically on config reload, exposing them through an app
// context struct rather than a module-level mutable. Uses the
// config/service.go OnChange-callback reload idiom, generalized from
// "notify subscribers a Config changed" to "rebuild every config-derived
// service and swap them in under a lock."
package appctx

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sqlnexus/config"
	"sqlnexus/contextbuilder"
	"sqlnexus/core/model"
	"sqlnexus/dbadapter"
	"sqlnexus/hints"
	"sqlnexus/knowledgegraph"
	"sqlnexus/llmcap"
	"sqlnexus/logger"
	"sqlnexus/ontology"
	"sqlnexus/orchestrator"
	"sqlnexus/pool"
	"sqlnexus/ragstore"
	"sqlnexus/schemasvc"
	"sqlnexus/session"
	"sqlnexus/sqlagent"
)

// bound holds every service whose shape depends on the current Config. A
// reload builds a fresh bound and swaps it in wholesale, so no in-flight
// request ever observes half-old, half-new configuration.
type bound struct {
	cfg          config.Config
	llm          *llmcap.Capability
	graph        knowledgegraph.Client
	rag          ragstore.Store
	ontologyReg  *ontology.Registry
	ontologyGen  *ontology.Generator
	hintsP       *hints.Provider
	sqlFactory   *sqlagent.Factory
	orchestrator *orchestrator.Orchestrator
}

// Context is the process-scoped app context: the long-lived services
// (pool manager, session registry, schema service) stay fixed across
// reloads, while everything derived from Config lives behind mu in bound.
type Context struct {
	Pools    *pool.PoolManager
	Sessions *session.Registry
	Schemas  *schemasvc.Service
	Logger   func(string)

	log *logger.Logger
	mu  sync.RWMutex
	b   *bound
}

// New constructs a Context from an initial Config, failing if the LLM
// binding cannot be built (there is no point starting with a broken
// generation path). log may be nil.
func New(ctx context.Context, cfg config.Config, log *logger.Logger) (*Context, error) {
	logMsg := func(string) {}
	if log != nil {
		logMsg = log.Log
	}
	pools := pool.NewPoolManager(time.Duration(cfg.General.PoolIdleMinutes)*time.Minute, logMsg)
	sessions := session.NewRegistry(time.Duration(cfg.General.SessionIdleMinutes)*time.Minute, logMsg)
	schemas := schemasvc.New(pools)

	c := &Context{Pools: pools, Sessions: sessions, Schemas: schemas, Logger: logMsg, log: log}
	b, err := buildBound(ctx, cfg, logMsg, log, pools, sessions, schemas)
	if err != nil {
		pools.CloseAll()
		sessions.Stop()
		return nil, err
	}
	c.b = b
	return c, nil
}

// buildBound wires every config-derived service: the LLM capability, the
// optional knowledge-graph and RAG streams, the ontology registry (default
// plus, when enabled, the LLM-assisted dynamic generator), the merged
// SemanticHintsProvider, the sqlagent.Factory sharing all of the above, and
// the Orchestrator that mints a fresh Agent per request via
// orchestrator.NewAgentFunc. log (may be nil) is handed to the Orchestrator
// directly so it can record a structured audit line per finished query,
// distinct from logMsg's plain free-text messages.
func buildBound(ctx context.Context, cfg config.Config, logMsg func(string), log *logger.Logger, pools *pool.PoolManager, sessions *session.Registry, schemas *schemasvc.Service) (*bound, error) {
	llm, err := llmcap.New(ctx, cfg.LLM, logMsg)
	if err != nil {
		return nil, fmt.Errorf("appctx: build LLM capability: %w", err)
	}

	var graph knowledgegraph.Client
	if cfg.Neo4j.Enabled {
		connectCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.General.Neo4jConnectSeconds)*time.Second)
		defer cancel()
		neo4jClient, err := knowledgegraph.NewNeo4jClient(connectCtx, cfg.Neo4j.URI, cfg.Neo4j.Username, cfg.Neo4j.Password)
		if err != nil {
			logMsg(fmt.Sprintf("appctx: neo4j unavailable, falling back to local graph: %v", err))
			graph = knowledgegraph.NewLocalGraph()
		} else {
			graph = neo4jClient
		}
	} else {
		graph = knowledgegraph.NewLocalGraph()
	}

	var rag ragstore.Store
	if cfg.RAG.Enabled {
		rag = ragstore.NewInMemoryStore(cfg.RAG.TopK, cfg.RAG.SimilarityThreshold)
	}

	ontologyReg := ontology.Default()
	var ontologyGen *ontology.Generator
	if cfg.Ontology.Enabled && cfg.Ontology.DynamicGeneration.Enabled {
		ontologyGen = ontology.NewGenerator(llm)
	}

	hintsP := hints.NewProvider(ontologyReg, graph, rag)

	contextStrategy := strategyFromConfig(cfg.LLM.ContextStrategy, cfg.LLM.MaxTokens)
	sqlFactory := &sqlagent.Factory{
		LLM:       llm,
		Hints:     hintsP,
		RAGStore:  rag,
		Context:   contextbuilder.NewBuilder(time.Duration(cfg.Cache.SchemaCacheTTLSeconds) * time.Second),
		MaxTokens: cfg.LLM.MaxTokens,
		Strategy:  contextStrategy,
	}

	orch := orchestrator.New(sessions, pools, schemas, func(executor dbadapter.Adapter) orchestrator.AgentRunner {
		return sqlFactory.NewAgent(executor)
	})
	orch.Timeout = time.Duration(cfg.General.QueryTimeoutSeconds) * time.Second
	orch.Logger = log

	return &bound{
		cfg:          cfg,
		llm:          llm,
		graph:        graph,
		rag:          rag,
		ontologyReg:  ontologyReg,
		ontologyGen:  ontologyGen,
		hintsP:       hintsP,
		sqlFactory:   sqlFactory,
		orchestrator: orch,
	}, nil
}

// strategyFromConfig resolves the configured context strategy name,
// "auto" (or anything unrecognized) deferring to
// contextbuilder.DetermineStrategy(maxTokens).
func strategyFromConfig(name string, maxTokens int) contextbuilder.Strategy {
	switch name {
	case "concise":
		return contextbuilder.Concise
	case "semi":
		return contextbuilder.SemiExpanded
	case "expanded":
		return contextbuilder.Expanded
	case "large":
		return contextbuilder.Large
	default:
		return contextbuilder.DetermineStrategy(maxTokens)
	}
}

// Reload rebuilds every config-derived service from cfg and swaps it in
// under the write lock, so in-flight requests finish against whichever
// bound they already captured a reference to, and new requests immediately
// see the new one: the LLM and vector-store bindings are replaced
// atomically.
func (c *Context) Reload(ctx context.Context, cfg config.Config) error {
	newBound, err := buildBound(ctx, cfg, c.Logger, c.log, c.Pools, c.Sessions, c.Schemas)
	if err != nil {
		return err
	}

	c.mu.Lock()
	old := c.b
	c.b = newBound
	c.mu.Unlock()

	if old != nil {
		if closer, ok := old.graph.(interface{ Close() error }); ok {
			closer.Close()
		}
	}
	return nil
}

// snapshot returns the currently bound services under a read lock.
func (c *Context) snapshot() *bound {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.b
}

// Orchestrator returns the current Orchestrator, already wired to Pools/
// Sessions/Schemas, for handlers to call Run on.
func (c *Context) Orchestrator() *orchestrator.Orchestrator {
	return c.snapshot().orchestrator
}

// Config returns the Config the current bound was built from.
func (c *Context) Config() config.Config {
	return c.snapshot().cfg
}

// OntologyRegistry returns the current (static plus possibly dynamically
// regenerated) ontology registry.
func (c *Context) OntologyRegistry() *ontology.Registry {
	return c.snapshot().ontologyReg
}

// GenerateOntology asks the dynamic ontology generator (when the current
// config enables one) for connectionID's schema-derived concepts and
// registers every resulting column mapping into the active registry.
func (c *Context) GenerateOntology(ctx context.Context, snap *model.SchemaSnapshot, connectionID string, force bool) (ontology.Generated, error) {
	b := c.snapshot()
	if b.ontologyGen == nil {
		return ontology.Generated{}, fmt.Errorf("appctx: dynamic ontology generation is not enabled")
	}
	generated, err := b.ontologyGen.Generate(ctx, snap, connectionID, force)
	if err != nil {
		return ontology.Generated{}, err
	}
	b.ontologyReg.RegisterSchemaMappings(snap)
	for _, mapping := range generated.ColumnMappings {
		b.ontologyReg.RegisterColumnMapping(mapping)
	}
	return generated, nil
}

// Close releases every long-lived resource: the pool manager, the session
// registry's sweeper, and the current bound's graph client.
func (c *Context) Close() {
	c.Pools.CloseAll()
	c.Sessions.Stop()
	if b := c.snapshot(); b != nil {
		if closer, ok := b.graph.(interface{ Close() error }); ok {
			closer.Close()
		}
	}
}
