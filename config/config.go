// Package config defines the typed configuration surface and its on-disk
// JSON persistence, following the same flat-struct-plus-file idiom the rest
// of this lineage uses rather than a flag/viper-driven surface.
package config

// LLMConfig selects and sizes the LLM binding.
type LLMConfig struct {
	Provider        string `json:"provider"`
	APIKey          string `json:"apiKey"`
	BaseURL         string `json:"baseUrl"`
	ModelName       string `json:"modelName"`
	MaxTokens       int    `json:"maxTokens"`
	ContextStrategy string `json:"contextStrategy"` // auto|concise|semi|expanded|large
}

// Neo4jConfig configures the optional knowledge-graph stream.
type Neo4jConfig struct {
	Enabled          bool   `json:"enabled"`
	IncludeInContext bool   `json:"includeInContext"`
	URI              string `json:"uri"`
	Username         string `json:"username"`
	Password         string `json:"password"`
	Database         string `json:"database"`
}

// RAGConfig configures the optional similar-query retrieval stream.
type RAGConfig struct {
	Enabled            bool    `json:"enabled"`
	TopK               int     `json:"topK"`
	SimilarityThreshold float64 `json:"similarityThreshold"`
	CollectionName     string  `json:"collectionName"`
	EmbeddingModel     string  `json:"embeddingModel"`
}

// OntologyDynamicGeneration configures LLM-assisted ontology derivation.
type OntologyDynamicGeneration struct {
	Enabled      bool   `json:"enabled"`
	ExportFormat string `json:"exportFormat"` // yml|owl|both
}

// OntologyConfig configures the optional static+dynamic ontology resolver.
type OntologyConfig struct {
	Enabled           bool                      `json:"enabled"`
	DynamicGeneration OntologyDynamicGeneration `json:"dynamicGeneration"`
	RegistryPath      string                    `json:"registryPath"`
}

// CacheConfig configures schema snapshot caching.
type CacheConfig struct {
	SchemaCacheTTLSeconds int `json:"schemaCacheTtlSeconds"`
}

// GeneralConfig carries retry and timeout defaults.
type GeneralConfig struct {
	MaxRetryAttempts    int `json:"maxRetryAttempts"`
	QueryTimeoutSeconds int `json:"queryTimeoutSeconds"`
	PoolIdleMinutes     int `json:"poolIdleMinutes"`
	SessionIdleMinutes  int `json:"sessionIdleMinutes"`
	Neo4jConnectSeconds int `json:"neo4jConnectSeconds"`
}

// Config is the full, JSON-persisted configuration structure.
type Config struct {
	LLM      LLMConfig      `json:"llm"`
	Neo4j    Neo4jConfig    `json:"neo4j"`
	RAG      RAGConfig      `json:"rag"`
	Ontology OntologyConfig `json:"ontology"`
	Cache    CacheConfig    `json:"cache"`
	General  GeneralConfig  `json:"general"`

	DataDir     string `json:"dataDir"`
	LogDir      string `json:"logDir"`
	DetailedLog bool   `json:"detailedLog"`
}

// Default returns the configuration a fresh install starts from, applied
// whenever no config file exists yet.
func Default() Config {
	return Config{
		LLM: LLMConfig{
			Provider:        "OpenAI",
			ModelName:       "gpt-4o",
			MaxTokens:       6000,
			ContextStrategy: "auto",
		},
		RAG: RAGConfig{
			TopK:                3,
			SimilarityThreshold: 0.7,
			CollectionName:      "sql_query_examples",
		},
		Ontology: OntologyConfig{
			DynamicGeneration: OntologyDynamicGeneration{ExportFormat: "both"},
		},
		Cache: CacheConfig{SchemaCacheTTLSeconds: 3600},
		General: GeneralConfig{
			MaxRetryAttempts:    3,
			QueryTimeoutSeconds: 300,
			PoolIdleMinutes:     30,
			SessionIdleMinutes:  60,
			Neo4jConnectSeconds: 5,
		},
	}
}

// Validate clamps out-of-range values to sane defaults rather than failing
// outright.
func (c *Config) Validate() {
	if c.LLM.MaxTokens <= 0 {
		c.LLM.MaxTokens = 6000
	}
	if c.RAG.TopK <= 0 {
		c.RAG.TopK = 3
	}
	if c.RAG.SimilarityThreshold <= 0 || c.RAG.SimilarityThreshold > 1 {
		c.RAG.SimilarityThreshold = 0.7
	}
	if c.Cache.SchemaCacheTTLSeconds <= 0 {
		c.Cache.SchemaCacheTTLSeconds = 3600
	}
	if c.General.MaxRetryAttempts < 0 {
		c.General.MaxRetryAttempts = 3
	}
	if c.General.QueryTimeoutSeconds <= 0 {
		c.General.QueryTimeoutSeconds = 300
	}
	if c.General.PoolIdleMinutes <= 0 {
		c.General.PoolIdleMinutes = 30
	}
	if c.General.SessionIdleMinutes <= 0 {
		c.General.SessionIdleMinutes = 60
	}
}
