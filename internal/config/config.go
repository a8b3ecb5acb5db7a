// Package config loads KnowGraph configuration with layered
// precedence: hardcoded defaults, then the user config
// (~/.config/knowgraph/config.yaml), then the project config
// (.knowgraph.yaml), then KNOWGRAPH_* environment variables.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ProjectType represents the type of project detected.
type ProjectType string

const (
	ProjectTypeGo      ProjectType = "go"
	ProjectTypeNode    ProjectType = "node"
	ProjectTypePython  ProjectType = "python"
	ProjectTypeUnknown ProjectType = "unknown"
)

// Config is the complete KnowGraph configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Paths      PathsConfig      `yaml:"paths" json:"paths"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Server     ServerConfig     `yaml:"server" json:"server"`
	Retrieval  RetrievalConfig  `yaml:"retrieval" json:"retrieval"`
}

// PathsConfig configures which paths to include and exclude when
// crawling a project.
type PathsConfig struct {
	Include []string `yaml:"include" json:"include"`
	Exclude []string `yaml:"exclude" json:"exclude"`
}

// SearchConfig configures query-time behavior.
type SearchConfig struct {
	// RRFConstant is the reciprocal-rank-fusion smoothing parameter k.
	// Higher values flatten the impact of rank differences.
	RRFConstant int `yaml:"rrf_constant" json:"rrf_constant"`

	// MaxResults caps how many chunks a query returns.
	MaxResults int `yaml:"max_results" json:"max_results"`

	// Rerank enables the cross-encoder rerank stage by default.
	Rerank bool `yaml:"rerank" json:"rerank"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider selects the backend: "ollama" or "static".
	Provider string `yaml:"provider" json:"provider"`

	// Model is the embedding model name (Ollama model reference).
	Model string `yaml:"model" json:"model"`

	// Dimensions overrides auto-detection when non-zero. Every vector
	// in an index must share one dimension.
	Dimensions int `yaml:"dimensions" json:"dimensions"`

	// BatchSize for batch embedding requests.
	BatchSize int `yaml:"batch_size" json:"batch_size"`

	// OllamaHost records the Ollama API endpoint from ollama_host or
	// KNOWGRAPH_OLLAMA_HOST. The embedder factory does not read this
	// field; it takes the endpoint from KNOWGRAPH_OLLAMA_HOST, or
	// http://localhost:11434 when that is unset.
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	Transport string `yaml:"transport" json:"transport"`
	LogLevel  string `yaml:"log_level" json:"log_level"`
}

// RetrievalConfig holds the chunking, scrubbing, linking, and ranking
// knobs shared by ingestion and query.
type RetrievalConfig struct {
	// MaxChunkTokens bounds a single AST chunk before the sliding-window
	// fallback splits it further.
	MaxChunkTokens int `yaml:"max_chunk_tokens" json:"max_chunk_tokens"`
	// SlidingWindowTarget is the target token count per fallback window.
	SlidingWindowTarget int `yaml:"sliding_window_target" json:"sliding_window_target"`
	// SlidingWindowOverlap is the fraction of each fallback window that
	// overlaps with the next.
	SlidingWindowOverlap float64 `yaml:"sliding_window_overlap" json:"sliding_window_overlap"`
	// EmbeddingDim is the configured embedding vector width. The
	// commands size the vector store from the live embedder's dimension
	// and do not compare it with this value.
	EmbeddingDim int `yaml:"embedding_dim" json:"embedding_dim"`
	// BM25K is the BM25 k1 saturation parameter.
	BM25K float64 `yaml:"bm25_k" json:"bm25_k"`
	// ScrubScoreThreshold is the minimum detector confidence the scrub
	// gate treats as a match worth pseudonymizing.
	ScrubScoreThreshold float64 `yaml:"scrub_score_threshold" json:"scrub_score_threshold"`
	// PseudonymizerSeed seeds the scrub gate's deterministic pseudonym
	// generator; identical seeds produce identical pseudonyms across
	// processes.
	PseudonymizerSeed string `yaml:"pseudonymizer_seed" json:"pseudonymizer_seed"`
	// ResolverMinSimilarity is the name resolver's minimum similarity
	// score to accept a fuzzy service-name match.
	ResolverMinSimilarity float64 `yaml:"resolver_min_similarity" json:"resolver_min_similarity"`
	// FreshnessHalfLifeDays controls how fast conversational chunks'
	// freshness decays with age.
	FreshnessHalfLifeDays float64 `yaml:"freshness_half_life_days" json:"freshness_half_life_days"`
	// FreshnessWeight scales the freshness contribution to the final
	// score; 0 disables freshness entirely.
	FreshnessWeight float64 `yaml:"freshness_weight" json:"freshness_weight"`
}

// defaultExcludePatterns are always excluded from crawls.
var defaultExcludePatterns = []string{
	"**/node_modules/**",
	"**/.git/**",
	"**/vendor/**",
	"**/__pycache__/**",
	"**/dist/**",
	"**/build/**",
	"**/*.min.js",
	"**/*.min.css",
	"**/package-lock.json",
	"**/yarn.lock",
	"**/pnpm-lock.yaml",
	"**/go.sum",
}

// NewConfig creates a Config with defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			Include: []string{},
			Exclude: defaultExcludePatterns,
		},
		Search: SearchConfig{
			RRFConstant: 60,
			MaxResults:  20,
			Rerank:      false,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "", // empty defaults to ollama
			Model:      "qwen3-embedding:0.6b",
			Dimensions: 0, // auto-detect from the embedder
			BatchSize:  32,
			OllamaHost: "",
		},
		Server: ServerConfig{
			Transport: "stdio",
			LogLevel:  "info",
		},
		Retrieval: RetrievalConfig{
			MaxChunkTokens:        2048,
			SlidingWindowTarget:   1600,
			SlidingWindowOverlap:  0.1,
			EmbeddingDim:          768,
			BM25K:                 1.2,
			ScrubScoreThreshold:   0.35,
			PseudonymizerSeed:     "42",
			ResolverMinSimilarity: 0.6,
			FreshnessHalfLifeDays: 90,
			FreshnessWeight:       0.1,
		},
	}
}

// GetUserConfigPath returns the user configuration file path, following
// the XDG base-directory convention.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "knowgraph", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "knowgraph", "config.yaml")
	}
	return filepath.Join(home, ".config", "knowgraph", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user config.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists reports whether a user config file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// loadUserConfig loads the user config if present; a missing file is
// not an error.
func loadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()
	if !fileExists(configPath) {
		return nil, nil
	}

	cfg := NewConfig()
	if err := cfg.loadYAML(configPath); err != nil {
		return nil, fmt.Errorf("load user config from %s: %w", configPath, err)
	}
	return cfg, nil
}

// Load builds the effective configuration for a project directory:
// defaults, then user config, then .knowgraph.yaml, then KNOWGRAPH_*
// environment variables.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, err
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadFromFile loads .knowgraph.yaml (or .yml) from dir if present.
func (c *Config) loadFromFile(dir string) error {
	yamlPath := filepath.Join(dir, ".knowgraph.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return c.loadYAML(yamlPath)
	}

	ymlPath := filepath.Join(dir, ".knowgraph.yml")
	if _, err := os.Stat(ymlPath); err == nil {
		return c.loadYAML(ymlPath)
	}

	return nil
}

// loadYAML merges one YAML file's non-zero values into c.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith copies other's non-zero values into c. Excludes are
// appended to the defaults rather than replacing them, since losing
// the vendored-dir excludes is never what a project config intends.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if len(other.Paths.Include) > 0 {
		c.Paths.Include = other.Paths.Include
	}
	if len(other.Paths.Exclude) > 0 {
		c.Paths.Exclude = append(c.Paths.Exclude, other.Paths.Exclude...)
	}

	if other.Search.RRFConstant != 0 {
		c.Search.RRFConstant = other.Search.RRFConstant
	}
	if other.Search.MaxResults != 0 {
		c.Search.MaxResults = other.Search.MaxResults
	}
	if other.Search.Rerank {
		c.Search.Rerank = true
	}

	if other.Embeddings.Provider != "" {
		c.Embeddings.Provider = other.Embeddings.Provider
	}
	if other.Embeddings.Model != "" {
		c.Embeddings.Model = other.Embeddings.Model
	}
	if other.Embeddings.Dimensions != 0 {
		c.Embeddings.Dimensions = other.Embeddings.Dimensions
	}
	if other.Embeddings.BatchSize != 0 {
		c.Embeddings.BatchSize = other.Embeddings.BatchSize
	}
	if other.Embeddings.OllamaHost != "" {
		c.Embeddings.OllamaHost = other.Embeddings.OllamaHost
	}

	if other.Server.Transport != "" {
		c.Server.Transport = other.Server.Transport
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}

	if other.Retrieval.MaxChunkTokens != 0 {
		c.Retrieval.MaxChunkTokens = other.Retrieval.MaxChunkTokens
	}
	if other.Retrieval.SlidingWindowTarget != 0 {
		c.Retrieval.SlidingWindowTarget = other.Retrieval.SlidingWindowTarget
	}
	if other.Retrieval.SlidingWindowOverlap != 0 {
		c.Retrieval.SlidingWindowOverlap = other.Retrieval.SlidingWindowOverlap
	}
	if other.Retrieval.EmbeddingDim != 0 {
		c.Retrieval.EmbeddingDim = other.Retrieval.EmbeddingDim
	}
	if other.Retrieval.BM25K != 0 {
		c.Retrieval.BM25K = other.Retrieval.BM25K
	}
	if other.Retrieval.ScrubScoreThreshold != 0 {
		c.Retrieval.ScrubScoreThreshold = other.Retrieval.ScrubScoreThreshold
	}
	if other.Retrieval.PseudonymizerSeed != "" {
		c.Retrieval.PseudonymizerSeed = other.Retrieval.PseudonymizerSeed
	}
	if other.Retrieval.ResolverMinSimilarity != 0 {
		c.Retrieval.ResolverMinSimilarity = other.Retrieval.ResolverMinSimilarity
	}
	if other.Retrieval.FreshnessHalfLifeDays != 0 {
		c.Retrieval.FreshnessHalfLifeDays = other.Retrieval.FreshnessHalfLifeDays
	}
	if other.Retrieval.FreshnessWeight != 0 {
		c.Retrieval.FreshnessWeight = other.Retrieval.FreshnessWeight
	}
}

// applyEnvOverrides applies KNOWGRAPH_* environment variables, the
// highest-precedence layer.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("KNOWGRAPH_RRF_CONSTANT"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			c.Search.RRFConstant = k
		}
	}
	if v := os.Getenv("KNOWGRAPH_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("KNOWGRAPH_EMBEDDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("KNOWGRAPH_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("KNOWGRAPH_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
	}
	if v := os.Getenv("KNOWGRAPH_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("KNOWGRAPH_TRANSPORT"); v != "" {
		c.Server.Transport = v
	}
	if v := os.Getenv("KNOWGRAPH_FRESHNESS_WEIGHT"); v != "" {
		if w, err := strconv.ParseFloat(v, 64); err == nil && w >= 0 && w <= 1 {
			c.Retrieval.FreshnessWeight = w
		}
	}
	if v := os.Getenv("KNOWGRAPH_PSEUDONYMIZER_SEED"); v != "" {
		c.Retrieval.PseudonymizerSeed = v
	}
}

// DetectProjectType detects the project type from marker files.
// Priority: go.mod > package.json > pyproject.toml/requirements.txt.
func DetectProjectType(dir string) ProjectType {
	if fileExists(filepath.Join(dir, "go.mod")) {
		return ProjectTypeGo
	}
	if fileExists(filepath.Join(dir, "package.json")) {
		return ProjectTypeNode
	}
	if fileExists(filepath.Join(dir, "pyproject.toml")) ||
		fileExists(filepath.Join(dir, "requirements.txt")) {
		return ProjectTypePython
	}
	return ProjectTypeUnknown
}

// FindProjectRoot walks up from startDir looking for .git or a
// .knowgraph.yaml/.yml, falling back to startDir itself.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path: %w", err)
	}

	currentDir := absDir
	for {
		if dirExists(filepath.Join(currentDir, ".git")) {
			return currentDir, nil
		}
		if fileExists(filepath.Join(currentDir, ".knowgraph.yaml")) ||
			fileExists(filepath.Join(currentDir, ".knowgraph.yml")) {
			return currentDir, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return absDir, nil
		}
		currentDir = parentDir
	}
}

// DiscoverSourceDirs finds common source directories in the project.
func DiscoverSourceDirs(dir string) []string {
	commonSourceDirs := []string{"src", "lib", "pkg", "internal", "cmd"}
	frameworkDirs := []string{"app", "pages"}

	var found []string
	for _, d := range commonSourceDirs {
		if dirExists(filepath.Join(dir, d)) {
			found = append(found, d)
		}
	}
	if isNextJS(dir) {
		for _, d := range frameworkDirs {
			if dirExists(filepath.Join(dir, d)) {
				found = append(found, d)
			}
		}
	}
	return found
}

// DiscoverDocsDirs finds documentation directories and the README.
func DiscoverDocsDirs(dir string) []string {
	commonDocDirs := []string{"docs", "doc", "runbooks", "adr"}
	commonDocFiles := []string{"README.md", "readme.md", "README.markdown"}

	var found []string
	for _, d := range commonDocDirs {
		if dirExists(filepath.Join(dir, d)) {
			found = append(found, d)
		}
	}
	for _, f := range commonDocFiles {
		if fileExists(filepath.Join(dir, f)) {
			found = append(found, f)
			break
		}
	}
	return found
}

// isNextJS checks for a next dependency in package.json.
func isNextJS(dir string) bool {
	pkgPath := filepath.Join(dir, "package.json")
	if !fileExists(pkgPath) {
		return false
	}

	data, err := os.ReadFile(pkgPath)
	if err != nil {
		return false
	}

	var pkg struct {
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return false
	}

	_, hasNext := pkg.Dependencies["next"]
	_, hasNextDev := pkg.DevDependencies["next"]
	return hasNext || hasNextDev
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// String returns the project type name.
func (p ProjectType) String() string {
	return string(p)
}

// IsKnown reports whether the project type was recognized.
func (p ProjectType) IsKnown() bool {
	return p != ProjectTypeUnknown
}

// Validate checks the configuration for inconsistent values.
func (c *Config) Validate() error {
	if c.Search.RRFConstant < 0 {
		return fmt.Errorf("search.rrf_constant must be non-negative, got %d", c.Search.RRFConstant)
	}
	if c.Search.MaxResults < 0 {
		return fmt.Errorf("search.max_results must be non-negative, got %d", c.Search.MaxResults)
	}

	if c.Embeddings.Provider != "" { // empty defaults to ollama
		validProviders := map[string]bool{"static": true, "ollama": true}
		if !validProviders[strings.ToLower(c.Embeddings.Provider)] {
			return fmt.Errorf("embeddings.provider must be 'ollama', 'static', or empty, got %s", c.Embeddings.Provider)
		}
	}

	validTransports := map[string]bool{"stdio": true}
	if !validTransports[strings.ToLower(c.Server.Transport)] {
		return fmt.Errorf("server.transport must be 'stdio', got %s", c.Server.Transport)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}

	if c.Retrieval.SlidingWindowOverlap < 0 || c.Retrieval.SlidingWindowOverlap >= 1 {
		return fmt.Errorf("retrieval.sliding_window_overlap must be in [0, 1), got %f", c.Retrieval.SlidingWindowOverlap)
	}
	if c.Retrieval.FreshnessWeight < 0 || c.Retrieval.FreshnessWeight > 1 {
		return fmt.Errorf("retrieval.freshness_weight must be in [0, 1], got %f", c.Retrieval.FreshnessWeight)
	}
	if c.Retrieval.FreshnessHalfLifeDays <= 0 {
		return fmt.Errorf("retrieval.freshness_half_life_days must be positive, got %f", c.Retrieval.FreshnessHalfLifeDays)
	}
	if c.Retrieval.ResolverMinSimilarity < 0 || c.Retrieval.ResolverMinSimilarity > 1 {
		return fmt.Errorf("retrieval.resolver_min_similarity must be in [0, 1], got %f", c.Retrieval.ResolverMinSimilarity)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// LoadUserConfig loads the user configuration file; a missing file
// yields (nil, nil).
func LoadUserConfig() (*Config, error) {
	return loadUserConfig()
}
