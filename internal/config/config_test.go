package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, 60, cfg.Search.RRFConstant)
	assert.Equal(t, 20, cfg.Search.MaxResults)
	assert.Equal(t, "stdio", cfg.Server.Transport)

	// The retrieval knobs carry the documented defaults.
	assert.Equal(t, 2048, cfg.Retrieval.MaxChunkTokens)
	assert.Equal(t, 1600, cfg.Retrieval.SlidingWindowTarget)
	assert.InDelta(t, 0.1, cfg.Retrieval.SlidingWindowOverlap, 1e-9)
	assert.Equal(t, 768, cfg.Retrieval.EmbeddingDim)
	assert.InDelta(t, 0.35, cfg.Retrieval.ScrubScoreThreshold, 1e-9)
	assert.Equal(t, "42", cfg.Retrieval.PseudonymizerSeed)
	assert.InDelta(t, 0.6, cfg.Retrieval.ResolverMinSimilarity, 1e-9)
	assert.InDelta(t, 90.0, cfg.Retrieval.FreshnessHalfLifeDays, 1e-9)
	assert.InDelta(t, 0.1, cfg.Retrieval.FreshnessWeight, 1e-9)
}

func TestNewConfigValidates(t *testing.T) {
	assert.NoError(t, NewConfig().Validate())
}

func TestLoadProjectConfigOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "no-user-config"))

	content := `
search:
  rrf_constant: 90
embeddings:
  provider: static
retrieval:
  freshness_weight: 0.25
  pseudonymizer_seed: "7"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".knowgraph.yaml"), []byte(content), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 90, cfg.Search.RRFConstant)
	assert.Equal(t, "static", cfg.Embeddings.Provider)
	assert.InDelta(t, 0.25, cfg.Retrieval.FreshnessWeight, 1e-9)
	assert.Equal(t, "7", cfg.Retrieval.PseudonymizerSeed)

	// Untouched values keep defaults.
	assert.Equal(t, 2048, cfg.Retrieval.MaxChunkTokens)
}

func TestLoadMissingProjectConfigUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "no-user-config"))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 60, cfg.Search.RRFConstant)
}

func TestLoadUserThenProjectPrecedence(t *testing.T) {
	dir := t.TempDir()
	userDir := filepath.Join(dir, "xdg")
	t.Setenv("XDG_CONFIG_HOME", userDir)

	require.NoError(t, os.MkdirAll(filepath.Join(userDir, "knowgraph"), 0o755))
	userCfg := "search:\n  rrf_constant: 30\n  max_results: 50\n"
	require.NoError(t, os.WriteFile(filepath.Join(userDir, "knowgraph", "config.yaml"), []byte(userCfg), 0o644))

	projCfg := "search:\n  rrf_constant: 75\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".knowgraph.yaml"), []byte(projCfg), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	// Project overrides user; user overrides defaults where project is silent.
	assert.Equal(t, 75, cfg.Search.RRFConstant)
	assert.Equal(t, 50, cfg.Search.MaxResults)
}

func TestEnvOverridesWinOverFiles(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "no-user-config"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".knowgraph.yaml"), []byte("search:\n  rrf_constant: 75\n"), 0o644))

	t.Setenv("KNOWGRAPH_RRF_CONSTANT", "120")
	t.Setenv("KNOWGRAPH_EMBEDDER", "static")
	t.Setenv("KNOWGRAPH_PSEUDONYMIZER_SEED", "pinned")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 120, cfg.Search.RRFConstant)
	assert.Equal(t, "static", cfg.Embeddings.Provider)
	assert.Equal(t, "pinned", cfg.Retrieval.PseudonymizerSeed)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "no-user-config"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".knowgraph.yaml"), []byte("embeddings:\n  provider: mainframe\n"), 0o644))

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "no-user-config"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".knowgraph.yaml"), []byte("search: ["), 0o644))

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestValidateBounds(t *testing.T) {
	cfg := NewConfig()
	cfg.Retrieval.SlidingWindowOverlap = 1.2
	assert.Error(t, cfg.Validate())

	cfg = NewConfig()
	cfg.Retrieval.FreshnessWeight = -0.1
	assert.Error(t, cfg.Validate())

	cfg = NewConfig()
	cfg.Retrieval.FreshnessHalfLifeDays = 0
	assert.Error(t, cfg.Validate())

	cfg = NewConfig()
	cfg.Server.Transport = "sse"
	assert.Error(t, cfg.Validate())
}

func TestMergeAppendsExcludes(t *testing.T) {
	base := NewConfig()
	defaultCount := len(base.Paths.Exclude)

	base.mergeWith(&Config{Paths: PathsConfig{Exclude: []string{"**/generated/**"}}})
	assert.Len(t, base.Paths.Exclude, defaultCount+1)
	assert.Contains(t, base.Paths.Exclude, "**/generated/**")
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "no-user-config"))
	path := filepath.Join(dir, ".knowgraph.yaml")

	cfg := NewConfig()
	cfg.Search.RRFConstant = 42
	require.NoError(t, cfg.WriteYAML(path))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 42, loaded.Search.RRFConstant)
}

func TestDetectProjectType(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, ProjectTypeUnknown, DetectProjectType(dir))
	assert.False(t, DetectProjectType(dir).IsKnown())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "requirements.txt"), []byte(""), 0o644))
	assert.Equal(t, ProjectTypePython, DetectProjectType(dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "package.json"), []byte("{}"), 0o644))
	assert.Equal(t, ProjectTypeNode, DetectProjectType(dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module x"), 0o644))
	assert.Equal(t, ProjectTypeGo, DetectProjectType(dir))
}

func TestFindProjectRoot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0o755))
	nested := filepath.Join(root, "services", "billing")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	found, err := FindProjectRoot(nested)
	require.NoError(t, err)
	// Resolve symlinks (macOS tempdirs) before comparing.
	wantRoot, _ := filepath.EvalSymlinks(root)
	gotRoot, _ := filepath.EvalSymlinks(found)
	assert.Equal(t, wantRoot, gotRoot)
}

func TestDiscoverSourceAndDocsDirs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "internal"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "docs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("# x"), 0o644))

	assert.Contains(t, DiscoverSourceDirs(dir), "internal")

	docs := DiscoverDocsDirs(dir)
	assert.Contains(t, docs, "docs")
	assert.Contains(t, docs, "README.md")
}
