// Package scrub implements the sensitivity-aware PII/secret scrub
// gate: CLEAN chunks pass through untouched; MAYBE_SENSITIVE and
// SENSITIVE chunks run through secret detection, entity detection,
// allowlist filtering, and position-safe replacement, producing an
// Audit record of what was found and removed.
package scrub

import (
	"sort"

	"github.com/strataforge/knowgraph/internal/types"
)

// Gate dispatches chunks to the scrub pipeline by sensitivity tier.
type Gate struct {
	secrets       *SecretDetector
	entities      *EntityAnalyzer
	allowlist     *Allowlist
	pseudonymizer *Pseudonymizer
}

// Option configures a Gate.
type Option func(*Gate)

// WithEntityAnalyzer overrides the default EntityAnalyzer, e.g. to
// restrict the scanned entity set or swap in a model-backed analyzer.
func WithEntityAnalyzer(a *EntityAnalyzer) Option {
	return func(g *Gate) { g.entities = a }
}

// WithAllowlist overrides the default Allowlist.
func WithAllowlist(a *Allowlist) Option {
	return func(g *Gate) { g.allowlist = a }
}

// NewGate builds a Gate. seed determines the pseudonymizer's
// deterministic output.
func NewGate(seed string, opts ...Option) *Gate {
	g := &Gate{
		secrets:       NewSecretDetector(),
		entities:      NewEntityAnalyzer(),
		allowlist:     NewAllowlist(),
		pseudonymizer: NewPseudonymizer(seed),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// replacement is one right-to-left substitution to apply to a chunk's
// text.
type replacement struct {
	Start, End int
	Text       string
}

// Scrub applies the tier-appropriate pipeline to raw and returns the
// resulting CleanChunk. A CLEAN tier is passthrough: Audit is nil and
// Text is bit-identical to raw.Text.
func (g *Gate) Scrub(raw *types.RawChunk) *types.CleanChunk {
	clean := &types.CleanChunk{
		ID:            raw.ID,
		SourceURI:     raw.SourceURI,
		ByteRange:     raw.ByteRange,
		SourceType:    raw.SourceType,
		Text:          raw.Text,
		ContextPrefix: raw.ContextPrefix,
		// Deep copy: the clean chunk outlives the raw one, and its
		// collections must never alias the chunker's buffers.
		Metadata: raw.Metadata.Clone(),
	}

	tier := raw.SourceType.Sensitivity
	if tier == types.SensitivityClean {
		return clean
	}

	secretMatches := g.secrets.Detect(raw.Text)
	entityMatches := g.allowlist.FilterEntities(g.entities.Detect(raw.Text))

	var replacements []replacement
	entityTypeSet := map[string]struct{}{}
	for _, m := range secretMatches {
		replacements = append(replacements, replacement{m.Start, m.End, "[REDACTED_" + string(m.Type) + "]"})
	}
	for _, m := range entityMatches {
		entityTypeSet[string(m.Type)] = struct{}{}
		replacements = append(replacements, replacement{m.Start, m.End, g.pseudonymizer.Pseudonym(m.Type, m.Surface)})
	}

	clean.Text = applyReplacements(raw.Text, replacements)

	entityTypes := make([]string, 0, len(entityTypeSet))
	for t := range entityTypeSet {
		entityTypes = append(entityTypes, t)
	}
	sort.Strings(entityTypes)

	clean.Audit = &types.Audit{
		Tier:          tier,
		EntitiesFound: len(entityMatches),
		EntityTypes:   entityTypes,
		SecretsFound:  len(secretMatches),
		Scrubbed:      len(replacements) > 0,
	}
	return clean
}

// applyReplacements substitutes every replacement into text, processing
// right-to-left (highest Start first) so earlier byte offsets stay
// valid as later ones are applied. Overlapping replacements are
// resolved by skipping any whose range has already been consumed by a
// prior (higher-start) replacement.
func applyReplacements(text string, replacements []replacement) string {
	if len(replacements) == 0 {
		return text
	}
	sort.Slice(replacements, func(i, j int) bool {
		return replacements[i].Start > replacements[j].Start
	})

	out := []byte(text)
	consumedFrom := len(text)
	for _, r := range replacements {
		if r.End > consumedFrom {
			continue
		}
		out = append(out[:r.Start:r.Start], append([]byte(r.Text), out[r.End:]...)...)
		consumedFrom = r.Start
	}
	return string(out)
}
