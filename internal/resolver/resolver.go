// Package resolver normalizes and resolves raw call/deploy target
// strings (hostnames, DNS names, k8s service refs) to known service
// names: a normalize pass strips scheme/port/path and Kubernetes DNS
// suffixes, then resolution tries exact match before falling back
// through a similarity cascade. It never fabricates a match below the
// configured threshold.
package resolver

import (
	"net/url"
	"sort"
	"strings"
)

const defaultMinSimilarity = 0.6

// k8sSuffixes are stripped, longest first, before namespace stripping.
var k8sSuffixes = []string{".svc.cluster.local", ".cluster.local", ".svc"}

// Resolver resolves normalized target strings against a known set of
// service names.
type Resolver struct {
	services      map[string]struct{}
	minSimilarity float64
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithMinSimilarity overrides the default 0.6 similarity threshold.
func WithMinSimilarity(min float64) Option {
	return func(r *Resolver) {
		r.minSimilarity = min
	}
}

// NewResolver builds a Resolver over a known set of service names.
func NewResolver(services []string, opts ...Option) *Resolver {
	r := &Resolver{
		services:      make(map[string]struct{}, len(services)),
		minSimilarity: defaultMinSimilarity,
	}
	for _, s := range services {
		r.services[strings.ToLower(s)] = struct{}{}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Result is the outcome of resolving one raw target.
type Result struct {
	Service    string
	Confidence float64
	Resolved   bool
}

// Resolve normalizes raw and resolves it against the known service set.
// It returns Resolved=false when no candidate clears the similarity
// threshold; it never guesses below that bar.
func (r *Resolver) Resolve(raw string) Result {
	normalized := Normalize(raw)
	if normalized == "" {
		return Result{}
	}

	if _, ok := r.services[normalized]; ok {
		return Result{Service: normalized, Confidence: 1.0, Resolved: true}
	}

	type scored struct {
		name  string
		score float64
	}
	var candidates []scored
	for svc := range r.services {
		if score, ok := similarity(normalized, svc); ok {
			candidates = append(candidates, scored{svc, score})
		}
	}
	if len(candidates) == 0 {
		return Result{}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].name < candidates[j].name
	})

	best := candidates[0]
	if best.score < r.minSimilarity {
		return Result{}
	}
	return Result{Service: best.name, Confidence: best.score, Resolved: true}
}

// Normalize reduces a raw target to a bare, lowercase service name:
// parse as a URL when it has a scheme, else split on the first "/" or
// ":"; strip known Kubernetes DNS suffixes; keep only the first
// dot-segment to drop any namespace; lowercase and trim.
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	if strings.Contains(s, "://") {
		if u, err := url.Parse(s); err == nil && u.Hostname() != "" {
			s = u.Hostname()
		}
	} else {
		s = strings.SplitN(s, "/", 2)[0]
		s = strings.SplitN(s, ":", 2)[0]
	}

	for _, suffix := range k8sSuffixes {
		if strings.HasSuffix(s, suffix) {
			s = strings.TrimSuffix(s, suffix)
			break
		}
	}

	s = strings.SplitN(s, ".", 2)[0]
	return strings.ToLower(strings.TrimSpace(s))
}

// similarity scores how well target matches a candidate known service
// name via the cascade from resolver.py: prefix match (>=0.6),
// substring match, hyphen/underscore-split Jaccard word overlap, or a
// 3-char-prefix-of-parts fallback (score 0.5). ok is false when nothing
// in the cascade produces any signal at all.
func similarity(target, candidate string) (float64, bool) {
	if target == candidate {
		return 1.0, true
	}

	if strings.HasPrefix(candidate, target) || strings.HasPrefix(target, candidate) {
		shorter, longer := target, candidate
		if len(longer) < len(shorter) {
			shorter, longer = longer, shorter
		}
		ratio := float64(len(shorter)) / float64(len(longer))
		return max(0.6, ratio), true
	}

	if strings.Contains(candidate, target) || strings.Contains(target, candidate) {
		shorter, longer := target, candidate
		if len(longer) < len(shorter) {
			shorter, longer = longer, shorter
		}
		return float64(len(shorter)) / float64(len(longer)), true
	}

	targetWords := splitWords(target)
	candidateWords := splitWords(candidate)
	if len(targetWords) > 1 || len(candidateWords) > 1 {
		if score, ok := jaccard(targetWords, candidateWords); ok {
			return score, true
		}
	}

	if len(target) >= 3 && len(candidate) >= 3 && target[:3] == candidate[:3] {
		return 0.5, true
	}

	return 0, false
}

func splitWords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == '-' || r == '_'
	})
}

func jaccard(a, b []string) (float64, bool) {
	setA := map[string]struct{}{}
	for _, w := range a {
		setA[w] = struct{}{}
	}
	setB := map[string]struct{}{}
	for _, w := range b {
		setB[w] = struct{}{}
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0, false
	}
	intersection := 0
	for w := range setA {
		if _, ok := setB[w]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 || intersection == 0 {
		return 0, false
	}
	return float64(intersection) / float64(union), true
}
