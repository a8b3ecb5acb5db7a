package scrub

import (
	"fmt"
	"hash/fnv"
	"math/rand"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Pseudonymizer generates deterministic, consistent replacement values
// for detected entities: the same (entity type, surface) pair always
// yields the same pseudonym, across processes, as long as the seed is
// the same. Each key draws from its own rand.Rand seeded from
// (seed, type, surface) rather than one shared sequence, so two
// processes resolving entities in a different order still agree.
type Pseudonymizer struct {
	seed  string
	cache sync.Map // entityCacheKey -> string
	group singleflight.Group
}

// NewPseudonymizer builds a Pseudonymizer. seed is mixed into every
// per-key derivation, so changing it reshuffles every pseudonym without
// code changes.
func NewPseudonymizer(seed string) *Pseudonymizer {
	return &Pseudonymizer{seed: seed}
}

// Pseudonym returns the replacement text for one (entityType, surface)
// pair, generating and caching it on first use. Concurrent callers
// asking for the same key collapse into a single generation via
// singleflight.
func (p *Pseudonymizer) Pseudonym(entityType EntityType, surface string) string {
	key := cacheKey(entityType, surface)
	if v, ok := p.cache.Load(key); ok {
		return v.(string)
	}

	v, _, _ := p.group.Do(key, func() (interface{}, error) {
		if v, ok := p.cache.Load(key); ok {
			return v.(string), nil
		}
		generated := p.generate(entityType, surface)
		p.cache.Store(key, generated)
		return generated, nil
	})
	return v.(string)
}

func cacheKey(entityType EntityType, surface string) string {
	return string(entityType) + "\x00" + strings.ToLower(strings.TrimSpace(surface))
}

// generate dispatches to a per-type generator. Low-sensitivity classes
// (names, emails, phones, places, dates) get a realistic fake drawn
// from a rand.Rand seeded deterministically from (p.seed, entityType,
// case-folded surface) — not a single shared sequence, so that two
// processes resolving entities in a different order still produce
// identical pseudonyms for the same key. High-sensitivity classes
// (SSN, credit card, IP) get an opaque mask: a realistic fake would be
// re-detected by the analyzer's own patterns on a second scrub pass,
// so the mask is what makes scrubbing idempotent for them.
func (p *Pseudonymizer) generate(entityType EntityType, surface string) string {
	switch entityType {
	case EntitySSN:
		return "[REDACTED_SSN]"
	case EntityCreditCard:
		return "[REDACTED_CREDIT_CARD]"
	case EntityIPAddress:
		return "[REDACTED_IP]"
	}

	rng := rand.New(rand.NewSource(p.seedFor(entityType, surface)))
	switch entityType {
	case EntityEmail:
		return fmt.Sprintf("user%d@example.com", rng.Intn(900000)+100000)
	case EntityPhone:
		return fmt.Sprintf("555-%03d-%04d", rng.Intn(1000), rng.Intn(10000))
	case EntityPerson:
		return fmt.Sprintf("%s %s", pseudoFirstNames[rng.Intn(len(pseudoFirstNames))], pseudoLastNames[rng.Intn(len(pseudoLastNames))])
	case EntityLocation:
		return pseudoCities[rng.Intn(len(pseudoCities))]
	case EntityDateTime:
		return fmt.Sprintf("%d-%02d-%02d", 1970+rng.Intn(50), rng.Intn(12)+1, rng.Intn(28)+1)
	default:
		return fmt.Sprintf("[REDACTED_%s]", entityType)
	}
}

// seedFor hashes (p.seed, entityType, surface) into an int64 with FNV-1a
// rather than a cryptographic hash: the pseudonymizer needs a stable,
// well-distributed seed, not collision resistance against an adversary.
func (p *Pseudonymizer) seedFor(entityType EntityType, surface string) int64 {
	h := fnv.New64a()
	h.Write([]byte(p.seed))
	h.Write([]byte{0})
	h.Write([]byte(entityType))
	h.Write([]byte{0})
	h.Write([]byte(strings.ToLower(strings.TrimSpace(surface))))
	return int64(h.Sum64())
}

var pseudoFirstNames = []string{
	"Alex", "Jordan", "Taylor", "Morgan", "Casey", "Riley", "Jamie", "Avery", "Drew", "Sam",
}

var pseudoLastNames = []string{
	"Carter", "Bennett", "Reyes", "Nguyen", "Patel", "Brooks", "Fischer", "Hayes", "Ortiz", "Singh",
}

var pseudoCities = []string{
	"Springfield", "Riverton", "Fairview", "Lakewood", "Ashford", "Milton", "Brookside", "Granville",
}
