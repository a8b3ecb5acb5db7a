package scrub

import (
	"strings"
	"testing"

	"github.com/strataforge/knowgraph/internal/types"
)

func mustType(t *testing.T, ct types.CorpusType) types.SourceType {
	t.Helper()
	st, ok := types.Lookup(ct)
	if !ok {
		t.Fatalf("no SourceType registered for %s", ct)
	}
	return st
}

func TestGateCleanPassthrough(t *testing.T) {
	g := NewGate("seed")
	raw := &types.RawChunk{
		ID:         "abc123",
		SourceType: mustType(t, types.CorpusCodeLogic),
		Text:       "func main() { fmt.Println(\"jane@acme.com\") }",
	}
	clean := g.Scrub(raw)
	if clean.Audit != nil {
		t.Fatalf("expected nil audit for CLEAN tier, got %+v", clean.Audit)
	}
	if clean.Text != raw.Text {
		t.Fatalf("expected bit-identical text, got %q want %q", clean.Text, raw.Text)
	}
}

func TestGateSensitiveTranscript(t *testing.T) {
	g := NewGate("seed")
	raw := &types.RawChunk{
		ID:         "def456",
		SourceType: mustType(t, types.CorpusConvoTranscript),
		Text:       "Contact Jane Smith at jane@acme.com",
	}
	clean := g.Scrub(raw)
	if clean.Audit == nil {
		t.Fatal("expected an audit record for SENSITIVE tier")
	}
	if clean.Audit.Tier != types.SensitivitySensitive {
		t.Fatalf("tier = %v, want SENSITIVE", clean.Audit.Tier)
	}
	if strings.Contains(clean.Text, "Jane Smith") {
		t.Fatalf("text still contains the PERSON entity: %q", clean.Text)
	}
	if strings.Contains(clean.Text, "jane@acme.com") {
		t.Fatalf("text still contains the EMAIL entity: %q", clean.Text)
	}
	if clean.Audit.EntitiesFound < 2 {
		t.Fatalf("EntitiesFound = %d, want >= 2", clean.Audit.EntitiesFound)
	}
}

func TestGateMetadataCloneNotAliased(t *testing.T) {
	g := NewGate("seed")
	raw := &types.RawChunk{
		ID:         "ghi789",
		SourceType: mustType(t, types.CorpusConvoSlack),
		Text:       "no pii here",
		Metadata: types.Metadata{
			CallsOut: []string{"svc-a"},
		},
	}
	clean := g.Scrub(raw)
	clean.Metadata.CallsOut[0] = "mutated"
	if raw.Metadata.CallsOut[0] == "mutated" {
		t.Fatal("mutating clean chunk metadata mutated the raw chunk's slice")
	}
}

func TestGateAllowlistSuppressesFixtures(t *testing.T) {
	g := NewGate("seed")
	raw := &types.RawChunk{
		ID:         "jkl012",
		SourceType: mustType(t, types.CorpusDocGoogle),
		Text:       "reach the team at test@example.com",
	}
	clean := g.Scrub(raw)
	if clean.Text != raw.Text {
		t.Fatalf("allowlisted surface should not be scrubbed, got %q", clean.Text)
	}
	if clean.Audit.Scrubbed {
		t.Fatal("expected Scrubbed=false when every finding is allowlisted")
	}
}

func TestApplyReplacementsPositionSafe(t *testing.T) {
	text := "aaaaBBBBcccc"
	reps := []replacement{
		{Start: 0, End: 4, Text: "X"},
		{Start: 4, End: 8, Text: "YY"},
	}
	out := applyReplacements(text, reps)
	if out != "XYYcccc" {
		t.Fatalf("applyReplacements() = %q, want %q", out, "XYYcccc")
	}
}
