package chunk

import (
	"context"
	"strings"
	"testing"

	"github.com/strataforge/knowgraph/internal/types"
)

func codeLogicType(t *testing.T) types.SourceType {
	t.Helper()
	st, ok := types.Lookup(types.CorpusCodeLogic)
	if !ok {
		t.Fatal("CODE_LOGIC not registered")
	}
	return st
}

func TestASTChunkerOneChunkPerTopLevelSymbol(t *testing.T) {
	source := []byte(`package main

func alpha() {
	println("a")
}

func beta() {
	println("b")
}
`)
	c := NewASTChunker()
	chunks, err := c.Chunk(context.Background(), "repo/main.go", source, codeLogicType(t), types.Metadata{})
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %+v", len(chunks), chunks)
	}
	if chunks[0].Metadata.SymbolName != "alpha" || chunks[1].Metadata.SymbolName != "beta" {
		t.Fatalf("symbol names = %q, %q", chunks[0].Metadata.SymbolName, chunks[1].Metadata.SymbolName)
	}
	if chunks[0].Metadata.SymbolKind != "function" {
		t.Fatalf("symbol kind = %q, want function", chunks[0].Metadata.SymbolKind)
	}
}

func TestASTChunkerByteRangeFidelity(t *testing.T) {
	source := []byte(`package main

func handler() {
	doWork()
}
`)
	c := NewASTChunker()
	chunks, err := c.Chunk(context.Background(), "repo/h.go", source, codeLogicType(t), types.Metadata{})
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	for _, ch := range chunks {
		got := string(source[ch.ByteRange.Start:ch.ByteRange.End])
		if got != ch.Text {
			t.Fatalf("byte-range fidelity violated: slice %q != text %q", got, ch.Text)
		}
	}
}

func TestASTChunkerByteRangesMonotonic(t *testing.T) {
	source := []byte(`package main

func a() {}

func b() {}

func c() {}
`)
	c := NewASTChunker()
	chunks, err := c.Chunk(context.Background(), "repo/m.go", source, codeLogicType(t), types.Metadata{})
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	prevEnd := -1
	for _, ch := range chunks {
		if ch.ByteRange.Start < prevEnd {
			t.Fatalf("byte ranges not monotonic: start %d before previous end %d", ch.ByteRange.Start, prevEnd)
		}
		prevEnd = ch.ByteRange.End
	}
}

func TestASTChunkerIDsUniqueAndStable(t *testing.T) {
	source := []byte(`package main

func a() {}

func b() {}
`)
	c := NewASTChunker()
	first, err := c.Chunk(context.Background(), "repo/u.go", source, codeLogicType(t), types.Metadata{})
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	second, err := c.Chunk(context.Background(), "repo/u.go", source, codeLogicType(t), types.Metadata{})
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}

	seen := map[string]bool{}
	for i, ch := range first {
		if seen[ch.ID] {
			t.Fatalf("duplicate chunk ID %s", ch.ID)
		}
		seen[ch.ID] = true
		if ch.ID != second[i].ID {
			t.Fatalf("re-chunking changed ID: %s vs %s", ch.ID, second[i].ID)
		}
	}
}

func TestASTChunkerOversizedSymbolSplitsToFragments(t *testing.T) {
	// One function body far beyond the token budget, with no nested
	// boundaries, forces the sliding-window fallback.
	var sb strings.Builder
	sb.WriteString("package main\n\nfunc huge() {\n")
	for i := 0; i < 4000; i++ {
		sb.WriteString("\tcallSomethingWithALongName(aVariable, anotherVariable)\n")
	}
	sb.WriteString("}\n")

	c := NewASTChunker()
	chunks, err := c.Chunk(context.Background(), "repo/huge.go", []byte(sb.String()), codeLogicType(t), types.Metadata{})
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected the oversized function to split, got %d chunk(s)", len(chunks))
	}
	for _, ch := range chunks {
		if ch.Metadata.SymbolKind != string(SymbolFragment) {
			t.Fatalf("expected fragment kind on split pieces, got %q", ch.Metadata.SymbolKind)
		}
		if ch.Metadata.SymbolName != "huge" {
			t.Fatalf("fragments should carry the parent symbol name, got %q", ch.Metadata.SymbolName)
		}
	}
}

func TestASTChunkerUnsupportedExtensionFallsBackToLines(t *testing.T) {
	source := []byte("line one\nline two\nline three\n")
	c := NewASTChunker()
	chunks, err := c.Chunk(context.Background(), "repo/notes.rb", source, codeLogicType(t), types.Metadata{})
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("small unsupported file should yield one window, got %d", len(chunks))
	}
	if chunks[0].Metadata.SymbolName != "" {
		t.Fatalf("line fallback must not fabricate symbols, got %q", chunks[0].Metadata.SymbolName)
	}
}

func TestASTChunkerAttachesCallSites(t *testing.T) {
	source := []byte(`def fetch_user(user_id):
    return requests.get("http://user-service/api/users")
`)
	c := NewASTChunker()
	chunks, err := c.Chunk(context.Background(), "repo/client.py", source, codeLogicType(t), types.Metadata{})
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	var calls []string
	for _, ch := range chunks {
		calls = append(calls, ch.Metadata.CallsOut...)
	}
	found := false
	for _, target := range calls {
		if target == "user-service" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected user-service in calls_out, got %v", calls)
	}
}

func TestEstimateTokens(t *testing.T) {
	if got := EstimateTokens(strings.Repeat("x", 400)); got != 100 {
		t.Fatalf("EstimateTokens = %d, want 100", got)
	}
	if got := EstimateTokens(""); got != 0 {
		t.Fatalf("EstimateTokens(\"\") = %d, want 0", got)
	}
}
