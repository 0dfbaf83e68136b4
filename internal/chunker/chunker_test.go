package chunker

import (
	"strings"
	"testing"
)

func TestChunk_Deterministic(t *testing.T) {
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 200)
	opts := DefaultOptions()

	first := Chunk(text, "src-1", opts)
	second := Chunk(text, "src-1", opts)

	if len(first) == 0 {
		t.Fatal("expected at least one chunk")
	}
	if len(first) != len(second) {
		t.Fatalf("chunk counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("chunk %d differs between runs", i)
		}
	}
}

func TestChunk_MinSizeEnforced(t *testing.T) {
	text := strings.Repeat("Lorem ipsum dolor sit amet consectetur adipiscing elit. ", 100)
	opts := Options{ChunkSize: 500, ChunkOverlap: 50, MinChunkSize: 100}

	chunks := Chunk(text, "src", opts)
	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}
	for _, c := range chunks {
		if len(c.Text) < opts.MinChunkSize {
			t.Errorf("chunk %d is %d chars, below minimum %d", c.Index, len(c.Text), opts.MinChunkSize)
		}
	}
}

func TestChunk_ShortInputDropped(t *testing.T) {
	chunks := Chunk("too short", "src", DefaultOptions())
	if len(chunks) != 0 {
		t.Errorf("fragment below minimum size should be dropped, got %d chunks", len(chunks))
	}
}

func TestChunk_EmptyInput(t *testing.T) {
	if got := Chunk("", "src", DefaultOptions()); got != nil {
		t.Errorf("expected nil for empty input, got %v", got)
	}
	if got := Chunk("   \n  ", "src", DefaultOptions()); got != nil {
		t.Errorf("expected nil for whitespace input, got %v", got)
	}
}

func TestChunk_PrefersParagraphBoundary(t *testing.T) {
	para1 := strings.Repeat("First paragraph sentence here. ", 12)
	para2 := strings.Repeat("Second paragraph sentence here. ", 12)
	text := para1 + "\n\n" + para2

	opts := Options{ChunkSize: len(para1) + 50, ChunkOverlap: 0, MinChunkSize: 50}
	chunks := Chunk(text, "src", opts)

	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(chunks))
	}
	// The first chunk should end at the paragraph break, not mid-sentence
	// inside the second paragraph.
	if strings.Contains(chunks[0].Text, "Second paragraph") {
		t.Errorf("first chunk crossed the paragraph boundary: %q", chunks[0].Text[len(chunks[0].Text)-60:])
	}
}

func TestChunk_IndicesSequential(t *testing.T) {
	text := strings.Repeat("Sentence for index checking purposes. ", 300)
	chunks := Chunk(text, "src", DefaultOptions())
	for i, c := range chunks {
		if c.Index != i {
			t.Errorf("chunk %d has index %d", i, c.Index)
		}
		if c.SourceID != "src" {
			t.Errorf("chunk %d has source %q", i, c.SourceID)
		}
	}
}

func TestChunk_OverlapCarriesContext(t *testing.T) {
	text := strings.Repeat("abcdefghij ", 400)
	opts := Options{ChunkSize: 600, ChunkOverlap: 100, MinChunkSize: 100}
	chunks := Chunk(text, "src", opts)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	// The tail of chunk N should reappear at the head of chunk N+1.
	tail := chunks[0].Text[len(chunks[0].Text)-20:]
	if !strings.Contains(chunks[1].Text[:150], strings.TrimSpace(tail)) {
		t.Errorf("expected overlap between consecutive chunks")
	}
}
