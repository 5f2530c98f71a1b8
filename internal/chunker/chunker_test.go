package chunker

import (
	"fmt"
	"math"
	"testing"

	"github.com/seanblong/videoseek/pkg/models"
)

// makeSegments builds a gapless, non-overlapping segment list where each
// segment spans step seconds.
func makeSegments(n int, step float64) []models.TranscriptSegment {
	segs := make([]models.TranscriptSegment, 0, n)
	for i := 0; i < n; i++ {
		segs = append(segs, models.TranscriptSegment{
			Start: float64(i) * step,
			End:   float64(i+1) * step,
			Text:  fmt.Sprintf("segment %d", i),
		})
	}
	return segs
}

func TestSplitEmptyInput(t *testing.T) {
	if got := Split(nil, 30.0); len(got) != 0 {
		t.Fatalf("expected no chunks for empty input, got %d", len(got))
	}
}

func TestSplitSingleSegment(t *testing.T) {
	segs := []models.TranscriptSegment{{Start: 0, End: 5, Text: "hello world"}}
	chunks := Split(segs, 30.0)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	c := chunks[0]
	if c.Start != 0 || c.End != 5 || c.Text != "hello world" {
		t.Errorf("unexpected chunk: %+v", c)
	}
	if len(c.Segments) != 1 {
		t.Errorf("expected 1 constituent segment, got %d", len(c.Segments))
	}
}

func TestSplitOverlongSegmentBecomesOwnChunk(t *testing.T) {
	// A 90s segment with a 30s target must not be split, and must not
	// absorb the following segment.
	segs := []models.TranscriptSegment{
		{Start: 0, End: 90, Text: "long lecture intro"},
		{Start: 90, End: 95, Text: "short follow up"},
	}
	chunks := Split(segs, 30.0)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].End != 90 || len(chunks[0].Segments) != 1 {
		t.Errorf("overlong segment was merged: %+v", chunks[0])
	}
	if chunks[1].Start != 90 || chunks[1].Text != "short follow up" {
		t.Errorf("unexpected trailing chunk: %+v", chunks[1])
	}
}

func TestSplitCoverage(t *testing.T) {
	// Gapless input: chunk spans must be ordered, non-overlapping, and
	// concatenate to the full input span.
	const step = 4.0
	segs := makeSegments(25, step) // 100s total
	chunks := Split(segs, 30.0)
	if len(chunks) == 0 {
		t.Fatal("no chunks produced")
	}
	if chunks[0].Start != segs[0].Start {
		t.Errorf("first chunk starts at %v, want %v", chunks[0].Start, segs[0].Start)
	}
	if last := chunks[len(chunks)-1]; last.End != segs[len(segs)-1].End {
		t.Errorf("last chunk ends at %v, want %v", last.End, segs[len(segs)-1].End)
	}
	for i := 1; i < len(chunks); i++ {
		if chunks[i].Start != chunks[i-1].End {
			t.Errorf("gap between chunk %d (end %v) and %d (start %v)",
				i-1, chunks[i-1].End, i, chunks[i].Start)
		}
	}
	// Every segment lands in exactly one chunk.
	total := 0
	for _, c := range chunks {
		total += len(c.Segments)
	}
	if total != len(segs) {
		t.Errorf("segments distributed = %d, want %d", total, len(segs))
	}
}

func TestSplitDurationPolicy(t *testing.T) {
	// Every chunk except possibly the last spans at least the target.
	const target = 30.0
	segs := makeSegments(17, 7.0)
	chunks := Split(segs, target)
	for i, c := range chunks[:len(chunks)-1] {
		if span := c.End - c.Start; span < target && len(c.Segments) > 1 {
			t.Errorf("chunk %d span %v below target %v", i, span, target)
		}
	}
}

func TestSplitTextIsSpaceJoined(t *testing.T) {
	segs := []models.TranscriptSegment{
		{Start: 0, End: 10, Text: " gradient descent "},
		{Start: 10, End: 20, Text: "minimizes loss"},
	}
	chunks := Split(segs, 30.0)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Text != "gradient descent minimizes loss" {
		t.Errorf("unexpected text: %q", chunks[0].Text)
	}
}

func TestSplitNonPositiveTargetUsesDefault(t *testing.T) {
	segs := makeSegments(10, 5.0) // 50s total
	chunks := Split(segs, 0)
	// With the 30s default, a 50s input yields two chunks.
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks with default duration, got %d", len(chunks))
	}
	if span := chunks[0].End - chunks[0].Start; math.Abs(span-30.0) > 1e-9 {
		t.Errorf("first chunk span = %v, want 30", span)
	}
}
