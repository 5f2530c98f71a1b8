// Package chunker groups timestamped transcript segments into contiguous,
// duration-bounded chunks suitable for embedding and retrieval.
package chunker

import (
	"strings"

	"github.com/seanblong/videoseek/pkg/models"
)

// DefaultChunkDuration is the target span of a chunk in seconds.
const DefaultChunkDuration = 30.0

// Split groups ordered transcript segments into chunks whose spans
// approximate (and may exceed) targetDuration seconds.
//
// The duration check happens before a segment is merged in, so a chunk is
// closed only once its span has already reached the target; the segment that
// triggered the close seeds the next chunk. Segments are never split, which
// means a single segment longer than targetDuration becomes a chunk on its
// own. For gapless, non-overlapping input the output chunks cover the input
// span exactly; that precondition is the transcriber's to uphold, not
// verified here.
func Split(segments []models.TranscriptSegment, targetDuration float64) []models.Chunk {
	if len(segments) == 0 {
		return nil
	}
	if targetDuration <= 0 {
		targetDuration = DefaultChunkDuration
	}

	var chunks []models.Chunk
	current := seed(segments[0])

	for _, seg := range segments[1:] {
		if current.End-current.Start >= targetDuration {
			chunks = append(chunks, current)
			current = seed(seg)
			continue
		}
		current.End = seg.End
		current.Text = joinText(current.Text, seg.Text)
		current.Segments = append(current.Segments, seg)
	}

	if strings.TrimSpace(current.Text) != "" {
		chunks = append(chunks, current)
	}
	return chunks
}

func seed(seg models.TranscriptSegment) models.Chunk {
	return models.Chunk{
		Start:    seg.Start,
		End:      seg.End,
		Text:     strings.TrimSpace(seg.Text),
		Segments: []models.TranscriptSegment{seg},
	}
}

func joinText(a, b string) string {
	b = strings.TrimSpace(b)
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + " " + b
	}
}
