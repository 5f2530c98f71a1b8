package models

// TranscriptSegment is a single timestamped piece of speech produced by the
// transcription service. Times are seconds from the start of the video.
type TranscriptSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcription is the full result of transcribing one video's audio track.
type Transcription struct {
	Text     string              `json:"text"`
	Segments []TranscriptSegment `json:"segments"`
	Language string              `json:"language,omitempty"`
}

// Chunk groups consecutive transcript segments into one retrievable unit
// spanning roughly the configured chunk duration.
type Chunk struct {
	Start    float64             `json:"start"`
	End      float64             `json:"end"`
	Text     string              `json:"text"`
	Segments []TranscriptSegment `json:"segments"`
}

// IndexEntry is the metadata stored alongside each vector in the index.
// ChunkIndex is a globally increasing identifier assigned at add time; it is
// opaque and must not be used as a position into any list.
type IndexEntry struct {
	VideoPath  string  `json:"video_path"`
	Start      float64 `json:"start_time"`
	End        float64 `json:"end_time"`
	Text       string  `json:"text"`
	ChunkIndex int     `json:"chunk_index"`
}

// SearchResult pairs an index entry with its similarity score. Vectors are
// stored L2-normalized, so the score is the cosine similarity in [-1, 1].
type SearchResult struct {
	Entry IndexEntry `json:"entry"`
	Score float64    `json:"score"`
}
