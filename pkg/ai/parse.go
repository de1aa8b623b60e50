package ai

import (
	"encoding/json"
	"strings"

	"github.com/rediverio/reviewd/pkg/aggregate"
	"github.com/rediverio/reviewd/pkg/review"
)

// degradedScore marks a chunk whose response could not be parsed. The run
// keeps the other chunks' results; this one only drags the average down.
const degradedScore = 30

// payload is the JSON object the system prompt demands from the model.
type payload struct {
	Score       int            `json:"score"`
	Summary     string         `json:"summary"`
	Issues      []review.Issue `json:"issues"`
	Highlights  []string       `json:"highlights"`
	Suggestions []string       `json:"suggestions"`
}

// ParseChunkResult extracts a chunk result from the model's reply text.
//
// Models routinely wrap the JSON in markdown code fences despite the prompt;
// those are stripped first. A reply that still fails to parse yields a
// degraded result instead of an error so one bad chunk cannot sink the run.
func ParseChunkResult(chunkID int, text string) aggregate.ChunkResult {
	cleaned := stripCodeFences(text)

	var p payload
	if err := json.Unmarshal([]byte(cleaned), &p); err != nil {
		return aggregate.ChunkResult{
			ChunkID: chunkID,
			Score:   degradedScore,
			Issues:  nil,
			Summary: "analysis response could not be parsed; chunk scored conservatively",
		}
	}

	return aggregate.ChunkResult{
		ChunkID:     chunkID,
		Score:       p.Score,
		Issues:      p.Issues,
		Summary:     p.Summary,
		Highlights:  p.Highlights,
		Suggestions: p.Suggestions,
	}
}

// stripCodeFences removes a leading ```json or ``` fence and a trailing
// ``` fence, leaving inner content untouched.
func stripCodeFences(text string) string {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```json") {
		s = s[len("```json"):]
	} else if strings.HasPrefix(s, "```") {
		s = s[len("```"):]
	}
	if strings.HasSuffix(s, "```") {
		s = s[:len(s)-len("```")]
	}
	return strings.TrimSpace(s)
}
