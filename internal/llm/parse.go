package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrMalformed is returned when no recovery strategy yields valid JSON.
var ErrMalformed = errors.New("llm: malformed json response")

var fencedBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// DecodeJSON extracts a JSON object from a model response and unmarshals
// it into target. Strategies are tried in order: the raw text as-is, the
// body of a fenced code block, then the widest brace-delimited span.
// Failures wrap ErrMalformed so callers can degrade instead of aborting.
func DecodeJSON(raw string, target any) error {
	for _, candidate := range jsonCandidates(raw) {
		if json.Valid([]byte(candidate)) {
			if err := json.Unmarshal([]byte(candidate), target); err != nil {
				return fmt.Errorf("%w: %v", ErrMalformed, err)
			}
			return nil
		}
	}

	return ErrMalformed
}

func jsonCandidates(raw string) []string {
	trimmed := strings.TrimSpace(raw)
	candidates := []string{trimmed}

	if m := fencedBlock.FindStringSubmatch(trimmed); m != nil {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start >= 0 && end > start {
		candidates = append(candidates, trimmed[start:end+1])
	}

	return candidates
}
