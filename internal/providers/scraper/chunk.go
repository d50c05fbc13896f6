package scraper

import (
	"sort"
	"strings"
)

// Default chunking parameters for the chat responder.
const (
	ChunkSize    = 500
	ChunkOverlap = 100
	TopChunks    = 3
)

// Chunk splits text into word-aligned chunks of roughly size characters.
// Consecutive chunks share about overlap characters of trailing words.
func Chunk(text string, size, overlap int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var chunks []string
	var current []string
	length := 0

	for _, w := range words {
		current = append(current, w)
		length += len(w) + 1

		if length < size {
			continue
		}
		chunks = append(chunks, strings.Join(current, " "))

		keep := 0
		if avg := float64(length) / float64(len(current)); avg > 0 {
			keep = int(float64(overlap) / avg)
		}
		if keep >= len(current) {
			keep = len(current) - 1
		}
		if keep <= 0 {
			current, length = nil, 0
			continue
		}
		current = append([]string(nil), current[len(current)-keep:]...)
		length = len(strings.Join(current, " "))
	}

	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}
	return chunks
}

// Keywords returns the lowercased words of query longer than three characters.
func Keywords(query string) []string {
	var out []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		if len(w) > 3 {
			out = append(out, w)
		}
	}
	return out
}

// Rank scores chunks by how many keywords of query each contains and
// returns up to n chunks with a positive score, best first.
func Rank(chunks []string, query string, n int) []string {
	keywords := Keywords(query)
	if len(keywords) == 0 {
		return nil
	}

	type scored struct {
		chunk string
		score int
	}
	var hits []scored
	for _, c := range chunks {
		lower := strings.ToLower(c)
		score := 0
		for _, k := range keywords {
			if strings.Contains(lower, k) {
				score++
			}
		}
		if score > 0 {
			hits = append(hits, scored{c, score})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	if len(hits) > n {
		hits = hits[:n]
	}
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.chunk
	}
	return out
}
