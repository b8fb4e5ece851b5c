package search

import (
	"sort"

	"github.com/kgrail/kgrail/pkg/types"
)

// RRFK is the standard reciprocal rank fusion constant.
const RRFK = 60

// FuseRRF merges several ranked candidate lists with reciprocal rank
// fusion: each list contributes 1/(k+rank) per chunk, keyed by chunk id.
// A chunk ranked first in two variants beats one ranked first in only
// one. The fused list is sorted by fused score descending, chunk id
// ascending on ties.
func FuseRRF(lists [][]types.ScoredChunk, k int) []types.ScoredChunk {
	if k <= 0 {
		k = RRFK
	}
	fused := map[string]float64{}
	byID := map[string]types.ScoredChunk{}
	for _, list := range lists {
		for rank, c := range list {
			fused[c.ChunkID] += 1.0 / float64(k+rank+1)
			if _, ok := byID[c.ChunkID]; !ok {
				byID[c.ChunkID] = c
			}
		}
	}

	out := make([]types.ScoredChunk, 0, len(fused))
	for id, score := range fused {
		c := byID[id]
		c.FinalScore = score
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FinalScore != out[j].FinalScore {
			return out[i].FinalScore > out[j].FinalScore
		}
		return out[i].ChunkID < out[j].ChunkID
	})
	return out
}
