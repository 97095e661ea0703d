package infer

import (
	"cmp"
	"slices"

	"forumgraph/internal/models"
)

// Edge folds every interaction between one ordered pair of users.
type Edge struct {
	SourceUserID string                         `json:"source_user_id"`
	TargetUserID string                         `json:"target_user_id"`
	Count        int                            `json:"count"`
	Weight       float64                        `json:"weight"`
	Types        map[models.InteractionType]int `json:"types"`
}

// Aggregate collapses interactions into weighted directed edges, heaviest
// first. Weight is the sum of confidences.
func Aggregate(set []models.Interaction) []Edge {
	type pair struct{ src, dst string }
	idx := map[pair]int{}
	var edges []Edge
	for _, in := range set {
		k := pair{in.SourceUserID, in.TargetUserID}
		i, ok := idx[k]
		if !ok {
			i = len(edges)
			idx[k] = i
			edges = append(edges, Edge{
				SourceUserID: in.SourceUserID,
				TargetUserID: in.TargetUserID,
				Types:        map[models.InteractionType]int{},
			})
		}
		edges[i].Count++
		edges[i].Weight += in.Confidence
		edges[i].Types[in.Type]++
	}
	slices.SortStableFunc(edges, func(a, b Edge) int {
		if c := cmp.Compare(b.Weight, a.Weight); c != 0 {
			return c
		}
		if c := cmp.Compare(a.SourceUserID, b.SourceUserID); c != 0 {
			return c
		}
		return cmp.Compare(a.TargetUserID, b.TargetUserID)
	})
	return edges
}
