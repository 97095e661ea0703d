package infer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forumgraph/internal/models"
)

func TestAggregate(t *testing.T) {
	edge := func(src, dst string, typ models.InteractionType, conf float64) models.Interaction {
		return models.Interaction{SourceUserID: src, TargetUserID: dst, Type: typ, Confidence: conf}
	}
	got := Aggregate([]models.Interaction{
		edge("2", "1", models.InteractionMention, 0.5),
		edge("3", "1", models.InteractionQuote, 1.0),
		edge("2", "1", models.InteractionQuote, 0.9),
		edge("1", "2", models.InteractionImplicitReply, 0.2),
	})
	require.Len(t, got, 3)

	assert.Equal(t, "2", got[0].SourceUserID)
	assert.Equal(t, 2, got[0].Count)
	assert.InDelta(t, 1.4, got[0].Weight, 1e-9)
	assert.Equal(t, map[models.InteractionType]int{models.InteractionMention: 1, models.InteractionQuote: 1}, got[0].Types)

	assert.Equal(t, "3", got[1].SourceUserID)
	assert.Equal(t, "1", got[2].SourceUserID)
	assert.Equal(t, "2", got[2].TargetUserID)

	assert.Empty(t, Aggregate(nil))
}
