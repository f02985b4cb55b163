package review

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/ozark-survey/cavedb/internal/diff"
	"github.com/ozark-survey/cavedb/internal/model"
)

func TestSameRecords(t *testing.T) {
	prev := 1250.0
	entranceID := uuid.New()
	base := []model.ChangeRecord{
		{
			ChangeType: model.ChangeUpdate,
			Property:   diff.PropLengthFeet,
			Value:      model.DoubleValue{Value: 1400, Previous: &prev},
		},
		{
			ChangeType: model.ChangeAdd,
			Property:   diff.PropEntrance,
			EntranceID: &entranceID,
			Value:      model.EntranceValue{ID: entranceID},
		},
	}

	same := make([]model.ChangeRecord, len(base))
	copy(same, base)
	// Ids and timestamps differ between the stored and recomputed diffs.
	same[0].ID = uuid.New()
	same[1].ID = uuid.New()
	assert.True(t, sameRecords(base, same))

	moved := 1500.0
	divergent := make([]model.ChangeRecord, len(base))
	copy(divergent, base)
	divergent[0].Value = model.DoubleValue{Value: 1400, Previous: &moved}
	assert.False(t, sameRecords(base, divergent), "previous value moved")

	assert.False(t, sameRecords(base, base[:1]), "record count differs")

	swapped := []model.ChangeRecord{base[1], base[0]}
	assert.False(t, sameRecords(base, swapped), "order is significant")
}
