package flows

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryGet(t *testing.T) {
	reg := DefaultRegistry()

	schema := reg.Get(FlowReportIssue)
	require.NotNil(t, schema)
	assert.Equal(t, FlowReportIssue, schema.ID)

	assert.Nil(t, reg.Get("no_such_flow"))
}

func TestReportIssueSchemaShape(t *testing.T) {
	schema := ReportIssueSchema()

	assert.Equal(t, []string{SlotIssueType, SlotLocation, SlotDescription}, schema.SlotNames())
	assert.True(t, schema.Declares(SlotLocation))
	assert.False(t, schema.Declares("priority"))

	slot, ok := schema.Slot(SlotIssueType)
	require.True(t, ok)
	assert.NotEmpty(t, slot.Prompt)
	assert.NotEmpty(t, slot.Guidance)
}

func TestFirstUnfilled(t *testing.T) {
	schema := ReportIssueSchema()

	t.Run("EmptyStartsAtFirstSlot", func(t *testing.T) {
		idx, ok := schema.FirstUnfilled(map[string]string{})
		require.True(t, ok)
		assert.Equal(t, 0, idx)
	})

	t.Run("SkipsFilledSlots", func(t *testing.T) {
		idx, ok := schema.FirstUnfilled(map[string]string{SlotIssueType: "pothole"})
		require.True(t, ok)
		assert.Equal(t, 1, idx)
	})

	t.Run("OutOfOrderFillStillFindsFirstGap", func(t *testing.T) {
		idx, ok := schema.FirstUnfilled(map[string]string{SlotDescription: "big hole in the road"})
		require.True(t, ok)
		assert.Equal(t, 0, idx)
	})

	t.Run("AllFilled", func(t *testing.T) {
		_, ok := schema.FirstUnfilled(map[string]string{
			SlotIssueType:   "pothole",
			SlotLocation:    "5th Ave and Pine St",
			SlotDescription: "large pothole in the right lane",
		})
		assert.False(t, ok)
	})
}

func TestNonEmptyValidator(t *testing.T) {
	validate := NonEmpty(5)

	assert.Error(t, validate(""))
	assert.Error(t, validate("    "))
	assert.Error(t, validate("abc"))
	assert.Error(t, validate("  abc  "))
	assert.NoError(t, validate("5th Ave and Pine St"))
}
