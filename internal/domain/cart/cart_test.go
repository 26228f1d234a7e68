package cart

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAdd_AccumulatesQuantity(t *testing.T) {
	s := New()

	s.Add(1, 2)
	s.Add(1, 3)
	s.Add(2, 1)

	assert.Equal(t, 5, s.Items[1])
	assert.Equal(t, 1, s.Items[2])
	assert.Equal(t, 6, s.ItemCount())
}

func TestAdd_IgnoresNonPositiveQuantity(t *testing.T) {
	s := New()

	s.Add(1, 0)
	s.Add(1, -3)

	assert.Empty(t, s.Items)
	assert.False(t, s.HasItems())
}

func TestUpdateQuantity_SetsExistingEntry(t *testing.T) {
	s := New()
	s.Add(1, 2)

	s.UpdateQuantity(1, 7)

	assert.Equal(t, 7, s.Items[1])
}

func TestUpdateQuantity_DoesNotCreateEntries(t *testing.T) {
	s := New()

	s.UpdateQuantity(99, 3)

	assert.Empty(t, s.Items)
}

func TestUpdateQuantity_ZeroRemovesEntry(t *testing.T) {
	s := New()
	s.Add(1, 2)
	s.Add(2, 1)

	s.UpdateQuantity(1, 0)
	s.UpdateQuantity(2, -4)

	assert.Empty(t, s.Items)
}

func TestRemove(t *testing.T) {
	s := New()
	s.Add(1, 2)
	s.Add(2, 1)

	s.Remove(1)
	s.Remove(42)

	assert.Equal(t, map[int64]int{2: 1}, s.Items)
}

func TestClear(t *testing.T) {
	s := New()
	s.Add(1, 2)
	s.Add(2, 3)

	s.Clear()

	assert.Empty(t, s.Items)
	assert.Equal(t, 0, s.ItemCount())
}

func TestClone_IsIndependent(t *testing.T) {
	s := New()
	s.Add(1, 2)

	clone := s.Clone()
	clone.Add(1, 5)
	clone.Add(2, 1)

	assert.Equal(t, 2, s.Items[1])
	assert.NotContains(t, s.Items, int64(2))
}

func TestOpSequence(t *testing.T) {
	s := New()

	s.Add(10, 1)
	s.Add(11, 4)
	s.UpdateQuantity(11, 2)
	s.Add(10, 1)
	s.Remove(11)
	s.Add(12, 3)
	s.UpdateQuantity(12, 0)

	assert.Equal(t, map[int64]int{10: 2}, s.Items)
	assert.Equal(t, 2, s.ItemCount())
	assert.True(t, s.HasItems())
}
