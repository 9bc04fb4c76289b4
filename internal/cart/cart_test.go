package cart

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func line(name string, qty int, price, remarks string) Line {
	return Line{Name: name, Quantity: qty, UnitPrice: decimal.RequireFromString(price), Remarks: remarks}
}

func TestAdd_MergesSameNameAndRemarks(t *testing.T) {
	c := New()
	require.NoError(t, c.Add(line("Fried Rice", 1, "12.90", "Standard")))
	require.NoError(t, c.Add(line("Fried Rice", 2, "12.90", "Standard")))
	require.NoError(t, c.Add(line("Fried Rice", 1, "14.90", "Add: Egg")))

	lines := c.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, 3, lines[0].Quantity)
	assert.Equal(t, "Add: Egg", lines[1].Remarks)
}

func TestSubtotal_AddedOnceOrTwice(t *testing.T) {
	once := New()
	twice := New()
	require.NoError(t, once.Add(line("Fried Rice", 5, "12.90", "")))
	require.NoError(t, twice.Add(line("Fried Rice", 2, "12.90", "")))
	require.NoError(t, twice.Add(line("Fried Rice", 3, "12.90", "")))

	assert.True(t, once.Subtotal().Equal(twice.Subtotal()))
	assert.Equal(t, "64.5", once.Subtotal().String())
	assert.True(t, New().Subtotal().IsZero())
}

func TestAdd_RejectsInvalid(t *testing.T) {
	c := New()
	assert.ErrorIs(t, c.Add(line("Fried Rice", 0, "1", "")), ErrInvalidLine)
	assert.ErrorIs(t, c.Add(line("Fried Rice", 1, "-1", "")), ErrInvalidLine)
	assert.ErrorIs(t, c.Add(line("", 1, "1", "")), ErrInvalidLine)
	assert.Zero(t, c.Len())
}

func TestUpdateQuantity_ZeroRemoves(t *testing.T) {
	c := New()
	require.NoError(t, c.Add(line("A", 1, "1", "")))
	require.NoError(t, c.Add(line("B", 1, "1", "")))

	require.NoError(t, c.UpdateQuantity(0, 4))
	assert.Equal(t, 4, c.Lines()[0].Quantity)

	require.NoError(t, c.UpdateQuantity(0, 0))
	lines := c.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, "B", lines[0].Name)

	assert.ErrorIs(t, c.UpdateQuantity(5, 1), ErrLineNotFound)
}

func TestRemoveAndClear(t *testing.T) {
	c := New()
	require.NoError(t, c.Add(line("A", 1, "1", "")))
	require.NoError(t, c.Add(line("B", 1, "1", "")))

	require.NoError(t, c.Remove(0))
	assert.Equal(t, "B", c.Lines()[0].Name)
	assert.ErrorIs(t, c.Remove(3), ErrLineNotFound)

	c.Clear()
	assert.Zero(t, c.Len())
}

func TestRemoveLines_KeepsLaterAdditions(t *testing.T) {
	c := New()
	require.NoError(t, c.Add(line("Fried Rice", 2, "12.90", "Standard")))
	require.NoError(t, c.Add(line("Laksa", 1, "9.00", "Standard")))
	ordered := c.Lines()

	require.NoError(t, c.Add(line("Fried Rice", 1, "12.90", "Standard")))
	require.NoError(t, c.Add(line("Teh Tarik", 1, "3.00", "Standard")))

	c.RemoveLines(ordered)
	lines := c.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, "Fried Rice", lines[0].Name)
	assert.Equal(t, 1, lines[0].Quantity)
	assert.Equal(t, "Teh Tarik", lines[1].Name)

	c.RemoveLines(lines)
	assert.Zero(t, c.Len())
}

func TestReplace(t *testing.T) {
	c := New()
	require.NoError(t, c.Add(line("A", 1, "10", "Standard")))
	require.NoError(t, c.Replace("A", "Standard", line("A", 3, "10", "Standard")))

	lines := c.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 3, lines[0].Quantity)

	assert.ErrorIs(t, c.Replace("Z", "", line("A", 1, "1", "")), ErrLineNotFound)
}

func TestLines_ReturnsCopy(t *testing.T) {
	c := New()
	require.NoError(t, c.Add(line("A", 1, "1", "")))
	lines := c.Lines()
	lines[0].Quantity = 99
	assert.Equal(t, 1, c.Lines()[0].Quantity)
}

func TestSubscribe_LatestSnapshot(t *testing.T) {
	c := New()
	ch, cancel := c.Subscribe()
	defer cancel()

	assert.Empty(t, <-ch)
	require.NoError(t, c.Add(line("A", 1, "1", "")))
	require.NoError(t, c.Add(line("B", 1, "1", "")))

	snap := <-ch
	assert.Len(t, snap, 2)
}

func TestRegistry_OneSessionPerUser(t *testing.T) {
	r := NewRegistry()
	a := r.Session("a@example.com")
	assert.Same(t, a, r.Session("a@example.com"))
	assert.NotSame(t, a, r.Session("b@example.com"))
}
