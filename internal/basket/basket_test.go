package basket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strptr(s string) *string { return &s }
func intptr(i int) *int       { return &i }

func TestApply_MergesFields(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	b := NewUnassigned("TAG-001", "operator-1", now)

	later := now.Add(time.Minute)
	next := b.Apply(Update{
		Status:     StatusInProduction,
		ProductRef: strptr("PRD-9"),
		BatchRef:   strptr("BATCH-42"),
		Quantity:   intptr(120),
	}, "operator-2", later)

	assert.Equal(t, StatusInProduction, next.Status)
	require.NotNil(t, next.ProductRef)
	assert.Equal(t, "PRD-9", *next.ProductRef)
	require.NotNil(t, next.BatchRef)
	assert.Equal(t, "BATCH-42", *next.BatchRef)
	assert.Equal(t, 120, next.Quantity)
	assert.Equal(t, "operator-2", next.UpdatedBy)
	assert.Equal(t, later, next.UpdatedAt)

	// The receiver is untouched.
	assert.Equal(t, StatusUnassigned, b.Status)
	assert.Nil(t, b.ProductRef)
}

func TestApply_NilPointersLeaveFieldsUnchanged(t *testing.T) {
	now := time.Now()
	b := Basket{
		Tag:        "TAG-002",
		Status:     StatusInProduction,
		ProductRef: strptr("PRD-1"),
		BatchRef:   strptr("BATCH-1"),
		Quantity:   50,
	}

	next := b.Apply(Update{Status: StatusReceived}, "dock-1", now)

	assert.Equal(t, StatusReceived, next.Status)
	assert.Equal(t, "PRD-1", *next.ProductRef)
	assert.Equal(t, "BATCH-1", *next.BatchRef)
	assert.Equal(t, 50, next.Quantity)
}

func TestApply_ClearEdgeWipesAssociations(t *testing.T) {
	now := time.Now()
	b := Basket{
		Tag:        "TAG-003",
		Status:     StatusInStock,
		ProductRef: strptr("PRD-1"),
		BatchRef:   strptr("BATCH-1"),
		Warehouse:  strptr("WH-EAST"),
		Quantity:   12,
	}

	next := b.Apply(Update{
		Status: StatusUnassigned,
		// Fields supplied on a clear are ignored, not merged.
		ProductRef: strptr("PRD-SHOULD-NOT-STICK"),
		Quantity:   intptr(99),
	}, "admin", now)

	assert.Equal(t, StatusUnassigned, next.Status)
	assert.False(t, next.HasAssociations())
	assert.Zero(t, next.Quantity)
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("in_stock")
	require.NoError(t, err)
	assert.Equal(t, StatusInStock, s)

	_, err = ParseStatus("floating")
	require.Error(t, err)
}

func TestValidateQuantity(t *testing.T) {
	assert.NoError(t, ValidateQuantity(nil))
	assert.NoError(t, ValidateQuantity(intptr(0)))
	assert.NoError(t, ValidateQuantity(intptr(250)))

	err := ValidateQuantity(intptr(-1))
	require.True(t, IsInvalidQuantity(err))
	assert.EqualError(t, err, "quantity must be non-negative, got -1")
}
