package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wareline/wareline/internal/basket"
)

func stocked(tag string) basket.Basket {
	product := "PRD-1"
	warehouse := "WH-EAST"
	return basket.Basket{
		Tag:        tag,
		Status:     basket.StatusInStock,
		ProductRef: &product,
		Warehouse:  &warehouse,
		Quantity:   10,
		UpdatedAt:  time.Now(),
		UpdatedBy:  "wh-1",
	}
}

func TestProductionValidator(t *testing.T) {
	v := ProductionValidator()

	empty := basket.NewUnassigned("TAG-1", "op", time.Now())
	assert.Equal(t, ValidationOK, v.Validate(empty).Code)

	inProd := empty
	inProd.Status = basket.StatusInProduction
	res := v.Validate(inProd)
	assert.Equal(t, ValidationAlreadyClaimed, res.Code)
	assert.False(t, res.Retryable())

	assert.Equal(t, ValidationWrongStatus, v.Validate(stocked("TAG-2")).Code)
}

func TestReceivingValidator(t *testing.T) {
	v := ReceivingValidator()

	product := "PRD-1"
	b := basket.Basket{Tag: "TAG-1", Status: basket.StatusInProduction, ProductRef: &product}
	assert.Equal(t, ValidationOK, v.Validate(b).Code)

	b.ProductRef = nil
	assert.Equal(t, ValidationWrongStatus, v.Validate(b).Code)

	assert.Equal(t, ValidationWrongStatus, v.Validate(stocked("TAG-2")).Code)
}

func TestLoadingValidator(t *testing.T) {
	v := LoadingValidator()

	assert.Equal(t, ValidationOK, v.Validate(stocked("TAG-1")).Code)

	empty := stocked("TAG-2")
	empty.Quantity = 0
	assert.Equal(t, ValidationWrongStatus, v.Validate(empty).Code)
}

func TestInventoryValidator(t *testing.T) {
	v := InventoryValidator()

	assert.Equal(t, ValidationOK, v.Validate(stocked("TAG-1")).Code)

	received := stocked("TAG-2")
	received.Status = basket.StatusReceived
	assert.Equal(t, ValidationOK, v.Validate(received).Code)

	shipped := stocked("TAG-3")
	shipped.Status = basket.StatusShipped
	assert.Equal(t, ValidationWrongStatus, v.Validate(shipped).Code)
}

func TestCheckForWorkflow_MapsFetchFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown tag offline is not registered", func(t *testing.T) {
		f := newFixture(t)
		_, res := f.svc.CheckForWorkflow(ctx, "TAG-NEW", ProductionValidator())
		assert.Equal(t, ValidationNotRegistered, res.Code)
		assert.False(t, res.Retryable())
	})

	t.Run("remote failure is transient and retryable", func(t *testing.T) {
		f := newFixture(t)
		f.signal.Set(true)
		f.remote.SetFail(retryableErr())

		_, res := f.svc.CheckForWorkflow(ctx, "TAG-1", ProductionValidator())
		assert.Equal(t, ValidationTransient, res.Code)
		assert.True(t, res.Retryable())
	})

	t.Run("valid snapshot reaches the validator", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.store.PutBasket(ctx, stocked("TAG-1")))

		b, res := f.svc.CheckForWorkflow(ctx, "TAG-1", LoadingValidator())
		assert.Equal(t, ValidationOK, res.Code)
		assert.Equal(t, "TAG-1", b.Tag)
	})
}
