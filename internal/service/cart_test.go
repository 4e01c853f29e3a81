package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calloway/stitch/internal/domain"
)

var (
	tshirtM = domain.Variant{ProductID: "tshirt-1", Size: "M", Color: "black"}
	tshirtL = domain.Variant{ProductID: "tshirt-1", Size: "L", Color: "black"}
	jeans32 = domain.Variant{ProductID: "jeans-7", Size: "32", Color: "indigo"}
)

func newCartFixture(t *testing.T) (*CartService, *memCartStore, *memCatalog) {
	t.Helper()
	catalog := newMemCatalog()
	catalog.put(tshirtM, 59900, true, "tops")
	catalog.put(tshirtL, 59900, true, "tops")
	catalog.put(jeans32, 249900, true, "bottoms")
	store := newMemCartStore(catalog)
	return NewCartService(store, catalog, testLogger()), store, catalog
}

func guestOwner() domain.Identity {
	return domain.NewGuestIdentity("guest-abc", time.Now().Add(24*time.Hour))
}

func TestCartService_GetCart_EmptyOnFirstAccess(t *testing.T) {
	svc, _, _ := newCartFixture(t)

	snap, err := svc.GetCart(context.Background(), guestOwner())
	require.NoError(t, err)
	assert.Empty(t, snap.Lines)
	assert.Zero(t, snap.ItemCount)
	assert.Zero(t, snap.SubtotalCents)
}

func TestCartService_AddItem_SnapshotsPriceAndDerivesTotals(t *testing.T) {
	svc, _, _ := newCartFixture(t)
	owner := guestOwner()

	snap, err := svc.AddItem(context.Background(), owner, tshirtM, 2)
	require.NoError(t, err)
	require.Len(t, snap.Lines, 1)
	assert.Equal(t, int32(2), snap.Lines[0].Quantity)
	assert.Equal(t, int64(59900), snap.Lines[0].PriceAtAddCents)
	assert.Equal(t, int32(2), snap.ItemCount)
	assert.Equal(t, int64(119800), snap.SubtotalCents)
}

func TestCartService_AddItem_SameVariantIncrementsNotDuplicates(t *testing.T) {
	svc, _, _ := newCartFixture(t)
	owner := guestOwner()

	_, err := svc.AddItem(context.Background(), owner, tshirtM, 1)
	require.NoError(t, err)
	snap, err := svc.AddItem(context.Background(), owner, tshirtM, 3)
	require.NoError(t, err)

	require.Len(t, snap.Lines, 1)
	assert.Equal(t, int32(4), snap.Lines[0].Quantity)
}

func TestCartService_AddItem_DifferentSizeIsDistinctLine(t *testing.T) {
	svc, _, _ := newCartFixture(t)
	owner := guestOwner()

	_, err := svc.AddItem(context.Background(), owner, tshirtM, 1)
	require.NoError(t, err)
	snap, err := svc.AddItem(context.Background(), owner, tshirtL, 1)
	require.NoError(t, err)
	assert.Len(t, snap.Lines, 2)
}

func TestCartService_AddItem_KeepsOriginalPriceAfterCatalogChange(t *testing.T) {
	svc, _, catalog := newCartFixture(t)
	owner := guestOwner()

	_, err := svc.AddItem(context.Background(), owner, tshirtM, 1)
	require.NoError(t, err)

	// Price hike between adds must not touch the existing line.
	catalog.put(tshirtM, 79900, true, "tops")
	snap, err := svc.AddItem(context.Background(), owner, tshirtM, 1)
	require.NoError(t, err)

	require.Len(t, snap.Lines, 1)
	assert.Equal(t, int64(59900), snap.Lines[0].PriceAtAddCents)
	assert.Equal(t, int64(119800), snap.SubtotalCents)
}

func TestCartService_AddItem_InvalidQuantity(t *testing.T) {
	svc, _, _ := newCartFixture(t)

	_, err := svc.AddItem(context.Background(), guestOwner(), tshirtM, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = svc.AddItem(context.Background(), guestOwner(), tshirtM, -2)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
}

func TestCartService_AddItem_UnorderableVariant(t *testing.T) {
	svc, _, catalog := newCartFixture(t)
	catalog.put(tshirtM, 59900, false, "tops")

	_, err := svc.AddItem(context.Background(), guestOwner(), tshirtM, 1)
	assert.ErrorIs(t, err, domain.ErrVariantUnavailable)
}

func TestCartService_AddItem_UnknownVariant(t *testing.T) {
	svc, _, _ := newCartFixture(t)

	_, err := svc.AddItem(context.Background(), guestOwner(), domain.Variant{ProductID: "ghost"}, 1)
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
}

func TestCartService_ConcurrentAddsNeverLoseIncrements(t *testing.T) {
	svc, _, _ := newCartFixture(t)
	owner := guestOwner()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.AddItem(context.Background(), owner, tshirtM, 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	snap, err := svc.GetCart(context.Background(), owner)
	require.NoError(t, err)
	require.Len(t, snap.Lines, 1)
	assert.Equal(t, int32(20), snap.Lines[0].Quantity)
}

func TestCartService_UpdateItem(t *testing.T) {
	svc, _, _ := newCartFixture(t)
	owner := guestOwner()

	_, err := svc.AddItem(context.Background(), owner, tshirtM, 2)
	require.NoError(t, err)

	snap, err := svc.UpdateItem(context.Background(), owner, tshirtM, 5)
	require.NoError(t, err)
	assert.Equal(t, int32(5), snap.Lines[0].Quantity)
}

func TestCartService_UpdateItem_BelowOneRejected(t *testing.T) {
	svc, _, _ := newCartFixture(t)
	owner := guestOwner()

	_, err := svc.AddItem(context.Background(), owner, tshirtM, 2)
	require.NoError(t, err)

	_, err = svc.UpdateItem(context.Background(), owner, tshirtM, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	// The line is untouched.
	snap, err := svc.GetCart(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, int32(2), snap.Lines[0].Quantity)
}

func TestCartService_UpdateItem_MissingLine(t *testing.T) {
	svc, _, _ := newCartFixture(t)

	_, err := svc.UpdateItem(context.Background(), guestOwner(), jeans32, 2)
	assert.ErrorIs(t, err, domain.ErrCartLineNotFound)
}

func TestCartService_RemoveItem_IdempotentOnMissingLine(t *testing.T) {
	svc, _, _ := newCartFixture(t)
	owner := guestOwner()

	_, err := svc.AddItem(context.Background(), owner, tshirtM, 1)
	require.NoError(t, err)

	snap, err := svc.RemoveItem(context.Background(), owner, tshirtM)
	require.NoError(t, err)
	assert.Empty(t, snap.Lines)

	// Second remove of the same line still succeeds.
	snap, err = svc.RemoveItem(context.Background(), owner, tshirtM)
	require.NoError(t, err)
	assert.Empty(t, snap.Lines)
}

func TestCartService_ClearCart(t *testing.T) {
	svc, _, _ := newCartFixture(t)
	owner := guestOwner()

	_, err := svc.AddItem(context.Background(), owner, tshirtM, 1)
	require.NoError(t, err)
	_, err = svc.AddItem(context.Background(), owner, jeans32, 1)
	require.NoError(t, err)
	_, err = svc.SaveForLater(context.Background(), owner, jeans32)
	require.NoError(t, err)

	snap, err := svc.ClearCart(context.Background(), owner)
	require.NoError(t, err)
	assert.Empty(t, snap.Lines)
	assert.Empty(t, snap.Saved)
}

func TestCartService_SaveForLater_ExcludedFromTotals(t *testing.T) {
	svc, _, _ := newCartFixture(t)
	owner := guestOwner()

	_, err := svc.AddItem(context.Background(), owner, tshirtM, 2)
	require.NoError(t, err)
	_, err = svc.AddItem(context.Background(), owner, jeans32, 1)
	require.NoError(t, err)

	snap, err := svc.SaveForLater(context.Background(), owner, jeans32)
	require.NoError(t, err)
	require.Len(t, snap.Lines, 1)
	require.Len(t, snap.Saved, 1)
	assert.Equal(t, int32(2), snap.ItemCount)
	assert.Equal(t, int64(119800), snap.SubtotalCents)
}

func TestCartService_MoveToCart_MergesQuantities(t *testing.T) {
	svc, _, _ := newCartFixture(t)
	owner := guestOwner()

	_, err := svc.AddItem(context.Background(), owner, tshirtM, 2)
	require.NoError(t, err)
	_, err = svc.SaveForLater(context.Background(), owner, tshirtM)
	require.NoError(t, err)
	_, err = svc.AddItem(context.Background(), owner, tshirtM, 1)
	require.NoError(t, err)

	snap, err := svc.MoveToCart(context.Background(), owner, tshirtM)
	require.NoError(t, err)
	require.Len(t, snap.Lines, 1)
	assert.Empty(t, snap.Saved)
	assert.Equal(t, int32(3), snap.Lines[0].Quantity)
}

func TestCartService_SaveForLater_MissingLine(t *testing.T) {
	svc, _, _ := newCartFixture(t)

	_, err := svc.SaveForLater(context.Background(), guestOwner(), tshirtM)
	assert.ErrorIs(t, err, domain.ErrCartLineNotFound)
}

func TestCartService_IsolatedPerOwner(t *testing.T) {
	svc, _, _ := newCartFixture(t)
	a := domain.NewUserIdentity("user-a")
	b := domain.NewUserIdentity("user-b")

	_, err := svc.AddItem(context.Background(), a, tshirtM, 1)
	require.NoError(t, err)

	snap, err := svc.GetCart(context.Background(), b)
	require.NoError(t, err)
	assert.Empty(t, snap.Lines)
}
