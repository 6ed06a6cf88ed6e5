package store

import (
	"context"
	"testing"

	"esimsync/internal/database"
	"esimsync/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func pending(code, dest, sku string) *models.PendingOrder {
	return &models.PendingOrder{
		ProviderOrderCode:  code,
		DestinationOrderID: dest,
		CustomerEmail:      "a@b.com",
		SKU:                sku,
		ProductID:          sku,
	}
}

func TestPendingStore_ListEmpty(t *testing.T) {
	s := NewPendingStore(openTestDB(t))

	orders, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestPendingStore_ListWithoutTableIsEmpty(t *testing.T) {
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	orders, err := NewPendingStore(db).List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestPendingStore_AppendDoesNotDeduplicate(t *testing.T) {
	ctx := context.Background()
	s := NewPendingStore(openTestDB(t))

	require.NoError(t, s.Append(ctx, pending("MM1", "1001", "PLAN")))
	require.NoError(t, s.Append(ctx, pending("MM1", "1001", "PLAN")))

	orders, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.NotEqual(t, orders[0].ID, orders[1].ID)
	assert.Equal(t, models.StageAwaitingID, orders[0].Stage)

	n, err := s.CountOpen(ctx, "1001", "PLAN")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestPendingStore_ReplaceKeepsConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	s := NewPendingStore(openTestDB(t))

	require.NoError(t, s.Append(ctx, pending("MM1", "1001", "A")))
	require.NoError(t, s.Append(ctx, pending("MM2", "1002", "B")))

	listed, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 2)

	// A new order parks while the recovery pass is running.
	require.NoError(t, s.Append(ctx, pending("MM3", "1003", "C")))

	var still models.PendingOrder
	for _, o := range listed {
		if o.ProviderOrderCode == "MM2" {
			still = o
		}
	}
	require.NotEmpty(t, still.ID)
	still.ProviderOrderID = "internal-2"
	still.Stage = models.StageAwaitingArtifact
	still.Attempts = 1
	require.NoError(t, s.Replace(ctx, listed, []models.PendingOrder{still}))

	after, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, after, 2)

	codes := map[string]models.PendingOrder{}
	for _, o := range after {
		codes[o.ProviderOrderCode] = o
	}
	assert.NotContains(t, codes, "MM1")
	assert.Contains(t, codes, "MM3")
	require.Contains(t, codes, "MM2")
	assert.Equal(t, "internal-2", codes["MM2"].ProviderOrderID)
	assert.Equal(t, models.StageAwaitingArtifact, codes["MM2"].Stage)
	assert.Equal(t, 1, codes["MM2"].Attempts)
}

func TestPendingStore_ReplaceWithEmptySubsetDrainsListed(t *testing.T) {
	ctx := context.Background()
	s := NewPendingStore(openTestDB(t))

	require.NoError(t, s.Append(ctx, pending("MM1", "1001", "A")))
	listed, err := s.List(ctx)
	require.NoError(t, err)

	require.NoError(t, s.Replace(ctx, listed, nil))

	after, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, after)
}

func TestPendingStore_ReplaceDoesNotRestoreRowsSettledByAnotherPass(t *testing.T) {
	ctx := context.Background()
	s := NewPendingStore(openTestDB(t))

	require.NoError(t, s.Append(ctx, pending("MM1", "1001", "A")))

	first, err := s.List(ctx)
	require.NoError(t, err)
	second, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, second, 1)

	// The first pass delivers the order; the second gives up on it.
	require.NoError(t, s.Replace(ctx, first, nil))

	kept := second[0]
	kept.Attempts = 1
	kept.LastError = "artifact not ready"
	require.NoError(t, s.Replace(ctx, second, []models.PendingOrder{kept}))

	after, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, after)
}

func TestPendingStore_ReplaceWritesBackZeroValues(t *testing.T) {
	ctx := context.Background()
	s := NewPendingStore(openTestDB(t))

	order := pending("MM1", "1001", "A")
	order.LastError = "timeout"
	require.NoError(t, s.Append(ctx, order))

	listed, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)

	kept := listed[0]
	kept.LastError = ""
	kept.Stage = models.StageAwaitingArtifact
	kept.ProviderOrderID = "internal-1"
	require.NoError(t, s.Replace(ctx, listed, []models.PendingOrder{kept}))

	after, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, kept.ID, after[0].ID)
	assert.Empty(t, after[0].LastError)
	assert.Equal(t, models.StageAwaitingArtifact, after[0].Stage)
	assert.Equal(t, "internal-1", after[0].ProviderOrderID)
	assert.Equal(t, "a@b.com", after[0].CustomerEmail)
}

func TestDeliveryStore_RecordAndCount(t *testing.T) {
	ctx := context.Background()
	s := NewDeliveryStore(openTestDB(t))

	d := &models.Delivery{
		ProviderOrderCode:  "MM1",
		ProviderOrderID:    "internal-1",
		DestinationOrderID: "1001",
		SKU:                "PLAN",
		QRCodeURL:          "https://qr/1.png",
		LPACode:            "LPA:1$smdp$code",
	}
	require.NoError(t, s.Record(ctx, d))

	again := *d
	again.ID = ""
	again.QRCodeURL = "https://qr/2.png"
	require.NoError(t, s.Record(ctx, &again))

	n, err := s.Count(ctx, "1001", "PLAN")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	list, err := s.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "https://qr/2.png", list[0].QRCodeURL)
}
