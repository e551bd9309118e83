package repository

import (
	"context"
	"testing"

	"github.com/smallbiznis/freightdesk/pkg/db"
	"github.com/smallbiznis/freightdesk/pkg/db/option"
	"github.com/stretchr/testify/require"
)

type widget struct {
	ID     int64 `gorm:"primaryKey"`
	OrgID  int64
	Status string
}

func TestStoreCRUD(t *testing.T) {
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&widget{}))

	ctx := context.Background()
	store := ProvideStore[widget](conn)

	for _, w := range []*widget{
		{ID: 1, OrgID: 10, Status: "pending"},
		{ID: 2, OrgID: 10, Status: "connected"},
		{ID: 3, OrgID: 11, Status: "pending"},
	} {
		require.NoError(t, store.Create(ctx, w))
	}

	items, err := store.Find(ctx, &widget{OrgID: 10}, option.WithOrder("id", true))
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, int64(2), items[0].ID)

	missing, err := store.FindOne(ctx, &widget{ID: 99})
	require.NoError(t, err)
	require.Nil(t, missing)

	require.NoError(t, store.Update(ctx, 1, map[string]any{"status": "connected"}))
	count, err := store.Count(ctx, &widget{Status: "connected"})
	require.NoError(t, err)
	require.Equal(t, int64(2), count)

	// a transaction-bound store sees its own writes and nothing leaks on rollback
	tx := conn.Begin()
	require.NoError(t, store.WithTrx(tx).Update(ctx, 3, map[string]any{"status": "connected"}))
	count, err = store.WithTrx(tx).Count(ctx, &widget{Status: "connected"})
	require.NoError(t, err)
	require.Equal(t, int64(3), count)
	require.NoError(t, tx.Rollback().Error)

	count, err = store.Count(ctx, &widget{Status: "connected"})
	require.NoError(t, err)
	require.Equal(t, int64(2), count)
}
