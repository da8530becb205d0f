package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/iurnickita/orderexport/internal/model"
	"github.com/iurnickita/orderexport/internal/store/config"
	"github.com/stretchr/testify/require"
)

// testStores возвращает хранилище в памяти и, если задан DSN, postgres.
func testStores(t *testing.T) map[string]Store {
	stores := map[string]Store{}

	mem, err := NewStore(config.Config{})
	require.NoError(t, err)
	stores["memory"] = mem

	if dsn := os.Getenv("ORDEREXPORT_TEST_DATABASE_DSN"); dsn != "" {
		pg, err := NewStore(config.Config{DBDsn: dsn})
		require.NoError(t, err)
		t.Cleanup(func() { pg.Close() })
		stores["postgres"] = pg
	}
	return stores
}

func TestStoreSession(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			// Создание сессии
			session := model.Session{
				ID:        uuid.NewString(),
				Source:    model.Account{Profile: "source", Secret: "s"},
				CreatedAt: time.Now().UTC().Truncate(time.Second),
			}
			err := store.SessionPost(ctx, session)
			require.NoError(t, err)

			err = store.SessionPost(ctx, session)
			require.ErrorIs(t, err, ErrAlreadyExists)

			// Чтение сессии
			dbSession, err := store.SessionGet(ctx, session.ID)
			require.NoError(t, err)
			require.Equal(t, session.Source, dbSession.Source)
			require.True(t, session.CreatedAt.Equal(dbSession.CreatedAt))

			// Аккаунт-получатель и настройки
			session.Target = model.Account{Profile: "target", Secret: "t"}
			session.Config = model.ExportConfig{DefaultStoreID: 3, DefaultSituacaoID: 6, StaticCustomerCnpj: "11111111000111"}
			err = store.SessionPut(ctx, session)
			require.NoError(t, err)

			dbSession, err = store.SessionGet(ctx, session.ID)
			require.NoError(t, err)
			require.Equal(t, session.Target, dbSession.Target)
			require.Equal(t, session.Config, dbSession.Config)

			// Удаление
			err = store.SessionDelete(ctx, session.ID)
			require.NoError(t, err)
			_, err = store.SessionGet(ctx, session.ID)
			require.ErrorIs(t, err, ErrNoRows)

			err = store.SessionPut(ctx, session)
			require.ErrorIs(t, err, ErrNoRows)
		})
	}
}

func TestStoreExportJournal(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			source := "source-" + uuid.NewString()[:8]
			now := time.Now().UTC().Truncate(time.Second)

			first := model.ExportRecord{
				SessionID:     uuid.NewString(),
				SourceProfile: source,
				TargetProfile: "target",
				SourceOrderID: 11,
				OrderNumber:   "A-11",
				TargetOrderID: 900,
				ExportedAt:    now,
			}
			second := first
			second.SourceOrderID = 12
			second.OrderNumber = "A-12"
			second.TargetOrderID = 901
			second.ExportedAt = now.Add(time.Minute)

			require.NoError(t, store.ExportRecordPost(ctx, second))
			require.NoError(t, store.ExportRecordPost(ctx, first))
			require.ErrorIs(t, store.ExportRecordPost(ctx, first), ErrAlreadyExists)

			records, err := store.ExportRecordGet(ctx, source, "target")
			require.NoError(t, err)
			require.Len(t, records, 2)
			require.Equal(t, int64(11), records[0].SourceOrderID)
			require.Equal(t, int64(12), records[1].SourceOrderID)

			records, err = store.ExportRecordGet(ctx, source, "other")
			require.NoError(t, err)
			require.Empty(t, records)
		})
	}
}
