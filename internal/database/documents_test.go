package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testDoc struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// storeFactories returns every DocumentStore implementation under test
func storeFactories(t *testing.T) map[string]func(t *testing.T) DocumentStore {
	t.Helper()

	return map[string]func(t *testing.T) DocumentStore{
		"memory": func(t *testing.T) DocumentStore {
			return NewMemoryStore()
		},
		"sqlite": func(t *testing.T) DocumentStore {
			logger, _ := zap.NewDevelopment()
			db, err := NewDB(context.Background(), sqliteConfig(), logger)
			require.NoError(t, err)
			require.NoError(t, db.RunMigrations())
			t.Cleanup(func() { _ = db.Close() })
			return db
		},
		"postgres": func(t *testing.T) DocumentStore {
			skipWithoutDocker(t)
			ctx := context.Background()

			pgContainer, cfg, err := setupPostgresContainer(ctx)
			require.NoError(t, err)
			t.Cleanup(func() { _ = pgContainer.Terminate(ctx) })

			logger, _ := zap.NewDevelopment()
			db, err := NewDB(ctx, cfg, logger)
			require.NoError(t, err)
			require.NoError(t, db.RunMigrations())
			t.Cleanup(func() { _ = db.Close() })
			return db
		},
	}
}

func TestDocumentStore_Contract(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			ctx := context.Background()

			t.Run("load missing", func(t *testing.T) {
				var doc testDoc
				err := store.Load(ctx, "things", "missing", &doc)
				assert.ErrorIs(t, err, ErrNotFound)
			})

			t.Run("create then load", func(t *testing.T) {
				require.NoError(t, store.Create(ctx, "things", "a", testDoc{Name: "alpha", Count: 1}))

				var doc testDoc
				require.NoError(t, store.Load(ctx, "things", "a", &doc))
				assert.Equal(t, testDoc{Name: "alpha", Count: 1}, doc)
			})

			t.Run("create existing", func(t *testing.T) {
				err := store.Create(ctx, "things", "a", testDoc{Name: "other"})
				assert.ErrorIs(t, err, ErrAlreadyExists)

				var doc testDoc
				require.NoError(t, store.Load(ctx, "things", "a", &doc))
				assert.Equal(t, "alpha", doc.Name)
			})

			t.Run("overwrite", func(t *testing.T) {
				require.NoError(t, store.Overwrite(ctx, "things", "a", testDoc{Name: "alpha", Count: 2}))
				require.NoError(t, store.Overwrite(ctx, "things", "b", testDoc{Name: "beta"}))

				var doc testDoc
				require.NoError(t, store.Load(ctx, "things", "a", &doc))
				assert.Equal(t, 2, doc.Count)
			})

			t.Run("collections are independent", func(t *testing.T) {
				require.NoError(t, store.Overwrite(ctx, "others", "a", testDoc{Name: "elsewhere"}))

				var doc testDoc
				require.NoError(t, store.Load(ctx, "things", "a", &doc))
				assert.Equal(t, "alpha", doc.Name)
			})

			t.Run("all", func(t *testing.T) {
				docs, err := store.All(ctx, "things")
				require.NoError(t, err)
				require.Len(t, docs, 2)
				assert.Equal(t, "a", docs[0].ID)
				assert.Equal(t, "b", docs[1].ID)

				var doc testDoc
				require.NoError(t, docs[1].Decode(&doc))
				assert.Equal(t, "beta", doc.Name)
				assert.WithinDuration(t, time.Now(), docs[1].UpdatedAt, time.Minute)
			})

			t.Run("delete", func(t *testing.T) {
				require.NoError(t, store.Delete(ctx, "things", "a"))
				require.NoError(t, store.Delete(ctx, "things", "a"), "deleting a missing document is not an error")

				var doc testDoc
				assert.ErrorIs(t, store.Load(ctx, "things", "a", &doc), ErrNotFound)

				docs, err := store.All(ctx, "things")
				require.NoError(t, err)
				assert.Len(t, docs, 1)
			})

			t.Run("all of empty collection", func(t *testing.T) {
				docs, err := store.All(ctx, "empty")
				require.NoError(t, err)
				assert.Empty(t, docs)
			})
		})
	}
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var doc testDoc
	assert.ErrorIs(t, store.Load(ctx, "things", "a", &doc), context.Canceled)
	assert.ErrorIs(t, store.Overwrite(ctx, "things", "a", testDoc{}), context.Canceled)
	assert.Equal(t, 0, store.Count("things"))
}

func TestMemoryStore_CopiesDocuments(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	original := map[string]int{"x": 1}
	require.NoError(t, store.Overwrite(ctx, "things", "a", original))
	original["x"] = 2

	var loaded map[string]int
	require.NoError(t, store.Load(ctx, "things", "a", &loaded))
	assert.Equal(t, 1, loaded["x"])
}
