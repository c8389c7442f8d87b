// Package storetest is a behavioural suite every DocumentStore backend runs.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/interfaces"
	"github.com/bobmcallan/tally/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty store. The store is closed by the suite.
type Factory func(t *testing.T) interfaces.DocumentStore

// Run executes the suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	cases := []struct {
		name string
		fn   func(t *testing.T, s interfaces.DocumentStore)
	}{
		{"InsertAndGet", testInsertAndGet},
		{"InsertDuplicate", testInsertDuplicate},
		{"GetMissing", testGetMissing},
		{"UpdateCAS", testUpdateCAS},
		{"UpdateMissing", testUpdateMissing},
		{"DeleteIdempotent", testDeleteIdempotent},
		{"ListOwnerScopedAndOrdered", testListOwnerScopedAndOrdered},
		{"ListLimitAndPrefix", testListLimitAndPrefix},
		{"ReinsertKeepsCreatedAtOrder", testReinsertKeepsCreatedAtOrder},
		{"ConcurrentCASOneWinner", testConcurrentCAS},
		{"Watch", testWatch},
		{"DeleteOwner", testDeleteOwner},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { s.Close() })
			tc.fn(t, s)
		})
	}
}

func doc(owner, id, date, value string) *models.Document {
	return &models.Document{
		Collection: models.CollExpenses,
		ID:         id,
		OwnerID:    owner,
		Date:       date,
		Value:      value,
	}
}

func testInsertAndGet(t *testing.T, s interfaces.DocumentStore) {
	ctx := context.Background()

	d := doc("alice", "", "2024-03-01", `{"amount":"10"}`)
	id, err := s.Insert(ctx, d)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, d.ID)
	assert.Equal(t, 1, d.Version)
	assert.False(t, d.CreatedAt.IsZero())

	got, err := s.Get(ctx, models.CollExpenses, id)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.OwnerID)
	assert.Equal(t, "2024-03-01", got.Date)
	assert.JSONEq(t, `{"amount":"10"}`, got.Value)
	assert.Equal(t, 1, got.Version)
}

func testInsertDuplicate(t *testing.T, s interfaces.DocumentStore) {
	ctx := context.Background()
	_, err := s.Insert(ctx, doc("alice", "fixed", "2024-03-01", `{}`))
	require.NoError(t, err)

	_, err = s.Insert(ctx, doc("alice", "fixed", "2024-03-02", `{}`))
	assert.ErrorIs(t, err, common.ErrAlreadyExists)
}

func testGetMissing(t *testing.T, s interfaces.DocumentStore) {
	_, err := s.Get(context.Background(), models.CollExpenses, "nope")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func testUpdateCAS(t *testing.T, s interfaces.DocumentStore) {
	ctx := context.Background()
	d := doc("alice", "", "2024-03-01", `{"n":1}`)
	_, err := s.Insert(ctx, d)
	require.NoError(t, err)

	stale := *d

	d.Value = `{"n":2}`
	require.NoError(t, s.Update(ctx, d))
	assert.Equal(t, 2, d.Version)

	stale.Value = `{"n":3}`
	err = s.Update(ctx, &stale)
	assert.ErrorIs(t, err, common.ErrConflict)

	got, err := s.Get(ctx, models.CollExpenses, d.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":2}`, got.Value)
	assert.Equal(t, 2, got.Version)
}

func testUpdateMissing(t *testing.T, s interfaces.DocumentStore) {
	d := doc("alice", "ghost", "2024-03-01", `{}`)
	d.Version = 1
	err := s.Update(context.Background(), d)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func testDeleteIdempotent(t *testing.T, s interfaces.DocumentStore) {
	ctx := context.Background()
	d := doc("alice", "", "2024-03-01", `{}`)
	_, err := s.Insert(ctx, d)
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, models.CollExpenses, d.ID))
	require.NoError(t, s.Delete(ctx, models.CollExpenses, d.ID))

	_, err = s.Get(ctx, models.CollExpenses, d.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func ids(docs []*models.Document) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.ID)
	}
	return out
}

func testListOwnerScopedAndOrdered(t *testing.T, s interfaces.DocumentStore) {
	ctx := context.Background()
	for _, d := range []*models.Document{
		doc("alice", "a3", "2024-03-05", `{}`),
		doc("alice", "a1", "2024-03-01", `{}`),
		doc("bob", "b1", "2024-03-02", `{}`),
		doc("alice", "a2", "2024-03-05", `{}`),
	} {
		_, err := s.Insert(ctx, d)
		require.NoError(t, err)
	}

	asc, err := s.List(ctx, models.CollExpenses, "alice", interfaces.QueryOptions{})
	require.NoError(t, err)
	// Same date ties break on insertion time.
	assert.Equal(t, []string{"a1", "a3", "a2"}, ids(asc))

	desc, err := s.List(ctx, models.CollExpenses, "alice", interfaces.QueryOptions{OrderBy: interfaces.OrderDateDesc})
	require.NoError(t, err)
	assert.Equal(t, []string{"a2", "a3", "a1"}, ids(desc))

	other, err := s.List(ctx, models.CollIncomes, "alice", interfaces.QueryOptions{})
	require.NoError(t, err)
	assert.Empty(t, other)
}

// A record deleted and inserted again with its original createdAt (as a
// compensating step does) returns to its original place among same-date rows.
func testReinsertKeepsCreatedAtOrder(t *testing.T, s interfaces.DocumentStore) {
	ctx := context.Background()
	base := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)

	first := doc("alice", "first", "2024-03-05", `{}`)
	first.CreatedAt = base
	second := doc("alice", "second", "2024-03-05", `{}`)
	second.CreatedAt = base.Add(time.Second)
	for _, d := range []*models.Document{first, second} {
		_, err := s.Insert(ctx, d)
		require.NoError(t, err)
	}

	require.NoError(t, s.Delete(ctx, models.CollExpenses, "first"))
	again := doc("alice", "first", "2024-03-05", `{}`)
	again.CreatedAt = base
	_, err := s.Insert(ctx, again)
	require.NoError(t, err)

	asc, err := s.List(ctx, models.CollExpenses, "alice", interfaces.QueryOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, ids(asc))

	desc, err := s.List(ctx, models.CollExpenses, "alice", interfaces.QueryOptions{OrderBy: interfaces.OrderDateDesc})
	require.NoError(t, err)
	assert.Equal(t, []string{"second", "first"}, ids(desc))
}

func testListLimitAndPrefix(t *testing.T, s interfaces.DocumentStore) {
	ctx := context.Background()
	for _, d := range []*models.Document{
		doc("alice", "feb", "2024-02-28", `{}`),
		doc("alice", "mar1", "2024-03-01", `{}`),
		doc("alice", "mar2", "2024-03-09", `{}`),
	} {
		_, err := s.Insert(ctx, d)
		require.NoError(t, err)
	}

	march, err := s.List(ctx, models.CollExpenses, "alice", interfaces.QueryOptions{DatePrefix: "2024-03"})
	require.NoError(t, err)
	assert.Equal(t, []string{"mar1", "mar2"}, ids(march))

	first, err := s.List(ctx, models.CollExpenses, "alice", interfaces.QueryOptions{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"feb"}, ids(first))
}

func testConcurrentCAS(t *testing.T, s interfaces.DocumentStore) {
	ctx := context.Background()
	d := doc("alice", "", "2024-03-01", `{}`)
	_, err := s.Insert(ctx, d)
	require.NoError(t, err)

	const writers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		conflicts int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mine := *d
			err := s.Update(ctx, &mine)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, common.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected update error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, writers-1, conflicts)
}

func next(t *testing.T, ch <-chan models.ChangeEvent) models.ChangeEvent {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "watch channel closed early")
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change event")
	}
	return models.ChangeEvent{}
}

func testWatch(t *testing.T, s interfaces.DocumentStore) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := s.Watch(ctx, models.CollExpenses, "alice")
	require.NoError(t, err)

	_, err = s.Insert(ctx, doc("bob", "", "2024-03-01", `{}`))
	require.NoError(t, err)

	d := doc("alice", "", "2024-03-01", `{"n":1}`)
	_, err = s.Insert(ctx, d)
	require.NoError(t, err)

	ev := next(t, ch)
	assert.Equal(t, models.ChangeCreate, ev.Action)
	assert.Equal(t, d.ID, ev.ID)
	assert.Equal(t, "alice", ev.OwnerID)
	require.NotNil(t, ev.Document)

	d.Value = `{"n":2}`
	require.NoError(t, s.Update(ctx, d))
	ev = next(t, ch)
	assert.Equal(t, models.ChangeUpdate, ev.Action)
	require.NotNil(t, ev.Document)
	assert.Equal(t, 2, ev.Document.Version)

	require.NoError(t, s.Delete(ctx, models.CollExpenses, d.ID))
	ev = next(t, ch)
	assert.Equal(t, models.ChangeDelete, ev.Action)
	assert.Equal(t, d.ID, ev.ID)

	cancel()
	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, 5*time.Second, 20*time.Millisecond)
}

func testDeleteOwner(t *testing.T, s interfaces.DocumentStore) {
	ctx := context.Background()
	for _, d := range []*models.Document{
		doc("alice", "", "2024-03-01", `{}`),
		doc("alice", "", "2024-03-02", `{}`),
		doc("bob", "", "2024-03-01", `{}`),
	} {
		_, err := s.Insert(ctx, d)
		require.NoError(t, err)
	}
	loan := &models.Document{Collection: models.CollLoans, OwnerID: "alice", Value: `{}`}
	_, err := s.Insert(ctx, loan)
	require.NoError(t, err)

	n, err := s.DeleteOwner(ctx, "alice", models.CollExpenses, models.CollLoans)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	left, err := s.List(ctx, models.CollExpenses, "bob", interfaces.QueryOptions{})
	require.NoError(t, err)
	assert.Len(t, left, 1)

	mine, err := s.List(ctx, models.CollExpenses, "alice", interfaces.QueryOptions{})
	require.NoError(t, err)
	assert.Empty(t, mine)
}
