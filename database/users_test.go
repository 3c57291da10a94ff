package database

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ortelius/pdvd-idp/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *UserStore {
	t.Helper()
	conn, err := InitializeDatabase()
	require.NoError(t, err)
	return NewUserStore(conn, zap.NewNop())
}

func createReq(t *testing.T, body string) *model.CreateUserRequest {
	t.Helper()
	var req model.CreateUserRequest
	require.NoError(t, json.Unmarshal([]byte(body), &req))
	return &req
}

func patchOps(t *testing.T, body string) []model.PatchOperation {
	t.Helper()
	var req model.PatchRequest
	require.NoError(t, json.Unmarshal([]byte(body), &req))
	return req.Operations
}

func TestCreateAssignsSequentialIDs(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for want := uint64(1); want <= 3; want++ {
		u, err := s.Create(ctx, createReq(t, `{}`))
		require.NoError(t, err)
		assert.Equal(t, want, u.ID)
	}
}

func TestCreateThenGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	created, err := s.Create(ctx, createReq(t, `{"userName":"alice","emails":[{"value":"a@example.com"}],"name":{"givenName":"Alice"}}`))
	require.NoError(t, err)

	got, err := s.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)
	assert.Equal(t, "alice", got.UserName)
	assert.Equal(t, "a@example.com", got.Email)
	assert.Equal(t, model.RoleMember, got.Role)
	assert.Equal(t, model.DefaultAccessLevels(), got.AccessLevels)
}

func TestCreateRejectsInvalidEnums(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Create(ctx, createReq(t, `{"role":"root"}`))
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)

	// the counter is not advanced by a rejected request
	u, err := s.Create(ctx, createReq(t, `{}`))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), u.ID)
}

func TestGetMissing(t *testing.T) {
	_, err := newTestStore(t).Get(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIDsNeverReused(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for i := 0; i < 3; i++ {
		_, err := s.Create(ctx, createReq(t, `{}`))
		require.NoError(t, err)
	}
	require.NoError(t, s.Delete(ctx, 3))

	u, err := s.Create(ctx, createReq(t, `{}`))
	require.NoError(t, err)
	assert.Equal(t, uint64(4), u.ID)
}

func TestDeleteThenList(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for i := 0; i < 5; i++ {
		_, err := s.Create(ctx, createReq(t, `{}`))
		require.NoError(t, err)
	}
	require.NoError(t, s.Delete(ctx, 3))

	page, err := s.List(ctx, ListQuery{StartIndex: 1, Count: 10})
	require.NoError(t, err)
	assert.Equal(t, 4, page.TotalResults)
	ids := make([]uint64, 0, len(page.Users))
	for _, u := range page.Users {
		ids = append(ids, u.ID)
	}
	assert.Equal(t, []uint64{1, 2, 4, 5}, ids)

	_, err = s.Get(ctx, 3)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPatchExtensionKeepsCustomFields(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	u, err := s.Create(ctx, createReq(t, `{"id":"idp-7","urn:custom:role":"owner","urn:custom:remoteId":"r-7","urn:custom:accessLevels":["write_iac","readonly_sca"]}`))
	require.NoError(t, err)

	_, err = s.Patch(ctx, u.ID, patchOps(t, `{"Operations":[{"op":"replace","value":{"department":"eng"}}]}`))
	require.NoError(t, err)

	got, err := s.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "eng", got.Extensions["department"])
	assert.Equal(t, model.RoleOwner, got.Role)
	assert.Equal(t, "r-7", got.RemoteID)
	assert.Equal(t, []model.AccessLevel{model.AccessWriteIAC, model.AccessReadonlySCA}, got.AccessLevels)
	assert.Equal(t, "idp-7", got.IdpID)
}

func TestDeleteThenGetAndSecondDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	u, err := s.Create(ctx, createReq(t, `{}`))
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, u.ID))

	_, err = s.Get(ctx, u.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, u.ID), ErrNotFound)
}

func TestListPaginationWindow(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for i := 1; i <= 25; i++ {
		_, err := s.Create(ctx, createReq(t, fmt.Sprintf(`{"userName":"user%d"}`, i)))
		require.NoError(t, err)
	}

	page, err := s.List(ctx, ListQuery{StartIndex: 11, Count: 10})
	require.NoError(t, err)

	assert.Equal(t, 25, page.TotalResults)
	assert.Equal(t, 11, page.StartIndex)
	require.Len(t, page.Users, 10)
	for i, u := range page.Users {
		assert.Equal(t, uint64(11+i), u.ID)
	}
}

func TestListOrderIsNumericPastVarintBoundary(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for i := 0; i < 300; i++ {
		_, err := s.Create(ctx, createReq(t, `{}`))
		require.NoError(t, err)
	}

	page, err := s.List(ctx, ListQuery{StartIndex: 120, Count: 20})
	require.NoError(t, err)
	require.Len(t, page.Users, 20)
	for i, u := range page.Users {
		assert.Equal(t, uint64(120+i), u.ID)
	}
}

func TestListEdges(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for i := 0; i < 5; i++ {
		_, err := s.Create(ctx, createReq(t, `{}`))
		require.NoError(t, err)
	}

	tests := []struct {
		name      string
		q         ListQuery
		wantIDs   []uint64
		wantStart int
	}{
		{"beyond the end", ListQuery{StartIndex: 10, Count: 10}, nil, 10},
		{"partial last page", ListQuery{StartIndex: 4, Count: 10}, []uint64{4, 5}, 4},
		{"zero count", ListQuery{StartIndex: 1, Count: 0}, nil, 1},
		{"negative count", ListQuery{StartIndex: 1, Count: -3}, nil, 1},
		{"start below one", ListQuery{StartIndex: -2, Count: 2}, []uint64{1, 2}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := s.List(ctx, tt.q)
			require.NoError(t, err)
			assert.Equal(t, 5, page.TotalResults)
			assert.Equal(t, tt.wantStart, page.StartIndex)

			var ids []uint64
			for _, u := range page.Users {
				ids = append(ids, u.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestListFiltersByUserName(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, name := range []string{"alice", "bob", "Alice"} {
		_, err := s.Create(ctx, createReq(t, fmt.Sprintf(`{"userName":%q}`, name)))
		require.NoError(t, err)
	}

	page, err := s.List(ctx, ListQuery{StartIndex: 1, Count: 10, UserName: "ALICE"})
	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalResults)
	require.Len(t, page.Users, 2)
	assert.Equal(t, uint64(1), page.Users[0].ID)
	assert.Equal(t, uint64(3), page.Users[1].ID)
}

func TestPatchMergesAndUpdatesTimestamp(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	modified := created.Add(time.Hour)
	s.now = func() time.Time { return created }

	u, err := s.Create(ctx, createReq(t, `{"userName":"alice","name":{"givenName":"Alice","familyName":"Smith"}}`))
	require.NoError(t, err)

	s.now = func() time.Time { return modified }
	patched, err := s.Patch(ctx, u.ID, patchOps(t, `{"Operations":[{"op":"replace","value":{"name":{"givenName":"Alicia"}}}]}`))
	require.NoError(t, err)

	assert.Equal(t, model.Name{GivenName: "Alicia", FamilyName: "Smith"}, patched.Name)
	assert.Equal(t, created, patched.Created)
	assert.Equal(t, modified, patched.LastModified)

	got, err := s.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, patched, got)
}

func TestPatchIsAtomic(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	u, err := s.Create(ctx, createReq(t, `{"userName":"alice"}`))
	require.NoError(t, err)

	_, err = s.Patch(ctx, u.ID, patchOps(t, `{"Operations":[
		{"op":"replace","value":{"userName":"changed"}},
		{"op":"replace","value":{"role":"superuser"}}
	]}`))
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)

	got, err := s.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.UserName)
}

func TestPatchMissing(t *testing.T) {
	_, err := newTestStore(t).Patch(context.Background(), 5, patchOps(t, `{"Operations":[{"op":"replace","value":{"email":"x"}}]}`))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReturnedUsersAreCopies(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	u, err := s.Create(ctx, createReq(t, `{"userName":"alice"}`))
	require.NoError(t, err)

	u.UserName = "mallory"
	u.AccessLevels[0] = model.AccessWriteHoneytoken

	got, err := s.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.UserName)
	assert.Equal(t, model.AccessReadonlySecret, got.AccessLevels[0])
}

func TestConcurrentCreatesGetUniqueIDs(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	const workers, perWorker = 8, 50
	ids := make(chan uint64, workers*perWorker)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				var req model.CreateUserRequest
				if err := json.Unmarshal([]byte(`{}`), &req); err != nil {
					t.Error(err)
					return
				}
				u, err := s.Create(ctx, &req)
				if err != nil {
					t.Error(err)
					return
				}
				ids <- u.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[uint64]bool)
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	assert.Len(t, seen, workers*perWorker)

	page, err := s.List(ctx, ListQuery{StartIndex: 1, Count: workers * perWorker})
	require.NoError(t, err)
	assert.Equal(t, workers*perWorker, page.TotalResults)
	for i, u := range page.Users {
		assert.Equal(t, uint64(i+1), u.ID)
	}
}

func TestConcurrentPatchesLoseNoUpdates(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	u, err := s.Create(ctx, createReq(t, `{}`))
	require.NoError(t, err)

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			op := model.PatchOperation{
				Op:    "replace",
				Value: json.RawMessage(fmt.Sprintf(`{"attr%d":%d}`, i, i)),
			}
			if _, err := s.Patch(ctx, u.ID, []model.PatchOperation{op}); err != nil {
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()

	got, err := s.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, got.Extensions, writers)
}
