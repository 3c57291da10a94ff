package database

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-memdb"
	"github.com/ortelius/pdvd-idp/model"
	"go.uber.org/zap"
)

// ListQuery selects a page of users.
// StartIndex is 1-based; Count is the page size.
type ListQuery struct {
	StartIndex int
	Count      int
	// UserName, when set, keeps only users whose userName matches case-insensitively
	UserName string
}

// normalize clamps out-of-range values: negative counts become 0 and
// start indexes below 1 become 1.
func (q ListQuery) normalize() ListQuery {
	if q.Count < 0 {
		q.Count = 0
	}
	if q.StartIndex < 1 {
		q.StartIndex = 1
	}
	return q
}

// Page is one window of the creation-ordered user list
type Page struct {
	Users        []*model.User
	TotalResults int
	StartIndex   int
}

// UserStore is the provisioning store: users keyed by a store-assigned id.
//
// Writes are serialized by memdb's single writer; reads run on snapshots and
// never block each other. The id counter only moves forward, so ids of deleted
// users are never handed out again.
type UserStore struct {
	db     *memdb.MemDB
	nextID atomic.Uint64
	logger *zap.Logger
	now    func() time.Time
}

// NewUserStore creates an empty store on top of conn
func NewUserStore(conn DBConnection, logger *zap.Logger) *UserStore {
	return &UserStore{
		db:     conn.DB,
		logger: logger,
		now:    time.Now,
	}
}

// Create assigns the next id, fills defaults and stores the user
func (s *UserStore) Create(ctx context.Context, req *model.CreateUserRequest) (*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	txn := s.db.Txn(true)
	defer txn.Abort()

	id := s.nextID.Add(1)
	user := req.NewUser(id, s.now().UTC())
	if err := txn.Insert(userTable, user); err != nil {
		return nil, fmt.Errorf("failed to insert user %d: %w", id, err)
	}
	txn.Commit()

	s.logger.Debug("user created", zap.Uint64("id", id), zap.String("userName", user.UserName))
	return user.Clone(), nil
}

// Get returns the user with the given id or ErrNotFound
func (s *UserStore) Get(ctx context.Context, id uint64) (*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	txn := s.db.Txn(false)
	defer txn.Abort()

	user, err := getUser(txn, id)
	if err != nil {
		return nil, err
	}
	return user.Clone(), nil
}

// List returns the users in the window [StartIndex, StartIndex+Count-1] of the
// creation order, plus the number of users matching the query overall.
// A window past the end yields an empty page, never an error.
func (s *UserStore) List(ctx context.Context, q ListQuery) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q = q.normalize()

	txn := s.db.Txn(false)
	defer txn.Abort()

	var (
		iter memdb.ResultIterator
		err  error
	)
	if q.UserName != "" {
		iter, err = txn.Get(userTable, userNameIndex, strings.ToLower(q.UserName))
	} else {
		iter, err = txn.Get(userTable, idIndex)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	all := []*model.User{}
	for raw := iter.Next(); raw != nil; raw = iter.Next() {
		all = append(all, raw.(*model.User))
	}

	// The id index is varint encoded, so its iteration order is not numeric.
	sort.Slice(all, func(i, j int) bool {
		return all[i].ID < all[j].ID
	})

	page := &Page{
		Users:        []*model.User{},
		TotalResults: len(all),
		StartIndex:   q.StartIndex,
	}

	start := q.StartIndex - 1
	if start >= len(all) {
		return page, nil
	}
	end := start + q.Count
	if end > len(all) {
		end = len(all)
	}
	for _, u := range all[start:end] {
		page.Users = append(page.Users, u.Clone())
	}
	return page, nil
}

// Patch applies the replace operations of one request atomically.
// Either all operations are stored or, on a validation error, none are.
func (s *UserStore) Patch(ctx context.Context, id uint64, ops []model.PatchOperation) (*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	txn := s.db.Txn(true)
	defer txn.Abort()

	stored, err := getUser(txn, id)
	if err != nil {
		return nil, err
	}

	user := stored.Clone()
	applied, err := model.ApplyPatch(user, ops)
	if err != nil {
		return nil, err
	}
	if skipped := len(ops) - applied; skipped > 0 {
		s.logger.Debug("skipped unsupported patch operations", zap.Uint64("id", id), zap.Int("skipped", skipped))
	}
	if applied == 0 {
		return user, nil
	}

	user.LastModified = s.now().UTC()
	if err := txn.Insert(userTable, user); err != nil {
		return nil, fmt.Errorf("failed to update user %d: %w", id, err)
	}
	txn.Commit()

	s.logger.Debug("user patched", zap.Uint64("id", id), zap.Int("operations", applied))
	return user.Clone(), nil
}

// Delete removes the user, returning ErrNotFound if it does not exist
func (s *UserStore) Delete(ctx context.Context, id uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	txn := s.db.Txn(true)
	defer txn.Abort()

	user, err := getUser(txn, id)
	if err != nil {
		return err
	}
	if err := txn.Delete(userTable, user); err != nil {
		return fmt.Errorf("failed to delete user %d: %w", id, err)
	}
	txn.Commit()

	s.logger.Debug("user deleted", zap.Uint64("id", id))
	return nil
}

func getUser(txn *memdb.Txn, id uint64) (*model.User, error) {
	raw, err := txn.First(userTable, idIndex, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", id, err)
	}
	if raw == nil {
		return nil, ErrNotFound
	}
	return raw.(*model.User), nil
}
