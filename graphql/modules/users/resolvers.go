package users

import (
	"context"
	"errors"

	"github.com/ortelius/pdvd-idp/database"
	"github.com/ortelius/pdvd-idp/model"
)

// Reader is the read side of the provisioning store
type Reader interface {
	Get(ctx context.Context, id uint64) (*model.User, error)
	List(ctx context.Context, q database.ListQuery) (*database.Page, error)
}

// ResolveUser returns the user with the given wire id, or nil when there is none
func ResolveUser(ctx context.Context, store Reader, id string) (interface{}, error) {
	uid, ok := model.ParseID(id)
	if !ok {
		return nil, nil
	}
	user, err := store.Get(ctx, uid)
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// ResolveUsers returns one page of users
func ResolveUsers(ctx context.Context, store Reader, count, startIndex int, userName string) (interface{}, error) {
	page, err := store.List(ctx, database.ListQuery{
		StartIndex: startIndex,
		Count:      count,
		UserName:   userName,
	})
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"totalResults": page.TotalResults,
		"startIndex":   page.StartIndex,
		"itemsPerPage": len(page.Users),
		"users":        page.Users,
	}, nil
}
