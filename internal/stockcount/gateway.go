package stockcount

import (
	"context"
	"errors"

	"stockcount-backend/internal/models"
)

// TokenCache remembers which count a public token belongs to. Tokens never
// change once issued and only drafts (which have none) can be deleted, so
// entries cannot go stale.
type TokenCache interface {
	Get(ctx context.Context, token string) (uint, bool)
	Set(ctx context.Context, token string, id uint)
}

type Operation string

const (
	OpRead       Operation = "read"
	OpBegin      Operation = "begin"
	OpWriteItems Operation = "write items"
	OpFinish     Operation = "finish"
)

// Permissions is what a public link may do in the count's current status.
type Permissions struct {
	Read       bool `json:"read"`
	Begin      bool `json:"begin"`
	WriteItems bool `json:"write_items"`
	Finish     bool `json:"finish"`
}

func PermissionsFor(st models.StockCountStatus) Permissions {
	switch st {
	case models.StockCountReady:
		return Permissions{Read: true, Begin: true}
	case models.StockCountCounting:
		return Permissions{Read: true, WriteItems: true, Finish: true}
	case models.StockCountFinalized:
		return Permissions{Read: true}
	default:
		return Permissions{}
	}
}

func (p Permissions) Allows(op Operation) bool {
	switch op {
	case OpRead:
		return p.Read
	case OpBegin:
		return p.Begin
	case OpWriteItems:
		return p.WriteItems
	case OpFinish:
		return p.Finish
	}
	return false
}

// Access is a resolved public token.
type Access struct {
	Count       *models.StockCount
	Permissions Permissions
}

func (a *Access) Require(op Operation) error {
	if a == nil || a.Count == nil {
		return notFoundf("unknown count link")
	}
	if !a.Permissions.Allows(op) {
		return conflictf("%s is not allowed while the count is %s", op, a.Count.Status)
	}
	return nil
}

// Gateway is the single place where public tokens are turned into counts.
type Gateway struct {
	repo  *Repository
	cache TokenCache
}

func NewGateway(repo *Repository, cache TokenCache) *Gateway {
	return &Gateway{repo: repo, cache: cache}
}

// Resolve returns NotFound for malformed or unknown tokens. A count that is
// still a draft has no token, so every resolved count is past draft.
func (g *Gateway) Resolve(ctx context.Context, token string) (*Access, error) {
	if !wellFormedToken(token) {
		return nil, notFoundf("unknown count link")
	}

	if g.cache != nil {
		if id, ok := g.cache.Get(ctx, token); ok {
			c, err := g.repo.Get(ctx, id)
			switch {
			case err == nil && c.PublicToken != nil && *c.PublicToken == token:
				return &Access{Count: c, Permissions: PermissionsFor(c.Status)}, nil
			case err != nil && !errors.Is(err, ErrNotFound):
				return nil, err
			}
		}
	}

	c, err := g.repo.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	g.remember(ctx, token, c.ID)
	return &Access{Count: c, Permissions: PermissionsFor(c.Status)}, nil
}

func (g *Gateway) remember(ctx context.Context, token string, id uint) {
	if g.cache != nil {
		g.cache.Set(ctx, token, id)
	}
}
