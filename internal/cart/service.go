package cart

import (
	"context"
	"sync"

	"github.com/judyrop/catering-backend/internal/apperr"
	"github.com/judyrop/catering-backend/internal/auth"
	"github.com/judyrop/catering-backend/models"
)

// ProductLookup resolves purchasable catalog products.
type ProductLookup interface {
	Get(ctx context.Context, id string) (models.Product, error)
}

// Service is the cart of one authenticated principal. Each mutation loads the
// cart, applies one change and saves it back while holding the subject's lock.
// The lock is per process; multiple replicas over a shared store can still
// interleave.
type Service struct {
	store   Store
	catalog ProductLookup
	locks   keyedMutex
}

func NewService(store Store, catalog ProductLookup) *Service {
	return &Service{store: store, catalog: catalog}
}

func (s *Service) load(ctx context.Context, p auth.Principal) (*Cart, error) {
	c, err := s.store.Load(ctx, p.Subject)
	if err != nil {
		return nil, apperr.Store("load cart", err)
	}
	return c, nil
}

// save writes c back. An empty cart is removed from the store.
func (s *Service) save(ctx context.Context, p auth.Principal, c *Cart) error {
	var err error
	if c.Empty() {
		err = s.store.Delete(ctx, p.Subject)
	} else {
		err = s.store.Save(ctx, p.Subject, c)
	}
	if err != nil {
		return apperr.Store("save cart", err)
	}
	return nil
}

// mutate runs fn on the caller's cart under the caller's lock and saves it.
func (s *Service) mutate(ctx context.Context, p auth.Principal, fn func(*Cart) error) ([]Line, error) {
	if err := auth.RequireAuthenticated(p).Err(); err != nil {
		return nil, err
	}
	unlock := s.locks.lock(p.Subject)
	defer unlock()

	c, err := s.load(ctx, p)
	if err != nil {
		return nil, err
	}
	if err := fn(c); err != nil {
		return nil, err
	}
	if err := s.save(ctx, p, c); err != nil {
		return nil, err
	}
	return c.Snapshot(), nil
}

func (s *Service) Snapshot(ctx context.Context, p auth.Principal) ([]Line, error) {
	if err := auth.RequireAuthenticated(p).Err(); err != nil {
		return nil, err
	}
	c, err := s.load(ctx, p)
	if err != nil {
		return nil, err
	}
	return c.Snapshot(), nil
}

// AddLine adds one unit of productID. added is false whenever the line was
// not added; anonymous callers get an unauthenticated error so the caller
// can be sent to the login page.
func (s *Service) AddLine(ctx context.Context, p auth.Principal, productID string) (added bool, lines []Line, err error) {
	lines, err = s.mutate(ctx, p, func(c *Cart) error {
		product, err := s.catalog.Get(ctx, productID)
		if err != nil {
			return err
		}
		c.AddLine(product.ID, product.Name, product.Price)
		return nil
	})
	if err != nil {
		return false, nil, err
	}
	return true, lines, nil
}

func (s *Service) SetQuantity(ctx context.Context, p auth.Principal, productID string, quantity int) ([]Line, error) {
	return s.mutate(ctx, p, func(c *Cart) error {
		c.SetQuantity(productID, quantity)
		return nil
	})
}

func (s *Service) RemoveLine(ctx context.Context, p auth.Principal, productID string) ([]Line, error) {
	return s.mutate(ctx, p, func(c *Cart) error {
		c.RemoveLine(productID)
		return nil
	})
}

func (s *Service) Clear(ctx context.Context, p auth.Principal) error {
	_, err := s.mutate(ctx, p, func(c *Cart) error {
		c.Clear()
		return nil
	})
	return err
}

// keyedMutex hands out one mutex per key and forgets keys nobody holds.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyLock)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
