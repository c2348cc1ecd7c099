// Package memory implements an in-memory cart repository with the same
// quantity and merge rules as the Postgres one. It is a test double for the
// service and HTTP packages; no binary wires it.
package memory

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"storefront/internal/domain"
	cartrepo "storefront/internal/repository/cart"
)

type line struct {
	id        int64
	productID int64
	quantity  int
}

// Repository provides an in-memory implementation of cart.Repository.
type Repository struct {
	mu       sync.Mutex
	products map[int64]domain.Product
	nextID   int64
	carts    []domain.Cart
	owned    map[string][]line
	// FailMerge makes MergeGuest fail before touching any state.
	FailMerge error
}

// New creates a repository whose lines resolve against the given products.
func New(products ...domain.Product) *Repository {
	r := &Repository{products: make(map[int64]domain.Product), owned: make(map[string][]line)}
	for _, p := range products {
		r.products[p.ID] = p
	}
	return r
}

// AddCart inserts a cart row directly, allowing duplicates.
func (r *Repository) AddCart(principalID string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insertCart(principalID).ID
}

// Carts returns the principal's carts, oldest first.
func (r *Repository) Carts(principalID string) []domain.Cart {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Cart
	for _, c := range r.carts {
		if c.PrincipalID == principalID {
			out = append(out, c)
		}
	}
	return out
}

func (r *Repository) Ensure(_ context.Context, principalID string) (*domain.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c := r.oldest(principalID); c != nil {
		return c, nil
	}
	return r.insertCart(principalID), nil
}

func (r *Repository) Find(_ context.Context, principalID string) (*domain.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c := r.oldest(principalID); c != nil {
		return c, nil
	}
	return nil, domain.ErrNotFound
}

func (r *Repository) CartLines(cartID int64) cartrepo.Lines {
	return &lines{repo: r, key: cartKey(cartID), cartID: cartID}
}

func (r *Repository) GuestLines(guestID string) cartrepo.Lines {
	return &lines{repo: r, key: "guest:" + guestID}
}

func (r *Repository) MergeGuest(_ context.Context, guestID, principalID string) (cartrepo.MergeResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailMerge != nil {
		return cartrepo.MergeResult{}, r.FailMerge
	}
	guestKey := "guest:" + guestID
	pending := r.owned[guestKey]
	if len(pending) == 0 {
		return cartrepo.MergeResult{}, nil
	}
	c := r.oldest(principalID)
	if c == nil {
		c = r.insertCart(principalID)
	}
	r.fold(cartKey(c.ID), pending)
	delete(r.owned, guestKey)
	return cartrepo.MergeResult{CartID: c.ID, ItemsMerged: len(pending)}, nil
}

func (r *Repository) Consolidate(_ context.Context, principalID string) (cartrepo.ConsolidateResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []int64
	kept := r.carts[:0]
	for _, c := range r.carts {
		if c.PrincipalID == principalID {
			ids = append(ids, c.ID)
		}
	}
	if len(ids) == 0 {
		return cartrepo.ConsolidateResult{}, domain.ErrNotFound
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	canonical := ids[0]
	for _, dup := range ids[1:] {
		r.fold(cartKey(canonical), r.owned[cartKey(dup)])
		delete(r.owned, cartKey(dup))
	}
	for _, c := range r.carts {
		if c.PrincipalID != principalID || c.ID == canonical {
			kept = append(kept, c)
		}
	}
	r.carts = kept
	return cartrepo.ConsolidateResult{CanonicalCartID: canonical, CartsRemoved: len(ids) - 1}, nil
}

func (r *Repository) fold(dst string, src []line) {
	for _, in := range src {
		merged := false
		for i, l := range r.owned[dst] {
			if l.productID == in.productID {
				r.owned[dst][i].quantity = min(l.quantity+in.quantity, domain.MaxLineQuantity)
				merged = true
				break
			}
		}
		if !merged {
			r.nextID++
			r.owned[dst] = append(r.owned[dst], line{id: r.nextID, productID: in.productID, quantity: min(in.quantity, domain.MaxLineQuantity)})
		}
	}
}

func (r *Repository) oldest(principalID string) *domain.Cart {
	for _, c := range r.carts {
		if c.PrincipalID == principalID {
			cp := c
			return &cp
		}
	}
	return nil
}

func (r *Repository) insertCart(principalID string) *domain.Cart {
	r.nextID++
	c := domain.Cart{ID: r.nextID, PrincipalID: principalID}
	r.carts = append(r.carts, c)
	return &c
}

func cartKey(id int64) string {
	return "cart:" + strconv.FormatInt(id, 10)
}

type lines struct {
	repo   *Repository
	key    string
	cartID int64
}

func (l *lines) List(_ context.Context) ([]domain.CartLine, error) {
	l.repo.mu.Lock()
	defer l.repo.mu.Unlock()
	out := []domain.CartLine{}
	for _, ln := range l.repo.owned[l.key] {
		p := l.repo.products[ln.productID]
		out = append(out, domain.CartLine{
			ID:         ln.id,
			ProductID:  ln.productID,
			Quantity:   ln.quantity,
			Title:      p.Name,
			PriceCents: p.PriceCents,
			ImageURL:   p.ImageURL,
		})
	}
	return out, nil
}

func (l *lines) Add(_ context.Context, productID int64, quantity int) (*domain.CartLine, error) {
	l.repo.mu.Lock()
	defer l.repo.mu.Unlock()
	if _, ok := l.repo.products[productID]; !ok {
		return nil, domain.ErrNotFound
	}
	for i, ln := range l.repo.owned[l.key] {
		if ln.productID != productID {
			continue
		}
		if ln.quantity+quantity > domain.MaxLineQuantity {
			return nil, &domain.QuantityExceededError{ProductID: productID, Current: ln.quantity, Requested: quantity, Max: domain.MaxLineQuantity}
		}
		l.repo.owned[l.key][i].quantity += quantity
		return &domain.CartLine{ID: ln.id, ProductID: productID, Quantity: ln.quantity + quantity}, nil
	}
	if quantity > domain.MaxLineQuantity {
		return nil, &domain.QuantityExceededError{ProductID: productID, Requested: quantity, Max: domain.MaxLineQuantity}
	}
	l.repo.nextID++
	l.repo.owned[l.key] = append(l.repo.owned[l.key], line{id: l.repo.nextID, productID: productID, quantity: quantity})
	return &domain.CartLine{ID: l.repo.nextID, ProductID: productID, Quantity: quantity}, nil
}

func (l *lines) Update(_ context.Context, lineID int64, quantity int) error {
	l.repo.mu.Lock()
	defer l.repo.mu.Unlock()
	for i, ln := range l.repo.owned[l.key] {
		if ln.id == lineID {
			l.repo.owned[l.key][i].quantity = quantity
			return nil
		}
	}
	return domain.ErrNotFound
}

func (l *lines) Remove(_ context.Context, lineID int64) error {
	l.repo.mu.Lock()
	defer l.repo.mu.Unlock()
	owned := l.repo.owned[l.key]
	for i, ln := range owned {
		if ln.id == lineID {
			l.repo.owned[l.key] = append(owned[:i], owned[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (l *lines) Clear(_ context.Context) error {
	l.repo.mu.Lock()
	defer l.repo.mu.Unlock()
	delete(l.repo.owned, l.key)
	return nil
}
