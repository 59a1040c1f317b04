package reconcile

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/XuThi/xuthi-frontend-sub000/internal/domain"
)

// MutateFunc sends one quantity delta to the cart store and returns the
// authoritative cart after the mutation.
type MutateFunc func(ctx context.Context, variantID string, delta int) (*domain.Cart, error)

// FetchFunc re-reads the authoritative cart.
type FetchFunc func(ctx context.Context) (*domain.Cart, error)

// Reconciler keeps a local cart projection that reflects mutations
// immediately, before the server round trip completes, and replaces the
// projection with the authoritative response when it arrives.
//
// Mutations are applied to the projection in issue order. Each triggers its
// own call; deltas compose additively on the server, so overlapping calls
// are safe. Once the last outstanding response arrives it replaces the
// projection wholesale: it is the authoritative truth for every issued
// delta, not just the one that triggered it. On failure or timeout the
// projection reverts to the last confirmed state and a refetch is issued.
type Reconciler struct {
	mu        sync.Mutex
	mutate    MutateFunc
	fetch     FetchFunc
	timeout   time.Duration
	projected *domain.Cart
	confirmed *domain.Cart
	pending   int
}

func New(mutate MutateFunc, fetch FetchFunc, timeout time.Duration, initial *domain.Cart) *Reconciler {
	if initial == nil {
		initial = &domain.Cart{}
	}
	return &Reconciler{
		mutate:    mutate,
		fetch:     fetch,
		timeout:   timeout,
		projected: initial.Clone(),
		confirmed: initial.Clone(),
	}
}

// Cart returns a copy of the current projection.
func (r *Reconciler) Cart() *domain.Cart {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.projected.Clone()
}

// Pending reports how many mutations are still in flight.
func (r *Reconciler) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending
}

// IncreaseByOne adds one unit of the variant to the projection and issues the
// matching delta.
func (r *Reconciler) IncreaseByOne(variantID string) {
	r.apply(variantID, +1, domain.CartLineItem{})
}

// DecreaseByOne removes one unit; a line that reaches zero disappears.
func (r *Reconciler) DecreaseByOne(variantID string) {
	r.apply(variantID, -1, domain.CartLineItem{})
}

// Remove drops the whole line, whatever its quantity.
func (r *Reconciler) Remove(variantID string) {
	r.mu.Lock()
	qty := quantityOf(r.projected, variantID)
	r.mu.Unlock()
	if qty == 0 {
		return
	}
	r.apply(variantID, -qty, domain.CartLineItem{})
}

// AddLine merges a new line into the projection, folding the quantity into an
// existing line when the variant is already present.
func (r *Reconciler) AddLine(line domain.CartLineItem) {
	if line.Quantity <= 0 {
		return
	}
	r.apply(line.VariantID, line.Quantity, line)
}

func (r *Reconciler) apply(variantID string, delta int, template domain.CartLineItem) {
	r.mu.Lock()
	applyDelta(r.projected, variantID, delta, template)
	r.projected.Recompute()
	r.pending++
	r.mu.Unlock()

	go r.send(variantID, delta)
}

func (r *Reconciler) send(variantID string, delta int) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	resp, err := r.mutate(ctx, variantID, delta)

	r.mu.Lock()
	r.pending--
	if err != nil {
		// Revert: discard the optimistic projection, restore the last
		// confirmed state, then refetch the authoritative one. A timeout
		// tells us nothing about whether the mutation landed.
		r.projected = r.confirmed.Clone()
		r.mu.Unlock()
		log.Printf("cart mutation failed, reverting: %v", err)
		r.refetch()
		return
	}

	r.confirmed = resp.Clone()
	if r.pending == 0 {
		// With nothing left in flight the response reflects every issued
		// delta, so it wins over the projection.
		r.projected = resp.Clone()
	}
	r.mu.Unlock()
}

func (r *Reconciler) refetch() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	cart, err := r.fetch(ctx)
	if err != nil {
		log.Printf("cart refetch failed: %v", err)
		return
	}

	r.mu.Lock()
	r.confirmed = cart.Clone()
	if r.pending == 0 {
		r.projected = cart.Clone()
	}
	r.mu.Unlock()
}

func applyDelta(cart *domain.Cart, variantID string, delta int, template domain.CartLineItem) {
	for i := range cart.Items {
		if cart.Items[i].VariantID != variantID {
			continue
		}
		cart.Items[i].Quantity += delta
		if cart.Items[i].Quantity <= 0 {
			cart.Items = append(cart.Items[:i], cart.Items[i+1:]...)
		}
		return
	}
	if delta > 0 {
		line := template
		line.VariantID = variantID
		line.Quantity = delta
		cart.Items = append(cart.Items, line)
	}
}

func quantityOf(cart *domain.Cart, variantID string) int {
	for _, item := range cart.Items {
		if item.VariantID == variantID {
			return item.Quantity
		}
	}
	return 0
}
