package content

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

var (
	ErrBlockNotFound     = errors.New("block not found")
	ErrDuplicateBlock    = errors.New("block listed more than once")
	ErrBlockSetMismatch  = errors.New("block list does not match the page's blocks")
	ErrBlockTypeMismatch = errors.New("block type cannot be changed")
)

// Repository persists page blocks. Positions of one owner are always the
// contiguous range 0..N-1 when no call is in flight.
type Repository interface {
	// ListByOwner returns the owner's blocks ordered by position.
	ListByOwner(ctx context.Context, owner Owner) ([]*Block, error)

	GetByID(ctx context.Context, id string) (*Block, error)

	// Append stores b after the owner's last block and sets b.Position.
	Append(ctx context.Context, b *Block) error

	// UpdateContent replaces the payload of a block. The variant must match
	// the stored block type.
	UpdateContent(ctx context.Context, id string, c Content) (*Block, error)

	// Delete removes a block and closes the gap in positions.
	Delete(ctx context.Context, id string) error

	// Reorder assigns positions 0..len(ids)-1 in the given order. ids must
	// be exactly the owner's current block IDs. The update is atomic: on
	// error no position has changed.
	Reorder(ctx context.Context, owner Owner, ids []string) error
}

// CheckOrder verifies that ids is a permutation of current.
func CheckOrder(current, ids []string) error {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return ErrDuplicateBlock
		}
		seen[id] = struct{}{}
	}
	if len(current) != len(ids) {
		return ErrBlockSetMismatch
	}
	for _, id := range current {
		if _, ok := seen[id]; !ok {
			return ErrBlockSetMismatch
		}
	}
	return nil
}

// InMemoryRepository is an in-memory implementation of Repository.
// Every operation runs under one lock, so a reorder is never observed half applied.
type InMemoryRepository struct {
	mu     sync.RWMutex
	blocks map[string]*Block
	now    func() time.Time
}

// NewInMemoryRepository creates a new in-memory block repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		blocks: make(map[string]*Block),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ownerBlocks returns the owner's stored blocks ordered by position. Caller holds mu.
func (r *InMemoryRepository) ownerBlocks(owner Owner) []*Block {
	var out []*Block
	for _, b := range r.blocks {
		if b.Owner == owner {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

func (r *InMemoryRepository) ListByOwner(_ context.Context, owner Owner) ([]*Block, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored := r.ownerBlocks(owner)
	out := make([]*Block, len(stored))
	for i, b := range stored {
		out[i] = copyBlock(b)
	}
	return out, nil
}

func (r *InMemoryRepository) GetByID(_ context.Context, id string) (*Block, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.blocks[id]
	if !ok {
		return nil, ErrBlockNotFound
	}
	return copyBlock(b), nil
}

func (r *InMemoryRepository) Append(_ context.Context, b *Block) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	b.Position = len(r.ownerBlocks(b.Owner))
	b.CreatedAt, b.UpdatedAt = now, now
	r.blocks[b.ID] = copyBlock(b)
	return nil
}

func (r *InMemoryRepository) UpdateContent(_ context.Context, id string, c Content) (*Block, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.blocks[id]
	if !ok {
		return nil, ErrBlockNotFound
	}
	if b.Type() != c.BlockType() {
		return nil, ErrBlockTypeMismatch
	}
	b.Content = c
	b.UpdatedAt = r.now()
	return copyBlock(b), nil
}

func (r *InMemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.blocks[id]
	if !ok {
		return ErrBlockNotFound
	}
	delete(r.blocks, id)
	for i, sibling := range r.ownerBlocks(b.Owner) {
		sibling.Position = i
	}
	return nil
}

func (r *InMemoryRepository) Reorder(_ context.Context, owner Owner, ids []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := r.ownerBlocks(owner)
	current := make([]string, len(stored))
	for i, b := range stored {
		current[i] = b.ID
	}
	if err := CheckOrder(current, ids); err != nil {
		return err
	}

	now := r.now()
	for pos, id := range ids {
		b := r.blocks[id]
		if b.Position != pos {
			b.Position = pos
			b.UpdatedAt = now
		}
	}
	return nil
}
