package repositories

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ineed/internal/constants"
	"ineed/internal/database"
	. "ineed/internal/models"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/valkey-io/valkey-go"
)

// ToastedOptions bound the persisted set: Trim keeps at most Capacity ids per
// identity beyond those still unread, and the whole set is forgotten after TTL
// of inactivity.
type ToastedOptions struct {
	Capacity int
	TTL      time.Duration
}

// ToastedRepository is the persisted set of notification ids that already raised
// a toast for an identity.
type ToastedRepository interface {
	// Claim adds id and reports whether it was absent. Only the caller that gets
	// true may toast.
	Claim(ctx context.Context, identity Identity, id ID) (bool, error)
	Contains(ctx context.Context, identity Identity, ids []ID) (map[ID]bool, error)
	Members(ctx context.Context, identity Identity) ([]ID, error)
	// Trim evicts the oldest ids until at most Capacity remain. Ids in keep are
	// never evicted, so the set may stay above Capacity.
	Trim(ctx context.Context, identity Identity, keep []ID) error
}

// evictable picks the oldest members outside keep until len(members)-Capacity
// are chosen. members is ordered oldest first.
func evictable(members []ID, keep []ID, capacity int) []ID {
	excess := len(members) - capacity
	if capacity <= 0 || excess <= 0 {
		return nil
	}

	kept := make(map[ID]struct{}, len(keep))
	for _, id := range keep {
		kept[id] = struct{}{}
	}

	var evict []ID
	for _, id := range members {
		if len(evict) == excess {
			break
		}
		if _, ok := kept[id]; !ok {
			evict = append(evict, id)
		}
	}
	return evict
}

func toastedKey(identity Identity) string {
	return fmt.Sprintf("%s:%s:%s", constants.ToastedCachePrefix, identity.Role, identity.UserID)
}

type valkeyToastedRepository struct {
	client  valkey.Client
	options ToastedOptions
	now     func() time.Time
	log     logger.Logger
}

func NewValkeyToastedRepository(client valkey.Client, options ToastedOptions) ToastedRepository {
	return &valkeyToastedRepository{
		client:  client,
		options: options,
		now:     time.Now,
		log:     logger.New("toastedRepository"),
	}
}

func (r *valkeyToastedRepository) Claim(ctx context.Context, identity Identity, id ID) (bool, error) {
	added, err := database.NewCacheBuilder(r.client, toastedKey(identity)).
		WithContext(ctx).
		WithMembers(id.String()).
		WithScore(float64(r.now().UnixMilli())).
		WithTTL(r.options.TTL).
		AddSortedMember()
	if err != nil {
		return added, r.log.Function("Claim").
			Err("failed to record toasted notification", err, "identity", identity.Key(), "notificationID", id)
	}
	return added, nil
}

func (r *valkeyToastedRepository) Contains(ctx context.Context, identity Identity, ids []ID) (map[ID]bool, error) {
	members := make([]string, len(ids))
	for i, id := range ids {
		members[i] = id.String()
	}

	present, err := database.NewCacheBuilder(r.client, toastedKey(identity)).
		WithContext(ctx).
		WithMembers(members...).
		ContainsSortedMembers()
	if err != nil {
		return nil, r.log.Function("Contains").
			Err("failed to read toasted notifications", err, "identity", identity.Key())
	}

	result := make(map[ID]bool, len(present))
	for member := range present {
		result[ID(member)] = true
	}
	return result, nil
}

func (r *valkeyToastedRepository) Members(ctx context.Context, identity Identity) ([]ID, error) {
	members, err := database.NewCacheBuilder(r.client, toastedKey(identity)).
		WithContext(ctx).
		SortedMembers()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, nil
		}
		return nil, r.log.Function("Members").
			Err("failed to list toasted notifications", err, "identity", identity.Key())
	}
	return IDs(members), nil
}

func (r *valkeyToastedRepository) Trim(ctx context.Context, identity Identity, keep []ID) error {
	members, err := r.Members(ctx, identity)
	if err != nil {
		return err
	}

	evict := evictable(members, keep, r.options.Capacity)
	if len(evict) == 0 {
		return nil
	}

	names := make([]string, len(evict))
	for i, id := range evict {
		names[i] = id.String()
	}

	if err := database.NewCacheBuilder(r.client, toastedKey(identity)).
		WithContext(ctx).
		WithMembers(names...).
		RemoveSortedMembers(); err != nil {
		return r.log.Function("Trim").
			Err("failed to evict toasted notifications", err, "identity", identity.Key(), "count", len(evict))
	}
	return nil
}

type toastedEntry struct {
	id        ID
	toastedAt time.Time
}

type toastedSet struct {
	entries   []toastedEntry
	index     map[ID]struct{}
	touchedAt time.Time
}

type memoryToastedRepository struct {
	mu      sync.Mutex
	sets    map[string]*toastedSet
	options ToastedOptions
	now     func() time.Time
}

func NewMemoryToastedRepository(options ToastedOptions) ToastedRepository {
	return &memoryToastedRepository{
		sets:    make(map[string]*toastedSet),
		options: options,
		now:     time.Now,
	}
}

func (r *memoryToastedRepository) set(identity Identity) *toastedSet {
	key := toastedKey(identity)
	now := r.now()

	set, ok := r.sets[key]
	if ok && r.options.TTL > 0 && now.Sub(set.touchedAt) > r.options.TTL {
		ok = false
	}
	if !ok {
		set = &toastedSet{index: make(map[ID]struct{})}
		r.sets[key] = set
	}
	return set
}

func (r *memoryToastedRepository) Claim(_ context.Context, identity Identity, id ID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.set(identity)
	now := r.now()
	set.touchedAt = now

	if _, ok := set.index[id]; ok {
		return false, nil
	}

	set.entries = append(set.entries, toastedEntry{id: id, toastedAt: now})
	set.index[id] = struct{}{}

	return true, nil
}

func (r *memoryToastedRepository) Trim(_ context.Context, identity Identity, keep []ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.set(identity)
	members := make([]ID, len(set.entries))
	for i, entry := range set.entries {
		members[i] = entry.id
	}

	evict := evictable(members, keep, r.options.Capacity)
	if len(evict) == 0 {
		return nil
	}

	for _, id := range evict {
		delete(set.index, id)
	}
	entries := set.entries[:0]
	for _, entry := range set.entries {
		if _, ok := set.index[entry.id]; ok {
			entries = append(entries, entry)
		}
	}
	set.entries = entries
	set.touchedAt = r.now()
	return nil
}

func (r *memoryToastedRepository) Contains(_ context.Context, identity Identity, ids []ID) (map[ID]bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.set(identity)
	result := make(map[ID]bool)
	for _, id := range ids {
		if _, ok := set.index[id]; ok {
			result[id] = true
		}
	}
	return result, nil
}

func (r *memoryToastedRepository) Members(_ context.Context, identity Identity) ([]ID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.set(identity)
	ids := make([]ID, len(set.entries))
	for i, entry := range set.entries {
		ids[i] = entry.id
	}
	return ids, nil
}
