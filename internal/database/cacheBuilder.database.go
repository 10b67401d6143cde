package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ineed/internal/models"

	"github.com/valkey-io/valkey-go"
)

type KeyType interface {
	string | models.ID
}

type CacheBuilder struct {
	cache      valkey.Client
	key        string
	value      string
	ttl        time.Duration
	ctx        context.Context
	ctxTimeout time.Duration
	members    []string
	score      float64
	err        error
}

func NewCacheBuilder[K KeyType](cache valkey.Client, key K) *CacheBuilder {
	return &CacheBuilder{
		cache:      cache,
		key:        string(key),
		ttl:        1 * time.Hour,
		ctxTimeout: 5 * time.Second,
		ctx:        context.Background(),
	}
}

func (cb *CacheBuilder) WithValue(value string) *CacheBuilder {
	cb.value = value
	return cb
}

func (cb *CacheBuilder) WithStruct(value any) *CacheBuilder {
	bytes, err := json.Marshal(value)
	if err != nil {
		cb.err = fmt.Errorf("failed to marshal value to json: %w", err)
		return cb
	}

	cb.value = string(bytes)
	return cb
}

func (cb *CacheBuilder) WithHash(hash string) *CacheBuilder {
	if hash != "" {
		cb.key = fmt.Sprintf("%s:%s", hash, cb.key)
	}
	return cb
}

// WithTTL sets the expiry. Zero keeps the key without expiry.
func (cb *CacheBuilder) WithTTL(ttl time.Duration) *CacheBuilder {
	cb.ttl = ttl
	return cb
}

func (cb *CacheBuilder) WithContext(ctx context.Context) *CacheBuilder {
	if ctx != nil {
		cb.ctx = ctx
	}
	return cb
}

func (cb *CacheBuilder) WithTimeout(timeout time.Duration) *CacheBuilder {
	cb.ctxTimeout = timeout
	return cb
}

func (cb *CacheBuilder) WithMembers(members ...string) *CacheBuilder {
	cb.members = append(cb.members, members...)
	return cb
}

func (cb *CacheBuilder) WithScore(score float64) *CacheBuilder {
	cb.score = score
	return cb
}

func (cb *CacheBuilder) Key() string {
	return cb.key
}

func (cb *CacheBuilder) Set() error {
	if err := cb.validate(); err != nil {
		return err
	}
	if cb.value == "" {
		return fmt.Errorf("value is required")
	}

	ctx, cancel := cb.createTimeoutContext()
	defer cancel()

	if cb.ttl <= 0 {
		return cb.cache.Do(ctx, cb.cache.B().Set().Key(cb.key).Value(cb.value).Build()).Error()
	}
	return cb.cache.Do(ctx, cb.cache.B().Set().Key(cb.key).Value(cb.value).Ex(cb.ttl).Build()).
		Error()
}

func (cb *CacheBuilder) Get(result any) (bool, error) {
	if err := cb.validate(); err != nil {
		return false, err
	}

	ctx, cancel := cb.createTimeoutContext()
	defer cancel()

	data, err := cb.cache.Do(ctx, cb.cache.B().Get().Key(cb.key).Build()).ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return false, nil
		}
		return false, err
	}

	if data == "" {
		return false, nil
	}

	if err := json.Unmarshal([]byte(data), result); err != nil {
		return false, err
	}

	return true, nil
}

func (cb *CacheBuilder) Delete() error {
	if err := cb.validate(); err != nil {
		return err
	}

	ctx, cancel := cb.createTimeoutContext()
	defer cancel()

	return cb.cache.Do(ctx, cb.cache.B().Del().Key(cb.key).Build()).Error()
}

// ZADD

// AddSortedMember inserts the first member with the builder score unless it is
// already present. It reports whether the member was new and refreshes the key's
// TTL.
func (cb *CacheBuilder) AddSortedMember() (bool, error) {
	if err := cb.validate(); err != nil {
		return false, err
	}
	if len(cb.members) == 0 {
		return false, fmt.Errorf("member is required")
	}

	ctx, cancel := cb.createTimeoutContext()
	defer cancel()

	cmds := valkey.Commands{
		cb.cache.B().Zadd().Key(cb.key).Nx().ScoreMember().ScoreMember(cb.score, cb.members[0]).Build(),
	}
	if cb.ttl > 0 {
		cmds = append(cmds, cb.cache.B().Expire().Key(cb.key).Seconds(int64(cb.ttl.Seconds())).Build())
	}

	results := cb.cache.DoMulti(ctx, cmds...)
	added, err := results[0].AsInt64()
	if err != nil {
		return false, err
	}
	for _, result := range results[1:] {
		if err := result.Error(); err != nil {
			return added == 1, err
		}
	}

	return added == 1, nil
}

// ContainsSortedMembers reports which of the builder members are present.
func (cb *CacheBuilder) ContainsSortedMembers() (map[string]bool, error) {
	if err := cb.validate(); err != nil {
		return nil, err
	}

	present := make(map[string]bool, len(cb.members))
	if len(cb.members) == 0 {
		return present, nil
	}

	ctx, cancel := cb.createTimeoutContext()
	defer cancel()

	values, err := cb.cache.Do(ctx, cb.cache.B().Zmscore().Key(cb.key).Member(cb.members...).Build()).
		ToArray()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return present, nil
		}
		return nil, err
	}

	for i, value := range values {
		if i < len(cb.members) && !value.IsNil() {
			present[cb.members[i]] = true
		}
	}
	return present, nil
}

// SortedMembers lists members from lowest to highest score.
func (cb *CacheBuilder) SortedMembers() ([]string, error) {
	if err := cb.validate(); err != nil {
		return nil, err
	}

	ctx, cancel := cb.createTimeoutContext()
	defer cancel()

	return cb.cache.Do(ctx, cb.cache.B().Zrange().Key(cb.key).Min("0").Max("-1").Build()).AsStrSlice()
}

func (cb *CacheBuilder) RemoveSortedMembers() error {
	if err := cb.validate(); err != nil {
		return err
	}
	if len(cb.members) == 0 {
		return nil
	}

	ctx, cancel := cb.createTimeoutContext()
	defer cancel()

	return cb.cache.Do(ctx, cb.cache.B().Zrem().Key(cb.key).Member(cb.members...).Build()).Error()
}

func (cb *CacheBuilder) validate() error {
	if cb.err != nil {
		return cb.err
	}
	if cb.cache == nil {
		return fmt.Errorf("cache client is nil")
	}
	if cb.key == "" {
		return fmt.Errorf("key is required")
	}
	return nil
}

func (cb *CacheBuilder) createTimeoutContext() (context.Context, context.CancelFunc) {
	if deadline, ok := cb.ctx.Deadline(); ok && time.Until(deadline) < cb.ctxTimeout {
		return context.WithCancel(cb.ctx)
	}
	return context.WithTimeout(cb.ctx, cb.ctxTimeout)
}
