package service

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/coocood/freecache"
	json "github.com/goccy/go-json"
)

const ledgerKeyPrefix = "likes:"

// ErrLedgerFull 表示会话的点赞记录超过了缓存单条上限，此时不再接受新的点赞。
var ErrLedgerFull = errors.New("like ledger is full for this session")

// LedgerStore 在内存中保存每个会话的点赞记录，条目在 TTL 后过期。
type LedgerStore struct {
	mu    sync.Mutex
	cache *freecache.Cache
	ttl   time.Duration
}

// NewLedgerStore creates a store of roughly sizeMB megabytes.
func NewLedgerStore(sizeMB int, ttl time.Duration) *LedgerStore {
	return newLedgerStore(freecache.NewCache(ledgerCacheSize(sizeMB)), ttl)
}

func newLedgerStore(cache *freecache.Cache, ttl time.Duration) *LedgerStore {
	return &LedgerStore{cache: cache, ttl: ttl}
}

func ledgerCacheSize(sizeMB int) int {
	if sizeMB <= 0 {
		sizeMB = 1
	}
	return sizeMB * 1024 * 1024
}

// ForSession 返回绑定到 sessionID 的账本；sessionID 为空时返回 nil。
func (s *LedgerStore) ForSession(sessionID string) SessionLedger {
	if sessionID == "" {
		return nil
	}
	return &sessionLedger{store: s, key: []byte(ledgerKeyPrefix + sessionID)}
}

func (s *LedgerStore) load(key []byte) map[int]struct{} {
	ids := make(map[int]struct{})
	raw, err := s.cache.Get(key)
	if err != nil {
		return ids
	}
	var list []int
	if err := json.Unmarshal(raw, &list); err != nil {
		return ids
	}
	for _, id := range list {
		ids[id] = struct{}{}
	}
	return ids
}

// reserve 在同一把锁内检查并登记点赞，保证一个会话对同一问题只登记一次。
func (s *LedgerStore) reserve(key []byte, questionID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.load(key)
	if _, ok := ids[questionID]; ok {
		return ErrAlreadyLiked
	}
	ids[questionID] = struct{}{}
	return s.store(key, ids)
}

func (s *LedgerStore) release(key []byte, questionID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.load(key)
	if _, ok := ids[questionID]; !ok {
		return nil
	}
	delete(ids, questionID)
	if len(ids) == 0 {
		s.cache.Del(key)
		return nil
	}
	return s.store(key, ids)
}

func (s *LedgerStore) store(key []byte, ids map[int]struct{}) error {
	raw, err := json.Marshal(sortedIDs(ids))
	if err != nil {
		return err
	}
	if err := s.cache.Set(key, raw, int(s.ttl/time.Second)); err != nil {
		if errors.Is(err, freecache.ErrLargeEntry) {
			return ErrLedgerFull
		}
		return err
	}
	return nil
}

func sortedIDs(ids map[int]struct{}) []int {
	list := make([]int, 0, len(ids))
	for id := range ids {
		list = append(list, id)
	}
	sort.Ints(list)
	return list
}

type sessionLedger struct {
	store *LedgerStore
	key   []byte
}

func (l *sessionLedger) Has(questionID int) bool {
	_, ok := l.store.load(l.key)[questionID]
	return ok
}

func (l *sessionLedger) Reserve(questionID int) error {
	return l.store.reserve(l.key, questionID)
}

func (l *sessionLedger) Release(questionID int) error {
	return l.store.release(l.key, questionID)
}

func (l *sessionLedger) IDs() []int {
	return sortedIDs(l.store.load(l.key))
}
