package stub

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/zjrosen/signup/internal/log"
)

// tokenStore maps verification tokens to the address they verify. Entries
// expire after the configured TTL; a token is consumed on first use.
type tokenStore struct {
	cache *gocache.Cache
	ttl   time.Duration
}

func newTokenStore(ttl time.Duration) *tokenStore {
	cleanup := 2 * ttl
	if cleanup < time.Minute {
		cleanup = time.Minute
	}
	return &tokenStore{cache: gocache.New(ttl, cleanup), ttl: ttl}
}

func (s *tokenStore) put(token, email string) {
	s.cache.Set(token, email, s.ttl)
}

// take returns the address for token and removes it.
func (s *tokenStore) take(token string) (string, bool) {
	v, found := s.cache.Get(token)
	if !found {
		log.Debug(log.CatStub, "token miss", "token", token)
		return "", false
	}
	s.cache.Delete(token)

	email, ok := v.(string)
	if !ok {
		log.Error(log.CatStub, "wrong type stored for token", "token", token)
		return "", false
	}
	return email, true
}

func (s *tokenStore) pending() int {
	return s.cache.ItemCount()
}
