// Package session holds the authenticated identity and the active brand
// selection, persisted across restarts through the key-value store. It is
// the injected replacement for the ambient browser-storage state the
// dashboard used to keep.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"sentimetrics/internal/models"
	"sentimetrics/internal/store"
)

// ErrUnknownBrand is returned when a brand id is not in the known list.
var ErrUnknownBrand = errors.New("unknown brand")

// BrandAPI is the slice of the upstream client the session needs.
type BrandAPI interface {
	Brands(ctx context.Context) ([]models.Brand, error)
	SelectBrand(ctx context.Context, brandID string) (models.Brand, error)
}

// Snapshot is a point-in-time view of the session. Consumers branch on
// Authenticated instead of poking at possibly-absent fields.
type Snapshot struct {
	Authenticated bool           `json:"authenticated"`
	User          models.User    `json:"user,omitempty"`
	Brands        []models.Brand `json:"brands,omitempty"`
	ActiveBrand   *models.Brand  `json:"activeBrand,omitempty"`
}

// Session is the mutable session state. All access goes through the
// RWMutex; persistence is write-through to the store, best effort.
type Session struct {
	mu     sync.RWMutex
	store  *store.Store
	api    BrandAPI
	token  string
	user   *models.User
	brands []models.Brand
	active *models.Brand
}

func New(st *store.Store, api BrandAPI) *Session {
	return &Session{store: st, api: api}
}

// Hydrate loads persisted session state. It never fails: malformed or
// absent stored values read as "no session".
func (s *Session) Hydrate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok, err := s.store.Get(store.KeyToken); err == nil && ok {
		s.token = v
	}
	if v, ok, err := s.store.Get(store.KeyUser); err == nil && ok {
		var u models.User
		if json.Unmarshal([]byte(v), &u) == nil {
			s.user = &u
		}
	}
	if v, ok, err := s.store.Get(store.KeyBrands); err == nil && ok {
		var b []models.Brand
		if json.Unmarshal([]byte(v), &b) == nil {
			s.brands = b
		}
	}
	if v, ok, err := s.store.Get(store.KeyActiveBrand); err == nil && ok {
		var b models.Brand
		if json.Unmarshal([]byte(v), &b) == nil {
			s.active = &b
		}
	}

	s.ensureActiveLocked()
}

// Token returns the bearer token, empty when logged out.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Snapshot returns the current session view.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.token == "" || s.user == nil {
		return Snapshot{}
	}
	snap := Snapshot{
		Authenticated: true,
		User:          *s.user,
		Brands:        append([]models.Brand(nil), s.brands...),
	}
	if s.active != nil {
		b := *s.active
		snap.ActiveBrand = &b
	}
	return snap
}

// ActiveBrand returns a copy of the active brand, nil when none.
func (s *Session) ActiveBrand() *models.Brand {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.active == nil {
		return nil
	}
	b := *s.active
	return &b
}

// Brands returns the known brand list.
func (s *Session) Brands() []models.Brand {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Brand(nil), s.brands...)
}

// SeedLogin installs a fresh login result, avoiding a redundant brand
// refetch right after authentication. activeID may be empty, in which
// case the first brand becomes active.
func (s *Session) SeedLogin(token string, user models.User, brands []models.Brand, activeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = token
	s.user = &user
	s.brands = append([]models.Brand(nil), brands...)

	s.active = nil
	if activeID != "" {
		for i := range s.brands {
			if s.brands[i].ID == activeID {
				b := s.brands[i]
				s.active = &b
				break
			}
		}
	}
	s.ensureActiveLocked()

	s.persistLocked(store.KeyToken, token)
	s.persistJSONLocked(store.KeyUser, user)
	s.persistJSONLocked(store.KeyBrands, s.brands)
	if s.active != nil {
		s.persistJSONLocked(store.KeyActiveBrand, *s.active)
	}
}

// RefreshBrands refetches the brand list with the current token. Without
// a token it is a no-op. Safe to call on an interval; failures leave the
// previous list in place.
func (s *Session) RefreshBrands(ctx context.Context) error {
	if s.Token() == "" {
		return nil
	}

	brands, err := s.api.Brands(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.brands = brands
	s.persistJSONLocked(store.KeyBrands, brands)

	// drop an active brand that no longer exists
	if s.active != nil {
		found := false
		for i := range brands {
			if brands[i].ID == s.active.ID {
				found = true
				break
			}
		}
		if !found {
			s.active = nil
			if err := s.store.Delete(store.KeyActiveBrand); err != nil {
				log.Printf("session: drop stale active brand: %v", err)
			}
		}
	}
	s.ensureActiveLocked()
	return nil
}

// SelectBrand makes the brand with the given id active and notifies the
// backend best-effort. The local selection sticks even when the backend
// call fails.
func (s *Session) SelectBrand(ctx context.Context, id string) (models.Brand, error) {
	s.mu.Lock()
	var next *models.Brand
	for i := range s.brands {
		if s.brands[i].ID == id {
			b := s.brands[i]
			next = &b
			break
		}
	}
	if next == nil {
		s.mu.Unlock()
		return models.Brand{}, ErrUnknownBrand
	}
	s.active = next
	s.persistJSONLocked(store.KeyActiveBrand, *next)
	token := s.token
	s.mu.Unlock()

	if token != "" {
		if _, err := s.api.SelectBrand(ctx, id); err != nil {
			// not fatal: local selection is authoritative
			log.Printf("session: backend brand select failed: %v", err)
		}
	}
	return *next, nil
}

// Logout clears the in-memory session and all persisted state.
func (s *Session) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = ""
	s.user = nil
	s.brands = nil
	s.active = nil
	if err := s.store.Clear(); err != nil {
		log.Printf("session: clear persisted state: %v", err)
	}
}

// StartRefreshLoop refreshes the brand list every interval until ctx is
// done. The interval is fixed, no backoff or jitter; a failed tick just
// waits for the next one.
func (s *Session) StartRefreshLoop(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.RefreshBrands(ctx); err != nil {
					log.Printf("session: brand refresh: %v", err)
				}
			}
		}
	}()
}

// ensureActiveLocked repairs the invariant that some brand is active
// whenever the brand list is non-empty.
func (s *Session) ensureActiveLocked() {
	if s.active == nil && len(s.brands) > 0 {
		b := s.brands[0]
		s.active = &b
		s.persistJSONLocked(store.KeyActiveBrand, b)
	}
}

func (s *Session) persistLocked(key, value string) {
	if err := s.store.Set(key, value); err != nil {
		log.Printf("session: persist %s: %v", key, err)
	}
}

func (s *Session) persistJSONLocked(key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("session: encode %s: %v", key, err)
		return
	}
	s.persistLocked(key, string(data))
}
