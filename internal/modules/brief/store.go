package brief

import (
	"context"
	"errors"
	"sync"

	"github.com/threadbrief/core/internal/models"
	"github.com/threadbrief/core/internal/pkg/clock"
	"github.com/threadbrief/core/internal/pkg/shortid"
)

var (
	// ErrNotFound means no brief exists under the requested id.
	ErrNotFound = errors.New("brief not found")
	// ErrIDExhausted means id generation kept colliding. With a 62^6 id
	// space this indicates a broken random source, not a full store.
	ErrIDExhausted = errors.New("could not allocate a unique brief id")
)

// maxIDAttempts bounds collision retries during Create.
const maxIDAttempts = 5

// Fields is everything a brief carries except its identity and timestamp,
// which the store assigns.
type Fields struct {
	Title        string
	Overview     string
	Bullets      []string
	WhyItMatters string
	Meta         models.BriefMeta
}

// Store owns Brief lifetime: creation assigns the id and timestamp, and a
// returned Brief is never mutated afterwards, by the store or by callers.
type Store interface {
	Create(ctx context.Context, f *Fields) (*models.Brief, error)
	Get(ctx context.Context, id string) (*models.Brief, error)
}

// MemoryStore is the volatile demo Store. Check-then-insert runs under one
// lock so concurrent Creates can never share an id.
type MemoryStore struct {
	mu     sync.RWMutex
	briefs map[string]*models.Brief
	ids    *shortid.Generator
	clk    clock.Clock
}

func NewMemoryStore(ids *shortid.Generator, clk clock.Clock) *MemoryStore {
	if ids == nil {
		ids = shortid.NewGenerator(nil, shortid.DefaultLength)
	}
	if clk == nil {
		clk = clock.System()
	}
	return &MemoryStore{
		briefs: make(map[string]*models.Brief),
		ids:    ids,
		clk:    clk,
	}
}

func (s *MemoryStore) Create(_ context.Context, f *Fields) (*models.Brief, error) {
	b := briefFromFields(f, s.clk)

	s.mu.Lock()
	defer s.mu.Unlock()
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id := s.ids.Next()
		if _, taken := s.briefs[id]; taken {
			continue
		}
		b.ID = id
		s.briefs[id] = b
		return b, nil
	}
	return nil, ErrIDExhausted
}

func (s *MemoryStore) Get(_ context.Context, id string) (*models.Brief, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.briefs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return b, nil
}

func briefFromFields(f *Fields, clk clock.Clock) *models.Brief {
	bullets := make([]string, len(f.Bullets))
	copy(bullets, f.Bullets)
	return &models.Brief{
		Title:          f.Title,
		Overview:       f.Overview,
		Bullets:        bullets,
		WhyItMatters:   f.WhyItMatters,
		SourceType:     f.Meta.SourceType,
		Mode:           f.Meta.Mode,
		Length:         f.Meta.Length,
		OutputLanguage: f.Meta.OutputLanguage,
		CreatedAt:      clk.Now(),
	}
}
