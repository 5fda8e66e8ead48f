package language

// Store exposes the language catalog to handlers and services.
type Store interface {
	List() []Language
	FindByID(id string) (Language, bool)
}

// MemoryStore implements Store with an in-memory slice.
type MemoryStore struct {
	items []Language
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied languages.
func NewMemoryStore(items []Language) *MemoryStore {
	return &MemoryStore{items: append([]Language(nil), items...)}
}

// List returns the supported languages in catalog order.
func (s *MemoryStore) List() []Language {
	return append([]Language(nil), s.items...)
}

// FindByID looks up a language by identifier. The identifier is normalized
// before comparison.
func (s *MemoryStore) FindByID(id string) (Language, bool) {
	id = Normalize(id)
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return Language{}, false
}
