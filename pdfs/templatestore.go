package pdfs

import (
	"crypto/sha256"
	"encoding/hex"
)

// TemplateStore keeps resources registered with a document once, keyed by
// content. A document's store is used by one goroutine.
type TemplateStore[T any] struct {
	templates map[string]T
}

func NewTemplateStore[T any]() *TemplateStore[T] {
	return &TemplateStore[T]{templates: make(map[string]T)}
}

func (s *TemplateStore[T]) Store(key string, template T) {
	s.templates[key] = template
}

func (s *TemplateStore[T]) Get(key string) (T, bool) {
	t, ok := s.templates[key]
	return t, ok
}

func (s *TemplateStore[T]) Remove(key string) {
	delete(s.templates, key)
}

func (s *TemplateStore[T]) Len() int {
	return len(s.templates)
}

// ContentKey is the store key for a resource's bytes.
func ContentKey(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:12])
}
