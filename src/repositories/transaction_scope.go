package repositories

import (
	"sort"
	"sync"
)

// TransactionScope decides which proxied methods run inside a transaction:
// either every method, or only the listed ones.
type TransactionScope struct {
	mu     sync.RWMutex
	listed map[string]struct{}
}

// NewTransactionScope wraps every method when called without arguments.
func NewTransactionScope(methods ...string) *TransactionScope {
	s := &TransactionScope{}
	for _, method := range methods {
		s.Add(method)
	}
	return s
}

// Add lists method. Adding the same method twice is a no-op.
func (s *TransactionScope) Add(method string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listed == nil {
		s.listed = make(map[string]struct{})
	}
	s.listed[method] = struct{}{}
}

// Remove unlists method; removing the last one goes back to every method.
func (s *TransactionScope) Remove(method string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.listed, method)
	if len(s.listed) == 0 {
		s.listed = nil
	}
}

func (s *TransactionScope) IsAllMethods() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.listed == nil
}

func (s *TransactionScope) Wraps(method string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.listed == nil {
		return true
	}
	_, ok := s.listed[method]
	return ok
}

// Methods returns the listed methods, sorted; nil means every method.
func (s *TransactionScope) Methods() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.listed == nil {
		return nil
	}
	methods := make([]string, 0, len(s.listed))
	for method := range s.listed {
		methods = append(methods, method)
	}
	sort.Strings(methods)
	return methods
}
