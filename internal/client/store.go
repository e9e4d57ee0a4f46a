package client

import (
	"sync"

	"github.com/avetisk/event-ticketing/internal/model"
)

// Store is the client's local view of the caller's reservations, kept
// newest first.  Mutations go through the owning Client, which only
// touches the store after the server has confirmed, so readers never
// observe a half-applied operation.
type Store struct {
	mu           sync.Mutex
	reservations []*model.Reservation
	inFlight     map[uint64]bool
}

func NewStore() *Store {
	return &Store{inFlight: make(map[uint64]bool)}
}

// Prepend inserts a freshly created reservation at the head of the
// list.
func (s *Store) Prepend(res *model.Reservation) {
	if res == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reservations = append([]*model.Reservation{res}, s.reservations...)
}

// Replace swaps the whole collection for the server's view, as after a
// full refetch.
func (s *Store) Replace(list []*model.Reservation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reservations = append([]*model.Reservation(nil), list...)
}

// Reset drops all local state, as on logout.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reservations = nil
	s.inFlight = make(map[uint64]bool)
}

// Apply merges a server response into the collection in place.  The
// server wins on status, payment and timestamp fields; nested Event and
// User objects known locally are kept when the response omits them, so
// a partial response never erases data.  A response older than what we
// already hold is stale and discarded.  Unknown reservations are
// prepended.
func (s *Store) Apply(server *model.Reservation) bool {
	if server == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, local := range s.reservations {
		if local.ID != server.ID {
			continue
		}
		if server.UpdatedAt.Before(local.UpdatedAt) {
			return false // stale
		}
		merged := *server
		if merged.Event == nil {
			merged.Event = local.Event
		}
		if merged.User == nil {
			merged.User = local.User
		}
		s.reservations[i] = &merged
		return true
	}
	s.reservations = append([]*model.Reservation{server}, s.reservations...)
	return true
}

// Get returns the local copy of a reservation, or nil.
func (s *Store) Get(id uint64) *model.Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, res := range s.reservations {
		if res.ID == id {
			return res
		}
	}
	return nil
}

// List returns a snapshot of the collection, newest first.
func (s *Store) List() []*model.Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*model.Reservation(nil), s.reservations...)
}

// Aggregates summarizes the collection.  It is always recomputed by a
// full scan rather than adjusted incrementally, so it cannot drift from
// the underlying list.
type Aggregates struct {
	Total     int
	Pending   int
	Confirmed int
	Cancelled int
	// ConfirmedRevenueCents sums total amounts over confirmed
	// reservations; PendingAmountCents over pending ones.
	ConfirmedRevenueCents int64
	PendingAmountCents    int64
}

// Aggregates recomputes the summary from scratch.
func (s *Store) Aggregates() Aggregates {
	s.mu.Lock()
	defer s.mu.Unlock()
	var a Aggregates
	a.Total = len(s.reservations)
	for _, res := range s.reservations {
		switch res.Status {
		case model.ReservationPending:
			a.Pending++
			a.PendingAmountCents += res.TotalAmountCents
		case model.ReservationConfirmed:
			a.Confirmed++
			a.ConfirmedRevenueCents += res.TotalAmountCents
		case model.ReservationCancelled:
			a.Cancelled++
		}
	}
	return a
}

// beginMutation claims the single-flight slot for a reservation id.
// Returns false when another mutation for the same id is running.
func (s *Store) beginMutation(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[id] {
		return false
	}
	s.inFlight[id] = true
	return true
}

func (s *Store) endMutation(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, id)
}
