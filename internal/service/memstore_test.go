package service_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/avetisk/event-ticketing/internal/model"
	"github.com/avetisk/event-ticketing/internal/repository"
)

// memStore is an in-memory repository.Store with snapshot rollback, so
// the engine's all-or-nothing transaction semantics hold in tests the
// same way they do against MySQL.
type memStore struct {
	mu           sync.Mutex
	events       map[uint64]*model.Event
	reservations map[uint64]*model.Reservation
	nextID       uint64
	now          func() time.Time
}

func newMemStore(now func() time.Time) *memStore {
	return &memStore{
		events:       make(map[uint64]*model.Event),
		reservations: make(map[uint64]*model.Reservation),
		now:          now,
	}
}

func (m *memStore) addEvent(ev *model.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *ev
	m.events[cp.ID] = &cp
}

func (m *memStore) event(id uint64) model.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.events[id]
}

func (m *memStore) reservation(id uint64) model.Reservation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.reservations[id]
}

func (m *memStore) snapshot() (map[uint64]*model.Event, map[uint64]*model.Reservation) {
	evs := make(map[uint64]*model.Event, len(m.events))
	for id, ev := range m.events {
		cp := *ev
		evs[id] = &cp
	}
	ress := make(map[uint64]*model.Reservation, len(m.reservations))
	for id, res := range m.reservations {
		cp := *res
		ress[id] = &cp
	}
	return evs, ress
}

func (m *memStore) InTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	evs, ress := m.snapshot()
	if err := fn(&memTx{store: m}); err != nil {
		m.events, m.reservations = evs, ress
		return err
	}
	return nil
}

func (m *memStore) ListByUser(ctx context.Context, userID uint64) ([]*model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var list []*model.Reservation
	for _, res := range m.reservations {
		if res.UserID != userID {
			continue
		}
		cp := *res
		if ev, ok := m.events[cp.EventID]; ok {
			evCp := *ev
			cp.Event = &evCp
		}
		list = append(list, &cp)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID > list[j].ID
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return list, nil
}

type memTx struct {
	store *memStore
}

func (t *memTx) EventForUpdate(ctx context.Context, eventID uint64) (*model.Event, error) {
	ev, ok := t.store.events[eventID]
	if !ok || !ev.IsActive {
		return nil, repository.ErrEventNotFound
	}
	cp := *ev
	return &cp, nil
}

func (t *memTx) AnyEventForUpdate(ctx context.Context, eventID uint64) (*model.Event, error) {
	ev, ok := t.store.events[eventID]
	if !ok {
		return nil, repository.ErrEventNotFound
	}
	cp := *ev
	return &cp, nil
}

func (t *memTx) ReserveTickets(ctx context.Context, eventID uint64, qty int) error {
	ev, ok := t.store.events[eventID]
	if !ok {
		return repository.ErrEventNotFound
	}
	if ev.AvailableTickets < qty {
		return repository.ErrInsufficientTickets
	}
	ev.AvailableTickets -= qty
	return nil
}

func (t *memTx) ReleaseTickets(ctx context.Context, eventID uint64, qty int) error {
	ev, ok := t.store.events[eventID]
	if !ok {
		return repository.ErrEventNotFound
	}
	ev.AvailableTickets += qty
	if ev.AvailableTickets > ev.TotalCapacity {
		ev.AvailableTickets = ev.TotalCapacity
	}
	return nil
}

func (t *memTx) InsertReservation(ctx context.Context, res *model.Reservation) error {
	t.store.nextID++
	res.ID = t.store.nextID
	res.CreatedAt = t.store.now()
	res.UpdatedAt = res.CreatedAt
	cp := *res
	cp.Event = nil
	cp.User = nil
	t.store.reservations[res.ID] = &cp
	return nil
}

func (t *memTx) ReservationForUpdate(ctx context.Context, reservationID, userID uint64) (*model.Reservation, error) {
	res, ok := t.store.reservations[reservationID]
	if !ok {
		return nil, repository.ErrReservationNotFound
	}
	if res.UserID != userID {
		return nil, repository.ErrForbidden
	}
	cp := *res
	return &cp, nil
}

func (t *memTx) UpdateReservation(ctx context.Context, res *model.Reservation) error {
	stored, ok := t.store.reservations[res.ID]
	if !ok {
		return repository.ErrReservationNotFound
	}
	stored.Status = res.Status
	stored.PaymentStatus = res.PaymentStatus
	stored.PaymentReference = res.PaymentReference
	stored.UpdatedAt = t.store.now()
	res.UpdatedAt = stored.UpdatedAt
	return nil
}

func (t *memTx) ExpireHolds(ctx context.Context, eventID uint64, now time.Time) (int, error) {
	released := 0
	for _, res := range t.store.reservations {
		if res.EventID != eventID {
			continue
		}
		if res.IsExpired(now) {
			res.Status = model.ReservationCancelled
			res.UpdatedAt = t.store.now()
			released += res.TicketQuantity
		}
	}
	return released, nil
}

func (t *memTx) ExpireHoldsForUser(ctx context.Context, userID uint64, now time.Time) error {
	for _, res := range t.store.reservations {
		if res.UserID != userID {
			continue
		}
		if res.IsExpired(now) {
			res.Status = model.ReservationCancelled
			res.UpdatedAt = t.store.now()
			if err := t.ReleaseTickets(ctx, res.EventID, res.TicketQuantity); err != nil {
				return err
			}
		}
	}
	return nil
}
