package seating_test

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/metinatakli/seat-reservation-system/internal/coordination"
	"github.com/metinatakli/seat-reservation-system/internal/domain"
	"github.com/metinatakli/seat-reservation-system/internal/events"
	"github.com/metinatakli/seat-reservation-system/internal/lock"
	"github.com/metinatakli/seat-reservation-system/internal/seating"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// seatStore is an in-memory SeatRepository that copies records in and out like a database would.
type seatStore struct {
	mu       sync.Mutex
	seats    map[domain.SeatRef]domain.ShowingSeat
	catalog  map[int64][]domain.ShowingSeat
	stranded []domain.StrandedSeat
	updates  int
}

func newSeatStore(seats ...domain.ShowingSeat) *seatStore {
	store := &seatStore{
		seats:   make(map[domain.SeatRef]domain.ShowingSeat),
		catalog: make(map[int64][]domain.ShowingSeat),
	}

	for _, seat := range seats {
		store.seats[domain.SeatRef{ShowingID: seat.ShowingID, SeatID: seat.SeatID}] = seat
	}

	return store
}

func (s *seatStore) Get(_ context.Context, showingID, seatID int64) (*domain.ShowingSeat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seat, ok := s.seats[domain.SeatRef{ShowingID: showingID, SeatID: seatID}]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}

	return &seat, nil
}

func (s *seatStore) ListByShowing(_ context.Context, showingID int64) ([]domain.ShowingSeat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seats := make([]domain.ShowingSeat, 0)
	for ref, seat := range s.seats {
		if ref.ShowingID == showingID {
			seats = append(seats, seat)
		}
	}

	sort.Slice(seats, func(i, j int) bool { return seats[i].SeatID < seats[j].SeatID })

	return seats, nil
}

func (s *seatStore) Update(_ context.Context, seat *domain.ShowingSeat) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seats[domain.SeatRef{ShowingID: seat.ShowingID, SeatID: seat.SeatID}] = *seat
	s.updates++

	return nil
}

func (s *seatStore) CreateForShowing(_ context.Context, showingID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var created int64
	for _, seat := range s.catalog[showingID] {
		ref := domain.SeatRef{ShowingID: showingID, SeatID: seat.SeatID}
		if _, ok := s.seats[ref]; ok {
			continue
		}

		s.seats[ref] = seat
		created++
	}

	return created, nil
}

func (s *seatStore) FindExpiredHolds(_ context.Context, now time.Time) ([]domain.ExpiredHold, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expired []domain.ExpiredHold
	for ref, seat := range s.seats {
		if seat.Status == domain.SeatHold && seat.HoldExpiresAt != nil && !seat.HoldExpiresAt.After(now) {
			expired = append(expired, domain.ExpiredHold{SeatRef: ref, HoldToken: *seat.HoldToken})
		}
	}

	return expired, nil
}

func (s *seatStore) ListLiveHolds(_ context.Context, now time.Time) ([]domain.LiveHold, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var live []domain.LiveHold
	for ref, seat := range s.seats {
		if seat.Status == domain.SeatHold && seat.HoldExpiresAt != nil && seat.HoldExpiresAt.After(now) {
			live = append(live, domain.LiveHold{
				SeatRef:   ref,
				HoldToken: *seat.HoldToken,
				PartyID:   *seat.HoldPartyID,
				ExpiresAt: *seat.HoldExpiresAt,
			})
		}
	}

	sort.Slice(live, func(i, j int) bool { return live[i].SeatID < live[j].SeatID })

	return live, nil
}

func (s *seatStore) ReleaseExpiredHolds(_ context.Context, now time.Time) ([]domain.SeatRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var released []domain.SeatRef
	for ref, seat := range s.seats {
		if seat.Status == domain.SeatHold && seat.HoldExpiresAt != nil && !seat.HoldExpiresAt.After(now) {
			seat.Release()
			s.seats[ref] = seat
			released = append(released, ref)
		}
	}

	return released, nil
}

func (s *seatStore) FindStranded(context.Context) ([]domain.StrandedSeat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.stranded, nil
}

func (s *seatStore) seat(showingID, seatID int64) domain.ShowingSeat {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.seats[domain.SeatRef{ShowingID: showingID, SeatID: seatID}]
}

type showingStore map[int64]*domain.Showing

func (s showingStore) GetByID(_ context.Context, id int64) (*domain.Showing, error) {
	showing, ok := s[id]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}

	return showing, nil
}

func scheduledShowing(id int64) *domain.Showing {
	return &domain.Showing{
		ID:         id,
		ScreenID:   1,
		MovieTitle: "Arrival",
		StartTime:  time.Now().Add(24 * time.Hour),
		Status:     domain.ShowingScheduled,
	}
}

func availableSeat(showingID, seatID int64, seatType domain.SeatType) domain.ShowingSeat {
	return domain.ShowingSeat{
		ShowingID: showingID,
		SeatID:    seatID,
		RowLabel:  "A",
		SeatNo:    int(seatID),
		Type:      seatType,
		Status:    domain.SeatAvailable,
	}
}

type harness struct {
	seats    *seatStore
	showings showingStore
	store    *coordination.MemoryStore
	hub      *events.Hub
	query    *seating.QueryService
	commands *seating.CommandService
}

func newHarness(seats *seatStore, showings showingStore) *harness {
	logger := discardLogger()
	store := coordination.NewMemoryStore()
	hub := events.NewHub(logger)
	cfg := seating.DefaultConfig()

	query := seating.NewQueryService(seats, showings, store, cfg.LayoutCacheTTL, logger)
	commands := seating.NewCommandService(
		seats,
		showings,
		store,
		lock.NewManager(store, lock.DefaultLease, logger),
		query,
		hub,
		cfg,
		logger,
	)

	return &harness{
		seats:    seats,
		showings: showings,
		store:    store,
		hub:      hub,
		query:    query,
		commands: commands,
	}
}
