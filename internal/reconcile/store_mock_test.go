package reconcile

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tidyhost/turnsync/internal/models"
	"github.com/tidyhost/turnsync/internal/recordstore"
)

// memStore is an in-memory ReservationStore used by the reconciler tests.
// Field patches are applied with the same field names the real repo uses.
type memStore struct {
	mu      sync.Mutex
	records map[string]*models.Reservation
	nextID  int
	writes  int
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]*models.Reservation)}
}

func (s *memStore) seed(r models.Reservation) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := fmt.Sprintf("rec%d", s.nextID)
	r.RecordID = id
	s.records[id] = &r
	return id
}

func (s *memStore) get(id string) models.Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.records[id]
}

func (s *memStore) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func (s *memStore) all() []models.Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Reservation, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, *r)
	}
	return out
}

func (s *memStore) activeWhere(match func(*models.Reservation) bool) []*models.Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Reservation
	for _, r := range s.records {
		if r.Status != models.StatusOld && match(r) {
			copied := *r
			out = append(out, &copied)
		}
	}
	return out
}

func (s *memStore) ActiveByUID(_ context.Context, uid, feedURL string) ([]*models.Reservation, error) {
	return s.activeWhere(func(r *models.Reservation) bool {
		return r.UID == uid && r.FeedURL == feedURL
	}), nil
}

func (s *memStore) ActiveByFeedURL(_ context.Context, feedURL string) ([]*models.Reservation, error) {
	return s.activeWhere(func(r *models.Reservation) bool { return r.FeedURL == feedURL }), nil
}

func (s *memStore) ActiveByProperty(_ context.Context, propertyID string) ([]*models.Reservation, error) {
	return s.activeWhere(func(r *models.Reservation) bool { return r.PropertyID == propertyID }), nil
}

func (s *memStore) ActiveByJobID(_ context.Context, jobID string) (*models.Reservation, error) {
	matches := s.activeWhere(func(r *models.Reservation) bool { return r.ServiceJobID == jobID })
	if len(matches) == 0 {
		return nil, nil
	}
	return matches[0], nil
}

func (s *memStore) ListActive(_ context.Context) ([]*models.Reservation, error) {
	return s.activeWhere(func(*models.Reservation) bool { return true }), nil
}

func (s *memStore) ListWithJobs(_ context.Context) ([]*models.Reservation, error) {
	return s.activeWhere(func(r *models.Reservation) bool { return r.HasLiveJob() }), nil
}

func (s *memStore) Create(_ context.Context, r *models.Reservation) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.writes++
	id := fmt.Sprintf("rec%d", s.nextID)
	copied := *r
	copied.RecordID = id
	s.records[id] = &copied
	return id, nil
}

func (s *memStore) Update(_ context.Context, recordID string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[recordID]
	if !ok {
		return fmt.Errorf("record %s not found", recordID)
	}
	s.writes++

	for name, value := range fields {
		switch name {
		case recordstore.FieldStatus:
			r.Status = models.Status(value.(string))
		case recordstore.FieldServiceJobID:
			r.ServiceJobID = asString(value)
		case recordstore.FieldMissingCount:
			r.MissingCount = value.(int)
		case recordstore.FieldMissingSince:
			r.MissingSince = asTime(value)
		case recordstore.FieldLastSeen:
			r.LastSeen = asTime(value)
		case recordstore.FieldSameDay:
			r.SameDayTurnover = value.(bool)
		case recordstore.FieldOverlapping:
			r.OverlappingDates = value.(bool)
		case recordstore.FieldOwnerArriving:
			r.OwnerArriving = value.(bool)
		case recordstore.FieldLongTermGuest:
			r.LongTermGuest = value.(bool)
		case recordstore.FieldJobStatus:
			r.JobStatus = models.JobStatus(value.(string))
		default:
			return fmt.Errorf("unexpected field %q in update", name)
		}
	}
	return nil
}

func asString(v any) string {
	if v == nil {
		return ""
	}
	return v.(string)
}

func asTime(v any) *time.Time {
	if v == nil {
		return nil
	}
	s := v.(string)
	if strings.TrimSpace(s) == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}
