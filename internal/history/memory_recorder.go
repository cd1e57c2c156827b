package history

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRecorder keeps records in process. FailNext makes the next
// RecordCompletion call return the given error.
type MemoryRecorder struct {
	mu       sync.Mutex
	byAppt   map[uuid.UUID]Record
	failNext error
	calls    int
}

func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{byAppt: make(map[uuid.UUID]Record)}
}

func (m *MemoryRecorder) FailNext(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = err
}

// Calls reports how many times RecordCompletion was invoked.
func (m *MemoryRecorder) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MemoryRecorder) RecordCompletion(_ context.Context, rec Record) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.failNext != nil {
		err := m.failNext
		m.failNext = nil
		return nil, err
	}

	if existing, ok := m.byAppt[rec.AppointmentID]; ok {
		rec.ID = existing.ID
		rec.CreatedAt = existing.CreatedAt
	} else {
		if rec.ID == uuid.Nil {
			rec.ID = uuid.New()
		}
		rec.CreatedAt = time.Now()
	}
	if rec.VisitDate.IsZero() {
		rec.VisitDate = rec.CreatedAt
	}
	m.byAppt[rec.AppointmentID] = rec
	return &rec, nil
}

func (m *MemoryRecorder) GetByAppointment(_ context.Context, appointmentID uuid.UUID) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.byAppt[appointmentID]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return &rec, nil
}

func (m *MemoryRecorder) ListByPet(_ context.Context, petID uuid.UUID) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []Record
	for _, rec := range m.byAppt {
		if rec.PetID == petID {
			result = append(result, rec)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].VisitDate.After(result[j].VisitDate)
	})
	return result, nil
}
