package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pribylovaa/flexibill/internal/models"
)

// Incidents — журнал инцидентов в памяти; используется, когда MongoDB не настроена.
type Incidents struct {
	mu    sync.Mutex
	items []models.SecurityIncident
}

// NewIncidents создаёт пустой журнал.
func NewIncidents() *Incidents {
	return &Incidents{}
}

// Record добавляет инцидент. Пустые ID и CreatedAt заполняются.
func (in *Incidents) Record(_ context.Context, incident models.SecurityIncident) error {
	if incident.ID == uuid.Nil {
		incident.ID = uuid.New()
	}
	if incident.CreatedAt.IsZero() {
		incident.CreatedAt = time.Now().UTC()
	}

	in.mu.Lock()
	in.items = append(in.items, incident)
	in.mu.Unlock()

	return nil
}

// Since возвращает инциденты начиная с since, новые первыми; limit <= 0 — 100.
func (in *Incidents) Since(_ context.Context, since time.Time, limit int) ([]models.SecurityIncident, error) {
	if limit <= 0 {
		limit = 100
	}

	in.mu.Lock()
	out := make([]models.SecurityIncident, 0, len(in.items))
	for _, it := range in.items {
		if !it.CreatedAt.Before(since) {
			out = append(out, it)
		}
	}
	in.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}
