package directory

import (
	"context"
	"sort"
	"sync"
	"time"

	"switchyard/internal/notify"
	apperrors "switchyard/pkg/errors"
	"switchyard/pkg/metrics"
	"switchyard/pkg/models"
)

// Filter narrows DiscoverServices. Zero fields match everything.
type Filter struct {
	Status    models.ServiceStatus
	EventType string
}

type Directory interface {
	// GetService returns nil, nil when id is unknown.
	GetService(ctx context.Context, id string) (*models.Service, error)
	DiscoverServices(ctx context.Context, f Filter) ([]models.Service, error)
}

// Registry is the in-memory directory. Every change is published as ServiceRegistered or
// ServiceUnregistered with the models.DirectoryChange as detail.
type Registry struct {
	mu       sync.RWMutex
	services map[string]models.Service
	notifier notify.Publisher
	now      func() time.Time
}

func NewRegistry(notifier notify.Publisher) *Registry {
	if notifier == nil {
		notifier = notify.Discard
	}
	return &Registry{
		services: make(map[string]models.Service),
		notifier: notifier,
		now:      time.Now,
	}
}

func (r *Registry) Register(ctx context.Context, svc models.Service) error {
	return r.Apply(ctx, models.DirectoryChange{Action: models.DirectoryActionRegister, Service: svc})
}

func (r *Registry) Unregister(ctx context.Context, id string) error {
	return r.Apply(ctx, models.DirectoryChange{Action: models.DirectoryActionUnregister, Service: models.Service{ID: id}})
}

// Apply records one directory change. Register and update are upserts; unregistering an
// unknown service is a NotFound error.
func (r *Registry) Apply(_ context.Context, change models.DirectoryChange) error {
	if change.Service.ID == "" {
		return apperrors.ErrValidation.WithMessage("service id is required")
	}
	if change.Timestamp.IsZero() {
		change.Timestamp = r.now().UTC()
	}

	var kind notify.Kind

	r.mu.Lock()
	switch change.Action {
	case models.DirectoryActionRegister, models.DirectoryActionUpdate:
		svc := change.Service
		if svc.Status == "" {
			svc.Status = models.ServiceStatusHealthy
		}
		if svc.UpdatedAt.IsZero() {
			svc.UpdatedAt = change.Timestamp
		}
		r.services[svc.ID] = svc
		change.Service = svc
		kind = notify.KindServiceRegistered
	case models.DirectoryActionUnregister:
		svc, ok := r.services[change.Service.ID]
		if !ok {
			r.mu.Unlock()
			return apperrors.ErrNotFound.WithMessagef("service %s not found", change.Service.ID)
		}
		delete(r.services, svc.ID)
		change.Service = svc
		kind = notify.KindServiceUnregistered
	default:
		r.mu.Unlock()
		return apperrors.ErrValidation.WithMessagef("unknown directory action %q", change.Action)
	}
	r.updateGauges()
	r.mu.Unlock()

	r.notifier.Publish(notify.Notification{Kind: kind, Subject: change.Service.ID, Detail: change})
	return nil
}

func (r *Registry) GetService(_ context.Context, id string) (*models.Service, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	svc, ok := r.services[id]
	if !ok {
		return nil, nil
	}
	return &svc, nil
}

func (r *Registry) DiscoverServices(_ context.Context, f Filter) ([]models.Service, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Service, 0, len(r.services))
	for _, svc := range r.services {
		if f.Status != "" && svc.Status != f.Status {
			continue
		}
		if f.EventType != "" && !svc.Subscribes(f.EventType) {
			continue
		}
		out = append(out, svc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Snapshot returns every known service ordered by id.
func (r *Registry) Snapshot() []models.Service {
	services, _ := r.DiscoverServices(context.Background(), Filter{})
	return services
}

// updateGauges must be called with r.mu held.
func (r *Registry) updateGauges() {
	counts := map[models.ServiceStatus]int{
		models.ServiceStatusHealthy:   0,
		models.ServiceStatusDegraded:  0,
		models.ServiceStatusUnhealthy: 0,
	}
	for _, svc := range r.services {
		counts[svc.Status]++
	}
	for status, n := range counts {
		metrics.DirectoryServices.WithLabelValues(string(status)).Set(float64(n))
	}
}
