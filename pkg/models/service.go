package models

import (
	"strings"
	"time"
)

type ServiceStatus string

const (
	ServiceStatusHealthy   ServiceStatus = "healthy"
	ServiceStatusDegraded  ServiceStatus = "degraded"
	ServiceStatusUnhealthy ServiceStatus = "unhealthy"
)

// Service is a delivery target known to the service directory.
type Service struct {
	ID            string            `json:"id" bson:"_id"`
	Name          string            `json:"name" bson:"name"`
	Status        ServiceStatus     `json:"status" bson:"status"`
	Subscriptions []string          `json:"subscriptions" bson:"subscriptions"`
	Topic         string            `json:"topic,omitempty" bson:"topic,omitempty"`
	Labels        map[string]string `json:"labels,omitempty" bson:"labels,omitempty"`
	UpdatedAt     time.Time         `json:"updated_at" bson:"updated_at"`
}

// Subscribes reports whether the service receives eventType. Subscriptions are exact types,
// "*" for everything, or a "prefix.*" namespace wildcard.
func (s Service) Subscribes(eventType string) bool {
	for _, sub := range s.Subscriptions {
		switch {
		case sub == "*" || sub == eventType:
			return true
		case strings.HasSuffix(sub, ".*"):
			if strings.HasPrefix(eventType, strings.TrimSuffix(sub, "*")) {
				return true
			}
		}
	}
	return false
}

func (s Service) Healthy() bool {
	return s.Status == ServiceStatusHealthy
}

// DirectoryChange is published on the directory topic whenever a service appears, changes
// health or goes away.
type DirectoryChange struct {
	Action    string    `json:"action"`
	Service   Service   `json:"service"`
	Timestamp time.Time `json:"timestamp"`
	ChangedBy string    `json:"changed_by,omitempty"`
}

const (
	DirectoryActionRegister   = "register"
	DirectoryActionUpdate     = "update"
	DirectoryActionUnregister = "unregister"
)
