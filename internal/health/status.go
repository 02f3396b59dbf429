package health

import (
	"encoding/json"
	"time"
)

// ProviderState is the verdict for a single provider.
type ProviderState string

const (
	Online  ProviderState = "online"
	Offline ProviderState = "offline"
)

// SystemVerdict is the aggregate verdict across all providers.
type SystemVerdict string

const (
	StatusOnline   SystemVerdict = "ONLINE"
	StatusDegraded SystemVerdict = "DEGRADED"
	StatusOffline  SystemVerdict = "OFFLINE"
)

// ProviderStatus is the probe result of one provider.
type ProviderStatus struct {
	LastCheck    time.Time     // When the probe was issued
	ProviderID   string        // Registration id
	ProviderName string        // Registration display name
	Status       ProviderState // Online or Offline
	Error        string        // Probe failure, empty when online
	ResponseTime time.Duration // Elapsed probe time, floored
}

// MarshalJSON reports ResponseTime in whole milliseconds.
func (p ProviderStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		LastCheck    time.Time     `json:"lastCheck"`
		ProviderID   string        `json:"providerId"`
		ProviderName string        `json:"providerName"`
		Status       ProviderState `json:"status"`
		Error        string        `json:"error,omitempty"`
		ResponseTime int64         `json:"responseTime"`
	}{
		LastCheck:    p.LastCheck,
		ProviderID:   p.ProviderID,
		ProviderName: p.ProviderName,
		Status:       p.Status,
		Error:        p.Error,
		ResponseTime: p.ResponseTime.Milliseconds(),
	})
}

// SystemStatus is one health snapshot of the whole provider set.
type SystemStatus struct {
	CheckedAt   time.Time        `json:"checkedAt"`
	Status      SystemVerdict    `json:"status"`
	Providers   []ProviderStatus `json:"providers"`
	ActiveCount int              `json:"activeCount"`
	TotalCount  int              `json:"totalCount"`
}

// Available reports whether the system can serve quotes at all.
func (s SystemStatus) Available() bool {
	return s.Status != StatusOffline
}

// Verdict derives the system verdict from the number of online providers.
// A total of zero is OFFLINE.
func Verdict(active, total int) SystemVerdict {
	switch {
	case active <= 0:
		return StatusOffline
	case active >= total:
		return StatusOnline
	default:
		return StatusDegraded
	}
}
