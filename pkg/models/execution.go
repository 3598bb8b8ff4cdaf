package models

import "time"

type PlanState string

const (
	PlanPending   PlanState = "Pending"
	PlanReleased  PlanState = "Released"
	PlanNoRelease PlanState = "NoRelease"
	PlanFailed    PlanState = "Failed"
)

// DescriptorRecord is a stored, named revision of a descriptor.
type DescriptorRecord struct {
	UID        string     `json:"uid"`
	Name       string     `json:"name"`
	Revision   int        `json:"revision"`
	Descriptor Descriptor `json:"descriptor"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// PlanRecord is the persisted outcome of a dry-run release plan.
type PlanRecord struct {
	ID             string    `json:"id"`
	DescriptorName string    `json:"descriptorName"`
	Revision       int       `json:"revision"`
	Branch         string    `json:"branch"`
	State          PlanState `json:"state"`
	LastVersion    string    `json:"lastVersion,omitempty"`
	NextVersion    string    `json:"nextVersion,omitempty"`
	GitTag         string    `json:"gitTag,omitempty"`
	Magnitude      Magnitude `json:"magnitude"`
	Notes          string    `json:"notes,omitempty"`
	CommitCount    int       `json:"commitCount"`
	Error          string    `json:"error,omitempty"`
	Logs           []PlanLog `json:"logs,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

type PlanLog struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Commit    int       `json:"commit"`
}
