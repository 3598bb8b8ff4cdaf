package store

import (
	"errors"

	"github.com/Promptonauts/releasepipe/pkg/models"
)

var ErrNotFound = errors.New("not found")

type Store interface {
	PutDescriptor(rec *models.DescriptorRecord) error
	GetDescriptor(name string) (*models.DescriptorRecord, error)
	ListDescriptors() ([]*models.DescriptorRecord, error)
	DeleteDescriptor(name string) error

	CreatePlan(plan *models.PlanRecord) error
	GetPlan(id string) (*models.PlanRecord, error)
	ListPlans(descriptorName string, limit int) ([]*models.PlanRecord, error)
	AppendPlanLog(id string, log models.PlanLog) error
	GetPlanLogs(id string) ([]models.PlanLog, error)

	Watch() <-chan DescriptorEvent

	Migrate() error
	Close() error
}

type EventType string

const (
	EventCreated EventType = "CREATED"
	EventUpdated EventType = "UPDATED"
	EventDeleted EventType = "DELETED"
)

type DescriptorEvent struct {
	Type       EventType
	Descriptor *models.DescriptorRecord
}
