package engine

import (
	"context"
	"database/sql"
	"time"

	"github.com/dealerflow/dealerflow/pkg/dealerflow/domain"
	"github.com/dealerflow/dealerflow/pkg/dealerflow/models"
)

// The engine talks to storage through these interfaces so tests can swap in
// function-field mocks without a database.

type WorkflowRepo interface {
	FindByID(tenantID string, id int64) (*domain.Workflow, error)
	FindEnabledByTenantAndTrigger(tenantID string, triggerKind string) (*[]domain.Workflow, error)
	MarkExecuted(id int64) error
}

type ExecutionRepo interface {
	Save(ex *domain.WorkflowExecution) error
	FindByID(tenantID string, id string) (*domain.WorkflowExecution, error)
	GetByID(id string) (*domain.WorkflowExecution, error)
	UpdateStatusGuarded(id string, from string, to string) (bool, error)
	SetFinalized(id string, status string, failureReason sql.NullString) (bool, error)
	InsertActionResult(action *domain.ExecutionAction) error
	FindActionsByExecutionID(executionID string) (*[]domain.ExecutionAction, error)
}

type ContinuationRepo interface {
	Save(c *domain.Continuation) (int64, error)
	FindDue(batchSize int) (*[]domain.Continuation, error)
	Claim(c *domain.Continuation, engineID int64) (bool, error)
	Unclaim(id int64) error
	FindStuck(olderThanMinutes int) (*[]domain.Continuation, error)
	DeleteByID(id int64) error
}

type EngineRepo interface {
	Save(e *domain.EngineInstance) (int64, error)
	UpdateLastActive(id int64) error
	DeleteByID(id int64) error
}

type UserRepo interface {
	Save(u *domain.User) (int64, error)
	FindByUsername(username string) (*domain.User, error)
	FindByID(id int64) (*domain.User, error)
	FindBySessionID(sessionID string, now time.Time) (*domain.User, error)
	FindByApiKey(apiKey string) (*domain.User, error)
	UpdateSession(id int64, sessionID string, expiry sql.NullTime) error
	ClearSessionBySessionID(sessionID string) error
	FindAll() (*[]domain.User, error)
	DeleteByID(id int64) error
	CountUsers() (int64, error)
}

// RecordStore is the mutation surface workflow actions have over dealership
// records.
type RecordStore interface {
	UpdateStatus(tenantID string, id string, status string) error
	AssignUser(tenantID string, id string, userID string) error
	UpdateScore(tenantID string, id string, delta int) error
	AddTag(tenantID string, id string, tag string) error
	CreateTask(task *domain.Task) (int64, error)
}

// MessagingGateway delivers outbound notifications. The channel names the
// transport (email, whatsapp, sms, notify, custom); the gateway decides how
// it leaves the building.
type MessagingGateway interface {
	Publish(ctx context.Context, channel string, message *models.OutboundMessage) error
}

// WorkflowTrigger starts another workflow from inside a running one. The
// scheduler implements it; handlers depend on this narrow view to avoid a
// construction cycle.
type WorkflowTrigger interface {
	TriggerWorkflow(ctx context.Context, tenantID string, workflowID int64, data *domain.TriggerData) error
}
