package engine

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/dealerflow/dealerflow/pkg/dealerflow/domain"
	"github.com/dealerflow/dealerflow/pkg/dealerflow/models"
)

// testClock is a manually advanced clock for deterministic scheduling tests.
type testClock struct {
	mu      sync.Mutex
	current time.Time
}

func newTestClock(start time.Time) *testClock {
	return &testClock{current: start}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *testClock) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- c.Now()
	return ch
}

func (c *testClock) Sleep(d time.Duration) {}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}

// MockWorkflowRepo implements WorkflowRepo with function fields.
type MockWorkflowRepo struct {
	FindByIDFunc                      func(tenantID string, id int64) (*domain.Workflow, error)
	FindEnabledByTenantAndTriggerFunc func(tenantID string, triggerKind string) (*[]domain.Workflow, error)
	MarkExecutedFunc                  func(id int64) error
}

func (m *MockWorkflowRepo) FindByID(tenantID string, id int64) (*domain.Workflow, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(tenantID, id)
	}
	return nil, nil
}

func (m *MockWorkflowRepo) FindEnabledByTenantAndTrigger(tenantID string, triggerKind string) (*[]domain.Workflow, error) {
	if m.FindEnabledByTenantAndTriggerFunc != nil {
		return m.FindEnabledByTenantAndTriggerFunc(tenantID, triggerKind)
	}
	empty := []domain.Workflow{}
	return &empty, nil
}

func (m *MockWorkflowRepo) MarkExecuted(id int64) error {
	if m.MarkExecutedFunc != nil {
		return m.MarkExecutedFunc(id)
	}
	return nil
}

// memExecutionRepo is an in-memory ExecutionRepo for scheduler tests.
type memExecutionRepo struct {
	mu         sync.Mutex
	executions map[string]*domain.WorkflowExecution
	actions    map[string][]domain.ExecutionAction
}

func newMemExecutionRepo() *memExecutionRepo {
	return &memExecutionRepo{
		executions: map[string]*domain.WorkflowExecution{},
		actions:    map[string][]domain.ExecutionAction{},
	}
}

func (m *memExecutionRepo) Save(ex *domain.WorkflowExecution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *ex
	m.executions[ex.ID] = &cp
	return nil
}

func (m *memExecutionRepo) FindByID(tenantID string, id string) (*domain.WorkflowExecution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ex, ok := m.executions[id]
	if !ok || ex.TenantID != tenantID {
		return nil, nil
	}
	cp := *ex
	return &cp, nil
}

func (m *memExecutionRepo) GetByID(id string) (*domain.WorkflowExecution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ex, ok := m.executions[id]
	if !ok {
		return nil, nil
	}
	cp := *ex
	return &cp, nil
}

func (m *memExecutionRepo) UpdateStatusGuarded(id string, from string, to string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ex, ok := m.executions[id]
	if !ok || ex.Status != from {
		return false, nil
	}
	ex.Status = to
	if to == domain.ExecutionRunning {
		ex.StartedAt = sql.NullTime{Time: time.Now(), Valid: true}
	}
	return true, nil
}

func (m *memExecutionRepo) SetFinalized(id string, status string, failureReason sql.NullString) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ex, ok := m.executions[id]
	if !ok || ex.Status != domain.ExecutionRunning {
		return false, nil
	}
	ex.Status = status
	ex.FailureReason = failureReason
	ex.CompletedAt = sql.NullTime{Time: time.Now(), Valid: true}
	return true, nil
}

func (m *memExecutionRepo) InsertActionResult(action *domain.ExecutionAction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.actions[action.ExecutionID] {
		if existing.ActionIndex == action.ActionIndex {
			return nil
		}
	}
	m.actions[action.ExecutionID] = append(m.actions[action.ExecutionID], *action)
	return nil
}

func (m *memExecutionRepo) FindActionsByExecutionID(executionID string) (*[]domain.ExecutionAction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	actions := append([]domain.ExecutionAction{}, m.actions[executionID]...)
	return &actions, nil
}

// memContinuationRepo is an in-memory ContinuationRepo for scheduler tests.
type memContinuationRepo struct {
	mu            sync.Mutex
	nextID        int64
	continuations map[int64]*domain.Continuation
}

func newMemContinuationRepo() *memContinuationRepo {
	return &memContinuationRepo{continuations: map[int64]*domain.Continuation{}}
}

func (m *memContinuationRepo) Save(c *domain.Continuation) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	c.ID = m.nextID
	cp := *c
	m.continuations[c.ID] = &cp
	return c.ID, nil
}

func (m *memContinuationRepo) FindDue(batchSize int) (*[]domain.Continuation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var due []domain.Continuation
	for _, c := range m.continuations {
		if c.EngineID.Valid {
			continue
		}
		due = append(due, *c)
		if len(due) >= batchSize {
			break
		}
	}
	return &due, nil
}

func (m *memContinuationRepo) Claim(c *domain.Continuation, engineID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.continuations[c.ID]
	if !ok || stored.EngineID.Valid {
		return false, nil
	}
	stored.EngineID = sql.NullInt64{Int64: engineID, Valid: true}
	return true, nil
}

func (m *memContinuationRepo) Unclaim(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.continuations[id]; ok {
		c.EngineID = sql.NullInt64{}
	}
	return nil
}

func (m *memContinuationRepo) FindStuck(olderThanMinutes int) (*[]domain.Continuation, error) {
	empty := []domain.Continuation{}
	return &empty, nil
}

func (m *memContinuationRepo) DeleteByID(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.continuations, id)
	return nil
}

func (m *memContinuationRepo) all() []domain.Continuation {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Continuation
	for _, c := range m.continuations {
		out = append(out, *c)
	}
	return out
}

// MockRecordStore implements RecordStore with function fields.
type MockRecordStore struct {
	UpdateStatusFunc func(tenantID string, id string, status string) error
	AssignUserFunc   func(tenantID string, id string, userID string) error
	UpdateScoreFunc  func(tenantID string, id string, delta int) error
	AddTagFunc       func(tenantID string, id string, tag string) error
	CreateTaskFunc   func(task *domain.Task) (int64, error)
}

func (m *MockRecordStore) UpdateStatus(tenantID string, id string, status string) error {
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(tenantID, id, status)
	}
	return nil
}

func (m *MockRecordStore) AssignUser(tenantID string, id string, userID string) error {
	if m.AssignUserFunc != nil {
		return m.AssignUserFunc(tenantID, id, userID)
	}
	return nil
}

func (m *MockRecordStore) UpdateScore(tenantID string, id string, delta int) error {
	if m.UpdateScoreFunc != nil {
		return m.UpdateScoreFunc(tenantID, id, delta)
	}
	return nil
}

func (m *MockRecordStore) AddTag(tenantID string, id string, tag string) error {
	if m.AddTagFunc != nil {
		return m.AddTagFunc(tenantID, id, tag)
	}
	return nil
}

func (m *MockRecordStore) CreateTask(task *domain.Task) (int64, error) {
	if m.CreateTaskFunc != nil {
		return m.CreateTaskFunc(task)
	}
	return 1, nil
}

// MockGateway records published messages.
type MockGateway struct {
	mu        sync.Mutex
	Published []publishedMessage
	FailWith  error
}

type publishedMessage struct {
	Channel string
	Message *models.OutboundMessage
}

func (m *MockGateway) Publish(ctx context.Context, channel string, message *models.OutboundMessage) error {
	if m.FailWith != nil {
		return m.FailWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Published = append(m.Published, publishedMessage{Channel: channel, Message: message})
	return nil
}

// MockTrigger implements WorkflowTrigger.
type MockTrigger struct {
	TriggerWorkflowFunc func(ctx context.Context, tenantID string, workflowID int64, data *domain.TriggerData) error
	Calls               []int64
}

func (m *MockTrigger) TriggerWorkflow(ctx context.Context, tenantID string, workflowID int64, data *domain.TriggerData) error {
	m.Calls = append(m.Calls, workflowID)
	if m.TriggerWorkflowFunc != nil {
		return m.TriggerWorkflowFunc(ctx, tenantID, workflowID, data)
	}
	return nil
}

func mustActions(actions ...domain.ActionConfig) []domain.ActionConfig {
	if err := domain.DecodeActionPayloads(actions); err != nil {
		panic(fmt.Sprintf("decode test actions: %v", err))
	}
	return actions
}
