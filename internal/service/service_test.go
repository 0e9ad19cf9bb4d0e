package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"agent-scheduler/internal/agent"
	"agent-scheduler/internal/model"
	"agent-scheduler/internal/repository"
)

// newTestDB opens a per-test in-memory SQLite database with migrations
// applied. The name keeps parallel tests from sharing state.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := repository.NewDB(dsn)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	return db
}

// fakeRunner lets a test script the agent pipeline.
type fakeRunner struct {
	run func(ctx context.Context, ag model.Agent, input agent.Input) (agent.Output, error)
}

func (r *fakeRunner) Run(ctx context.Context, ag model.Agent, input agent.Input) (agent.Output, error) {
	if r.run != nil {
		return r.run(ctx, ag, input)
	}
	return agent.NewStubRunner().Run(ctx, ag, input)
}

// fakeNotifier records deliveries and can be told to fail.
type fakeNotifier struct {
	mu      sync.Mutex
	calls   []notifyCall
	sendErr error
}

type notifyCall struct {
	UserID  uint
	Title   string
	Message string
}

func (n *fakeNotifier) Notify(ctx context.Context, userID uint, title, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, notifyCall{UserID: userID, Title: title, Message: message})
	return n.sendErr
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

type testEnv struct {
	db       *gorm.DB
	taskRepo *repository.TaskRepository
	toolRepo *repository.ToolRepository
	notifier *fakeNotifier
	runner   *fakeRunner
	executor *ExecutorService
	svc      *TaskService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)
	taskRepo := repository.NewTaskRepository(db)
	toolRepo := repository.NewToolRepository(db)
	agentRepo := repository.NewAgentRepository(db)
	notifier := &fakeNotifier{}
	runner := &fakeRunner{}
	resolver := NewToolResolver(toolRepo)
	log := zerolog.Nop()
	executor := NewExecutorService(taskRepo, agentRepo, resolver, runner, notifier, ExecutorConfig{
		Workers:   1,
		QueueSize: 8,
	}, log)
	svc := NewTaskService(taskRepo, toolRepo, executor, log)
	return &testEnv{
		db:       db,
		taskRepo: taskRepo,
		toolRepo: toolRepo,
		notifier: notifier,
		runner:   runner,
		executor: executor,
		svc:      svc,
	}
}

var seedTelegramID int64 = 1000

func seedUser(t *testing.T, db *gorm.DB, admin bool) *model.User {
	t.Helper()
	seedTelegramID++
	user := model.User{TelegramID: seedTelegramID, IsAdmin: admin}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return &user
}

func seedAgent(t *testing.T, db *gorm.DB, name string) *model.Agent {
	t.Helper()
	ag := model.Agent{Name: name, Model: "gpt-4o-mini", SystemPrompt: "You monitor power data.", Enabled: true}
	if err := db.Create(&ag).Error; err != nil {
		t.Fatalf("seed agent: %v", err)
	}
	return &ag
}

func seedTool(t *testing.T, db *gorm.DB, name string, enabled bool) *model.Tool {
	t.Helper()
	tool := model.Tool{Name: name, Description: name + " tool", Handler: "tools." + name, Enabled: enabled}
	if err := db.Create(&tool).Error; err != nil {
		t.Fatalf("seed tool: %v", err)
	}
	return &tool
}
