package registry

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/TSGCFO/langchain-agent/agent"
	"github.com/TSGCFO/langchain-agent/bus"
	"github.com/TSGCFO/langchain-agent/core"
	"github.com/TSGCFO/langchain-agent/model"
	"github.com/TSGCFO/langchain-agent/retriever"
	"github.com/TSGCFO/langchain-agent/tool"
)

// MockAgent is a core.Agent whose lifecycle calls are scripted.
type MockAgent struct {
	mock.Mock
	id   string
	role core.Role
	caps []string
}

func (m *MockAgent) ID() string { return m.id }
func (m *MockAgent) Name() string { return m.id }
func (m *MockAgent) Description() string { return "mock" }
func (m *MockAgent) Role() core.Role { return m.role }
func (m *MockAgent) Capabilities() []string { return m.caps }
func (m *MockAgent) SubscribedTypes() []core.MessageType { return nil }
func (m *MockAgent) State() core.LifecycleState { return core.StateActive }
func (m *MockAgent) HandleMessage(context.Context, core.Message) error { return nil }

func (m *MockAgent) Initialize(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockAgent) Shutdown(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func newBus(t *testing.T) *bus.MessageBus {
	t.Helper()
	b := bus.New()
	require.NoError(t, b.Initialize(context.Background()))
	return b
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	ctx := context.Background()
	b := newBus(t)
	r := New(b)

	worker := agent.NewTaskAgent("worker", model.NewMockModel("m"), tool.NewRegistry(), b, func(o *agent.TaskAgentOptions) {
		o.ID = "worker"
		o.Capabilities = []string{"math", "time"}
	})
	rag := agent.NewRAGAgent("librarian", model.NewMockModel("m"), retriever.NewInMemory(), b, func(o *agent.RAGAgentOptions) {
		o.ID = "librarian"
	})

	require.NoError(t, r.Register(ctx, worker))
	require.NoError(t, r.Register(ctx, rag))
	assert.Equal(t, core.StateActive, worker.State())
	assert.Equal(t, 2, r.Len())

	got, ok := r.Get("worker")
	require.True(t, ok)
	assert.Same(t, worker, got)

	assert.Equal(t, []core.Agent{worker}, r.ByCapability("math"))
	assert.Empty(t, r.ByCapability("poetry"))

	a, err := r.ForTask("anything")
	require.NoError(t, err)
	assert.Equal(t, "worker", a.ID())

	a, err = r.ForQuery("anything")
	require.NoError(t, err)
	assert.Equal(t, "librarian", a.ID())

	infos := r.List()
	require.Len(t, infos, 2)
	assert.Equal(t, "worker", infos[0].ID)
	assert.Equal(t, core.RoleRetrieval, infos[1].Role)
	assert.Equal(t, "active", infos[1].State)
}

func TestRegistry_DuplicateID(t *testing.T) {
	ctx := context.Background()
	r := New(newBus(t))

	first := &MockAgent{id: "a", role: core.RoleTask}
	first.On("Initialize", mock.Anything).Return(nil).Once()
	require.NoError(t, r.Register(ctx, first))

	second := &MockAgent{id: "a", role: core.RoleTask}
	err := r.Register(ctx, second)
	assert.ErrorIs(t, err, core.ErrDuplicateID)
	second.AssertNotCalled(t, "Initialize", mock.Anything)
}

func TestRegistry_ConcurrentRegistrationOfOneID(t *testing.T) {
	ctx := context.Background()
	r := New(newBus(t))

	var inits atomic.Int32
	const n = 8
	var wg sync.WaitGroup
	results := make([]error, n)
	for i := 0; i < n; i++ {
		a := &MockAgent{id: "same", role: core.RoleTask}
		a.On("Initialize", mock.Anything).Run(func(mock.Arguments) {
			inits.Add(1)
			time.Sleep(10 * time.Millisecond)
		}).Return(nil).Maybe()
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = r.Register(ctx, a)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, core.ErrDuplicateID)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, int32(1), inits.Load())
}

func TestRegistry_InitializeFailureReleasesID(t *testing.T) {
	ctx := context.Background()
	r := New(newBus(t))

	broken := &MockAgent{id: "a"}
	broken.On("Initialize", mock.Anything).Return(errors.New("boom"))
	require.Error(t, r.Register(ctx, broken))
	assert.Equal(t, 0, r.Len())

	fixed := &MockAgent{id: "a"}
	fixed.On("Initialize", mock.Anything).Return(nil)
	require.NoError(t, r.Register(ctx, fixed))
}

func TestRegistry_Unregister(t *testing.T) {
	ctx := context.Background()
	r := New(newBus(t))

	a := &MockAgent{id: "a", role: core.RoleTask}
	a.On("Initialize", mock.Anything).Return(nil)
	a.On("Shutdown", mock.Anything).Return(nil).Once()
	require.NoError(t, r.Register(ctx, a))

	require.NoError(t, r.Unregister(ctx, "a"))
	a.AssertExpectations(t)
	_, ok := r.Get("a")
	assert.False(t, ok)

	err := r.Unregister(ctx, "a")
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = r.ForTask("x")
	assert.ErrorIs(t, err, core.ErrNoAgentsAvailable)
}

func TestRegistry_NoAgentsAvailable(t *testing.T) {
	r := New(newBus(t))
	_, err := r.ForTask("x")
	assert.ErrorIs(t, err, core.ErrNoAgentsAvailable)
	_, err = r.ForQuery("x")
	assert.ErrorIs(t, err, core.ErrNoAgentsAvailable)
}

func TestRegistry_Shutdown(t *testing.T) {
	ctx := context.Background()
	b := newBus(t)
	r := New(b)

	var agents []*MockAgent
	for _, id := range []string{"a", "b", "c"} {
		a := &MockAgent{id: id}
		a.On("Initialize", mock.Anything).Return(nil)
		agents = append(agents, a)
		require.NoError(t, r.Register(ctx, a))
	}
	agents[0].On("Shutdown", mock.Anything).Return(nil).Once()
	agents[1].On("Shutdown", mock.Anything).Return(errors.New("stuck")).Once()
	agents[2].On("Shutdown", mock.Anything).Return(nil).Once()

	err := r.Shutdown(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stuck")
	for _, a := range agents {
		a.AssertExpectations(t)
	}
	assert.False(t, b.Ready())
	assert.Equal(t, 0, r.Len())

	require.NoError(t, r.Shutdown(ctx), "second shutdown is a no-op")

	late := &MockAgent{id: "late"}
	err = r.Register(ctx, late)
	assert.ErrorIs(t, err, core.ErrNotReady)
}

func TestRegistry_ShutdownDuringInitialize(t *testing.T) {
	ctx := context.Background()
	r := New(newBus(t))

	entered := make(chan struct{})
	release := make(chan struct{})
	var shutdowns atomic.Int32

	a := &MockAgent{id: "slow", role: core.RoleTask}
	a.On("Initialize", mock.Anything).Run(func(mock.Arguments) {
		close(entered)
		<-release
	}).Return(nil).Once()
	a.On("Shutdown", mock.Anything).Run(func(mock.Arguments) {
		shutdowns.Add(1)
	}).Return(nil).Once()

	errCh := make(chan error, 1)
	go func() { errCh <- r.Register(ctx, a) }()

	<-entered
	require.NoError(t, r.Shutdown(ctx))
	close(release)

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, core.ErrNotReady)
	case <-time.After(5 * time.Second):
		t.Fatal("register did not return")
	}
	// Register returns only after the orphaned agent is shut down.
	assert.Equal(t, int32(1), shutdowns.Load())
	a.AssertExpectations(t)
	assert.Equal(t, 0, r.Len())
	_, ok := r.Get("slow")
	assert.False(t, ok)
}

func TestRegistry_ShutdownDuringInitializeReportsShutdownError(t *testing.T) {
	ctx := context.Background()
	r := New(newBus(t))

	entered := make(chan struct{})
	release := make(chan struct{})
	a := &MockAgent{id: "slow"}
	a.On("Initialize", mock.Anything).Run(func(mock.Arguments) {
		close(entered)
		<-release
	}).Return(nil).Once()
	a.On("Shutdown", mock.Anything).Return(errors.New("stuck")).Once()

	errCh := make(chan error, 1)
	go func() { errCh <- r.Register(ctx, a) }()

	<-entered
	require.NoError(t, r.Shutdown(ctx))
	close(release)

	err := <-errCh
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrNotReady)
	assert.Contains(t, err.Error(), "stuck")
	a.AssertExpectations(t)
}
