package services

import (
	"context"
	"sort"
	"sync"

	"mydayplanner/model"
	"mydayplanner/repository"
)

type memTaskStore struct {
	mu    sync.Mutex
	tasks map[string]model.Tasks
	saves int
}

func newMemTaskStore(tasks ...model.Tasks) *memTaskStore {
	s := &memTaskStore{tasks: make(map[string]model.Tasks)}
	for _, t := range tasks {
		s.tasks[t.TaskID] = t
	}
	return s
}

func (s *memTaskStore) get(taskID string) (model.Tasks, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskID]
	return t, ok
}

func (s *memTaskStore) GetTask(ctx context.Context, userID, taskID string) (*model.Tasks, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskID]
	if !ok || t.UserID != userID {
		return nil, repository.ErrNotFound
	}
	return &t, nil
}

func (s *memTaskStore) ListTasks(ctx context.Context, userID string) ([]model.Tasks, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Tasks
	for _, t := range s.tasks {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate < out[j].DueDate })
	return out, nil
}

func (s *memTaskStore) SaveTask(ctx context.Context, task *model.Tasks) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.TaskID] = *task
	s.saves++
	return nil
}

func (s *memTaskStore) DeleteTask(ctx context.Context, userID, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskID]
	if !ok || t.UserID != userID {
		return repository.ErrNotFound
	}
	delete(s.tasks, taskID)
	return nil
}

func (s *memTaskStore) SetTaskMirror(ctx context.Context, userID, taskID, eventID, calendarID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskID]
	if !ok || t.UserID != userID {
		return repository.ErrNotFound
	}
	t.SetMirror(eventID, calendarID)
	t.SyncPending = false
	s.tasks[taskID] = t
	return nil
}

func (s *memTaskStore) MarkSyncPending(ctx context.Context, userID, taskID string, pending bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskID]
	if !ok || t.UserID != userID {
		return repository.ErrNotFound
	}
	t.SyncPending = pending
	s.tasks[taskID] = t
	return nil
}

func (s *memTaskStore) ListSyncPending(ctx context.Context, limit int) ([]model.Tasks, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Tasks
	for _, t := range s.tasks {
		if t.SyncPending {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TaskID < out[j].TaskID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memIntegrationStore struct {
	mu      sync.Mutex
	records map[string]model.Integration
	saves   int
	saveErr error
}

func newMemIntegrationStore(records ...model.Integration) *memIntegrationStore {
	s := &memIntegrationStore{records: make(map[string]model.Integration)}
	for _, r := range records {
		s.records[r.UserID+"/"+string(r.Provider)] = r
	}
	return s
}

func (s *memIntegrationStore) GetIntegration(ctx context.Context, userID string, provider model.Provider) (*model.Integration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[userID+"/"+string(provider)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &r, nil
}

func (s *memIntegrationStore) SaveIntegration(ctx context.Context, integration *model.Integration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.records[integration.UserID+"/"+string(integration.Provider)] = *integration
	s.saves++
	return nil
}

func (s *memIntegrationStore) SaveRefreshedToken(ctx context.Context, integration *model.Integration, previousRefreshToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	key := integration.UserID + "/" + string(integration.Provider)
	current, ok := s.records[key]
	if !ok || !current.Connected || current.RefreshToken != previousRefreshToken {
		return repository.ErrConflict
	}
	current.AccessToken = integration.AccessToken
	current.RefreshToken = integration.RefreshToken
	current.TokenExpiresAt = integration.TokenExpiresAt
	current.UpdatedAt = integration.UpdatedAt
	s.records[key] = current
	s.saves++
	return nil
}

func (s *memIntegrationStore) stored(userID string) model.Integration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[userID+"/"+string(model.ProviderGoogle)]
}

type memSettingStore struct {
	mu       sync.Mutex
	settings map[string]model.CalendarSetting
}

func newMemSettingStore() *memSettingStore {
	return &memSettingStore{settings: make(map[string]model.CalendarSetting)}
}

func (s *memSettingStore) UpsertCalendarSetting(ctx context.Context, setting *model.CalendarSetting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[setting.UserID+"/"+setting.CalendarID] = *setting
	return nil
}

func (s *memSettingStore) ListCalendarSettings(ctx context.Context, userID string) ([]model.CalendarSetting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.CalendarSetting
	for _, st := range s.settings {
		if st.UserID == userID {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CalendarID < out[j].CalendarID })
	return out, nil
}

// MockGateway records calls; unset funcs succeed.
type MockGateway struct {
	mu    sync.Mutex
	calls []string

	ListCalendarsFunc func(ctx context.Context, token string) ([]model.Calendar, error)
	CreateEventFunc   func(ctx context.Context, token, calendarID string, in EventInput) (string, error)
	UpdateEventFunc   func(ctx context.Context, token, calendarID, eventID string, in EventInput) (string, error)
	DeleteEventFunc   func(ctx context.Context, token, calendarID, eventID string) error
	RevokeTokenFunc   func(ctx context.Context, token string) error
}

func (m *MockGateway) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

func (m *MockGateway) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *MockGateway) ListCalendars(ctx context.Context, token string) ([]model.Calendar, error) {
	m.record("list")
	if m.ListCalendarsFunc != nil {
		return m.ListCalendarsFunc(ctx, token)
	}
	return nil, nil
}

func (m *MockGateway) CreateEvent(ctx context.Context, token, calendarID string, in EventInput) (string, error) {
	m.record("create:" + calendarID)
	if m.CreateEventFunc != nil {
		return m.CreateEventFunc(ctx, token, calendarID, in)
	}
	return "event-1", nil
}

func (m *MockGateway) UpdateEvent(ctx context.Context, token, calendarID, eventID string, in EventInput) (string, error) {
	m.record("update:" + calendarID + "/" + eventID)
	if m.UpdateEventFunc != nil {
		return m.UpdateEventFunc(ctx, token, calendarID, eventID, in)
	}
	return eventID, nil
}

func (m *MockGateway) DeleteEvent(ctx context.Context, token, calendarID, eventID string) error {
	m.record("delete:" + calendarID + "/" + eventID)
	if m.DeleteEventFunc != nil {
		return m.DeleteEventFunc(ctx, token, calendarID, eventID)
	}
	return nil
}

func (m *MockGateway) RevokeToken(ctx context.Context, token string) error {
	m.record("revoke:" + token)
	if m.RevokeTokenFunc != nil {
		return m.RevokeTokenFunc(ctx, token)
	}
	return nil
}

// MockTokens hands out the stored access token unless EnsureFunc overrides it.
type MockTokens struct {
	EnsureFunc func(ctx context.Context, integration *model.Integration) (TokenResult, error)
}

func (m *MockTokens) EnsureValidToken(ctx context.Context, integration *model.Integration) (TokenResult, error) {
	if m.EnsureFunc != nil {
		return m.EnsureFunc(ctx, integration)
	}
	if integration == nil || !integration.Connected {
		return TokenResult{}, ErrAuthExpired
	}
	return TokenResult{AccessToken: integration.AccessToken}, nil
}

func connectedIntegration(userID string) model.Integration {
	return model.Integration{
		UserID:       userID,
		Provider:     model.ProviderGoogle,
		AccessToken:  "access-" + userID,
		RefreshToken: "refresh-" + userID,
		Connected:    true,
	}
}
