package services

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/todoapi/internal/common"
	"github.com/dmitrijs2005/todoapi/internal/dbx"
	"github.com/dmitrijs2005/todoapi/internal/logging"
	"github.com/dmitrijs2005/todoapi/internal/server/models"
	"github.com/dmitrijs2005/todoapi/internal/server/repositories/todos"
	"github.com/dmitrijs2005/todoapi/internal/server/repositories/users"
	"github.com/dmitrijs2005/todoapi/internal/server/storage"
)

// --- helpers ---

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

type nopLogger struct{}

func (nopLogger) Debug(context.Context, string, ...any) {}
func (nopLogger) Info(context.Context, string, ...any)  {}
func (nopLogger) Warn(context.Context, string, ...any)  {}
func (nopLogger) Error(context.Context, string, ...any) {}
func (l nopLogger) With(...any) logging.Logger          { return l }

// memUsers is an in-memory users.Repository with the same refresh token
// compare-and-swap semantics as the SQL implementation.
type memUsers struct {
	mu    sync.Mutex
	byID  map[string]*models.User
	fail  error
	swaps int
}

func newMemUsers() *memUsers {
	return &memUsers{byID: map[string]*models.User{}}
}

func (m *memUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	for _, e := range m.byID {
		if e.Email == u.Email || e.Username == u.Username {
			return nil, common.ErrorAlreadyExists
		}
	}
	cp := *u
	m.byID[u.ID] = &cp
	return u, nil
}

func (m *memUsers) profile(u *models.User) *models.User {
	cp := *u
	cp.PasswordHash = ""
	cp.RefreshToken = ""
	return &cp
}

func (m *memUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return m.profile(u), nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == email {
			cp := m.profile(u)
			cp.PasswordHash = u.PasswordHash
			return cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (m *memUsers) ExistsByEmailOrUsername(_ context.Context, email, username string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return false, m.fail
	}
	for _, u := range m.byID {
		if u.Email == email || u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (m *memUsers) UpdateProfile(_ context.Context, id string, upd models.ProfileUpdate) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	for oid, o := range m.byID {
		if oid == id {
			continue
		}
		if (upd.Email != nil && o.Email == *upd.Email) || (upd.Username != nil && o.Username == *upd.Username) {
			return nil, common.ErrorAlreadyExists
		}
	}
	if upd.Email != nil {
		u.Email = *upd.Email
	}
	if upd.Username != nil {
		u.Username = *upd.Username
	}
	if upd.FullName != nil {
		u.FullName = *upd.FullName
	}
	return m.profile(u), nil
}

func (m *memUsers) GetPasswordHash(_ context.Context, id string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return "", common.ErrorNotFound
	}
	return u.PasswordHash, nil
}

func (m *memUsers) UpdatePassword(_ context.Context, id, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (m *memUsers) SetAvatar(_ context.Context, id string, a models.Avatar) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	u, ok := m.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.Avatar = a
	return nil
}

func (m *memUsers) GetRefreshToken(_ context.Context, id string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return "", common.ErrorNotFound
	}
	return u.RefreshToken, nil
}

func (m *memUsers) SetRefreshToken(_ context.Context, id, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	u, ok := m.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.RefreshToken = token
	return nil
}

func (m *memUsers) SwapRefreshToken(_ context.Context, id, old, new string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok || u.RefreshToken != old {
		return false, nil
	}
	u.RefreshToken = new
	m.swaps++
	return true, nil
}

func (m *memUsers) ClearRefreshToken(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.RefreshToken = ""
	return nil
}

func (m *memUsers) stored(id string) models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.byID[id]
}

// memTodos is an in-memory todos.Repository.
type memTodos struct {
	mu      sync.Mutex
	items   map[string]models.Todo
	listErr error
}

func newMemTodos() *memTodos {
	return &memTodos{items: map[string]models.Todo{}}
}

func (m *memTodos) Create(_ context.Context, t *models.Todo) (*models.Todo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[t.ID] = *t
	return t, nil
}

func (m *memTodos) Get(_ context.Context, userID, id string) (*models.Todo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.items[id]
	if !ok || t.UserID != userID {
		return nil, common.ErrorNotFound
	}
	return &t, nil
}

func (m *memTodos) matching(userID string, f models.TodoFilter) []models.Todo {
	var out []models.Todo
	for _, t := range m.items {
		if t.UserID != userID {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if f.Priority != "" && t.Priority != f.Priority {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out
}

func (m *memTodos) List(_ context.Context, userID string, f models.TodoFilter) ([]models.Todo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	all := m.matching(userID, f)
	start := f.Offset()
	if start >= len(all) {
		return []models.Todo{}, nil
	}
	end := start + f.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], nil
}

func (m *memTodos) Count(_ context.Context, userID string, f models.TodoFilter) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.matching(userID, f)), nil
}

func (m *memTodos) Update(_ context.Context, userID, id string, upd models.TodoUpdate) (*models.Todo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.items[id]
	if !ok || t.UserID != userID {
		return nil, common.ErrorNotFound
	}
	if upd.Title != nil {
		t.Title = *upd.Title
	}
	if upd.Description != nil {
		t.Description = *upd.Description
	}
	if upd.DueDate != nil {
		t.DueDate = upd.DueDate
	}
	if upd.Priority != nil {
		t.Priority = *upd.Priority
	}
	if upd.Status != nil {
		t.Status = *upd.Status
	}
	m.items[id] = t
	return &t, nil
}

func (m *memTodos) Delete(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.items[id]
	if !ok || t.UserID != userID {
		return common.ErrorNotFound
	}
	delete(m.items, id)
	return nil
}

type fakeRepoManager struct {
	u users.Repository
	t todos.Repository
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository             { return m.u }
func (m *fakeRepoManager) Todos(dbx.DBTX) todos.Repository             { return m.t }

type fakeAvatars struct {
	mu        sync.Mutex
	uploaded  []string
	deleted   []string
	uploadErr error
}

func (f *fakeAvatars) Upload(_ context.Context, userID string, img *storage.Image) (models.Avatar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return models.Avatar{}, f.uploadErr
	}
	key := storage.AvatarKey(userID, img.Ext)
	f.uploaded = append(f.uploaded, key)
	return models.Avatar{URL: "http://s3/" + key, Key: key}, nil
}

func (f *fakeAvatars) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, key)
	return nil
}
