package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/apiauth/user-service/internal/command"
	"github.com/apiauth/user-service/internal/cqrs"
	"github.com/apiauth/user-service/internal/events"
	"github.com/apiauth/user-service/internal/models"
	"github.com/apiauth/user-service/internal/query"
	"github.com/apiauth/user-service/internal/repository"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"golang.org/x/crypto/bcrypt"
)

// ---- mock implementations ----

type mockUserCommander struct {
	createFn func(cqrs.CreateUserCommand) (*models.User, error)
	updateFn func(cqrs.UpdateUserCommand) (*models.User, error)
	deleteFn func(cqrs.DeleteUserCommand) error
}

func (m *mockUserCommander) CreateUser(_ context.Context, cmd cqrs.CreateUserCommand) (*models.User, error) {
	if m.createFn != nil {
		return m.createFn(cmd)
	}
	return nil, fmt.Errorf("not configured")
}
func (m *mockUserCommander) UpdateUser(_ context.Context, cmd cqrs.UpdateUserCommand) (*models.User, error) {
	if m.updateFn != nil {
		return m.updateFn(cmd)
	}
	return nil, fmt.Errorf("not configured")
}
func (m *mockUserCommander) DeleteUser(_ context.Context, cmd cqrs.DeleteUserCommand) error {
	if m.deleteFn != nil {
		return m.deleteFn(cmd)
	}
	return fmt.Errorf("not configured")
}

type mockUserQuerier struct {
	getFn  func(cqrs.GetUserQuery) (*models.User, error)
	listFn func(cqrs.ListUsersQuery) (models.Page[models.User], error)
}

func (m *mockUserQuerier) GetUser(_ context.Context, q cqrs.GetUserQuery) (*models.User, error) {
	if m.getFn != nil {
		return m.getFn(q)
	}
	return nil, fmt.Errorf("not configured")
}
func (m *mockUserQuerier) ListUsers(_ context.Context, q cqrs.ListUsersQuery) (models.Page[models.User], error) {
	if m.listFn != nil {
		return m.listFn(q)
	}
	return models.Page[models.User]{}, fmt.Errorf("not configured")
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []events.UserNotification
}

func (n *recordingNotifier) Publish(_ context.Context, _, _ string, p events.UserNotification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, p)
	return nil
}

// ---- helpers ----

func newUserTestRouter(cmds UserCommander, qrys UserQuerier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewUserHandler(cmds, qrys).RegisterRoutes(r)
	return r
}

func userDoRequest(router *gin.Engine, method, url string, body interface{}) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, url, nil)
	if body != nil {
		b, _ := json.Marshal(body)
		req, _ = http.NewRequest(method, url, strings.NewReader(string(b)))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	return body.Message
}

// ---- test data ----

const uTestUserID = "3f1b2c4d-5e6f-4a7b-8c9d-0e1f2a3b4c5d"

var uTestUser = &models.User{
	ID: uTestUserID, FirstName: "Alice", LastName: "Smith",
	Email: "alice@example.com", Password: "$2a$10$hash",
	RegistrationDate: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
}

func uValidBody() map[string]interface{} {
	return map[string]interface{}{
		"firstName": "Alice", "lastName": "Smith",
		"email": "alice@example.com", "password": "securepass123",
	}
}

func uBodyWithPassword(password string) map[string]interface{} {
	body := uValidBody()
	body["password"] = password
	return body
}

// ---- tests ----

func TestCreateUser(t *testing.T) {
	tests := []struct {
		name           string
		body           interface{}
		createFn       func(cqrs.CreateUserCommand) (*models.User, error)
		expectedStatus int
		expectedMsg    string
	}{
		{
			name:           "success - creates new user",
			body:           uValidBody(),
			createFn:       func(cmd cqrs.CreateUserCommand) (*models.User, error) { return uTestUser, nil },
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "bad request - missing required fields",
			body:           map[string]interface{}{"email": "alice@example.com"},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "Invalid request data",
		},
		{
			name:           "bad request - blank first name",
			body:           map[string]interface{}{"firstName": "   ", "lastName": "Smith", "email": "alice@example.com", "password": "pw"},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "Invalid request data",
		},
		{
			name:           "bad request - invalid email format",
			body:           map[string]interface{}{"firstName": "Alice", "lastName": "Smith", "email": "not-valid", "password": "pw"},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "Invalid request data",
		},
		{
			name:           "bad request - password longer than 72 characters",
			body:           uBodyWithPassword(strings.Repeat("a", 73)),
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "Invalid request data",
		},
		{
			name: "bad request - multibyte password longer than 72 bytes",
			body: uBodyWithPassword(strings.Repeat("é", 40)),
			createFn: func(cmd cqrs.CreateUserCommand) (*models.User, error) {
				return nil, fmt.Errorf("failed to hash password: %w", bcrypt.ErrPasswordTooLong)
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "conflict - email already in use",
			body:           uValidBody(),
			createFn:       func(cmd cqrs.CreateUserCommand) (*models.User, error) { return nil, repository.ErrEmailExists },
			expectedStatus: http.StatusConflict,
			expectedMsg:    msgEmailConflict,
		},
		{
			name: "internal error - store failure",
			body: uValidBody(),
			createFn: func(cmd cqrs.CreateUserCommand) (*models.User, error) {
				return nil, fmt.Errorf("failed to create user: %w", fmt.Errorf("connection refused"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedMsg:    "Failed to create user",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmds := &mockUserCommander{createFn: tt.createFn}
			router := newUserTestRouter(cmds, &mockUserQuerier{})
			w := userDoRequest(router, http.MethodPost, "/user", tt.body)
			if w.Code != tt.expectedStatus {
				t.Errorf("[%s] expected status %d, got %d; body: %s", tt.name, tt.expectedStatus, w.Code, w.Body.String())
			}
			if tt.expectedMsg != "" {
				if got := decodeMessage(t, w); got != tt.expectedMsg {
					t.Errorf("[%s] expected message %q, got %q", tt.name, tt.expectedMsg, got)
				}
			}
		})
	}
}

func TestCreateUser_PassesFieldsToCommand(t *testing.T) {
	var got cqrs.CreateUserCommand
	cmds := &mockUserCommander{createFn: func(cmd cqrs.CreateUserCommand) (*models.User, error) {
		got = cmd
		return uTestUser, nil
	}}
	router := newUserTestRouter(cmds, &mockUserQuerier{})
	w := userDoRequest(router, http.MethodPost, "/user", uValidBody())
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	want := cqrs.CreateUserCommand{FirstName: "Alice", LastName: "Smith", Email: "alice@example.com", Password: "securepass123"}
	if got != want {
		t.Errorf("expected command %+v, got %+v", want, got)
	}
}

func TestListUsers(t *testing.T) {
	tests := []struct {
		name           string
		url            string
		listFn         func(cqrs.ListUsersQuery) (models.Page[models.User], error)
		expectedStatus int
		expectedQuery  *cqrs.ListUsersQuery
	}{
		{
			name:           "success - default paging",
			url:            "/user",
			expectedStatus: http.StatusOK,
			expectedQuery:  &cqrs.ListUsersQuery{Page: 0, Size: cqrs.DefaultPageSize, SortField: cqrs.DefaultSort, SortDir: cqrs.SortAsc},
		},
		{
			name:           "success - explicit paging and sort",
			url:            "/user?page=2&size=5&sort=email,desc",
			expectedStatus: http.StatusOK,
			expectedQuery:  &cqrs.ListUsersQuery{Page: 2, Size: 5, SortField: "email", SortDir: cqrs.SortDesc},
		},
		{
			name:           "bad request - non numeric page",
			url:            "/user?page=abc",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "bad request - size over max",
			url:            "/user?size=1000",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "bad request - unknown sort field",
			url:            "/user?sort=password",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "internal error - store failure",
			url:  "/user",
			listFn: func(q cqrs.ListUsersQuery) (models.Page[models.User], error) {
				return models.Page[models.User]{}, fmt.Errorf("db down")
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got cqrs.ListUsersQuery
			listFn := tt.listFn
			if listFn == nil {
				listFn = func(q cqrs.ListUsersQuery) (models.Page[models.User], error) {
					got = q
					return models.NewPage([]models.User{*uTestUser}, q.Page, q.Size, 1, models.Sort{Field: q.SortField, Direction: q.SortDir}), nil
				}
			}
			router := newUserTestRouter(&mockUserCommander{}, &mockUserQuerier{listFn: listFn})
			w := userDoRequest(router, http.MethodGet, tt.url, nil)
			if w.Code != tt.expectedStatus {
				t.Fatalf("[%s] expected status %d, got %d; body: %s", tt.name, tt.expectedStatus, w.Code, w.Body.String())
			}
			if tt.expectedQuery != nil && got != *tt.expectedQuery {
				t.Errorf("[%s] expected query %+v, got %+v", tt.name, *tt.expectedQuery, got)
			}
		})
	}
}

func TestGetUser(t *testing.T) {
	tests := []struct {
		name           string
		urlUserID      string
		getFn          func(cqrs.GetUserQuery) (*models.User, error)
		expectedStatus int
	}{
		{
			name:           "success - fetch user details",
			urlUserID:      uTestUserID,
			getFn:          func(q cqrs.GetUserQuery) (*models.User, error) { return uTestUser, nil },
			expectedStatus: http.StatusOK,
		},
		{
			name:           "bad request - malformed id",
			urlUserID:      "usr-001",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "not found - user does not exist",
			urlUserID:      uTestUserID,
			getFn:          func(q cqrs.GetUserQuery) (*models.User, error) { return nil, repository.ErrUserNotFound },
			expectedStatus: http.StatusNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newUserTestRouter(&mockUserCommander{}, &mockUserQuerier{getFn: tt.getFn})
			w := userDoRequest(router, http.MethodGet, "/user/"+tt.urlUserID, nil)
			if w.Code != tt.expectedStatus {
				t.Errorf("[%s] expected status %d, got %d; body: %s", tt.name, tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestGetUser_CanonicalizesID(t *testing.T) {
	for _, raw := range []string{
		strings.ToUpper(uTestUserID),
		"urn:uuid:" + uTestUserID,
		strings.ReplaceAll(uTestUserID, "-", ""),
	} {
		var got string
		qrys := &mockUserQuerier{getFn: func(q cqrs.GetUserQuery) (*models.User, error) {
			got = q.UserID
			return uTestUser, nil
		}}
		router := newUserTestRouter(&mockUserCommander{}, qrys)
		w := userDoRequest(router, http.MethodGet, "/user/"+raw, nil)
		if w.Code != http.StatusOK {
			t.Errorf("[%s] expected 200, got %d", raw, w.Code)
		}
		if got != uTestUserID {
			t.Errorf("[%s] expected id %q downstream, got %q", raw, uTestUserID, got)
		}
	}
}

func TestUpdateUser(t *testing.T) {
	tests := []struct {
		name           string
		urlUserID      string
		body           interface{}
		updateFn       func(cqrs.UpdateUserCommand) (*models.User, error)
		expectedStatus int
	}{
		{
			name:      "success - replaces user",
			urlUserID: uTestUserID,
			body:      uValidBody(),
			updateFn: func(cmd cqrs.UpdateUserCommand) (*models.User, error) {
				if cmd.UserID != uTestUserID {
					return nil, fmt.Errorf("unexpected id %s", cmd.UserID)
				}
				return uTestUser, nil
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "bad request - malformed id",
			urlUserID:      "not-a-uuid",
			body:           uValidBody(),
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "bad request - missing password",
			urlUserID:      uTestUserID,
			body:           map[string]interface{}{"firstName": "Alice", "lastName": "Smith", "email": "alice@example.com"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "bad request - password longer than 72 characters",
			urlUserID:      uTestUserID,
			body:           uBodyWithPassword(strings.Repeat("a", 73)),
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:      "bad request - multibyte password longer than 72 bytes",
			urlUserID: uTestUserID,
			body:      uBodyWithPassword(strings.Repeat("é", 40)),
			updateFn: func(cmd cqrs.UpdateUserCommand) (*models.User, error) {
				return nil, fmt.Errorf("failed to hash password: %w", bcrypt.ErrPasswordTooLong)
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "not found - user does not exist",
			urlUserID:      uTestUserID,
			body:           uValidBody(),
			updateFn:       func(cmd cqrs.UpdateUserCommand) (*models.User, error) { return nil, repository.ErrUserNotFound },
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "conflict - email owned by another user",
			urlUserID:      uTestUserID,
			body:           uValidBody(),
			updateFn:       func(cmd cqrs.UpdateUserCommand) (*models.User, error) { return nil, repository.ErrEmailExists },
			expectedStatus: http.StatusConflict,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmds := &mockUserCommander{updateFn: tt.updateFn}
			router := newUserTestRouter(cmds, &mockUserQuerier{})
			w := userDoRequest(router, http.MethodPut, "/user/"+tt.urlUserID, tt.body)
			if w.Code != tt.expectedStatus {
				t.Errorf("[%s] expected status %d, got %d; body: %s", tt.name, tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestDeleteUser(t *testing.T) {
	tests := []struct {
		name           string
		urlUserID      string
		deleteFn       func(cqrs.DeleteUserCommand) error
		expectedStatus int
		expectedMsg    string
	}{
		{
			name:           "success - deletes user",
			urlUserID:      uTestUserID,
			deleteFn:       func(cmd cqrs.DeleteUserCommand) error { return nil },
			expectedStatus: http.StatusOK,
			expectedMsg:    msgUserDeleted,
		},
		{
			name:           "bad request - malformed id",
			urlUserID:      "123",
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "not found - user does not exist",
			urlUserID:      uTestUserID,
			deleteFn:       func(cmd cqrs.DeleteUserCommand) error { return repository.ErrUserNotFound },
			expectedStatus: http.StatusNotFound,
			expectedMsg:    msgUserNotFound,
		},
		{
			name:      "internal error - notification failed",
			urlUserID: uTestUserID,
			deleteFn: func(cmd cqrs.DeleteUserCommand) error {
				return fmt.Errorf("failed to publish notification: broker down")
			},
			expectedStatus: http.StatusInternalServerError,
			expectedMsg:    "Failed to delete user",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmds := &mockUserCommander{deleteFn: tt.deleteFn}
			router := newUserTestRouter(cmds, &mockUserQuerier{})
			w := userDoRequest(router, http.MethodDelete, "/user/"+tt.urlUserID, nil)
			if w.Code != tt.expectedStatus {
				t.Errorf("[%s] expected status %d, got %d; body: %s", tt.name, tt.expectedStatus, w.Code, w.Body.String())
			}
			if tt.expectedMsg != "" {
				if got := decodeMessage(t, w); got != tt.expectedMsg {
					t.Errorf("[%s] expected message %q, got %q", tt.name, tt.expectedMsg, got)
				}
			}
		})
	}
}

// TestUserLifecycle drives the real services over the in-memory store.
func TestUserLifecycle(t *testing.T) {
	log, _ := logtest.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	store := repository.NewMemoryUserRepository()
	readRepo := repository.NewUserReadRepository(store, nil)
	notifier := &recordingNotifier{}
	cmds := command.NewUserCommandService(store, readRepo, notifier, log)
	qrys := query.NewUserQueryService(readRepo)
	router := newUserTestRouter(cmds, qrys)

	body := map[string]interface{}{
		"firstName": "Foo", "lastName": "Bar",
		"email": "foo.bar@test.com", "password": "Teste12",
	}

	w := userDoRequest(router, http.MethodPost, "/user", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d; body: %s", w.Code, w.Body.String())
	}
	var created models.User
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created user: %v", err)
	}
	if created.Password == "Teste12" {
		t.Error("create: password returned in plaintext")
	}
	if created.RegistrationDate.Location() != time.UTC {
		t.Errorf("create: registration date not in UTC: %v", created.RegistrationDate)
	}

	w = userDoRequest(router, http.MethodPost, "/user", body)
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate create: expected 409, got %d", w.Code)
	}

	w = userDoRequest(router, http.MethodGet, "/user/"+created.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", w.Code)
	}
	var fetched models.User
	if err := json.Unmarshal(w.Body.Bytes(), &fetched); err != nil {
		t.Fatalf("decode fetched user: %v", err)
	}
	if fetched.Email != "foo.bar@test.com" || fetched.ID != created.ID {
		t.Errorf("get: unexpected user %+v", fetched)
	}

	w = userDoRequest(router, http.MethodGet, "/user", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", w.Code)
	}
	var page models.Page[models.User]
	if err := json.Unmarshal(w.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	if page.TotalElements != 1 || len(page.Content) != 1 {
		t.Errorf("list: expected one user, got %+v", page)
	}

	w = userDoRequest(router, http.MethodGet, "/user?page=922337203685477581&size=10", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list far past the end: expected 200, got %d; body: %s", w.Code, w.Body.String())
	}
	page = models.Page[models.User]{}
	if err := json.Unmarshal(w.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	if len(page.Content) != 0 || page.TotalElements != 1 {
		t.Errorf("list far past the end: expected empty content, got %+v", page)
	}

	longPassword := map[string]interface{}{
		"firstName": "Foo", "lastName": "Bar",
		"email": "long.password@test.com", "password": strings.Repeat("x", 73),
	}
	w = userDoRequest(router, http.MethodPost, "/user", longPassword)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("long password: expected 400, got %d", w.Code)
	}
	w = userDoRequest(router, http.MethodPut, "/user/"+created.ID, longPassword)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("long password update: expected 400, got %d", w.Code)
	}

	w = userDoRequest(router, http.MethodDelete, "/user/"+created.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", w.Code)
	}

	w = userDoRequest(router, http.MethodGet, "/user/"+created.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("get after delete: expected 404, got %d", w.Code)
	}

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	if len(notifier.messages) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(notifier.messages))
	}
	if notifier.messages[0].Message != events.UserCreatedMessage || notifier.messages[1].Message != events.UserDeletedMessage {
		t.Errorf("unexpected notifications: %+v", notifier.messages)
	}
}
