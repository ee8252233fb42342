package httpapi

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"snackstand/backend/internal/domain"
)

type userStoreStub struct {
	mu      sync.Mutex
	users   map[string]domain.UserAccount
	updates int
}

func (s *userStoreStub) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.users == nil {
		s.users = make(map[string]domain.UserAccount)
	}
	s.users[user.EmployeeID] = user
	return nil
}

func (s *userStoreStub) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.UserAccount, 0, len(s.users))
	for _, user := range s.users {
		out = append(out, user)
	}
	return out, nil
}

func (s *userStoreStub) UpdateUserPassword(_ context.Context, employeeID string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.users[employeeID]
	user.Password = password
	s.users[employeeID] = user
	s.updates++
	return nil
}

func TestAuthManagerUpgradesLegacyPlainPassword(t *testing.T) {
	store := &userStoreStub{
		users: map[string]domain.UserAccount{
			"emp-legacy": {
				EmployeeID: "emp-legacy",
				Password:   "plain-pass",
				Role:       domain.RoleGeneral,
				Active:     true,
				CreatedAt:  time.Now().UTC(),
			},
		},
	}

	manager := NewAuthManager("test-secret", time.Hour, "123456", store)
	_, err := manager.Login(domain.LoginRequest{
		EmployeeID: "emp-legacy",
		Password:   "plain-pass",
	})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	users, err := store.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("list users failed: %v", err)
	}
	if len(users) != 1 {
		t.Fatalf("expected 1 user, got %d", len(users))
	}
	if users[0].Password == "plain-pass" {
		t.Fatalf("expected password to be upgraded from plain-text")
	}
	if !strings.HasPrefix(users[0].Password, "$2") {
		t.Fatalf("expected bcrypt password hash, got %s", users[0].Password)
	}
}

func TestCreateEmployeeStoresPasswordHash(t *testing.T) {
	store := &userStoreStub{users: map[string]domain.UserAccount{}}

	manager := NewAuthManager("test-secret", time.Hour, "123456", store)
	employee, err := manager.CreateEmployee(domain.EmployeeCreateRequest{
		EmployeeID: "emp-fresh",
		Password:   "pass1234",
		Role:       domain.RoleOpener,
	})
	if err != nil {
		t.Fatalf("create employee failed: %v", err)
	}
	if employee.EmployeeID != "emp-fresh" {
		t.Fatalf("unexpected employee id %s", employee.EmployeeID)
	}
	if employee.Role != domain.RoleOpener {
		t.Fatalf("unexpected role %s", employee.Role)
	}

	users, err := store.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("list users failed: %v", err)
	}
	var found *domain.UserAccount
	for i := range users {
		if users[i].EmployeeID == "emp-fresh" {
			found = &users[i]
			break
		}
	}
	if found == nil {
		t.Fatalf("expected employee to be saved")
	}
	if found.Password == "pass1234" {
		t.Fatalf("expected employee password to be hashed")
	}
	if !strings.HasPrefix(found.Password, "$2") {
		t.Fatalf("expected bcrypt hash prefix, got %s", found.Password)
	}

	_, err = manager.Login(domain.LoginRequest{
		EmployeeID: "emp-fresh",
		Password:   "pass1234",
	})
	if err != nil {
		t.Fatalf("login with new employee failed: %v", err)
	}
}

func TestCreateEmployeeRejectsUnknownRole(t *testing.T) {
	manager := NewAuthManager("test-secret", time.Hour, "123456", &userStoreStub{})

	_, err := manager.CreateEmployee(domain.EmployeeCreateRequest{
		EmployeeID: "emp-bad",
		Password:   "pass1234",
		Role:       "admin",
	})
	if err == nil {
		t.Fatalf("expected unknown role to be rejected")
	}
}

func TestCreateEmployeeDefaultsToGeneralRole(t *testing.T) {
	manager := NewAuthManager("test-secret", time.Hour, "123456", &userStoreStub{})

	employee, err := manager.CreateEmployee(domain.EmployeeCreateRequest{
		EmployeeID: "emp-plain",
		Password:   "pass1234",
	})
	if err != nil {
		t.Fatalf("create employee failed: %v", err)
	}
	if employee.Role != domain.RoleGeneral {
		t.Fatalf("expected default role %q, got %q", domain.RoleGeneral, employee.Role)
	}
}

func TestManagerPINIsHashedAndStillValidates(t *testing.T) {
	store := &userStoreStub{users: map[string]domain.UserAccount{}}
	manager := NewAuthManager("test-secret", time.Hour, "654321", store)

	if manager.managerPIN == "654321" {
		t.Fatalf("expected manager pin to be stored as hash, got plain-text")
	}

	if !manager.ValidateManagerPIN("654321") {
		t.Fatalf("expected manager pin validation to succeed")
	}

	if manager.ValidateManagerPIN("111111") {
		t.Fatalf("expected wrong manager pin to fail")
	}
}

func TestParseTokenRoundTrip(t *testing.T) {
	store := &userStoreStub{users: map[string]domain.UserAccount{}}
	manager := NewAuthManager("test-secret", time.Hour, "123456", store)

	if _, err := manager.CreateEmployee(domain.EmployeeCreateRequest{
		EmployeeID: "emp-token",
		Password:   "pass1234",
		Role:       domain.RoleCloser,
	}); err != nil {
		t.Fatalf("create employee failed: %v", err)
	}

	resp, err := manager.Login(domain.LoginRequest{EmployeeID: "emp-token", Password: "pass1234"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	actor, err := manager.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token failed: %v", err)
	}
	if actor.EmployeeID != "emp-token" {
		t.Fatalf("expected subject emp-token, got %s", actor.EmployeeID)
	}
	if actor.Role != domain.RoleCloser {
		t.Fatalf("expected role closer, got %s", actor.Role)
	}

	if _, err := manager.ParseToken("not-a-token"); err == nil {
		t.Fatalf("expected garbage token to be rejected")
	}
}
