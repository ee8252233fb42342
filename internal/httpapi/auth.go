package httpapi

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"snackstand/backend/internal/domain"
)

type AuthManager struct {
	mu         sync.RWMutex
	secret     []byte
	tokenTTL   time.Duration
	managerPIN string
	userStore  UserStore
	users      map[string]credential
}

type UserStore interface {
	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, employeeID string, password string) error
}

type credential struct {
	password string
	role     string
	active   bool
	created  time.Time
}

type standClaims struct {
	jwtlib.RegisteredClaims
	Role string `json:"role"`
}

func NewAuthManager(secret string, tokenTTL time.Duration, managerPIN string, userStore UserStore) *AuthManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}
	managerPIN = strings.TrimSpace(managerPIN)
	if managerPIN == "" {
		managerPIN = "disabled"
	}
	hashedPIN, err := hashPassword(managerPIN)
	if err == nil {
		managerPIN = hashedPIN
	}

	manager := &AuthManager{
		secret:     []byte(secret),
		tokenTTL:   tokenTTL,
		managerPIN: managerPIN,
		userStore:  userStore,
		users:      make(map[string]credential),
	}
	// context.Background() is appropriate here because this is a startup operation
	// that runs before any request context exists.
	manager.bootstrapUsers(context.Background())
	return manager
}

func (a *AuthManager) Login(req domain.LoginRequest) (domain.LoginResponse, error) {
	// bootstrapUsers runs on every login to pick up accounts added outside this
	// process. Cheap for a single-stand deployment.
	a.bootstrapUsers(context.Background())
	employeeID := strings.TrimSpace(req.EmployeeID)
	a.mu.RLock()
	cred, ok := a.users[employeeID]
	a.mu.RUnlock()
	if !ok {
		return domain.LoginResponse{}, errors.New("invalid credentials")
	}

	valid := verifyPassword(cred.password, req.Password)
	if !valid {
		return domain.LoginResponse{}, errors.New("invalid credentials")
	}
	if !cred.active {
		return domain.LoginResponse{}, errors.New("account is inactive")
	}

	expiresAt := time.Now().UTC().Add(a.tokenTTL)
	token, err := a.sign(employeeID, cred.role, expiresAt)
	if err != nil {
		return domain.LoginResponse{}, err
	}

	return domain.LoginResponse{
		AccessToken: token,
		Role:        cred.role,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	}, nil
}

func (a *AuthManager) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &standClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return domain.Actor{}, errors.New("invalid or expired token")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Actor{}, errors.New("invalid token subject")
	}
	return domain.Actor{EmployeeID: sub, Role: claims.Role}, nil
}

func (a *AuthManager) sign(employeeID, role string, expiresAt time.Time) (string, error) {
	claims := standClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   employeeID,
			IssuedAt:  jwtlib.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    "snackstand",
		},
		Role: role,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func (a *AuthManager) ValidateManagerPIN(pin string) bool {
	input := strings.TrimSpace(pin)
	if input == "" || !isPasswordHash(a.managerPIN) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(a.managerPIN), []byte(input)) == nil
}

func (a *AuthManager) CreateEmployee(req domain.EmployeeCreateRequest) (domain.EmployeeUser, error) {
	// context.Background() is correct here: CreateEmployee is an admin operation
	// that does not carry a request context through the AuthManager API.
	a.bootstrapUsers(context.Background())
	employeeID := strings.ToLower(strings.TrimSpace(req.EmployeeID))
	if employeeID == "" || len(employeeID) < 3 {
		return domain.EmployeeUser{}, fmt.Errorf("employee id must be at least 3 characters")
	}
	if strings.ContainsAny(employeeID, " \t\r\n") {
		return domain.EmployeeUser{}, fmt.Errorf("employee id must not contain spaces")
	}
	if strings.TrimSpace(req.Password) == "" || len(req.Password) < 6 {
		return domain.EmployeeUser{}, fmt.Errorf("password must be at least 6 characters")
	}
	role := strings.TrimSpace(req.Role)
	if role == "" {
		role = domain.RoleGeneral
	}
	if role != domain.RoleGeneral && role != domain.RoleOpener && role != domain.RoleCloser {
		return domain.EmployeeUser{}, fmt.Errorf("unknown role %q", role)
	}

	a.mu.RLock()
	_, exists := a.users[employeeID]
	a.mu.RUnlock()
	if exists {
		return domain.EmployeeUser{}, fmt.Errorf("employee id already exists")
	}

	now := time.Now().UTC()
	passwordHash, err := hashPassword(req.Password)
	if err != nil {
		return domain.EmployeeUser{}, fmt.Errorf("failed to hash password")
	}

	if a.userStore != nil {
		err := a.userStore.CreateUser(context.Background(), domain.UserAccount{
			EmployeeID: employeeID,
			Password:   passwordHash,
			Role:       role,
			Active:     true,
			CreatedAt:  now,
		})
		if err != nil {
			return domain.EmployeeUser{}, err
		}
	}

	a.mu.Lock()
	a.users[employeeID] = credential{
		password: passwordHash,
		role:     role,
		active:   true,
		created:  now,
	}
	a.mu.Unlock()

	return domain.EmployeeUser{
		EmployeeID: employeeID,
		Role:       role,
		Active:     true,
		CreatedAt:  now,
	}, nil
}

func (a *AuthManager) ListEmployees() []domain.EmployeeUser {
	a.bootstrapUsers(context.Background())
	a.mu.RLock()
	result := make([]domain.EmployeeUser, 0, len(a.users))
	for employeeID, user := range a.users {
		result = append(result, domain.EmployeeUser{
			EmployeeID: employeeID,
			Role:       user.role,
			Active:     user.active,
			CreatedAt:  user.created,
		})
	}
	a.mu.RUnlock()
	sort.Slice(result, func(i, j int) bool {
		return result[i].EmployeeID < result[j].EmployeeID
	})
	return result
}

// bootstrapUsers loads accounts from the user store into the in-memory
// credential cache. It also upgrades any legacy plain-text passwords to bcrypt
// hashes in the store.
func (a *AuthManager) bootstrapUsers(ctx context.Context) {
	if a.userStore == nil {
		return
	}

	users, err := a.userStore.ListUsers(ctx)
	if err != nil || len(users) == 0 {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for _, user := range users {
		employeeID := strings.ToLower(strings.TrimSpace(user.EmployeeID))
		if employeeID == "" {
			continue
		}
		password := user.Password
		if !isPasswordHash(password) {
			hashed, err := hashPassword(password)
			if err == nil {
				password = hashed
				_ = a.userStore.UpdateUserPassword(ctx, employeeID, hashed)
			}
		}
		a.users[employeeID] = credential{
			password: password,
			role:     user.Role,
			active:   user.Active,
			created:  user.CreatedAt,
		}
	}
}

func verifyPassword(stored string, input string) bool {
	if stored == "" || strings.TrimSpace(input) == "" || !isPasswordHash(stored) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func isPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}
