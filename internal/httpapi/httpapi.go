package httpapi

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"snackstand/backend/internal/availability"
	"snackstand/backend/internal/domain"
	"snackstand/backend/internal/service"
	"snackstand/backend/internal/store"
)

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	loginLimiter  *attemptLimiter
	pinLimiter    *attemptLimiter
	csrfSecret    []byte
}

func New(svc *service.Service, auth *AuthManager, allowedOrigin string) *API {
	csrfSecret := make([]byte, 32)
	if _, err := rand.Read(csrfSecret); err != nil {
		// Fall back to a deterministic secret if crypto/rand fails (should not happen in practice).
		csrfSecret = []byte("csrf-fallback-secret-change-me!!")
	}
	return &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: allowedOrigin,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
		pinLimiter:    newAttemptLimiter(8, time.Minute),
		csrfSecret:    csrfSecret,
	}
}

// csrfTokenForHour computes an HMAC-SHA256 token for the given hour bucket
// (expressed as Unix time truncated to the hour). The token is hex-encoded.
func (a *API) csrfTokenForHour(hourBucket int64) string {
	h := hmac.New(sha256.New, a.csrfSecret)
	fmt.Fprintf(h, "%d", hourBucket)
	return hex.EncodeToString(h.Sum(nil))
}

// generateCSRFToken returns a token valid for the current hour bucket.
func (a *API) generateCSRFToken() string {
	now := time.Now().UTC()
	bucket := now.Truncate(time.Hour).Unix()
	return a.csrfTokenForHour(bucket)
}

// validateCSRFToken checks whether the provided token matches the current or
// previous hour bucket, giving a 2-hour validity window.
func (a *API) validateCSRFToken(token string) bool {
	if token == "" {
		return false
	}
	now := time.Now().UTC()
	currentBucket := now.Truncate(time.Hour).Unix()
	prevBucket := currentBucket - 3600

	expected1 := a.csrfTokenForHour(currentBucket)
	expected2 := a.csrfTokenForHour(prevBucket)

	return hmac.Equal([]byte(token), []byte(expected1)) ||
		hmac.Equal([]byte(token), []byte(expected2))
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	kept = append(kept, now)
	l.entries[key] = kept
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", a.handleHealth)
	mux.HandleFunc("/api/v1/auth/login", a.handleLogin)
	mux.HandleFunc("/api/v1/auth/csrf", a.handleCSRFToken)

	mux.HandleFunc("/api/v1/products", a.requireAuth(a.handleProducts))
	mux.HandleFunc("/api/v1/products/stats", a.requireAuth(a.handleCategoryStats))
	mux.HandleFunc("/api/v1/products/bulk-category", a.requireAuth(a.handleBulkCategory))
	mux.HandleFunc("/api/v1/products/", a.requireAuth(a.handleProductActions))

	mux.HandleFunc("/api/v1/cart", a.requireAuth(a.handleCart))
	mux.HandleFunc("/api/v1/cart/items", a.requireAuth(a.handleCartItems))
	mux.HandleFunc("/api/v1/cart/items/", a.requireAuth(a.handleCartItemActions))

	mux.HandleFunc("/api/v1/sales", a.requireAuth(a.handleSales))

	mux.HandleFunc("/api/v1/register", a.requireAuth(a.handleRegister))
	mux.HandleFunc("/api/v1/register/open", a.requireAuth(a.handleRegisterOpen))
	mux.HandleFunc("/api/v1/register/close", a.requireAuth(a.handleRegisterClose))
	mux.HandleFunc("/api/v1/register/adjust", a.requireAuth(a.handleRegisterAdjust))

	mux.HandleFunc("/api/v1/reports/summary", a.requireAuth(a.handleReportSummary))
	mux.HandleFunc("/api/v1/reports/summary.csv", a.requireAuth(a.handleReportSummaryCSV))

	mux.HandleFunc("/api/v1/admin/monthly-reset", a.requireAuth(a.handleMonthlyReset))
	mux.HandleFunc("/api/v1/audit", a.requireAuth(a.handleAuditLogs))
	mux.HandleFunc("/api/v1/users/employees", a.requireAuth(a.handleEmployees))

	return a.withMiddleware(mux)
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}

		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(req)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleCSRFToken returns a stateless CSRF token valid for the current hour bucket.
// Clients must include this token in the X-CSRF-Token header for all mutating requests.
func (a *API) handleCSRFToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"csrf_token": a.generateCSRFToken(),
	})
}

// csrfExemptPaths lists paths that are exempt from CSRF validation.
// Login is excluded because it is called before a CSRF token fetch.
var csrfExemptPaths = []string{
	"/api/v1/auth/login",
}

// checkCSRF enforces CSRF token validation for state-changing methods.
// Returns false and writes an error response if validation fails.
func (a *API) checkCSRF(w http.ResponseWriter, r *http.Request) bool {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return true
	}
	for _, exempt := range csrfExemptPaths {
		if r.URL.Path == exempt {
			return true
		}
	}
	token := strings.TrimSpace(r.Header.Get("X-CSRF-Token"))
	if !a.validateCSRFToken(token) {
		writeError(w, http.StatusForbidden, errors.New("missing or invalid CSRF token"))
		return false
	}
	return true
}

func (a *API) handleProducts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		at, err := listClock(r.URL.Query().Get("at"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		resp, err := a.service.ListProducts(r.Context(), at)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	case http.MethodPost:
		var req domain.ProductCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		resp, err := a.service.CreateProduct(r.Context(), req)
		if err != nil {
			status := http.StatusUnprocessableEntity
			if errors.Is(err, service.ErrInvalidInput) {
				status = http.StatusBadRequest
			}
			if errors.Is(err, store.ErrConflict) {
				status = http.StatusConflict
			}
			writeError(w, status, err)
			return
		}
		writeJSON(w, http.StatusCreated, resp)
	default:
		writeMethodNotAllowed(w)
	}
}

// listClock resolves the optional ?at=HH:MM override for availability checks.
// An empty value means "now".
func listClock(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	now := time.Now()
	if raw == "" {
		return now, nil
	}
	minute, err := availability.ParseClock(raw)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(now.Year(), now.Month(), now.Day(), minute/60, minute%60, 0, 0, now.Location()), nil
}

func (a *API) handleProductActions(w http.ResponseWriter, r *http.Request) {
	prefix := "/api/v1/products/"
	if !strings.HasPrefix(r.URL.Path, prefix) {
		writeError(w, http.StatusBadRequest, errors.New("invalid product path"))
		return
	}

	productID := strings.TrimSpace(strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/"))
	if productID == "" {
		writeError(w, http.StatusBadRequest, errors.New("product id required"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		product, err := a.service.GetProduct(r.Context(), productID)
		if err != nil {
			status := http.StatusUnprocessableEntity
			if errors.Is(err, store.ErrNotFound) {
				status = http.StatusNotFound
			}
			writeError(w, status, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"product": product})
	case http.MethodPut:
		var req domain.ProductUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		resp, err := a.service.UpdateProduct(r.Context(), productID, req)
		if err != nil {
			status := http.StatusUnprocessableEntity
			if errors.Is(err, store.ErrNotFound) {
				status = http.StatusNotFound
			}
			if errors.Is(err, service.ErrInvalidInput) {
				status = http.StatusBadRequest
			}
			writeError(w, status, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	case http.MethodDelete:
		if err := a.service.DeleteProduct(r.Context(), productID); err != nil {
			status := http.StatusUnprocessableEntity
			if errors.Is(err, store.ErrNotFound) {
				status = http.StatusNotFound
			}
			writeError(w, status, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleCategoryStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	resp, err := a.service.CategoryStats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleBulkCategory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.BulkCategoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.service.AssignCategory(r.Context(), req)
	if err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, service.ErrInvalidInput) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleCart(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		resp, err := a.service.GetCart(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	case http.MethodDelete:
		resp, err := a.service.ClearCart(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleCartItems(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.CartAddRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.service.AddToCart(r.Context(), req.ProductID)
	if err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, store.ErrNotFound) {
			status = http.StatusNotFound
		}
		if errors.Is(err, service.ErrInvalidInput) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleCartItemActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeMethodNotAllowed(w)
		return
	}

	prefix := "/api/v1/cart/items/"
	productID := strings.TrimSpace(strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/"))
	if productID == "" {
		writeError(w, http.StatusBadRequest, errors.New("product id required"))
		return
	}

	resp, err := a.service.RemoveFromCart(r.Context(), productID)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleSales(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		resp, err := a.service.ListSales(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	case http.MethodPost:
		var req domain.SaleCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		resp, err := a.service.CompleteSale(r.Context(), req)
		if err != nil {
			switch {
			case errors.Is(err, store.ErrInsufficientStock):
				writeError(w, http.StatusConflict, err)
			case errors.Is(err, service.ErrEmptyCart):
				writeError(w, http.StatusBadRequest, err)
			case errors.Is(err, service.ErrInvalidInput):
				writeError(w, http.StatusBadRequest, err)
			case errors.Is(err, store.ErrNotFound):
				// A cart line whose product was deleted out from under the sale.
				writeError(w, http.StatusConflict, err)
			default:
				writeError(w, http.StatusUnprocessableEntity, err)
			}
			return
		}
		writeJSON(w, http.StatusCreated, resp)
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	resp, err := a.service.GetRegister(r.Context())
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, store.ErrRegisterMissing) {
			status = http.StatusNotFound
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleRegisterOpen(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.RegisterOpenRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.service.OpenRegister(r.Context(), req)
	if err != nil {
		writeError(w, registerErrorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleRegisterClose(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.RegisterCloseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.service.CloseRegister(r.Context(), req)
	if err != nil {
		writeError(w, registerErrorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleRegisterAdjust(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.RegisterAdjustRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.service.AdjustRegister(r.Context(), req)
	if err != nil {
		writeError(w, registerErrorStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func registerErrorStatus(err error) int {
	switch {
	case errors.Is(err, store.ErrRegisterMissing):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest
	case strings.Contains(strings.ToLower(err.Error()), "role required"):
		return http.StatusForbidden
	}
	return http.StatusUnprocessableEntity
}

func (a *API) handleReportSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	summary, err := a.service.ReportSummary(r.Context(), r.URL.Query().Get("period"))
	if err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, service.ErrInvalidInput) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (a *API) handleReportSummaryCSV(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	summary, err := a.service.ReportSummary(r.Context(), r.URL.Query().Get("period"))
	if err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, service.ErrInvalidInput) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"sales-summary-%s.csv\"", summary.Period))
	_, _ = w.Write([]byte(reportSummaryToCSV(summary)))
}

func (a *API) handleMonthlyReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.MonthlyResetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if !a.pinLimiter.Allow("pin:reset:" + clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many manager pin attempts"))
		return
	}
	if !a.auth.ValidateManagerPIN(req.ManagerPIN) {
		writeError(w, http.StatusForbidden, errors.New("invalid manager pin"))
		return
	}

	resp, err := a.service.MonthlyReset(r.Context())
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500)

	resp, err := a.service.ListAuditLogs(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleEmployees(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		employees := a.auth.ListEmployees()
		writeJSON(w, http.StatusOK, map[string]any{"employees": employees})
	case http.MethodPost:
		var req domain.EmployeeCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if !a.pinLimiter.Allow("pin:employee:" + clientKey(r)) {
			writeError(w, http.StatusTooManyRequests, errors.New("too many manager pin attempts"))
			return
		}
		if !a.auth.ValidateManagerPIN(req.ManagerPIN) {
			writeError(w, http.StatusForbidden, errors.New("invalid manager pin"))
			return
		}

		employee, err := a.auth.CreateEmployee(req)
		if err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, store.ErrConflict) {
				status = http.StatusConflict
			}
			writeError(w, status, err)
			return
		}

		writeJSON(w, http.StatusCreated, map[string]any{"employee": employee})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-CSRF-Token")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if (r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch) && strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		// Enforce CSRF protection for all state-changing requests.
		if !a.checkCSRF(w, r) {
			return
		}

		startedAt := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(startedAt))
	})
}

func reportSummaryToCSV(summary domain.ReportSummary) string {
	lines := []string{
		"section,key,value",
		fmt.Sprintf("summary,period,%s", summary.Period),
		fmt.Sprintf("summary,generated_at,%s", summary.GeneratedAt),
		fmt.Sprintf("summary,total_sales_cents,%d", summary.TotalSalesCents),
		fmt.Sprintf("summary,transactions,%d", summary.Transactions),
		fmt.Sprintf("summary,avg_transaction_cents,%d", summary.AvgTransactionCents),
		fmt.Sprintf("payment,cash_amount_cents,%d", summary.Cash.AmountCents),
		fmt.Sprintf("payment,cash_transactions,%d", summary.Cash.Transactions),
		fmt.Sprintf("payment,school_cash_amount_cents,%d", summary.SchoolCash.AmountCents),
		fmt.Sprintf("payment,school_cash_transactions,%d", summary.SchoolCash.Transactions),
		fmt.Sprintf("register,current_cents,%d", summary.RegisterCurrent),
		fmt.Sprintf("register,starting_cents,%d", summary.RegisterStarting),
	}
	if summary.HasCostData {
		lines = append(lines,
			fmt.Sprintf("profit,total_cost_cents,%d", summary.TotalCostCents),
			fmt.Sprintf("profit,total_profit_cents,%d", summary.TotalProfitCents),
			fmt.Sprintf("profit,profit_margin_pct,%.1f", summary.ProfitMarginPct),
			fmt.Sprintf("profit,avg_profit_cents,%d", summary.AvgProfitCents),
			fmt.Sprintf("profit,cost_ratio_pct,%.1f", summary.CostRatioPct),
		)
	}
	for _, item := range summary.TopSelling {
		lines = append(lines, fmt.Sprintf("top_selling,%s,%d", csvField(item.Name), item.Quantity))
	}
	for _, item := range summary.MostProfitable {
		lines = append(lines, fmt.Sprintf("most_profitable,%s,%d", csvField(item.Name), item.ProfitCents))
	}
	return strings.Join(lines, "\n") + "\n"
}

// csvField strips separators out of free-text values so product names cannot
// break the three-column layout.
func csvField(value string) string {
	value = strings.ReplaceAll(value, ",", " ")
	value = strings.ReplaceAll(value, "\n", " ")
	return strings.TrimSpace(value)
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func writeError(w http.ResponseWriter, status int, err error) {
	// For 5xx responses, return a generic message to avoid leaking internal
	// implementation details (stack traces, SQL errors, file paths, etc.).
	// 4xx responses are user-facing so we return the original error message.
	msg := err.Error()
	if status >= 500 {
		log.Printf("internal error (status %d): %v", status, err)
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
