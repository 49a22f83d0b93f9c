package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"dolmen/pos/internal/cart"
	"dolmen/pos/internal/domain"
	"dolmen/pos/internal/receipt"
	"dolmen/pos/internal/service"
	"dolmen/pos/internal/store"
)

type API struct {
	service       *service.Service
	auth          *AuthManager
	carts         *cart.Registry
	allowedOrigin string
	currency      string
	loginLimiter  *attemptLimiter
}

func New(svc *service.Service, auth *AuthManager, allowedOrigin string, currency string) *API {
	return &API{
		service:       svc,
		auth:          auth,
		carts:         cart.NewRegistry(auth.TokenTTL()),
		allowedOrigin: allowedOrigin,
		currency:      currency,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
	}
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

var (
	anyRole   = []domain.Role{domain.RoleAdmin, domain.RoleStaff}
	adminOnly = []domain.Role{domain.RoleAdmin}
	staffOnly = []domain.Role{domain.RoleStaff}
)

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", a.handleHealth)
	mux.HandleFunc("/api/v1/auth/login", a.handleLogin)
	mux.HandleFunc("/api/v1/permissions", a.requireAuth(a.handlePermissions, anyRole...))

	mux.HandleFunc("/api/v1/items", a.requireAuth(a.handleItems, anyRole...))
	mux.HandleFunc("/api/v1/items/", a.requireAuth(a.handleItemActions, anyRole...))
	mux.HandleFunc("/api/v1/cart", a.requireAuth(a.handleCart, staffOnly...))
	mux.HandleFunc("/api/v1/cart/lines/", a.requireAuth(a.handleCartLine, staffOnly...))
	mux.HandleFunc("/api/v1/checkout", a.requireAuth(a.handleCheckout, staffOnly...))
	mux.HandleFunc("/api/v1/receipts/", a.requireAuth(a.handleReceiptActions, adminOnly...))
	mux.HandleFunc("/api/v1/reports/summary", a.requireAuth(a.handleSummary, adminOnly...))
	mux.HandleFunc("/api/v1/purchases", a.requireAuth(a.handlePurchases, adminOnly...))
	mux.HandleFunc("/api/v1/dashboard", a.requireAuth(a.handleDashboard, anyRole...))
	mux.HandleFunc("/api/v1/settings/shop", a.requireAuth(a.handleShopSettings, anyRole...))

	return a.withMiddleware(mux)
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...domain.Role) http.HandlerFunc {
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

func isRoleAllowed(role domain.Role, allowed []domain.Role) bool {
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

	resp, err := a.auth.Login(r.Context(), req)
	if err != nil {
		if errors.Is(err, errInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handlePermissions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	actor, _ := service.ActorFromContext(r.Context())

	if op := strings.TrimSpace(r.URL.Query().Get("operation")); op != "" {
		writeJSON(w, http.StatusOK, map[string]any{
			"operation": op,
			"permitted": service.Permitted(actor.Role, service.Operation(op)),
		})
		return
	}

	allowed := make([]service.Operation, 0, 8)
	for _, op := range service.Operations() {
		if service.Permitted(actor.Role, op) {
			allowed = append(allowed, op)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"role": actor.Role, "operations": allowed})
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if (r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut) && strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		startedAt := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("elapsed", time.Since(startedAt)).
			Msg("request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// statusFor maps the error taxonomy onto HTTP statuses. Validation is checked
// first because an unknown restock item is a validation error wrapping
// ErrNotFound.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrStockConflict):
		return http.StatusConflict
	case errors.Is(err, store.ErrEmptyCart):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	var conflict *store.StockConflictError
	if errors.As(err, &conflict) {
		writeJSON(w, status, map[string]any{
			"error":     err.Error(),
			"item_id":   conflict.ItemID,
			"item_name": conflict.Name,
			"requested": conflict.Requested,
			"available": conflict.Available,
		})
		return
	}
	var invalid *store.ValidationError
	if errors.As(err, &invalid) && invalid.Field != "" {
		writeJSON(w, status, map[string]any{"error": err.Error(), "field": invalid.Field})
		return
	}
	writeError(w, status, err)
}

func summaryToText(title string, s domain.Summary, currency string) string {
	lines := []string{
		title,
		fmt.Sprintf("Period: %s to %s", s.From.Format("2006-01-02 15:04"), s.To.Format("2006-01-02 15:04")),
		fmt.Sprintf("Transactions: %d", s.TransactionCount),
		fmt.Sprintf("Items sold (lines): %d", s.LineCount),
		fmt.Sprintf("Revenue: %s %s", currency, receipt.FormatMoney(s.TotalRevenue)),
		fmt.Sprintf("Profit: %s %s", currency, receipt.FormatMoney(s.TotalProfit)),
	}
	return strings.Join(lines, "\n") + "\n"
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id < 1 {
		return 0, store.Invalid("id", fmt.Sprintf("%q is not a valid id", raw))
	}
	return id, nil
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func writeError(w http.ResponseWriter, status int, err error) {
	// 5xx bodies stay generic; the cause is logged instead.
	msg := err.Error()
	if status >= 500 {
		log.Error().Err(err).Int("status", status).Msg("internal error")
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
