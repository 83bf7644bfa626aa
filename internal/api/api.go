// Package api exposes the billing engine, inventory and ledger over HTTP.
package api

import (
	"errors"
	"net/http"
	"strconv"

	"loungebackend/internal/billing"
	"loungebackend/internal/inventory"
	"loungebackend/internal/ledger"
	"loungebackend/internal/logger"
	"loungebackend/internal/middleware"
	"loungebackend/internal/security"
)

// Server holds the handlers' collaborators.
type Server struct {
	engine   *billing.Engine
	stock    *inventory.Service
	ledger   *ledger.Ledger
	sessions *security.Sessions
	currency string
}

func NewServer(engine *billing.Engine, stock *inventory.Service, l *ledger.Ledger, sessions *security.Sessions, currency string) *Server {
	return &Server{
		engine:   engine,
		stock:    stock,
		ledger:   l,
		sessions: sessions,
		currency: currency,
	}
}

// Routes registers every endpoint on a new mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	gated := middleware.Gated(s.sessions)
	public := middleware.Public

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	mux.HandleFunc("POST /api/auth/signin", public(s.signIn))
	mux.HandleFunc("POST /api/auth/signup", public(s.signUp))
	mux.HandleFunc("POST /api/auth/signout", gated(s.signOut))

	mux.HandleFunc("GET /api/guests", gated(s.listGuests))
	mux.HandleFunc("POST /api/guests", gated(s.addGuest))
	mux.HandleFunc("GET /api/guests/{number}", gated(s.getGuest))
	mux.HandleFunc("DELETE /api/guests/{number}", gated(s.removeGuest))
	mux.HandleFunc("GET /api/guests/{number}/rooms", gated(s.roomOptions))
	mux.HandleFunc("PUT /api/guests/{number}/room", gated(s.selectRoom))
	mux.HandleFunc("POST /api/guests/{number}/timers/{service}/{action}", gated(s.timerAction))
	mux.HandleFunc("POST /api/guests/{number}/bar", gated(s.addBarItem))
	mux.HandleFunc("DELETE /api/guests/{number}/bar/last", gated(s.removeLastBarItem))
	mux.HandleFunc("GET /api/guests/{number}/receipt", gated(s.guestReceipt))
	mux.HandleFunc("POST /api/guests/{number}/settle", gated(s.settleGuest))

	mux.HandleFunc("GET /api/inventory", gated(s.listInventory))
	mux.HandleFunc("POST /api/inventory", gated(s.addInventoryItem))
	mux.HandleFunc("DELETE /api/inventory/{name}", gated(s.removeInventoryItem))
	mux.HandleFunc("DELETE /api/inventory/index/{index}", gated(s.removeInventoryItemAt))
	mux.HandleFunc("PUT /api/inventory/{name}/price", gated(s.setInventoryPrice))

	mux.HandleFunc("GET /api/history", gated(s.listHistory))
	mux.HandleFunc("DELETE /api/history", gated(s.clearHistory))
	mux.HandleFunc("DELETE /api/history/{index}", gated(s.removeHistoryEntry))
	mux.HandleFunc("GET /api/history/{index}/receipt", gated(s.historyReceipt))

	mux.HandleFunc("GET /api/income", gated(s.getIncome))
	mux.HandleFunc("GET /api/stats", gated(s.getStats))

	return mux
}

// writeError maps domain errors onto HTTP statuses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case billing.IsPrecondition(err):
		middleware.WriteAPIError(w, r, http.StatusConflict, "precondition_failed", err.Error(), "")
	case errors.Is(err, billing.ErrGuestNotFound):
		middleware.WriteAPIError(w, r, http.StatusNotFound, "guest_not_found", err.Error(), "")
	case errors.Is(err, ledger.ErrEntryNotFound):
		middleware.WriteAPIError(w, r, http.StatusNotFound, "entry_not_found", err.Error(), "")
	case errors.Is(err, inventory.ErrDuplicateItem):
		middleware.WriteAPIError(w, r, http.StatusConflict, "duplicate_item", err.Error(), "")
	case errors.Is(err, inventory.ErrInvalidItem),
		errors.Is(err, ledger.ErrInvalidEntry),
		errors.Is(err, security.ErrInvalidCredentials):
		middleware.WriteAPIError(w, r, http.StatusBadRequest, "invalid_request", err.Error(), "")
	case errors.Is(err, billing.ErrEngineClosed):
		middleware.WriteAPIError(w, r, http.StatusServiceUnavailable, "shutting_down", err.Error(), "")
	default:
		logger.LogError("Request %s %s failed: %v", r.Method, r.URL.Path, err)
		middleware.WriteAPIError(w, r, http.StatusInternalServerError, "internal_error", "An internal error occurred", "")
	}
}

func writeBadRequest(w http.ResponseWriter, r *http.Request, details string) {
	middleware.WriteAPIError(w, r, http.StatusBadRequest, "invalid_request", "Invalid request", details)
}

// intPathValue parses a numeric path segment.
func intPathValue(r *http.Request, name string) (int, bool) {
	n, err := strconv.Atoi(r.PathValue(name))
	if err != nil {
		return 0, false
	}
	return n, true
}
