package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loungebackend/internal/billing"
	"loungebackend/internal/clock"
	"loungebackend/internal/inventory"
	"loungebackend/internal/ledger"
	"loungebackend/internal/middleware"
	"loungebackend/internal/security"
)

type harness struct {
	t      *testing.T
	server *httptest.Server
	clock  *clock.Fake
	stock  *inventory.Service
	ledger *ledger.Ledger
	token  string
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	stock := inventory.NewService()
	require.NoError(t, stock.Add(inventory.Item{Name: "Cola", Price: decimal.NewFromInt(10), Quantity: 5}))
	l := ledger.New()
	fake := clock.NewFake(time.Date(2026, 10, 15, 16, 50, 0, 0, time.UTC))
	cfg := billing.DefaultConfig()
	cfg.Location = time.UTC
	engine := billing.New(cfg, stock, l, billing.WithClock(fake))
	t.Cleanup(engine.Close)

	sessions := security.NewSessions(time.Hour)
	srv := httptest.NewServer(NewServer(engine, stock, l, sessions, "L.E").Routes())
	t.Cleanup(srv.Close)

	h := &harness{t: t, server: srv, clock: fake, stock: stock, ledger: l}
	resp := h.do(http.MethodPost, "/api/auth/signin", map[string]string{"email": "desk@lounge.test", "password": "abcd"})
	require.Equal(t, http.StatusOK, resp.status)
	var sess security.Session
	resp.decode(&sess)
	h.token = sess.Token
	return h
}

type response struct {
	t      *testing.T
	status int
	body   []byte
}

func (r response) decode(v interface{}) {
	r.t.Helper()
	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(r.t, json.Unmarshal(r.body, &env), string(r.body))
	require.True(r.t, env.Success, string(r.body))
	require.NoError(r.t, json.Unmarshal(env.Data, v))
}

func (r response) apiError() middleware.APIError {
	r.t.Helper()
	var e middleware.APIError
	require.NoError(r.t, json.Unmarshal(r.body, &e), string(r.body))
	return e
}

func (h *harness) do(method, path string, body interface{}) response {
	h.t.Helper()

	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(h.t, err)
		rdr = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, h.server.URL+path, rdr)
	require.NoError(h.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if h.token != "" {
		req.Header.Set(middleware.SessionHeader, h.token)
	}

	resp, err := h.server.Client().Do(req)
	require.NoError(h.t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(h.t, err)
	return response{t: h.t, status: resp.StatusCode, body: raw}
}

func TestGuestFlowOverHTTP(t *testing.T) {
	h := newHarness(t)

	resp := h.do(http.MethodPost, "/api/guests", nil)
	require.Equal(t, http.StatusCreated, resp.status)
	var rec billing.GuestRecord
	resp.decode(&rec)
	assert.Equal(t, 1, rec.GuestNumber)

	resp = h.do(http.MethodPost, "/api/guests/1/timers/room/start", nil)
	assert.Equal(t, http.StatusConflict, resp.status)
	assert.Equal(t, "precondition_failed", resp.apiError().Code)

	resp = h.do(http.MethodPut, "/api/guests/1/room", map[string]string{"room": "Room 2"})
	require.Equal(t, http.StatusOK, resp.status)

	resp = h.do(http.MethodPost, "/api/guests/1/timers/room/start", nil)
	require.Equal(t, http.StatusOK, resp.status)
	h.clock.Advance(120 * time.Second)
	resp = h.do(http.MethodPost, "/api/guests/1/timers/ps/stop", nil)
	require.Equal(t, http.StatusOK, resp.status)

	for i := 0; i < 2; i++ {
		resp = h.do(http.MethodPost, "/api/guests/1/bar", map[string]string{"item": "Cola"})
		require.Equal(t, http.StatusOK, resp.status)
	}

	resp = h.do(http.MethodGet, "/api/guests/1", nil)
	require.Equal(t, http.StatusOK, resp.status)
	var view struct {
		TotalText   string `json:"total_text"`
		RoomElapsed string `json:"room_elapsed"`
		BarSummary  string `json:"bar_summary"`
	}
	resp.decode(&view)
	assert.Equal(t, "23.40", view.TotalText)
	assert.Equal(t, "2:00", view.RoomElapsed)
	assert.Equal(t, "Cola(2)", view.BarSummary)

	resp = h.do(http.MethodGet, "/api/guests/1/receipt", nil)
	require.Equal(t, http.StatusOK, resp.status)
	assert.Contains(t, string(resp.body), "23.40 L.E")

	resp = h.do(http.MethodPost, "/api/guests/1/settle", nil)
	require.Equal(t, http.StatusOK, resp.status)
	var settled struct {
		Settled bool   `json:"settled"`
		Total   string `json:"total"`
	}
	resp.decode(&settled)
	assert.True(t, settled.Settled)
	assert.Equal(t, "23.40", settled.Total)

	resp = h.do(http.MethodPost, "/api/guests/1/settle", nil)
	require.Equal(t, http.StatusOK, resp.status)
	resp.decode(&settled)
	assert.False(t, settled.Settled)
	assert.Len(t, h.ledger.List(), 1)

	resp = h.do(http.MethodGet, "/api/income", nil)
	var income struct {
		Total  string `json:"total"`
		PSText string `json:"ps_income_text"`
	}
	resp.decode(&income)
	assert.Equal(t, "23.40", income.Total)
	assert.Equal(t, "3.40", income.PSText)

	resp = h.do(http.MethodGet, "/api/history/0/receipt", nil)
	require.Equal(t, http.StatusOK, resp.status)
	assert.Contains(t, string(resp.body), "Room 2")
}

func TestBilliardContentionOverHTTP(t *testing.T) {
	h := newHarness(t)
	h.do(http.MethodPost, "/api/guests", nil)
	h.do(http.MethodPost, "/api/guests", nil)

	resp := h.do(http.MethodPost, "/api/guests/1/timers/billiard/toggle", nil)
	require.Equal(t, http.StatusOK, resp.status)

	resp = h.do(http.MethodPost, "/api/guests/2/timers/billiard/start", nil)
	assert.Equal(t, http.StatusConflict, resp.status)

	resp = h.do(http.MethodPost, "/api/guests/2/timers/darts/start", nil)
	assert.Equal(t, http.StatusBadRequest, resp.status)
	resp = h.do(http.MethodPost, "/api/guests/2/timers/billiard/pause", nil)
	assert.Equal(t, http.StatusBadRequest, resp.status)
}

func TestMissingGuest(t *testing.T) {
	h := newHarness(t)

	resp := h.do(http.MethodGet, "/api/guests/9", nil)
	assert.Equal(t, http.StatusNotFound, resp.status)

	resp = h.do(http.MethodDelete, "/api/guests/9", nil)
	require.Equal(t, http.StatusOK, resp.status)
	var removed map[string]bool
	resp.decode(&removed)
	assert.False(t, removed["removed"])

	resp = h.do(http.MethodGet, "/api/guests/abc", nil)
	assert.Equal(t, http.StatusBadRequest, resp.status)
}

func TestInventoryEndpoints(t *testing.T) {
	h := newHarness(t)

	resp := h.do(http.MethodPost, "/api/inventory", map[string]interface{}{"name": "Chips", "price": 7.5, "quantity": 4})
	require.Equal(t, http.StatusCreated, resp.status)
	var item inventory.Item
	resp.decode(&item)
	assert.Equal(t, 4, item.OriginalStock)

	resp = h.do(http.MethodPost, "/api/inventory", map[string]interface{}{"name": "Chips", "price": 1, "quantity": 1})
	assert.Equal(t, http.StatusConflict, resp.status)
	resp = h.do(http.MethodPost, "/api/inventory", map[string]interface{}{"name": "Tea", "price": 0, "quantity": 1})
	assert.Equal(t, http.StatusBadRequest, resp.status)

	resp = h.do(http.MethodPut, "/api/inventory/Chips/price", map[string]interface{}{"price": "8.25"})
	require.Equal(t, http.StatusOK, resp.status)
	got, ok := h.stock.Get("Chips")
	require.True(t, ok)
	assert.Equal(t, "8.25", got.Price.String())

	resp = h.do(http.MethodDelete, "/api/inventory/Water", nil)
	assert.Equal(t, http.StatusNotFound, resp.status)

	resp = h.do(http.MethodDelete, "/api/inventory/index/0", nil)
	require.Equal(t, http.StatusOK, resp.status)
	var items []inventory.Item
	resp.decode(&items)
	require.Len(t, items, 1)
	assert.Equal(t, "Chips", items[0].Name)
}

func TestHistoryEndpoints(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < 2; i++ {
		guest := "/api/guests/" + strconv.Itoa(i+1)
		h.do(http.MethodPost, "/api/guests", nil)
		h.do(http.MethodPost, guest+"/bar", map[string]string{"item": "Cola"})
		h.do(http.MethodPost, guest+"/settle", nil)
	}
	require.Len(t, h.ledger.List(), 2)

	resp := h.do(http.MethodDelete, "/api/history/5", nil)
	assert.Equal(t, http.StatusNotFound, resp.status)

	resp = h.do(http.MethodDelete, "/api/history/0", nil)
	require.Equal(t, http.StatusOK, resp.status)
	assert.Len(t, h.ledger.List(), 1)

	resp = h.do(http.MethodDelete, "/api/history", nil)
	require.Equal(t, http.StatusOK, resp.status)
	assert.Empty(t, h.ledger.List())
	assert.Equal(t, "20.00", h.ledger.Income().Bar.StringFixed(2), "income survives history removal")
}

func TestRequiresSession(t *testing.T) {
	h := newHarness(t)
	h.token = ""

	resp := h.do(http.MethodGet, "/api/guests", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.status)

	resp = h.do(http.MethodPost, "/api/auth/signup", map[string]string{"email": "a@lounge.test", "password": "abcd", "confirm_password": "abce"})
	assert.Equal(t, http.StatusBadRequest, resp.status)
}

func TestSignOut(t *testing.T) {
	h := newHarness(t)

	resp := h.do(http.MethodPost, "/api/auth/signout", nil)
	require.Equal(t, http.StatusOK, resp.status)

	resp = h.do(http.MethodGet, "/api/guests", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.status)
}

func TestStats(t *testing.T) {
	h := newHarness(t)
	h.do(http.MethodPost, "/api/guests", nil)
	h.do(http.MethodPost, "/api/guests", nil)
	require.Equal(t, http.StatusOK, h.do(http.MethodPost, "/api/guests/2/timers/billiard/start", nil).status)

	var stats struct {
		ActiveGuests   int                    `json:"active_guests"`
		BilliardHolder int                    `json:"billiard_holder"`
		RoomRate       string                 `json:"room_rate"`
		Rooms          []string               `json:"rooms"`
		Inventory      map[string]interface{} `json:"inventory"`
		IncomeTotal    string                 `json:"income_total"`
	}
	h.do(http.MethodGet, "/api/stats", nil).decode(&stats)

	assert.Equal(t, 2, stats.ActiveGuests)
	assert.Equal(t, 2, stats.BilliardHolder)
	assert.Equal(t, "1.7", stats.RoomRate)
	assert.Len(t, stats.Rooms, 6)
	assert.EqualValues(t, 1, stats.Inventory["items_count"])
	assert.Equal(t, "0.00", stats.IncomeTotal)
}
