package api

import (
	"errors"
	"net/http"

	"loungebackend/internal/billing"
	"loungebackend/internal/ledger"
	"loungebackend/internal/middleware"
	"loungebackend/internal/receipt"
)

// guestView is a quote plus the rounded figures the front desk displays.
type guestView struct {
	billing.Quote
	RoomElapsed     string `json:"room_elapsed"`
	BilliardElapsed string `json:"billiard_elapsed"`
	BarSummary      string `json:"bar_summary"`
	RoomCostText    string `json:"room_cost_text"`
	BilliardText    string `json:"billiard_cost_text"`
	BarCostText     string `json:"bar_cost_text"`
	TotalText       string `json:"total_text"`
}

func newGuestView(q billing.Quote) guestView {
	return guestView{
		Quote:           q,
		RoomElapsed:     q.RoomTimer.Elapsed(),
		BilliardElapsed: q.Billiard.Elapsed(),
		BarSummary:      q.TabSummary(),
		RoomCostText:    q.RoomCost.StringFixed(2),
		BilliardText:    q.BilliardCost.StringFixed(2),
		BarCostText:     q.BarCost.StringFixed(2),
		TotalText:       q.Total.StringFixed(2),
	}
}

func (s *Server) listGuests(w http.ResponseWriter, r *http.Request) {
	quotes := s.engine.Guests()
	views := make([]guestView, 0, len(quotes))
	for _, q := range quotes {
		views = append(views, newGuestView(q))
	}
	middleware.WriteAPISuccess(w, r, views)
}

func (s *Server) addGuest(w http.ResponseWriter, r *http.Request) {
	rec, err := s.engine.AddGuest()
	if err != nil {
		writeError(w, r, err)
		return
	}
	middleware.WriteAPIResponse(w, r, http.StatusCreated, rec)
}

func (s *Server) getGuest(w http.ResponseWriter, r *http.Request) {
	number, ok := intPathValue(r, "number")
	if !ok {
		writeBadRequest(w, r, "guest number must be an integer")
		return
	}

	q, err := s.engine.Quote(number)
	if err != nil {
		writeError(w, r, err)
		return
	}
	middleware.WriteAPISuccess(w, r, newGuestView(q))
}

// removeGuest treats an already-removed guest as success.
func (s *Server) removeGuest(w http.ResponseWriter, r *http.Request) {
	number, ok := intPathValue(r, "number")
	if !ok {
		writeBadRequest(w, r, "guest number must be an integer")
		return
	}

	err := s.engine.RemoveGuest(number)
	if errors.Is(err, billing.ErrGuestNotFound) {
		middleware.WriteAPISuccess(w, r, map[string]bool{"removed": false})
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	middleware.WriteAPISuccess(w, r, map[string]bool{"removed": true})
}

func (s *Server) roomOptions(w http.ResponseWriter, r *http.Request) {
	number, ok := intPathValue(r, "number")
	if !ok {
		writeBadRequest(w, r, "guest number must be an integer")
		return
	}

	opts, err := s.engine.RoomOptions(number)
	if err != nil {
		writeError(w, r, err)
		return
	}
	middleware.WriteAPISuccess(w, r, opts)
}

type selectRoomRequest struct {
	Room string `json:"room"`
}

func (s *Server) selectRoom(w http.ResponseWriter, r *http.Request) {
	number, ok := intPathValue(r, "number")
	if !ok {
		writeBadRequest(w, r, "guest number must be an integer")
		return
	}
	var req selectRoomRequest
	if err := middleware.ParseJSONRequest(r, &req); err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}

	if err := s.engine.SelectRoom(number, req.Room); err != nil {
		writeError(w, r, err)
		return
	}
	middleware.WriteAPISuccess(w, r, map[string]string{"room": req.Room})
}

func (s *Server) timerAction(w http.ResponseWriter, r *http.Request) {
	number, ok := intPathValue(r, "number")
	if !ok {
		writeBadRequest(w, r, "guest number must be an integer")
		return
	}
	svc, err := billing.ParseService(r.PathValue("service"))
	if err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}

	var snap billing.TimerSnapshot
	switch r.PathValue("action") {
	case "start":
		snap, err = s.engine.StartTimer(number, svc)
	case "stop":
		snap, err = s.engine.StopTimer(number, svc)
	case "toggle":
		snap, err = s.engine.ToggleTimer(number, svc)
	default:
		writeBadRequest(w, r, "action must be start, stop or toggle")
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	middleware.WriteAPISuccess(w, r, map[string]interface{}{
		"service": svc.String(),
		"timer":   snap,
		"elapsed": snap.Elapsed(),
	})
}

type barItemRequest struct {
	Item string `json:"item"`
}

func (s *Server) addBarItem(w http.ResponseWriter, r *http.Request) {
	number, ok := intPathValue(r, "number")
	if !ok {
		writeBadRequest(w, r, "guest number must be an integer")
		return
	}
	var req barItemRequest
	if err := middleware.ParseJSONRequest(r, &req); err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}

	tab, err := s.engine.AddBarItem(number, req.Item)
	if err != nil {
		writeError(w, r, err)
		return
	}
	middleware.WriteAPISuccess(w, r, tab)
}

func (s *Server) removeLastBarItem(w http.ResponseWriter, r *http.Request) {
	number, ok := intPathValue(r, "number")
	if !ok {
		writeBadRequest(w, r, "guest number must be an integer")
		return
	}

	tab, err := s.engine.RemoveLastBarItem(number)
	if err != nil {
		writeError(w, r, err)
		return
	}
	middleware.WriteAPISuccess(w, r, tab)
}

func (s *Server) guestReceipt(w http.ResponseWriter, r *http.Request) {
	number, ok := intPathValue(r, "number")
	if !ok {
		writeBadRequest(w, r, "guest number must be an integer")
		return
	}

	q, err := s.engine.Quote(number)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.writeReceipt(w, r, receipt.FromQuote(q, s.currency))
}

type settleResponse struct {
	Settled bool          `json:"settled"`
	Entry   *ledger.Entry `json:"entry,omitempty"`
	Total   string        `json:"total,omitempty"`
}

// settleGuest treats an already-settled guest as a no-op.
func (s *Server) settleGuest(w http.ResponseWriter, r *http.Request) {
	number, ok := intPathValue(r, "number")
	if !ok {
		writeBadRequest(w, r, "guest number must be an integer")
		return
	}

	entry, settled, err := s.engine.SettleIfPresent(number)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !settled {
		middleware.WriteAPISuccess(w, r, settleResponse{Settled: false})
		return
	}
	middleware.WriteAPISuccess(w, r, settleResponse{
		Settled: true,
		Entry:   &entry,
		Total:   entry.Total.StringFixed(2),
	})
}

func (s *Server) writeReceipt(w http.ResponseWriter, r *http.Request, rc receipt.Receipt) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := receipt.Render(w, rc); err != nil {
		writeError(w, r, err)
	}
}
