package api

import (
	"net/http"

	"loungebackend/internal/ledger"
	"loungebackend/internal/middleware"
	"loungebackend/internal/receipt"
)

func (s *Server) listHistory(w http.ResponseWriter, r *http.Request) {
	middleware.WriteAPISuccess(w, r, s.ledger.List())
}

func (s *Server) removeHistoryEntry(w http.ResponseWriter, r *http.Request) {
	index, ok := intPathValue(r, "index")
	if !ok {
		writeBadRequest(w, r, "index must be an integer")
		return
	}
	if err := s.ledger.RemoveAt(index); err != nil {
		writeError(w, r, err)
		return
	}
	middleware.WriteAPISuccess(w, r, s.ledger.List())
}

func (s *Server) clearHistory(w http.ResponseWriter, r *http.Request) {
	s.ledger.Clear()
	middleware.WriteAPISuccess(w, r, []ledger.Entry{})
}

func (s *Server) historyReceipt(w http.ResponseWriter, r *http.Request) {
	index, ok := intPathValue(r, "index")
	if !ok {
		writeBadRequest(w, r, "index must be an integer")
		return
	}

	entries := s.ledger.List()
	if index < 0 || index >= len(entries) {
		writeError(w, r, ledger.ErrEntryNotFound)
		return
	}
	s.writeReceipt(w, r, receipt.FromEntry(entries[index], s.currency))
}

type incomeView struct {
	ledger.Income
	Total        string `json:"total"`
	PSText       string `json:"ps_income_text"`
	BilliardText string `json:"billiardo_income_text"`
	BarText      string `json:"bar_income_text"`
}

func (s *Server) getIncome(w http.ResponseWriter, r *http.Request) {
	income := s.ledger.Income()
	middleware.WriteAPISuccess(w, r, incomeView{
		Income:       income,
		Total:        income.Total().StringFixed(2),
		PSText:       income.PS.StringFixed(2),
		BilliardText: income.Billiard.StringFixed(2),
		BarText:      income.Bar.StringFixed(2),
	})
}

type statsView struct {
	ActiveGuests   int                    `json:"active_guests"`
	BilliardHolder int                    `json:"billiard_holder,omitempty"`
	RoomRate       string                 `json:"room_rate"`
	BilliardRate   string                 `json:"billiard_rate"`
	Rooms          []string               `json:"rooms"`
	Inventory      map[string]interface{} `json:"inventory"`
	HistoryEntries int                    `json:"history_entries"`
	IncomeTotal    string                 `json:"income_total"`
}

// getStats is a front desk overview for monitoring.
func (s *Server) getStats(w http.ResponseWriter, r *http.Request) {
	cfg := s.engine.Config()
	holder, _ := s.engine.BilliardHolder()

	middleware.WriteAPISuccess(w, r, statsView{
		ActiveGuests:   len(s.engine.Records()),
		BilliardHolder: holder,
		RoomRate:       cfg.RoomRate.String(),
		BilliardRate:   cfg.BilliardRate.String(),
		Rooms:          cfg.Rooms,
		Inventory:      s.stock.GetStats(),
		HistoryEntries: len(s.ledger.List()),
		IncomeTotal:    s.ledger.Income().Total().StringFixed(2),
	})
}
