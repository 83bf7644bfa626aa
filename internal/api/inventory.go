package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"loungebackend/internal/inventory"
	"loungebackend/internal/middleware"
)

func (s *Server) listInventory(w http.ResponseWriter, r *http.Request) {
	middleware.WriteAPISuccess(w, r, s.stock.List())
}

type addItemRequest struct {
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

func (s *Server) addInventoryItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := middleware.ParseJSONRequest(r, &req); err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}

	item := inventory.Item{Name: req.Name, Price: req.Price, Quantity: req.Quantity}
	if err := s.stock.Add(item); err != nil {
		writeError(w, r, err)
		return
	}

	added, _ := s.stock.Get(strings.TrimSpace(item.Name))
	middleware.WriteAPIResponse(w, r, http.StatusCreated, added)
}

func (s *Server) removeInventoryItem(w http.ResponseWriter, r *http.Request) {
	if err := s.stock.Remove(r.PathValue("name")); err != nil {
		writeInventoryError(w, r, err)
		return
	}
	middleware.WriteAPISuccess(w, r, s.stock.List())
}

func (s *Server) removeInventoryItemAt(w http.ResponseWriter, r *http.Request) {
	index, ok := intPathValue(r, "index")
	if !ok {
		writeBadRequest(w, r, "index must be an integer")
		return
	}
	if err := s.stock.RemoveAt(index); err != nil {
		writeInventoryError(w, r, err)
		return
	}
	middleware.WriteAPISuccess(w, r, s.stock.List())
}

type setPriceRequest struct {
	Price decimal.Decimal `json:"price"`
}

func (s *Server) setInventoryPrice(w http.ResponseWriter, r *http.Request) {
	var req setPriceRequest
	if err := middleware.ParseJSONRequest(r, &req); err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}

	name := r.PathValue("name")
	if err := s.stock.SetPrice(name, req.Price); err != nil {
		writeInventoryError(w, r, err)
		return
	}
	item, _ := s.stock.Get(name)
	middleware.WriteAPISuccess(w, r, item)
}

// writeInventoryError reports a missing catalog item as 404. On the guest
// endpoints the same error is a rejected sale.
func writeInventoryError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, inventory.ErrItemNotFound) {
		middleware.WriteAPIError(w, r, http.StatusNotFound, "item_not_found", err.Error(), "")
		return
	}
	writeError(w, r, err)
}
