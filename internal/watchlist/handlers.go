package watchlist

import (
	"net/http"

	"github.com/meditrade/trading-engine/internal/httpx"
	"github.com/meditrade/trading-engine/internal/model"
)

// SymbolRequest is the body of add, remove and toggle.
type SymbolRequest struct {
	Symbol string `json:"symbol"`
}

// ReorderRequest is the body of reorder.
type ReorderRequest struct {
	Symbols []string `json:"symbols"`
}

// Response is the body of every watchlist endpoint.
type Response struct {
	Watchlist *model.Watchlist `json:"watchlist"`
	Added     *bool            `json:"added,omitempty"`
	Message   string           `json:"message,omitempty"`
}

// GetWatchlist handles GET /api/v1/watchlist
func (s *Service) GetWatchlist(w http.ResponseWriter, r *http.Request) {
	wl, err := s.Get(r.Context(), httpx.UserID(r.Context()))
	if err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, Response{Watchlist: wl})
}

// AddToWatchlist handles POST /api/v1/watchlist/add
func (s *Service) AddToWatchlist(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeSymbol(w, r)
	if !ok {
		return
	}
	wl, err := s.AddSymbol(r.Context(), httpx.UserID(r.Context()), req.Symbol)
	if err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, Response{Watchlist: wl, Message: "added to watchlist"})
}

// RemoveFromWatchlist handles POST /api/v1/watchlist/remove
func (s *Service) RemoveFromWatchlist(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeSymbol(w, r)
	if !ok {
		return
	}
	wl, err := s.RemoveSymbol(r.Context(), httpx.UserID(r.Context()), req.Symbol)
	if err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, Response{Watchlist: wl, Message: "removed from watchlist"})
}

// ToggleWatchlist handles POST /api/v1/watchlist/toggle
func (s *Service) ToggleWatchlist(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeSymbol(w, r)
	if !ok {
		return
	}
	wl, added, err := s.ToggleSymbol(r.Context(), httpx.UserID(r.Context()), req.Symbol)
	if err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}
	msg := "removed from watchlist"
	if added {
		msg = "added to watchlist"
	}
	httpx.WriteJSON(w, http.StatusOK, Response{Watchlist: wl, Added: &added, Message: msg})
}

// ReorderWatchlist handles PUT /api/v1/watchlist/reorder
func (s *Service) ReorderWatchlist(w http.ResponseWriter, r *http.Request) {
	var req ReorderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}
	if req.Symbols == nil {
		httpx.WriteDomainError(w, r, &model.ValidationError{Field: "symbols", Message: "symbols array is required"})
		return
	}
	wl, err := s.ReorderSymbols(r.Context(), httpx.UserID(r.Context()), req.Symbols)
	if err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, Response{Watchlist: wl, Message: "Watchlist reordered"})
}

func decodeSymbol(w http.ResponseWriter, r *http.Request) (SymbolRequest, bool) {
	var req SymbolRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteDomainError(w, r, err)
		return req, false
	}
	return req, true
}
