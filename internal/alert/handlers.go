package alert

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/meditrade/trading-engine/internal/httpx"
	"github.com/meditrade/trading-engine/internal/model"
)

// ListResponse wraps a list of alerts with its length.
type ListResponse struct {
	Count int                `json:"count"`
	Data  []model.PriceAlert `json:"data"`
}

// CheckRequest is the body of POST /alerts/check.
type CheckRequest struct {
	Prices []struct {
		Symbol string          `json:"symbol"`
		Price  decimal.Decimal `json:"price"`
	} `json:"prices"`
}

// CheckResponse lists the alerts a check fired.
type CheckResponse struct {
	TriggeredCount int         `json:"triggered_count"`
	Data           []Triggered `json:"data"`
}

// ListAlerts handles GET /api/v1/alerts
func (s *Service) ListAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := s.store.ListAlertsByUser(r.Context(), httpx.UserID(r.Context()))
	if err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}
	if alerts == nil {
		alerts = []model.PriceAlert{}
	}
	httpx.WriteJSON(w, http.StatusOK, ListResponse{Count: len(alerts), Data: alerts})
}

// CreateAlert handles POST /api/v1/alerts
func (s *Service) CreateAlert(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}
	a, err := s.Create(r.Context(), httpx.UserID(r.Context()), in)
	if err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, a)
}

// DeleteAlert handles DELETE /api/v1/alerts/{alertID}
func (s *Service) DeleteAlert(w http.ResponseWriter, r *http.Request) {
	if err := s.Delete(r.Context(), httpx.UserID(r.Context()), chi.URLParam(r, "alertID")); err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"message": "Alert deleted"})
}

// TriggeredAlerts handles GET /api/v1/alerts/triggered
func (s *Service) TriggeredAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := s.TriggeredFor(r.Context(), httpx.UserID(r.Context()))
	if err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, ListResponse{Count: len(alerts), Data: alerts})
}

// CheckAlerts handles POST /api/v1/alerts/check
func (s *Service) CheckAlerts(w http.ResponseWriter, r *http.Request) {
	var req CheckRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}
	if req.Prices == nil {
		httpx.WriteDomainError(w, r, &model.ValidationError{Field: "prices", Message: "prices array is required"})
		return
	}
	quotes := make([]model.Quote, 0, len(req.Prices))
	for _, p := range req.Prices {
		quotes = append(quotes, model.Quote{Symbol: p.Symbol, Price: p.Price})
	}
	fired, err := s.CheckQuotes(r.Context(), quotes)
	if err != nil {
		httpx.WriteDomainError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, CheckResponse{TriggeredCount: len(fired), Data: fired})
}
