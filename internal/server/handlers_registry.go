package server

import (
	"net/http"

	"github.com/bobmcallan/tally/internal/models"
	"github.com/shopspring/decimal"
)

type nameRequest struct {
	Name string `json:"name"`
}

// --- Category handlers ---

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodPost) {
		return
	}
	ownerID, ok := s.requireOwner(w, r)
	if !ok {
		return
	}

	if r.Method == http.MethodGet {
		categories, err := s.app.RegistryService.ListCategories(r.Context(), ownerID)
		if err != nil {
			s.WriteServiceError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{"categories": categories})
		return
	}

	var req nameRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	cat, err := s.app.RegistryService.CreateCategory(r.Context(), ownerID, req.Name)
	if err != nil {
		s.WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, cat)
}

func (s *Server) handleCategory(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodPut, http.MethodDelete) {
		return
	}
	ownerID, ok := s.requireOwner(w, r)
	if !ok {
		return
	}

	if r.Method == http.MethodDelete {
		if err := s.app.RegistryService.DeleteCategory(r.Context(), ownerID, id); err != nil {
			s.WriteServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	var req nameRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	cat, err := s.app.RegistryService.RenameCategory(r.Context(), ownerID, id, req.Name)
	if err != nil {
		s.WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, cat)
}

func (s *Server) handleInvestmentCategories(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodPost) {
		return
	}
	ownerID, ok := s.requireOwner(w, r)
	if !ok {
		return
	}

	if r.Method == http.MethodGet {
		categories, err := s.app.RegistryService.ListInvestmentCategories(r.Context(), ownerID)
		if err != nil {
			s.WriteServiceError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{"categories": categories})
		return
	}

	var req nameRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	cat, err := s.app.RegistryService.CreateInvestmentCategory(r.Context(), ownerID, req.Name)
	if err != nil {
		s.WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, cat)
}

func (s *Server) handleInvestmentCategory(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodPut, http.MethodDelete) {
		return
	}
	ownerID, ok := s.requireOwner(w, r)
	if !ok {
		return
	}

	if r.Method == http.MethodDelete {
		if err := s.app.RegistryService.DeleteInvestmentCategory(r.Context(), ownerID, id); err != nil {
			s.WriteServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	var req nameRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	cat, err := s.app.RegistryService.RenameInvestmentCategory(r.Context(), ownerID, id, req.Name)
	if err != nil {
		s.WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, cat)
}

// --- Payment mode handlers ---

type paymentModeRequest struct {
	Name    string          `json:"name"`
	Type    string          `json:"type"`
	Balance decimal.Decimal `json:"balance"`
}

func (s *Server) handlePaymentModes(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodPost) {
		return
	}
	ownerID, ok := s.requireOwner(w, r)
	if !ok {
		return
	}

	if r.Method == http.MethodGet {
		modes, err := s.app.RegistryService.ListPaymentModes(r.Context(), ownerID)
		if err != nil {
			s.WriteServiceError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{"paymentModes": modes})
		return
	}

	var req paymentModeRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	mode, err := s.app.RegistryService.CreatePaymentMode(r.Context(), ownerID, req.Name, req.Type, req.Balance)
	if err != nil {
		s.WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, mode)
}

func (s *Server) handlePaymentMode(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodPut, http.MethodDelete) {
		return
	}
	ownerID, ok := s.requireOwner(w, r)
	if !ok {
		return
	}

	if r.Method == http.MethodDelete {
		if err := s.app.RegistryService.DeletePaymentMode(r.Context(), ownerID, id); err != nil {
			s.WriteServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	var req paymentModeRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	mode, err := s.app.RegistryService.UpdatePaymentMode(r.Context(), ownerID, id, req.Name, req.Type)
	if err != nil {
		s.WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, mode)
}

// --- Goal handlers ---

type goalRequest struct {
	Name         string          `json:"name"`
	Category     string          `json:"category"`
	TargetAmount decimal.Decimal `json:"targetAmount"`
	TargetDate   string          `json:"targetDate"`
}

func (req goalRequest) goal() models.InvestmentGoal {
	return models.InvestmentGoal{
		Name:         req.Name,
		Category:     req.Category,
		TargetAmount: req.TargetAmount,
		TargetDate:   req.TargetDate,
	}
}

func (s *Server) handleGoals(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodPost) {
		return
	}
	ownerID, ok := s.requireOwner(w, r)
	if !ok {
		return
	}

	if r.Method == http.MethodGet {
		goals, err := s.app.RegistryService.ListGoals(r.Context(), ownerID)
		if err != nil {
			s.WriteServiceError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{"goals": goals})
		return
	}

	var req goalRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	goal, err := s.app.RegistryService.CreateGoal(r.Context(), ownerID, req.goal())
	if err != nil {
		s.WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, goal)
}

func (s *Server) handleGoal(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodPut, http.MethodDelete) {
		return
	}
	ownerID, ok := s.requireOwner(w, r)
	if !ok {
		return
	}

	if r.Method == http.MethodDelete {
		if err := s.app.RegistryService.DeleteGoal(r.Context(), ownerID, id); err != nil {
			s.WriteServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	var req goalRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	goal, err := s.app.RegistryService.UpdateGoal(r.Context(), ownerID, id, req.goal())
	if err != nil {
		s.WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, goal)
}
