package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/fundflow-dev/fundflow/internal/ledger"
	"github.com/fundflow-dev/fundflow/internal/model"
)

type createGoalRequest struct {
	Name                  string          `json:"name"`
	TargetAmount          decimal.Decimal `json:"target_amount"`
	AllowsEarlyWithdrawal bool            `json:"allows_early_withdrawal"`
	PenaltyRate           decimal.Decimal `json:"penalty_rate"`
	TargetDate            string          `json:"target_date"`
	StartDate             string          `json:"start_date"`
	DurationMonths        int             `json:"duration_months"`
	WithdrawalCondition   string          `json:"withdrawal_condition"`
}

type goalResponse struct {
	ID                    string    `json:"id"`
	Name                  string    `json:"name"`
	TargetAmount          string    `json:"target_amount"`
	CurrentAmount         string    `json:"current_amount"`
	AllowsEarlyWithdrawal bool      `json:"allows_early_withdrawal"`
	PenaltyRate           string    `json:"penalty_rate"`
	TargetDate            string    `json:"target_date,omitempty"`
	StartDate             string    `json:"start_date,omitempty"`
	DurationMonths        int       `json:"duration_months,omitempty"`
	MaturityDate          string    `json:"maturity_date,omitempty"`
	WithdrawalCondition   string    `json:"withdrawal_condition"`
	Status                string    `json:"status"`
	EarlyIfWithdrawnNow   bool      `json:"early_if_withdrawn_now"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

type contributeRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Note   string          `json:"note"`
}

type contributeResponse struct {
	TransactionID string       `json:"transaction_id"`
	Contributed   string       `json:"contributed"`
	Goal          goalResponse `json:"goal"`
}

type withdrawRequest struct {
	Amount *decimal.Decimal `json:"amount"`
	Note   string           `json:"note"`
}

type withdrawResponse struct {
	TransactionID string       `json:"transaction_id,omitempty"`
	Gross         string       `json:"gross"`
	Penalty       string       `json:"penalty"`
	Fee           string       `json:"fee"`
	Net           string       `json:"net"`
	Early         bool         `json:"early"`
	Goal          goalResponse `json:"goal"`
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	var req createGoalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	targetDate, err := parseDate("target_date", req.TargetDate)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	startDate, err := parseDate("start_date", req.StartDate)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}

	g, err := s.ledger.CreateGoal(r.Context(), ledger.CreateGoalRequest{
		UserID:                userID(r),
		Name:                  req.Name,
		TargetAmount:          req.TargetAmount,
		AllowsEarlyWithdrawal: req.AllowsEarlyWithdrawal,
		PenaltyRate:           req.PenaltyRate,
		TargetDate:            targetDate,
		StartDate:             startDate,
		DurationMonths:        req.DurationMonths,
		WithdrawalCondition:   model.WithdrawalCondition(req.WithdrawalCondition),
	})
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toGoalResponse(g, time.Now()))
}

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	goals, err := s.ledger.Goals(r.Context(), userID(r))
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	now := time.Now()
	resp := make([]goalResponse, 0, len(goals))
	for _, g := range goals {
		resp = append(resp, toGoalResponse(g, now))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleContribute(w http.ResponseWriter, r *http.Request) {
	var req contributeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	res, err := s.ledger.Contribute(r.Context(), ledger.ContributeRequest{
		UserID: userID(r),
		GoalID: chi.URLParam(r, "goalID"),
		Amount: req.Amount,
		Note:   req.Note,
	})
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, contributeResponse{
		TransactionID: res.TransactionID,
		Contributed:   res.Contributed.StringFixed(2),
		Goal:          toGoalResponse(res.Goal, time.Now()),
	})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req withdrawRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
	}
	wr := ledger.WithdrawRequest{
		UserID: userID(r),
		GoalID: chi.URLParam(r, "goalID"),
		All:    req.Amount == nil,
		Note:   req.Note,
	}
	if req.Amount != nil {
		wr.Gross = *req.Amount
	}
	res, err := s.ledger.Withdraw(r.Context(), wr)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, withdrawResponse{
		TransactionID: res.TransactionID,
		Gross:         res.Gross.StringFixed(2),
		Penalty:       res.Penalty.StringFixed(2),
		Fee:           res.Fee.StringFixed(2),
		Net:           res.Net.StringFixed(2),
		Early:         res.Early,
		Goal:          toGoalResponse(res.Goal, time.Now()),
	})
}

func (s *Server) handleCancelGoal(w http.ResponseWriter, r *http.Request) {
	g, err := s.ledger.CancelGoal(r.Context(), userID(r), chi.URLParam(r, "goalID"))
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toGoalResponse(g, time.Now()))
}

func toGoalResponse(g model.Goal, now time.Time) goalResponse {
	resp := goalResponse{
		ID:                    g.ID,
		Name:                  g.Name,
		TargetAmount:          g.TargetAmount.StringFixed(2),
		CurrentAmount:         g.CurrentAmount.StringFixed(2),
		AllowsEarlyWithdrawal: g.AllowsEarlyWithdrawal,
		PenaltyRate:           g.PenaltyRate.String(),
		TargetDate:            formatDate(g.TargetDate),
		StartDate:             formatDate(g.StartDate),
		DurationMonths:        g.DurationMonths,
		WithdrawalCondition:   string(g.WithdrawalCondition),
		Status:                string(g.Status),
		CreatedAt:             g.CreatedAt,
		UpdatedAt:             g.UpdatedAt,
	}
	if maturity, ok := g.MaturityDate(); ok {
		resp.MaturityDate = formatDate(&maturity)
	}
	if !g.Status.Terminal() {
		resp.EarlyIfWithdrawnNow = ledger.IsEarly(g, now)
	}
	return resp
}
