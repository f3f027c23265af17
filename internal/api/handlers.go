package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/fundflow-dev/fundflow/internal/currency"
	"github.com/fundflow-dev/fundflow/internal/fees"
	"github.com/fundflow-dev/fundflow/internal/ledger"
	"github.com/fundflow-dev/fundflow/internal/model"
)

type recipientResponse struct {
	ID          string `json:"id"`
	Tag         string `json:"tag"`
	DisplayName string `json:"display_name"`
}

type transferRequest struct {
	RecipientTag string          `json:"recipient_tag"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	Note         string          `json:"note"`
}

type transferResponse struct {
	Success    bool              `json:"success"`
	Message    string            `json:"message"`
	TransferID string            `json:"transfer_id"`
	ExpenseID  string            `json:"expense_id"`
	IncomeID   string            `json:"income_id"`
	Recipient  recipientResponse `json:"recipient"`
	Amount     string            `json:"amount"`
	Fee        string            `json:"fee"`
	Total      string            `json:"total"`
	Currency   string            `json:"currency"`
}

type quoteResponse struct {
	Amount   string `json:"amount"`
	Fee      string `json:"fee"`
	Total    string `json:"total"`
	Currency string `json:"currency"`
}

type balanceResponse struct {
	Currency  string `json:"currency"`
	Balance   string `json:"balance"`
	Income    string `json:"income"`
	Expense   string `json:"expense"`
	Savings   string `json:"savings"`
	Spendable string `json:"spendable"`
}

type recordRequest struct {
	Type        string          `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Date        string          `json:"date"`
}

type transactionResponse struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	Amount        string    `json:"amount"`
	Category      string    `json:"category"`
	Description   string    `json:"description"`
	Date          time.Time `json:"date"`
	Counterparty  string    `json:"counterparty,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

type revenueResponse struct {
	Currency  string `json:"currency"`
	Fees      string `json:"fees"`
	Penalties string `json:"penalties"`
	Total     string `json:"total"`
	Entries   int    `json:"entries"`
}

func (s *Server) handleVerifyRecipient(w http.ResponseWriter, r *http.Request) {
	rec, err := s.ledger.VerifyRecipient(r.Context(), chi.URLParam(r, "tag"))
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recipientResponse{ID: rec.ID, Tag: rec.Tag, DisplayName: rec.DisplayName})
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	inputCurrency := currency.Normalize(req.Currency)
	if inputCurrency == "" {
		inputCurrency = s.ledger.BaseCurrency()
	}
	amount, err := s.ledger.Converter().ToBase(req.Amount, inputCurrency)
	if err != nil {
		s.writeLedgerError(w, r, ledger.ValidationError{Field: "currency", Description: err.Error()})
		return
	}

	res, err := s.ledger.Transfer(r.Context(), ledger.TransferRequest{
		SenderID:      userID(r),
		RecipientTag:  req.RecipientTag,
		Amount:        amount,
		InputCurrency: inputCurrency,
		Note:          req.Note,
	})
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, transferResponse{
		Success:    true,
		Message:    res.Message,
		TransferID: res.TransferID,
		ExpenseID:  res.ExpenseID,
		IncomeID:   res.IncomeID,
		Recipient:  recipientResponse{ID: res.RecipientID, Tag: res.RecipientTag, DisplayName: res.RecipientName},
		Amount:     res.Amount.StringFixed(2),
		Fee:        res.Fee.StringFixed(2),
		Total:      res.Total.StringFixed(2),
		Currency:   res.Currency,
	})
}

func (s *Server) handleFeeQuote(w http.ResponseWriter, r *http.Request) {
	amount, err := decimal.NewFromString(r.URL.Query().Get("amount"))
	if err != nil {
		s.writeLedgerError(w, r, ledger.ValidationError{Field: "amount", Description: "must be a decimal number"})
		return
	}
	code := r.URL.Query().Get("currency")
	base, err := s.ledger.Converter().ToBase(amount, code)
	if err != nil {
		s.writeLedgerError(w, r, ledger.ValidationError{Field: "currency", Description: err.Error()})
		return
	}
	q := fees.QuoteTransfer(base)
	writeJSON(w, http.StatusOK, quoteResponse{
		Amount:   q.Amount.StringFixed(2),
		Fee:      q.Fee.StringFixed(2),
		Total:    q.Total.StringFixed(2),
		Currency: s.ledger.BaseCurrency(),
	})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	b, err := s.ledger.Balance(r.Context(), userID(r))
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{
		Currency:  b.Currency,
		Balance:   b.Balance.StringFixed(2),
		Income:    b.Income.StringFixed(2),
		Expense:   b.Expense.StringFixed(2),
		Savings:   b.Savings.StringFixed(2),
		Spendable: b.Spendable.StringFixed(2),
	})
}

func (s *Server) handleRecordTransaction(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	date, err := parseDate("date", req.Date)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	rec := ledger.RecordRequest{
		UserID:      userID(r),
		Type:        model.TransactionType(req.Type),
		Amount:      req.Amount,
		Category:    req.Category,
		Description: req.Description,
	}
	if date != nil {
		rec.Date = *date
	}
	txn, err := s.ledger.RecordTransaction(r.Context(), rec)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionResponse(txn))
}

func (s *Server) handleRevenue(w http.ResponseWriter, r *http.Request) {
	sum, err := s.ledger.RevenueSummary(r.Context())
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, revenueResponse{
		Currency:  sum.Currency,
		Fees:      sum.Fees.StringFixed(2),
		Penalties: sum.Penalties.StringFixed(2),
		Total:     sum.Total.StringFixed(2),
		Entries:   sum.Entries,
	})
}

func toTransactionResponse(t model.Transaction) transactionResponse {
	return transactionResponse{
		ID:            t.ID,
		Type:          string(t.Type),
		Amount:        t.Amount.StringFixed(2),
		Category:      t.Category,
		Description:   t.Description,
		Date:          t.Date,
		Counterparty:  t.Counterparty,
		CorrelationID: t.CorrelationID,
	}
}
