package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/fundflow-dev/fundflow/internal/ledger"
	"github.com/fundflow-dev/fundflow/internal/logging"
)

type errorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Shortfall string `json:"shortfall,omitempty"`
	Currency  string `json:"currency,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}

// decodeJSON reads exactly one JSON object with no unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("unexpected data after JSON body")
	}
	return nil
}

// statusFor maps a settlement error kind to an HTTP status.
func statusFor(kind ledger.Kind) int {
	switch kind {
	case ledger.KindValidation:
		return http.StatusBadRequest
	case ledger.KindRecipientNotFound, ledger.KindUserNotFound, ledger.KindGoalNotFound:
		return http.StatusNotFound
	case ledger.KindSelfTransferDenied,
		ledger.KindInsufficientFunds,
		ledger.KindInsufficientSpendableIncome,
		ledger.KindGoalNotActive,
		ledger.KindGoalAlreadyAchieved,
		ledger.KindContributionTooSmall,
		ledger.KindEarlyWithdrawalNotAllowed,
		ledger.KindInvalidWithdrawalAmount:
		return http.StatusUnprocessableEntity
	case ledger.KindTransactionConflict:
		return http.StatusConflict
	case ledger.KindStoreUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeLedgerError reports err to the client. Store failures are logged
// and replaced by their generic message.
func (s *Server) writeLedgerError(w http.ResponseWriter, r *http.Request, err error) {
	kind := ledger.KindOf(err)
	resp := errorResponse{Error: string(kind), Message: err.Error()}

	switch kind {
	case ledger.KindTransactionConflict:
		resp.Message = ledger.ErrTransactionConflict.Error()
	case ledger.KindStoreUnavailable:
		resp.Message = ledger.ErrStoreUnavailable.Error()
	case ledger.KindInsufficientFunds:
		var ife *ledger.InsufficientFundsError
		if errors.As(err, &ife) {
			resp.Shortfall = ife.InputShortfall.StringFixed(2)
			resp.Currency = ife.InputCurrency
		}
	case "":
		resp.Error = "internal_error"
		resp.Message = "internal error"
	}
	if kind == "" || kind == ledger.KindStoreUnavailable || kind == ledger.KindTransactionConflict {
		logging.Event(s.logger, "request_failed", map[string]any{
			"method": r.Method,
			"path":   r.URL.Path,
			"error":  err.Error(),
		})
	}
	writeJSON(w, statusFor(kind), resp)
}

const dateLayout = "2006-01-02"

// parseDate accepts a calendar date or an RFC 3339 timestamp. An empty
// string yields nil.
func parseDate(field, s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, ledger.ValidationError{Field: field, Description: "must be YYYY-MM-DD or an RFC 3339 timestamp"}
	}
	return &t, nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}
