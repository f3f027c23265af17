package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundflow-dev/fundflow/internal/currency"
	"github.com/fundflow-dev/fundflow/internal/ledger"
	"github.com/fundflow-dev/fundflow/internal/model"
	"github.com/fundflow-dev/fundflow/internal/store/sqlite"
)

const testToken = "test-token"

type harness struct {
	t   *testing.T
	svc *ledger.Service
	srv *httptest.Server
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	st, err := sqlite.Open(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	conv, err := currency.NewConverter("USD", map[string]decimal.Decimal{
		"EUR": decimal.RequireFromString("0.92"),
	})
	require.NoError(t, err)
	svc, err := ledger.New(st, ledger.Options{Converter: conv})
	require.NoError(t, err)

	srv := httptest.NewServer(NewServer(svc, testToken, nil).Handler())
	t.Cleanup(srv.Close)
	return &harness{t: t, svc: svc, srv: srv}
}

func (h *harness) user(tag, income string) model.User {
	h.t.Helper()
	ctx := context.Background()
	u, err := h.svc.RegisterUser(ctx, tag, strings.ToUpper(tag[:1])+tag[1:])
	require.NoError(h.t, err)
	if income != "" {
		_, err = h.svc.RecordTransaction(ctx, ledger.RecordRequest{
			UserID:   u.ID,
			Type:     model.TypeIncome,
			Amount:   decimal.RequireFromString(income),
			Category: "Salary",
		})
		require.NoError(h.t, err)
	}
	return u
}

// do sends an authenticated request as userID and decodes the JSON
// response into out when out is non-nil.
func (h *harness) do(method, path, userID, body string, out any) int {
	h.t.Helper()
	req, err := http.NewRequest(method, h.srv.URL+path, strings.NewReader(body))
	require.NoError(h.t, err)
	req.Header.Set("Authorization", "Bearer "+testToken)
	if userID != "" {
		req.Header.Set(UserHeader, userID)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(h.t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(h.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t)

	resp, err := http.Get(h.srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(h.srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuth(t *testing.T) {
	h := newHarness(t)
	alice := h.user("alice", "")

	tests := []struct {
		name   string
		header string
		user   string
	}{
		{"missing token", "", alice.ID},
		{"wrong token", "Bearer nope", alice.ID},
		{"wrong scheme", "Basic " + testToken, alice.ID},
		{"missing user", "Bearer " + testToken, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, h.srv.URL+"/v1/balance", nil)
			require.NoError(t, err)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.user != "" {
				req.Header.Set(UserHeader, tt.user)
			}
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

			var body errorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, "unauthorized", body.Error)
		})
	}
}

func TestEmptyServerTokenDeniesEverything(t *testing.T) {
	h := newHarness(t)
	srv := httptest.NewServer(NewServer(h.svc, "", nil).Handler())
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/v1/admin/revenue", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer ")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestVerifyRecipient(t *testing.T) {
	h := newHarness(t)
	alice := h.user("alice", "")
	h.user("bob", "")

	var rec recipientResponse
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/v1/recipients/@Bob", alice.ID, "", &rec))
	assert.Equal(t, "bob", rec.Tag)
	assert.Equal(t, "Bob", rec.DisplayName)

	var e errorResponse
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/v1/recipients/nobody", alice.ID, "", &e))
	assert.Equal(t, string(ledger.KindRecipientNotFound), e.Error)
	assert.Equal(t, "no user found with that transfer tag", e.Message)
}

func TestTransfer(t *testing.T) {
	h := newHarness(t)
	alice := h.user("alice", "200")
	bob := h.user("bob", "")

	var res transferResponse
	status := h.do(http.MethodPost, "/v1/transfers", alice.ID, `{"recipient_tag":"@bob","amount":"100","note":"rent"}`, &res)
	require.Equal(t, http.StatusCreated, status)
	assert.True(t, res.Success)
	assert.Equal(t, "100.00", res.Amount)
	assert.Equal(t, "1.00", res.Fee)
	assert.Equal(t, "101.00", res.Total)
	assert.Equal(t, "USD", res.Currency)
	assert.Equal(t, bob.ID, res.Recipient.ID)

	var bal balanceResponse
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/v1/balance", alice.ID, "", &bal))
	assert.Equal(t, "99.00", bal.Balance)
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/v1/balance", bob.ID, "", &bal))
	assert.Equal(t, "100.00", bal.Balance)

	var rev revenueResponse
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/v1/admin/revenue", "", "", &rev))
	assert.Equal(t, "1.00", rev.Fees)
}

func TestTransferInsufficientFunds(t *testing.T) {
	h := newHarness(t)
	alice := h.user("alice", "50")
	h.user("bob", "")

	var e errorResponse
	status := h.do(http.MethodPost, "/v1/transfers", alice.ID, `{"recipient_tag":"bob","amount":"50"}`, &e)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, string(ledger.KindInsufficientFunds), e.Error)
	assert.Equal(t, "0.50", e.Shortfall)
	assert.Equal(t, "USD", e.Currency)
	assert.Contains(t, e.Message, "you need 0.50 USD more")
}

func TestTransferErrors(t *testing.T) {
	h := newHarness(t)
	alice := h.user("alice", "50")
	h.user("bob", "")

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"self", `{"recipient_tag":"alice","amount":"5"}`, http.StatusUnprocessableEntity, string(ledger.KindSelfTransferDenied)},
		{"zero amount", `{"recipient_tag":"bob","amount":"0"}`, http.StatusBadRequest, string(ledger.KindValidation)},
		{"unknown currency", `{"recipient_tag":"bob","amount":"5","currency":"XYZ"}`, http.StatusBadRequest, string(ledger.KindValidation)},
		{"unknown field", `{"recipient_tag":"bob","amount":"5","memo":"x"}`, http.StatusBadRequest, "invalid_request"},
		{"trailing data", `{"recipient_tag":"bob","amount":"5"}{}`, http.StatusBadRequest, "invalid_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var e errorResponse
			assert.Equal(t, tt.status, h.do(http.MethodPost, "/v1/transfers", alice.ID, tt.body, &e))
			assert.Equal(t, tt.code, e.Error)
		})
	}
}

func TestFeeQuote(t *testing.T) {
	h := newHarness(t)
	alice := h.user("alice", "")

	var q quoteResponse
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/v1/fees/quote?amount=500", alice.ID, "", &q))
	assert.Equal(t, "500.00", q.Amount)
	assert.Equal(t, "3.50", q.Fee)
	assert.Equal(t, "503.50", q.Total)

	var e errorResponse
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodGet, "/v1/fees/quote?amount=abc", alice.ID, "", &e))
}

func TestRecordTransaction(t *testing.T) {
	h := newHarness(t)
	alice := h.user("alice", "")

	var txn transactionResponse
	status := h.do(http.MethodPost, "/v1/transactions", alice.ID,
		`{"type":"income","amount":"1200.00","category":"Salary","date":"2026-06-01"}`, &txn)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "1200.00", txn.Amount)
	assert.Equal(t, 2026, txn.Date.Year())

	var e errorResponse
	status = h.do(http.MethodPost, "/v1/transactions", alice.ID,
		`{"type":"expense","amount":"10","category":"P2P Transfer"}`, &e)
	assert.Equal(t, http.StatusBadRequest, status)

	status = h.do(http.MethodPost, "/v1/transactions", alice.ID,
		`{"type":"expense","amount":"10","category":"Food","date":"June 1st"}`, &e)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, e.Message, "date")
}

func TestGoalFlow(t *testing.T) {
	h := newHarness(t)
	alice := h.user("alice", "1000")

	var g goalResponse
	status := h.do(http.MethodPost, "/v1/goals/", alice.ID,
		`{"name":"Laptop","target_amount":"500","allows_early_withdrawal":true,"penalty_rate":"0.10"}`, &g)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "active", g.Status)
	assert.Equal(t, "0.00", g.CurrentAmount)
	assert.Equal(t, string(model.ConditionTargetReached), g.WithdrawalCondition)
	assert.True(t, g.EarlyIfWithdrawnNow)

	var c contributeResponse
	status = h.do(http.MethodPost, "/v1/goals/"+g.ID+"/contributions", alice.ID, `{"amount":"600"}`, &c)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "500.00", c.Contributed)
	assert.Equal(t, "matured", c.Goal.Status)

	var e errorResponse
	status = h.do(http.MethodPost, "/v1/goals/"+g.ID+"/contributions", alice.ID, `{"amount":"1"}`, &e)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, string(ledger.KindGoalNotActive), e.Error)

	var w withdrawResponse
	status = h.do(http.MethodPost, "/v1/goals/"+g.ID+"/withdrawals", alice.ID, "", &w)
	require.Equal(t, http.StatusOK, status)
	assert.False(t, w.Early)
	assert.Equal(t, "500.00", w.Gross)
	assert.Equal(t, "0.00", w.Penalty)
	assert.Equal(t, "3.50", w.Fee)
	assert.Equal(t, "496.50", w.Net)
	assert.Equal(t, "completed", w.Goal.Status)

	var goals []goalResponse
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/v1/goals/", alice.ID, "", &goals))
	require.Len(t, goals, 1)
	assert.Equal(t, "completed", goals[0].Status)

	var bal balanceResponse
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/v1/balance", alice.ID, "", &bal))
	assert.Equal(t, "996.50", bal.Balance)
	assert.Equal(t, "500.00", bal.Savings)
}

func TestGoalErrors(t *testing.T) {
	h := newHarness(t)
	alice := h.user("alice", "100")
	bob := h.user("bob", "")

	var e errorResponse
	status := h.do(http.MethodPost, "/v1/goals/", alice.ID,
		`{"name":"Trip","target_amount":"500","allows_early_withdrawal":true,"penalty_rate":"0.05"}`, &e)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, string(ledger.KindValidation), e.Error)

	var g goalResponse
	status = h.do(http.MethodPost, "/v1/goals/", alice.ID,
		`{"name":"Trip","target_amount":"500","withdrawal_condition":"maturityDateReached","target_date":"2099-01-01"}`, &g)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "2099-01-01", g.TargetDate)
	assert.Equal(t, "2099-01-01", g.MaturityDate)
	assert.True(t, g.EarlyIfWithdrawnNow)

	status = h.do(http.MethodPost, "/v1/goals/"+g.ID+"/contributions", bob.ID, `{"amount":"10"}`, &e)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, string(ledger.KindGoalNotFound), e.Error)

	status = h.do(http.MethodPost, "/v1/goals/"+g.ID+"/contributions", alice.ID, `{"amount":"150"}`, &e)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, string(ledger.KindInsufficientSpendableIncome), e.Error)

	status = h.do(http.MethodPost, "/v1/goals/"+g.ID+"/withdrawals", alice.ID, `{"amount":"10"}`, &e)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, string(ledger.KindInvalidWithdrawalAmount), e.Error)

	var c contributeResponse
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/v1/goals/"+g.ID+"/contributions", alice.ID, `{"amount":"50"}`, &c))
	assert.Equal(t, "active", c.Goal.Status)

	status = h.do(http.MethodPost, "/v1/goals/"+g.ID+"/withdrawals", alice.ID, `{"amount":"10"}`, &e)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, string(ledger.KindEarlyWithdrawalNotAllowed), e.Error)

	status = h.do(http.MethodPost, "/v1/goals/"+g.ID+"/cancel", alice.ID, "", &e)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, e.Message, "withdraw the remaining 50.00")

	var empty goalResponse
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/v1/goals/", alice.ID,
		`{"name":"Bike","target_amount":"300"}`, &empty))
	var cancelled goalResponse
	require.Equal(t, http.StatusOK, h.do(http.MethodPost, "/v1/goals/"+empty.ID+"/cancel", alice.ID, "", &cancelled))
	assert.Equal(t, "cancelled", cancelled.Status)
	assert.False(t, cancelled.EarlyIfWithdrawnNow)

	status = h.do(http.MethodPost, "/v1/goals/"+empty.ID+"/cancel", alice.ID, "", &e)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, string(ledger.KindGoalNotActive), e.Error)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(ledger.KindValidation))
	assert.Equal(t, http.StatusNotFound, statusFor(ledger.KindUserNotFound))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(ledger.KindGoalAlreadyAchieved))
	assert.Equal(t, http.StatusConflict, statusFor(ledger.KindTransactionConflict))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(ledger.KindStoreUnavailable))
	assert.Equal(t, http.StatusInternalServerError, statusFor(""))
}

func TestParseDate(t *testing.T) {
	d, err := parseDate("date", "")
	require.NoError(t, err)
	assert.Nil(t, d)

	d, err = parseDate("date", "2026-03-01")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01", formatDate(d))

	d, err = parseDate("date", "2026-03-01T10:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, 10, d.Hour())

	_, err = parseDate("date", "03/01/2026")
	assert.ErrorIs(t, err, ledger.ErrValidation)
}
