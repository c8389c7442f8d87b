package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/models"
	"github.com/bobmcallan/tally/internal/saga"
)

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", common.Invalid("amount", "must be greater than zero"), http.StatusBadRequest, "validation_failed"},
		{"not found", common.NotFound("expense", "x"), http.StatusNotFound, "not_found"},
		{"forbidden", fmt.Errorf("expenses %q: %w", "x", common.ErrForbidden), http.StatusForbidden, "forbidden"},
		{"duplicate", common.AlreadyExists("category", "Food"), http.StatusConflict, "already_exists"},
		{"version conflict", common.Conflict("bankAccounts", "b1", 1, 2), http.StatusConflict, "version_conflict"},
		{"overdraft", fmt.Errorf("cash: %w", common.ErrNegativeBalance), http.StatusUnprocessableEntity, "negative_balance"},
		{"closed loan", fmt.Errorf("loan l1: %w", common.ErrLoanClosed), http.StatusUnprocessableEntity, "loan_closed"},
		{"partial failure", &saga.PartialFailure{Operation: "expense.create", Err: errors.New("boom")}, http.StatusInternalServerError, "partial_failure"},
		{"partial failure over missing holder", &saga.PartialFailure{
			Operation: "expense.delete", Err: common.NotFound("bankAccounts", "b1"),
			CompensationErr: errors.New("connection lost"),
		}, http.StatusInternalServerError, "partial_failure"},
		{"partial failure over validation", fmt.Errorf("loan.pay: %w", &saga.PartialFailure{
			Operation: "loan.pay", Err: common.Invalid("amount", "must be greater than zero"),
		}), http.StatusInternalServerError, "partial_failure"},
		{"partial failure over foreign holder", &saga.PartialFailure{
			Operation: "lendborrow.settle", Err: fmt.Errorf("bankAccounts %q: %w", "b1", common.ErrForbidden),
		}, http.StatusInternalServerError, "partial_failure"},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code := errorStatus(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestWriteServiceError_PartialFailureListsSteps(t *testing.T) {
	s := &Server{logger: common.NewSilentLogger()}
	err := fmt.Errorf("delete expense e1: %w", &saga.PartialFailure{
		Operation:       "expense.delete",
		Committed:       []string{"reverse Bank(b1)"},
		Failed:          "delete expenses e1",
		Err:             common.NotFound("expenses", "e1"),
		CompensationErr: errors.New("connection lost"),
	})

	rec := httptest.NewRecorder()
	s.WriteServiceError(rec, httptest.NewRequest(http.MethodDelete, "/api/expenses/e1", nil), err)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "partial_failure", body.Code)
	assert.Equal(t, []string{"reverse Bank(b1)"}, body.Committed)
	assert.Equal(t, "delete expenses e1", body.Failed)
}

func TestWriteServiceError_PlainErrorHasNoSteps(t *testing.T) {
	s := &Server{logger: common.NewSilentLogger()}
	rec := httptest.NewRecorder()
	s.WriteServiceError(rec, httptest.NewRequest(http.MethodGet, "/api/expenses/x", nil), common.NotFound("expenses", "x"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotContains(t, rec.Body.String(), "committed")
	assert.NotContains(t, rec.Body.String(), "failed")
}

func TestPathParam(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/loans/abc/pay", nil)
	assert.Equal(t, "abc", PathParam(req, "/api/loans/", "/pay"))
	assert.Equal(t, "abc", PathParam(req, "/api/loans/", ""))
	assert.Equal(t, "", PathParam(req, "/api/other/", ""))
}

func TestSplitPath(t *testing.T) {
	tests := []struct {
		path, id, sub string
	}{
		{"/api/loans/", "", ""},
		{"/api/loans/abc", "abc", ""},
		{"/api/loans/abc/", "abc", ""},
		{"/api/loans/abc/pay", "abc", "pay"},
		{"/api/loans/abc/pay/extra", "abc", "pay/extra"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, tt.path, nil)
		id, sub := splitPath(req, "/api/loans/")
		assert.Equal(t, tt.id, id, tt.path)
		assert.Equal(t, tt.sub, sub, tt.path)
	}
}

func TestPaymentInput_Source(t *testing.T) {
	structured := models.Card("c1")
	tests := []struct {
		name    string
		in      paymentInput
		want    models.PaymentSource
		wantErr bool
	}{
		{"structured", paymentInput{Payment: &structured}, models.Card("c1"), false},
		{"legacy cash", paymentInput{PaymentMode: "Cash"}, models.Cash(), false},
		{"legacy bank", paymentInput{PaymentMode: "Bank", BankID: "b1"}, models.Bank("b1"), false},
		{"legacy card", paymentInput{PaymentMode: "Credit Card", CardID: "c1"}, models.Card("c1"), false},
		{"custom mode id", paymentInput{PaymentMode: "pm-7"}, models.Custom("pm-7"), false},
		{"bank without id", paymentInput{PaymentMode: "Bank"}, models.PaymentSource{}, true},
		{"missing", paymentInput{}, models.PaymentSource{}, true},
		{"structured without id", paymentInput{Payment: &models.PaymentSource{Kind: models.SourceBank}}, models.PaymentSource{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.in.source()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, common.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPaymentInput_OptionalSource(t *testing.T) {
	src, err := paymentInput{}.optionalSource()
	require.NoError(t, err)
	assert.Nil(t, src)

	src, err = paymentInput{PaymentMode: "Cash"}.optionalSource()
	require.NoError(t, err)
	require.NotNil(t, src)
	assert.Equal(t, models.Cash(), *src)
}

func TestRequireMethod_WritesAllowHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodPatch, "/api/expenses", nil)
	rec := httptest.NewRecorder()

	assert.False(t, RequireMethod(rec, req, http.MethodGet, http.MethodPost))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "GET, POST", rec.Header().Get("Allow"))
}

func TestDecodeJSON_RejectsMalformedBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/expenses", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()

	var v map[string]interface{}
	assert.False(t, DecodeJSON(rec, req, &v))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_json")
}

func TestWriteWarnings_AlwaysIncludesList(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteWarnings(rec, http.StatusOK, "deleted", "x1", nil)
	assert.JSONEq(t, `{"deleted":"x1","warnings":[]}`, rec.Body.String())

	rec = httptest.NewRecorder()
	WriteWarnings(rec, http.StatusOK, "deleted", "x1", []models.Warning{{Code: "dangling_reference", Message: "bank b1"}})
	assert.JSONEq(t, `{"deleted":"x1","warnings":[{"code":"dangling_reference","message":"bank b1"}]}`, rec.Body.String())
}
