package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"

	jwt "github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel/metric"

	"leverageloop/crypto"
	"leverageloop/native/devnet"
	"leverageloop/native/leverage"
	"leverageloop/services/leveraged/config"
	"leverageloop/services/leveraged/storage"
	ledgerstore "leverageloop/storage"
)

var depositor = crypto.AccountAddress(crypto.AccountPrefix, "http-depositor")

type fixture struct {
	devnet  *devnet.Devnet
	handler http.Handler
}

func newFixture(t *testing.T, mutate func(*config.Config)) *fixture {
	t.Helper()
	return newMeteredFixture(t, mutate, nil)
}

func newMeteredFixture(t *testing.T, mutate func(*config.Config), meter metric.Meter) *fixture {
	t.Helper()
	d, err := devnet.Deploy(context.Background(), ledgerstore.NewMemDB(), nil)
	if err != nil {
		t.Fatalf("deploy devnet: %v", err)
	}
	store, err := storage.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	if err != nil {
		t.Fatalf("open receipts: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	settings := config.Default()
	settings.Faucet.Enabled = true
	settings.RateLimits = nil
	if mutate != nil {
		mutate(&settings)
	}
	srv, err := New(Config{Devnet: d, Receipts: store, Settings: settings, Meter: meter})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return &fixture{devnet: d, handler: srv.Handler()}
}

func (f *fixture) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res := httptest.NewRecorder()
	f.handler.ServeHTTP(res, req)
	return res
}

func decode(t *testing.T, res *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(res.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", res.Body.String(), err)
	}
}

func TestDepositRunsCycleAndStoresReceipt(t *testing.T) {
	f := newFixture(t, nil)

	res := f.do(t, http.MethodPost, "/v1/deposit", depositRequest{Sender: depositor.String(), Amount: "1000"}, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var out struct {
		ReceiptID uuid.UUID `json:"receipt_id"`
		Result    struct {
			Steps      []string `json:"steps"`
			Loops      int      `json:"loops"`
			Phase      string   `json:"phase"`
			StopReason string   `json:"stop_reason"`
		} `json:"result"`
	}
	decode(t, res, &out)
	if out.Result.Loops != 1 || out.Result.StopReason != "below stop threshold" {
		t.Fatalf("unexpected cycle summary %+v", out.Result)
	}
	if strings.Join(out.Result.Steps, ",") != "deposit,deposit_collateral,borrow,swap" {
		t.Fatalf("unexpected steps %v", out.Result.Steps)
	}

	res = f.do(t, http.MethodGet, "/v1/receipts/"+out.ReceiptID.String(), nil, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected receipt, got %d: %s", res.Code, res.Body.String())
	}
	var rec receiptJSON
	decode(t, res, &rec)
	if rec.Sender != depositor.String() || rec.Amount != "1000" || rec.Calls != 14 || rec.Reverted {
		t.Fatalf("unexpected receipt %+v", rec)
	}
	if !strings.Contains(string(rec.Result), `"borrow_stable"`) {
		t.Fatalf("expected trace in receipt payload")
	}

	res = f.do(t, http.MethodGet, "/v1/accounts/"+depositor.String()+"/receipts", nil, nil)
	var list []receiptJSON
	decode(t, res, &list)
	if len(list) != 1 || list[0].ID != out.ReceiptID || list[0].Result != nil {
		t.Fatalf("unexpected receipt list %+v", list)
	}
}

func TestQueriesReflectPosition(t *testing.T) {
	f := newFixture(t, nil)
	if res := f.do(t, http.MethodPost, "/v1/deposit", depositRequest{Sender: depositor.String(), Amount: "1000"}, nil); res.Code != http.StatusOK {
		t.Fatalf("deposit failed: %d %s", res.Code, res.Body.String())
	}
	controller := f.devnet.Leverage.String()

	res := f.do(t, http.MethodGet, "/v1/collateral/"+controller, nil, nil)
	var collateral leverage.CollateralResponse
	decode(t, res, &collateral)
	if !collateral.Balance.Eq(uint256.NewInt(950)) {
		t.Fatalf("expected 950 collateral, got %v", collateral.Balance)
	}

	res = f.do(t, http.MethodGet, "/v1/possible-borrow/"+controller, nil, nil)
	var borrow leverage.PossibleBorrowResponse
	decode(t, res, &borrow)
	if !borrow.BorrowLimit.Eq(uint256.NewInt(47500)) || !borrow.AlreadyBorrowed.Eq(uint256.NewInt(33250)) {
		t.Fatalf("unexpected possible borrow %+v", borrow)
	}

	res = f.do(t, http.MethodGet, "/v1/estimate-bond?amount=1000", nil, nil)
	var estimate leverage.EstimateBondResponse
	decode(t, res, &estimate)
	if !estimate.Bonded.Eq(uint256.NewInt(950)) {
		t.Fatalf("expected estimate 950, got %v", estimate.Bonded)
	}

	res = f.do(t, http.MethodGet, "/v1/config", nil, nil)
	var cfg leverage.ConfigResponse
	decode(t, res, &cfg)
	if !cfg.Equal(f.devnet.Config) {
		t.Fatalf("unexpected config %+v", cfg)
	}

	res = f.do(t, http.MethodGet, "/healthz", nil, nil)
	if res.Code != http.StatusOK || !strings.Contains(res.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected health response %d %s", res.Code, res.Body.String())
	}
}

func TestRequestValidation(t *testing.T) {
	f := newFixture(t, nil)
	cases := []struct {
		name   string
		method string
		path   string
		body   any
		code   int
	}{
		{"zero amount", http.MethodPost, "/v1/deposit", depositRequest{Sender: depositor.String(), Amount: "0"}, http.StatusBadRequest},
		{"bad amount", http.MethodPost, "/v1/deposit", depositRequest{Sender: depositor.String(), Amount: "ten"}, http.StatusBadRequest},
		{"bad sender", http.MethodPost, "/v1/deposit", depositRequest{Sender: "nope", Amount: "10"}, http.StatusBadRequest},
		{"validator sender", http.MethodPost, "/v1/deposit", depositRequest{Sender: crypto.AccountAddress(crypto.ValidatorPrefix, "v").String(), Amount: "10"}, http.StatusBadRequest},
		{"bad target", http.MethodGet, "/v1/collateral/xyz", nil, http.StatusBadRequest},
		{"bad height", http.MethodGet, "/v1/possible-borrow/" + depositor.String() + "?block_height=-1", nil, http.StatusBadRequest},
		{"missing estimate amount", http.MethodGet, "/v1/estimate-bond", nil, http.StatusBadRequest},
		{"bad receipt id", http.MethodGet, "/v1/receipts/42", nil, http.StatusBadRequest},
		{"unknown receipt", http.MethodGet, "/v1/receipts/" + uuid.NewString(), nil, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := f.do(t, tc.method, tc.path, tc.body, nil)
			if res.Code != tc.code {
				t.Fatalf("expected %d, got %d: %s", tc.code, res.Code, res.Body.String())
			}
		})
	}
}

func TestRevertedDepositIsRecorded(t *testing.T) {
	f := newFixture(t, func(cfg *config.Config) { cfg.Faucet.Enabled = false })
	heightBefore := f.devnet.Ledger.Block().Height

	res := f.do(t, http.MethodPost, "/v1/deposit", depositRequest{Sender: depositor.String(), Amount: "1000"}, nil)
	if res.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for unfunded deposit, got %d: %s", res.Code, res.Body.String())
	}
	var out errorResponse
	decode(t, res, &out)
	if out.ReceiptID == nil {
		t.Fatalf("expected reverted receipt id")
	}
	if h := f.devnet.Ledger.Block().Height; h != heightBefore+1 {
		t.Fatalf("reverted deposit must consume a block: %d -> %d", heightBefore, h)
	}

	res = f.do(t, http.MethodGet, "/v1/receipts/"+out.ReceiptID.String(), nil, nil)
	var rec receiptJSON
	decode(t, res, &rec)
	if !rec.Reverted || !strings.Contains(rec.Error, "insufficient funds") {
		t.Fatalf("unexpected reverted receipt %+v", rec)
	}
}

func TestPausedControllerReturnsUnavailable(t *testing.T) {
	f := newFixture(t, nil)
	f.devnet.Pauses.Set("leverage", true)
	res := f.do(t, http.MethodPost, "/v1/deposit", depositRequest{Sender: depositor.String(), Amount: "1000"}, nil)
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 while paused, got %d: %s", res.Code, res.Body.String())
	}
}

func TestDepositRequiresMatchingSubject(t *testing.T) {
	const secret = "leveraged-test"
	f := newFixture(t, func(cfg *config.Config) {
		cfg.Auth.Enabled = true
		cfg.Auth.HMACSecret = secret
	})
	sign := func(subject, scope string) map[string]string {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub":   subject,
			"scope": scope,
			"exp":   time.Now().Add(time.Hour).Unix(),
		}).SignedString([]byte(secret))
		if err != nil {
			t.Fatalf("sign token: %v", err)
		}
		return map[string]string{"Authorization": "Bearer " + token}
	}

	if res := f.do(t, http.MethodPost, "/v1/deposit", depositRequest{Sender: depositor.String(), Amount: "1000"}, nil); res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", res.Code)
	}
	other := crypto.AccountAddress(crypto.AccountPrefix, "someone-else").String()
	if res := f.do(t, http.MethodPost, "/v1/deposit", depositRequest{Sender: depositor.String(), Amount: "1000"}, sign(other, DepositScope)); res.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for foreign subject, got %d", res.Code)
	}
	res := f.do(t, http.MethodPost, "/v1/deposit", depositRequest{Amount: "1000"}, sign(depositor.String(), DepositScope))
	if res.Code != http.StatusOK {
		t.Fatalf("expected subject to act as sender, got %d: %s", res.Code, res.Body.String())
	}
	if res := f.do(t, http.MethodGet, "/v1/config", nil, nil); res.Code != http.StatusOK {
		t.Fatalf("queries stay public, got %d", res.Code)
	}
}
