package server

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"leverageloop/core/ledger"
	nativecommon "leverageloop/native/common"
	"leverageloop/native/leverage"
	"leverageloop/native/moneymarket"
	"leverageloop/services/leveraged/storage"
)

func TestToStatus(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("ledger: call 0 (deposit) at depth 0: %w", leverage.ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("%w: bad address", errInvalidRequest), http.StatusBadRequest},
		{leverage.ErrUnauthorized, http.StatusForbidden},
		{storage.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("leverage: %w", nativecommon.ErrModulePaused), http.StatusServiceUnavailable},
		{ledger.ErrInsufficientFunds, http.StatusUnprocessableEntity},
		{fmt.Errorf("call 9: %w", moneymarket.ErrBorrowExceedsLimit), http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if code, _ := toStatus(tc.err); code != tc.code {
			t.Fatalf("toStatus(%v) = %d, want %d", tc.err, code, tc.code)
		}
	}
}
