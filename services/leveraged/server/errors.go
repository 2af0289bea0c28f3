package server

import (
	"errors"
	"net/http"

	"leverageloop/core/ledger"
	nativecommon "leverageloop/native/common"
	"leverageloop/native/hub"
	"leverageloop/native/leverage"
	"leverageloop/native/moneymarket"
	"leverageloop/native/pair"
	"leverageloop/services/leveraged/storage"
)

var errInvalidRequest = errors.New("invalid request")

func toStatus(err error) (int, string) {
	switch {
	case err == nil:
		return http.StatusOK, ""
	case errors.Is(err, errInvalidRequest),
		errors.Is(err, leverage.ErrValidation),
		errors.Is(err, leverage.ErrUnknownCommand),
		errors.Is(err, leverage.ErrUnknownQuery),
		errors.Is(err, nativecommon.ErrInvalidMsg):
		return http.StatusBadRequest, "invalid request"
	case errors.Is(err, leverage.ErrUnauthorized),
		errors.Is(err, nativecommon.ErrUnauthorized):
		return http.StatusForbidden, "unauthorized"
	case errors.Is(err, storage.ErrNotFound),
		errors.Is(err, ledger.ErrUnknownContract):
		return http.StatusNotFound, "resource not found"
	case errors.Is(err, nativecommon.ErrModulePaused):
		return http.StatusServiceUnavailable, "operation paused"
	case errors.Is(err, leverage.ErrNotInstantiated):
		return http.StatusServiceUnavailable, "controller not deployed"
	case errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, hub.ErrInsufficientTokens),
		errors.Is(err, moneymarket.ErrInsufficientCollateral):
		return http.StatusUnprocessableEntity, "insufficient funds"
	case errors.Is(err, moneymarket.ErrBorrowExceedsLimit),
		errors.Is(err, pair.ErrMaxSpread),
		errors.Is(err, pair.ErrInsufficientLiquidity),
		errors.Is(err, hub.ErrBondTooSmall),
		errors.Is(err, leverage.ErrArithmeticUnderflow):
		return http.StatusConflict, "transaction reverted"
	case errors.Is(err, ledger.ErrCallLimit),
		errors.Is(err, ledger.ErrDepthLimit):
		return http.StatusUnprocessableEntity, "call tree limit exceeded"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
