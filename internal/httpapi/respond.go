package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"solana-marketplace/internal/settlement"
	"solana-marketplace/internal/storage"
)

// errorResponse is the uniform error body.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}

// writeSettlementError maps the settlement failure taxonomy onto distinct
// status codes so clients can tell the outcomes apart.
func writeSettlementError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, settlement.ErrNoActiveSession):
		writeError(w, http.StatusUnauthorized, "no_active_session", "connect a wallet before buying")
	case errors.Is(err, settlement.ErrDuplicateSaleAttempt):
		writeError(w, http.StatusConflict, "duplicate_sale_attempt", "this item has already been sold or is being purchased")
	case errors.Is(err, settlement.ErrUserRejectedSignature):
		writeError(w, http.StatusPaymentRequired, "user_rejected_signature", "the signature request was declined")
	case errors.Is(err, settlement.ErrSubmissionFailure):
		writeError(w, http.StatusBadGateway, "submission_failure", "the transaction could not be submitted")
	case errors.Is(err, settlement.ErrTransactionFailed):
		writeError(w, http.StatusBadGateway, "transaction_failed", "the transfer failed on-chain")
	case errors.Is(err, settlement.ErrConfirmationTimeout):
		writeError(w, http.StatusGatewayTimeout, "confirmation_timeout", "confirmation did not arrive in time; the purchase may still complete")
	case errors.Is(err, settlement.ErrProviderUnavailable):
		writeError(w, http.StatusServiceUnavailable, "provider_unavailable", "no wallet provider is available for signing")
	case errors.Is(err, settlement.ErrSelfPurchase):
		writeError(w, http.StatusBadRequest, "self_purchase", "you cannot buy your own listing")
	case errors.Is(err, settlement.ErrPriceMismatch):
		writeError(w, http.StatusConflict, "price_mismatch", "the listing price has changed")
	default:
		writeError(w, http.StatusInternalServerError, "internal", "purchase failed")
	}
}

// writeStorageError maps storage sentinel errors for read paths.
func writeStorageError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "resource not found")
	case errors.Is(err, storage.ErrDuplicateKey):
		writeError(w, http.StatusConflict, "duplicate", "resource already exists")
	case errors.Is(err, storage.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_input", "invalid request payload")
	default:
		writeError(w, http.StatusInternalServerError, "internal", "storage error")
	}
}
