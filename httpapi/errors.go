package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	goIssuer "github.com/MrEthical07/goIssuer"
)

type apiError struct {
	status int
	code   string
	desc   string
}

var errorTable = []struct {
	target error
	apiError
}{
	{goIssuer.ErrUnsupportedResponseType, apiError{http.StatusBadRequest, "unsupported_response_type", "Only response_type=code is supported"}},
	{goIssuer.ErrUnknownProvider, apiError{http.StatusBadRequest, "invalid_request", "Unknown or ambiguous provider"}},
	{goIssuer.ErrInvalidRequest, apiError{http.StatusBadRequest, "invalid_request", "Malformed request"}},
	{goIssuer.ErrInvalidGrant, apiError{http.StatusBadRequest, "invalid_grant", "Code or refresh token is invalid, expired, or already used"}},
	{goIssuer.ErrInvalidClient, apiError{http.StatusUnauthorized, "invalid_client", "Client or redirect URI not allowed"}},
	{goIssuer.ErrInvalidCredential, apiError{http.StatusUnauthorized, "invalid_credential", "Invalid email or password"}},
	{goIssuer.ErrUnknownIdentity, apiError{http.StatusUnauthorized, "unknown_identity", "No account for this email"}},
	{goIssuer.ErrInvalidCode, apiError{http.StatusUnauthorized, "invalid_code", "Verification code is invalid or expired"}},
	{goIssuer.ErrInvalidToken, apiError{http.StatusUnauthorized, "invalid_token", "Access token is invalid"}},
	{goIssuer.ErrIdentityExists, apiError{http.StatusConflict, "identity_exists", "An account already exists for this email"}},
	{goIssuer.ErrPasswordPolicy, apiError{http.StatusBadRequest, "password_policy", "Password does not meet the policy"}},
	{goIssuer.ErrInvalidSubject, apiError{http.StatusInternalServerError, "server_error", "Subject rejected by schema"}},
	{goIssuer.ErrRequestNotFound, apiError{http.StatusNotFound, "request_not_found", "Authorization request not found or expired"}},
	{goIssuer.ErrRateLimited, apiError{http.StatusTooManyRequests, "rate_limited", "Too many attempts, try again later"}},
	{goIssuer.ErrStorageUnavailable, apiError{http.StatusServiceUnavailable, "temporarily_unavailable", "Service temporarily unavailable"}},
	{goIssuer.ErrTransientFailure, apiError{http.StatusServiceUnavailable, "temporarily_unavailable", "Service temporarily unavailable"}},
}

var serverError = apiError{http.StatusInternalServerError, "server_error", "Internal error"}

func classify(err error) apiError {
	for _, e := range errorTable {
		if errors.Is(err, e.target) {
			return e.apiError
		}
	}
	return serverError
}

func writeErr(w http.ResponseWriter, code, desc string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": code, "error_description": desc,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
