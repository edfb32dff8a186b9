package httpapi

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	goIssuer "github.com/MrEthical07/goIssuer"
	"github.com/MrEthical07/goIssuer/middleware"
)

type authorizeBody struct {
	ClientID     string `json:"client_id"`
	RedirectURI  string `json:"redirect_uri"`
	ResponseType string `json:"response_type"`
	State        string `json:"state"`
	Scope        string `json:"scope"`
	Provider     string `json:"provider"`
}

type verifyBody struct {
	RequestID string `json:"request_id"`
	Action    string `json:"action"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Code      string `json:"code"`
}

var errBadBody = errors.New("httpapi: malformed body")

// bind decodes a JSON body into dst, or falls back to form values for any
// other content type.
func (h *handler) bind(w http.ResponseWriter, r *http.Request, dst any, fromForm func(url.Values)) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(dst); err != nil {
			return errBadBody
		}
		return nil
	}
	if err := r.ParseForm(); err != nil {
		return errBadBody
	}
	fromForm(r.Form)
	return nil
}

func (h *handler) authorize(w http.ResponseWriter, r *http.Request) {
	var body authorizeBody
	err := h.bind(w, r, &body, func(f url.Values) {
		body = authorizeBody{
			ClientID:     f.Get("client_id"),
			RedirectURI:  f.Get("redirect_uri"),
			ResponseType: f.Get("response_type"),
			State:        f.Get("state"),
			Scope:        f.Get("scope"),
			Provider:     f.Get("provider"),
		}
	})
	if err != nil {
		writeErr(w, "invalid_request", "Malformed request body", http.StatusBadRequest)
		return
	}

	res, err := h.iss.Authorize(r.Context(), goIssuer.AuthorizeRequest{
		ClientID:     body.ClientID,
		RedirectURI:  body.RedirectURI,
		ResponseType: body.ResponseType,
		State:        body.State,
		Scope:        body.Scope,
		ProviderID:   body.Provider,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"request_id": res.RequestID,
		"provider":   res.ProviderID,
		"kind":       res.Kind,
		"expires_at": res.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

func (h *handler) inspect(w http.ResponseWriter, r *http.Request) {
	state, err := h.iss.Inspect(r.Context(), chi.URLParam(r, "requestID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": state.String()})
}

func (h *handler) verify(w http.ResponseWriter, r *http.Request) {
	var body verifyBody
	err := h.bind(w, r, &body, func(f url.Values) {
		body = verifyBody{
			RequestID: f.Get("request_id"),
			Action:    f.Get("action"),
			Email:     f.Get("email"),
			Password:  f.Get("password"),
			Code:      f.Get("code"),
		}
	})
	if err != nil {
		writeErr(w, "invalid_request", "Malformed request body", http.StatusBadRequest)
		return
	}

	res, err := h.iss.SubmitCredential(r.Context(), body.RequestID, goIssuer.CredentialInput{
		Action:   body.Action,
		Email:    body.Email,
		Password: body.Password,
		Code:     body.Code,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	if res.Status == goIssuer.SubmitPending {
		writeJSON(w, http.StatusOK, map[string]any{
			"status": res.Status,
			"prompt": res.Prompt,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       res.Status,
		"code":         res.Code,
		"redirect_uri": res.RedirectURL,
		"state":        res.State,
	})
}

// token implements the OAuth token endpoint. Parameters are form-encoded.
func (h *handler) token(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	if err := r.ParseForm(); err != nil {
		writeErr(w, "invalid_request", "Malformed request body", http.StatusBadRequest)
		return
	}
	f := r.PostForm

	var (
		ts  *goIssuer.TokenSet
		err error
	)
	switch f.Get("grant_type") {
	case "authorization_code":
		ts, err = h.iss.ExchangeCode(r.Context(), goIssuer.ExchangeRequest{
			Code:        f.Get("code"),
			ClientID:    f.Get("client_id"),
			RedirectURI: f.Get("redirect_uri"),
		})
	case "refresh_token":
		if !h.iss.RefreshEnabled() {
			writeErr(w, "unsupported_grant_type", "Refresh tokens are disabled", http.StatusBadRequest)
			return
		}
		ts, err = h.iss.Refresh(r.Context(), f.Get("refresh_token"), f.Get("client_id"))
	default:
		writeErr(w, "unsupported_grant_type", "Unsupported grant_type", http.StatusBadRequest)
		return
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	writeJSON(w, http.StatusOK, ts)
}

func (h *handler) userinfo(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeErr(w, "invalid_token", "Access token is invalid", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sub":        claims.Subject,
		"type":       claims.Type,
		"properties": claims.Properties,
		"client_id":  claims.ClientID,
	})
}

func (h *handler) jwks(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=300")
	writeJSON(w, http.StatusOK, h.iss.JWKS())
}

func (h *handler) metadata(w http.ResponseWriter, r *http.Request) {
	base := strings.TrimSuffix(h.iss.IssuerURL(), "/")
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		base = scheme + "://" + r.Host
	}

	grants := []string{"authorization_code"}
	if h.iss.RefreshEnabled() {
		grants = append(grants, "refresh_token")
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"issuer":                                base,
		"authorization_endpoint":                base + "/authorize",
		"token_endpoint":                        base + "/token",
		"jwks_uri":                              base + "/.well-known/jwks.json",
		"userinfo_endpoint":                     base + "/userinfo",
		"response_types_supported":              []string{"code"},
		"grant_types_supported":                 grants,
		"token_endpoint_auth_methods_supported": []string{"none"},
		"providers":                             h.iss.Providers(),
	})
}
