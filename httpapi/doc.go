// Package httpapi serves a goIssuer.Issuer over HTTP with go-chi.
//
// Routes:
//
//	POST /authorize                             start an authorization
//	GET  /authorize/{requestID}                 report a live request's state
//	POST /authorize/verify                      submit one credential step
//	POST /token                                 authorization_code and refresh_token grants
//	GET  /userinfo                              claims of a bearer access token
//	GET  /.well-known/jwks.json                 public signing keys
//	GET  /.well-known/oauth-authorization-server server metadata
//	GET  /healthz                               liveness
//	GET  /metrics                               when Options.Metrics is set
//
// Errors use the OAuth body {"error", "error_description"}. Descriptions
// are fixed per error code; internal error text is logged, never returned.
package httpapi
