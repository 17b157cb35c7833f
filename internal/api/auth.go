package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/nerrad567/itemkeeper/internal/audit"
	"github.com/nerrad567/itemkeeper/internal/auth"
	"github.com/nerrad567/itemkeeper/internal/metrics"
)

// errClaimsAlreadySet guards the single write of the request identity.
var errClaimsAlreadySet = errors.New("request identity already set")

// credentialsRequest is the request body for login and register.
type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginResponse is the response body for POST /api/auth/login.
type loginResponse struct {
	Success bool          `json:"success"`
	Token   string        `json:"token"`
	User    auth.Identity `json:"user"`
}

type userResponse struct {
	Success bool `json:"success"`
	User    any  `json:"user"`
}

// withClaims attaches the verified claims to ctx. It refuses to overwrite.
func withClaims(ctx context.Context, claims *auth.Claims) (context.Context, error) {
	if _, ok := ctx.Value(ctxKeyClaims).(*auth.Claims); ok {
		return ctx, errClaimsAlreadySet
	}
	return context.WithValue(ctx, ctxKeyClaims, claims), nil
}

// ClaimsFromContext returns the identity the auth gate attached to ctx.
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(ctxKeyClaims).(*auth.Claims)
	return claims, ok
}

// bearerToken extracts the token from "Bearer <token>". The scheme is
// case-sensitive, separated by exactly one space, and the token itself may
// not contain whitespace.
func bearerToken(header string) (string, bool) {
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" || strings.ContainsAny(token, " \t\r\n") {
		return "", false
	}
	return token, true
}

// authMiddleware verifies the bearer token on protected routes.
//
// Callers only ever see msgMissingAuthHeader or msgInvalidToken; the precise
// reason goes to the debug log and the auth failure counter.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			s.rejectToken(w, r, metrics.ReasonMissingHeader, errUnauthorized(msgMissingAuthHeader))
			return
		}

		claims, err := s.tokens.Verify(token)
		if err != nil {
			reason := metrics.ReasonInvalidSignature
			if errors.Is(err, auth.ErrTokenExpired) {
				reason = metrics.ReasonExpired
			}
			s.rejectToken(w, r, reason, errUnauthorized(msgInvalidToken))
			return
		}

		ctx, err := withClaims(r.Context(), claims)
		if err != nil {
			s.writeError(w, r, errInternal(err))
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) rejectToken(w http.ResponseWriter, r *http.Request, reason string, apiErr *Error) {
	s.logger.Debug("bearer token rejected",
		"reason", reason,
		"path", r.URL.Path,
		"request_id", requestIDFrom(r.Context()),
	)
	s.metrics.RecordAuthFailure(reason)
	s.writeError(w, r, apiErr)
}

// requireClaims returns the caller's claims. Only reachable behind the gate.
func requireClaims(r *http.Request) (*auth.Claims, error) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		return nil, errUnauthorized(msgMissingAuthHeader)
	}
	return claims, nil
}

// decodeJSON decodes the request body into v. An empty body decodes as {}.
// The body must hold exactly one JSON value.
func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	err := dec.Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err == nil {
		if err = dec.Decode(&json.RawMessage{}); errors.Is(err, io.EOF) {
			return nil
		}
		if err == nil {
			return errBadRequest("invalid JSON body")
		}
	}

	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return errBadRequest("request body too large")
	}
	return errBadRequest("invalid JSON body")
}

// handleLogin exchanges valid credentials for an access token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) error {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		s.metrics.RecordLogin(metrics.LoginBadRequest)
		return err
	}

	identity, err := s.credentials.Validate(r.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, auth.ErrMissingCredentials):
		s.metrics.RecordLogin(metrics.LoginBadRequest)
		return errValidation("email and password required", nil)
	case errors.Is(err, auth.ErrInvalidCredentials):
		s.metrics.RecordLogin(metrics.LoginInvalid)
		s.auditLog(audit.ActionLoginFailed, audit.EntityUser, "", "", nil)
		return errUnauthorized("Invalid credentials")
	case err != nil:
		s.metrics.RecordLogin(metrics.LoginServerError)
		return err
	}

	token, _, err := s.tokens.Issue(identity)
	if err != nil {
		s.metrics.RecordLogin(metrics.LoginServerError)
		return err
	}

	s.metrics.RecordLogin(metrics.LoginSuccess)
	s.auditLog(audit.ActionLogin, audit.EntityUser, identity.ID, identity.ID, nil)

	writeJSON(w, http.StatusOK, loginResponse{
		Success: true,
		Token:   token,
		User:    identity,
	})
	return nil
}

// handleMe echoes the verified claims of the caller.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) error {
	claims, err := requireClaims(r)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, userResponse{Success: true, User: claims})
	return nil
}

// handleRegister creates a user-role directory entry.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) error {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}

	identity, err := auth.Register(r.Context(), s.users, req.Email, req.Password)
	if err != nil {
		s.metrics.RecordRegistration(false)
		switch {
		case errors.Is(err, auth.ErrMissingCredentials):
			return errValidation("email and password required", nil)
		case errors.Is(err, auth.ErrInvalidEmail):
			return errValidation("Invalid email address", map[string]string{"field": "email"})
		case errors.Is(err, auth.ErrWeakPassword):
			return errValidation("Password must be at least 6 characters", map[string]string{"field": "password"})
		case errors.Is(err, auth.ErrEmailExists):
			return errValidation("Email already exists", map[string]string{"field": "email"})
		}
		return err
	}

	s.metrics.RecordRegistration(true)
	s.auditLog(audit.ActionRegister, audit.EntityUser, identity.ID, identity.ID, nil)

	writeJSON(w, http.StatusCreated, userResponse{Success: true, User: identity})
	return nil
}
