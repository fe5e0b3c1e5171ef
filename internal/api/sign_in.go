// Package api provides the HTTP server for the orders batch service.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/CodAressss/orders-batch-service/internal/api/middleware"
	"github.com/CodAressss/orders-batch-service/internal/auth"
	"github.com/CodAressss/orders-batch-service/internal/ingest"
	"github.com/CodAressss/orders-batch-service/internal/storage"
)

// handleSignIn exchanges operator credentials for a bearer token.
//
// Unknown usernames and wrong passwords both return the same 401 body, so
// the endpoint does not leak which accounts exist.
func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	correlationID := middleware.GetCorrelationID(r.Context())

	if s.users == nil || s.tokens == nil {
		s.logger.Error("Sign-in requested but authentication is not configured",
			slog.String("correlation_id", correlationID),
		)

		WriteErrorResponse(w, r, s.logger,
			InternalServerError("Authentication is not configured"))

		return
	}

	if !hasJSONContentType(r.Header.Get("Content-Type")) {
		WriteErrorResponse(w, r, s.logger,
			BadRequest(ingest.CodeFormatInvalid, "Content-Type must be application/json"))

		return
	}

	var req SignInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteErrorResponse(w, r, s.logger,
			BadRequest(ingest.CodeFormatInvalid, "request body is not valid JSON"))

		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		WriteErrorResponse(w, r, s.logger,
			BadRequest(ingest.CodeFieldRequired, "username and password are required"))

		return
	}

	user, err := s.users.FindByUsername(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			WriteErrorResponse(w, r, s.logger, Unauthorized("invalid credentials"))

			return
		}

		s.logger.Error("User lookup failed",
			slog.String("correlation_id", correlationID),
			slog.String("error", err.Error()),
		)

		WriteErrorResponse(w, r, s.logger,
			InternalServerError("An unexpected error occurred during sign-in"))

		return
	}

	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		s.logger.Warn("Sign-in rejected: wrong password",
			slog.String("correlation_id", correlationID),
			slog.String("username", user.Username),
		)

		WriteErrorResponse(w, r, s.logger, Unauthorized("invalid credentials"))

		return
	}

	token, err := s.tokens.Issue(user.Username, user.Role)
	if err != nil {
		s.logger.Error("Token issuance failed",
			slog.String("correlation_id", correlationID),
			slog.String("error", err.Error()),
		)

		WriteErrorResponse(w, r, s.logger,
			InternalServerError("An unexpected error occurred during sign-in"))

		return
	}

	s.logger.Info("Operator signed in",
		slog.String("correlation_id", correlationID),
		slog.String("username", user.Username),
		slog.String("role", user.Role),
	)

	s.writeJSON(w, r, http.StatusOK, SignInResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresIn: int64(s.tokens.TTL().Seconds()),
	})
}
