package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"tally/internal/auth"
	"tally/internal/core"
	applog "tally/internal/log"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var reg core.Registration
	if err := json.NewDecoder(r.Body).Decode(&reg); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	reg.Username = strings.TrimSpace(reg.Username)
	reg.Email = strings.TrimSpace(reg.Email)

	if err := reg.Validate(); err != nil {
		verrs, _ := core.AsValidation(err)
		respondValidation(w, verrs)
		return
	}

	hash, err := auth.HashPassword(reg.Password, s.bcryptCost)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Password hashing failed",
			applog.FieldOperation, applog.OpRegister,
			applog.FieldError, err)
		respondError(w, http.StatusInternalServerError, "Registration failed")
		return
	}

	user, err := s.repo.CreateUser(r.Context(), reg.Username, reg.Email, hash)
	if errors.Is(err, core.ErrEmailTaken) {
		respondError(w, http.StatusConflict, core.ErrEmailTaken.Error())
		return
	}
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Registration error",
			applog.FieldOperation, applog.OpRegister,
			applog.FieldError, err)
		respondError(w, http.StatusInternalServerError, "Registration failed")
		return
	}

	s.logger.InfoContext(r.Context(), "User registered",
		applog.FieldOperation, applog.OpRegister,
		applog.FieldUserID, user.ID)
	respondJSON(w, http.StatusCreated, envelope{"success": true, "user": user})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds core.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	creds.Email = strings.TrimSpace(creds.Email)

	if err := creds.Validate(); err != nil {
		verrs, _ := core.AsValidation(err)
		respondValidation(w, verrs)
		return
	}

	user, err := s.repo.GetUserByEmail(r.Context(), creds.Email)
	if errors.Is(err, core.ErrNotFound) {
		respondAuthError(w, http.StatusUnauthorized, core.ErrInvalidCredentials.Error())
		return
	}
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Login error",
			applog.FieldOperation, applog.OpLogin,
			applog.FieldError, err)
		respondAuthError(w, http.StatusInternalServerError, "Login failed")
		return
	}

	if !auth.CheckPassword(creds.Password, user.PasswordHash) {
		respondAuthError(w, http.StatusUnauthorized, core.ErrInvalidCredentials.Error())
		return
	}

	token, err := s.tokens.Sign(user.ID)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Token signing failed",
			applog.FieldOperation, applog.OpLogin,
			applog.FieldUserID, user.ID,
			applog.FieldError, err)
		respondAuthError(w, http.StatusInternalServerError, "Login failed")
		return
	}

	s.logger.InfoContext(r.Context(), "User logged in",
		applog.FieldOperation, applog.OpLogin,
		applog.FieldUserID, user.ID)
	respondJSON(w, http.StatusOK, envelope{"token": token})
}
