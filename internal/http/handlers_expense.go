package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"tally/internal/core"
	"tally/internal/events"
	applog "tally/internal/log"
)

// decodeExpenseInput reads and validates an expense payload. An unparseable
// date surfaces as a field error rather than a generic decode failure.
func decodeExpenseInput(r *http.Request) (core.ExpenseInput, error) {
	var in core.ExpenseInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		if errors.Is(err, core.ErrInvalidDate) {
			return in, core.ValidationErrors{}.Add("date", "date must be a valid date")
		}
		return in, err
	}
	if err := in.Validate(); err != nil {
		return in, err
	}
	return in, nil
}

// expenseID parses the {id} path segment. Zero means malformed, which the
// handlers treat the same as an absent row.
func expenseID(r *http.Request) int64 {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		return 0
	}
	return id
}

func (s *Server) handleAddExpense(w http.ResponseWriter, r *http.Request) {
	in, err := decodeExpenseInput(r)
	if err != nil {
		if verrs, ok := core.AsValidation(err); ok {
			respondValidation(w, verrs)
			return
		}
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	userID := callerID(r.Context())
	expense, err := s.repo.CreateExpense(r.Context(), userID, in)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Add expense error",
			applog.FieldOperation, applog.OpCreate,
			applog.FieldUserID, userID,
			applog.FieldError, err)
		respondError(w, http.StatusInternalServerError, "Failed to add expense")
		return
	}

	s.logger.InfoContext(r.Context(), "Expense created",
		applog.FieldOperation, applog.OpCreate,
		applog.FieldUserID, userID,
		applog.FieldExpenseID, expense.ID,
		applog.FieldAmount, expense.Amount)
	s.publishEvent(r.Context(), expense.ID, userID, events.ActionCreated)
	respondJSON(w, http.StatusCreated, envelope{"success": true, "expense": expense})
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	userID := callerID(r.Context())
	expenses, err := s.repo.ListExpenses(r.Context(), userID)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "List expenses error",
			applog.FieldOperation, applog.OpList,
			applog.FieldUserID, userID,
			applog.FieldError, err)
		respondError(w, http.StatusInternalServerError, "Failed to retrieve expenses")
		return
	}

	respondJSON(w, http.StatusOK, expenses)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	userID := callerID(r.Context())
	id := expenseID(r)
	if id == 0 {
		respondError(w, http.StatusNotFound, "Expense not found")
		return
	}

	expense, err := s.repo.GetExpense(r.Context(), id, userID)
	if errors.Is(err, core.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Expense not found")
		return
	}
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Get expense error",
			applog.FieldOperation, applog.OpRead,
			applog.FieldUserID, userID,
			applog.FieldExpenseID, id,
			applog.FieldError, err)
		respondError(w, http.StatusInternalServerError, "Failed to retrieve expense")
		return
	}

	respondJSON(w, http.StatusOK, envelope{"expense": expense})
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	userID := callerID(r.Context())
	id := expenseID(r)
	if id == 0 {
		respondError(w, http.StatusNotFound, "Expense not found")
		return
	}

	in, err := decodeExpenseInput(r)
	if err != nil {
		if verrs, ok := core.AsValidation(err); ok {
			respondValidation(w, verrs)
			return
		}
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	expense, err := s.repo.UpdateExpense(r.Context(), id, userID, in)
	if errors.Is(err, core.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Expense not found")
		return
	}
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Update expense error",
			applog.FieldOperation, applog.OpUpdate,
			applog.FieldUserID, userID,
			applog.FieldExpenseID, id,
			applog.FieldError, err)
		respondError(w, http.StatusInternalServerError, "Failed to update expense")
		return
	}

	s.logger.InfoContext(r.Context(), "Expense updated",
		applog.FieldOperation, applog.OpUpdate,
		applog.FieldUserID, userID,
		applog.FieldExpenseID, id)
	s.publishEvent(r.Context(), id, userID, events.ActionUpdated)
	respondJSON(w, http.StatusOK, envelope{"success": true, "expense": expense})
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	userID := callerID(r.Context())
	id := expenseID(r)
	if id == 0 {
		respondError(w, http.StatusNotFound, "Expense not found")
		return
	}

	err := s.repo.DeleteExpense(r.Context(), id, userID)
	if errors.Is(err, core.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Expense not found")
		return
	}
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Delete expense error",
			applog.FieldOperation, applog.OpDelete,
			applog.FieldUserID, userID,
			applog.FieldExpenseID, id,
			applog.FieldError, err)
		respondError(w, http.StatusInternalServerError, "Failed to delete expense")
		return
	}

	s.logger.InfoContext(r.Context(), "Expense deleted",
		applog.FieldOperation, applog.OpDelete,
		applog.FieldUserID, userID,
		applog.FieldExpenseID, id)
	s.publishEvent(r.Context(), id, userID, events.ActionDeleted)
	respondJSON(w, http.StatusOK, envelope{"success": true, "message": "Expense deleted successfully"})
}
