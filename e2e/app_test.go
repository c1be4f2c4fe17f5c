package e2e

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"tally/internal/client"
	"tally/internal/core"
)

var accountSeq atomic.Int64

// E2ETestSuite drives the built server binary through the API client,
// exercising the same code path the terminal client uses.
type E2ETestSuite struct {
	suite.Suite
	ctx     context.Context
	session *client.SessionManager
	api     *client.APIClient
	email   string
}

func (s *E2ETestSuite) SetupTest() {
	s.ctx = context.Background()
	s.session = client.NewSessionManager(filepath.Join(s.T().TempDir(), "session.json"))
	s.api = client.NewAPIClient(appURL, s.session)

	// The server keeps one database for the whole suite, so every test
	// gets its own account.
	n := accountSeq.Add(1)
	s.email = fmt.Sprintf("e2e-%d-%d@example.com", time.Now().UnixNano(), n)
}

func (s *E2ETestSuite) register() *core.User {
	user, err := s.api.Register(s.ctx, core.Registration{
		Username: "e2e-user",
		Email:    s.email,
		Password: "password123",
	})
	require.NoError(s.T(), err, "register failed")
	return user
}

func (s *E2ETestSuite) login() {
	_, err := s.api.Login(s.ctx, core.Credentials{Email: s.email, Password: "password123"})
	require.NoError(s.T(), err, "login failed")
	require.True(s.T(), s.session.IsLoggedIn())
}

func (s *E2ETestSuite) TestCompleteUserFlow() {
	user := s.register()
	require.Equal(s.T(), s.email, user.Email)
	require.False(s.T(), s.session.IsLoggedIn(), "register must not start a session")

	s.login()

	created, err := s.api.AddExpense(s.ctx, core.ExpenseInput{
		Title:       "Lunch",
		Amount:      12.5,
		Date:        mustDate(s.T(), "2024-01-15"),
		Description: "Cafe",
	})
	require.NoError(s.T(), err)
	require.NotZero(s.T(), created.ID)

	list, err := s.api.ListExpenses(s.ctx)
	require.NoError(s.T(), err)
	require.Len(s.T(), list, 1)
	require.Equal(s.T(), "Lunch", list[0].Title)

	updated, err := s.api.UpdateExpense(s.ctx, created.ID, core.ExpenseInput{
		Title:       "Team lunch",
		Amount:      48.0,
		Date:        mustDate(s.T(), "2024-01-16"),
		Description: "Cafe, four people",
	})
	require.NoError(s.T(), err)
	require.Equal(s.T(), "Team lunch", updated.Title)
	require.Equal(s.T(), 48.0, updated.Amount)

	require.NoError(s.T(), s.api.DeleteExpense(s.ctx, created.ID))

	list, err = s.api.ListExpenses(s.ctx)
	require.NoError(s.T(), err)
	require.Empty(s.T(), list)

	_, err = s.api.GetExpense(s.ctx, created.ID)
	requireAPIStatus(s.T(), err, 404)
}

func (s *E2ETestSuite) TestDuplicateEmailConflict() {
	s.register()

	_, err := s.api.Register(s.ctx, core.Registration{
		Username: "someone-else",
		Email:    s.email,
		Password: "password456",
	})
	requireAPIStatus(s.T(), err, 409)
}

func (s *E2ETestSuite) TestWrongPasswordRejected() {
	s.register()

	_, err := s.api.Login(s.ctx, core.Credentials{Email: s.email, Password: "not-the-password"})
	requireAPIStatus(s.T(), err, 401)
	require.False(s.T(), s.session.IsLoggedIn())
}

func (s *E2ETestSuite) TestSessionSurvivesClientRestart() {
	s.register()
	s.login()

	_, err := s.api.AddExpense(s.ctx, core.ExpenseInput{
		Title:       "Bus ticket",
		Amount:      2.4,
		Date:        mustDate(s.T(), "2024-02-01"),
		Description: "Commute",
	})
	require.NoError(s.T(), err)

	// A fresh client reading the same session file stays signed in.
	restarted := client.NewAPIClient(appURL, client.NewSessionManager(s.session.Path()))
	list, err := restarted.ListExpenses(s.ctx)
	require.NoError(s.T(), err)
	require.Len(s.T(), list, 1)
}

func (s *E2ETestSuite) TestValidationErrorsReported() {
	s.register()
	s.login()

	_, err := s.api.AddExpense(s.ctx, core.ExpenseInput{
		Title:  "",
		Amount: -5,
		Date:   mustDate(s.T(), "2024-02-01"),
	})
	var apiErr *client.APIError
	require.ErrorAs(s.T(), err, &apiErr)
	require.Equal(s.T(), 400, apiErr.Status)

	fields := make(map[string]bool)
	for _, fe := range apiErr.Errors {
		fields[fe.Field] = true
	}
	require.True(s.T(), fields["title"])
	require.True(s.T(), fields["amount"])
}

func (s *E2ETestSuite) TestOtherUsersExpensesHidden() {
	s.register()
	s.login()
	created, err := s.api.AddExpense(s.ctx, core.ExpenseInput{
		Title:       "Secret",
		Amount:      99.0,
		Date:        mustDate(s.T(), "2024-03-01"),
		Description: "Mine only",
	})
	require.NoError(s.T(), err)

	otherEmail := fmt.Sprintf("e2e-other-%d@example.com", time.Now().UnixNano())
	other := client.NewAPIClient(appURL, client.NewSessionManager(filepath.Join(s.T().TempDir(), "other.json")))
	_, err = other.Register(s.ctx, core.Registration{Username: "other", Email: otherEmail, Password: "password123"})
	require.NoError(s.T(), err)
	_, err = other.Login(s.ctx, core.Credentials{Email: otherEmail, Password: "password123"})
	require.NoError(s.T(), err)

	list, err := other.ListExpenses(s.ctx)
	require.NoError(s.T(), err)
	require.Empty(s.T(), list)

	_, err = other.GetExpense(s.ctx, created.ID)
	requireAPIStatus(s.T(), err, 404)
}

func mustDate(t *testing.T, s string) core.Date {
	t.Helper()
	d, err := core.ParseDate(s)
	require.NoError(t, err)
	return d
}

func requireAPIStatus(t *testing.T, err error, status int) {
	t.Helper()
	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr), "expected API error, got %v", err)
	require.Equal(t, status, apiErr.Status)
}

func TestE2E(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e suite in short mode")
	}
	suite.Run(t, new(E2ETestSuite))
}
