package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tally/internal/core"
)

// fakeAPI is a minimal in-memory stand-in for the expense API, enough to
// drive the view controller through its flows.
type fakeAPI struct {
	t        *testing.T
	requests atomic.Int64

	expenses map[int64]core.Expense
	nextID   int64
	token    string
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	f := &fakeAPI{
		t:        t,
		expenses: map[int64]core.Expense{},
		nextID:   1,
		token:    "fake-token",
	}
	ts := httptest.NewServer(f)
	t.Cleanup(ts.Close)
	return f, ts
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.requests.Add(1)
	w.Header().Set("Content-Type", "application/json")

	writeJSON := func(status int, v any) {
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/register":
		writeJSON(http.StatusCreated, map[string]any{"success": true, "user": map[string]any{"id": 1}})

	case r.Method == http.MethodPost && r.URL.Path == "/login":
		var creds core.Credentials
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds.Password == "wrong" {
			writeJSON(http.StatusUnauthorized, map[string]any{"message": "invalid email or password"})
			return
		}
		writeJSON(http.StatusOK, map[string]any{"token": f.token})

	case r.Method == http.MethodPost && r.URL.Path == "/add-expense":
		var in core.ExpenseInput
		_ = json.NewDecoder(r.Body).Decode(&in)
		if in.Amount <= 0 {
			writeJSON(http.StatusBadRequest, map[string]any{
				"success": false,
				"errors":  []map[string]string{{"field": "amount", "message": "amount must be greater than 0"}},
			})
			return
		}
		id := f.nextID
		f.nextID++
		e := core.Expense{ID: id, UserID: 1, Title: in.Title, Amount: in.Amount, Date: in.Date, Description: in.Description}
		f.expenses[id] = e
		writeJSON(http.StatusCreated, map[string]any{"success": true, "expense": e})

	case r.Method == http.MethodGet && r.URL.Path == "/expenses":
		list := make([]core.Expense, 0, len(f.expenses))
		for _, e := range f.expenses {
			list = append(list, e)
		}
		writeJSON(http.StatusOK, list)

	case strings.HasPrefix(r.URL.Path, "/expenses/"):
		id, _ := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/expenses/"), 10, 64)
		e, ok := f.expenses[id]
		if !ok {
			writeJSON(http.StatusNotFound, map[string]any{"success": false, "message": "Expense not found"})
			return
		}
		switch r.Method {
		case http.MethodGet:
			writeJSON(http.StatusOK, map[string]any{"expense": e})
		case http.MethodPut:
			var in core.ExpenseInput
			_ = json.NewDecoder(r.Body).Decode(&in)
			e.Title, e.Amount, e.Date, e.Description = in.Title, in.Amount, in.Date, in.Description
			f.expenses[id] = e
			writeJSON(http.StatusOK, map[string]any{"success": true, "expense": e})
		case http.MethodDelete:
			delete(f.expenses, id)
			writeJSON(http.StatusOK, map[string]any{"success": true, "message": "Expense deleted successfully"})
		}

	default:
		writeJSON(http.StatusNotFound, map[string]any{"success": false, "message": "not found"})
	}
}

func newTestView(t *testing.T) (*fakeAPI, *ViewController) {
	f, ts := newFakeAPI(t)
	session := NewSessionManager(filepath.Join(t.TempDir(), "session.json"))
	api := NewAPIClient(ts.URL, session)
	return f, NewViewController(api, session)
}

func testInput() core.ExpenseInput {
	return core.ExpenseInput{
		Title:       "Lunch",
		Amount:      12.5,
		Date:        core.NewDate(2024, 1, 15),
		Description: "Cafe",
	}
}

func TestRestrictedSectionGuard(t *testing.T) {
	f, vc := newTestView(t)

	vc.OpenExpenses(context.Background())

	require.Equal(t, SectionEntry, vc.Section())
	notice := vc.ActiveNotice()
	require.NotNil(t, notice)
	require.Equal(t, NoticeError, notice.Kind)
	require.Zero(t, f.requests.Load(), "guard must not issue any network call")
}

func TestLoginFlow(t *testing.T) {
	_, vc := newTestView(t)
	ctx := context.Background()

	vc.SubmitLogin(ctx, core.Credentials{Email: "a@example.com", Password: "secret1"})

	require.True(t, vc.session.IsLoggedIn())
	require.Equal(t, SectionExpenses, vc.Section())
	notice := vc.ActiveNotice()
	require.NotNil(t, notice)
	require.Equal(t, NoticeSuccess, notice.Kind)
}

func TestLoginFailureShowsServerMessage(t *testing.T) {
	_, vc := newTestView(t)

	vc.SubmitLogin(context.Background(), core.Credentials{Email: "a@example.com", Password: "wrong"})

	require.False(t, vc.session.IsLoggedIn())
	notice := vc.ActiveNotice()
	require.NotNil(t, notice)
	require.Equal(t, NoticeError, notice.Kind)
	require.Equal(t, "invalid email or password", notice.Text)
}

func TestRegisterDoesNotAutoLogin(t *testing.T) {
	_, vc := newTestView(t)

	vc.SubmitRegister(context.Background(), core.Registration{
		Username: "alice", Email: "a@example.com", Password: "secret1",
	})

	require.False(t, vc.session.IsLoggedIn())
	require.Equal(t, SectionEntry, vc.Section())
	require.Equal(t, NoticeSuccess, vc.ActiveNotice().Kind)
}

func TestCreateAndListFlow(t *testing.T) {
	_, vc := newTestView(t)
	ctx := context.Background()

	vc.SubmitLogin(ctx, core.Credentials{Email: "a@example.com", Password: "secret1"})
	vc.SubmitExpenseForm(ctx, testInput())

	require.Len(t, vc.Expenses(), 1)
	require.Equal(t, "Lunch", vc.Expenses()[0].Title)
	require.Equal(t, ModeCreate, vc.Mode())
	require.Equal(t, core.ExpenseInput{}, vc.Form(), "form clears after a successful create")
}

func TestEditModeMachine(t *testing.T) {
	_, vc := newTestView(t)
	ctx := context.Background()

	vc.SubmitLogin(ctx, core.Credentials{Email: "a@example.com", Password: "secret1"})
	vc.SubmitExpenseForm(ctx, testInput())
	id := vc.Expenses()[0].ID

	vc.BeginEdit(ctx, id)
	require.Equal(t, ModeEditing(id), vc.Mode())
	require.Equal(t, "Lunch", vc.Form().Title, "form prefilled from the fetched expense")

	// Submit in edit mode issues an update and reverts to create mode.
	in := testInput()
	in.Title = "Dinner"
	vc.SubmitExpenseForm(ctx, in)

	require.Equal(t, ModeCreate, vc.Mode())
	require.Len(t, vc.Expenses(), 1)
	require.Equal(t, "Dinner", vc.Expenses()[0].Title)
}

func TestCancelEditRevertsWithoutNetwork(t *testing.T) {
	f, vc := newTestView(t)
	ctx := context.Background()

	vc.SubmitLogin(ctx, core.Credentials{Email: "a@example.com", Password: "secret1"})
	vc.SubmitExpenseForm(ctx, testInput())
	vc.BeginEdit(ctx, vc.Expenses()[0].ID)

	before := f.requests.Load()
	vc.CancelEdit()

	require.Equal(t, ModeCreate, vc.Mode())
	require.Equal(t, core.ExpenseInput{}, vc.Form())
	require.Equal(t, before, f.requests.Load())
}

func TestDeleteRevertsEditMode(t *testing.T) {
	_, vc := newTestView(t)
	ctx := context.Background()

	vc.SubmitLogin(ctx, core.Credentials{Email: "a@example.com", Password: "secret1"})
	vc.SubmitExpenseForm(ctx, testInput())
	id := vc.Expenses()[0].ID

	// Deleting the row being edited must not leave the form editing a
	// stale id.
	vc.BeginEdit(ctx, id)
	vc.Delete(ctx, id)

	require.Equal(t, ModeCreate, vc.Mode())
	require.Empty(t, vc.Expenses())
}

func TestValidationErrorSurfacesFieldMessages(t *testing.T) {
	_, vc := newTestView(t)
	ctx := context.Background()

	vc.SubmitLogin(ctx, core.Credentials{Email: "a@example.com", Password: "secret1"})

	in := testInput()
	in.Amount = -1
	vc.SubmitExpenseForm(ctx, in)

	notice := vc.ActiveNotice()
	require.NotNil(t, notice)
	require.Equal(t, NoticeError, notice.Kind)
	require.Contains(t, notice.Text, "amount must be greater than 0")
}

func TestTransportErrorFallsBackToGenericMessage(t *testing.T) {
	session := NewSessionManager(filepath.Join(t.TempDir(), "session.json"))
	// Nothing listens here.
	api := NewAPIClient("http://127.0.0.1:1", session)
	vc := NewViewController(api, session)

	vc.SubmitLogin(context.Background(), core.Credentials{Email: "a@example.com", Password: "secret1"})

	notice := vc.ActiveNotice()
	require.NotNil(t, notice)
	require.Equal(t, NoticeError, notice.Kind)
	require.Equal(t, fallbackErrorMessage, notice.Text)
}

func TestLogoutResetsView(t *testing.T) {
	_, vc := newTestView(t)
	ctx := context.Background()

	vc.SubmitLogin(ctx, core.Credentials{Email: "a@example.com", Password: "secret1"})
	vc.SubmitExpenseForm(ctx, testInput())
	require.Equal(t, SectionExpenses, vc.Section())

	vc.Logout()

	require.False(t, vc.session.IsLoggedIn())
	require.Equal(t, SectionEntry, vc.Section())
	require.Empty(t, vc.Expenses())
	require.Equal(t, ModeCreate, vc.Mode())
}

func TestNoticeExpiresAfterTTL(t *testing.T) {
	_, vc := newTestView(t)

	current := time.Now()
	vc.now = func() time.Time { return current }

	vc.showSuccess("done")
	require.NotNil(t, vc.ActiveNotice())

	current = current.Add(noticeTTL + time.Second)
	require.Nil(t, vc.ActiveNotice())
}

func TestDoubleSubmitBlocked(t *testing.T) {
	f, vc := newTestView(t)
	ctx := context.Background()

	vc.SubmitLogin(ctx, core.Credentials{Email: "a@example.com", Password: "secret1"})
	before := f.requests.Load()

	// Simulate a submit arriving while the prior one is unresolved.
	vc.inFlight = true
	vc.SubmitExpenseForm(ctx, testInput())

	require.Equal(t, before, f.requests.Load(), "in-flight form must swallow the second submit")
	vc.inFlight = false
}
