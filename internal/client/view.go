package client

import (
	"context"
	"errors"
	"time"

	"tally/internal/core"
)

// FormMode says what a submit of the expense form means. The mode is an
// explicit value dispatched on submit, never a swapped handler.
type FormMode struct {
	Editing   bool
	ExpenseID int64
}

var ModeCreate = FormMode{}

func ModeEditing(id int64) FormMode {
	return FormMode{Editing: true, ExpenseID: id}
}

// Section is a navigable area of the client UI.
type Section string

const (
	SectionEntry    Section = "entry"
	SectionExpenses Section = "expenses"
)

// NoticeKind marks a notice as success or error feedback.
type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
)

// noticeTTL is how long a transient notice stays visible.
const noticeTTL = 3 * time.Second

// Notice is one transient feedback message. Every action outcome produces
// exactly one.
type Notice struct {
	Kind    NoticeKind
	Text    string
	shownAt time.Time
}

const fallbackErrorMessage = "Something went wrong. Please try again."

// ViewController drives the client UI: one method per user action, each
// doing input collection, a network call, envelope interpretation, and a
// state update for the renderer to pick up.
type ViewController struct {
	api     *APIClient
	session *SessionManager

	section  Section
	mode     FormMode
	inFlight bool

	expenses []core.Expense
	notice   *Notice
	form     core.ExpenseInput

	now func() time.Time
}

func NewViewController(api *APIClient, session *SessionManager) *ViewController {
	vc := &ViewController{
		api:     api,
		session: session,
		section: SectionEntry,
		mode:    ModeCreate,
		now:     time.Now,
	}
	session.OnChange(func(loggedIn bool) {
		if !loggedIn {
			vc.section = SectionEntry
			vc.mode = ModeCreate
			vc.expenses = nil
		}
	})
	return vc
}

// Section returns the currently visible section.
func (vc *ViewController) Section() Section { return vc.section }

// Mode returns the expense form's current mode.
func (vc *ViewController) Mode() FormMode { return vc.mode }

// Expenses returns the last rendered list.
func (vc *ViewController) Expenses() []core.Expense { return vc.expenses }

// Form returns the expense form's current contents (prefilled when editing).
func (vc *ViewController) Form() core.ExpenseInput { return vc.form }

// ActiveNotice returns the current notice, or nil once it has aged out.
func (vc *ViewController) ActiveNotice() *Notice {
	if vc.notice == nil {
		return nil
	}
	if vc.now().Sub(vc.notice.shownAt) > noticeTTL {
		vc.notice = nil
		return nil
	}
	return vc.notice
}

func (vc *ViewController) showSuccess(text string) {
	vc.notice = &Notice{Kind: NoticeSuccess, Text: text, shownAt: vc.now()}
}

func (vc *ViewController) showError(err error) {
	text := fallbackErrorMessage
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Error() != "" {
		text = apiErr.Error()
	}
	vc.notice = &Notice{Kind: NoticeError, Text: text, shownAt: vc.now()}
}

// begin marks a request in flight. It returns false when a prior request
// on the form has not resolved yet, blocking double submits.
func (vc *ViewController) begin() bool {
	if vc.inFlight {
		return false
	}
	vc.inFlight = true
	return true
}

func (vc *ViewController) end() { vc.inFlight = false }

// OpenExpenses navigates to the expense section. While logged out it shows
// an error and stays on the entry view without any network call.
func (vc *ViewController) OpenExpenses(ctx context.Context) {
	if !vc.session.IsLoggedIn() {
		vc.notice = &Notice{Kind: NoticeError, Text: "Please log in first", shownAt: vc.now()}
		vc.section = SectionEntry
		return
	}
	vc.section = SectionExpenses
	vc.RefreshList(ctx)
}

// SubmitRegister creates an account. Success switches to the login form;
// it does not auto-login.
func (vc *ViewController) SubmitRegister(ctx context.Context, reg core.Registration) {
	if !vc.begin() {
		return
	}
	defer vc.end()

	if _, err := vc.api.Register(ctx, reg); err != nil {
		vc.showError(err)
		return
	}
	vc.section = SectionEntry
	vc.showSuccess("Registered. You can log in now.")
}

// SubmitLogin exchanges credentials for a session and loads the list.
func (vc *ViewController) SubmitLogin(ctx context.Context, creds core.Credentials) {
	if !vc.begin() {
		return
	}
	defer vc.end()

	if _, err := vc.api.Login(ctx, creds); err != nil {
		vc.showError(err)
		return
	}
	vc.section = SectionExpenses
	vc.showSuccess("Logged in")
	vc.RefreshList(ctx)
}

// Logout clears the session locally; stateless sessions need no server
// call. The session change hook resets section, mode, and list.
func (vc *ViewController) Logout() {
	if err := vc.session.ClearSession(); err != nil {
		vc.showError(err)
		return
	}
	vc.showSuccess("Logged out")
}

// SubmitExpenseForm dispatches on the current mode: create a new expense
// or update the one being edited. Any successful submit returns the form
// to create mode.
func (vc *ViewController) SubmitExpenseForm(ctx context.Context, in core.ExpenseInput) {
	if !vc.begin() {
		return
	}
	defer vc.end()

	if vc.mode.Editing {
		if _, err := vc.api.UpdateExpense(ctx, vc.mode.ExpenseID, in); err != nil {
			vc.showError(err)
			return
		}
		vc.mode = ModeCreate
		vc.form = core.ExpenseInput{}
		vc.showSuccess("Expense updated")
	} else {
		if _, err := vc.api.AddExpense(ctx, in); err != nil {
			vc.showError(err)
			return
		}
		vc.form = core.ExpenseInput{}
		vc.showSuccess("Expense added")
	}
	vc.refreshList(ctx)
}

// BeginEdit fetches the expense and prefills the form in editing mode.
func (vc *ViewController) BeginEdit(ctx context.Context, id int64) {
	if !vc.begin() {
		return
	}
	defer vc.end()

	expense, err := vc.api.GetExpense(ctx, id)
	if err != nil {
		vc.showError(err)
		return
	}
	vc.mode = ModeEditing(id)
	vc.form = core.ExpenseInput{
		Title:       expense.Title,
		Amount:      expense.Amount,
		Date:        expense.Date,
		Description: expense.Description,
	}
}

// CancelEdit abandons an edit without a network call.
func (vc *ViewController) CancelEdit() {
	vc.mode = ModeCreate
	vc.form = core.ExpenseInput{}
}

// Delete removes an expense. A successful delete also returns the form to
// create mode, in case the deleted row was being edited.
func (vc *ViewController) Delete(ctx context.Context, id int64) {
	if !vc.begin() {
		return
	}
	defer vc.end()

	if err := vc.api.DeleteExpense(ctx, id); err != nil {
		vc.showError(err)
		return
	}
	vc.mode = ModeCreate
	vc.form = core.ExpenseInput{}
	vc.showSuccess("Expense deleted")
	vc.refreshList(ctx)
}

// RefreshList replaces the rendered list wholesale.
func (vc *ViewController) RefreshList(ctx context.Context) {
	vc.refreshList(ctx)
}

func (vc *ViewController) refreshList(ctx context.Context) {
	expenses, err := vc.api.ListExpenses(ctx)
	if err != nil {
		vc.showError(err)
		return
	}
	vc.expenses = expenses
}
