package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"tally/internal/core"
)

// APIError is a failure envelope returned by the server: status code,
// message, and any field-level validation errors.
type APIError struct {
	Status  int                   `json:"-"`
	Message string                `json:"message"`
	Errors  core.ValidationErrors `json:"errors"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if len(e.Errors) > 0 {
		return e.Errors.Error()
	}
	return fmt.Sprintf("request failed with status %d", e.Status)
}

// TransportError is a client-side network or parse failure: no server
// envelope ever arrived.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "transport error: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// APIClient issues requests against the expense API, attaching the bearer
// token from the session manager on protected routes.
type APIClient struct {
	baseURL string
	http    *http.Client
	session *SessionManager
}

func NewAPIClient(baseURL string, session *SessionManager) *APIClient {
	return &APIClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
		session: session,
	}
}

// envelope is the server's uniform response shape, all optional fields
// flattened into one struct for decoding.
type responseEnvelope struct {
	Success *bool                 `json:"success"`
	Message string                `json:"message"`
	Errors  core.ValidationErrors `json:"errors"`
	Token   string                `json:"token"`
	User    *core.User            `json:"user"`
	Expense *core.Expense         `json:"expense"`
}

func (c *APIClient) do(ctx context.Context, method, path string, body any, withToken bool) (*responseEnvelope, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, &TransportError{Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if withToken {
		req.Header.Set("Authorization", "Bearer "+c.session.Token())
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	var env responseEnvelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, &TransportError{Err: err}
		}
	}

	if resp.StatusCode >= 400 {
		return nil, &APIError{Status: resp.StatusCode, Message: env.Message, Errors: env.Errors}
	}
	return &env, nil
}

// Register creates an account. It does not log in.
func (c *APIClient) Register(ctx context.Context, reg core.Registration) (*core.User, error) {
	env, err := c.do(ctx, http.MethodPost, "/register", reg, false)
	if err != nil {
		return nil, err
	}
	return env.User, nil
}

// Login exchanges credentials for a bearer token and stores it in the
// session manager.
func (c *APIClient) Login(ctx context.Context, creds core.Credentials) (string, error) {
	env, err := c.do(ctx, http.MethodPost, "/login", creds, false)
	if err != nil {
		return "", err
	}
	if env.Token == "" {
		return "", &TransportError{Err: fmt.Errorf("login response missing token")}
	}
	if err := c.session.SetSession(env.Token); err != nil {
		return "", err
	}
	return env.Token, nil
}

func (c *APIClient) AddExpense(ctx context.Context, in core.ExpenseInput) (*core.Expense, error) {
	env, err := c.do(ctx, http.MethodPost, "/add-expense", in, true)
	if err != nil {
		return nil, err
	}
	return env.Expense, nil
}

// ListExpenses returns every expense owned by the session's user.
func (c *APIClient) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/expenses", nil)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.session.Token())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var env responseEnvelope
		if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
			return nil, &APIError{Status: resp.StatusCode}
		}
		return nil, &APIError{Status: resp.StatusCode, Message: env.Message, Errors: env.Errors}
	}

	var expenses []core.Expense
	if err := json.NewDecoder(resp.Body).Decode(&expenses); err != nil {
		return nil, &TransportError{Err: err}
	}
	return expenses, nil
}

func (c *APIClient) GetExpense(ctx context.Context, id int64) (*core.Expense, error) {
	env, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/expenses/%d", id), nil, true)
	if err != nil {
		return nil, err
	}
	return env.Expense, nil
}

func (c *APIClient) UpdateExpense(ctx context.Context, id int64, in core.ExpenseInput) (*core.Expense, error) {
	env, err := c.do(ctx, http.MethodPut, fmt.Sprintf("/expenses/%d", id), in, true)
	if err != nil {
		return nil, err
	}
	return env.Expense, nil
}

func (c *APIClient) DeleteExpense(ctx context.Context, id int64) error {
	_, err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/expenses/%d", id), nil, true)
	return err
}
