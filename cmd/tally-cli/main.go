package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"golang.org/x/term"

	"tally/internal/client"
	"tally/internal/core"
)

const usage = `Commands:
  register             create an account
  login                sign in and start a session
  logout               sign out
  list                 show your expenses
  add                  record a new expense
  edit <id>            update an expense
  delete <id>          remove an expense
  help                 show this help
  quit                 exit
`

func main() {
	_ = godotenv.Load()

	baseURL := flag.String("url", envOr("TALLY_URL", "http://localhost:8081"), "base URL of the tally API")
	sessionPath := flag.String("session", envOr("TALLY_SESSION_FILE", defaultSessionPath()), "path of the session file")
	flag.Parse()

	session := client.NewSessionManager(*sessionPath)
	api := client.NewAPIClient(*baseURL, session)
	vc := client.NewViewController(api, session)

	ctx := context.Background()
	if session.IsLoggedIn() {
		vc.OpenExpenses(ctx)
	}

	app := &app{vc: vc, in: bufio.NewScanner(os.Stdin), out: os.Stdout}
	app.run(ctx)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultSessionPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tally-session.json"
	}
	return filepath.Join(home, ".config", "tally", "session.json")
}

type app struct {
	vc  *client.ViewController
	in  *bufio.Scanner
	out io.Writer
}

func (a *app) run(ctx context.Context) {
	fmt.Fprintln(a.out, "tally - personal expense tracker")
	fmt.Fprint(a.out, usage)

	for {
		a.render()
		fmt.Fprint(a.out, "> ")
		if !a.in.Scan() {
			return
		}
		line := strings.TrimSpace(a.in.Text())
		if line == "" {
			continue
		}
		cmd, arg, _ := strings.Cut(line, " ")

		switch cmd {
		case "register":
			a.register(ctx)
		case "login":
			a.login(ctx)
		case "logout":
			a.vc.Logout()
		case "list":
			a.vc.OpenExpenses(ctx)
			a.vc.RefreshList(ctx)
		case "add":
			a.vc.CancelEdit()
			a.submitForm(ctx)
		case "edit":
			a.edit(ctx, arg)
		case "delete":
			a.delete(ctx, arg)
		case "help":
			fmt.Fprint(a.out, usage)
		case "quit", "exit":
			return
		default:
			fmt.Fprintf(a.out, "unknown command %q (try help)\n", cmd)
		}
	}
}

// render prints the current section and any pending notice. The controller
// owns all state; this just draws it.
func (a *app) render() {
	if n := a.vc.ActiveNotice(); n != nil {
		fmt.Fprintf(a.out, "[%s] %s\n", n.Kind, n.Text)
	}
	switch a.vc.Section() {
	case client.SectionExpenses:
		expenses := a.vc.Expenses()
		if len(expenses) == 0 {
			fmt.Fprintln(a.out, "no expenses yet")
			return
		}
		for _, e := range expenses {
			fmt.Fprintf(a.out, "  #%d  %-20s %8.2f  %s  %s\n", e.ID, e.Title, e.Amount, e.Date, e.Description)
		}
	default:
		fmt.Fprintln(a.out, "not signed in (register or login)")
	}
}

func (a *app) register(ctx context.Context) {
	reg := core.Registration{
		Username: a.prompt("username: "),
		Email:    a.prompt("email: "),
	}
	pw, err := a.promptPassword("password: ")
	if err != nil {
		fmt.Fprintf(a.out, "reading password: %v\n", err)
		return
	}
	reg.Password = pw
	a.vc.SubmitRegister(ctx, reg)
}

func (a *app) login(ctx context.Context) {
	creds := core.Credentials{Email: a.prompt("email: ")}
	pw, err := a.promptPassword("password: ")
	if err != nil {
		fmt.Fprintf(a.out, "reading password: %v\n", err)
		return
	}
	creds.Password = pw
	a.vc.SubmitLogin(ctx, creds)
}

func (a *app) edit(ctx context.Context, arg string) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id < 1 {
		fmt.Fprintln(a.out, "usage: edit <id>")
		return
	}
	a.vc.BeginEdit(ctx, id)
	if !a.vc.Mode().Editing {
		return // fetch failed, notice already set
	}
	a.submitForm(ctx)
}

func (a *app) delete(ctx context.Context, arg string) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id < 1 {
		fmt.Fprintln(a.out, "usage: delete <id>")
		return
	}
	a.vc.Delete(ctx, id)
}

// submitForm collects the expense fields, prefilled from the controller's
// form when editing, and submits through the active mode.
func (a *app) submitForm(ctx context.Context) {
	prev := a.vc.Form()
	in := core.ExpenseInput{
		Title:       a.promptDefault("title", prev.Title),
		Description: a.promptDefault("description", prev.Description),
	}

	amountStr := a.promptDefault("amount", formatAmount(prev.Amount))
	amount, err := strconv.ParseFloat(amountStr, 64)
	if err != nil {
		fmt.Fprintf(a.out, "invalid amount %q\n", amountStr)
		return
	}
	in.Amount = amount

	dateStr := a.promptDefault("date (YYYY-MM-DD)", formatDate(prev.Date))
	date, err := core.ParseDate(dateStr)
	if err != nil {
		fmt.Fprintf(a.out, "invalid date %q\n", dateStr)
		return
	}
	in.Date = date

	a.vc.SubmitExpenseForm(ctx, in)
}

func formatAmount(v float64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// formatDate renders the prefill default; an unset date shows no default
// rather than the zero date.
func formatDate(d core.Date) string {
	if d.IsZero() {
		return ""
	}
	return d.String()
}

func (a *app) prompt(label string) string {
	fmt.Fprint(a.out, label)
	if !a.in.Scan() {
		return ""
	}
	return strings.TrimSpace(a.in.Text())
}

// promptDefault keeps the current value when the user just hits enter.
func (a *app) promptDefault(label, current string) string {
	if current != "" {
		fmt.Fprintf(a.out, "%s [%s]: ", label, current)
	} else {
		fmt.Fprintf(a.out, "%s: ", label)
	}
	if !a.in.Scan() {
		return current
	}
	v := strings.TrimSpace(a.in.Text())
	if v == "" {
		return current
	}
	return v
}

func (a *app) promptPassword(label string) (string, error) {
	fmt.Fprint(a.out, label)
	if term.IsTerminal(int(os.Stdin.Fd())) {
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(a.out)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	// Fallback for non-terminal input (pipes, tests)
	if !a.in.Scan() {
		return "", io.EOF
	}
	return strings.TrimSpace(a.in.Text()), nil
}
