// Command habitctl is a small terminal client for the habit tracker API.
//
//	habitctl [-server URL] register EMAIL [NAME]
//	habitctl [-server URL] login EMAIL
//	habitctl [-server URL] profile
//	habitctl [-server URL] get YEAR MONTH
//	habitctl [-server URL] put YEAR MONTH FILE   (FILE "-" reads stdin)
//	habitctl [-server URL] init YEAR MONTH
//	habitctl [-server URL] months YEAR
//
// Commands other than register and login read the token from HABIT_TOKEN.
// Months are 0-based, January is 0.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/msomdec/habit-tracker/internal/client"
	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// isTerminal is a test seam for term.IsTerminal.
var isTerminal = term.IsTerminal

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "habitctl:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("habitctl", flag.ContinueOnError)
	fs.SetOutput(stdout)
	server := fs.String("server", envOr("HABIT_SERVER", "http://localhost:8080"), "API base URL")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return errors.New("missing command")
	}

	c := client.New(*server, nil)
	c.SetToken(os.Getenv("HABIT_TOKEN"))
	in := bufio.NewReader(stdin)

	switch cmd, params := rest[0], rest[1:]; cmd {
	case "register":
		if len(params) < 1 {
			return errors.New("usage: register EMAIL [NAME]")
		}
		name := ""
		if len(params) > 1 {
			name = strings.Join(params[1:], " ")
		}
		pw, err := promptPassword(in, stdin, stdout)
		if err != nil {
			return err
		}
		res, err := c.Register(ctx, params[0], pw, name)
		if err != nil {
			return err
		}
		return printAuth(stdout, res)

	case "login":
		if len(params) != 1 {
			return errors.New("usage: login EMAIL")
		}
		pw, err := promptPassword(in, stdin, stdout)
		if err != nil {
			return err
		}
		res, err := c.Login(ctx, params[0], pw)
		if err != nil {
			return err
		}
		return printAuth(stdout, res)

	case "profile":
		p, err := c.Profile(ctx)
		if err != nil {
			return err
		}
		return printJSON(stdout, p)

	case "get":
		year, month, err := yearMonth(params)
		if err != nil {
			return err
		}
		s, err := c.Month(ctx, year, month)
		if err != nil {
			return err
		}
		return printJSON(stdout, s)

	case "put":
		if len(params) != 3 {
			return errors.New("usage: put YEAR MONTH FILE")
		}
		year, month, err := yearMonth(params[:2])
		if err != nil {
			return err
		}
		payload, err := readPayload(params[2], in)
		if err != nil {
			return err
		}
		s, err := c.Save(ctx, year, month, payload)
		if err != nil {
			return err
		}
		return printJSON(stdout, s)

	case "init":
		year, month, err := yearMonth(params)
		if err != nil {
			return err
		}
		s, err := c.InitMonth(ctx, year, month)
		if err != nil {
			return err
		}
		return printJSON(stdout, s)

	case "months":
		if len(params) != 1 {
			return errors.New("usage: months YEAR")
		}
		year, err := strconv.Atoi(params[0])
		if err != nil {
			return fmt.Errorf("year: %w", err)
		}
		months, err := c.SavedMonths(ctx, year)
		if err != nil {
			return err
		}
		return printJSON(stdout, months)

	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// promptPassword reads without echo from a terminal, or a single line when
// input is piped.
func promptPassword(in *bufio.Reader, stdin io.Reader, stdout io.Writer) (string, error) {
	fmt.Fprint(stdout, "Enter password: ")
	if f, ok := stdin.(*os.File); ok && isTerminal(int(f.Fd())) {
		pw, err := readPassword(int(f.Fd()))
		fmt.Fprintln(stdout)
		if err != nil {
			return "", err
		}
		return string(pw), nil
	}

	line, err := in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read password: %w", err)
	}
	fmt.Fprintln(stdout)
	return strings.TrimRight(line, "\r\n"), nil
}

func readPayload(path string, in *bufio.Reader) (json.RawMessage, error) {
	var (
		raw []byte
		err error
	)
	if path == "-" {
		raw, err = io.ReadAll(in)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	if !json.Valid(raw) {
		return nil, errors.New("payload is not valid JSON")
	}
	return raw, nil
}

func yearMonth(params []string) (int, int, error) {
	if len(params) != 2 {
		return 0, 0, errors.New("expected YEAR MONTH")
	}
	year, err := strconv.Atoi(params[0])
	if err != nil {
		return 0, 0, fmt.Errorf("year: %w", err)
	}
	month, err := strconv.Atoi(params[1])
	if err != nil {
		return 0, 0, fmt.Errorf("month: %w", err)
	}
	return year, month, nil
}

func printAuth(w io.Writer, res *client.AuthResponse) error {
	fmt.Fprintf(w, "Signed in as %s (id %d)\n", res.User.Email, res.User.ID)
	fmt.Fprintf(w, "export HABIT_TOKEN=%s\n", res.AccessToken)
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
