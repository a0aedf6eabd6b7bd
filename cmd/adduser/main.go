// Command adduser creates a ledger account straight in the database,
// without going through the HTTP API.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/FacundoTogliefoso/transaction-log/internal/config"
	"github.com/FacundoTogliefoso/transaction-log/internal/database"
	"github.com/FacundoTogliefoso/transaction-log/internal/models"
	"github.com/FacundoTogliefoso/transaction-log/internal/store"
	"github.com/FacundoTogliefoso/transaction-log/internal/util"

	"github.com/shopspring/decimal"
	"golang.org/x/term"
)

const generatedPasswordLen = 16

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("adduser", flag.ContinueOnError)
	fs.SetOutput(stderr)

	username := fs.String("user", "", "Username")
	passwordFlag := fs.String("password", "", "Password (optional, will prompt if omitted)")
	generate := fs.Bool("generate", false, "Generate a random password and print it")
	roleFlag := fs.String("role", "client", "Role: client or admin")
	email := fs.String("email", "", "Email (optional)")
	balanceFlag := fs.String("balance", "", "Opening balance (optional)")
	configPath := fs.String("config", "", "Path to config file")
	dbPath := fs.String("db", "", "Path to sqlite database file, overrides the config")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *username == "" {
		fmt.Fprintln(stdout, "Usage: adduser -user <username> [-password <password> | -generate] [-role client|admin] [-db <db_path>]")
		fs.PrintDefaults()
		return fmt.Errorf("missing required flags: user")
	}
	if err := util.ValidateUsername(*username); err != nil {
		return err
	}
	role, err := models.ParseRole(*roleFlag)
	if err != nil {
		return err
	}
	balance := decimal.Zero
	if *balanceFlag != "" {
		if balance, err = decimal.NewFromString(*balanceFlag); err != nil {
			return fmt.Errorf("invalid balance %q", *balanceFlag)
		}
	}

	password := *passwordFlag
	switch {
	case *generate:
		if password, err = util.RandomString(generatedPasswordLen); err != nil {
			return fmt.Errorf("failed to generate password: %w", err)
		}
	case password == "":
		fmt.Fprint(stdout, "Password: ")
		password, err = readPassword(stdin)
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(stdout)
	}

	if strings.TrimSpace(password) == "" {
		return fmt.Errorf("password cannot be empty")
	}
	if err := util.ValidatePassword(password); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
		if cfg.Database.Driver == "mysql" {
			cfg.Database.Driver = "sqlite"
		}
	}

	db, err := database.Init(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close(db)
	if err := database.AutoMigrate(db); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	ctx := context.Background()
	users := store.NewUsers(db)

	if _, err := users.GetByUsername(ctx, *username); err == nil {
		return fmt.Errorf("user %s already exists", *username)
	} else if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("failed to look up user: %w", err)
	}

	hash, err := util.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     *username,
		Email:        strings.TrimSpace(*email),
		PasswordHash: hash,
		Role:         role,
		Balance:      balance,
	}
	if err := users.Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return fmt.Errorf("user %s already exists", *username)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	fmt.Fprintf(stdout, "User %s created successfully with ID %s (role %s)\n", user.Username, user.ID, user.Role)
	if *generate {
		fmt.Fprintf(stdout, "Password: %s\n", password)
	}
	return nil
}

func readPassword(stdin io.Reader) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	// pipes and tests
	scanner := bufio.NewScanner(stdin)
	if scanner.Scan() {
		return scanner.Text(), nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}
