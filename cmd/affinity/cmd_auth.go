package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/affinityhq/affinity/internal/api"
	"github.com/affinityhq/affinity/internal/session"
)

// cmdLogin authenticates against the platform and stores the session.
func cmdLogin(args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password (prompted if omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *email == "" {
		*email = prompt("Email: ")
	}
	if *password == "" {
		*password = prompt("Password: ")
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	result := a.manager.Login(context.Background(), api.LoginRequest{
		Email:    *email,
		Password: *password,
	})
	if !result.Success {
		return fmt.Errorf("login failed: %s", result.Message)
	}

	fmt.Printf("Logged in as %s (%s)\n", result.User.FullName(), result.User.Email)
	return nil
}

// cmdRegister creates a new account. Depending on server policy the account
// may need email verification before it can log in.
func cmdRegister(args []string) error {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	username := fs.String("username", "", "desired username")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password (prompted if omitted)")
	firstName := fs.String("first-name", "", "first name")
	lastName := fs.String("last-name", "", "last name")
	userType := fs.String("type", "", "profile user type")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *username == "" {
		*username = prompt("Username: ")
	}
	if *email == "" {
		*email = prompt("Email: ")
	}
	if *password == "" {
		*password = prompt("Password: ")
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	result := a.manager.Register(context.Background(), api.RegisterRequest{
		Username:  *username,
		Email:     *email,
		Password:  *password,
		FirstName: *firstName,
		LastName:  *lastName,
		UserType:  *userType,
	})
	if !result.Success {
		return fmt.Errorf("registration failed: %s", result.Message)
	}

	if result.EmailVerificationRequired {
		fmt.Println(result.Message)
		return nil
	}
	fmt.Printf("Registered and logged in as %s\n", result.User.Email)
	return nil
}

// cmdLogout drops the local session. It never fails.
func cmdLogout() error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	a.manager.Logout()
	fmt.Println("Logged out")
	return nil
}

// cmdWhoami shows the cached identity immediately, then reports the result
// of verifying it against the server.
func cmdWhoami() error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	needsVerify := a.manager.Bootstrap()

	snap := a.manager.Snapshot()
	if !snap.IsAuthenticated() && !needsVerify {
		fmt.Println("Not logged in")
		return nil
	}

	if snap.User != nil {
		fmt.Printf("Cached identity: %s (%s)\n", snap.User.FullName(), snap.User.Email)
	}
	if info, err := session.PeekToken(snap.Token); err == nil && !info.ExpiresAt.IsZero() {
		fmt.Printf("Token expires:   %s\n", info.ExpiresAt.Format("2006-01-02 15:04:05"))
	}

	if needsVerify {
		a.manager.Verify(ctx)
		snap = a.manager.Snapshot()
		switch snap.State {
		case session.StateAuthenticated:
			fmt.Printf("Verified:        %s (%s)\n", snap.User.FullName(), snap.User.Email)
		case session.StateAnonymous:
			fmt.Println("Session is no longer valid, please log in again")
		}
	}
	return nil
}

func prompt(label string) string {
	fmt.Print(label)
	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}
