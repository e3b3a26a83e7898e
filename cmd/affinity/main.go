package main

import (
	"fmt"
	"os"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "init":
		err = cmdInit()
	case "config":
		err = cmdConfig()
	case "login":
		err = cmdLogin(os.Args[2:])
	case "register":
		err = cmdRegister(os.Args[2:])
	case "logout":
		err = cmdLogout()
	case "whoami":
		err = cmdWhoami()
	case "plans":
		err = cmdPlans(os.Args[2:])
	case "apply":
		err = cmdApply(os.Args[2:])
	case "pay":
		err = cmdPay(os.Args[2:])
	case "drafts":
		err = cmdDrafts(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	case "version", "-v", "--version":
		fmt.Printf("affinity %s\n", Version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Affinity - membership platform client

Usage:
  affinity <command> [arguments]

Setup Commands:
  init            Initialize Affinity (first-time setup)
  config          Show current configuration

Account Commands:
  login           Log in to the platform
  register        Create a new account
  logout          Log out and clear the local session
  whoami          Show the current identity

Membership Commands:
  plans list      List available membership plans
  plans show      Show plan details and its application form
  apply           Apply to a membership plan
  pay             Pay for a submitted application
  drafts list     List locally saved application drafts
  drafts discard  Remove a locally saved draft

Other:
  help            Show this help message
  version         Show version information

Examples:
  affinity login --email alice@example.com
  affinity plans list
  affinity apply 12 --set full_name="Alice Doe" --coupon SAVE20 --agree
  affinity pay --application 501 --amount 80.00 --method card`)
}
