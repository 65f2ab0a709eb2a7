// Command dtadmin is the main entry point for the CLI binary.
// It dispatches to the console and the scriptable subcommands.
package main

import (
	"fmt"
	"os"

	"dtadmin/internal/cmd/account"
	"dtadmin/internal/cmd/admin"
	"dtadmin/internal/cmd/list"
	"dtadmin/internal/cmd/product"
	"dtadmin/internal/cmd/report"
	"dtadmin/internal/cmd/resetsession"
	"dtadmin/internal/cmd/setup"
	"dtadmin/internal/cmd/stats"
	"dtadmin/internal/cmd/user"
	"dtadmin/internal/version"
)

// main is the process entry point and forwards to run for testable logic.
func main() {
	if err := run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

// run parses argv and invokes the matching subcommand handler.
// It returns an error for missing or unknown subcommands.
func run(argv []string) error {
	if len(argv) < 2 {
		usage()
		return fmt.Errorf("missing subcommand")
	}

	args := argv[2:]
	switch argv[1] {
	case "setup":
		return setup.Run(args)
	case "reset-session":
		return resetsession.Run(args)
	case "admin":
		return admin.Run(args)
	case "login":
		return account.RunLogin(args)
	case "logout":
		return account.RunLogout(args)
	case "whoami":
		return account.RunWhoami(args)
	case "password-reset":
		return account.RunPasswordReset(args)
	case "stats":
		return stats.Run(args)
	case "list":
		return list.Run(args)
	case "product":
		return product.Run(args)
	case "spotlight":
		return product.RunSpotlight(args)
	case "user":
		return user.Run(args)
	case "permissions":
		return user.RunPermissions(args)
	case "report":
		return report.Run(args)
	case "version":
		fmt.Println(version.String())
		return nil
	case "-h", "--help", "help":
		usage()
		return nil
	default:
		usage()
		return fmt.Errorf("unknown subcommand: %s", argv[1])
	}
}

// usage prints the canonical CLI syntax to stderr.
func usage() {
	fmt.Fprintln(os.Stderr, `dtadmin <command> [flags]

  setup            write the config and initialise the token store
  admin            open the interactive console
  login            sign in
  logout           sign out
  whoami           show the signed-in account
  reset-session    clear the local session without contacting the server
  password-reset   request|verify
  stats            dashboard counters
  list             products|users|reports|logs|spotlight
  product          update|delete <id>
  spotlight        apply|show|remove <id>
  user             show|create|update|delete|suspend|unsuspend|reset-password
  permissions      show|set <id>
  report           approve|reject|review <id>
  version          print the version`)
}
