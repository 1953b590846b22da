package main

import (
	"errors"
	"flag"
	"fmt"
	"syscall"

	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/kozihub/kozi/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db      *sqlx.DB
	usrRepo user.Repository
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  adduser -username USERNAME [-email EMAIL] [-admin] - create or update a user; the password is prompted")
	fmt.Println("  resetpassword -username USERNAME|EMAIL - reset user's password")
	fmt.Println("  addregion -id ID -name NAME [-tz ZONE] - register a region")
	fmt.Println("  addgroup -id ID -name NAME [-short SHORT] - register a group")
	fmt.Println("  migrate COMMAND [args] - run database migrations (up, down, status, ...)")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ExitOnError)
	addUserUname := addUserCmd.String("username", "", "The user's username.")
	addUserEmail := addUserCmd.String("email", "", "The user's email.")
	addUserAdmin := addUserCmd.Bool("admin", false, "Grant all roles.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ExitOnError)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's username or email. The password will be prompted next.")

	addRegionCmd := flag.NewFlagSet("addregion", flag.ExitOnError)
	addRegionID := addRegionCmd.String("id", "", "Region id, e.g. \"zurich\".")
	addRegionName := addRegionCmd.String("name", "", "Display name.")
	addRegionTZ := addRegionCmd.String("tz", "UTC", "IANA time zone, e.g. \"Europe/Zurich\".")

	addGroupCmd := flag.NewFlagSet("addgroup", flag.ExitOnError)
	addGroupID := addGroupCmd.String("id", "", "Group id.")
	addGroupName := addGroupCmd.String("name", "", "Display name.")
	addGroupShort := addGroupCmd.String("short", "", "Short name.")

	switch args[1] {
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserUname == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(*addUserUname, *addUserEmail, pwd, *addUserAdmin)
	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordUname, pwd)
	case "addregion":
		if err := addRegionCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addRegionID == "" || *addRegionName == "" {
			addRegionCmd.Usage()
			return errHelp
		}
		return cli.addRegion(*addRegionID, *addRegionName, *addRegionTZ)
	case "addgroup":
		if err := addGroupCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addGroupID == "" || *addGroupName == "" {
			addGroupCmd.Usage()
			return errHelp
		}
		return cli.addGroup(*addGroupID, *addGroupName, *addGroupShort)
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	default:
		cli.printUsage()
		return errHelp
	}
}

func promptPassword() (string, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(syscall.Stdin)
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}
