package main

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/student"
	"github.com/trezcool/mahudhurio/storage/database"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	db     *database.DB
	conf   *core.Config
	stuSvc *student.Service
	attSvc *attendance.Service
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [args] - run database migrations (goose commands)")
	fmt.Println("  sweep -institution ID -grade-section ID [-date DATE] [-session AM|PM] [-force] - mark unrecorded students absent")
	fmt.Println("  badge -institution ID -code CODE - print the signed token to encode in a student's QR badge")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	sweepCmd := flag.NewFlagSet("sweep", flag.ExitOnError)
	sweepInstitution := sweepCmd.String("institution", "", "The institution ID.")
	sweepSection := sweepCmd.String("grade-section", "", "The grade-section ID to sweep.")
	sweepDate := sweepCmd.String("date", "", "The date to sweep (YYYY-MM-DD); defaults to today.")
	sweepSession := sweepCmd.String("session", "", "The session to sweep (AM|PM); defaults to the current one.")
	sweepForce := sweepCmd.Bool("force", false, "Sweep even if the class has not ended.")

	badgeCmd := flag.NewFlagSet("badge", flag.ExitOnError)
	badgeInstitution := badgeCmd.String("institution", "", "The institution ID.")
	badgeCode := badgeCmd.String("code", "", "The student's national ID or enrollment code.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "sweep":
		if err := sweepCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *sweepInstitution == "" || *sweepSection == "" {
			sweepCmd.Usage()
			return errHelp
		}
		return cli.sweep(context.Background(), *sweepInstitution, *sweepSection, *sweepDate, *sweepSession, *sweepForce)
	case "badge":
		if err := badgeCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *badgeInstitution == "" || *badgeCode == "" {
			badgeCmd.Usage()
			return errHelp
		}
		return cli.badge(context.Background(), *badgeInstitution, *badgeCode)
	default:
		cli.printUsage()
		return errHelp
	}
}
