package main

import (
	"context"
	"fmt"

	"github.com/trezcool/mahudhurio/core/attendance"
)

// sweep marks unrecorded students absent; meant for a cron entry shortly
// after each session ends.
func (cli *commandLine) sweep(ctx context.Context, institutionID, gradeSectionID, date, session string, force bool) error {
	if date == "" {
		date = cli.attSvc.Today()
	}

	req := attendance.SweepRequest{
		Date:           date,
		GradeSectionID: gradeSectionID,
		Session:        session,
		Force:          force,
	}

	res, err := cli.attSvc.SweepAbsences(ctx, institutionID, req, "admin:sweep")
	if err != nil {
		return err
	}
	if res.NotYetDue {
		fmt.Printf("sweep not due yet: %s %s session ends in %d min\n", res.Date, res.Session, res.MinutesRemaining)
		return nil
	}
	fmt.Printf("swept %s %s: %d considered, %d marked absent, %d already recorded\n",
		res.Date, res.Session, res.Considered, res.MarkedAbsent, res.AlreadyRecorded)
	return nil
}
