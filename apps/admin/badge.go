package main

import (
	"context"
	"fmt"
)

// badge prints the signed token a student's QR badge must encode; re-running
// it for the same student always prints the same token.
func (cli *commandLine) badge(ctx context.Context, institutionID, code string) error {
	stu, err := cli.stuSvc.ResolveByCode(ctx, institutionID, code)
	if err != nil {
		return err
	}
	token, err := cli.stuSvc.BadgeToken(stu)
	if err != nil {
		return err
	}
	fmt.Printf("%s (%s): %s\n", stu.FullName(), stu.EnrollmentCode, token)
	return nil
}
