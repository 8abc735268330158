package main

import (
	"log"
	"os"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/student"
	logsvc "github.com/trezcool/mahudhurio/services/logger"
	notifsvc "github.com/trezcool/mahudhurio/services/notification"
	"github.com/trezcool/mahudhurio/storage/database"
	sqlxrepos "github.com/trezcool/mahudhurio/storage/database/sqlx"
)

func main() {
	defer os.Exit(0)

	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	// set up DB
	db, err := database.Open(conf)
	errAndDie(logger, err)
	defer func() { _ = db.Close() }()
	errAndDie(logger, db.Ping())

	// set up services
	clock := core.NewClock(conf.Attendance.Location())
	stuSvc := student.NewService(sqlxrepos.NewStudentRepository(db.DB), logger, []byte(conf.SecretKey))
	attSvc := attendance.NewService(
		db,
		sqlxrepos.NewAttendanceRepository(db.DB),
		stuSvc,
		sqlxrepos.NewScheduleRepository(db.DB),
		attendance.NewGate(conf.Attendance.ResultCacheTTL, conf.Attendance.ResultCacheCap),
		clock,
		conf,
		logger,
		notifsvc.NewConsoleService(conf),
	)

	// start CLI
	cli := commandLine{
		db:     db,
		conf:   conf,
		attSvc: attSvc,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error("admin command failed", err)
		}
		os.Exit(1)
	}
}

func errAndDie(logger core.Logger, err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
