package main

import (
	"fmt"
	"log"
	"os"

	"github.com/trezcool/masomo-quiz/core"
	"github.com/trezcool/masomo-quiz/services/logger"
	"github.com/trezcool/masomo-quiz/storage/database"
	"github.com/trezcool/masomo-quiz/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)

	if conf.Database.Engine == core.EngineMemory {
		logger.Fatal("the admin CLI needs a persistent database engine (postgres|sqlite)")
	}

	// set up DB
	if err := database.CreateIfNotExist(conf); err != nil {
		logger.Fatal(fmt.Sprintf("creating database %s: %v", conf.Database, err), err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database %s: %v", conf.Database, err), err)
	}

	// start CLI
	cli := commandLine{
		db:      db,
		usrRepo: sqlxrepos.NewUserRepository(db),
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("\nerror: %s\n", err), err)
		}
		os.Exit(1)
	}
}
