package main

import (
	"context"
	"github.com/csr-ugra/hh-vacancy-loader/cmd"
	"github.com/csr-ugra/hh-vacancy-loader/internal/db"
	"github.com/csr-ugra/hh-vacancy-loader/internal/log"
	"github.com/csr-ugra/hh-vacancy-loader/internal/util"
	"github.com/csr-ugra/hh-vacancy-loader/internal/util/assert"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	config, err := util.LoadConfig()
	if err != nil {
		stdlog.Fatal(err)
	}

	logger, logCloser, err := log.New(config)
	if err != nil {
		stdlog.Fatal(err)
	}
	defer logCloser.Close()

	// log panic error
	defer func() {
		if r := recover(); r != nil {
			logger.Panic(r)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger = logger.WithField("Driver", config.DbDriver.Value)

	err = db.EnsureDatabase(ctx, config, logger)
	assert.NoError(logger, err, "failed to prepare database")

	connection, err := db.GetConnection(ctx, config)
	assert.NoError(logger, err, "failed to connect to database")
	defer connection.Close()

	err = cmd.Run(ctx, connection, config, logger)
	assert.NoError(logger, err, "run failed")
}
