package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	daemon "github.com/sevlyar/go-daemon"

	"github.com/vmslab/go2vms/internal/api"
	"github.com/vmslab/go2vms/internal/app"
	"github.com/vmslab/go2vms/internal/debug"
	"github.com/vmslab/go2vms/internal/metrics"
	"github.com/vmslab/go2vms/internal/xprotect"
)

func main() {
	app.Init() // init config and logs

	if app.Daemon {
		runDaemon()
		return
	}

	initModules()

	waitSignal()
}

func initModules() {
	api.Init()      // init HTTP API server
	metrics.Init()  // add prometheus endpoint
	xprotect.Init() // add VMS servers, cameras and relay

	debug.Init()
}

func runDaemon() {
	ctx := &daemon.Context{
		PidFileName: app.PidPath,
		PidFilePerm: 0644,
		LogFileName: app.GetLogFilepath(),
		LogFilePerm: 0644,
	}

	daemon.SetSigHandler(termHandler, syscall.SIGTERM, syscall.SIGQUIT)

	child, err := ctx.Reborn()
	if err != nil {
		log.Fatal().Err(err).Msg("daemonize")
	}
	if child != nil {
		// parent process
		log.Info().Int("pid", child.Pid).Msg("daemon started")
		return
	}
	defer func() { _ = ctx.Release() }()

	initModules()

	if err = daemon.ServeSignals(); err != nil {
		log.Error().Err(err).Msg("daemon signals")
	}

	log.Info().Msg("daemon stopped")
}

func termHandler(sig os.Signal) error {
	log.Info().Msgf("exit with signal: %s", sig)
	return daemon.ErrStop
}

func waitSignal() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	log.Info().Msgf("exit with signal: %s", <-sigs)
}
