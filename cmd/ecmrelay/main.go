// Command ecmrelay relays ECM1240 power-meter frames between one input
// link and a set of configured peers (spec.md §6: "<program>
// <config-path>").
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ecmrelay/ecmrelay/internal/config"
	"github.com/ecmrelay/ecmrelay/internal/rlog"
	"github.com/ecmrelay/ecmrelay/reactor"
)

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	if len(args) < 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <config-path>\n", args[0])
		return 1
	}

	cfg, err := config.Load(args[1])
	if err != nil {
		fmt.Println(err)
		return 1
	}

	log, err := rlog.New(cfg.LogLevel)
	if err != nil {
		fmt.Println(err)
		return 1
	}
	defer log.Sync()

	logConfig(log, cfg)

	peers := make([]reactor.Connection, len(cfg.Peers))
	copy(peers, cfg.Peers)
	peerPtrs := make([]*reactor.Connection, len(peers))
	for i := range peers {
		peerPtrs[i] = &peers[i]
	}

	prog := reactor.NewProgram(&cfg.Input, peerPtrs, log)
	prog.Start()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info("shutdown requested")
		prog.Stop()
	}()

	if err := prog.Run(); err != nil {
		log.Crit("reactor exited with error", "err", err)
		prog.Close()
		return 1
	}

	prog.Close()
	return 0
}

// logConfig logs the loaded configuration once at startup, the
// equivalent of original_source/ecmread.c's print_config call in main.
func logConfig(log *rlog.Logger, cfg *config.Config) {
	log.Info("input configured",
		"name", cfg.Input.Name,
		"host", cfg.Input.Host,
		"port", cfg.Input.Port,
		"connector", cfg.Input.Connector,
		"controller", cfg.Input.Controller,
	)
	for _, peer := range cfg.Peers {
		log.Info("peer configured",
			"name", peer.Name,
			"host", peer.Host,
			"port", peer.Port,
			"connector", peer.Connector,
			"controller", peer.Controller,
			"connect_delay", peer.ConnectDelay,
		)
	}
}
