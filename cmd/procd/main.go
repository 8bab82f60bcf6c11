// Command procd is the server daemon: it owns the slot store, the
// parameter space, and the runtime supervisor, and answers the
// procedure transport (DEL/PULL/PUSH/SLOTS/RUN) and the parameter
// transport (list/get/set) over UDP.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/suprax-systems/csp-proc/config"
	"github.com/suprax-systems/csp-proc/param"
	"github.com/suprax-systems/csp-proc/platform"
	"github.com/suprax-systems/csp-proc/runtime"
	"github.com/suprax-systems/csp-proc/store"
	"github.com/suprax-systems/csp-proc/transport"
)

func main() {
	configFile := flag.String("config", "", "optional config file (env CSP_PROC_* always overrides defaults)")
	node := flag.Uint("node", 1, "this node's identifier")
	procPort := flag.Int("proc-port", 0, "procedure transport port (0 = config default)")
	paramPort := flag.Int("param-port", param.DefaultRemotePort, "parameter transport port")
	logLevel := flag.String("log-level", "info", "logrus level")
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logrus.WithError(err).Fatal("invalid -log-level")
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	log := logrus.WithField("component", "procd")

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}
	if *procPort != 0 {
		cfg.TransportPort = *procPort
	}

	st := store.New()
	localSpace := param.NewLocalSpace(uint16(*node))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sup := runtime.New(st, localSpace, platform.RealClock{}, cfg)

	udp := &transport.UDPTransport{}
	procListener, err := udp.Listen(cfg.TransportPort)
	if err != nil {
		log.WithError(err).Fatal("failed to bind procedure transport port")
	}
	paramListener, err := udp.Listen(*paramPort)
	if err != nil {
		log.WithError(err).Fatal("failed to bind parameter transport port")
	}

	procServer := transport.NewServer(st, sup)
	paramServer := param.NewServer(localSpace)

	go func() {
		if err := procServer.Serve(ctx, procListener); err != nil {
			log.WithError(err).Error("procedure server stopped")
		}
	}()
	go func() {
		if err := paramServer.Serve(ctx, paramListener); err != nil {
			log.WithError(err).Error("parameter server stopped")
		}
	}()

	log.WithFields(logrus.Fields{
		"node":       *node,
		"proc_port":  cfg.TransportPort,
		"param_port": *paramPort,
	}).Info("procd listening")

	<-ctx.Done()
	log.Info("shutting down")
	sup.StopAll()
	procListener.Close()
	paramListener.Close()
}
