package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/cockroachdb/pebble"
	"github.com/drpcorg/objgraph"
	"github.com/drpcorg/objgraph/network"
	"github.com/drpcorg/objgraph/oplog"
	"github.com/drpcorg/objgraph/protocol"
	"github.com/drpcorg/objgraph/replication"
	"github.com/drpcorg/objgraph/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type config struct {
	host    string
	journal string
	listen  string
	connect string
	metrics string
	verbose bool
}

func parseFlags() (c config) {
	flag.StringVar(&c.host, "host", "", "replica id, random when empty")
	flag.StringVar(&c.journal, "journal", "", "pebble directory to keep the history in")
	flag.StringVar(&c.listen, "listen", "", "address to accept peers on, e.g. tcp://:7000")
	flag.StringVar(&c.connect, "connect", "", "peer address to keep a connection to")
	flag.StringVar(&c.metrics, "metrics", "", "address to serve prometheus metrics on")
	flag.BoolVar(&c.verbose, "v", false, "debug logging")
	flag.Parse()
	return
}

func open(c config, log utils.Logger) (*objgraph.Graph, error) {
	opts := objgraph.Options{HostID: c.host, Logger: log}
	if c.journal == "" {
		return objgraph.New(opts), nil
	}
	j, err := oplog.OpenPebble(c.journal, &pebble.Options{}, log)
	if err != nil {
		return nil, err
	}
	g, err := restore(opts, j)
	if err != nil {
		return nil, err
	}
	if c.metrics != "" {
		prometheus.MustRegister(oplog.NewPebbleCollector(j))
	}
	return g, nil
}

// restore owns j: on failure the journal is closed.
func restore(opts objgraph.Options, j objgraph.Journal) (*objgraph.Graph, error) {
	g, err := objgraph.Restore(opts, j)
	if err != nil {
		return nil, errors.Join(err, j.Close())
	}
	return g, nil
}

func run(c config) error {
	level := slog.LevelWarn
	if c.verbose {
		level = slog.LevelDebug
	}
	log := utils.NewDefaultLogger(level)

	g, err := open(c, log)
	if err != nil {
		return err
	}
	host := replication.NewLocked(g)
	defer host.Close()

	if c.metrics != "" {
		prometheus.MustRegister(objgraph.Collectors()...)
		go func() {
			if err := http.ListenAndServe(c.metrics, promhttp.Handler()); err != nil {
				log.Error("metrics: server stopped", "err", err)
			}
		}()
	}

	n := network.NewNet(log,
		func(name string) protocol.FeedDrainCloser {
			s, err := replication.NewSyncer(name, host, log)
			if err != nil {
				log.Error("sync: couldn't start", "name", name, "err", err)
				return nil
			}
			return s
		},
		func(name string) {
			log.Info("sync: peer gone", "name", name)
		},
	)
	defer n.Close()

	if c.listen != "" {
		if err = n.Listen(c.listen); err != nil {
			return err
		}
	}
	if c.connect != "" {
		if err = n.Connect(c.connect); err != nil {
			return err
		}
	}

	repl := &REPL{host: host, net: n, out: os.Stdout}
	if err = repl.Open(); err != nil {
		return err
	}
	defer repl.Close()
	_, _ = fmt.Fprintf(os.Stderr, "replica %s\n", host.HostID())

	for {
		err = repl.Step()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			_, _ = fmt.Fprintln(os.Stderr, err.Error())
		}
	}
}

func main() {
	if err := run(parseFlags()); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}
