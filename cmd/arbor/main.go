package main

import (
	"fmt"
	"io"
	"os"

	"github.com/alexanderramin/arbor/internal/catalog"
	"github.com/alexanderramin/arbor/internal/cli"
	"github.com/alexanderramin/arbor/internal/config"
	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	app := &cli.App{
		Config:   cfg,
		Logger:   cfg.Logger(os.Stderr),
		Registry: catalog.Registry(),
		IsInteractive: func() bool {
			return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
		},
	}
	defer app.Close()

	var reg *prometheus.Registry
	if cfg.Metrics {
		reg = prometheus.NewRegistry()
		app.Metrics = reg
	}

	err = cli.NewRootCmd(app).Execute()
	if reg != nil {
		dumpMetrics(os.Stderr, reg)
	}
	return err
}

// dumpMetrics writes the gathered families in the text exposition format.
func dumpMetrics(w io.Writer, reg prometheus.Gatherer) {
	families, err := reg.Gather()
	if err != nil {
		fmt.Fprintf(w, "metrics: %v\n", err)
		return
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			fmt.Fprintf(w, "metrics: %v\n", err)
			return
		}
	}
}
