package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"ritual/internal/core"
	"ritual/internal/web"
)

func serveCmd(a *app) *cobra.Command {
	var (
		addr  string
		trace bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("addr") {
				addr = a.cfg.HTTP.Addr
			}
			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			metrics := core.MultiMetricsRecorder{
				core.NewPrometheusMetricsRecorder(reg),
				core.NewExpvarMetricsRecorder(""),
			}
			a.coreOpts = append(a.coreOpts, core.WithMetricsRecorder(metrics))
			if trace {
				a.coreOpts = append(a.coreOpts, core.WithTracer(core.NewJSONTracer(cmd.ErrOrStderr())))
			}
			return a.withEngine(cmd.Context(), func(eng *core.Engine) error {
				srv := web.NewServer(eng, web.WithLogger(a.logger), web.WithGatherer(reg))
				return srv.Run(cmd.Context(), addr)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to http.addr from the config)")
	cmd.Flags().BoolVar(&trace, "trace", false, "write one JSON line per operation span to stderr")
	return cmd
}
