package run

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"

	"github.com/google/renameio/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// writeMetrics encodes all gathered metrics in the text exposition format.
func writeMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}

	enc := expfmt.NewEncoder(w, expfmt.FmtText)

	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}

	return nil
}

// writeMetricsFile atomically replaces the file at path with the gathered
// metrics, e.g. for the node exporter's textfile collector.
func writeMetricsFile(path string, g prometheus.Gatherer) error {
	var buf bytes.Buffer

	if err := writeMetrics(&buf, g); err != nil {
		return err
	}

	return renameio.WriteFile(path, buf.Bytes(), 0o644)
}

type metricsServer struct {
	listener net.Listener
	srv      *http.Server
	done     chan struct{}
	err      error
}

// listenAndServeMetrics serves the registry at "/metrics" until the server is
// shut down.
func listenAndServeMetrics(logger *zap.Logger, address string, registry *prometheus.Registry) (*metricsServer, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}

	errorLog := zap.NewStdLog(logger.Named("http"))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		ErrorLog: errorLog,
	}))

	s := &metricsServer{
		listener: listener,
		srv: &http.Server{
			Handler:  mux,
			ErrorLog: errorLog,
		},
		done: make(chan struct{}),
	}

	go func() {
		defer close(s.done)

		if err := s.srv.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
			s.err = err
		}
	}()

	logger.Info("Serving metrics", zap.String("url", s.URL()))

	return s, nil
}

// URL returns the address from which metrics can be scraped.
func (s *metricsServer) URL() string {
	return "http://" + s.listener.Addr().String() + "/metrics"
}

func (s *metricsServer) shutdown(ctx context.Context) error {
	err := s.srv.Shutdown(ctx)

	<-s.done

	return multierr.Append(err, s.err)
}
