// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package introspection

import (
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"

	"github.com/juju/errors"
	"github.com/juju/loggo"
	jc "github.com/juju/testing/checkers"
	"github.com/juju/worker/v4/workertest"
	"github.com/prometheus/client_golang/prometheus"
	gc "gopkg.in/check.v1"

	"github.com/juju/eventfanout/core/eventlog"
	"github.com/juju/eventfanout/internal/distribution"
)

type serverSuite struct {
	point    *distribution.Point
	registry *prometheus.Registry
}

var _ = gc.Suite(&serverSuite{})

func (s *serverSuite) SetUpTest(c *gc.C) {
	metrics := distribution.NewMetricsCollector()
	s.registry = prometheus.NewPedanticRegistry()
	c.Assert(s.registry.Register(metrics), jc.ErrorIsNil)

	var err error
	s.point, err = distribution.NewPoint(distribution.Config{
		Capacity: 4,
		Logger:   loggo.GetLogger("eventfanout.introspection.test"),
		Metrics:  metrics,
	})
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(s.point.Ingest(eventlog.CommittedEvent{
		Position: eventlog.LogPosition{Commit: 20, Prepare: 10},
		StreamID: "stream",
	}), jc.ErrorIsNil)
}

func (s *serverSuite) newServer(c *gc.C) *Server {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	c.Assert(err, jc.ErrorIsNil)
	server, err := NewServer(Config{
		Listener: listener,
		Reporter: s.point,
		Gatherer: s.registry,
		Logger:   loggo.GetLogger("eventfanout.introspection.test"),
	})
	c.Assert(err, jc.ErrorIsNil)
	return server
}

func (s *serverSuite) TestValidate(c *gc.C) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	c.Assert(err, jc.ErrorIsNil)
	defer listener.Close()

	valid := Config{
		Listener: listener,
		Reporter: s.point,
		Gatherer: s.registry,
		Logger:   loggo.GetLogger("eventfanout.introspection.test"),
	}
	c.Check(valid.Validate(), jc.ErrorIsNil)

	for _, mutate := range []func(*Config){
		func(cfg *Config) { cfg.Listener = nil },
		func(cfg *Config) { cfg.Reporter = nil },
		func(cfg *Config) { cfg.Gatherer = nil },
		func(cfg *Config) { cfg.Logger = nil },
	} {
		cfg := valid
		mutate(&cfg)
		c.Check(cfg.Validate(), jc.ErrorIs, errors.NotValid)
	}
}

func (s *serverSuite) TestReport(c *gc.C) {
	server := s.newServer(c)
	defer workertest.CleanKill(c, server)

	resp, err := http.Get("http://" + server.Addr().String() + "/report")
	c.Assert(err, jc.ErrorIsNil)
	defer resp.Body.Close()

	c.Check(resp.StatusCode, gc.Equals, http.StatusOK)
	c.Check(resp.Header.Get("Content-Type"), gc.Equals, "application/json")

	var report map[string]any
	c.Assert(json.NewDecoder(resp.Body).Decode(&report), jc.ErrorIsNil)
	c.Check(report["tip"], gc.Equals, "C:20/P:10")
	c.Check(report["capacity"], gc.Equals, float64(4))
	c.Check(report["window-size"], gc.Equals, float64(1))
}

func (s *serverSuite) TestMetrics(c *gc.C) {
	server := s.newServer(c)
	defer workertest.CleanKill(c, server)

	resp, err := http.Get("http://" + server.Addr().String() + "/metrics")
	c.Assert(err, jc.ErrorIsNil)
	defer resp.Body.Close()

	c.Check(resp.StatusCode, gc.Equals, http.StatusOK)
	body, err := io.ReadAll(resp.Body)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(string(body), gc.Matches, `(?s).*eventfanout_distribution_ingested_events_total 1\n.*`)
}

func (s *serverSuite) TestMethodNotAllowed(c *gc.C) {
	server := s.newServer(c)
	defer workertest.CleanKill(c, server)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/report", nil))
	c.Check(rec.Code, gc.Equals, http.StatusMethodNotAllowed)

	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/unknown", nil))
	c.Check(rec.Code, gc.Equals, http.StatusNotFound)
}

func (s *serverSuite) TestKillClosesListener(c *gc.C) {
	server := s.newServer(c)
	addr := server.Addr().String()
	workertest.CleanKill(c, server)

	_, err := http.Get("http://" + addr + "/report")
	c.Check(err, gc.NotNil)
}
