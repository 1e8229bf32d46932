// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/juju/errors"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/eventfanout/internal/wire"
)

type configSuite struct{}

var _ = gc.Suite(&configSuite{})

func (s *configSuite) TestDefault(c *gc.C) {
	cfg := Default()
	c.Check(cfg, jc.DeepEquals, Config{
		Capacity:        10,
		LoggingConfig:   "<root>=INFO",
		LogMaxSizeMB:    300,
		LogMaxBackups:   2,
		DatabasePath:    "eventfanout.db",
		PollInterval:    500 * time.Millisecond,
		ReadBatchSize:   100,
		ProtocolVersion: wire.V2,
		QueueSize:       1000,
		RetryAttempts:   5,
		RetryDelay:      100 * time.Millisecond,
	})
	c.Check(cfg.Validate(), jc.ErrorIsNil)
}

func (s *configSuite) TestParse(c *gc.C) {
	cfg, err := Parse([]byte(`
capacity: 500
logs-path: /var/log/eventfanout
logging-config: <root>=WARNING;eventfanout.distribution=DEBUG
database-path: /var/lib/eventfanout/log.db
poll-interval: 2s
read-batch-size: 50
protocol-version: 1
metrics-address: localhost:17070
queue-size: 64
retry-delay: 1m
`))
	c.Assert(err, jc.ErrorIsNil)

	expected := Default()
	expected.Capacity = 500
	expected.LogsPath = "/var/log/eventfanout"
	expected.LoggingConfig = "<root>=WARNING;eventfanout.distribution=DEBUG"
	expected.DatabasePath = "/var/lib/eventfanout/log.db"
	expected.PollInterval = 2 * time.Second
	expected.ReadBatchSize = 50
	expected.ProtocolVersion = wire.V1
	expected.MetricsAddress = "localhost:17070"
	expected.QueueSize = 64
	expected.RetryDelay = time.Minute
	c.Check(cfg, jc.DeepEquals, expected)
}

func (s *configSuite) TestParseEmpty(c *gc.C) {
	cfg, err := Parse(nil)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(cfg, jc.DeepEquals, Default())
}

func (s *configSuite) TestParseInvalid(c *gc.C) {
	tests := []struct {
		about string
		yaml  string
		err   string
	}{{
		about: "zero capacity",
		yaml:  "capacity: 0",
		err:   `capacity 0 not valid`,
	}, {
		about: "negative queue",
		yaml:  "queue-size: -1",
		err:   `queue-size -1 not valid`,
	}, {
		about: "unknown protocol",
		yaml:  "protocol-version: 3",
		err:   `protocol version 3 not valid`,
	}, {
		about: "bad duration",
		yaml:  "poll-interval: soon",
		err:   `coercing config: .*`,
	}, {
		about: "wrong type",
		yaml:  "capacity: lots",
		err:   `coercing config: .*`,
	}, {
		about: "unknown key",
		yaml:  "capcity: 10\nextra: true",
		err:   `unknown attributes \[capcity extra\] not valid`,
	}, {
		about: "not yaml",
		yaml:  "capacity: [",
		err:   `yaml: .* not valid`,
	}}

	for i, test := range tests {
		c.Logf("test %d: %s", i, test.about)
		_, err := Parse([]byte(test.yaml))
		c.Check(err, jc.ErrorIs, errors.NotValid)
		c.Check(err, gc.ErrorMatches, test.err)
	}
}

func (s *configSuite) TestRead(c *gc.C) {
	path := filepath.Join(c.MkDir(), "eventfanout.yaml")
	err := os.WriteFile(path, []byte("capacity: 20\n"), 0600)
	c.Assert(err, jc.ErrorIsNil)

	cfg, err := Read(path)
	c.Assert(err, jc.ErrorIsNil)
	c.Check(cfg.Capacity, gc.Equals, 20)
}

func (s *configSuite) TestReadMissing(c *gc.C) {
	_, err := Read(filepath.Join(c.MkDir(), "missing.yaml"))
	c.Check(err, jc.ErrorIs, os.ErrNotExist)
}
