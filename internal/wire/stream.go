// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package wire

import (
	"encoding/json"
	"io"

	"github.com/juju/errors"
	"github.com/juju/worker/v4/catacomb"

	"github.com/juju/eventfanout/core/eventlog"
	"github.com/juju/eventfanout/internal/distribution"
)

// Logger represents the methods used by the stream writer to log.
type Logger interface {
	Debugf(string, ...interface{})
	Warningf(string, ...interface{})
}

// StreamConfig defines the operation of a StreamWriter.
type StreamConfig struct {
	Writer    io.Writer
	Version   Version
	QueueSize int
	Logger    Logger
}

// Validate returns an error if config cannot drive a StreamWriter.
func (config StreamConfig) Validate() error {
	if config.Writer == nil {
		return errors.NotValidf("nil Writer")
	}
	if _, err := ParseVersion(int(config.Version)); err != nil {
		return errors.Trace(err)
	}
	if config.QueueSize <= 0 {
		return errors.NotValidf("queue size %d", config.QueueSize)
	}
	if config.Logger == nil {
		return errors.NotValidf("nil Logger")
	}
	return nil
}

// StreamWriter is a subscription target that writes every event it is
// given to an io.Writer, one JSON document per line.
//
// Deliver only queues the event, so a slow writer never holds up the
// distribution point; if the queue fills up the subscription is dropped.
// Writing happens on the worker's own goroutine.
type StreamWriter struct {
	catacomb catacomb.Catacomb

	config  StreamConfig
	queue   *distribution.Queue
	encoder *json.Encoder
}

// NewStreamWriter starts a StreamWriter.
func NewStreamWriter(config StreamConfig) (*StreamWriter, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	w := &StreamWriter{
		config:  config,
		queue:   distribution.NewQueue(config.QueueSize),
		encoder: json.NewEncoder(config.Writer),
	}
	if err := catacomb.Invoke(catacomb.Plan{
		Site: &w.catacomb,
		Work: w.loop,
	}); err != nil {
		return nil, errors.Trace(err)
	}
	return w, nil
}

// Deliver is part of the distribution.Target interface.
func (w *StreamWriter) Deliver(ev eventlog.CommittedEvent) error {
	return w.queue.Deliver(ev)
}

// Close is called when the subscription is removed. Events already queued
// are still written.
func (w *StreamWriter) Close() error {
	return w.queue.Close()
}

// Kill is part of the worker.Worker interface.
func (w *StreamWriter) Kill() {
	w.catacomb.Kill(nil)
}

// Wait is part of the worker.Worker interface.
func (w *StreamWriter) Wait() error {
	return w.catacomb.Wait()
}

func (w *StreamWriter) loop() error {
	defer func() {
		_ = w.queue.Close()
	}()

	for {
		select {
		case <-w.catacomb.Dying():
			return w.catacomb.ErrDying()
		case ev := <-w.queue.Events():
			if err := w.write(ev); err != nil {
				return errors.Trace(err)
			}
		case <-w.queue.Done():
			return w.drain()
		}
	}
}

func (w *StreamWriter) drain() error {
	for {
		select {
		case ev := <-w.queue.Events():
			if err := w.write(ev); err != nil {
				return errors.Trace(err)
			}
		default:
			w.config.Logger.Debugf("subscription closed, stream writer stopping")
			return nil
		}
	}
}

func (w *StreamWriter) write(ev eventlog.CommittedEvent) error {
	dto, err := Encode(w.config.Version, ev)
	if errors.Is(err, errors.NotValid) {
		w.config.Logger.Warningf("skipping event at %v: %v", ev.Position, err)
		return nil
	} else if err != nil {
		return errors.Trace(err)
	}
	return errors.Annotatef(w.encoder.Encode(dto), "writing event at %v", ev.Position)
}
