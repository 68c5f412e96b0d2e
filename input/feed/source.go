package feed

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/go-zeromq/zmq4"

	"github.com/TSherpa10/moodzy/errors"
	"github.com/TSherpa10/moodzy/natsclient"
)

// Transport labels used for metrics and logs.
const (
	transportZMQ  = "zmq"
	transportNATS = "nats"
)

// inbound is one upstream message as received, before decoding.
type inbound struct {
	transport string
	frames    [][]byte
}

// source is one upstream transport feeding the merged inbound channel.
type source interface {
	// open connects and starts delivering to out. fail is called at most
	// once per transport failure after open returns.
	open(ctx context.Context, out chan<- inbound, fail func(error)) error
	close() error
	endpoints() []endpoint
}

// zmqSource dials every ZeroMQ endpoint from one SUB socket.
type zmqSource struct {
	eps         []endpoint
	retries     int
	retryWait   time.Duration
	logger      *slog.Logger
	sock        zmq4.Socket
	recvStopped chan struct{}
}

func newZMQSource(eps []endpoint, cfg Config, logger *slog.Logger) *zmqSource {
	return &zmqSource{
		eps:       eps,
		retries:   cfg.DialRetries,
		retryWait: cfg.DialRetryWait,
		logger:    logger,
	}
}

func (s *zmqSource) endpoints() []endpoint {
	return s.eps
}

func (s *zmqSource) open(ctx context.Context, out chan<- inbound, fail func(error)) error {
	opts := []zmq4.Option{zmq4.WithDialerMaxRetries(s.retries)}
	if s.retryWait > 0 {
		opts = append(opts, zmq4.WithDialerRetry(s.retryWait))
	}
	sock := zmq4.NewSub(ctx, opts...)

	if err := sock.SetOption(zmq4.OptionSubscribe, ""); err != nil {
		_ = sock.Close()
		return errors.WrapFatal(err, "feed", "open", "subscribe")
	}
	for _, ep := range s.eps {
		if err := sock.Dial(ep.raw); err != nil {
			_ = sock.Close()
			return errors.WrapFatal(
				fmt.Errorf("%w: %w", errors.ErrTransportFailed, err), "feed", "open", "dial "+ep.raw)
		}
		s.logger.Info("Subscribed to feed", "endpoint", ep.raw)
	}

	s.sock = sock
	s.recvStopped = make(chan struct{})
	go s.receive(ctx, sock, out, fail)
	return nil
}

func (s *zmqSource) receive(ctx context.Context, sock zmq4.Socket, out chan<- inbound, fail func(error)) {
	defer close(s.recvStopped)
	for {
		msg, err := sock.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			fail(errors.WrapFatal(
				fmt.Errorf("%w: %w", errors.ErrTransportFailed, err), "feed", "receive", "zmq receive"))
			return
		}
		select {
		case out <- inbound{transport: transportZMQ, frames: msg.Frames}:
		case <-ctx.Done():
			return
		}
	}
}

func (s *zmqSource) close() error {
	if s.sock == nil {
		return nil
	}
	err := s.sock.Close()
	<-s.recvStopped
	s.sock = nil
	// A failed receive may already have torn the connection down.
	if err != nil && !stderrors.Is(err, context.Canceled) && !stderrors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

// natsSource subscribes to one or more subjects on a single NATS server.
type natsSource struct {
	server string
	eps    []endpoint
	opts   []natsclient.ClientOption
	logger *slog.Logger
	client *natsclient.Client
}

func newNATSSource(server string, eps []endpoint, opts []natsclient.ClientOption, logger *slog.Logger) *natsSource {
	return &natsSource{server: server, eps: eps, opts: opts, logger: logger}
}

func (s *natsSource) endpoints() []endpoint {
	return s.eps
}

func (s *natsSource) open(ctx context.Context, out chan<- inbound, fail func(error)) error {
	opts := append([]natsclient.ClientOption{natsclient.WithLogger(s.logger)}, s.opts...)
	opts = append(opts, natsclient.WithReconnectCallback(func() {
		s.logger.Info("Feed transport reconnected", "server", s.server)
	}))
	opts = append(opts, natsclient.WithConnectionLostCallback(func(err error) {
		fail(errors.WrapFatal(err, "feed", "receive", "nats connection"))
	}))

	client, err := natsclient.NewClient(s.server, opts...)
	if err != nil {
		return errors.WrapFatal(err, "feed", "open", "nats client")
	}
	if err := client.Connect(ctx); err != nil {
		return errors.WrapFatal(
			fmt.Errorf("%w: %w", errors.ErrTransportFailed, err), "feed", "open", "connect "+s.server)
	}

	for _, ep := range s.eps {
		err := client.Subscribe(ctx, ep.subject, func(ctx context.Context, data []byte) {
			select {
			case out <- inbound{transport: transportNATS, frames: [][]byte{data}}:
			case <-ctx.Done():
			}
		})
		if err != nil {
			_ = client.Close(context.Background())
			return errors.WrapFatal(err, "feed", "open", "subscribe "+ep.subject)
		}
		s.logger.Info("Subscribed to feed", "endpoint", ep.raw, "subject", ep.subject)
	}

	s.client = client
	return nil
}

func (s *natsSource) close() error {
	if s.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.client.Close(ctx)
	s.client = nil
	return err
}

// buildSources groups endpoints into one ZeroMQ source and one NATS source
// per server, keeping first-seen order.
func buildSources(eps []endpoint, cfg Config, natsOpts []natsclient.ClientOption, logger *slog.Logger) []source {
	var zmqEps []endpoint
	natsByServer := make(map[string][]endpoint)
	var servers []string

	for _, ep := range eps {
		if ep.isZMQ() {
			zmqEps = append(zmqEps, ep)
			continue
		}
		if _, seen := natsByServer[ep.server]; !seen {
			servers = append(servers, ep.server)
		}
		natsByServer[ep.server] = append(natsByServer[ep.server], ep)
	}

	var sources []source
	if len(zmqEps) > 0 {
		sources = append(sources, newZMQSource(zmqEps, cfg, logger))
	}
	for _, server := range servers {
		sources = append(sources, newNATSSource(server, natsByServer[server], natsOpts, logger))
	}
	return sources
}
