package monitor

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/pion/webrtc/v4"

	"github.com/randomizedcoder/go-whep-stats/internal/logging"
	"github.com/randomizedcoder/go-whep-stats/internal/poller"
	"github.com/randomizedcoder/go-whep-stats/internal/source"
	"github.com/randomizedcoder/go-whep-stats/internal/whep"
)

// Connection is one live subscription.
type Connection interface {
	Source() poller.SampleSource
	Close(ctx context.Context) error
}

// Connector opens connections. Each reconnect calls Connect again.
type Connector interface {
	Connect(ctx context.Context) (Connection, error)
}

// WHEPConfig configures a WHEP connector.
type WHEPConfig struct {
	// BaseURL is the broadcaster; its pc-config is fetched before every
	// connect. Empty uses a zero peer configuration.
	BaseURL    string
	Endpoint   string
	Token      string
	HTTPClient *http.Client
	PionLevel  string
}

type whepConnector struct {
	cfg     WHEPConfig
	logger  *slog.Logger
	factory *logging.PionFactory
}

// NewWHEPConnector returns a Connector that subscribes over WHEP with pion.
func NewWHEPConnector(cfg WHEPConfig, logger *slog.Logger) Connector {
	return &whepConnector{
		cfg:     cfg,
		logger:  logger,
		factory: logging.NewPionFactory(logger, cfg.PionLevel),
	}
}

func (c *whepConnector) Connect(ctx context.Context) (Connection, error) {
	var peer webrtc.Configuration
	if c.cfg.BaseURL != "" {
		var err error
		peer, err = whep.FetchPCConfig(ctx, c.cfg.HTTPClient, c.cfg.BaseURL)
		if err != nil {
			return nil, err
		}
	}

	client := whep.NewClient(whep.Config{
		Endpoint:      c.cfg.Endpoint,
		Token:         c.cfg.Token,
		PeerConfig:    peer,
		HTTPClient:    c.cfg.HTTPClient,
		Logger:        c.logger,
		LoggerFactory: c.factory,
	})
	if err := client.Connect(ctx); err != nil {
		return nil, err
	}
	return &whepConnection{
		client: client,
		source: source.NewPeerSource(client.PeerConnection(), c.logger),
	}, nil
}

type whepConnection struct {
	client *whep.Client
	source *source.PeerSource
}

func (c *whepConnection) Source() poller.SampleSource { return c.source }

func (c *whepConnection) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// retryable reports whether a session error is worth reconnecting for.
// Client errors from the broadcaster (bad input id, bad token) are not.
func retryable(err error) bool {
	var se *whep.StatusError
	if errors.As(err, &se) {
		return se.Code < 400 || se.Code >= 500 || se.Code == http.StatusTooManyRequests
	}
	return true
}
