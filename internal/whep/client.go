package whep

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/pion/interceptor"
	pionlog "github.com/pion/logging"
	"github.com/pion/webrtc/v4"
)

// Config configures a Client.
type Config struct {
	// Endpoint is the WHEP resource-creation URL.
	Endpoint string
	// Token, if set, is sent as a bearer token.
	Token string

	PeerConfig webrtc.Configuration
	HTTPClient *http.Client
	Logger     *slog.Logger

	// LoggerFactory receives pion's internal logs.
	LoggerFactory pionlog.LoggerFactory
}

// Client is a receive-only WHEP subscriber.
type Client struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	pc       *webrtc.PeerConnection
	resource string
	tracks   int
}

// NewClient creates a disconnected client.
func NewClient(cfg Config) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{cfg: cfg, logger: cfg.Logger}
}

// Endpoint builds the broadcaster's WHEP endpoint for one input.
func Endpoint(baseURL, inputID string) string {
	endpoint := strings.TrimSuffix(baseURL, "/") + "/api/whep"
	if inputID != "" {
		endpoint += "?inputId=" + url.QueryEscape(inputID)
	}
	return endpoint
}

func (c *Client) newAPI() (*webrtc.API, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}

	// The stats interceptor is what puts inbound-rtp entries in GetStats.
	var opts []webrtc.InterceptorOption
	if c.cfg.LoggerFactory != nil {
		opts = append(opts, webrtc.WithInterceptorLoggerFactory(c.cfg.LoggerFactory))
	}
	ir := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptorsWithOptions(m, ir, opts...); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}

	se := webrtc.SettingEngine{}
	if c.cfg.LoggerFactory != nil {
		se.LoggerFactory = c.cfg.LoggerFactory
	}

	return webrtc.NewAPI(
		webrtc.WithMediaEngine(m),
		webrtc.WithInterceptorRegistry(ir),
		webrtc.WithSettingEngine(se),
	), nil
}

// Connect negotiates a receive-only audio and video session. It returns once
// the answer is applied; media flows in the background.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pc != nil {
		return fmt.Errorf("whep: already connected")
	}

	api, err := c.newAPI()
	if err != nil {
		return err
	}
	pc, err := api.NewPeerConnection(c.cfg.PeerConfig)
	if err != nil {
		return fmt.Errorf("new peer connection: %w", err)
	}

	if err := c.negotiate(ctx, pc); err != nil {
		pc.Close()
		return err
	}
	c.pc = pc
	return nil
}

func (c *Client) negotiate(ctx context.Context, pc *webrtc.PeerConnection) error {
	for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeVideo, webrtc.RTPCodecTypeAudio} {
		if _, err := pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionRecvonly,
		}); err != nil {
			return fmt.Errorf("add %s transceiver: %w", kind, err)
		}
	}

	pc.OnTrack(c.drain)
	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		c.logger.Info("connection_state", "state", s.String())
	})

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}
	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}

	select {
	case <-gathered:
	case <-ctx.Done():
		return ctx.Err()
	}

	answer, location, err := c.post(ctx, pc.LocalDescription().SDP)
	if err != nil {
		return err
	}
	if err := pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  answer,
	}); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}

	c.resource = location
	c.logger.Info("whep_connected", "endpoint", c.cfg.Endpoint, "resource", location)
	return nil
}

// post sends the offer and returns the answer SDP and the resource URL.
func (c *Client) post(ctx context.Context, offer string) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, strings.NewReader(offer))
	if err != nil {
		return "", "", fmt.Errorf("whep request: %w", err)
	}
	req.Header.Set("Content-Type", "application/sdp")
	c.authorize(req)

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("whep offer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return "", "", fmt.Errorf("whep offer: %w", &StatusError{Method: http.MethodPost, Code: resp.StatusCode})
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", fmt.Errorf("read answer: %w", err)
	}

	location := resp.Header.Get("Location")
	if location == "" {
		c.logger.Warn("whep_no_location", "endpoint", c.cfg.Endpoint)
		return string(body), "", nil
	}
	resolved, err := resolve(c.cfg.Endpoint, location)
	if err != nil {
		return "", "", err
	}
	return string(body), resolved, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
}

// drain reads and discards RTP so the receivers keep counting.
func (c *Client) drain(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
	c.mu.Lock()
	c.tracks++
	c.mu.Unlock()

	c.logger.Info("track_started", "kind", track.Kind().String(), "codec", track.Codec().MimeType)
	for {
		if _, _, err := track.ReadRTP(); err != nil {
			c.logger.Debug("track_ended", "kind", track.Kind().String(), "error", err)
			return
		}
	}
}

// PeerConnection returns the live connection, or nil.
func (c *Client) PeerConnection() *webrtc.PeerConnection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pc
}

// Tracks returns the number of remote tracks received so far.
func (c *Client) Tracks() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tracks
}

// Resource returns the session resource URL from the Location header.
func (c *Client) Resource() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resource
}

// Disconnect deletes the WHEP resource and closes the peer connection. The
// connection is closed even if the DELETE fails.
func (c *Client) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	pc, resource := c.pc, c.resource
	c.pc, c.resource = nil, ""
	c.mu.Unlock()

	if pc == nil {
		return nil
	}

	var delErr error
	if resource != "" {
		delErr = c.delete(ctx, resource)
	}
	if err := pc.Close(); err != nil {
		return fmt.Errorf("close peer connection: %w", err)
	}
	return delErr
}

func (c *Client) delete(ctx context.Context, resource string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, resource, nil)
	if err != nil {
		return fmt.Errorf("whep delete request: %w", err)
	}
	c.authorize(req)

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("whep delete: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("whep delete: %w", &StatusError{Method: http.MethodDelete, Code: resp.StatusCode})
	}
	return nil
}

func resolve(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse location: %w", err)
	}
	return b.ResolveReference(r).String(), nil
}
