package core

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// BusConfig holds NATS findings bus settings.
type BusConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Embedded      bool   `yaml:"embedded"`
	Port          int    `yaml:"port"`
	DataDir       string `yaml:"data_dir"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// DefaultBusConfig returns the disabled-by-default bus settings.
func DefaultBusConfig() BusConfig {
	return BusConfig{
		Enabled:       false,
		URL:           "nats://127.0.0.1:4222",
		Embedded:      false,
		Port:          4222,
		DataDir:       "./data/nats",
		SubjectPrefix: "sec.findings",
	}
}

const findingsStream = "AUTHBURST_FINDINGS"

// FindingsBus publishes new findings to a JetStream stream so downstream
// responders can consume them. With Embedded set it runs its own NATS server.
type FindingsBus struct {
	nc     *nats.Conn
	js     nats.JetStreamContext
	ns     *server.Server
	prefix string
	logger zerolog.Logger

	published int
	failed    int
}

// NewFindingsBus connects to NATS (starting an embedded server if asked)
// and makes sure the findings stream exists.
func NewFindingsBus(cfg BusConfig, logger zerolog.Logger) (*FindingsBus, error) {
	bus := &FindingsBus{
		prefix: strings.TrimSuffix(cfg.SubjectPrefix, "."),
		logger: logger.With().Str("component", "findings_bus").Logger(),
	}
	if bus.prefix == "" {
		bus.prefix = "sec.findings"
	}

	url := cfg.URL
	if cfg.Embedded {
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating NATS data dir: %w", err)
		}

		ns, err := server.NewServer(&server.Options{
			Host:      "127.0.0.1",
			Port:      cfg.Port,
			JetStream: true,
			StoreDir:  cfg.DataDir,
			NoLog:     true,
			NoSigs:    true,
		})
		if err != nil {
			return nil, fmt.Errorf("creating embedded NATS server: %w", err)
		}
		ns.Start()
		if !ns.ReadyForConnections(10 * time.Second) {
			ns.Shutdown()
			return nil, fmt.Errorf("embedded NATS server failed to start within timeout")
		}
		bus.ns = ns
		url = ns.ClientURL()
		bus.logger.Debug().Str("url", url).Msg("embedded NATS server started")
	}

	nc, err := nats.Connect(url,
		nats.Name("authburst"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				bus.logger.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
	)
	if err != nil {
		bus.shutdownServer()
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}
	bus.nc = nc

	js, err := nc.JetStream()
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("creating JetStream context: %w", err)
	}
	bus.js = js

	streamCfg := &nats.StreamConfig{
		Name:       findingsStream,
		Subjects:   []string{bus.prefix + ".>"},
		Retention:  nats.LimitsPolicy,
		MaxAge:     24 * time.Hour * 30,
		MaxBytes:   256 * 1024 * 1024,
		Storage:    nats.FileStorage,
		Discard:    nats.DiscardOld,
		Duplicates: 2 * time.Minute,
	}
	if _, err := js.AddStream(streamCfg); err != nil {
		if _, updateErr := js.UpdateStream(streamCfg); updateErr != nil {
			bus.Close()
			return nil, fmt.Errorf("creating/updating findings stream: %w (original: %v)", updateErr, err)
		}
	}

	bus.logger.Info().Str("url", url).Str("stream", findingsStream).Msg("connected to NATS JetStream")
	return bus, nil
}

// FindingSubject returns <prefix>.<source>.<severity> with NATS-reserved
// characters in the source tag replaced.
func FindingSubject(prefix string, f Finding) string {
	source := strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t':
			return '_'
		}
		return r
	}, f.Source)
	if source == "" {
		source = "unknown"
	}
	return fmt.Sprintf("%s.%s.%s", prefix, source, strings.ToLower(f.Severity.String()))
}

// PublishFinding publishes one finding. The finding ID doubles as the
// JetStream message ID so a retried publish is not stored twice.
func (b *FindingsBus) PublishFinding(f Finding) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshaling finding: %w", err)
	}

	subject := FindingSubject(b.prefix, f)
	var opts []nats.PubOpt
	if f.ID != "" {
		opts = append(opts, nats.MsgId(f.ID))
	}
	if _, err := b.js.Publish(subject, data, opts...); err != nil {
		b.failed++
		return fmt.Errorf("publishing finding to %s: %w", subject, err)
	}
	b.published++

	b.logger.Debug().
		Str("finding_id", f.ID).
		Str("subject", subject).
		Msg("finding published")
	return nil
}

// Published returns the number of findings acknowledged by JetStream.
func (b *FindingsBus) Published() int {
	return b.published
}

// Failed returns the number of publish failures.
func (b *FindingsBus) Failed() int {
	return b.failed
}

// Close flushes and closes the connection and stops the embedded server.
func (b *FindingsBus) Close() error {
	if b.nc != nil {
		_ = b.nc.Flush()
		b.nc.Close()
		b.nc = nil
	}
	b.shutdownServer()
	return nil
}

func (b *FindingsBus) shutdownServer() {
	if b.ns != nil {
		b.ns.Shutdown()
		b.ns.WaitForShutdown()
		b.ns = nil
		b.logger.Debug().Msg("embedded NATS server stopped")
	}
}
