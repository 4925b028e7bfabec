package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"worklist-sentinel/common"
	"worklist-sentinel/internal/kafka"
	"worklist-sentinel/internal/monitor"
	"worklist-sentinel/internal/session"
	"worklist-sentinel/internal/store"
	"worklist-sentinel/internal/validator"
	"worklist-sentinel/internal/worklist"
)

// endpointConnectTimeout bounds dialing; per-call deadlines come from PROBE_TIMEOUT/ACK_TIMEOUT.
const endpointConnectTimeout = 5 * time.Second

const defaultTenantID = "SHOP"

// settings is everything main reads from the environment.
type settings struct {
	sessionBlob     string
	worklistID      string
	worklistToken   string
	worklistBackend string
	worklistAPIBase string
	worklistFile    string
	endpointBase    string
	applyURL        string
	resetURL        string
	identity        session.Identity
	maxDuration     time.Duration
	probeInterval   time.Duration
	standbyInterval time.Duration
	purgeGrace      time.Duration
	probeTimeout    time.Duration
	ackTimeout      time.Duration
	redisAddr       string
	statusTTL       time.Duration
	kafkaBroker     string
	eventsTopic     string
	metricsAddr     string
	proxyURL        string
}

// loadSettings reads the environment. Missing worklist credentials or endpoint are fatal.
func loadSettings() (settings, error) {
	var s settings
	var err error
	if s.worklistID, err = common.RequireEnv("WORKLIST_ID"); err != nil {
		return s, err
	}
	if s.worklistToken, err = common.RequireEnv("WORKLIST_TOKEN"); err != nil {
		return s, err
	}
	if s.endpointBase, err = common.RequireEnv("ENDPOINT_BASE_URL"); err != nil {
		return s, err
	}
	if _, err := url.ParseRequestURI(s.endpointBase); err != nil {
		return s, fmt.Errorf("invalid ENDPOINT_BASE_URL: %w", err)
	}

	s.sessionBlob = os.Getenv("SESSION_ATTRIBUTES")
	s.worklistBackend = strings.ToLower(common.GetEnv("WORKLIST_BACKEND", "document"))
	s.worklistAPIBase = common.GetEnv("WORKLIST_API_BASE", worklist.DefaultDocumentAPIBase)
	s.worklistFile = common.GetEnv("WORKLIST_FILE", "")
	s.applyURL = validator.EndpointURL(s.endpointBase, common.GetEnv("ENDPOINT_APPLY_PATH", validator.DefaultApplyPath))
	s.resetURL = validator.EndpointURL(s.endpointBase, common.GetEnv("ENDPOINT_RESET_PATH", validator.DefaultResetPath))
	origin := strings.TrimRight(s.endpointBase, "/")
	s.identity = session.Identity{
		Origin:    origin,
		Referer:   validator.EndpointURL(origin, common.GetEnv("ENDPOINT_REFERER_PATH", validator.DefaultRefererPath)),
		UserAgent: common.GetEnv("USER_AGENT", session.DefaultUserAgent),
		TenantID:  common.GetEnv("TENANT_ID", defaultTenantID),
	}
	s.maxDuration = common.ParseDuration(common.GetEnv("MAX_RUN_DURATION", "5h50m"), monitor.DefaultMaxDuration)
	s.probeInterval = common.ParseDuration(common.GetEnv("PROBE_INTERVAL", "1500ms"), monitor.DefaultProbeInterval)
	s.standbyInterval = common.ParseDuration(common.GetEnv("STANDBY_INTERVAL", "60s"), monitor.DefaultStandbyInterval)
	s.purgeGrace = common.ParseDuration(common.GetEnv("PURGE_GRACE", "6s"), monitor.DefaultPurgeGrace)
	s.probeTimeout = common.ParseDuration(common.GetEnv("PROBE_TIMEOUT", "10s"), validator.DefaultProbeTimeout)
	s.ackTimeout = common.ParseDuration(common.GetEnv("ACK_TIMEOUT", "5s"), validator.DefaultAcknowledgeTimeout)
	s.redisAddr = common.GetEnv("REDIS_ADDR", "")
	s.statusTTL = common.ParseDuration(common.GetEnv("STATUS_TTL", "72h"), 72*time.Hour)
	s.kafkaBroker = common.GetEnv("KAFKA_BROKER", "")
	s.eventsTopic = common.GetEnv("KAFKA_EVENTS_TOPIC", "sentinel.events")
	s.metricsAddr = common.GetEnv("METRICS_ADDR", ":9090")
	s.proxyURL = common.GetEnv("PROXY_URL", "")

	switch s.worklistBackend {
	case "document":
	case "redis":
		if s.redisAddr == "" {
			return s, errors.New("WORKLIST_BACKEND=redis requires REDIS_ADDR")
		}
	default:
		return s, fmt.Errorf("unknown WORKLIST_BACKEND %q", s.worklistBackend)
	}
	return s, nil
}

// buildEndpointClient returns the HTTP client for validation endpoint calls, optionally
// through PROXY_URL. Response headers may take as long as the longest call deadline.
func buildEndpointClient(proxyURL string, callTimeouts ...time.Duration) *http.Client {
	var responseTimeout time.Duration
	for _, d := range callTimeouts {
		responseTimeout = max(responseTimeout, d)
	}
	transport := &http.Transport{
		DialContext:           (&net.Dialer{Timeout: endpointConnectTimeout}).DialContext,
		ResponseHeaderTimeout: responseTimeout,
	}
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			log.Printf("invalid PROXY_URL: %v", err)
		} else {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &http.Client{Transport: transport}
}

func main() {
	os.Exit(run())
}

// run wires the collaborators and returns the process exit code.
func run() int {
	cfg, err := loadSettings()
	if err != nil {
		log.Printf("configuration error: %v", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var redisClient *redis.Client
	if cfg.redisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.redisAddr})
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Printf("failed to close redis client: %v", err)
			}
		}()
	}

	deps := monitor.Deps{
		Validator: validator.NewClient(buildEndpointClient(cfg.proxyURL, cfg.probeTimeout, cfg.ackTimeout), validator.Config{
			ApplyURL:           cfg.applyURL,
			ResetURL:           cfg.resetURL,
			ProbeTimeout:       cfg.probeTimeout,
			AcknowledgeTimeout: cfg.ackTimeout,
		}),
	}

	switch cfg.worklistBackend {
	case "redis":
		deps.Store = worklist.NewRedisStore(redisClient, cfg.worklistID)
	default:
		deps.Store = worklist.NewDocumentStore(nil, cfg.worklistAPIBase, cfg.worklistID, cfg.worklistToken, cfg.worklistFile)
	}

	if redisClient != nil {
		deps.Status = store.NewRedisStatusStore(redisClient, "sentinel:run:", cfg.statusTTL)
	}

	if cfg.kafkaBroker != "" {
		prod := kafka.NewProducer(cfg.kafkaBroker, cfg.eventsTopic)
		defer func() {
			if err := prod.Close(); err != nil {
				log.Printf("failed to close producer: %v", err)
			}
		}()
		deps.Events = prod
	}

	if cfg.metricsAddr != "" {
		monitor.StartMetricsServer(ctx, cfg.metricsAddr)
	}

	m := monitor.New(monitor.Config{
		MaxDuration:     cfg.maxDuration,
		ProbeInterval:   cfg.probeInterval,
		StandbyInterval: cfg.standbyInterval,
		PurgeGrace:      cfg.purgeGrace,
		Identity:        cfg.identity,
		SessionBlob:     cfg.sessionBlob,
	}, deps)

	log.Printf("monitor configured backend=%s endpoint=%s run=%s", cfg.worklistBackend, cfg.endpointBase, m.RunID())
	term, err := m.Run(ctx)
	log.Printf("monitor finished run=%s reason=%s", m.RunID(), term)
	return exitCode(term, err)
}

// exitCode is non-zero only for authentication failures.
func exitCode(term monitor.Termination, err error) int {
	if err != nil || term == monitor.TerminatedAuthFailure {
		return 1
	}
	return 0
}
