// fedgatewayd is the federation client gateway: a safety- and rate-limit-
// wrapped engine for reading and posting to ActivityPub-fediverse hosts
// (Mastodon-API, ActivityPub/ActivityStreams, NodeInfo, Misskey, Lemmy),
// with no inbound federation surface of its own.
//
// Usage:
//
//	export ACTIVITYPUB_DEFAULT_INSTANCE=mastodon.social
//	export ACTIVITYPUB_DEFAULT_TOKEN=<oauth bearer token>
//	./fedgatewayd
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/klistr-labs/fedgatewayd/internal/accounts"
	"github.com/klistr-labs/fedgatewayd/internal/adapters"
	"github.com/klistr-labs/fedgatewayd/internal/audit"
	"github.com/klistr-labs/fedgatewayd/internal/cache"
	"github.com/klistr-labs/fedgatewayd/internal/config"
	"github.com/klistr-labs/fedgatewayd/internal/engine"
	"github.com/klistr-labs/fedgatewayd/internal/health"
	"github.com/klistr-labs/fedgatewayd/internal/httpfetch"
	"github.com/klistr-labs/fedgatewayd/internal/ops"
	"github.com/klistr-labs/fedgatewayd/internal/ratelimit"
	"github.com/klistr-labs/fedgatewayd/internal/resolver"
	"github.com/klistr-labs/fedgatewayd/internal/safety"
	"github.com/klistr-labs/fedgatewayd/internal/server"

	"github.com/klistr-labs/fedgatewayd/internal/outbound"
)

func main() {
	// Structured JSON logging by default — easy to parse with any log aggregator.
	logLevel := slog.LevelInfo
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		logLevel = slog.LevelDebug
	case "warning":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	// ─── Configuration ────────────────────────────────────────────────────
	cfg := config.Load()
	slog.Info("starting fedgatewayd",
		"version", cfg.ServerVersion,
		"ratelimit_enabled", cfg.RateLimitEnabled,
		"blocking_enabled", cfg.InstanceBlockingEnabled,
	)

	// ─── Safety middleware ──────────────────────────────────────────────────
	fetcher := httpfetch.New(cfg.UserAgent, cfg.RequestTimeout, int64(cfg.GlobalConcurrency), int64(cfg.PerInstanceConcurrency))
	blocklist := safety.NewBlocklist(cfg.InstanceBlockingEnabled, cfg.BlockedInstances)
	ssrfGuard := safety.NewSSRFGuard(false)
	auditRing := audit.NewRing(cfg.AuditRingSize)
	guard := safety.New(fetcher, blocklist, ssrfGuard, auditRing, false)

	// ─── Rate-limit governors ───────────────────────────────────────────────
	localLimiter := ratelimit.NewLocalLimiter(cfg.RateLimitEnabled, cfg.RateLimitMax, cfg.RateLimitWindow)
	rlCache, err := cache.Open()
	if err != nil {
		slog.Error("failed to open rate-limit cache", "error", err)
		os.Exit(1)
	}
	defer rlCache.Close()
	instanceGovernor := ratelimit.NewInstanceGovernor(rlCache, cfg.InstanceBackoffCeiling)

	outboundClient := outbound.New(localLimiter, instanceGovernor, guard)

	// ─── Actor Resolver caches ───────────────────────────────────────────────
	jrdCache, err := cache.Open()
	if err != nil {
		slog.Error("failed to open jrd cache", "error", err)
		os.Exit(1)
	}
	defer jrdCache.Close()
	actorCache, err := cache.Open()
	if err != nil {
		slog.Error("failed to open actor cache", "error", err)
		os.Exit(1)
	}
	defer actorCache.Close()
	actorResolver := resolver.New(outboundClient, jrdCache, actorCache, cfg.CacheTTLActor, cfg.NegativeCacheTTL)

	// ─── Protocol Adapters ───────────────────────────────────────────────────
	mastodonCaps := adapters.NewMastodon(outboundClient)
	activityPubCaps := adapters.NewActivityPub(outboundClient)
	nodeInfoCaps := adapters.NewNodeInfo(outboundClient)
	misskeyCaps := adapters.NewMisskey(outboundClient)
	lemmyCaps := adapters.NewLemmy(outboundClient)

	instanceCache, err := cache.Open()
	if err != nil {
		slog.Error("failed to open instance cache", "error", err)
		os.Exit(1)
	}
	defer instanceCache.Close()
	selector := adapters.NewSelector(mastodonCaps, nodeInfoCaps, misskeyCaps, lemmyCaps, instanceCache, cfg.CacheTTLInstance, cfg.NegativeCacheTTL)
	mastodonCaps.FetchInstance = selector.FetchInstance

	// ─── Account Registry ────────────────────────────────────────────────────
	accountRegistry := accounts.New()
	if cfg.HasDefaultAccount() {
		accountRegistry.LoadSingle(cfg.DefaultInstance, cfg.DefaultToken, cfg.DefaultUsername)
	}
	if err := accountRegistry.LoadMulti(cfg.Accounts); err != nil {
		slog.Error("failed to parse ACTIVITYPUB_ACCOUNTS", "error", err)
		os.Exit(1)
	}

	// ─── Health & Metrics ────────────────────────────────────────────────────
	promRegistry := prometheus.NewRegistry()
	recorder := health.NewRecorder(cfg.MetricsHistorySize, promRegistry)

	// ─── Operation Layer & Engine ────────────────────────────────────────────
	operations := ops.New(actorResolver, mastodonCaps, activityPubCaps, selector, accountRegistry, recorder, cfg.BatchFanoutConcurrency, cfg.MaxPostLength, cfg.MaxBatchSize)
	eng := engine.New(operations, recorder)

	// ─── Graceful shutdown ───────────────────────────────────────────────────
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// ─── Operational HTTP server (healthz/metrics only) ─────────────────────
	addr := ":" + getEnvDefault("FEDGATEWAYD_ADDR", "8080")
	httpServer := server.New(addr, eng, promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))
	httpServer.Start(ctx) // blocks until ctx is cancelled

	slog.Info("fedgatewayd stopped")
}

func getEnvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
