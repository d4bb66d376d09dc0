// Command agentd is the process entrypoint for the document-driven
// treasury agent: it wires the repository, adapter, chain clients, and
// every named loop together and runs until SIGINT/SIGTERM, mirroring the
// wiring shape of cmd/gateway/main.go (config load, logging.Setup,
// signal.NotifyContext, graceful http.Server shutdown).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"dwagent/internal/adapter"
	"dwagent/internal/admin"
	"dwagent/internal/approvalhttp"
	"dwagent/internal/chainclient"
	"dwagent/internal/config"
	"dwagent/internal/executor"
	"dwagent/internal/keyvault"
	"dwagent/internal/logging"
	"dwagent/internal/metrics"
	"dwagent/internal/orchestrator"
	"dwagent/internal/policy"
	"dwagent/internal/quorum"
	"dwagent/internal/reconcile"
	"dwagent/internal/repo"
	"dwagent/internal/scheduler"
	"dwagent/internal/tracing"
	"dwagent/internal/webhook"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "dwagent.toml", "path to agentd configuration")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "agentd: load config: %v\n", err)
		os.Exit(1)
	}

	var fileSink *logging.FileSink
	if cfg.LogFilePath != "" {
		fileSink = &logging.FileSink{Path: cfg.LogFilePath}
	}
	logger := logging.Setup(cfg.ServiceName, cfg.Environment, fileSink)

	shutdownTracing, err := tracing.Init(context.Background(), tracing.Config{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		Endpoint:    cfg.TracingEndpoint,
		Insecure:    cfg.TracingInsecure,
		Enabled:     cfg.TracingEnabled,
	})
	if err != nil {
		logger.Error("init tracing", "error", err)
		os.Exit(1)
	}
	defer shutdownTracing(context.Background())

	reg := metrics.New(prometheus.DefaultRegisterer)

	r, err := repo.Open(repo.Config{Driver: repo.Driver(cfg.DBDriver), DSN: cfg.DBDSN})
	if err != nil {
		logger.Error("open repository", "error", err)
		os.Exit(1)
	}
	defer r.Close()

	masterKey, err := cfg.MasterKey()
	if err != nil {
		logger.Error("decode master key", "error", err)
		os.Exit(1)
	}
	vault, err := keyvault.New(masterKey)
	if err != nil {
		logger.Error("open keyvault", "error", err)
		os.Exit(1)
	}

	lookupSecret := func(ctx context.Context, docID, chain string) (string, error) {
		secret, err := r.GetDocumentSecret(docID)
		if err != nil {
			return "", fmt.Errorf("agentd: lookup document secret: %w", err)
		}
		return string(secret.Ciphertext), nil
	}
	evmSigner := &chainclient.VaultSigner{Vault: vault, Lookup: lookupSecret}
	suiSigner := &chainclient.VaultSuiSigner{Vault: vault, Lookup: lookupSecret}

	var docAdapter adapter.Adapter
	if cfg.AdapterURL != "" {
		httpAdapter, err := adapter.NewHTTP(adapter.HTTPConfig{
			URL: cfg.AdapterURL, APIKey: cfg.AdapterAPIKey, APISecret: cfg.AdapterAPISecret,
		})
		if err != nil {
			logger.Error("construct adapter", "error", err)
			os.Exit(1)
		}
		docAdapter = httpAdapter
	} else {
		docAdapter = adapter.NewMemory()
	}

	evmClient, err := chainclient.NewEvm(cfg.EvmRPCURL, evmSigner, cfg.EvmStableContract)
	if err != nil {
		logger.Warn("evm client unavailable", "error", err)
	}
	suiClient, err := chainclient.NewSui(cfg.SuiRPCURL, suiSigner, cfg.SuiCoinType)
	if err != nil {
		logger.Warn("sui client unavailable", "error", err)
	}
	orderBookClient, err := chainclient.NewOrderBook(cfg.OrderBookURL, evmSigner)
	if err != nil {
		logger.Warn("order book client unavailable", "error", err)
	}
	custodialClient, err := chainclient.NewCustodialStable(cfg.CustodialURL)
	if err != nil {
		logger.Warn("custodial client unavailable", "error", err)
	}
	stateChannelClient, err := chainclient.NewStateChannel(cfg.StateChannelURL)
	if err != nil {
		logger.Warn("state channel client unavailable", "error", err)
	}

	var bridge chainclient.BridgeRouter
	if evmClient != nil && suiClient != nil && custodialClient != nil {
		classify := chainclient.NewTagClassifier(
			[]string{"ethereum", "evm"},
			[]string{"sui"},
			[]string{"custodial", "custodial-usdc"},
		)
		router, err := chainclient.NewRouter(chainclient.RouterConfig{
			Classify: classify, Evm: evmClient, Sui: suiClient, Custodial: custodialClient,
			EvmStableAddr: cfg.EvmStableContract,
		})
		if err != nil {
			logger.Warn("bridge router unavailable", "error", err)
		} else {
			bridge = router
		}
	}

	var resolver chainclient.NameResolver
	if cfg.NameResolverDNS != "" {
		dnsResolver, err := chainclient.NewNameResolverDNS(cfg.NameResolverDNS)
		if err != nil {
			logger.Warn("name resolver unavailable", "error", err)
		} else {
			resolver = dnsResolver
		}
	}

	policyLookup := buildPolicyLookup(docAdapter, resolver, logger)
	mint := quorum.URLMinter{BaseURL: cfg.ApprovalPublicURL}

	exec := &executor.Executor{
		Repo: r, Adapter: docAdapter,
		Evm: evmClient, Sui: suiClient, OrderBook: orderBookClient,
		Custodial: custodialClient, StateChannel: stateChannelClient, Bridge: bridge,
		Vault:   vault,
		Metrics: reg, Logger: logger,
	}

	sched := &scheduler.Tick{Repo: r, Policy: policyLookup, Mint: mint.Mint, Logger: logger}

	webhookWorker := webhook.NewWorker(webhook.RepoSubscriptions{Repo: r}, logger)
	exec.Webhook = webhookWorker

	orch := &orchestrator.Orchestrator{
		Repo: r, Adapter: docAdapter, Executor: exec, Scheduler: sched,
		Policy: policyLookup, Mint: mint.Mint,
		Evm: evmClient, Sui: suiClient, OrderBook: orderBookClient,
		Intervals: orchestrator.Intervals{
			Scheduler: time.Duration(cfg.SchedulerIntervalSeconds) * time.Second,
			Executor:  time.Duration(cfg.ExecutorIntervalSeconds) * time.Second,
			Conditional: time.Duration(cfg.ConditionalIntervalSeconds) * time.Second,
		},
		Metrics: reg, Logger: logger,
	}

	sessionSecret, err := cfg.SessionSecret()
	if err != nil {
		logger.Error("decode session secret", "error", err)
		os.Exit(1)
	}
	approvalSrv := approvalhttp.New(approvalhttp.Config{
		Repo: r, Metrics: reg, Logger: logger, SessionSecret: sessionSecret,
	})

	adminAuth, err := admin.NewAuthenticator(cfg.AdminToken)
	if err != nil {
		logger.Error("construct admin authenticator", "error", err)
		os.Exit(1)
	}
	adminSrv := admin.NewServer(r, exec, adminAuth)

	reconciler, err := reconcile.New(reconcile.Config{
		Repo: r, Adapter: docAdapter, OutputDir: cfg.ReconcileOutputDir, Logger: logger,
	})
	if err != nil {
		logger.Error("construct reconciler", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go webhookWorker.Run(ctx)
	go runReconcileLoop(ctx, reconciler, time.Duration(cfg.ReconcileIntervalHours)*time.Hour, logger)

	approvalHTTPServer := startHTTPServer(ctx, logger, cfg.ApprovalListenAddress, approvalSrv.Router(), "approval")
	adminHTTPServer := startHTTPServer(ctx, logger, cfg.AdminListenAddress, adminSrv, "admin")

	logger.Info("agentd started", "environment", cfg.Environment)
	if err := orch.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("orchestrator exited unexpectedly", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = approvalHTTPServer.Shutdown(shutdownCtx)
	_ = adminHTTPServer.Shutdown(shutdownCtx)
	logger.Info("agentd stopped")
}

// buildPolicyLookup reads a document's policy blob from its own Config
// table, falling back to the name resolver's TXT-record policy pointer
// when the table has none, as set by a "DW POLICY ENS <name>" command.
func buildPolicyLookup(a adapter.Adapter, resolver chainclient.NameResolver, logger *slog.Logger) orchestrator.PolicyLookup {
	return func(ctx context.Context, docID string) (policy.Policy, policy.Context, error) {
		var pol policy.Policy
		tables, err := a.LoadTables(ctx, docID)
		if err != nil {
			return pol, policy.Context{}, fmt.Errorf("agentd: load tables for policy: %w", err)
		}
		for _, row := range tables.Config {
			if strings.EqualFold(row.Key, "Policy") && row.Value != "" {
				if decodeErr := decodePolicyJSON(row.Value, &pol); decodeErr != nil {
					logger.Warn("malformed policy JSON in config table", "doc_id", docID, "error", decodeErr)
				}
				return pol, policy.Context{}, nil
			}
		}
		for _, row := range tables.Config {
			if strings.EqualFold(row.Key, "PolicyName") && resolver != nil && row.Value != "" {
				value, found, resolveErr := resolver.ResolveTextRecord(ctx, row.Value, "DW_POLICY")
				if resolveErr != nil {
					logger.Warn("resolve policy name record failed", "doc_id", docID, "name", row.Value, "error", resolveErr)
					continue
				}
				if found {
					if decodeErr := decodePolicyJSON(value, &pol); decodeErr != nil {
						logger.Warn("malformed policy JSON in name record", "doc_id", docID, "error", decodeErr)
					}
				}
				return pol, policy.Context{}, nil
			}
		}
		return pol, policy.Context{}, nil
	}
}

// runReconcileLoop runs the nightly repo-vs-sheet reconciliation report on
// a fixed interval until ctx is cancelled, logging but not failing the
// process on a single bad run.
func runReconcileLoop(ctx context.Context, r *reconcile.Reconciler, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result, err := r.Run(ctx)
			if err != nil {
				logger.Error("reconcile run failed", "error", err)
				continue
			}
			logger.Info("reconcile run complete", "anomalies", len(result.Anomalies), "rows", len(result.Rows))
		}
	}
}

func startHTTPServer(ctx context.Context, logger *slog.Logger, addr string, handler http.Handler, name string) *http.Server {
	srv := &http.Server{Addr: addr, Handler: handler}
	go func() {
		logger.Info(name+" http server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error(name+" http server failed", "error", err)
		}
	}()
	return srv
}

func decodePolicyJSON(raw string, out *policy.Policy) error {
	return json.Unmarshal([]byte(raw), out)
}
