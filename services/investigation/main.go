// Copyright (C) 2026 Cormorant AI (dev@cormorant.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/CormorantAI/CormorantFOSS/services/investigation/agents"
	"github.com/CormorantAI/CormorantFOSS/services/investigation/datatypes"
	"github.com/CormorantAI/CormorantFOSS/services/investigation/engine"
	"github.com/CormorantAI/CormorantFOSS/services/investigation/events"
	"github.com/CormorantAI/CormorantFOSS/services/investigation/observability"
	"github.com/CormorantAI/CormorantFOSS/services/investigation/querycache"
	"github.com/CormorantAI/CormorantFOSS/services/investigation/resilience"
	"github.com/CormorantAI/CormorantFOSS/services/investigation/routes"
	"github.com/CormorantAI/CormorantFOSS/services/investigation/store"
	"github.com/CormorantAI/CormorantFOSS/services/llm"

	// --- OpenTelemetry imports ---
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// defaultDomains are the analysis domains wired when FRAUD_DOMAINS is unset.
var defaultDomains = map[string]string{
	"account_takeover":   "credential compromise, session anomalies, login velocity",
	"payment_fraud":      "card testing, chargeback patterns, payment instrument abuse",
	"identity_theft":     "synthetic identity signals, document mismatches",
	"promo_abuse":        "referral and promotion exploitation, multi-accounting",
	"money_laundering":   "layering patterns, rapid movement of funds",
	"collusion_networks": "linked entities, shared devices and addresses",
}

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		otelEndpoint = "cormorant-otel-collector:4317"
	}
	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("investigation-service")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

// buildLLMClient selects the model backend from LLM_BACKEND
// (openai | anthropic | ollama). Defaults to openai.
func buildLLMClient() (llm.LLMClient, error) {
	backend := strings.ToLower(os.Getenv("LLM_BACKEND"))
	switch backend {
	case "", "openai":
		return llm.NewOpenAIClient()
	case "anthropic":
		return llm.NewAnthropicClient()
	case "ollama":
		return llm.NewOllamaClient()
	default:
		slog.Warn("Unknown LLM_BACKEND, falling back to openai", "backend", backend)
		return llm.NewOpenAIClient()
	}
}

// buildDomainAgents wires one LLM-backed agent per configured fraud domain.
func buildDomainAgents(client llm.LLMClient) ([]agents.DomainAgent, error) {
	configured := os.Getenv("FRAUD_DOMAINS")

	var domainAgents []agents.DomainAgent
	if configured != "" {
		for _, name := range strings.Split(configured, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			agent, err := agents.NewLLMDomainAgent(name, defaultDomains[name], client)
			if err != nil {
				return nil, err
			}
			domainAgents = append(domainAgents, agent)
		}
		return domainAgents, nil
	}

	// Deterministic order: map iteration would shuffle the routing order
	// between restarts.
	for _, name := range []string{
		"account_takeover", "payment_fraud", "identity_theft",
		"promo_abuse", "money_laundering", "collusion_networks",
	} {
		agent, err := agents.NewLLMDomainAgent(name, defaultDomains[name], client)
		if err != nil {
			return nil, err
		}
		domainAgents = append(domainAgents, agent)
	}
	return domainAgents, nil
}

// drainEvents forwards queue events to the structured log until the queue
// closes.
func drainEvents(queue *events.Queue) {
	for {
		ev, ok := queue.Next()
		if !ok {
			return
		}
		slog.Info("investigation event",
			"type", string(ev.Type),
			"investigation_id", ev.InvestigationID,
			"phase", ev.Phase,
			"detail", ev.Detail,
		)
	}
}

func main() {
	port := os.Getenv("INVESTIGATION_PORT")
	if port == "" {
		port = "12310"
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// --- Init the tracer ---
	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	observability.InitMetrics()

	storePath := os.Getenv("INVESTIGATION_STORE_PATH")
	if storePath == "" {
		storePath = "/var/lib/cormorant/investigations"
		slog.Warn("INVESTIGATION_STORE_PATH not set, using default", "path", storePath)
	}
	recordStore, err := store.Open(store.DefaultConfig(storePath))
	if err != nil {
		log.Fatalf("FATAL: Could not open the investigation store: %v", err)
	}
	defer recordStore.Close()

	cache := querycache.NewQueryCache()

	eventQueue := events.NewQueue()
	defer eventQueue.Close()
	go drainEvents(eventQueue)

	log.Println("Configuring the LLM Client")
	llmClient, err := buildLLMClient()
	if err != nil {
		log.Fatalf("Failed to initialize LLM client: %v", err)
	}

	domainAgents, err := buildDomainAgents(llmClient)
	if err != nil {
		log.Fatalf("Failed to build domain agents: %v", err)
	}
	registry := agents.NewRegistry(nil, domainAgents)

	engineCfg := engine.ConfigFromEnv()
	orch, err := engine.NewOrchestrator(engine.Deps{
		Registry:   registry,
		Confidence: agents.NewWeightedConfidenceEngine(engineCfg.RequiredDomains),
		Safety:     agents.NewResourceSafetyManager(datatypes.DefaultLimits()),
		Store:      recordStore,
		Cache:      cache,
		Events:     eventQueue,
	}, engineCfg, resilience.ConfigFromEnv())
	if err != nil {
		log.Fatalf("FATAL: Could not build the orchestrator: %v", err)
	}

	router := gin.Default()
	router.Use(otelgin.Middleware("investigation-service"))

	routes.SetupRoutes(router, orch, recordStore, cache)
	log.Println("started up the container")

	log.Println("Starting the investigation server on port ", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
