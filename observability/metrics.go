package observability

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"arcade/config"
	"arcade/events"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// MetricsProvider manages OpenTelemetry metrics for the ledger service.
// A nil or disabled provider accepts every Record call and drops it.
type MetricsProvider struct {
	config        *config.Config
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
	initialized   bool
	mu            sync.RWMutex

	// Metric instruments
	ledgerEntriesCounter    metric.Int64Counter
	ledgerEntryAmountHist   metric.Int64Histogram
	transfersCounter        metric.Int64Counter
	transferAmountHist      metric.Int64Histogram
	registrationsCounter    metric.Int64Counter
	httpRequestsCounter     metric.Int64Counter
	httpRequestDurationHist metric.Float64Histogram
}

// NewMetricsProvider creates a new metrics provider
func NewMetricsProvider(cfg *config.Config) *MetricsProvider {
	return &MetricsProvider{
		config: cfg,
	}
}

// Initialize sets up the OpenTelemetry meter provider with the configured exporter
func (mp *MetricsProvider) Initialize(ctx context.Context) error {
	if !mp.config.OTelEnabled {
		log.Info("OpenTelemetry metrics disabled")
		return nil
	}

	var exporter sdkmetric.Exporter
	var err error
	switch mp.config.OTelExporterType {
	case "console":
		exporter, err = stdoutmetric.New()
		if err != nil {
			return fmt.Errorf("failed to create console exporter: %w", err)
		}
		log.Info("Using console metric exporter")

	case "otlp":
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		exporter, err = otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(mp.config.OTelOTLPEndpoint),
			otlpmetricgrpc.WithInsecure(),
		)
		if err != nil {
			return fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		log.WithField("endpoint", mp.config.OTelOTLPEndpoint).Info("Using OTLP metric exporter")

	case "none":
		log.Info("Metrics export disabled (exporter_type='none')")
		return nil

	default:
		return fmt.Errorf("unknown exporter type: %s", mp.config.OTelExporterType)
	}

	reader := sdkmetric.NewPeriodicReader(
		exporter,
		sdkmetric.WithInterval(time.Duration(mp.config.OTelExportIntervalMillis)*time.Millisecond),
	)
	if err := mp.initializeWithReader(reader); err != nil {
		return err
	}

	// Set as global meter provider
	otel.SetMeterProvider(mp.meterProvider)

	log.Info("Metrics provider initialized successfully")
	return nil
}

// initializeWithReader builds the meter provider around reader and creates the instruments
func (mp *MetricsProvider) initializeWithReader(reader sdkmetric.Reader) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.initialized {
		log.Debug("Metrics provider already initialized")
		return nil
	}

	// Schemaless: a schema URL here would conflict with resource.Default()
	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			semconv.ServiceName(mp.config.OTelServiceName),
			attribute.String("environment", mp.config.Environment),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	mp.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	mp.meter = mp.meterProvider.Meter("arcade-ledger")

	if err := mp.createInstruments(); err != nil {
		return fmt.Errorf("failed to create instruments: %w", err)
	}

	mp.initialized = true
	return nil
}

// createInstruments creates all metric instruments
func (mp *MetricsProvider) createInstruments() error {
	var err error

	// Ledger metrics
	mp.ledgerEntriesCounter, err = mp.meter.Int64Counter(
		LedgerEntriesTotal,
		metric.WithDescription("Total number of game results applied to balances"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create ledger entries counter: %w", err)
	}

	mp.ledgerEntryAmountHist, err = mp.meter.Int64Histogram(
		LedgerEntryAmount,
		metric.WithDescription("Absolute points moved by a game result"),
		metric.WithUnit("{point}"),
	)
	if err != nil {
		return fmt.Errorf("failed to create ledger entry amount histogram: %w", err)
	}

	// Transfer metrics
	mp.transfersCounter, err = mp.meter.Int64Counter(
		TransfersTotal,
		metric.WithDescription("Total number of committed transfers"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create transfers counter: %w", err)
	}

	mp.transferAmountHist, err = mp.meter.Int64Histogram(
		TransferAmount,
		metric.WithDescription("Points moved by a transfer"),
		metric.WithUnit("{point}"),
	)
	if err != nil {
		return fmt.Errorf("failed to create transfer amount histogram: %w", err)
	}

	// Account metrics
	mp.registrationsCounter, err = mp.meter.Int64Counter(
		AccountsRegisteredTotal,
		metric.WithDescription("Total number of registered accounts"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create registrations counter: %w", err)
	}

	// HTTP metrics
	mp.httpRequestsCounter, err = mp.meter.Int64Counter(
		HTTPRequestsTotal,
		metric.WithDescription("Total number of HTTP requests served"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create HTTP requests counter: %w", err)
	}

	mp.httpRequestDurationHist, err = mp.meter.Float64Histogram(
		HTTPRequestDuration,
		metric.WithDescription("Duration of HTTP requests in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0),
	)
	if err != nil {
		return fmt.Errorf("failed to create HTTP request duration histogram: %w", err)
	}

	return nil
}

// Shutdown flushes and stops the metrics provider
func (mp *MetricsProvider) Shutdown(ctx context.Context) error {
	if mp == nil {
		return nil
	}
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.meterProvider != nil {
		return mp.meterProvider.Shutdown(ctx)
	}
	return nil
}

// Attach subscribes the provider to the committed ledger events on bus
func (mp *MetricsProvider) Attach(bus *events.Bus) {
	bus.Subscribe(events.EventTypeLedgerEntry, mp.handleEvent)
	bus.Subscribe(events.EventTypeTransferCompleted, mp.handleEvent)
	bus.Subscribe(events.EventTypeUserRegistered, mp.handleEvent)
}

func (mp *MetricsProvider) handleEvent(ctx context.Context, event events.Event) {
	switch e := event.(type) {
	case events.LedgerEntryEvent:
		mp.RecordLedgerEntry(ctx, e.Game, e.Amount)
	case events.TransferCompletedEvent:
		mp.RecordTransfer(ctx, e.Amount)
	case events.UserRegisteredEvent:
		mp.RecordRegistration(ctx)
	}
}

// RecordLedgerEntry records one applied game result
func (mp *MetricsProvider) RecordLedgerEntry(ctx context.Context, game string, amount int64) {
	if !mp.isEnabled() {
		return
	}

	outcome := OutcomeSync
	switch {
	case amount > 0:
		outcome = OutcomeWin
	case amount < 0:
		outcome = OutcomeLoss
	}

	attrs := metric.WithAttributes(
		attribute.String(LabelOutcome, outcome),
		attribute.String(LabelGame, game),
	)
	mp.ledgerEntriesCounter.Add(ctx, 1, attrs)
	if amount < 0 {
		amount = -amount
	}
	mp.ledgerEntryAmountHist.Record(ctx, amount, attrs)
}

// RecordTransfer records one committed transfer
func (mp *MetricsProvider) RecordTransfer(ctx context.Context, amount int64) {
	if !mp.isEnabled() {
		return
	}

	mp.transfersCounter.Add(ctx, 1)
	mp.transferAmountHist.Record(ctx, amount)
}

// RecordRegistration records one new account
func (mp *MetricsProvider) RecordRegistration(ctx context.Context) {
	if !mp.isEnabled() {
		return
	}

	mp.registrationsCounter.Add(ctx, 1)
}

// RecordHTTPRequest records a served request with its matched route and status
func (mp *MetricsProvider) RecordHTTPRequest(ctx context.Context, method, route string, status int, duration time.Duration) {
	if !mp.isEnabled() {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(LabelMethod, method),
		attribute.String(LabelRoute, route),
		attribute.String(LabelStatus, strconv.Itoa(status)),
	)
	mp.httpRequestsCounter.Add(ctx, 1, attrs)
	mp.httpRequestDurationHist.Record(ctx, duration.Seconds(), attrs)
}

// isEnabled checks if metrics are initialized
func (mp *MetricsProvider) isEnabled() bool {
	if mp == nil {
		return false
	}
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	return mp.initialized
}
