package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/tbourn/goldrate-backend/internal/config"
)

const testSite = "https://chennaigoldprice.com"

func preserveOTelGlobals(t *testing.T) {
	t.Helper()
	prevTP := otel.GetTracerProvider()
	prevProp := otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})
}

func enabledCfg(insecure bool) config.OTELConfig {
	return config.OTELConfig{
		Enabled:     true,
		Insecure:    insecure,
		Endpoint:    "localhost:4317",
		ServiceName: "goldrate-test",
		SampleRatio: 1.0,
	}
}

func TestSetupOTel_Disabled_NoOp(t *testing.T) {
	preserveOTelGlobals(t)
	prev := otel.GetTracerProvider()

	shutdown, err := SetupOTel(context.Background(), config.OTELConfig{Enabled: false}, "v0.0.0", testSite)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if shutdown == nil {
		t.Fatalf("expected non-nil shutdown func")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("no-op shutdown returned error: %v", err)
	}
	if otel.GetTracerProvider() != prev {
		t.Fatalf("disabled setup must not replace the tracer provider")
	}
}

func TestSetupOTel_InstallsProvider(t *testing.T) {
	for _, insecure := range []bool{true, false} {
		preserveOTelGlobals(t)
		shutdown, err := SetupOTel(context.Background(), enabledCfg(insecure), "v1.2.3", testSite)
		if err != nil {
			t.Fatalf("insecure=%v: unexpected err: %v", insecure, err)
		}
		if _, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider); !ok {
			t.Fatalf("expected *sdktrace.TracerProvider")
		}
		carrier := propagation.MapCarrier{}
		ctx, span := otel.Tracer("test").Start(context.Background(), "span")
		span.End()
		otel.GetTextMapPropagator().Inject(ctx, carrier)
		if carrier.Get("traceparent") == "" {
			t.Fatalf("traceparent not injected")
		}

		ct, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
		_ = shutdown(ct)
		cancel()
	}
}

func TestSetupOTel_ExporterError_GlobalsIntact(t *testing.T) {
	preserveOTelGlobals(t)
	orig := newOTLPExporterFn
	t.Cleanup(func() { newOTLPExporterFn = orig })
	newOTLPExporterFn = func(context.Context, otlptrace.Client) (*otlptrace.Exporter, error) {
		return nil, errors.New("boom-exporter")
	}

	prevTP := otel.GetTracerProvider()
	if _, err := SetupOTel(context.Background(), enabledCfg(true), "v0", testSite); err == nil {
		t.Fatalf("expected error")
	}
	if otel.GetTracerProvider() != prevTP {
		t.Fatalf("tracer provider changed on failure")
	}
}

func TestSetupOTel_ResourceError_GlobalsIntact(t *testing.T) {
	preserveOTelGlobals(t)
	orig := newServiceResourceFn
	t.Cleanup(func() { newServiceResourceFn = orig })

	var gotSite string
	newServiceResourceFn = func(_ context.Context, _, _, siteURL string) (*resource.Resource, error) {
		gotSite = siteURL
		return nil, errors.New("boom-resource")
	}

	prevTP := otel.GetTracerProvider()
	if _, err := SetupOTel(context.Background(), enabledCfg(true), "v0", testSite); err == nil {
		t.Fatalf("expected error")
	}
	if gotSite != testSite {
		t.Fatalf("site url not passed to resource: %q", gotSite)
	}
	if otel.GetTracerProvider() != prevTP {
		t.Fatalf("tracer provider changed on failure")
	}
}

func TestStartEndSpan_RecordsError(t *testing.T) {
	preserveOTelGlobals(t)
	rec := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))

	_, span := StartSpan(context.Background(), "services/PublishService", "Publish", attribute.String("city", "Chennai"))
	EndSpan(span, errors.New("generation failed"))
	_, ok := StartSpan(context.Background(), "services/PublishService", "PublishDaily")
	EndSpan(ok, nil)

	ended := rec.Ended()
	if len(ended) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(ended))
	}
	if ended[0].Name() != "Publish" || ended[0].Status().Code != codes.Error || len(ended[0].Events()) == 0 {
		t.Fatalf("failed span not recorded as error: %+v", ended[0].Status())
	}
	if ended[1].Status().Code == codes.Error {
		t.Fatalf("successful span marked as error")
	}
}

func TestPipelineCounters(t *testing.T) {
	before := testutil.ToFloat64(publishTotal.WithLabelValues(ResultMalformed))
	ObservePublish(ResultMalformed)
	if got := testutil.ToFloat64(publishTotal.WithLabelValues(ResultMalformed)); got != before+1 {
		t.Fatalf("publish counter = %v; want %v", got, before+1)
	}

	before = testutil.ToFloat64(indexingTotal.WithLabelValues(ResultQueueOnly))
	ObserveIndexing(ResultQueueOnly)
	if got := testutil.ToFloat64(indexingTotal.WithLabelValues(ResultQueueOnly)); got != before+1 {
		t.Fatalf("indexing counter = %v; want %v", got, before+1)
	}

	before = testutil.ToFloat64(siteFilesTotal.WithLabelValues(ResultSuccess))
	ObserveSiteFiles(ResultSuccess)
	if got := testutil.ToFloat64(siteFilesTotal.WithLabelValues(ResultSuccess)); got != before+1 {
		t.Fatalf("sitefiles counter = %v; want %v", got, before+1)
	}
}
