package flowpipe

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	fperrors "github.com/randalmurphal/flowpipe/pkg/flowpipe/errors"
	"github.com/randalmurphal/flowpipe/pkg/flowpipe/runstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// testLogHandler captures log records for testing.
type testLogHandler struct {
	mu    *sync.Mutex
	buf   *bytes.Buffer
	attrs []slog.Attr
}

func newTestLogHandler() *testLogHandler {
	return &testLogHandler{mu: &sync.Mutex{}, buf: &bytes.Buffer{}}
}

func (h *testLogHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *testLogHandler) Handle(_ context.Context, r slog.Record) error {
	data := map[string]any{
		"level": r.Level.String(),
		"msg":   r.Message,
	}
	for _, a := range h.attrs {
		data[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		data[a.Key] = a.Value.Any()
		return true
	})

	h.mu.Lock()
	defer h.mu.Unlock()
	return json.NewEncoder(h.buf).Encode(data)
}

func (h *testLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &testLogHandler{mu: h.mu, buf: h.buf, attrs: append(append([]slog.Attr(nil), h.attrs...), attrs...)}
}

func (h *testLogHandler) WithGroup(string) slog.Handler {
	return h
}

func (h *testLogHandler) records() []map[string]any {
	h.mu.Lock()
	defer h.mu.Unlock()
	var records []map[string]any
	for _, line := range bytes.Split(h.buf.Bytes(), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal(line, &m); err == nil {
			records = append(records, m)
		}
	}
	return records
}

func (h *testLogHandler) find(msg string) []map[string]any {
	var out []map[string]any
	for _, r := range h.records() {
		if r["msg"] == msg {
			out = append(out, r)
		}
	}
	return out
}

func TestRun_LogsLifecycle(t *testing.T) {
	h := newTestLogHandler()
	cp := linearPipeline(t, intSource(1, 2), newSink())

	_, err := cp.Run(testCtx(), WithObservabilityLogger(slog.New(h)), WithRunID("logged"))
	require.NoError(t, err)

	start := h.find("pipeline run starting")
	require.Len(t, start, 1)
	assert.Equal(t, "logged", start[0]["run_id"])
	assert.Equal(t, "cooperative", start[0]["discipline"])
	assert.EqualValues(t, 3, start[0]["processes"])
	assert.EqualValues(t, 2, start[0]["edges"])

	done := h.find("pipeline run completed")
	require.Len(t, done, 1)
	assert.EqualValues(t, 9, done[0]["steps"])

	retired := h.find("process retired")
	assert.Len(t, retired, 3)
	for _, r := range retired {
		assert.Equal(t, "logged", r["run_id"])
	}
}

func TestRun_LogsFailure(t *testing.T) {
	h := newTestLogHandler()
	cp := mustCompile(t,
		map[string]Process{"src": intSource(1), "proc": failing(fperrors.Fatal(errTest, "write")), "sink": newSink()},
		[]string{"src", "proc", "sink"},
		[2]string{"src.out", "proc.in"},
		[2]string{"proc.out", "sink.in"},
	)

	_, err := cp.Run(testCtx(), WithObservabilityLogger(slog.New(h)))
	require.Error(t, err)

	failed := h.find("pipeline run failed")
	require.Len(t, failed, 1)
	assert.Equal(t, "proc", failed[0]["process"])
	assert.Contains(t, failed[0]["error"], "test error")
}

func TestRun_LogsRecoverableErrors(t *testing.T) {
	h := newTestLogHandler()
	cp := mustCompile(t,
		map[string]Process{"src": intSource(1), "proc": failing(errTest), "sink": newSink()},
		[]string{"src", "proc", "sink"},
		[2]string{"src.out", "proc.in"},
		[2]string{"proc.out", "sink.in"},
	)

	_, err := cp.Run(testCtx(), WithObservabilityLogger(slog.New(h)))
	require.NoError(t, err)

	warnings := h.find("step failed, forwarding error datum")
	require.Len(t, warnings, 1)
	assert.Equal(t, "proc", warnings[0]["process"])
	assert.EqualValues(t, 1, warnings[0]["color"])
}

func TestRun_ContextLoggerIsDefault(t *testing.T) {
	h := newTestLogHandler()
	ctx := NewContext(context.Background(), WithLogger(slog.New(h)))
	cp := linearPipeline(t, intSource(1), newSink())

	_, err := cp.Run(ctx)
	require.NoError(t, err)
	assert.Len(t, h.find("pipeline run completed"), 1)
}

func TestRun_ProcessLogsUseRunLogger(t *testing.T) {
	callerLog := newTestLogHandler()
	runLog := newTestLogHandler()

	ports := NewPorts().MustDeclare(
		Port{Name: "in", Direction: Input, Type: "int", Flags: FlagRequired},
		Port{Name: "out", Direction: Output, Type: "int"},
	)
	chatty := NewFunc(ports, func(ctx StepContext, in Inputs) (Outputs, error) {
		v, _ := InputValue[int](in, "in")
		ctx.Logger().Info("doubling", "value", v)
		return Outputs{}.Set("out", 2*v), nil
	})
	cp := mustCompile(t,
		map[string]Process{"src": intSource(1), "double": chatty, "sink": newSink()},
		[]string{"src", "double", "sink"},
		[2]string{"src.out", "double.in"},
		[2]string{"double.out", "sink.in"},
	)

	ctx := NewContext(context.Background(), WithLogger(slog.New(callerLog)))
	_, err := cp.Run(ctx, WithObservabilityLogger(slog.New(runLog)), WithRunID("routed"))
	require.NoError(t, err)

	assert.Empty(t, callerLog.records())
	got := runLog.find("doubling")
	require.Len(t, got, 1)
	assert.Equal(t, "routed", got[0]["run_id"])
	assert.Equal(t, "double", got[0]["process"])
}

func TestRun_LogsInitRetry(t *testing.T) {
	h := newTestLogHandler()
	attempts := 0
	cp := mustCompile(t,
		map[string]Process{"src": &retryProbe{Func: intSource(1), failures: 1, attempts: &attempts}, "sink": newSink()},
		[]string{"src", "sink"},
		[2]string{"src.out", "sink.in"},
	)

	retry := fperrors.NewRetryConfig(fperrors.WithInitialBackoff(0))
	_, err := cp.Run(testCtx(), WithInitRetry(retry), WithObservabilityLogger(slog.New(h)))
	require.NoError(t, err)

	got := h.find("process initialize retried")
	require.Len(t, got, 1)
	assert.Equal(t, "src", got[0]["process"])
	assert.InDelta(t, 2, got[0]["attempts"], 0)
	assert.Contains(t, got[0], "duration_ms")
}

func TestRun_Metrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	original := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)
	t.Cleanup(func() {
		otel.SetMeterProvider(original)
		_ = provider.Shutdown(context.Background())
	})

	cp := linearPipeline(t, intSource(1, 2, 3), newSink())
	_, err := cp.Run(testCtx(), WithMetrics(true))
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	counts := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				key := m.Name
				if v, ok := dp.Attributes.Value(attribute.Key("status")); ok {
					key += "/" + v.AsString()
				}
				counts[key] += dp.Value
			}
		}
	}

	assert.Equal(t, int64(1), counts["flowpipe.pipeline.runs/completed"])
	assert.Equal(t, int64(9), counts["flowpipe.process.steps/data"])
	assert.Equal(t, int64(3), counts["flowpipe.process.steps/complete"])
	assert.Equal(t, int64(8), counts["flowpipe.edge.pushed"])
}

func TestRun_Tracing(t *testing.T) {
	// Each run installs its own provider; spans must follow the provider
	// that is current when the run starts.
	for _, runID := range []string{"traced-1", "traced-2"} {
		t.Run(runID, func(t *testing.T) {
			exporter := tracetest.NewInMemoryExporter()
			tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
			original := otel.GetTracerProvider()
			otel.SetTracerProvider(tp)
			t.Cleanup(func() {
				otel.SetTracerProvider(original)
				_ = tp.Shutdown(context.Background())
			})

			cp := linearPipeline(t, intSource(1), newSink())
			_, err := cp.Run(testCtx(), WithTracing(true), WithRunID(runID))
			require.NoError(t, err)

			names := make(map[string]int)
			var retired []string
			for _, s := range exporter.GetSpans() {
				names[s.Name]++
				if s.Name != "flowpipe.run" {
					continue
				}
				for _, ev := range s.Events {
					if ev.Name != "process retired" {
						continue
					}
					for _, a := range ev.Attributes {
						if a.Key == "process.name" {
							retired = append(retired, a.Value.AsString())
						}
					}
				}
			}
			assert.Equal(t, 1, names["flowpipe.run"])
			assert.Equal(t, 3, names["flowpipe.process.configure"])
			assert.Equal(t, 3, names["flowpipe.process.initialize"])
			// The source calls Step again to mark itself complete.
			assert.Equal(t, 4, names["flowpipe.process.step"])
			assert.ElementsMatch(t, []string{"src", "double", "sink"}, retired)
		})
	}
}

func TestRun_Prometheus(t *testing.T) {
	reg := prometheus.NewRegistry()
	var scraped int

	ports := NewPorts().MustDeclare(
		Port{Name: "in", Direction: Input, Type: "int", Flags: FlagRequired},
	)
	probe := NewFunc(ports, func(StepContext, Inputs) (Outputs, error) {
		scraped = testutil.CollectAndCount(reg, "flowpipe_edge_pushed_total")
		return nil, nil
	})
	cp := mustCompile(t,
		map[string]Process{"src": intSource(1), "probe": probe},
		[]string{"src", "probe"},
		[2]string{"src.out", "probe.in"},
	)

	_, err := cp.Run(testCtx(), WithPrometheus(reg), WithRunID("scraped"))
	require.NoError(t, err)
	assert.Equal(t, 1, scraped, "edge series are exposed while the run is live")

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Empty(t, families, "collector is unregistered when the run ends")
}

func TestRun_RunStore(t *testing.T) {
	stores := map[string]func(t *testing.T) runstore.Store{
		"memory": func(*testing.T) runstore.Store { return runstore.NewMemoryStore() },
		"sqlite": func(t *testing.T) runstore.Store {
			s, err := runstore.NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db"))
			require.NoError(t, err)
			return s
		},
	}

	for name, open := range stores {
		t.Run(name, func(t *testing.T) {
			store := open(t)
			defer store.Close()

			ok := linearPipeline(t, intSource(1, 2), newSink())
			_, err := ok.Run(testCtx(), WithRunStore(store), WithRunID("ok"))
			require.NoError(t, err)

			bad := mustCompile(t,
				map[string]Process{"src": intSource(1), "proc": panicking("boom"), "sink": newSink()},
				[]string{"src", "proc", "sink"},
				[2]string{"src.out", "proc.in"},
				[2]string{"proc.out", "sink.in"},
			)
			_, err = bad.Run(testCtx(), WithRunStore(store), WithRunID("bad"))
			require.Error(t, err)

			rec, err := store.Load("ok")
			require.NoError(t, err)
			assert.Equal(t, runstore.StatusCompleted, rec.Status)
			assert.Equal(t, "cooperative", rec.Discipline)
			assert.False(t, rec.FinishedAt.IsZero())
			require.Len(t, rec.Processes, 3)
			assert.Equal(t, "src", rec.Processes[0].Process)
			assert.Equal(t, "complete", rec.Processes[0].Phase)
			assert.Equal(t, int64(2), rec.Processes[0].DataSteps)

			rec, err = store.Load("bad")
			require.NoError(t, err)
			assert.Equal(t, runstore.StatusFailed, rec.Status)
			assert.Equal(t, "proc", rec.Process)
			assert.True(t, strings.Contains(rec.Error, "boom"))

			runs, err := store.List(0)
			require.NoError(t, err)
			assert.Len(t, runs, 2)
		})
	}
}
