package api

import (
	"context"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	boardRoute       = "/api/board"
	boardSpanName    = "GET " + boardRoute
	boardEventName   = "board.request"
	boardEventDomain = "join.api"
	tracerName       = "join-api/api"
)

type boardRequestMetrics struct {
	logger         *log.Logger
	span           trace.Span
	start          time.Time
	buildDuration  time.Duration
	encodeDuration time.Duration
	searchProvided bool
	tasksReturned  int
	noResults      bool
	errorStage     string
}

func newBoardRequestMetrics(ctx context.Context, logger *log.Logger) (*boardRequestMetrics, context.Context) {
	spanCtx, span := otel.Tracer(tracerName).Start(ctx, boardSpanName, trace.WithSpanKind(trace.SpanKindServer))
	return &boardRequestMetrics{
		logger: logger,
		span:   span,
		start:  time.Now(),
	}, spanCtx
}

func (m *boardRequestMetrics) ObserveBuild(d time.Duration) {
	if d > 0 {
		m.buildDuration = d
	}
}

func (m *boardRequestMetrics) ObserveEncode(d time.Duration) {
	if d > 0 {
		m.encodeDuration = d
	}
}

func (m *boardRequestMetrics) SetSearchProvided(provided bool) {
	m.searchProvided = provided
}

func (m *boardRequestMetrics) SetTasksReturned(count int) {
	if count < 0 {
		count = 0
	}
	m.tasksReturned = count
}

func (m *boardRequestMetrics) SetNoResults(none bool) {
	m.noResults = none
}

func (m *boardRequestMetrics) SetErrorStage(stage string) {
	if stage != "" {
		m.errorStage = stage
	}
}

// Log ends the span and writes one observability.event entry carrying the
// same attributes.
func (m *boardRequestMetrics) Log(status int, err error) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("http.route", boardRoute),
		attribute.Int("http.status_code", status),
		attribute.Float64("join.board.total_ms", durationToMillis(time.Since(m.start))),
		attribute.Bool("join.board.search_provided", m.searchProvided),
		attribute.Int("join.board.tasks_returned", m.tasksReturned),
		attribute.Bool("join.board.no_results", m.noResults),
	}
	if m.buildDuration > 0 {
		attrs = append(attrs, attribute.Float64("join.board.build_ms", durationToMillis(m.buildDuration)))
	}
	if m.encodeDuration > 0 {
		attrs = append(attrs, attribute.Float64("join.board.encode_ms", durationToMillis(m.encodeDuration)))
	}
	if m.errorStage != "" {
		attrs = append(attrs, attribute.String("join.board.error_stage", m.errorStage))
	}

	severityText, severityNumber := severityForStatus(status, err)
	eventAttrs := append([]attribute.KeyValue{
		attribute.String("event.name", boardEventName),
		attribute.String("event.domain", boardEventDomain),
		attribute.String("severity_text", severityText),
		attribute.Int("severity_number", severityNumber),
	}, attrs...)
	if err != nil {
		eventAttrs = append(eventAttrs, attribute.String("error.message", err.Error()))
	}

	if m.span != nil {
		m.span.SetAttributes(attrs...)
		m.span.AddEvent("observability.event", trace.WithAttributes(eventAttrs...))
		switch {
		case err != nil:
			m.span.RecordError(err)
			m.span.SetStatus(codes.Error, err.Error())
		case status >= http.StatusInternalServerError:
			m.span.SetStatus(codes.Error, http.StatusText(status))
		default:
			m.span.SetStatus(codes.Ok, "")
		}
	}

	if m.logger != nil {
		attrMap := make(map[string]any, len(attrs))
		for _, kv := range attrs {
			attrMap[string(kv.Key)] = kv.Value.AsInterface()
		}
		fields := log.Fields{
			"event.name":      boardEventName,
			"event.domain":    boardEventDomain,
			"severity_text":   severityText,
			"severity_number": severityNumber,
			"attributes":      attrMap,
		}
		if m.span != nil {
			if sc := m.span.SpanContext(); sc.IsValid() {
				fields["trace_id"] = sc.TraceID().String()
				fields["span_id"] = sc.SpanID().String()
			}
		}
		if err != nil {
			fields["error"] = err.Error()
		}
		entry := m.logger.WithFields(fields)
		switch severityText {
		case "ERROR":
			entry.Error("observability.event")
		case "WARN":
			entry.Warn("observability.event")
		default:
			entry.Info("observability.event")
		}
	}

	if m.span != nil {
		m.span.End()
	}
}

func severityForStatus(status int, err error) (string, int) {
	switch {
	case status >= http.StatusInternalServerError, status == 0 && err != nil:
		return "ERROR", 17
	case status >= http.StatusBadRequest:
		return "WARN", 13
	}
	return "INFO", 9
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
