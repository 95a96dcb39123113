package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Freeeeeet/session_booking/internal/model"
	"github.com/Freeeeeet/session_booking/internal/timeutil"
)

type recordingWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func testBooking() *model.Booking {
	original := timeutil.Date(2026, time.October, 20)
	originalStart := "09:00"
	return &model.Booking{
		ID:                42,
		ClientName:        "Thandi",
		ClientEmail:       "thandi@example.com",
		SessionType:       model.SessionTypeIndividual,
		Date:              timeutil.Date(2026, time.October, 22),
		StartTime:         "13:00",
		EndTime:           "14:00",
		Status:            model.BookingStatusConfirmed,
		RescheduleCount:   1,
		OriginalDate:      &original,
		OriginalStartTime: &originalStart,
	}
}

func TestNewBookingEvent(t *testing.T) {
	now := time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC)
	e := NewBookingEvent(TopicBookingRescheduled, testBooking(), now)

	assert.NotEmpty(t, e.EventID)
	assert.Equal(t, TopicBookingRescheduled, e.Type)
	assert.Equal(t, "2026-10-22", e.Date)
	assert.Equal(t, "2026-10-20", e.OriginalDate)
	assert.Equal(t, "09:00", e.OriginalStartTime)
	assert.Equal(t, 1, e.RescheduleCount)
}

func TestKafkaPublisher_Publish(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	w := &recordingWriter{}
	p := &KafkaPublisher{writer: w, logger: zap.NewNop()}

	e := NewBookingEvent(TopicBookingCreated, testBooking(), time.Now())
	require.NoError(t, p.Publish(ctx, e))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, TopicBookingCreated, msg.Topic)
	assert.Equal(t, "42", string(msg.Key))
	assert.Equal(t, e.EventID, header(msg, "event_id"))
	assert.Equal(t, TopicBookingCreated, header(msg, "event_type"))
	assert.Equal(t, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", header(msg, "traceparent"))

	var decoded BookingEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, int64(42), decoded.BookingID)
	assert.Equal(t, "13:00", decoded.StartTime)
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	p := &KafkaPublisher{writer: &recordingWriter{err: errors.New("broker down")}, logger: zap.NewNop()}

	err := p.Publish(context.Background(), NewBookingEvent(TopicBookingCancelled, testBooking(), time.Now()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "booking.cancelled")
}
