package calendar

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/Freeeeeet/session_booking/internal/model"
)

const (
	defaultGraphBaseURL = "https://graph.microsoft.com/v1.0"
	graphScope          = "https://graph.microsoft.com/.default"
	graphTimeLayout     = "2006-01-02T15:04:05"
)

// GraphConfig configures app-only access to a Microsoft 365 calendar.
type GraphConfig struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	// CalendarUser is the mailbox whose schedule is read, e.g. coach@example.com.
	CalendarUser string
	BaseURL      string
	TokenURL     string
	MaxRetries   uint64
}

func (c GraphConfig) Enabled() bool {
	return c.TenantID != "" && c.ClientID != "" && c.ClientSecret != "" && c.CalendarUser != ""
}

// GraphGateway reads busy time through the Graph getSchedule endpoint.
type GraphGateway struct {
	client     *http.Client
	baseURL    string
	user       string
	maxRetries uint64
	logger     *zap.Logger
}

// NewGraphGateway builds a gateway authenticated with the client-credentials flow.
func NewGraphGateway(cfg GraphConfig, logger *zap.Logger) *GraphGateway {
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = "https://login.microsoftonline.com/" + url.PathEscape(cfg.TenantID) + "/oauth2/v2.0/token"
	}

	base := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)

	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     tokenURL,
		Scopes:       []string{graphScope},
	}

	return newGraphGateway(cc.Client(ctx), cfg, logger)
}

func newGraphGateway(client *http.Client, cfg GraphConfig, logger *zap.Logger) *GraphGateway {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultGraphBaseURL
	}
	retries := cfg.MaxRetries
	if retries == 0 {
		retries = 2
	}
	return &GraphGateway{
		client:     client,
		baseURL:    baseURL,
		user:       cfg.CalendarUser,
		maxRetries: retries,
		logger:     logger,
	}
}

type graphDateTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type getScheduleRequest struct {
	Schedules                []string      `json:"schedules"`
	StartTime                graphDateTime `json:"startTime"`
	EndTime                  graphDateTime `json:"endTime"`
	AvailabilityViewInterval int           `json:"availabilityViewInterval"`
}

type getScheduleResponse struct {
	Value []struct {
		ScheduleID    string `json:"scheduleId"`
		ScheduleItems []struct {
			Status string        `json:"status"`
			Start  graphDateTime `json:"start"`
			End    graphDateTime `json:"end"`
		} `json:"scheduleItems"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	} `json:"value"`
}

// GetFreeBusy returns the busy, tentative and out-of-office items between the two
// instants. Free and working-elsewhere items are ignored.
func (g *GraphGateway) GetFreeBusy(ctx context.Context, startUTC, endUTC time.Time) ([]model.BusyInterval, error) {
	body, err := json.Marshal(getScheduleRequest{
		Schedules:                []string{g.user},
		StartTime:                graphDateTime{DateTime: startUTC.UTC().Format(graphTimeLayout), TimeZone: "UTC"},
		EndTime:                  graphDateTime{DateTime: endUTC.UTC().Format(graphTimeLayout), TimeZone: "UTC"},
		AvailabilityViewInterval: 15,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal getSchedule request: %w", err)
	}

	endpoint := g.baseURL + "/users/" + url.PathEscape(g.user) + "/calendar/getSchedule"

	var parsed getScheduleResponse
	backoff := retry.WithMaxRetries(g.maxRetries, retry.NewExponential(200*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Prefer", `outlook.timezone="UTC"`)

		resp, err := g.client.Do(req)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("getSchedule request: %w", err))
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			io.Copy(io.Discard, resp.Body)
			return retry.RetryableError(fmt.Errorf("getSchedule: status %d", resp.StatusCode))
		}
		if resp.StatusCode != http.StatusOK {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return fmt.Errorf("getSchedule: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		}

		parsed = getScheduleResponse{}
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return fmt.Errorf("decode getSchedule response: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var busy []model.BusyInterval
	for _, schedule := range parsed.Value {
		if schedule.Error != nil {
			return nil, errors.New("getSchedule: " + schedule.Error.Message)
		}
		for _, item := range schedule.ScheduleItems {
			if item.Status == "free" || item.Status == "workingElsewhere" {
				continue
			}
			start, err := parseGraphTime(item.Start)
			if err != nil {
				return nil, err
			}
			end, err := parseGraphTime(item.End)
			if err != nil {
				return nil, err
			}
			busy = append(busy, model.BusyInterval{Start: start, End: end})
		}
	}

	g.logger.Debug("Fetched external busy time",
		zap.Time("start", startUTC),
		zap.Time("end", endUTC),
		zap.Int("intervals", len(busy)),
	)

	return busy, nil
}

// parseGraphTime reads Graph's zone-less "2026-10-20T07:00:00.0000000" in the zone it names.
func parseGraphTime(v graphDateTime) (time.Time, error) {
	loc := time.UTC
	if v.TimeZone != "" && v.TimeZone != "UTC" {
		l, err := time.LoadLocation(v.TimeZone)
		if err != nil {
			return time.Time{}, fmt.Errorf("load graph time zone %q: %w", v.TimeZone, err)
		}
		loc = l
	}
	t, err := time.ParseInLocation("2006-01-02T15:04:05.9999999", v.DateTime, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse graph time %q: %w", v.DateTime, err)
	}
	return t.UTC(), nil
}
