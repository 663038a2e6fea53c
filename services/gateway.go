package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"mydayplanner/model"
)

// EventInput is the provider-neutral shape of an exported task.
type EventInput struct {
	Title       string
	Description string
	Date        civil.Date
	StartTime   string // HH:MM, empty for all-day
	EndTime     string
	AllDay      bool
}

type CalendarGateway interface {
	ListCalendars(ctx context.Context, token string) ([]model.Calendar, error)
	CreateEvent(ctx context.Context, token, calendarID string, in EventInput) (string, error)
	UpdateEvent(ctx context.Context, token, calendarID, eventID string, in EventInput) (string, error)
	DeleteEvent(ctx context.Context, token, calendarID, eventID string) error
	RevokeToken(ctx context.Context, token string) error
}

type GatewayOptions struct {
	// Endpoint overrides the Calendar API base URL, e.g. for a local fake.
	Endpoint  string
	RevokeURL string
	Timeout   time.Duration
	Location  *time.Location
	Transport http.RoundTripper
}

// GoogleGateway calls the Google Calendar REST API. It keeps no per-user state; every call
// carries the access token it should use.
type GoogleGateway struct {
	opts GatewayOptions
	log  *zap.Logger
}

func NewGoogleGateway(opts GatewayOptions, log *zap.Logger) *GoogleGateway {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Transport == nil {
		opts.Transport = http.DefaultTransport
	}
	return &GoogleGateway{opts: opts, log: log}
}

func (g *GoogleGateway) httpClient(token string) *http.Client {
	return &http.Client{
		Timeout: g.opts.Timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
			Base:   g.opts.Transport,
		},
	}
}

func (g *GoogleGateway) service(ctx context.Context, token string) (*calendar.Service, error) {
	opts := []option.ClientOption{option.WithHTTPClient(g.httpClient(token))}
	if g.opts.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(g.opts.Endpoint))
	}
	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	return svc, nil
}

func (g *GoogleGateway) ListCalendars(ctx context.Context, token string) (calendars []model.Calendar, err error) {
	defer recordProviderCall("list_calendars", time.Now(), &err)

	svc, err := g.service(ctx, token)
	if err != nil {
		return nil, err
	}
	err = svc.CalendarList.List().Pages(ctx, func(page *calendar.CalendarList) error {
		for _, item := range page.Items {
			calendars = append(calendars, model.Calendar{
				ID:              item.Id,
				Summary:         item.Summary,
				Primary:         item.Primary,
				BackgroundColor: item.BackgroundColor,
				AccessRole:      item.AccessRole,
				TimeZone:        item.TimeZone,
			})
		}
		return nil
	})
	if err != nil {
		return nil, classifyProviderError(err)
	}
	return calendars, nil
}

func (g *GoogleGateway) CreateEvent(ctx context.Context, token, calendarID string, in EventInput) (id string, err error) {
	defer recordProviderCall("create_event", time.Now(), &err)

	event, err := g.toEvent(in)
	if err != nil {
		return "", err
	}
	svc, err := g.service(ctx, token)
	if err != nil {
		return "", err
	}
	created, err := svc.Events.Insert(calendarID, event).Context(ctx).Do()
	if err != nil {
		return "", classifyProviderError(err)
	}
	return created.Id, nil
}

// UpdateEvent replaces the event. A missing or already deleted event yields ErrEventNotFound.
func (g *GoogleGateway) UpdateEvent(ctx context.Context, token, calendarID, eventID string, in EventInput) (id string, err error) {
	defer recordProviderCall("update_event", time.Now(), &err)

	event, err := g.toEvent(in)
	if err != nil {
		return "", err
	}
	svc, err := g.service(ctx, token)
	if err != nil {
		return "", err
	}
	updated, err := svc.Events.Update(calendarID, eventID, event).Context(ctx).Do()
	if err != nil {
		if isGone(err) {
			return "", ErrEventNotFound
		}
		return "", classifyProviderError(err)
	}
	return updated.Id, nil
}

// DeleteEvent treats 410 Gone as success. 404 is reported as ErrEventNotFound.
func (g *GoogleGateway) DeleteEvent(ctx context.Context, token, calendarID, eventID string) (err error) {
	defer recordProviderCall("delete_event", time.Now(), &err)

	svc, err := g.service(ctx, token)
	if err != nil {
		return err
	}
	err = svc.Events.Delete(calendarID, eventID).Context(ctx).Do()
	if err == nil {
		return nil
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusGone:
			return nil
		case http.StatusNotFound:
			return ErrEventNotFound
		}
	}
	return classifyProviderError(err)
}

func (g *GoogleGateway) RevokeToken(ctx context.Context, token string) (err error) {
	defer recordProviderCall("revoke_token", time.Now(), &err)

	form := url.Values{"token": {token}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.opts.RevokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build revoke request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := &http.Client{Timeout: g.opts.Timeout, Transport: g.opts.Transport}
	resp, err := client.Do(req)
	if err != nil {
		return &ProviderError{Body: err.Error()}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &ProviderError{Status: resp.StatusCode, Body: string(body)}
	}
	return nil
}

func (g *GoogleGateway) toEvent(in EventInput) (*calendar.Event, error) {
	event := &calendar.Event{Summary: in.Title, Description: in.Description}

	if in.AllDay || in.StartTime == "" {
		event.Start = &calendar.EventDateTime{Date: in.Date.String()}
		event.End = &calendar.EventDateTime{Date: in.Date.AddDays(1).String()}
		return event, nil
	}

	start, err := atClock(in.Date, in.StartTime, g.opts.Location)
	if err != nil {
		return nil, &ValidationError{Field: "startTime", Message: "must be HH:MM"}
	}
	end := start.Add(time.Hour)
	if in.EndTime != "" {
		e, err := atClock(in.Date, in.EndTime, g.opts.Location)
		if err != nil {
			return nil, &ValidationError{Field: "endTime", Message: "must be HH:MM"}
		}
		if e.After(start) {
			end = e
		}
	}

	zone := g.opts.Location.String()
	event.Start = &calendar.EventDateTime{DateTime: start.Format(time.RFC3339), TimeZone: zone}
	event.End = &calendar.EventDateTime{DateTime: end.Format(time.RFC3339), TimeZone: zone}
	return event, nil
}

// clockLayout is the wall-clock format of task start and end times.
const clockLayout = "15:04"

func atClock(d civil.Date, clock string, loc *time.Location) (time.Time, error) {
	t, err := time.Parse(clockLayout, clock)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(d.Year, d.Month, d.Day, t.Hour(), t.Minute(), 0, 0, loc), nil
}

func isGone(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone
	}
	return false
}

func classifyProviderError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		body := apiErr.Body
		if body == "" {
			body = apiErr.Message
		}
		return &ProviderError{Status: apiErr.Code, Body: body}
	}
	return &ProviderError{Body: err.Error()}
}
