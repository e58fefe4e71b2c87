package server

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-ical"

	"github.com/klabast/wb-services/calendar42/internal/events"
)

const (
	ICSProductID    = "-//42 Calendar//Events//EN"
	ICSCalendarName = "42 Calendar"
	ICSUIDDomain    = "calendar42"
	ExportFileName  = "calendar42_events"

	// how often subscribed clients should refetch the feed
	publishedTTL = "PT1H"

	// reminders are capped at four weeks before the event
	maxReminderMinutes = 4 * 7 * 24 * 60
)

// exportMeta describes the view an export was taken from
type exportMeta struct {
	SearchTerm string            `json:"searchTerm"`
	Category   events.Category   `json:"category"`
	Sort       events.SortOption `json:"sort"`
}

// setRaw sets a property value without escaping or a VALUE parameter
func setRaw(props ical.Props, name, value string) {
	p := ical.NewProp(name)
	p.Value = value
	props.Set(p)
}

func newCalendar(name string) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, ICSProductID)
	setRaw(cal.Props, ical.PropCalendarScale, "GREGORIAN")
	setRaw(cal.Props, "X-WR-CALNAME", name)
	return cal
}

// isDateOnly reports whether the stored date carries no time of day
func isDateOnly(date string) bool {
	return len(strings.TrimSpace(date)) == len(time.DateOnly)
}

// toVEvent converts an event; events whose date cannot be parsed are skipped
func toVEvent(e events.Event, stamp time.Time) (*ical.Component, bool) {
	start, ok := events.ParseTimestamp(e.Date)
	if !ok {
		return nil, false
	}

	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, fmt.Sprintf("%s@%s", e.ID, ICSUIDDomain))
	ve.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())

	if isDateOnly(e.Date) {
		// all-day event
		ve.Props.SetDate(ical.PropDateTimeStart, start)
		ve.Props.SetDate(ical.PropDateTimeEnd, start.AddDate(0, 0, 1))
	} else {
		ve.Props.SetDateTime(ical.PropDateTimeStart, start.UTC())
	}

	ve.Props.SetText(ical.PropSummary, e.Title)
	if e.Description != "" {
		ve.Props.SetText(ical.PropDescription, e.Description)
	}
	if e.Location != "" {
		ve.Props.SetText(ical.PropLocation, e.Location)
	}
	if label, ok := events.CategoryLabels[e.Category]; ok {
		ve.Props.SetText(ical.PropCategories, label)
	}
	if created, ok := events.ParseTimestamp(e.CreatedAt); ok {
		ve.Props.SetDateTime(ical.PropCreated, created.UTC())
	}

	return ve, true
}

// newAlarm builds a display reminder firing minutesBefore the event starts
func newAlarm(minutesBefore int, title string) *ical.Component {
	alarm := ical.NewComponent(ical.CompAlarm)
	setRaw(alarm.Props, ical.PropAction, "DISPLAY")
	alarm.Props.SetText(ical.PropDescription, "Reminder: "+title)
	setRaw(alarm.Props, ical.PropTrigger, fmt.Sprintf("-PT%dM", minutesBefore))
	return alarm
}

// parseReminders reads the repeated reminder query parameter (minutes
// before the event). Invalid values are ignored.
func parseReminders(r *http.Request) []int {
	var out []int
	for _, v := range r.URL.Query()["reminder"] {
		minutes, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || minutes < 0 || minutes > maxReminderMinutes {
			continue
		}
		out = append(out, minutes)
	}
	return out
}

// emptyPlaceholder stands in for the missing children of an empty
// calendar; the encoder rejects a VCALENDAR without components.
const emptyPlaceholder = "X-CALENDAR42-EMPTY"

// encodeCalendar serializes cal. A calendar without events still encodes
// to a valid VCALENDAR carrying only its properties.
func encodeCalendar(cal *ical.Calendar) ([]byte, error) {
	if len(cal.Children) > 0 {
		var buf bytes.Buffer
		if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	withPlaceholder := &ical.Calendar{Component: &ical.Component{
		Name:     cal.Name,
		Props:    cal.Props,
		Children: []*ical.Component{ical.NewComponent(emptyPlaceholder)},
	}}

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(withPlaceholder); err != nil {
		return nil, err
	}
	placeholder := "BEGIN:" + emptyPlaceholder + "\r\nEND:" + emptyPlaceholder + "\r\n"
	return bytes.Replace(buf.Bytes(), []byte(placeholder), nil, 1), nil
}

// GenerateICS renders list as a downloadable iCalendar file with optional
// reminders
func GenerateICS(w http.ResponseWriter, r *http.Request, list []events.Event) error {
	reminders := parseReminders(r)
	stamp := time.Now()

	cal := newCalendar(ICSCalendarName)
	for _, e := range list {
		ve, ok := toVEvent(e, stamp)
		if !ok {
			continue
		}
		for _, minutes := range reminders {
			ve.Children = append(ve.Children, newAlarm(minutes, e.Title))
		}
		cal.Children = append(cal.Children, ve)
	}

	data, err := encodeCalendar(cal)
	if err != nil {
		return fmt.Errorf("failed to encode calendar: %w", err)
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.ics", ExportFileName))
	_, err = w.Write(data)
	return err
}

// GenerateSubscriptionICS renders a calendar subscription feed. Unlike
// GenerateICS the content is served inline, carries METHOD:PUBLISH and a
// refresh interval, and never contains alarms.
func GenerateSubscriptionICS(w http.ResponseWriter, r *http.Request, list []events.Event) error {
	stamp := time.Now()

	cal := newCalendar(ICSCalendarName + " - My events")
	setRaw(cal.Props, ical.PropMethod, "PUBLISH")
	setRaw(cal.Props, "X-PUBLISHED-TTL", publishedTTL)

	for _, e := range list {
		if ve, ok := toVEvent(e, stamp); ok {
			cal.Children = append(cal.Children, ve)
		}
	}

	data, err := encodeCalendar(cal)
	if err != nil {
		return fmt.Errorf("failed to encode calendar: %w", err)
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	_, err = w.Write(data)
	return err
}

// GenerateCSV renders list as a CSV file, one row per event
func GenerateCSV(w http.ResponseWriter, list []events.Event) error {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)

	if err := cw.Write([]string{"ID", "Title", "Date", "Location", "Category", "Description", "Created"}); err != nil {
		return err
	}
	for _, e := range list {
		row := []string{e.ID, e.Title, e.Date, e.Location, string(e.Category), e.Description, e.CreatedAt}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.csv", ExportFileName))
	_, err := w.Write(buf.Bytes())
	return err
}

// GenerateJSON renders list together with the view it was taken from
func GenerateJSON(w http.ResponseWriter, meta exportMeta, list []events.Event) error {
	data, err := json.MarshalIndent(struct {
		exportMeta
		ExportedAt string         `json:"exportedAt"`
		Total      int            `json:"total"`
		Events     []events.Event `json:"events"`
	}{
		exportMeta: meta,
		ExportedAt: events.FormatTimestamp(time.Now()),
		Total:      len(list),
		Events:     list,
	}, "", "  ")
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.json", ExportFileName))
	_, err = w.Write(data)
	return err
}
