package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/emersion/go-ical"
)

// ICalEvent is one calendar entry to render into an iCalendar feed.
type ICalEvent struct {
	UID      string
	Summary  string
	Location string
	Start    time.Time
	End      time.Time
}

// ICalExporter renders a set of events into an RFC 5545 calendar document.
type ICalExporter struct {
	ProductID string
}

// NewICalExporter constructs an ICalExporter.
func NewICalExporter(productID string) *ICalExporter {
	if productID == "" {
		productID = "-//sma-adp-api//scheduling//EN"
	}
	return &ICalExporter{ProductID: productID}
}

// Render encodes events into an iCalendar document.
func (e *ICalExporter) Render(events []ICalEvent) ([]byte, error) {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropProductID, e.ProductID)
	cal.Props.SetText(ical.PropVersion, "2.0")

	for _, ev := range events {
		event := ical.NewEvent()
		event.Props.SetText(ical.PropUID, ev.UID)
		event.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())
		event.Props.SetDateTime(ical.PropDateTimeStart, ev.Start)
		event.Props.SetDateTime(ical.PropDateTimeEnd, ev.End)
		event.Props.SetText(ical.PropSummary, ev.Summary)
		if ev.Location != "" {
			event.Props.SetText(ical.PropLocation, ev.Location)
		}
		cal.Children = append(cal.Children, event.Component)
	}

	buf := &bytes.Buffer{}
	if err := ical.NewEncoder(buf).Encode(cal); err != nil {
		return nil, fmt.Errorf("encode icalendar: %w", err)
	}
	return buf.Bytes(), nil
}
