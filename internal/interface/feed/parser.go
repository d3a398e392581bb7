package feed

import (
	"encoding/xml"
	"strings"
	"time"

	"airways-scraper/internal/domain/entity"
	"airways-scraper/pkg/logger"
)

// Wire shapes of the upstream schedule document
type scheduleDoc struct {
	XMLName xml.Name   `xml:"schedule"`
	Date    string     `xml:"date,attr"`
	Flights []flightEl `xml:"flight"`
}

type flightEl struct {
	ID        string   `xml:"id,attr"`
	Number    string   `xml:"number,attr"`
	Airline   string   `xml:"airline,attr"`
	From      string   `xml:"from,attr"`
	To        string   `xml:"to,attr"`
	Status    string   `xml:"status,attr"`
	Cancelled bool     `xml:"cancelled,attr"`
	Scheduled timesEl  `xml:"scheduled"`
	Actual    timesEl  `xml:"actual"`
	Estimates []estEl  `xml:"estimated"`
	Delays    []int    `xml:"delay>minutes"`
	Notes     []string `xml:"note"`
}

type timesEl struct {
	Departure string `xml:"departure,attr"`
	Arrival   string `xml:"arrival,attr"`
}

type estEl struct {
	Kind string `xml:"kind,attr"`
	Time string `xml:"time,attr"`
}

// Parser converts raw schedule documents into feed flight entries. It is
// tolerant by design: malformed fields degrade a single entry, never the
// whole document.
type Parser struct {
	logger logger.Logger
}

// NewParser creates a new feed parser
func NewParser(log logger.Logger) *Parser {
	return &Parser{logger: log}
}

// Parse extracts flight entries from one raw schedule document
func (p *Parser) Parse(body []byte) ([]entity.FeedFlight, error) {
	var doc scheduleDoc
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, err
	}

	flights := make([]entity.FeedFlight, 0, len(doc.Flights))
	for _, el := range doc.Flights {
		id := strings.TrimSpace(el.ID)
		if id == "" {
			p.logger.Debug("Dropping feed entry without id")
			continue
		}

		ff := entity.FeedFlight{
			UniqueID:           id,
			FlightNumber:       strings.TrimSpace(el.Number),
			AirlineCode:        strings.TrimSpace(el.Airline),
			DepartureAirport:   strings.TrimSpace(el.From),
			ArrivalAirport:     strings.TrimSpace(el.To),
			Status:             strings.TrimSpace(el.Status),
			IsCancelled:        el.Cancelled,
			ScheduledDeparture: parseInstant(el.Scheduled.Departure),
			ScheduledArrival:   parseInstant(el.Scheduled.Arrival),
			ActualDeparture:    parseInstant(el.Actual.Departure),
			ActualArrival:      parseInstant(el.Actual.Arrival),
		}

		for _, est := range el.Estimates {
			t := parseInstant(est.Time)
			if t == nil {
				continue
			}
			kind := ""
			switch strings.ToLower(strings.TrimSpace(est.Kind)) {
			case "departure":
				kind = entity.EstimateDeparture
			case "arrival":
				kind = entity.EstimateArrival
			default:
				continue
			}
			ff.Estimates = append(ff.Estimates, entity.FeedTimeAnnotation{Kind: kind, Time: *t})
		}

		ff.DelayEntries = append(ff.DelayEntries, el.Delays...)

		for _, n := range el.Notes {
			n = strings.TrimSpace(n)
			if n != "" {
				ff.Notes = append(ff.Notes, n)
			}
		}

		flights = append(flights, ff)
	}

	return flights, nil
}

func parseInstant(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}
