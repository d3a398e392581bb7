package repository

import (
	"time"
)

// GORM models for database mapping. Domain entities stay persistence-free;
// conversion happens at the repository boundary.

// FlightModel maps the flights table
type FlightModel struct {
	ID                 uint       `gorm:"primaryKey"`
	UniqueID           string     `gorm:"column:unique_id;uniqueIndex"`
	FlightNumber       string     `gorm:"column:flight_number"`
	AirlineCode        string     `gorm:"column:airline_code"`
	DepartureAirport   string     `gorm:"column:departure_airport"`
	ArrivalAirport     string     `gorm:"column:arrival_airport"`
	ScheduledDeparture time.Time  `gorm:"column:scheduled_departure"`
	ScheduledArrival   time.Time  `gorm:"column:scheduled_arrival"`
	ActualDeparture    *time.Time `gorm:"column:actual_departure"`
	ActualArrival      *time.Time `gorm:"column:actual_arrival"`
	Status             string     `gorm:"column:status"`
	IsCancelled        bool       `gorm:"column:is_cancelled"`
	FlightDate         string     `gorm:"column:flight_date;index"`
	DelayMinutes       *int       `gorm:"column:delay_minutes"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// TableName overrides the default table name
func (FlightModel) TableName() string {
	return "flights"
}

// EstimatedTimeModel maps the estimated_times table, one row per
// (flight, kind)
type EstimatedTimeModel struct {
	ID        uint      `gorm:"primaryKey"`
	FlightID  uint      `gorm:"column:flight_id;uniqueIndex:idx_estimate_flight_kind"`
	Kind      string    `gorm:"column:kind;uniqueIndex:idx_estimate_flight_kind"`
	Time      time.Time `gorm:"column:time"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (EstimatedTimeModel) TableName() string {
	return "estimated_times"
}

// FlightNoteModel maps the flight_notes table, keyed by (flight, text) so
// repeated polls never duplicate a remark
type FlightNoteModel struct {
	ID        uint   `gorm:"primaryKey"`
	FlightID  uint   `gorm:"column:flight_id;uniqueIndex:idx_note_flight_text"`
	Note      string `gorm:"column:note;uniqueIndex:idx_note_flight_text"`
	CreatedAt time.Time
}

func (FlightNoteModel) TableName() string {
	return "flight_notes"
}

// ScrapeRunLogModel maps the scrape_run_logs table (append-only)
type ScrapeRunLogModel struct {
	ID          uint   `gorm:"primaryKey"`
	RunID       string `gorm:"column:run_id;index"`
	RunLabel    string `gorm:"column:run_label"`
	Status      string `gorm:"column:status;index"`
	TargetDates string `gorm:"column:target_dates"`
	RecordCount int    `gorm:"column:record_count"`
	RetryCount  int    `gorm:"column:retry_count"`
	ErrorText   string `gorm:"column:error_text"`
	Note        string `gorm:"column:note"`
	StartedAt   time.Time
	FinishedAt  *time.Time
}

func (ScrapeRunLogModel) TableName() string {
	return "scrape_run_logs"
}
