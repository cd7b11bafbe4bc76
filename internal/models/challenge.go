package models

// TimeframeUnit determines which window of time a challenge counts toward
type TimeframeUnit string

const (
	TimeframeYear   TimeframeUnit = "year"
	TimeframeMonth  TimeframeUnit = "month"
	TimeframeCustom TimeframeUnit = "custom"
)

func (u TimeframeUnit) Valid() bool {
	switch u {
	case TimeframeYear, TimeframeMonth, TimeframeCustom:
		return true
	}
	return false
}

// Challenge is a numeric goal that entries count toward
type Challenge struct {
	ID            string        `json:"id" validate:"required"`
	Name          string        `json:"name" validate:"required,max=100"`
	TargetNumber  int           `json:"targetNumber" validate:"gt=0"`
	Year          int           `json:"year" validate:"min=2020,max=2100"`
	Color         string        `json:"color" validate:"required"`
	Icon          string        `json:"icon" validate:"required"`
	TimeframeUnit TimeframeUnit `json:"timeframeUnit" validate:"timeframe"`
	StartDate     string        `json:"startDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	EndDate       string        `json:"endDate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	IsPublic      bool          `json:"isPublic"`
	Archived      bool          `json:"archived"`
	CreatedAt     int64         `json:"createdAt"` // ms since epoch
	UpdatedAt     int64         `json:"updatedAt"` // ms since epoch
}

// Label identifies the challenge in validation messages
func (c Challenge) Label() string {
	if c.ID == "" {
		return "challenge (no id)"
	}
	return "challenge " + c.ID
}
