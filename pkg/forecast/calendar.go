package forecast

import (
	"fmt"
	"strings"
	"time"

	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/br"
	"github.com/rickar/cal/v2/us"
)

// WorkdayCalendar counts working days (weekends and public holidays
// excluded) in an inclusive date range. *cal.BusinessCalendar satisfies it.
type WorkdayCalendar interface {
	WorkdaysInRange(start, end time.Time) int
}

var _ WorkdayCalendar = (*cal.BusinessCalendar)(nil)

// ForRegion returns a business calendar loaded with the public holidays of
// the given region code.
func ForRegion(code string) (*cal.BusinessCalendar, error) {
	c := cal.NewBusinessCalendar()
	switch strings.ToUpper(code) {
	case "BR":
		c.AddHoliday(br.Holidays...)
	case "US":
		c.AddHoliday(us.Holidays...)
	default:
		return nil, fmt.Errorf("forecast: no holiday calendar for region %q", code)
	}
	return c, nil
}
