package schedjobs

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

type CronJob struct {
	ID          string
	Minutes     uint64 // 60 bits
	Hours       uint32 // 24 bits
	DaysOfMonth uint32 // 31 bits
	Weekdays    uint8  // 7 bits
	Task        func(ctx context.Context) error
	OnFinished  func(error)

	running atomic.Bool
}

// NewEveryMinEmptyCronJob provides a cronjob matching every minute without a task as a template
// Assign a Task, and Modify its time condition
func NewEveryMinEmptyCronJob(jobID string) *CronJob {
	return &CronJob{
		ID:          jobID,
		Minutes:     AllMinutes,
		Hours:       AllHours,
		DaysOfMonth: AllDaysOfMonth,
		Weekdays:    AllWeekdays,
	}
}

const (
	AllMinutes     uint64 = 0xFFFFFFFFFFFFFFF // 60 bits set
	AllHours       uint32 = 0xFFFFFF          // 24 bits set
	AllWeekdays    uint8  = 0b01111111        // sun:0b00000001, mon:0b00000010, ..., fri:0b00100000, sat:0b01000000
	AllDaysOfMonth uint32 = 0x7FFFFFFF        // 31 bits set
)

func (job *CronJob) Matches(now time.Time) bool {
	if (job.Minutes & (1 << now.Minute())) == 0 {
		return false
	}
	if (job.Hours & (1 << now.Hour())) == 0 {
		return false
	}
	if (job.DaysOfMonth & (1 << (now.Day() - 1))) == 0 { // now.Day() = 1..31 -> bit 0 = day 1
		return false
	}
	if (job.Weekdays & (1 << now.Weekday())) == 0 {
		return false
	}
	return true
}

// ParseCronJob builds a job from a 4 field expression "minute hour day-of-month weekday".
// Each field takes `*`, `*/n`, `a-b` and comma separated lists.
func ParseCronJob(jobID string, expr string) (*CronJob, error) {
	fields := strings.Fields(expr)
	if len(fields) != 4 {
		return nil, fmt.Errorf("cron %q: want 4 fields, got %d", expr, len(fields))
	}
	minutes, err := parseField(fields[0], 0, 59)
	if err != nil {
		return nil, fmt.Errorf("cron %q minute: %w", expr, err)
	}
	hours, err := parseField(fields[1], 0, 23)
	if err != nil {
		return nil, fmt.Errorf("cron %q hour: %w", expr, err)
	}
	days, err := parseField(fields[2], 1, 31)
	if err != nil {
		return nil, fmt.Errorf("cron %q day: %w", expr, err)
	}
	weekdays, err := parseField(fields[3], 0, 6)
	if err != nil {
		return nil, fmt.Errorf("cron %q weekday: %w", expr, err)
	}
	return &CronJob{
		ID:          jobID,
		Minutes:     BitsFromMinutes(minutes),
		Hours:       BitsFromHours(hours),
		DaysOfMonth: BitsFromDaysOfMonth(days),
		Weekdays:    BitsFromWeekdays(weekdays),
	}, nil
}

func parseField(field string, lo, hi int) ([]int, error) {
	var out []int
	for _, part := range strings.Split(field, ",") {
		step := 1
		if base, s, ok := strings.Cut(part, "/"); ok {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				return nil, fmt.Errorf("bad step %q", s)
			}
			step = n
			part = base
		}
		from, to := lo, hi
		switch {
		case part == "*":
		case strings.Contains(part, "-"):
			a, b, _ := strings.Cut(part, "-")
			var err1, err2 error
			from, err1 = strconv.Atoi(a)
			to, err2 = strconv.Atoi(b)
			if err1 != nil || err2 != nil {
				return nil, fmt.Errorf("bad range %q", part)
			}
		default:
			v, err := strconv.Atoi(part)
			if err != nil {
				return nil, fmt.Errorf("bad value %q", part)
			}
			from, to = v, v
		}
		if from < lo || to > hi || from > to {
			return nil, fmt.Errorf("%q out of range %d-%d", part, lo, hi)
		}
		for v := from; v <= to; v += step {
			out = append(out, v)
		}
	}
	return out, nil
}

func BitsFromMinutes(list []int) uint64 {
	var bits uint64
	for _, v := range list {
		if v >= 0 && v < 60 {
			bits |= 1 << v
		}
	}
	return bits
}

func BitsFromHours(list []int) uint32 {
	var bits uint32
	for _, v := range list {
		if v >= 0 && v < 24 {
			bits |= 1 << v
		}
	}
	return bits
}

func BitsFromWeekdays(list []int) uint8 {
	var bits uint8
	for _, v := range list {
		if v >= 0 && v < 7 {
			bits |= 1 << v
		}
	}
	return bits
}

func BitsFromDaysOfMonth(list []int) uint32 {
	var bits uint32
	for _, v := range list {
		if v >= 1 && v <= 31 { // day 1 = bit 0
			bits |= 1 << (v - 1)
		}
	}
	return bits
}
