package relay

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// SpecKind is either a cron expression (robfig/cron) or a fixed interval.
type SpecKind int

const (
	SpecCron SpecKind = iota
	SpecInterval
)

// ParsedSpec is a classified schedule string. Source is "cron", "duration"
// or "hhmm".
type ParsedSpec struct {
	Kind   SpecKind
	Cron   string
	Every  time.Duration
	Source string
}

var schedulePrefixes = []struct {
	prefix string
	kind   SpecKind
}{
	{"cron:", SpecCron},
	{"interval:", SpecInterval},
	{"every:", SpecInterval},
}

// ParseSchedule classifies raw without validating cron fields:
//
//	"*/5 * * * *", "@hourly", "cron:0 9 * * 1-5"   cron
//	"5h", "2h30m", "interval:45s"                    interval
//	"01:30", "every:01:30"                           interval, hours:minutes
//
// Anything containing whitespace or starting with '@' is cron.
func ParseSchedule(raw string) (ParsedSpec, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ParsedSpec{}, errors.New("schedule is empty")
	}
	if kind, rest, ok := cutSchedulePrefix(s); ok {
		if rest == "" {
			return ParsedSpec{}, fmt.Errorf("schedule %q: nothing after prefix", raw)
		}
		if kind == SpecCron {
			return ParsedSpec{Kind: SpecCron, Cron: rest, Source: "cron"}, nil
		}
		return parseInterval(rest)
	}
	if s[0] == '@' || strings.ContainsAny(s, " \t") {
		return ParsedSpec{Kind: SpecCron, Cron: s, Source: "cron"}, nil
	}
	ps, err := parseInterval(s)
	if err != nil {
		return ParsedSpec{}, fmt.Errorf("invalid schedule %q (use cron like '*/5 * * * *', HH:MM like '02:30', or duration like '55m'): %w", raw, err)
	}
	return ps, nil
}

func cutSchedulePrefix(s string) (SpecKind, string, bool) {
	for _, p := range schedulePrefixes {
		if len(s) >= len(p.prefix) && strings.EqualFold(s[:len(p.prefix)], p.prefix) {
			return p.kind, strings.TrimSpace(s[len(p.prefix):]), true
		}
	}
	return 0, "", false
}

func parseInterval(v string) (ParsedSpec, error) {
	ps := ParsedSpec{Kind: SpecInterval, Source: "duration"}
	var err error
	if h, m, ok := strings.Cut(v, ":"); ok {
		ps.Source = "hhmm"
		ps.Every, err = hoursMinutes(h, m)
	} else {
		ps.Every, err = time.ParseDuration(v)
	}
	if err != nil {
		return ParsedSpec{}, fmt.Errorf("interval %q: %w", v, err)
	}
	if ps.Every <= 0 {
		return ParsedSpec{}, fmt.Errorf("interval %q must be > 0", v)
	}
	return ps, nil
}

// hoursMinutes parses "H:MM" through "HHH:MM".
func hoursMinutes(h, m string) (time.Duration, error) {
	if len(h) < 1 || len(h) > 3 || len(m) != 2 || !digits(h) || !digits(m) {
		return 0, errors.New("want HH:MM")
	}
	hh, _ := strconv.Atoi(h)
	mm, _ := strconv.Atoi(m)
	if mm > 59 {
		return 0, errors.New("minutes must be 00-59")
	}
	return time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute, nil
}

func digits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// DefaultSchedule is five hours.
const DefaultSchedule = "5h"

// StartupPeriod labels the first summary after start.
const StartupPeriod = "Server Startup - All Recent Events"

var cronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Schedule computes fire times and describes the period a summary covers.
type Schedule struct {
	spec ParsedSpec
	raw  string
	loc  *time.Location
	next cron.Schedule
}

// NewSchedule parses raw (see ParseSchedule; empty means DefaultSchedule).
// Cron expressions are evaluated in loc; nil means local time.
func NewSchedule(raw string, loc *time.Location) (*Schedule, error) {
	if strings.TrimSpace(raw) == "" {
		raw = DefaultSchedule
	}
	if loc == nil {
		loc = time.Local
	}
	ps, err := ParseSchedule(raw)
	if err != nil {
		return nil, err
	}
	s := &Schedule{spec: ps, raw: strings.TrimSpace(raw), loc: loc}
	switch ps.Kind {
	case SpecInterval:
		s.next = cron.Every(ps.Every)
	default:
		cs, err := cronParser.Parse(ps.Cron)
		if err != nil {
			return nil, fmt.Errorf("invalid cron %q: %w", ps.Cron, err)
		}
		if spec, ok := cs.(*cron.SpecSchedule); ok && !strings.HasPrefix(ps.Cron, "TZ=") && !strings.HasPrefix(ps.Cron, "CRON_TZ=") {
			spec.Location = loc
		}
		s.next = cs
	}
	return s, nil
}

func (s *Schedule) Spec() ParsedSpec { return s.spec }

func (s *Schedule) String() string { return s.raw }

// Next returns the first fire time strictly after t.
func (s *Schedule) Next(t time.Time) time.Time { return s.next.Next(t) }

// Period describes what a summary covers: the startup label on the first run,
// "Last <interval>" for interval schedules, "Since <time>" for cron schedules.
func (s *Schedule) Period(firstRun bool, since time.Time) string {
	if firstRun {
		return StartupPeriod
	}
	if s.spec.Kind == SpecInterval {
		return "Last " + humanDuration(s.spec.Every)
	}
	return "Since " + since.In(s.loc).Format("2006-01-02 15:04 MST")
}

// humanDuration renders 5h as "5 Hours" and 90m as "1 Hour 30 Minutes".
func humanDuration(d time.Duration) string {
	units := []struct {
		size time.Duration
		name string
	}{
		{24 * time.Hour, "Day"},
		{time.Hour, "Hour"},
		{time.Minute, "Minute"},
		{time.Second, "Second"},
	}
	var parts []string
	for _, u := range units {
		if d < u.size {
			continue
		}
		n := int(d / u.size)
		d -= time.Duration(n) * u.size
		name := u.name
		if n != 1 {
			name += "s"
		}
		parts = append(parts, strconv.Itoa(n)+" "+name)
	}
	if len(parts) == 0 {
		return d.String()
	}
	return strings.Join(parts, " ")
}
