package followup

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser — парсер cron-выражений окна отправки.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Значения по умолчанию.
const (
	DefaultEmailDelayDays = 2
	DefaultCallDelayDays  = 3

	// DefaultWindow — рабочие часы клиники: каждые 15 минут с 9:00 до 18:45, пн-сб.
	DefaultWindow = "*/15 9-18 * * 1-6"
)

// ErrInvalidWindow — окно отправки не парсится.
var ErrInvalidWindow = errors.New("invalid send window")

// Planner вычисляет время отправки follow-ups.
//
// Время = момент выписки + задержка в днях, сдвинутое на ближайший слот окна
// отправки в часовом поясе клиники. Результат всегда в UTC.
type Planner struct {
	emailDelay int
	callDelay  int
	email      cron.Schedule
	call       cron.Schedule
	loc        *time.Location
}

// Config — конфигурация Planner.
type Config struct {
	EmailDelayDays int // default: 2
	CallDelayDays  int // default: 3

	// EmailWindow и CallWindow — cron-выражения допустимых слотов.
	// Пустое значение — DefaultWindow.
	EmailWindow string
	CallWindow  string

	// Timezone — IANA timezone клиники. Невалидное или пустое значение — UTC.
	Timezone string
}

// New создаёт Planner.
func New(cfg Config) (*Planner, error) {
	if cfg.EmailDelayDays <= 0 {
		cfg.EmailDelayDays = DefaultEmailDelayDays
	}
	if cfg.CallDelayDays <= 0 {
		cfg.CallDelayDays = DefaultCallDelayDays
	}
	if cfg.EmailWindow == "" {
		cfg.EmailWindow = DefaultWindow
	}
	if cfg.CallWindow == "" {
		cfg.CallWindow = DefaultWindow
	}

	email, err := ParseWindow(cfg.EmailWindow)
	if err != nil {
		return nil, err
	}
	call, err := ParseWindow(cfg.CallWindow)
	if err != nil {
		return nil, err
	}

	loc := time.UTC
	if cfg.Timezone != "" {
		if l, err := time.LoadLocation(cfg.Timezone); err == nil {
			loc = l
		}
	}

	return &Planner{
		emailDelay: cfg.EmailDelayDays,
		callDelay:  cfg.CallDelayDays,
		email:      email,
		call:       call,
		loc:        loc,
	}, nil
}

// EmailAt возвращает время отправки письма.
// delayDays <= 0 — задержка по умолчанию.
func (p *Planner) EmailAt(from time.Time, delayDays int) time.Time {
	if delayDays <= 0 {
		delayDays = p.emailDelay
	}
	return p.next(p.email, from, delayDays)
}

// CallAt возвращает время звонка.
// delayDays <= 0 — задержка по умолчанию.
func (p *Planner) CallAt(from time.Time, delayDays int) time.Time {
	if delayDays <= 0 {
		delayDays = p.callDelay
	}
	return p.next(p.call, from, delayDays)
}

// next находит первый слот окна не раньше from + delayDays.
func (p *Planner) next(window cron.Schedule, from time.Time, delayDays int) time.Time {
	earliest := from.In(p.loc).AddDate(0, 0, delayDays)

	// Next возвращает время строго после аргумента
	slot := window.Next(earliest.Add(-time.Second))
	if slot.IsZero() {
		return earliest.UTC()
	}
	return slot.UTC() // храним в UTC
}

// ParseWindow парсит cron-выражение окна отправки.
func ParseWindow(expr string) (cron.Schedule, error) {
	s, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidWindow, expr, err)
	}
	return s, nil
}
