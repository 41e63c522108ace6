// Package followup вычисляет время отправки follow-up писем и звонков.
//
// Окно отправки задаётся cron-выражением (минуты, часы, день месяца, месяц,
// день недели) в часовом поясе клиники:
//
//	planner, err := followup.New(followup.Config{
//	    EmailDelayDays: 2,
//	    CallWindow:     "0 10-17 * * 1-5",
//	    Timezone:       "Europe/Moscow",
//	})
//
//	at := planner.CallAt(time.Now(), 0) // задержка по умолчанию
package followup
