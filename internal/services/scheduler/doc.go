// Package scheduler provides the in-process trigger service used for habit
// reminders and the daily overview broadcast.
//
// # Overview
//
// Jobs are registered under a logical name (e.g. "habit.reminder.42"). Names
// are stable and human readable so that jobs can be replaced (upserted) and
// removed deterministically: adding a job under an existing name first removes
// the previous one, and removing an absent name is a no-op, not an error.
//
// Every job fires daily at a fixed HH:MM wall-clock time in the single
// configured IANA timezone (cron.WithLocation), regardless of host locale.
//
// # Concurrency
//
// Fired jobs are enqueued to a bounded queue and executed by a worker pool,
// so one slow or failing job never delays another job's trigger. A run is
// skipped when the previous run of the same job is still executing. Each run
// gets a per-run timeout and a bounded retry with backoff.
//
// # Lifecycle
//
// Registering jobs both before and after Start is supported: definitions
// registered while stopped are applied on Start.
package scheduler
