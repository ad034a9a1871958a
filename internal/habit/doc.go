// Package habit keeps scheduled reminder jobs consistent with stored habits.
//
// The Reconciler owns the habit-id -> job-name mapping and the re-read-at-
// fire-time rule: a scheduled reminder captures only the habit id and always
// fetches fresh data from the store when it fires, so edits and deletions
// between scheduling and firing are picked up without rescheduling races.
//
// The Broadcaster sends the daily per-habit overview to every owner.
package habit
