// Package bot is the conversation layer: it turns transport updates into
// habit operations. Message dispatch walks an ordered handler table
// (commands, then per-user edit states, then the generic "Name, HH:MM"
// add) so an active edit state always wins over free-text parsing.
package bot
