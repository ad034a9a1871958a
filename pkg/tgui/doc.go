// Package tgui provides small Telegram UI helpers:
//   - Inline and reply keyboard builders
//   - Callback data helpers (ns:action:payload)
//   - Rune-safe text truncation
package tgui
