package tgui

import (
	"strings"
)

// Data formats inline callback data as "ns:action:payload".
// Payload is kept as-is (no escaping).
func Data(ns, action, payload string) string {
	ns = strings.TrimSpace(ns)
	action = strings.TrimSpace(action)
	if payload == "" {
		return ns + ":" + action
	}
	return ns + ":" + action + ":" + payload
}

// ParseData splits callback data produced by Data back into its parts.
// The payload may itself contain ":".
func ParseData(data string) (ns, action, payload string, ok bool) {
	parts := strings.SplitN(strings.TrimSpace(data), ":", 3)
	if len(parts) < 2 {
		return "", "", "", false
	}
	ns, action = parts[0], parts[1]
	if ns == "" || action == "" {
		return "", "", "", false
	}
	if len(parts) == 3 {
		payload = parts[2]
	}
	return ns, action, payload, true
}
