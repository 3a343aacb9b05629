package domain

import "strings"

// DemoPodPrefix marks pods that belong to the demo namespace.
const DemoPodPrefix = "demo-"

// Pod is a named operator group that accepts sessions for a region.
type Pod struct {
	// ID is the chat handle; empty until resolved.
	ID          string       `json:"id,omitempty"`
	Name        string       `json:"name"`
	RegionCode  string       `json:"region_code"`
	EntryPoints []EntryPoint `json:"entry_points"`
	Demo        bool         `json:"demo"`
}

// IsDemoPod reports whether the pod name lives in the demo namespace.
func IsDemoPod(name string) bool {
	return strings.HasPrefix(name, DemoPodPrefix)
}

// DemoName prefixes name with the demo namespace when demo is set.
func DemoName(name string, demo bool) string {
	if demo && !IsDemoPod(name) {
		return DemoPodPrefix + name
	}
	return name
}
