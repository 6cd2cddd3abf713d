package conversation

import "sort"

var quickActions = map[string]string{
	"symptoms":   "What are the common symptoms I should look for in sick animals?",
	"treatment":  "Can you guide me through basic treatment options for common animal diseases?",
	"prevention": "What prevention measures should I take to keep my animals healthy?",
	"emergency":  "I think my animal has an emergency. What should I do immediately?",
}

// QuickAction returns the canned prompt for name.
func QuickAction(name string) (string, bool) {
	prompt, ok := quickActions[name]
	return prompt, ok
}

// QuickActions lists the canned prompt names.
func QuickActions() []string {
	names := make([]string, 0, len(quickActions))
	for name := range quickActions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
