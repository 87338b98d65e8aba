// Package persistence handles mapping and YAML serialization of finished
// fuzzing sessions
package persistence

// Record captures what one session did over its lifetime.
type Record struct {
	AgentID   int      `yaml:"agent_id"`
	RunPrefix string   `yaml:"run_prefix"`
	Snippets  []string `yaml:"snippets,omitempty"`
	Citations []string `yaml:"citations,omitempty"`
	Reported  bool     `yaml:"reported"`
	Reason    string   `yaml:"reason,omitempty"`
}
