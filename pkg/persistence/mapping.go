package persistence

import "github.com/tact-lang/llm-fuzz/pkg/fuzzer"

func NewRecordFromSummary(summary fuzzer.Summary) *Record {
	return &Record{
		AgentID:   summary.AgentID,
		RunPrefix: summary.RunPrefix,
		Snippets:  summary.Snippets,
		Citations: summary.Citations,
		Reported:  summary.Reported,
		Reason:    summary.Reason,
	}
}
