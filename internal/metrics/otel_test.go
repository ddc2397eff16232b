package metrics

import "testing"

func TestMockMetrics_RecordsCountsAndHists(t *testing.T) {
	m := NewMockMetrics()
	m.IncCounter("ingestion_docs_total", map[string]string{"tenant": "t1"})
	m.IncCounter("ingestion_docs_total", map[string]string{"tenant": "t1"})
	m.ObserveHistogram("ingestion_stage_ms", 12, map[string]string{"stage": "preprocess"})
	m.ObserveHistogram("ingestion_stage_ms", 34, map[string]string{"stage": "chunk"})
	if got := m.CounterTotal("ingestion_docs_total"); got != 2 {
		t.Fatalf("expected 2 docs, got %d", got)
	}
	if len(m.Histograms["ingestion_stage_ms"]) != 2 {
		t.Fatalf("expected 2 histogram records, got %d", len(m.Histograms["ingestion_stage_ms"]))
	}
	if m.Counters["ingestion_docs_total"][0].Labels["tenant"] != "t1" {
		t.Fatalf("expected tenant label to survive on the recorded observation")
	}
}
