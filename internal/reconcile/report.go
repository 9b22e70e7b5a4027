package reconcile

import "github.com/google/uuid"

// StoreReport is the bucket of results for one store.
type StoreReport struct {
	StoreID uuid.UUID
	Results []Result
}

// GroupedReport holds results bucketed by store in first-appearance order.
// RunID and Label are set by the Runner that produced it.
type GroupedReport struct {
	RunID  uuid.UUID
	Label  string
	Stores []StoreReport
}

// Len returns the total number of results across all stores.
func (g GroupedReport) Len() int {
	n := 0
	for _, store := range g.Stores {
		n += len(store.Results)
	}
	return n
}

func (g GroupedReport) Empty() bool {
	return g.Len() == 0
}

// ByStore indexes the report by store id.
func (g GroupedReport) ByStore() map[uuid.UUID][]Result {
	out := make(map[uuid.UUID][]Result, len(g.Stores))
	for _, store := range g.Stores {
		out[store.StoreID] = store.Results
	}
	return out
}

// GroupByStore buckets results by StoreID. Buckets appear in the order their
// store was first seen and each bucket keeps the input's relative order.
func GroupByStore(results []Result) GroupedReport {
	index := make(map[uuid.UUID]int)
	var report GroupedReport
	for _, result := range results {
		i, ok := index[result.StoreID]
		if !ok {
			i = len(report.Stores)
			index[result.StoreID] = i
			report.Stores = append(report.Stores, StoreReport{StoreID: result.StoreID})
		}
		report.Stores[i].Results = append(report.Stores[i].Results, result)
	}
	return report
}
