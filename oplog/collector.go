package oplog

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PebbleCollector reports the journal size and the storage engine's
// compaction, memtable and WAL figures.
type PebbleCollector struct {
	p *Pebble

	ops *prometheus.Desc

	compactionCount         *prometheus.Desc
	compactionEstimatedDebt *prometheus.Desc
	compactionInProgress    *prometheus.Desc

	memtableSize  *prometheus.Desc
	memtableCount *prometheus.Desc

	walFiles        *prometheus.Desc
	walSize         *prometheus.Desc
	walBytesWritten *prometheus.Desc
}

func NewPebbleCollector(p *Pebble) *PebbleCollector {
	labels := prometheus.Labels{"dir": p.dir}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc("objgraph_journal_"+name, help, nil, labels)
	}
	return &PebbleCollector{
		p: p,

		ops: desc("ops", "Number of ops in the journal"),

		compactionCount:         desc("compaction_count_total", "Total number of compactions performed"),
		compactionEstimatedDebt: desc("compaction_estimated_debt_bytes", "Estimated number of bytes that need to be compacted"),
		compactionInProgress:    desc("compaction_in_progress_bytes", "Number of bytes being compacted"),

		memtableSize:  desc("memtable_size_bytes", "Current size of the memtable in bytes"),
		memtableCount: desc("memtable_count", "Current count of memtables"),

		walFiles:        desc("wal_files", "Number of live WAL files"),
		walSize:         desc("wal_size_bytes", "Size of live WAL data in bytes"),
		walBytesWritten: desc("wal_bytes_written_total", "Total bytes written to the WAL"),
	}
}

func (pc *PebbleCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- pc.ops

	ch <- pc.compactionCount
	ch <- pc.compactionEstimatedDebt
	ch <- pc.compactionInProgress

	ch <- pc.memtableSize
	ch <- pc.memtableCount

	ch <- pc.walFiles
	ch <- pc.walSize
	ch <- pc.walBytesWritten
}

func (pc *PebbleCollector) Collect(ch chan<- prometheus.Metric) {
	metrics := pc.p.db.Metrics()
	put := func(d *prometheus.Desc, t prometheus.ValueType, v float64) {
		ch <- prometheus.MustNewConstMetric(d, t, v)
	}

	put(pc.ops, prometheus.GaugeValue, float64(pc.p.Len()))

	put(pc.compactionCount, prometheus.CounterValue, float64(metrics.Compact.Count))
	put(pc.compactionEstimatedDebt, prometheus.GaugeValue, float64(metrics.Compact.EstimatedDebt))
	put(pc.compactionInProgress, prometheus.GaugeValue, float64(metrics.Compact.InProgressBytes))

	put(pc.memtableSize, prometheus.GaugeValue, float64(metrics.MemTable.Size))
	put(pc.memtableCount, prometheus.GaugeValue, float64(metrics.MemTable.Count))

	put(pc.walFiles, prometheus.GaugeValue, float64(metrics.WAL.Files))
	put(pc.walSize, prometheus.GaugeValue, float64(metrics.WAL.Size))
	put(pc.walBytesWritten, prometheus.CounterValue, float64(metrics.WAL.BytesWritten))
}
