package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kart-io/docuverse/pkg/infra/pool"
)

// PoolStatser 提供 worker 池状态快照，由 *pool.Manager 实现。
type PoolStatser interface {
	Stats() []pool.Info
}

// poolCollector 在每次抓取时读取池状态。
type poolCollector struct {
	source PoolStatser

	capacity *prometheus.Desc
	running  *prometheus.Desc
	waiting  *prometheus.Desc
	tasks    *prometheus.Desc
}

func newPoolCollector(source PoolStatser) *poolCollector {
	labels := []string{"pool", "type"}
	return &poolCollector{
		source: source,
		capacity: prometheus.NewDesc(
			prometheus.BuildFQName(Namespace, "pool", "capacity"),
			"Worker pool capacity.", labels, nil),
		running: prometheus.NewDesc(
			prometheus.BuildFQName(Namespace, "pool", "running"),
			"Workers currently executing a task.", labels, nil),
		waiting: prometheus.NewDesc(
			prometheus.BuildFQName(Namespace, "pool", "waiting"),
			"Tasks blocked waiting for a worker.", labels, nil),
		tasks: prometheus.NewDesc(
			prometheus.BuildFQName(Namespace, "pool", "tasks_total"),
			"Tasks handled by the pool, by state.", append(labels, "state"), nil),
	}
}

func (c *poolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.capacity
	ch <- c.running
	ch <- c.waiting
	ch <- c.tasks
}

func (c *poolCollector) Collect(ch chan<- prometheus.Metric) {
	for _, info := range c.source.Stats() {
		name, typ := info.Name, string(info.Type)
		ch <- prometheus.MustNewConstMetric(c.capacity, prometheus.GaugeValue, float64(info.Capacity), name, typ)
		ch <- prometheus.MustNewConstMetric(c.running, prometheus.GaugeValue, float64(info.Running), name, typ)
		ch <- prometheus.MustNewConstMetric(c.waiting, prometheus.GaugeValue, float64(info.Waiting), name, typ)
		for state, v := range map[string]int64{
			"submitted": info.Submitted,
			"completed": info.Completed,
			"rejected":  info.Rejected,
			"panicked":  info.Panicked,
		} {
			ch <- prometheus.MustNewConstMetric(c.tasks, prometheus.CounterValue, float64(v), name, typ, state)
		}
	}
}

// RegisterPools 把池状态注册为指标。
func (m *Metrics) RegisterPools(source PoolStatser) error {
	if m == nil || source == nil {
		return nil
	}
	return m.registry.Register(newPoolCollector(source))
}
