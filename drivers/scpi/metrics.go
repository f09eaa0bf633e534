package scpi

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/puzpuzpuz/xsync/v3"
)

// SessionMetrics contains atomic counters for one session.
// The fields can be used as the value of a prometheus CounterFunc.
type SessionMetrics struct {
	// QueryCount indicates the number of queries answered.
	QueryCount atomic.Uint64
	// CommandCount indicates the number of commands acknowledged.
	CommandCount atomic.Uint64
	// SyncCount indicates the number of bare *opc? round trips.
	SyncCount atomic.Uint64
	// TimeoutCount indicates the number of marker timeouts.
	TimeoutCount atomic.Uint64
	// DisconnectCount indicates the number of stream failures.
	DisconnectCount atomic.Uint64
	// ReconnectCount indicates the number of sessions torn down for reconnection.
	ReconnectCount atomic.Uint64
}

func (m *SessionMetrics) incQueryCount()      { m.QueryCount.Add(1) }
func (m *SessionMetrics) incCommandCount()    { m.CommandCount.Add(1) }
func (m *SessionMetrics) incSyncCount()       { m.SyncCount.Add(1) }
func (m *SessionMetrics) incTimeoutCount()    { m.TimeoutCount.Add(1) }
func (m *SessionMetrics) incDisconnectCount() { m.DisconnectCount.Add(1) }
func (m *SessionMetrics) incReconnectCount()  { m.ReconnectCount.Add(1) }

const metricNamespace = "oxc_scpi"

var (
	queriesDesc = prometheus.NewDesc(metricNamespace+"_queries_total",
		"Queries answered by the device.", []string{"address"}, nil)
	commandsDesc = prometheus.NewDesc(metricNamespace+"_commands_total",
		"Commands acknowledged by the device.", []string{"address"}, nil)
	syncsDesc = prometheus.NewDesc(metricNamespace+"_syncs_total",
		"Synchronization round trips.", []string{"address"}, nil)
	timeoutsDesc = prometheus.NewDesc(metricNamespace+"_timeouts_total",
		"Operations that timed out waiting for the completion marker.", []string{"address"}, nil)
	disconnectsDesc = prometheus.NewDesc(metricNamespace+"_disconnects_total",
		"Stream failures.", []string{"address"}, nil)
	reconnectsDesc = prometheus.NewDesc(metricNamespace+"_reconnects_total",
		"Sessions torn down for reconnection.", []string{"address"}, nil)
	stateDesc = prometheus.NewDesc(metricNamespace+"_session_state",
		"Current session state (0 disconnected, 1 connecting, 2 synchronized, 3 serving, 4 reconnecting, 5 closed).",
		[]string{"address"}, nil)
)

// Collector exports the metrics of every added session, labeled by address.
type Collector struct {
	sessions *xsync.MapOf[string, *Session]
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{sessions: xsync.NewMapOf[string, *Session]()}
}

// Add starts exporting s. A session with the same address is replaced.
func (c *Collector) Add(s *Session) {
	c.sessions.Store(s.Address(), s)
}

// Remove stops exporting the session at address.
func (c *Collector) Remove(address string) {
	c.sessions.Delete(address)
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- queriesDesc
	ch <- commandsDesc
	ch <- syncsDesc
	ch <- timeoutsDesc
	ch <- disconnectsDesc
	ch <- reconnectsDesc
	ch <- stateDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.sessions.Range(func(address string, s *Session) bool {
		m := s.Metrics()
		counter := func(desc *prometheus.Desc, v *atomic.Uint64) {
			ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(v.Load()), address)
		}
		counter(queriesDesc, &m.QueryCount)
		counter(commandsDesc, &m.CommandCount)
		counter(syncsDesc, &m.SyncCount)
		counter(timeoutsDesc, &m.TimeoutCount)
		counter(disconnectsDesc, &m.DisconnectCount)
		counter(reconnectsDesc, &m.ReconnectCount)
		ch <- prometheus.MustNewConstMetric(stateDesc, prometheus.GaugeValue, float64(s.State()), address)
		return true
	})
}
