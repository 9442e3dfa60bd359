package datasource

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var errConnRefused = errors.New("dial tcp 10.0.0.1:3306: connect: connection refused")

// fakeTarget is an in-memory database server. Every Conn it hands out shares
// its counters and behavior hooks.
type fakeTarget struct {
	mu sync.Mutex

	down      bool
	connects  int
	closes    int
	queries   []string
	execs     []string
	commits   int
	rollbacks int

	onQuery  func(sql string) (*QueryResult, error)
	onExec   func(stmt string) (int64, error)
	onCommit func() error
}

func newFakeTarget() *fakeTarget {
	return &fakeTarget{}
}

func (t *fakeTarget) setDown(down bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.down = down
}

func (t *fakeTarget) setOnQuery(fn func(sql string) (*QueryResult, error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuery = fn
}

func (t *fakeTarget) setOnExec(fn func(stmt string) (int64, error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onExec = fn
}

func (t *fakeTarget) queryCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.queries)
}

func (t *fakeTarget) execCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.execs)
}

func (t *fakeTarget) connectCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connects
}

func (t *fakeTarget) closeCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closes
}

func (t *fakeTarget) connect(ctx context.Context) (Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.connects++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if t.down {
		return nil, errConnRefused
	}
	return &fakeConn{target: t}, nil
}

type fakeConn struct {
	target *fakeTarget
}

func (c *fakeConn) Query(ctx context.Context, sql string) (*QueryResult, error) {
	t := c.target
	t.mu.Lock()
	defer t.mu.Unlock()

	t.queries = append(t.queries, sql)
	if t.onQuery != nil {
		return t.onQuery(sql)
	}
	return rowsResult(map[string]any{"1": int64(1)}), nil
}

func (c *fakeConn) Exec(ctx context.Context, stmt string) (int64, error) {
	t := c.target
	t.mu.Lock()
	defer t.mu.Unlock()

	t.execs = append(t.execs, stmt)
	if t.onExec != nil {
		return t.onExec(stmt)
	}
	return 1, nil
}

func (c *fakeConn) Commit(ctx context.Context) error {
	t := c.target
	t.mu.Lock()
	defer t.mu.Unlock()

	t.commits++
	if t.onCommit != nil {
		return t.onCommit()
	}
	return nil
}

func (c *fakeConn) Rollback(ctx context.Context) error {
	t := c.target
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rollbacks++
	return nil
}

func (c *fakeConn) Ping(ctx context.Context) error { return nil }

func (c *fakeConn) Close() error {
	t := c.target
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closes++
	return nil
}

func (c *fakeConn) GetType() string { return "fake" }

// fakeNetwork routes connects to fakeTargets by host.
type fakeNetwork struct {
	mu      sync.Mutex
	targets map[string]*fakeTarget
}

func newFakeNetwork() *fakeNetwork {
	return &fakeNetwork{targets: make(map[string]*fakeTarget)}
}

// target returns the target for host, creating it on first use.
func (n *fakeNetwork) target(host string) *fakeTarget {
	n.mu.Lock()
	defer n.mu.Unlock()

	t, ok := n.targets[host]
	if !ok {
		t = newFakeTarget()
		n.targets[host] = t
	}
	return t
}

func (n *fakeNetwork) connect(ctx context.Context, creds Credentials) (Conn, error) {
	return n.target(creds.Host).connect(ctx)
}

func rowsResult(rows ...map[string]any) *QueryResult {
	result := &QueryResult{Rows: make([]map[string]any, 0, len(rows))}
	for _, row := range rows {
		result.Rows = append(result.Rows, row)
	}
	if len(rows) > 0 {
		for col := range rows[0] {
			result.Columns = append(result.Columns, col)
		}
	}
	return result
}

func hostCreds(host string) Credentials {
	return Credentials{Type: "fake", Host: host, Port: 3306, User: "app", Password: "secret", Database: "appdb", Autocommit: true}
}

// newTestManager builds a manager without a sweeper whose default pool holds one
// session per host, in order.
func newTestManager(t *testing.T, net *fakeNetwork, hosts ...string) *ConnectionManager {
	t.Helper()
	require.NotEmpty(t, hosts)

	cfg := ConnectionManagerConfig{
		Type:        "fake",
		Host:        hosts[0],
		Port:        3306,
		User:        "app",
		Password:    "secret",
		Database:    "appdb",
		DefaultPool: DefaultPoolName,
		Connections: 1,
		Autocommit:  true,
	}
	m, err := NewConnectionManager(context.Background(), cfg, zaptest.NewLogger(t), WithConnector(net.connect))
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	for _, host := range hosts[1:] {
		_, err := m.AddSession(context.Background(), DefaultPoolName, hostCreds(host))
		require.NoError(t, err)
	}
	return m
}

// gaugeValue reads a single gauge sample from reg.
func gaugeValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
	metricLoop:
		for _, metric := range family.GetMetric() {
			for _, pair := range metric.GetLabel() {
				if want, ok := labels[pair.GetName()]; ok && want != pair.GetValue() {
					continue metricLoop
				}
			}
			return metric.GetGauge().GetValue()
		}
	}
	t.Fatalf("gauge %s%v not found", name, labels)
	return 0
}

const eventuallyTimeout = 2 * time.Second
