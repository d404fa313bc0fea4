package tcpserver

import (
	"bufio"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberinferno/go-l2server/logger"
	"github.com/cyberinferno/go-l2server/metrics"
)

// lineSession echoes lines back, prefixed with its ID.
type lineSession struct {
	id   uint32
	conn net.Conn
	once sync.Once
}

func (s *lineSession) ID() uint32 { return s.id }

func (s *lineSession) Handle() {
	r := bufio.NewReader(s.conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			_ = s.Close()
			return
		}
		if _, err := s.conn.Write([]byte{byte(s.id)}); err != nil {
			return
		}
		if _, err := s.conn.Write([]byte(line)); err != nil {
			return
		}
	}
}

func (s *lineSession) Close() error {
	var err error
	s.once.Do(func() { err = s.conn.Close() })
	return err
}

func newServer(t *testing.T, maxSessions int, m *metrics.Metrics) *TCPServer {
	t.Helper()
	s := New("test", "127.0.0.1:0", func(id uint32, conn net.Conn) TCPServerSession {
		return &lineSession{id: id, conn: conn}
	}, logger.NewNopLogger())
	s.MaxSessions = maxSessions
	s.Metrics = m

	require.NoError(t, s.Start())
	t.Cleanup(s.Stop)
	return s
}

func dial(t *testing.T, s *TCPServer) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", s.ListenAddr().String())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func roundTrip(t *testing.T, conn net.Conn, line string) (byte, string) {
	t.Helper()
	require.NoError(t, conn.SetDeadline(time.Now().Add(2*time.Second)))
	_, err := conn.Write([]byte(line + "\n"))
	require.NoError(t, err)

	r := bufio.NewReader(conn)
	id, err := r.ReadByte()
	require.NoError(t, err)
	got, err := r.ReadString('\n')
	require.NoError(t, err)
	return id, got[:len(got)-1]
}

func TestTCPServer_Start(t *testing.T) {
	t.Run("assigns sequential ids", func(t *testing.T) {
		s := newServer(t, 0, nil)

		id1, got := roundTrip(t, dial(t, s), "hello")
		assert.Equal(t, byte(1), id1)
		assert.Equal(t, "hello", got)

		id2, _ := roundTrip(t, dial(t, s), "again")
		assert.Equal(t, byte(2), id2)

		assert.Equal(t, 2, s.SessionCount())
		session, ok := s.GetSession(2)
		require.True(t, ok)
		assert.Equal(t, uint32(2), session.ID())
	})

	t.Run("start twice fails", func(t *testing.T) {
		s := newServer(t, 0, nil)
		assert.Error(t, s.Start())
	})

	t.Run("bad address fails", func(t *testing.T) {
		s := New("bad", "127.0.0.1:-1", nil, logger.NewNopLogger())
		assert.Error(t, s.Start())
		assert.Nil(t, s.ListenAddr())
	})
}

func TestTCPServer_MaxSessions(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := newServer(t, 1, metrics.New(reg))

	first := dial(t, s)
	roundTrip(t, first, "in")

	second := dial(t, s)
	require.NoError(t, second.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, err := second.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)

	families, err := reg.Gather()
	require.NoError(t, err)
	var rejected *dto.Metric
	for _, f := range families {
		if f.GetName() == "l2gs_sessions_rejected_total" {
			rejected = f.GetMetric()[0]
		}
	}
	require.NotNil(t, rejected)
	assert.Equal(t, float64(1), rejected.GetCounter().GetValue())

	// the first session is unaffected
	_, got := roundTrip(t, first, "still here")
	assert.Equal(t, "still here", got)
}

func TestTCPServer_SessionRemovedOnDisconnect(t *testing.T) {
	s := newServer(t, 0, nil)

	conn := dial(t, s)
	roundTrip(t, conn, "x")
	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool { return s.SessionCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestTCPServer_Stop(t *testing.T) {
	s := New("test", "127.0.0.1:0", func(id uint32, conn net.Conn) TCPServerSession {
		return &lineSession{id: id, conn: conn}
	}, logger.NewNopLogger())
	require.NoError(t, s.Start())

	conn, err := net.Dial("tcp", s.ListenAddr().String())
	require.NoError(t, err)
	defer conn.Close()
	roundTrip(t, conn, "x")

	s.Stop()
	s.Stop()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, err = conn.Read(make([]byte, 1))
	assert.Error(t, err)
	assert.Equal(t, 0, s.SessionCount())

	_, err = net.DialTimeout("tcp", s.ListenAddr().String(), 200*time.Millisecond)
	assert.Error(t, err)
}
