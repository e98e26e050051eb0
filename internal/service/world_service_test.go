package service

import (
	"context"
	"errors"
	"io"
	"math"
	"math/rand"
	"net"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/annelo/driftsync/internal/config"
	"github.com/annelo/driftsync/internal/protocol"
	"github.com/annelo/driftsync/internal/registry"
	"github.com/annelo/driftsync/internal/transform"
)

// testConfig: открытая арена, стены только по краю.
func testConfig() config.Config {
	cfg := config.Default()
	cfg.Server.TickRate = 100
	cfg.World = config.WorldConfig{Seed: 7, Width: 12, Height: 10, Threshold: 2, Scale: 0.2}
	cfg.Entities = []config.EntityConfig{
		{ID: "crate", X: 4, Y: 4},
		{ID: "ghost"},
	}
	return cfg
}

func startTestServer(t *testing.T, cfg config.Config) (*SyncService, *protocol.SyncClient) {
	t.Helper()

	svc, err := NewSyncService(cfg, registry.New(), WithRand(rand.New(rand.NewSource(1))))
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.ForceServerCodec(protocol.Codec{}))
	svc.RegisterServer(srv)

	ctx, cancel := context.WithCancel(context.Background())
	svc.Start(ctx)
	go func() { _ = srv.Serve(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close()
		svc.Stop()
		cancel()
		srv.Stop()
	})
	return svc, protocol.NewSyncClient(conn)
}

func subscribe(t *testing.T, c *protocol.SyncClient) *protocol.EventStream {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	stream, err := c.Subscribe(ctx, &protocol.SubscribeRequest{ClientName: t.Name()})
	require.NoError(t, err)
	return stream
}

func recv(t *testing.T, stream *protocol.EventStream, n int) []*protocol.ServerEvent {
	t.Helper()
	out := make([]*protocol.ServerEvent, 0, n)
	for len(out) < n {
		ev, err := stream.Recv()
		require.NoError(t, err)
		out = append(out, ev)
	}
	return out
}

func TestSubscribe_LateJoinerGetsEveryEntity(t *testing.T) {
	svc, client := startTestServer(t, testConfig())
	stream := subscribe(t, client)

	events := recv(t, stream, 5)

	info := events[0].WorldInfo
	require.NotNil(t, info, "первым приходит описание мира")
	assert.NotEmpty(t, info.ClientID)
	assert.Equal(t, int64(7), info.Seed)
	assert.Equal(t, int32(12), info.Width)
	assert.Equal(t, int32(100), info.TickRate)
	require.Len(t, info.Clear, 1)
	assert.Equal(t, transform.Cell{X: 4, Y: 4}, info.Clear[0].Cell())

	require.NotNil(t, events[1].Spawn)
	assert.Equal(t, "crate", events[1].Spawn.EntityID)
	assert.Equal(t, mgl64.Vec3{4, 4, 0}, events[1].Spawn.Spawn())

	crate := events[2].Update
	require.NotNil(t, crate)
	assert.Equal(t, "crate", crate.EntityID)
	assert.Equal(t, uint64(1), crate.Seq)
	assert.True(t, crate.Active)
	assert.Equal(t, mgl64.Vec3{4, 4, 0}, crate.Update().State.LocalPos)

	require.NotNil(t, events[3].Spawn)
	assert.Equal(t, "ghost", events[3].Spawn.EntityID)

	ghost := events[4].Update
	require.NotNil(t, ghost)
	assert.False(t, ghost.Active)
	assert.Equal(t, transform.InvalidPos, ghost.Update().State.LocalPos)

	assert.Equal(t, 1, svc.SubscriberCount())
}

func TestDrop_BroadcastsArmedState(t *testing.T) {
	_, client := startTestServer(t, testConfig())
	stream := subscribe(t, client)
	recv(t, stream, 5)

	ack, err := client.Drop(context.Background(), &protocol.EntityRequest{EntityID: "crate", X: 5, Y: 5})
	require.NoError(t, err)
	require.NotNil(t, ack.State)
	assert.Equal(t, uint64(2), ack.State.Seq, "the late-join notify used seq 1")

	st := ack.State.Update().State
	assert.True(t, st.Active)
	assert.Equal(t, mgl64.Vec3{4, 4, 0}, st.LocalPos)
	assert.InDelta(t, 1, st.Impulse.Len(), 1e-9)
	assert.GreaterOrEqual(t, st.Speed, 0.5)
	assert.Less(t, st.Speed, 3.0)

	ev := recv(t, stream, 1)[0]
	require.NotNil(t, ev.Update)
	assert.Equal(t, ack.State, ev.Update, "every subscriber sees the state the drop produced")
}

func TestDrop_DriftHaltsAtWall(t *testing.T) {
	cfg := testConfig()
	cfg.Sync.SpeedMultiplier = 20
	_, client := startTestServer(t, cfg)
	stream := subscribe(t, client)
	recv(t, stream, 5)

	_, err := client.Drop(context.Background(), &protocol.EntityRequest{EntityID: "crate", X: 5, Y: 5})
	require.NoError(t, err)
	armed := recv(t, stream, 1)[0].Update
	require.NotNil(t, armed)

	halted := recv(t, stream, 1)[0].Update
	require.NotNil(t, halted, "drift ends against the arena wall")
	assert.Equal(t, armed.Seq+1, halted.Seq)
	assert.Zero(t, halted.ImpulseX)
	assert.Zero(t, halted.ImpulseY)
	assert.Equal(t, armed.Speed, halted.Speed, "speed is kept")

	cell := transform.RoundToCell(halted.Update().State.LocalPos)
	assert.True(t, cell.X >= 1 && cell.X <= 10 && cell.Y >= 1 && cell.Y <= 8, "stopped inside the arena at %v", cell)
}

func TestTeleport_SilentAndLoud(t *testing.T) {
	_, client := startTestServer(t, testConfig())
	ctx := context.Background()

	ack, err := client.Teleport(ctx, &protocol.EntityRequest{EntityID: "crate", X: 8, Y: 3})
	require.NoError(t, err)
	assert.Equal(t, uint64(0), ack.State.Seq, "no update without notify")
	assert.Equal(t, mgl64.Vec3{7, 2, 0}, ack.State.Update().State.LocalPos)

	ack, err = client.Teleport(ctx, &protocol.EntityRequest{EntityID: "crate", X: 9, Y: 3, Notify: true})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), ack.State.Seq)

	list, err := client.List(ctx, &protocol.ListRequest{})
	require.NoError(t, err)
	require.Len(t, list.Entities, 2)
	assert.Equal(t, "crate", list.Entities[0].EntityID)
	assert.Equal(t, mgl64.Vec3{8, 2, 0}, list.Entities[0].Update().State.LocalPos)
	assert.Equal(t, "ghost", list.Entities[1].EntityID)
}

func TestDisappearAppear(t *testing.T) {
	_, client := startTestServer(t, testConfig())
	ctx := context.Background()

	ack, err := client.Disappear(ctx, &protocol.EntityRequest{EntityID: "crate"})
	require.NoError(t, err)
	assert.False(t, ack.State.Active)
	assert.Equal(t, transform.InvalidPos, ack.State.Update().State.LocalPos)

	ack, err = client.Appear(ctx, &protocol.EntityRequest{EntityID: "ghost", X: 3, Y: 3})
	require.NoError(t, err)
	assert.True(t, ack.State.Active)
	assert.Equal(t, mgl64.Vec3{2, 2, 0}, ack.State.Update().State.LocalPos)
}

func TestControl_Errors(t *testing.T) {
	_, client := startTestServer(t, testConfig())
	ctx := context.Background()

	_, err := client.Drop(ctx, &protocol.EntityRequest{EntityID: "nope"})
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = client.Drop(ctx, &protocol.EntityRequest{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.Appear(ctx, &protocol.EntityRequest{EntityID: "crate", X: math.NaN()})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.Teleport(ctx, &protocol.EntityRequest{EntityID: "crate", Y: math.Inf(1)})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestStop_SendsShutdown(t *testing.T) {
	svc, client := startTestServer(t, testConfig())
	stream := subscribe(t, client)
	recv(t, stream, 5)

	svc.Stop()

	ev, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, shutdownReason, ev.Shutdown)
	_, err = stream.Recv()
	assert.True(t, errors.Is(err, io.EOF), "stream ends after the shutdown event, got %v", err)

	late := subscribe(t, client)
	_, err = late.Recv()
	assert.Equal(t, codes.Unavailable, status.Code(err))

	_, err = client.Drop(context.Background(), &protocol.EntityRequest{EntityID: "crate"})
	assert.Equal(t, codes.Unavailable, status.Code(err))
}

func TestSubscribe_DisconnectRemovesClient(t *testing.T) {
	svc, client := startTestServer(t, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := client.Subscribe(ctx, &protocol.SubscribeRequest{ClientName: "short-lived"})
	require.NoError(t, err)
	recv(t, stream, 1)
	require.Equal(t, 1, svc.SubscriberCount())

	cancel()
	assert.Eventually(t, func() bool { return svc.SubscriberCount() == 0 }, 2*time.Second, 5*time.Millisecond)
}

// blockingStream: Send ждёт, пока тест не откроет release.
type blockingStream struct {
	grpc.ServerStream
	ctx     context.Context
	release chan struct{}
	sent    chan *protocol.ServerEvent
}

func (b *blockingStream) Context() context.Context { return b.ctx }

func (b *blockingStream) Send(ev *protocol.ServerEvent) error {
	<-b.release
	b.sent <- ev
	return nil
}

func TestSubscribe_OverflowEvictsSubscriber(t *testing.T) {
	cfg := testConfig()
	cfg.Server.SendQueue = 2
	svc, err := NewSyncService(cfg, registry.New(), WithRand(rand.New(rand.NewSource(1))))
	require.NoError(t, err)

	stream := &blockingStream{
		ctx:     context.Background(),
		release: make(chan struct{}),
		sent:    make(chan *protocol.ServerEvent, 16),
	}
	done := make(chan error, 1)
	go func() { done <- svc.Subscribe(&protocol.SubscribeRequest{ClientName: "slow"}, stream) }()

	require.Eventually(t, func() bool { return svc.commands.Len() == 1 }, 2*time.Second, time.Millisecond)
	// Late-join sync: 4 events into a queue of 2.
	assert.Equal(t, 1, svc.commands.Drain())
	close(stream.release)

	select {
	case err := <-done:
		assert.Equal(t, codes.ResourceExhausted, status.Code(err))
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber was not evicted")
	}
	assert.Zero(t, svc.SubscriberCount())
	assert.LessOrEqual(t, len(stream.sent), 3, "nothing is sent past the gap")
}

func TestClientConn_RefusesAfterOverflow(t *testing.T) {
	conn := newClientConn("c", "slow", 1)
	ev := &protocol.ServerEvent{Shutdown: "x"}

	assert.True(t, conn.send(ev))
	assert.False(t, conn.send(ev))
	<-conn.queue
	assert.False(t, conn.send(ev), "a lagged subscriber stays lagged")

	select {
	case <-conn.lagged:
	default:
		t.Fatal("overflow must mark the subscriber lagged")
	}
}

func TestSubscribe_LogsJoinAndLeave(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	svc, err := NewSyncService(testConfig(), registry.New(), WithLogger(zap.New(core).Sugar()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	stream := &blockingStream{ctx: ctx, release: make(chan struct{}), sent: make(chan *protocol.ServerEvent, 16)}
	close(stream.release)
	done := make(chan error, 1)
	go func() { done <- svc.Subscribe(&protocol.SubscribeRequest{ClientName: "watcher"}, stream) }()

	require.Eventually(t, func() bool { return svc.SubscriberCount() == 1 }, 2*time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, 1, logs.FilterMessageSnippet("подписался").Len())
	assert.Equal(t, 1, logs.FilterMessageSnippet("отключился").Len())
}
