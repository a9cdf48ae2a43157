package grpcstore

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	"xdao.co/matreg/cidutil"
	"xdao.co/matreg/registry"
	"xdao.co/matreg/storage"
	"xdao.co/matreg/storage/localfs"
	"xdao.co/matreg/storage/memstore"
	"xdao.co/matreg/storage/testkit"
)

func newBufconnClient(t *testing.T, store storage.Store) *Client {
	t.Helper()

	lis := bufconn.Listen(1024 * 1024)
	srv := grpc.NewServer()
	RegisterArchiveServer(srv, &Server{Store: store})
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	dialer := func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }
	client, err := Dial("passthrough:///bufnet", DialOptions{Extra: []grpc.DialOption{grpc.WithContextDialer(dialer)}})
	require.NoError(t, err)
	client.Timeout = 2 * time.Second
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestGRPCStore_Conformance(t *testing.T) {
	testkit.RunStoreConformance(t, func(t *testing.T) storage.Store {
		return newBufconnClient(t, memstore.New())
	})
}

func TestGRPCStore_LocalFS_RoundTrip(t *testing.T) {
	fs, err := localfs.New(t.TempDir())
	require.NoError(t, err)
	client := newBufconnClient(t, fs)

	payload := []byte("hello archive")
	h, err := client.Put(payload)
	require.NoError(t, err)
	require.True(t, client.Has(h))
	require.True(t, fs.Has(h))

	got, err := client.Get(h)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestGRPCStore_ServerRejectsBadKey(t *testing.T) {
	srv := &Server{Store: memstore.New()}
	_, err := srv.Get(context.Background(), nil)
	require.ErrorIs(t, mapRPC(err), storage.ErrInvalidKey)

	var missing *Server
	_, err = missing.Has(context.Background(), nil)
	require.Error(t, err)
}

func TestGRPCStore_NotFoundMapsBack(t *testing.T) {
	client := newBufconnClient(t, memstore.New())
	_, err := client.Get(cidutil.Sum([]byte("absent")))
	require.True(t, storage.IsNotFound(err))
	require.False(t, client.Has(registry.Hash{}))
}
