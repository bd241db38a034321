package provision_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/collapsinghierarchy/rfidgate/clock"
	"github.com/collapsinghierarchy/rfidgate/provision"
	"github.com/collapsinghierarchy/rfidgate/routes"
	"github.com/collapsinghierarchy/rfidgate/service"
	"github.com/collapsinghierarchy/rfidgate/store/file"
)

type fakeAP struct {
	up, down int
	upErr    error
}

func (a *fakeAP) Up(context.Context) error {
	a.up++
	return a.upErr
}
func (a *fakeAP) Down(context.Context) error { a.down++; return nil }

func TestSession_Lifecycle(t *testing.T) {
	ctx := context.Background()
	st, err := file.Open(filepath.Join(t.TempDir(), "uids.txt"))
	require.NoError(t, err)

	clk := clock.NewManual(time.Unix(1000, 0))
	svc := service.New(st, clk)
	svc.ObserveScan("FF:FF")
	ap := &fakeAP{}
	sess := provision.New(svc, routes.SetupRoutes(svc, routes.Options{}), "127.0.0.1:0", ap)

	require.False(t, sess.Active())
	require.NoError(t, sess.Start(ctx))
	require.True(t, sess.Active())
	require.Equal(t, 1, ap.up)
	require.Empty(t, svc.LastScanned(), "activation clears the last scan")

	require.NoError(t, sess.Start(ctx), "second Start is a no-op")
	require.Equal(t, 1, ap.up)

	sess.ObserveScan("aa:bb:cc:dd")
	base := "http://" + sess.Addr()

	resp, err := http.Get(base + "/getuid")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, "AA:BB:CC:DD", string(body))

	resp, err = http.PostForm(base+"/register", url.Values{"uid": {"AA:BB:CC:DD"}, "name": {"Alice"}, "role": {"A"}})
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	rec, ok, err := st.Lookup(ctx, "aa:bb:cc:dd")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Alice", rec.Name)

	clk.Advance(3 * time.Minute)
	require.Equal(t, 3*time.Minute, sess.Idle(clk.Now()))

	require.NoError(t, sess.Stop(ctx))
	require.False(t, sess.Active())
	require.Equal(t, 1, ap.down)
	require.Empty(t, sess.Addr())

	_, err = http.Get(base + "/healthz")
	require.Error(t, err, "server must be closed after Stop")
}

func TestSession_APFailure(t *testing.T) {
	svc := service.New(nil, clock.Real{})
	ap := &fakeAP{upErr: errors.New("no wlan0")}
	sess := provision.New(svc, http.NotFoundHandler(), "127.0.0.1:0", ap)

	require.Error(t, sess.Start(context.Background()))
	require.False(t, sess.Active())
	require.NoError(t, sess.Stop(context.Background()))
}
