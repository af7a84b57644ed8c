package api_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/axiomproject/axiom/api"
)

func TestServerStartServesStatusRoute(t *testing.T) {
	h := newTestHandlers(t)
	srv := api.NewServer("127.0.0.1:0", h, false, nil)
	require.NoError(t, srv.Start())
	defer srv.Stop()

	url := "http://" + srv.Addr().String() + "/status"
	var resp *http.Response
	var err error
	for i := 0; i < 20; i++ {
		resp, err = http.Get(url)
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServerDebugRouteDisabledByDefault(t *testing.T) {
	h := newTestHandlers(t)
	srv := api.NewServer("127.0.0.1:0", h, false, nil)
	require.NoError(t, srv.Start())
	defer srv.Stop()

	url := "http://" + srv.Addr().String() + "/debug/propose_block"
	var resp *http.Response
	var err error
	for i := 0; i < 20; i++ {
		resp, err = http.Post(url, "application/json", nil)
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}
