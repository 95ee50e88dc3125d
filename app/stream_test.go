package app

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	D "diesel.com/gridsph/device"
	F "diesel.com/gridsph/fluid"
	U "diesel.com/gridsph/utils"
)

func newStream(t *testing.T, count int) (*Streamer, *httptest.Server) {
	st := NewStreamer(newScene(t, count))
	srv := httptest.NewServer(st.Handler())
	t.Cleanup(srv.Close)
	return st, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

//nextBinary skips text messages until a position frame arrives
func nextBinary(t *testing.T, conn *websocket.Conn) []float32 {
	for {
		kind, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		if kind != websocket.BinaryMessage {
			continue
		}
		out, err := U.BytesFloat32(msg)
		require.NoError(t, err)
		return out
	}
}

func TestStreamFrames(t *testing.T) {
	ctx := testContext(t)
	st, srv := newStream(t, 300)
	conn := dial(t, srv)

	var hello Hello
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, "settings", hello.Type)
	assert.Equal(t, 300, hello.Count)
	assert.Equal(t, float32(12), hello.Width)
	assert.Len(t, hello.Stages, 11)
	assert.Greater(t, hello.Radius, float32(0))
	assert.Equal(t, 1, st.Clients())

	require.NoError(t, st.Tick(ctx))
	xyz := nextBinary(t, conn)
	require.Len(t, xyz, 300*3)
	for i, x := range xyz {
		require.False(t, math.IsNaN(float64(x)) || math.IsInf(float64(x), 0), "component %d", i)
	}
	for i := 0; i < 300; i++ {
		assert.LessOrEqual(t, math.Abs(float64(xyz[i*3])), 6+F.Tolerance)
		assert.LessOrEqual(t, math.Abs(float64(xyz[i*3+1])), 2+F.Tolerance)
		assert.LessOrEqual(t, math.Abs(float64(xyz[i*3+2])), 4+F.Tolerance)
	}
}

func TestStreamControl(t *testing.T) {
	_, srv := newStream(t, 300)
	conn := dial(t, srv)

	var hello Hello
	require.NoError(t, conn.ReadJSON(&hello))
	v0 := hello.Version

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"boxWidth": 10, "particleCount": 200}))
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, 200, hello.Count)
	assert.Equal(t, float32(10), hello.Width)
	assert.Equal(t, float32(8), hello.Depth)
	assert.Greater(t, hello.Version, v0)

	require.NoError(t, conn.WriteJSON(Control{ParticleCount: -5}))
	var reply map[string]string
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "error", reply["type"])
	assert.NotEmpty(t, reply["error"])
}

func TestDebugEndpoints(t *testing.T) {
	st, srv := newStream(t, 300)
	require.NoError(t, st.Tick(testContext(t)))

	resp, err := http.Get(srv.URL + "/debug/density")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var data F.RoleData
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&data))
	assert.Equal(t, F.RoleDensity, data.Role)
	assert.Len(t, data.F32, 300)
	for _, rho := range data.F32 {
		assert.Greater(t, rho, float32(0))
	}

	resp2, err := http.Get(srv.URL + "/debug/cell_start")
	require.NoError(t, err)
	defer resp2.Body.Close()
	var cells F.RoleData
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&cells))
	assert.Equal(t, st.scene.Sim.Geometry().Cells, len(cells.U32))

	missing, err := http.Get(srv.URL + "/debug/nope")
	require.NoError(t, err)
	missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)

	list, err := http.Get(srv.URL + "/debug/")
	require.NoError(t, err)
	defer list.Body.Close()
	var roles []D.Role
	require.NoError(t, json.NewDecoder(list.Body).Decode(&roles))
	assert.Contains(t, roles, F.RolePosition)
	assert.Contains(t, roles, F.RoleParams)

	settings, err := http.Get(srv.URL + "/settings")
	require.NoError(t, err)
	defer settings.Body.Close()
	var hello Hello
	require.NoError(t, json.NewDecoder(settings.Body).Decode(&hello))
	assert.Equal(t, 300, hello.Count)
}
