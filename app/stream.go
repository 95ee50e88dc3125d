package app

//Websocket position stream and debug readback over HTTP
import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	D "diesel.com/gridsph/device"
	F "diesel.com/gridsph/fluid"
	U "diesel.com/gridsph/utils"
)

//Hello is sent as JSON on connect and after every rebuild. Binary frames that
//follow carry Count packed xyz float32 triples, little-endian.
type Hello struct {
	Type        string   `json:"type"`
	Version     uint64   `json:"version"`
	Count       int      `json:"count"`
	Width       float32  `json:"boxWidth"`
	Height      float32  `json:"boxHeight"`
	Depth       float32  `json:"boxDepth"`
	Radius      float32  `json:"smoothingRadius"`
	Spacing     float32  `json:"spacing"`
	RestDensity float32  `json:"restDensity"`
	Dt          float32  `json:"dt"`
	Stages      []string `json:"stages"`
}

//Control resizes the scene. Omitted fields keep their value.
type Control struct {
	BoxWidth      float64 `json:"boxWidth"`
	BoxDepth      float64 `json:"boxDepth"`
	ParticleCount int     `json:"particleCount"`
}

type controlError struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

//Streamer drives a scene at a fixed rate and broadcasts positions to every
//connected websocket client
type Streamer struct {
	scene    *Scene
	upgrader websocket.Upgrader

	clientsMu sync.RWMutex
	clients   map[*websocket.Conn]*sync.Mutex
	version   uint64
}

func NewStreamer(sc *Scene) *Streamer {
	return &Streamer{
		scene: sc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]*sync.Mutex),
	}
}

//Handler serves /ws, /settings and /debug/{role}
func (st *Streamer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", st.handleWebSocket)
	mux.HandleFunc("/settings", st.handleSettings)
	mux.HandleFunc("/debug/", st.handleDebug)
	return mux
}

func (st *Streamer) hello() Hello {
	s := st.scene.Sim.Settings()
	return Hello{
		Type:        "settings",
		Version:     s.Version,
		Count:       s.Count,
		Width:       s.Box.Width,
		Height:      s.Box.Height,
		Depth:       s.Box.Depth,
		Radius:      s.Kernels.H,
		Spacing:     s.Spacing,
		RestDensity: s.RestDensity,
		Dt:          s.Dt,
		Stages:      st.scene.Sim.Stages(),
	}
}

func (st *Streamer) handleSettings(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(st.hello())
}

//handleDebug dumps one role buffer as JSON
func (st *Streamer) handleDebug(w http.ResponseWriter, r *http.Request) {
	role := D.Role(strings.TrimPrefix(r.URL.Path, "/debug/"))
	if role == "" {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(st.scene.Sim.Roles())
		return
	}
	data, err := st.scene.Sim.ReadRole(r.Context(), role)
	switch {
	case errors.Is(err, F.ErrUnknownRole):
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (st *Streamer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := st.upgrader.Upgrade(w, r, nil)
	if err != nil {
		Logger.Println("websocket upgrade:", err)
		return
	}
	defer conn.Close()

	connMutex := &sync.Mutex{}
	connMutex.Lock()
	st.clientsMu.Lock()
	st.clients[conn] = connMutex
	st.clientsMu.Unlock()
	defer func() {
		st.clientsMu.Lock()
		delete(st.clients, conn)
		st.clientsMu.Unlock()
	}()

	//Hello goes out before this client can see any broadcast
	err = conn.WriteJSON(st.hello())
	connMutex.Unlock()
	if err != nil {
		return
	}

	for {
		var msg Control
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				Logger.Println("websocket read:", err)
			}
			return
		}
		if msg == (Control{}) {
			continue
		}
		err := st.scene.Resize(r.Context(), msg.BoxWidth, msg.BoxDepth, msg.ParticleCount)
		if err != nil {
			Logger.Printf("control %+v rejected: %v", msg, err)
			connMutex.Lock()
			conn.WriteJSON(controlError{Type: "error", Error: err.Error()})
			connMutex.Unlock()
			continue
		}
		//Every client learns the new layout before the next binary frame
		st.broadcastJSON(st.hello())
	}
}

//Tick advances the scene one frame and broadcasts the new positions
func (st *Streamer) Tick(ctx context.Context) error {
	if err := st.scene.Advance(ctx); err != nil {
		return err
	}
	before := st.scene.Sim.Settings()
	pos, err := st.scene.Sim.Positions(ctx)
	if err != nil {
		return err
	}
	after := st.scene.Sim.Settings()
	if before.Version != after.Version || len(pos) != after.Count*4 {
		//Rebuilt during readback; the next tick has the new layout
		return nil
	}
	if after.Version != st.version {
		st.version = after.Version
		st.broadcastJSON(st.hello())
	}
	st.broadcast(websocket.BinaryMessage, U.Float32Bytes(nil, U.PackXYZ(pos)))
	return nil
}

//Run ticks at rate frames per second until ctx ends or the device is lost
func (st *Streamer) Run(ctx context.Context, rate int) error {
	ticker := time.NewTicker(time.Second / time.Duration(rate))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			start := time.Now()
			if err := st.Tick(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			if took := time.Since(start); took > 2*time.Second/time.Duration(rate) {
				Logger.Printf("slow frame %d: %v", st.scene.Sim.Frame(), took)
			}
		}
	}
}

//ListenAndServe serves Handler on addr and streams at rate until ctx ends
func (st *Streamer) ListenAndServe(ctx context.Context, addr string, rate int) error {
	srv := &http.Server{Addr: addr, Handler: st.Handler()}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errc := make(chan error, 2)
	go func() {
		errc <- st.Run(ctx, rate)
	}()
	go func() {
		Logger.Printf("streaming on ws://%s/ws", addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errc <- err
			return
		}
		errc <- nil
	}()

	var err error
	select {
	case <-ctx.Done():
	case err = <-errc:
	}
	cancel()
	shutdown, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	if serr := srv.Shutdown(shutdown); err == nil {
		err = serr
	}
	st.closeClients()
	return err
}

func (st *Streamer) broadcastJSON(v interface{}) {
	msg, err := json.Marshal(v)
	if err != nil {
		Logger.Println("broadcast:", err)
		return
	}
	st.broadcast(websocket.TextMessage, msg)
}

func (st *Streamer) broadcast(kind int, msg []byte) {
	st.clientsMu.RLock()
	clientsToRemove := []*websocket.Conn{}
	for client, mutex := range st.clients {
		mutex.Lock()
		err := client.WriteMessage(kind, msg)
		mutex.Unlock()
		if err != nil {
			clientsToRemove = append(clientsToRemove, client)
		}
	}
	st.clientsMu.RUnlock()

	if len(clientsToRemove) > 0 {
		st.clientsMu.Lock()
		for _, client := range clientsToRemove {
			client.Close()
			delete(st.clients, client)
		}
		st.clientsMu.Unlock()
	}
}

//Clients connected right now
func (st *Streamer) Clients() int {
	st.clientsMu.RLock()
	defer st.clientsMu.RUnlock()
	return len(st.clients)
}

func (st *Streamer) closeClients() {
	st.clientsMu.Lock()
	defer st.clientsMu.Unlock()
	for client, mutex := range st.clients {
		mutex.Lock()
		client.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server stopping"),
			time.Now().Add(time.Second))
		mutex.Unlock()
		client.Close()
		delete(st.clients, client)
	}
}
