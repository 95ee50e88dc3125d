package app

//Manages the fluid scene: frame cadence, diagnostics and run file reloads
import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"diesel.com/gridsph/config"
	D "diesel.com/gridsph/device"
	F "diesel.com/gridsph/fluid"
)

//Logger receives scene, stream and viewer messages
var Logger = log.New(os.Stderr, "[app] ", log.LstdFlags)

//SetOutput redirects the package logger
func SetOutput(w io.Writer) {
	if w == nil {
		w = io.Discard
	}
	Logger.SetOutput(w)
}

//Seconds timer for animation
type AnimationTimer struct {
	AppStart    time.Time //Time Application Started
	CurrentTime time.Time //Last Submitted Frame
	LastStats   time.Time //Last Diagnostics Readback
}

//Scene couples a simulation with the run file it was built from. One
//goroutine drives frames; reconfiguration may come from any goroutine.
type Scene struct {
	Sim  *F.Simulation
	Dev  *D.Device
	Anim AnimationTimer

	mu  sync.Mutex
	run config.Wrapper
}

//NewScene creates the device and builds the initial simulation
func NewScene(run *config.Wrapper) (*Scene, error) {
	if err := run.Validate(); err != nil {
		return nil, err
	}
	cfg, err := run.Fluid()
	if err != nil {
		return nil, err
	}
	dev := D.New(run.DeviceOptions())
	sim, err := F.New(dev, cfg)
	if err != nil {
		dev.Close()
		return nil, err
	}
	now := time.Now()
	return &Scene{
		Sim:  sim,
		Dev:  dev,
		Anim: AnimationTimer{now, now, now},
		run:  *run,
	}, nil
}

//RunFile returns a copy of the active run file
func (sc *Scene) RunFile() config.Wrapper {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.run
}

//Advance submits one frame and logs diagnostics every StatsEvery frames
func (sc *Scene) Advance(ctx context.Context) error {
	run := sc.RunFile()
	if err := sc.Sim.Step(float32(run.Run.Dt)); err != nil {
		return err
	}
	sc.Anim.CurrentTime = time.Now()

	every := uint64(run.Run.StatsEvery)
	if every == 0 || sc.Sim.Frame()%every != 0 {
		return nil
	}
	st, err := sc.Sim.Stats(ctx)
	if err != nil {
		return err
	}
	Logger.Println(st)
	if st.Escaped > 0 || st.NonFinite > 0 {
		Logger.Printf("frame %d: %d particles escaped, %d non-finite", st.Frame, st.Escaped, st.NonFinite)
	}
	sc.Anim.LastStats = sc.Anim.CurrentTime
	return nil
}

//RunFrames advances n frames and returns diagnostics for the last one
func (sc *Scene) RunFrames(ctx context.Context, n int) (F.Stats, error) {
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return F.Stats{}, err
		}
		if err := sc.Advance(ctx); err != nil {
			return F.Stats{}, err
		}
	}
	return sc.Sim.Stats(ctx)
}

//Apply rebuilds the simulation for run. The previous run file stays active
//when the rebuild fails.
func (sc *Scene) Apply(ctx context.Context, run *config.Wrapper) error {
	if err := run.Validate(); err != nil {
		return err
	}
	cfg, err := run.Fluid()
	if err != nil {
		return err
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.run.Device != run.Device {
		Logger.Printf("[Device] changes take effect on restart")
	}
	if err := sc.Sim.Reconfigure(ctx, cfg); err != nil {
		return err
	}
	sc.run = *run
	return nil
}

//Resize changes the box footprint and particle count. Zero keeps a value.
func (sc *Scene) Resize(ctx context.Context, width, depth float64, count int) error {
	run := sc.RunFile()
	if width != 0 {
		run.Box.Width = width
	}
	if depth != 0 {
		run.Box.Depth = depth
	}
	if count != 0 {
		run.Particles.Count = count
	}
	return sc.Apply(ctx, &run)
}

//Watch reloads the run file at path whenever it changes, until ctx ends.
//Bad files are logged and ignored.
func (sc *Scene) Watch(ctx context.Context, path string) error {
	watcher, err := watchFile(path)
	if err != nil {
		return err
	}
	defer watcher.Close()
	sc.follow(ctx, watcher, path)
	return nil
}

//watchFile watches the parent directory so editors that replace the file
//by rename are still seen
func watchFile(path string) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}
	return watcher, nil
}

func (sc *Scene) follow(ctx context.Context, watcher *fsnotify.Watcher, path string) {
	name := filepath.Clean(path)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != name || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			sc.reload(ctx, path)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			Logger.Printf("watch %s: %v", path, err)
		}
	}
}

func (sc *Scene) reload(ctx context.Context, path string) {
	//Truncation shows up as a write of an empty file
	if info, err := os.Stat(path); err != nil || info.Size() == 0 {
		return
	}
	run, err := config.ReadFile(path)
	if err != nil {
		Logger.Printf("reload skipped: %v", err)
		return
	}
	if *run == sc.RunFile() {
		return
	}
	if err := sc.Apply(ctx, run); err != nil {
		Logger.Printf("reload %s failed, keeping current configuration: %v", path, err)
		return
	}
	settings := sc.Sim.Settings()
	Logger.Printf("reloaded %s: %s", path, &settings)
}

//Close waits for the device and releases every buffer
func (sc *Scene) Close(ctx context.Context) error {
	err := sc.Sim.Close(ctx)
	sc.Dev.Close()
	return err
}
