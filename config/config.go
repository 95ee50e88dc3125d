//Package config reads gridsph run files. Files are INI style and parsed with
//gcfg; every section has defaults so a file only lists what it changes.
package config

import (
	"fmt"

	"gopkg.in/gcfg.v1"

	D "diesel.com/gridsph/device"
	F "diesel.com/gridsph/fluid"
)

const ExampleFile = `[Box]

# Fluid domain, centered at the origin.
Width = 32
Height = 4
Depth = 16

[Particles]

# Particle count. Changing it rebuilds every buffer.
Count = 5000

# Initial placement: random or lattice.
# Seeding = random
# Seed = 1

[Sph]

# Everything below is optional; these are the defaults used to derive the
# smoothing radius, mass, stiffness and timestep.
# RestDensity = 1.0
# TargetNeighbors = 40
# Mu = 0.12
# XsphEta = 0.03
# Gravity = 9.81
# CsFactor = 10
# Safety = 0.85
# TangentDamping = 0.1
# Restitution = 0.1

[Device]

# Goroutines per dispatch. 0 uses every CPU.
# Workers = 0
# Buffer budget in MiB. 0 is unlimited.
# MaxMiB = 0
# QueueDepth = 16

[Run]

# Frames simulated by "gridsph run".
Frames = 600
# Timestep. 0 or less uses the derived timestep.
# Dt = 0
# Swap mode: flip rebinds buffers on the host, copy runs a device copy.
# Swap = flip
# Print diagnostics every N frames. 0 disables.
# StatsEvery = 60

[Server]

# Listen address for "gridsph serve".
# Addr = localhost:8080
# Broadcast rate in frames per second.
# FrameRate = 60`

type BoxConfig struct {
	Width, Height, Depth float64
}

func (con *BoxConfig) ValidDimensions() bool {
	return con.Width > 0 && con.Height > 0 && con.Depth > 0
}

type ParticlesConfig struct {
	Count int

	// Optional
	Seeding string
	Seed    int64
}

func (con *ParticlesConfig) ValidCount() bool {
	return con.Count > 0
}

func (con *ParticlesConfig) ValidSeeding() bool {
	_, err := F.ParseSeeding(con.Seeding)
	return err == nil
}

type SphConfig struct {
	RestDensity, TargetNeighbors float64
	Mu, XsphEta                  float64
	Gravity, CsFactor, Safety    float64
	TangentDamping, Restitution  float64
}

func (con *SphConfig) Options() F.Options {
	return F.Options{
		RestDensity:     con.RestDensity,
		TargetNeighbors: con.TargetNeighbors,
		Mu:              con.Mu,
		XsphEta:         con.XsphEta,
		Gravity:         con.Gravity,
		CsFactor:        con.CsFactor,
		Safety:          con.Safety,
		TangentDamping:  con.TangentDamping,
		Restitution:     con.Restitution,
	}
}

type DeviceConfig struct {
	Workers    int
	MaxMiB     int
	QueueDepth int
}

func (con *DeviceConfig) ValidWorkers() bool {
	return con.Workers >= 0
}
func (con *DeviceConfig) ValidMaxMiB() bool {
	return con.MaxMiB >= 0
}
func (con *DeviceConfig) ValidQueueDepth() bool {
	return con.QueueDepth > 0
}

type RunConfig struct {
	Frames     int
	Dt         float64
	Swap       string
	StatsEvery int
}

func (con *RunConfig) ValidFrames() bool {
	return con.Frames >= 0
}
func (con *RunConfig) ValidSwap() bool {
	_, err := F.ParseSwapMode(con.Swap)
	return err == nil
}
func (con *RunConfig) ValidStatsEvery() bool {
	return con.StatsEvery >= 0
}

type ServerConfig struct {
	Addr      string
	FrameRate int
}

func (con *ServerConfig) ValidAddr() bool {
	return con.Addr != ""
}
func (con *ServerConfig) ValidFrameRate() bool {
	return con.FrameRate > 0 && con.FrameRate <= 240
}

//Wrapper holds every section of a run file
type Wrapper struct {
	Box       BoxConfig
	Particles ParticlesConfig
	Sph       SphConfig
	Device    DeviceConfig
	Run       RunConfig
	Server    ServerConfig
}

//DefaultWrapper is the stock scene: 32x4x16 box with 5000 particles
func DefaultWrapper() *Wrapper {
	opts := F.DefaultOptions()
	sph := SphConfig{
		RestDensity:     opts.RestDensity,
		TargetNeighbors: opts.TargetNeighbors,
		Mu:              opts.Mu,
		XsphEta:         opts.XsphEta,
		Gravity:         opts.Gravity,
		CsFactor:        opts.CsFactor,
		Safety:          opts.Safety,
		TangentDamping:  opts.TangentDamping,
		Restitution:     opts.Restitution,
	}
	return &Wrapper{
		Box:       BoxConfig{Width: 32, Height: 4, Depth: 16},
		Particles: ParticlesConfig{Count: 5000, Seeding: "random", Seed: 1},
		Sph:       sph,
		Device:    DeviceConfig{QueueDepth: 16},
		Run:       RunConfig{Frames: 600, Swap: "flip", StatsEvery: 60},
		Server:    ServerConfig{Addr: "localhost:8080", FrameRate: 60},
	}
}

//ReadFile parses fname over the defaults and validates the result
func ReadFile(fname string) (*Wrapper, error) {
	w := DefaultWrapper()
	if err := gcfg.ReadFileInto(w, fname); err != nil {
		return nil, fmt.Errorf("config %s: %w", fname, err)
	}
	if err := w.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", fname, err)
	}
	return w, nil
}

//ReadString is ReadFile for in-memory text
func ReadString(text string) (*Wrapper, error) {
	w := DefaultWrapper()
	if err := gcfg.ReadStringInto(w, text); err != nil {
		return nil, err
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return w, nil
}

//Validate rejects values that cannot produce a simulation
func (w *Wrapper) Validate() error {
	switch {
	case !w.Box.ValidDimensions():
		return fmt.Errorf("[Box] dimensions must be positive, got %gx%gx%g: %w",
			w.Box.Width, w.Box.Height, w.Box.Depth, F.ErrInvalidConfig)
	case !w.Particles.ValidCount():
		return fmt.Errorf("[Particles] Count must be positive, got %d: %w", w.Particles.Count, F.ErrInvalidConfig)
	case !w.Particles.ValidSeeding():
		return fmt.Errorf("[Particles] Seeding must be random or lattice, got %q: %w", w.Particles.Seeding, F.ErrInvalidConfig)
	case !w.Device.ValidWorkers():
		return fmt.Errorf("[Device] Workers must not be negative, got %d: %w", w.Device.Workers, F.ErrInvalidConfig)
	case !w.Device.ValidMaxMiB():
		return fmt.Errorf("[Device] MaxMiB must not be negative, got %d: %w", w.Device.MaxMiB, F.ErrInvalidConfig)
	case !w.Device.ValidQueueDepth():
		return fmt.Errorf("[Device] QueueDepth must be positive, got %d: %w", w.Device.QueueDepth, F.ErrInvalidConfig)
	case !w.Run.ValidFrames():
		return fmt.Errorf("[Run] Frames must not be negative, got %d: %w", w.Run.Frames, F.ErrInvalidConfig)
	case !w.Run.ValidSwap():
		return fmt.Errorf("[Run] Swap must be flip or copy, got %q: %w", w.Run.Swap, F.ErrInvalidConfig)
	case !w.Run.ValidStatsEvery():
		return fmt.Errorf("[Run] StatsEvery must not be negative, got %d: %w", w.Run.StatsEvery, F.ErrInvalidConfig)
	case !w.Server.ValidAddr():
		return fmt.Errorf("[Server] Addr must be set: %w", F.ErrInvalidConfig)
	case !w.Server.ValidFrameRate():
		return fmt.Errorf("[Server] FrameRate must be in (0, 240], got %d: %w", w.Server.FrameRate, F.ErrInvalidConfig)
	}
	return w.Sph.Options().Validate()
}

//Fluid converts the file into a simulation configuration
func (w *Wrapper) Fluid() (F.Config, error) {
	seeding, err := F.ParseSeeding(w.Particles.Seeding)
	if err != nil {
		return F.Config{}, err
	}
	swap, err := F.ParseSwapMode(w.Run.Swap)
	if err != nil {
		return F.Config{}, err
	}
	return F.Config{
		Box: F.Box{
			Width:  float32(w.Box.Width),
			Height: float32(w.Box.Height),
			Depth:  float32(w.Box.Depth),
		},
		Count:   w.Particles.Count,
		Options: w.Sph.Options(),
		Seeding: seeding,
		Seed:    w.Particles.Seed,
		Swap:    swap,
	}, nil
}

//DeviceOptions converts the [Device] section
func (w *Wrapper) DeviceOptions() D.Options {
	return D.Options{
		Workers:  w.Device.Workers,
		MaxBytes: int64(w.Device.MaxMiB) << 20,
		Depth:    w.Device.QueueDepth,
	}
}
