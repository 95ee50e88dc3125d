//Package fluid is the SPH simulation core: a uniform counting-sort grid for
//neighbor search and the per-step force chain, encoded as an ordered list of
//data-parallel stages on a compute device.
package fluid

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"sync/atomic"

	D "diesel.com/gridsph/device"
)

var (
	//ErrClosed is returned once the simulation has no buffers left
	ErrClosed = errors.New("simulation closed")
	//ErrUnknownRole is returned by ReadRole for a name outside the buffer plan
	ErrUnknownRole = errors.New("unknown role")
)

//Logger receives build and reconfiguration messages
var Logger = log.New(os.Stderr, "[fluid] ", log.LstdFlags)

//SetOutput redirects the package logger
func SetOutput(w io.Writer) {
	if w == nil {
		w = io.Discard
	}
	Logger.SetOutput(w)
}

//Config - everything a rebuild is derived from
type Config struct {
	Box     Box
	Count   int
	Options Options
	Seeding Seeding
	Seed    int64
	Swap    SwapMode
}

//DefaultConfig mirrors the stock scene: 32x4x16 box with 5000 particles
func DefaultConfig() Config {
	return Config{
		Box:     Box{Width: 32, Height: 4, Depth: 16},
		Count:   5000,
		Options: DefaultOptions(),
		Seeding: SeedRandom,
		Seed:    1,
		Swap:    SwapFlip,
	}
}

type Timer struct {
	T        float64
	TS       float64
	TIMELAST float64
}

func (t *Timer) StepTime() {
	t.TIMELAST = t.T
	t.T = t.T + t.TS
}

//world is one fully built configuration
type world struct {
	cfg       Config
	settings  *SphSettings
	grid      GridGeometry
	reg       *D.Registry
	particles *ParticleBuffers
	stages    []Stage
}

//Simulation owns the device buffers for one configuration at a time
type Simulation struct {
	dev *D.Device

	mu      sync.Mutex
	w       *world
	version uint64
	frame   uint64
	Timer   Timer

	settings atomic.Pointer[SphSettings]
}

//New derives settings for cfg, allocates every buffer and uploads the seed state
func New(dev *D.Device, cfg Config) (*Simulation, error) {
	s := &Simulation{dev: dev}
	w, err := s.build(cfg, nil)
	if err != nil {
		return nil, err
	}
	s.install(w)
	return s, nil
}

//particleState is a host copy of In used to carry state across a rebuild
type particleState struct {
	pos []float32
	vel []float32
}

func bufferSpecs(count int, grid GridGeometry) []D.BufferSpec {
	n4 := count * 4
	return []D.BufferSpec{
		{Role: RolePosition, Kind: D.F32, Len: n4},
		{Role: RoleVelocity, Kind: D.F32, Len: n4},
		{Role: RolePositionOut, Kind: D.F32, Len: n4},
		{Role: RoleVelocityOut, Kind: D.F32, Len: n4},
		{Role: RoleCellIndex, Kind: D.U32, Len: count},
		{Role: RoleSortedID, Kind: D.U32, Len: count},
		{Role: RoleCellCount, Kind: D.U32, Len: grid.Cells, Scratch: true},
		{Role: RoleCellStart, Kind: D.U32, Len: grid.Cells},
		{Role: RoleCellCursor, Kind: D.U32, Len: grid.Cells, Scratch: true},
		{Role: RoleBlockSums, Kind: D.U32, Len: ScanBlocks(grid.Cells)},
		{Role: RoleDensity, Kind: D.F32, Len: count},
		{Role: RolePressure, Kind: D.F32, Len: count},
		{Role: RolePressureForce, Kind: D.F32, Len: n4},
		{Role: RoleViscosityForce, Kind: D.F32, Len: n4},
		{Role: RoleXsph, Kind: D.F32, Len: n4},
		{Role: RoleParams, Kind: D.F32, Len: ParamCount},
	}
}

//build allocates a complete world for cfg. Nothing is left allocated on error.
func (s *Simulation) build(cfg Config, state *particleState) (*world, error) {
	settings, err := DeriveSphParams(cfg.Box, cfg.Count, cfg.Options)
	if err != nil {
		return nil, err
	}
	grid, err := NewGridGeometry(cfg.Box, settings.Kernels.H)
	if err != nil {
		return nil, err
	}

	reg, err := s.dev.AllocateGroup(fmt.Sprintf("sph-%d", cfg.Count), bufferSpecs(cfg.Count, grid))
	if err != nil {
		return nil, fmt.Errorf("allocate %d particles: %w", cfg.Count, err)
	}
	w := &world{
		cfg:       cfg,
		settings:  &settings,
		grid:      grid,
		reg:       reg,
		particles: NewParticleBuffers(reg),
		stages:    Pipeline(cfg.Swap),
	}
	if err := validatePlan(w.stages, reg); err != nil {
		reg.Release()
		return nil, err
	}

	pos, vel := state.upload(cfg)
	q := s.dev.Queue()
	posIn, velIn := w.particles.In()
	for _, up := range []struct {
		b    *D.Buffer
		data []float32
	}{{posIn, pos}, {velIn, vel}, {reg.Resolve(RoleParams), settings.Pack()}} {
		if err := q.WriteF32(up.b, up.data); err != nil {
			reg.Release()
			return nil, fmt.Errorf("upload %s: %w", up.b.Label(), err)
		}
	}
	return w, nil
}

//upload returns the initial In contents, seeding when there is no carried state
func (st *particleState) upload(cfg Config) (pos, vel []float32) {
	if st != nil && len(st.pos) == cfg.Count*4 {
		return st.pos, st.vel
	}
	return SeedPositions(cfg.Box, cfg.Count, cfg.Seeding, cfg.Seed), make([]float32, cfg.Count*4)
}

//install makes w current and stamps a new settings version. Caller holds mu
//or has exclusive access.
func (s *Simulation) install(w *world) {
	s.version++
	snap := *w.settings
	snap.Version = s.version
	w.settings = &snap
	s.w = w
	s.settings.Store(&snap)
	s.Timer.TS = float64(snap.Dt)
	Logger.Printf("built %s, grid %v, swap %v", &snap, w.grid, w.cfg.Swap)
}

//Step encodes and submits one frame. It does not wait for the device.
//A dt <= 0 uses the recommended timestep.
func (s *Simulation) Step(dt float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dt, err := s.submit(-1, dt)
	if err != nil {
		return err
	}
	s.frame++
	s.Timer.TS = float64(dt)
	s.Timer.StepTime()
	return nil
}

//submit encodes the first upto stages (all when upto < 0) as one command
//buffer. Caller holds mu.
func (s *Simulation) submit(upto int, dt float32) (float32, error) {
	q := s.dev.Queue()
	if err := q.Err(); err != nil {
		return 0, err
	}
	w := s.w
	if w == nil {
		return 0, ErrClosed
	}
	if dt <= 0 {
		dt = w.settings.Dt
	}
	stages := w.stages
	if upto >= 0 && upto < len(stages) {
		stages = stages[:upto]
	}
	f := &Frame{
		Index:     s.frame,
		Dt:        dt,
		Settings:  w.settings,
		Grid:      w.grid,
		Registry:  w.reg,
		Particles: w.particles,
	}
	gen := w.particles.Gen()
	enc := s.dev.NewEncoder(fmt.Sprintf("frame %d", s.frame))
	err := encodeFrame(enc, stages, f)
	if err == nil {
		err = q.Submit(enc.Finish())
	}
	if err != nil {
		//The flip happened while encoding, undo it for a frame that never ran
		if w.particles.Gen() != gen {
			if ferr := w.particles.Flip(); ferr != nil {
				Logger.Printf("restoring particle roles: %v", ferr)
			}
		}
		return 0, err
	}
	return dt, nil
}

//Reconfigure rebuilds for cfg. On failure the running configuration is kept
//and the error returned. Particle state survives when the count is unchanged.
func (s *Simulation) Reconfigure(ctx context.Context, cfg Config) error {
	if _, err := DeriveSphParams(cfg.Box, cfg.Count, cfg.Options); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.w
	q := s.dev.Queue()
	if err := q.WaitIdle(ctx); err != nil {
		return err
	}
	if old == nil {
		w, err := s.build(cfg, nil)
		if err != nil {
			return err
		}
		s.install(w)
		return nil
	}
	state, err := s.readState(ctx, old)
	if err != nil {
		return err
	}
	var carry *particleState
	if cfg.Count == old.cfg.Count && cfg.Seed == old.cfg.Seed && cfg.Seeding == old.cfg.Seeding {
		carry = state
	}

	//Build beside the running world first; when that does not fit, tear the
	//old world down and rebuild it if the new one still fails.
	w, err := s.build(cfg, carry)
	if errors.Is(err, D.ErrOutOfMemory) {
		Logger.Printf("rebuild beside current world failed, retrying after teardown: %v", err)
		old.reg.Release()
		w, err = s.build(cfg, carry)
		if err != nil {
			restored, rerr := s.build(old.cfg, state)
			if rerr != nil {
				s.w = nil
				return fmt.Errorf("rebuild failed (%v) and previous configuration could not be restored: %w", err, rerr)
			}
			restored.settings = old.settings
			s.w = restored
			Logger.Printf("kept %v after failed rebuild: %v", old.settings, err)
			return err
		}
	} else if err != nil {
		return err
	} else {
		old.reg.Release()
	}
	s.install(w)
	return nil
}

func (s *Simulation) readState(ctx context.Context, w *world) (*particleState, error) {
	pos, vel := w.particles.In()
	q := s.dev.Queue()
	p, err := q.ReadF32(ctx, pos)
	if err != nil {
		return nil, err
	}
	v, err := q.ReadF32(ctx, vel)
	if err != nil {
		return nil, err
	}
	return &particleState{pos: p, vel: v}, nil
}

//Settings returns the current parameter snapshot
func (s *Simulation) Settings() SphSettings {
	return *s.settings.Load()
}

func (s *Simulation) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.w == nil {
		return Config{}
	}
	return s.w.cfg
}

func (s *Simulation) Geometry() GridGeometry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.w == nil {
		return GridGeometry{}
	}
	return s.w.grid
}

//Frame counts submitted frames
func (s *Simulation) Frame() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame
}

//Stages lists the frame pipeline in order
func (s *Simulation) Stages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.w == nil {
		return nil
	}
	return StageNames(s.w.stages)
}

//Generation of the authoritative particle pair
func (s *Simulation) Generation() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.w == nil {
		return 0
	}
	return s.w.particles.Gen()
}

//Positions reads back In positions once all submitted frames have run
func (s *Simulation) Positions(ctx context.Context) ([]float32, error) {
	return s.readIn(ctx, true)
}

//Velocities reads back In velocities once all submitted frames have run
func (s *Simulation) Velocities(ctx context.Context) ([]float32, error) {
	return s.readIn(ctx, false)
}

func (s *Simulation) readIn(ctx context.Context, positions bool) ([]float32, error) {
	//mu is held until the read has run so a rebuild cannot release the buffer
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.w == nil {
		return nil, ErrClosed
	}
	pos, vel := s.w.particles.In()
	b := vel
	if positions {
		b = pos
	}
	return s.dev.Queue().ReadF32(ctx, b)
}

//RoleData is a host copy of one role buffer
type RoleData struct {
	Role D.Role    `json:"role"`
	Kind string    `json:"kind"`
	F32  []float32 `json:"f32,omitempty"`
	U32  []uint32  `json:"u32,omitempty"`
}

//ReadRole copies any role buffer back to the host for inspection
func (s *Simulation) ReadRole(ctx context.Context, role D.Role) (RoleData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.w == nil {
		return RoleData{}, ErrClosed
	}
	b, ok := s.w.reg.Lookup(role)
	if !ok {
		return RoleData{}, fmt.Errorf("%w %q", ErrUnknownRole, role)
	}

	out := RoleData{Role: role, Kind: b.Kind().String()}
	var err error
	switch b.Kind() {
	case D.F32:
		out.F32, err = s.dev.Queue().ReadF32(ctx, b)
	case D.U32:
		out.U32, err = s.dev.Queue().ReadU32(ctx, b)
	}
	return out, err
}

//Roles lists the role buffers of the current configuration
func (s *Simulation) Roles() []D.Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.w == nil {
		return nil
	}
	return s.w.reg.Roles()
}

//Wait blocks until every submitted frame has executed
func (s *Simulation) Wait(ctx context.Context) error {
	return s.dev.Queue().WaitIdle(ctx)
}

//Close waits for pending frames and releases the buffers
func (s *Simulation) Close(ctx context.Context) error {
	err := s.Wait(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.w != nil {
		s.w.reg.Release()
		s.w = nil
	}
	return err
}
