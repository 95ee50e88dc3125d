//go:build !nogl

package app

//OpenGL point viewer for the running simulation
import (
	"context"
	"fmt"
	"strings"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"

	G "diesel.com/gridsph/geometry"
	U "diesel.com/gridsph/utils"
	V "diesel.com/gridsph/vector"
)

const vertexSRC = `#version 410 core
layout(location = 0) in vec3 position;
uniform mat4 mvp;
uniform float pointSize;
void main() {
	gl_Position = mvp * vec4(position, 1.0);
	gl_PointSize = pointSize;
}` + "\x00"

const fragmentSRC = `#version 410 core
uniform vec4 color;
out vec4 fragColor;
void main() {
	fragColor = color;
}` + "\x00"

//Viewer renders In positions as points inside the wire box. It must be
//created and run on the main goroutine with its OS thread locked.
type Viewer struct {
	scene  *Scene
	window *glfw.Window
	cam    Camera

	program  uint32
	mvpLoc   int32
	colorLoc int32
	sizeLoc  int32

	vao        [2]uint32 //particles, box
	vbo        [2]uint32
	ebo        uint32
	boxIndices int32

	count   int
	version uint64

	dragging     bool
	lastX, lastY float64
}

func NewViewer(sc *Scene, a AppWindow) (*Viewer, error) {
	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("glfw init: %w", err)
	}
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)

	window, err := glfw.CreateWindow(a.Width, a.Height, a.Name, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("create window: %w", err)
	}
	window.MakeContextCurrent()
	glfw.SwapInterval(1)

	if err := gl.Init(); err != nil {
		window.Destroy()
		glfw.Terminate()
		return nil, fmt.Errorf("gl init: %w", err)
	}
	Logger.Println("OpenGL version", gl.GoStr(gl.GetString(gl.VERSION)))

	program, err := newProgram(vertexSRC, fragmentSRC)
	if err != nil {
		window.Destroy()
		glfw.Terminate()
		return nil, err
	}

	v := &Viewer{scene: sc, window: window, program: program}
	v.mvpLoc = gl.GetUniformLocation(program, gl.Str("mvp\x00"))
	v.colorLoc = gl.GetUniformLocation(program, gl.Str("color\x00"))
	v.sizeLoc = gl.GetUniformLocation(program, gl.Str("pointSize\x00"))

	gl.GenVertexArrays(2, &v.vao[0])
	gl.GenBuffers(2, &v.vbo[0])
	gl.GenBuffers(1, &v.ebo)
	gl.Enable(gl.PROGRAM_POINT_SIZE)
	gl.Enable(gl.DEPTH_TEST)

	v.cam = NewCamera(sc.Sim.Settings().Box)
	v.rebuild()

	window.SetKeyCallback(v.onKey)
	window.SetMouseButtonCallback(v.onMouse)
	window.SetCursorPosCallback(v.onCursor)
	window.SetScrollCallback(func(w *glfw.Window, xoff, yoff float64) {
		v.cam.Zoom(yoff)
	})
	return v, nil
}

//rebuild sizes the particle buffer and wire box for the current settings
func (v *Viewer) rebuild() {
	s := v.scene.Sim.Settings()
	v.version = s.Version
	v.count = s.Count

	//Keep the orientation, reframe for the new box
	framed := NewCamera(s.Box)
	v.cam.Distance = framed.Distance
	v.cam.minDist = framed.minDist

	verts, idx := G.Box(s.Box.Width, s.Box.Height, s.Box.Depth, V.Vec32{}).WireBox()
	v.boxIndices = int32(len(idx))
	gl.BindVertexArray(v.vao[1])
	gl.BindBuffer(gl.ARRAY_BUFFER, v.vbo[1])
	gl.BufferData(gl.ARRAY_BUFFER, len(verts)*4, gl.Ptr(verts), gl.STATIC_DRAW)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, v.ebo)
	gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(idx)*4, gl.Ptr(idx), gl.STATIC_DRAW)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointer(0, 3, gl.FLOAT, false, V.Lanes*4, nil)

	gl.BindVertexArray(v.vao[0])
	gl.BindBuffer(gl.ARRAY_BUFFER, v.vbo[0])
	gl.BufferData(gl.ARRAY_BUFFER, v.count*3*4, nil, gl.DYNAMIC_DRAW)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointer(0, 3, gl.FLOAT, false, 0, nil)
}

//upload streams padded positions into the mapped vertex buffer
func (v *Viewer) upload(pos []float32) error {
	gl.BindBuffer(gl.ARRAY_BUFFER, v.vbo[0])
	ptr := gl.MapBufferRange(gl.ARRAY_BUFFER, 0, v.count*3*4, gl.MAP_WRITE_BIT|gl.MAP_INVALIDATE_BUFFER_BIT)
	err := U.TransferPositionData(ptr, pos, v.count)
	if ptr != nil {
		gl.UnmapBuffer(gl.ARRAY_BUFFER)
	}
	return err
}

//Run draws one frame per vsync until the window closes or ctx ends
func (v *Viewer) Run(ctx context.Context) error {
	for !v.window.ShouldClose() {
		if ctx.Err() != nil {
			return nil
		}
		if err := v.scene.Advance(ctx); err != nil {
			return err
		}
		pos, err := v.scene.Sim.Positions(ctx)
		if err != nil {
			return err
		}
		if v.scene.Sim.Settings().Version != v.version {
			v.rebuild()
		}
		if len(pos) == v.count*V.Lanes {
			if err := v.upload(pos); err != nil {
				return err
			}
		}
		v.draw()
		v.window.SwapBuffers()
		glfw.PollEvents()
	}
	return nil
}

func (v *Viewer) draw() {
	width, height := v.window.GetFramebufferSize()
	if height == 0 {
		height = 1
	}
	gl.Viewport(0, 0, int32(width), int32(height))
	gl.ClearColor(0.9, 0.9, 0.9, 1.0)
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)

	mvp := v.cam.Projection(float32(width) / float32(height)).Mul4(v.cam.View())
	gl.UseProgram(v.program)
	gl.UniformMatrix4fv(v.mvpLoc, 1, false, &mvp[0])

	//-------------DRAW STATIC GEOMETRY--------------------------------//
	gl.Uniform4f(v.colorLoc, 0.2, 0.2, 0.2, 1)
	gl.Uniform1f(v.sizeLoc, 1)
	gl.BindVertexArray(v.vao[1])
	gl.DrawElements(gl.LINES, v.boxIndices, gl.UNSIGNED_INT, nil)

	//--------------SPH PARTICLE DRAW---------------------------------------
	gl.Uniform4f(v.colorLoc, 0.1, 0.35, 0.8, 1)
	gl.Uniform1f(v.sizeLoc, 3)
	gl.BindVertexArray(v.vao[0])
	gl.DrawArrays(gl.POINTS, 0, int32(v.count))
}

//Close releases GL objects and the window
func (v *Viewer) Close() {
	gl.DeleteBuffers(2, &v.vbo[0])
	gl.DeleteBuffers(1, &v.ebo)
	gl.DeleteVertexArrays(2, &v.vao[0])
	gl.DeleteProgram(v.program)
	v.window.Destroy()
	glfw.Terminate()
}

func (v *Viewer) onKey(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	if action != glfw.Press {
		return
	}
	switch key {
	case glfw.KeyEscape:
		w.SetShouldClose(true)
	case glfw.KeyR:
		v.cam = NewCamera(v.scene.Sim.Settings().Box)
	case glfw.KeyTab:
		Logger.Printf("Current Simulation Time: %f, frame %d", v.scene.Sim.Timer.T, v.scene.Sim.Frame())
	}
}

func (v *Viewer) onMouse(w *glfw.Window, button glfw.MouseButton, action glfw.Action, mods glfw.ModifierKey) {
	if button != glfw.MouseButtonLeft {
		return
	}
	v.dragging = action == glfw.Press
	if v.dragging {
		v.lastX, v.lastY = w.GetCursorPos()
	}
}

func (v *Viewer) onCursor(w *glfw.Window, xPos float64, yPos float64) {
	if !v.dragging {
		return
	}
	v.cam.Orbit(xPos-v.lastX, yPos-v.lastY)
	v.lastX, v.lastY = xPos, yPos
}

func newProgram(vertexSource, fragmentSource string) (uint32, error) {
	vtx, err := compileShader(vertexSource, gl.VERTEX_SHADER)
	if err != nil {
		return 0, err
	}
	frg, err := compileShader(fragmentSource, gl.FRAGMENT_SHADER)
	if err != nil {
		return 0, err
	}
	prog := gl.CreateProgram()
	gl.AttachShader(prog, vtx)
	gl.AttachShader(prog, frg)
	gl.LinkProgram(prog)

	var status int32
	gl.GetProgramiv(prog, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetProgramiv(prog, gl.INFO_LOG_LENGTH, &logLength)
		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetProgramInfoLog(prog, logLength, nil, gl.Str(log))
		return 0, fmt.Errorf("GLSL program failed to link: %v", log)
	}
	gl.DeleteShader(vtx)
	gl.DeleteShader(frg)
	return prog, nil
}

func compileShader(source string, shaderType uint32) (uint32, error) {
	shader := gl.CreateShader(shaderType)
	csources, free := gl.Strs(source)
	gl.ShaderSource(shader, 1, csources, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLength)

		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetShaderInfoLog(shader, logLength, nil, gl.Str(log))
		return 0, fmt.Errorf("GLSL Shader failed to compile\n: %v", log)
	}
	return shader, nil
}
