//go:build nogl

package app

import (
	"context"
	"errors"
)

//ErrNoGL is returned by the viewer in builds tagged nogl
var ErrNoGL = errors.New("viewer not available: built with the nogl tag")

type Viewer struct{}

func NewViewer(sc *Scene, a AppWindow) (*Viewer, error) {
	return nil, ErrNoGL
}

func (v *Viewer) Run(ctx context.Context) error { return ErrNoGL }
func (v *Viewer) Close()                        {}
