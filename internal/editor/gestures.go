package editor

import "math"

// Viewport is the canvas camera: a zoom factor and a screen-space offset.
type Viewport struct {
	Scale   float64
	OffsetX float64
	OffsetY float64
}

func homeViewport() Viewport {
	return Viewport{Scale: 1, OffsetX: 40, OffsetY: 40}
}

const (
	minScale = 0.45
	maxScale = 2.5
)

func clampScale(s float64) float64 {
	return math.Max(minScale, math.Min(maxScale, s))
}

// Point is a canvas-space pointer position in pixels.
type Point struct {
	X float64
	Y float64
}

// gestureKind enumerates the mutually exclusive interaction states.
type gestureKind int

const (
	gestureIdle gestureKind = iota
	gestureDragNode
	gesturePan
	gestureDragEdge
)

// gesture is the in-progress interaction. Exactly one is active at a time;
// PointerUp always returns to idle.
type gesture struct {
	kind gestureKind

	// drag-node
	nodeLocalID      string
	start            Point
	originX, originY float64

	// drag-edge
	edgeFrom  string
	edgeTo    Point
	edgeHover string // hovered target key, may be the END sentinel
}

// Viewport returns the current camera.
func (e *Editor) Viewport() Viewport { return e.viewport }

// GestureActive reports whether a pointer interaction is in progress, which
// is when the caller must route PointerMove/PointerUp events here.
func (e *Editor) GestureActive() bool { return e.gesture.kind != gestureIdle }

// EdgeDraft returns the floating edge being drawn: its source key, current
// endpoint in world coordinates, and hovered target. ok is false while no
// edge drag is active.
func (e *Editor) EdgeDraft() (from string, to Point, hover string, ok bool) {
	if e.gesture.kind != gestureDragEdge {
		return "", Point{}, "", false
	}
	return e.gesture.edgeFrom, e.gesture.edgeTo, e.gesture.edgeHover, true
}

// toWorld converts a canvas point into world coordinates under the current
// camera.
func (e *Editor) toWorld(p Point) Point {
	return Point{
		X: (p.X - e.viewport.OffsetX) / e.viewport.Scale,
		Y: (p.Y - e.viewport.OffsetY) / e.viewport.Scale,
	}
}

// StartNodeDrag begins repositioning a node. It also selects the node, the
// same press that grabs it focuses it.
func (e *Editor) StartNodeDrag(localID string, at Point) {
	node := e.node(localID)
	if node == nil || e.gesture.kind != gestureIdle {
		return
	}
	e.selectedID = localID
	e.gesture = gesture{
		kind:        gestureDragNode,
		nodeLocalID: localID,
		start:       at,
		originX:     node.X,
		originY:     node.Y,
	}
}

// StartPan begins translating the viewport.
func (e *Editor) StartPan(at Point) {
	if e.gesture.kind != gestureIdle {
		return
	}
	e.gesture = gesture{
		kind:    gesturePan,
		start:   at,
		originX: e.viewport.OffsetX,
		originY: e.viewport.OffsetY,
	}
}

// StartEdgeDrag begins drawing an edge from the given node key. The floating
// endpoint starts under the pointer.
func (e *Editor) StartEdgeDrag(fromKey string, at Point) {
	if e.gesture.kind != gestureIdle {
		return
	}
	e.gesture = gesture{
		kind:     gestureDragEdge,
		edgeFrom: fromKey,
		edgeTo:   e.toWorld(at),
	}
}

// HoverEdgeTarget records which node key (or graph.EndNode) the pointer is
// over during an edge drag. An empty key clears the target. Ignored outside
// an edge drag.
func (e *Editor) HoverEdgeTarget(key string) {
	if e.gesture.kind == gestureDragEdge {
		e.gesture.edgeHover = key
	}
}

// PointerMove advances the active gesture. Node movement is scaled by the
// zoom factor so the node tracks the pointer, not the screen delta.
func (e *Editor) PointerMove(at Point) {
	switch e.gesture.kind {
	case gestureDragNode:
		node := e.node(e.gesture.nodeLocalID)
		if node == nil {
			return
		}
		node.X = math.Max(0, math.Round(e.gesture.originX+(at.X-e.gesture.start.X)/e.viewport.Scale))
		node.Y = math.Max(0, math.Round(e.gesture.originY+(at.Y-e.gesture.start.Y)/e.viewport.Scale))

	case gesturePan:
		e.viewport.OffsetX = e.gesture.originX + (at.X - e.gesture.start.X)
		e.viewport.OffsetY = e.gesture.originY + (at.Y - e.gesture.start.Y)

	case gestureDragEdge:
		e.gesture.edgeTo = e.toWorld(at)
	}
}

// PointerUp ends the active gesture. A released edge drag commits an edge
// when a distinct target is hovered and the edge is not already present;
// otherwise the draft is discarded.
func (e *Editor) PointerUp() {
	if e.gesture.kind == gestureDragEdge {
		from, hover := e.gesture.edgeFrom, e.gesture.edgeHover
		if hover != "" && hover != from && !e.hasEdge(from, hover) {
			e.edges = append(e.edges, edge(from, hover))
		}
	}
	e.gesture = gesture{}
}

// Zoom applies a zoom step anchored at the given canvas point: the world
// coordinate under the anchor stays put so content does not jump under the
// cursor.
func (e *Editor) Zoom(factor float64, anchor Point) {
	next := clampScale(e.viewport.Scale * factor)
	if next == e.viewport.Scale {
		return
	}
	world := e.toWorld(anchor)
	e.viewport = Viewport{
		Scale:   next,
		OffsetX: anchor.X - world.X*next,
		OffsetY: anchor.Y - world.Y*next,
	}
}

// Wheel maps a scroll delta to a zoom step anchored under the pointer.
func (e *Editor) Wheel(deltaY float64, at Point) {
	factor := 0.92
	if deltaY < 0 {
		factor = 1.08
	}
	e.Zoom(factor, at)
}

// ZoomIn and ZoomOut step the zoom anchored at the given canvas point,
// typically its center.
func (e *Editor) ZoomIn(anchor Point)  { e.Zoom(1.12, anchor) }
func (e *Editor) ZoomOut(anchor Point) { e.Zoom(0.88, anchor) }

// ResetView restores the home camera.
func (e *Editor) ResetView() { e.viewport = homeViewport() }
