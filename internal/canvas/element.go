// Package canvas 공유 보드의 드로잉 모델 (발표자 요소 목록, 도형 계산, 방별 마지막 스냅샷)
package canvas

import (
	"math"
)

// Kind 요소를 만든 도구
type Kind string

const (
	KindPencil    Kind = "pencil"
	KindEraser    Kind = "eraser"
	KindLine      Kind = "line"
	KindRectangle Kind = "rect"
	KindCircle    Kind = "circle"
	KindTriangle  Kind = "triangle"
	KindText      Kind = "text"
)

// Valid 알려진 도구인지 확인
func (k Kind) Valid() bool {
	switch k {
	case KindPencil, KindEraser, KindLine, KindRectangle, KindCircle, KindTriangle, KindText:
		return true
	}
	return false
}

// Freehand 너비/높이 대신 경로가 늘어나는 도구
func (k Kind) Freehand() bool {
	return k == KindPencil || k == KindEraser
}

// Point [x, y] 좌표 (배열로 직렬화)
type Point [2]float64

// Font 텍스트 요소 글꼴
type Font struct {
	Size   float64 `json:"size"`
	Family string  `json:"family"`
}

// DefaultFont 보드 클라이언트 기본 글꼴
var DefaultFont = Font{Size: 24, Family: "sans-serif"}

// Element 드로잉 요소 하나. X/Y는 기준점(pointer-down 위치)
// 직선과 도형의 Width/Height는 기준점에서 드래그한 거리
type Element struct {
	Type   Kind    `json:"type"`
	Stroke string  `json:"stroke"`
	X      float64 `json:"offsetX"`
	Y      float64 `json:"offsetY"`
	Path   []Point `json:"path,omitempty"`
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
	Text   string  `json:"text,omitempty"`
	Font   *Font   `json:"font,omitempty"`
}

// Radius 원의 반지름 (드래그 거리)
func (e Element) Radius() float64 {
	return math.Hypot(e.Width, e.Height)
}

// Diameter 원 렌더러가 쓰는 지름
func (e Element) Diameter() float64 {
	return 2 * e.Radius()
}

// LineEnd 직선의 끝점
func (e Element) LineEnd() Point {
	return Point{e.X + e.Width, e.Y + e.Height}
}

// TriangleVertices 기준점을 꼭짓점으로 하는 이등변 삼각형 (기준점 수직선 대칭)
func (e Element) TriangleVertices() [3]Point {
	return [3]Point{
		{e.X, e.Y},
		{e.X + e.Width, e.Y + e.Height},
		{e.X - e.Width, e.Y + e.Height},
	}
}

// clone 경로를 복사해 원본과 분리
func (e Element) clone() Element {
	if e.Path != nil {
		path := make([]Point, len(e.Path))
		copy(path, e.Path)
		e.Path = path
	}
	if e.Font != nil {
		font := *e.Font
		e.Font = &font
	}
	return e
}
