package canvas

import (
	"errors"
	"strings"
)

var (
	// ErrUnknownTool 알 수 없는 도구로 pointer-down
	ErrUnknownTool = errors.New("unknown drawing tool")
	// ErrTextTool 텍스트는 드래그 없이 InsertText로만 추가
	ErrTextTool = errors.New("text is inserted with InsertText")
)

// Renderer 요소 목록을 스냅샷(보통 이미지 data URL)으로 래스터화. 구현은 외부
type Renderer interface {
	Render(elements []Element) (string, error)
}

// RendererFunc 함수를 Renderer로 사용
type RendererFunc func(elements []Element) (string, error)

// Render f 호출
func (f RendererFunc) Render(elements []Element) (string, error) {
	return f(elements)
}

// Board 발표자 쪽 요소 목록. PointerDown~PointerUp 사이에 마지막 요소만 변경됨
// 실행 취소/다시 실행은 로컬 전용이며 다음 렌더링 결과로만 전달됨
// 동시 사용 불가
type Board struct {
	elements []Element
	redo     []Element
	drawing  bool
}

// NewBoard 빈 보드 생성
func NewBoard() *Board {
	return &Board{}
}

// PointerDown (x, y)를 기준점으로 새 요소 추가
func (b *Board) PointerDown(tool Kind, x, y float64, stroke string) error {
	if tool == KindText {
		return ErrTextTool
	}
	if !tool.Valid() {
		return ErrUnknownTool
	}

	el := Element{Type: tool, Stroke: stroke, X: x, Y: y}
	if tool.Freehand() {
		el.Path = []Point{{x, y}}
	}

	b.push(el)
	b.drawing = true
	return nil
}

// PointerMove 마지막 요소를 (x, y)까지 확장. 변경 여부 반환
func (b *Board) PointerMove(x, y float64) bool {
	if !b.drawing || len(b.elements) == 0 {
		return false
	}

	last := &b.elements[len(b.elements)-1]
	if last.Type.Freehand() {
		last.Path = append(last.Path, Point{x, y})
	} else {
		last.Width = x - last.X
		last.Height = y - last.Y
	}
	return true
}

// PointerUp 드래그 종료
func (b *Board) PointerUp() {
	b.drawing = false
}

// Drawing 드래그 중인지 여부
func (b *Board) Drawing() bool {
	return b.drawing
}

// InsertText (x, y)에 텍스트 추가. 빈 입력(취소)은 무시
// 반환된 요소는 개별 요소로 전송됨
func (b *Board) InsertText(text string, x, y float64, stroke string) (Element, bool) {
	if strings.TrimSpace(text) == "" {
		return Element{}, false
	}

	font := DefaultFont
	el := Element{Type: KindText, Stroke: stroke, X: x, Y: y, Text: text, Font: &font}
	b.drawing = false
	b.push(el)
	return el.clone(), true
}

// Clear 보드와 redo 기록 비움
func (b *Board) Clear() {
	b.elements = nil
	b.redo = nil
	b.drawing = false
}

// Undo 마지막 요소를 redo 기록으로 이동
func (b *Board) Undo() bool {
	if len(b.elements) == 0 {
		return false
	}

	last := b.elements[len(b.elements)-1]
	b.elements = b.elements[:len(b.elements)-1]
	b.redo = append(b.redo, last)
	b.drawing = false
	return true
}

// Redo 최근 취소한 요소 복원
func (b *Board) Redo() bool {
	if len(b.redo) == 0 {
		return false
	}

	el := b.redo[len(b.redo)-1]
	b.redo = b.redo[:len(b.redo)-1]
	b.elements = append(b.elements, el)
	return true
}

// CanUndo / CanRedo 툴바 상태
func (b *Board) CanUndo() bool { return len(b.elements) > 0 }
func (b *Board) CanRedo() bool { return len(b.redo) > 0 }

// Elements 요소 목록 복사본
func (b *Board) Elements() []Element {
	out := make([]Element, len(b.elements))
	for i, el := range b.elements {
		out[i] = el.clone()
	}
	return out
}

// Render 현재 요소를 r로 래스터화
func (b *Board) Render(r Renderer) (string, error) {
	return r.Render(b.Elements())
}

func (b *Board) push(el Element) {
	b.elements = append(b.elements, el)
	b.redo = nil
}
