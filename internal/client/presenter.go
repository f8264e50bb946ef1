package client

import (
	"fmt"

	"realtime-board/internal/canvas"
)

// Sender 발표자 연결의 송신 측 (*Client가 구현)
type Sender interface {
	SendCanvasUpdate(snapshot string) error
	SendElement(element any) error
}

// Presenter 방의 기준 요소 목록 소유. 변경마다 전체 스냅샷을 전송하고
// 텍스트는 개별 요소로도 한 번 전송
type Presenter struct {
	board    *canvas.Board
	renderer canvas.Renderer
	sender   Sender
	tool     canvas.Kind
	stroke   string
}

// NewPresenter 검은 연필로 시작하는 Presenter 생성
func NewPresenter(sender Sender, renderer canvas.Renderer) *Presenter {
	return &Presenter{
		board:    canvas.NewBoard(),
		renderer: renderer,
		sender:   sender,
		tool:     canvas.KindPencil,
		stroke:   "#000000",
	}
}

// SetTool 다음 PointerDown에 쓸 도구 선택
func (p *Presenter) SetTool(tool canvas.Kind) error {
	if !tool.Valid() {
		return fmt.Errorf("%w: %q", canvas.ErrUnknownTool, tool)
	}
	p.tool = tool
	return nil
}

// SetStroke 새 요소의 선 색상
func (p *Presenter) SetStroke(color string) {
	p.stroke = color
}

// Board 로컬 요소 목록
func (p *Presenter) Board() *canvas.Board {
	return p.board
}

func (p *Presenter) PointerDown(x, y float64) error {
	if err := p.board.PointerDown(p.tool, x, y, p.stroke); err != nil {
		return err
	}
	return p.publish()
}

func (p *Presenter) PointerMove(x, y float64) error {
	if !p.board.PointerMove(x, y) {
		return nil
	}
	return p.publish()
}

func (p *Presenter) PointerUp() {
	p.board.PointerUp()
}

// AddText 텍스트 추가 (빈 텍스트는 취소로 보고 전송하지 않음)
func (p *Presenter) AddText(text string, x, y float64) error {
	el, ok := p.board.InsertText(text, x, y, p.stroke)
	if !ok {
		return nil
	}
	if err := p.sender.SendElement(el); err != nil {
		return err
	}
	return p.publish()
}

// Clear 보드를 비우고 빈 캔버스 전송
func (p *Presenter) Clear() error {
	p.board.Clear()
	return p.publish()
}

// Undo / Redo 로컬 기록. 결과 래스터만 전송됨
func (p *Presenter) Undo() error {
	if !p.board.Undo() {
		return nil
	}
	return p.publish()
}

func (p *Presenter) Redo() error {
	if !p.board.Redo() {
		return nil
	}
	return p.publish()
}

func (p *Presenter) publish() error {
	snapshot, err := p.board.Render(p.renderer)
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	return p.sender.SendCanvasUpdate(snapshot)
}
