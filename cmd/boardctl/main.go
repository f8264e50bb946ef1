package main

import (
	"context"
	"encoding/base64"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"realtime-board/internal/canvas"
	"realtime-board/internal/client"
	"realtime-board/internal/protocol"
)

const usage = `usage: boardctl <command> [flags]

commands:
  watch    join a room as a viewer and print every event
  present  join as presenter and push an image file as the room's canvas
  chat     send one chat message to a room
`

type common struct {
	server string
	room   string
	name   string
}

func (c *common) register(fs *flag.FlagSet) {
	fs.StringVar(&c.server, "server", envOr("BOARD_SERVER", "ws://localhost:5000/ws"), "board websocket endpoint")
	fs.StringVar(&c.room, "room", "", "room id (required)")
	fs.StringVar(&c.name, "name", "boardctl", "display name")
}

func main() {
	// .env 파일 로드 (없어도 에러 무시)
	_ = godotenv.Load()
	log.SetFlags(log.Ltime)

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "watch":
		err = runWatch(ctx, os.Args[2:])
	case "present":
		err = runPresent(ctx, os.Args[2:])
	case "chat":
		err = runChat(ctx, os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if err != nil && ctx.Err() == nil {
		log.Fatalf("❌ %s: %v", os.Args[1], err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// connect 서버 연결 후 방 입장 (joinConfirmed까지 대기)
func connect(ctx context.Context, c common, presenter bool) (*client.Client, error) {
	if c.room == "" {
		return nil, fmt.Errorf("-room is required")
	}

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cl, err := client.Dial(dialCtx, c.server)
	if err != nil {
		return nil, err
	}

	err = cl.Join(protocol.JoinRequest{
		Name:          c.name,
		ParticipantID: uuid.NewString(),
		RoomID:        c.room,
		IsHost:        presenter,
		IsPresenter:   presenter,
	})
	if err != nil {
		cl.Close()
		return nil, err
	}

	if _, err := cl.Expect(dialCtx, protocol.EventJoinConfirmed); err != nil {
		cl.Close()
		return nil, err
	}

	log.Printf("✅ Joined room %s as %s", c.room, c.name)
	return cl, nil
}

func runWatch(ctx context.Context, args []string) error {
	var c common
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	c.register(fs)
	fs.Parse(args)

	cl, err := connect(ctx, c, false)
	if err != nil {
		return err
	}
	defer cl.Close()

	for {
		env, err := cl.Next(ctx)
		if err != nil {
			return err
		}
		log.Printf("%-22s %s", env.Type, summarize(env))
	}
}

// summarize 스냅샷 페이로드는 크기만 출력
func summarize(env protocol.Envelope) string {
	switch env.Type {
	case protocol.EventSnapshotBroadcast, protocol.EventSnapshotPush:
		return fmt.Sprintf("<snapshot %d bytes>", len(env.Payload))
	}
	const limit = 200
	if len(env.Payload) > limit {
		return string(env.Payload[:limit]) + "..."
	}
	return string(env.Payload)
}

func runPresent(ctx context.Context, args []string) error {
	var c common
	fs := flag.NewFlagSet("present", flag.ExitOnError)
	c.register(fs)
	file := fs.String("file", "", "image to publish (required)")
	text := fs.String("text", "", "optional text annotation sent as a discrete element")
	x := fs.Float64("x", 10, "text x position")
	y := fs.Float64("y", 30, "text y position")
	stroke := fs.String("stroke", "#000000", "text color")
	fs.Parse(args)

	if *file == "" {
		return fmt.Errorf("-file is required")
	}
	snapshot, err := dataURL(*file)
	if err != nil {
		return err
	}

	cl, err := connect(ctx, c, true)
	if err != nil {
		return err
	}
	defer cl.Close()

	if err := cl.SendCanvasUpdate(snapshot); err != nil {
		return err
	}
	log.Printf("📤 Published %s (%d bytes)", *file, len(snapshot))

	if *text != "" {
		// 래스터화는 외부 몫이므로 게시한 이미지를 그대로 사용
		p := client.NewPresenter(cl, canvas.RendererFunc(func([]canvas.Element) (string, error) {
			return snapshot, nil
		}))
		p.SetStroke(*stroke)
		if err := p.AddText(*text, *x, *y); err != nil {
			return err
		}
		log.Printf("📝 Sent text %q at (%.0f, %.0f)", *text, *x, *y)
	}

	log.Println("Presenting; press Ctrl+C to leave")
	for {
		if _, err := cl.Next(ctx); err != nil {
			return err
		}
	}
}

func dataURL(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	mime := http.DetectContentType(data)
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func runChat(ctx context.Context, args []string) error {
	var c common
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	c.register(fs)
	text := fs.String("text", "", "message to send (required)")
	fs.Parse(args)

	if *text == "" {
		return fmt.Errorf("-text is required")
	}

	cl, err := connect(ctx, c, false)
	if err != nil {
		return err
	}
	defer cl.Close()

	if err := cl.Chat(*text); err != nil {
		return err
	}

	// 연결 종료 전에 채팅이 처리되도록 ping 왕복
	if err := cl.Ping(); err != nil {
		return err
	}
	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := cl.Expect(waitCtx, protocol.EventPong); err != nil {
		return err
	}

	log.Printf("💬 Sent to %s", c.room)
	return nil
}
