package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/nsf/termbox-go"
	"go.uber.org/zap"

	"github.com/annelo/driftsync/internal/client"
	"github.com/annelo/driftsync/internal/gameloop"
	"github.com/annelo/driftsync/internal/transform"
)

var (
	serverAddr = flag.String("server", "localhost:50051", "Адрес сервера и порт")
	clientName = flag.String("name", "viewer", "Имя клиента")
	tickRate   = flag.Int("tick", 30, "Частота кадров клиента")
	debugMode  = flag.Bool("debug", false, "Режим отладки (показать подробную информацию)")
)

const maxMessages = 5

// uiState is shared between the input goroutine and the render system.
type uiState struct {
	mu       sync.Mutex
	cursor   transform.Cell
	selected int
	ids      []string
	messages []string
}

func (s *uiState) addMessage(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, fmt.Sprintf(format, args...))
	if len(s.messages) > maxMessages {
		s.messages = s.messages[len(s.messages)-maxMessages:]
	}
}

// target returns the selected entity and the world position under the cursor.
func (s *uiState) target() (string, mgl64.Vec3, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.ids) == 0 {
		return "", mgl64.Vec3{}, false
	}
	local := mgl64.Vec3{float64(s.cursor.X), float64(s.cursor.Y), 0}
	return s.ids[s.selected%len(s.ids)], transform.ToWorld(local), true
}

func main() {
	flag.Parse()

	// Лог пишем в stderr только в режиме отладки, иначе он ломает экран
	logger := zap.NewNop().Sugar()
	if *debugMode {
		l, err := zap.NewDevelopment()
		if err != nil {
			log.Fatalf("Не удалось создать логгер: %v", err)
		}
		logger = l.Sugar()
	}

	c, err := client.Dial(*serverAddr, *clientName, logger)
	if err != nil {
		log.Fatalf("Не удалось подключиться к серверу: %v", err)
	}
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := c.Subscribe(ctx); err != nil {
		log.Fatalf("Не удалось подписаться на события: %v", err)
	}

	if err := termbox.Init(); err != nil {
		log.Fatalf("Не удалось инициализировать termbox: %v", err)
	}
	defer termbox.Close()

	ui := &uiState{}
	replica := client.NewReplica(logger)
	renderer := &renderSystem{replica: replica, ui: ui}
	loop, _ := client.NewLoop(time.Second/time.Duration(*tickRate), c.Events(), replica, renderer)

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-signalChan
		cancel()
	}()

	go processInput(ctx, cancel, c, replica, ui)

	loop.Run(ctx)
	if err := c.Err(); err != nil {
		termbox.Close()
		log.Printf("Соединение разорвано: %v", err)
	}
}

// processInput reads keys until Esc and turns them into control calls.
func processInput(ctx context.Context, cancel context.CancelFunc, c *client.Client, replica *client.Replica, ui *uiState) {
	for {
		ev := termbox.PollEvent()
		if ev.Type == termbox.EventError {
			cancel()
			return
		}
		if ev.Type != termbox.EventKey {
			continue
		}

		ui.mu.Lock()
		switch ev.Key {
		case termbox.KeyArrowUp:
			ui.cursor.Y--
		case termbox.KeyArrowDown:
			ui.cursor.Y++
		case termbox.KeyArrowLeft:
			ui.cursor.X--
		case termbox.KeyArrowRight:
			ui.cursor.X++
		case termbox.KeyTab:
			ui.selected++
		}
		ui.mu.Unlock()

		switch {
		case ev.Key == termbox.KeyEsc || ev.Key == termbox.KeyCtrlC || ev.Ch == 'q':
			cancel()
			return
		case ev.Ch == 'd' || ev.Ch == 't' || ev.Ch == 'h' || ev.Ch == 's':
			control(ctx, c, replica, ui, ev.Ch)
		}
	}
}

// control predicts hide and show locally, then asks the server.
func control(ctx context.Context, c *client.Client, replica *client.Replica, ui *uiState, key rune) {
	id, pos, ok := ui.target()
	if !ok {
		return
	}
	switch key {
	case 'h':
		post(replica, ui, func(r *client.Replica) error { return r.PredictDisappear(id) })
	case 's':
		post(replica, ui, func(r *client.Replica) error { return r.PredictAppear(id, pos) })
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var err error
	switch key {
	case 'd':
		_, err = c.Drop(ctx, id, pos.X(), pos.Y())
	case 't':
		_, err = c.Teleport(ctx, id, pos.X(), pos.Y(), true)
	case 'h':
		_, err = c.Disappear(ctx, id)
	case 's':
		_, err = c.Appear(ctx, id, pos.X(), pos.Y())
	}
	if err != nil {
		ui.addMessage("%c %s: %v", key, id, err)
		return
	}
	ui.addMessage("%c %s -> (%.0f, %.0f)", key, id, pos.X(), pos.Y())
}

func post(replica *client.Replica, ui *uiState, fn func(*client.Replica) error) {
	err := replica.Post(func(r *client.Replica) {
		if err := fn(r); err != nil {
			ui.addMessage("prediction: %v", err)
		}
	})
	if err != nil {
		ui.addMessage("prediction: %v", err)
	}
}

// renderSystem draws the replica after receive and prediction ran.
type renderSystem struct {
	replica *client.Replica
	ui      *uiState
}

func (r *renderSystem) Name() string { return "render" }

func (r *renderSystem) Init(gameloop.Dependencies) error { return nil }

func (r *renderSystem) Tick(ctx context.Context, dt time.Duration) {
	termbox.Clear(termbox.ColorDefault, termbox.ColorDefault)
	width, _ := termbox.Size()

	grid := r.replica.Grid()
	if grid == nil {
		drawText(0, 0, width, "Ожидание данных мира...", termbox.ColorYellow, termbox.ColorDefault)
		termbox.Flush()
		return
	}

	views := r.replica.Views()
	ids := make([]string, len(views))
	for i, v := range views {
		ids[i] = v.ID
	}

	r.ui.mu.Lock()
	r.ui.ids = ids
	cursor := r.ui.cursor
	selected := ""
	if len(ids) > 0 {
		selected = ids[r.ui.selected%len(ids)]
	}
	messages := append([]string(nil), r.ui.messages...)
	r.ui.mu.Unlock()

	const top = 2
	for y := 0; y < grid.Height(); y++ {
		for x := 0; x < grid.Width(); x++ {
			ch, fg, bg := '.', termbox.ColorDarkGray, termbox.ColorDefault
			if !grid.IsFree(transform.Cell{X: x, Y: y}) {
				ch, fg, bg = '#', termbox.ColorWhite, termbox.ColorDarkGray
			}
			if cursor.X == x && cursor.Y == y {
				bg = termbox.ColorBlue
			}
			termbox.SetCell(x, y+top, ch, fg, bg)
		}
	}

	for _, v := range views {
		if !v.Visible || !grid.InBounds(v.Cell) {
			continue
		}
		fg := termbox.ColorGreen
		if v.Floating {
			fg = termbox.ColorYellow
		}
		if v.ID == selected {
			fg = termbox.ColorRed
		}
		ch := []rune(v.ID)[0]
		if v.Stacked > 1 && v.Stacked < 10 {
			ch = rune('0' + v.Stacked)
		}
		termbox.SetCell(v.Cell.X, v.Cell.Y+top, ch, fg|termbox.AttrBold, termbox.ColorDefault)
	}

	info := r.replica.Info()
	stats := r.replica.Stats()
	header := fmt.Sprintf("%s | seed %d | выбран: %s | курсор (%d, %d)", info.ClientID, info.Seed, selected, cursor.X, cursor.Y)
	drawText(0, 0, width, header, termbox.ColorWhite, termbox.ColorDefault)
	if *debugMode {
		debug := fmt.Sprintf("applied %d discarded %d ignored %d", stats.Applied, stats.Discarded, stats.Ignored)
		drawText(0, 1, width, debug, termbox.ColorYellow, termbox.ColorDefault)
	}

	msgY := top + grid.Height() + 1
	if reason := r.replica.ShutdownReason(); reason != "" {
		drawText(0, msgY, width, reason, termbox.ColorRed, termbox.ColorDefault)
		msgY++
	}
	for i, msg := range messages {
		drawText(0, msgY+i, width, msg, termbox.ColorCyan, termbox.ColorDefault)
	}

	instructions := "Стрелки: курсор | Tab: выбор | d: drop | t: teleport | h: hide | s: show | q: выход"
	drawText(0, msgY+maxMessages+1, width, instructions, termbox.ColorWhite, termbox.ColorDefault)
	termbox.Flush()
}

// drawText выводит текст, обрезая его по ширине
func drawText(x, y, maxWidth int, text string, fg, bg termbox.Attribute) {
	for i, ch := range []rune(text) {
		if x+i >= maxWidth {
			break
		}
		termbox.SetCell(x+i, y, ch, fg, bg)
	}
}
