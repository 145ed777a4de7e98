package main

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/kelseyhightower/envconfig"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

type Config struct {
	RelayURL string `envconfig:"RELAY_URL" default:"ws://localhost:8000"`
	ChatID   int64  `envconfig:"CHAT_ID" required:"true"`
	Token    string `envconfig:"TOKEN" required:"true"`
	Colours  bool   `envconfig:"COLOURS" default:"true"`
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run joins one chat, prints every line the relay sends
// and sends every line typed on stdin.
func run() (int, error) {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	endpoint, err := url.Parse(config.RelayURL)
	if err != nil {
		return exitConfig, fmt.Errorf("invalid RELAY_URL: %w", err)
	}
	endpoint = endpoint.JoinPath("chat", strconv.FormatInt(config.ChatID, 10))
	endpoint.RawQuery = url.Values{"token": {config.Token}}.Encode()

	ws, resp, err := websocket.DefaultDialer.Dial(endpoint.String(), nil)
	if err != nil {
		if resp != nil {
			return exitRuntime, fmt.Errorf("dial %s: %w (HTTP %d)", config.RelayURL, err, resp.StatusCode)
		}
		return exitRuntime, fmt.Errorf("dial %s: %w", config.RelayURL, err)
	}
	defer ws.Close()

	render := func(style color.Style, text string) string {
		if config.Colours {
			return style.Render(text)
		}
		return text
	}
	incoming := color.New(color.FgGreen)
	notice := color.New(color.BgBlack, color.FgYellow)
	fmt.Println(render(notice, fmt.Sprintf("  ====== joined chat #%d ======", config.ChatID)))

	closed := make(chan error, 1)
	go func() {
		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				closed <- err
				return
			}
			fmt.Println(render(incoming, string(data)))
		}
	}()

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				closeGracefully(ws)
				return exitOK, nil
			}
			if line == "" {
				continue
			}
			if err = ws.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
				return exitRuntime, fmt.Errorf("send: %w", err)
			}
		case err = <-closed:
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				fmt.Println(render(notice, "  ====== relay closed the chat ======"))
				return exitOK, nil
			}
			return exitRuntime, fmt.Errorf("connection lost: %w", err)
		case <-signals:
			closeGracefully(ws)
			return exitOK, nil
		}
	}
}

func closeGracefully(ws *websocket.Conn) {
	_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
}
