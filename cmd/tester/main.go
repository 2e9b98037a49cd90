// Interactive relay client for manual testing: connects to the chat
// socket, authenticates with a token, prints every incoming envelope, and
// sends typed commands from stdin as raw JSON frames.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	addr := flag.String("addr", "ws://localhost:5000/ws", "chat socket address")
	token := flag.String("token", os.Getenv("RELAY_TOKEN"), "bearer token")
	flag.Parse()

	conn, _, err := websocket.DefaultDialer.Dial(*addr, nil)
	if err != nil {
		log.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	if *token != "" {
		frame := fmt.Sprintf(`{"type":"authenticate","token":%q}`, *token)
		if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
			log.Fatalf("Handshake failed: %v", err)
		}
	}

	go func() {
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				color.Red.Printf("Connection closed: %v\n", err)
				os.Exit(0)
			}
			paint(string(raw))
		}
	}()

	color.Cyan.Println("Type a raw JSON frame per line, Ctrl-D to quit")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
			log.Fatalf("Write failed: %v", err)
		}
	}
}

func paint(frame string) {
	switch {
	case strings.Contains(frame, `"new_message"`):
		color.Green.Println(frame)
	case strings.Contains(frame, `"user_online"`), strings.Contains(frame, `"user_offline"`):
		color.Yellow.Println(frame)
	case strings.Contains(frame, `"auth_error"`), strings.Contains(frame, `"error"`):
		color.Red.Println(frame)
	default:
		fmt.Println(frame)
	}
}
