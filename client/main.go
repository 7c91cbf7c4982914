// Command client is a minimal terminal chat client: logs in, joins a
// room and bridges stdin to the server's event stream.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/atultiwari1305/coon/pkg/model"
)

type loginResponse struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
}

func login(apiAddr, userID string) (*loginResponse, error) {
	reqBody, _ := json.Marshal(map[string]string{"user_id": userID})
	resp, err := http.Post(apiAddr+"/login", "application/json", bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("login failed: %s", string(body))
	}

	var loginResp loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&loginResp); err != nil {
		return nil, err
	}
	return &loginResp, nil
}

type frame struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

func writeFrame(c *websocket.Conn, event string, data interface{}) error {
	payload, err := json.Marshal(frame{Event: event, Data: data})
	if err != nil {
		return err
	}
	return c.WriteMessage(websocket.TextMessage, payload)
}

type inboundEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func printEvent(raw []byte) {
	var ev inboundEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		fmt.Printf("\rreceived raw: %s\n> ", raw)
		return
	}

	switch ev.Event {
	case "message_history":
		var hist struct {
			Messages []model.Message `json:"messages"`
			Error    string          `json:"error"`
		}
		if err := json.Unmarshal(ev.Data, &hist); err != nil {
			return
		}
		if hist.Error != "" {
			fmt.Printf("\rhistory unavailable: %s\n> ", hist.Error)
			return
		}
		for _, m := range hist.Messages {
			fmt.Printf("\r[%d] %s: %s\n", m.ID, m.SenderID, m.Content)
		}
		fmt.Print("> ")
	case "receive_message":
		var m model.Message
		if err := json.Unmarshal(ev.Data, &m); err != nil {
			return
		}
		fmt.Printf("\r[%d] %s: %s\n> ", m.ID, m.SenderID, m.Content)
	case "message_deleted":
		var d struct {
			MessageID int64 `json:"messageId"`
		}
		if err := json.Unmarshal(ev.Data, &d); err != nil {
			return
		}
		fmt.Printf("\rmessage %d deleted\n> ", d.MessageID)
	case "channel_cleared":
		fmt.Print("\rchannel cleared\n> ")
	case "error":
		fmt.Printf("\rserver error: %s\n> ", ev.Data)
	}
}

func main() {
	serverAddr := flag.String("addr", "localhost:5001", "server address")
	userID := flag.String("user", "", "user id (anonymous when empty)")
	room := flag.String("room", model.GeneralChannel, "room to join")
	flag.Parse()

	resp, err := login("http://"+*serverAddr, *userID)
	if err != nil {
		log.Fatal("login: ", err)
	}
	log.Printf("logged in as %s", resp.UserID)

	u := url.URL{Scheme: "ws", Host: *serverAddr, Path: "/ws"}
	header := http.Header{}
	header.Add("Authorization", "Bearer "+resp.Token)

	c, _, err := websocket.DefaultDialer.Dial(u.String(), header)
	if err != nil {
		log.Fatal("dial: ", err)
	}
	defer c.Close()

	if err := writeFrame(c, "join_room", map[string]string{"room": *room}); err != nil {
		log.Fatal("join: ", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, raw, err := c.ReadMessage()
			if err != nil {
				log.Println("read:", err)
				return
			}
			printEvent(raw)
		}
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	quit := make(chan struct{})

	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		fmt.Print("> ")
		for scanner.Scan() {
			text := strings.TrimSpace(scanner.Text())
			switch {
			case text == "":
			case text == "/quit":
				// interrupt stays open: the runtime may still deliver a
				// signal into it.
				close(quit)
				return
			case text == "/clear":
				if err := writeFrame(c, "clear_channel", map[string]string{"channelName": *room}); err != nil {
					log.Println("write:", err)
					return
				}
			case strings.HasPrefix(text, "/delete "):
				id, err := strconv.ParseInt(strings.TrimPrefix(text, "/delete "), 10, 64)
				if err != nil {
					fmt.Println("usage: /delete <message id>")
					break
				}
				if err := writeFrame(c, "delete_message", map[string]int64{"messageId": id}); err != nil {
					log.Println("write:", err)
					return
				}
			default:
				err := writeFrame(c, "send_message", map[string]interface{}{
					"room":      *room,
					"message":   text,
					"timestamp": time.Now(),
				})
				if err != nil {
					log.Println("write:", err)
					return
				}
			}
			fmt.Print("> ")
		}
	}()

	select {
	case <-done:
		return
	case <-interrupt:
	case <-quit:
	}
	signal.Stop(interrupt)

	err = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		log.Println("write close:", err)
		return
	}
	select {
	case <-done:
	case <-time.After(time.Second):
	}
}
