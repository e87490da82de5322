// Command feedwatch attaches websocket subscribers to a running feed server,
// optionally generates posts, and reports how many change events arrived.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"socialfeed/internal/notifications"
	"socialfeed/internal/timeago"

	"github.com/gorilla/websocket"
)

// Metrics tracks the run results
type Metrics struct {
	ConnectionsAttempted int64
	ConnectionsSuccess   int64
	ConnectionsFailed    int64
	PostsCreated         int64
	EventsReceived       int64
	Errors               int64
}

var metrics Metrics

type frame struct {
	Type    notifications.Topic `json:"type"`
	Seq     uint64              `json:"seq"`
	Payload json.RawMessage     `json:"payload"`
}

// describe summarises a frame payload: the post id and age for post events,
// the bare id for deletions.
func describe(f frame) string {
	var post struct {
		ID        string `json:"id"`
		CreatedAt string `json:"created_at"`
	}
	if err := json.Unmarshal(f.Payload, &post); err != nil {
		var id string
		_ = json.Unmarshal(f.Payload, &id)
		return id
	}
	return fmt.Sprintf("%s (posted %s)", post.ID, timeago.Since(post.CreatedAt))
}

func main() {
	host := flag.String("host", "localhost:8375", "API server host")
	topics := flag.String("topics", "", "Comma-separated topics (empty for all)")
	clients := flag.Int("clients", 10, "Number of concurrent subscribers")
	duration := flag.Duration("duration", 30*time.Second, "Run duration")
	token := flag.String("token", "", "Bearer token of a registered user; enables post generation")
	postEvery := flag.Duration("post-every", time.Second, "Interval between generated posts")
	verbose := flag.Bool("v", false, "Print every received frame")
	flag.Parse()

	if _, err := notifications.ParseTopics(*topics); err != nil {
		log.Fatalf("Invalid -topics: %v", err)
	}

	log.Printf("Target: %s, clients: %d, topics: %q, duration: %v", *host, *clients, *topics, *duration)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	var wg sync.WaitGroup
	stopChan := make(chan struct{})

	for i := 0; i < *clients; i++ {
		wg.Add(1)
		go runClient(*host, *topics, i, *verbose, stopChan, &wg)
	}

	if *token != "" {
		wg.Add(1)
		go generatePosts(*host, *token, *postEvery, stopChan, &wg)
	}

	select {
	case <-time.After(*duration):
		log.Println("Run duration reached")
	case <-interrupt:
		log.Println("Interrupted")
	}

	close(stopChan)
	wg.Wait()

	printMetrics()
}

func runClient(host, topics string, id int, verbose bool, stopChan <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()
	atomic.AddInt64(&metrics.ConnectionsAttempted, 1)

	u := url.URL{Scheme: "ws", Host: host, Path: "/ws"}
	if topics != "" {
		u.RawQuery = url.Values{"topics": {topics}}.Encode()
	}

	c, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		atomic.AddInt64(&metrics.ConnectionsFailed, 1)
		atomic.AddInt64(&metrics.Errors, 1)
		return
	}
	if resp != nil && resp.Body != nil {
		defer func() { _ = resp.Body.Close() }()
	}
	defer func() { _ = c.Close() }()

	atomic.AddInt64(&metrics.ConnectionsSuccess, 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}
			var f frame
			if err := json.Unmarshal(msg, &f); err != nil {
				atomic.AddInt64(&metrics.Errors, 1)
				continue
			}
			atomic.AddInt64(&metrics.EventsReceived, 1)
			if verbose {
				log.Printf("client %d: #%d %s %s", id, f.Seq, f.Type, describe(f))
			}
		}
	}()

	select {
	case <-stopChan:
		_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	case <-done:
	}
}

func generatePosts(host, token string, every time.Duration, stopChan <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()
	client := &http.Client{Timeout: 5 * time.Second}
	postURL := fmt.Sprintf("http://%s/api/posts", host)

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for n := 1; ; n++ {
		select {
		case <-stopChan:
			return
		case <-ticker.C:
			body, _ := json.Marshal(map[string]string{"body": fmt.Sprintf("feedwatch post %d", n)})
			req, _ := http.NewRequest(http.MethodPost, postURL, bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer "+strings.TrimPrefix(token, "Bearer "))

			resp, err := client.Do(req)
			if err != nil {
				atomic.AddInt64(&metrics.Errors, 1)
				continue
			}
			_ = resp.Body.Close()
			if resp.StatusCode != http.StatusCreated {
				atomic.AddInt64(&metrics.Errors, 1)
				continue
			}
			atomic.AddInt64(&metrics.PostsCreated, 1)
		}
	}
}

func printMetrics() {
	log.Println("Results")
	log.Println("=======")
	log.Printf("Connections Attempted: %d", atomic.LoadInt64(&metrics.ConnectionsAttempted))
	log.Printf("Connections Successful: %d", atomic.LoadInt64(&metrics.ConnectionsSuccess))
	log.Printf("Connections Failed: %d", atomic.LoadInt64(&metrics.ConnectionsFailed))
	log.Printf("Posts Created: %d", atomic.LoadInt64(&metrics.PostsCreated))
	log.Printf("Events Received: %d", atomic.LoadInt64(&metrics.EventsReceived))
	log.Printf("Total Errors: %d", atomic.LoadInt64(&metrics.Errors))
}
