// Command wsprobe logs in as one or more users, holds their realtime
// connections open and reports the events each one receives.
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
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

// Metrics tracks the probe results
type Metrics struct {
	ConnectionsAttempted int64
	ConnectionsSuccess   int64
	ConnectionsFailed    int64
	EventsReceived       int64
	Errors               int64
}

type event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

var metrics Metrics

func main() {
	host := flag.String("host", "localhost:8375", "API server host")
	password := flag.String("password", "password123", "Password shared by the probe accounts")
	duration := flag.Duration("duration", 30*time.Second, "Probe duration")
	verbose := flag.Bool("v", false, "Print every event")
	flag.Parse()

	emails := flag.Args()
	if len(emails) == 0 {
		emails = []string{"alice@example.com", "bob@example.com"}
	}

	log.Printf("🚀 Starting realtime probe against %s for %v", *host, *duration)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	var wg sync.WaitGroup
	stopChan := make(chan struct{})

	for _, email := range emails {
		token, err := login(*host, email, *password)
		if err != nil {
			log.Printf("❌ Login failed for %s: %v", email, err)
			atomic.AddInt64(&metrics.Errors, 1)
			continue
		}
		wg.Add(1)
		go runClient(*host, email, token, *verbose, stopChan, &wg)
		// Stagger connections so presence events are observable.
		time.Sleep(250 * time.Millisecond)
	}

	select {
	case <-time.After(*duration):
		log.Println("⏱️  Probe duration reached")
	case <-interrupt:
		log.Println("🛑 Interrupted by user")
	}

	close(stopChan)
	wg.Wait()

	printMetrics()
}

func login(host, email, password string) (string, error) {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return "", err
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Post(fmt.Sprintf("http://%s/api/login", host), "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login failed with status %d", resp.StatusCode)
	}

	var result struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.Token, nil
}

func runClient(host, email, token string, verbose bool, stopChan <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()
	atomic.AddInt64(&metrics.ConnectionsAttempted, 1)

	u := url.URL{Scheme: "ws", Host: host, Path: "/api/ws"}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	c, resp, err := websocket.DefaultDialer.Dial(u.String(), header)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		log.Printf("❌ %s: dial failed (status %d): %v", email, status, err)
		atomic.AddInt64(&metrics.ConnectionsFailed, 1)
		atomic.AddInt64(&metrics.Errors, 1)
		return
	}
	if resp != nil && resp.Body != nil {
		defer func() { _ = resp.Body.Close() }()
	}
	defer func() { _ = c.Close() }()

	atomic.AddInt64(&metrics.ConnectionsSuccess, 1)
	log.Printf("✅ %s connected", email)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, data, err := c.ReadMessage()
			if err != nil {
				return
			}
			atomic.AddInt64(&metrics.EventsReceived, 1)
			if !verbose {
				continue
			}
			var ev event
			if err := json.Unmarshal(data, &ev); err != nil {
				log.Printf("%s: unparseable frame: %s", email, data)
				continue
			}
			log.Printf("%s ← %s %s", email, ev.Type, ev.Payload)
		}
	}()

	select {
	case <-stopChan:
		_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		select {
		case <-done:
		case <-time.After(time.Second):
		}
	case <-done:
		log.Printf("%s: server closed the connection", email)
	}
}

func printMetrics() {
	log.Println("📊 Probe Results")
	log.Println("===============")
	log.Printf("Connections Attempted: %d", atomic.LoadInt64(&metrics.ConnectionsAttempted))
	log.Printf("Connections Successful: %d", atomic.LoadInt64(&metrics.ConnectionsSuccess))
	log.Printf("Connections Failed: %d", atomic.LoadInt64(&metrics.ConnectionsFailed))
	log.Printf("Events Received: %d", atomic.LoadInt64(&metrics.EventsReceived))
	log.Printf("Total Errors: %d", atomic.LoadInt64(&metrics.Errors))
}
