package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
)

// ChatMessage mirrors the feed payload the tracker consumes.
type ChatMessage struct {
	ID         string    `json:"id"`
	GroupID    string    `json:"group_id"`
	ChannelID  string    `json:"channel_id,omitempty"`
	AuthorID   string    `json:"author_id"`
	AuthorName string    `json:"author_name,omitempty"`
	FromBot    bool      `json:"from_bot,omitempty"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
}

var playerNames = []string{
	"Phoenix", "Shadow", "Thunder", "Storm", "Blaze", "Ninja", "Dragon", "Wolf", "Hawk", "Viper",
	"Ghost", "Titan", "Frost", "Cyber", "Nova", "Raven", "Omega", "Alpha", "Delta", "Sigma",
}

var chatterLines = []string{
	"wow tough one today",
	"anyone else get the desert photo?",
	"brutal round 3",
	"gg everyone",
	"I was way off on the year",
}

func getPlayerName(idx int) string {
	name := playerNames[idx%len(playerNames)]
	suffix := idx/len(playerNames) + 1
	return fmt.Sprintf("%s%d", name, suffix)
}

// formatScore renders n with thousands separators, matching the share
// text the game produces.
func formatScore(n int) string {
	s := strconv.Itoa(n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

func main() {
	// Command line flags
	brokers := flag.String("brokers", "localhost:9094", "Kafka brokers (comma-separated)")
	topic := flag.String("topic", "chat-messages", "Kafka topic")
	groupID := flag.String("group", "group1", "Chat group ID")
	channelID := flag.String("channel", "scores", "Chat channel ID")
	totalPlayers := flag.Int("players", 10, "Number of players posting results")
	gameNumber := flag.Int("game", 500, "Game number for today's results")
	messagesPerSecond := flag.Int("rate", 10, "Messages per second")
	duration := flag.Duration("duration", 0, "Duration to run (0 = forever)")
	flag.Parse()

	brokerList := strings.Split(*brokers, ",")

	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println("  🌍 Chat Feed Producer")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("  Brokers:       %s\n", *brokers)
	fmt.Printf("  Topic:         %s\n", *topic)
	fmt.Printf("  Group:         %s\n", *groupID)
	fmt.Printf("  Players:       %d\n", *totalPlayers)
	fmt.Printf("  Game number:   %d\n", *gameNumber)
	fmt.Printf("  Messages/sec:  %d\n", *messagesPerSecond)
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()

	// Configure Sarama producer
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Flush.Frequency = 100 * time.Millisecond
	config.Producer.Flush.Messages = 100
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true

	// Create producer
	producer, err := sarama.NewAsyncProducer(brokerList, config)
	if err != nil {
		log.Fatalf("Failed to create producer: %v", err)
	}
	defer producer.Close()

	// Handle producer errors and successes
	var successCount, errorCount int64
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for range producer.Successes() {
			atomic.AddInt64(&successCount, 1)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for err := range producer.Errors() {
			atomic.AddInt64(&errorCount, 1)
			log.Printf("Producer error: %v", err)
		}
	}()

	// Handle shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})

	// Send message helper
	sendMessage := func(msg ChatMessage) {
		data, err := json.Marshal(msg)
		if err != nil {
			log.Printf("Failed to marshal message: %v", err)
			return
		}

		pm := &sarama.ProducerMessage{
			Topic: *topic,
			Key:   sarama.StringEncoder(msg.GroupID),
			Value: sarama.ByteEncoder(data),
		}

		select {
		case producer.Input() <- pm:
		case <-done:
			return
		}
	}

	makeMessage := func() ChatMessage {
		playerIdx := rand.Intn(*totalPlayers)
		msg := ChatMessage{
			ID:         uuid.New().String(),
			GroupID:    *groupID,
			ChannelID:  *channelID,
			AuthorID:   fmt.Sprintf("player-%d", playerIdx),
			AuthorName: getPlayerName(playerIdx),
			Timestamp:  time.Now().UTC(),
		}

		// Roughly one in four messages is plain chatter
		if rand.Intn(100) < 25 {
			msg.Content = chatterLines[rand.Intn(len(chatterLines))]
			return msg
		}

		score := rand.Intn(30000) + 20000
		msg.Content = fmt.Sprintf("TimeGuessr #%d %s/50,000", *gameNumber, formatScore(score))
		return msg
	}

	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	interval := time.Second / time.Duration(*messagesPerSecond)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	statsTicker := time.NewTicker(5 * time.Second)
	defer statsTicker.Stop()

	var endTime time.Time
	if *duration > 0 {
		endTime = time.Now().Add(*duration)
	}

	var sentCount int64

	shutdown := func() {
		close(done)
		producer.AsyncClose()
		wg.Wait()
		fmt.Printf("\n✓ Completed. Sent: %d, Errors: %d\n", atomic.LoadInt64(&successCount), atomic.LoadInt64(&errorCount))
	}

	for {
		select {
		case <-sigChan:
			fmt.Println("\n\nShutting down...")
			shutdown()
			return

		case <-ticker.C:
			if *duration > 0 && time.Now().After(endTime) {
				fmt.Println("\n\nDuration reached, shutting down...")
				shutdown()
				return
			}

			sendMessage(makeMessage())
			atomic.AddInt64(&sentCount, 1)

		case <-statsTicker.C:
			sent := atomic.LoadInt64(&sentCount)
			success := atomic.LoadInt64(&successCount)
			errors := atomic.LoadInt64(&errorCount)
			fmt.Printf("[%s] Produced: %d | Acked: %d | Errors: %d\n",
				time.Now().Format("15:04:05"),
				sent,
				success,
				errors,
			)
		}
	}
}
