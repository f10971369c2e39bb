package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"gamevault/internal/events"
	synchub "gamevault/internal/sync"
	"gamevault/pkg/logging"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:7070", "TCP sync server address")
	natsURL := flag.String("nats", "", "read events from this NATS server instead of the TCP feed")
	userID := flag.String("user", "", "only show events of this user id")
	pretty := flag.Bool("pretty", true, "pretty print JSON events")
	flag.Parse()

	logger, err := logging.New("info", true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	logger = logger.Named("sync-client")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *natsURL != "" {
		if err := tailNATS(ctx, *natsURL, *userID, *pretty, logger); err != nil {
			logger.Fatal("nats feed failed", zap.Error(err))
		}
		return
	}

	for ctx.Err() == nil {
		if err := run(ctx, *addr, *userID, *pretty, logger); err != nil {
			logger.Warn("disconnected", zap.Error(err))
		}
		select {
		case <-ctx.Done():
		case <-time.After(time.Second): // reconnect
		}
	}
}

func run(ctx context.Context, addr, userID string, pretty bool, logger *zap.Logger) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	logger.Info("connected", zap.String("addr", addr))
	if userID != "" {
		msg, _ := json.Marshal(map[string]string{"type": "subscribe", "user_id": userID})
		if _, err := conn.Write(append(msg, '\n')); err != nil {
			return fmt.Errorf("subscribe: %w", err)
		}
	}

	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		printEvent(sc.Bytes(), pretty)
	}
	if err := sc.Err(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func tailNATS(ctx context.Context, url, userID string, pretty bool, logger *zap.Logger) error {
	sub, err := events.NewNATSSubscriber(url)
	if err != nil {
		return err
	}
	defer sub.Close()

	logger.Info("following library events", zap.String("nats", url))
	return events.Relay(ctx, sub, func(ev synchub.LibraryEvent) {
		if userID != "" && ev.UserID != userID {
			return
		}
		b, err := json.Marshal(ev)
		if err != nil {
			return
		}
		printEvent(b, pretty)
	}, logger)
}

func printEvent(line []byte, pretty bool) {
	if !pretty {
		fmt.Println(string(line))
		return
	}
	var obj map[string]any
	if err := json.Unmarshal(line, &obj); err != nil {
		fmt.Println(string(line)) // not JSON
		return
	}
	b, _ := json.MarshalIndent(obj, "", "  ")
	fmt.Println(string(b))
}
