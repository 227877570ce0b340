package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"nasfaqv2/brokerbot/ytmonitor/internal/config"
	"nasfaqv2/brokerbot/ytmonitor/internal/db"
)

func main() {
	list := flag.Bool("list", false, "list active channels and exit")
	deactivate := flag.String("deactivate", "", "deactivate the channel with this id (or name, for virtual channels) and exit")
	flag.Parse()

	config.LoadDotEnv()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatalf("missing DATABASE_URL")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pool, err := db.NewPool(ctx, dbURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	if err := db.ApplySchema(ctx, pool); err != nil {
		log.Fatalf("schema: %v", err)
	}

	switch {
	case *list:
		channels, err := db.ListActiveChannels(ctx, pool)
		if err != nil {
			log.Fatalf("db: %v", err)
		}
		for _, ch := range channels {
			src := ch.Source()
			fmt.Printf("%-28s %s\n", src.Key(), src.DisplayName())
		}
		return
	case *deactivate != "":
		if err := db.DeactivateChannel(ctx, pool, *deactivate); err != nil {
			log.Fatalf("db: %v", err)
		}
		fmt.Printf("OK: deactivated %s\n", *deactivate)
		return
	}

	in := bufio.NewReader(os.Stdin)

	fmt.Println("Add channels to yt.monitored_channels.")
	fmt.Println("Leave youtube_channel_id empty for a virtual channel fed by snapshots only.")
	fmt.Println("Enter 'q' at any prompt to quit.")
	fmt.Println()

	for {
		id, ok := prompt(in, "youtube_channel_id (optional)")
		if !ok {
			return
		}

		name, ok := prompt(in, "name")
		if !ok {
			return
		}
		if name == "" {
			fmt.Println("name is required.")
			fmt.Println()
			continue
		}

		var channelID *string
		if id != "" {
			s := id
			channelID = &s
		}
		ch := db.Channel{YouTubeChannelID: channelID, Name: name}

		if err := db.UpsertChannel(ctx, pool, ch); err != nil {
			fmt.Printf("ERROR: %v\n\n", err)
			continue
		}

		fmt.Printf("OK: upserted channel %s (%s)\n\n", ch.Source().Key(), name)
	}
}

func prompt(in *bufio.Reader, label string) (string, bool) {
	fmt.Printf("%s: ", label)
	raw, err := in.ReadString('\n')
	if err != nil {
		return "", false
	}
	s := strings.TrimSpace(raw)
	if strings.EqualFold(s, "q") {
		return "", false
	}
	return s, true
}
