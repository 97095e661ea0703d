package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"forumgraph/internal/forumtest"
)

func main() {
	port := flag.Int("port", 8080, "Port to run the demo forum on")
	host := flag.String("host", "localhost", "Host to bind the demo forum to")
	flag.Parse()

	forum := forumtest.New()
	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", *host, *port),
		Handler: forum.Handler(),
	}

	go func() {
		base := fmt.Sprintf("http://%s:%d", *host, *port)
		log.Printf("Demo forum %q starting on %s", forum.Name, base)
		log.Printf("Thread listing: %s%s", base, forum.NodePath())
		log.Printf("Feed: %s%sindex.rss", base, forum.NodePath())
		log.Printf("Try: forumgraph crawl --rate-limit 0 --forum-url %s%s", base, forum.NodePath())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Printf("Shutting down demo forum after %d requests...", forum.TotalHits())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Demo forum stopped")
}
