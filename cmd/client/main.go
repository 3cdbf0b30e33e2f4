package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/litka-chat/litka/pkg/client"
	"github.com/litka-chat/litka/pkg/logging"
)

func main() {
	url := flag.String("url", "ws://localhost:3000/ws", "Server WebSocket URL")
	username := flag.String("user", "", "Username")
	password := flag.String("password", "", "Password (falls back to LITKA_PASSWORD)")
	register := flag.Bool("register", false, "Create the account before joining")
	bookmarksPath := flag.String("bookmarks", "", "Bookmarks file (default: servers.yaml next to the binary)")
	flag.Parse()

	if err := logging.Setup(logging.Options{
		Level:     logging.LevelFromEnv("warn"),
		Output:    os.Stderr,
		Component: "client",
	}); err != nil {
		fmt.Fprintf(os.Stderr, "invalid logging config: %v\n", err)
		os.Exit(1)
	}

	if *username == "" {
		fmt.Fprintln(os.Stderr, "-user is required")
		os.Exit(2)
	}
	if *password == "" {
		*password = os.Getenv("LITKA_PASSWORD")
	}

	bookmarks := client.NewBookmarkStore(*bookmarksPath)
	if err := bookmarks.Load(); err != nil {
		slog.Warn("load bookmarks", "err", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	c, err := client.Dial(ctx, *url)
	cancel()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer c.Close()
	c.SetEventHandler(func(ev client.Event) {
		for _, line := range client.Format(ev) {
			fmt.Println(line)
		}
	})

	token, err := authenticate(c, bookmarks, *url, *username, *password, *register)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	bookmarks.Add(client.Bookmark{
		Name:     *username + "@" + *url,
		URL:      *url,
		Username: *username,
		Token:    token,
		LastUsed: time.Now().Unix(),
	})
	if err := bookmarks.Save(); err != nil {
		slog.Warn("save bookmarks", "err", err)
	}

	c.StartReceiving()
	if err := c.Join(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-c.Done():
			fmt.Println("* disconnected")
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if strings.TrimSpace(line) == "/quit" {
				return
			}
			if strings.TrimSpace(line) == "/logout" {
				_ = c.Logout()
				bookmarks.Forget(*url, *username)
				_ = bookmarks.Save()
				return
			}
			if err := send(c, line); err != nil {
				fmt.Fprintln(os.Stderr, err)
				return
			}
		}
	}
}

// authenticate resumes a bookmarked session when possible, otherwise logs in
// or registers with the password.
func authenticate(c *client.Client, bookmarks *client.BookmarkStore, url, username, password string, register bool) (string, error) {
	if b := bookmarks.Find(url, username); b != nil && b.Token != "" && !register {
		token, err := c.Resume(b.Token)
		if err == nil {
			return token, nil
		}
		slog.Info("saved session rejected, logging in", "err", err)
	}
	if password == "" {
		return "", fmt.Errorf("password required (use -password or LITKA_PASSWORD)")
	}
	if register {
		return c.Register(username, password)
	}
	return c.Login(username, password)
}

func send(c *client.Client, line string) error {
	if strings.TrimSpace(line) == "" {
		return nil
	}
	if command, args, ok := client.ParseInput(line); ok {
		return c.Custom(command, args...)
	}
	return c.Say(line)
}
