package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"snapvault/internal/backup"
	"snapvault/internal/client"
	"snapvault/internal/config"
	"snapvault/internal/device"
	"snapvault/internal/hub"
	"snapvault/internal/server"
	"snapvault/internal/source"
	"snapvault/internal/store"
)

const appVersion = "1.0.0"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	cmd := "backup"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "backup":
		runBackup(cfg)
	case "history":
		runHistory(cfg)
	default:
		log.Fatalf("unknown command %q (want backup or history)", cmd)
	}
}

func runBackup(cfg config.Config) {
	ctx := context.Background()

	st, err := store.Open(filepath.Join(cfg.DataDir, "snapvault.db"))
	if err != nil {
		log.Fatal(err)
	}

	identity, err := device.Collect(st, appVersion)
	if err != nil {
		log.Fatal(err)
	}

	perms := source.StaticPermissions{
		source.ScopeContacts: cfg.Granted(source.ScopeContacts),
		source.ScopeMedia:    cfg.Granted(source.ScopeMedia),
	}
	contacts := source.NewFileContacts(cfg.ContactsFile, perms)
	library := source.NewLibrary(cfg.MediaDir, perms)
	if err := library.Scan(); err != nil {
		log.Fatal(err)
	}
	if err := library.Watch(ctx); err != nil {
		log.Printf("media watcher unavailable: %v", err)
	}

	cl := client.New(cfg.ServerURL)
	events := hub.New()

	if cfg.StatusPort != 0 {
		gin.SetMode(cfg.GinMode)
		router := server.NewRouter(server.Deps{Store: st, Client: cl, Hub: events})
		go func() {
			if err := server.Run(cfg.StatusPort, router); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("status api: %v", err)
			}
		}()
		log.Printf("status api on 127.0.0.1:%d", cfg.StatusPort)
	}

	orch := backup.New(backup.Deps{
		Client:     cl,
		Contacts:   contacts,
		Media:      library,
		Locals:     st,
		Identity:   identity,
		BatchSize:  cfg.BatchSize,
		MediaCap:   cfg.MediaCap,
		BatchDelay: cfg.BatchDelay,
	})

	emit := func(ev backup.Event) {
		switch {
		case ev.Status != "":
			log.Print(ev.Status)
		case ev.Progress != nil:
			log.Printf("%s: %d/%d", ev.Progress.Type, ev.Progress.Processed, ev.Progress.Total)
		}
		if data, err := json.Marshal(ev); err == nil {
			events.Broadcast(data)
		}
	}

	result, err := orch.Run(ctx, emit)
	if err != nil {
		log.Fatalf("backup failed: %v", err)
	}
	log.Printf("session %s completed: %d contacts, %d media", result.SessionID, result.Contacts, result.Media)
}

func runHistory(cfg config.Config) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	page := fs.Int("page", 1, "history page")
	limit := fs.Int("limit", 20, "sessions per page")
	_ = fs.Parse(os.Args[2:])

	st, err := store.Open(filepath.Join(cfg.DataDir, "snapvault.db"))
	if err != nil {
		log.Fatal(err)
	}
	token, err := st.DeviceToken()
	if err != nil {
		log.Fatal(err)
	}
	if token == "" {
		log.Fatal("device is not registered yet; run `snapvault backup` first")
	}

	cl := client.New(cfg.ServerURL)
	cl.Token = token

	sessions, err := cl.History(context.Background(), *page, *limit)
	if err != nil {
		log.Fatal(err)
	}
	if len(sessions) == 0 {
		fmt.Println("no backup sessions")
		return
	}
	for _, s := range sessions {
		started := time.UnixMilli(s.StartedAt).Format(time.RFC3339)
		fmt.Printf("%s  %-9s  contacts=%d photos=%d videos=%d  %s\n",
			s.SessionID, s.Status, s.Contacts, s.Photos, s.Videos, started)
	}
}
