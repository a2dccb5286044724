package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/ayusman/visor/internal/app"
	"github.com/ayusman/visor/internal/capture"
	"github.com/ayusman/visor/internal/launch"
	"github.com/ayusman/visor/internal/scene"
	"github.com/ayusman/visor/internal/server"
	"github.com/ayusman/visor/internal/tray"
)

func main() {
	var (
		addr         = flag.String("addr", ":8080", "HTTP listen address")
		webDirFlag   = flag.String("web", "", "directory with the viewer page and assets")
		launchQuery  = flag.String("launch", "", "launch query string, e.g. model=guy.glb&environment=night&head=true")
		model        = flag.String("model", "", "initial helmet model")
		environment  = flag.String("environment", "", "initial environment")
		head         = flag.Bool("head", false, "show the head mesh")
		cameraPrefer = flag.String("camera-prefer", capture.DefaultPreferred, "preferred camera label substring")
		useTray      = flag.Bool("tray", false, "show a system tray menu")
	)
	flag.Parse()

	fmt.Println("Visor - Virtual Helmet Viewer")

	params, err := launch.Parse(*launchQuery)
	if err != nil {
		log.Fatalf("Invalid launch parameters: %v", err)
	}

	// Explicit flags win over the launch query
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "model":
			params.Model = *model
		case "environment":
			params.Environment = *environment
		case "head":
			params.HeadVisible = *head
		}
	})

	webDir := *webDirFlag
	if webDir == "" {
		webDir = findWebDir()
	}
	if webDir != "" {
		fmt.Printf("Serving static files from: %s\n", webDir)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := server.NewSceneHub(nil)
	stream := server.NewStreamHandler(15)

	var t *tray.Tray
	composer := scene.Composer(hub)
	if *useTray {
		t = tray.New(params.HeadVisible)
		composer = scene.ComposerFunc(func(s scene.Snapshot) {
			hub.Compose(s)
			t.SetSelection(s.Model, s.Environment)
		})
	}

	cfg := app.DefaultConfig()
	cfg.Launch = params
	cfg.CameraPrefer = *cameraPrefer
	cfg.Composer = composer
	cfg.Sink = stream

	a, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create viewer: %v", err)
	}

	go a.Forward(ctx, hub.Events())
	if t != nil {
		go a.Forward(ctx, t.Events())
	}

	srv := server.New(server.Config{
		StaticDir: webDir,
		Hub:       hub,
		Stream:    stream,
		Status:    a.StatusFields,
	})

	appDone := make(chan error, 1)
	go func() { appDone <- a.Run(ctx) }()

	srvDone := make(chan error, 1)
	go func() {
		fmt.Printf("Starting server on %s\n", *addr)
		srvDone <- srv.ListenAndServe(ctx, *addr)
	}()

	if t != nil {
		t.OnOpen(func() {
			if err := openBrowser(viewerURL(*addr, params)); err != nil {
				log.Printf("Failed to open browser: %v", err)
			}
		})
		t.OnQuit(stop)
		go func() {
			<-ctx.Done()
			// systray.Run must return for main to exit
			t.Quit()
		}()
		// The tray must run on the main thread
		t.Run()
		stop()
	}

	select {
	case err := <-srvDone:
		if err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	case <-ctx.Done():
		<-srvDone
	}

	if err := <-appDone; err != nil {
		log.Printf("Viewer stopped with error: %v", err)
	}
}

// viewerURL returns the local viewer address carrying the launch parameters.
func viewerURL(addr string, p launch.Params) string {
	host := addr
	if len(host) > 0 && host[0] == ':' {
		host = "localhost" + host
	}
	return "http://" + host + "/?" + p.Values().Encode()
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and ~/.visor/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	homeWebDir := filepath.Join(homeDir, ".visor", "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}

	return ""
}
