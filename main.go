package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/TFMV/echocolor/ingest"
	"github.com/TFMV/echocolor/models"
	"github.com/TFMV/echocolor/physics"
	"github.com/TFMV/echocolor/playback"
	"github.com/TFMV/echocolor/render"
	"github.com/TFMV/echocolor/server"
	"github.com/TFMV/echocolor/store"
)

// Configuration represents all the settings for the application
type Configuration struct {
	Mode          string
	GraphFile     string
	OpsFile       string
	OutputFile    string
	FrameFormat   string
	Port          int
	Width         float64
	Height        float64
	Delay         time.Duration
	Layout        string
	StoreDir      string
	Timestamp     bool
	DebugMode     bool
	MaxIterations int
}

func main() {
	// Create a context that can be canceled on SIGINT/SIGTERM
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		log.Println("Received shutdown signal, gracefully shutting down...")
		cancel()
	}()

	config := parseConfig()

	if config.DebugMode {
		log.SetFlags(log.LstdFlags | log.Lshortfile | log.Lmicroseconds)
		log.Println("Debug mode enabled")
	} else {
		log.SetFlags(log.LstdFlags)
	}

	var err error
	switch config.Mode {
	case "server":
		err = runServer(ctx, config)
	case "play":
		err = runPlayback(ctx, config)
	default:
		err = runRender(config)
	}
	if err != nil {
		log.Fatalf("%s failed: %v", config.Mode, err)
	}
}

// parseConfig parses command-line flags and returns a Configuration object
func parseConfig() *Configuration {
	config := &Configuration{}

	// Basic options
	flag.StringVar(&config.Mode, "mode", "svg", "Mode: svg, png, ascii, dot, json, play, server")
	flag.StringVar(&config.GraphFile, "graph", "", "Path to graph file (JSON or CSV)")
	flag.StringVar(&config.OpsFile, "ops", "", "Path to operation file (JSON or script) for play and server modes")
	flag.StringVar(&config.OutputFile, "output", "", "Path to output file (defaults to 'output.[format]')")
	flag.StringVar(&config.FrameFormat, "format", "svg", "Format of the final frame in play mode")
	flag.IntVar(&config.Port, "port", 8080, "Port for server mode")

	// Visualization options
	flag.Float64Var(&config.Width, "width", 600.0, "Width of the canvas")
	flag.Float64Var(&config.Height, "height", 600.0, "Height of the canvas")
	flag.DurationVar(&config.Delay, "delay", playback.DefaultDelay, "Pause between playback steps")
	flag.StringVar(&config.Layout, "layout", "force", "Layout for unplaced vertices: force, noise")
	flag.BoolVar(&config.Timestamp, "timestamp", false, "Include timestamp in SVG output")

	// Advanced options
	flag.StringVar(&config.StoreDir, "store", "", "Snapshot directory for server mode (empty keeps snapshots in memory)")
	flag.BoolVar(&config.DebugMode, "debug", false, "Enable debug logging")
	flag.IntVar(&config.MaxIterations, "iterations", 300, "Maximum iterations for the layout")

	flag.Parse()

	if config.GraphFile == "" && config.Mode != "server" {
		fmt.Println("Please provide a graph file using -graph flag")
		flag.Usage()
		os.Exit(1)
	}
	if config.Mode == "play" && config.OpsFile == "" {
		fmt.Println("Please provide an operation file using -ops flag")
		flag.Usage()
		os.Exit(1)
	}

	if config.OutputFile == "" {
		format := config.Mode
		if format == "play" {
			format = config.FrameFormat
		}
		config.OutputFile = "output." + extension(format)
	}

	return config
}

func extension(format string) string {
	switch format {
	case "ascii":
		return "txt"
	case "dot":
		return "gv"
	default:
		return format
	}
}

// readGraph loads a graph payload, picking the processor from the extension
func readGraph(path string) (models.GraphPayload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.GraphPayload{}, fmt.Errorf("failed to read graph: %w", err)
	}
	processor, err := ingest.GetProcessor(ingest.FormatFromPath(path))
	if err != nil {
		return models.GraphPayload{}, err
	}
	payload, err := processor.ProcessData(data)
	if err != nil {
		return models.GraphPayload{}, fmt.Errorf("failed to process %s: %w", path, err)
	}
	return payload, nil
}

// readOperations loads an operation queue, picking the processor from the extension
func readOperations(path string) ([]models.Operation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read operations: %w", err)
	}
	processor, err := ingest.GetOperationProcessor(ingest.FormatFromPath(path))
	if err != nil {
		return nil, err
	}
	ops, err := processor.ProcessOperations(data)
	if err != nil {
		return nil, fmt.Errorf("failed to process %s: %w", path, err)
	}
	return ops, nil
}

// loadGraph builds the graph and returns the names of the vertices the
// file gave no position
func loadGraph(config *Configuration) (*models.Graph, []string, error) {
	payload, err := readGraph(config.GraphFile)
	if err != nil {
		return nil, nil, err
	}
	graph := models.NewGraph()
	if err := graph.Load(payload); err != nil {
		return nil, nil, err
	}
	if config.DebugMode {
		log.Printf("Loaded %d vertices (%d unplaced) and %d edges from %s",
			graph.VertexCount(), len(payload.Unplaced), graph.EdgeCount(), config.GraphFile)
	}
	return graph, payload.Unplaced, nil
}

func outputOptions(config *Configuration, format string) *render.OutputOptions {
	options := render.NewDefaultOptions(format)
	options.Width = config.Width
	options.Height = config.Height
	options.Timestamp = config.Timestamp
	return options
}

// runRender renders the graph once in the format named by the mode
func runRender(config *Configuration) error {
	graph, free, err := loadGraph(config)
	if err != nil {
		return err
	}
	layout, err := physics.GetLayoutAlgorithm(config.Layout)
	if err != nil {
		return err
	}

	output, err := render.Generate(graph, layout, free, config.MaxIterations, outputOptions(config, config.Mode))
	if err != nil {
		return err
	}
	if err := os.WriteFile(config.OutputFile, output, 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	log.Printf("Processing complete. Output saved to %s", config.OutputFile)
	return nil
}

// runPlayback plays the operation file against the graph in real time and
// writes the final frame
func runPlayback(ctx context.Context, config *Configuration) error {
	graph, free, err := loadGraph(config)
	if err != nil {
		return err
	}
	ops, err := readOperations(config.OpsFile)
	if err != nil {
		return err
	}
	layout, err := physics.GetLayoutAlgorithm(config.Layout)
	if err != nil {
		return err
	}
	if len(free) > 0 {
		physics.Run(layout, graph, free, config.Width, config.Height, config.MaxIterations)
	}
	renderer, err := render.GetRenderer(config.FrameFormat)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	loop := playback.NewLoop(16)
	loop.Start(ctx)

	scene := render.NewScene()
	finished := make(chan struct{})
	err = loop.Do(ctx, func() {
		graph.Attach(scene)
		engine := playback.New(graph, playback.NewTimerScheduler(loop), playback.WithDelay(config.Delay))
		engine.AddStateListener(func(prev, next playback.State) {
			if config.DebugMode {
				log.Printf("Playback %s -> %s", prev, next)
			}
			if next == playback.Finished {
				close(finished)
			}
		})
		engine.AddProgressListener(func(op models.Operation, cursor, total int) {
			log.Printf("Step %d/%d: swap %d<->%d at %q, %d invalid edges",
				cursor, total, op.ColorA, op.ColorB, op.Vertex, len(graph.InvalidEdges()))
		})
		engine.LoadOperations(ops)
		engine.Play()
	})
	if err != nil {
		return err
	}

	select {
	case <-finished:
	case <-ctx.Done():
		return ctx.Err()
	}

	var output []byte
	var renderErr error
	options := outputOptions(config, config.FrameFormat)
	err = loop.Do(ctx, func() {
		if enc, ok := renderer.(render.SceneEncoder); ok {
			output, renderErr = enc.Encode(scene, options)
		} else {
			output, renderErr = renderer.Render(graph, options)
		}
	})
	if err != nil {
		return err
	}
	if renderErr != nil {
		return fmt.Errorf("final frame: %w", renderErr)
	}
	if err := os.WriteFile(config.OutputFile, output, 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	log.Printf("Playback complete. Final frame saved to %s", config.OutputFile)
	return nil
}

// runServer serves sessions, preloading the graph and operation files when given
func runServer(ctx context.Context, config *Configuration) error {
	st, err := store.Open(config.StoreDir)
	if err != nil {
		return err
	}
	defer st.Close()

	srv := server.New(ctx, &server.Config{
		Port:        config.Port,
		Delay:       config.Delay,
		Layout:      config.Layout,
		LayoutSteps: config.MaxIterations,
		Width:       config.Width,
		Height:      config.Height,
		DebugMode:   config.DebugMode,
	}, st)

	if config.GraphFile != "" {
		payload, err := readGraph(config.GraphFile)
		if err != nil {
			return err
		}
		sess, err := srv.CreateSession(payload, "")
		if err != nil {
			return err
		}
		if config.OpsFile != "" {
			ops, err := readOperations(config.OpsFile)
			if err != nil {
				return err
			}
			if _, err := srv.LoadOperations(ctx, sess.ID, ops); err != nil {
				return err
			}
		}
		log.Printf("Preloaded session %s", sess.ID)
	}

	return srv.ListenAndServe(ctx)
}
