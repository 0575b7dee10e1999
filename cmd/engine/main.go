package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"folio/internal/engine"
	"folio/internal/logging"
	"folio/internal/spec"
)

func main() {
	var (
		configPath = flag.String("config", "engine.yml", "engine configuration file")
		eventPath  = flag.String("event", "", `run one step from a JSON event file ("-" reads stdin)`)
		finalPath  = flag.String("finalize", "", "bundle a finished execution from a JSON request file")
		serve      = flag.Bool("serve", false, "serve the HTTP API")
	)
	flag.Parse()

	logging.InitFromEnv()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	e, err := engine.Bootstrap(engine.Config{EngineYml: *configPath})
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}

	switch {
	case *serve:
		if err := e.Run(ctx); err != nil {
			log.Fatalf("engine: %v", err)
		}
	case *eventPath != "":
		var inv spec.Invocation
		if err := readJSON(*eventPath, &inv); err != nil {
			log.Fatalf("event: %v", err)
		}
		if inv.ExecutionID == "" {
			inv.ExecutionID = "local-" + uuid.NewString()
		}
		resp := e.Invoke(ctx, inv)
		e.Close()
		emit(resp, resp.StatusCode)
	case *finalPath != "":
		var req spec.FinalizeRequest
		if err := readJSON(*finalPath, &req); err != nil {
			log.Fatalf("finalize request: %v", err)
		}
		res := e.Finalize(ctx, req)
		e.Close()
		emit(res, res.StatusCode)
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func readJSON(path string, v any) error {
	var raw []byte
	var err error
	if path == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// emit prints the envelope and exits non-zero when the operation failed.
func emit(v any, status int) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("encode response: %v", err)
	}
	fmt.Println(string(out))
	if status >= 500 {
		os.Exit(1)
	}
}
