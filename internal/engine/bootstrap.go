package engine

import (
	"fmt"

	"folio/internal/config"
	"folio/internal/pipeline"
	"folio/internal/spec"
	"folio/internal/telemetry"
	"folio/notify"
	"folio/notify/kafka"
	"folio/notify/stdout"
	"folio/storage"

	_ "folio/storage/fs"
	_ "folio/storage/s3"
)

type Config struct {
	EngineYml string
}

func Bootstrap(cfg Config) (*Engine, error) {
	// 1. engine spec + storage driver
	fileSpec, storagePath, err := config.LoadEngineSpec(cfg.EngineYml)
	if err != nil {
		return nil, fmt.Errorf("engine spec: %w", err)
	}
	sc, err := config.LoadStorageConfig(storagePath)
	if err != nil {
		return nil, fmt.Errorf("storage config: %w", err)
	}
	store, err := storage.Open(fileSpec.Storage.Kind, sc)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}

	// 2. optional notifier
	notifier, err := buildNotifier(fileSpec)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("notifier: %w", err)
	}

	// 3. runner + metrics
	opts := []pipeline.Option{pipeline.WithRegisterKey(fileSpec.RegisterKey)}
	if notifier != nil {
		opts = append(opts, pipeline.WithNotifier(notifier))
	}
	runner := pipeline.NewRunner(store, opts...)

	telemetry.Expose(fileSpec.MetricsPort)

	return &Engine{
		file:     fileSpec,
		runner:   runner,
		store:    store,
		notifier: notifier,
	}, nil
}

// buildNotifier maps the engine.yml notify section onto a driver. An empty
// kind disables notification entirely.
func buildNotifier(f spec.File) (notify.Adapter, error) {
	if f.Notify.Kind == "" {
		return nil, nil
	}
	adapter, err := notify.NewAdapter(f.Notify.Kind)
	if err != nil {
		return nil, err
	}
	switch f.Notify.Kind {
	case "kafka":
		err = adapter.Configure(kafka.Config{
			Brokers: f.Notify.Kafka.Brokers,
			Topic:   f.Notify.Kafka.Topic,
			Acks:    f.Notify.Kafka.Acks,
		})
	case "stdout":
		err = adapter.Configure(stdout.Config{Verbose: f.Notify.Stdout.Verbose})
	default:
		err = fmt.Errorf("no config block for notifier %q", f.Notify.Kind)
	}
	if err != nil {
		return nil, err
	}
	return adapter, nil
}
