package cmd

import (
	"context"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/alejoacosta74/profiler/internal/kafka"
	"github.com/alejoacosta74/profiler/internal/metrics"
	"github.com/alejoacosta74/profiler/internal/stream"
	"github.com/alejoacosta74/profiler/internal/system"
	"github.com/alejoacosta74/profiler/profiler"
)

// startCmd runs the profiler as a standalone agent profiling its own
// process, with the optional Kafka, Prometheus and WebSocket surfaces.
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a profiling session",
	Long: `Start a profiling session against this process. Collected metrics,
captures and bottleneck diagnostics are written to the output directory;
diagnostic events can additionally be shipped to Kafka, exposed to
Prometheus and streamed over WebSocket.`,
	RunE: runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)

	startCmd.Flags().String("output", "./profiles", "Directory for capture artifacts and reports")
	startCmd.Flags().Bool("auto-profile", false, "Periodically capture CPU profiles and heap snapshots")
	startCmd.Flags().String("metrics-addr", "", "Expose Prometheus metrics on this address (empty disables)")
	startCmd.Flags().String("stream-addr", "", "Stream diagnostic events over WebSocket on this address (empty disables)")
	startCmd.Flags().StringSlice("kafka-brokers", nil, "Ship diagnostic events to these Kafka brokers (empty disables)")
	startCmd.Flags().String("kafka-topic", "profiler.diagnostics", "Kafka topic for diagnostic events")

	viper.BindPFlag("outputDir", startCmd.Flags().Lookup("output"))
	viper.BindPFlag("autoProfile", startCmd.Flags().Lookup("auto-profile"))
	viper.BindPFlag("metrics.addr", startCmd.Flags().Lookup("metrics-addr"))
	viper.BindPFlag("stream.addr", startCmd.Flags().Lookup("stream-addr"))
	viper.BindPFlag("kafka.brokers", startCmd.Flags().Lookup("kafka-brokers"))
	viper.BindPFlag("kafka.topic", startCmd.Flags().Lookup("kafka-topic"))
}

func runStart(cmd *cobra.Command, args []string) error {
	system.LoadFromViper(viper.GetViper(), log).Apply()

	cfg := profiler.ConfigFromViper(viper.GetViper())
	cfg.Logger = log

	p, err := profiler.New(cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	go handleSignals(cancel)

	var wg sync.WaitGroup

	// shared with the Kafka pool so its send metrics land in the same
	// registry the metrics server exposes
	var recorder *metrics.Recorder

	if addr := viper.GetString("metrics.addr"); addr != "" {
		recorder = metrics.NewRecorder(p.Bus(), nil, log)
		recorder.Start(ctx)
		metrics.NewRuntimeCollector(p.Source(), nil, log)

		server := metrics.NewServer(addr, nil, log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := server.Start(ctx); err != nil {
				log.WithError(err).Error("Metrics server exited")
				cancel()
			}
		}()
	}

	if brokers := viper.GetStringSlice("kafka.brokers"); len(brokers) > 0 {
		if err := kafka.CheckClusterAvailability(brokers, 5*time.Second, log); err != nil {
			return err
		}

		poolSize := viper.GetInt("kafka.poolSize")
		if poolSize <= 0 {
			poolSize = 3
		}
		pool, err := kafka.NewProducerPool(kafka.ProducerConfig{
			BrokerList: brokers,
			PoolSize:   poolSize,
			Metrics:    recorder,
			Logger:     log,
		})
		if err != nil {
			return err
		}
		if err := pool.Start(); err != nil {
			return err
		}
		defer pool.Stop()

		sink := kafka.NewSink(kafka.SinkConfig{
			Bus:        p.Bus(),
			Sender:     pool,
			KafkaTopic: viper.GetString("kafka.topic"),
			Logger:     log,
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			sink.Run(ctx)
		}()
	}

	if addr := viper.GetString("stream.addr"); addr != "" {
		server := stream.NewServer(stream.ServerConfig{
			Addr:   addr,
			Bus:    p.Bus(),
			Logger: log,
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := server.Run(ctx); err != nil {
				log.WithError(err).Error("Stream server exited")
				cancel()
			}
		}()
	}

	if err := p.Start(); err != nil {
		cancel()
		wg.Wait()
		return err
	}

	log.Info("Profiling session running, press Ctrl+C to stop")
	<-ctx.Done()

	p.Stop()

	if path, _, err := p.WriteReport(); err != nil {
		log.WithError(err).Error("Failed to write final report")
	} else {
		log.WithField("path", path).Info("Final report written")
	}

	wg.Wait()
	log.Info("Profiler shutdown")
	return nil
}
