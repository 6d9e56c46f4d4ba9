package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/bbernstein/flowebb/tidesensors/internal/bootstrap"
	"github.com/bbernstein/flowebb/tidesensors/internal/collector"
	"github.com/bbernstein/flowebb/tidesensors/internal/config"
	"github.com/bbernstein/flowebb/tidesensors/internal/models"
	"github.com/bbernstein/flowebb/tidesensors/internal/publish"
	"github.com/bbernstein/flowebb/tidesensors/internal/server"
	"github.com/bbernstein/flowebb/tidesensors/internal/setup"
)

var (
	configFile string
	verbose    bool
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tidesensors",
		Short: "NOAA tide station and NDBC buoy sensors",
		Long:  "Poll NOAA CO-OPS stations and NDBC buoys and publish their readings as Home Assistant sensors",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg := config.LoadFromEnv()
			if verbose {
				cfg.LogLevel = zerolog.DebugLevel
			}
			cfg.InitializeLogging()
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	root.AddCommand(serveCmd())
	root.AddCommand(resolveCmd())
	root.AddCommand(readCmd())
	root.AddCommand(addCmd())
	root.AddCommand(listCmd())
	root.AddCommand(removeCmd())
	return root
}

func newDeps(ctx context.Context) (*config.Config, *bootstrap.Deps, error) {
	cfg := config.LoadFromEnv()
	deps, err := bootstrap.New(ctx, cfg, config.GetCacheConfig())
	if err != nil {
		return nil, nil, err
	}
	return cfg, deps, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the collectors, HTTP API and MQTT publisher",
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := config.LoadFile(configFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, deps, err := newDeps(ctx)
			if err != nil {
				return err
			}

			store, err := newEntryStore(ctx, file)
			if err != nil {
				return err
			}
			stored, err := store.List(ctx)
			if err != nil {
				return fmt.Errorf("loading config entries: %w", err)
			}
			entries := mergeEntries(fileEntries(ctx, deps.Resolver, file.Instances, time.Now()), stored)

			var sinks []collector.Sink
			var publisher *publish.Publisher
			if file.MQTT.Enabled {
				publisher, err = publish.NewPublisher(publish.Config{
					Broker:          file.MQTT.Broker,
					ClientID:        file.MQTT.ClientID,
					Username:        file.MQTT.Username,
					Password:        file.MQTT.Password,
					TopicPrefix:     file.MQTT.TopicPrefix,
					DiscoveryPrefix: file.MQTT.DiscoveryPrefix,
					ConnectTimeout:  file.MQTT.ConnectTimeout,
				})
				if err != nil {
					log.Warn().Err(err).Msg("MQTT connection failed, continuing without publisher")
				} else {
					defer publisher.Close()
					sinks = append(sinks, publisher)
				}
			}

			newCollector := func(entry *models.ConfigEntry) (*collector.Collector, error) {
				return collector.New(collector.Config{
					Entry:        entry,
					Fetcher:      deps.Router.Bind(entry.Capabilities.ProviderType),
					Sinks:        sinks,
					CycleTimeout: cfg.CycleTimeout,
				})
			}

			manager := collector.NewManager()
			for _, entry := range entries {
				c, err := newCollector(entry)
				if err != nil {
					log.Error().Err(err).Str("entry_id", entry.ID).Msg("Skipping invalid config entry")
					continue
				}
				if err := manager.Add(c); err != nil {
					log.Error().Err(err).Str("entry_id", entry.ID).Msg("Skipping duplicate config entry")
				}
			}

			var srv *server.Server
			if file.HTTP.Enabled {
				srv = server.NewServer(server.ServerConfig{
					Addr:    file.HTTP.Addr,
					Manager: manager,
					Flow:    setup.NewFlow(deps.Resolver, store),
					OnConfigured: func(_ context.Context, entry *models.ConfigEntry) error {
						c, err := newCollector(entry)
						if err != nil {
							return err
						}
						return manager.Add(c)
					},
					OnRemoved: func(_ context.Context, entry *models.ConfigEntry) error {
						if publisher == nil {
							return nil
						}
						return publisher.Unpublish(entry)
					},
				})

				go func() {
					if err := srv.Start(); err != nil {
						log.Error().Err(err).Msg("HTTP server error")
						stop()
					}
				}()
			}

			log.Info().Int("instances", len(manager.List())).Msg("tidesensors started")

			if err := manager.Start(ctx); err != nil {
				return err
			}

			log.Info().Msg("Shutting down")
			if srv != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := srv.Stop(shutdownCtx); err != nil {
					log.Warn().Err(err).Msg("HTTP server shutdown failed")
				}
			}
			return nil
		},
	}
}

func resolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <identifier>",
		Short: "Show which products a station or buoy currently offers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, deps, err := newDeps(cmd.Context())
			if err != nil {
				return err
			}

			result, err := setup.NewFlow(deps.Resolver, setup.NewMemoryEntryStore()).Identify(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		},
	}
}

func readCmd() *cobra.Command {
	var input setup.ConfigureInput
	cmd := &cobra.Command{
		Use:   "read <identifier>",
		Short: "Run one refresh cycle and print the readings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, deps, err := newDeps(cmd.Context())
			if err != nil {
				return err
			}

			caps, err := deps.Resolver.Resolve(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(input.Sensors) == 0 {
				input.Sensors = caps.ProductNames()
			}
			opts, err := setup.BuildOptions(input, caps)
			if err != nil {
				return err
			}

			c, err := collector.New(collector.Config{
				Entry: &models.ConfigEntry{
					ID:           "read",
					Identifier:   caps.Identifier,
					Capabilities: *caps,
					Options:      opts,
					CreatedAt:    time.Now().UTC(),
				},
				Fetcher:      deps.Router.Bind(caps.ProviderType),
				CycleTimeout: cfg.CycleTimeout,
			})
			if err != nil {
				return err
			}

			result := c.RefreshOnce(cmd.Context())
			for product, err := range result.Failed {
				log.Warn().Err(err).Str("product", string(product)).Msg("Product fetch failed")
			}
			return printJSON(cmd, c.Readings())
		},
	}
	addInputFlags(cmd, &input)
	return cmd
}

func addCmd() *cobra.Command {
	var input setup.ConfigureInput
	cmd := &cobra.Command{
		Use:   "add <identifier>",
		Short: "Create a config entry in the entry store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flow, err := storeFlow(cmd.Context())
			if err != nil {
				return err
			}
			entry, err := flow.Configure(cmd.Context(), args[0], input)
			if err != nil {
				return err
			}
			return printJSON(cmd, entry)
		},
	}
	addInputFlags(cmd, &input)
	return cmd
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List config entries in the entry store",
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := config.LoadFile(configFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			store, err := newEntryStore(cmd.Context(), file)
			if err != nil {
				return err
			}
			entries, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, entries)
		},
	}
}

func removeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <entry-id>",
		Short: "Delete a config entry from the entry store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flow, err := storeFlow(cmd.Context())
			if err != nil {
				return err
			}
			if err := flow.Remove(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
			return nil
		},
	}
}

func storeFlow(ctx context.Context) (*setup.Flow, error) {
	file, err := config.LoadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if file.Store.Type == config.StoreMemory {
		return nil, fmt.Errorf("store type %q does not persist entries; configure store.type: %s", config.StoreMemory, config.StoreDynamo)
	}
	store, err := newEntryStore(ctx, file)
	if err != nil {
		return nil, err
	}
	_, deps, err := newDeps(ctx)
	if err != nil {
		return nil, err
	}
	return setup.NewFlow(deps.Resolver, store), nil
}

func addInputFlags(cmd *cobra.Command, input *setup.ConfigureInput) {
	cmd.Flags().StringVar(&input.Name, "name", "", "display name")
	cmd.Flags().StringVar(&input.TimezoneMode, "timezone", "", "gmt, lst or lst_ldt")
	cmd.Flags().StringVar(&input.UnitSystem, "units", "", "metric or imperial")
	cmd.Flags().IntVar(&input.UpdateIntervalSeconds, "interval", 0, "update interval in seconds")
	cmd.Flags().StringSliceVar(&input.Sensors, "sensors", nil, "sensors to enable")
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
