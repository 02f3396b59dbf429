// Command quoted serves the quote aggregation API.
//
// Configuration comes from the file named by SHIPQUOTE_CONFIG and the
// environment; see internal/config.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/dreamware/shipquote/internal/api"
	"github.com/dreamware/shipquote/internal/cache"
	"github.com/dreamware/shipquote/internal/cache/pgcache"
	"github.com/dreamware/shipquote/internal/cache/rediscache"
	"github.com/dreamware/shipquote/internal/config"
	"github.com/dreamware/shipquote/internal/events"
	"github.com/dreamware/shipquote/internal/health"
	"github.com/dreamware/shipquote/internal/orchestrator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := newService(ctx, cfg)
	if err != nil {
		log.Fatalf("start: %v", err)
	}
	defer svc.close()

	svc.monitor.Start(ctx, cfg.HealthInterval, nil)

	go func() {
		log.Infof("quoted listening on %s with %d providers", cfg.Addr, len(cfg.Providers))
		if err := svc.app.Listen(cfg.Addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	svc.monitor.Stop()
	if err := svc.app.ShutdownWithTimeout(5 * time.Second); err != nil {
		log.Warnf("shutdown: %v", err)
	}
	log.Info("quoted stopped")
}

// service holds the wired components and the resources to release.
type service struct {
	app       *fiber.App
	monitor   *health.Monitor
	publisher events.Publisher
	closers   []func()
}

func newService(ctx context.Context, cfg config.Config) (*service, error) {
	registry, err := cfg.BuildRegistry()
	if err != nil {
		return nil, fmt.Errorf("providers: %w", err)
	}

	svc := &service{publisher: events.Nop{}}
	if cfg.Kafka.Broker != "" {
		svc.publisher = events.NewKafkaPublisher(cfg.Kafka.Broker, cfg.Kafka.Topic)
		log.Infof("publishing events to %s/%s", cfg.Kafka.Broker, cfg.Kafka.Topic)
	}
	svc.closers = append(svc.closers, func() { _ = svc.publisher.Close() })

	c, err := openCache(ctx, cfg.Cache, svc)
	if err != nil {
		svc.close()
		return nil, err
	}

	regs := registry.All()
	orch := orchestrator.New(regs, c, orchestrator.Options{
		Timeout:      cfg.QuoteTimeout,
		CacheTimeout: cfg.Cache.Timeout,
		Publisher:    svc.publisher,
	})
	svc.monitor = health.NewMonitor(regs, health.Options{
		Timeout:         cfg.ProbeTimeout,
		MinResponseTime: cfg.MinResponseTime,
		Publisher:       svc.publisher,
	})
	svc.app = api.NewApp(api.New(orch, svc.monitor, api.Options{RetryAfter: cfg.RetryAfter}))
	return svc, nil
}

// openCache builds the configured backend. A nil cache disables caching.
func openCache(ctx context.Context, cfg config.CacheConfig, svc *service) (cache.Cache, error) {
	switch cfg.Backend {
	case config.CacheNone:
		log.Info("quote cache disabled")
		return nil, nil
	case config.CacheRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
		}
		svc.closers = append(svc.closers, func() { _ = client.Close() })
		log.Infof("quote cache on redis %s, ttl %v", cfg.RedisAddr, cfg.TTL)
		return rediscache.New(client, cfg.TTL), nil
	case config.CachePostgres:
		pool, err := pgcache.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		svc.closers = append(svc.closers, pool.Close)
		repo := &pgcache.Repository{Pool: pool}
		go purgeLoop(ctx, purgeInterval(cfg), postgresPurge(repo, cfg.TTL, cfg.Timeout))
		log.Infof("quote cache on postgres, ttl %v", cfg.TTL)
		return pgcache.NewCache(repo, cfg.TTL), nil
	default:
		mem := cache.NewMemory(cfg.TTL, nil)
		go purgeLoop(ctx, purgeInterval(cfg), memoryPurge(mem))
		log.Infof("quote cache in memory, ttl %v", cfg.TTL)
		return mem, nil
	}
}

func purgeInterval(cfg config.CacheConfig) time.Duration {
	if cfg.PurgeInterval > 0 {
		return cfg.PurgeInterval
	}
	return cfg.TTL
}

// purgeFunc deletes expired quote sets and reports how many went.
type purgeFunc func(ctx context.Context) (int64, error)

func memoryPurge(mem *cache.Memory) purgeFunc {
	return func(context.Context) (int64, error) {
		n := mem.Purge()
		st := mem.Stats()
		log.Debugf("quote cache: %d sets, %d hits, %d misses", st.Entries, st.Hits, st.Misses)
		return int64(n), nil
	}
}

// postgresPurge deletes sets older than ttl. Each run is bounded by timeout.
func postgresPurge(repo *pgcache.Repository, ttl, timeout time.Duration) purgeFunc {
	return func(ctx context.Context) (int64, error) {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		return repo.DeleteOlderThan(ctx, time.Now().Add(-ttl))
	}
}

// purgeLoop runs purge every interval until ctx ends. It does nothing when
// interval is not positive.
func purgeLoop(ctx context.Context, interval time.Duration, purge purgeFunc) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			n, err := purge(ctx)
			switch {
			case err != nil:
				log.Warnf("purge expired quote sets: %v", err)
			case n > 0:
				log.Debugf("purged %d expired quote sets", n)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *service) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}
