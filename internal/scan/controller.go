// Package scan drives a single scan end to end: target construction and
// enrichment, collector setup, seeding, and the wait-for-idle /
// cancellation discipline.
package scan

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hakim/recongraph/internal/bus"
	"github.com/hakim/recongraph/internal/cache"
	"github.com/hakim/recongraph/internal/collector"
	"github.com/hakim/recongraph/internal/config"
	"github.com/hakim/recongraph/internal/event"
	"github.com/hakim/recongraph/internal/models"
	"github.com/hakim/recongraph/internal/netutil"
	"github.com/hakim/recongraph/internal/scope"
	"github.com/hakim/recongraph/internal/storage"
	"github.com/hakim/recongraph/internal/target"
)

// fallbackTLDs keeps domain detection working when the public-suffix list
// cannot be fetched.
const fallbackTLDs = "com\nnet\norg\nedu\ngov\nmil\nint\nio\nco\nco.uk\norg.uk\nac.uk\ncom.au\nde\nfr\nnl\nse\nno\njp\ncn\nru\nbr\nin\nit\nes\nca\nch\nat\nbe\ndk\nfi\npl\nnz\nza"

// ShutdownGrace bounds how long in-flight handlers may run after a cancel.
const ShutdownGrace = 30 * time.Second

// Params describes one scan to run.
type Params struct {
	// Name labels the scan; defaults to the target value.
	Name string

	TargetValue string
	TargetType  string

	// Collectors are the instantiated collectors enabled for this scan.
	Collectors []collector.Collector

	// Sink, when set, observes every published event (seeds included).
	Sink func(*event.Event)

	Log *slog.Logger
}

// Controller owns one scan. Create with NewController, then Run.
type Controller struct {
	cfg    *config.Config
	params Params
	meta   *models.ScanMeta

	store *storage.Store
	cache *cache.Cache
	log   *slog.Logger

	target *target.Target
	scope  *scope.Store
	bus    *bus.Bus

	aborted atomic.Bool
}

// NewController validates the target and prepares scan metadata. No network
// activity happens until Run.
func NewController(cfg *config.Config, store *storage.Store, ca *cache.Cache, params Params) (*Controller, error) {
	if len(params.Collectors) == 0 {
		return nil, fmt.Errorf("scan: no collectors enabled")
	}

	t, err := target.New(params.TargetValue, params.TargetType)
	if err != nil {
		return nil, err
	}

	log := params.Log
	if log == nil {
		log = slog.Default()
	}

	meta := models.NewScanMeta(params.Name, t.Value(), t.Type())
	for _, c := range params.Collectors {
		meta.Collectors = append(meta.Collectors, c.Name())
	}

	return &Controller{
		cfg:    cfg,
		params: params,
		meta:   meta,
		store:  store,
		cache:  ca,
		log:    log.With("scan_id", meta.ID),
		target: t,
	}, nil
}

// ID returns the scan id.
func (c *Controller) ID() string { return c.meta.ID }

// Run executes the scan to completion or cancellation and returns the final
// status. The error is non-nil only for initialization and framework
// failures; individual collector failures surface as log warnings.
func (c *Controller) Run(ctx context.Context) (models.ScanStatus, error) {
	c.setStatus(models.StatusInitializing)

	shared, err := c.buildContext()
	if err != nil {
		c.setStatus(models.StatusFailedInit)
		return models.StatusFailedInit, err
	}

	c.setStatus(models.StatusStarting)
	c.log.Info("scan initiated", "target", c.target.Value(), "type", c.target.Type())

	c.enrichTarget(shared.Resolver)
	c.scope = scope.New(c.target, c.cfg.MaxCohost)

	if err := c.setupCollectors(ctx, shared); err != nil {
		c.setStatus(models.StatusFailedInit)
		return models.StatusFailedInit, err
	}

	var evStore bus.EventStore
	if c.store != nil {
		evStore = c.store
	}
	c.bus = bus.New(bus.Config{
		ScanID:           c.meta.ID,
		Workers:          c.cfg.MaxThreads,
		MaxHandlerErrors: c.cfg.MaxHandlerErrors,
		Store:            evStore,
		Sink:             c.params.Sink,
		Log:              c.log,
	}, c.scope, c.params.Collectors)

	for _, col := range c.params.Collectors {
		col.SetEmitter(c.bus.Publish)
	}

	c.bus.Start()
	c.setStatus(models.StatusRunning)

	if err := c.seed(shared.TLDs); err != nil {
		c.bus.Shutdown(0)
		c.setStatus(models.StatusErrorFailed)
		return models.StatusErrorFailed, err
	}

	idle := make(chan struct{})
	go func() {
		c.bus.WaitIdle(0)
		close(idle)
	}()

	select {
	case <-idle:
		c.bus.Shutdown(0)
		c.setStatus(models.StatusFinished)
		c.log.Info("scan completed")
		return models.StatusFinished, nil

	case <-ctx.Done():
		c.setStatus(models.StatusAbortRequested)
		c.aborted.Store(true)
		c.setStatus(models.StatusAborting)
		if !c.bus.Shutdown(ShutdownGrace) {
			c.log.Warn("handlers still running after grace period")
		}
		c.setStatus(models.StatusAborted)
		c.log.Info("scan aborted")
		return models.StatusAborted, nil
	}
}

// buildContext assembles the capability facade collectors share.
func (c *Controller) buildContext() (*collector.Context, error) {
	fetcher, err := netutil.NewFetcher(netutil.FetcherConfig{
		Timeout:           time.Duration(c.cfg.FetchTimeout) * time.Second,
		UserAgent:         c.cfg.UserAgent,
		SocksType:         c.cfg.SocksType,
		SocksAddr:         c.cfg.SocksAddr,
		SocksPort:         c.cfg.SocksPort,
		SocksUser:         c.cfg.SocksUser,
		SocksPwd:          c.cfg.SocksPassword,
		RequestsPerSecond: c.cfg.FetchRate,
	})
	if err != nil {
		return nil, fmt.Errorf("scan: building fetcher: %w", err)
	}

	resolver := netutil.NewResolver(c.cfg.DNSServer, time.Duration(c.cfg.FetchTimeout)*time.Second)

	return &collector.Context{
		Fetcher:  fetcher,
		Resolver: resolver,
		Cache:    c.cache,
		TLDs:     c.loadTLDs(fetcher),
		Log:      c.log,
	}, nil
}

// loadTLDs obtains the public-suffix list from the cache, the configured
// source, or the built-in fallback, in that order.
func (c *Controller) loadTLDs(fetcher *netutil.Fetcher) *netutil.SuffixSet {
	maxAge := time.Duration(c.cfg.InternetTLDsCacheHours) * time.Hour
	if c.cache != nil {
		if data := c.cache.Get("framework", "internet_tlds", maxAge); data != nil {
			return netutil.ParseSuffixList(string(data))
		}
	}

	source := c.cfg.InternetTLDs
	var raw string
	switch {
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		res := fetcher.FetchURL(context.Background(), source, nil, "")
		if res.Ok() {
			raw = res.Content
		} else {
			c.log.Warn("could not fetch public-suffix list; using fallback", "source", source, "err", res.Err)
		}
	case source != "":
		if data, err := os.ReadFile(source); err == nil {
			raw = string(data)
		} else {
			c.log.Warn("could not read public-suffix list; using fallback", "source", source, "err", err)
		}
	}

	if raw == "" {
		raw = fallbackTLDs
	} else if c.cache != nil {
		if err := c.cache.Put("framework", "internet_tlds", []byte(raw)); err != nil {
			c.log.Warn("could not cache public-suffix list", "err", err)
		}
	}
	return netutil.ParseSuffixList(raw)
}

// enrichTarget expands the target's alias set before collectors run: a
// hostname target gains its forward-resolved addresses, an address target
// gains reverse-resolved names, but only names that still forward-resolve
// back to the same address.
func (c *Controller) enrichTarget(resolver *netutil.Resolver) {
	switch c.target.Type() {
	case "INTERNET_NAME":
		for _, ip := range resolver.ResolveHost(c.target.Value()) {
			c.target.SetAlias(ip, "IP_ADDRESS")
		}
		for _, ip := range resolver.ResolveHost6(c.target.Value()) {
			c.target.SetAlias(ip, "IPV6_ADDRESS")
		}

	case "IP_ADDRESS", "IPV6_ADDRESS":
		for _, name := range resolver.ResolveIP(c.target.Value()) {
			if !resolver.ValidateIP(name, c.target.Value()) {
				c.log.Debug("reverse-resolved name does not round-trip; skipping alias", "name", name)
				continue
			}
			c.target.SetAlias(name, "INTERNET_NAME")
		}
	}
}

// setupCollectors runs the controller side of the contract: setters first,
// then Setup with the layered option map.
func (c *Controller) setupCollectors(ctx context.Context, shared *collector.Context) error {
	stop := func() bool {
		return c.aborted.Load() || ctx.Err() != nil
	}

	for _, col := range c.params.Collectors {
		if !collector.ValidateOptions(col) {
			return fmt.Errorf("scan: collector %q opts/optdescs mismatch", col.Name())
		}

		col.SetTarget(c.target)
		col.SetScanID(c.meta.ID)
		col.SetStop(stop)

		userOpts := c.cfg.ResolveOptions(col.Name(), col.Opts())
		if err := col.Setup(shared, userOpts); err != nil {
			return fmt.Errorf("scan: setting up collector %q: %w", col.Name(), err)
		}
		c.log.Debug("collector loaded", "collector", col.Name())
	}
	return nil
}

// seed publishes the ROOT event, the target's native-type event, and for
// internet-name targets that are registrable domains, a DOMAIN_NAME event.
// Almost no collector watches ROOT directly; the native-type event triggers
// the first wave.
func (c *Controller) seed(tlds *netutil.SuffixSet) error {
	root, err := event.New(event.TypeRoot, c.target.Value(), "", nil)
	if err != nil {
		return fmt.Errorf("scan: building root event: %w", err)
	}
	c.bus.Publish(root)

	first, err := event.New(c.target.Type(), c.target.Value(), "recongraph", root)
	if err != nil {
		return fmt.Errorf("scan: building seed event: %w", err)
	}
	c.bus.Publish(first)

	if c.target.Type() == "INTERNET_NAME" && tlds.IsDomain(c.target.Value()) {
		domain, err := event.New("DOMAIN_NAME", c.target.Value(), "recongraph", root)
		if err != nil {
			return fmt.Errorf("scan: building domain seed: %w", err)
		}
		c.bus.Publish(domain)
	}
	return nil
}

// setStatus records the scan status, persisting when a store is attached.
func (c *Controller) setStatus(status models.ScanStatus) {
	c.meta.Status = status
	if c.store == nil {
		return
	}
	if status == models.StatusInitializing {
		if err := c.store.SaveScan(c.meta); err != nil {
			c.log.Error("could not persist scan record", "err", err)
		}
		return
	}
	if err := c.store.UpdateScanStatus(c.meta.ID, status); err != nil {
		c.log.Error("could not persist scan status", "status", status, "err", err)
	}
}
