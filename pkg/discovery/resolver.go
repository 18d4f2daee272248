package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/pion/logging"
)

// DefaultBrowseTimeout bounds Browse when the context has no deadline.
const DefaultBrowseTimeout = 5 * time.Second

// DefaultLookupTimeout bounds Lookup when the context has no deadline.
const DefaultLookupTimeout = 5 * time.Second

// Service is a resolved DNS-SD service instance.
type Service struct {
	Type     ServiceType
	Instance string
	Host     string
	Port     int

	// Addresses are sorted by SortIPsByPreference.
	Addresses []net.IP

	// Identifier is the advertised device identifier, see Identifier.
	Identifier string

	// TXT holds the TXT record key-value pairs.
	TXT map[string]string
}

// Address returns host:port for the preferred address.
func (s *Service) Address() (string, error) {
	if len(s.Addresses) == 0 {
		return "", ErrNoAddresses
	}
	return net.JoinHostPort(s.Addresses[0].String(), strconv.Itoa(s.Port)), nil
}

// MDNSResolver is the mDNS query backend.
//
// Browse and Lookup block until ctx is done or the backend is finished, and
// never close entries.
type MDNSResolver interface {
	Browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error
	Lookup(ctx context.Context, instance, service, domain string, entries chan<- *zeroconf.ServiceEntry) error
}

// zeroconfResolver is the production backend using grandcat/zeroconf.
type zeroconfResolver struct {
	resolver *zeroconf.Resolver
}

func newZeroconfResolver() (*zeroconfResolver, error) {
	r, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, err
	}
	return &zeroconfResolver{resolver: r}, nil
}

func (z *zeroconfResolver) Browse(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
	inner := make(chan *zeroconf.ServiceEntry)
	if err := z.resolver.Browse(ctx, service, domain, inner); err != nil {
		return err
	}
	return forward(ctx, inner, entries)
}

func (z *zeroconfResolver) Lookup(ctx context.Context, instance, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
	inner := make(chan *zeroconf.ServiceEntry)
	if err := z.resolver.Lookup(ctx, instance, service, domain, inner); err != nil {
		return err
	}
	return forward(ctx, inner, entries)
}

// forward copies entries until zeroconf closes inner or ctx is done.
func forward(ctx context.Context, inner <-chan *zeroconf.ServiceEntry, out chan<- *zeroconf.ServiceEntry) error {
	defer func() {
		go func() {
			for range inner {
			}
		}()
	}()
	for {
		select {
		case entry, ok := <-inner:
			if !ok {
				return nil
			}
			select {
			case out <- entry:
			case <-ctx.Done():
				return nil
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// ResolverConfig holds configuration for the Resolver.
type ResolverConfig struct {
	// MDNSResolver is the query backend. If nil, zeroconf is used.
	MDNSResolver MDNSResolver

	// BrowseTimeout applies when the Browse context has no deadline.
	// If zero, DefaultBrowseTimeout is used.
	BrowseTimeout time.Duration

	// LookupTimeout applies when the Lookup context has no deadline.
	// If zero, DefaultLookupTimeout is used.
	LookupTimeout time.Duration

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Resolver discovers AirPlay, RAOP and Companion-Link devices.
type Resolver struct {
	config   ResolverConfig
	resolver MDNSResolver
	log      logging.LeveledLogger
}

// NewResolver creates a new Resolver with the given configuration.
func NewResolver(config ResolverConfig) (*Resolver, error) {
	resolver := config.MDNSResolver
	if resolver == nil {
		zr, err := newZeroconfResolver()
		if err != nil {
			return nil, err
		}
		resolver = zr
	}
	if config.BrowseTimeout == 0 {
		config.BrowseTimeout = DefaultBrowseTimeout
	}
	if config.LookupTimeout == 0 {
		config.LookupTimeout = DefaultLookupTimeout
	}

	r := &Resolver{config: config, resolver: resolver}
	if config.LoggerFactory != nil {
		r.log = config.LoggerFactory.NewLogger("hap-discovery")
	}
	return r, nil
}

// Browse streams services of serviceType until ctx is done or the browse
// timeout expires. Each instance is reported once.
func (r *Resolver) Browse(ctx context.Context, serviceType ServiceType) (<-chan Service, error) {
	service := serviceType.ServiceString()
	if service == "" {
		return nil, ErrInvalidServiceType
	}

	ctx, cancel := r.withTimeout(ctx, r.config.BrowseTimeout)
	results := make(chan Service)
	entries := make(chan *zeroconf.ServiceEntry)

	go func() {
		defer close(entries)
		if err := r.resolver.Browse(ctx, service, DefaultDomain, entries); err != nil && r.log != nil {
			r.log.Warnf("browse %s: %v", service, err)
		}
	}()

	go func() {
		defer close(results)
		defer cancel()
		seen := make(map[string]bool)
		for entry := range entries {
			if entry == nil || seen[entry.Instance] {
				continue
			}
			seen[entry.Instance] = true
			svc := entryToService(entry, serviceType)
			if r.log != nil {
				r.log.Debugf("found %s %q at %s:%d", serviceType, svc.Instance, svc.Host, svc.Port)
			}
			select {
			case results <- svc:
			case <-ctx.Done():
				for range entries {
				}
				return
			}
		}
	}()

	return results, nil
}

// Lookup resolves one service instance by name.
func (r *Resolver) Lookup(ctx context.Context, serviceType ServiceType, instance string) (*Service, error) {
	service := serviceType.ServiceString()
	if service == "" {
		return nil, ErrInvalidServiceType
	}

	ctx, cancel := r.withTimeout(ctx, r.config.LookupTimeout)
	entries := make(chan *zeroconf.ServiceEntry)
	go func() {
		defer close(entries)
		if err := r.resolver.Lookup(ctx, instance, service, DefaultDomain, entries); err != nil && r.log != nil {
			r.log.Warnf("lookup %q: %v", instance, err)
		}
	}()
	defer func() {
		cancel()
		for range entries {
		}
	}()

	select {
	case entry, ok := <-entries:
		if !ok || entry == nil {
			return nil, ErrServiceNotFound
		}
		svc := entryToService(entry, serviceType)
		return &svc, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, ctx.Err()
	}
}

// Find browses serviceType for the first device whose Identifier or
// instance name equals id. When the browse window closes first the error
// matches both ErrServiceNotFound and ErrTimeout.
func (r *Resolver) Find(ctx context.Context, serviceType ServiceType, id string) (*Service, error) {
	parent := ctx
	ctx, cancel := r.withTimeout(ctx, r.config.BrowseTimeout)
	defer cancel()

	services, err := r.Browse(ctx, serviceType)
	if err != nil {
		return nil, err
	}
	for svc := range services {
		if svc.Identifier == id || svc.Instance == id {
			return &svc, nil
		}
	}

	switch {
	case parent.Err() != nil && !errors.Is(parent.Err(), context.DeadlineExceeded):
		return nil, parent.Err()
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return nil, fmt.Errorf("%w: %w", ErrServiceNotFound, ErrTimeout)
	}
	return nil, ErrServiceNotFound
}

func (r *Resolver) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// entryToService converts a zeroconf entry.
func entryToService(entry *zeroconf.ServiceEntry, serviceType ServiceType) Service {
	var ips []net.IP
	ips = append(ips, entry.AddrIPv4...)
	ips = append(ips, entry.AddrIPv6...)

	txt := ParseTXT(entry.Text)
	return Service{
		Type:       serviceType,
		Instance:   entry.Instance,
		Host:       entry.HostName,
		Port:       entry.Port,
		Addresses:  SortIPsByPreference(ips),
		Identifier: Identifier(serviceType, entry.Instance, txt),
		TXT:        txt,
	}
}
