package geo

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"github.com/oschwald/geoip2-golang"

	"github.com/August26/proxyscout/internal/logging"
)

// GeoIP2 resolves countries offline from a MaxMind country or city database.
type GeoIP2 struct {
	reader   *geoip2.Reader
	resolver *net.Resolver
	log      *slog.Logger
}

// OpenGeoIP2 opens the .mmdb file at path.
func OpenGeoIP2(path string, log *slog.Logger) (*GeoIP2, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geoip database: %w", err)
	}
	if log == nil {
		log = logging.Discard()
	}
	return &GeoIP2{
		reader:   reader,
		resolver: net.DefaultResolver,
		log:      log.With("component", "geo.geoip2"),
	}, nil
}

func (g *GeoIP2) Lookup(ctx context.Context, host string) string {
	ip, err := g.resolve(ctx, host)
	if err != nil {
		g.log.Debug("resolve host failed", "host", host, "err", err)
		return Unknown
	}
	record, err := g.reader.Country(ip)
	if err != nil {
		g.log.Debug("geoip lookup failed", "ip", ip.String(), "err", err)
		return Unknown
	}
	if name := record.Country.Names["en"]; name != "" {
		return name
	}
	return Unknown
}

func (g *GeoIP2) resolve(ctx context.Context, host string) (net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return ip, nil
	}
	addrs, err := g.resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, err
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("no addresses for %s", host)
	}
	return addrs[0].IP, nil
}

// Close releases the database.
func (g *GeoIP2) Close() error {
	return g.reader.Close()
}
