package deviceadapter

import (
	"context"
	"fmt"
	"time"

	"github.com/route-beacon/routecache/internal/rowmodel"
	"go.uber.org/zap"
)

// Config controls transport selection and per-command timeouts.
type Config struct {
	UseNXAPI          bool
	NXAPI             NXAPIConfig
	HTTPSTimeout      time.Duration // default 8s
	SSHCommandTimeout time.Duration // default 30s
}

func (c Config) withDefaults() Config {
	if c.HTTPSTimeout == 0 {
		c.HTTPSTimeout = 8 * time.Second
	}
	if c.SSHCommandTimeout == 0 {
		c.SSHCommandTimeout = 30 * time.Second
	}
	return c
}

// Adapter implements the device-side half of the pipeline: Collect(device,
// vrfs, afis) -> {rib, bgp}. Any per-(cmd,vrf,afi) failure is isolated: it
// is logged and the table is omitted, never propagated to other tables.
type Adapter struct {
	cfg    Config
	parser StructuredParser
	logger *zap.Logger
}

func NewAdapter(cfg Config, parser StructuredParser, logger *zap.Logger) *Adapter {
	if parser == nil {
		parser = UnsupportedParser{}
	}
	return &Adapter{cfg: cfg.withDefaults(), parser: parser, logger: logger}
}

// Collect fetches RIB and BGP raw tables for every (vrf, afi) pair the
// device descriptor requests. Commands run sequentially on a single
// connection, amortizing session setup per spec §4.6.
func (a *Adapter) Collect(ctx context.Context, dev Descriptor) (Tables, error) {
	transport, closeFn, err := a.openTransport(ctx, dev)
	if err != nil {
		return Tables{}, fmt.Errorf("deviceadapter: open transport for %s: %w", dev.Name, err)
	}
	if closeFn != nil {
		defer closeFn()
	}

	var tables Tables
	for _, vrf := range dev.VRFs {
		for _, afi := range dev.AFIs {
			tables.RIB = append(tables.RIB, a.fetchTable(ctx, transport, ribCommand(vrf, afi), vrf, afi))
			tables.BGP = append(tables.BGP, a.fetchTable(ctx, transport, bgpCommand(vrf, afi), vrf, afi))
		}
	}
	return tables, nil
}

// openTransport implements the acquisition policy of spec §4.2: prefer
// nxapi when the device is of that family and the adapter is configured to
// use it; otherwise fall back to a single SSH session for the cycle.
func (a *Adapter) openTransport(ctx context.Context, dev Descriptor) (Transport, func(), error) {
	if dev.DeviceType == DeviceNXAPI && a.cfg.UseNXAPI {
		cfg := a.cfg.NXAPI
		cfg.Username = dev.Username
		cfg.Password = dev.Password
		return NewNXAPITransport(dev.Host, cfg, a.cfg.HTTPSTimeout), nil, nil
	}

	ssh, err := DialSSH(ctx, dev.Host, dev.Username, dev.Password, a.cfg.SSHCommandTimeout, a.parser)
	if err != nil {
		return nil, nil, err
	}
	return ssh, func() { ssh.Close() }, nil
}

func (a *Adapter) fetchTable(ctx context.Context, transport Transport, cmd, vrf string, afi rowmodel.AFI) RawTable {
	cmdCtx := ctx
	var cancel context.CancelFunc
	if _, ok := transport.(*NXAPITransport); ok {
		cmdCtx, cancel = context.WithTimeout(ctx, a.cfg.HTTPSTimeout)
	} else {
		cmdCtx, cancel = context.WithTimeout(ctx, a.cfg.SSHCommandTimeout)
	}
	defer cancel()

	body, _, err := transport.RunCommand(cmdCtx, cmd)
	if err != nil {
		if a.logger != nil {
			a.logger.Warn("table collection failed; omitting from cycle",
				zap.String("command", cmd),
				zap.String("vrf", vrf),
				zap.String("afi", string(afi)),
				zap.Error(err),
			)
		}
		return RawTable{VRF: vrf, AFI: afi, Err: err}
	}
	return RawTable{VRF: vrf, AFI: afi, Body: body}
}
