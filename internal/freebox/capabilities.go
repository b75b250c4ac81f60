package freebox

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Family identifies a known appliance hardware generation.
type Family string

const (
	FamilyRevolution Family = "revolution"
	FamilyMini4K     Family = "mini4k"
	FamilyOne        Family = "one"
	FamilyDelta      Family = "delta"
	FamilyPop        Family = "pop"
	FamilyUltra      Family = "ultra"
	FamilyUnknown    Family = "unknown"
)

// VMSupport is the virtual-machine capability level of a hardware family.
type VMSupport string

const (
	VMNone    VMSupport = "none"
	VMLimited VMSupport = "limited"
	VMFull    VMSupport = "full"
)

// Capabilities describes what the connected hardware variant supports. Every
// field has a defined value for the unknown family so consumers never branch
// on an undefined capability.
type Capabilities struct {
	Family          Family    `json:"family"`
	DisplayName     string    `json:"display_name"`
	InternalStorage bool      `json:"internal_storage"`
	VMSupport       VMSupport `json:"vm_support"`
	MaxVMs          int       `json:"max_vms"`
	MaxVMRAMMB      int       `json:"max_vm_ram_mb"`
	WiFiBands       []string  `json:"wifi_bands"`
	EthernetMbps    int       `json:"ethernet_mbps"`
	LineMbps        int       `json:"line_mbps"`
	TempFields      []string  `json:"temp_fields"`
}

func (c Capabilities) SupportsVM() bool    { return c.VMSupport != VMNone }
func (c Capabilities) FullVMSupport() bool { return c.VMSupport == VMFull }

func (c Capabilities) Supports6GHz() bool {
	for _, b := range c.WiFiBands {
		if b == "6GHz" {
			return true
		}
	}
	return false
}

// familyTable holds the static capability matrix per hardware family. The
// runtime display name and storage flag are overlaid on top of it.
var familyTable = map[Family]Capabilities{
	FamilyRevolution: {
		Family: FamilyRevolution, DisplayName: "Freebox Revolution",
		InternalStorage: true, VMSupport: VMNone,
		WiFiBands:    []string{"2.4GHz", "5GHz"},
		EthernetMbps: 1000, LineMbps: 1000,
		TempFields: []string{"temp_cpum", "temp_cpub", "temp_sw"},
	},
	FamilyMini4K: {
		Family: FamilyMini4K, DisplayName: "Freebox Mini 4K",
		VMSupport:    VMNone,
		WiFiBands:    []string{"2.4GHz", "5GHz"},
		EthernetMbps: 1000, LineMbps: 1000,
		TempFields: []string{"temp_cpum", "temp_cpub", "temp_sw"},
	},
	FamilyOne: {
		Family: FamilyOne, DisplayName: "Freebox One",
		InternalStorage: true, VMSupport: VMNone,
		WiFiBands:    []string{"2.4GHz", "5GHz"},
		EthernetMbps: 1000, LineMbps: 1000,
		TempFields: []string{"temp_cpu_0", "temp_cpu_1"},
	},
	FamilyDelta: {
		Family: FamilyDelta, DisplayName: "Freebox Delta",
		InternalStorage: true, VMSupport: VMLimited, MaxVMs: 2, MaxVMRAMMB: 2048,
		WiFiBands:    []string{"2.4GHz", "5GHz"},
		EthernetMbps: 10000, LineMbps: 8000,
		TempFields: []string{"temp_cpu_0", "temp_cpu_1", "temp_cpu_2", "temp_cpu_3"},
	},
	FamilyPop: {
		Family: FamilyPop, DisplayName: "Freebox Pop",
		VMSupport:    VMNone,
		WiFiBands:    []string{"2.4GHz", "5GHz"},
		EthernetMbps: 2500, LineMbps: 5000,
		TempFields: []string{"temp_cpu_0", "temp_cpu_1"},
	},
	FamilyUltra: {
		Family: FamilyUltra, DisplayName: "Freebox Ultra",
		InternalStorage: true, VMSupport: VMFull, MaxVMs: 8, MaxVMRAMMB: 8192,
		WiFiBands:    []string{"2.4GHz", "5GHz", "6GHz"},
		EthernetMbps: 10000, LineMbps: 8000,
		TempFields: []string{"temp_cpu_0", "temp_cpu_1", "temp_cpu_2", "temp_cpu_3"},
	},
	FamilyUnknown: {
		Family: FamilyUnknown, DisplayName: "Freebox",
		VMSupport:    VMNone,
		WiFiBands:    []string{"2.4GHz", "5GHz"},
		EthernetMbps: 1000, LineMbps: 1000,
		TempFields: []string{"temp_cpum", "temp_cpub", "temp_sw"},
	},
}

// modelMarkers classifies a model identifier by ordered substring match; the
// first matching row wins. Newer generations carry gateway codes that contain
// older generations' markers (fbxgw8 contains fbxgw), so specific rows must
// stay above generic ones. Treat this table as deployed-behavior data: do not
// reorder or "improve" the matching.
var modelMarkers = []struct {
	marker string
	family Family
}{
	{"fbxgw9", FamilyUltra},
	{"ultra", FamilyUltra},
	{"fbxgw8", FamilyPop},
	{"pop", FamilyPop},
	{"fbxgw7", FamilyDelta},
	{"delta", FamilyDelta},
	{"one", FamilyOne},
	{"mini", FamilyMini4K},
	{"fbxgw", FamilyRevolution},
	{"revolution", FamilyRevolution},
	{"v6", FamilyRevolution},
}

func classifyModel(id string) Family {
	id = strings.ToLower(id)
	for _, row := range modelMarkers {
		if strings.Contains(id, row.marker) {
			return row.family
		}
	}
	return FamilyUnknown
}

// FamilyDefaults returns the static capability table for a family, falling
// back to the unknown profile for unlisted names.
func FamilyDefaults(f Family) Capabilities {
	if caps, ok := familyTable[f]; ok {
		return caps
	}
	return familyTable[FamilyUnknown]
}

// Detector translates the appliance's discovery document into a Capabilities
// record, with a freshness window and at most one detection in flight at a
// time. Detection failures are never surfaced: callers always get a fully
// populated record, degraded to the unknown profile if needed.
type Detector struct {
	logger zerolog.Logger
	client *Client
	ttl    time.Duration

	// Override, when set to a known family name, bypasses live detection and
	// returns that family's static table with a synthetic display name.
	Override string

	// OnFallback, if set, observes silent degradations to the unknown profile.
	OnFallback func(reason string, err error)

	mu        sync.Mutex
	cached    *Capabilities
	fetchedAt time.Time
	gen       uint64
	inflight  chan struct{}
}

const detectTTL = 5 * time.Minute

func NewDetector(logger zerolog.Logger, client *Client) *Detector {
	return &Detector{
		logger: logger.With().Str("component", "capability-detector").Logger(),
		client: client,
		ttl:    detectTTL,
	}
}

// DetectModel returns the hardware capabilities, from cache when fresh.
// Concurrent callers during a cold cache share a single appliance call.
func (d *Detector) DetectModel(ctx context.Context) Capabilities {
	if d.Override != "" {
		caps := FamilyDefaults(Family(d.Override))
		caps.DisplayName = "Simulated " + caps.DisplayName
		return caps
	}

	for {
		d.mu.Lock()
		if d.cached != nil && time.Since(d.fetchedAt) < d.ttl {
			caps := *d.cached
			d.mu.Unlock()
			return caps
		}
		if d.inflight == nil {
			break
		}
		wait := d.inflight
		d.mu.Unlock()
		select {
		case <-wait:
		case <-ctx.Done():
			return FamilyDefaults(FamilyUnknown)
		}
	}

	done := make(chan struct{})
	d.inflight = done
	gen := d.gen
	d.mu.Unlock()

	caps := d.detect(ctx)

	d.mu.Lock()
	// A ClearCache since this flight started invalidates its result: the
	// caller still gets it, the cache does not.
	if d.gen == gen {
		d.cached = &caps
		d.fetchedAt = time.Now()
	}
	if d.inflight == done {
		d.inflight = nil
	}
	close(done)
	d.mu.Unlock()
	return caps
}

// Refresh drops the cache and re-detects unconditionally. The cached value is
// replaced even when detection degrades to the unknown profile.
func (d *Detector) Refresh(ctx context.Context) Capabilities {
	d.ClearCache()
	return d.DetectModel(ctx)
}

// ClearCache drops the cached record, the timestamp and any detection in
// flight: a flight started before the clear still answers its own callers but
// no longer repopulates the cache. Called on logout: capabilities are
// session-scoped even though detection itself needs no session.
func (d *Detector) ClearCache() {
	d.mu.Lock()
	d.cached = nil
	d.fetchedAt = time.Time{}
	d.gen++
	d.inflight = nil
	d.mu.Unlock()
}

func (d *Detector) detect(ctx context.Context) Capabilities {
	info, err := d.client.Discover(ctx)
	if err != nil {
		d.fallback("discovery call failed", err)
		return FamilyDefaults(FamilyUnknown)
	}

	name := info.BoxModelName
	if name == "" {
		name = info.BoxModel
	}
	if name == "" {
		name = info.DeviceName
	}
	if name == "" {
		d.fallback("discovery document carries no model field", nil)
		return FamilyDefaults(FamilyUnknown)
	}

	family := classifyModel(name + " " + info.BoxModel)
	caps := FamilyDefaults(family)
	caps.DisplayName = name
	// The gateway code's variant suffix marks diskless builds of otherwise
	// disk-bearing families.
	if strings.Contains(info.BoxModel, "/net") || strings.Contains(info.BoxModel, "/mini") {
		caps.InternalStorage = false
	}
	if family == FamilyUnknown {
		d.fallback("unrecognized model "+name, nil)
	}
	d.logger.Info().Str("model", name).Str("family", string(caps.Family)).Msg("hardware detected")
	return caps
}

func (d *Detector) fallback(reason string, err error) {
	if d.OnFallback != nil {
		d.OnFallback(reason, err)
		return
	}
	d.logger.Warn().Err(err).Str("reason", reason).Msg("capability detection degraded to unknown profile")
}
