package collectors

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hakim/recongraph/internal/collector"
	"github.com/hakim/recongraph/internal/event"
	"github.com/hakim/recongraph/internal/netutil"
)

// PortScan probes a configurable list of TCP ports on in-scope addresses
// and grabs whatever banner the service volunteers.
type PortScan struct {
	collector.Base
}

func init() {
	Register("portscan", func() collector.Collector { return &PortScan{} })
}

func (p *PortScan) Meta() collector.Meta {
	return collector.Meta{
		Name:       "Port Scanner - TCP",
		Summary:    "Scans commonly used TCP ports on discovered IP addresses and retrieves service banners.",
		Flags:      []string{"slow", "invasive"},
		UseCases:   []string{"Footprint", "Investigate"},
		Categories: []string{"Crawling and Scanning"},
	}
}

func (p *PortScan) Opts() map[string]any {
	return map[string]any{
		"ports":        "21,22,23,25,53,79,80,110,111,113,119,123,135,137,139,143,161,179,389,443,445,465,512,513,514,515,3306,5432,1521,2638,1433,3389,5900,5901,5902,5903,8000,8080,8888,9000",
		"timeout":      5,
		"banners":      true,
		"maxbannerlen": 120,
	}
}

func (p *PortScan) OptDescs() map[string]string {
	return map[string]string{
		"ports":        "Comma-separated list of TCP ports to probe.",
		"timeout":      "Seconds to wait for each connection attempt.",
		"banners":      "Attempt to read a service banner from open ports.",
		"maxbannerlen": "Maximum banner length to report.",
	}
}

func (p *PortScan) Setup(ctx *collector.Context, userOpts map[string]any) error {
	p.Init("portscan")
	p.Configure(ctx, p.Opts(), userOpts)
	return nil
}

func (p *PortScan) WatchedEvents() []string {
	return []string{"IP_ADDRESS"}
}

func (p *PortScan) ProducedEvents() []string {
	return []string{"TCP_PORT_OPEN", "TCP_PORT_OPEN_BANNER"}
}

func (p *PortScan) HandleEvent(e *event.Event) error {
	if p.CheckForStop() {
		return nil
	}
	ip := e.Data
	if p.AlreadyProcessed(ip) {
		return nil
	}

	timeout := time.Duration(p.OptInt("timeout")) * time.Second

	for _, portStr := range strings.Split(p.OptString("ports"), ",") {
		if p.CheckForStop() {
			return nil
		}
		port, err := strconv.Atoi(strings.TrimSpace(portStr))
		if err != nil {
			continue
		}

		conn, err := netutil.SafeSocket(ip, port, timeout)
		if err != nil {
			continue
		}

		open := fmt.Sprintf("%s:%d", ip, port)
		p.EmitEvent("TCP_PORT_OPEN", open, e)

		if p.OptBool("banners") {
			if banner := p.readBanner(conn, timeout); banner != "" {
				ev, err := p.NewEvent("TCP_PORT_OPEN_BANNER", banner, e)
				if err == nil {
					ev.ActualSource = open
					p.Notify(ev)
				}
			}
		}
		conn.Close()
	}
	return nil
}

// readBanner waits briefly for the service to speak first and returns the
// first line it sends, trimmed and length-capped.
func (p *PortScan) readBanner(conn interface {
	SetReadDeadline(time.Time) error
	Read([]byte) (int, error)
}, timeout time.Duration) string {
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return ""
	}
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil && line == "" {
		return ""
	}
	line = strings.TrimSpace(line)
	if maxLen := p.OptInt("maxbannerlen"); maxLen > 0 && len(line) > maxLen {
		line = line[:maxLen]
	}
	return line
}

var _ collector.Collector = (*PortScan)(nil)
