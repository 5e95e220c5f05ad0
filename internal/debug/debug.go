// Package debug provides diagnostic tools for the tunnel client.
package debug

import (
	"fmt"
	"net"
	"strings"
	"time"

	"ssrlocal/internal/config"
)

// ProbeResult stores a single connect-timing measurement. SSR has no
// application-level ping frame, unlike the multiplexed tunnel this
// client descends from, so Probe measures raw TCP connect latency to
// the remote server instead.
type ProbeResult struct {
	Seq int
	RTT time.Duration
	Err error
}

// Probe dials the remote server count times and records connect
// latency for each attempt.
func Probe(cfg *config.Config, count int) []ProbeResult {
	if count <= 0 {
		count = 4
	}
	addr := net.JoinHostPort(cfg.RemoteHost, fmt.Sprintf("%d", cfg.RemotePort))

	results := make([]ProbeResult, count)
	for i := 0; i < count; i++ {
		start := time.Now()
		conn, err := net.DialTimeout("tcp", addr, 10*time.Second)
		rtt := time.Since(start)
		if err == nil {
			conn.Close()
		}
		results[i] = ProbeResult{Seq: i + 1, RTT: rtt, Err: err}
		if i < count-1 {
			time.Sleep(time.Second)
		}
	}
	return results
}

// FormatProbeResults formats probe results for display.
func FormatProbeResults(server string, results []ProbeResult) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("PROBE %s (%d attempts):\n", server, len(results)))

	var totalRTT time.Duration
	var minRTT, maxRTT time.Duration
	successCount := 0

	for _, r := range results {
		if r.Err != nil {
			sb.WriteString(fmt.Sprintf("  seq=%d error: %v\n", r.Seq, r.Err))
			continue
		}
		sb.WriteString(fmt.Sprintf("  seq=%d connect=%v\n", r.Seq, r.RTT.Round(time.Microsecond)))
		totalRTT += r.RTT
		successCount++
		if minRTT == 0 || r.RTT < minRTT {
			minRTT = r.RTT
		}
		if r.RTT > maxRTT {
			maxRTT = r.RTT
		}
	}

	sb.WriteString(fmt.Sprintf("\n--- %s probe statistics ---\n", server))
	sb.WriteString(fmt.Sprintf("%d attempted, %d succeeded, %.0f%% loss\n",
		len(results), successCount,
		float64(len(results)-successCount)/float64(len(results))*100))
	if successCount > 0 {
		avg := totalRTT / time.Duration(successCount)
		sb.WriteString(fmt.Sprintf("connect min/avg/max = %v/%v/%v\n",
			minRTT.Round(time.Microsecond),
			avg.Round(time.Microsecond),
			maxRTT.Round(time.Microsecond)))
	}
	return sb.String()
}

// Status checks connectivity to the remote server and reports the
// local listener configuration.
func Status(cfg *config.Config) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Remote: %s:%d\n", cfg.RemoteHost, cfg.RemotePort))
	sb.WriteString(fmt.Sprintf("Local listen: %s:%d\n", cfg.ListenHost, cfg.ListenPort))
	sb.WriteString(fmt.Sprintf("Method: %s  Protocol: %s  Obfs: %s\n", cfg.Method, cfg.Protocol, cfg.Obfs))

	sb.WriteString("\nConnectivity:\n")
	start := time.Now()
	addr := net.JoinHostPort(cfg.RemoteHost, fmt.Sprintf("%d", cfg.RemotePort))
	conn, err := net.DialTimeout("tcp", addr, 10*time.Second)
	if err != nil {
		sb.WriteString(fmt.Sprintf("  TCP: FAIL (%v)\n", err))
		return sb.String()
	}
	sb.WriteString(fmt.Sprintf("  TCP: OK (%v)\n", time.Since(start).Round(time.Microsecond)))
	conn.Close()
	return sb.String()
}

// CheckConfig validates a config file.
func CheckConfig(path string) string {
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Sprintf("ERROR: %v\n", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Sprintf("INVALID: %v\n", err)
	}

	var sb strings.Builder
	sb.WriteString("Config OK\n")
	sb.WriteString(fmt.Sprintf("  Listen: %s:%d\n", cfg.ListenHost, cfg.ListenPort))
	sb.WriteString(fmt.Sprintf("  Remote: %s:%d\n", cfg.RemoteHost, cfg.RemotePort))
	sb.WriteString(fmt.Sprintf("  Method: %s\n", cfg.Method))
	sb.WriteString(fmt.Sprintf("  Protocol: %s (param=%q)\n", cfg.Protocol, cfg.ProtocolParam))
	sb.WriteString(fmt.Sprintf("  Obfs: %s (param=%q)\n", cfg.Obfs, cfg.ObfsParam))
	sb.WriteString(fmt.Sprintf("  UDP: %v\n", cfg.UDP))
	return sb.String()
}
