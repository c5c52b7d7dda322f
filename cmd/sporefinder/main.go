// Command sporefinder is an internet-wide stateless TCP scanner specialized
// for discovering Terraria game servers. It wires RangeSet, Throttler,
// FlowTable, the raw-socket Driver and ResultSink into the SynEmitter /
// StatelessReceiver / GarbageCollector trio and reports what it finds.
//
// Grounded on _examples/virtuallynathan-fbtracert/main.go's own main(): flag
// parsing, a stderr startup banner, glog for diagnostics, tablewriter for
// the final report, and config errors printed to stderr followed by a
// non-zero exit.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/golang/glog"

	"github.com/terrafind/sporefinder/internal/driver"
	"github.com/terrafind/sporefinder/internal/flow"
	"github.com/terrafind/sporefinder/internal/logctl"
	"github.com/terrafind/sporefinder/internal/metrics"
	"github.com/terrafind/sporefinder/internal/ranges"
	"github.com/terrafind/sporefinder/internal/report"
	"github.com/terrafind/sporefinder/internal/result"
	"github.com/terrafind/sporefinder/internal/scanner"
	"github.com/terrafind/sporefinder/internal/throttle"
)

const (
	defaultMaxPPS = 10_000

	// rescanThreshold and postScanSettle implement spec §4.9 and the
	// ordering guarantee in §5: a Finding is only trustworthy to the
	// orchestrator after the emitter has joined and a fixed settle window
	// has passed for in-flight replies to land.
	rescanThreshold = 2 * time.Hour
	postScanSettle  = 3 * time.Second
)

var (
	metricsAddr = flag.String("metricsAddr", "", "address to serve Prometheus /metrics on, e.g. :9090 (disabled if empty)")
	srcAddr     = flag.String("srcAddr", "", "source IPv4 address for raw sockets; auto-discovered if empty")
	outputDir   = flag.String("outputDir", "", "directory to write the results file into (default: current directory)")
)

func main() {
	flag.Parse()
	logctl.Init("RUST_LOG", "SPOREFINDER_LOG")
	flag.Set("v", strconv.Itoa(logctl.GlogVerbosity("")))
	report.PrintBanner(os.Stderr)

	if *metricsAddr != "" {
		metrics.Serve(*metricsAddr)
		glog.Infof("sporefinder: serving metrics on %s", *metricsAddr)
	}

	if flag.Arg(0) == "" {
		fmt.Fprintf(os.Stderr, "usage: sporefinder <ranges> [<max_pps>]\n")
		os.Exit(1)
	}

	maxPPS := defaultMaxPPS
	if flag.Arg(1) != "" {
		v, err := strconv.Atoi(flag.Arg(1))
		if err != nil || v <= 0 {
			fmt.Fprintf(os.Stderr, "sporefinder: invalid max_pps %q\n", flag.Arg(1))
			os.Exit(1)
		}
		maxPPS = v
	}

	scanRanges, err := ranges.ParseRanges(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "sporefinder: %v\n", err)
		os.Exit(1)
	}
	var set ranges.Set
	set.Extend(scanRanges)

	exclusions, err := ranges.DefaultExclusions()
	if err != nil {
		fmt.Fprintf(os.Stderr, "sporefinder: %v\n", err)
		os.Exit(1)
	}
	set.Exclude(exclusions)

	localIP, err := resolveSourceAddr(*srcAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sporefinder: %v\n", err)
		os.Exit(1)
	}

	drv, err := driver.NewRawSocket(localIP)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sporefinder: opening raw sockets (are you root?): %v\n", err)
		os.Exit(1)
	}
	defer drv.Close()

	sink := result.New()
	installAbortHandler(sink)

	glog.Infof("sporefinder: scanning %d targets at %d pps", set.Count(), maxPPS)

	start := time.Now()
	runPass(drv, &set, sink, maxPPS)
	elapsed := time.Since(start)

	if elapsed > rescanThreshold {
		glog.Infof("sporefinder: scan took %s (> %s), rescanning %d findings", elapsed, rescanThreshold, sink.Len())
		rescanSet := rescanRangeSet(sink)
		sink.Clear()
		runPass(drv, rescanSet, sink, maxPPS)
	}

	findings := sink.Snapshot()
	report.RenderTable(os.Stdout, findings)
	path, err := report.WriteResultsFile(*outputDir, time.Now(), findings)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sporefinder: %v\n", err)
		os.Exit(1)
	}
	glog.Infof("sporefinder: %d findings written to %s", len(findings), path)
}

// installAbortHandler wires spec §5's cancellation contract: a SIGINT
// snapshots the sink to stdout and exits 130. No graceful thread shutdown —
// in-flight flows leak, which is harmless because they hold no remote state.
func installAbortHandler(sink *result.Sink) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT)
	go func() {
		<-sigCh
		glog.Warningf("sporefinder: caught SIGINT, dumping %d findings", sink.Len())
		report.RenderTable(os.Stdout, sink.Snapshot())
		os.Exit(130)
	}()
}

// runPass runs one SynEmitter / StatelessReceiver / GarbageCollector trio
// over set to completion (spec §5's four long-lived threads, minus the
// orchestrator itself), then settles for postScanSettle before tearing the
// receiver and GC down so late in-flight replies still get classified.
func runPass(drv driver.Driver, set *ranges.Set, sink *result.Sink, maxPPS int) {
	table := flow.New()
	gc := flow.NewGarbageCollector(table)
	go gc.Run()
	defer gc.Stop()

	stopReceiver := make(chan struct{})
	recv := scanner.NewReceiver(drv, table, sink)
	go recv.Run(stopReceiver)
	defer close(stopReceiver)

	th := throttle.New(maxPPS)
	emit := scanner.NewEmitter(drv, table, th)
	emit.Run(context.Background(), set)

	time.Sleep(postScanSettle)
}

// rescanRangeSet builds the single-host, single-port RangeSet spec §4.9
// step 3 describes: exactly one ScanRange per existing finding.
func rescanRangeSet(sink *result.Sink) *ranges.Set {
	findings := sink.Snapshot()
	scanRanges := make([]ranges.ScanRange, 0, len(findings))
	for _, f := range findings {
		scanRanges = append(scanRanges, ranges.Single(f.Address.Addr, f.Address.Port))
	}
	var set ranges.Set
	set.Extend(scanRanges)
	return &set
}

// resolveSourceAddr picks the source IPv4 address raw SYNs are sent from,
// following the auto-discovery fallback in
// _examples/virtuallynathan-fbtracert/main.go's getSourceAddr.
func resolveSourceAddr(explicit string) (net.IP, error) {
	if explicit != "" {
		ip := net.ParseIP(explicit)
		if ip == nil || ip.To4() == nil {
			return nil, fmt.Errorf("srcAddr %q is not a valid IPv4 address", explicit)
		}
		return ip, nil
	}

	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, fmt.Errorf("discovering source address: %w", err)
	}
	for _, a := range addrs {
		if ipnet, ok := a.(*net.IPNet); ok && !ipnet.IP.IsLoopback() && ipnet.IP.To4() != nil {
			return ipnet.IP, nil
		}
	}
	return nil, fmt.Errorf("could not auto-discover a source IPv4 address, pass -srcAddr")
}
