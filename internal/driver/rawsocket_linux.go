//go:build linux

// Raw-socket production Driver. Packet (de)serialization is done with
// gopacket/layers rather than manual struct packing — grounded on
// _examples/firestige-Otus's pervasive gopacket decode usage — while the
// socket setup (IP_HDRINCL raw send socket, ip4:tcp listen socket, IHL-based
// header parsing) follows
// _examples/other_examples/0ba6502d_carverauto-serviceradar__pkg-scan-syn_scanner.go.go.
package driver

import (
	"fmt"
	"net"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/terrafind/sporefinder/internal/addr"
	"github.com/terrafind/sporefinder/internal/logctl"
)

// recvDeadline bounds each ReadFrom so Recv returns promptly (ok=false) when
// nothing is waiting, rather than blocking the receiver loop's 2ms back-off
// indefinitely (spec §5's "RX socket poll" suspension point).
const recvDeadline = 5 * time.Millisecond

// pkgName is the "crate" logctl.Enabled consults for this package's
// RUST_LOG-style overrides (spec §6).
const pkgName = "driver"

// RawSocket sends raw TCP control segments via an IP_HDRINCL raw socket and
// receives replies via a raw ip4:tcp listen socket. Packet crafting is
// stateless per call (spec §5): every Send* builds its own buffer, so the
// only shared state is the send file descriptor, which the kernel already
// synchronizes across concurrent writers, and the atomic source-port counter.
type RawSocket struct {
	sendFD     int
	listenConn net.PacketConn
	localIP    net.IP
	srcPortCtr atomic.Uint32
}

// NewRawSocket opens the send and receive sockets. Requires CAP_NET_RAW
// (typically root).
func NewRawSocket(localIP net.IP) (*RawSocket, error) {
	fd, err := syscall.Socket(syscall.AF_INET, syscall.SOCK_RAW, syscall.IPPROTO_TCP)
	if err != nil {
		return nil, fmt.Errorf("driver: open send socket: %w", err)
	}
	if err := syscall.SetsockoptInt(fd, syscall.IPPROTO_IP, syscall.IP_HDRINCL, 1); err != nil {
		syscall.Close(fd)
		return nil, fmt.Errorf("driver: set IP_HDRINCL (requires CAP_NET_RAW): %w", err)
	}

	conn, err := net.ListenPacket("ip4:tcp", "0.0.0.0")
	if err != nil {
		syscall.Close(fd)
		return nil, fmt.Errorf("driver: open listen socket: %w", err)
	}

	return &RawSocket{sendFD: fd, listenConn: conn, localIP: localIP.To4()}, nil
}

func (r *RawSocket) allocSrcPort() uint16 {
	n := r.srcPortCtr.Add(1)
	return uint16(SourcePortBase + int(n%SourcePortSpan))
}

func (r *RawSocket) buildAndSend(dstAddr addr.V4, srcPort, dstPort uint16, seq, ack uint32, flags Flags, payload []byte) error {
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    r.localIP,
		DstIP:    dstAddr.ToNetIP(),
	}
	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(srcPort),
		DstPort: layers.TCPPort(dstPort),
		Seq:     seq,
		Ack:     ack,
		SYN:     flags.SYN,
		ACK:     flags.ACK,
		PSH:     flags.PSH,
		RST:     flags.RST,
		FIN:     flags.FIN,
		Window:  1024,
	}
	if err := tcp.SetNetworkLayerForChecksum(ip); err != nil {
		return fmt.Errorf("driver: set checksum layer: %w", err)
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, ip, tcp, gopacket.Payload(payload)); err != nil {
		return fmt.Errorf("driver: serialize: %w", err)
	}

	dstSockAddr := syscall.SockaddrInet4{Port: int(dstPort)}
	copy(dstSockAddr.Addr[:], dstAddr.ToNetIP().To4())
	if err := syscall.Sendto(r.sendFD, buf.Bytes(), 0, &dstSockAddr); err != nil {
		// Transient TX errors are dropped silently per spec §7: loss here
		// is indistinguishable from network loss.
		if logctl.Enabled(pkgName, logctl.LevelTrace) {
			glog.Infof("driver: sendto dropped: %v", err)
		}
		return nil
	}
	return nil
}

func (r *RawSocket) SendSYN(dst addr.SocketV4, isn uint32) error {
	srcPort := r.allocSrcPort()
	return r.buildAndSend(dst.Addr, srcPort, dst.Port, isn, 0, Flags{SYN: true}, nil)
}

func (r *RawSocket) SendACK(dst addr.SocketV4, srcPort uint16, seq, ack uint32) error {
	return r.buildAndSend(dst.Addr, srcPort, dst.Port, seq, ack, Flags{ACK: true}, nil)
}

func (r *RawSocket) SendData(dst addr.SocketV4, srcPort uint16, seq, ack uint32, payload []byte) error {
	return r.buildAndSend(dst.Addr, srcPort, dst.Port, seq, ack, Flags{ACK: true, PSH: true}, payload)
}

func (r *RawSocket) SendRST(dst addr.SocketV4, srcPort uint16, seq, ack uint32) error {
	return r.buildAndSend(dst.Addr, srcPort, dst.Port, seq, ack, Flags{RST: true}, nil)
}

func (r *RawSocket) SendFIN(dst addr.SocketV4, srcPort uint16, seq, ack uint32) error {
	return r.buildAndSend(dst.Addr, srcPort, dst.Port, seq, ack, Flags{FIN: true, ACK: true}, nil)
}

// Recv reads one IP packet off the listen socket and decodes its TCP layer.
// The listen socket is non-blocking-ish in practice via a short read
// deadline, so a call with nothing waiting returns ok=false quickly rather
// than blocking the receiver loop's 2ms back-off indefinitely.
func (r *RawSocket) Recv() (Segment, bool) {
	buf := make([]byte, 65536)
	r.listenConn.SetReadDeadline(time.Now().Add(recvDeadline))
	n, _, err := r.listenConn.ReadFrom(buf)
	if err != nil {
		return Segment{}, false
	}

	packet := gopacket.NewPacket(buf[:n], layers.LayerTypeIPv4, gopacket.DecodeOptions{Lazy: true, NoCopy: true})
	ipLayer := packet.Layer(layers.LayerTypeIPv4)
	tcpLayer := packet.Layer(layers.LayerTypeTCP)
	if ipLayer == nil || tcpLayer == nil {
		return Segment{}, false
	}
	ip, _ := ipLayer.(*layers.IPv4)
	tcp, _ := tcpLayer.(*layers.TCP)

	return Segment{
		Source: addr.SocketV4{
			Addr: addr.FromNetIP(ip.SrcIP),
			Port: uint16(tcp.SrcPort),
		},
		DestPort:       uint16(tcp.DstPort),
		Sequence:       tcp.Seq,
		Acknowledgment: tcp.Ack,
		Flags: Flags{
			SYN: tcp.SYN,
			ACK: tcp.ACK,
			PSH: tcp.PSH,
			RST: tcp.RST,
			FIN: tcp.FIN,
		},
		Payload: tcp.Payload,
	}, true
}

func (r *RawSocket) Close() error {
	err1 := syscall.Close(r.sendFD)
	err2 := r.listenConn.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
