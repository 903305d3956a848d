package daemon

import (
	"context"
	"net"

	"github.com/libp2p/go-netroute"
	"github.com/miekg/dns"
)

// NetworkInfo describes the host's primary route and resolvers. Fields the
// host could not provide are empty.
type NetworkInfo struct {
	LocalIP    string   `json:"local_ip"`
	Gateway    string   `json:"gateway"`
	DNSServers []string `json:"dns_servers"`
}

// Router reports the route towards dst. netroute.New returns one.
type Router interface {
	Route(dst net.IP) (iface *net.Interface, gateway, preferredSrc net.IP, err error)
}

// NetInspector gathers NetworkInfo. Zero values use the system routing
// table and /etc/resolv.conf.
type NetInspector struct {
	ResolvConfPath string
	// NewRouter replaces netroute.New.
	NewRouter func() (Router, error)
}

func (n *NetInspector) resolvConfPath() string {
	if n.ResolvConfPath != "" {
		return n.ResolvConfPath
	}
	return "/etc/resolv.conf"
}

func (n *NetInspector) router() (Router, error) {
	if n.NewRouter != nil {
		return n.NewRouter()
	}
	return netroute.New()
}

// NetworkInfo never fails; missing facts are left empty.
func (n *NetInspector) NetworkInfo(ctx context.Context) NetworkInfo {
	info := NetworkInfo{DNSServers: []string{}}
	info.LocalIP, info.Gateway = n.defaultRoute()
	info.DNSServers = nameservers(n.resolvConfPath())
	return info
}

// defaultRoute returns the preferred source address and gateway of the
// IPv4 default route.
func (n *NetInspector) defaultRoute() (localIP, gateway string) {
	r, err := n.router()
	if err != nil {
		return "", ""
	}
	_, gw, src, err := r.Route(net.IPv4zero)
	if err != nil {
		return "", ""
	}
	if src != nil {
		localIP = src.String()
	}
	if gw != nil && !gw.IsUnspecified() {
		gateway = gw.String()
	}
	return localIP, gateway
}

func nameservers(path string) []string {
	cfg, err := dns.ClientConfigFromFile(path)
	if err != nil || len(cfg.Servers) == 0 {
		return []string{}
	}
	return cfg.Servers
}
