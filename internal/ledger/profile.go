package ledger

import (
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/evidenceledger/ledgergateway/internal/wallet"
)

// Discovery policy written into the default channel of a session profile
const (
	discoveryMaxTargets   = 2
	discoveryAttempts     = 4
	discoveryInitialDelay = "500ms"
	discoveryMaxDelay     = "5s"
)

// Profile is a network connection profile. Only the parts the gateway
// inspects are typed; Raw keeps the whole document for the SDK.
type Profile struct {
	Path string `yaml:"-"`
	Raw  []byte `yaml:"-"`

	Name          string                          `yaml:"name"`
	Version       string                          `yaml:"version"`
	Client        ProfileClient                   `yaml:"client"`
	Organizations map[string]*ProfileOrganization `yaml:"organizations"`
	Orderers      map[string]*ProfileNode         `yaml:"orderers"`
	Peers         map[string]*ProfileNode         `yaml:"peers"`
	Channels      map[string]*ProfileChannel      `yaml:"channels"`
}

type ProfileClient struct {
	Organization string `yaml:"organization"`
}

type ProfileOrganization struct {
	MSPID                  string   `yaml:"mspid"`
	Peers                  []string `yaml:"peers"`
	CertificateAuthorities []string `yaml:"certificateAuthorities"`
}

type ProfileNode struct {
	URL string `yaml:"url"`
}

type ProfileChannel struct {
	Peers map[string]struct {
		EndorsingPeer  bool `yaml:"endorsingPeer"`
		ChaincodeQuery bool `yaml:"chaincodeQuery"`
		LedgerQuery    bool `yaml:"ledgerQuery"`
		EventSource    bool `yaml:"eventSource"`
	} `yaml:"peers"`
}

// LoadProfile reads and parses the connection profile at path
func LoadProfile(path string) (*Profile, error) {
	raw, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, errors.Wrapf(err, "reading connection profile %s failed", path)
	}
	p, err := ParseProfile(raw)
	if err != nil {
		return nil, errors.WithMessagef(err, "connection profile %s", path)
	}
	p.Path = path
	return p, nil
}

// ParseProfile parses a YAML connection profile
func ParseProfile(raw []byte) (*Profile, error) {
	p := &Profile{}
	if err := yaml.Unmarshal(raw, p); err != nil {
		return nil, errors.Wrap(err, "parsing connection profile failed")
	}
	if len(p.Peers) == 0 && len(p.Organizations) == 0 {
		return nil, errors.New("connection profile declares no organizations or peers")
	}
	p.Raw = raw
	return p, nil
}

// PeersOf returns the peers the profile lists for an organization
func (p *Profile) PeersOf(orgName string) []string {
	if org, ok := p.Organizations[orgName]; ok && org != nil {
		return org.Peers
	}
	return nil
}

// WithClientTLS returns a copy of the raw profile whose client section carries
// the given certificate and key for mutual TLS. Key order of the original
// document is kept.
func (p *Profile) WithClientTLS(certPEM, keyPEM string) ([]byte, error) {
	return p.amend(func(doc yaml.MapSlice) yaml.MapSlice {
		return withClientTLS(doc, certPEM, keyPEM)
	})
}

// ForSession returns the raw profile a session connects with. Localhost
// addressing maps every peer and orderer to localhost through entity
// matchers, keeping the TLS host name. With discovery the default channel
// gets a discovery policy; without it every channel is pinned to the peers of
// the client organization. A non-nil cred is bound as the client TLS pair.
func (p *Profile) ForSession(opts SessionOptions, cred *wallet.TransportCredential) ([]byte, error) {
	return p.amend(func(doc yaml.MapSlice) yaml.MapSlice {
		if cred != nil {
			doc = withClientTLS(doc, cred.Certificate, cred.PrivateKey)
		}
		if opts.AsLocalhost {
			doc = setPath(doc, []string{"entityMatchers", "peer"}, localhostMatchers(p.Peers))
			doc = setPath(doc, []string{"entityMatchers", "orderer"}, localhostMatchers(p.Orderers))
		}
		if opts.Discovery {
			return setPath(doc, []string{"channels", "_default", "policies", "discovery"}, yaml.MapSlice{
				{Key: "maxTargets", Value: discoveryMaxTargets},
				{Key: "retryOpts", Value: yaml.MapSlice{
					{Key: "attempts", Value: discoveryAttempts},
					{Key: "initialBackoff", Value: discoveryInitialDelay},
					{Key: "maxBackoff", Value: discoveryMaxDelay},
					{Key: "backoffFactor", Value: 2.0},
				}},
			})
		}
		return p.pinChannels(doc)
	})
}

func (p *Profile) amend(edit func(yaml.MapSlice) yaml.MapSlice) ([]byte, error) {
	var doc yaml.MapSlice
	if err := yaml.Unmarshal(p.Raw, &doc); err != nil {
		return nil, errors.Wrap(err, "parsing connection profile failed")
	}

	out, err := yaml.Marshal(edit(doc))
	if err != nil {
		return nil, errors.Wrap(err, "encoding connection profile failed")
	}
	return out, nil
}

func withClientTLS(doc yaml.MapSlice, certPEM, keyPEM string) yaml.MapSlice {
	doc = setPath(doc, []string{"client", "tlsCerts", "client", "cert", "pem"}, certPEM)
	return setPath(doc, []string{"client", "tlsCerts", "client", "key", "pem"}, keyPEM)
}

// pinChannels makes the peers of the client organization the only peers of
// every named channel
func (p *Profile) pinChannels(doc yaml.MapSlice) yaml.MapSlice {
	peers := p.PeersOf(p.Client.Organization)
	for _, name := range sortedKeys(p.Channels) {
		if name == "_default" {
			continue
		}
		pinned := make(yaml.MapSlice, 0, len(peers))
		for _, peer := range peers {
			pinned = append(pinned, yaml.MapItem{Key: peer, Value: yaml.MapSlice{
				{Key: "endorsingPeer", Value: true},
				{Key: "chaincodeQuery", Value: true},
				{Key: "ledgerQuery", Value: true},
				{Key: "eventSource", Value: true},
			}})
		}
		doc = setPath(doc, []string{"channels", name, "peers"}, pinned)
	}
	return doc
}

// localhostMatchers builds the entity matchers sending every node to
// localhost on its own port. They match the node by host name, with or
// without a port, which also covers addresses learned through discovery.
func localhostMatchers(nodes map[string]*ProfileNode) []yaml.MapSlice {
	matchers := []yaml.MapSlice{}
	for _, name := range sortedKeys(nodes) {
		node := nodes[name]
		if node == nil {
			continue
		}
		u, err := url.Parse(node.URL)
		if err != nil || u.Hostname() == "" {
			continue
		}

		local := "localhost"
		if port := u.Port(); port != "" {
			local += ":" + port
		}
		if u.Scheme != "" {
			local = u.Scheme + "://" + local
		}

		matchers = append(matchers, yaml.MapSlice{
			{Key: "pattern", Value: "^" + regexp.QuoteMeta(u.Hostname()) + `(:\d+)?$`},
			{Key: "urlSubstitutionExp", Value: local},
			{Key: "sslTargetOverrideUrlSubstitutionExp", Value: u.Hostname()},
			{Key: "mappedHost", Value: name},
		})
	}
	return matchers
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// setPath sets value at the nested key path, creating intermediate maps
func setPath(doc yaml.MapSlice, path []string, value interface{}) yaml.MapSlice {
	key := path[0]
	for i := range doc {
		if k, ok := doc[i].Key.(string); !ok || k != key {
			continue
		}
		if len(path) == 1 {
			doc[i].Value = value
			return doc
		}
		child, _ := doc[i].Value.(yaml.MapSlice)
		doc[i].Value = setPath(child, path[1:], value)
		return doc
	}

	if len(path) == 1 {
		return append(doc, yaml.MapItem{Key: key, Value: value})
	}
	return append(doc, yaml.MapItem{Key: key, Value: setPath(nil, path[1:], value)})
}
