package netLayer

import (
	"net"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/e1732a364fed/forwardproxy/utils"
	"github.com/yl2chen/cidranger"
)

// Rule 是对一个目标的裁决: 拦截, 直连, 或转发.
type Rule uint8

const (
	Block Rule = iota + 1
	Direct
	Forward
)

func (r Rule) String() string {
	switch r {
	case Block:
		return "block"
	case Direct:
		return "direct"
	case Forward:
		return "forward"
	}
	return "unknown"
}

// ParseRule 不区分大小写.
func ParseRule(s string) (Rule, error) {
	switch strings.ToLower(s) {
	case "block":
		return Block, nil
	case "direct":
		return Direct, nil
	case "forward":
		return Forward, nil
	}
	return 0, utils.ConfigErr("unknown rule", s)
}

// RuleTable 是 从域名到 Rule 的映射, 一旦建立就只读.
//
// 另外可以包含 cidr 形式的条目, 只用于匹配 ip 形式的目标.
type RuleTable struct {
	domains map[string]Rule
	ranger  cidranger.Ranger
}

type cidrEntry struct {
	network net.IPNet
	rule    Rule
}

func (e cidrEntry) Network() net.IPNet { return e.network }

func NewRuleTable() *RuleTable {
	return &RuleTable{
		domains: make(map[string]Rule),
		ranger:  cidranger.NewPCTrieRanger(),
	}
}

// Add 添加一个条目. 同一个域名以第一次出现的为准, 后面重复的返回 false.
// domain 若是 cidr 形式, 则放入 ranger.
func (t *RuleTable) Add(domain string, r Rule) bool {
	if strings.Contains(domain, "/") {
		_, network, err := net.ParseCIDR(domain)
		if err == nil {
			es, _ := t.ranger.ContainingNetworks(network.IP)
			for _, e := range es {
				n := e.Network()
				if n.String() == network.String() {
					return false
				}
			}
			t.ranger.Insert(cidrEntry{network: *network, rule: r})
			return true
		}
	}
	if _, found := t.domains[domain]; found {
		return false
	}
	t.domains[domain] = r
	return true
}

func (t *RuleTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.domains) + t.ranger.Len()
}

func (t *RuleTable) get(domain string) (Rule, bool) {
	r, ok := t.domains[domain]
	return r, ok
}

// 返回包含 ip 的最小网段的规则.
func (t *RuleTable) getIP(ip net.IP) (Rule, bool) {
	es, err := t.ranger.ContainingNetworks(ip)
	if err != nil || len(es) == 0 {
		return 0, false
	}
	// ContainingNetworks 按前缀长度从短到长排列
	return es[len(es)-1].(cidrEntry).rule, true
}

// RuleMatcher 在 RuleTable 上进行匹配, 并缓存每个输入域名的结果.
//
// 缓存只在 table 不变时有效, 所以 Reload 时会换一个新的缓存.
type RuleMatcher struct {
	Default Rule

	state atomic.Value //*matcherState
}

type matcherState struct {
	table *RuleTable
	cache sync.Map //string -> Rule
}

func NewRuleMatcher(def Rule, table *RuleTable) *RuleMatcher {
	m := &RuleMatcher{Default: def}
	m.Reload(table)
	return m
}

// Reload 换上新的 table, 并丢弃旧的缓存. table 可为 nil.
func (m *RuleMatcher) Reload(table *RuleTable) {
	m.state.Store(&matcherState{table: table})
}

func (m *RuleMatcher) Match(domain string) Rule {
	st := m.state.Load().(*matcherState)
	if st.table == nil || st.table.Len() == 0 {
		return m.Default
	}
	if r, ok := st.cache.Load(domain); ok {
		return r.(Rule)
	}
	r := m.match(st.table, domain)
	st.cache.Store(domain, r)
	return r
}

// 先完整匹配, 然后每次去掉最左边的一段再匹配: a.b.c -> b.c -> c. ip 则查找 cidr.
func (m *RuleMatcher) match(t *RuleTable, domain string) Rule {
	if r, ok := t.get(domain); ok {
		return r
	}
	if ip := net.ParseIP(domain); ip != nil {
		if r, ok := t.getIP(ip); ok {
			return r
		}
		return m.Default
	}
	for {
		i := strings.IndexByte(domain, '.')
		if i < 0 {
			return m.Default
		}
		domain = domain[i+1:]
		if r, ok := t.get(domain); ok {
			return r
		}
	}
}
