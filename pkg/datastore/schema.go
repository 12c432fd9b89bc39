package datastore

// SchemaNode describes one declared leaf: its value type, default, and
// enumeration range. Shape strings omit key predicates.
type SchemaNode struct {
	Path     string
	Type     string // string, boolean, uint16, enumeration
	Default  string
	Enums    []string
	LeafList bool
}

// HasEnum reports whether v is in the node's declared enumeration.
func (n *SchemaNode) HasEnum(v string) bool {
	for _, e := range n.Enums {
		if e == v {
			return true
		}
	}
	return false
}

// Schema is a static registry of declared leaves keyed by path shape.
type Schema struct {
	nodes map[string]*SchemaNode
}

// NewSchema builds a schema from node definitions.
func NewSchema(nodes []*SchemaNode) *Schema {
	m := make(map[string]*SchemaNode, len(nodes))
	for _, n := range nodes {
		m[n.Path] = n
	}
	return &Schema{nodes: m}
}

// FindNode returns the declared node for a path, or nil if the path is not
// part of the schema.
func (s *Schema) FindNode(p Path) *SchemaNode {
	return s.nodes[p.ShapeString()]
}

// FindNodeString is FindNode for an unparsed path.
func (s *Schema) FindNodeString(path string) *SchemaNode {
	p, err := ParsePath(path)
	if err != nil {
		return nil
	}
	return s.FindNode(p)
}

// Leaves returns all declared leaf shapes, sorted order not guaranteed.
func (s *Schema) Leaves() []*SchemaNode {
	out := make([]*SchemaNode, 0, len(s.nodes))
	for _, n := range s.nodes {
		out = append(out, n)
	}
	return out
}

// DefaultFor returns the declared default for a leaf name, searching the
// config containers of the interfaces model the way the reconcile path
// fills unset attributes. Returns "" if the leaf has no default.
func (s *Schema) DefaultFor(leaf string) string {
	shapes := []string{
		"interfaces/interface/config/" + leaf,
		"interfaces/interface/ethernet/config/" + leaf,
		"interfaces/interface/ethernet/auto-negotiate/config/" + leaf,
	}
	for _, shape := range shapes {
		if n, ok := s.nodes[shape]; ok && n.Default != "" {
			return n.Default
		}
	}
	return ""
}

// Interface-type enumerations grouped by lane count. A port running n
// channels only accepts types whose lane count matches 4/n lanes.
var (
	SingleLaneInterfaceTypes = []string{"CR", "LR", "SR", "KR"}
	DoubleLaneInterfaceTypes = []string{"CR2", "LR2", "SR2", "KR2"}
	QuadLaneInterfaceTypes   = []string{"CR4", "LR4", "SR4", "KR4"}
)

func allInterfaceTypes() []string {
	out := make([]string, 0, 12)
	out = append(out, SingleLaneInterfaceTypes...)
	out = append(out, DoubleLaneInterfaceTypes...)
	out = append(out, QuadLaneInterfaceTypes...)
	return out
}

// InterfacesSchema returns the declared schema for the interfaces and
// uplink-failure-detection models.
func InterfacesSchema() *Schema {
	return NewSchema([]*SchemaNode{
		{Path: "interfaces/interface/name", Type: "string"},
		{Path: "interfaces/interface/config/name", Type: "string"},
		{Path: "interfaces/interface/config/description", Type: "string"},
		{Path: "interfaces/interface/config/admin-status", Type: "enumeration",
			Enums: []string{"UP", "DOWN"}, Default: "UP"},
		{Path: "interfaces/interface/config/interface-type", Type: "enumeration",
			Enums: []string{"IF_ETHERNET"}, Default: "IF_ETHERNET"},
		{Path: "interfaces/interface/config/loopback-mode", Type: "enumeration",
			Enums: []string{"NONE", "SHALLOW", "DEEP"}, Default: "NONE"},
		{Path: "interfaces/interface/config/prbs-mode", Type: "enumeration",
			Enums: []string{"NONE", "PRBS7", "PRBS31"}, Default: "NONE"},

		{Path: "interfaces/interface/ethernet/config/mtu", Type: "uint16", Default: "9100"},
		{Path: "interfaces/interface/ethernet/config/fec", Type: "enumeration",
			Enums: []string{"NONE", "RS", "FC"}, Default: "NONE"},
		{Path: "interfaces/interface/ethernet/config/interface-type", Type: "enumeration",
			Enums: allInterfaceTypes()},
		{Path: "interfaces/interface/ethernet/config/speed", Type: "enumeration",
			Enums: []string{"SPEED_10G", "SPEED_25G", "SPEED_40G", "SPEED_50G", "SPEED_100G"}},

		{Path: "interfaces/interface/ethernet/breakout/config/num-channels", Type: "uint8",
			Enums: []string{"2", "4"}},
		{Path: "interfaces/interface/ethernet/breakout/config/channel-speed", Type: "enumeration",
			Enums: []string{"SPEED_10G", "SPEED_25G", "SPEED_50G"}},

		{Path: "interfaces/interface/ethernet/auto-negotiate/config/enabled", Type: "boolean",
			Default: "false"},
		{Path: "interfaces/interface/ethernet/auto-negotiate/config/advertised-speeds",
			Type: "enumeration", LeafList: true,
			Enums: []string{"SPEED_10G", "SPEED_25G", "SPEED_40G", "SPEED_50G", "SPEED_100G"}},

		{Path: "interfaces/interface/switched-vlan/config/interface-mode", Type: "enumeration",
			Enums: []string{"ACCESS", "TRUNK"}},
		{Path: "interfaces/interface/switched-vlan/config/access-vlan", Type: "uint16"},
		{Path: "interfaces/interface/switched-vlan/config/trunk-vlans", Type: "uint16", LeafList: true},

		{Path: "interfaces/interface/component-connection/platform", Type: "string"},

		{Path: "ufd-groups/ufd-group/config/id", Type: "string"},
		{Path: "ufd-groups/ufd-group/config/uplink", Type: "string", LeafList: true},
		{Path: "ufd-groups/ufd-group/config/downlink", Type: "string", LeafList: true},
	})
}
