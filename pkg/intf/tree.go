package intf

import (
	"fmt"
	"sort"

	"github.com/onyx-network/onyx/pkg/datastore"
	"github.com/onyx-network/onyx/pkg/util"
)

// handlerFactory builds one handler for a group of events. Leaf bindings
// receive exactly one event; composite subtree bindings receive every event
// of the batch that landed under the subtree for one interface.
type handlerFactory func(s *Server, evs []datastore.ChangeEvent) (Handler, error)

type binding struct {
	factory handlerFactory
	// composite bindings coalesce all of one interface's events under the
	// subtree into a single handler, so jointly-constrained leaves are
	// evaluated together.
	composite bool
}

type treeNode struct {
	binding  *binding
	children map[string]*treeNode
}

// HandlerTree routes a path shape to the deepest registered binding. The
// registry is static: it is populated once at server construction and a
// path with no binding is a setup error, never a user-facing one.
type HandlerTree struct {
	root *treeNode
}

func newHandlerTree() *HandlerTree {
	return &HandlerTree{root: &treeNode{children: make(map[string]*treeNode)}}
}

func (t *HandlerTree) bind(shape []string, b *binding) {
	n := t.root
	for _, name := range shape {
		child, ok := n.children[name]
		if !ok {
			child = &treeNode{children: make(map[string]*treeNode)}
			n.children[name] = child
		}
		n = child
	}
	n.binding = b
}

func (t *HandlerTree) leaf(path string, f handlerFactory) {
	t.bind(datastore.MustParsePath(path).Shape(), &binding{factory: f})
}

func (t *HandlerTree) subtree(path string, f handlerFactory) {
	t.bind(datastore.MustParsePath(path).Shape(), &binding{factory: f, composite: true})
}

// resolve walks the shape to the most specific binding.
func (t *HandlerTree) resolve(p datastore.Path) (*binding, error) {
	n := t.root
	var deepest *binding
	if n.binding != nil {
		deepest = n.binding
	}
	for _, name := range p.Shape() {
		child, ok := n.children[name]
		if !ok {
			break
		}
		n = child
		if n.binding != nil {
			deepest = n.binding
		}
	}
	if deepest == nil {
		return nil, fmt.Errorf("%w: %s", util.ErrUnboundPath, p.String())
	}
	return deepest, nil
}

// verifyCoverage checks at setup time that every declared schema leaf
// resolves to a binding. A gap here is a programming error.
func (t *HandlerTree) verifyCoverage(schema *datastore.Schema) error {
	var missing []string
	for _, node := range schema.Leaves() {
		p := datastore.MustParsePath(node.Path)
		if _, err := t.resolve(p); err != nil {
			missing = append(missing, node.Path)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("%w: schema leaves without binding: %v", util.ErrUnboundPath, missing)
	}
	return nil
}

func noop(*Server, []datastore.ChangeEvent) (Handler, error) {
	return noopHandler{}, nil
}

// buildHandlerTree declares the full static registry.
func buildHandlerTree() *HandlerTree {
	t := newHandlerTree()

	t.leaf("interfaces/interface/name", noop)
	t.leaf("interfaces/interface/config/name", noop)
	t.leaf("interfaces/interface/config/description", newDescriptionHandler)
	t.leaf("interfaces/interface/config/admin-status", newAdminStatusHandler)
	t.leaf("interfaces/interface/config/interface-type", newIfTypeHandler)
	t.leaf("interfaces/interface/config/loopback-mode", newLoopbackModeHandler)
	t.leaf("interfaces/interface/config/prbs-mode", newPRBSModeHandler)

	t.leaf("interfaces/interface/ethernet/config/mtu", newMTUHandler)
	t.leaf("interfaces/interface/ethernet/config/fec", newFECHandler)
	t.leaf("interfaces/interface/ethernet/config/interface-type", newEthIfTypeHandler)
	t.leaf("interfaces/interface/ethernet/config/speed", newSpeedHandler)

	// num-channels and channel-speed are never evaluated independently, so
	// the whole breakout subtree binds to one composite handler.
	t.subtree("interfaces/interface/ethernet/breakout", newBreakoutHandler)

	t.leaf("interfaces/interface/ethernet/auto-negotiate/config/enabled", newAutoNegHandler)
	t.leaf("interfaces/interface/ethernet/auto-negotiate/config/advertised-speeds", newAdvSpeedsHandler)

	t.leaf("interfaces/interface/switched-vlan/config/interface-mode", newVLANModeHandler)
	t.leaf("interfaces/interface/switched-vlan/config/access-vlan", newAccessVLANHandler)
	t.leaf("interfaces/interface/switched-vlan/config/trunk-vlans", newTrunkVLANsHandler)

	t.leaf("interfaces/interface/component-connection/platform", noop)

	t.leaf("ufd-groups/ufd-group/config/id", noop)
	t.leaf("ufd-groups/ufd-group/config/uplink", newUFDMemberHandler)
	t.leaf("ufd-groups/ufd-group/config/downlink", newUFDMemberHandler)

	return t
}

// boundHandler pairs a constructed handler with the path it answers for, so
// apply failures can name the offending leaf.
type boundHandler struct {
	h    Handler
	path string
}

// buildHandlers constructs one handler per event in event order, coalescing
// consecutive events that share a composite binding and interface into one
// handler invocation.
func (s *Server) buildHandlers(events []datastore.ChangeEvent) ([]boundHandler, error) {
	var out []boundHandler
	for i := 0; i < len(events); {
		b, err := s.tree.resolve(events[i].Path)
		if err != nil {
			return nil, err
		}
		group := events[i : i+1]
		if b.composite {
			name := events[i].Path.KeyFor("interface")
			j := i + 1
			for j < len(events) {
				nb, err := s.tree.resolve(events[j].Path)
				if err != nil {
					return nil, err
				}
				if nb != b || events[j].Path.KeyFor("interface") != name {
					break
				}
				j++
			}
			group = events[i:j]
		}
		h, err := b.factory(s, group)
		if err != nil {
			return nil, err
		}
		out = append(out, boundHandler{h: h, path: group[0].Path.String()})
		i += len(group)
	}
	return out, nil
}
