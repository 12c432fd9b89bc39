package intf

import (
	"strconv"
	"strings"

	"github.com/onyx-network/onyx/pkg/datastore"
	"github.com/onyx-network/onyx/pkg/util"
)

// checkEnum validates a set event's value against the declared enumeration
// of its schema node. Events from the in-process store arrive pre-checked;
// an external engine's events get the same guarantee here.
func (h *ifHandler) checkEnum() error {
	if !h.ev.IsSet() {
		return nil
	}
	node := h.srv.schema.FindNode(h.ev.Path)
	if node == nil || len(node.Enums) == 0 {
		return nil
	}
	if !node.HasEnum(h.ev.NewValue) {
		return util.NewValidationErrorf("%s %q not valid on %s, valid values: %v",
			h.ev.Path[len(h.ev.Path)-1].Name, h.ev.NewValue, h.name, node.Enums)
	}
	return nil
}

// ===========================================================================
// PORT-table field handlers
// ===========================================================================

// portFieldHandler writes one PORT-table field and compensates by restoring
// the previously stored value on revert.
type portFieldHandler struct {
	ifHandler
	field   string
	value   string // "" deletes the field
	prev    string
	applied bool
}

func (h *portFieldHandler) Validate(tx *TxContext) error {
	return h.checkEnum()
}

func (h *portFieldHandler) Apply(tx *TxContext) error {
	prev, err := h.srv.drv.GetPortField(h.name, h.field)
	if err != nil {
		return err
	}
	h.prev = prev
	if err := h.writeField(h.value); err != nil {
		return err
	}
	h.applied = true
	return nil
}

func (h *portFieldHandler) Revert(tx *TxContext) error {
	if !h.applied {
		return nil
	}
	return h.writeField(h.prev)
}

func (h *portFieldHandler) writeField(v string) error {
	if v == "" {
		return h.srv.drv.DeletePortField(h.name, h.field)
	}
	return h.srv.drv.SetPortField(h.name, h.field, v)
}

func newPortFieldHandler(s *Server, ev datastore.ChangeEvent, field, value string) (portFieldHandler, error) {
	base, err := newIfHandler(s, ev)
	if err != nil {
		return portFieldHandler{}, err
	}
	return portFieldHandler{ifHandler: base, field: field, value: value}, nil
}

func newDescriptionHandler(s *Server, evs []datastore.ChangeEvent) (Handler, error) {
	ev := evs[0]
	h, err := newPortFieldHandler(s, ev, "description", ev.NewValue)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func newAdminStatusHandler(s *Server, evs []datastore.ChangeEvent) (Handler, error) {
	ev := evs[0]
	value := ev.NewValue
	if !ev.IsSet() {
		value = s.schema.DefaultFor("admin-status")
	}
	h, err := newPortFieldHandler(s, ev, "admin_status", strings.ToLower(value))
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func newFECHandler(s *Server, evs []datastore.ChangeEvent) (Handler, error) {
	ev := evs[0]
	value := ev.NewValue
	if !ev.IsSet() {
		value = s.schema.DefaultFor("fec")
	}
	h, err := newPortFieldHandler(s, ev, "fec", strings.ToLower(value))
	if err != nil {
		return nil, err
	}
	return &h, nil
}

type mtuHandler struct {
	portFieldHandler
}

func (h *mtuHandler) Validate(tx *TxContext) error {
	if !h.ev.IsSet() {
		return nil
	}
	if _, err := strconv.ParseUint(h.ev.NewValue, 10, 16); err != nil {
		return util.NewValidationErrorf("mtu %q on %s is not a valid uint16", h.ev.NewValue, h.name)
	}
	return nil
}

func newMTUHandler(s *Server, evs []datastore.ChangeEvent) (Handler, error) {
	ev := evs[0]
	value := ev.NewValue
	if !ev.IsSet() {
		value = s.schema.DefaultFor("mtu")
	}
	base, err := newPortFieldHandler(s, ev, "mtu", value)
	if err != nil {
		return nil, err
	}
	return &mtuHandler{portFieldHandler: base}, nil
}

// speedHandler writes the PORT-table speed in table form. The candidate set
// depends on topology: a channelized interface runs exactly its declared
// channel speed, an unchannelized primary picks from the full-lane speeds.
type speedHandler struct {
	portFieldHandler
}

func validSpeeds(cfg *datastore.Config, name string) []string {
	if d := breakoutDetail(cfg, name); d != nil {
		return []string{d.ChannelSpeed}
	}
	if util.IsPrimaryInterface(name) {
		return []string{"SPEED_40G", "SPEED_100G"}
	}
	return nil
}

func (h *speedHandler) Validate(tx *TxContext) error {
	if !h.ev.IsSet() {
		return nil
	}
	cfg, err := tx.Config()
	if err != nil {
		return err
	}
	candidates := validSpeeds(cfg, h.name)
	for _, c := range candidates {
		if c == h.ev.NewValue {
			return nil
		}
	}
	return util.NewValidationErrorf("speed %s not supported on %s, valid speeds: %v",
		h.ev.NewValue, h.name, candidates)
}

func (h *speedHandler) Apply(tx *TxContext) error {
	if h.ev.IsSet() {
		h.value = util.SpeedSchemaToTable(h.ev.NewValue)
	} else {
		cfg, err := tx.Config()
		if err != nil {
			return err
		}
		h.value = h.srv.defaultSpeedTable(cfg, h.name)
	}
	return h.portFieldHandler.Apply(tx)
}

func newSpeedHandler(s *Server, evs []datastore.ChangeEvent) (Handler, error) {
	base, err := newPortFieldHandler(s, evs[0], "speed", "")
	if err != nil {
		return nil, err
	}
	return &speedHandler{portFieldHandler: base}, nil
}

// ===========================================================================
// fixed-value leaves
// ===========================================================================

// fixedValueHandler accepts exactly one value for a leaf the platform does
// not make configurable. Deleting the leaf is always allowed.
type fixedValueHandler struct {
	ifHandler
	leaf    string
	allowed string
}

func (h *fixedValueHandler) Validate(tx *TxContext) error {
	if h.ev.IsSet() && h.ev.NewValue != h.allowed {
		return util.NewValidationErrorf("%s %s not supported on %s, only %s",
			h.leaf, h.ev.NewValue, h.name, h.allowed)
	}
	return nil
}

func (h *fixedValueHandler) Apply(tx *TxContext) error { return nil }

func newFixedValueHandler(s *Server, ev datastore.ChangeEvent, leaf, allowed string) (Handler, error) {
	base, err := newIfHandler(s, ev)
	if err != nil {
		return nil, err
	}
	return &fixedValueHandler{ifHandler: base, leaf: leaf, allowed: allowed}, nil
}

func newIfTypeHandler(s *Server, evs []datastore.ChangeEvent) (Handler, error) {
	return newFixedValueHandler(s, evs[0], "interface-type", "IF_ETHERNET")
}

func newLoopbackModeHandler(s *Server, evs []datastore.ChangeEvent) (Handler, error) {
	return newFixedValueHandler(s, evs[0], "loopback-mode", "NONE")
}

func newPRBSModeHandler(s *Server, evs []datastore.ChangeEvent) (Handler, error) {
	return newFixedValueHandler(s, evs[0], "prbs-mode", "NONE")
}

// ===========================================================================
// vendor control-channel handlers
// ===========================================================================

// ethIfTypeHandler pushes the media interface type through the vendor
// channel. Revert reissues the previous value when the event carries one,
// otherwise falls back to the port's lane-count default.
type ethIfTypeHandler struct {
	ifHandler
	applied bool
}

func (h *ethIfTypeHandler) Validate(tx *TxContext) error {
	if !h.ev.IsSet() {
		return nil
	}
	cfg, err := tx.Config()
	if err != nil {
		return err
	}
	return validateInterfaceType(cfg, h.name, h.ev.NewValue)
}

func (h *ethIfTypeHandler) target() string {
	if h.ev.IsSet() {
		return h.ev.NewValue
	}
	return h.srv.drv.DefaultInterfaceType(h.name)
}

func (h *ethIfTypeHandler) Apply(tx *TxContext) error {
	target := h.target()
	if target == "" {
		return nil
	}
	if err := h.srv.drv.VendorPortCommand(tx.ctx, h.name, "if="+strings.ToLower(target)); err != nil {
		return err
	}
	h.applied = true
	return nil
}

func (h *ethIfTypeHandler) Revert(tx *TxContext) error {
	if !h.applied {
		return nil
	}
	prev := h.ev.OldValue
	if prev == "" {
		prev = h.srv.drv.DefaultInterfaceType(h.name)
	}
	if prev == "" {
		util.WithInterface(h.name).Warnf("no previous interface-type to restore, next reconcile reapplies it")
		return nil
	}
	return h.srv.drv.VendorPortCommand(tx.ctx, h.name, "if="+strings.ToLower(prev))
}

func newEthIfTypeHandler(s *Server, evs []datastore.ChangeEvent) (Handler, error) {
	base, err := newIfHandler(s, evs[0])
	if err != nil {
		return nil, err
	}
	return &ethIfTypeHandler{ifHandler: base}, nil
}

// autoNegHandler toggles link auto-negotiation through the vendor channel.
type autoNegHandler struct {
	ifHandler
	applied bool
}

func anArg(value string) string {
	if value == "true" {
		return "an=yes"
	}
	return "an=no"
}

func (h *autoNegHandler) Validate(tx *TxContext) error {
	if h.ev.IsSet() && h.ev.NewValue != "true" && h.ev.NewValue != "false" {
		return util.NewValidationErrorf("auto-negotiate enabled %q on %s is not a boolean",
			h.ev.NewValue, h.name)
	}
	return nil
}

func (h *autoNegHandler) Apply(tx *TxContext) error {
	value := h.ev.NewValue
	if !h.ev.IsSet() {
		value = h.srv.schema.DefaultFor("enabled")
	}
	if err := h.srv.drv.VendorPortCommand(tx.ctx, h.name, anArg(value)); err != nil {
		return err
	}
	h.applied = true
	return nil
}

func (h *autoNegHandler) Revert(tx *TxContext) error {
	if !h.applied {
		return nil
	}
	prev := h.ev.OldValue
	if prev == "" {
		prev = h.srv.schema.DefaultFor("enabled")
	}
	return h.srv.drv.VendorPortCommand(tx.ctx, h.name, anArg(prev))
}

func newAutoNegHandler(s *Server, evs []datastore.ChangeEvent) (Handler, error) {
	base, err := newIfHandler(s, evs[0])
	if err != nil {
		return nil, err
	}
	return &autoNegHandler{ifHandler: base}, nil
}

// advSpeedsHandler defers: advertised speeds are a leaf-list edited one
// entry per event, and the vendor channel takes the whole set at once. The
// post phase coalesces every entry of the batch into one push.
type advSpeedsHandler struct {
	ifHandler
}

func (h *advSpeedsHandler) Validate(tx *TxContext) error {
	return h.checkEnum()
}

func (h *advSpeedsHandler) Apply(tx *TxContext) error {
	tx.DeferAdvertisedSpeeds(h.name)
	return nil
}

func (h *advSpeedsHandler) Revert(tx *TxContext) error {
	tx.DropAdvertisedSpeeds(h.name)
	return nil
}

func newAdvSpeedsHandler(s *Server, evs []datastore.ChangeEvent) (Handler, error) {
	base, err := newIfHandler(s, evs[0])
	if err != nil {
		return nil, err
	}
	return &advSpeedsHandler{ifHandler: base}, nil
}

// ===========================================================================
// breakout (composite subtree)
// ===========================================================================

// breakoutHandler receives every breakout event of one interface in the
// batch and validates the post-change descriptor as a whole. Apply only
// flags a resync: the port map change takes effect through reconciliation.
type breakoutHandler struct {
	ifHandler
	evs []datastore.ChangeEvent
}

func (h *breakoutHandler) Validate(tx *TxContext) error {
	if !util.IsPrimaryInterface(h.name) {
		return util.NewValidationErrorf(
			"breakout configuration only allowed on primary sub-interface, not %s", h.name)
	}
	for i := range h.evs {
		h2 := ifHandler{srv: h.srv, ev: h.evs[i], name: h.name}
		if err := h2.checkEnum(); err != nil {
			return err
		}
	}

	cfg, err := tx.Config()
	if err != nil {
		return err
	}
	var b datastore.BreakoutConfig
	if ic := cfg.Interface(h.name); ic != nil {
		b = ic.Ethernet.Breakout
	}
	if b.Configured() && !b.Complete() {
		return util.NewValidationErrorf(
			"breakout on %s requires num-channels and channel-speed together", h.name)
	}
	if b.Configured() {
		for _, g := range cfg.UFDGroups {
			if containsString(g.Uplinks, h.name) || containsString(g.Downlinks, h.name) {
				return util.NewValidationErrorf(
					"cannot break out %s: member of ufd group %s", h.name, g.ID)
			}
		}
	}
	return nil
}

func (h *breakoutHandler) Apply(tx *TxContext) error {
	tx.RequestResync()
	return nil
}

// Revert is a no-op: the resync flag dies with the failed transaction
// because the post phase never runs.
func (h *breakoutHandler) Revert(tx *TxContext) error { return nil }

func newBreakoutHandler(s *Server, evs []datastore.ChangeEvent) (Handler, error) {
	base, err := newIfHandler(s, evs[0])
	if err != nil {
		return nil, err
	}
	return &breakoutHandler{ifHandler: base, evs: evs}, nil
}

// ===========================================================================
// switched-vlan
// ===========================================================================

func parseVID(s string) (int, error) {
	vid, err := strconv.Atoi(s)
	if err != nil || vid < 1 || vid > 4094 {
		return 0, util.NewValidationErrorf("vlan id %q out of range 1..4094", s)
	}
	return vid, nil
}

func (h *ifHandler) switchedVLAN(tx *TxContext) (datastore.SwitchedVLANConfig, error) {
	cfg, err := tx.Config()
	if err != nil {
		return datastore.SwitchedVLANConfig{}, err
	}
	if ic := cfg.Interface(h.name); ic != nil {
		return ic.SwitchedVLAN, nil
	}
	return datastore.SwitchedVLANConfig{}, nil
}

// vlanModeHandler validates the switched-vlan container jointly: the mode
// determines which membership leaves may be present, and removing the mode
// requires removing the memberships in the same commit.
type vlanModeHandler struct {
	ifHandler
}

func (h *vlanModeHandler) Validate(tx *TxContext) error {
	if err := h.checkEnum(); err != nil {
		return err
	}
	sv, err := h.switchedVLAN(tx)
	if err != nil {
		return err
	}
	if h.ev.IsSet() {
		if h.ev.NewValue == "ACCESS" && len(sv.TrunkVLANs) > 0 {
			return util.NewValidationErrorf("%s: ACCESS mode excludes trunk-vlans", h.name)
		}
		if h.ev.NewValue == "TRUNK" && sv.AccessVLAN != "" {
			return util.NewValidationErrorf("%s: TRUNK mode excludes access-vlan", h.name)
		}
		return nil
	}
	if sv.AccessVLAN != "" || len(sv.TrunkVLANs) > 0 {
		return util.NewValidationErrorf(
			"%s: interface-mode cannot be removed while vlan memberships remain", h.name)
	}
	return nil
}

// Memberships are written by the membership handlers; the mode itself has
// no driver representation.
func (h *vlanModeHandler) Apply(tx *TxContext) error { return nil }

func newVLANModeHandler(s *Server, evs []datastore.ChangeEvent) (Handler, error) {
	base, err := newIfHandler(s, evs[0])
	if err != nil {
		return nil, err
	}
	return &vlanModeHandler{ifHandler: base}, nil
}

type accessVLANHandler struct {
	ifHandler
	applied bool
}

func (h *accessVLANHandler) Validate(tx *TxContext) error {
	if !h.ev.IsSet() {
		return nil
	}
	if _, err := parseVID(h.ev.NewValue); err != nil {
		return err
	}
	sv, err := h.switchedVLAN(tx)
	if err != nil {
		return err
	}
	if sv.InterfaceMode != "ACCESS" {
		return util.NewValidationErrorf("%s: access-vlan requires interface-mode ACCESS", h.name)
	}
	return nil
}

func (h *accessVLANHandler) Apply(tx *TxContext) error {
	if h.ev.IsSet() {
		vid, err := parseVID(h.ev.NewValue)
		if err != nil {
			return err
		}
		if h.ev.OldValue != "" {
			old, err := parseVID(h.ev.OldValue)
			if err != nil {
				return err
			}
			if err := h.srv.drv.RemoveVLANMember(old, h.name); err != nil {
				return err
			}
		}
		if err := h.srv.drv.SetVLANMember(vid, h.name, "untagged"); err != nil {
			return err
		}
	} else {
		old, err := parseVID(h.ev.OldValue)
		if err != nil {
			return err
		}
		if err := h.srv.drv.RemoveVLANMember(old, h.name); err != nil {
			return err
		}
	}
	h.applied = true
	return nil
}

func (h *accessVLANHandler) Revert(tx *TxContext) error {
	if !h.applied {
		return nil
	}
	if h.ev.IsSet() {
		vid, _ := parseVID(h.ev.NewValue)
		if err := h.srv.drv.RemoveVLANMember(vid, h.name); err != nil {
			return err
		}
	}
	if h.ev.OldValue != "" {
		old, _ := parseVID(h.ev.OldValue)
		return h.srv.drv.SetVLANMember(old, h.name, "untagged")
	}
	return nil
}

func newAccessVLANHandler(s *Server, evs []datastore.ChangeEvent) (Handler, error) {
	base, err := newIfHandler(s, evs[0])
	if err != nil {
		return nil, err
	}
	return &accessVLANHandler{ifHandler: base}, nil
}

type trunkVLANsHandler struct {
	ifHandler
	applied bool
}

func (h *trunkVLANsHandler) vid() (int, error) {
	if h.ev.IsSet() {
		return parseVID(h.ev.NewValue)
	}
	return parseVID(h.ev.OldValue)
}

func (h *trunkVLANsHandler) Validate(tx *TxContext) error {
	if _, err := h.vid(); err != nil {
		return err
	}
	if !h.ev.IsSet() {
		return nil
	}
	sv, err := h.switchedVLAN(tx)
	if err != nil {
		return err
	}
	if sv.InterfaceMode != "TRUNK" {
		return util.NewValidationErrorf("%s: trunk-vlans requires interface-mode TRUNK", h.name)
	}
	return nil
}

func (h *trunkVLANsHandler) Apply(tx *TxContext) error {
	vid, err := h.vid()
	if err != nil {
		return err
	}
	if h.ev.IsSet() {
		err = h.srv.drv.SetVLANMember(vid, h.name, "tagged")
	} else {
		err = h.srv.drv.RemoveVLANMember(vid, h.name)
	}
	if err != nil {
		return err
	}
	h.applied = true
	return nil
}

func (h *trunkVLANsHandler) Revert(tx *TxContext) error {
	if !h.applied {
		return nil
	}
	vid, err := h.vid()
	if err != nil {
		return err
	}
	if h.ev.IsSet() {
		return h.srv.drv.RemoveVLANMember(vid, h.name)
	}
	return h.srv.drv.SetVLANMember(vid, h.name, "tagged")
}

func newTrunkVLANsHandler(s *Server, evs []datastore.ChangeEvent) (Handler, error) {
	base, err := newIfHandler(s, evs[0])
	if err != nil {
		return nil, err
	}
	return &trunkVLANsHandler{ifHandler: base}, nil
}

// ===========================================================================
// uplink-failure-detection membership
// ===========================================================================

// ufdMemberHandler guards group membership edits. Membership has no driver
// representation; the status resolver reads the running configuration.
type ufdMemberHandler struct {
	srv    *Server
	ev     datastore.ChangeEvent
	group  string
	member string
}

func (h *ufdMemberHandler) Validate(tx *TxContext) error {
	if !h.ev.IsSet() {
		return nil
	}
	cfg, err := tx.Config()
	if err != nil {
		return err
	}
	parent := cfg.Interface(util.ParentInterface(h.member))
	if parent != nil && parent.Ethernet.Breakout.Configured() {
		return util.NewValidationErrorf(
			"cannot add %s to ufd group %s: port carries breakout configuration",
			h.member, h.group)
	}
	return nil
}

func (h *ufdMemberHandler) Apply(tx *TxContext) error  { return nil }
func (h *ufdMemberHandler) Revert(tx *TxContext) error { return nil }

func newUFDMemberHandler(s *Server, evs []datastore.ChangeEvent) (Handler, error) {
	ev := evs[0]
	member := ev.NewValue
	if !ev.IsSet() {
		member = ev.OldValue
	}
	if ev.IsSet() && !s.knownInterface(member) {
		return nil, util.NewUnknownInterfaceError(member)
	}
	return &ufdMemberHandler{srv: s, ev: ev, group: ev.Path.KeyFor("ufd-group"), member: member}, nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
