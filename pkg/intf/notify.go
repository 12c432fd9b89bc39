package intf

import (
	"context"

	"github.com/onyx-network/onyx/pkg/util"
)

// LinkStateNotification is the name link-state transitions are emitted
// under through the datastore's notification stream.
const LinkStateNotification = "interface-link-state-notify-event"

// NotificationBridge translates the driver's raw per-interface state
// signals into de-duplicated status-change notifications. Consumers see
// transitions only: two signals resolving to the same status emit once.
type NotificationBridge struct {
	srv  *Server
	last map[string]OperStatus
}

// NewNotificationBridge creates a bridge for the given server.
func NewNotificationBridge(s *Server) *NotificationBridge {
	return &NotificationBridge{srv: s, last: make(map[string]OperStatus)}
}

// Run subscribes to the driver's link-state feed and loops until ctx is
// done or the feed closes. Delivery order follows the feed; the bridge
// performs no retry of messages the feed dropped.
func (b *NotificationBridge) Run(ctx context.Context) error {
	feed, err := b.srv.drv.SubscribeLinkState(ctx)
	if err != nil {
		return err
	}
	util.Infof("link-state notification bridge running")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case name, ok := <-feed:
			if !ok {
				return nil
			}
			b.handle(name)
		}
	}
}

func (b *NotificationBridge) handle(name string) {
	status, err := b.srv.ResolveStatus(name)
	if err != nil {
		util.WithInterface(name).Warnf("status resolution failed: %v", err)
		return
	}
	if b.last[name] == status {
		return
	}
	b.last[name] = status

	err = b.srv.store.SendNotification(LinkStateNotification, map[string]string{
		"if-name":     name,
		"oper-status": string(status),
	})
	if err != nil {
		util.WithInterface(name).Warnf("notification send failed: %v", err)
		return
	}
	b.srv.metrics.NotificationsEmitted.Inc()
	util.WithInterface(name).Infof("link state changed: %s", status)
}
