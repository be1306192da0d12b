/*
Copyright (c) AES67 RX SDK contributors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package ordinaryclock

import "github.com/soundondigital/aes67rx/ptp/protocol"

// Event is the common interface for everything the Port publishes on its
// event channel. The session subscribes by draining the channel from its
// own event loop (spec §9, "Cyclic observers" — message-passing instead of
// subscriber back-pointers).
type Event interface{ isPortEvent() }

// ParentChanged fires when BMCA adopts a new parent (or loses one).
type ParentChanged struct {
	GrandmasterIdentity protocol.ClockIdentity
	ParentPortIdentity  protocol.PortIdentity
	StepsRemoved        uint16
}

func (ParentChanged) isPortEvent() {}

// StateChanged fires on every port state transition.
type StateChanged struct {
	Previous protocol.PortState
	Current  protocol.PortState
}

func (StateChanged) isPortEvent() {}

// OffsetUpdated fires on every Delay-Resp completion: the measured offset
// and mean path delay just fed to the local clock.
type OffsetUpdated struct {
	OffsetNS   float64
	DelayNS    float64
	Calibrated bool
}

func (OffsetUpdated) isPortEvent() {}

// Fault fires when the port transitions to faulty, carrying the reason.
type Fault struct {
	Reason string
}

func (Fault) isPortEvent() {}

// eventCapacity bounds the event channel so a slow subscriber cannot make
// the PTP engine's own processing block indefinitely; when it is full,
// publish drops the new event and keeps the queued ones.
const eventCapacity = 32

// publish sends non-blockingly, discarding the event if the channel is
// full — an unread StateChanged is superseded by the next state anyway,
// and a subscriber that can't keep up with 32 queued events has bigger
// problems than a dropped notification.
func publish(ch chan Event, ev Event) {
	select {
	case ch <- ev:
	default:
	}
}
