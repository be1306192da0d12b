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

package session

import (
	"github.com/soundondigital/aes67rx/ptp/ordinaryclock"
	"github.com/soundondigital/aes67rx/rtpaudio"
)

// eventLoop drains C5's and C6's event channels on the session's own
// polling goroutine (spec §4.7 step 2/3 "subscribe self"; spec §9 "the
// session owns the receiving end and polls from its own event task") and
// folds them into the session's latest-known state, which AudioCallback
// and the stats thread read without touching either subsystem's internals.
func (s *Session) eventLoop() {
	defer s.eventLoopDone.Done()
	for {
		select {
		case <-s.stopCh:
			return
		case ev, ok := <-s.port.Events():
			if !ok {
				return
			}
			s.handlePTPEvent(ev)
		case ev, ok := <-s.receiver.Events():
			if !ok {
				return
			}
			s.handleReceiverEvent(ev)
		}
	}
}

func (s *Session) handlePTPEvent(ev ordinaryclock.Event) {
	switch e := ev.(type) {
	case ordinaryclock.ParentChanged:
		s.log.WithField("grandmaster", e.GrandmasterIdentity).Info("PTP parent changed")
	case ordinaryclock.StateChanged:
		s.log.WithFields(map[string]interface{}{"previous": e.Previous, "current": e.Current}).Info("PTP port state changed")
	case ordinaryclock.OffsetUpdated:
		s.lastOffsetNS.Store(int64(e.OffsetNS))
	case ordinaryclock.Fault:
		s.log.WithField("reason", e.Reason).Error("PTP port fault")
	}
}

func (s *Session) handleReceiverEvent(ev rtpaudio.Event) {
	switch e := ev.(type) {
	case rtpaudio.ParametersUpdated:
		s.log.WithFields(map[string]interface{}{"rate": e.Format.SampleRate, "frames_per_packet": e.FramesPerPacket}).Info("receiver parameters confirmed")
	case rtpaudio.StreamStateChanged:
		s.log.WithFields(map[string]interface{}{"previous": e.Previous, "current": e.Current}).Info("stream state changed")
		if e.Current == rtpaudio.StreamStateDesynced {
			s.desyncCount.Add(1)
		}
	}
}
