package protocol

import "time"

// Profile bundles the ranges and defaults governing a PTP deployment
// (spec §3/§9, "PTP profile as data, not inheritance"): the engine accepts
// a Profile by value, so a new profile is a new constant, not new code.
type Profile struct {
	Name string

	DomainNumber uint8

	LogAnnounceInterval    LogInterval
	AnnounceReceiptTimeout uint8 // in units of announce intervals

	LogSyncInterval LogInterval

	LogMinDelayReqInterval LogInterval
	MaxOutstandingSyncs    int // eviction horizon for sync/follow-up sequences

	DefaultPriority1 uint8
	DefaultPriority2 uint8

	CalibrationTolerance time.Duration
	CalibrationDwell     int // consecutive Sync periods within tolerance
}

// DefaultDelayRequestResponseProfile is the IEEE 1588-2019 default profile
// referenced by spec §3 ("the Default delay request-response profile is
// specified").
var DefaultDelayRequestResponseProfile = Profile{
	Name:                   "default-E2E",
	DomainNumber:           0,
	LogAnnounceInterval:    1, // 2s
	AnnounceReceiptTimeout: 3,
	LogSyncInterval:        0, // 1s
	LogMinDelayReqInterval: 0, // 1s
	MaxOutstandingSyncs:    8,
	DefaultPriority1:       128,
	DefaultPriority2:       128,
	CalibrationTolerance:   time.Microsecond,
	CalibrationDwell:       5,
}

// SyncInterval returns the profile's nominal Sync period.
func (p Profile) SyncInterval() time.Duration {
	return p.LogSyncInterval.Duration()
}

// AnnounceInterval returns the profile's nominal Announce period.
func (p Profile) AnnounceInterval() time.Duration {
	return p.LogAnnounceInterval.Duration()
}

// MinDelayReqInterval returns the profile's nominal Delay-Req period.
func (p Profile) MinDelayReqInterval() time.Duration {
	return p.LogMinDelayReqInterval.Duration()
}

// Duration returns LogInterval as a time.Duration (2^i seconds).
func (i LogInterval) Duration() time.Duration {
	return time.Duration(i.Nanoseconds())
}
