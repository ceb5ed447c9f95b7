// Package button turns raw key-state bitmask reads into edge-triggered
// press/release callbacks.
//
// Brick buttons are exposed through a Linux input event device. The whole
// pressed-state bitmask (key codes 0..0x2FF, one bit per code) is fetched
// with a single EVIOCGKEY ioctl per backing device, then each configured
// source tests its own bit. These particular devices report "0 = down":
// the inverted polarity is part of the hardware contract and is preserved
// exactly.
//
// A Scanner diffs consecutive snapshots and dispatches callbacks only on
// change: a per-source handler for each edge, plus one aggregate handler
// receiving the full ordered change list. Process can be called manually
// or driven by the built-in 100 ms background scanner.
//
// Callbacks execute on the scanning goroutine, not the caller's. Shared
// mutable state touched from callbacks must be synchronized by the
// caller.
package button
