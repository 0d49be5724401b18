// Package axis drives the axes of a T-Code device.
//
// Each axis has a Control holding a manual target, a PatternList and a
// ScriptLink; the selected one schedules axis updates on the axis'
// registry endpoint. A Controller keeps the controls of a device and a
// Pump applies them periodically and sends the scheduled operations over a
// tcode.Conn:
//
//	ctl := axis.NewController(clock)
//	ctl.Control(wire.MustParseCommandIndex("L0")).SetManual(750)
//	pump := axis.NewPump(ctx, conn, ctl)
//	_ = pump.Start()
//	defer pump.Stop()
//
// Targets are numerators over TargetMax (three fractional digits) and are
// kept within the axis limits reported by the device.
package axis
