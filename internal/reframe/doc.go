// Package reframe forwards access units from a set of input streams to a
// matching set of outputs, optionally restricted to time or frame ranges,
// split into chunks by access point, size or duration, filtered by SAP
// type and reference status, and paced against the wall clock.
//
// A Reframer is driven by a host: the host configures one stream per input
// with [Reframer.Configure], forwards downstream control events through
// [Reframer.HandleEvent], and calls [Reframer.Process] whenever input data
// arrives or a returned wait elapses. All methods must be called from a
// single goroutine.
package reframe
