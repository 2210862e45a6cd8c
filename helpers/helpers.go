// Package helpers catalogs the kernel routines a compiled program may
// call. Each helper has a stable numeric id from the kernel ABI and a
// fixed set of per-argument load-type hints used when marshaling call
// arguments.
package helpers

import "github.com/probelab/bpfscript/asm"

// MaxArgs is the number of argument registers available to a call.
const MaxArgs = 5

// Helper ids from the kernel ABI.
const (
	MapLookupElem     uint32 = 1
	MapUpdateElem     uint32 = 2
	MapDeleteElem     uint32 = 3
	KtimeGetNs        uint32 = 5
	TracePrintk       uint32 = 6
	GetPrandomU32     uint32 = 7
	GetSmpProcessorID uint32 = 8
	GetCurrentPidTgid uint32 = 14
	GetCurrentUidGid  uint32 = 15
	GetCurrentComm    uint32 = 16
	PerfEventOutput   uint32 = 25
	ProbeReadUser     uint32 = 112
	ProbeReadKernel   uint32 = 113
	RingbufOutput     uint32 = 130
)

// Helper describes one callable routine. Args always has MaxArgs entries;
// unused trailing slots carry the plain load type.
type Helper struct {
	ID   uint32
	Name string
	Args [MaxArgs]asm.LoadType
}

// catalog lists every helper the compiler can call. Map-typed arguments
// carry the map-fd hint so captured map identifiers load with the pseudo
// code the verifier expects.
var catalog = []Helper{
	{ID: MapLookupElem, Name: "map_lookup_elem", Args: [MaxArgs]asm.LoadType{asm.LoadMapFd}},
	{ID: MapUpdateElem, Name: "map_update_elem", Args: [MaxArgs]asm.LoadType{asm.LoadMapFd}},
	{ID: MapDeleteElem, Name: "map_delete_elem", Args: [MaxArgs]asm.LoadType{asm.LoadMapFd}},
	{ID: KtimeGetNs, Name: "ktime_get_ns"},
	{ID: TracePrintk, Name: "trace_printk"},
	{ID: GetPrandomU32, Name: "get_prandom_u32"},
	{ID: GetSmpProcessorID, Name: "get_smp_processor_id"},
	{ID: GetCurrentPidTgid, Name: "get_current_pid_tgid"},
	{ID: GetCurrentUidGid, Name: "get_current_uid_gid"},
	{ID: GetCurrentComm, Name: "get_current_comm"},
	{ID: PerfEventOutput, Name: "perf_event_output", Args: [MaxArgs]asm.LoadType{asm.LoadVoid, asm.LoadMapFd}},
	{ID: ProbeReadUser, Name: "probe_read_user"},
	{ID: ProbeReadKernel, Name: "probe_read_kernel"},
	{ID: RingbufOutput, Name: "ringbuf_output", Args: [MaxArgs]asm.LoadType{asm.LoadMapFd}},
}

var byName = func() map[string]Helper {
	m := make(map[string]Helper, len(catalog))
	for _, h := range catalog {
		m[h.Name] = h
	}
	return m
}()

// Lookup returns the helper registered under name.
func Lookup(name string) (Helper, bool) {
	h, ok := byName[name]
	return h, ok
}
