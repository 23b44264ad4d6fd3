package cost

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/tensorgraph/esat/internal/term"
)

// WasmOracle prices a node by calling into a guest WASM module. The
// guest exports three functions forming a small request/response ABI:
//
//	allocate(size uint32) (ptr uint32)
//	deallocate(ptr uint32, size uint32)
//	price_json(ptr uint32, len uint32) (packed uint64)
//
// The host writes a JSON-encoded Request into guest memory obtained
// from allocate, calls price_json, and decodes the packed result as
// (ptr uint32 << 32 | len uint32) pointing at a JSON-encoded
// {"cost": float64} response the guest itself allocated (the host
// frees it after reading).
type WasmOracle struct {
	mu       sync.Mutex
	ctx      context.Context
	runtime  wazero.Runtime
	module   api.Module
	allocate api.Function
	free     api.Function
	price    api.Function
}

// NewWasmOracle compiles and instantiates the module at path, wiring
// WASI so guest modules built with a standard toolchain link cleanly.
func NewWasmOracle(path string) (*WasmOracle, error) {
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	wasi_snapshot_preview1.MustInstantiate(ctx, rt)

	buf, err := os.ReadFile(path)
	if err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("cost: read module %s: %w", path, err)
	}
	compiled, err := rt.CompileModule(ctx, buf)
	if err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("cost: compile module %s: %w", path, err)
	}
	mod, err := rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(path))
	if err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("cost: instantiate module %s: %w", path, err)
	}

	o := &WasmOracle{
		ctx:      ctx,
		runtime:  rt,
		module:   mod,
		allocate: mod.ExportedFunction("allocate"),
		free:     mod.ExportedFunction("deallocate"),
		price:    mod.ExportedFunction("price_json"),
	}
	if o.allocate == nil || o.free == nil || o.price == nil {
		o.Close()
		return nil, fmt.Errorf("cost: module %s missing one of allocate/deallocate/price_json", path)
	}
	return o, nil
}

// Close releases the WASM runtime.
func (o *WasmOracle) Close() error {
	return o.runtime.Close(o.ctx)
}

// Price implements Oracle.
func (o *WasmOracle) Price(req Request) (*Cost, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	payload, err := json.Marshal(subprocessRequest{
		OpKind:      req.OpKind,
		ChildShapes: shapesToWire(req.ChildShapes),
		ChildDTypes: dtypesToWire(req.ChildDTypes),
		Attrs:       req.Attrs,
	})
	if err != nil {
		return nil, fmt.Errorf("cost: marshal wasm request: %w", err)
	}

	reqPtr, err := o.writeBytes(payload)
	if err != nil {
		return nil, err
	}
	defer o.freeBytes(reqPtr, uint32(len(payload)))

	res, err := o.price.Call(o.ctx, uint64(reqPtr), uint64(len(payload)))
	if err != nil {
		return nil, fmt.Errorf("cost: wasm price_json call: %w", err)
	}
	packed := res[0]
	respPtr := uint32(packed >> 32)
	respLen := uint32(packed)
	defer o.freeBytes(respPtr, respLen)

	mem, ok := o.module.Memory().Read(respPtr, respLen)
	if !ok {
		return nil, fmt.Errorf("cost: wasm response out of bounds (ptr=%d len=%d)", respPtr, respLen)
	}

	var resp subprocessResponse
	if err := json.Unmarshal(mem, &resp); err != nil {
		return nil, fmt.Errorf("cost: unmarshal wasm response: %w", err)
	}
	return apdFromFloat(resp.Cost)
}

func (o *WasmOracle) writeBytes(b []byte) (uint32, error) {
	res, err := o.allocate.Call(o.ctx, uint64(len(b)))
	if err != nil {
		return 0, fmt.Errorf("cost: wasm allocate: %w", err)
	}
	ptr := uint32(res[0])
	if !o.module.Memory().Write(ptr, b) {
		return 0, fmt.Errorf("cost: wasm write out of bounds (ptr=%d len=%d)", ptr, len(b))
	}
	return ptr, nil
}

func (o *WasmOracle) freeBytes(ptr, size uint32) {
	o.free.Call(o.ctx, uint64(ptr), uint64(size))
}

func shapesToWire(shapes []term.Shape) []shapeWire {
	out := make([]shapeWire, len(shapes))
	for i, s := range shapes {
		out[i] = shapeWire{Dims: s.Slice()}
	}
	return out
}

func dtypesToWire(dtypes []term.DType) []string {
	out := make([]string, len(dtypes))
	for i, d := range dtypes {
		out[i] = d.String()
	}
	return out
}
