//go:build cgo

// Command openxr-layer is the thin C-ABI export surface the OpenXR loader
// dlopens: xrNegotiateLoaderApiLayerInterface, xrGetInstanceProcAddr and
// xrCreateApiLayerInstance. None of the layer's business logic lives here.
// xrCreateApiLayerInstance constructs the single process-wide openxr.Layer
// instance via singleton(); the other two exports answer the loader
// directly and do not call into the Layer.
package main

/*
#include "loader_abi.h"
#include "_cgo_export.h"
*/
import "C"

import (
	"log/slog"
	"os"
	"sync"

	"github.com/pembem22/eyetrackvr-go/internal/bridge"
	"github.com/pembem22/eyetrackvr-go/internal/openxr"
)

func init() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))
}

var (
	initOnce sync.Once
	layer    *openxr.Layer
	nextGIPA C.PFN_xrGetInstanceProcAddr_t
)

// singleton lazily constructs the process-wide Layer around adapter on
// first use, per spec.md §3's "process-wide singleton initialized on
// first CreateApiLayerInstance" lifecycle. Later calls ignore adapter and
// return the already-constructed Layer.
func singleton(adapter openxr.NextLayer) *openxr.Layer {
	initOnce.Do(func() {
		layer = openxr.NewLayer(adapter, bridge.Global())
	})
	return layer
}

//export xrNegotiateLoaderApiLayerInterface
func xrNegotiateLoaderApiLayerInterface(info *C.XrNegotiateLoaderInfo_t, name *C.char, request *C.XrNegotiateApiLayerRequest_t) C.XrResult_t {
	if info == nil || request == nil {
		return 1 // XR_ERROR_VALIDATION_FAILURE
	}
	C.fillNegotiateResponse(request,
		C.PFN_xrGetInstanceProcAddr_t(C.xrGetInstanceProcAddr),
		C.PFN_xrVoidFunction_t(C.xrCreateApiLayerInstance))
	return 0 // XR_SUCCESS
}

//export xrGetInstanceProcAddr
func xrGetInstanceProcAddr(instance C.uint64_t, name *C.char, function *C.PFN_xrVoidFunction_t) C.XrResult_t {
	goName := C.GoString(name)

	// Virtualized entries: return a null function pointer with SUCCESS.
	// No layer trampoline is substituted for these names, and the entries
	// resolved through nextGIPA are returned as the next layer gave them.
	if isVirtualized(goName) {
		*function = nil
		return 0
	}

	if nextGIPA == nil {
		*function = nil
		return 0
	}
	return C.XrResult_t(C.call_gipa(nextGIPA, instance, name, function))
}

//export xrCreateApiLayerInstance
func xrCreateApiLayerInstance(createInfo, layerInfo *C.char, instance *C.uint64_t) C.XrResult_t {
	// The production handshake walks XrApiLayerCreateInfo.nextInfo to
	// capture nextGIPA and the next layer's CreateApiLayerInstance, strips
	// this layer's own name from the extension list forwarded to the
	// runtime (spec.md §4.7's "advertises extensions the runtime may not
	// support"), invokes the next layer, and only then constructs the
	// runtimeAdapter that backs openxr.NextLayer. That XrApiLayerCreateInfo
	// walk is runtime/loader-version-specific struct layout this shim
	// deliberately keeps out of loader_abi.h's minimal mirror; see
	// DESIGN.md for why it is not modeled further here.
	singleton(newRuntimeAdapter())
	return 0 // XR_SUCCESS
}
