//go:build cgo

package main

/*
#include <stdlib.h>
#include "loader_abi.h"
*/
import "C"

import (
	"fmt"
	"time"
	"unsafe"

	"github.com/pembem22/eyetrackvr-go/internal/openxr"
)

// virtualizedNames are the entries the layer answers itself instead of
// forwarding to the runtime, per spec.md §4.7.
var virtualizedNames = map[string]bool{
	"xrGetActionStatePose":                   true,
	"xrLocateSpace":                          true,
	"xrCreateActionSpace":                    true,
	"xrSuggestInteractionProfileBindings":    true,
	"xrGetSystemProperties":                  true,
	"xrEnumerateInstanceExtensionProperties": true,
}

func isVirtualized(name string) bool { return virtualizedNames[name] }

// runtimeAdapter implements openxr.NextLayer for the real runtime. resolve
// looks a symbol up through nextGIPA, but none of the NextLayer methods
// below calls it: each returns an error saying it is not wired in this
// shim, since modeling their full typed
// XrActionSpaceCreateInfo/XrSystemProperties-chain ABI would require the
// complete openxr.h this minimal shim deliberately does not vendor (see
// DESIGN.md).
type runtimeAdapter struct {
	instance C.uint64_t
}

func newRuntimeAdapter() *runtimeAdapter {
	return &runtimeAdapter{}
}

func (a *runtimeAdapter) resolve(name string) (C.PFN_xrVoidFunction_t, error) {
	if nextGIPA == nil {
		return nil, fmt.Errorf("openxr-layer: next layer not negotiated yet")
	}
	cName := C.CString(name)
	defer freeCString(cName)

	var fn C.PFN_xrVoidFunction_t
	res := C.call_gipa(nextGIPA, a.instance, cName, &fn)
	if res != 0 {
		return nil, fmt.Errorf("openxr-layer: resolve %s: XrResult %d", name, res)
	}
	return fn, nil
}

func (a *runtimeAdapter) EnumerateInstanceExtensionProperties() ([]openxr.ExtensionProperty, error) {
	// Forwarding the runtime's real extension list requires walking its
	// XrExtensionProperties array twice (capacity query, then fill), which
	// needs the full struct layout; unreached until that trampoline is
	// added.
	return nil, fmt.Errorf("openxr-layer: runtime extension enumeration not wired in this shim")
}

func (a *runtimeAdapter) GetSystemProperties(instance openxr.Instance, systemID uint64, chain openxr.SystemPropertiesChain) error {
	return fmt.Errorf("openxr-layer: GetSystemProperties not wired in this shim")
}

func (a *runtimeAdapter) PathToString(path openxr.Path) (string, error) {
	return "", fmt.Errorf("openxr-layer: PathToString not wired in this shim")
}

func (a *runtimeAdapter) SuggestInteractionProfileBindings(instance openxr.Instance, interactionProfile openxr.Path, bindings []openxr.SuggestedBinding) error {
	return fmt.Errorf("openxr-layer: SuggestInteractionProfileBindings not wired in this shim")
}

func (a *runtimeAdapter) CreateActionSpace(session openxr.Session, info openxr.ActionSpaceCreateInfo) (openxr.Space, error) {
	return 0, fmt.Errorf("openxr-layer: CreateActionSpace not wired in this shim")
}

func (a *runtimeAdapter) GetActionStatePose(session openxr.Session, action openxr.Action) (bool, error) {
	return false, fmt.Errorf("openxr-layer: GetActionStatePose not wired in this shim")
}

func (a *runtimeAdapter) LocateSpace(space, baseSpace openxr.Space, t time.Time) (openxr.SpaceLocation, error) {
	return openxr.SpaceLocation{}, fmt.Errorf("openxr-layer: LocateSpace not wired in this shim")
}

func (a *runtimeAdapter) LocateViewReferenceSpace(baseSpace openxr.Space, t time.Time) (openxr.Pose, error) {
	return openxr.Pose{}, fmt.Errorf("openxr-layer: LocateViewReferenceSpace not wired in this shim")
}

func freeCString(s *C.char) { C.free(unsafe.Pointer(s)) }
