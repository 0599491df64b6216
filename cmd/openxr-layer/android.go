//go:build cgo && android

package main

/*
#include "loader_abi.h"
#include "_cgo_export.h"

typedef struct XrLoaderInitInfoAndroidKHR {
    uint32_t structType;
    uint32_t structVersion;
    size_t   structSize;
    void    *applicationVM;
    void    *applicationContext;
} XrLoaderInitInfoAndroidKHR_t;
*/
import "C"

import "unsafe"

// javaVM and appContext are captured from the loader's
// XrLoaderInitInfoAndroidKHR; internal/source's USB hotplug subsystem
// needs both to enumerate and open USB-CDC devices, per spec.md §6.
var (
	javaVM     unsafe.Pointer
	appContext unsafe.Pointer
)

//export xrInitializeLoaderKHR
func xrInitializeLoaderKHR(info *C.XrLoaderInitInfoAndroidKHR_t) C.XrResult_t {
	if info == nil {
		return 1 // XR_ERROR_VALIDATION_FAILURE
	}
	javaVM = info.applicationVM
	appContext = info.applicationContext
	return 0 // XR_SUCCESS
}
