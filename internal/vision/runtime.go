package vision

import "runtime"

// defaultLibPath returns the ONNX Runtime shared library name for this OS.
func defaultLibPath() string {
	switch runtime.GOOS {
	case "windows":
		return "onnxruntime.dll"
	case "darwin":
		return "libonnxruntime.dylib"
	default:
		return "libonnxruntime.so"
	}
}
