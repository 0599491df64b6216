package inference

import (
	"fmt"

	ort "github.com/yalue/onnxruntime_go"
)

// tensorSize is the model's square input resolution (64x64, per
// spec.md §4.4) and outputSize is the fixed [pitch, yaw, eyelid] vector.
const (
	tensorSize = 64
	outputSize = 3
)

// Session runs one forward pass of the eye-gaze model over a
// tensorSize x tensorSize grayscale tensor (row-major, red channel only)
// and returns [pitch, yaw, eyelid].
type Session interface {
	Run(tensor []float32) (pitch, yaw, eyelid float32, err error)
	Close() error
}

// onnxSession wraps a yalue/onnxruntime_go dynamic session configured for
// the model's fixed 1x64x64x1 input and 1x3 output shape.
type onnxSession struct {
	session *ort.DynamicAdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

// loadModel loads the ONNX model at path and configures it to run with
// intraOpThreads intra-op threads, per spec.md §4.4 (default 1 per eye).
func loadModel(path string, intraOpThreads int) (Session, error) {
	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("create session options: %w", err)
	}
	defer opts.Destroy()

	if intraOpThreads > 0 {
		if err := opts.SetIntraOpNumThreads(intraOpThreads); err != nil {
			return nil, fmt.Errorf("set intra_op_threads: %w", err)
		}
	}

	inputShape := ort.NewShape(1, tensorSize, tensorSize, 1)
	input, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("allocate input tensor: %w", err)
	}

	outputShape := ort.NewShape(1, outputSize)
	output, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("allocate output tensor: %w", err)
	}

	session, err := ort.NewDynamicAdvancedSession(path,
		[]string{"input"}, []string{"output"},
		opts)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("load model %s: %w", path, err)
	}

	return &onnxSession{session: session, input: input, output: output}, nil
}

func (s *onnxSession) Run(tensor []float32) (pitch, yaw, eyelid float32, err error) {
	copy(s.input.GetData(), tensor)

	if err := s.session.Run([]ort.Value{s.input}, []ort.Value{s.output}); err != nil {
		return 0, 0, 0, fmt.Errorf("run inference: %w", err)
	}

	out := s.output.GetData()
	if len(out) != outputSize {
		panic(fmt.Sprintf("inference: model returned %d outputs, want %d", len(out), outputSize))
	}
	return out[0], out[1], out[2], nil
}

func (s *onnxSession) Close() error {
	s.input.Destroy()
	s.output.Destroy()
	s.session.Destroy()
	return nil
}
