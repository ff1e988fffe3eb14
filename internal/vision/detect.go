package vision

import (
	"fmt"
	"math"
	"sort"

	ort "github.com/yalue/onnxruntime_go"
)

// Detection represents a detected face.
type Detection struct {
	BBox       [4]float32 // x1, y1, x2, y2 (pixel coordinates)
	Confidence float32
	Landmarks  [5][2]float32 // eyes, nose, mouth corners
}

// Detector runs RetinaFace face detection using ONNX Runtime.
type Detector struct {
	session       *ort.AdvancedSession
	inputTensor   *ort.Tensor[float32]
	outputTensors []*ort.Tensor[float32]
	threshold     float32
	inputSize     int
}

// stride configuration for RetinaFace det_10g
var strides = []int{8, 16, 32}

// anchorsPerStride is the number of anchors per pixel at each stride
const anchorsPerStride = 2

const nmsIoU = 0.4

// det_10g output names: scores, bboxes, landmarks per stride 8, 16, 32.
var detOutputNames = [3][3]string{
	{"448", "471", "494"},
	{"451", "474", "497"},
	{"454", "477", "500"},
}

// NewDetector loads the RetinaFace ONNX model for a square input of size
// pixels (a multiple of 32). opts may be nil for ORT defaults.
func NewDetector(modelPath string, threshold float32, size int, opts *ort.SessionOptions) (*Detector, error) {
	if size <= 0 || size%32 != 0 {
		return nil, fmt.Errorf("detector input size %d is not a positive multiple of 32", size)
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, int64(size), int64(size)))
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	// Outputs carry no batch dimension: [anchors, 1|4|10] where
	// anchors = (size/stride)^2 * 2.
	widths := [3]int64{1, 4, 10}
	var outputNames []string
	var outputTensors []*ort.Tensor[float32]
	var outputValues []ort.Value
	destroy := func() {
		inputTensor.Destroy()
		for _, t := range outputTensors {
			t.Destroy()
		}
	}

	for kind := 0; kind < 3; kind++ {
		for si, stride := range strides {
			fm := int64(size / stride)
			t, err := ort.NewEmptyTensor[float32](ort.NewShape(fm*fm*anchorsPerStride, widths[kind]))
			if err != nil {
				destroy()
				return nil, fmt.Errorf("create output tensor %s: %w", detOutputNames[kind][si], err)
			}
			outputNames = append(outputNames, detOutputNames[kind][si])
			outputTensors = append(outputTensors, t)
			outputValues = append(outputValues, t)
		}
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"input.1"},
		outputNames,
		[]ort.Value{inputTensor},
		outputValues,
		opts,
	)
	if err != nil {
		destroy()
		return nil, fmt.Errorf("create detector session: %w", err)
	}

	return &Detector{
		session:       session,
		inputTensor:   inputTensor,
		outputTensors: outputTensors,
		threshold:     threshold,
		inputSize:     size,
	}, nil
}

// Detect runs face detection on a preprocessed image.
// imgData should be CHW format [3, size, size], normalized.
// origW/origH are the original image dimensions for coordinate scaling.
func (d *Detector) Detect(imgData []float32, origW, origH int) ([]Detection, error) {
	copy(d.inputTensor.GetData(), imgData)

	if err := d.session.Run(); err != nil {
		return nil, fmt.Errorf("run detection: %w", err)
	}

	var outs rawOutputs
	for si := range strides {
		outs.scores[si] = d.outputTensors[si].GetData()
		outs.bboxes[si] = d.outputTensors[si+3].GetData()
		outs.landmarks[si] = d.outputTensors[si+6].GetData()
	}
	return nms(decodeDetections(outs, d.inputSize, d.threshold, origW, origH), nmsIoU), nil
}

// InputSize returns the model's square input edge.
func (d *Detector) InputSize() int {
	return d.inputSize
}

func (d *Detector) Close() {
	if d.session != nil {
		d.session.Destroy()
	}
	if d.inputTensor != nil {
		d.inputTensor.Destroy()
	}
	for _, t := range d.outputTensors {
		if t != nil {
			t.Destroy()
		}
	}
}

type rawOutputs struct {
	scores    [3][]float32 // [N, 1]
	bboxes    [3][]float32 // [N, 4]
	landmarks [3][]float32 // [N, 10]
}

// decodeDetections decodes anchor-based RetinaFace outputs at strides 8, 16, 32.
func decodeDetections(outs rawOutputs, size int, threshold float32, origW, origH int) []Detection {
	var detections []Detection

	scaleW := float32(origW) / float32(size)
	scaleH := float32(origH) / float32(size)

	for si, stride := range strides {
		scores, bboxes, landmarks := outs.scores[si], outs.bboxes[si], outs.landmarks[si]
		fm := size / stride
		st := float32(stride)

		idx := 0
		for cy := 0; cy < fm; cy++ {
			for cx := 0; cx < fm; cx++ {
				for a := 0; a < anchorsPerStride; a++ {
					if idx >= len(scores) {
						break
					}
					score := scores[idx]
					if score >= threshold {
						anchorX := float32(cx) * st
						anchorY := float32(cy) * st

						// distances from anchor to edges, in stride units
						x1 := clampF((anchorX-bboxes[idx*4+0]*st)*scaleW, 0, float32(origW))
						y1 := clampF((anchorY-bboxes[idx*4+1]*st)*scaleH, 0, float32(origH))
						x2 := clampF((anchorX+bboxes[idx*4+2]*st)*scaleW, 0, float32(origW))
						y2 := clampF((anchorY+bboxes[idx*4+3]*st)*scaleH, 0, float32(origH))

						var lm [5][2]float32
						if len(landmarks) >= (idx+1)*10 {
							for li := 0; li < 5; li++ {
								lm[li][0] = (anchorX + landmarks[idx*10+li*2]*st) * scaleW
								lm[li][1] = (anchorY + landmarks[idx*10+li*2+1]*st) * scaleH
							}
						}

						detections = append(detections, Detection{
							BBox:       [4]float32{x1, y1, x2, y2},
							Confidence: score,
							Landmarks:  lm,
						})
					}
					idx++
				}
			}
		}
	}

	return detections
}

// nms performs Non-Maximum Suppression on detections.
func nms(detections []Detection, iouThreshold float32) []Detection {
	if len(detections) == 0 {
		return detections
	}

	sort.Slice(detections, func(i, j int) bool {
		return detections[i].Confidence > detections[j].Confidence
	})

	keep := make([]bool, len(detections))
	for i := range keep {
		keep[i] = true
	}

	for i := 0; i < len(detections); i++ {
		if !keep[i] {
			continue
		}
		for j := i + 1; j < len(detections); j++ {
			if keep[j] && iou(detections[i].BBox, detections[j].BBox) > iouThreshold {
				keep[j] = false
			}
		}
	}

	var result []Detection
	for i, d := range detections {
		if keep[i] {
			result = append(result, d)
		}
	}
	return result
}

func iou(a, b [4]float32) float32 {
	x1 := float32(math.Max(float64(a[0]), float64(b[0])))
	y1 := float32(math.Max(float64(a[1]), float64(b[1])))
	x2 := float32(math.Min(float64(a[2]), float64(b[2])))
	y2 := float32(math.Min(float64(a[3]), float64(b[3])))

	intersection := float32(math.Max(0, float64(x2-x1))) * float32(math.Max(0, float64(y2-y1)))

	areaA := (a[2] - a[0]) * (a[3] - a[1])
	areaB := (b[2] - b[0]) * (b[3] - b[1])
	union := areaA + areaB - intersection

	if union <= 0 {
		return 0
	}
	return intersection / union
}

func clampF(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
