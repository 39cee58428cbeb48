package knowledge

// Default per-stage confidence for documents processed through the
// ConvertAPI pipeline. The stages are deterministic, so the scores are
// fixed rather than measured.
const (
	ConfidenceConversion      = 0.9
	ConfidenceTextExtraction  = 0.85
	ConfidenceImageProcessing = 0.8
)

// Blend weights for the overall score.
const (
	weightConversion      = 0.5
	weightTextExtraction  = 0.3
	weightImageProcessing = 0.2
)

// ComputeConfidence returns the confidence block for a pipeline run. The
// image score only counts when at least one image relocated successfully;
// a run whose images all failed scores zero on that stage.
func ComputeConfidence(anyImageSucceeded bool) Confidence {
	c := Confidence{
		Conversion:     ConfidenceConversion,
		TextExtraction: ConfidenceTextExtraction,
	}
	if anyImageSucceeded {
		c.ImageProcessing = ConfidenceImageProcessing
	}
	c.Overall = c.Conversion*weightConversion +
		c.TextExtraction*weightTextExtraction +
		c.ImageProcessing*weightImageProcessing
	return c
}
